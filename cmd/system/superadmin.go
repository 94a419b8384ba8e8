package system

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	"github.com/Alijeyrad/medcenter_backend/pkg/database"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/password"
)

// NewCreateSuperadminCommand creates a platform superadmin, or promotes an
// existing user with the same e-mail.
func NewCreateSuperadminCommand() *cobra.Command {
	var (
		emailAddr string
		pass      string
		firstName string
		lastName  string
		phoneNum  string
	)

	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create or promote a platform superadmin",
		RunE: func(cmd *cobra.Command, args []string) error {
			emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
			if emailAddr == "" {
				return errors.New("--email is required")
			}

			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.ReadConfig(filepath.Dir(cfgPath))
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			client, err := database.NewRepoClient(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer client.Close()

			enforcer, cleanup, err := authorize.NewEnforcer(authorize.FromCentralConfig(cfg.Authorization), database.NewDSN(cfg.CasbinDatabase))
			if err != nil {
				return fmt.Errorf("failed to create enforcer: %w", err)
			}
			defer cleanup(context.Background())
			auth, err := authorize.NewAuthorization(enforcer)
			if err != nil {
				return fmt.Errorf("failed to create authorization: %w", err)
			}

			u, err := client.User.GetByEmail(ctx, emailAddr)
			switch {
			case err == nil:
				fmt.Printf("Promoting existing user %s.\n", u.ID)
			case repo.IsNotFound(err):
				if len(pass) < 8 {
					return errors.New("--password must be at least 8 characters for a new user")
				}
				hash, err := password.NewHasher(password.FromCentralConfig(cfg.Password)).Hash(pass)
				if err != nil {
					return fmt.Errorf("hash password: %w", err)
				}
				u = &repo.User{
					Email:        emailAddr,
					PasswordHash: hash,
					FirstName:    firstName,
					LastName:     lastName,
					IsSuperadmin: true,
				}
				if phoneNum != "" {
					p, err := phone.NewNormalizer(cfg.Phone.DefaultRegion).E164(phoneNum)
					if err != nil {
						return fmt.Errorf("invalid --phone: %w", err)
					}
					u.Phone = &p
				}
				if err := client.User.Create(ctx, u); err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				fmt.Printf("Created user %s.\n", u.ID)
			default:
				return fmt.Errorf("look up user: %w", err)
			}

			if err := client.User.SetSuperadmin(ctx, u.ID, true); err != nil {
				return fmt.Errorf("flag superadmin: %w", err)
			}
			if err := authorize.AssignSuperadmin(ctx, auth, u.ID.String()); err != nil {
				return fmt.Errorf("assign superadmin role: %w", err)
			}

			fmt.Printf("%s is now a superadmin.\n", emailAddr)
			return nil
		},
	}

	cmd.Flags().StringVar(&emailAddr, "email", "", "superadmin e-mail (login)")
	cmd.Flags().StringVar(&pass, "password", "", "initial password, required for a new user")
	cmd.Flags().StringVar(&firstName, "first-name", "Platform", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "Admin", "last name")
	cmd.Flags().StringVar(&phoneNum, "phone", "", "optional mobile number")

	return cmd
}
