package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	httpcmd "github.com/Alijeyrad/medcenter_backend/cmd/http"
	systemcmd "github.com/Alijeyrad/medcenter_backend/cmd/system"
)

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "medcenter",
	Short: "Multi-tenant medical center backend.",
	Long: `medcenter runs the back office of one or more medical centers: reception,
patient queue, billing and insurance verification, and the confirm-to-doctor
hand-off gated by center-defined business rules.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global config flag, available for all commands.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file path")

	rootCmd.AddCommand(systemcmd.NewSystemCommand())
	rootCmd.AddCommand(httpcmd.NewHTTPCommand())
}
