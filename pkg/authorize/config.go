package authorize

import (
	"log/slog"

	casbin "github.com/casbin/casbin/v2"

	"github.com/Alijeyrad/medcenter_backend/config"
)

// Config mirrors the authorization section of config.yaml.
type Config struct {
	CasbinModelPath string

	// EnableAudit logs every decision as authz_decision.
	EnableAudit bool

	// SuperadminBypass lets role:platform:superadmin in sys pass every check.
	SuperadminBypass bool

	// PolicySyncEnabled starts the Postgres watcher that reloads policy on
	// other instances.
	PolicySyncEnabled bool

	// HealthCheckEnabled lets failed reloads fail the readiness probe.
	HealthCheckEnabled bool
}

func FromCentralConfig(c config.AuthorizationConfig) Config {
	return Config{
		CasbinModelPath:    c.CasbinModelPath,
		EnableAudit:        c.EnableAudit,
		SuperadminBypass:   c.SuperadminBypass,
		PolicySyncEnabled:  c.PolicySyncEnabled,
		HealthCheckEnabled: c.HealthCheckEnabled,
	}
}

// NewFromConfig wraps e according to cfg: superadmin bypass on or off, and
// audit logging when enabled.
func NewFromConfig(e *casbin.DistributedEnforcer, cfg Config, logger *slog.Logger) (IAuthorization, error) {
	auth, err := NewAuthorization(e)
	if err != nil {
		return nil, err
	}
	if !cfg.SuperadminBypass {
		auth.(*Authorization).superAdminRole = ""
	}
	if cfg.EnableAudit {
		return NewAuditedAuthorization(auth, logger), nil
	}
	return auth, nil
}
