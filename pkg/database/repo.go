package database

import (
	"context"
	"time"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
)

// NewRepoClient opens the application database and wraps it in a repo.Client.
// Slow-query logging follows database.logging.
func NewRepoClient(cfg config.DatabaseConfig) (*repo.Client, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return repo.NewClientWithSlowLog(db, SlowQueryThreshold(cfg.Logging)), nil
}

// SlowQueryThreshold returns zero when query logging is off.
func SlowQueryThreshold(c config.DatabaseLoggingConfig) time.Duration {
	if !c.Enabled {
		return 0
	}
	if c.SlowQueryThresholdMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(c.SlowQueryThresholdMs) * time.Millisecond
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, client *repo.Client) ([]string, error) {
	return repo.Migrate(ctx, client.DB())
}
