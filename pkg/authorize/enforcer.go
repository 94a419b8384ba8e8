package authorize

import (
	"context"
	"log/slog"
	"sync/atomic"

	psqlwatcher "github.com/IguteChung/casbin-psql-watcher"
	casbin "github.com/casbin/casbin/v2"
	entadapter "github.com/casbin/ent-adapter"
)

// policyChannel is the Postgres NOTIFY channel shared by every API instance.
const policyChannel = "medcenter_casbin_policy"

// policyLoadHealthy turns false when a watcher-triggered reload fails and
// back to true on the next successful reload. /readyz reports it.
var policyLoadHealthy atomic.Bool

func init() {
	policyLoadHealthy.Store(true)
}

func IsPolicyHealthy() bool {
	return policyLoadHealthy.Load()
}

// CleanupFunc releases the watcher connection and stops policy reloading.
type CleanupFunc func(ctx context.Context)

// NewEnforcer opens the casbin policy tables through the ent adapter. With
// PolicySyncEnabled a Postgres LISTEN/NOTIFY watcher reloads policy on every
// instance after a change; member role grants rely on it in multi-instance
// deployments.
func NewEnforcer(cfg Config, dsn string) (*casbin.DistributedEnforcer, CleanupFunc, error) {
	a, err := entadapter.NewAdapter("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	e, err := casbin.NewDistributedEnforcer(cfg.CasbinModelPath, a)
	if err != nil {
		return nil, nil, err
	}
	e.EnableAutoSave(true)
	e.EnableEnforce(true)

	if !cfg.PolicySyncEnabled {
		return e, func(context.Context) { e.StopAutoLoadPolicy() }, nil
	}

	w, err := psqlwatcher.NewWatcherWithConnString(context.Background(), dsn, psqlwatcher.Option{
		Channel: policyChannel,
	})
	if err != nil {
		return nil, nil, err
	}
	err = w.SetUpdateCallback(func(msg string) {
		slog.Debug("casbin policy update received", "message", msg)
		err := e.LoadPolicy()
		if err != nil {
			slog.Error("casbin policy reload failed", "error", err)
		}
		if cfg.HealthCheckEnabled {
			policyLoadHealthy.Store(err == nil)
		}
	})
	if err != nil {
		w.Close()
		return nil, nil, err
	}
	if err := e.SetWatcher(w); err != nil {
		w.Close()
		return nil, nil, err
	}

	cleanup := func(context.Context) {
		w.Close()
		e.StopAutoLoadPolicy()
		slog.Info("casbin policy watcher closed")
	}
	return e, cleanup, nil
}
