package app

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/repo"
	"github.com/Alijeyrad/medcenter_backend/internal/service/billing"
	"github.com/Alijeyrad/medcenter_backend/internal/service/insurance"
	"github.com/Alijeyrad/medcenter_backend/pkg/authorize"
	"github.com/Alijeyrad/medcenter_backend/pkg/crypto"
	"github.com/Alijeyrad/medcenter_backend/pkg/database"
	"github.com/Alijeyrad/medcenter_backend/pkg/email"
	"github.com/Alijeyrad/medcenter_backend/pkg/events"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
	"github.com/Alijeyrad/medcenter_backend/pkg/phone"
	redispkg "github.com/Alijeyrad/medcenter_backend/pkg/redis"
	s3pkg "github.com/Alijeyrad/medcenter_backend/pkg/s3"
	"github.com/Alijeyrad/medcenter_backend/pkg/sms"
	"github.com/Alijeyrad/medcenter_backend/pkg/util/password"
	zarinpalpkg "github.com/Alijeyrad/medcenter_backend/pkg/zarinpal"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideRepoClient),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideAuthorization),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideDocumentStore),
	fx.Provide(ProvidePaymentGateway),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvidePublisher),
	fx.Provide(ProvidePhoneNormalizer),
	fx.Provide(ProvideFieldCipher),
	fx.Provide(ProvidePasswordHasher),
)

func ProvideRepoClient(lc fx.Lifecycle, cfg *config.Config) (*repo.Client, error) {
	client, err := database.NewRepoClient(cfg.Database)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Database.Migrations.AutoMigrate {
				return nil
			}
			applied, err := database.Migrate(ctx, client)
			if err != nil {
				return err
			}
			slog.Info("database migrations applied", "count", len(applied))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing main database connection")
			return client.Close()
		},
	})
	return client, nil
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.New(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideAuthorization(lc fx.Lifecycle, cfg *config.Config) (authorize.IAuthorization, error) {
	authzCfg := authorize.FromCentralConfig(cfg.Authorization)
	enforcer, cleanup, err := authorize.NewEnforcer(authzCfg, database.NewDSN(cfg.CasbinDatabase))
	if err != nil {
		return nil, err
	}
	auth, err := authorize.NewFromConfig(enforcer, authzCfg, slog.Default())
	if err != nil {
		cleanup(context.Background())
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("cleaning up Casbin enforcer")
			cleanup(ctx)
			return nil
		},
	})
	return auth, nil
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.New(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

// ProvideDocumentStore returns nil when no bucket is configured; insurance
// uploads then fail with ErrStorageUnavailable.
func ProvideDocumentStore(lc fx.Lifecycle, cfg *config.Config) (insurance.Blobs, error) {
	if cfg.S3.Bucket == "" {
		slog.Warn("s3 bucket not configured, insurance document uploads disabled")
		return nil, nil
	}
	client, err := s3pkg.New(cfg.S3)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.HeadBucket(ctx); err != nil {
				slog.Warn("s3 bucket not reachable", "bucket", cfg.S3.Bucket, "error", err)
			}
			return nil
		},
	})
	return client, nil
}

// ProvidePaymentGateway returns nil without a merchant id, which disables
// online payments.
func ProvidePaymentGateway(cfg *config.Config) billing.Gateway {
	if cfg.ZarinPal.MerchantID == "" {
		slog.Warn("zarinpal merchant id not configured, online payments disabled")
		return nil
	}
	return zarinpalpkg.New(cfg.ZarinPal)
}

func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name("medcenter"))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvidePublisher(nc *nats.Conn) events.Publisher {
	return events.NewNatsPublisher(nc)
}

func ProvideMetrics() *observability.Metrics {
	return observability.NewMetrics()
}

func ProvidePhoneNormalizer(cfg *config.Config) *phone.Normalizer {
	return phone.NewNormalizer(cfg.Phone.DefaultRegion)
}

func ProvideFieldCipher(cfg *config.Config) (*crypto.FieldCipher, error) {
	return crypto.NewFieldCipherFromHex(cfg.Authentication.EncryptionKey)
}

func ProvidePasswordHasher(cfg *config.Config) *password.Hasher {
	return password.NewHasher(password.FromCentralConfig(cfg.Password))
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(),
		observability.FromCentralConfig(cfg.Observability, cfg.Server.Environment))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}
