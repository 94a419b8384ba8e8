package http

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/handler"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/middleware"
	"github.com/Alijeyrad/medcenter_backend/internal/api/http/router"
	"github.com/Alijeyrad/medcenter_backend/internal/service/insurance"
	"github.com/Alijeyrad/medcenter_backend/pkg/observability"
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client
	Router    *router.Router
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	timeout := time.Duration(p.Cfg.Server.TimeoutSeconds) * time.Second
	app := fiber.New(fiber.Config{
		AppName:      "medcenter",
		ErrorHandler: handler.ErrorHandler,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		// Insurance documents plus multipart overhead.
		BodyLimit: insurance.MaxDocumentSize + 1<<20,
	})

	configureGlobalMiddleware(app, p.Cfg, p.Redis)

	if p.OTel != nil && p.Cfg.Observability.Tracing.Enabled {
		app.Use(observability.FiberMiddleware(p.Cfg.Observability.ServiceName))
	}

	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr); err != nil {
					slog.Error("HTTP server error", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.IsProduction() {
		app.Use(helmet.New(helmet.Config{
			XSSProtection:             cfg.Server.Headers.XSSProtection,
			ContentTypeNosniff:        cfg.Server.Headers.ContentTypeNosniff,
			XFrameOptions:             cfg.Server.Headers.XFrameOptions,
			ReferrerPolicy:            cfg.Server.Headers.ReferrerPolicy,
			CrossOriginEmbedderPolicy: cfg.Server.Headers.CrossOriginEmbedderPolicy,
			CrossOriginOpenerPolicy:   cfg.Server.Headers.CrossOriginOpenerPolicy,
			CrossOriginResourcePolicy: cfg.Server.Headers.CrossOriginResourcePolicy,
			OriginAgentCluster:        cfg.Server.Headers.OriginAgentCluster,
		}))
		app.Use(middleware.NewLimiterWithRedis(rdb, cfg.Server.RateLimit.RequestsPerMinute))
	}

	if cfg.Server.CORS.Enabled {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.Server.CORS.AllowOrigins,
			AllowMethods:     cfg.Server.CORS.AllowMethods,
			AllowHeaders:     append(cfg.Server.CORS.AllowHeaders, middleware.HeaderCenterID, middleware.HeaderRequestID),
			ExposeHeaders:    cfg.Server.CORS.ExposeHeaders,
			AllowCredentials: cfg.Server.CORS.AllowCredentials,
			MaxAge:           cfg.Server.CORS.MaxAgeSeconds,
		}))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${locals:request_id}] ${method} ${url} ${status} ${latency}\n",
		Next: func(c fiber.Ctx) bool {
			return strings.HasPrefix(c.Path(), "/livez") || strings.HasPrefix(c.Path(), "/readyz")
		},
	}))
}
