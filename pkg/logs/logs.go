package logs

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Alijeyrad/medcenter_backend/config"
	"github.com/Alijeyrad/medcenter_backend/pkg/constants"
)

// New builds a logger from config, supporting multi-output fan-out.
// The returned function flushes buffered outputs and must be called on shutdown.
func New(cfg *config.Config) (*slog.Logger, func()) {
	level := parseLevel(cfg.Logging.Level)
	isDev := strings.EqualFold(cfg.Server.Environment, constants.EnvironmentDevelopment)

	var (
		writers  []io.Writer
		closers  []func()
		handlers []slog.Handler
	)

	// Always write to stdout if enabled or nothing else is configured
	if cfg.Logging.Output.Stdout || (!cfg.Logging.Output.File.Enabled && !cfg.Logging.Output.Loki.Enabled) {
		writers = append(writers, os.Stdout)
	}

	// File output with rotation via lumberjack
	if cfg.Logging.Output.File.Enabled {
		lj := &lumberjack.Logger{
			Filename:   cfg.Logging.Output.File.Path,
			MaxSize:    cfg.Logging.Output.File.MaxSizeMB,
			MaxBackups: cfg.Logging.Output.File.MaxBackups,
			MaxAge:     cfg.Logging.Output.File.MaxAgeDays,
			Compress:   cfg.Logging.Output.File.Compress,
		}
		writers = append(writers, lj)
		closers = append(closers, func() { _ = lj.Close() })
	}

	if len(writers) > 0 {
		handlers = append(handlers, newWriterHandler(io.MultiWriter(writers...), cfg.Logging.Format, level, isDev))
	}

	if cfg.Logging.Output.Loki.Enabled {
		h, stop, err := newLokiHandler(cfg, level)
		if err != nil {
			// Loki is best effort; keep the other outputs.
			slog.Error("loki logging disabled", "error", err)
		} else {
			handlers = append(handlers, h)
			closers = append(closers, stop)
		}
	}

	if len(handlers) == 0 {
		handlers = append(handlers, newWriterHandler(os.Stdout, cfg.Logging.Format, level, isDev))
	}

	var h slog.Handler
	if len(handlers) == 1 {
		h = handlers[0]
	} else {
		h = &multiHandler{handlers: handlers}
	}

	logger := slog.New(h).With(
		slog.String("service", serviceName(cfg)),
		slog.String("version", cfg.Observability.ServiceVersion),
		slog.String("env", cfg.Server.Environment),
	)

	return logger, func() {
		for _, c := range closers {
			c()
		}
	}
}

func Default() *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelInfo,
		AddSource: false,
	})
	return slog.New(h).With(slog.String("service", constants.AppName))
}

func newWriterHandler(w io.Writer, format string, level slog.Level, isDev bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: isDev,
	}
	if strings.EqualFold(format, "json") || !isDev {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func serviceName(cfg *config.Config) string {
	if cfg.Observability.ServiceName != "" {
		return cfg.Observability.ServiceName
	}
	return constants.AppName
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
