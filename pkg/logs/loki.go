package logs

import (
	"log/slog"
	"strings"

	"github.com/grafana/loki-client-go/loki"
	promconfig "github.com/prometheus/common/config"
	slogloki "github.com/samber/slog-loki/v3"

	"github.com/Alijeyrad/medcenter_backend/config"
)

const lokiPushPath = "/loki/api/v1/push"

// newLokiHandler returns a handler that batches records to Loki and a stop
// function that flushes the client.
func newLokiHandler(cfg *config.Config, level slog.Level) (slog.Handler, func(), error) {
	lc, err := loki.NewDefaultConfig(lokiPushURL(cfg.Logging.Output.Loki.Endpoint))
	if err != nil {
		return nil, nil, err
	}
	if u := cfg.Logging.Output.Loki.Username; u != "" {
		lc.Client.BasicAuth = &promconfig.BasicAuth{
			Username: u,
			Password: promconfig.Secret(cfg.Logging.Output.Loki.Password),
		}
	}

	client, err := loki.New(lc)
	if err != nil {
		return nil, nil, err
	}

	h := slogloki.Option{Level: level, Client: client}.NewLokiHandler()
	return h, client.Stop, nil
}

func lokiPushURL(endpoint string) string {
	endpoint = strings.TrimRight(endpoint, "/")
	if strings.HasSuffix(endpoint, lokiPushPath) {
		return endpoint
	}
	return endpoint + lokiPushPath
}
