package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/session"
	"github.com/loqalabs/yapper/internal/sink"
)

// sinkFactory builds the per-session fan-out: the configured output first,
// then the bus when it is available. The session controller adds the ledger.
func sinkFactory(cfg config.SinkConfig, stdout io.Writer, pub sink.Publisher, logger *slog.Logger) (session.SinkFactory, error) {
	var (
		primary  sink.Sink
		webhooks *http.Client
	)
	switch cfg.Mode {
	case "", "exec":
		s, err := sink.NewExec(cfg.Command)
		if err != nil {
			return nil, err
		}
		primary = s
	case "stdout":
		primary = sink.NewWriter(stdout)
	case "webhook":
		webhooks = &http.Client{Timeout: 10 * time.Second}
	case "none":
		primary = sink.Discard
	default:
		return nil, fmt.Errorf("unsupported sink mode %q", cfg.Mode)
	}
	logger.Info("sink configured", slog.String("mode", cfg.Mode))

	return func(sessionID string) sink.Sink {
		sinks := []sink.Sink{primary}
		if webhooks != nil {
			sinks[0] = sink.NewWebhook(cfg.WebhookURL, sessionID, webhooks)
		}
		if pub != nil {
			sinks = append(sinks, sink.NewBus(pub, sessionID))
		}
		return sink.Multi(sinks...)
	}, nil
}
