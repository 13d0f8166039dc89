package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/yapper/internal/bus"
	"github.com/loqalabs/yapper/internal/config"
	"github.com/loqalabs/yapper/internal/control"
	"github.com/loqalabs/yapper/internal/eventstore"
	"github.com/loqalabs/yapper/internal/natsserver"
	"github.com/loqalabs/yapper/internal/pipeline"
	"github.com/loqalabs/yapper/internal/scheduler"
	"github.com/loqalabs/yapper/internal/session"
	"github.com/loqalabs/yapper/internal/sink"
	"github.com/loqalabs/yapper/internal/source"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup

	embedded   *natsserver.EmbeddedServer
	bus        *bus.Client
	store      *eventstore.Store
	loop       *scheduler.Loop
	controller *session.Controller
	control    *control.Server
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is done. An active session
// is stopped and flushed on the way out.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry
	defer r.shutdown()

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	r.store = store

	var pub sink.Publisher
	if r.cfg.Bus.Enabled {
		if err := r.connectBus(ctx); err != nil {
			return err
		}
		pub = r.bus
	}

	src, err := source.New(r.cfg.Source, r.logger)
	if err != nil {
		return fmt.Errorf("create source: %w", err)
	}
	sinks, err := sinkFactory(r.cfg.Sink, os.Stdout, pub, r.logger)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}

	r.loop = scheduler.NewLoop(256)
	// sessions are flushed after ctx ends, so the controller outlives it
	r.controller = session.NewController(context.WithoutCancel(ctx), session.Options{
		Source:    src,
		Loop:      r.loop,
		Pipeline:  r.cfg.Pipeline,
		StopGrace: time.Duration(r.cfg.Source.StopGraceMS) * time.Millisecond,
		Sinks:     sinks,
		Recorder:  store,
		Bus:       pub,
		Metrics:   pipeline.NewMetrics(r.logger),
		Logger:    r.logger,
	})

	r.control = control.NewServer(ctx, r.cfg.Control.SocketPath, r.controller, store, r.logger)
	if err := r.control.Start(); err != nil {
		return fmt.Errorf("start control socket: %w", err)
	}

	if r.cfg.HTTP.Enabled {
		r.startHTTP(metricsHandler)
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("source", r.cfg.Source.Mode),
		slog.String("sink", r.cfg.Sink.Mode),
		slog.Bool("bus", r.bus != nil))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	return nil
}

func (r *Runtime) connectBus(ctx context.Context) error {
	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		srv, err := natsserver.Start(busCfg, r.logger.With(slog.String("component", "natsserver")))
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		r.embedded = srv
		busCfg.Servers = []string{srv.ClientURL()}
	}
	client, err := bus.Connect(ctx, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return fmt.Errorf("connect bus: %w", err)
	}
	r.bus = client
	if err := client.EnsureStream("yapper.>"); err != nil {
		r.logger.Warn("sentences will not be retained on the bus", slog.String("error", err.Error()))
	}
	return nil
}

func (r *Runtime) startHTTP(metricsHandler http.Handler) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("http server listening", slog.String("addr", addr))
}

// shutdown tears down in reverse start order; every step tolerates a
// component that was never started.
func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.control != nil {
		r.control.Close()
	}
	if r.controller != nil {
		if err := r.controller.Close(shutdownCtx); err != nil {
			r.logger.Error("session shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.loop != nil {
		r.loop.Close()
	}
	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.bus.Close()
	r.embedded.Shutdown()
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Error("event store close error", slog.String("error", err.Error()))
		}
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && (r.bus == nil || r.bus.Healthy()) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
