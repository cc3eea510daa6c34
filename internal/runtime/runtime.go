package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-scribe/internal/app"
	"github.com/loqalabs/loqa-scribe/internal/bus"
	"github.com/loqalabs/loqa-scribe/internal/capture"
	"github.com/loqalabs/loqa-scribe/internal/config"
	"github.com/loqalabs/loqa-scribe/internal/eventstore"
	"github.com/loqalabs/loqa-scribe/internal/natsserver"
	"github.com/loqalabs/loqa-scribe/internal/transcribe"
	"github.com/loqalabs/loqa-scribe/internal/ui"
)

const pruneInterval = time.Hour

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	embeddedNATS  *natsserver.EmbeddedServer
	busClient     *bus.Client
	store         *eventstore.Store
	controller    *app.Controller
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Messages maps the configured status text onto the UI.
func Messages(cfg config.UIConfig) ui.Messages {
	return ui.Messages{
		Idle:      cfg.IdleMessage,
		Listening: cfg.ListeningMessage,
		Sending:   cfg.SendingMessage,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if err := r.startInfra(ctx); err != nil {
		r.shutdown()
		return err
	}

	source, err := capture.NewSource(r.cfg.Capture)
	if err != nil {
		r.shutdown()
		return fmt.Errorf("failed to create capture source: %w", err)
	}
	transcriber, err := transcribe.New(r.cfg.Transcribe, r.logger)
	if err != nil {
		r.shutdown()
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	rec := capture.NewRecorder(source, r.logger)
	r.controller = app.New(ctx, rec, transcriber, Messages(r.cfg.UI), r.logger)
	if r.store.Enabled() {
		r.controller.AddHook(timelineHook(r.store, r.cfg.Capture.Mode, r.logger))
	}
	if r.busClient != nil {
		r.controller.AddHook(busHook(r.busClient, r.logger))
	}

	srv := &server{
		title:   r.cfg.RuntimeName,
		ctrl:    r.controller,
		store:   r.store,
		metrics: metricsHandler,
		ready:   r.isReady,
		logger:  r.logger.With(slog.String("component", "http")),
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http server")

	if bind := r.cfg.Telemetry.PrometheusBind; bind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              bind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer, "metrics server")
	}

	if r.store.Enabled() {
		r.wg.Add(1)
		go r.pruneLoop(ctx)
	}

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("capture_mode", r.cfg.Capture.Mode),
		slog.String("transcribe_mode", r.cfg.Transcribe.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	r.shutdown()
	return nil
}

// startInfra brings up the event store and the optional message bus.
func (r *Runtime) startInfra(ctx context.Context) error {
	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger.With(slog.String("component", "eventstore")))
	if err != nil {
		return fmt.Errorf("failed to open event store: %w", err)
	}
	r.store = store

	if !r.cfg.Bus.Enabled {
		return nil
	}
	busCfg := r.cfg.Bus
	embedded, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded NATS: %w", err)
	}
	r.embeddedNATS = embedded
	if embedded != nil {
		busCfg.Servers = []string{embedded.ClientURL()}
	}

	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = client
	return nil
}

// isReady is false until Start finishes and while a configured bus is down.
func (r *Runtime) isReady() bool {
	if !r.ready.Load() {
		return false
	}
	return r.busClient == nil || r.busClient.Healthy()
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error(name+" failed", slog.String("error", err.Error()))
		}
	}()
}

func (r *Runtime) pruneLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.store.Prune(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("event store prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown tears down whatever Start brought up, in reverse order.
func (r *Runtime) shutdown() {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.controller != nil {
		r.controller.Close()
	}
	r.wg.Wait()

	if r.busClient != nil {
		r.busClient.Close()
	}
	r.embeddedNATS.Shutdown()
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
