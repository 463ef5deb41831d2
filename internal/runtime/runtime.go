// Package runtime wires configuration, telemetry, storage, collaborator
// gateways, and the HTTP surface into one service lifecycle.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/api"
	"github.com/hawkaii/raahi-assistant/internal/assistant"
	"github.com/hawkaii/raahi-assistant/internal/audiocache"
	"github.com/hawkaii/raahi-assistant/internal/bus"
	"github.com/hawkaii/raahi-assistant/internal/config"
	"github.com/hawkaii/raahi-assistant/internal/eventstore"
	"github.com/hawkaii/raahi-assistant/internal/intent"
	"github.com/hawkaii/raahi-assistant/internal/natsserver"
	"github.com/hawkaii/raahi-assistant/internal/search"
	"github.com/hawkaii/raahi-assistant/internal/session"
	"github.com/hawkaii/raahi-assistant/internal/tts"
)

type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Ready reports whether startup wiring completed. Exposed through /readyz.
func (r *Runtime) Ready() bool {
	return r.ready.Load()
}

// Start brings the service up and blocks until ctx is cancelled, then shuts
// everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, busClient, err := r.startBus(ctx)
	if err != nil {
		return err
	}
	defer embedded.Shutdown()
	defer busClient.Close()

	store, err := r.openAudioStore(ctx)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}
	cache := audiocache.New(store, audiocache.Options{
		TTL:         time.Duration(r.cfg.AudioCache.TTLHours) * time.Hour,
		WaitTimeout: time.Duration(r.cfg.AudioCache.WaitTimeoutMS) * time.Millisecond,
	}, r.logger)

	turns, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open turn store: %w", err)
	}
	defer turns.Close()

	classifier, err := r.newClassifier()
	if err != nil {
		return err
	}
	synth, err := r.newSynthesizer()
	if err != nil {
		return err
	}

	var geocoder search.Geocoder
	if r.cfg.Geocode.Endpoint != "" {
		geocoder = search.NewHTTPGeocoder(r.cfg.Geocode, r.logger)
	}

	sessions := session.NewRegistry(time.Duration(r.cfg.Session.TTLMinutes)*time.Minute, r.logger)
	r.wg.Add(1)
	go r.sweepSessions(ctx, sessions)

	var publisher bus.Publisher
	if busClient != nil {
		publisher = busClient
	}
	orchestrator := assistant.New(assistant.Deps{
		Classifier: classifier,
		Searcher:   search.NewClient(r.cfg.Search),
		Geocoder:   geocoder,
		Synth:      synth,
		Cache:      cache,
		Sessions:   sessions,
		Turns:      turns,
		Publisher:  publisher,
		TTS:        r.cfg.TTS,
		Greetings:  r.cfg.Greetings,
	}, r.logger)

	handlers := api.NewHandlers(orchestrator, r, r.logger)
	addr := fmt.Sprintf("%s:%d", r.cfg.Server.Bind, r.cfg.Server.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handlers.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) startBus(ctx context.Context) (*natsserver.EmbeddedServer, *bus.Client, error) {
	if !r.cfg.Bus.Enabled {
		r.logger.Info("event bus disabled")
		return nil, nil, nil
	}
	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded bus: %w", err)
	}
	client, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		embedded.Shutdown()
		return nil, nil, fmt.Errorf("connect bus: %w", err)
	}
	return embedded, client, nil
}

func (r *Runtime) openAudioStore(ctx context.Context) (audiocache.Store, error) {
	switch r.cfg.AudioCache.Backend {
	case "memory":
		return audiocache.NewMemoryStore(), nil
	default:
		store, err := audiocache.OpenSQLite(ctx, r.cfg.AudioCache.Path, r.logger)
		if err != nil {
			return nil, fmt.Errorf("open audio cache: %w", err)
		}
		return store, nil
	}
}

func (r *Runtime) newClassifier() (intent.Classifier, error) {
	switch r.cfg.Engine.Mode {
	case "remote":
		return intent.NewRemoteClassifier(
			r.cfg.Engine.Endpoint,
			r.cfg.Engine.APIKey,
			r.cfg.Engine.Model,
			time.Duration(r.cfg.Engine.TimeoutMS)*time.Millisecond,
		), nil
	default:
		r.logger.Info("using mock intent engine")
		return intent.NewMockClassifier(), nil
	}
}

func (r *Runtime) newSynthesizer() (tts.Synthesizer, error) {
	switch r.cfg.TTS.Mode {
	case "exec":
		synth, err := tts.NewExecSynth(r.cfg.TTS.Command)
		if err != nil {
			return nil, fmt.Errorf("configure exec synthesizer: %w", err)
		}
		return synth, nil
	case "remote":
		return tts.NewRemoteSynth(r.cfg.TTS.Endpoint, time.Duration(r.cfg.TTS.TimeoutMS)*time.Millisecond), nil
	default:
		r.logger.Info("using mock speech synthesizer")
		return tts.NewMockSynth(), nil
	}
}

// sweepSessions drops expired session identifiers on a fixed cadence.
func (r *Runtime) sweepSessions(ctx context.Context, sessions *session.Registry) {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if removed := sessions.Sweep(); removed > 0 {
				r.logger.Debug("sessions swept", slog.Int("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}
