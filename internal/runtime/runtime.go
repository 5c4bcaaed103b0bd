package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/voicedoc/internal/bus"
	"github.com/loqalabs/voicedoc/internal/config"
	"github.com/loqalabs/voicedoc/internal/gemini"
	"github.com/loqalabs/voicedoc/internal/history"
	"github.com/loqalabs/voicedoc/internal/natsserver"
	"github.com/loqalabs/voicedoc/internal/readback"
	"github.com/loqalabs/voicedoc/internal/stt"
	"github.com/loqalabs/voicedoc/internal/tts"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
)

type Runtime struct {
	cfg           config.Config
	version       string
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	nats          *natsserver.EmbeddedServer
	bus           *bus.Client
	history       *history.Store
	stt           *stt.Service
	tts           *tts.Service
	readback      *readback.Service
	ready         atomic.Bool
	wg            sync.WaitGroup
}

func New(cfg config.Config, version string, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:     cfg,
		version: version,
		logger:  logger,
	}
}

// Start brings up every component, serves HTTP until ctx is done, then shuts
// down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(ctx, r.cfg, r.version, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slogError(err))
		}
	}()

	if err := r.startComponents(ctx); err != nil {
		r.stopComponents()
		return err
	}
	defer r.stopComponents()

	a := &api{
		stt:            r.stt,
		tts:            r.tts,
		bus:            r.bus,
		history:        r.history,
		defaultVoice:   r.cfg.TTS.Voice,
		maxUploadBytes: r.cfg.HTTP.MaxUploadBytes,
		logger:         r.logger.With(slog.String("component", "http")),
		ready:          r.healthy,
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.routes(metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	if metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.serve(r.metricsServer, "metrics")
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr), slog.String("version", r.version))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slogError(err))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slogError(err))
		}
	}
	r.wg.Wait()
	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error(name+" server failed", slogError(err))
		}
	}()
}

func (r *Runtime) startComponents(ctx context.Context) error {
	ns, err := natsserver.Start(r.cfg.Bus, r.logger.With(slog.String("component", "nats")))
	if err != nil {
		return err
	}
	r.nats = ns

	busCfg := r.cfg.Bus
	if ns != nil {
		busCfg.Servers = []string{ns.ClientURL()}
	}
	r.bus, err = bus.Connect(r.cfg.RuntimeName, busCfg, r.logger.With(slog.String("component", "bus")))
	if err != nil {
		return err
	}

	r.history, err = history.Open(ctx, r.cfg.History, r.logger.With(slog.String("component", "history")))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.history.RunPruner(ctx, pruneInterval)
	}()

	client, err := NewGeminiClient(ctx, r.cfg)
	if err != nil {
		return err
	}

	transcriber, err := stt.NewTranscriber(r.cfg.STT, client)
	if err != nil {
		return fmt.Errorf("stt backend: %w", err)
	}
	r.stt = stt.NewService(ctx, r.cfg.STT, r.bus, transcriber, r.history, r.logger)
	if err := r.stt.Start(); err != nil {
		return err
	}

	synth, err := tts.NewSynthesizer(r.cfg.TTS, client)
	if err != nil {
		return fmt.Errorf("tts backend: %w", err)
	}
	r.tts, err = tts.NewService(ctx, r.cfg.TTS, r.bus, synth, r.history, r.logger)
	if err != nil {
		return err
	}
	if err := r.tts.Start(); err != nil {
		return err
	}

	readbackCfg := r.cfg.Readback
	readbackCfg.Enabled = readbackCfg.Enabled && r.cfg.TTS.Enabled
	r.readback = readback.NewService(readbackCfg, r.bus, r.logger)
	return r.readback.Start()
}

func (r *Runtime) stopComponents() {
	if r.readback != nil {
		r.readback.Close()
	}
	if r.tts != nil {
		r.tts.Close()
	}
	if r.stt != nil {
		r.stt.Close()
	}
	if r.bus != nil {
		r.bus.Close()
	}
	if r.history != nil {
		if err := r.history.Close(); err != nil {
			r.logger.Warn("history close error", slogError(err))
		}
	}
	r.nats.Shutdown()
}

func (r *Runtime) healthy() bool {
	return r.ready.Load() &&
		r.bus.Healthy() &&
		r.stt.Healthy() &&
		r.tts.Healthy() &&
		r.readback.Healthy()
}

// NewGeminiClient returns a client when any enabled backend runs in gemini
// mode, and nil otherwise.
func NewGeminiClient(ctx context.Context, cfg config.Config) (*gemini.Client, error) {
	needed := (cfg.STT.Enabled && cfg.STT.Mode == "gemini") || (cfg.TTS.Enabled && cfg.TTS.Mode == "gemini")
	if !needed {
		return nil, nil
	}
	client, err := gemini.New(ctx, cfg.Gemini)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return client, nil
}
