// Package app wires all callsight subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStores, WithTranscriber, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"github.com/callsight/callsight/internal/config"
	"github.com/callsight/callsight/internal/dispatch"
	"github.com/callsight/callsight/internal/health"
	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/internal/push"
	"github.com/callsight/callsight/internal/server"
	"github.com/callsight/callsight/internal/session"
	"github.com/callsight/callsight/pkg/provider/insights"
	oainsights "github.com/callsight/callsight/pkg/provider/insights/openai"
	"github.com/callsight/callsight/pkg/provider/transcribe"
	"github.com/callsight/callsight/pkg/provider/transcribe/whisperapi"
	"github.com/callsight/callsight/pkg/store/memory"
	"github.com/callsight/callsight/pkg/store/postgres"
)

// App owns all subsystem lifetimes and orchestrates the media pipeline.
type App struct {
	cfg *config.Config

	// Subsystems — initialised in New, torn down in Shutdown.
	registry    *config.Registry
	stores      config.Stores
	transcriber transcribe.Client
	extractor   insights.Extractor
	hub         *push.Hub
	dispatcher  *dispatch.Dispatcher
	manager     *session.Manager
	srv         *server.Server
	watcher     *config.Watcher
	metrics     *observe.Metrics

	// logLevel, when non-nil, is retargeted on config reload.
	logLevel *slog.LevelVar

	// configPath enables the hot-reload watcher when non-empty.
	configPath  string
	watcherOpts []config.WatcherOption

	version string

	// otelShutdown flushes and stops the telemetry providers.
	otelShutdown func(context.Context) error

	// closers are called in reverse-init order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStores injects a store bundle instead of opening one from config.
func WithStores(s config.Stores) Option {
	return func(a *App) { a.stores = s }
}

// WithTranscriber injects a transcription client instead of creating one
// from config.
func WithTranscriber(c transcribe.Client) Option {
	return func(a *App) { a.transcriber = c }
}

// WithExtractor injects an insights extractor instead of creating one from
// config.
func WithExtractor(e insights.Extractor) Option {
	return func(a *App) { a.extractor = e }
}

// WithRegistry injects a storage registry instead of the builtin drivers.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithLogLevel hands the app the level var behind the process logger so
// config reloads can retarget it.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// WithConfigFile enables the hot-reload watcher on the given config file.
func WithConfigFile(path string, opts ...config.WatcherOption) Option {
	return func(a *App) {
		a.configPath = path
		a.watcherOpts = opts
	}
}

// WithVersion sets the build version reported by telemetry and the health
// probes.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option
// functions to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: telemetry providers,
// storage, the transcription and insights clients, the push hub, the
// dispatcher, the session manager, the HTTP server, and the optional
// config watcher.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		version: "dev",
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Telemetry ─────────────────────────────────────────────────────
	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}

	// ── 2. Storage ───────────────────────────────────────────────────────
	if err := a.initStorage(ctx); err != nil {
		return nil, fmt.Errorf("app: init storage: %w", err)
	}

	// ── 3. Providers ─────────────────────────────────────────────────────
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	// ── 4. Pipeline ──────────────────────────────────────────────────────
	if err := a.initPipeline(); err != nil {
		return nil, fmt.Errorf("app: init pipeline: %w", err)
	}

	// ── 5. HTTP server ───────────────────────────────────────────────────
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	// ── 6. Config watcher ────────────────────────────────────────────────
	if err := a.initWatcher(); err != nil {
		return nil, fmt.Errorf("app: init watcher: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initTelemetry installs the global OTel providers and the app's metrics
// instruments when telemetry is enabled. Disabled telemetry leaves
// a.metrics nil, which turns every instrumentation point below into a
// no-op.
func (a *App) initTelemetry(ctx context.Context) error {
	if !a.cfg.Telemetry.Enabled {
		return nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		ServiceVersion: a.version,
	})
	if err != nil {
		return err
	}
	a.otelShutdown = shutdown

	m, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	slog.Info("telemetry enabled", "service", a.cfg.Telemetry.ServiceName)
	return nil
}

// registerBuiltinDrivers wires the storage drivers that ship with callsight.
func registerBuiltinDrivers(reg *config.Registry) {
	reg.RegisterStorage(config.StorageMemory, func(_ context.Context, _ config.StorageConfig) (config.Stores, error) {
		s := memory.NewStore()
		return config.Stores{
			Calls:       s.Calls(),
			Transcripts: s.Transcripts(),
			Summaries:   s.Summaries(),
			Locations:   s.Locations(),
		}, nil
	})

	reg.RegisterStorage(config.StoragePostgres, func(ctx context.Context, cfg config.StorageConfig) (config.Stores, error) {
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return config.Stores{}, err
		}
		return config.Stores{
			Calls:       s.Calls(),
			Transcripts: s.Transcripts(),
			Summaries:   s.Summaries(),
			Locations:   s.Locations(),
			Ping:        s.Ping,
			Close:       s.Close,
		}, nil
	})
}

// initStorage opens the configured storage driver or uses injected stores.
func (a *App) initStorage(ctx context.Context) error {
	if a.stores.Calls != nil {
		return nil // injected
	}

	reg := a.registry
	if reg == nil {
		reg = config.NewRegistry()
		registerBuiltinDrivers(reg)
	}

	stores, err := reg.OpenStorage(ctx, a.cfg.Storage)
	if err != nil {
		return err
	}
	a.stores = stores
	if stores.Close != nil {
		a.closers = append(a.closers, func() error {
			stores.Close()
			return nil
		})
	}
	slog.Info("storage opened", "driver", a.cfg.Storage.Driver)
	return nil
}

// initProviders creates the transcription and insights clients from config
// unless test doubles were injected, then applies the metric decorators.
func (a *App) initProviders() error {
	if a.transcriber == nil {
		tc := a.cfg.Transcription
		client, err := whisperapi.New(tc.Endpoint, tc.APIKey,
			whisperapi.WithModel(tc.Model),
			whisperapi.WithTemperature(tc.Temperature),
			whisperapi.WithTimeout(tc.Timeout()),
		)
		if err != nil {
			return err
		}
		a.transcriber = client
		slog.Info("provider created", "kind", "transcription", "model", tc.Model)
	}

	if a.extractor == nil {
		ic := a.cfg.Insights
		ex, err := oainsights.New(ic.APIKey, ic.DefaultModel,
			oainsights.WithBaseURL(ic.Endpoint),
			oainsights.WithTimeout(ic.Timeout()),
		)
		if err != nil {
			return err
		}
		a.extractor = ex
		slog.Info("provider created", "kind", "insights", "model", ic.DefaultModel)
	}

	if a.metrics != nil {
		a.transcriber = observe.InstrumentTranscriber(a.transcriber, a.metrics, "whisperapi")
		a.extractor = observe.InstrumentExtractor(a.extractor, a.metrics, "openai")
	}
	return nil
}

// initPipeline assembles the hub, dispatcher, and session manager.
func (a *App) initPipeline() error {
	a.hub = push.NewHub()
	a.closers = append(a.closers, a.hub.Close)

	var broadcaster push.Broadcaster = a.hub
	if a.metrics != nil {
		broadcaster = observe.InstrumentBroadcaster(a.hub, a.metrics)
	}

	d, err := dispatch.New(dispatch.Config{
		Calls:       a.stores.Calls,
		Transcripts: a.stores.Transcripts,
		Summaries:   a.stores.Summaries,
		Locations:   a.stores.Locations,
		Broadcaster: broadcaster,
	})
	if err != nil {
		return err
	}
	a.dispatcher = d

	m, err := session.NewManager(session.Config{
		Transcriber:      a.transcriber,
		Extractor:        a.extractor,
		Dispatcher:       d,
		BufferSeconds:    a.cfg.Audio.BufferSeconds,
		SilenceThreshold: a.cfg.Audio.SilenceRatio(),
		SampleRate:       a.cfg.Audio.SampleRate,
	})
	if err != nil {
		return err
	}
	a.manager = m

	if a.metrics != nil {
		if err := observe.RegisterGauges(otel.GetMeterProvider(), m.ActiveSessions, a.hub.ClientCount); err != nil {
			return err
		}
	}
	return nil
}

// initServer builds the health handler and the HTTP server.
func (a *App) initServer() error {
	h := health.New(a.version)
	if a.stores.Ping != nil {
		h.AddCheck("storage", a.stores.Ping)
	}

	var sessions server.MediaSessions = a.manager
	var middleware func(http.Handler) http.Handler
	var metricsHandler http.Handler
	if a.metrics != nil {
		sessions = observe.InstrumentSessions(a.manager, a.metrics)
		middleware = observe.Middleware(a.metrics)
		metricsHandler = promhttp.Handler()
	}

	srv, err := server.New(server.Config{
		ListenAddr:      a.cfg.Server.ListenAddr,
		WebhookBaseURL:  a.cfg.Server.WebhookBaseURL,
		TwilioAuthToken: a.cfg.Twilio.AuthToken,
		Sessions:        sessions,
		CallEvents:      a.dispatcher,
		Hub:             a.hub,
		Calls:           a.stores.Calls,
		Transcripts:     a.stores.Transcripts,
		Health:          h,
		Metrics:         metricsHandler,
		Middleware:      middleware,
	})
	if err != nil {
		return err
	}
	a.srv = srv
	return nil
}

// initWatcher starts the config file watcher when a path was provided.
func (a *App) initWatcher() error {
	if a.configPath == "" {
		return nil
	}

	w, err := config.NewWatcher(a.configPath, a.applyReload, a.watcherOpts...)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func() error {
		w.Stop()
		return nil
	})
	slog.Info("config watcher started", "path", a.configPath)
	return nil
}

// applyReload applies the reloadable subset of a changed config: the log
// level and the audio tunables. Everything else requires a restart.
func (a *App) applyReload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}

	if d.LogLevelChanged {
		if a.logLevel != nil {
			a.logLevel.Set(d.NewLogLevel.Level())
			slog.Info("log level changed", "level", d.NewLogLevel)
		} else {
			slog.Warn("log level changed in config but the process logger is not reloadable", "level", d.NewLogLevel)
		}
	}

	if d.AudioChanged {
		if err := a.manager.Retune(d.NewBufferSeconds, d.NewSilenceThreshold); err != nil {
			slog.Warn("audio retune rejected", "err", err)
			return
		}
		slog.Info("audio pipeline retuned",
			"buffer_seconds", d.NewBufferSeconds,
			"silence_threshold", d.NewSilenceThreshold,
		)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Handler returns the composed HTTP handler, for tests that drive the app
// through httptest instead of a bound listener.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run serves HTTP until ctx is cancelled or the listener fails. The config
// watcher, when enabled, polls in its own goroutine for the life of the
// app; Run does not need to supervise it.
func (a *App) Run(ctx context.Context) error {
	slog.Info("app running",
		"addr", a.cfg.Server.ListenAddr,
		"storage", a.cfg.Storage.Driver,
		"telemetry", a.cfg.Telemetry.Enabled,
	)
	return a.srv.Run(ctx)
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems: the HTTP listener stops accepting
// work, active sessions drain their final flushes while providers and
// stores are still alive, then the remaining closers run in reverse-init
// order. If ctx expires mid-way, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.srv != nil {
			if err := a.srv.Shutdown(ctx); err != nil {
				slog.Warn("server shutdown error", "err", err)
			}
		}

		if a.manager != nil {
			a.manager.Shutdown(ctx)
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		if a.otelShutdown != nil {
			if err := a.otelShutdown(ctx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
