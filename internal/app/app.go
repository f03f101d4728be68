// Package app wires all Scrivener subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context ends, and Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/MrWong99/scrivener/internal/analysis"
	"github.com/MrWong99/scrivener/internal/api"
	"github.com/MrWong99/scrivener/internal/auth"
	"github.com/MrWong99/scrivener/internal/config"
	"github.com/MrWong99/scrivener/internal/diff"
	"github.com/MrWong99/scrivener/internal/explain"
	"github.com/MrWong99/scrivener/internal/health"
	"github.com/MrWong99/scrivener/internal/insights"
	"github.com/MrWong99/scrivener/internal/mcp"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/sentence"
	"github.com/MrWong99/scrivener/internal/store"
	"github.com/MrWong99/scrivener/pkg/provider/corrector"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
)

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry. Corrector is required; LLM is nil when no
// language model is configured.
type Providers struct {
	Corrector corrector.Corrector
	LLM       llm.Provider
}

// Store is the audit store as the application uses it.
type Store interface {
	analysis.Recorder
	api.History
	health.Pinger
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	store          Store
	metrics        *observe.Metrics
	metricsHandler http.Handler
	version        string
	service        *analysis.Service
	handler        http.Handler
	server         *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects an audit store instead of connecting to
// cfg.Store.PostgresDSN.
func WithStore(s Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics injects the metric instruments. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithVersion sets the version reported to MCP clients.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
//
// New performs all initialisation synchronously: store connection and
// migration, analysis pipeline construction, and HTTP route registration.
// The listener is not opened until [App.Run].
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Corrector == nil {
		return nil, errors.New("app: a corrector provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Audit store ───────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, err
	}

	// ── 2. Analysis pipeline ─────────────────────────────────────────────
	if err := a.initService(); err != nil {
		a.closeAll()
		return nil, err
	}

	// ── 3. HTTP routes ───────────────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		a.closeAll()
		return nil, err
	}

	return a, nil
}

// initStore connects to PostgreSQL when a DSN is configured and no store was
// injected.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		slog.Info("audit store disabled")
		return nil
	}
	s, err := store.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("app: open audit store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, func() error {
		s.Close()
		return nil
	})
	slog.Info("audit store connected")
	return nil
}

func (a *App) initService() error {
	acfg := a.cfg.Analysis

	splitter, err := sentence.New(acfg.Splitter)
	if err != nil {
		return fmt.Errorf("app: sentence splitter: %w", err)
	}

	dcfg := acfg.DiffConfig()
	if !dcfg.Granularity.IsValid() {
		return fmt.Errorf("app: unknown diff granularity %q", dcfg.Granularity)
	}

	threshold := config.DefaultWarnThreshold
	if acfg.AlignmentWarnThreshold != nil {
		threshold = *acfg.AlignmentWarnThreshold
	}
	aligner := sentence.NewAligner(
		sentence.WithSimilarityThreshold(threshold),
		sentence.WithDissimilarHook(func(ctx context.Context, _ sentence.Pair, _ float64) {
			a.metrics.RecordDissimilarPair(ctx)
		}),
	)

	asmOpts := []analysis.AssemblerOption{
		analysis.WithBuilder(diff.NewBuilder(dcfg)),
		analysis.WithSplitter(splitter),
		analysis.WithAligner(aligner),
		analysis.WithExplainConcurrency(acfg.ExplainConcurrency),
		analysis.WithMetrics(a.metrics),
	}
	if a.providers.LLM != nil {
		ex := explain.New(a.providers.LLM)
		if acfg.ExplainMode == config.ExplainBatched {
			asmOpts = append(asmOpts, analysis.WithBatchExplainer(ex))
		} else {
			asmOpts = append(asmOpts, analysis.WithExplainer(ex))
		}
	}

	var svcOpts []analysis.ServiceOption
	if a.cfg.Insights.Enabled && a.providers.LLM != nil {
		icfg := a.cfg.Insights
		svcOpts = append(svcOpts, analysis.WithInsights(insights.New(a.providers.LLM, splitter, insights.Config{
			MinSentences: icfg.MinSentences,
			MinWords:     icfg.MinWords,
			Temperature:  icfg.Temperature,
			TopP:         icfg.TopP,
		})))
	}
	if a.store != nil {
		svcOpts = append(svcOpts, analysis.WithRecorder(a.store))
	}

	a.service = analysis.NewService(a.providers.Corrector, analysis.NewAssembler(asmOpts...), svcOpts...)
	slog.Info("analysis pipeline ready",
		"splitter", acfg.Splitter,
		"granularity", dcfg.Granularity,
		"explanations", a.providers.LLM != nil,
		"explain_mode", acfg.ExplainMode,
		"insights", a.service.InsightsEnabled(),
	)
	return nil
}

func (a *App) initHTTP() error {
	mux := http.NewServeMux()

	// Health.
	var checkers []health.Checker
	if p, ok := a.providers.Corrector.(corrector.Pinger); ok {
		checkers = append(checkers, health.PingChecker("corrector", p))
	}
	if a.store != nil {
		checkers = append(checkers, health.PingChecker("store", a.store))
	}
	health.New("scrivener", checkers...).Register(mux)

	// API.
	srvCfg := a.cfg.Server
	apiOpts := []api.Option{
		api.WithMaxBodyBytes(srvCfg.MaxBodyBytes),
		api.WithMetrics(a.metrics),
		api.WithOriginPatterns(api.OriginPatterns(srvCfg.CORSOrigins)...),
	}
	if a.store != nil {
		apiOpts = append(apiOpts, api.WithHistory(a.store))
	}
	if a.cfg.Auth.Enabled {
		var vopts []auth.Option
		if role := a.cfg.Auth.RequiredRole; role != "" {
			vopts = append(vopts, auth.WithRequiredRole(role))
		}
		v, err := auth.NewVerifier(a.cfg.Auth.Secret, vopts...)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		apiOpts = append(apiOpts, api.WithAuth(v.Middleware))
	}
	api.New(a.service, apiOpts...).Register(mux)

	// MCP.
	if a.cfg.MCP.Enabled {
		ms, err := mcp.NewServer(a.service, mcp.WithVersion(a.version))
		if err != nil {
			return fmt.Errorf("app: mcp server: %w", err)
		}
		path := a.cfg.MCP.Path
		if path == "" {
			path = config.DefaultMCPPath
		}
		mux.Handle(path, ms.Handler())
		slog.Info("mcp endpoint mounted", "path", path)
	}

	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	a.handler = api.CORS(srvCfg.CORSOrigins)(observe.Middleware(a.metrics)(mux))
	a.server = &http.Server{
		Addr:         srvCfg.ListenAddr,
		Handler:      a.handler,
		ReadTimeout:  srvCfg.ReadTimeout,
		WriteTimeout: srvCfg.WriteTimeout,
	}
	return nil
}

// Handler returns the fully wrapped root handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the analysis service.
func (a *App) Service() *analysis.Service { return a.service }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run listens on cfg.Server.ListenAddr and serves until ctx is cancelled, then
// returns ctx.Err(). Listener failures are returned immediately.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("app: listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve is like [App.Run] on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.server.BaseContext = func(net.Listener) context.Context { return context.WithoutCancel(ctx) }

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(ln)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains in-flight requests and then runs the closers in order. It
// respects the context deadline: if ctx expires, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
				shutdownErr = err
			}
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// closeAll runs the closers registered so far after a failed New.
func (a *App) closeAll() {
	for _, closer := range a.closers {
		_ = closer()
	}
	a.closers = nil
}
