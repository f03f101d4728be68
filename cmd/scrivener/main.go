// Command scrivener is the main entry point for the Scrivener grammar
// analysis service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/scrivener/internal/app"
	"github.com/MrWong99/scrivener/internal/config"
	"github.com/MrWong99/scrivener/internal/observe"
	"github.com/MrWong99/scrivener/internal/resilience"
	"github.com/MrWong99/scrivener/pkg/provider/corrector"
	"github.com/MrWong99/scrivener/pkg/provider/corrector/httpinfer"
	"github.com/MrWong99/scrivener/pkg/provider/corrector/llmcorrect"
	"github.com/MrWong99/scrivener/pkg/provider/llm"
	"github.com/MrWong99/scrivener/pkg/provider/llm/anyllm"
	"github.com/MrWong99/scrivener/pkg/provider/llm/openai"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch", true, "reload the log level when the config file changes")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "scrivener: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "scrivener: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger, closeLog, err := newLogger(cfg.Server, level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrivener: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	slog.Info("scrivener starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// Installed before any provider is built so every instrument binds to the
	// real meter provider.
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithMetricsHandler(tel.MetricsHandler),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *watch {
		w, err := config.NewWatcher(*configPath, func(old, next *config.Config) {
			d := config.Diff(old, next)
			if d.LogLevelChanged {
				level.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes require a restart", "sections", d.RestartRequired)
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	code := 0
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// Everything except openai goes through any-llm-go; they all share the
	// same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range anyllm.Backends {
		if providerName == "openai" {
			continue
		}
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			return anyllm.New(providerName, entry.Model, anyllmOptions(entry)...)
		})
	}

	// openai uses the official SDK when a key is configured and falls back to
	// any-llm-go, which reads OPENAI_API_KEY, otherwise.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		if entry.APIKey == "" {
			return anyllm.New("openai", entry.Model, anyllmOptions(entry)...)
		}
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, openai.WithOrganization(org))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Corrector ─────────────────────────────────────────────────────────────

	reg.RegisterCorrector("httpinfer", func(entry config.ProviderEntry, _ llm.Provider) (corrector.Corrector, error) {
		var opts []httpinfer.Option
		if entry.Timeout > 0 {
			opts = append(opts, httpinfer.WithTimeout(entry.Timeout))
		}
		if p := optString(entry.Options, "infer_path"); p != "" {
			opts = append(opts, httpinfer.WithInferPath(p))
		}
		if p := optString(entry.Options, "health_path"); p != "" {
			opts = append(opts, httpinfer.WithHealthPath(p))
		}
		return httpinfer.New(entry.BaseURL, opts...)
	})

	reg.RegisterCorrector("llm", func(entry config.ProviderEntry, p llm.Provider) (corrector.Corrector, error) {
		if p == nil {
			return nil, errors.New("the llm corrector requires providers.llm")
		}
		var opts []llmcorrect.Option
		if t, ok := optFloat(entry.Options, "temperature"); ok {
			opts = append(opts, llmcorrect.WithTemperature(t))
		}
		if sp := optString(entry.Options, "system_prompt"); sp != "" {
			opts = append(opts, llmcorrect.WithSystemPrompt(sp))
		}
		return llmcorrect.New(p, opts...), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

func anyllmOptions(entry config.ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return opts
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Fallback entries are chained behind the primary with one circuit breaker
// each.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Resilience.MaxFailures,
			ResetTimeout: cfg.Resilience.ResetTimeout,
			OnStateChange: func(name string, from, to resilience.State) {
				slog.Warn("circuit breaker state changed", "provider", name, "from", from, "to", to)
			},
		},
	}

	// ── LLM ───────────────────────────────────────────────────────────────────
	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		slog.Info("provider created", "kind", "llm", "name", entry.Name)

		if len(cfg.Providers.LLMFallbacks) == 0 {
			ps.LLM = p
		} else {
			fb := resilience.NewLLMFallback(p, entry.Name, fbCfg)
			for _, fe := range cfg.Providers.LLMFallbacks {
				fp, err := reg.CreateLLM(fe)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", fe.Name, err)
				}
				fb.AddFallback(fe.Name, fp)
				slog.Info("provider created", "kind", "llm", "name", fe.Name, "fallback", true)
			}
			ps.LLM = fb
		}
	}

	// ── Corrector ─────────────────────────────────────────────────────────────
	entry := cfg.Providers.Corrector
	c, err := reg.CreateCorrector(entry, ps.LLM)
	if err != nil {
		return nil, fmt.Errorf("create corrector %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "corrector", "name", entry.Name)

	if len(cfg.Providers.CorrectorFallbacks) == 0 {
		ps.Corrector = c
		return ps, nil
	}
	fb := resilience.NewCorrectorFallback(c, entry.Name, fbCfg)
	for _, fe := range cfg.Providers.CorrectorFallbacks {
		fc, err := reg.CreateCorrector(fe, ps.LLM)
		if err != nil {
			return nil, fmt.Errorf("create corrector fallback %q: %w", fe.Name, err)
		}
		fb.AddFallback(fe.Name, fc)
		slog.Info("provider created", "kind", "corrector", "name", fe.Name, "fallback", true)
	}
	ps.Corrector = fb
	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Scrivener startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Corrector", cfg.Providers.Corrector.Name, cfg.Providers.Corrector.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	fmt.Printf("║  Fallbacks       : %-19s ║\n",
		fmt.Sprintf("%d corr / %d llm", len(cfg.Providers.CorrectorFallbacks), len(cfg.Providers.LLMFallbacks)))
	printFlag("Insights", cfg.Insights.Enabled)
	printFlag("Auth", cfg.Auth.Enabled)
	printFlag("MCP", cfg.MCP.Enabled)
	printFlag("Audit store", cfg.Store.PostgresDSN != "")
	fmt.Printf("║  Splitter        : %-19s ║\n", cfg.Analysis.Splitter)
	fmt.Printf("║  Granularity     : %-19s ║\n", cfg.Analysis.Granularity)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

func printFlag(kind string, on bool) {
	value := "(disabled)"
	if on {
		value = "enabled"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger. Output goes to stderr and, when
// LogFile is set, is appended to that file as well. The returned func closes
// the file.
func newLogger(s config.ServerConfig, level *slog.LevelVar) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeFn := func() {}
	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if s.LogFormat == config.LogFormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h), closeFn, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optFloat extracts a number from a provider Options map. YAML decodes
// integers as int, so both are accepted.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
