package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// SecretEnv names the environment variable consulted when auth.secret is empty.
const SecretEnv = "JWT_SECRET"

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"corrector": {"httpinfer", "llm"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and
// environment fallbacks, and validates the result. An empty document yields
// the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if cfg.Auth.Secret == "" {
		cfg.Auth.Secret = os.Getenv(SecretEnv)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.LogFormat != "" && !cfg.Server.LogFormat.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_format %q is invalid; valid values: text, json", cfg.Server.LogFormat))
	}
	if cfg.Server.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must not be negative"))
	}

	// Providers
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, fb := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", fb.Name)
	}
	if cfg.Providers.Corrector.Name == "" {
		errs = append(errs, fmt.Errorf("providers.corrector.name is required"))
	}
	correctors := append([]ProviderEntry{cfg.Providers.Corrector}, cfg.Providers.CorrectorFallbacks...)
	for i, c := range correctors {
		prefix := "providers.corrector"
		if i > 0 {
			prefix = fmt.Sprintf("providers.corrector_fallbacks[%d]", i-1)
			if c.Name == "" {
				errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			}
		}
		validateProviderName("corrector", c.Name)
		if c.Name == "llm" && cfg.Providers.LLM.Name == "" {
			errs = append(errs, fmt.Errorf("%s: the llm corrector requires providers.llm", prefix))
		}
	}
	for i, fb := range cfg.Providers.LLMFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.llm_fallbacks[%d].name is required", i))
		}
	}
	if len(cfg.Providers.LLMFallbacks) > 0 && cfg.Providers.LLM.Name == "" {
		errs = append(errs, fmt.Errorf("providers.llm_fallbacks requires providers.llm"))
	}

	// Analysis
	a := cfg.Analysis
	if a.Splitter != "" && !a.Splitter.IsValid() {
		errs = append(errs, fmt.Errorf("analysis.splitter %q is invalid; valid values: punkt, simple", a.Splitter))
	}
	if a.Granularity != "" && !a.Granularity.IsValid() {
		errs = append(errs, fmt.Errorf("analysis.granularity %q is invalid; valid values: word, char", a.Granularity))
	}
	if a.ExplainMode != "" && !a.ExplainMode.IsValid() {
		errs = append(errs, fmt.Errorf("analysis.explain_mode %q is invalid; valid values: sentence, batch", a.ExplainMode))
	}
	if a.ExplainConcurrency < 0 {
		errs = append(errs, fmt.Errorf("analysis.explain_concurrency must not be negative"))
	}
	if t := a.AlignmentWarnThreshold; t != nil && (*t < 0 || *t > 1) {
		errs = append(errs, fmt.Errorf("analysis.alignment_warn_threshold %v must be within [0, 1]", *t))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; explanations will report as unavailable")
	}

	// Insights
	in := cfg.Insights
	if in.Enabled && cfg.Providers.LLM.Name == "" {
		errs = append(errs, fmt.Errorf("insights.enabled requires providers.llm"))
	}
	if in.MinSentences < 0 || in.MinWords < 0 {
		errs = append(errs, fmt.Errorf("insights thresholds must not be negative"))
	}
	if in.Temperature < 0 || in.Temperature > 2 {
		errs = append(errs, fmt.Errorf("insights.temperature %v must be within [0, 2]", in.Temperature))
	}
	if in.TopP < 0 || in.TopP > 1 {
		errs = append(errs, fmt.Errorf("insights.top_p %v must be within [0, 1]", in.TopP))
	}

	// Auth
	if cfg.Auth.Enabled && cfg.Auth.Secret == "" {
		errs = append(errs, fmt.Errorf("auth.secret (or %s) is required when auth is enabled", SecretEnv))
	}

	// MCP
	if cfg.MCP.Enabled && !strings.HasPrefix(cfg.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures must not be negative"))
	}
	if cfg.Resilience.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
