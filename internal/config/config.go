// Package config provides the configuration schema, loader, and provider registry
// for the Scrivener grammar analysis service.
package config

import (
	"time"

	"github.com/MrWong99/scrivener/internal/diff"
	"github.com/MrWong99/scrivener/internal/sentence"
)

// LogLevel controls log verbosity for the Scrivener server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler used for output.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogFormatText || f == LogFormatJSON
}

// ExplainMode selects how sentence explanations are requested.
type ExplainMode string

const (
	// ExplainPerSentence asks the model once per changed sentence.
	ExplainPerSentence ExplainMode = "sentence"

	// ExplainBatched asks once per analysis with every changed sentence.
	ExplainBatched ExplainMode = "batch"
)

// IsValid reports whether m is a recognised explain mode.
func (m ExplainMode) IsValid() bool {
	return m == ExplainPerSentence || m == ExplainBatched
}

// Config is the root configuration structure for Scrivener.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Insights   InsightsConfig   `yaml:"insights"`
	Auth       AuthConfig       `yaml:"auth"`
	Store      StoreConfig      `yaml:"store"`
	MCP        MCPConfig        `yaml:"mcp"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel  LogLevel  `yaml:"log_level"`
	LogFormat LogFormat `yaml:"log_format"`

	// LogFile additionally writes logs to this path when set.
	LogFile string `yaml:"log_file"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes caps request bodies on the JSON endpoints.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// CORSOrigins lists allowed origins. "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`
}

// ProvidersConfig declares which implementation backs each collaborator.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// Corrector produces the corrected text the analysis diffs against.
	Corrector          ProviderEntry   `yaml:"corrector"`
	CorrectorFallbacks []ProviderEntry `yaml:"corrector_fallbacks"`

	// LLM backs explanations, insights and the "llm" corrector.
	LLM          ProviderEntry   `yaml:"llm"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "httpinfer").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Timeout bounds a single provider call. Zero keeps the provider default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`
}

// AnalysisConfig tunes the diff engine and the sentence aligner.
type AnalysisConfig struct {
	Splitter    sentence.Kind    `yaml:"splitter"`
	Granularity diff.Granularity `yaml:"granularity"`

	// SemanticCleanup defaults to true when omitted.
	SemanticCleanup *bool `yaml:"semantic_cleanup"`

	// DiffTimeout bounds the diff search. Zero keeps the one second default
	// and a negative value removes the limit.
	DiffTimeout time.Duration `yaml:"diff_timeout"`

	// ExplainMode is "sentence" (default) or "batch".
	ExplainMode ExplainMode `yaml:"explain_mode"`

	// ExplainConcurrency bounds parallel explanation calls per request in
	// sentence mode.
	ExplainConcurrency int `yaml:"explain_concurrency"`

	// AlignmentWarnThreshold is the Jaro-Winkler similarity under which an
	// aligned sentence pair is reported as dissimilar.
	AlignmentWarnThreshold *float64 `yaml:"alignment_warn_threshold"`
}

// DiffConfig converts the analysis settings to a [diff.Config].
func (a AnalysisConfig) DiffConfig() diff.Config {
	cfg := diff.DefaultConfig()
	if a.Granularity != "" {
		cfg.Granularity = a.Granularity
	}
	if a.SemanticCleanup != nil {
		cfg.SemanticCleanup = *a.SemanticCleanup
	}
	switch {
	case a.DiffTimeout > 0:
		cfg.Timeout = a.DiffTimeout
	case a.DiffTimeout < 0:
		cfg.Timeout = 0
	}
	return cfg
}

// InsightsConfig controls the optional content insights analysis.
type InsightsConfig struct {
	Enabled      bool    `yaml:"enabled"`
	MinSentences int     `yaml:"min_sentences"`
	MinWords     int     `yaml:"min_words"`
	Temperature  float64 `yaml:"temperature"`
	TopP         float64 `yaml:"top_p"`
}

// AuthConfig enables bearer-token authentication on the API.
type AuthConfig struct {
	Enabled bool `yaml:"enabled"`

	// Secret is the HS256 signing key. Falls back to the JWT_SECRET
	// environment variable when empty.
	Secret string `yaml:"secret"`

	// RequiredRole, when set, must appear in the token's "role" claim.
	RequiredRole string `yaml:"required_role"`
}

// StoreConfig configures the optional PostgreSQL audit store.
type StoreConfig struct {
	// PostgresDSN enables the store when non-empty.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MCPConfig exposes the analysis tools over the Model Context Protocol.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ResilienceConfig tunes the circuit breakers around providers.
type ResilienceConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// Defaults for fields left empty in the YAML file.
const (
	DefaultListenAddr      = ":8000"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultMCPPath         = "/mcp"
	DefaultMaxFailures     = 5
	DefaultResetTimeout    = 30 * time.Second
	DefaultWarnThreshold   = 0.5
)

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	s := &c.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if s.LogFormat == "" {
		s.LogFormat = LogFormatText
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if s.CORSOrigins == nil {
		s.CORSOrigins = []string{"*"}
	}

	a := &c.Analysis
	if a.Splitter == "" {
		a.Splitter = sentence.KindPunkt
	}
	if a.Granularity == "" {
		a.Granularity = diff.GranularityWord
	}
	if a.ExplainMode == "" {
		a.ExplainMode = ExplainPerSentence
	}
	if a.ExplainConcurrency == 0 {
		a.ExplainConcurrency = 1
	}
	if a.AlignmentWarnThreshold == nil {
		v := DefaultWarnThreshold
		a.AlignmentWarnThreshold = &v
	}

	in := &c.Insights
	if in.MinSentences == 0 {
		in.MinSentences = 3
	}
	if in.MinWords == 0 {
		in.MinWords = 50
	}
	if in.Temperature == 0 {
		in.Temperature = 0.1
	}
	if in.TopP == 0 {
		in.TopP = 0.9
	}

	if c.MCP.Path == "" {
		c.MCP.Path = DefaultMCPPath
	}

	if c.Resilience.MaxFailures == 0 {
		c.Resilience.MaxFailures = DefaultMaxFailures
	}
	if c.Resilience.ResetTimeout == 0 {
		c.Resilience.ResetTimeout = DefaultResetTimeout
	}
}
