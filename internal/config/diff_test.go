package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/scrivener/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{
		Providers: config.ProvidersConfig{
			Corrector: config.ProviderEntry{Name: "httpinfer", Options: map[string]any{"path": "/infer"}},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		mutate      func(*config.Config)
		wantLevel   bool
		wantRestart []string
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
		},
		{
			name:      "log level only",
			mutate:    func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			wantLevel: true,
		},
		{
			name:        "listen address",
			mutate:      func(c *config.Config) { c.Server.ListenAddr = ":1" },
			wantRestart: []string{"server"},
		},
		{
			name:        "provider option",
			mutate:      func(c *config.Config) { c.Providers.Corrector.Options["path"] = "/v2/infer" },
			wantRestart: []string{"providers"},
		},
		{
			name: "several sections",
			mutate: func(c *config.Config) {
				c.Server.LogLevel = config.LogWarn
				c.Analysis.ExplainConcurrency = 3
				c.Auth.RequiredRole = "admin"
				c.Resilience.MaxFailures = 9
			},
			wantLevel:   true,
			wantRestart: []string{"analysis", "auth", "resilience"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			old, updated := baseConfig(), baseConfig()
			tt.mutate(updated)

			d := config.Diff(old, updated)
			if d.LogLevelChanged != tt.wantLevel {
				t.Errorf("LogLevelChanged = %v, want %v", d.LogLevelChanged, tt.wantLevel)
			}
			if tt.wantLevel && d.NewLogLevel != updated.Server.LogLevel {
				t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, updated.Server.LogLevel)
			}
			if !slices.Equal(d.RestartRequired, tt.wantRestart) {
				t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, tt.wantRestart)
			}
			if d.Changed() != (tt.wantLevel || len(tt.wantRestart) > 0) {
				t.Errorf("Changed() = %v", d.Changed())
			}
		})
	}
}
