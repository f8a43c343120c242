// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "clickpilot", cfg.Logger.ServiceName)
	assert.Equal(t, ProviderOpenAI, cfg.Vision.Point.Provider)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Vision.Point.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Vision.Point.Model)
	assert.Equal(t, 60*time.Second, cfg.Vision.Point.Timeout)
	assert.Equal(t, 3, cfg.Vision.Point.MaxRetries)
	assert.Equal(t, 1, cfg.Vision.Samples)
	assert.Equal(t, 4, cfg.Vision.MaxConcurrency)
	assert.Equal(t, 120*time.Millisecond, cfg.Vision.Stagger)
	assert.Equal(t, 3, cfg.Vision.Governor.Threshold)
	assert.Equal(t, 5*time.Minute, cfg.Vision.Governor.Pause)
	assert.True(t, cfg.Vision.Overlay.Enabled)
	assert.Equal(t, 50, cfg.Vision.Overlay.Step)
	assert.Equal(t, "runs", cfg.Run.Dir)
	assert.Equal(t, 1500*time.Millisecond, cfg.Workflow.SettleDelay)
	assert.Equal(t, InputXdotool, cfg.Input.Backend)
	assert.Equal(t, 100.0, cfg.Input.Humanoid.FittsA)
	assert.Equal(t, "Sheet1", cfg.Records.SheetName)

	// The reasoning tier inherits the point tier when left blank.
	assert.Equal(t, cfg.Vision.Point.Model, cfg.Vision.Reasoning.Model)
	assert.Equal(t, cfg.Vision.Point.Provider, cfg.Vision.Reasoning.Provider)

	require.NoError(t, cfg.Validate())
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"zero samples", func(c *Config) { c.Vision.Samples = 0 }, "vision.samples must be at least 1"},
		{"zero concurrency", func(c *Config) { c.Vision.MaxConcurrency = 0 }, "vision.max_concurrency must be at least 1"},
		{"negative stagger", func(c *Config) { c.Vision.Stagger = -time.Second }, "vision.stagger must not be negative"},
		{"unknown provider", func(c *Config) { c.Vision.Point.Provider = "claude" }, "vision.point.provider must be one of"},
		{"zero retries", func(c *Config) { c.Vision.Reasoning.MaxRetries = 0 }, "vision.reasoning.max_retries must be at least 1"},
		{"zero threshold", func(c *Config) { c.Vision.Governor.Threshold = 0 }, "vision.governor.threshold must be at least 1"},
		{"tiny grid", func(c *Config) { c.Vision.Overlay.Step = 2 }, "vision.overlay.step must be at least 4"},
		{"bad backend", func(c *Config) { c.Input.Backend = "robotgo" }, "input.backend must be one of"},
		{"no candidates", func(c *Config) { c.DOM.MaxCandidates = 0 }, "dom.max_candidates must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("tiny grid is fine when the overlay is off", func(t *testing.T) {
		cfg := NewDefaultConfig()
		cfg.Vision.Overlay.Enabled = false
		cfg.Vision.Overlay.Step = 0
		assert.NoError(t, cfg.Validate())
	})
}

// -- Loading Tests --

func TestNewConfigFromViper_YAML(t *testing.T) {
	yamlConfig := []byte(`
logger:
  level: debug
vision:
  samples: 5
  max_concurrency: 2
  stagger: 250ms
  point:
    model: gpt-4o
  reasoning:
    provider: gemini
    model: gemini-2.0-flash
    api_key: g-key
input:
  backend: cdp
`)
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlConfig)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 5, cfg.Vision.Samples)
	assert.Equal(t, 2, cfg.Vision.MaxConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Vision.Stagger)
	assert.Equal(t, "gpt-4o", cfg.Vision.Point.Model)
	assert.Equal(t, ProviderGemini, cfg.Vision.Reasoning.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.Vision.Reasoning.Model)
	assert.Equal(t, "g-key", cfg.Vision.Reasoning.APIKey)
	assert.Equal(t, InputCDP, cfg.Input.Backend)
}

func TestNewConfigFromViper_LegacyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-legacy")
	t.Setenv("OPENAI_SAMPLES_PER_CALL", "7")
	t.Setenv("OPENAI_TIMEOUT_SECS", "12")
	t.Setenv("OPENAI_STAGGER_MS", "300")
	t.Setenv("OPENAI_OVERLAY_GRID", "0")
	t.Setenv("CLICK_X_OFFSET_PX", "-4")
	t.Setenv("RUN_DIR", "/tmp/clickpilot-runs")
	t.Setenv("USER_PORTAL_A", "https://portal.example/clients/")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "sk-legacy", cfg.Vision.Point.APIKey)
	assert.Equal(t, "sk-legacy", cfg.Vision.Reasoning.APIKey, "reasoning tier should inherit the key")
	assert.Equal(t, 7, cfg.Vision.Samples)
	assert.Equal(t, 12*time.Second, cfg.Vision.Point.Timeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Vision.Stagger)
	assert.False(t, cfg.Vision.Overlay.Enabled)
	assert.Equal(t, -4, cfg.Geometry.OffsetX)
	assert.Equal(t, "/tmp/clickpilot-runs", cfg.Run.Dir)
	assert.Equal(t, "https://portal.example/clients/", cfg.Records.PortalPrefix)
}

func TestNewConfigFromViper_PrefixedEnvWins(t *testing.T) {
	t.Setenv("OPENAI_MODEL", "legacy-model")
	t.Setenv("CLICKPILOT_VISION_POINT_MODEL", "prefixed-model")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "prefixed-model", cfg.Vision.Point.Model)
}

func TestNewConfigFromViper_Invalid(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("vision.samples", 0)

	_, err := NewConfigFromViper(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestModelConfigConfigured(t *testing.T) {
	assert.False(t, ModelConfig{Model: "m"}.Configured())
	assert.False(t, ModelConfig{APIKey: "k"}.Configured())
	assert.True(t, ModelConfig{APIKey: "k", Model: "m"}.Configured())
}
