// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider names understood by the llmclient factory.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Input backends.
const (
	InputXdotool = "xdotool"
	InputCDP     = "cdp"
)

// Config is the root configuration for a clickpilot run.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Vision   VisionConfig   `mapstructure:"vision" yaml:"vision"`
	Geometry GeometryConfig `mapstructure:"geometry" yaml:"geometry"`
	Run      RunConfig      `mapstructure:"run" yaml:"run"`
	Workflow WorkflowConfig `mapstructure:"workflow" yaml:"workflow"`
	DOM      DOMConfig      `mapstructure:"dom" yaml:"dom"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Records  RecordsConfig  `mapstructure:"records" yaml:"records"`
	Secrets  SecretsConfig  `mapstructure:"secrets" yaml:"secrets"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ModelConfig describes one vision/chat model endpoint.
type ModelConfig struct {
	Provider   string        `mapstructure:"provider" yaml:"provider"`
	APIKey     string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Model      string        `mapstructure:"model" yaml:"model"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	// TimeoutSecs mirrors the integer-seconds form of OPENAI_TIMEOUT_SECS.
	TimeoutSecs int `mapstructure:"timeout_secs" yaml:"timeout_secs"`
}

// Configured reports whether enough is set to build a client.
func (m ModelConfig) Configured() bool {
	return m.APIKey != "" && m.Model != ""
}

// GovernorConfig tunes the shared rate-limit cool-down.
type GovernorConfig struct {
	Threshold int           `mapstructure:"threshold" yaml:"threshold"`
	Pause     time.Duration `mapstructure:"pause" yaml:"pause"`
}

// OverlayConfig controls the coordinate grid drawn on screenshots.
type OverlayConfig struct {
	Enabled    bool `mapstructure:"enabled" yaml:"enabled"`
	Step       int  `mapstructure:"step" yaml:"step"`
	LabelEvery int  `mapstructure:"label_every" yaml:"label_every"`
	FontScale  int  `mapstructure:"font_scale" yaml:"font_scale"`
	SaveDebug  bool `mapstructure:"save_debug" yaml:"save_debug"`
}

// VisionConfig configures point resolution and the model tiers.
type VisionConfig struct {
	Point             ModelConfig    `mapstructure:"point" yaml:"point"`
	Reasoning         ModelConfig    `mapstructure:"reasoning" yaml:"reasoning"`
	Samples           int            `mapstructure:"samples" yaml:"samples"`
	MaxConcurrency    int            `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	Stagger           time.Duration  `mapstructure:"stagger" yaml:"stagger"`
	StaggerMs         int            `mapstructure:"stagger_ms" yaml:"stagger_ms"`
	OffsetX           int            `mapstructure:"offset_x" yaml:"offset_x"`
	OffsetY           int            `mapstructure:"offset_y" yaml:"offset_y"`
	RequestsPerSecond float64        `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Governor          GovernorConfig `mapstructure:"governor" yaml:"governor"`
	Overlay           OverlayConfig  `mapstructure:"overlay" yaml:"overlay"`
}

// GeometryConfig holds the systematic click calibration nudges.
type GeometryConfig struct {
	OffsetX int `mapstructure:"offset_x" yaml:"offset_x"`
	OffsetY int `mapstructure:"offset_y" yaml:"offset_y"`
}

// RunConfig locates per-run artifacts.
type RunConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// WorkflowConfig tunes step execution.
type WorkflowConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	TypeDelay   time.Duration `mapstructure:"type_delay" yaml:"type_delay"`
}

// DOMConfig tunes candidate collection and fallback scoring.
type DOMConfig struct {
	MaxCandidates int `mapstructure:"max_candidates" yaml:"max_candidates"`
	ViewportW     int `mapstructure:"viewport_w" yaml:"viewport_w"`
	ViewportH     int `mapstructure:"viewport_h" yaml:"viewport_h"`
}

// BrowserConfig configures the chromedp allocator.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	WindowW         int    `mapstructure:"window_w" yaml:"window_w"`
	WindowH         int    `mapstructure:"window_h" yaml:"window_h"`
	UserDataDir     string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	RemoteURL       string `mapstructure:"remote_url" yaml:"remote_url"`
	LoginURL        string `mapstructure:"login_url" yaml:"login_url"`
	SaveScreenshots bool   `mapstructure:"save_screenshots" yaml:"save_screenshots"`
	// Args are extra Chrome flags, "flag" or "flag=value".
	Args []string `mapstructure:"args" yaml:"args"`
}

// InputConfig selects and tunes the input injector.
type InputConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	Display  string         `mapstructure:"display" yaml:"display"`
	Humanoid HumanoidConfig `mapstructure:"humanoid" yaml:"humanoid"`
}

// RecordsConfig locates the client spreadsheet and portal URLs.
type RecordsConfig struct {
	SheetsID        string `mapstructure:"sheets_id" yaml:"sheets_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	SheetName       string `mapstructure:"sheet_name" yaml:"sheet_name"`
	PortalPrefix    string `mapstructure:"portal_prefix" yaml:"portal_prefix"`
	PortalSuffix    string `mapstructure:"portal_suffix" yaml:"portal_suffix"`
	DocsSuffix      string `mapstructure:"docs_suffix" yaml:"docs_suffix"`
	PipelineSuffix  string `mapstructure:"pipeline_suffix" yaml:"pipeline_suffix"`
}

// SecretsConfig locates the credential vault export.
type SecretsConfig struct {
	File     string `mapstructure:"file" yaml:"file"`
	RecordID string `mapstructure:"record_id" yaml:"record_id"`
}

// MetricsConfig controls the prometheus listener.
type MetricsConfig struct {
	Listen    string `mapstructure:"listen" yaml:"listen"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

// legacyEnv maps config keys onto the un-prefixed environment variables
// operators already export for the original tool.
var legacyEnv = map[string]string{
	"vision.point.api_key":      "OPENAI_API_KEY",
	"vision.point.base_url":     "OPENAI_BASE_URL",
	"vision.point.model":        "OPENAI_MODEL",
	"vision.point.timeout_secs": "OPENAI_TIMEOUT_SECS",
	"vision.point.max_retries":  "OPENAI_MAX_RETRIES",
	"vision.samples":            "OPENAI_SAMPLES_PER_CALL",
	"vision.max_concurrency":    "OPENAI_MAX_CONCURRENCY",
	"vision.stagger_ms":         "OPENAI_STAGGER_MS",
	"vision.offset_x":           "OPENAI_X_OFFSET_PX",
	"vision.offset_y":           "OPENAI_Y_OFFSET_PX",
	"vision.overlay.enabled":    "OPENAI_OVERLAY_GRID",
	"vision.overlay.step":       "GRID_STEP",
	"vision.overlay.label_every": "GRID_LABEL_EVERY",
	"vision.overlay.font_scale": "GRID_FONT_SCALE",
	"vision.overlay.save_debug": "GRID_SAVE_DEBUG",
	"geometry.offset_x":         "CLICK_X_OFFSET_PX",
	"geometry.offset_y":         "CLICK_Y_OFFSET_PX",
	"run.dir":                   "RUN_DIR",
	"browser.login_url":         "LOGIN_URL",
	"input.display":             "DISPLAY",
	"records.sheets_id":         "SHEETS_ID",
	"records.credentials_file":  "GOOGLE_SERVICE_ACCOUNT_JSON",
	"records.sheet_name":        "SHEETS_SHEET_NAME",
	"records.portal_prefix":     "USER_PORTAL_A",
	"records.portal_suffix":     "USER_PORTAL_B",
	"records.docs_suffix":       "DOCS_PORTAL",
	"records.pipeline_suffix":   "PIPELINE_PORTAL",
	"secrets.record_id":         "KEEPER_UID",
}

// NewDefaultConfig creates a configuration populated only with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.applyLegacyUnits()
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "clickpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Vision --
	v.SetDefault("vision.point.provider", ProviderOpenAI)
	v.SetDefault("vision.point.base_url", "https://api.openai.com/v1")
	v.SetDefault("vision.point.model", "gpt-4o-mini")
	v.SetDefault("vision.point.timeout", "60s")
	v.SetDefault("vision.point.max_retries", 3)
	v.SetDefault("vision.point.api_key", "")
	v.SetDefault("vision.point.timeout_secs", 0)
	v.SetDefault("vision.reasoning.provider", "")
	v.SetDefault("vision.reasoning.model", "")
	v.SetDefault("vision.reasoning.api_key", "")
	v.SetDefault("vision.reasoning.base_url", "")
	v.SetDefault("vision.reasoning.timeout", "60s")
	v.SetDefault("vision.reasoning.max_retries", 3)
	v.SetDefault("vision.samples", 1)
	v.SetDefault("vision.max_concurrency", 4)
	v.SetDefault("vision.stagger", "120ms")
	v.SetDefault("vision.stagger_ms", 0)
	v.SetDefault("vision.offset_x", 0)
	v.SetDefault("vision.offset_y", 0)
	v.SetDefault("vision.requests_per_second", 0.0)
	v.SetDefault("vision.governor.threshold", 3)
	v.SetDefault("vision.governor.pause", "5m")
	v.SetDefault("vision.overlay.enabled", true)
	v.SetDefault("vision.overlay.step", 50)
	v.SetDefault("vision.overlay.label_every", 2)
	v.SetDefault("vision.overlay.font_scale", 2)
	v.SetDefault("vision.overlay.save_debug", false)

	// -- Geometry --
	v.SetDefault("geometry.offset_x", 0)
	v.SetDefault("geometry.offset_y", 0)

	// -- Run / Workflow / DOM --
	v.SetDefault("run.dir", "runs")
	v.SetDefault("workflow.settle_delay", "1500ms")
	v.SetDefault("workflow.type_delay", "35ms")
	v.SetDefault("dom.max_candidates", 60)
	v.SetDefault("dom.viewport_w", 1280)
	v.SetDefault("dom.viewport_h", 800)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_w", 1280)
	v.SetDefault("browser.window_h", 900)
	v.SetDefault("browser.user_data_dir", "")
	v.SetDefault("browser.remote_url", "")
	v.SetDefault("browser.login_url", "")
	v.SetDefault("browser.save_screenshots", true)
	v.SetDefault("browser.args", []string{})

	// -- Input --
	v.SetDefault("input.backend", InputXdotool)
	v.SetDefault("input.display", ":0")
	setHumanoidDefaults(v)

	// -- Records / Secrets --
	v.SetDefault("records.sheets_id", "")
	v.SetDefault("records.credentials_file", "")
	v.SetDefault("records.sheet_name", "Sheet1")
	v.SetDefault("records.portal_prefix", "")
	v.SetDefault("records.portal_suffix", "")
	v.SetDefault("records.docs_suffix", "")
	v.SetDefault("records.pipeline_suffix", "")
	v.SetDefault("secrets.file", "")
	v.SetDefault("secrets.record_id", "")

	// -- Metrics --
	v.SetDefault("metrics.listen", "")
	v.SetDefault("metrics.namespace", "clickpilot")
}

// BindLegacyEnv binds the un-prefixed environment variables of the original
// tool so existing .env files keep working.
func BindLegacyEnv(v *viper.Viper) error {
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll("CLICKPILOT."+key, ".", "_")), env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// NewConfigFromViper unmarshals and validates a Config from a populated viper instance.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := BindLegacyEnv(v); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.applyLegacyUnits()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyLegacyUnits folds the integer-unit legacy keys into their duration
// counterparts and fills the reasoning tier from the point tier.
func (c *Config) applyLegacyUnits() {
	if c.Vision.Point.TimeoutSecs > 0 {
		c.Vision.Point.Timeout = time.Duration(c.Vision.Point.TimeoutSecs) * time.Second
	}
	if c.Vision.StaggerMs > 0 {
		c.Vision.Stagger = time.Duration(c.Vision.StaggerMs) * time.Millisecond
	}

	r := &c.Vision.Reasoning
	if r.Provider == "" {
		r.Provider = c.Vision.Point.Provider
	}
	if r.Model == "" {
		r.Model = c.Vision.Point.Model
	}
	if r.APIKey == "" {
		r.APIKey = c.Vision.Point.APIKey
	}
	if r.BaseURL == "" && r.Provider == c.Vision.Point.Provider {
		r.BaseURL = c.Vision.Point.BaseURL
	}
	if r.Timeout <= 0 {
		r.Timeout = c.Vision.Point.Timeout
	}
	if r.MaxRetries <= 0 {
		r.MaxRetries = c.Vision.Point.MaxRetries
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Vision.Samples < 1 {
		return fmt.Errorf("vision.samples must be at least 1")
	}
	if c.Vision.MaxConcurrency < 1 {
		return fmt.Errorf("vision.max_concurrency must be at least 1")
	}
	if c.Vision.Stagger < 0 {
		return fmt.Errorf("vision.stagger must not be negative")
	}
	if c.Vision.RequestsPerSecond < 0 {
		return fmt.Errorf("vision.requests_per_second must not be negative")
	}
	if err := c.Vision.Point.validate("vision.point"); err != nil {
		return err
	}
	if err := c.Vision.Reasoning.validate("vision.reasoning"); err != nil {
		return err
	}
	if c.Vision.Governor.Threshold < 1 {
		return fmt.Errorf("vision.governor.threshold must be at least 1")
	}
	if c.Vision.Governor.Pause < 0 {
		return fmt.Errorf("vision.governor.pause must not be negative")
	}
	if c.Vision.Overlay.Enabled && c.Vision.Overlay.Step < 4 {
		return fmt.Errorf("vision.overlay.step must be at least 4 when the overlay is enabled")
	}
	switch c.Input.Backend {
	case InputXdotool, InputCDP:
	default:
		return fmt.Errorf("input.backend must be one of [%s %s], got %q", InputXdotool, InputCDP, c.Input.Backend)
	}
	if c.DOM.MaxCandidates < 1 {
		return fmt.Errorf("dom.max_candidates must be at least 1")
	}
	return nil
}

func (m ModelConfig) validate(prefix string) error {
	switch m.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("%s.provider must be one of [%s %s], got %q", prefix, ProviderOpenAI, ProviderGemini, m.Provider)
	}
	if m.MaxRetries < 1 {
		return fmt.Errorf("%s.max_retries must be at least 1", prefix)
	}
	return nil
}
