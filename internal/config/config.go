package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Generator GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline"`
	History   HistoryConfig   `mapstructure:"history" yaml:"history"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// LLMProvider defines the supported generation providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// ModelConfig defines the configuration for a single model endpoint.
type ModelConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// GeneratorConfig configures the generation collaborator and its routing.
type GeneratorConfig struct {
	FastModel     string                 `mapstructure:"fast_model" yaml:"fast_model"`
	PowerfulModel string                 `mapstructure:"powerful_model" yaml:"powerful_model"`
	Models        map[string]ModelConfig `mapstructure:"models" yaml:"models"`
}

// PipelineConfig tunes the transformation pipeline. The minimum-length ratio
// and the stub-signature catalogue are heuristics inherited from observed
// failures; they are configuration, not constants, and will need empirical
// tuning per source population.
type PipelineConfig struct {
	MaxAttempts         int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	MinLengthRatio      float64       `mapstructure:"min_length_ratio" yaml:"min_length_ratio"`
	ConfidenceThreshold float64       `mapstructure:"confidence_threshold" yaml:"confidence_threshold"`
	GenerationTimeout   time.Duration `mapstructure:"generation_timeout" yaml:"generation_timeout"`
	DetectionAliases    []string      `mapstructure:"detection_aliases" yaml:"detection_aliases"`
	HelperNames         []string      `mapstructure:"helper_names" yaml:"helper_names"`
	ConfigAnchors       []string      `mapstructure:"config_anchors" yaml:"config_anchors"`
	StubComments        []string      `mapstructure:"stub_comments" yaml:"stub_comments"`
	LegacyEntryPoints   []string      `mapstructure:"legacy_entry_points" yaml:"legacy_entry_points"`
	ProfileCacheSize    int           `mapstructure:"profile_cache_size" yaml:"profile_cache_size"`
}

// HistoryConfig holds the connection details for the transform history log.
// An empty URL disables persistence entirely.
type HistoryConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ServerConfig configures the HTTP surface consumed by the dashboard.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" yaml:"listen"`
	MaxConcurrent   int64         `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxSourceBytes  int64         `mapstructure:"max_source_bytes" yaml:"max_source_bytes"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "scanforge")
	v.SetDefault("logger.log_file", "scanforge.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Generator --
	v.SetDefault("generator.fast_model", "gemini_flash")
	v.SetDefault("generator.powerful_model", "gemini_pro")
	v.SetDefault("generator.models.gemini_flash.provider", "gemini")
	v.SetDefault("generator.models.gemini_flash.model", "gemini-2.5-flash")
	v.SetDefault("generator.models.gemini_flash.api_timeout", "60s")
	v.SetDefault("generator.models.gemini_flash.temperature", 0.1)
	v.SetDefault("generator.models.gemini_flash.max_tokens", 16384)
	v.SetDefault("generator.models.gemini_flash.requests_per_minute", 60)
	v.SetDefault("generator.models.gemini_pro.provider", "gemini")
	v.SetDefault("generator.models.gemini_pro.model", "gemini-2.5-pro")
	v.SetDefault("generator.models.gemini_pro.api_timeout", "120s")
	v.SetDefault("generator.models.gemini_pro.temperature", 0.1)
	v.SetDefault("generator.models.gemini_pro.max_tokens", 32768)
	v.SetDefault("generator.models.gemini_pro.requests_per_minute", 30)

	// -- Pipeline --
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.min_length_ratio", 0.9)
	v.SetDefault("pipeline.confidence_threshold", 0.35)
	v.SetDefault("pipeline.generation_timeout", "45s")
	v.SetDefault("pipeline.detection_aliases", []string{"detect_setups", "run_detection", "scan_symbol"})
	v.SetDefault("pipeline.helper_names", []string{
		"compute_adv", "normalize_volume", "rolling_high",
		"liquidity_filter", "gap_percent", "session_vwap",
	})
	v.SetDefault("pipeline.config_anchors", []string{"PARAMS", "CONFIG", "SETTINGS"})
	v.SetDefault("pipeline.stub_comments", []string{"todo", "fixme", "implement later", "placeholder", "fill in"})
	v.SetDefault("pipeline.legacy_entry_points", []string{"main_loop", "run_legacy", "quick_scan", "scan_all_inline"})
	v.SetDefault("pipeline.profile_cache_size", 256)

	// -- History --
	v.SetDefault("history.url", "")

	// -- Server --
	v.SetDefault("server.listen", ":8470")
	v.SetDefault("server.max_concurrent", 8)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_source_bytes", 1<<20)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data. Both model entries share
	// one provider key.
	_ = v.BindEnv("generator.models.gemini_flash.api_key", "SCANFORGE_GEMINI_API_KEY")
	_ = v.BindEnv("generator.models.gemini_pro.api_key", "SCANFORGE_GEMINI_API_KEY")
	_ = v.BindEnv("history.url", "SCANFORGE_HISTORY_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline configuration invalid: %w", err)
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("server.max_concurrent must be a positive integer")
	}
	if c.Server.MaxSourceBytes <= 0 {
		return fmt.Errorf("server.max_source_bytes must be a positive integer")
	}
	return nil
}

// Validate checks the PipelineConfig settings.
func (p *PipelineConfig) Validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be greater than 0")
	}
	if p.MinLengthRatio <= 0.0 || p.MinLengthRatio > 1.0 {
		return fmt.Errorf("min_length_ratio must be in (0.0, 1.0]")
	}
	if p.ConfidenceThreshold < 0.0 || p.ConfidenceThreshold > 1.0 {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0")
	}
	if p.GenerationTimeout <= 0 {
		return fmt.Errorf("generation_timeout must be a positive duration")
	}
	if len(p.DetectionAliases) == 0 {
		return fmt.Errorf("detection_aliases must not be empty")
	}
	return nil
}
