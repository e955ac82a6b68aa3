package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all loader and management configuration.
type Config struct {
	Resolution  ResolutionConfig
	Loading     LoadingConfig
	Compilation CompilationConfig
	Features    FeatureConfig
	Logging     LogConfig
	Management  ManagementConfig
}

// ResolutionConfig controls how import specifiers map to files.
type ResolutionConfig struct {
	BaseURL    string   `envconfig:"SLOVO_BASE_URL" default:"."`
	Extensions []string `envconfig:"SLOVO_EXTENSIONS" default:".slv,.js"`
}

// LoadingConfig controls caching and cycle handling.
type LoadingConfig struct {
	Cache bool `envconfig:"SLOVO_CACHE" default:"true"`
	// CircularDependencyStrategy is "error" or "warn".
	CircularDependencyStrategy string `envconfig:"SLOVO_CIRCULAR_STRATEGY" default:"error"`
}

// CompilationConfig is passed through to the compiler collaborator.
type CompilationConfig struct {
	Target       string `envconfig:"SLOVO_TARGET" default:"es2020"`
	Strict       bool   `envconfig:"SLOVO_STRICT" default:"false"`
	VerifyOutput bool   `envconfig:"SLOVO_VERIFY_OUTPUT" default:"false"`
}

// FeatureConfig toggles optional subsystems.
type FeatureConfig struct {
	Metrics         bool `envconfig:"SLOVO_METRICS" default:"true"`
	CircuitBreakers bool `envconfig:"SLOVO_CIRCUIT_BREAKERS" default:"true"`
	Logger          bool `envconfig:"SLOVO_LOGGER" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"SLOVO_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"SLOVO_LOG_DEV" default:"false"`
}

// ManagementConfig holds the management HTTP listener configuration.
type ManagementConfig struct {
	Port int `envconfig:"SLOVO_MANAGEMENT_PORT" default:"8787"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			BaseURL:    ".",
			Extensions: []string{".slv", ".js"},
		},
		Loading: LoadingConfig{
			Cache:                      true,
			CircularDependencyStrategy: "error",
		},
		Compilation: CompilationConfig{
			Target: "es2020",
		},
		Features: FeatureConfig{
			Metrics:         true,
			CircuitBreakers: true,
			Logger:          true,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Management: ManagementConfig{
			Port: 8787,
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Loading.CircularDependencyStrategy {
	case "error", "warn":
	default:
		return fmt.Errorf("loading.circularDependencyStrategy must be %q or %q, got %q",
			"error", "warn", c.Loading.CircularDependencyStrategy)
	}
	if c.Management.Port < 0 || c.Management.Port > 65535 {
		return fmt.Errorf("managementPort out of range: %d", c.Management.Port)
	}
	for _, ext := range c.Resolution.Extensions {
		if len(ext) == 0 || ext[0] != '.' {
			return fmt.Errorf("resolution.extensions entries must start with a dot, got %q", ext)
		}
	}
	return nil
}
