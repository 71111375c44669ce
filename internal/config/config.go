// Package config loads application configuration from config files,
// environment variables, and .env files.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/spoolsync/pkg/errors"
)

// Defaults applied when no source provides a value.
const (
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 500 * time.Millisecond
	DefaultMaxParallel = 4
)

// Config holds the application configuration loaded from all sources.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool

	// Config file
	ConfigFile string

	// Local catalog
	FilamentDir string
	RulesFile   string
	Debounce    time.Duration

	// Inventory server
	SpoolmanURL    string
	SpoolmanAPIKey string
	AuthHeader     string // custom header name; empty means Bearer

	// Pass behavior
	DryRun      bool
	PruneRemote bool
	MaxRetries  int
	BackoffBase time.Duration
	MaxParallel int
	Timeout     time.Duration

	// Logging
	LogLevel  string
	LogFormat string
	LogOutput string
}

// Load reads configuration from all sources in order of precedence:
// command-line flags (applied by cobra afterwards), environment variables,
// .env files, the config file (~/.spoolsync.yaml), then defaults.
func Load() (*Config, error) {
	loadEnvFiles()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SPOOLSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	configFile := viper.GetString("config")
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.AddConfigPath(".")
			viper.SetConfigType("yaml")
			viper.SetConfigName(".spoolsync")
		}
	}
	_ = viper.ReadInConfig()

	cfg := &Config{
		Verbose: viper.GetBool("verbose"),
		Quiet:   viper.GetBool("quiet"),
		NoColor: viper.GetBool("no-color"),

		ConfigFile: viper.ConfigFileUsed(),

		FilamentDir: viper.GetString("filament_dir"),
		RulesFile:   viper.GetString("rules_file"),
		Debounce:    viper.GetDuration("debounce"),

		SpoolmanURL:    viper.GetString("spoolman_url"),
		SpoolmanAPIKey: viper.GetString("spoolman_api_key"),
		AuthHeader:     viper.GetString("auth_header"),

		DryRun:      viper.GetBool("dry_run"),
		PruneRemote: viper.GetBool("prune_remote"),
		MaxRetries:  viper.GetInt("max_retries"),
		BackoffBase: viper.GetDuration("backoff_base"),
		MaxParallel: viper.GetInt("max_parallel"),
		Timeout:     viper.GetDuration("timeout"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.MaxParallel == 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	return cfg, nil
}

// Validate checks that the configuration can run a sync pass.
func (c *Config) Validate() error {
	if c.FilamentDir == "" {
		return &errors.ValidationError{Field: "filament_dir", Message: "filament directory is required"}
	}
	if c.SpoolmanURL == "" {
		return &errors.ValidationError{Field: "spoolman_url", Message: "inventory server URL is required"}
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files. .env.local
// overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

// getEnvOrDefault returns the environment variable value or the default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
