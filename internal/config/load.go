package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config
// file in the working directory. Environment variables take precedence
// over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return load("")
}

// LoadFromFile loads configuration from a specific config file path,
// with the same environment variable overrides as Load. Used by tests to
// avoid depending on the working directory.
func LoadFromFile(configPath string) (*Config, error) {
	return load(configPath)
}

func load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.mode", "memory")
	v.SetDefault("search.committer", "async")
	v.SetDefault("search.commit_delay", time.Second)
	v.SetDefault("tasks.pool_size", 8)
	v.SetDefault("watcher.enabled", false)
	v.SetDefault("watcher.debounce", 5*time.Second)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, environment variables can carry
		// the whole configuration. A config file that exists but cannot be
		// parsed is not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Configure environment variables
	v.SetEnvPrefix("MANGROVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind critical environment variables
	bindEnvs := []struct {
		key    string
		envVar string
	}{
		{"server.port", "MANGROVE_SERVER_PORT"},
		{"server.log_level", "MANGROVE_SERVER_LOG_LEVEL"},
		{"database.url", "MANGROVE_DATABASE_URL"},
		{"storage.mode", "MANGROVE_STORAGE_MODE"},
		{"search.index_dir", "MANGROVE_SEARCH_INDEX_DIR"},
		{"search.committer", "MANGROVE_SEARCH_COMMITTER"},
		{"search.commit_delay", "MANGROVE_SEARCH_COMMIT_DELAY"},
		{"tasks.pool_size", "MANGROVE_TASKS_POOL_SIZE"},
		{"watcher.enabled", "MANGROVE_WATCHER_ENABLED"},
		{"watcher.debounce", "MANGROVE_WATCHER_DEBOUNCE"},
	}
	for _, env := range bindEnvs {
		if err := v.BindEnv(env.key, env.envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", env.envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	// Cross-field constraint validator tags cannot express: postgres
	// storage needs a database URL.
	if cfg.Storage.Mode == "postgres" && cfg.Database.URL == "" {
		return nil, fmt.Errorf("configuration validation failed: storage mode postgres requires database.url")
	}

	return &cfg, nil
}
