package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Search   SearchConfig   `mapstructure:"search" validate:"required"`
	Tasks    TasksConfig    `mapstructure:"tasks" validate:"required"`
	Watcher  WatcherConfig  `mapstructure:"watcher"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
// URL is only required when the storage mode is postgres.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// StorageConfig selects where queue and library state live.
type StorageConfig struct {
	// Mode is postgres for durable storage or memory for ephemeral
	// single-process use (development, tests).
	Mode string `mapstructure:"mode" validate:"required,oneof=postgres memory"`
}

// SearchConfig contains the search index settings.
type SearchConfig struct {
	// IndexDir is where the index lives on disk. Empty means an
	// in-memory index.
	IndexDir string `mapstructure:"index_dir"`
	// Committer selects how index writes become visible: sync commits
	// each write immediately, async batches writes behind a short delay.
	Committer string `mapstructure:"committer" validate:"required,oneof=sync async"`
	// CommitDelay is the async committer's debounce window.
	CommitDelay time.Duration `mapstructure:"commit_delay" validate:"min=0"`
}

// TasksConfig contains the background task engine settings.
type TasksConfig struct {
	// PoolSize caps how many tasks execute concurrently.
	PoolSize int `mapstructure:"pool_size" validate:"required,gt=0,lte=64"`
}

// WatcherConfig contains the filesystem watcher settings.
type WatcherConfig struct {
	// Enabled turns library root watching on.
	Enabled bool `mapstructure:"enabled"`
	// Debounce is how long to wait after the last filesystem event
	// before scheduling a scan.
	Debounce time.Duration `mapstructure:"debounce" validate:"min=0"`
}
