package storage

import (
	"errors"
	"os"
	"path/filepath"
)

// Config contains database configuration.
type Config struct {
	// Path is the path to the SQLite database file.
	// Default: $XDG_CONFIG_HOME/nextmuni/cache.db
	Path string
}

// DefaultPath is where the cache lives when no path is configured.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, _ := os.UserHomeDir()
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "nextmuni", "cache.db")
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Path == "" {
		c.Path = DefaultPath()
	}
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("sqlite path is required")
	}
	return nil
}

// dsn enables WAL so readers do not block the single writer, and waits
// on a locked database instead of failing immediately.
func (c *Config) dsn() string {
	return c.Path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
}
