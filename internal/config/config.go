package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755
)

var (
	// ConfigDir is the global configuration directory (~/.loadtest)
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string

	// ConfigFile is the optional global settings file
	ConfigFile string
)

// Initialize sets up the configuration directory.
// It creates ~/.loadtest/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	ConfigDir = filepath.Join(homeDir, ".loadtest")
	DatabasePath = filepath.Join(ConfigDir, "loadtest.db")
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	return nil
}

// DefaultConfigFile returns the global settings file when it exists, or ""
func DefaultConfigFile() string {
	if ConfigFile == "" {
		return ""
	}
	if _, err := os.Stat(ConfigFile); err != nil {
		return ""
	}
	return ConfigFile
}
