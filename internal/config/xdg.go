// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "steno"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultDictionaryDir returns the directory holding user dictionaries.
func DefaultDictionaryDir() string {
	return filepath.Join(XDGConfigHome(), appName, "dictionaries")
}

// DefaultUserDictionaryPath returns the writable dictionary used when the
// config lists none.
func DefaultUserDictionaryPath() string {
	return filepath.Join(DefaultDictionaryDir(), "user.json")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "steno.db")
}
