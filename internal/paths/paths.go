// Package paths resolves the configuration directory and project file locations.
package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// appName names the per-user configuration directory.
const appName = "clickpoints"

// EnvConfigDir overrides the configuration directory.
const EnvConfigDir = "CLICKPOINTS_CONFIG_DIR"

// ConfigFileName is the configuration file inside the configuration directory.
const ConfigFileName = "config.yaml"

// ErrNoDatabase is returned when neither an argument nor the configuration names a project file.
var ErrNoDatabase = errors.New("no project file given and no database configured")

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/clickpoints (fallback ~/.config/clickpoints)
// macOS:   ~/Library/Application Support/clickpoints
// Windows: %APPDATA%/clickpoints
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appName), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > CLICKPOINTS_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDatabase returns the project file to work on: an explicit argument
// wins over the configured database. Relative configured paths are taken
// relative to configDir.
func ResolveDatabase(arg, configured, configDir string) (string, error) {
	if arg != "" {
		return filepath.Abs(arg)
	}
	if configured == "" {
		return "", ErrNoDatabase
	}
	if !filepath.IsAbs(configured) && configDir != "" {
		return filepath.Join(configDir, configured), nil
	}
	return filepath.Abs(configured)
}
