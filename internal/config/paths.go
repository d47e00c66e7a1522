// Package config resolves and merges turn-engine configuration: global,
// project, and local JSONC files layered under XDG-style base directories.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the standard XDG-style base directories for turn-engine data.
type Paths struct {
	Data   string // ~/.local/share/turnengine
	Config string // ~/.config/turnengine
	Cache  string // ~/.cache/turnengine
	State  string // ~/.local/state/turnengine
}

// GetPaths resolves the standard paths, honoring XDG_*_HOME overrides.
func GetPaths() *Paths {
	return &Paths{
		Data:   filepath.Join(getEnvOrDefault("XDG_DATA_HOME", defaultDataHome()), "turnengine"),
		Config: filepath.Join(getEnvOrDefault("XDG_CONFIG_HOME", defaultConfigHome()), "turnengine"),
		Cache:  filepath.Join(getEnvOrDefault("XDG_CACHE_HOME", defaultCacheHome()), "turnengine"),
		State:  filepath.Join(getEnvOrDefault("XDG_STATE_HOME", defaultStateHome()), "turnengine"),
	}
}

// EnsurePaths creates all required directories.
func (p *Paths) EnsurePaths() error {
	for _, dir := range []string{p.Data, p.Config, p.Cache, p.State, p.LogsPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// SessionsPath returns the default sessions directory under the data
// directory. It does not consult any environment variable of its own.
func (p *Paths) SessionsPath() string {
	return filepath.Join(p.Data, "sessions")
}

// LogsPath returns the default directory for timestamped log files, under
// the XDG state directory rather than a hardcoded /tmp.
func (p *Paths) LogsPath() string {
	return filepath.Join(p.State, "logs")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func defaultDataHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "share")
}

func defaultConfigHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".config")
}

func defaultCacheHome() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "cache")
	}
	return filepath.Join(os.Getenv("HOME"), ".cache")
}

func defaultStateHome() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("APPDATA")
	}
	return filepath.Join(os.Getenv("HOME"), ".local", "state")
}

// GlobalConfigPath returns the path to the user-level config file.
func GlobalConfigPath() string {
	return filepath.Join(GetPaths().Config, "turnengine.jsonc")
}

// ProjectConfigPath returns the path to a project-level config file.
func ProjectConfigPath(directory string) string {
	return filepath.Join(directory, ".turnengine", "turnengine.jsonc")
}

// LocalConfigPath returns the path to a directory-local override file,
// the highest-priority layer in the merge order.
func LocalConfigPath(directory string) string {
	return filepath.Join(directory, ".turnengine", "local.jsonc")
}
