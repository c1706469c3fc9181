// Package config resolves storage locations and user settings for mdreview.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "mdreview"

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds user settings. Values come from defaults, then the YAML config
// file, then MDREVIEW_* environment variables (a .env file in the working
// directory is loaded first).
type Config struct {
	Backend    string `yaml:"backend"`
	SidecarDir string `yaml:"sidecarDir"`
	RedisURL   string `yaml:"redisURL"`
	Author     string `yaml:"author"`
	LogLevel   string `yaml:"logLevel"`
	Origin     string `yaml:"origin"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Backend:    BackendFile,
		SidecarDir: ".mdreview",
		RedisURL:   "redis://localhost:6379/0",
		LogLevel:   "warn",
		Origin:     "mdreview-cli",
	}
}

// Load reads the config file (if any) and applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	path := GetConfigPath()
	//nolint:gosec // G304: path comes from XDG or an explicit override
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	overrideFromEnv(&cfg.Backend, "MDREVIEW_BACKEND")
	overrideFromEnv(&cfg.SidecarDir, "MDREVIEW_SIDECAR_DIR")
	overrideFromEnv(&cfg.RedisURL, "MDREVIEW_REDIS_URL")
	overrideFromEnv(&cfg.Author, "MDREVIEW_AUTHOR")
	overrideFromEnv(&cfg.LogLevel, "MDREVIEW_LOG_LEVEL")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("invalid backend: %s (valid values: file, sqlite, redis)", c.Backend)
	}
	if c.Backend == BackendFile && c.SidecarDir == "" {
		return errors.New("file backend requires a sidecar directory")
	}
	if c.Backend == BackendRedis && c.RedisURL == "" {
		return errors.New("redis backend requires a redis URL")
	}
	return nil
}

// ResolveSidecarDir makes a relative sidecar directory relative to root.
func (c Config) ResolveSidecarDir(root string) string {
	if filepath.IsAbs(c.SidecarDir) {
		return c.SidecarDir
	}
	return filepath.Join(root, c.SidecarDir)
}

// GetDataDir resolves the base directory for mdreview's own data. It checks
// MDREVIEW_DIR first, then XDG paths, and finally the user's home directory.
func GetDataDir() string {
	if explicit := os.Getenv("MDREVIEW_DIR"); explicit != "" {
		return explicit
	}

	xdg.Reload()

	dataHome := xdg.DataHome
	if dataHome == "" {
		home := xdg.Home
		if home == "" {
			var err error
			home, err = os.UserHomeDir()
			if err != nil {
				return filepath.Join(os.TempDir(), appName)
			}
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	return filepath.Join(dataHome, appName)
}

// GetDBPath returns the absolute path to the SQLite database file.
func GetDBPath() string {
	return filepath.Join(GetDataDir(), "index.db")
}

// GetConfigPath returns the YAML config file location. MDREVIEW_CONFIG
// overrides the XDG default.
func GetConfigPath() string {
	if explicit := os.Getenv("MDREVIEW_CONFIG"); explicit != "" {
		return explicit
	}
	xdg.Reload()
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func overrideFromEnv(target *string, key string) {
	if value := os.Getenv(key); value != "" {
		*target = value
	}
}
