package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds CLI defaults loaded from svgpress.toml. Command flags
// override config values; config values override built-in defaults.
type Config struct {
	PageGap       float64 `toml:"page_gap"`
	InlineMaxRefs int     `toml:"inline_max_refs"`
	InlineMaxSize int     `toml:"inline_max_size"`
	Workers       int     `toml:"workers"`
	PrettyIDs     bool    `toml:"pretty_ids"`

	Cache CacheConfig `toml:"cache"`
	Store StoreConfig `toml:"store"`
	Watch WatchConfig `toml:"watch"`
}

// CacheConfig selects the byte-cache backend.
type CacheConfig struct {
	// Backend is "file" (default), "redis", "memory" or "none".
	Backend string `toml:"backend"`

	// Dir overrides the file cache directory.
	Dir string `toml:"dir"`

	Redis RedisConfig `toml:"redis"`
}

// RedisConfig configures the redis cache backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	// Backend is "file" (default) or "mongo".
	Backend string `toml:"backend"`

	// Dir overrides the file store directory.
	Dir string `toml:"dir"`

	Mongo MongoConfig `toml:"mongo"`
}

// MongoConfig configures the mongo snapshot store.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// WatchConfig tunes watch mode.
type WatchConfig struct {
	// Addr is the preview server listen address.
	Addr string `toml:"addr"`

	// DebounceMillis collapses bursts of file events into one pass.
	DebounceMillis int `toml:"debounce_ms"`
}

// defaultConfig returns the built-in defaults.
func defaultConfig() *Config {
	return &Config{
		Watch: WatchConfig{
			Addr:           "localhost:7038",
			DebounceMillis: 300,
		},
	}
}

// LoadConfig reads svgpress.toml. An empty path searches the working
// directory, then ~/.config/svgpress/. A missing or unreadable file yields
// the defaults; a present config only needs to set what it changes.
func LoadConfig(path string) *Config {
	cfg := defaultConfig()
	for _, p := range configPaths(path) {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if _, err := toml.DecodeFile(p, cfg); err != nil {
			// A broken config should not take the CLI down; flags and
			// defaults still work.
			continue
		}
		break
	}
	return cfg
}

func configPaths(path string) []string {
	if path != "" {
		return []string{path}
	}
	paths := []string{appName + ".toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", appName, appName+".toml"))
	}
	return paths
}
