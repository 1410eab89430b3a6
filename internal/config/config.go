// Package config loads the host-level settings that seed a gildash.Config
// (projectRoot, file extensions, ignore patterns, watch mode, ...) from a
// project config file with environment variable overrides.
package config

// Config represents the complete gildash configuration. It can be loaded
// from .gildash/config.yml with environment variable overrides.
type Config struct {
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
	Watch   WatchConfig   `yaml:"watch" mapstructure:"watch"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
}

// IndexConfig controls which files are indexed.
type IndexConfig struct {
	Extensions         []string `yaml:"extensions" mapstructure:"extensions"`                   // e.g. [".ts", ".mts", ".cts"]
	IgnorePatterns     []string `yaml:"ignore_patterns" mapstructure:"ignore_patterns"`         // glob patterns, e.g. "**/node_modules/**"
	ParseCacheCapacity int      `yaml:"parse_cache_capacity" mapstructure:"parse_cache_capacity"` // parsed-AST cache entry capacity
	Semantic           bool     `yaml:"semantic" mapstructure:"semantic"`                       // enable the semantic type-resolution collaborator
}

// WatchConfig controls incremental re-indexing on filesystem change.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// StorageConfig controls where the index database lives.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"` // relative to project root; default ".gildash"
	DBFile  string `yaml:"db_file" mapstructure:"db_file"`   // default "gildash.db"
}

// Default returns a configuration with sensible defaults, matching
// gildash.Config.withDefaults.
func Default() *Config {
	return &Config{
		Index: IndexConfig{
			Extensions:         []string{".ts", ".mts", ".cts"},
			IgnorePatterns:     []string{"**/node_modules/**"},
			ParseCacheCapacity: 500,
			Semantic:           false,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			DataDir: ".gildash",
			DBFile:  "gildash.db",
		},
	}
}
