package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given project root.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (GILDASH_*)
// 2. Config file (.gildash/config.yml or .gildash/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	configDir := filepath.Join(l.rootDir, ".gildash")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("GILDASH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.BindEnv("index.extensions")
	v.BindEnv("index.ignore_patterns")
	v.BindEnv("index.parse_cache_capacity")
	v.BindEnv("index.semantic")
	v.BindEnv("watch.enabled")
	v.BindEnv("storage.data_dir")
	v.BindEnv("storage.db_file")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("index.extensions", defaults.Index.Extensions)
	v.SetDefault("index.ignore_patterns", defaults.Index.IgnorePatterns)
	v.SetDefault("index.parse_cache_capacity", defaults.Index.ParseCacheCapacity)
	v.SetDefault("index.semantic", defaults.Index.Semantic)

	v.SetDefault("watch.enabled", defaults.Watch.Enabled)

	v.SetDefault("storage.data_dir", defaults.Storage.DataDir)
	v.SetDefault("storage.db_file", defaults.Storage.DBFile)
}

// LoadConfigFromDir loads configuration for a given project root.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
