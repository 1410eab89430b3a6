package config

import (
	"github.com/zipbul/gildash/internal/gildash"
	"github.com/zipbul/gildash/internal/gildashlog"
)

// ToGildashConfig seeds a gildash.Config from the loaded host configuration
// and the absolute project root the CLI is operating on.
func ToGildashConfig(projectRoot string, cfg *Config, logger gildashlog.Logger) gildash.Config {
	return gildash.Config{
		ProjectRoot:        projectRoot,
		DataDir:            cfg.Storage.DataDir,
		DBFile:             cfg.Storage.DBFile,
		Extensions:         cfg.Index.Extensions,
		IgnorePatterns:     cfg.Index.IgnorePatterns,
		ParseCacheCapacity: cfg.Index.ParseCacheCapacity,
		WatchMode:          cfg.Watch.Enabled,
		Semantic:           cfg.Index.Semantic,
		Logger:             logger,
	}
}
