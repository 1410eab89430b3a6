package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyExtensions indicates no file extensions are configured for indexing.
	ErrEmptyExtensions = errors.New("empty index extensions")

	// ErrInvalidExtension indicates an extension missing its leading dot.
	ErrInvalidExtension = errors.New("invalid index extension")

	// ErrInvalidCacheCapacity indicates a non-positive parse cache capacity.
	ErrInvalidCacheCapacity = errors.New("invalid parse cache capacity")

	// ErrEmptyDataDir indicates a missing storage data directory.
	ErrEmptyDataDir = errors.New("empty storage data_dir")

	// ErrEmptyDBFile indicates a missing storage database file name.
	ErrEmptyDBFile = errors.New("empty storage db_file")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateIndex(&cfg.Index); err != nil {
		errs = append(errs, err)
	}
	if err := validateStorage(&cfg.Storage); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateIndex(cfg *IndexConfig) error {
	var errs []error

	if len(cfg.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("%w: at least one extension required", ErrEmptyExtensions))
	}
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("%w: %q must start with '.'", ErrInvalidExtension, ext))
		}
	}
	if cfg.ParseCacheCapacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: must be positive, got %d", ErrInvalidCacheCapacity, cfg.ParseCacheCapacity))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func validateStorage(cfg *StorageConfig) error {
	var errs []error

	if strings.TrimSpace(cfg.DataDir) == "" {
		errs = append(errs, ErrEmptyDataDir)
	}
	if strings.TrimSpace(cfg.DBFile) == "" {
		errs = append(errs, ErrEmptyDBFile)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
