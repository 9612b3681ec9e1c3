package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg, fillErr := fillDataPaths(base)
			if fillErr != nil {
				return Loaded{}, fillErr
			}
			return Loaded{
				Path:   resolvedPath,
				Config: cfg,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	cfg, err = fillDataPaths(cfg)
	if err != nil {
		return Loaded{}, err
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// fillDataPaths resolves empty recordings/database paths against the data dir.
func fillDataPaths(cfg Config) (Config, error) {
	if cfg.Capture.RecordingsDir != "" && cfg.Store.Path != "" {
		return cfg, nil
	}

	dataDir, err := ResolveDataDir()
	if err != nil {
		return Config{}, err
	}
	if cfg.Capture.RecordingsDir == "" {
		cfg.Capture.RecordingsDir = filepath.Join(dataDir, "recordings")
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(dataDir, "meetnotes.sqlite")
	}
	return cfg, nil
}
