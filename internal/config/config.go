// Package config loads the process-wide tunables a Context is seeded
// with (spec §9's design note on encapsulating the global
// buffer_size_limit and arena root pointer).
package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	"github.com/sfrias/ParallelIO/internal/constants"
)

// Config holds the values a Context is built from. BufferSizeLimit and
// ArenaCapacity are accepted as human-readable size strings in TOML
// ("10MB", "512KiB") and parsed via datasize; Load converts them to the
// plain byte counts the rest of the core works with.
type Config struct {
	BufferSizeLimit    int64
	MaxCachedIORegions int
	MaxGatherWindow    int
	ArenaCapacity      int64
	LogLevel           string
}

// fileShape mirrors Config's fields as they appear in a TOML document.
// The two size fields are datasize.ByteSize so go-toml/v2 decodes
// human-readable strings ("10MB", "512KiB") via its UnmarshalText.
type fileShape struct {
	BufferSizeLimit    datasize.ByteSize `toml:"buffer_size_limit"`
	MaxCachedIORegions int               `toml:"max_cached_io_regions"`
	MaxGatherWindow    int               `toml:"max_gather_window"`
	ArenaCapacity      datasize.ByteSize `toml:"arena_capacity"`
	LogLevel           string            `toml:"log_level"`
}

// Default returns the numeric defaults spec.md implies without
// requiring a config file: a 10 MiB buffer_size_limit and the core's
// other built-in constants.
func Default() Config {
	return Config{
		BufferSizeLimit:    constants.DefaultBufferSizeLimit,
		MaxCachedIORegions: constants.DefaultMaxCachedIORegions,
		MaxGatherWindow:    constants.MaxGatherBlockSize,
		ArenaCapacity:      constants.ArenaDefaultCapacity,
		LogLevel:           "info",
	}
}

// Load reads and parses a TOML config file at path, filling in
// Default() for any field the file doesn't set.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a TOML document's bytes into a Config, applying
// Default() for zero-valued fields.
func Parse(raw []byte) (Config, error) {
	var shape fileShape
	if err := toml.Unmarshal(raw, &shape); err != nil {
		return Config{}, fmt.Errorf("config: parse toml: %w", err)
	}

	cfg := Default()
	if shape.BufferSizeLimit != 0 {
		cfg.BufferSizeLimit = int64(shape.BufferSizeLimit.Bytes())
	}
	if shape.MaxCachedIORegions != 0 {
		cfg.MaxCachedIORegions = shape.MaxCachedIORegions
	}
	if shape.MaxGatherWindow != 0 {
		cfg.MaxGatherWindow = shape.MaxGatherWindow
	}
	if shape.ArenaCapacity != 0 {
		cfg.ArenaCapacity = int64(shape.ArenaCapacity.Bytes())
	}
	if shape.LogLevel != "" {
		cfg.LogLevel = shape.LogLevel
	}
	return cfg, nil
}
