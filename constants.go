package pio

import "github.com/sfrias/ParallelIO/internal/constants"

// Re-exported tunables for callers that don't need internal/config's
// TOML loading.
const (
	DefaultBufferSizeLimit    = constants.DefaultBufferSizeLimit
	DefaultMaxCachedIORegions = constants.DefaultMaxCachedIORegions
	MaxGatherBlockSize        = constants.MaxGatherBlockSize
)
