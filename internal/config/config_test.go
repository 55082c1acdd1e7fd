package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.EqualValues(t, 10*1024*1024, cfg.BufferSizeLimit)
	assert.Greater(t, cfg.MaxCachedIORegions, 0)
}

func TestParseOverridesDefaults(t *testing.T) {
	doc := []byte(`
buffer_size_limit = "512KiB"
max_cached_io_regions = 256
log_level = "debug"
`)
	cfg, err := Parse(doc)
	require.NoError(t, err)
	assert.EqualValues(t, 512*1024, cfg.BufferSizeLimit)
	assert.Equal(t, 256, cfg.MaxCachedIORegions)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Unset fields keep their defaults.
	assert.Equal(t, Default().MaxGatherWindow, cfg.MaxGatherWindow)
}

func TestParseEmptyDocumentIsAllDefaults(t *testing.T) {
	cfg, err := Parse([]byte(``))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsMalformedTOML(t *testing.T) {
	_, err := Parse([]byte(`not = [valid`))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/pio.toml")
	assert.Error(t, err)
}
