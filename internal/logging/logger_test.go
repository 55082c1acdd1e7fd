package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{
			name: "explicit output",
			config: &Config{
				Level:  LevelInfo,
				Output: &bytes.Buffer{},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.config)
			if logger == nil {
				t.Error("NewLogger() returned nil")
			}
		})
	}
}

func TestLoggerLevelGating(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	if buf.Len() != 0 {
		t.Errorf("expected no output below configured level, got %q", buf.String())
	}

	logger.Warn("rank desynchronized", "rank", 3)
	output := buf.String()
	if !strings.Contains(output, "rank desynchronized") {
		t.Errorf("expected warn message in output, got %q", output)
	}
	if !strings.Contains(output, "rank=3") {
		t.Errorf("expected key=value args in output, got %q", output)
	}
}

func TestLoggerPrintf(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debugf("flushing ioid=%d level=%s", 7, "DISK_FLUSH")
	if !strings.Contains(buf.String(), "flushing ioid=7 level=DISK_FLUSH") {
		t.Errorf("expected formatted message, got %q", buf.String())
	}
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))
	defer SetDefault(NewLogger(DefaultConfig()))

	Info("write driver flushed", "bytes", 4096)
	if !strings.Contains(buf.String(), "write driver flushed") {
		t.Errorf("expected message routed through default logger, got %q", buf.String())
	}

	if Default() == nil {
		t.Error("Default() returned nil")
	}
}
