package logging

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel("error"))
	assert.Equal(t, InfoLevel, ParseLevel("nonsense"))
}

func TestLogger_LogLevels(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	tests := []struct {
		name     string
		logFunc  func()
		contains []string
	}{
		{
			name:     "debug log",
			logFunc:  func() { logger.Debug("debug message", Field{"shard", "s1"}) },
			contains: []string{"DEBUG", "debug message", "s1"},
		},
		{
			name:     "info log",
			logFunc:  func() { logger.Info("info message", Int("targets", 3)) },
			contains: []string{"INFO", "info message", "3"},
		},
		{
			name:     "warn log",
			logFunc:  func() { logger.Warn("warning message", Field{"fallback", true}) },
			contains: []string{"WARN", "warning message", "true"},
		},
		{
			name:     "error log",
			logFunc:  func() { logger.Error("error message", errors.New("shard down"), String("shard", "s2")) },
			contains: []string{"ERROR", "error message", "shard down", "s2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc()

			output := buf.String()
			for _, contains := range tt.contains {
				assert.Contains(t, output, contains)
			}
		})
	}
}

func TestFieldHelpers(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	logger.Info("helpers",
		Strings("targets", []string{"s1", "s2"}),
		Int64("affected", 42),
		Duration("grace", 5*time.Minute),
		Err(errors.New("pool overrun")),
	)

	output := buf.String()
	assert.Contains(t, output, "s2")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "pool overrun")
	assert.Equal(t, "error", Err(errors.New("x")).Key)
}

func TestLogger_LogFiltering(t *testing.T) {
	logger, buf := newBufferedLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", errors.New("test error"))

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestLogger_WithFields(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	enriched := logger.WithFields(Field{"component", "scatter"})
	enriched.Info("dispatched", Field{"units", 4})

	output := buf.String()
	assert.Contains(t, output, "scatter")
	assert.Contains(t, output, "dispatched")
	assert.Same(t, logger, logger.WithFields())
}

func TestLogger_WithContext(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	ctx := ContextWithBatchID(context.Background(), "batch-123")
	ctx = ContextWithStatement(ctx, "user.byId")

	logger.WithContext(ctx).Info("context message")

	output := buf.String()
	assert.Contains(t, output, "batch-123")
	assert.Contains(t, output, "user.byId")
}

func TestLogger_WithContext_MissingValues(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	assert.Same(t, logger, logger.WithContext(context.Background()))
	logger.WithContext(context.Background()).Info("context message")
	assert.Contains(t, buf.String(), "context message")
}

func TestLogger_Concurrency(t *testing.T) {
	logger, buf := newBufferedLogger(t, DebugLevel)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			enriched := logger.WithFields(Field{"goroutine", id})
			for j := 0; j < 5; j++ {
				enriched.Info("concurrent message", Field{"iteration", j})
			}
		}(i)
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "concurrent message")
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	testLogger, buf := newBufferedLogger(t, DebugLevel)
	SetGlobalLogger(testLogger)
	assert.Equal(t, testLogger, GetGlobalLogger())

	Debug("debug from global")
	Info("info from global")
	Warn("warn from global")
	Error("error from global", errors.New("global error"))
	WithFields(String("component", "test")).Info("fielded from global")

	output := buf.String()
	assert.Contains(t, output, "debug from global")
	assert.Contains(t, output, "info from global")
	assert.Contains(t, output, "warn from global")
	assert.Contains(t, output, "global error")
	assert.Contains(t, output, "fielded from global")
}
