package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
)

func jsonLogger(buf *bytes.Buffer, level Level) *Logger {
	return New(Config{Level: level, Format: FormatJSON, Output: buf})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn message", entries[0]["msg"])
	assert.Equal(t, "error message", entries[1]["msg"])
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatText, Output: &buf})

	logger.Info("signed in", "uid", "u-1")

	out := buf.String()
	assert.Contains(t, out, "msg=\"signed in\"")
	assert.Contains(t, out, "uid=u-1")
}

func TestServiceVersionAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: &buf, ServiceVersion: "1.2.3"})

	logger.Info("hello")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "1.2.3", entries[0]["version"])
}

func TestWithError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKeys map[string]any
	}{
		{
			name: "vibesub error with status",
			err:  errors.NewFetchFailedError(401),
			wantKeys: map[string]any{
				"error_code": "USAGE-001",
				"status":     float64(401),
			},
		},
		{
			name: "wrapped cause",
			err:  errors.Wrap(errors.ErrCodeProviderError, "lookup failed", fmt.Errorf("dial tcp")),
			wantKeys: map[string]any{
				"error":      "lookup failed",
				"error_code": "AUTH-003",
				"cause":      "dial tcp",
			},
		},
		{
			name:     "plain error",
			err:      fmt.Errorf("boom"),
			wantKeys: map[string]any{"error": "boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			jsonLogger(&buf, LevelDebug).WithError(tt.err).Warn("failed")

			entries := decodeLines(t, &buf)
			require.Len(t, entries, 1)
			for k, v := range tt.wantKeys {
				assert.Equal(t, v, entries[0][k], k)
			}
		})
	}
}

func TestWithErrorNil(t *testing.T) {
	logger := Discard()
	assert.Same(t, logger, logger.WithError(nil))
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LevelDebug)

	logger.LogError("sign out failed", errors.NewInvalidCredentialsError(nil))
	logger.LogError("ignored", nil)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "sign out failed", entries[0]["msg"])
	assert.Equal(t, "AUTH-001", entries[0]["error_code"])
	assert.Equal(t, "invalid email or password", entries[0]["error_message"])
}

func TestWithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := jsonLogger(&buf, LevelInfo).WithGroup("dashboard").With("uid", "u-1")

	logger.InfoContext(context.Background(), "fetched")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	group, ok := entries[0]["dashboard"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-1", group["uid"])
}

func TestParseLevelAndFormat(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelInfo, ParseLevel(" info "))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelWarn, ParseLevel("bogus"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, "json", FormatJSON.String())
}

func TestConfigFromStrings(t *testing.T) {
	cfg := ConfigFromStrings("debug", "json")
	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.True(t, cfg.AddSource)
}

func TestEnabled(t *testing.T) {
	logger := New(Config{Level: LevelWarn, Output: &bytes.Buffer{}})
	assert.False(t, logger.Enabled(context.Background(), LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), LevelError))
}

func TestDefaultLoggerConcurrency(t *testing.T) {
	custom := Discard()
	SetDefaultLogger(custom)
	t.Cleanup(func() { SetDefaultLogger(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Same(t, custom, DefaultLogger())
		}()
	}
	wg.Wait()
}

func TestDefaultLoggerSilentUntilInstalled(t *testing.T) {
	SetDefaultLogger(nil)
	assert.Same(t, silent, DefaultLogger())

	var buf bytes.Buffer
	SetDefaultLogger(jsonLogger(&buf, LevelInfo))
	t.Cleanup(func() { SetDefaultLogger(nil) })

	Component("usage").Info("fetched")
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "usage", entries[0]["component"])
	assert.Equal(t, "fetched", entries[0]["msg"])
}
