package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestLogger_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "animerge.log")
	var console bytes.Buffer

	l, err := newLogger(Config{Level: "info", File: path, MaxSizeMB: 1, MaxBackups: 2}, &console)
	require.NoError(t, err)

	l.Debug("merge", "hidden")
	l.Info("merge", "group merged", F("primary_id", 7), F("deleted", []int64{8, 9}))
	l.Error("merge", "group failed", errors.New("boom"), F("group_key", "mal:20"))
	require.NoError(t, l.Close())

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "group merged")
	assert.Contains(t, out, "boom")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "group merged", entry["msg"])
	assert.Equal(t, "merge", entry["component"])
	assert.Equal(t, float64(7), entry["primary_id"])

	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, path, l.FilePath())
}

func TestLogger_SetLevel(t *testing.T) {
	var console bytes.Buffer
	l, err := newLogger(Config{Level: "error"}, &console)
	require.NoError(t, err)

	l.Info("x", "first")
	assert.Equal(t, LevelError, l.GetLevel())

	l.SetLevel(LevelDebug)
	l.Debug("x", "second")
	assert.NotContains(t, console.String(), "first")
	assert.Contains(t, console.String(), "second")
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("x", "nothing")
	l.Error("x", "nothing", errors.New("e"))
	assert.NoError(t, l.Close())
}

func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	rf, err := openRotatingFile(path, 10, 2)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := rf.Write([]byte("0123456789"))
		require.NoError(t, err)
	}
	require.NoError(t, rf.Close())

	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "app.1.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "app.2.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "app.3.log"))
	assert.True(t, os.IsNotExist(err), "backups beyond the limit are removed")
}
