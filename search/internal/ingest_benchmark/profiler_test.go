package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCpuProfilerDisabled(t *testing.T) {
	stop, err := startCpuProfiler("", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	stop()
}

func TestCpuProfilerWritesProfile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cpu.prof")

	stop, err := startCpuProfiler(filename, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	stop()

	info, err := os.Stat(filename)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCpuProfilerBadPath(t *testing.T) {
	_, err := startCpuProfiler(filepath.Join(t.TempDir(), "missing", "cpu.prof"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
