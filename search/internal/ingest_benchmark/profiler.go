package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
)

// startCpuProfiler profiles the process until the returned function is
// called. An empty filename disables profiling.
func startCpuProfiler(filename string, logger *slog.Logger) (func(), error) {
	if filename == "" {
		return func() {}, nil
	}

	profile, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create CPU profile: %w", err)
	}

	if err := pprof.StartCPUProfile(profile); err != nil {
		_ = profile.Close()
		return nil, fmt.Errorf("start CPU profile: %w", err)
	}

	logger.Debug("cpu profiling", "file", filename)

	return func() {
		pprof.StopCPUProfile()
		if err := profile.Close(); err != nil {
			logger.Error("could not close CPU profile", "file", filename, "error", err)
		}
	}, nil
}
