package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/larose/ingest/search/index"
)

type config struct {
	directory   string
	input       string
	batchSize   int
	commitEvery int
	compression index.Compression
	cpuProfile  string
	url         string
	logger      *slog.Logger
}

func parseCompression(name string) (index.Compression, error) {
	for _, compression := range []index.Compression{index.CompressionNone, index.CompressionLZ4, index.CompressionZstd} {
		if compression.String() == name {
			return compression, nil
		}
	}
	return 0, fmt.Errorf("unknown compression %q", name)
}

func main() {
	mode := flag.String("mode", "", "Mode to run: index or inspect")
	directory := flag.String("directory", "directory", "Index directory")
	input := flag.String("input", "wiki-articles.jsonl", "JSONL file of articles to index")
	batchSize := flag.Int("batch", 10_000, "Articles submitted per batch")
	commitEvery := flag.Int("commit-every", 100_000, "Articles between two commits")
	compression := flag.String("compression", "lz4", "Document store compression: none, lz4 or zstd")
	cpuProfile := flag.String("cpuprofile", "", "Write a CPU profile to this file")
	url := flag.String("url", "", "In inspect mode, print the live documents with this url")
	verbose := flag.Bool("v", false, "Log debug messages")

	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	parsedCompression, err := parseCompression(*compression)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg := config{
		directory:   *directory,
		input:       *input,
		batchSize:   max(*batchSize, 1),
		commitEvery: max(*commitEvery, 1),
		compression: parsedCompression,
		cpuProfile:  *cpuProfile,
		url:         *url,
		logger:      logger,
	}

	var run func(config) error
	switch *mode {
	case "index":
		run = _index
	case "inspect":
		run = _inspect
	default:
		fmt.Println("Usage: go run . -mode=index|inspect [-directory dir] [-input articles.jsonl]")
		os.Exit(1)
	}

	stopProfiler, err := startCpuProfiler(cfg.cpuProfile, logger)
	if err != nil {
		logger.Error("failed", "mode", *mode, "error", err)
		os.Exit(1)
	}

	err = run(cfg)
	stopProfiler()

	if err != nil {
		logger.Error("failed", "mode", *mode, "error", err)
		os.Exit(1)
	}
}
