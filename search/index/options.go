package index

import (
	"io"
	"log/slog"
)

type Options struct {
	// Logger receives commit lifecycle events. Nil discards them.
	Logger *slog.Logger

	// CommitQueueSize bounds the number of commit requests accepted by the
	// segment updater but not yet persisted.
	CommitQueueSize int

	// Compression is the codec of new document store blocks.
	Compression Compression

	// BlockSize is the amount of serialized documents, in bytes, gathered
	// before a document store block is compressed and written.
	BlockSize int
}

var DefaultOptions = Options{
	CommitQueueSize: 8,
	Compression:     CompressionLZ4,
	BlockSize:       16 * 1024,
}

func buildOptions(optFns []func(o *Options)) Options {
	options := DefaultOptions
	for _, fn := range optFns {
		fn(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if options.CommitQueueSize <= 0 {
		options.CommitQueueSize = DefaultOptions.CommitQueueSize
	}
	if options.BlockSize <= 0 {
		options.BlockSize = DefaultOptions.BlockSize
	}

	return options
}
