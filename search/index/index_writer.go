package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/larose/ingest/search/schema"
)

var (
	errNilDocument = errors.New("nil document")
	errEmptyTerm   = errors.New("empty term")
)

// IndexWriter accepts add and delete operations from any number of
// goroutines, stamps them and keeps them pending until a commit hands them
// to the segment updater.
type IndexWriter struct {
	directory string
	logger    *slog.Logger
	stamper   *Stamper
	updater   *segmentUpdater

	// mutex guards the fields below. Operations are stamped while it is
	// held, so pending is sorted by opstamp.
	mutex            sync.Mutex
	pending          []Operation
	commitOpen       bool
	committedOpstamp Opstamp
	closed           bool
}

func NewIndexWriter(directory string, optFns ...func(o *Options)) (*IndexWriter, error) {
	writer, err := newIndexWriter(directory, buildOptions(optFns))
	if err != nil {
		return nil, err
	}

	writer.updater.start()

	return writer, nil
}

// newIndexWriter returns a writer whose segment updater is not started.
func newIndexWriter(directory string, options Options) (*IndexWriter, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, err
	}

	commit, err := readCommit(directory)
	if err != nil {
		return nil, err
	}

	options.Logger.Info("index writer opened", "directory", directory, "opstamp", commit.Opstamp, "segments", len(commit.Segments))

	return &IndexWriter{
		directory:        directory,
		logger:           options.Logger,
		stamper:          NewStamper(commit.Opstamp),
		updater:          newSegmentUpdater(newSegmentStore(directory, commit, options), options),
		committedOpstamp: commit.Opstamp,
	}, nil
}

func (writer *IndexWriter) AddDocument(doc *schema.Document) (Opstamp, error) {
	if doc == nil {
		return 0, errNilDocument
	}
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return 0, ErrClosed
	}

	opstamp := writer.stamper.Stamp()
	writer.pending = append(writer.pending, AddOperation{Opstamp: opstamp, Document: doc})

	return opstamp, nil
}

// DeleteTerm deletes every document holding a value equal to term that was
// added before this call.
func (writer *IndexWriter) DeleteTerm(term schema.Term) (Opstamp, error) {
	if len(term) == 0 {
		return 0, errEmptyTerm
	}

	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return 0, ErrClosed
	}

	opstamp := writer.stamper.Stamp()
	writer.pending = append(writer.pending, DeleteOperation{Opstamp: opstamp, Term: term})

	return opstamp, nil
}

// Run submits ops as one batch: they get contiguous opstamps, in order,
// and no other operation is interleaved with them. It returns the opstamp
// of the last operation.
func (writer *IndexWriter) Run(ops []UserOperation) (Opstamp, error) {
	for i, op := range ops {
		switch op := op.(type) {
		case AddUserOp:
			if op.Document == nil {
				return 0, fmt.Errorf("operation %d: %w", i, errNilDocument)
			}
			if err := op.Document.Validate(); err != nil {
				return 0, fmt.Errorf("operation %d: %w", i, err)
			}
		case DeleteUserOp:
			if len(op.Term) == 0 {
				return 0, fmt.Errorf("operation %d: %w", i, errEmptyTerm)
			}
		default:
			return 0, fmt.Errorf("operation %d: unknown operation %T", i, op)
		}
	}

	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return 0, ErrClosed
	}

	if len(ops) == 0 {
		return writer.stamper.Stamp(), nil
	}

	first := writer.stamper.StampRange(uint64(len(ops)))

	for i, op := range ops {
		opstamp := first + Opstamp(i)

		switch op := op.(type) {
		case AddUserOp:
			writer.pending = append(writer.pending, AddOperation{Opstamp: opstamp, Document: op.Document})
		case DeleteUserOp:
			writer.pending = append(writer.pending, DeleteOperation{Opstamp: opstamp, Term: op.Term})
		}
	}

	return first + Opstamp(len(ops)) - 1, nil
}

// PrepareCommit opens a commit covering every operation submitted so far.
// Only one PreparedCommit can be open at a time.
func (writer *IndexWriter) PrepareCommit() (*PreparedCommit, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return nil, ErrClosed
	}

	if writer.commitOpen {
		return nil, &ProtocolError{Op: "prepare commit", Err: ErrCommitInProgress}
	}

	writer.commitOpen = true
	opstamp := writer.stamper.Last()

	writer.logger.Debug("commit prepared", "opstamp", opstamp, "pending", len(writer.pending))

	return &PreparedCommit{writer: writer, opstamp: opstamp}, nil
}

// Commit prepares and commits in one call.
func (writer *IndexWriter) Commit() (Opstamp, error) {
	preparedCommit, err := writer.PrepareCommit()
	if err != nil {
		return 0, err
	}
	return preparedCommit.Commit()
}

// coveredBy returns how many pending operations have an opstamp <= opstamp.
func (writer *IndexWriter) coveredBy(opstamp Opstamp) int {
	n, _ := slices.BinarySearchFunc(writer.pending, opstamp+1, func(op Operation, target Opstamp) int {
		switch {
		case op.GetOpstamp() < target:
			return -1
		case op.GetOpstamp() > target:
			return 1
		default:
			return 0
		}
	})
	return n
}

func (writer *IndexWriter) scheduleCommit(opstamp Opstamp, payload *string) (Opstamp, error) {
	writer.mutex.Lock()

	if writer.closed {
		writer.commitOpen = false
		writer.mutex.Unlock()
		return opstamp, fmt.Errorf("%w: %w", ErrCommitRejected, ErrClosed)
	}

	n := writer.coveredBy(opstamp)
	ops := slices.Clone(writer.pending[:n])
	writer.pending = slices.Clone(writer.pending[n:])

	writer.mutex.Unlock()

	writer.logger.Info("committing", "opstamp", opstamp, "ops", len(ops))

	err := writer.updater.ScheduleCommit(context.Background(), commitRequest{opstamp: opstamp, payload: payload, ops: ops})

	writer.mutex.Lock()
	if err != nil {
		writer.pending = append(ops, writer.pending...)
	} else {
		writer.committedOpstamp = opstamp
	}
	writer.commitOpen = false
	writer.mutex.Unlock()

	if err != nil {
		writer.logger.Error("commit rejected", "opstamp", opstamp, "error", err)
		return opstamp, err
	}

	return opstamp, nil
}

func (writer *IndexWriter) abortCommit(opstamp Opstamp) {
	writer.mutex.Lock()
	n := writer.coveredBy(opstamp)
	writer.pending = slices.Clone(writer.pending[n:])
	writer.commitOpen = false
	writer.mutex.Unlock()

	writer.logger.Info("commit aborted", "opstamp", opstamp, "discarded", n)
}

// Rollback drops every pending operation and returns the opstamp of the
// last commit. It fails while a PreparedCommit is open.
func (writer *IndexWriter) Rollback() (Opstamp, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.closed {
		return 0, ErrClosed
	}

	if writer.commitOpen {
		return 0, &ProtocolError{Op: "rollback", Err: ErrCommitInProgress}
	}

	discarded := len(writer.pending)
	writer.pending = nil

	writer.logger.Info("rolled back", "opstamp", writer.committedOpstamp, "discarded", discarded)

	return writer.committedOpstamp, nil
}

// CommittedOpstamp returns the opstamp of the last commit accepted by the
// segment updater. It may not be persisted yet.
func (writer *IndexWriter) CommittedOpstamp() Opstamp {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return writer.committedOpstamp
}

// PendingOperations returns the operations submitted but not committed yet,
// in opstamp order.
func (writer *IndexWriter) PendingOperations() []Operation {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()
	return slices.Clone(writer.pending)
}

// WaitCommitted blocks until a commit with an opstamp >= opstamp is
// persisted and visible to new readers.
func (writer *IndexWriter) WaitCommitted(ctx context.Context, opstamp Opstamp) error {
	return writer.updater.WaitCommitted(ctx, opstamp)
}

// Close drops pending operations, persists the commits already accepted and
// stops the segment updater. An open PreparedCommit can only be aborted
// afterwards.
func (writer *IndexWriter) Close() error {
	writer.mutex.Lock()
	if writer.closed {
		writer.mutex.Unlock()
		return nil
	}
	writer.closed = true
	discarded := len(writer.pending)
	writer.pending = nil
	writer.mutex.Unlock()

	err := writer.updater.Close()

	writer.logger.Info("index writer closed", "directory", writer.directory, "discarded", discarded)

	return err
}
