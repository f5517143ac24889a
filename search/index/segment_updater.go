package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type commitRequest struct {
	opstamp Opstamp
	payload *string
	ops     []Operation
}

// segmentUpdater persists commit requests on its own goroutine, one at a
// time and in the order they were scheduled.
type segmentUpdater struct {
	store    *segmentStore
	logger   *slog.Logger
	requests chan commitRequest
	quit     chan struct{}
	done     chan struct{}

	// sendMutex orders ScheduleCommit calls and Close.
	sendMutex    sync.Mutex
	lastAccepted Opstamp
	closed       bool

	mutex     sync.Mutex
	committed Opstamp
	failure   error
	changed   chan struct{}

	// beforePersist, when set before start, runs on the updater goroutine
	// ahead of each persist.
	beforePersist func(req commitRequest)
}

func newSegmentUpdater(store *segmentStore, options Options) *segmentUpdater {
	return &segmentUpdater{
		store:        store,
		logger:       options.Logger,
		requests:     make(chan commitRequest, options.CommitQueueSize),
		quit:         make(chan struct{}),
		done:         make(chan struct{}),
		lastAccepted: store.commit.Opstamp,
		committed:    store.commit.Opstamp,
		changed:      make(chan struct{}),
	}
}

func (u *segmentUpdater) start() {
	go u.run()
}

func (u *segmentUpdater) run() {
	defer close(u.done)

	for {
		select {
		case req := <-u.requests:
			u.process(req)
		case <-u.quit:
			// No request can be sent once quit is closed.
			for {
				select {
				case req := <-u.requests:
					u.process(req)
				default:
					return
				}
			}
		}
	}
}

func (u *segmentUpdater) process(req commitRequest) {
	if err := u.err(); err != nil {
		u.logger.Error("commit dropped after an earlier failure", "opstamp", req.opstamp, "ops", len(req.ops), "error", err)
		return
	}

	if u.beforePersist != nil {
		u.beforePersist(req)
	}

	commit, err := u.store.persist(req)

	u.mutex.Lock()
	if err != nil {
		u.failure = fmt.Errorf("persist commit %d: %w", req.opstamp, err)
	} else {
		u.committed = commit.Opstamp
	}
	close(u.changed)
	u.changed = make(chan struct{})
	u.mutex.Unlock()

	if err != nil {
		u.logger.Error("commit failed", "opstamp", req.opstamp, "error", err)
		return
	}

	u.logger.Info("commit persisted", "opstamp", commit.Opstamp, "ops", len(req.ops), "segments", len(commit.Segments))
}

func (u *segmentUpdater) err() error {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.failure
}

// ScheduleCommit hands req to the updater goroutine. It returns once the
// request is queued, not once it is persisted.
func (u *segmentUpdater) ScheduleCommit(ctx context.Context, req commitRequest) error {
	u.sendMutex.Lock()
	defer u.sendMutex.Unlock()

	if u.closed {
		return fmt.Errorf("%w: %w", ErrCommitRejected, ErrClosed)
	}

	if err := u.err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitRejected, err)
	}

	if req.opstamp < u.lastAccepted {
		return fmt.Errorf("%w: %d scheduled after %d", ErrOutOfOrder, req.opstamp, u.lastAccepted)
	}

	select {
	case u.requests <- req:
		u.lastAccepted = req.opstamp
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Committed returns the opstamp of the last persisted commit.
func (u *segmentUpdater) Committed() Opstamp {
	u.mutex.Lock()
	defer u.mutex.Unlock()
	return u.committed
}

// WaitCommitted blocks until a commit with an opstamp >= opstamp is
// persisted.
func (u *segmentUpdater) WaitCommitted(ctx context.Context, opstamp Opstamp) error {
	for {
		u.mutex.Lock()
		committed, failure, changed := u.committed, u.failure, u.changed
		u.mutex.Unlock()

		if committed >= opstamp {
			return nil
		}
		if failure != nil {
			return failure
		}

		select {
		case <-changed:
		case <-u.done:
			if u.Committed() >= opstamp {
				return nil
			}
			if err := u.err(); err != nil {
				return err
			}
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close stops accepting requests, persists the queued ones and waits for
// the updater goroutine to exit.
func (u *segmentUpdater) Close() error {
	u.sendMutex.Lock()
	if !u.closed {
		u.closed = true
		close(u.quit)
	}
	u.sendMutex.Unlock()

	<-u.done

	return u.err()
}
