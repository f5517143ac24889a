package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unknownOperation struct{}

func (unknownOperation) GetOpstamp() Opstamp {
	return 0
}

func startTestUpdater(t *testing.T, directory string) *segmentUpdater {
	options := buildOptions(nil)

	commit, err := readCommit(directory)
	require.NoError(t, err)

	updater := newSegmentUpdater(newSegmentStore(directory, commit, options), options)
	updater.start()
	t.Cleanup(func() { _ = updater.Close() })

	return updater
}

func TestSegmentUpdaterRejectsOutOfOrderRequests(t *testing.T) {
	updater := startTestUpdater(t, t.TempDir())

	ctx := context.Background()

	require.NoError(t, updater.ScheduleCommit(ctx, commitRequest{opstamp: 5}))
	require.NoError(t, updater.ScheduleCommit(ctx, commitRequest{opstamp: 5}))

	err := updater.ScheduleCommit(ctx, commitRequest{opstamp: 3})
	assert.ErrorIs(t, err, ErrOutOfOrder)

	require.NoError(t, updater.WaitCommitted(ctx, 5))
	assert.Equal(t, Opstamp(5), updater.Committed())
}

func TestSegmentUpdaterPersistsInOrder(t *testing.T) {
	directory := t.TempDir()
	updater := startTestUpdater(t, directory)

	ctx := context.Background()

	for i := uint64(1); i <= 3; i++ {
		req := commitRequest{
			opstamp: i,
			ops:     []Operation{AddOperation{Opstamp: i, Document: newTestDoc(i, "doc")}},
		}
		require.NoError(t, updater.ScheduleCommit(ctx, req))
	}

	require.NoError(t, updater.Close())

	reader := openTestReader(t, directory)
	assert.Equal(t, Opstamp(3), reader.Opstamp())
	assert.Len(t, reader.Segments(), 3)
	assert.Equal(t, []uint64{1, 2, 3}, liveIds(t, reader))
}

func TestSegmentUpdaterRejectsAfterClose(t *testing.T) {
	updater := startTestUpdater(t, t.TempDir())

	require.NoError(t, updater.Close())
	require.NoError(t, updater.Close())

	err := updater.ScheduleCommit(context.Background(), commitRequest{opstamp: 1})
	assert.ErrorIs(t, err, ErrCommitRejected)
	assert.ErrorIs(t, err, ErrClosed)

	err = updater.WaitCommitted(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSegmentUpdaterFailureIsTerminal(t *testing.T) {
	directory := t.TempDir()
	updater := startTestUpdater(t, directory)

	ctx := context.Background()

	require.NoError(t, updater.ScheduleCommit(ctx, commitRequest{opstamp: 1, ops: []Operation{unknownOperation{}}}))

	err := updater.WaitCommitted(ctx, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")

	err = updater.ScheduleCommit(ctx, commitRequest{opstamp: 2})
	assert.ErrorIs(t, err, ErrCommitRejected)

	reader := openTestReader(t, directory)
	assert.Equal(t, Opstamp(0), reader.Opstamp())
}

func TestSegmentUpdaterScheduleHonorsContext(t *testing.T) {
	options := buildOptions([]func(o *Options){func(o *Options) { o.CommitQueueSize = 1 }})

	directory := t.TempDir()
	commit, err := readCommit(directory)
	require.NoError(t, err)

	updater := newSegmentUpdater(newSegmentStore(directory, commit, options), options)

	release := make(chan struct{})
	updater.beforePersist = func(commitRequest) { <-release }
	updater.start()

	ctx := context.Background()

	// One request is being persisted, one fills the queue.
	require.NoError(t, updater.ScheduleCommit(ctx, commitRequest{opstamp: 1}))
	require.Eventually(t, func() bool { return len(updater.requests) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, updater.ScheduleCommit(ctx, commitRequest{opstamp: 2}))

	timeout, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, updater.ScheduleCommit(timeout, commitRequest{opstamp: 3}), context.DeadlineExceeded)

	close(release)
	require.NoError(t, updater.Close())
	assert.Equal(t, Opstamp(2), updater.Committed())
}
