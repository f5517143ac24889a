package index

import "sync"

// PreparedCommit is the first phase of a commit. It fixes the set of
// operations the commit covers, those with an opstamp lower or equal to
// Opstamp(), and holds the writer's commit slot until Commit or Abort.
//
// A PreparedCommit that is neither committed nor aborted keeps the slot.
// Close aborts it, so `defer prepared.Close()` is the usual way to make sure
// an early return does not leave it open.
type PreparedCommit struct {
	writer  *IndexWriter
	opstamp Opstamp

	mutex     sync.Mutex
	payload   *string
	finalized bool
}

func (pc *PreparedCommit) Opstamp() Opstamp {
	return pc.opstamp
}

// SetPayload attaches an opaque string, stored with the commit and visible
// to readers. A later call replaces the previous payload.
func (pc *PreparedCommit) SetPayload(payload string) error {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.finalized {
		return &ProtocolError{Op: "set payload", Err: ErrCommitFinalized}
	}

	pc.payload = &payload
	return nil
}

func (pc *PreparedCommit) Payload() (string, bool) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.payload == nil {
		return "", false
	}
	return *pc.payload, true
}

func (pc *PreparedCommit) finalize(op string) (*string, error) {
	pc.mutex.Lock()
	defer pc.mutex.Unlock()

	if pc.finalized {
		return nil, &ProtocolError{Op: op, Err: ErrCommitFinalized}
	}

	pc.finalized = true
	return pc.payload, nil
}

// Commit hands the covered operations to the segment updater and returns
// once the updater accepted them. Use IndexWriter.WaitCommitted with the
// returned opstamp to wait until they are persisted.
//
// When the updater rejects the commit the operations stay pending on the
// writer. The PreparedCommit is finalized either way.
func (pc *PreparedCommit) Commit() (Opstamp, error) {
	payload, err := pc.finalize("commit")
	if err != nil {
		return 0, err
	}

	return pc.writer.scheduleCommit(pc.opstamp, payload)
}

// Abort drops the pending operations the commit covers. Operations
// submitted after the commit was prepared stay pending. It returns the
// opstamp that was not committed.
func (pc *PreparedCommit) Abort() (Opstamp, error) {
	if _, err := pc.finalize("abort"); err != nil {
		return 0, err
	}

	pc.writer.abortCommit(pc.opstamp)

	return pc.opstamp, nil
}

// Close aborts the commit if it is still open.
func (pc *PreparedCommit) Close() error {
	pc.mutex.Lock()
	finalized := pc.finalized
	pc.mutex.Unlock()

	if finalized {
		return nil
	}

	_, err := pc.Abort()
	return err
}
