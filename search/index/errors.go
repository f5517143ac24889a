package index

import "errors"

var (
	// ErrClosed is returned by a writer or reader after Close.
	ErrClosed = errors.New("index closed")

	// ErrCommitRejected is returned when the segment updater does not accept
	// a commit request, either because it was shut down or because an
	// earlier commit failed to persist.
	ErrCommitRejected = errors.New("commit rejected")

	// ErrOutOfOrder is returned when a commit request carries a lower
	// opstamp than one the segment updater already accepted.
	ErrOutOfOrder = errors.New("commit opstamp out of order")

	// ErrDocNotFound is returned when a doc address points past the end of
	// its segment or to an unknown segment.
	ErrDocNotFound = errors.New("document not found")

	// ErrCorrupt is returned when a segment file fails validation.
	ErrCorrupt = errors.New("corrupt index file")

	ErrCommitInProgress = errors.New("a prepared commit is already open")
	ErrCommitFinalized  = errors.New("prepared commit already finalized")
)

// ProtocolError reports a misuse of the commit protocol, such as finalizing
// a PreparedCommit twice.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
