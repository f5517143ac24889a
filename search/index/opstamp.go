package index

import "sync/atomic"

// Opstamp orders every mutation accepted by a writer. Opstamps only grow;
// gaps are allowed.
type Opstamp = uint64

// Stamper hands out opstamps. It is owned by one IndexWriter and seeded
// with the opstamp of the last commit, so a reopened index keeps counting
// from where it stopped.
type Stamper struct {
	last atomic.Uint64
}

func NewStamper(start Opstamp) *Stamper {
	stamper := &Stamper{}
	stamper.last.Store(start)
	return stamper
}

// Stamp returns a fresh opstamp. The first call returns start+1.
func (s *Stamper) Stamp() Opstamp {
	return s.last.Add(1)
}

// StampRange reserves n contiguous opstamps and returns the first one.
func (s *Stamper) StampRange(n uint64) Opstamp {
	return s.last.Add(n) - n + 1
}

// Last returns the most recently assigned opstamp, or the start value if
// none was assigned yet.
func (s *Stamper) Last() Opstamp {
	return s.last.Load()
}
