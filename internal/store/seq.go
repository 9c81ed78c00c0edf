package store

import "sync/atomic"

// Sequence is an atomic version number generator. A single Sequence is shared
// by every session that persists into the same Store, so all operations are
// atomic.
type Sequence struct {
	val atomic.Uint64
}

// NewSequence creates a sequence whose first Next() returns start+1.
func NewSequence(start uint64) *Sequence {
	s := &Sequence{}
	s.val.Store(start)
	return s
}

// Next returns the next version number (monotonically increasing).
func (s *Sequence) Next() uint64 {
	return s.val.Add(1)
}

// Current returns the last version handed out, 0 if none.
func (s *Sequence) Current() uint64 {
	return s.val.Load()
}
