// Package session holds process-wide state that outlives a single request.
package session

import (
	"sync/atomic"
	"time"
)

// Tracker records whether an agent invocation has been attempted since the
// process started. The flag only ever moves from clean to dirty; a restart is
// the only reset.
type Tracker struct {
	dirty      atomic.Bool
	dirtySince atomic.Int64 // unix nanos of the first MarkDirty, 0 while clean
}

// NewTracker returns a clean tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// MarkDirty flips the flag. Calling it again is a no-op. The timestamp is
// stored before the flag, so a reader that sees dirty also sees DirtySince.
func (t *Tracker) MarkDirty() {
	if t.dirty.Load() {
		return
	}
	t.dirtySince.CompareAndSwap(0, time.Now().UnixNano())
	t.dirty.Store(true)
}

// IsDirty reports whether MarkDirty has been called.
func (t *Tracker) IsDirty() bool {
	return t.dirty.Load()
}

// DirtySince returns when the flag first flipped, or the zero time.
func (t *Tracker) DirtySince() time.Time {
	ns := t.dirtySince.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
