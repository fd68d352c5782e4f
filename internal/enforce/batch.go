package enforce

import (
	"sync"
	"time"
)

// deferredCodes are the quality checks a batch window holds back until
// close. Structural errors always surface immediately.
var deferredCodes = map[string]bool{
	CodeMissingTypeHints: true,
	CodeMissingDocstring: true,
	CodePlacement:        true,
	CodeDuplicateName:    true,
}

// Batch is an explicit multi-file editing window. While open, quality
// violations queue instead of surfacing, and the window expires on its
// own after a period of inactivity.
type Batch struct {
	mu       sync.Mutex
	open     bool
	window   time.Duration
	lastSeen time.Time
	queued   []Violation
	now      func() time.Time
}

func NewBatch(window time.Duration) *Batch {
	if window <= 0 {
		window = 60 * time.Second
	}
	return &Batch{window: window, now: time.Now}
}

// Open starts a window. Opening an already-open window just refreshes
// the inactivity timer.
func (b *Batch) Open() {
	b.mu.Lock()
	b.open = true
	b.lastSeen = b.now()
	b.mu.Unlock()
}

// Active reports whether a window is open, expiring it first when the
// inactivity deadline has passed. Expiry returns the queued findings so
// the caller can surface them.
func (b *Batch) Active() (bool, []Violation) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false, nil
	}
	if b.now().Sub(b.lastSeen) > b.window {
		return false, b.closeLocked()
	}
	return true, nil
}

// Touch refreshes the inactivity timer on any activity inside the
// window.
func (b *Batch) Touch() {
	b.mu.Lock()
	if b.open {
		b.lastSeen = b.now()
	}
	b.mu.Unlock()
}

// Defer queues a violation for the window close. Returns false when the
// code is not a deferrable one.
func (b *Batch) Defer(v Violation) bool {
	if !deferredCodes[v.Code] {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return false
	}
	b.queued = append(b.queued, v)
	return true
}

// Close ends the window and returns everything it held back.
func (b *Batch) Close() []Violation {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return nil
	}
	return b.closeLocked()
}

func (b *Batch) closeLocked() []Violation {
	b.open = false
	out := b.queued
	b.queued = nil
	return out
}
