package tether

import "sync"

// errorRing is a thread-safe ring buffer retaining the most recent save
// errors, oldest first.
type errorRing struct {
	mu      sync.RWMutex
	entries []error
	next    int
	full    bool
}

// newErrorRing creates an error ring with the given capacity.
// A capacity of zero disables history; only LastError is retained.
func newErrorRing(capacity int) *errorRing {
	if capacity <= 0 {
		return nil
	}
	return &errorRing{entries: make([]error, capacity)}
}

// record appends an error, evicting the oldest entry once full.
func (r *errorRing) record(err error) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = err
	r.next++
	if r.next == len(r.entries) {
		r.next = 0
		r.full = true
	}
}

// reset discards all recorded errors.
func (r *errorRing) reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		r.entries[i] = nil
	}
	r.next = 0
	r.full = false
}

// recent returns recorded errors, oldest first.
func (r *errorRing) recent() []error {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full && r.next == 0 {
		return nil
	}
	if !r.full {
		out := make([]error, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]error, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
