package testutil

import "sync"

// Tracer records collaborator calls in order so tests can assert on
// sequencing and short-circuiting.
//
// Thread-safety: all methods are safe for concurrent use.
type Tracer struct {
	mu    sync.Mutex
	calls []string
}

// Record appends a call.
func (t *Tracer) Record(call string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, call)
}

// Calls returns a copy of the recorded calls.
func (t *Tracer) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// Has reports whether call was recorded.
func (t *Tracer) Has(call string) bool {
	return t.Index(call) >= 0
}

// Index returns the position of the first matching call, or -1.
func (t *Tracer) Index(call string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.calls {
		if c == call {
			return i
		}
	}
	return -1
}
