package watcher

import (
	"sync"
	"time"
)

// pendingCall is the one scheduled call of a key
type pendingCall struct {
	gen   uint64
	timer *time.Timer
}

// Debouncer delays calls per key. Scheduling a key again before its delay
// has elapsed supersedes the pending call, so at most one call per key is
// ever pending.
type Debouncer struct {
	mu       sync.Mutex
	pending  map[string]*pendingCall
	interval time.Duration
	gen      uint64
}

// NewDebouncer creates a debouncer that waits interval after the last
// Schedule of a key
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{
		pending:  make(map[string]*pendingCall),
		interval: interval,
	}
}

// Schedule runs fn once interval has passed without another Schedule for
// the same key. fn runs on its own goroutine.
func (d *Debouncer) Schedule(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}

	d.gen++
	gen := d.gen
	p := &pendingCall{gen: gen}
	p.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cur, ok := d.pending[key]
		// Stop cannot recall a timer that already fired
		if !ok || cur.gen != gen {
			d.mu.Unlock()
			return
		}
		delete(d.pending, key)
		d.mu.Unlock()

		fn()
	})
	d.pending[key] = p
}

// Cancel drops the pending call of key. It reports whether one was pending.
func (d *Debouncer) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending reports whether a call is scheduled for key
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Len returns the number of keys with a pending call
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop cancels every pending call
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}
