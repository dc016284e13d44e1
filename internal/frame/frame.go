// Package frame provides the display-refresh scheduler: callbacks requested
// with RequestFrame run once on the next tick, one at a time, and a request
// made while a tick is running waits for the following tick.
package frame

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Handle identifies a pending frame request. The zero Handle is never issued.
type Handle uint64

// Scheduler runs one-shot callbacks on the next display refresh.
type Scheduler interface {
	RequestFrame(fn func()) Handle
	CancelFrame(h Handle)
}

// Ticker is a Scheduler driven by a fixed refresh interval. Without Run it
// only advances when Tick is called, which is how tests drive it.
type Ticker struct {
	interval time.Duration

	mu      sync.Mutex
	next    Handle
	pending map[Handle]func()
}

// NewTicker returns a scheduler refreshing fps times per second.
func NewTicker(fps int) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	return &Ticker{
		interval: time.Second / time.Duration(fps),
		pending:  make(map[Handle]func()),
	}
}

func (t *Ticker) Interval() time.Duration { return t.interval }

func (t *Ticker) RequestFrame(fn func()) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	t.pending[t.next] = fn
	return t.next
}

func (t *Ticker) CancelFrame(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, h)
}

// Pending reports how many requests are waiting for the next tick.
func (t *Ticker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Tick runs every request that was pending when it started, in request
// order. A request cancelled by an earlier callback in the same tick does
// not run.
func (t *Ticker) Tick() {
	t.mu.Lock()
	due := make([]Handle, 0, len(t.pending))
	for h := range t.pending {
		due = append(due, h)
	}
	t.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })

	for _, h := range due {
		t.mu.Lock()
		fn, ok := t.pending[h]
		delete(t.pending, h)
		t.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Run ticks until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			t.Tick()
		}
	}
}
