package search

import (
	"context"
	"sync"
	"time"

	"github.com/etribe/portal/internal/domain/search"
)

// DefaultDebounce is the idle time between the last input and the search.
const DefaultDebounce = 300 * time.Millisecond

// SearchFunc runs one search
type SearchFunc func(ctx context.Context, query string) ([]search.Result, error)

// Outcome is the result of a debounced search.
type Outcome struct {
	Seq     uint64          `json:"seq"`
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
	Err     error           `json:"-"`
}

// Debouncer runs a search once input has been idle for the delay. Each Input
// supersedes everything before it: a pending timer is reset, an in-flight
// search is cancelled, and results of a superseded search are never delivered.
type Debouncer struct {
	delay   time.Duration
	run     SearchFunc
	deliver func(Outcome)

	// deliverMu is held across the currency check and deliver, and by Input
	// and Stop, so a superseded outcome can never be delivered.
	deliverMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	stopped bool
}

// NewDebouncer creates a debouncer. deliver is called from a background
// goroutine, at most once per surviving input. It must not call Input or Stop.
func NewDebouncer(delay time.Duration, run SearchFunc, deliver func(Outcome)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, run: run, deliver: deliver}
}

// Input records a new query and returns its sequence number. ctx bounds the
// eventual search.
func (d *Debouncer) Input(ctx context.Context, query string) uint64 {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return d.seq
	}

	d.seq++
	seq := d.seq
	d.supersedeLocked()

	d.timer = time.AfterFunc(d.delay, func() { d.fire(ctx, seq, query) })
	return seq
}

func (d *Debouncer) fire(parent context.Context, seq uint64, query string) {
	d.mu.Lock()
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.mu.Unlock()
	defer cancel()

	results, err := d.run(ctx, query)

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.mu.Lock()
	current := !d.stopped && seq == d.seq
	d.mu.Unlock()
	if !current {
		return
	}
	d.deliver(Outcome{Seq: seq, Query: query, Results: results, Err: err})
}

// supersedeLocked stops the pending timer and cancels an in-flight search.
func (d *Debouncer) supersedeLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// Stop cancels pending work; later inputs are ignored. Once Stop returns
// nothing more is delivered.
func (d *Debouncer) Stop() {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.supersedeLocked()
}
