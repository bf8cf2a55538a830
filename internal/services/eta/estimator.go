// Package eta predicts remaining batch time from recent per-item durations.
package eta

import (
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// DefaultWindow is the number of recent samples averaged.
const DefaultWindow = 100

// Clock returns the current time.
type Clock func() time.Time

// Estimator keeps a rolling window of item durations.
type Estimator struct {
	window  int
	total   int
	current int
	samples []float64 // seconds, ring buffer
	next    int
	last    time.Time
	started bool
	now     Clock
	mu      sync.Mutex
}

// Option customizes an Estimator.
type Option func(*Estimator)

// WithClock replaces time.Now.
func WithClock(clock Clock) Option {
	return func(e *Estimator) {
		e.now = clock
	}
}

// New creates an Estimator for total items. A window <= 0 uses DefaultWindow.
func New(window, total int, opts ...Option) *Estimator {
	if window <= 0 {
		window = DefaultWindow
	}
	e := &Estimator{
		window:  window,
		total:   total,
		samples: make([]float64, 0, window),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start marks the beginning of the first item.
func (e *Estimator) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = e.now()
	e.started = true
}

// Tick records one completed item. Without a prior Start the first tick only starts the clock.
func (e *Estimator) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if !e.started {
		e.last = now
		e.started = true
		return
	}

	elapsed := now.Sub(e.last).Seconds()
	e.last = now
	if e.current < e.total {
		e.current++
	}

	if len(e.samples) < e.window {
		e.samples = append(e.samples, elapsed)
	} else {
		e.samples[e.next] = elapsed
	}
	e.next = (e.next + 1) % e.window
}

// Current returns the number of completed items.
func (e *Estimator) Current() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// ETA returns mean(window) * remaining, or nil until a sample exists or when nothing remains.
func (e *Estimator) ETA() *time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := e.total - e.current
	if len(e.samples) == 0 || remaining <= 0 {
		return nil
	}

	mean, err := stats.Mean(e.samples)
	if err != nil {
		return nil
	}

	eta := time.Duration(mean * float64(remaining) * float64(time.Second))
	return &eta
}
