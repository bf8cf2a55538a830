package eta

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestEstimator_NoSamples(t *testing.T) {
	e := New(10, 5)
	if e.ETA() != nil {
		t.Error("Expected nil ETA before any sample")
	}
}

func TestEstimator_Mean(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(10, 4, WithClock(clock.Now))
	e.Start()

	clock.Advance(2 * time.Second)
	e.Tick()
	clock.Advance(4 * time.Second)
	e.Tick()

	eta := e.ETA()
	if eta == nil {
		t.Fatal("Expected ETA after two samples")
	}
	// mean 3s, 2 remaining
	if *eta != 6*time.Second {
		t.Errorf("ETA = %v, want 6s", *eta)
	}
	if e.Current() != 2 {
		t.Errorf("Current = %d, want 2", e.Current())
	}
}

func TestEstimator_RollingWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(2, 10, WithClock(clock.Now))
	e.Start()

	for _, d := range []time.Duration{10 * time.Second, time.Second, 3 * time.Second} {
		clock.Advance(d)
		e.Tick()
	}

	// window holds 1s and 3s, 7 remaining
	eta := e.ETA()
	if eta == nil || *eta != 14*time.Second {
		t.Errorf("ETA = %v, want 14s", eta)
	}
}

func TestEstimator_FirstTickStartsClock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(5, 3, WithClock(clock.Now))

	e.Tick()
	if e.ETA() != nil || e.Current() != 0 {
		t.Error("First tick without Start should only start the clock")
	}

	clock.Advance(time.Second)
	e.Tick()
	if eta := e.ETA(); eta == nil || *eta != 2*time.Second {
		t.Errorf("ETA = %v, want 2s", eta)
	}
}

func TestEstimator_ZeroTotal(t *testing.T) {
	e := New(0, 0)
	e.Start()
	e.Tick()
	if e.ETA() != nil {
		t.Error("Expected nil ETA for an empty batch")
	}
	if e.Current() != 0 {
		t.Errorf("Current = %d, want 0", e.Current())
	}
}

func TestEstimator_Complete(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	e := New(5, 1, WithClock(clock.Now))
	e.Start()
	clock.Advance(time.Second)
	e.Tick()

	if e.ETA() != nil {
		t.Error("Expected nil ETA once all items are done")
	}
}
