package domain

import (
	"sync/atomic"
	"time"
)

// Clock supplies the monotonic logical clock ("slot") used for rate windows,
// expiry deadlines, and timestamps. It is injected rather than read from
// ambient time so tests can advance slots deterministically.
type Clock interface {
	Slot() uint64
}

// WallClock maps wall time onto slots at a fixed interval.
type WallClock struct {
	epoch    time.Time
	interval time.Duration
}

// NewWallClock returns a clock ticking once per interval, starting now.
func NewWallClock(interval time.Duration) *WallClock {
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	return &WallClock{epoch: time.Now(), interval: interval}
}

func (c *WallClock) Slot() uint64 {
	return uint64(time.Since(c.epoch) / c.interval)
}

// ManualClock is a test clock advanced by hand.
type ManualClock struct {
	slot atomic.Uint64
}

func (c *ManualClock) Slot() uint64 { return c.slot.Load() }

// Set moves the clock to an absolute slot.
func (c *ManualClock) Set(slot uint64) { c.slot.Store(slot) }

// Advance moves the clock forward by n slots.
func (c *ManualClock) Advance(n uint64) { c.slot.Add(n) }
