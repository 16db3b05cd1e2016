package store

import "time"

const (
	DefaultDebounce = 3 * time.Second
	DefaultMaxWait  = 10 * time.Second
)

// Governor decides when dirty state is written. A flush is due once
// Debounce has passed since the last change, or MaxWait since the state
// first became dirty, whichever comes first. It holds no lock; the owner
// serializes.
type Governor struct {
	Debounce time.Duration
	MaxWait  time.Duration

	dirty      bool
	inFlight   bool
	gen        uint64
	lastChange time.Time
	dirtySince time.Time
}

func NewGovernor(debounce, maxWait time.Duration) *Governor {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	return &Governor{Debounce: debounce, MaxWait: maxWait}
}

func (g *Governor) MarkDirty(now time.Time) {
	if !g.dirty {
		g.dirtySince = now
	}
	g.dirty = true
	g.gen++
	g.lastChange = now
}

func (g *Governor) Dirty() bool { return g.dirty }

// Due reports whether a flush should start now.
func (g *Governor) Due(now time.Time) bool {
	if !g.dirty || g.inFlight {
		return false
	}
	return now.Sub(g.lastChange) >= g.Debounce || now.Sub(g.dirtySince) >= g.MaxWait
}

// Begin marks a flush in flight and returns the generation it covers.
func (g *Governor) Begin() uint64 {
	g.inFlight = true
	return g.gen
}

// Flushed records a successful write of generation gen. Changes made while
// the write was in flight keep the state dirty, with a new max-wait window
// starting now.
func (g *Governor) Flushed(now time.Time, gen uint64) {
	g.inFlight = false
	if gen == g.gen {
		g.dirty = false
		return
	}
	g.dirtySince = now
}

// Failed keeps the state dirty and waits a full debounce window before
// the next attempt.
func (g *Governor) Failed(now time.Time) {
	g.inFlight = false
	g.lastChange = now
	g.dirtySince = now
}
