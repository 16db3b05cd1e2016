package app

import (
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

// Event is something a simulation does at an offset from its start.
type Event struct {
	At time.Duration
	Do func(eng *mixer.Engine)
}

// Conductor steps a core on a virtual clock, as fast as it can. Events run
// before the first tick at or after their offset and must be sorted by At.
type Conductor struct {
	Core   *Core
	FPS    int
	Events []Event
	// Frame, when set, sees every tick.
	Frame func(at time.Duration, res mixer.TickResult)
}

// Run simulates d starting at start and returns the number of ticks.
func (c *Conductor) Run(start time.Time, d time.Duration) int {
	fps := c.FPS
	if fps <= 0 {
		fps = 40
	}
	dt := time.Second / time.Duration(fps)
	next := 0
	ticks := 0
	for at := dt; at <= d; at += dt {
		for next < len(c.Events) && c.Events[next].At <= at {
			c.Events[next].Do(c.Core.Eng)
			next++
		}
		res := c.Core.Step(start.Add(at))
		ticks++
		if c.Frame != nil {
			c.Frame(at, res)
		}
	}
	return ticks
}
