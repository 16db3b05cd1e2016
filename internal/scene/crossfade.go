package scene

import (
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
)

// Crossfade interpolates from one frame toward another. Snap channels hold
// their starting value until the halfway point and then jump.
type Crossfade struct {
	active   bool
	from, to dmx.Frame
	snap     [dmx.Channels]bool
	duration time.Duration
	start    time.Time
	target   int
}

// Start begins a crossfade, discarding any in progress. A zero duration
// leaves the crossfade inactive; the caller assigns the frame directly.
// target is the scene slot, or -1 when the destination is not stored.
func (e *Engine) Start(from, to *dmx.Frame, d time.Duration, target int, now time.Time) {
	if d <= 0 {
		e.cf.active = false
		return
	}
	e.cf = Crossfade{
		active:   true,
		from:     *from,
		to:       *to,
		duration: d,
		start:    now,
		target:   target,
	}
	e.snapMask(&e.cf.snap)
}

// StartScene crossfades from the given frame to a stored scene. It reports
// false when the slot is empty.
func (e *Engine) StartScene(slot int, from *dmx.Frame, d time.Duration, now time.Time) bool {
	sc, ok := e.Get(slot)
	if !ok {
		return false
	}
	e.Start(from, &sc.Frame, d, slot, now)
	return true
}

func (e *Engine) snapMask(mask *[dmx.Channels]bool) {
	if e.fixtures == nil {
		return
	}
	for fx := 0; fx < e.fixtures.Fixtures(); fx++ {
		n := e.fixtures.ChannelCount(fx)
		for ch := 0; ch < n; ch++ {
			if !e.fixtures.ChannelType(fx, ch).Snap() {
				continue
			}
			if a, ok := e.fixtures.Address(fx, ch); ok {
				mask[a.Index()] = true
			}
		}
	}
}

// Update writes the interpolated frame into dst. It returns true whenever
// dst was written, including the single final call that lands on the target.
func (e *Engine) Update(now time.Time, dst *dmx.Frame) bool {
	cf := &e.cf
	if !cf.active {
		return false
	}
	elapsed := now.Sub(cf.start)
	if elapsed >= cf.duration {
		*dst = cf.to
		cf.active = false
		return true
	}
	p := progress(elapsed, cf.duration)
	for i := range dst {
		if cf.snap[i] {
			if p >= 0.5 {
				dst[i] = cf.to[i]
			} else {
				dst[i] = cf.from[i]
			}
			continue
		}
		diff := int(cf.to[i]) - int(cf.from[i])
		dst[i] = byte(int(cf.from[i]) + int(float64(diff)*p))
	}
	return true
}

func progress(elapsed, d time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= d {
		return 1
	}
	return float64(elapsed) / float64(d)
}

// Active reports whether a crossfade is running.
func (e *Engine) Active() bool { return e.cf.active }

// Progress returns 0..1, or 1 when no crossfade is running.
func (e *Engine) Progress(now time.Time) float64 {
	if !e.cf.active {
		return 1
	}
	return progress(now.Sub(e.cf.start), e.cf.duration)
}

// Target returns the scene slot being faded to, or -1.
func (e *Engine) Target() int {
	if !e.cf.active {
		return -1
	}
	return e.cf.target
}

func (e *Engine) Cancel() { e.cf.active = false }
