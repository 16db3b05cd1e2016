package wave

import (
	"math"
	"sync"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

type Shape string

const (
	Sine     Shape = "sine"
	Triangle Shape = "triangle"
	Square   Shape = "square"
	Saw      Shape = "saw"
	Smooth   Shape = "smooth" // triangle through smootherstep
)

// Params shape the modulation. Depth 1 swings a channel by ±127.5 around
// its manual value.
type Params struct {
	Shape  Shape
	Target dmx.ChannelType // coarse type; pan/tilt also drive their fine channel
	RateHz float64
	Depth  float64
	Spread float64 // phase offset across the selected fixtures, 0..1
	Mask   uint32  // fixtures to modulate; 0 selects all
}

// Wave modulates one channel type across fixtures with a periodic shape.
// Params:
//   - Spread 0 moves every fixture together, 1 spreads one full cycle
//     across them (a chase).
type Wave struct {
	name string
	p    fixture.Provider

	mu     sync.Mutex
	params Params
	phase  float64
}

func New(name string, p fixture.Provider, params Params) *Wave {
	return &Wave{name: name, p: p, params: params}
}

func (w *Wave) Name() string { return w.name }

func (w *Wave) Presets() []string { return []string{"Breathe", "Chase", "Sweep", "Strobe"} }

func (w *Wave) ApplyPreset(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := &w.params
	switch name {
	case "Breathe":
		*p = Params{Shape: Smooth, Target: dmx.Intensity, RateHz: 0.25, Depth: 0.5, Mask: p.Mask}
	case "Chase":
		*p = Params{Shape: Sine, Target: dmx.Intensity, RateHz: 1, Depth: 1, Spread: 1, Mask: p.Mask}
	case "Sweep":
		*p = Params{Shape: Triangle, Target: dmx.Pan, RateHz: 0.2, Depth: 0.4, Spread: 0.5, Mask: p.Mask}
	case "Strobe":
		*p = Params{Shape: Square, Target: dmx.Intensity, RateHz: 8, Depth: 1, Mask: p.Mask}
	default:
		return false
	}
	return true
}

func (w *Wave) SetParams(p Params) {
	w.mu.Lock()
	w.params = p
	w.mu.Unlock()
}

func (w *Wave) Params() Params {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.params
}

// Eval returns the shape at phase x in [0,1), ranging -1..1.
func Eval(s Shape, x float64) float64 {
	switch s {
	case Triangle:
		return triangle(x)
	case Square:
		if x < 0.5 {
			return 1
		}
		return -1
	case Saw:
		return 2*x - 1
	case Smooth:
		u := (triangle(x) + 1) / 2
		return 2*smootherstep(u) - 1
	default:
		return math.Sin(x * 2 * math.Pi)
	}
}

func triangle(x float64) float64 {
	if x < 0.5 {
		return 4*x - 1
	}
	return 3 - 4*x
}

// smootherstep 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

func fineOf(t dmx.ChannelType) (dmx.ChannelType, bool) {
	switch t {
	case dmx.Pan:
		return dmx.PanFine, true
	case dmx.Tilt:
		return dmx.TiltFine, true
	}
	return 0, false
}

// Apply advances the phase by dt seconds and writes modulated values
// derived from manual into out.
func (w *Wave) Apply(manual, out *dmx.Frame, dt float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pr := w.params
	w.phase += pr.RateHz * dt
	w.phase -= math.Floor(w.phase)
	if w.p == nil || pr.Depth <= 0 {
		return
	}

	var sel []int
	for fx := 0; fx < w.p.Fixtures(); fx++ {
		if pr.Mask != 0 && pr.Mask&(1<<uint(fx)) == 0 {
			continue
		}
		if w.p.ChannelCount(fx) > 0 {
			sel = append(sel, fx)
		}
	}
	fineType, hasFine := fineOf(pr.Target)
	for i, fx := range sel {
		x := w.phase + pr.Spread*float64(i)/float64(len(sel))
		x -= math.Floor(x)
		mod := Eval(pr.Shape, x) * pr.Depth

		var fine dmx.Address
		n := w.p.ChannelCount(fx)
		if hasFine {
			for ch := 0; ch < n; ch++ {
				if w.p.ChannelType(fx, ch) == fineType {
					fine, _ = w.p.Address(fx, ch)
					break
				}
			}
		}
		for ch := 0; ch < n; ch++ {
			if w.p.ChannelType(fx, ch) != pr.Target {
				continue
			}
			a, ok := w.p.Address(fx, ch)
			if !ok {
				continue
			}
			if fine.Valid() {
				base := int(manual.Get(a))<<8 | int(manual.Get(fine))
				v := clamp(base+int(mod*32767.5), 0xFFFF)
				out.Set(a, byte(v>>8))
				out.Set(fine, byte(v))
				continue
			}
			out.Set(a, byte(clamp(int(manual.Get(a))+int(mod*127.5), 255)))
		}
	}
}

func clamp(v, hi int) int {
	if v < 0 {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}
