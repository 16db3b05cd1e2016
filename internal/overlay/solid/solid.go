package solid

import (
	"math"
	"sync"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

type Color struct{ R, G, B byte }

// Solid paints the colour channels of every patched fixture with one
// colour. An optional PulseHz modulates brightness, which is handy for
// checking that a layer is live.
type Solid struct {
	name string
	p    fixture.Provider

	mu      sync.Mutex
	c       Color
	pulseHz float64
	t       float64
}

func New(name string, p fixture.Provider, c Color) *Solid { return &Solid{name: name, p: p, c: c} }

func (s *Solid) Name() string { return s.name }

func (s *Solid) Presets() []string { return []string{"Red", "Green", "Blue", "White", "Black"} }

func (s *Solid) ApplyPreset(name string) bool {
	var c Color
	switch name {
	case "Red":
		c = Color{R: 255}
	case "Green":
		c = Color{G: 255}
	case "Blue":
		c = Color{B: 255}
	case "White":
		c = Color{255, 255, 255}
	case "Black":
	default:
		return false
	}
	s.mu.Lock()
	s.c = c
	s.mu.Unlock()
	return true
}

// SetPulse sets the brightness modulation rate; 0 disables it.
func (s *Solid) SetPulse(hz float64) {
	s.mu.Lock()
	s.pulseHz = hz
	s.mu.Unlock()
}

func (s *Solid) Apply(_ *dmx.Frame, out *dmx.Frame, dt float64) {
	s.mu.Lock()
	s.t += dt
	scale := 1.0
	if s.pulseHz > 0 {
		scale = 0.5 + 0.5*math.Sin(2*math.Pi*s.pulseHz*s.t)
	}
	c := s.c
	s.mu.Unlock()
	if s.p == nil {
		return
	}

	for fx := 0; fx < s.p.Fixtures(); fx++ {
		for ch := 0; ch < s.p.ChannelCount(fx); ch++ {
			var v byte
			switch s.p.ChannelType(fx, ch) {
			case dmx.ColorRed:
				v = c.R
			case dmx.ColorGreen:
				v = c.G
			case dmx.ColorBlue:
				v = c.B
			default:
				continue
			}
			if a, ok := s.p.Address(fx, ch); ok {
				out.Set(a, byte(float64(v)*scale+0.5))
			}
		}
	}
}
