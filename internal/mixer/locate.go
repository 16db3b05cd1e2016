package mixer

import (
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

// locateValue is the identification look for a channel type.
func locateValue(t dmx.ChannelType) (byte, bool) {
	switch t {
	case dmx.Intensity, dmx.ColorRed, dmx.ColorGreen, dmx.ColorBlue, dmx.ColorWhite, dmx.Zoom:
		return 255, true
	case dmx.Pan, dmx.Tilt, dmx.Focus:
		return 128, true
	case dmx.Gobo, dmx.Prism:
		return 0, true
	}
	return 0, false
}

// Locate drives fixture fx to a recognisable look, or restores the values
// it had before.
func (e *Engine) Locate(fx int, on bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || e.fixtures == nil || fx < 0 || fx >= fixture.MaxFixtures {
		return false
	}
	n := e.fixtures.ChannelCount(fx)
	if n == 0 {
		return false
	}
	if n > fixture.MaxChannels {
		n = fixture.MaxChannels
	}
	st := &e.locate[fx]
	switch {
	case on && !st.active:
		e.pushUndo()
		e.scenes.Cancel()
		for ch := 0; ch < n; ch++ {
			a, ok := e.fixtures.Address(fx, ch)
			if !ok {
				continue
			}
			st.saved[ch] = e.manual.Get(a)
			if v, ok := locateValue(e.fixtures.ChannelType(fx, ch)); ok {
				e.manual.Set(a, v)
			}
		}
		st.active = true
	case !on && st.active:
		for ch := 0; ch < n; ch++ {
			if a, ok := e.fixtures.Address(fx, ch); ok {
				e.manual.Set(a, st.saved[ch])
			}
		}
		st.active = false
	default:
		return false
	}
	e.markDirty()
	return true
}

// Located reports whether fx is currently located.
func (e *Engine) Located(fx int) bool {
	if fx < 0 || fx >= fixture.MaxFixtures {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locate[fx].active
}

func (e *Engine) locateMask() uint32 {
	var m uint32
	for i := range e.locate {
		if e.locate[i].active {
			m |= 1 << i
		}
	}
	return m
}
