package mixer

import (
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

// Operator edits below are rejected while the remote feed is authoritative.

// SetChannel writes one manual channel.
func (e *Engine) SetChannel(a dmx.Address, v byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || !a.Valid() {
		return false
	}
	e.scenes.Cancel()
	e.pushUndo()
	e.manual.Set(a, v)
	e.markDirty()
	return true
}

// SetFixtureChannel writes channel ch of fixture fx.
func (e *Engine) SetFixtureChannel(fx, ch int, v byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || e.fixtures == nil {
		return false
	}
	a, ok := e.fixtures.Address(fx, ch)
	if !ok {
		return false
	}
	e.scenes.Cancel()
	e.pushUndo()
	e.manual.Set(a, v)
	e.markDirty()
	return true
}

// SetGroupChannel writes channel ch of every fixture in group.
func (e *Engine) SetGroupChannel(group, ch int, v byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || e.fixtures == nil {
		return false
	}
	var addrs []dmx.Address
	for _, fx := range e.fixtures.InGroup(group) {
		if a, ok := e.fixtures.Address(fx, ch); ok {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return false
	}
	e.scenes.Cancel()
	e.pushUndo()
	for _, a := range addrs {
		e.manual.Set(a, v)
	}
	e.markDirty()
	return true
}

// SetFixtureColor writes the first red, green and blue channels of fx.
func (e *Engine) SetFixtureColor(fx int, r, g, b byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || e.fixtures == nil {
		return false
	}
	want := map[dmx.ChannelType]byte{dmx.ColorRed: r, dmx.ColorGreen: g, dmx.ColorBlue: b}
	var wrote bool
	n := e.fixtures.ChannelCount(fx)
	for ch := 0; ch < n && len(want) > 0; ch++ {
		t := e.fixtures.ChannelType(fx, ch)
		v, ok := want[t]
		if !ok {
			continue
		}
		a, ok := e.fixtures.Address(fx, ch)
		if !ok {
			continue
		}
		if !wrote {
			e.scenes.Cancel()
			e.pushUndo()
			wrote = true
		}
		e.manual.Set(a, v)
		delete(want, t)
	}
	if wrote {
		e.markDirty()
	}
	return wrote
}

// SetFixtureIntensity writes every intensity channel of fx.
func (e *Engine) SetFixtureIntensity(fx int, v byte) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || e.fixtures == nil {
		return false
	}
	var wrote bool
	n := e.fixtures.ChannelCount(fx)
	for ch := 0; ch < n; ch++ {
		if e.fixtures.ChannelType(fx, ch) != dmx.Intensity {
			continue
		}
		a, ok := e.fixtures.Address(fx, ch)
		if !ok {
			continue
		}
		if !wrote {
			e.scenes.Cancel()
			e.pushUndo()
			wrote = true
		}
		e.manual.Set(a, v)
	}
	if wrote {
		e.markDirty()
	}
	return wrote
}

func (e *Engine) SetMasterDimmer(v uint8) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote {
		return false
	}
	e.master = v
	e.markDirty()
	return true
}

func (e *Engine) SetGroupDimmer(group int, v uint8) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote || group < 0 || group >= fixture.MaxGroups {
		return false
	}
	e.groups[group] = v
	e.markDirty()
	return true
}

// GroupDimmer returns the level of group, or 255 when out of range.
func (e *Engine) GroupDimmer(group int) uint8 {
	if group < 0 || group >= fixture.MaxGroups {
		return 255
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.groups[group]
}

// Blackout toggles smart blackout. Allowed in every mode.
func (e *Engine) Blackout(on bool) {
	e.mu.Lock()
	e.blackout = on
	e.mu.Unlock()
}

// SetMasterSpeed scales overlay time, clamped to 0.1..4.0. It returns the
// applied value.
func (e *Engine) SetMasterSpeed(s float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.masterSpeed = clampSpeed(s)
	return e.masterSpeed
}

func clampSpeed(s float64) float64 {
	if s < MinMasterSpeed {
		return MinMasterSpeed
	}
	if s > MaxMasterSpeed {
		return MaxMasterSpeed
	}
	return s
}
