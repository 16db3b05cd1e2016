package mixer

import (
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

// PostPipeline groups the per-fixture output transforms; all are optional.
// They run in field order after the overlays.
type PostPipeline struct {
	Limits   func(out *dmx.Frame, p fixture.Provider)
	Dimmers  func(out *dmx.Frame, p fixture.Provider, master uint8, groups *[fixture.MaxGroups]uint8)
	Blackout func(out *dmx.Frame, p fixture.Provider)
}

func DefaultPost() PostPipeline {
	return PostPipeline{
		Limits:   ApplyPanTilt,
		Dimmers:  ApplyDimmers,
		Blackout: ApplyBlackout,
	}
}

// ApplyPanTilt inverts and range-maps pan/tilt channels. Fine channels are
// only inverted.
func ApplyPanTilt(out *dmx.Frame, p fixture.Provider) {
	for fx := 0; fx < p.Fixtures(); fx++ {
		lim := p.Limits(fx)
		if !lim.Active() {
			continue
		}
		n := p.ChannelCount(fx)
		for ch := 0; ch < n; ch++ {
			a, ok := p.Address(fx, ch)
			if !ok {
				continue
			}
			i := a.Index()
			switch p.ChannelType(fx, ch) {
			case dmx.Pan:
				out[i] = remap(out[i], lim.InvertPan, lim.PanMin, lim.PanMax)
			case dmx.PanFine:
				if lim.InvertPan {
					out[i] = 255 - out[i]
				}
			case dmx.Tilt:
				out[i] = remap(out[i], lim.InvertTilt, lim.TiltMin, lim.TiltMax)
			case dmx.TiltFine:
				if lim.InvertTilt {
					out[i] = 255 - out[i]
				}
			}
		}
	}
}

func remap(v byte, invert bool, lo, hi uint8) byte {
	if invert {
		v = 255 - v
	}
	if lo == 0 && hi == 255 {
		return v
	}
	r := int(lo) + int(v)*(int(hi)-int(lo))/255
	if r < 0 {
		r = 0
	} else if r > 255 {
		r = 255
	}
	return byte(r)
}

// ApplyDimmers scales intensity channels by the lowest dimmer among the
// fixture's groups, then by master. A factor of 255 is skipped, so full
// dimmers leave the frame untouched.
func ApplyDimmers(out *dmx.Frame, p fixture.Provider, master uint8, groups *[fixture.MaxGroups]uint8) {
	if master == 255 && allFull(groups) {
		return
	}
	for fx := 0; fx < p.Fixtures(); fx++ {
		n := p.ChannelCount(fx)
		if n == 0 {
			continue
		}
		g := groupLevel(p.GroupMask(fx), groups)
		if g == 255 && master == 255 {
			continue
		}
		for ch := 0; ch < n; ch++ {
			if p.ChannelType(fx, ch) != dmx.Intensity {
				continue
			}
			a, ok := p.Address(fx, ch)
			if !ok {
				continue
			}
			v := int(out[a.Index()])
			if g < 255 {
				v = v * int(g) / 255
			}
			if master < 255 {
				v = v * int(master) / 255
			}
			out[a.Index()] = byte(v)
		}
	}
}

func allFull(groups *[fixture.MaxGroups]uint8) bool {
	for _, g := range groups {
		if g < 255 {
			return false
		}
	}
	return true
}

func groupLevel(mask uint8, groups *[fixture.MaxGroups]uint8) uint8 {
	lvl := uint8(255)
	for g := 0; g < fixture.MaxGroups; g++ {
		if mask&(1<<g) != 0 && groups[g] < lvl {
			lvl = groups[g]
		}
	}
	return lvl
}

// ApplyBlackout zeroes every light-emitting channel and leaves position,
// beam and wheel channels alone.
func ApplyBlackout(out *dmx.Frame, p fixture.Provider) {
	for fx := 0; fx < p.Fixtures(); fx++ {
		n := p.ChannelCount(fx)
		for ch := 0; ch < n; ch++ {
			if !p.ChannelType(fx, ch).Visible() {
				continue
			}
			if a, ok := p.Address(fx, ch); ok {
				out[a.Index()] = 0
			}
		}
	}
}
