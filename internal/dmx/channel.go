package dmx

import (
	"fmt"
	"strings"
)

// ChannelType is the semantic role of a fixture channel.
type ChannelType uint8

const (
	Generic ChannelType = iota
	Intensity
	ColorRed
	ColorGreen
	ColorBlue
	ColorWhite
	ColorAmber
	ColorUV
	Pan
	PanFine
	Tilt
	TiltFine
	Speed
	Gobo
	Shutter
	Preset
	Prism
	Focus
	Zoom
	Strobe
	Macro
	ColorLime
	ColorCyan
	CCT
	ColorWarmWhite
)

var typeNames = map[ChannelType]string{
	Generic:        "generic",
	Intensity:      "intensity",
	ColorRed:       "red",
	ColorGreen:     "green",
	ColorBlue:      "blue",
	ColorWhite:     "white",
	ColorAmber:     "amber",
	ColorUV:        "uv",
	Pan:            "pan",
	PanFine:        "pan_fine",
	Tilt:           "tilt",
	TiltFine:       "tilt_fine",
	Speed:          "speed",
	Gobo:           "gobo",
	Shutter:        "shutter",
	Preset:         "preset",
	Prism:          "prism",
	Focus:          "focus",
	Zoom:           "zoom",
	Strobe:         "strobe",
	Macro:          "macro",
	ColorLime:      "lime",
	ColorCyan:      "cyan",
	CCT:            "cct",
	ColorWarmWhite: "warm_white",
}

func (t ChannelType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// ParseChannelType maps a profile type name to a ChannelType.
// Unknown names map to Generic with an error.
func ParseChannelType(s string) (ChannelType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	switch s {
	case "dimmer":
		return Intensity, nil
	case "r":
		return ColorRed, nil
	case "g":
		return ColorGreen, nil
	case "b":
		return ColorBlue, nil
	case "w":
		return ColorWhite, nil
	case "color_wheel", "colorwheel":
		return Preset, nil
	}
	return Generic, fmt.Errorf("unknown channel type %q", s)
}

// Snap reports whether the type is a wheel/selector channel that must
// jump instead of fading.
func (t ChannelType) Snap() bool {
	switch t {
	case Gobo, Shutter, Prism, Macro, Preset:
		return true
	}
	return false
}

// Visible reports whether the type emits light and is zeroed by blackout.
func (t ChannelType) Visible() bool {
	switch t {
	case Intensity, ColorRed, ColorGreen, ColorBlue, ColorWhite, ColorAmber,
		ColorUV, ColorLime, ColorCyan, ColorWarmWhite, Strobe:
		return true
	}
	return false
}

// Position reports whether the type is a pan/tilt axis (coarse or fine).
func (t ChannelType) Position() bool {
	switch t {
	case Pan, PanFine, Tilt, TiltFine:
		return true
	}
	return false
}

// MarshalText encodes the type by name, used by config files.
func (t ChannelType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText decodes a type name.
func (t *ChannelType) UnmarshalText(b []byte) error {
	v, err := ParseChannelType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
