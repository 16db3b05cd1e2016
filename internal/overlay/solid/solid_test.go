package solid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

func rgbPatch(t *testing.T) *fixture.Patch {
	t.Helper()
	p := fixture.NewPatch()
	require.NoError(t, p.AddProfile(fixture.Profile{ID: "rgb", Channels: []fixture.ChannelDef{
		{Type: dmx.Intensity}, {Type: dmx.ColorRed}, {Type: dmx.ColorGreen}, {Type: dmx.ColorBlue},
	}}))
	require.NoError(t, p.Set(0, fixture.Entry{Profile: "rgb", Address: 1}))
	require.NoError(t, p.Set(3, fixture.Entry{Profile: "rgb", Address: 101}))
	return p
}

func TestSolidPaintsColourChannels(t *testing.T) {
	s := New("solid", rgbPatch(t), Color{R: 10, G: 20, B: 30})
	var manual, out dmx.Frame
	out[0] = 77
	s.Apply(&manual, &out, 0.02)

	assert.Equal(t, []byte{77, 10, 20, 30}, out[0:4], "intensity is left alone")
	assert.Equal(t, []byte{0, 10, 20, 30}, out[100:104])
}

func TestSolidPresets(t *testing.T) {
	s := New("solid", rgbPatch(t), Color{})
	assert.Equal(t, []string{"Red", "Green", "Blue", "White", "Black"}, s.Presets())
	require.True(t, s.ApplyPreset("Blue"))
	assert.False(t, s.ApplyPreset("Mauve"))

	var out dmx.Frame
	s.Apply(nil, &out, 0)
	assert.Equal(t, []byte{0, 0, 255}, out[1:4])
}

func TestSolidPulse(t *testing.T) {
	s := New("solid", rgbPatch(t), Color{R: 200})
	s.SetPulse(1)
	var out dmx.Frame
	s.Apply(nil, &out, 0.75) // sin(1.5π) = -1
	assert.Equal(t, byte(0), out[1])
	s.Apply(nil, &out, 0.5) // sin(2.5π) = 1
	assert.Equal(t, byte(200), out[1])
}
