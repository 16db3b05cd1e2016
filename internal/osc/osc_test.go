package osc

import (
	"context"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

func engine(t *testing.T) *mixer.Engine {
	t.Helper()
	p := fixture.NewPatch()
	require.NoError(t, p.AddProfile(fixture.Profile{ID: "rgb", Channels: []fixture.ChannelDef{
		{Type: dmx.Intensity}, {Type: dmx.ColorRed}, {Type: dmx.ColorGreen}, {Type: dmx.ColorBlue},
	}}))
	require.NoError(t, p.Set(0, fixture.Entry{Profile: "rgb", Address: 1}))
	return mixer.New(mixer.Config{Start: time.Unix(1_700_000_000, 0)}, p)
}

func message(addr string, args ...interface{}) *osc.Message {
	m := osc.NewMessage(addr)
	for _, a := range args {
		m.Append(a)
	}
	return m
}

func TestHandleChannels(t *testing.T) {
	eng := engine(t)
	s := NewServer(eng)

	assert.False(t, s.Handle(message("/dmx/1", float32(1))), "remote mode rejects edits")
	require.True(t, eng.SwitchToLocal())

	assert.True(t, s.Handle(message("/dmx/20", float32(0.5))))
	assert.True(t, s.Handle(message("/dmx/21", float32(7))))
	assert.True(t, s.Handle(message("/fixture/0/dimmer", float32(1))))
	assert.True(t, s.Handle(message("/fixture/0/color", float32(1), float32(0), float32(-2))))

	m := eng.Manual()
	assert.Equal(t, byte(128), m[19])
	assert.Equal(t, byte(255), m[20], "clamped to 1")
	assert.Equal(t, []byte{255, 255, 0, 0}, m[0:4])
}

func TestHandleRejectsMalformed(t *testing.T) {
	eng := engine(t)
	require.True(t, eng.SwitchToLocal())
	s := NewServer(eng)

	for _, m := range []*osc.Message{
		message("/dmx/0", float32(1)),
		message("/dmx/513", float32(1)),
		message("/dmx/x", float32(1)),
		message("/dmx/1", "high"),
		message("/dmx/1"),
		message("/fixture/0/color", float32(1)),
		message("/fixture/-1/dimmer", float32(1)),
		message("/fixture/0/zoom", float32(1)),
		message("/nope"),
	} {
		assert.False(t, s.Handle(m), m.Address)
	}
	assert.Equal(t, dmx.Frame{}, eng.Manual())
}

func TestHandleMasterAndBlackout(t *testing.T) {
	eng := engine(t)
	require.True(t, eng.SwitchToLocal())
	s := NewServer(eng)

	require.True(t, s.Handle(message("/master", float32(0.2))))
	assert.Equal(t, uint8(51), eng.State().Master)

	require.True(t, s.Handle(message("/blackout", int32(1))))
	assert.True(t, eng.State().Blackout)
	require.True(t, s.Handle(message("/blackout", float32(0))))
	assert.False(t, eng.State().Blackout)
}

func TestHandleSceneCueUndo(t *testing.T) {
	eng := engine(t)
	require.True(t, eng.SwitchToLocal())
	s := NewServer(eng)

	assert.False(t, s.Handle(message("/scene/3")), "empty slot")
	assert.False(t, s.Handle(message("/cue/go")), "empty cue list")
	assert.False(t, s.Handle(message("/cue/sideways")))

	require.True(t, s.Handle(message("/dmx/1", float32(1))))
	require.NoError(t, eng.SaveScene(3, "full"))
	require.True(t, s.Handle(message("/dmx/1", float32(0))))
	assert.True(t, s.Handle(message("/scene/3")))
	assert.True(t, eng.State().SceneFading)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	s := NewServer(engine(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("server did not stop")
	}
}
