package mixer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

func TestDimmersAtFullAreIdentity(t *testing.T) {
	p := patchOf(t, []dmx.ChannelType{dmx.Intensity, dmx.Intensity}, fixture.Entry{Address: 1, Groups: 0xFF})
	groups := [fixture.MaxGroups]uint8{255, 255, 255, 255, 255, 255, 255, 255}
	var out dmx.Frame
	for v := 0; v < 256; v++ {
		out[0], out[1] = byte(v), byte(255-v)
		ApplyDimmers(&out, p, 255, &groups)
		assert.Equal(t, byte(v), out[0])
		assert.Equal(t, byte(255-v), out[1])
	}
}

func TestDimmerFormula(t *testing.T) {
	p := patchOf(t, []dmx.ChannelType{dmx.Intensity, dmx.ColorRed},
		fixture.Entry{Address: 1, Groups: 0b011},
		fixture.Entry{Address: 3})
	groups := [fixture.MaxGroups]uint8{200, 128, 10, 255, 255, 255, 255, 255}

	for _, tc := range []struct {
		name   string
		master uint8
	}{
		{"full master", 255},
		{"half master", 128},
		{"dark master", 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			for v := 0; v < 256; v++ {
				var out dmx.Frame
				out[0], out[1], out[2], out[3] = byte(v), byte(v), byte(v), byte(v)
				ApplyDimmers(&out, p, tc.master, &groups)

				grouped := v * 128 / 255 // lowest of groups 0 and 1
				want := grouped
				if tc.master < 255 {
					want = grouped * int(tc.master) / 255
				}
				assert.Equal(t, byte(want), out[0], "grouped intensity %d", v)
				assert.Equal(t, byte(v), out[1], "colour is never dimmed")

				ungrouped := v
				if tc.master < 255 {
					ungrouped = v * int(tc.master) / 255
				}
				assert.Equal(t, byte(ungrouped), out[2], "ungrouped intensity %d", v)
			}
		})
	}
}

func TestBlackoutMixedProfile(t *testing.T) {
	types := []dmx.ChannelType{dmx.Intensity, dmx.ColorRed, dmx.Pan, dmx.Gobo, dmx.Strobe, dmx.Tilt, dmx.ColorUV, dmx.ColorWarmWhite, dmx.Zoom}
	p := patchOf(t, types, fixture.Entry{Address: 1})
	e := localEngine(t, p)
	for ch := range types {
		require.True(t, e.SetFixtureChannel(0, ch, 200))
	}
	e.Blackout(true)
	res := e.Tick(t0.Add(3 * time.Second))
	assert.Equal(t, []byte{0, 0, 200, 200, 0, 200, 0, 0, 200}, res.Output[:len(types)])

	e.Blackout(false)
	res = e.Tick(t0.Add(4 * time.Second))
	assert.Equal(t, []byte{200, 200, 200, 200, 200, 200, 200, 200, 200}, res.Output[:len(types)])
	assert.Equal(t, byte(200), e.Manual()[0], "blackout never touches the manual frame")
}

func TestPanTiltLimits(t *testing.T) {
	types := []dmx.ChannelType{dmx.Pan, dmx.PanFine, dmx.Tilt, dmx.TiltFine, dmx.Intensity}
	lim := fixture.Limits{InvertPan: true, PanMax: 255, TiltMin: 64, TiltMax: 191}
	p := patchOf(t, types, fixture.Entry{Address: 1, Limits: &lim}, fixture.Entry{Address: 11})

	var out dmx.Frame
	copy(out[:], []byte{55, 10, 255, 10, 90})
	copy(out[10:], []byte{55, 10, 255, 10, 90})
	ApplyPanTilt(&out, p)

	assert.Equal(t, []byte{200, 245, 191, 10, 90}, out[:5])
	assert.Equal(t, []byte{55, 10, 255, 10, 90}, out[10:15], "full range is untouched")

	out[2] = 0
	ApplyPanTilt(&out, p)
	assert.Equal(t, byte(64), out[2])
}

func TestLimitsAndDimmersApplyToRemote(t *testing.T) {
	lim := fixture.Limits{InvertPan: true, PanMax: 255, TiltMax: 255}
	p := patchOf(t, []dmx.ChannelType{dmx.Intensity, dmx.Pan}, fixture.Entry{Address: 1, Limits: &lim})
	e := localEngine(t, p)
	require.True(t, e.SetMasterDimmer(128))
	require.True(t, e.SwitchToRemote())

	e.OnRemoteFrame([]byte{255, 0})
	res := e.Tick(t0.Add(5 * time.Second))
	assert.Equal(t, ModeRemote, res.Mode)
	assert.Equal(t, byte(128), res.Output[0])
	assert.Equal(t, byte(255), res.Output[1])
}

type recordingOverlay struct {
	calls int
	dt    float64
	apply func(manual, out *dmx.Frame)
}

func (o *recordingOverlay) Apply(manual, out *dmx.Frame, dt float64) {
	o.calls++
	o.dt = dt
	if o.apply != nil {
		o.apply(manual, out)
	}
}

func TestOverlayOrderAndRecovery(t *testing.T) {
	e := localEngine(t, nil)
	a, _ := dmx.NewAddress(2)
	e.SetChannel(a, 40)
	e.SetMasterSpeed(2)

	audio := &recordingOverlay{apply: func(_, out *dmx.Frame) { out[0] = 10 }}
	wave := &recordingOverlay{apply: func(manual, out *dmx.Frame) {
		out[0] = 20
		out[1] = manual[1] + 5
	}}
	shape := &recordingOverlay{apply: func(_, out *dmx.Frame) {
		out[2] = 99
		panic("shape broke")
	}}
	// registered out of order on purpose
	e.SetOverlay(OverlayShape, shape)
	e.SetOverlay(OverlayWave, wave)
	e.SetOverlay(OverlayAudio, audio)
	assert.False(t, e.SetOverlay(OverlaySlot(7), audio))

	res := e.Tick(t0.Add(2*time.Second + ms(100)))
	assert.Equal(t, byte(20), res.Output[0], "later slot wins")
	assert.Equal(t, byte(45), res.Output[1])
	assert.Equal(t, byte(0), res.Output[2], "panicking layer is discarded")
	assert.InDelta(t, 0.2, audio.dt, 1e-9, "dt scaled by master speed")
	assert.Equal(t, byte(40), e.Manual()[1], "overlays never write manual")

	e.Tick(t0.Add(2*time.Second + ms(100)))
	assert.InDelta(t, fallbackDT*2, audio.dt, 1e-9, "non-positive dt falls back")
	assert.Equal(t, 2, shape.calls, "panicking overlay still runs next tick")
}

func TestOverlaysSkippedInRemote(t *testing.T) {
	e := newEngine(nil)
	o := &recordingOverlay{apply: func(_, out *dmx.Frame) { out[0] = 1 }}
	e.SetOverlay(OverlayWave, o)
	res := e.Tick(t0.Add(ms(20)))
	assert.Equal(t, 0, o.calls)
	assert.Equal(t, byte(0), res.Output[0])
}

func TestPersistenceCycle(t *testing.T) {
	e := localEngine(t, nil)
	res := e.Tick(t0.Add(2*time.Second + ms(100)))
	require.False(t, res.Flush)
	res = e.Tick(t0.Add(3 * time.Second))
	require.True(t, res.Flush, "the switch at boot is older than the debounce")
	require.NotNil(t, res.Image)
	e.Flushed(res.Image, t0.Add(3*time.Second), nil)
	assert.False(t, e.State().Dirty)

	t1 := t0.Add(4 * time.Second)
	e.Tick(t1)
	a, _ := dmx.NewAddress(1)
	e.SetChannel(a, 12)
	require.NoError(t, e.SaveScene(3, "Look"))

	res = e.Tick(t1.Add(2 * time.Second))
	assert.False(t, res.Flush)
	res = e.Tick(t1.Add(3 * time.Second))
	require.True(t, res.Flush)
	img := res.Image
	assert.Equal(t, byte(12), img.Mixer.Manual[0])
	assert.Equal(t, "Look", img.Scenes[3].Name)
	assert.Nil(t, img.Cues)
	assert.False(t, e.Tick(t1.Add(3*time.Second+ms(20))).Flush, "one flush in flight at a time")

	e.Flushed(img, t1.Add(3*time.Second), errors.New("disk full"))
	assert.True(t, e.State().Dirty)
	assert.False(t, e.Tick(t1.Add(5*time.Second)).Flush)
	res = e.Tick(t1.Add(6 * time.Second))
	require.True(t, res.Flush, "retried after a debounce window")
	assert.Contains(t, res.Image.Scenes, 3, "failed scene is written again")

	e.Flushed(res.Image, t1.Add(6*time.Second), nil)
	assert.Nil(t, e.Shutdown(), "nothing left to write")
	e.SetChannel(a, 13)
	final := e.Shutdown()
	require.NotNil(t, final)
	assert.Equal(t, byte(13), final.Mixer.Manual[0])
}

func TestRestore(t *testing.T) {
	m := store.DefaultMixerState()
	m.Master = 90
	m.Groups[1] = 30
	m.Manual[4] = 44

	var snaps store.SnapshotFile
	snaps.Count, snaps.Head = 2, 2
	snaps.Records[0] = store.SnapshotRecord{Valid: true, Source: store.SourceRemote, Timestamp: 1700000000}
	snaps.Records[1] = store.SnapshotRecord{Valid: true, Source: store.SourceLocal, Timestamp: 1700000100}
	snaps.Records[1].Frame[0] = 5

	e := newEngine(nil)
	e.Restore(m, snaps, nil, sequenceOf(3))

	st := e.State()
	assert.Equal(t, uint8(90), st.Master)
	assert.Equal(t, uint8(30), st.Groups[1])
	assert.Equal(t, 2, st.Snapshots)
	assert.Equal(t, 3, st.CueCount)
	assert.Equal(t, -1, st.CueCurrent)
	assert.False(t, st.Dirty)
	assert.Equal(t, ModeRemote, st.Mode, "mode is never restored")
	assert.Equal(t, byte(44), e.Manual()[4])

	s, ok := e.Snapshot(0)
	require.True(t, ok)
	assert.Equal(t, byte(5), s.Frame[0])
	assert.Equal(t, SourceLocal, s.Source)
	assert.Equal(t, int64(1700000100), s.Timestamp.Unix())
}
