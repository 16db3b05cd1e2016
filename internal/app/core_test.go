package app

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/funtimes-dmxnode/internal/diagnostics"
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/driver/fake"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

var t0 = time.Unix(1_700_000_000, 0)

func openStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir, zerolog.Nop())
	require.NoError(t, err)
	return st, dir
}

func newEngine() *mixer.Engine {
	return mixer.New(mixer.Config{Start: t0}, fixture.NewPatch())
}

type diagLog struct{ got []diagnostics.Diagnostic }

func (d *diagLog) add(x diagnostics.Diagnostic) { d.got = append(d.got, x) }

func (d *diagLog) codes(code string) int {
	n := 0
	for _, x := range d.got {
		if x.Code == code {
			n++
		}
	}
	return n
}

func TestStepPersistsAndRestores(t *testing.T) {
	st, _ := openStore(t)
	eng := newEngine()
	c := NewCore(eng, st)

	require.True(t, eng.SwitchToLocal())
	require.True(t, eng.SetChannel(dmx.Address(5), 99))
	require.NoError(t, eng.SaveScene(2, "wash"))
	require.NoError(t, eng.AddCue(sequence.Cue{Scene: 2, FadeMs: 500, Label: "open"}))

	res := c.Step(t0.Add(time.Second))
	assert.False(t, res.Flush)
	res = c.Step(t0.Add(3 * time.Second))
	require.True(t, res.Flush)
	assert.False(t, eng.State().Dirty)

	back := newEngine()
	require.NoError(t, Restore(back, st))
	assert.Equal(t, byte(99), back.Manual()[4])
	sc, ok := back.Scene(2)
	require.True(t, ok)
	assert.Equal(t, "wash", sc.Name)
	require.Len(t, back.Cues().Cues, 1)
	assert.Equal(t, "open", back.Cues().Cues[0].Label)
	assert.Equal(t, 1, back.SnapshotCount())
}

func TestRestoreEmptyDirIsClean(t *testing.T) {
	st, _ := openStore(t)
	eng := newEngine()
	require.NoError(t, Restore(eng, st))
	s := eng.State()
	assert.Equal(t, uint8(255), s.Master)
	assert.Zero(t, s.Snapshots)
	assert.Zero(t, s.Scenes)
	assert.False(t, s.Dirty)
}

func TestRestoreCorruptFallsBack(t *testing.T) {
	st, dir := openStore(t)
	require.NoError(t, os.WriteFile(dir+"/mixer.bin", []byte{0x42, 0x00}, 0o644))
	eng := newEngine()
	err := Restore(eng, st)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrCorrupt)
	assert.Equal(t, uint8(255), eng.State().Master)
}

func TestPersistFailureStaysDirty(t *testing.T) {
	st, dir := openStore(t)
	var diags diagLog
	eng := newEngine()
	c := NewCore(eng, st, WithNotify(diags.add))

	require.True(t, eng.SwitchToLocal())
	require.NoError(t, os.RemoveAll(dir))

	res := c.Step(t0.Add(3 * time.Second))
	require.True(t, res.Flush)
	assert.True(t, eng.State().Dirty)
	assert.Equal(t, 1, diags.codes(diagnostics.CodePersistFailed))

	res = c.Step(t0.Add(4 * time.Second))
	assert.False(t, res.Flush, "retry waits a full debounce window")
}

func TestSinkFailureReportedOnce(t *testing.T) {
	var diags diagLog
	drv := &fake.Driver{Err: errors.New("no universe")}
	c := NewCore(newEngine(), nil, WithSinks(drv), WithNotify(diags.add))

	c.Step(t0.Add(50 * time.Millisecond))
	c.Step(t0.Add(100 * time.Millisecond))
	assert.Equal(t, 1, diags.codes(diagnostics.CodeOutputFailed))

	drv.Err = nil
	c.Step(t0.Add(150 * time.Millisecond))
	drv.Err = errors.New("again")
	c.Step(t0.Add(200 * time.Millisecond))
	assert.Equal(t, 2, diags.codes(diagnostics.CodeOutputFailed))
	assert.Equal(t, 4, drv.Count())
}

func TestRemoteDetectedIsRateLimited(t *testing.T) {
	var diags diagLog
	eng := newEngine()
	c := NewCore(eng, nil, WithNotify(diags.add))
	require.True(t, eng.SwitchToPrimary())

	eng.OnRemoteFrame([]byte{1, 2, 3})
	c.Step(t0.Add(time.Second))
	assert.Equal(t, 1, diags.codes(diagnostics.CodeRemoteDetected))
	assert.Equal(t, 1, diags.codes(diagnostics.CodeModeChange))

	eng.OnRemoteFrame([]byte{1, 2, 3})
	c.Step(t0.Add(2 * time.Second))
	assert.Equal(t, 1, diags.codes(diagnostics.CodeRemoteDetected))

	eng.OnRemoteFrame([]byte{1, 2, 3})
	c.Step(t0.Add(32 * time.Second))
	assert.Equal(t, 2, diags.codes(diagnostics.CodeRemoteDetected))
	assert.Equal(t, mixer.ModeLocalPrimary, eng.Mode())
}

func TestShutdownWritesPendingState(t *testing.T) {
	st, _ := openStore(t)
	eng := mixer.New(mixer.Config{}, fixture.NewPatch())
	c, err := InitCore(context.Background(), eng, st, WithFPS(200))
	require.NoError(t, err)

	require.True(t, eng.SwitchToLocal())
	require.True(t, eng.SetChannel(dmx.Address(1), 42))
	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown(), "second shutdown is a no-op")

	back := newEngine()
	require.NoError(t, Restore(back, st))
	assert.Equal(t, byte(42), back.Manual()[0])
}

func TestConductorRunsEvents(t *testing.T) {
	drv := &fake.Driver{}
	c := NewCore(newEngine(), nil, WithSinks(drv))
	var modes []mixer.Mode
	cond := &Conductor{
		Core: c,
		FPS:  10,
		Events: []Event{
			{At: 200 * time.Millisecond, Do: func(e *mixer.Engine) { e.SwitchToLocal() }},
			{At: 500 * time.Millisecond, Do: func(e *mixer.Engine) { e.SetChannel(dmx.Address(1), 255) }},
		},
		Frame: func(_ time.Duration, res mixer.TickResult) { modes = append(modes, res.Mode) },
	}
	n := cond.Run(t0, time.Second)
	assert.Equal(t, 10, n)
	assert.Equal(t, 10, drv.Count())
	assert.Equal(t, mixer.ModeRemote, modes[0])
	assert.Equal(t, mixer.ModeLocalManual, modes[1])
	assert.Equal(t, byte(255), c.Eng.Manual()[0])
}

func TestStepDoesNotWaitForStateWrite(t *testing.T) {
	st, _ := openStore(t)
	eng := newEngine()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	c := NewCore(eng, st,
		WithClock(func() time.Time { return t0.Add(3 * time.Second) }),
		WithPersister(func(img *mixer.Image) error {
			started <- struct{}{}
			<-release
			return Persist(st, img)
		}))
	c.startWriter()

	require.True(t, eng.SwitchToLocal())
	require.True(t, eng.SetChannel(dmx.Address(2), 77))
	res := c.Step(t0.Add(3 * time.Second))
	require.True(t, res.Flush)
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("writer never picked up the image")
	}

	stepped := make(chan struct{})
	go func() {
		defer close(stepped)
		for i := 1; i <= 20; i++ {
			c.Step(t0.Add(3*time.Second + time.Duration(i)*25*time.Millisecond))
		}
	}()
	select {
	case <-stepped:
	case <-time.After(time.Second):
		t.Fatal("tick waited on the state write")
	}
	assert.True(t, eng.State().Dirty, "write still in flight")

	close(release)
	require.NoError(t, c.Shutdown())
	assert.False(t, eng.State().Dirty)

	back := newEngine()
	require.NoError(t, Restore(back, st))
	assert.Equal(t, byte(77), back.Manual()[1])
}
