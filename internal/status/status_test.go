package status

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/spi/spitest"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

type fakeDrawer struct {
	drawn  []color.NRGBA
	halted bool
	err    error
}

func (f *fakeDrawer) String() string { return "fake" }
func (f *fakeDrawer) Halt() error { f.halted = true; return nil }
func (f *fakeDrawer) ColorModel() color.Model { return color.NRGBAModel }
func (f *fakeDrawer) Bounds() image.Rectangle { return image.Rect(0, 0, 1, 1) }
func (f *fakeDrawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if f.err != nil {
		return f.err
	}
	f.drawn = append(f.drawn, color.NRGBAModel.Convert(src.At(sp.X, sp.Y)).(color.NRGBA))
	return nil
}

func TestColorFor(t *testing.T) {
	cases := []struct {
		name string
		s    mixer.Status
		want color.NRGBA
	}{
		{"remote", mixer.Status{Mode: mixer.ModeRemote}, Green},
		{"auto", mixer.Status{Mode: mixer.ModeLocalAuto}, Yellow},
		{"manual", mixer.Status{Mode: mixer.ModeLocalManual}, Blue},
		{"primary", mixer.Status{Mode: mixer.ModeLocalPrimary}, Purple},
		{"blackout", mixer.Status{Mode: mixer.ModeLocalManual, Blackout: true}, Red},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ColorFor(tc.s))
		})
	}
}

func TestScale(t *testing.T) {
	assert.Equal(t, color.NRGBA{51, 36, 0, 255}, Scale(Yellow, 0.2))
	assert.Equal(t, Purple, Scale(Purple, 3))
	assert.Equal(t, Off, Scale(Green, -1))
}

func TestShowOnlyRedrawsOnChange(t *testing.T) {
	d := &fakeDrawer{}
	st := mixer.Status{Mode: mixer.ModeRemote}
	i := New(d, func() mixer.Status { return st }, WithBrightness(1))

	require.NoError(t, i.Write(dmx.Frame{}))
	require.NoError(t, i.Write(dmx.Frame{}))
	st.Mode = mixer.ModeLocalAuto
	require.NoError(t, i.Write(dmx.Frame{}))

	assert.Equal(t, []color.NRGBA{Green, Yellow}, d.drawn)

	require.NoError(t, i.Close())
	assert.True(t, d.halted)
}

func TestShowRetriesAfterError(t *testing.T) {
	d := &fakeDrawer{err: errors.New("bus")}
	i := New(d, nil, WithBrightness(1))
	assert.Error(t, i.Show(mixer.Status{}))
	d.err = nil
	require.NoError(t, i.Show(mixer.Status{}))
	assert.Len(t, d.drawn, 1)
	assert.NoError(t, i.Write(dmx.Frame{}), "nil state is a no-op")
}

func TestSPIPixel(t *testing.T) {
	var buf bytes.Buffer
	i, err := newSPI(spitest.NewRecordRaw(&buf), nil)
	require.NoError(t, err)

	require.NoError(t, i.Show(mixer.Status{Mode: mixer.ModeLocalManual}))
	n := buf.Len()
	assert.Greater(t, n, 0)

	require.NoError(t, i.Show(mixer.Status{Mode: mixer.ModeLocalManual}))
	assert.Equal(t, n, buf.Len(), "unchanged colour is not resent")
}
