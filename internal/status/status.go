package status

import (
	"image"
	"image/color"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/devices/v3/screen1d"
	"periph.io/x/host/v3"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
)

var (
	Off    = color.NRGBA{0, 0, 0, 255}
	Red    = color.NRGBA{255, 0, 0, 255}
	Green  = color.NRGBA{0, 255, 0, 255}
	Blue   = color.NRGBA{0, 0, 255, 255}
	Yellow = color.NRGBA{255, 180, 0, 255}
	Purple = color.NRGBA{180, 0, 255, 255}
)

// ColorFor maps the engine state to the indicator colour. Blackout wins
// over the mode.
func ColorFor(s mixer.Status) color.NRGBA {
	if s.Blackout {
		return Red
	}
	switch s.Mode {
	case mixer.ModeRemote:
		return Green
	case mixer.ModeLocalAuto:
		return Yellow
	case mixer.ModeLocalManual:
		return Blue
	case mixer.ModeLocalPrimary:
		return Purple
	}
	return Off
}

// Scale dims c by brightness in 0..1.
func Scale(c color.NRGBA, brightness float64) color.NRGBA {
	if brightness < 0 {
		brightness = 0
	}
	if brightness > 1 {
		brightness = 1
	}
	f := func(v uint8) uint8 { return uint8(float64(v)*brightness + 0.5) }
	return color.NRGBA{f(c.R), f(c.G), f(c.B), 255}
}

type Option func(*Indicator)

func WithLogger(l zerolog.Logger) Option { return func(i *Indicator) { i.log = l } }

func WithBrightness(b float64) Option { return func(i *Indicator) { i.brightness = b } }

// Indicator is a one-pixel mode light. It satisfies the frame sink
// interface so the tick loop refreshes it; it only redraws on change.
type Indicator struct {
	drawer     display.Drawer
	closer     io.Closer
	state      func() mixer.Status
	brightness float64
	log        zerolog.Logger

	mu   sync.Mutex
	last color.NRGBA
	set  bool
}

// New wraps an existing drawer; state is polled on every Write.
func New(d display.Drawer, state func() mixer.Status, opts ...Option) *Indicator {
	i := &Indicator{drawer: d, state: state, brightness: 0.2, log: zerolog.Nop()}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Open drives a WS2812 pixel on the named SPI port ("" picks the first).
// Without a port the light is printed to the console instead.
func Open(port string, state func() mixer.Status, opts ...Option) (*Indicator, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	p, err := spireg.Open(port)
	if err != nil {
		i := New(screen1d.New(&screen1d.Opts{X: 1}), state, opts...)
		i.log.Warn().Err(err).Msg("no spi port; status light on console")
		return i, nil
	}
	i, err := newSPI(p, state, opts...)
	if err != nil {
		p.Close()
		return nil, err
	}
	i.closer = p
	return i, nil
}

func newSPI(p spi.Port, state func() mixer.Status, opts ...Option) (*Indicator, error) {
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: 1, Channels: 3, Freq: 2500 * physic.KiloHertz})
	if err != nil {
		return nil, err
	}
	return New(d, state, opts...), nil
}

// Show draws the colour for s unless it is already lit.
func (i *Indicator) Show(s mixer.Status) error {
	c := Scale(ColorFor(s), i.brightness)
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.set && c == i.last {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	img.SetNRGBA(0, 0, c)
	if err := i.drawer.Draw(i.drawer.Bounds(), img, image.Point{}); err != nil {
		return err
	}
	i.last, i.set = c, true
	return nil
}

func (i *Indicator) Write(dmx.Frame) error {
	if i.state == nil {
		return nil
	}
	return i.Show(i.state())
}

// Close turns the light off and releases the port.
func (i *Indicator) Close() error {
	err := i.drawer.Halt()
	if i.closer != nil {
		if cerr := i.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
