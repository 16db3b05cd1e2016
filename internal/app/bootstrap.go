package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-dmxnode/internal/diagnostics"
	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

// Sink receives every composed frame.
type Sink interface {
	Write(f dmx.Frame) error
}

// RemoteNoticeEvery limits how often "remote detected" is announced.
const RemoteNoticeEvery = 30 * time.Second

type Option func(*Core)

func WithFPS(fps int) Option { return func(c *Core) { c.fps = fps } }

func WithSinks(s ...Sink) Option { return func(c *Core) { c.sinks = append(c.sinks, s...) } }

func WithLogger(l zerolog.Logger) Option { return func(c *Core) { c.log = l } }

// WithNotify receives diagnostics raised by the tick loop.
func WithNotify(fn func(diagnostics.Diagnostic)) Option { return func(c *Core) { c.notify = fn } }

// WithClock replaces time.Now for the tick loop.
func WithClock(now func() time.Time) Option { return func(c *Core) { c.now = now } }

// WithPersister replaces the store write for flushed images.
func WithPersister(fn func(*mixer.Image) error) Option { return func(c *Core) { c.persist = fn } }

var errWriterBusy = errors.New("app: state writer busy")

// Core drives the engine: it is the only caller of Tick and fans the output
// out to sinks. Once started, persisted state is written by its own
// goroutine, never on the tick path.
type Core struct {
	Eng   *mixer.Engine
	Store *store.Store // nil keeps state in memory only

	fps      int
	sinks    []Sink
	sinkDown []bool
	log      zerolog.Logger
	notify   func(diagnostics.Diagnostic)
	limiter  *diagnostics.Limiter
	now      func() time.Time
	persist  func(*mixer.Image) error
	lastMode mixer.Mode

	mu     sync.Mutex // serializes Step and Shutdown
	cancel context.CancelFunc
	done   chan struct{}

	notifyMu   sync.Mutex
	pending    chan *mixer.Image // nil flushes inline
	writerDone chan struct{}
}

// NewCore wires a core without starting it.
func NewCore(eng *mixer.Engine, st *store.Store, opts ...Option) *Core {
	c := &Core{
		Eng:     eng,
		Store:   st,
		fps:     40,
		log:     zerolog.Nop(),
		notify:  func(diagnostics.Diagnostic) {},
		limiter: diagnostics.NewLimiter(RemoteNoticeEvery),
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.fps <= 0 {
		c.fps = 40
	}
	if c.persist == nil {
		c.persist = func(img *mixer.Image) error {
			if c.Store == nil {
				return nil
			}
			return Persist(c.Store, img)
		}
	}
	c.sinkDown = make([]bool, len(c.sinks))
	c.lastMode = eng.Mode()
	return c
}

// InitCore restores persisted state and starts the tick loop. Unreadable
// state is reported and replaced by defaults; it never stops the node.
func InitCore(ctx context.Context, eng *mixer.Engine, st *store.Store, opts ...Option) (*Core, error) {
	if eng == nil {
		return nil, errors.New("app: nil engine")
	}
	c := NewCore(eng, st, opts...)
	if st != nil {
		if err := Restore(eng, st); err != nil {
			c.log.Warn().Err(err).Msg("stored state incomplete; using defaults")
			c.emit(diagnostics.StateCorrupt(c.now(), "state", err))
		}
	}
	c.startWriter()
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	go c.run(ctx)
	c.log.Info().Int("fps", c.fps).Int("sinks", len(c.sinks)).Msg("core started")
	return c, nil
}

func (c *Core) run(ctx context.Context) {
	defer close(c.done)
	tick := time.NewTicker(time.Second / time.Duration(c.fps))
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			c.Step(c.now())
		}
	}
}

// startWriter moves flushes off the tick path. The governor keeps at most
// one image in flight, so one slot is enough.
func (c *Core) startWriter() {
	c.pending = make(chan *mixer.Image, 1)
	c.writerDone = make(chan struct{})
	go func(in <-chan *mixer.Image) {
		defer close(c.writerDone)
		for img := range in {
			c.flush(img, c.now())
		}
	}(c.pending)
}

func (c *Core) emit(d diagnostics.Diagnostic) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.notify(d)
}

// Step runs one tick at now.
func (c *Core) Step(now time.Time) mixer.TickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	res := c.Eng.Tick(now)
	c.write(now, res.Output)

	if res.Mode != c.lastMode {
		c.emit(diagnostics.ModeChange(now, c.lastMode.String(), res.Mode.String()))
		c.lastMode = res.Mode
	}
	if c.Eng.ConsumeRemoteDetected() && c.limiter.Allow(diagnostics.CodeRemoteDetected, now) {
		c.emit(diagnostics.RemoteDetected(now, c.Eng.State().RemotePackets))
	}
	if res.Flush && res.Image != nil {
		c.queue(res.Image, now)
	}
	return res
}

// queue needs c.mu.
func (c *Core) queue(img *mixer.Image, now time.Time) {
	if c.pending == nil {
		c.flush(img, now)
		return
	}
	select {
	case c.pending <- img:
	default:
		c.Eng.Flushed(img, now, errWriterBusy)
	}
}

// write hands f to each sink. A failing sink is reported once until it
// recovers.
func (c *Core) write(now time.Time, f dmx.Frame) {
	for i, s := range c.sinks {
		err := s.Write(f)
		switch {
		case err != nil && !c.sinkDown[i]:
			c.sinkDown[i] = true
			c.log.Warn().Err(err).Int("sink", i).Msg("output write failed")
			c.emit(diagnostics.OutputFailed(now, fmt.Sprintf("#%d", i), err))
		case err == nil && c.sinkDown[i]:
			c.sinkDown[i] = false
			c.log.Info().Int("sink", i).Msg("output recovered")
		}
	}
}

func (c *Core) flush(img *mixer.Image, now time.Time) error {
	err := c.persist(img)
	c.Eng.Flushed(img, now, err)
	if err != nil && c.limiter.Allow(diagnostics.CodePersistFailed, now) {
		c.emit(diagnostics.PersistFailed(now, err))
	}
	return err
}

// Shutdown stops the tick loop, lets the writer finish and writes any
// pending state.
func (c *Core) Shutdown() error {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
	c.mu.Lock()
	if c.pending != nil {
		close(c.pending)
		c.pending = nil
	}
	c.mu.Unlock()
	if c.writerDone != nil {
		<-c.writerDone
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	img := c.Eng.Shutdown()
	if img == nil {
		return nil
	}
	if err := c.flush(img, c.now()); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	c.log.Info().Msg("state saved")
	return nil
}

// Restore loads every state file into eng. Missing files are not errors.
func Restore(eng *mixer.Engine, st *store.Store) error {
	var errs []error
	m, err := st.LoadMixer()
	if err != nil {
		m = store.DefaultMixerState()
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("mixer: %w", err))
		}
	}
	snaps, err := st.LoadSnapshots()
	if err != nil {
		snaps = store.SnapshotFile{}
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("snapshots: %w", err))
		}
	}
	cues, err := st.LoadCues()
	if err != nil {
		cues = sequence.CueList{}
		if !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("cues: %w", err))
		}
	}
	eng.Restore(m, snaps, st.LoadScenes(), cues)
	return errors.Join(errs...)
}

// Persist writes img. Every part is attempted even when one fails.
func Persist(st *store.Store, img *mixer.Image) error {
	var errs []error
	if err := st.SaveMixer(img.Mixer); err != nil {
		errs = append(errs, fmt.Errorf("mixer: %w", err))
	}
	if err := st.SaveSnapshots(img.Snapshots); err != nil {
		errs = append(errs, fmt.Errorf("snapshots: %w", err))
	}
	for slot, sc := range img.Scenes {
		if err := st.SaveScene(slot, sc); err != nil {
			errs = append(errs, fmt.Errorf("scene %d: %w", slot, err))
		}
	}
	if img.Cues != nil {
		if err := st.SaveCues(*img.Cues); err != nil {
			errs = append(errs, fmt.Errorf("cues: %w", err))
		}
	}
	return errors.Join(errs...)
}
