// Package mixer arbitrates control authority between the remote feed and
// local operators and composes the output frame once per tick.
package mixer

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/ring"
	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

const (
	DefaultRemoteTimeout = 10 * time.Second
	DefaultModeFade      = time.Second
	DefaultSceneFade     = 1500 * time.Millisecond

	MinMasterSpeed = 0.1
	MaxMasterSpeed = 4.0

	fallbackDT = 0.05
)

// Config holds the engine timings.
type Config struct {
	RemoteTimeout time.Duration
	ModeFade      time.Duration
	MasterSpeed   float64
	Debounce      time.Duration
	MaxWait       time.Duration
	// Start is the boot instant; the remote timeout counts from here until
	// the first frame arrives.
	Start time.Time
}

func DefaultConfig() Config {
	return Config{
		RemoteTimeout: DefaultRemoteTimeout,
		ModeFade:      DefaultModeFade,
		MasterSpeed:   1,
		Debounce:      store.DefaultDebounce,
		MaxWait:       store.DefaultMaxWait,
	}
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithPost replaces the output transforms.
func WithPost(p PostPipeline) Option { return func(e *Engine) { e.post = p } }

type locateState struct {
	active bool
	saved  [fixture.MaxChannels]byte
}

// Engine owns every mutable frame and setting of the node. All exported
// methods take the engine lock; unexported helpers expect it held.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	log      zerolog.Logger
	fixtures fixture.Provider
	scenes   *scene.Engine
	cues     *sequence.Player
	gov      *store.Governor
	post     PostPipeline

	manual dmx.Frame
	shadow dmx.Frame
	output dmx.Frame

	master   uint8
	groups   [fixture.MaxGroups]uint8
	blackout bool

	mode           Mode
	remoteDetected bool
	remoteSince    time.Time // entered ModeRemote
	lastRemote     time.Time // zero until the first frame
	fade           modeFade
	fadeStart      time.Time

	snapshots  *ring.Ring[Snapshot]
	undo       dmx.Frame
	undoMaster uint8
	undoValid  bool

	locate      [fixture.MaxFixtures]locateState
	overlays    [overlaySlots]Overlay
	masterSpeed float64

	now      time.Time // last tick; commands are stamped with it
	lastTick time.Time

	packets  uint64
	fpsCount int
	fps      int
	fpsAt    time.Time
}

// New builds an engine in ModeRemote with full dimmers.
func New(cfg Config, p fixture.Provider, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = def.RemoteTimeout
	}
	if cfg.ModeFade < 0 {
		cfg.ModeFade = 0
	}
	if cfg.MasterSpeed == 0 {
		cfg.MasterSpeed = def.MasterSpeed
	}
	if cfg.Start.IsZero() {
		cfg.Start = time.Now()
	}
	e := &Engine{
		cfg:         cfg,
		log:         zerolog.Nop(),
		fixtures:    p,
		scenes:      scene.New(p),
		gov:         store.NewGovernor(cfg.Debounce, cfg.MaxWait),
		post:        DefaultPost(),
		master:      255,
		mode:        ModeRemote,
		remoteSince: cfg.Start,
		snapshots:   ring.New[Snapshot](store.SnapshotSlots),
		masterSpeed: clampSpeed(cfg.MasterSpeed),
		now:         cfg.Start,
		lastTick:    cfg.Start,
		fpsAt:       cfg.Start,
	}
	for i := range e.groups {
		e.groups[i] = 255
	}
	e.cues = sequence.NewPlayer(sequence.Hooks{
		Recall: e.recallScene,
		Fired: func(i int, c sequence.Cue) {
			e.log.Info().Int("cue", i).Str("label", c.Label).Msg("cue fired")
		},
	})
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetOverlay installs o in slot; nil clears it.
func (e *Engine) SetOverlay(slot OverlaySlot, o Overlay) bool {
	if slot < 0 || slot >= overlaySlots {
		return false
	}
	e.mu.Lock()
	e.overlays[slot] = o
	e.mu.Unlock()
	return true
}

// Tick runs one composition pass at now.
func (e *Engine) Tick(now time.Time) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	dt := now.Sub(e.lastTick).Seconds()
	if dt <= 0 || dt > 1 {
		dt = fallbackDT
	}
	e.lastTick = now
	e.now = now

	if now.Sub(e.fpsAt) >= time.Second {
		e.fps = e.fpsCount
		e.fpsCount = 0
		e.fpsAt = now
	}

	e.checkRemoteTimeout(now)
	if e.mode.Local() {
		e.cues.Tick(now)
	}
	e.compose(now, dt*e.masterSpeed)

	res := TickResult{Output: e.output, Mode: e.mode}
	if e.gov.Due(now) {
		res.Flush = true
		res.Image = e.image()
	}
	return res
}

func (e *Engine) markDirty() { e.gov.MarkDirty(e.now) }

// Output returns the last composed frame.
func (e *Engine) Output() dmx.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.output
}

// Manual returns the operator frame.
func (e *Engine) Manual() dmx.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manual
}

// Shadow returns the last remote frame.
func (e *Engine) Shadow() dmx.Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shadow
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// State summarizes the engine for control surfaces.
func (e *Engine) State() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, running := e.cues.Deadline()
	return Status{
		Mode:          e.mode,
		Blackout:      e.blackout,
		Master:        e.master,
		Groups:        append([]uint8(nil), e.groups[:]...),
		MasterSpeed:   e.masterSpeed,
		ModeFading:    e.fade.active,
		Snapshots:     e.snapshots.Len(),
		HasUndo:       e.undoValid,
		Scenes:        e.scenes.Count(),
		SceneFading:   e.scenes.Active(),
		SceneProgress: e.scenes.Progress(e.now),
		SceneTarget:   e.scenes.Target(),
		CueCurrent:    e.cues.Current(),
		CueCount:      e.cues.Len(),
		CueRunning:    e.cues.State == sequence.Running && running,
		RemotePackets: e.packets,
		RemoteFPS:     e.fps,
		LastRemote:    e.lastRemote,
		LocateMask:    e.locateMask(),
		Dirty:         e.gov.Dirty(),
	}
}
