package mixer

import (
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

// Mode is the control authority over the output frame.
type Mode uint8

const (
	ModeRemote       Mode = iota // remote console is authoritative
	ModeLocalAuto                // remote went quiet, switched automatically
	ModeLocalManual              // operator forced local
	ModeLocalPrimary             // operator owns output; remote is only observed
)

var modeNames = [...]string{"remote", "local_auto", "local_manual", "local_primary"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// Local reports whether the manual frame is the source.
func (m Mode) Local() bool { return m != ModeRemote }

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// Source tags where a snapshot frame came from.
type Source byte

const (
	SourceRemote Source = store.SourceRemote
	SourceLocal  Source = store.SourceLocal
)

func (s Source) String() string { return string(rune(s)) }

func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is a retained copy of an earlier frame.
type Snapshot struct {
	Frame     dmx.Frame `json:"-"`
	Timestamp time.Time `json:"timestamp"`
	Valid     bool      `json:"valid"`
	Source    Source    `json:"source"`
}

// Overlay adds modifier values on top of the manual frame. It may read any
// address of manual and write any address of out.
type Overlay interface {
	Apply(manual *dmx.Frame, out *dmx.Frame, dt float64)
}

// OverlayFunc adapts a function to Overlay.
type OverlayFunc func(manual *dmx.Frame, out *dmx.Frame, dt float64)

func (f OverlayFunc) Apply(manual *dmx.Frame, out *dmx.Frame, dt float64) { f(manual, out, dt) }

// OverlaySlot fixes the order overlays run in. Later slots win.
type OverlaySlot int

const (
	OverlayAudio OverlaySlot = iota
	OverlayWave
	OverlayShape
	overlaySlots
)

func (s OverlaySlot) String() string {
	switch s {
	case OverlayAudio:
		return "audio"
	case OverlayWave:
		return "wave"
	case OverlayShape:
		return "shape"
	}
	return fmt.Sprintf("slot(%d)", int(s))
}

// TickResult is what one composition pass hands back to the caller.
type TickResult struct {
	Output dmx.Frame
	Mode   Mode
	// Flush is set when persisted state is due; Image then holds the copy
	// to write outside the lock.
	Flush bool
	Image *Image
}

// Status is a point-in-time summary for control surfaces.
type Status struct {
	Mode          Mode      `json:"mode"`
	Blackout      bool      `json:"blackout"`
	Master        uint8     `json:"master"`
	Groups        []uint8   `json:"groups"`
	MasterSpeed   float64   `json:"masterSpeed"`
	ModeFading    bool      `json:"modeFading"`
	Snapshots     int       `json:"snapshots"`
	HasUndo       bool      `json:"hasUndo"`
	Scenes        int       `json:"scenes"`
	SceneFading   bool      `json:"sceneFading"`
	SceneProgress float64   `json:"sceneProgress"`
	SceneTarget   int       `json:"sceneTarget"`
	CueCurrent    int       `json:"cueCurrent"`
	CueCount      int       `json:"cueCount"`
	CueRunning    bool      `json:"cueRunning"`
	RemotePackets uint64    `json:"remotePackets"`
	RemoteFPS     int       `json:"remoteFps"`
	LastRemote    time.Time `json:"lastRemote"`
	LocateMask    uint32    `json:"locateMask"`
	Dirty         bool      `json:"dirty"`
}
