// Package midi maps fader and button messages from a MIDI controller onto
// mixer commands.
package midi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
)

type Kind string

const (
	KindCC   Kind = "cc"
	KindNote Kind = "note"
)

type Action string

const (
	ActionMaster   Action = "master"
	ActionGroup    Action = "group"   // Target is the group index
	ActionChannel  Action = "channel" // Target is the DMX address
	ActionCueGo    Action = "cue_go"
	ActionCueBack  Action = "cue_back"
	ActionBlackout Action = "blackout" // toggles
	ActionUndo     Action = "undo"
	ActionScene    Action = "scene" // Target is the scene slot
)

// Binding routes one controller number or key to an action.
type Binding struct {
	Kind    Kind   `yaml:"kind"`
	Channel int    `yaml:"channel,omitempty"` // 1-16, 0 matches any
	Number  uint8  `yaml:"number"`
	Action  Action `yaml:"action"`
	Target  int    `yaml:"target,omitempty"`
}

func (b Binding) Validate() error {
	if b.Kind != KindCC && b.Kind != KindNote {
		return fmt.Errorf("kind %q must be cc or note", b.Kind)
	}
	if b.Channel < 0 || b.Channel > 16 {
		return fmt.Errorf("channel %d out of range", b.Channel)
	}
	if b.Number > 127 {
		return fmt.Errorf("number %d out of range", b.Number)
	}
	switch b.Action {
	case ActionMaster, ActionCueGo, ActionCueBack, ActionBlackout, ActionUndo:
	case ActionGroup:
		if b.Target < 0 || b.Target >= fixture.MaxGroups {
			return fmt.Errorf("group %d out of range", b.Target)
		}
	case ActionChannel:
		if _, ok := dmx.NewAddress(b.Target); !ok {
			return fmt.Errorf("address %d out of range", b.Target)
		}
	case ActionScene:
		if b.Target < 0 || b.Target >= scene.MaxScenes {
			return fmt.Errorf("scene %d out of range", b.Target)
		}
	default:
		return fmt.Errorf("unknown action %q", b.Action)
	}
	return nil
}

// Controller is the part of the mixer a MIDI surface drives.
type Controller interface {
	SetMasterDimmer(v uint8) bool
	SetGroupDimmer(group int, v uint8) bool
	SetChannel(a dmx.Address, v byte) bool
	CueGo() bool
	CueBack() bool
	Blackout(on bool)
	Undo() bool
	RecallScene(slot int, fade time.Duration) bool
	State() mixer.Status
}

type Option func(*Router)

func WithLogger(l zerolog.Logger) Option { return func(r *Router) { r.log = l } }

// Router dispatches decoded messages through its bindings.
type Router struct {
	ctl      Controller
	bindings []Binding
	log      zerolog.Logger
}

func NewRouter(ctl Controller, bindings []Binding, opts ...Option) *Router {
	r := &Router{ctl: ctl, bindings: append([]Binding(nil), bindings...), log: zerolog.Nop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle has the shape midi.ListenTo expects.
func (r *Router) Handle(msg midi.Message, _ int32) {
	var ch, num, val uint8
	switch {
	case msg.GetControlChange(&ch, &num, &val):
		r.dispatch(KindCC, ch, num, val)
	case msg.GetNoteOn(&ch, &num, &val):
		if val > 0 {
			r.dispatch(KindNote, ch, num, val)
		}
	}
}

// dispatch runs every binding that matches and reports whether any did.
func (r *Router) dispatch(kind Kind, ch, num, val uint8) bool {
	var hit bool
	for _, b := range r.bindings {
		if b.Kind != kind || b.Number != num {
			continue
		}
		if b.Channel != 0 && b.Channel != int(ch)+1 {
			continue
		}
		hit = true
		ok := r.apply(b, val)
		r.log.Debug().Str("action", string(b.Action)).Uint8("value", val).Bool("applied", ok).Msg("midi")
	}
	return hit
}

func (r *Router) apply(b Binding, val uint8) bool {
	level := Scale(val)
	switch b.Action {
	case ActionMaster:
		return r.ctl.SetMasterDimmer(level)
	case ActionGroup:
		return r.ctl.SetGroupDimmer(b.Target, level)
	case ActionChannel:
		a, ok := dmx.NewAddress(b.Target)
		return ok && r.ctl.SetChannel(a, level)
	case ActionCueGo:
		return r.ctl.CueGo()
	case ActionCueBack:
		return r.ctl.CueBack()
	case ActionBlackout:
		r.ctl.Blackout(!r.ctl.State().Blackout)
		return true
	case ActionUndo:
		return r.ctl.Undo()
	case ActionScene:
		return r.ctl.RecallScene(b.Target, mixer.DefaultSceneFade)
	}
	return false
}

// Scale maps a 7-bit controller value onto 0..255.
func Scale(v uint8) uint8 {
	if v >= 127 {
		return 255
	}
	return uint8((int(v)*255 + 63) / 127)
}

// FindInPort returns the first input whose name contains substr.
func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", substr)
}

// Listen feeds port into the router until ctx ends.
func (r *Router) Listen(ctx context.Context, port string) error {
	if port == "" {
		return errors.New("midi: no input port configured")
	}
	in, err := FindInPort(port)
	if err != nil {
		return err
	}
	stop, err := midi.ListenTo(in, r.Handle)
	if err != nil {
		return fmt.Errorf("listen %s: %w", in, err)
	}
	r.log.Info().Str("port", in.String()).Int("bindings", len(r.bindings)).Msg("midi listening")
	<-ctx.Done()
	stop()
	return nil
}
