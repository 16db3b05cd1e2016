package ws

import (
	"errors"
	"fmt"
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
	"github.com/coreman2200/funtimes-dmxnode/internal/mixer"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
)

var (
	errRejected = errors.New("rejected in current mode")
	errUnknown  = errors.New("unknown command")
)

// Command is one /control request. Fields a command does not use are
// ignored.
type Command struct {
	ID      string        `json:"id,omitempty"`
	Cmd     string        `json:"cmd"`
	Addr    int           `json:"addr,omitempty"`
	Fixture int           `json:"fixture,omitempty"`
	Group   int           `json:"group,omitempty"`
	Channel int           `json:"channel,omitempty"`
	Value   int           `json:"value,omitempty"`
	R       int           `json:"r,omitempty"`
	G       int           `json:"g,omitempty"`
	B       int           `json:"b,omitempty"`
	Slot    int           `json:"slot,omitempty"`
	Index   int           `json:"index,omitempty"`
	FadeMs  *int          `json:"fadeMs,omitempty"` // nil uses the default scene fade
	Name    string        `json:"name,omitempty"`
	On      bool          `json:"on,omitempty"`
	Speed   float64       `json:"speed,omitempty"`
	Cue     *sequence.Cue `json:"cue,omitempty"`
	Data    []byte        `json:"data,omitempty"` // base64 remote frame
}

type Reply struct {
	ID     string        `json:"id,omitempty"`
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Result any           `json:"result,omitempty"`
	Status *mixer.Status `json:"status,omitempty"`
}

// Apply runs cmd against the engine and returns the reply with a fresh
// status.
func (h *Hub) Apply(cmd Command) Reply {
	res, err := h.apply(cmd)
	rep := Reply{ID: cmd.ID, OK: err == nil, Result: res}
	if err != nil {
		rep.Error = err.Error()
		h.log.Debug().Str("cmd", cmd.Cmd).Err(err).Msg("control")
	}
	st := h.eng.State()
	rep.Status = &st
	return rep
}

func (h *Hub) apply(c Command) (any, error) {
	e := h.eng
	switch c.Cmd {
	case "status":
		return nil, nil
	case "set_channel":
		a, ok := dmx.NewAddress(c.Addr)
		if !ok {
			return nil, fmt.Errorf("address %d out of range", c.Addr)
		}
		return nil, accepted(e.SetChannel(a, level(c.Value)))
	case "set_fixture_channel":
		return nil, accepted(e.SetFixtureChannel(c.Fixture, c.Channel, level(c.Value)))
	case "set_group_channel":
		return nil, accepted(e.SetGroupChannel(c.Group, c.Channel, level(c.Value)))
	case "set_fixture_color":
		return nil, accepted(e.SetFixtureColor(c.Fixture, level(c.R), level(c.G), level(c.B)))
	case "set_fixture_intensity":
		return nil, accepted(e.SetFixtureIntensity(c.Fixture, level(c.Value)))
	case "set_master":
		return nil, accepted(e.SetMasterDimmer(level(c.Value)))
	case "set_group_dimmer":
		return nil, accepted(e.SetGroupDimmer(c.Group, level(c.Value)))
	case "blackout":
		e.Blackout(c.On)
		return nil, nil
	case "master_speed":
		return e.SetMasterSpeed(c.Speed), nil

	case "switch_local":
		return e.SwitchToLocal(), nil
	case "switch_remote":
		return e.SwitchToRemote(), nil
	case "switch_primary":
		return e.SwitchToPrimary(), nil

	case "take_snapshot":
		e.TakeSnapshot(mixer.SourceLocal)
		return nil, nil
	case "recall_snapshot":
		return nil, accepted(e.RecallSnapshot(c.Index))
	case "recall_shadow":
		return nil, accepted(e.RecallRemoteShadow())
	case "snapshots":
		var out []mixer.Snapshot
		for i := 0; i < e.SnapshotCount(); i++ {
			if s, ok := e.Snapshot(i); ok {
				out = append(out, s)
			}
		}
		return out, nil
	case "undo":
		return nil, accepted(e.Undo())

	case "recall_scene":
		return nil, accepted(e.RecallScene(c.Slot, fade(c.FadeMs)))
	case "save_scene":
		return nil, e.SaveScene(c.Slot, c.Name)
	case "delete_scene":
		return nil, e.DeleteScene(c.Slot)
	case "rename_scene":
		return nil, e.RenameScene(c.Slot, c.Name)
	case "scenes":
		return e.Scenes(), nil
	case "free_scene":
		return e.FreeSceneSlot(), nil

	case "cue_go":
		return nil, accepted(e.CueGo())
	case "cue_back":
		return nil, accepted(e.CueBack())
	case "cue_goto":
		return nil, accepted(e.CueGoTo(c.Index))
	case "cue_stop":
		e.CueStop()
		return nil, nil
	case "cue_add":
		if c.Cue == nil {
			return nil, errors.New("cue missing")
		}
		return nil, e.AddCue(*c.Cue)
	case "cue_update":
		if c.Cue == nil {
			return nil, errors.New("cue missing")
		}
		return nil, e.UpdateCue(c.Index, *c.Cue)
	case "cue_remove":
		return nil, e.RemoveCue(c.Index)
	case "cues":
		return e.Cues(), nil

	case "locate":
		return nil, accepted(e.Locate(c.Fixture, c.On))
	case "patch":
		return h.topology(), nil

	case "remote_frame":
		e.OnRemoteFrame(c.Data)
		return nil, nil
	case "remote_poll":
		e.OnRemotePoll()
		return nil, nil
	}
	return nil, fmt.Errorf("%w %q", errUnknown, c.Cmd)
}

type fixtureInfo struct {
	Slot     int      `json:"slot"`
	Name     string   `json:"name"`
	Profile  string   `json:"profile"`
	Address  int      `json:"address"`
	Groups   uint8    `json:"groups"`
	Channels []string `json:"channels"`
}

func (h *Hub) topology() map[string]any {
	out := map[string]any{}
	if h.patch == nil {
		return out
	}
	var fixtures []fixtureInfo
	for fx := 0; fx < fixture.MaxFixtures; fx++ {
		en, ok := h.patch.Entry(fx)
		if !ok {
			continue
		}
		fi := fixtureInfo{Slot: fx, Name: en.Name, Profile: en.Profile, Address: en.Address, Groups: en.Groups}
		for ch := 0; ch < h.patch.ChannelCount(fx); ch++ {
			fi.Channels = append(fi.Channels, h.patch.ChannelType(fx, ch).String())
		}
		fixtures = append(fixtures, fi)
	}
	groups := make([]string, fixture.MaxGroups)
	for g := range groups {
		groups[g] = h.patch.GroupName(g)
	}
	out["fixtures"] = fixtures
	out["groups"] = groups
	return out
}

func accepted(ok bool) error {
	if !ok {
		return errRejected
	}
	return nil
}

func level(v int) byte {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return byte(v)
}

func fade(ms *int) time.Duration {
	if ms == nil {
		return mixer.DefaultSceneFade
	}
	return time.Duration(*ms) * time.Millisecond
}
