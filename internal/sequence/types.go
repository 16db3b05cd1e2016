package sequence

import "time"

const (
	MaxCues  = 64
	MaxLabel = 15
)

// Cue is one step of a show: recall a scene with a fade, then optionally
// advance by itself after AutoFollowMs.
type Cue struct {
	Scene        int    `yaml:"scene" json:"scene"` // -1 means no scene
	FadeMs       uint32 `yaml:"fade_ms" json:"fadeMs"`
	AutoFollowMs uint32 `yaml:"auto_follow_ms,omitempty" json:"autoFollowMs,omitempty"` // 0 = manual advance
	Label        string `yaml:"label,omitempty" json:"label,omitempty"`
}

func (c Cue) Fade() time.Duration { return time.Duration(c.FadeMs) * time.Millisecond }

func (c Cue) AutoFollow() time.Duration {
	return time.Duration(c.AutoFollowMs) * time.Millisecond
}

// CueList is the persisted form of the whole list.
type CueList struct {
	Version string `yaml:"version" json:"version"` // "cues.v1"
	Cues    []Cue  `yaml:"cues" json:"cues"`
}

// PlayerState enumerates sequencer states.
type PlayerState string

const (
	Idle    PlayerState = "idle"
	Running PlayerState = "running"
)

// Hooks are dependency-injected callbacks into the mixer.
type Hooks struct {
	// Recall starts a scene recall with the cue's fade.
	Recall func(slot int, fade time.Duration) bool
	// Fired fires after every jump, manual or automatic.
	Fired func(index int, c Cue)
}

// Player owns the cue list and uses Hooks to drive scene recalls.
type Player struct {
	State PlayerState

	cues    []Cue
	current int // -1 until the first jump

	// auto-follow bookkeeping
	waiting  bool
	deadline time.Time

	hooks Hooks
	dirty bool
}
