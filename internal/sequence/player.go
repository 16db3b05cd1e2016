package sequence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrIndex = errors.New("cue index out of range")

// NewPlayer constructs a Player with provided hooks.
func NewPlayer(h Hooks) *Player {
	return &Player{
		State:   Idle,
		hooks:   h,
		current: -1,
	}
}

// Load replaces the cue list. Playback resets to Idle with no current cue.
// Entries past MaxCues are dropped.
func (p *Player) Load(list CueList) {
	cues := list.Cues
	if len(cues) > MaxCues {
		cues = cues[:MaxCues]
	}
	p.cues = make([]Cue, 0, len(cues))
	for _, c := range cues {
		p.cues = append(p.cues, normalize(c))
	}
	p.current = -1
	p.State = Idle
	p.waiting = false
}

func normalize(c Cue) Cue {
	if c.Scene < -1 {
		c.Scene = -1
	}
	c.Label = strings.TrimSpace(c.Label)
	if len(c.Label) > MaxLabel {
		c.Label = c.Label[:MaxLabel]
	}
	return c
}

// Go advances to the next cue, wrapping to the first.
func (p *Player) Go(now time.Time) bool {
	if len(p.cues) == 0 {
		return false
	}
	next := p.current + 1
	if next >= len(p.cues) {
		next = 0
	}
	return p.GoTo(next, now)
}

// Back steps to the previous cue, wrapping to the last.
func (p *Player) Back(now time.Time) bool {
	if len(p.cues) == 0 {
		return false
	}
	prev := p.current - 1
	if prev < 0 {
		prev = len(p.cues) - 1
	}
	return p.GoTo(prev, now)
}

// GoTo jumps to cue i, recalls its scene and arms auto-follow.
func (p *Player) GoTo(i int, now time.Time) bool {
	if i < 0 || i >= len(p.cues) {
		return false
	}
	p.current = i
	c := p.cues[i]
	if c.Scene >= 0 && p.hooks.Recall != nil {
		p.hooks.Recall(c.Scene, c.Fade())
	}
	if c.AutoFollowMs > 0 {
		p.waiting = true
		p.deadline = now.Add(c.Fade() + c.AutoFollow())
		p.State = Running
	} else {
		p.waiting = false
	}
	if p.hooks.Fired != nil {
		p.hooks.Fired(i, c)
	}
	return true
}

// Stop clears running and auto-follow. The current cue is kept.
func (p *Player) Stop() {
	p.State = Idle
	p.waiting = false
}

// Tick fires Go once the auto-follow deadline has passed.
func (p *Player) Tick(now time.Time) bool {
	if p.State != Running || !p.waiting {
		return false
	}
	if now.Before(p.deadline) {
		return false
	}
	p.waiting = false
	return p.Go(now)
}

// Current returns the current cue index or -1.
func (p *Player) Current() int { return p.current }

// Deadline returns the pending auto-follow time.
func (p *Player) Deadline() (time.Time, bool) { return p.deadline, p.waiting }

func (p *Player) Len() int { return len(p.cues) }

func (p *Player) Get(i int) (Cue, bool) {
	if i < 0 || i >= len(p.cues) {
		return Cue{}, false
	}
	return p.cues[i], true
}

// Cues returns a copy of the list.
func (p *Player) Cues() CueList {
	return CueList{Version: "cues.v1", Cues: append([]Cue(nil), p.cues...)}
}

func (p *Player) Add(c Cue) error {
	if len(p.cues) >= MaxCues {
		return fmt.Errorf("cue list full (%d)", MaxCues)
	}
	p.cues = append(p.cues, normalize(c))
	p.dirty = true
	return nil
}

func (p *Player) Remove(i int) error {
	if i < 0 || i >= len(p.cues) {
		return ErrIndex
	}
	p.cues = append(p.cues[:i], p.cues[i+1:]...)
	if p.current >= len(p.cues) {
		p.current = len(p.cues) - 1
	}
	p.dirty = true
	return nil
}

func (p *Player) Update(i int, c Cue) error {
	if i < 0 || i >= len(p.cues) {
		return ErrIndex
	}
	p.cues[i] = normalize(c)
	p.dirty = true
	return nil
}

// TakeDirty returns the list when it changed since the last call.
func (p *Player) TakeDirty() (CueList, bool) {
	if !p.dirty {
		return CueList{}, false
	}
	p.dirty = false
	return p.Cues(), true
}

// MarkDirty re-queues the list after a failed write.
func (p *Player) MarkDirty() { p.dirty = true }
