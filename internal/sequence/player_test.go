package sequence

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder() (*[]string, Hooks) {
	log := []string{}
	h := Hooks{
		Recall: func(slot int, fade time.Duration) bool {
			log = append(log, fmt.Sprintf("Recall:%d/%s", slot, fade))
			return true
		},
	}
	return &log, h
}

func showList() CueList {
	return CueList{Cues: []Cue{
		{Scene: 0, FadeMs: 1000, Label: "open"},
		{Scene: -1, Label: "marker"},
		{Scene: 2, FadeMs: 500, AutoFollowMs: 2000, Label: "auto"},
	}}
}

func TestGoBackWrap(t *testing.T) {
	log, h := recorder()
	p := NewPlayer(h)
	p.Load(showList())
	now := time.Unix(0, 0)

	assert.Equal(t, -1, p.Current())
	require.True(t, p.Go(now))
	assert.Equal(t, 0, p.Current())
	p.Go(now)
	p.Go(now)
	p.Go(now)
	assert.Equal(t, 0, p.Current(), "go wraps to first")
	p.Back(now)
	assert.Equal(t, 2, p.Current(), "back wraps to last")

	assert.Equal(t, []string{"Recall:0/1s", "Recall:2/500ms", "Recall:0/1s", "Recall:2/500ms"}, *log,
		"cue without a scene recalls nothing")
}

func TestAutoFollow(t *testing.T) {
	log, h := recorder()
	p := NewPlayer(h)
	p.Load(showList())
	t0 := time.Unix(10, 0)

	require.True(t, p.GoTo(2, t0))
	assert.Equal(t, Running, p.State)
	d, ok := p.Deadline()
	require.True(t, ok)
	assert.Equal(t, t0.Add(2500*time.Millisecond), d)

	assert.False(t, p.Tick(t0.Add(2499*time.Millisecond)))
	assert.True(t, p.Tick(t0.Add(2500*time.Millisecond)))
	assert.Equal(t, 0, p.Current())
	assert.False(t, p.Tick(t0.Add(10*time.Second)), "disarmed until next jump")
	assert.Len(t, *log, 2)
}

func TestStopKeepsIndex(t *testing.T) {
	_, h := recorder()
	p := NewPlayer(h)
	p.Load(showList())
	t0 := time.Unix(0, 0)
	p.GoTo(2, t0)
	p.Stop()
	assert.Equal(t, Idle, p.State)
	assert.Equal(t, 2, p.Current())
	assert.False(t, p.Tick(t0.Add(time.Hour)))
}

func TestEmptyAndInvalid(t *testing.T) {
	p := NewPlayer(Hooks{})
	now := time.Now()
	assert.False(t, p.Go(now))
	assert.False(t, p.Back(now))
	assert.False(t, p.GoTo(0, now))
	p.Load(showList())
	assert.False(t, p.GoTo(3, now))
	assert.False(t, p.GoTo(-1, now))
}

func TestListEdits(t *testing.T) {
	p := NewPlayer(Hooks{})
	p.Load(showList())
	_, dirty := p.TakeDirty()
	assert.False(t, dirty, "load does not mark dirty")

	require.NoError(t, p.Add(Cue{Scene: 4, Label: "a label longer than allowed"}))
	c, ok := p.Get(3)
	require.True(t, ok)
	assert.Len(t, c.Label, MaxLabel)

	p.GoTo(3, time.Now())
	require.NoError(t, p.Remove(3))
	assert.Equal(t, 2, p.Current(), "current clamps to new end")
	assert.ErrorIs(t, p.Remove(9), ErrIndex)
	require.NoError(t, p.Update(0, Cue{Scene: -5}))
	c, _ = p.Get(0)
	assert.Equal(t, -1, c.Scene)

	list, dirty := p.TakeDirty()
	assert.True(t, dirty)
	assert.Len(t, list.Cues, 3)
	assert.Equal(t, "cues.v1", list.Version)
}

func TestAddFull(t *testing.T) {
	p := NewPlayer(Hooks{})
	for i := 0; i < MaxCues; i++ {
		require.NoError(t, p.Add(Cue{Scene: -1}))
	}
	assert.Error(t, p.Add(Cue{}))
}
