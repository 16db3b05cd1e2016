// Package scene keeps the stored scene table and the timed crossfade of the
// manual frame toward a target frame.
package scene

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/coreman2200/funtimes-dmxnode/internal/dmx"
	"github.com/coreman2200/funtimes-dmxnode/internal/fixture"
)

const (
	MaxScenes = 20
	// NameSize is the fixed on-disk name width including the NUL terminator.
	NameSize = 24
)

var ErrSlot = errors.New("scene slot out of range")

// Scene is one stored full-universe look.
type Scene struct {
	Name  string
	Frame dmx.Frame
	Valid bool
}

// Engine owns the scene table and the single live crossfade. It is not
// safe for concurrent use; the mixer serializes access.
type Engine struct {
	fixtures fixture.Provider
	scenes   [MaxScenes]Scene
	dirty    [MaxScenes]bool
	cf       Crossfade
}

func New(p fixture.Provider) *Engine {
	e := &Engine{fixtures: p}
	e.cf.target = -1
	return e
}

// ClipName bounds a scene name to NameSize-1 bytes without splitting a rune.
func ClipName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) < NameSize {
		return name
	}
	cut := NameSize - 1
	for cut > 0 && !utf8.RuneStart(name[cut]) {
		cut--
	}
	return name[:cut]
}

func validSlot(slot int) bool { return slot >= 0 && slot < MaxScenes }

// Save stores f under slot, overwriting what was there.
func (e *Engine) Save(slot int, name string, f *dmx.Frame) error {
	if !validSlot(slot) || f == nil {
		return ErrSlot
	}
	e.scenes[slot] = Scene{Name: ClipName(name), Frame: *f, Valid: true}
	e.dirty[slot] = true
	return nil
}

// Restore installs a scene read from storage without marking it dirty.
func (e *Engine) Restore(slot int, s Scene) {
	if !validSlot(slot) {
		return
	}
	s.Name = ClipName(s.Name)
	e.scenes[slot] = s
}

func (e *Engine) Delete(slot int) error {
	if !validSlot(slot) {
		return ErrSlot
	}
	e.scenes[slot] = Scene{}
	e.dirty[slot] = true
	return nil
}

// Rename changes the name of an existing scene.
func (e *Engine) Rename(slot int, name string) error {
	if !validSlot(slot) || !e.scenes[slot].Valid {
		return ErrSlot
	}
	e.scenes[slot].Name = ClipName(name)
	e.dirty[slot] = true
	return nil
}

func (e *Engine) Get(slot int) (Scene, bool) {
	if !validSlot(slot) || !e.scenes[slot].Valid {
		return Scene{}, false
	}
	return e.scenes[slot], true
}

// Count returns the number of valid scenes.
func (e *Engine) Count() int {
	n := 0
	for i := range e.scenes {
		if e.scenes[i].Valid {
			n++
		}
	}
	return n
}

// FreeSlot returns the first empty slot or -1.
func (e *Engine) FreeSlot() int {
	for i := range e.scenes {
		if !e.scenes[i].Valid {
			return i
		}
	}
	return -1
}

// TakeDirty returns the slots changed since the last call, with their
// current contents, and clears the dirty marks.
func (e *Engine) TakeDirty() map[int]Scene {
	var out map[int]Scene
	for i, d := range e.dirty {
		if !d {
			continue
		}
		if out == nil {
			out = make(map[int]Scene)
		}
		out[i] = e.scenes[i]
		e.dirty[i] = false
	}
	return out
}

// MarkDirty re-queues slots whose write failed.
func (e *Engine) MarkDirty(slots ...int) {
	for _, s := range slots {
		if validSlot(s) {
			e.dirty[s] = true
		}
	}
}
