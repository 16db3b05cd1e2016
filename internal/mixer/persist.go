package mixer

import (
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
	"github.com/coreman2200/funtimes-dmxnode/internal/store"
)

// Image is a copy of the persisted state, taken under the lock and written
// without it.
type Image struct {
	gen       uint64
	Mixer     store.MixerState
	Snapshots store.SnapshotFile
	// Scenes holds only slots changed since the last flush; an invalid
	// scene means the slot was deleted.
	Scenes map[int]scene.Scene
	// Cues is nil when the cue list is unchanged.
	Cues *sequence.CueList
}

// Restore installs state read at boot. It does not mark anything dirty.
func (e *Engine) Restore(m store.MixerState, snaps store.SnapshotFile, scenes map[int]scene.Scene, cues sequence.CueList) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.master = m.Master
	e.groups = m.Groups
	e.manual = m.Manual
	e.output = m.Manual

	slots := make([]Snapshot, store.SnapshotSlots)
	for i, rec := range snaps.Records {
		s := Snapshot{Frame: rec.Frame, Valid: rec.Valid, Source: Source(rec.Source)}
		if rec.Timestamp != 0 {
			s.Timestamp = time.Unix(int64(rec.Timestamp), 0)
		}
		slots[i] = s
	}
	e.snapshots.Restore(int(snaps.Head), int(snaps.Count), slots)

	for slot, sc := range scenes {
		e.scenes.Restore(slot, sc)
	}
	e.cues.Load(cues)
}

// image copies the persisted state and marks a flush in flight.
func (e *Engine) image() *Image {
	img := &Image{
		gen: e.gov.Begin(),
		Mixer: store.MixerState{
			Master: e.master,
			Groups: e.groups,
			Manual: e.manual,
		},
		Scenes: e.scenes.TakeDirty(),
	}
	img.Snapshots.Count = uint8(e.snapshots.Len())
	img.Snapshots.Head = uint8(e.snapshots.Head())
	for i, s := range e.snapshots.Slots() {
		rec := store.SnapshotRecord{Frame: s.Frame, Valid: s.Valid, Source: byte(s.Source)}
		if !s.Timestamp.IsZero() {
			rec.Timestamp = uint32(s.Timestamp.Unix())
		}
		if rec.Source == 0 {
			rec.Source = store.SourceLocal
		}
		img.Snapshots.Records[i] = rec
	}
	if list, ok := e.cues.TakeDirty(); ok {
		img.Cues = &list
	}
	return img
}

// Flushed reports the outcome of writing img. On failure the state stays
// dirty and is retried after the next debounce window.
func (e *Engine) Flushed(img *Image, now time.Time, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		e.gov.Flushed(now, img.gen)
		return
	}
	e.gov.Failed(now)
	for slot := range img.Scenes {
		e.scenes.MarkDirty(slot)
	}
	if img.Cues != nil {
		e.cues.MarkDirty()
	}
	e.log.Warn().Err(err).Msg("state flush failed; will retry")
}

// Shutdown returns the final image to write, or nil when nothing changed.
func (e *Engine) Shutdown() *Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.gov.Dirty() {
		return nil
	}
	return e.image()
}
