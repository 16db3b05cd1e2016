package mixer

import "github.com/coreman2200/funtimes-dmxnode/internal/dmx"

func (e *Engine) takeSnapshot(f *dmx.Frame, src Source) {
	e.snapshots.Push(Snapshot{Frame: *f, Timestamp: e.now, Valid: true, Source: src})
	e.markDirty()
}

// TakeSnapshot stores the manual frame in the history ring.
func (e *Engine) TakeSnapshot(src Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.takeSnapshot(&e.manual, src)
}

func (e *Engine) SnapshotCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots.Len()
}

// Snapshot returns entry i, where 0 is the newest.
func (e *Engine) Snapshot(i int) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshots.Get(i)
}

// RecallSnapshot copies snapshot i into the manual frame, leaving
// ModeRemote if needed.
func (e *Engine) RecallSnapshot(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.snapshots.Get(i)
	if !ok || !s.Valid {
		return false
	}
	e.pushUndo()
	e.scenes.Cancel()
	e.manual = s.Frame
	e.forceLocal("snapshot recall")
	e.markDirty()
	return true
}

// RecallRemoteShadow copies the last remote frame into the manual frame.
func (e *Engine) RecallRemoteShadow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pushUndo()
	e.scenes.Cancel()
	e.manual = e.shadow
	e.forceLocal("shadow recall")
	e.markDirty()
	return true
}

func (e *Engine) pushUndo() {
	e.undo = e.manual
	e.undoMaster = e.master
	e.undoValid = true
}

// Undo swaps the live manual frame and master with the undo slot. Calling
// it twice restores the state before the first call.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.undoValid {
		return false
	}
	e.manual, e.undo = e.undo, e.manual
	e.master, e.undoMaster = e.undoMaster, e.master
	e.scenes.Cancel()
	e.forceLocal("undo")
	e.markDirty()
	return true
}

func (e *Engine) HasUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.undoValid
}
