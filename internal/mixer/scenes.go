package mixer

import (
	"time"

	"github.com/coreman2200/funtimes-dmxnode/internal/scene"
	"github.com/coreman2200/funtimes-dmxnode/internal/sequence"
)

// RecallScene fades the manual frame to a stored scene. A zero fade
// assigns it at once.
func (e *Engine) RecallScene(slot int, fade time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recallScene(slot, fade)
}

func (e *Engine) recallScene(slot int, fade time.Duration) bool {
	if e.mode == ModeRemote {
		return false
	}
	sc, ok := e.scenes.Get(slot)
	if !ok {
		return false
	}
	e.pushUndo()
	if fade <= 0 {
		e.scenes.Cancel()
		e.manual = sc.Frame
		e.markDirty()
	} else {
		e.scenes.Start(&e.manual, &sc.Frame, fade, slot, e.now)
	}
	e.log.Debug().Int("slot", slot).Str("name", sc.Name).Dur("fade", fade).Msg("scene recall")
	return true
}

// SaveScene stores the current manual frame, without dimmers applied.
func (e *Engine) SaveScene(slot int, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.scenes.Save(slot, name, &e.manual); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) DeleteScene(slot int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.scenes.Delete(slot); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) RenameScene(slot int, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.scenes.Rename(slot, name); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) Scene(slot int) (scene.Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes.Get(slot)
}

// FreeSceneSlot returns the first empty slot or -1.
func (e *Engine) FreeSceneSlot() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scenes.FreeSlot()
}

// SceneInfo is a table row without the frame.
type SceneInfo struct {
	Slot int    `json:"slot"`
	Name string `json:"name"`
}

// Scenes lists the valid scenes in slot order.
func (e *Engine) Scenes() []SceneInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []SceneInfo
	for i := 0; i < scene.MaxScenes; i++ {
		if sc, ok := e.scenes.Get(i); ok {
			out = append(out, SceneInfo{Slot: i, Name: sc.Name})
		}
	}
	return out
}

func (e *Engine) CancelSceneFade() {
	e.mu.Lock()
	e.scenes.Cancel()
	e.mu.Unlock()
}

// Cue jumps are rejected while the remote feed is authoritative.

func (e *Engine) CueGo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote {
		return false
	}
	return e.cues.Go(e.now)
}

func (e *Engine) CueBack() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote {
		return false
	}
	return e.cues.Back(e.now)
}

func (e *Engine) CueGoTo(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote {
		return false
	}
	return e.cues.GoTo(i, e.now)
}

func (e *Engine) CueStop() {
	e.mu.Lock()
	e.cues.Stop()
	e.mu.Unlock()
}

func (e *Engine) AddCue(c sequence.Cue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.cues.Add(c); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) RemoveCue(i int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.cues.Remove(i); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) UpdateCue(i int, c sequence.Cue) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.cues.Update(i, c); err != nil {
		return err
	}
	e.markDirty()
	return nil
}

func (e *Engine) Cues() sequence.CueList {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cues.Cues()
}
