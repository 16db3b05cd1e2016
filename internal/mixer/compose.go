package mixer

import "time"

func (e *Engine) compose(now time.Time, dt float64) {
	src := &e.shadow
	if e.mode.Local() {
		src = &e.manual
		if e.scenes.Active() {
			e.scenes.Update(now, &e.manual)
			if !e.scenes.Active() {
				e.markDirty()
			}
		}
	}
	e.output = *src

	if e.mode.Local() {
		for slot, o := range e.overlays {
			if o != nil {
				e.runOverlay(OverlaySlot(slot), o, dt)
			}
		}
	}

	if e.fixtures != nil {
		if e.post.Limits != nil {
			e.post.Limits(&e.output, e.fixtures)
		}
		if e.post.Dimmers != nil {
			e.post.Dimmers(&e.output, e.fixtures, e.master, &e.groups)
		}
		if e.blackout && e.post.Blackout != nil {
			e.post.Blackout(&e.output, e.fixtures)
		}
	}

	if e.fade.active {
		elapsed := now.Sub(e.fadeStart)
		if elapsed >= e.cfg.ModeFade {
			e.fade.active = false
		} else {
			t := float64(elapsed) / float64(e.cfg.ModeFade)
			Mix(&e.output, &e.fade.from, &e.output, t)
		}
	}
}

// runOverlay applies one layer. A panicking overlay leaves the frame as it
// was before the layer ran.
func (e *Engine) runOverlay(slot OverlaySlot, o Overlay, dt float64) {
	before := e.output
	defer func() {
		if r := recover(); r != nil {
			e.output = before
			e.log.Error().Str("overlay", slot.String()).Interface("panic", r).Msg("overlay failed")
		}
	}()
	o.Apply(&e.manual, &e.output, dt)
}
