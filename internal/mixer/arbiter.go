package mixer

import "time"

// OnRemoteFrame stores a remote frame in the shadow buffer. Data past 512
// bytes is dropped. The shadow is written in every mode.
func (e *Engine) OnRemoteFrame(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.shadow.Fill(data)
	e.lastRemote = e.now
	e.packets++
	e.fpsCount++

	switch e.mode {
	case ModeLocalAuto:
		e.resumeRemote("remote frame")
	case ModeLocalPrimary:
		if !e.remoteDetected {
			e.remoteDetected = true
			e.log.Info().Msg("remote detected while local primary")
		}
	}
}

// OnRemotePoll signals remote presence without data.
func (e *Engine) OnRemotePoll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeLocalAuto {
		e.resumeRemote("remote poll")
	}
}

func (e *Engine) resumeRemote(why string) {
	e.takeSnapshot(&e.manual, SourceLocal)
	e.setMode(ModeRemote, why)
}

// checkRemoteTimeout falls back to local control once the remote has been
// quiet for the timeout. The window starts at the later of entering
// ModeRemote and the last frame.
func (e *Engine) checkRemoteTimeout(now time.Time) {
	if e.mode != ModeRemote {
		return
	}
	ref := e.remoteSince
	if e.lastRemote.After(ref) {
		ref = e.lastRemote
	}
	if now.Sub(ref) < e.cfg.RemoteTimeout {
		return
	}
	if !e.lastRemote.IsZero() {
		e.takeSnapshot(&e.shadow, SourceRemote)
		e.manual = e.shadow
		e.markDirty()
		e.setMode(ModeLocalAuto, "remote timeout")
		return
	}
	e.setMode(ModeLocalAuto, "no remote")
}

// setMode switches authority and starts a mode crossfade from the last
// output. A running scene crossfade is dropped: its frames belong to the
// manual frame the transition replaces or hides. Entering ModeRemote also
// halts cue auto-follow.
func (e *Engine) setMode(m Mode, why string) {
	prev := e.mode
	e.scenes.Cancel()
	if m == ModeRemote {
		e.cues.Stop()
	}
	e.fade.from = e.output
	e.fade.active = e.cfg.ModeFade > 0
	e.fadeStart = e.now
	e.mode = m
	if m == ModeRemote {
		e.remoteSince = e.now
	}
	e.log.Info().Stringer("from", prev).Stringer("to", m).Str("reason", why).Msg("mode change")
}

// forceLocal moves a recall out of ModeRemote so its values take effect.
// The outgoing remote output is kept in the history first.
func (e *Engine) forceLocal(why string) {
	if e.mode == ModeRemote {
		e.takeSnapshot(&e.output, SourceRemote)
		e.setMode(ModeLocalManual, why)
	}
}

// SwitchToLocal hands authority to the operator, starting from what is
// currently on the output.
func (e *Engine) SwitchToLocal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeLocalManual {
		return false
	}
	if e.mode == ModeRemote {
		e.takeSnapshot(&e.output, SourceRemote)
	}
	e.manual = e.output
	e.setMode(ModeLocalManual, "operator")
	e.markDirty()
	return true
}

// SwitchToRemote gives authority back to the remote feed.
func (e *Engine) SwitchToRemote() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeRemote {
		return false
	}
	e.takeSnapshot(&e.manual, SourceLocal)
	e.remoteDetected = false
	e.setMode(ModeRemote, "operator")
	return true
}

// SwitchToPrimary locks authority to the operator. Remote frames are
// still shadowed and reported through ConsumeRemoteDetected.
func (e *Engine) SwitchToPrimary() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode == ModeLocalPrimary {
		return false
	}
	if e.mode == ModeRemote {
		e.takeSnapshot(&e.output, SourceRemote)
		e.manual = e.output
	}
	e.remoteDetected = false
	e.setMode(ModeLocalPrimary, "operator")
	e.markDirty()
	return true
}

// ConsumeRemoteDetected returns and clears the one-shot remote presence
// flag raised in ModeLocalPrimary.
func (e *Engine) ConsumeRemoteDetected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	d := e.remoteDetected
	e.remoteDetected = false
	return d
}
