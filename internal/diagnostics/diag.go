package diagnostics

import (
	"fmt"
	"sync"
	"time"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

const (
	CodeRemoteDetected = "REMOTE.DETECTED"
	CodeModeChange     = "MODE.CHANGE"
	CodePersistFailed  = "PERSIST.FAILED"
	CodeStateCorrupt   = "PERSIST.CORRUPT"
	CodeOutputFailed   = "OUTPUT.FAILED"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
	At             time.Time      `json:"at"`
}

func RemoteDetected(now time.Time, packets uint64) Diagnostic {
	return Diagnostic{
		Severity:       Info,
		Code:           CodeRemoteDetected,
		Summary:        "Remote console is sending while the node is local primary",
		LikelyCauses:   []string{"Console came back online", "Another sender on the universe"},
		SuggestedFixes: []string{"Switch to remote to hand control back"},
		Evidence:       map[string]any{"packets": packets},
		At:             now,
	}
}

func ModeChange(now time.Time, from, to string) Diagnostic {
	return Diagnostic{
		Severity: Info,
		Code:     CodeModeChange,
		Summary:  fmt.Sprintf("Control mode %s -> %s", from, to),
		Evidence: map[string]any{"from": from, "to": to},
		At:       now,
	}
}

func PersistFailed(now time.Time, err error) Diagnostic {
	return Diagnostic{
		Severity:       Warn,
		Code:           CodePersistFailed,
		Summary:        "Saving node state failed; retrying",
		Detail:         err.Error(),
		LikelyCauses:   []string{"Data directory is read-only", "Disk full"},
		SuggestedFixes: []string{"Check node.data_dir permissions and free space"},
		At:             now,
	}
}

func StateCorrupt(now time.Time, what string, err error) Diagnostic {
	return Diagnostic{
		Severity:       Warn,
		Code:           CodeStateCorrupt,
		Summary:        fmt.Sprintf("Stored %s was unreadable; defaults loaded", what),
		Detail:         err.Error(),
		SuggestedFixes: []string{"Save a scene or change a value to rewrite the file"},
		At:             now,
	}
}

func OutputFailed(now time.Time, sink string, err error) Diagnostic {
	return Diagnostic{
		Severity: Err,
		Code:     CodeOutputFailed,
		Summary:  fmt.Sprintf("Output %s rejected a frame", sink),
		Detail:   err.Error(),
		At:       now,
	}
}

// Limiter passes at most one diagnostic per code within Every.
type Limiter struct {
	Every time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

func NewLimiter(every time.Duration) *Limiter {
	return &Limiter{Every: every, last: map[string]time.Time{}}
}

func (l *Limiter) Allow(code string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if t, ok := l.last[code]; ok && now.Sub(t) < l.Every {
		return false
	}
	l.last[code] = now
	return true
}
