// Package notify carries transient user-facing notices ("Code copied to
// clipboard") from the session to whatever surface is showing it.
package notify

import (
	"sync"

	"github.com/pterm/pterm"
)

type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier surfaces a short notice to the user.
type Notifier interface {
	Notify(level Level, msg string)
}

// Func adapts a plain function to Notifier.
type Func func(level Level, msg string)

func (f Func) Notify(level Level, msg string) { f(level, msg) }

// Discard drops every notice.
var Discard Notifier = Func(func(Level, string) {})

// Terminal prints notices with pterm's prefix printers.
type Terminal struct{}

func (Terminal) Notify(level Level, msg string) {
	switch level {
	case LevelSuccess:
		pterm.Success.Println(msg)
	case LevelError:
		pterm.Error.Println(msg)
	default:
		pterm.Info.Println(msg)
	}
}

// Notice is one recorded notification.
type Notice struct {
	Level   Level
	Message string
}

// Recorder keeps every notice in order; used by tests and the TUI status line.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Level: level, Message: msg})
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Last returns the most recent notice, if any.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}
