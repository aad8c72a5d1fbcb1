package player

import (
	"context"
	"time"
)

// Engine is a long-lived media engine that plays one source at a time.
// Start launches it once; Load re-points it at a new URL without
// restarting it.
type Engine interface {
	Start(ctx context.Context, mount Mount) error
	Load(ctx context.Context, url string, opts LoadOptions) error

	SetPause(ctx context.Context, paused bool) error
	SeekTo(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error // 0.0 - 1.0
	SetMute(ctx context.Context, muted bool) error
	SetFullscreen(ctx context.Context, fullscreen bool) error

	// Events delivers lifecycle events until the engine is closed
	Events() <-chan Event
	Close() error
}

// Mount describes where and how the engine presents video
type Mount struct {
	WindowTitle string
	Volume      int // 0-100
	Fullscreen  bool
}

// LoadOptions contains options for loading a source
type LoadOptions struct {
	Title     string
	StartTime time.Duration
	// Sequence identifies this load; per-source events carry it in
	// Event.Load
	Sequence uint64
}

// EventKind identifies an engine lifecycle event
type EventKind int

const (
	EventReady EventKind = iota
	EventError
	EventPlay
	EventPause
	EventTimeUpdate
	EventEnded
	EventVolumeChange
	EventFullscreenChange
)

var eventNames = map[EventKind]string{
	EventReady:            "ready",
	EventError:            "error",
	EventPlay:             "play",
	EventPause:            "pause",
	EventTimeUpdate:       "time-update",
	EventEnded:            "ended",
	EventVolumeChange:     "volume-change",
	EventFullscreenChange: "fullscreen-change",
}

// String returns the string representation of EventKind
func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one engine lifecycle event. Fields not relevant to Kind are
// zero.
type Event struct {
	Kind        EventKind
	CurrentTime float64 // seconds
	Duration    float64 // seconds
	Volume      float64 // 0.0 - 1.0
	Muted       bool
	Fullscreen  bool
	Err         error
	// Load is the Sequence of the source the event belongs to, 0 for
	// engine-wide events (ready, volume, fullscreen, process failure)
	Load uint64
}

// PlaybackProgress is a point-in-time reading of engine properties
type PlaybackProgress struct {
	CurrentTime float64
	Duration    float64
	Paused      bool
	EOF         bool
	Idle        bool
	Volume      float64 // 0.0 - 1.0
	Muted       bool
	Fullscreen  bool
}

// Percentage returns watched percentage (0-100)
func (p PlaybackProgress) Percentage() float64 {
	if p.Duration <= 0 {
		return 0
	}
	return p.CurrentTime / p.Duration * 100
}
