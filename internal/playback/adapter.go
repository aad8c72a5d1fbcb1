package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/yoruanime/yoru/internal/player"
)

// ErrNotInitialized is returned when the adapter is used before
// InitializeOnce or after Dispose
var ErrNotInitialized = errors.New("media engine not initialized")

// CommandKind identifies a player command
type CommandKind int

const (
	CommandTogglePlay CommandKind = iota
	CommandSeek
	CommandVolume
	CommandToggleMute
	CommandToggleFullscreen
)

var commandNames = map[CommandKind]string{
	CommandTogglePlay:       "toggle-play",
	CommandSeek:             "seek",
	CommandVolume:           "volume",
	CommandToggleMute:       "toggle-mute",
	CommandToggleFullscreen: "toggle-fullscreen",
}

func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return "unknown"
}

// EngineFactory builds the engine the first time it is needed
type EngineFactory func() (player.Engine, error)

// ProxyRewriter turns an upstream source into a URL the engine can load
type ProxyRewriter interface {
	ProxyURL(sourceURL, referer string) string
}

// EngineHandle is the single live engine of a session
type EngineHandle struct {
	ID        string
	Engine    player.Engine
	CreatedAt time.Time
}

// Snapshot is the engine lifecycle state as last observed
type Snapshot struct {
	Playing     bool
	CurrentTime float64 // seconds
	Duration    float64 // seconds
	Fullscreen  bool
	Volume      float64 // 0.0 - 1.0
	Muted       bool
}

// Progress returns the watched fraction, 0 when duration is unknown
func (s Snapshot) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.CurrentTime / s.Duration
}

// EventMsg carries one engine event into the Update loop
type EventMsg struct {
	HandleID string
	Event    player.Event
}

// EngineClosedMsg is delivered once the engine's event stream ends
type EngineClosedMsg struct {
	HandleID string
}

type subscriber struct {
	id int
	fn func(player.Event)
}

// Adapter owns the session's media engine. The engine is acquired once
// and only re-pointed at new sources; Dispose is the single release.
// Methods are meant for the Update loop and are not safe for concurrent
// use.
type Adapter struct {
	factory     EngineFactory
	proxy       ProxyRewriter
	logger      *slog.Logger
	timeout     time.Duration
	handle      *EngineHandle
	snapshot    Snapshot
	volumeKnown bool
	activeURL   string
	loadSeq     uint64
	subscribers []subscriber
	nextSubID   int
}

// NewAdapter creates an adapter; nothing is started until InitializeOnce
func NewAdapter(factory EngineFactory, proxy ProxyRewriter, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		factory: factory,
		proxy:   proxy,
		logger:  logger.With("component", "adapter"),
		timeout: 5 * time.Second,
	}
}

// InitializeOnce builds and starts the engine. Later calls return the
// existing handle without touching the engine.
func (a *Adapter) InitializeOnce(ctx context.Context, mount player.Mount) (*EngineHandle, error) {
	if a.handle != nil {
		return a.handle, nil
	}

	engine, err := a.factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create media engine: %w", err)
	}
	if err := engine.Start(ctx, mount); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("failed to start media engine: %w", err)
	}

	a.handle = &EngineHandle{
		ID:        uuid.NewString(),
		Engine:    engine,
		CreatedAt: time.Now(),
	}
	a.logger.Debug("media engine initialized", "handle", a.handle.ID)
	return a.handle, nil
}

// Handle returns the live handle, or nil
func (a *Adapter) Handle() *EngineHandle {
	return a.handle
}

// SetActiveSource points the engine at the proxied candidate URL
func (a *Adapter) SetActiveSource(candidate SourceCandidate, title string) error {
	if a.handle == nil {
		return ErrNotInitialized
	}

	// the replaced source's events are stale from here on, even if Load fails
	a.loadSeq++
	target := a.proxy.ProxyURL(candidate.URL, candidate.Referrer)
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.handle.Engine.Load(ctx, target, player.LoadOptions{Title: title, Sequence: a.loadSeq}); err != nil {
		return fmt.Errorf("failed to load source: %w", err)
	}

	a.activeURL = target
	a.snapshot.Playing = false
	a.snapshot.CurrentTime = 0
	a.snapshot.Duration = 0
	return nil
}

// LoadSequence returns the sequence of the last source load
func (a *Adapter) LoadSequence() uint64 {
	return a.loadSeq
}

// Stale reports whether ev belongs to a source that has since been
// replaced. Engine-wide events are never stale.
func (a *Adapter) Stale(ev player.Event) bool {
	return ev.Load != 0 && ev.Load != a.loadSeq
}

// ActiveURL returns the URL last handed to the engine
func (a *Adapter) ActiveURL() string {
	return a.activeURL
}

// IssueCommand applies a player command. payload is seconds for
// CommandSeek and a volume fraction for CommandVolume. Commands whose
// inputs are not known yet are no-ops.
func (a *Adapter) IssueCommand(kind CommandKind, payload float64) error {
	if a.handle == nil {
		return ErrNotInitialized
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	engine := a.handle.Engine
	s := &a.snapshot

	switch kind {
	case CommandTogglePlay:
		if s.Duration <= 0 {
			return nil
		}
		if err := engine.SetPause(ctx, s.Playing); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		s.Playing = !s.Playing

	case CommandSeek:
		if s.Duration <= 0 {
			return nil
		}
		target := clamp(s.CurrentTime+payload, 0, s.Duration)
		if err := engine.SeekTo(ctx, target); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		s.CurrentTime = target

	case CommandVolume:
		if !a.volumeKnown {
			return nil
		}
		target := math.Round(clamp(s.Volume+payload, 0, 1)*100) / 100
		if err := engine.SetVolume(ctx, target); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		s.Volume = target

	case CommandToggleMute:
		if !a.volumeKnown {
			return nil
		}
		if err := engine.SetMute(ctx, !s.Muted); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		s.Muted = !s.Muted

	case CommandToggleFullscreen:
		if err := engine.SetFullscreen(ctx, !s.Fullscreen); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		s.Fullscreen = !s.Fullscreen

	default:
		return fmt.Errorf("unknown command %d", kind)
	}
	return nil
}

// HandleEvent folds an engine event into the snapshot, then notifies
// subscribers in subscription order
func (a *Adapter) HandleEvent(ev player.Event) {
	s := &a.snapshot
	switch ev.Kind {
	case player.EventPlay:
		s.Playing = true
	case player.EventPause:
		s.Playing = false
	case player.EventTimeUpdate:
		s.CurrentTime = ev.CurrentTime
		s.Duration = ev.Duration
	case player.EventEnded:
		s.Playing = false
		if ev.Duration > 0 {
			s.Duration = ev.Duration
			s.CurrentTime = ev.Duration
		}
	case player.EventVolumeChange:
		s.Volume = clamp(ev.Volume, 0, 1)
		s.Muted = ev.Muted
		a.volumeKnown = true
	case player.EventFullscreenChange:
		s.Fullscreen = ev.Fullscreen
	case player.EventError:
		s.Playing = false
	}

	for _, sub := range a.subscribers {
		sub.fn(ev)
	}
}

// Subscribe registers a lifecycle listener and returns its removal func
func (a *Adapter) Subscribe(fn func(player.Event)) (unsubscribe func()) {
	a.nextSubID++
	id := a.nextSubID
	a.subscribers = append(a.subscribers, subscriber{id: id, fn: fn})

	return func() {
		for i, sub := range a.subscribers {
			if sub.id == id {
				a.subscribers = append(a.subscribers[:i], a.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Snapshot returns a copy of the lifecycle state
func (a *Adapter) Snapshot() Snapshot {
	return a.snapshot
}

// WaitForEvent returns a command that delivers the next engine event
func (a *Adapter) WaitForEvent() tea.Cmd {
	if a.handle == nil {
		return nil
	}
	handle := a.handle
	return func() tea.Msg {
		ev, ok := <-handle.Engine.Events()
		if !ok {
			return EngineClosedMsg{HandleID: handle.ID}
		}
		return EventMsg{HandleID: handle.ID, Event: ev}
	}
}

// Dispose closes the engine and drops every listener. Repeat calls are
// no-ops.
func (a *Adapter) Dispose() {
	a.subscribers = nil
	if a.handle == nil {
		return
	}

	handle := a.handle
	a.handle = nil
	a.activeURL = ""
	if err := handle.Engine.Close(); err != nil {
		a.logger.Warn("failed to close media engine", "handle", handle.ID, "error", err)
	}
	a.logger.Debug("media engine disposed", "handle", handle.ID)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
