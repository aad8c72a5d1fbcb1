package playback

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yoruanime/yoru/internal/player"
)

// State is the watch session state
type State int

const (
	StateIdle State = iota
	StateResolvingSources
	StateSourceSelected
	StatePlaying
	StatePaused
	StateEpisodeEnded
	StateNoSources
	StateResolutionFailed
	StatePlaybackFailed
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:             "idle",
	StateResolvingSources: "resolving sources",
	StateSourceSelected:   "source selected",
	StatePlaying:          "playing",
	StatePaused:           "paused",
	StateEpisodeEnded:     "episode ended",
	StateNoSources:        "no sources",
	StateResolutionFailed: "resolution failed",
	StatePlaybackFailed:   "playback failed",
	StateClosed:           "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// hasSource reports whether engine events drive the state
func (s State) hasSource() bool {
	switch s {
	case StateSourceSelected, StatePlaying, StatePaused, StateEpisodeEnded, StatePlaybackFailed:
		return true
	}
	return false
}

// EngineError is a playback fault reported by the media engine
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("playback failed: %v", e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Controller drives one watch session. All methods run on the Update
// loop; I/O is returned as tea.Cmd and comes back through Update.
type Controller struct {
	resolver *Resolver
	adapter  *Adapter
	guard    *SyncGuard
	keys     *KeyRouter
	logger   *slog.Logger

	identity      SessionIdentity
	title         string
	totalEpisodes int
	state         State
	candidates    []SourceCandidate
	active        int
	playing       SessionIdentity // identity of the loaded source
	err           error

	unsubscribe func()
	followUp    tea.Cmd // set by onEngineEvent, returned by handleEvent
}

// NewController wires the session components together
func NewController(resolver *Resolver, adapter *Adapter, guard *SyncGuard, keys *KeyRouter, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		resolver: resolver,
		adapter:  adapter,
		guard:    guard,
		keys:     keys,
		logger:   logger.With("component", "controller"),
		active:   -1,
	}
	c.unsubscribe = adapter.Subscribe(c.onEngineEvent)
	return c
}

// Open starts the session at identity
func (c *Controller) Open(identity SessionIdentity, title string, totalEpisodes int) tea.Cmd {
	if c.state == StateClosed {
		return nil
	}
	c.identity = identity
	c.title = title
	c.totalEpisodes = totalEpisodes
	c.guard.SetMedia(identity.AnimeID, totalEpisodes)
	c.keys.Install()
	return c.resolve()
}

// SelectEpisode switches to another episode. Episodes are only ever
// changed by the user.
func (c *Controller) SelectEpisode(episode int) tea.Cmd {
	if c.state == StateClosed || c.state == StateIdle {
		return nil
	}
	c.identity.Episode = episode
	return c.resolve()
}

// SetDub switches between subbed and dubbed sources
func (c *Controller) SetDub(dub bool) tea.Cmd {
	if c.state == StateClosed || c.state == StateIdle {
		return nil
	}
	c.identity.Dub = dub
	return c.resolve()
}

// Retry resolves the current identity again
func (c *Controller) Retry() tea.Cmd {
	if c.state == StateClosed || c.state == StateIdle {
		return nil
	}
	return c.resolve()
}

func (c *Controller) resolve() tea.Cmd {
	c.state = StateResolvingSources
	c.candidates = nil
	c.active = -1
	c.err = nil

	ticket, cmd := c.resolver.Begin(c.identity, c.title)
	c.logger.Debug("resolving sources", "identity", c.identity, "ticket", ticket)
	return cmd
}

// SelectSource switches to candidate i of the current list without
// resolving again
func (c *Controller) SelectSource(i int) tea.Cmd {
	if c.state == StateClosed || i < 0 || i >= len(c.candidates) {
		return nil
	}
	c.selectSource(i)
	return nil
}

func (c *Controller) selectSource(i int) {
	candidate := c.candidates[i]
	if err := c.adapter.SetActiveSource(candidate, c.displayTitle()); err != nil {
		c.state = StatePlaybackFailed
		c.err = err
		c.logger.Warn("failed to set active source", "source", candidate.Label(), "error", err)
		return
	}
	c.active = i
	c.playing = c.identity
	c.state = StateSourceSelected
	c.err = nil
	c.logger.Info("source selected", "identity", c.identity, "source", candidate.Label())
}

// Update applies a message to the session and returns follow-up work
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	if c.state == StateClosed {
		return nil
	}

	switch msg := msg.(type) {
	case SourcesResolvedMsg:
		return c.handleResolved(msg)
	case EventMsg:
		return c.handleEvent(msg)
	case SyncResultMsg:
		c.guard.Settle(msg)
	}
	return nil
}

func (c *Controller) handleResolved(msg SourcesResolvedMsg) tea.Cmd {
	if !c.resolver.Settle(msg) {
		c.logger.Debug("dropping superseded sources", "identity", msg.Identity, "ticket", msg.Ticket)
		return nil
	}

	switch {
	case msg.Err != nil:
		c.state = StateResolutionFailed
		c.err = msg.Err
		c.logger.Warn("source resolution failed", "identity", msg.Identity, "error", msg.Err)
	case len(msg.Candidates) == 0:
		c.state = StateNoSources
		c.logger.Info("no sources found", "identity", msg.Identity)
	default:
		c.candidates = msg.Candidates
		c.selectSource(0)
	}
	return nil
}

func (c *Controller) handleEvent(msg EventMsg) tea.Cmd {
	handle := c.adapter.Handle()
	if handle == nil || msg.HandleID != handle.ID {
		return nil
	}
	if c.adapter.Stale(msg.Event) {
		c.logger.Debug("dropping event from replaced source",
			"event", msg.Event.Kind,
			"load", msg.Event.Load,
			"current", c.adapter.LoadSequence(),
		)
		return nil
	}

	c.followUp = nil
	c.adapter.HandleEvent(msg.Event)
	cmd := c.followUp
	c.followUp = nil
	return cmd
}

// onEngineEvent is the controller's adapter subscription. It runs after
// the adapter has folded ev into its snapshot.
func (c *Controller) onEngineEvent(ev player.Event) {
	if c.state == StateClosed {
		return
	}

	switch ev.Kind {
	case player.EventPlay:
		if c.state.hasSource() {
			c.state = StatePlaying
		}
	case player.EventPause:
		if c.state.hasSource() {
			c.state = StatePaused
		}
	case player.EventTimeUpdate:
		if c.playing.Episode > 0 {
			c.followUp = c.guard.OnTimeUpdate(ev.CurrentTime, ev.Duration, c.playing.Episode)
		}
	case player.EventEnded:
		if c.state.hasSource() {
			c.state = StateEpisodeEnded
		}
		if c.playing.Episode > 0 {
			c.followUp = c.guard.OnEnded(c.playing.Episode, c.totalEpisodes)
		}
	case player.EventError:
		if c.state.hasSource() {
			c.state = StatePlaybackFailed
			c.err = &EngineError{Err: ev.Err}
			c.logger.Warn("playback failed", "identity", c.playing, "error", ev.Err)
		}
	}
}

// HandleKey routes a key press to the player
func (c *Controller) HandleKey(ev *KeyEvent) bool {
	if c.state == StateClosed {
		return false
	}
	return c.keys.HandleKeyEvent(ev)
}

// Close ends the session: the key router is removed, outstanding
// requests are abandoned and the engine is disposed. Repeat calls are
// no-ops.
func (c *Controller) Close() {
	if c.state == StateClosed {
		return
	}
	c.state = StateClosed
	c.keys.Remove()
	c.resolver.Abandon()
	c.guard.Reset()
	c.unsubscribe()
	c.adapter.Dispose()
	c.logger.Debug("session closed", "identity", c.identity)
}

// State returns the session state
func (c *Controller) State() State { return c.state }

// Identity returns the current session identity
func (c *Controller) Identity() SessionIdentity { return c.identity }

// Title returns the title hint of the session
func (c *Controller) Title() string { return c.title }

// TotalEpisodes returns the known episode count
func (c *Controller) TotalEpisodes() int { return c.totalEpisodes }

// Loading reports whether a source resolution is in flight
func (c *Controller) Loading() bool { return c.resolver.Loading() }

// Err returns the detail of a failure state
func (c *Controller) Err() error { return c.err }

// Snapshot returns the engine lifecycle state
func (c *Controller) Snapshot() Snapshot { return c.adapter.Snapshot() }

// Candidates returns a copy of the current source list
func (c *Controller) Candidates() []SourceCandidate {
	return append([]SourceCandidate(nil), c.candidates...)
}

// Active returns the selected candidate and its index
func (c *Controller) Active() (SourceCandidate, int, bool) {
	if c.active < 0 || c.active >= len(c.candidates) {
		return SourceCandidate{}, -1, false
	}
	return c.candidates[c.active], c.active, true
}

// Playing returns the identity of the loaded source
func (c *Controller) Playing() SessionIdentity { return c.playing }

func (c *Controller) displayTitle() string {
	if c.title == "" {
		return fmt.Sprintf("Episode %d", c.identity.Episode)
	}
	return fmt.Sprintf("%s - Episode %d", c.title, c.identity.Episode)
}
