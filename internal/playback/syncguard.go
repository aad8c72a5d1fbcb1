package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yoruanime/yoru/internal/tracker"
)

const (
	defaultSyncThreshold = 0.8
	notificationTTL      = 3 * time.Second
)

// ProgressTracker is the progress tracking service as seen by the guard
type ProgressTracker interface {
	IsAuthenticated() bool
	UpdateProgress(ctx context.Context, update tracker.Update) (*tracker.Result, error)
}

// SyncResultMsg carries the outcome of a progress update
type SyncResultMsg struct {
	Generation uint64
	Update     tracker.Update
	Result     *tracker.Result
	Err        error
}

// Notification is a transient message for the UI
type Notification struct {
	Text    string
	Episode int
	At      time.Time
	TTL     time.Duration
}

// Expired reports whether the notification should no longer be shown
func (n Notification) Expired(now time.Time) bool {
	return now.Sub(n.At) >= n.TTL
}

// SyncGuard decides when a progress update is sent. At most one update
// is in flight; the watched-threshold trigger fires once per episode and
// the ended trigger fires every time. Triggers arriving while an update
// is in flight are dropped.
type SyncGuard struct {
	tracker   ProgressTracker
	threshold float64
	timeout   time.Duration
	logger    *slog.Logger

	mediaID       int
	totalEpisodes int
	lastSynced    *int
	inFlight      bool
	generation    uint64

	notifications chan Notification
	now           func() time.Time
}

// NewSyncGuard creates a guard; a threshold outside (0, 1] means 0.8
func NewSyncGuard(t ProgressTracker, threshold float64, logger *slog.Logger) *SyncGuard {
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSyncThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncGuard{
		tracker:       t,
		threshold:     threshold,
		timeout:       15 * time.Second,
		logger:        logger.With("component", "sync"),
		notifications: make(chan Notification, 8),
		now:           time.Now,
	}
}

// SetMedia sets the media the session is syncing
func (g *SyncGuard) SetMedia(mediaID, totalEpisodes int) {
	g.mediaID = mediaID
	g.totalEpisodes = totalEpisodes
}

// InFlight reports whether an update is outstanding
func (g *SyncGuard) InFlight() bool {
	return g.inFlight
}

// Notifications delivers sync confirmations. The channel is closed by
// Reset and replaced with a fresh one.
func (g *SyncGuard) Notifications() <-chan Notification {
	return g.notifications
}

// OnTimeUpdate fires the threshold trigger the first time the watched
// fraction of episode reaches the threshold
func (g *SyncGuard) OnTimeUpdate(currentTime, duration float64, episode int) tea.Cmd {
	if duration <= 0 || currentTime/duration < g.threshold {
		return nil
	}
	if g.lastSynced != nil && *g.lastSynced == episode {
		return nil
	}
	if !g.ready() {
		return nil
	}

	ep := episode
	g.lastSynced = &ep
	return g.fire(tracker.Update{
		MediaID:       g.mediaID,
		Episode:       episode,
		TotalEpisodes: g.totalEpisodes,
		Trigger:       tracker.TriggerThreshold,
	})
}

// OnEnded fires the ended trigger regardless of the threshold trigger
func (g *SyncGuard) OnEnded(episode, totalEpisodes int) tea.Cmd {
	if !g.ready() {
		return nil
	}
	return g.fire(tracker.Update{
		MediaID:       g.mediaID,
		Episode:       episode,
		TotalEpisodes: totalEpisodes,
		Trigger:       tracker.TriggerEnded,
	})
}

// Settle clears the in-flight flag for the outcome of fire. Results from
// before the last Reset are ignored.
func (g *SyncGuard) Settle(msg SyncResultMsg) {
	if msg.Generation != g.generation {
		return
	}
	g.inFlight = false

	if msg.Err != nil {
		if errors.Is(msg.Err, tracker.ErrNotAuthenticated) {
			g.logger.Debug("sync skipped, not authenticated", "episode", msg.Update.Episode)
			return
		}
		g.logger.Warn("progress sync failed",
			"media_id", msg.Update.MediaID,
			"episode", msg.Update.Episode,
			"trigger", msg.Update.Trigger,
			"error", msg.Err,
		)
		return
	}

	g.logger.Info("progress synced",
		"media_id", msg.Update.MediaID,
		"episode", msg.Update.Episode,
		"trigger", msg.Update.Trigger,
		"status", msg.Update.Status(),
	)
	n := Notification{
		Text:    fmt.Sprintf("Synced: Episode %d", msg.Update.Episode),
		Episode: msg.Update.Episode,
		At:      g.now(),
		TTL:     notificationTTL,
	}
	select {
	case g.notifications <- n:
	default:
		g.logger.Debug("notification dropped", "text", n.Text)
	}
}

// Reset forgets all sync state; outstanding results are ignored and
// pending WaitForNotification commands return
func (g *SyncGuard) Reset() {
	g.generation++
	g.inFlight = false
	g.lastSynced = nil
	close(g.notifications)
	g.notifications = make(chan Notification, cap(g.notifications))
}

// WaitForNotification returns a command that delivers the next
// notification, or nil once the guard is reset
func (g *SyncGuard) WaitForNotification() tea.Cmd {
	ch := g.Notifications()
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return n
	}
}

func (g *SyncGuard) ready() bool {
	if g.inFlight {
		return false
	}
	return g.tracker != nil && g.tracker.IsAuthenticated() && g.mediaID > 0
}

// fire marks the guard in flight in the same turn it builds the request
func (g *SyncGuard) fire(update tracker.Update) tea.Cmd {
	g.inFlight = true
	generation := g.generation
	t := g.tracker
	timeout := g.timeout

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := t.UpdateProgress(ctx, update)
		return SyncResultMsg{Generation: generation, Update: update, Result: result, Err: err}
	}
}
