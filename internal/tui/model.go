package tui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yoruanime/yoru/internal/clipboard"
	"github.com/yoruanime/yoru/internal/history"
	"github.com/yoruanime/yoru/internal/playback"
	"github.com/yoruanime/yoru/internal/tui/styles"
)

const notificationSweep = 500 * time.Millisecond

// Session describes what the watch view opens with
type Session struct {
	Identity      playback.SessionIdentity
	Title         string
	TotalEpisodes int
	Episodes      []int // selectable episodes from the catalog, optional
}

// Deps are the components the watch view drives
type Deps struct {
	Controller *playback.Controller
	Adapter    *playback.Adapter
	Guard      *playback.SyncGuard
	History    *history.Service   // optional
	Clipboard  *clipboard.Service // optional
	Logger     *slog.Logger
}

type notificationSweepMsg struct{}

// Model is the watch session view
type Model struct {
	ctrl      *playback.Controller
	adapter   *playback.Adapter
	guard     *playback.SyncGuard
	history   *history.Service
	clipboard *clipboard.Service
	logger    *slog.Logger

	session  Session
	episodes []int

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	jump     *EpisodeJump
	showHelp bool

	notifications []playback.Notification
	status        string
	width         int
	height        int
	now           func() time.Time
	quitting      bool
}

// New creates the watch view. The adapter must already be initialized.
func New(deps Deps, session Session) *Model {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SubtitleStyle

	episodes := session.Episodes
	if len(episodes) < session.Identity.Episode {
		episodes = episodeList(session.TotalEpisodes, session.Identity.Episode)
	}

	return &Model{
		ctrl:      deps.Controller,
		adapter:   deps.Adapter,
		guard:     deps.Guard,
		history:   deps.History,
		clipboard: deps.Clipboard,
		logger:    logger.With("component", "tui"),
		session:   session,
		episodes:  episodes,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		spinner:   s,
		jump:      NewEpisodeJump(episodes),
		now:       time.Now,
	}
}

// episodeList numbers episodes 1..total, or up to current when the total
// is unknown
func episodeList(total, current int) []int {
	n := total
	if n <= 0 {
		n = max(current, 1)
	}
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.ctrl.Open(m.session.Identity, m.session.Title, m.session.TotalEpisodes),
		m.adapter.WaitForEvent(),
		m.guard.WaitForNotification(),
		m.spinner.Tick,
		sweepNotifications(),
	)
}

func sweepNotifications() tea.Cmd {
	return tea.Tick(notificationSweep, func(time.Time) tea.Msg { return notificationSweepMsg{} })
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.jump.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case playback.EventMsg:
		return m, tea.Batch(m.ctrl.Update(msg), m.adapter.WaitForEvent())

	case playback.EngineClosedMsg:
		m.logger.Info("player window closed")
		return m, m.quit()

	case playback.SourcesResolvedMsg, playback.SyncResultMsg:
		return m, m.ctrl.Update(msg)

	case playback.Notification:
		m.notifications = append(m.notifications, msg)
		return m, m.guard.WaitForNotification()

	case notificationSweepMsg:
		m.pruneNotifications()
		return m, sweepNotifications()

	case clipboard.CopiedMsg:
		if msg.Err != nil {
			m.status = "copy failed: " + msg.Err.Error()
		} else {
			m.status = "stream url copied"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	target := playback.TargetPage
	if m.jump.IsActive() {
		target = playback.TargetTextInput
	}

	if code, ok := m.keys.playerCode(msg); ok {
		if m.ctrl.HandleKey(&playback.KeyEvent{Code: code, Target: target}) {
			return nil
		}
	}

	if m.jump.IsActive() {
		return m.handleJumpKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Mute):
		m.issue(playback.CommandToggleMute)
	case key.Matches(msg, m.keys.NextEpisode):
		return m.selectEpisode(m.ctrl.Identity().Episode + 1)
	case key.Matches(msg, m.keys.PrevEpisode):
		return m.selectEpisode(m.ctrl.Identity().Episode - 1)
	case key.Matches(msg, m.keys.ToggleDub):
		m.recordHistory()
		return m.ctrl.SetDub(!m.ctrl.Identity().Dub)
	case key.Matches(msg, m.keys.NextSource):
		if n := len(m.ctrl.Candidates()); n > 1 {
			_, idx, _ := m.ctrl.Active()
			return m.ctrl.SelectSource((idx + 1) % n)
		}
	case key.Matches(msg, m.keys.Retry):
		return m.ctrl.Retry()
	case key.Matches(msg, m.keys.Jump):
		return m.jump.Activate()
	case key.Matches(msg, m.keys.CopyURL):
		if m.clipboard != nil && m.adapter.ActiveURL() != "" {
			return m.clipboard.Copy(context.Background(), m.adapter.ActiveURL())
		}
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	default:
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			return m.ctrl.SelectSource(int(s[0] - '1'))
		}
	}
	return nil
}

func (m *Model) handleJumpKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		m.jump.Deactivate()
		return nil
	case tea.KeyEnter:
		ep, ok := m.jump.Selected()
		m.jump.Deactivate()
		if !ok {
			m.status = "no matching episode"
			return nil
		}
		return m.selectEpisode(ep)
	case tea.KeyCtrlC:
		return m.quit()
	}
	return m.jump.Update(msg)
}

func (m *Model) issue(kind playback.CommandKind) {
	if err := m.adapter.IssueCommand(kind, 0); err != nil {
		m.logger.Debug("command failed", "command", kind, "error", err)
	}
}

// selectEpisode switches episodes on user request
func (m *Model) selectEpisode(episode int) tea.Cmd {
	if episode < 1 {
		return nil
	}
	if m.session.TotalEpisodes > 0 && episode > m.session.TotalEpisodes {
		m.status = fmt.Sprintf("episode %d is the last one", m.session.TotalEpisodes)
		return nil
	}
	if episode == m.ctrl.Identity().Episode && m.ctrl.State() != playback.StateResolutionFailed {
		return nil
	}
	if episode > len(m.episodes) {
		m.episodes = episodeList(0, episode)
		m.jump.SetEpisodes(m.episodes)
	}

	m.recordHistory()
	m.status = ""
	return m.ctrl.SelectEpisode(episode)
}

// recordHistory saves how far the loaded episode was watched
func (m *Model) recordHistory() {
	if m.history == nil {
		return
	}
	playing := m.ctrl.Playing()
	snap := m.ctrl.Snapshot()
	if playing.Episode < 1 || snap.Duration <= 0 {
		return
	}

	entry := history.Entry{
		AnimeID:         playing.AnimeID,
		Title:           m.session.Title,
		Episode:         playing.Episode,
		Dub:             playing.Dub,
		ProgressSeconds: int(snap.CurrentTime),
		TotalSeconds:    int(snap.Duration),
	}
	if active, _, ok := m.ctrl.Active(); ok {
		entry.Quality = active.Quality
		entry.SourceOrigin = active.Origin
	}
	if err := m.history.Record(entry); err != nil {
		m.logger.Warn("failed to record history", "episode", playing.Episode, "error", err)
	}
}

func (m *Model) quit() tea.Cmd {
	if m.quitting {
		return tea.Quit
	}
	m.quitting = true
	m.recordHistory()
	m.ctrl.Close()
	return tea.Quit
}

func (m *Model) pruneNotifications() {
	now := m.now()
	kept := m.notifications[:0]
	for _, n := range m.notifications {
		if !n.Expired(now) {
			kept = append(kept, n)
		}
	}
	m.notifications = kept
}

// Run starts the watch view and blocks until it exits
func Run(ctx context.Context, m *Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	// the session must be released even when the program is killed
	m.ctrl.Close()
	return err
}
