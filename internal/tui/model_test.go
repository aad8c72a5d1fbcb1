package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoruanime/yoru/internal/backend"
	"github.com/yoruanime/yoru/internal/config"
	"github.com/yoruanime/yoru/internal/database"
	"github.com/yoruanime/yoru/internal/history"
	"github.com/yoruanime/yoru/internal/player"
	"github.com/yoruanime/yoru/internal/playback"
	"github.com/yoruanime/yoru/internal/tracker"
)

type stubEngine struct {
	pauses []bool
	seeks  []float64
	loads  []string
	closed int
	events chan player.Event
}

func (e *stubEngine) Start(context.Context, player.Mount) error { return nil }
func (e *stubEngine) Load(_ context.Context, url string, _ player.LoadOptions) error {
	e.loads = append(e.loads, url)
	return nil
}
func (e *stubEngine) SetPause(_ context.Context, p bool) error {
	e.pauses = append(e.pauses, p)
	return nil
}
func (e *stubEngine) SeekTo(_ context.Context, s float64) error {
	e.seeks = append(e.seeks, s)
	return nil
}
func (e *stubEngine) SetVolume(context.Context, float64) error  { return nil }
func (e *stubEngine) SetMute(context.Context, bool) error       { return nil }
func (e *stubEngine) SetFullscreen(context.Context, bool) error { return nil }
func (e *stubEngine) Events() <-chan player.Event               { return e.events }
func (e *stubEngine) Close() error {
	e.closed++
	return nil
}

type stubSources struct{}

func (stubSources) GetSources(_ context.Context, q backend.SourcesQuery) ([]backend.Source, error) {
	return []backend.Source{
		{Quality: "1080p", Source: "mirrorA", URL: "http://x/a.m3u8", Referrer: "http://x"},
		{Quality: "720p", Source: "mirrorB", URL: "http://x/b.m3u8", Referrer: "http://x"},
	}, nil
}

type stubTracker struct{}

func (stubTracker) IsAuthenticated() bool { return false }
func (stubTracker) UpdateProgress(context.Context, tracker.Update) (*tracker.Result, error) {
	return nil, tracker.ErrNotAuthenticated
}

type proxyBase string

func (p proxyBase) ProxyURL(u, ref string) string { return backend.ProxyURL(string(p), u, ref) }

func newTestModel(t *testing.T) (*Model, *stubEngine, *history.Service) {
	t.Helper()
	engine := &stubEngine{events: make(chan player.Event, 4)}
	adapter := playback.NewAdapter(func() (player.Engine, error) { return engine, nil }, proxyBase("http://127.0.0.1:8080"), nil)
	_, err := adapter.InitializeOnce(context.Background(), player.Mount{})
	require.NoError(t, err)

	db, err := database.Open(&config.DatabaseConfig{Path: "file::memory:"})
	require.NoError(t, err)
	hist := history.NewService(db)

	guard := playback.NewSyncGuard(stubTracker{}, 0.8, nil)
	ctrl := playback.NewController(playback.NewResolver(stubSources{}), adapter, guard,
		playback.NewKeyRouter(adapter, 5*time.Second, 0.1, nil), nil)

	m := New(Deps{Controller: ctrl, Adapter: adapter, Guard: guard, History: hist}, Session{
		Identity:      playback.SessionIdentity{AnimeID: 21, Episode: 5},
		Title:         "Naruto",
		TotalEpisodes: 220,
	})

	// open the session without the blocking pumps from Init
	m.Update(ctrl.Open(m.session.Identity, m.session.Title, m.session.TotalEpisodes)())
	return m, engine, hist
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (m *Model) event(ev player.Event) {
	m.Update(playback.EventMsg{HandleID: m.adapter.Handle().ID, Event: ev})
}

func TestModel_OpensFirstSource(t *testing.T) {
	m, engine, _ := newTestModel(t)

	assert.Equal(t, playback.StateSourceSelected, m.ctrl.State())
	require.Len(t, engine.loads, 1)
	assert.Contains(t, engine.loads[0], "http://127.0.0.1:8080/proxy?url=")

	view := m.View()
	assert.Contains(t, view, "Naruto")
	assert.Contains(t, view, "1080p – mirrorA")
	assert.Contains(t, view, "Episode 5/220")
}

func TestModel_PlayerKeys(t *testing.T) {
	m, engine, _ := newTestModel(t)
	m.event(player.Event{Kind: player.EventTimeUpdate, CurrentTime: 10, Duration: 100})

	m.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m.Update(runes("l"))
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})

	assert.Equal(t, []bool{false}, engine.pauses)
	assert.Equal(t, []float64{15, 10}, engine.seeks)
}

func TestModel_JumpFieldSwallowsPlayerKeys(t *testing.T) {
	m, engine, _ := newTestModel(t)
	m.event(player.Event{Kind: player.EventTimeUpdate, CurrentTime: 10, Duration: 100})

	m.Update(runes("/"))
	require.True(t, m.jump.IsActive())

	m.Update(runes("l"))
	assert.Empty(t, engine.seeks)
	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})

	m.Update(runes("1"))
	m.Update(runes("2"))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	assert.False(t, m.jump.IsActive())
	assert.Equal(t, 12, m.ctrl.Identity().Episode)
	assert.Equal(t, playback.StateResolvingSources, m.ctrl.State())
}

func TestModel_EpisodeChangeRecordsHistory(t *testing.T) {
	m, _, hist := newTestModel(t)
	m.event(player.Event{Kind: player.EventTimeUpdate, CurrentTime: 600, Duration: 1400})

	m.Update(runes("n"))
	assert.Equal(t, 6, m.ctrl.Identity().Episode)

	last, err := hist.LastWatched(21)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, 5, last.Episode)
	assert.Equal(t, 600, last.ProgressSeconds)
	assert.Equal(t, "mirrorA", last.SourceOrigin)
}

func TestModel_NextSource(t *testing.T) {
	m, engine, _ := newTestModel(t)

	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	_, idx, _ := m.ctrl.Active()
	assert.Equal(t, 1, idx)
	assert.Len(t, engine.loads, 2)

	m.Update(runes("1"))
	_, idx, _ = m.ctrl.Active()
	assert.Equal(t, 0, idx)
}

func TestModel_Notifications(t *testing.T) {
	m, _, _ := newTestModel(t)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return at }

	m.Update(playback.Notification{Text: "Synced: Episode 5", Episode: 5, At: at, TTL: 3 * time.Second})
	assert.Contains(t, m.View(), "Synced: Episode 5")

	at = at.Add(3 * time.Second)
	m.Update(notificationSweepMsg{})
	assert.Empty(t, m.notifications)
}

func TestModel_Quit(t *testing.T) {
	m, engine, _ := newTestModel(t)

	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, playback.StateClosed, m.ctrl.State())
	assert.Equal(t, 1, engine.closed)

	m.Update(playback.EngineClosedMsg{})
	assert.Equal(t, 1, engine.closed)
}

func TestEpisodeJump(t *testing.T) {
	j := NewEpisodeJump(episodeList(10, 1))
	j.Activate()

	j.input.SetValue("4")
	ep, ok := j.Selected()
	require.True(t, ok)
	assert.Equal(t, 4, ep)

	j.input.SetValue("ep7")
	ep, ok = j.Selected()
	require.True(t, ok)
	assert.Equal(t, 7, ep)

	j.input.SetValue("zzz")
	_, ok = j.Selected()
	assert.False(t, ok)
}

func TestEpisodeList(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, episodeList(3, 1))
	assert.Equal(t, []int{1, 2, 3, 4}, episodeList(0, 4))
	assert.Equal(t, []int{1}, episodeList(0, 0))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:05", formatClock(5.9))
	assert.Equal(t, "23:40", formatClock(1420))
	assert.Equal(t, "1:02:03", formatClock(3723))
	assert.Equal(t, "0:00", formatClock(-1))
}

func TestModel_SpinnerWhileResolving(t *testing.T) {
	m, _, _ := newTestModel(t)
	assert.NotContains(t, m.View(), "Loading sources")

	m.Update(runes("n"))
	assert.True(t, m.ctrl.Loading())
	assert.Contains(t, m.View(), "Loading sources")
}

func TestModel_CatalogEpisodes(t *testing.T) {
	m := New(Deps{}, Session{
		Identity:      playback.SessionIdentity{AnimeID: 21, Episode: 2},
		TotalEpisodes: 3,
		Episodes:      []int{1, 2, 3},
	})
	assert.Equal(t, []int{1, 2, 3}, m.episodes)

	// resuming past what the catalog lists falls back to numbering up to it
	m = New(Deps{}, Session{Identity: playback.SessionIdentity{AnimeID: 21, Episode: 4}})
	assert.Equal(t, []int{1, 2, 3, 4}, m.episodes)
}
