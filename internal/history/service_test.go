package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yoruanime/yoru/internal/config"
	"github.com/yoruanime/yoru/internal/database"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.DatabaseConfig{Path: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})
	return db
}

func newTestService(t *testing.T) (*Service, *time.Time) {
	s := NewService(setupTestDB(t))
	clock := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestRecord_UpdatesUnfinishedRow(t *testing.T) {
	s, clock := newTestService(t)

	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 3, ProgressSeconds: 300, TotalSeconds: 1400}))
	*clock = clock.Add(time.Minute)
	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 3, ProgressSeconds: 700, TotalSeconds: 1400, Quality: "1080p"}))

	rows, err := s.GetHistory(FilterOptions{AnimeID: 21})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 700, rows[0].ProgressSeconds)
	assert.InDelta(t, 50.0, rows[0].ProgressPercent, 0.01)
	assert.Equal(t, "1080p", rows[0].Quality)
	assert.False(t, rows[0].Completed)
}

func TestRecord_FinishingReplacesRow(t *testing.T) {
	s, _ := newTestService(t)

	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 3, ProgressSeconds: 300, TotalSeconds: 1400}))
	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 3, ProgressSeconds: 1390, TotalSeconds: 1400}))

	rows, err := s.GetHistory(FilterOptions{AnimeID: 21})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Completed)
}

func TestRecord_Invalid(t *testing.T) {
	s, _ := newTestService(t)
	assert.Error(t, s.Record(Entry{AnimeID: 0, Episode: 1}))
	assert.Error(t, s.Record(Entry{AnimeID: 21, Episode: 0}))
}

func TestResumeEpisode(t *testing.T) {
	s, clock := newTestService(t)

	ep, err := s.ResumeEpisode(21, 220)
	require.NoError(t, err)
	assert.Equal(t, 1, ep, "no history")

	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 4, ProgressSeconds: 100, TotalSeconds: 1400}))
	ep, err = s.ResumeEpisode(21, 220)
	require.NoError(t, err)
	assert.Equal(t, 4, ep, "unfinished episode")

	*clock = clock.Add(time.Hour)
	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 4, ProgressSeconds: 1400, TotalSeconds: 1400}))
	ep, err = s.ResumeEpisode(21, 220)
	require.NoError(t, err)
	assert.Equal(t, 5, ep, "next after finished")

	*clock = clock.Add(time.Hour)
	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 220, ProgressSeconds: 1400, TotalSeconds: 1400}))
	ep, err = s.ResumeEpisode(21, 220)
	require.NoError(t, err)
	assert.Equal(t, 220, ep, "capped at total")
}

func TestGetHistory_FiltersAndSort(t *testing.T) {
	s, clock := newTestService(t)

	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 1, ProgressSeconds: 1400, TotalSeconds: 1400}))
	*clock = clock.Add(time.Minute)
	require.NoError(t, s.Record(Entry{AnimeID: 1735, Title: "Naruto Shippuden", Episode: 2, ProgressSeconds: 100, TotalSeconds: 1400}))
	*clock = clock.Add(time.Minute)
	require.NoError(t, s.Record(Entry{AnimeID: 20, Title: "Bleach", Episode: 7, ProgressSeconds: 700, TotalSeconds: 1400}))

	rows, err := s.GetHistory(FilterOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Bleach", rows[0].Title)

	rows, err = s.GetHistory(FilterOptions{SearchQuery: "Naruto", SortBy: SortOldestFirst})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 21, rows[0].AnimeID)

	done := true
	rows, err = s.GetHistory(FilterOptions{Completed: &done})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 21, rows[0].AnimeID)

	rows, err = s.GetHistory(FilterOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1735, rows[0].AnimeID)
}

func TestStatsAndCleanup(t *testing.T) {
	s, clock := newTestService(t)

	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 1, ProgressSeconds: 1400, TotalSeconds: 1400}))
	require.NoError(t, s.Record(Entry{AnimeID: 21, Title: "Naruto", Episode: 2, ProgressSeconds: 600, TotalSeconds: 1400}))
	require.NoError(t, s.Record(Entry{AnimeID: 20, Title: "Bleach", Episode: 1, ProgressSeconds: 200, TotalSeconds: 1400}))

	stats, err := s.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalItems)
	assert.Equal(t, int64(1), stats.CompletedCount)
	assert.Equal(t, int64(2), stats.AnimeCount)
	assert.Equal(t, 2200*time.Second, stats.TotalWatchTime)

	*clock = clock.AddDate(0, 0, 31)
	require.NoError(t, s.Cleanup())
	rows, err := s.GetHistory(FilterOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Completed)

	require.NoError(t, s.DeleteByAnimeID(21))
	rows, err = s.GetHistory(FilterOptions{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}
