package history

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/yoruanime/yoru/internal/database"
)

// completedPercent is the watched share at which an episode counts as
// finished
const completedPercent = 90.0

// Service provides watch history management
type Service struct {
	db  *gorm.DB
	now func() time.Time
}

// SortOrder defines the sorting order for history items
type SortOrder string

const (
	SortRecentFirst  SortOrder = "recent_first"
	SortOldestFirst  SortOrder = "oldest_first"
	SortTitleAsc     SortOrder = "title_asc"
	SortProgressDesc SortOrder = "progress_desc"
)

// FilterOptions defines filtering options for history queries
type FilterOptions struct {
	AnimeID     int    // 0 for all
	SearchQuery string // Search in title
	Completed   *bool
	Limit       int // 0 = no limit
	Offset      int
	SortBy      SortOrder
}

// Entry is one watched episode
type Entry struct {
	AnimeID         int
	Title           string
	Episode         int
	Dub             bool
	ProgressSeconds int
	TotalSeconds    int
	Quality         string
	SourceOrigin    string
}

// Stats represents watch history statistics
type Stats struct {
	TotalItems     int64
	TotalWatchTime time.Duration
	CompletedCount int64
	AnimeCount     int64
}

// NewService creates a new history service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Record stores how far an episode was watched. An unfinished row for the
// same episode is updated in place; finishing an episode replaces it.
func (s *Service) Record(e Entry) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if e.AnimeID <= 0 || e.Episode < 1 {
		return fmt.Errorf("invalid history entry: anime %d episode %d", e.AnimeID, e.Episode)
	}

	percent := 0.0
	if e.TotalSeconds > 0 {
		percent = float64(e.ProgressSeconds) / float64(e.TotalSeconds) * 100
	}
	completed := percent >= completedPercent

	return s.db.Transaction(func(tx *gorm.DB) error {
		var existing database.History
		err := tx.Where("anime_id = ? AND episode = ? AND completed = ?", e.AnimeID, e.Episode, false).
			Order("watched_at DESC").
			First(&existing).Error

		switch {
		case err == nil && !completed:
			existing.ProgressSeconds = e.ProgressSeconds
			existing.TotalSeconds = e.TotalSeconds
			existing.ProgressPercent = percent
			existing.Dub = e.Dub
			existing.Quality = e.Quality
			existing.SourceOrigin = e.SourceOrigin
			existing.WatchedAt = s.now()
			return tx.Save(&existing).Error
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up history: %w", err)
		}

		return tx.Create(&database.History{
			AnimeID:         e.AnimeID,
			Title:           e.Title,
			Episode:         e.Episode,
			Dub:             e.Dub,
			ProgressSeconds: e.ProgressSeconds,
			TotalSeconds:    e.TotalSeconds,
			ProgressPercent: percent,
			Quality:         e.Quality,
			SourceOrigin:    e.SourceOrigin,
			Completed:       completed,
			WatchedAt:       s.now(),
		}).Error
	})
}

// GetHistory retrieves history rows with filtering and sorting
func (s *Service) GetHistory(filter FilterOptions) ([]database.History, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.Model(&database.History{})
	if filter.AnimeID > 0 {
		query = query.Where("anime_id = ?", filter.AnimeID)
	}
	if filter.SearchQuery != "" {
		query = query.Where("title LIKE ?", "%"+filter.SearchQuery+"%")
	}
	if filter.Completed != nil {
		query = query.Where("completed = ?", *filter.Completed)
	}

	switch filter.SortBy {
	case SortOldestFirst:
		query = query.Order("watched_at ASC")
	case SortTitleAsc:
		query = query.Order("title ASC").Order("episode ASC")
	case SortProgressDesc:
		query = query.Order("progress_percent DESC")
	default:
		query = query.Order("watched_at DESC").Order("id DESC")
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []database.History
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	return records, nil
}

// LastWatched returns the most recent row for an anime, or nil
func (s *Service) LastWatched(animeID int) (*database.History, error) {
	records, err := s.GetHistory(FilterOptions{AnimeID: animeID, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// ResumeEpisode picks the episode a new session should open at: the last
// unfinished episode, or the one after the last finished episode. It
// returns 1 for anime without history.
func (s *Service) ResumeEpisode(animeID, totalEpisodes int) (int, error) {
	last, err := s.LastWatched(animeID)
	if err != nil {
		return 0, err
	}
	if last == nil {
		return 1, nil
	}
	if !last.Completed {
		return last.Episode, nil
	}
	next := last.Episode + 1
	if totalEpisodes > 0 && next > totalEpisodes {
		return totalEpisodes, nil
	}
	return next, nil
}

// DeleteByAnimeID removes all rows for an anime
func (s *Service) DeleteByAnimeID(animeID int) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Where("anime_id = ?", animeID).Delete(&database.History{}).Error
}

// GetStats retrieves watch history statistics
func (s *Service) GetStats() (*Stats, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var stats Stats
	model := func() *gorm.DB { return s.db.Model(&database.History{}) }

	if err := model().Count(&stats.TotalItems).Error; err != nil {
		return nil, err
	}

	var totalSeconds int64
	if err := model().Select("COALESCE(SUM(progress_seconds), 0)").Scan(&totalSeconds).Error; err != nil {
		return nil, err
	}
	stats.TotalWatchTime = time.Duration(totalSeconds) * time.Second

	if err := model().Where("completed = ?", true).Count(&stats.CompletedCount).Error; err != nil {
		return nil, err
	}
	if err := model().Distinct("anime_id").Count(&stats.AnimeCount).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}

// Cleanup removes unfinished rows older than 30 days
func (s *Service) Cleanup() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	cutoff := s.now().AddDate(0, 0, -30)
	return s.db.Where("completed = ? AND watched_at < ?", false, cutoff).Delete(&database.History{}).Error
}
