package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/yoruanime/yoru/internal/config"
	"github.com/yoruanime/yoru/internal/database"
	"gorm.io/gorm"
)

// Manager gates progress updates on configuration and records every
// attempt in the sync log
type Manager struct {
	anilist Tracker
	cfg     *config.AniListConfig
	db      *gorm.DB
	logger  *slog.Logger
	mu      sync.RWMutex
}

// NewManager creates a new tracker manager. db may be nil to skip the
// sync log.
func NewManager(cfg *config.AniListConfig, db *gorm.DB, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger.With("component", "tracker"),
	}
}

// SetAniListClient sets the AniList tracker implementation
func (m *Manager) SetAniListClient(client Tracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anilist = client
}

// GetAniList returns the AniList tracker
func (m *Manager) GetAniList() Tracker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anilist
}

// IsAuthenticated reports whether automatic syncing can happen at all
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Enabled && m.cfg.AutoSync && m.anilist != nil && m.anilist.IsAuthenticated()
}

// UpdateProgress forwards an update to AniList and logs the attempt
func (m *Manager) UpdateProgress(ctx context.Context, update Update) (*Result, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	result, err := m.GetAniList().UpdateProgress(ctx, update)
	m.record(update, err)
	if err != nil {
		return nil, fmt.Errorf("anilist sync failed: %w", err)
	}
	return result, nil
}

// Logout clears the AniList session
func (m *Manager) Logout() error {
	if client := m.GetAniList(); client != nil {
		return client.Logout()
	}
	return nil
}

func (m *Manager) record(update Update, syncErr error) {
	if m.db == nil {
		return
	}
	entry := database.SyncLog{
		AnimeID: update.MediaID,
		Episode: update.Episode,
		Trigger: string(update.Trigger),
		Status:  update.Status().String(),
		Success: syncErr == nil,
	}
	if syncErr != nil {
		entry.Error = syncErr.Error()
	}
	if err := m.db.Create(&entry).Error; err != nil {
		m.logger.Warn("failed to record sync attempt", "error", err)
	}
}
