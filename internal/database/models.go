package database

import (
	"time"

	"gorm.io/gorm"
)

// Fixed setting keys
const (
	SettingAniListToken   = "anilist_token"
	SettingAniListProfile = "anilist_profile"
)

// Setting is a key-value row for persisted client state
type Setting struct {
	Key       string    `gorm:"primaryKey"`
	Value     string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (Setting) TableName() string {
	return "settings"
}

// History records how far an episode was watched
type History struct {
	ID              uint      `gorm:"primaryKey"`
	AnimeID         int       `gorm:"column:anime_id;not null;index"`
	Title           string    `gorm:"not null"`
	Episode         int       `gorm:"not null"`
	Dub             bool      `gorm:"default:false"`
	ProgressSeconds int       `gorm:"not null;default:0"`
	TotalSeconds    int       `gorm:"not null;default:0"`
	ProgressPercent float64   `gorm:"not null;default:0"`
	Quality         string    `gorm:"default:''"`
	SourceOrigin    string    `gorm:"default:''"`
	Completed       bool      `gorm:"default:false"`
	WatchedAt       time.Time `gorm:"index;default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (History) TableName() string {
	return "history"
}

// SyncLog records every progress sync attempt
type SyncLog struct {
	ID        uint      `gorm:"primaryKey"`
	AnimeID   int       `gorm:"column:anime_id;not null"`
	Episode   int       `gorm:"not null"`
	Trigger   string    `gorm:"not null"` // threshold, ended
	Status    string    `gorm:"not null"` // CURRENT, COMPLETED
	Success   bool      `gorm:"default:false"`
	Error     string    `gorm:""`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// TableName overrides the table name
func (SyncLog) TableName() string {
	return "sync_log"
}

// Migrate runs GORM auto migrations for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Setting{},
		&History{},
		&SyncLog{},
	)
}
