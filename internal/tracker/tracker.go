package tracker

import (
	"context"
	"errors"
)

// ErrNotAuthenticated is returned when no account token is available
var ErrNotAuthenticated = errors.New("not authenticated")

// WatchStatus is the list status sent with a progress update
type WatchStatus string

const (
	StatusCurrent   WatchStatus = "CURRENT"
	StatusCompleted WatchStatus = "COMPLETED"
)

// String returns the string representation of WatchStatus
func (s WatchStatus) String() string {
	return string(s)
}

// Status derives the list status for a watched episode. An unknown total
// never completes a series.
func Status(episode, totalEpisodes int) WatchStatus {
	if totalEpisodes > 0 && episode >= totalEpisodes {
		return StatusCompleted
	}
	return StatusCurrent
}

// Trigger names the playback event that caused a sync
type Trigger string

const (
	TriggerThreshold Trigger = "threshold"
	TriggerEnded     Trigger = "ended"
)

// Update is one episode progress update
type Update struct {
	MediaID       int
	Episode       int
	TotalEpisodes int
	Trigger       Trigger
}

// Status returns the derived list status of the update
func (u Update) Status() WatchStatus {
	return Status(u.Episode, u.TotalEpisodes)
}

// Result is the outcome of an accepted update
type Result struct {
	Status  WatchStatus
	Message string
}

// Tracker defines a progress tracking service
type Tracker interface {
	IsAuthenticated() bool
	UpdateProgress(ctx context.Context, update Update) (*Result, error)
	Logout() error
}
