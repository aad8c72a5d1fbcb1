package mpv

import (
	"errors"

	"github.com/yoruanime/yoru/internal/player"
)

// ErrLoadFailed is reported when mpv returns to idle without ever
// producing a duration for the loaded source
var ErrLoadFailed = errors.New("mpv failed to load media")

// loadGracePolls is how many idle readings are tolerated after a load
// before it is considered failed
const loadGracePolls = 3

// watcher turns successive property readings into lifecycle events
type watcher struct {
	prev       player.PlaybackProgress
	primed     bool // volume and fullscreen baseline reported
	stateKnown bool // play/pause reported for the current source
	loading    bool
	idlePolls  int
	ended      bool
	load       uint64 // sequence of the current source
}

// sourceLoaded resets per-source tracking after a loadfile. Events about
// the new source are stamped with load.
func (w *watcher) sourceLoaded(load uint64) {
	w.load = load
	w.stateKnown = false
	w.loading = true
	w.idlePolls = 0
	w.ended = false
}

func (w *watcher) observe(cur player.PlaybackProgress) []player.Event {
	var events []player.Event
	prev := w.prev
	w.prev = cur

	if !w.primed || cur.Volume != prev.Volume || cur.Muted != prev.Muted {
		events = append(events, player.Event{Kind: player.EventVolumeChange, Volume: cur.Volume, Muted: cur.Muted})
	}
	if !w.primed || cur.Fullscreen != prev.Fullscreen {
		events = append(events, player.Event{Kind: player.EventFullscreenChange, Fullscreen: cur.Fullscreen})
	}
	w.primed = true

	if w.loading {
		if cur.Duration > 0 {
			w.loading = false
		} else if cur.Idle {
			w.idlePolls++
			if w.idlePolls >= loadGracePolls {
				w.loading = false
				return append(events, player.Event{Kind: player.EventError, Err: ErrLoadFailed, Load: w.load})
			}
			return events
		} else {
			return events
		}
	}

	if cur.Idle {
		return events
	}

	if !w.stateKnown || cur.Paused != prev.Paused {
		kind := player.EventPlay
		if cur.Paused {
			kind = player.EventPause
		}
		events = append(events, player.Event{Kind: kind, CurrentTime: cur.CurrentTime, Duration: cur.Duration, Load: w.load})
	}
	if !w.stateKnown || cur.CurrentTime != prev.CurrentTime || cur.Duration != prev.Duration {
		events = append(events, player.Event{Kind: player.EventTimeUpdate, CurrentTime: cur.CurrentTime, Duration: cur.Duration, Load: w.load})
	}
	w.stateKnown = true

	switch {
	case cur.EOF && !w.ended:
		w.ended = true
		events = append(events, player.Event{Kind: player.EventEnded, CurrentTime: cur.CurrentTime, Duration: cur.Duration, Load: w.load})
	case !cur.EOF:
		// seeking back after the end re-arms it
		w.ended = false
	}

	return events
}
