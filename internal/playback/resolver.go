package playback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yoruanime/yoru/internal/backend"
)

// ErrInvalidRequest is returned when a session identity cannot be resolved
var ErrInvalidRequest = errors.New("invalid resolution request")

// SessionIdentity identifies what should currently be playing
type SessionIdentity struct {
	AnimeID int
	Episode int
	Dub     bool
}

func (id SessionIdentity) String() string {
	audio := "sub"
	if id.Dub {
		audio = "dub"
	}
	return fmt.Sprintf("anime %d episode %d (%s)", id.AnimeID, id.Episode, audio)
}

// SourceCandidate is one playable mirror for an episode
type SourceCandidate struct {
	Quality  string
	Origin   string
	URL      string
	Referrer string
}

// Label is the display name used by the source switcher
func (c SourceCandidate) Label() string {
	switch {
	case c.Quality != "" && c.Origin != "":
		return c.Quality + " – " + c.Origin
	case c.Quality != "":
		return c.Quality
	case c.Origin != "":
		return c.Origin
	}
	return "unknown"
}

// ResolutionError reports that sources could not be fetched, as opposed
// to there being none
type ResolutionError struct {
	Identity SessionIdentity
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve sources for %s: %v", e.Identity, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SourceAPI is the source resolution service
type SourceAPI interface {
	GetSources(ctx context.Context, q backend.SourcesQuery) ([]backend.Source, error)
}

// Ticket identifies one resolution cycle
type Ticket uint64

// SourcesResolvedMsg carries the outcome of a resolution cycle
type SourcesResolvedMsg struct {
	Ticket     Ticket
	Identity   SessionIdentity
	Candidates []SourceCandidate
	Err        error
}

// Resolver fetches candidate sources and tracks which resolution cycle
// is current. Begin, Settle and Abandon must be called from the Update
// loop.
type Resolver struct {
	api     SourceAPI
	current Ticket
	cancel  context.CancelFunc
	loading bool
	err     error
}

// NewResolver creates a resolver over the source resolution service
func NewResolver(api SourceAPI) *Resolver {
	return &Resolver{api: api}
}

// Resolve fetches candidates for identity. An empty result is not an
// error.
func (r *Resolver) Resolve(ctx context.Context, identity SessionIdentity, title string) ([]SourceCandidate, error) {
	if identity.AnimeID <= 0 || identity.Episode < 1 || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: %s title %q", ErrInvalidRequest, identity, title)
	}

	sources, err := r.api.GetSources(ctx, backend.SourcesQuery{
		AnimeID: identity.AnimeID,
		Episode: identity.Episode,
		Dub:     identity.Dub,
		Title:   title,
	})
	if err != nil {
		return nil, &ResolutionError{Identity: identity, Err: err}
	}

	candidates := make([]SourceCandidate, 0, len(sources))
	for _, s := range sources {
		if s.URL == "" {
			continue
		}
		candidates = append(candidates, SourceCandidate{
			Quality:  s.Quality,
			Origin:   s.Source,
			URL:      s.URL,
			Referrer: s.Referrer,
		})
	}
	return candidates, nil
}

// Begin starts a new resolution cycle, superseding the previous one, and
// returns the command that performs it
func (r *Resolver) Begin(identity SessionIdentity, title string) (Ticket, tea.Cmd) {
	if r.cancel != nil {
		r.cancel()
	}
	r.current++
	r.loading = true
	r.err = nil

	ticket := r.current
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	return ticket, func() tea.Msg {
		defer cancel()
		candidates, err := r.Resolve(ctx, identity, title)
		return SourcesResolvedMsg{Ticket: ticket, Identity: identity, Candidates: candidates, Err: err}
	}
}

// Current reports whether ticket belongs to the latest cycle
func (r *Resolver) Current(ticket Ticket) bool {
	return ticket != 0 && ticket == r.current
}

// Settle records the outcome of the current cycle. It returns false for
// superseded results, which must be dropped.
func (r *Resolver) Settle(msg SourcesResolvedMsg) bool {
	if !r.Current(msg.Ticket) {
		return false
	}
	r.loading = false
	r.err = msg.Err
	r.cancel = nil
	return true
}

// Abandon invalidates every outstanding cycle
func (r *Resolver) Abandon() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.current++
	r.loading = false
}

// Loading reports whether the current cycle is in flight
func (r *Resolver) Loading() bool {
	return r.loading
}

// Err returns the failure of the last settled cycle
func (r *Resolver) Err() error {
	return r.err
}
