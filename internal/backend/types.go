package backend

// Title holds the localized titles of an anime
type Title struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
}

// CoverImage holds cover art URLs
type CoverImage struct {
	ExtraLarge string `json:"extraLarge"`
}

// AiringEpisode describes the next episode to air
type AiringEpisode struct {
	AiringAt        int64 `json:"airingAt"`
	TimeUntilAiring int64 `json:"timeUntilAiring"`
	Episode         int   `json:"episode"`
}

// Anime is the catalog/metadata response of GET /anime/{id}
type Anime struct {
	ID                int            `json:"id"`
	Title             Title          `json:"title"`
	CoverImage        CoverImage     `json:"coverImage"`
	BannerImage       string         `json:"bannerImage"`
	Episodes          int            `json:"episodes"`
	Status            string         `json:"status"`
	Description       string         `json:"description"`
	SeasonYear        int            `json:"seasonYear"`
	Popularity        int            `json:"popularity"`
	AverageScore      int            `json:"averageScore"`
	Genres            []string       `json:"genres"`
	NextAiringEpisode *AiringEpisode `json:"nextAiringEpisode"`
}

// DisplayTitle prefers the English title
func (a *Anime) DisplayTitle() string {
	if a.Title.English != "" {
		return a.Title.English
	}
	return a.Title.Romaji
}

// TotalEpisodes is the known episode count, or the number of aired
// episodes for a series still releasing.
func (a *Anime) TotalEpisodes() int {
	if a.Episodes > 0 {
		return a.Episodes
	}
	if a.NextAiringEpisode != nil && a.NextAiringEpisode.Episode > 1 {
		return a.NextAiringEpisode.Episode - 1
	}
	return 0
}

// EpisodeNumbers lists the selectable episode numbers
func (a *Anime) EpisodeNumbers() []int {
	total := a.TotalEpisodes()
	numbers := make([]int, total)
	for i := range numbers {
		numbers[i] = i + 1
	}
	return numbers
}

// SourcesQuery identifies the episode to resolve sources for
type SourcesQuery struct {
	AnimeID int
	Episode int
	Dub     bool
	Title   string
}

// Source is one playable mirror as returned by GET /sources
type Source struct {
	Quality  string `json:"quality"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Referrer string `json:"referrer"`
}

// SourcesResponse is the body of GET /sources
type SourcesResponse struct {
	Sources []Source `json:"sources"`
	Error   string   `json:"error,omitempty"`
}

// UpdateProgressRequest is the body of POST /anilist/update-progress
type UpdateProgressRequest struct {
	MediaID       int    `json:"media_id"`
	Episode       int    `json:"episode"`
	TotalEpisodes int    `json:"total_episodes"`
	AccessToken   string `json:"access_token"`
}

// UpdateProgressResponse is the success body of POST /anilist/update-progress
type UpdateProgressResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Viewer is the authenticated AniList user
type Viewer struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar struct {
		Medium string `json:"medium"`
	} `json:"avatar"`
}

// ErrorResponse is the error body shape used by the backend. FastAPI
// errors use "detail", handler-level failures use "error".
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// Message returns whichever field is set
func (e ErrorResponse) Message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}
