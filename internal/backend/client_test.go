package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoruanime/yoru/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.API.BaseURL = server.URL + "/"
	cfg.API.Timeout = 5 * time.Second
	return NewClient(cfg, nil)
}

func TestProxyURL(t *testing.T) {
	got := ProxyURL("http://p/", "http://x/a.m3u8", "http://x")
	assert.Equal(t, "http://p/proxy?url=http%3A%2F%2Fx%2Fa.m3u8&ref=http%3A%2F%2Fx", got)

	// same inputs always produce the same URL
	assert.Equal(t, got, ProxyURL("http://p", "http://x/a.m3u8", "http://x"))
}

func TestClient_ProxyURLUsesConfiguredBase(t *testing.T) {
	cfg := config.Default()
	cfg.API.BaseURL = "http://api.local"
	assert.Equal(t, "http://api.local/proxy?url=u&ref=", NewClient(cfg, nil).ProxyURL("u", ""))

	cfg.Proxy.PublicURL = "http://proxy.local"
	assert.Equal(t, "http://proxy.local/proxy?url=u&ref=r", NewClient(cfg, nil).ProxyURL("u", "r"))
}

func TestClient_GetSources(t *testing.T) {
	t.Run("passes identity as query", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sources", r.URL.Path)
			assert.Equal(t, "21", r.URL.Query().Get("anilist_id"))
			assert.Equal(t, "3", r.URL.Query().Get("episode"))
			assert.Equal(t, "true", r.URL.Query().Get("dub"))
			assert.Equal(t, "One Piece", r.URL.Query().Get("title"))
			_, _ = w.Write([]byte(`{"sources":[{"quality":"1080p","url":"http://x/a.m3u8","source":"Mirror","referrer":"http://x"}]}`))
		})

		sources, err := client.GetSources(context.Background(), SourcesQuery{AnimeID: 21, Episode: 3, Dub: true, Title: "One Piece"})
		require.NoError(t, err)
		require.Len(t, sources, 1)
		assert.Equal(t, Source{Quality: "1080p", URL: "http://x/a.m3u8", Source: "Mirror", Referrer: "http://x"}, sources[0])
	})

	t.Run("empty list is not an error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"sources":[]}`))
		})

		sources, err := client.GetSources(context.Background(), SourcesQuery{AnimeID: 1, Episode: 1})
		require.NoError(t, err)
		assert.Empty(t, sources)
	})

	t.Run("error body fails", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"Sources not found"}`))
		})

		_, err := client.GetSources(context.Background(), SourcesQuery{AnimeID: 1, Episode: 1})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "Sources not found", apiErr.Message)
	})

	t.Run("status error carries detail", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"bad episode"}`))
		})

		_, err := client.GetSources(context.Background(), SourcesQuery{AnimeID: 1, Episode: 1})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "bad episode", apiErr.Message)
	})
}

func TestClient_GetAnime(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/anime/20", r.URL.Path)
		_, _ = w.Write([]byte(`{"title":{"romaji":"Naruto","english":""},"episodes":null,"nextAiringEpisode":{"episode":13}}`))
	})

	anime, err := client.GetAnime(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, anime.ID)
	assert.Equal(t, "Naruto", anime.DisplayTitle())
	assert.Equal(t, 12, anime.TotalEpisodes())

	_, err = client.GetAnime(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_UpdateProgress(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/anilist/update-progress", r.URL.Path)

		var req UpdateProgressRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, UpdateProgressRequest{MediaID: 5, Episode: 12, TotalEpisodes: 12, AccessToken: "tok"}, req)
		_, _ = w.Write([]byte(`{"success":true,"message":"Updated to episode 12 (COMPLETED)"}`))
	})

	resp, err := client.UpdateProgress(context.Background(), UpdateProgressRequest{MediaID: 5, Episode: 12, TotalEpisodes: 12, AccessToken: "tok"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Message, "COMPLETED")
}

func TestClient_GetViewer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anilist/user", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":7,"name":"neo","avatar":{"medium":"http://a/7.png"}}`))
	})

	viewer, err := client.GetViewer(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, 7, viewer.ID)
	assert.Equal(t, "neo", viewer.Name)
	assert.Equal(t, "http://a/7.png", viewer.Avatar.Medium)
}

func TestAnime_EpisodeNumbers(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, (&Anime{Episodes: 3}).EpisodeNumbers())
	assert.Empty(t, (&Anime{}).EpisodeNumbers())
	assert.Equal(t, []int{1}, (&Anime{NextAiringEpisode: &AiringEpisode{Episode: 2}}).EpisodeNumbers())
	assert.Equal(t, "Attack on Titan", (&Anime{Title: Title{Romaji: "Shingeki", English: "Attack on Titan"}}).DisplayTitle())
}

func TestAnimeCache_Expiry(t *testing.T) {
	cache := NewAnimeCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Set(1, &Anime{ID: 1})
	_, ok := cache.Get(1)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = cache.Get(1)
	assert.False(t, ok)
}

func TestClient_Health(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	assert.NoError(t, client.Health(context.Background()))

	down := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	assert.Error(t, down.Health(context.Background()))
}
