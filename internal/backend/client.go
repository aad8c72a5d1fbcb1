package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/yoruanime/yoru/internal/backend/http"
	"github.com/yoruanime/yoru/internal/config"
)

// APIError is a failure reported by the backend, either through a non-2xx
// status or through an "error" field in an otherwise successful body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("API error: %s", e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("API error: HTTP %d", e.Status)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Client handles communication with the backend service: catalog,
// source resolution, progress tracking and the stream proxy.
type Client struct {
	baseURL    string
	proxyBase  string
	httpClient *http.Client
	cache      *AnimeCache
	logger     *slog.Logger
}

// NewClient creates a new backend client
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := http.NewClient(http.ClientConfig{
		Timeout:    cfg.API.Timeout,
		MaxRetries: 3,
		Debug:      cfg.Advanced.Debug,
		Logger:     logger,
	})

	return &Client{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		proxyBase:  cfg.ProxyBase(),
		httpClient: httpClient,
		cache:      NewAnimeCache(time.Hour),
		logger:     logger,
	}
}

// BaseURL returns the backend base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetAnime retrieves catalog metadata for an anime id
func (c *Client) GetAnime(ctx context.Context, id int) (*Anime, error) {
	if anime, ok := c.cache.Get(id); ok {
		return anime, nil
	}

	var anime Anime
	if err := c.get(ctx, "/anime/"+strconv.Itoa(id), nil, &anime); err != nil {
		return nil, fmt.Errorf("get anime failed: %w", err)
	}
	if anime.ID == 0 {
		anime.ID = id
	}

	c.cache.Set(id, &anime)
	return &anime, nil
}

// GetSources asks the backend for playable sources of one episode. An
// empty list is a valid answer; an "error" body is not.
func (c *Client) GetSources(ctx context.Context, q SourcesQuery) ([]Source, error) {
	params := url.Values{}
	params.Set("anilist_id", strconv.Itoa(q.AnimeID))
	params.Set("episode", strconv.Itoa(q.Episode))
	params.Set("dub", strconv.FormatBool(q.Dub))
	if q.Title != "" {
		params.Set("title", q.Title)
	}

	var response SourcesResponse
	if err := c.get(ctx, "/sources", params, &response); err != nil {
		return nil, fmt.Errorf("get sources failed: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("get sources failed: %w", &APIError{Message: response.Error})
	}

	return response.Sources, nil
}

// UpdateProgress records watched progress with the tracking service
func (c *Client) UpdateProgress(ctx context.Context, req UpdateProgressRequest) (*UpdateProgressResponse, error) {
	var response UpdateProgressResponse
	if err := c.post(ctx, "/anilist/update-progress", req, &response); err != nil {
		return nil, fmt.Errorf("update progress failed: %w", err)
	}
	return &response, nil
}

// GetViewer returns the profile of the token's owner
func (c *Client) GetViewer(ctx context.Context, accessToken string) (*Viewer, error) {
	var viewer Viewer
	body := map[string]string{"access_token": accessToken}
	if err := c.post(ctx, "/anilist/user", body, &viewer); err != nil {
		return nil, fmt.Errorf("get viewer failed: %w", err)
	}
	return &viewer, nil
}

// Health pings the backend
func (c *Client) Health(ctx context.Context) error {
	var status map[string]string
	return c.get(ctx, "/health", nil, &status)
}

// ProxyURL rewrites a source URL so it is fetched through the stream proxy
func (c *Client) ProxyURL(sourceURL, referer string) string {
	return ProxyURL(c.proxyBase, sourceURL, referer)
}

// ProxyURL builds {base}/proxy?url=<enc>&ref=<enc>. Parameter order is
// kept stable so the same source always maps to the same URL.
func ProxyURL(base, sourceURL, referer string) string {
	return strings.TrimRight(base, "/") +
		"/proxy?url=" + url.QueryEscape(sourceURL) +
		"&ref=" + url.QueryEscape(referer)
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	resp, err := c.httpClient.Get(ctx, fullURL, nil)
	return c.decode(resp, err, result)
}

func (c *Client) post(ctx context.Context, endpoint string, body, result interface{}) error {
	resp, err := c.httpClient.Post(ctx, c.baseURL+endpoint, body, map[string]string{
		"Content-Type": "application/json",
	})
	return c.decode(resp, err, result)
}

func (c *Client) decode(resp *resty.Response, err error, result interface{}) error {
	var statusErr *http.StatusError
	if errors.As(err, &statusErr) {
		apiErr := &APIError{Status: statusErr.Code}
		var errorResp ErrorResponse
		if resp != nil && json.Unmarshal(resp.Body(), &errorResp) == nil {
			apiErr.Message = errorResp.Message()
		}
		return apiErr
	}
	if err != nil {
		return fmt.Errorf("HTTP request failed (is the backend running at %s?): %w", c.baseURL, err)
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
