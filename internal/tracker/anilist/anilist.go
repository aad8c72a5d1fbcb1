package anilist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/yoruanime/yoru/internal/backend"
	"github.com/yoruanime/yoru/internal/tracker"
	"golang.org/x/oauth2"
)

const authEndpoint = "https://anilist.co/api/v2/oauth/authorize"

// API is the part of the backend that talks to AniList on our behalf
type API interface {
	UpdateProgress(ctx context.Context, req backend.UpdateProgressRequest) (*backend.UpdateProgressResponse, error)
	GetViewer(ctx context.Context, accessToken string) (*backend.Viewer, error)
}

// Profile is the cached identity of the authenticated user
type Profile struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// Client implements tracker.Tracker for AniList through the backend
type Client struct {
	api          API
	store        TokenStore
	oauth2Config *oauth2.Config
	logger       *slog.Logger

	mu      sync.Mutex
	token   *oauth2.Token
	profile *Profile
}

// Config contains configuration for the AniList client
type Config struct {
	ClientID    string
	RedirectURI string
	API         API
	Store       TokenStore
	Logger      *slog.Logger
}

// NewClient creates a new AniList client and loads any stored session
func NewClient(cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := &Client{
		api:   cfg.API,
		store: cfg.Store,
		oauth2Config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint:    oauth2.Endpoint{AuthURL: authEndpoint},
		},
		logger: cfg.Logger.With("component", "anilist"),
	}

	if cfg.Store != nil {
		if token, err := cfg.Store.LoadToken(); err != nil {
			client.logger.Warn("failed to load stored token", "error", err)
		} else {
			client.token = token
		}
		if profile, err := cfg.Store.LoadProfile(); err == nil {
			client.profile = profile
		}
	}

	return client
}

// AuthURL returns the implicit-grant authorization URL. AniList shows the
// resulting token to the user, who pastes it back into Login.
func (c *Client) AuthURL() string {
	return c.oauth2Config.AuthCodeURL("", oauth2.SetAuthURLParam("response_type", "token"))
}

// Login verifies an access token against the viewer endpoint and stores
// both token and profile
func (c *Client) Login(ctx context.Context, accessToken string) (*Profile, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("empty access token")
	}

	viewer, err := c.api.GetViewer(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %w", err)
	}

	token := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		// AniList tokens last a year
		Expiry: time.Now().Add(365 * 24 * time.Hour),
	}
	profile := &Profile{ID: viewer.ID, Name: viewer.Name, Avatar: viewer.Avatar.Medium}

	c.mu.Lock()
	c.token = token
	c.profile = profile
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.SaveToken(token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
		if err := c.store.SaveProfile(profile); err != nil {
			c.logger.Warn("failed to cache profile", "error", err)
		}
	}

	return profile, nil
}

// IsAuthenticated checks if the client has a valid token
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil && c.token.Valid()
}

// Profile returns the cached profile, if any
func (c *Client) Profile() *Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.profile
}

// Token returns the current token, if any
func (c *Client) Token() *oauth2.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// RefreshProfile re-reads the viewer profile for the stored token
func (c *Client) RefreshProfile(ctx context.Context) (*Profile, error) {
	token := c.Token()
	if token == nil || !token.Valid() {
		return nil, tracker.ErrNotAuthenticated
	}
	return c.Login(ctx, token.AccessToken)
}

// Logout clears the authentication token and cached profile
func (c *Client) Logout() error {
	c.mu.Lock()
	c.token = nil
	c.profile = nil
	c.mu.Unlock()

	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

// UpdateProgress sets the list progress of a media entry
func (c *Client) UpdateProgress(ctx context.Context, update tracker.Update) (*tracker.Result, error) {
	token := c.Token()
	if token == nil || !token.Valid() {
		return nil, tracker.ErrNotAuthenticated
	}

	resp, err := c.api.UpdateProgress(ctx, backend.UpdateProgressRequest{
		MediaID:       update.MediaID,
		Episode:       update.Episode,
		TotalEpisodes: update.TotalEpisodes,
		AccessToken:   token.AccessToken,
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("progress updated",
		"media_id", update.MediaID,
		"episode", update.Episode,
		"trigger", update.Trigger,
		"message", resp.Message,
	)
	return &tracker.Result{Status: update.Status(), Message: resp.Message}, nil
}
