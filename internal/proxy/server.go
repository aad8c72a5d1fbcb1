package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	backendhttp "github.com/yoruanime/yoru/internal/backend/http"
	"github.com/yoruanime/yoru/internal/config"
)

const (
	defaultChunk       = 2 * 1024 * 1024
	defaultContentType = "video/mp4"
	browserUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.199 Safari/537.36"
	probeTimeout       = 15 * time.Second
)

// Server relays media bytes from third-party hosts, adding the Referer
// they require and answering byte ranges in bounded chunks.
type Server struct {
	upstream       *backendhttp.Client
	defaultReferer string
	initialChunk   int64
	maxChunk       int64
	logger         *slog.Logger
	router         chi.Router
}

// NewServer creates a proxy server from configuration
func NewServer(cfg *config.ProxyConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		upstream: backendhttp.NewClient(backendhttp.ClientConfig{
			Timeout:    -1,
			MaxRetries: -1,
			UserAgent:  browserUserAgent,
			Logger:     logger,
		}),
		defaultReferer: cfg.DefaultReferer,
		initialChunk:   cfg.InitialChunk,
		maxChunk:       cfg.MaxChunk,
		logger:         logger.With("component", "proxy"),
	}
	if s.defaultReferer == "" {
		s.defaultReferer = "https://example.com"
	}
	if s.initialChunk <= 0 {
		s.initialChunk = defaultChunk
	}
	if s.maxChunk <= 0 {
		s.maxChunk = defaultChunk
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Get("/proxy", s.handleProxy)
	r.Options("/proxy", s.handlePreflight)
	s.router = r

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      0, // unlimited for streaming
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("proxy listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	setCORS(w.Header())
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		http.Error(w, "missing url parameter", http.StatusBadRequest)
		return
	}
	referer := r.URL.Query().Get("ref")
	if referer == "" {
		referer = s.defaultReferer
	}
	headers := upstreamHeaders(referer)

	length, contentType, err := s.contentInfo(r.Context(), target, headers)
	if err != nil {
		s.logger.Warn("upstream probe failed", "url", target, "error", err)
		http.Error(w, fmt.Sprintf("Proxy request failed: %v", err), http.StatusBadGateway)
		return
	}

	rangeHeader := r.Header.Get("Range")
	switch {
	case rangeHeader != "" && length > 0:
		start, end, err := ParseRange(rangeHeader, length)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestedRangeNotSatisfiable)
			return
		}
		s.serveChunk(w, r, target, headers, start, capRange(start, end, s.maxChunk), length, contentType)
	case length > 0:
		end := min(length, s.initialChunk) - 1
		s.serveChunk(w, r, target, headers, 0, end, length, contentType)
	default:
		s.serveFull(w, r, target, headers, contentType)
	}
}

// contentInfo learns length and type with HEAD, falling back to a small
// ranged GET for hosts that reject HEAD.
func (s *Server) contentInfo(ctx context.Context, target string, headers map[string]string) (int64, string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := s.upstream.Open(ctx, http.MethodHead, target, headers)
	if err == nil {
		_ = resp.Body.Close()
		if resp.StatusCode < 400 {
			length := resp.ContentLength
			if length < 0 {
				length, _ = strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
			}
			return max(length, 0), contentTypeOf(resp.Header), nil
		}
	}

	probe := copyHeaders(headers)
	probe["Range"] = "bytes=0-1023"
	resp, err = s.upstream.Open(ctx, http.MethodGet, target, probe)
	if err != nil {
		return 0, "", err
	}
	_ = resp.Body.Close()
	return totalFromContentRange(resp.Header.Get("Content-Range")), contentTypeOf(resp.Header), nil
}

func (s *Server) serveChunk(w http.ResponseWriter, r *http.Request, target string, headers map[string]string, start, end, length int64, contentType string) {
	req := copyHeaders(headers)
	req["Range"] = fmt.Sprintf("bytes=%d-%d", start, end)

	resp, err := s.upstream.Open(r.Context(), http.MethodGet, target, req)
	if err != nil {
		http.Error(w, fmt.Sprintf("Proxy request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		http.Error(w, fmt.Sprintf("upstream returned %d", resp.StatusCode), http.StatusBadGateway)
		return
	}

	body := io.Reader(resp.Body)
	if resp.StatusCode == http.StatusOK && start > 0 {
		// upstream ignored the range
		if _, err := io.CopyN(io.Discard, body, start); err != nil {
			http.Error(w, "upstream body too short", http.StatusBadGateway)
			return
		}
	}

	size := end - start + 1
	h := w.Header()
	setCORS(h)
	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, length))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.CopyN(w, body, size); err != nil && r.Context().Err() == nil {
		s.logger.Debug("chunk copy ended early", "url", target, "error", err)
	}
}

func (s *Server) serveFull(w http.ResponseWriter, r *http.Request, target string, headers map[string]string, contentType string) {
	resp, err := s.upstream.Open(r.Context(), http.MethodGet, target, headers)
	if err != nil {
		http.Error(w, fmt.Sprintf("Proxy request failed: %v", err), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h := w.Header()
	setCORS(h)
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, resp.Body); err != nil && r.Context().Err() == nil {
		s.logger.Debug("stream copy ended early", "url", target, "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(started),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func upstreamHeaders(referer string) map[string]string {
	return map[string]string{
		"Referer":         referer,
		"User-Agent":      browserUserAgent,
		"Accept":          "video/webm,video/ogg,video/*;q=0.9,application/ogg;q=0.7,audio/*;q=0.6,*/*;q=0.5",
		"Accept-Encoding": "identity",
		"Cache-Control":   "no-cache",
	}
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

func contentTypeOf(h http.Header) string {
	if ct := h.Get("Content-Type"); ct != "" {
		return ct
	}
	return defaultContentType
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Range")
}
