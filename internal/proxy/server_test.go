package proxy

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoruanime/yoru/internal/config"
)

var payload = bytes.Repeat([]byte("0123456789"), 500) // 5000 bytes

type upstream struct {
	*httptest.Server
	mu       sync.Mutex
	referers []string
}

func (u *upstream) lastReferer() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.referers) == 0 {
		return ""
	}
	return u.referers[len(u.referers)-1]
}

func newUpstream(t *testing.T, allowHead bool) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.referers = append(u.referers, r.Header.Get("Referer"))
		u.mu.Unlock()
		if r.Method == http.MethodHead && !allowHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "video/mp2t")
		http.ServeContent(w, r, "seg.ts", time.Time{}, bytes.NewReader(payload))
	}))
	t.Cleanup(u.Close)
	return u
}

func newProxy(t *testing.T) *httptest.Server {
	t.Helper()
	srv := NewServer(&config.ProxyConfig{InitialChunk: 1000, MaxChunk: 1500}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, proxy *httptest.Server, target, ref, rangeHeader string) (*http.Response, []byte) {
	t.Helper()
	u := proxy.URL + "/proxy?url=" + url.QueryEscape(target)
	if ref != "" {
		u += "&ref=" + url.QueryEscape(ref)
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	require.NoError(t, err)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		start, end int64
		wantErr    bool
	}{
		{"bytes=0-99", 0, 99, false},
		{"bytes=100-", 100, 4999, false},
		{"bytes=-500", 4500, 4999, false},
		{"bytes=-9000", 0, 4999, false},
		{"bytes=4000-9000", 4000, 4999, false},
		{"bytes=0-10,20-30", 0, 10, false},
		{"bytes=6000-", 0, 0, true},
		{"bytes=-", 0, 0, true},
		{"items=0-1", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, err := ParseRange(tt.header, 5000)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, start)
			assert.Equal(t, tt.end, end)
		})
	}
}

func TestTotalFromContentRange(t *testing.T) {
	assert.Equal(t, int64(123456), totalFromContentRange("bytes 0-1023/123456"))
	assert.Equal(t, int64(0), totalFromContentRange("bytes 0-1023/*"))
}

func TestHealth(t *testing.T) {
	ts := newProxy(t)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))
}

func TestProxy_Range(t *testing.T) {
	up := newUpstream(t, true)
	ts := newProxy(t)

	t.Run("explicit range", func(t *testing.T) {
		resp, body := get(t, ts, up.URL, "http://origin", "bytes=10-19")
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 10-19/5000", resp.Header.Get("Content-Range"))
		assert.Equal(t, "10", resp.Header.Get("Content-Length"))
		assert.Equal(t, "video/mp2t", resp.Header.Get("Content-Type"))
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "bytes", resp.Header.Get("Accept-Ranges"))
		assert.Equal(t, payload[10:20], body)
		assert.Equal(t, "http://origin", up.lastReferer())
	})

	t.Run("open range is capped", func(t *testing.T) {
		resp, body := get(t, ts, up.URL, "", "bytes=100-")
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 100-1599/5000", resp.Header.Get("Content-Range"))
		assert.Equal(t, payload[100:1600], body)
		assert.Equal(t, "https://example.com", up.lastReferer())
	})

	t.Run("suffix range", func(t *testing.T) {
		resp, body := get(t, ts, up.URL, "", "bytes=-100")
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, payload[4900:], body)
	})

	t.Run("unsatisfiable range", func(t *testing.T) {
		resp, _ := get(t, ts, up.URL, "", "bytes=9000-")
		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, resp.StatusCode)
	})

	t.Run("no range serves initial chunk", func(t *testing.T) {
		resp, body := get(t, ts, up.URL, "", "")
		assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
		assert.Equal(t, "bytes 0-999/5000", resp.Header.Get("Content-Range"))
		assert.Equal(t, payload[:1000], body)
	})
}

func TestProxy_HeadFallback(t *testing.T) {
	up := newUpstream(t, false)
	ts := newProxy(t)

	resp, body := get(t, ts, up.URL, "", "bytes=0-9")
	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "bytes 0-9/5000", resp.Header.Get("Content-Range"))
	assert.Equal(t, payload[:10], body)
}

func TestProxy_UnknownLength(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("part-one-"))
		w.(http.Flusher).Flush()
		_, _ = w.Write([]byte("part-two"))
	}))
	defer up.Close()
	ts := newProxy(t)

	resp, body := get(t, ts, up.URL, "", "bytes=0-3")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "part-one-part-two", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestProxy_Errors(t *testing.T) {
	ts := newProxy(t)

	t.Run("missing url", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/proxy")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unreachable upstream", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		deadURL := dead.URL
		dead.Close()

		resp, body := get(t, ts, deadURL+"/a.mp4", "", "")
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.True(t, strings.HasPrefix(string(body), "Proxy request failed"))
	})
}

func TestProxy_Preflight(t *testing.T) {
	ts := newProxy(t)
	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/proxy", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "Range", resp.Header.Get("Access-Control-Allow-Headers"))
}
