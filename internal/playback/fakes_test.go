package playback

import (
	"context"
	"sync"

	"github.com/yoruanime/yoru/internal/backend"
	"github.com/yoruanime/yoru/internal/player"
	"github.com/yoruanime/yoru/internal/tracker"
)

type call struct {
	name  string
	value any
}

type fakeEngine struct {
	mu       sync.Mutex
	calls    []call
	loads    []player.LoadOptions
	starts   int
	closes   int
	loadErr  error
	startErr error
	events   chan player.Event
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan player.Event, 16)}
}

func (e *fakeEngine) record(name string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call{name: name, value: value})
}

func (e *fakeEngine) Start(ctx context.Context, mount player.Mount) error {
	e.starts++
	return e.startErr
}

func (e *fakeEngine) Load(ctx context.Context, url string, opts player.LoadOptions) error {
	if e.loadErr != nil {
		return e.loadErr
	}
	e.record("load", url)
	e.mu.Lock()
	e.loads = append(e.loads, opts)
	e.mu.Unlock()
	return nil
}

func (e *fakeEngine) SetPause(ctx context.Context, paused bool) error {
	e.record("pause", paused)
	return nil
}

func (e *fakeEngine) SeekTo(ctx context.Context, seconds float64) error {
	e.record("seek", seconds)
	return nil
}

func (e *fakeEngine) SetVolume(ctx context.Context, volume float64) error {
	e.record("volume", volume)
	return nil
}

func (e *fakeEngine) SetMute(ctx context.Context, muted bool) error {
	e.record("mute", muted)
	return nil
}

func (e *fakeEngine) SetFullscreen(ctx context.Context, fullscreen bool) error {
	e.record("fullscreen", fullscreen)
	return nil
}

func (e *fakeEngine) Events() <-chan player.Event { return e.events }

func (e *fakeEngine) Close() error {
	e.closes++
	return nil
}

func (e *fakeEngine) callsNamed(name string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for _, c := range e.calls {
		if c.name == name {
			out = append(out, c.value)
		}
	}
	return out
}

type fakeSources struct {
	mu      sync.Mutex
	queries []backend.SourcesQuery
	sources map[int][]backend.Source
	err     error
}

func (f *fakeSources) GetSources(ctx context.Context, q backend.SourcesQuery) ([]backend.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.sources[q.Episode], nil
}

type fakeTracker struct {
	mu            sync.Mutex
	authenticated bool
	updates       []tracker.Update
	err           error
}

func (f *fakeTracker) IsAuthenticated() bool { return f.authenticated }

func (f *fakeTracker) UpdateProgress(ctx context.Context, update tracker.Update) (*tracker.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if f.err != nil {
		return nil, f.err
	}
	return &tracker.Result{Status: update.Status()}, nil
}

func (f *fakeTracker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type proxyFunc func(sourceURL, referer string) string

func (p proxyFunc) ProxyURL(sourceURL, referer string) string { return p(sourceURL, referer) }

var passthrough = proxyFunc(func(u, _ string) string { return u })

// initializedAdapter returns an adapter with a started fake engine
func initializedAdapter(engine *fakeEngine) *Adapter {
	a := NewAdapter(func() (player.Engine, error) { return engine, nil }, passthrough, nil)
	if _, err := a.InitializeOnce(context.Background(), player.Mount{}); err != nil {
		panic(err)
	}
	return a
}
