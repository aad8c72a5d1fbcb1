package mpv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/diniamo/gopv"
	"github.com/yoruanime/yoru/internal/config"
	"github.com/yoruanime/yoru/internal/player"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrClosed is returned for commands issued after Close
var ErrClosed = errors.New("mpv engine closed")

// Engine drives one idle mpv process over JSON IPC. Sources are swapped
// with loadfile so the process and its window survive episode changes.
type Engine struct {
	mu sync.Mutex

	client    *gopv.Client
	cmd       *exec.Cmd
	ipcConfig *IPCConfig
	platform  Platform
	watch     watcher
	started   bool
	closed    bool

	executable     string
	loadUserConfig bool
	debug          bool
	pollInterval   time.Duration
	logger         *slog.Logger

	events chan player.Event
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an engine; mpv is not launched until Start
func New(cfg *config.PlayerConfig, debug bool, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	platform := DetectPlatform()
	executable, err := FindExecutable(platform, cfg.MPVPath)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		platform:       platform,
		executable:     executable,
		loadUserConfig: cfg.LoadUserConfig,
		debug:          debug,
		pollInterval:   poll,
		logger:         logger.With("component", "mpv"),
		events:         make(chan player.Event, 64),
		ctx:            ctx,
		cancel:         cancel,
	}, nil
}

// Events delivers lifecycle events; the channel is closed by Close
func (e *Engine) Events() <-chan player.Event {
	return e.events
}

// Start launches mpv in idle mode and connects to its IPC endpoint.
// Calling it again after success is a no-op.
func (e *Engine) Start(ctx context.Context, mount player.Mount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.started {
		return nil
	}

	ipcConfig, err := NewIPCConfig(e.platform)
	if err != nil {
		return fmt.Errorf("failed to generate IPC config: %w", err)
	}
	e.ipcConfig = ipcConfig

	cmd := exec.Command(e.executable, e.buildArgs(mount)...)
	// detached from the terminal so mpv neither steals keys nor draws over the TUI
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		e.cleanupIPC()
		return fmt.Errorf("failed to start %s: %w", e.executable, err)
	}
	e.cmd = cmd

	initCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := e.waitForIPC(initCtx); err != nil {
		e.killLocked()
		return fmt.Errorf("timeout waiting for mpv IPC at %s: %w", ipcConfig.Address, err)
	}

	client, err := gopv.Connect(ipcConfig.Address, func(err error) {
		e.logger.Debug("mpv IPC error", "error", err)
	})
	if err != nil {
		e.killLocked()
		return fmt.Errorf("failed to connect to mpv IPC at %s: %w", ipcConfig.Address, err)
	}

	e.client = client
	e.started = true
	e.logger.Info("mpv started", "ipc", ipcConfig.Address, "pid", cmd.Process.Pid)

	e.wg.Add(2)
	go e.monitorProperties()
	go e.monitorProcess(cmd)

	e.emit(player.Event{Kind: player.EventReady})
	return nil
}

// Load replaces whatever is playing with url
func (e *Engine) Load(ctx context.Context, url string, opts player.LoadOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	client, err := e.clientLocked()
	if err != nil {
		return err
	}

	if opts.Title != "" {
		if _, err := client.Request("set_property", "force-media-title", opts.Title); err != nil {
			e.logger.Debug("failed to set media title", "error", err)
		}
	}
	start := "none"
	if opts.StartTime > 0 {
		start = fmt.Sprintf("%.0f", opts.StartTime.Seconds())
	}
	if _, err := client.Request("set_property", "start", start); err != nil {
		e.logger.Debug("failed to set start position", "error", err)
	}

	if _, err := client.Request("loadfile", url, "replace"); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	if _, err := client.Request("set_property", "pause", false); err != nil {
		e.logger.Debug("failed to unpause", "error", err)
	}

	e.watch.sourceLoaded(opts.Sequence)
	e.logger.Debug("source loaded", "url", url, "title", opts.Title, "load", opts.Sequence)
	return nil
}

// SetPause pauses or resumes playback
func (e *Engine) SetPause(ctx context.Context, paused bool) error {
	return e.setProperty("pause", paused)
}

// SeekTo seeks to an absolute position in seconds
func (e *Engine) SeekTo(ctx context.Context, seconds float64) error {
	return e.setProperty("time-pos", seconds)
}

// SetVolume sets volume in the 0-1 range
func (e *Engine) SetVolume(ctx context.Context, volume float64) error {
	return e.setProperty("volume", volume*100)
}

// SetMute mutes or unmutes audio
func (e *Engine) SetMute(ctx context.Context, muted bool) error {
	return e.setProperty("mute", muted)
}

// SetFullscreen toggles the mpv window between fullscreen and windowed
func (e *Engine) SetFullscreen(ctx context.Context, fullscreen bool) error {
	return e.setProperty("fullscreen", fullscreen)
}

// Close quits mpv and releases IPC resources. Repeat calls are no-ops.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	client := e.client
	e.client = nil
	e.cancel()
	e.mu.Unlock()

	if client != nil {
		// gopv closes itself on EOF from the exiting process
		done := make(chan struct{})
		go func() {
			_, _ = client.Request("quit")
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}

	e.mu.Lock()
	e.killLocked()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)
	return nil
}

func (e *Engine) setProperty(name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	client, err := e.clientLocked()
	if err != nil {
		return err
	}
	if _, err := client.Request("set_property", name, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", name, err)
	}
	return nil
}

func (e *Engine) clientLocked() (*gopv.Client, error) {
	if e.closed {
		return nil, ErrClosed
	}
	if e.client == nil {
		return nil, fmt.Errorf("mpv not started")
	}
	return e.client, nil
}

// killLocked must be called with e.mu held
func (e *Engine) killLocked() {
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	e.cmd = nil
	e.cleanupIPC()
}

func (e *Engine) cleanupIPC() {
	if e.ipcConfig != nil && e.ipcConfig.IsSocket() {
		_ = os.Remove(e.ipcConfig.Address)
	}
	e.ipcConfig = nil
}

// emit delivers an event. Time updates are dropped when the consumer is
// behind; everything else waits.
func (e *Engine) emit(ev player.Event) {
	if ev.Kind == player.EventTimeUpdate {
		select {
		case e.events <- ev:
		case <-e.ctx.Done():
		default:
		}
		return
	}
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

func (e *Engine) monitorProperties() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.client == nil {
			e.mu.Unlock()
			return
		}
		progress, err := readProgress(e.client)
		var events []player.Event
		if err == nil {
			events = e.watch.observe(*progress)
		}
		e.mu.Unlock()

		if err != nil {
			failures++
			if failures >= 3 {
				e.emit(player.Event{Kind: player.EventError, Err: fmt.Errorf("mpv IPC connection lost: %w", err)})
				return
			}
			continue
		}
		failures = 0

		for _, ev := range events {
			e.emit(ev)
		}
	}
}

func (e *Engine) monitorProcess(cmd *exec.Cmd) {
	defer e.wg.Done()

	err := cmd.Wait()
	if e.ctx.Err() != nil {
		// closed on purpose
		return
	}
	if err == nil {
		err = errors.New("mpv exited")
	}
	e.emit(player.Event{Kind: player.EventError, Err: fmt.Errorf("mpv process exited unexpectedly: %w", err)})
}

// readProgress polls the properties events are derived from. pause and
// volume always exist, so failing to read them means IPC is broken;
// time-pos and duration are legitimately unavailable while idle.
func readProgress(client *gopv.Client) (*player.PlaybackProgress, error) {
	var p player.PlaybackProgress

	paused, err := client.Request("get_property", "pause")
	if err != nil {
		return nil, err
	}
	p.Paused, _ = paused.(bool)

	volume, err := client.Request("get_property", "volume")
	if err != nil {
		return nil, err
	}
	if v, ok := volume.(float64); ok {
		p.Volume = min(max(v/100, 0), 1)
	}

	if v, err := client.Request("get_property", "time-pos"); err == nil {
		p.CurrentTime, _ = v.(float64)
	}
	if v, err := client.Request("get_property", "duration"); err == nil {
		p.Duration, _ = v.(float64)
	}
	if v, err := client.Request("get_property", "eof-reached"); err == nil {
		p.EOF, _ = v.(bool)
	}
	if v, err := client.Request("get_property", "idle-active"); err == nil {
		p.Idle, _ = v.(bool)
	}
	if v, err := client.Request("get_property", "mute"); err == nil {
		p.Muted, _ = v.(bool)
	}
	if v, err := client.Request("get_property", "fullscreen"); err == nil {
		p.Fullscreen, _ = v.(bool)
	}

	return &p, nil
}

func (e *Engine) buildArgs(mount player.Mount) []string {
	args := []string{
		e.ipcConfig.Argument(),
		"--idle=yes",
		"--keep-open=yes", // hold the last frame so eof-reached is observable
		"--force-window=yes",
		"--no-ytdl",
		"--no-terminal",
		"--user-agent=" + defaultUserAgent,
	}
	if !e.loadUserConfig {
		args = append(args, "--no-config")
	}
	if !e.debug {
		args = append(args, "--msg-level=all=warn")
	}
	if mount.WindowTitle != "" {
		args = append(args, "--title="+mount.WindowTitle)
	}
	if mount.Volume > 0 {
		args = append(args, fmt.Sprintf("--volume=%d", mount.Volume))
	}
	if mount.Fullscreen {
		args = append(args, "--fullscreen")
	}
	return args
}

// waitForIPC waits until mpv has created its IPC endpoint
func (e *Engine) waitForIPC(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if endpointReady(e.ipcConfig) {
				// the endpoint appears slightly before mpv accepts commands
				time.Sleep(200 * time.Millisecond)
				return nil
			}
		}
	}
}
