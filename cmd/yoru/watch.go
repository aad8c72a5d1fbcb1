package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yoruanime/yoru/internal/backend"
	"github.com/yoruanime/yoru/internal/clipboard"
	"github.com/yoruanime/yoru/internal/database"
	"github.com/yoruanime/yoru/internal/history"
	"github.com/yoruanime/yoru/internal/player"
	"github.com/yoruanime/yoru/internal/player/mpv"
	"github.com/yoruanime/yoru/internal/playback"
	"github.com/yoruanime/yoru/internal/proxy"
	"github.com/yoruanime/yoru/internal/tracker"
	"github.com/yoruanime/yoru/internal/tui"
)

// proxyBase rewrites sources against a locally served proxy
type proxyBase string

func (p proxyBase) ProxyURL(sourceURL, referer string) string {
	return backend.ProxyURL(string(p), sourceURL, referer)
}

// watchCmd opens a watch session
var watchCmd = &cobra.Command{
	Use:   "watch <anime-id>",
	Short: "Watch an anime episode",
	Long: `Resolve sources for an episode and play it in mpv.

Without --episode the session resumes from watch history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		animeID, err := strconv.Atoi(args[0])
		if err != nil || animeID <= 0 {
			return fmt.Errorf("invalid anime id: %s", args[0])
		}
		episode, _ := cmd.Flags().GetInt("episode")
		dub, _ := cmd.Flags().GetBool("dub")
		title, _ := cmd.Flags().GetString("title")
		localProxy, _ := cmd.Flags().GetBool("local-proxy")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sessionLogger := logger.With("session", uuid.NewString())
		api := backend.NewClient(cfg, sessionLogger)

		total := 0
		var episodes []int
		anime, err := api.GetAnime(ctx, animeID)
		switch {
		case err == nil:
			total = anime.TotalEpisodes()
			episodes = anime.EpisodeNumbers()
			if title == "" {
				title = anime.DisplayTitle()
			}
		case api.Health(ctx) != nil:
			return fmt.Errorf("backend at %s is unreachable: %w", cfg.API.BaseURL, err)
		case title == "":
			return fmt.Errorf("failed to load anime %d: %w", animeID, err)
		default:
			sessionLogger.Warn("failed to load anime details, continuing with --title", "anime_id", animeID, "error", err)
		}

		hist := history.NewService(database.DB)
		if episode <= 0 {
			episode, err = hist.ResumeEpisode(animeID, total)
			if err != nil {
				return err
			}
		}

		var rewriter playback.ProxyRewriter = api
		if localProxy {
			ln, err := net.Listen("tcp", cfg.Proxy.Listen)
			if err != nil {
				return fmt.Errorf("failed to start local proxy: %w", err)
			}
			srv := proxy.NewServer(&cfg.Proxy, sessionLogger)
			go func() {
				if err := srv.Serve(ctx, ln); err != nil {
					sessionLogger.Error("local proxy stopped", "error", err)
				}
			}()
			rewriter = proxyBase("http://" + ln.Addr().String())
		}

		manager := tracker.NewManager(&cfg.Tracker.AniList, database.DB, sessionLogger)
		if client, err := newAniListClient(api); err != nil {
			sessionLogger.Warn("progress sync unavailable", "error", err)
		} else {
			manager.SetAniListClient(client)
		}

		adapter := playback.NewAdapter(func() (player.Engine, error) {
			engine, err := mpv.New(&cfg.Player, cfg.Advanced.Debug, sessionLogger)
			if err != nil {
				return nil, err
			}
			return engine, nil
		}, rewriter, sessionLogger)

		fmt.Println("Starting mpv...")
		if _, err := adapter.InitializeOnce(ctx, player.Mount{
			WindowTitle: "yoru - " + title,
			Volume:      cfg.Player.Volume,
			Fullscreen:  cfg.Player.Fullscreen,
		}); err != nil {
			return err
		}

		guard := playback.NewSyncGuard(manager, cfg.Tracker.AniList.SyncThreshold, sessionLogger)
		keys := playback.NewKeyRouter(adapter, cfg.Player.SeekStep, cfg.Player.VolumeStep, sessionLogger)
		ctrl := playback.NewController(playback.NewResolver(api), adapter, guard, keys, sessionLogger)

		sessionLogger.Info("watch session starting", "anime_id", animeID, "episode", episode, "dub", dub, "total", total)
		model := tui.New(tui.Deps{
			Controller: ctrl,
			Adapter:    adapter,
			Guard:      guard,
			History:    hist,
			Clipboard:  clipboard.NewService(cfg.Advanced.Clipboard.Command, sessionLogger),
			Logger:     sessionLogger,
		}, tui.Session{
			Identity:      playback.SessionIdentity{AnimeID: animeID, Episode: episode, Dub: dub},
			Title:         title,
			TotalEpisodes: total,
			Episodes:      episodes,
		})
		return tui.Run(ctx, model)
	},
}

func init() {
	watchCmd.Flags().IntP("episode", "e", 0, "episode to open (default: resume from history)")
	watchCmd.Flags().Bool("dub", false, "prefer dubbed sources")
	watchCmd.Flags().StringP("title", "t", "", "title used to search sources (default: from the catalog)")
	watchCmd.Flags().Bool("local-proxy", false, "serve the streaming proxy in-process instead of using the backend's")
}
