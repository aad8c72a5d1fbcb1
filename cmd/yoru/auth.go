package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/yoruanime/yoru/internal/backend"
	"github.com/yoruanime/yoru/internal/database"
	"github.com/yoruanime/yoru/internal/tracker/anilist"
)

// newAniListClient builds the AniList client over the configured token
// store
func newAniListClient(api anilist.API) (*anilist.Client, error) {
	store, err := anilist.NewTokenStore(cfg.Tracker.AniList.TokenStore, database.DB)
	if err != nil {
		return nil, err
	}
	return anilist.NewClient(anilist.Config{
		ClientID:    cfg.Tracker.AniList.ClientID,
		RedirectURI: cfg.Tracker.AniList.RedirectURI,
		API:         api,
		Store:       store,
		Logger:      logger,
	}), nil
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with tracking services",
}

var authAniListCmd = &cobra.Command{
	Use:   "anilist",
	Short: "Authenticate with AniList",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Tracker.AniList.Enabled {
			return fmt.Errorf("AniList tracking is disabled in config")
		}

		client, err := newAniListClient(backend.NewClient(cfg, logger))
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if client.IsAuthenticated() && !force {
			name := "unknown user"
			if p := client.Profile(); p != nil {
				name = p.Name
			}
			fmt.Printf("Already authenticated with AniList as %s (use --force to log in again)\n", name)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		profile, err := anilist.AuthenticateWithBrowser(ctx, client, os.Stdin, os.Stdout)
		if err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}

		fmt.Printf("✓ Logged in as %s (ID: %d)\n", profile.Name, profile.ID)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check authentication status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Tracker.AniList.Enabled {
			fmt.Println("AniList: Disabled")
			return nil
		}

		client, err := newAniListClient(backend.NewClient(cfg, logger))
		if err != nil {
			return err
		}

		fmt.Print("AniList: ")
		if !client.IsAuthenticated() {
			fmt.Println("Not authenticated ✗")
			return nil
		}

		profile := client.Profile()
		if refresh, _ := cmd.Flags().GetBool("refresh"); refresh {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if profile, err = client.RefreshProfile(ctx); err != nil {
				return fmt.Errorf("failed to refresh profile: %w", err)
			}
		}

		if profile != nil {
			fmt.Printf("Authenticated as %s (ID: %d) ✓\n", profile.Name, profile.ID)
		} else {
			fmt.Println("Authenticated ✓")
		}
		if tok := client.Token(); tok != nil && !tok.Expiry.IsZero() {
			fmt.Printf("Token expires: %s\n", tok.Expiry.Format("2006-01-02"))
		}
		fmt.Printf("Auto sync: %v (at %.0f%% watched)\n", cfg.Tracker.AniList.AutoSync, cfg.Tracker.AniList.SyncThreshold*100)
		return nil
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored AniList session",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAniListClient(backend.NewClient(cfg, logger))
		if err != nil {
			return err
		}
		if err := client.Logout(); err != nil {
			return fmt.Errorf("failed to logout: %w", err)
		}
		fmt.Println("Logged out from AniList")
		return nil
	},
}

func init() {
	authAniListCmd.Flags().Bool("force", false, "log in again even when a session exists")
	authStatusCmd.Flags().Bool("refresh", false, "re-read the profile from AniList")

	authCmd.AddCommand(authAniListCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}
