package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/yoruanime/yoru/internal/database"
	"github.com/yoruanime/yoru/internal/history"
)

// historyCmd lists watch history
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show watch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		search, _ := cmd.Flags().GetString("search")
		animeID, _ := cmd.Flags().GetInt("anime")
		showStats, _ := cmd.Flags().GetBool("stats")
		prune, _ := cmd.Flags().GetBool("prune")

		svc := history.NewService(database.DB)

		if prune {
			if err := svc.Cleanup(); err != nil {
				return fmt.Errorf("failed to prune history: %w", err)
			}
			fmt.Println("Removed unfinished entries older than 30 days")
		}

		if showStats {
			stats, err := svc.GetStats()
			if err != nil {
				return fmt.Errorf("failed to load stats: %w", err)
			}
			fmt.Printf("Episodes: %s (%s finished) across %s anime\n",
				humanize.Comma(stats.TotalItems),
				humanize.Comma(stats.CompletedCount),
				humanize.Comma(stats.AnimeCount))
			fmt.Printf("Time watched: %s\n", stats.TotalWatchTime.Round(time.Second))
			return nil
		}

		rows, err := svc.GetHistory(history.FilterOptions{
			AnimeID:     animeID,
			SearchQuery: search,
			Limit:       limit,
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No watch history yet")
			return nil
		}

		for _, h := range rows {
			fmt.Println(formatHistoryRow(h))
		}
		return nil
	},
}

func formatHistoryRow(h database.History) string {
	mark := " "
	if h.Completed {
		mark = "✓"
	}
	audio := "sub"
	if h.Dub {
		audio = "dub"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-40s ep %-4d %3.0f%%  %s  %s", mark, h.Title, h.Episode, h.ProgressPercent, audio, humanize.Time(h.WatchedAt))
	if h.Quality != "" || h.SourceOrigin != "" {
		fmt.Fprintf(&b, "  [%s]", strings.Trim(h.Quality+" "+h.SourceOrigin, " "))
	}
	fmt.Fprintf(&b, "  (id %d)", h.AnimeID)
	return b.String()
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)")
	historyCmd.Flags().StringP("search", "s", "", "filter by title")
	historyCmd.Flags().Int("anime", 0, "only show one anime id")
	historyCmd.Flags().Bool("stats", false, "show totals instead of entries")
	historyCmd.Flags().Bool("prune", false, "remove unfinished entries older than 30 days")
}
