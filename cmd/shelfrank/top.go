package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"shelfrank/internal/model"
	"shelfrank/internal/output"
	"shelfrank/internal/store"
)

var topLimit int

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the published leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := store.NewPaths(cfg.Data.Dir)

		board := model.NewLeaderboard(cfg.Publish.Version)
		err := store.Read(paths.Leaderboard(), board)
		if errors.Is(err, store.ErrNotFound) {
			printer.Info("no leaderboard published yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading leaderboard: %w", err)
		}
		if len(board.Books) == 0 {
			printer.Info("leaderboard is empty (last updated %s)", board.LastUpdated)
			return nil
		}

		entries := make([]model.LeaderboardEntry, 0, len(board.Books))
		for _, e := range board.Books {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })

		limit := topLimit
		if limit <= 0 || limit > len(entries) {
			limit = len(entries)
		}

		table := output.NewTable([]string{"rank", "title", "author", "sales rank"})
		for _, e := range entries[:limit] {
			table.AddRow([]string{
				strconv.Itoa(e.Rank),
				e.Title,
				e.Author,
				strconv.Itoa(e.RankValue),
			})
		}
		table.Render()
		printer.Print("")
		printer.Print("%d of %d books, updated %s", limit, len(entries), board.LastUpdated)
		return nil
	},
}

func init() {
	topCmd.Flags().IntVar(&topLimit, "limit", 20, "number of entries to show")
	rootCmd.AddCommand(topCmd)
}
