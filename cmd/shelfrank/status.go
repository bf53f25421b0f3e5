package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"shelfrank/internal/model"
	"shelfrank/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last cycle's outcome and document counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := store.NewPaths(cfg.Data.Dir)

		meta := model.NewMetadata()
		if err := store.Read(paths.Metadata(), meta); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reading cycle status: %w", err)
		}
		db := model.NewBookDB()
		if err := store.Read(paths.Books(), db); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reading book database: %w", err)
		}
		queue := model.NewSubmissionQueue()
		if err := store.Read(paths.Submissions(), queue); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reading submission queue: %w", err)
		}

		c := meta.Cycle
		printer.Header("Cycle")
		printer.Print("%s state: %s", printer.StateBadge(string(c.State)), c.State)
		if c.RunID != "" {
			printer.Print("  run:      %s", c.RunID)
		}
		if c.StartedAt != nil {
			printer.Print("  started:  %s", *c.StartedAt)
		}
		switch {
		case c.CompletedAt != nil:
			printer.Print("  finished: %s (%.1fs)", *c.CompletedAt, c.Duration)
		case c.FailedAt != nil:
			printer.Print("  failed:   %s in %s stage", *c.FailedAt, c.FailedStage)
			if c.LastError != nil {
				printer.Print("  error:    %s", *c.LastError)
			}
		}

		printer.Header("Documents")
		printer.Print("  books tracked:       %d", len(db.Books))
		printer.Print("  submissions pending: %d", len(queue.Submissions))
		if c.Stats != nil && c.Stats.Publication != nil {
			printer.Print("  last published:      %d ranked at %s",
				c.Stats.Publication.Ranked, c.Stats.Publication.PublishedAt)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
