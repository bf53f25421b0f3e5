package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"shelfrank/internal/model"
	"shelfrank/internal/setup"
	"shelfrank/internal/store"
)

var submitUser string

var submitCmd = &cobra.Command{
	Use:   "submit <url>",
	Short: "Queue a product URL for the next cycle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rawURL := args[0]

		if !model.URLOnDomain(rawURL, cfg.Source.Domain) {
			return fmt.Errorf("url must be on %s", cfg.Source.Domain)
		}
		bookID, ok := model.ExtractBookID(rawURL)
		if !ok {
			return fmt.Errorf("url does not contain a product ID")
		}

		if err := setup.EnsureLayout(cfg.Data.Dir); err != nil {
			return err
		}
		paths := store.NewPaths(cfg.Data.Dir)

		queue := model.NewSubmissionQueue()
		if err := store.Read(paths.Submissions(), queue); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("reading submission queue: %w", err)
		}
		if len(queue.Submissions) >= cfg.Server.MaxQueueSize {
			return fmt.Errorf("submission queue is full (%d entries)", len(queue.Submissions))
		}
		for _, existing := range queue.Submissions {
			if id, ok := model.ExtractBookID(existing.URL); ok && id == bookID {
				printer.Warning("book %s is already queued", bookID)
				return nil
			}
		}

		queue.Submissions = append(queue.Submissions, model.Submission{
			ID:          uuid.New().String(),
			URL:         rawURL,
			SubmittedAt: time.Now().UTC().Format(time.RFC3339),
			Submitter:   submitUser,
		})
		if err := store.Write(paths.Submissions(), queue); err != nil {
			return fmt.Errorf("persisting submission queue: %w", err)
		}

		printer.Success("queued %s (%d pending)", bookID, len(queue.Submissions))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitUser, "submitter", "", "name recorded with the submission")
	rootCmd.AddCommand(submitCmd)
}
