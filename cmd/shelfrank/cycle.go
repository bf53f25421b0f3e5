package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"shelfrank/internal/cycle"
	"shelfrank/internal/setup"
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Run one full update cycle and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := setup.EnsureLayout(cfg.Data.Dir); err != nil {
			return err
		}

		runner, err := cycle.NewRunner(cfg, logger, nil)
		if err != nil {
			return err
		}
		defer runner.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := runner.RunCycle(ctx)
		if err != nil {
			if errors.Is(err, cycle.ErrCycleRunning) {
				printer.Warning("%v", err)
				return nil
			}
			printCycleStats(res)
			return err
		}

		printer.Success("cycle %s completed in %s", res.RunID, res.Duration.Round(time.Millisecond))
		printCycleStats(res)
		return nil
	},
}

func printCycleStats(res cycle.CycleResult) {
	s := res.Stats
	if s.Cleaner != nil {
		printer.Print("  clean:   %d checked, %d removed, %d remaining",
			s.Cleaner.Checked, s.Cleaner.Removed, s.Cleaner.Remaining)
	}
	if s.Acquisition != nil {
		printer.Print("  acquire: %d attempted, %d succeeded, %d failed",
			s.Acquisition.Attempted, s.Acquisition.Succeeded, s.Acquisition.Failed)
	}
	if s.Filter != nil {
		printer.Print("  filter:  %d scanned, %d purged, %d remaining",
			s.Filter.Scanned, s.Filter.Purged, s.Filter.Remaining)
	}
	if s.Publication != nil {
		printer.Print("  publish: %d of %d books ranked",
			s.Publication.Ranked, s.Publication.Considered)
	}
	if res.FailedStage != "" {
		printer.Error("failed in %s stage", res.FailedStage)
	}
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}
