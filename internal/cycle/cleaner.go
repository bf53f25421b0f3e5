package cycle

import (
	"time"

	"shelfrank/internal/audit"
	"shelfrank/internal/logging"
	"shelfrank/internal/model"
)

// Cleaner prunes the submission queue before acquisition runs. It removes
// submissions whose URL no longer yields a book ID and submissions that have
// failed too many consecutive cycles without producing a tracked book.
type Cleaner struct {
	maxFailedAttempts int
	trail             *audit.Trail
	logger            *logging.Logger
}

// RemovedSubmission pairs a pruned submission with the reason it was pruned.
type RemovedSubmission struct {
	Submission model.Submission
	Reason     string
}

func NewCleaner(maxFailedAttempts int, trail *audit.Trail, logger *logging.Logger) *Cleaner {
	return &Cleaner{
		maxFailedAttempts: maxFailedAttempts,
		trail:             trail,
		logger:            logger,
	}
}

// Clean walks the queue once and returns the submissions to keep, the ones
// removed, and counters for the cycle status. A submission whose book is
// already tracked survives with its failure count reset, so a later purge
// followed by resubmission starts from a clean slate. Otherwise the failure
// count increments, and hitting the threshold removes the submission. With a
// threshold of 3 a permanently failing submission survives exactly two
// cleanings and is removed on the third.
func (c *Cleaner) Clean(queue []model.Submission, books map[string]model.Book) ([]model.Submission, []RemovedSubmission, model.CleanStats) {
	kept := make([]model.Submission, 0, len(queue))
	var removed []RemovedSubmission

	for _, sub := range queue {
		id, ok := model.ExtractBookID(sub.URL)
		if !ok {
			c.remove(&removed, sub, model.RemovalInvalidKey)
			continue
		}

		if _, tracked := books[id]; tracked {
			sub.FailedAttempts = 0
			kept = append(kept, sub)
			continue
		}

		sub.FailedAttempts++
		if sub.FailedAttempts >= c.maxFailedAttempts {
			c.remove(&removed, sub, model.RemovalFailedOrPurged)
			continue
		}
		kept = append(kept, sub)
	}

	stats := model.CleanStats{
		Checked:   len(queue),
		Removed:   len(removed),
		Remaining: len(kept),
	}
	return kept, removed, stats
}

// remove records the pruned submission in the cleanup trail. The trail is
// best effort: a write failure is logged and cleaning continues.
func (c *Cleaner) remove(removed *[]RemovedSubmission, sub model.Submission, reason string) {
	*removed = append(*removed, RemovedSubmission{Submission: sub, Reason: reason})
	c.logger.Infof("removing submission %s (%s)", sub.URL, reason)

	if c.trail == nil {
		return
	}
	rec := model.CleanupRecord{
		URL:         sub.URL,
		SubmittedAt: sub.SubmittedAt,
		Reason:      reason,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.trail.Append(rec); err != nil {
		c.logger.Warnf("cleanup trail append failed for %s: %v", sub.URL, err)
	}
}
