package cycle

import (
	"fmt"
	"sort"
	"time"

	"shelfrank/internal/audit"
	"shelfrank/internal/blacklist"
	"shelfrank/internal/logging"
	"shelfrank/internal/model"
)

// Purger applies the blacklist to the book database. Matching books are
// removed and a full snapshot of each is appended to the rejection trail
// before anything is dropped.
type Purger struct {
	trail  *audit.Trail
	logger *logging.Logger

	// match is swappable so tests can inject faulty predicates.
	match func(e *blacklist.Engine, b model.Book) (blacklist.Verdict, error)
}

func NewPurger(trail *audit.Trail, logger *logging.Logger) *Purger {
	return &Purger{trail: trail, logger: logger, match: safeMatch}
}

// safeMatch evaluates one book against the engine, converting a panicking
// predicate into an error so a single bad pattern cannot take down the
// whole stage.
func safeMatch(e *blacklist.Engine, b model.Book) (v blacklist.Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("predicate panic: %v", r)
		}
	}()
	return e.Match(b.Title, b.Author), nil
}

// Purge scans every book in ID order and deletes the ones the policy
// matches. A book whose check errors is removed too, with reason
// error_during_check: when in doubt the book does not ship. The mutated
// database is the caller's to persist; if the rejection trail cannot be
// written the stage fails before the deletion is ever persisted.
func (p *Purger) Purge(db *model.BookDB, policy blacklist.Policy) ([]model.RejectionRecord, model.FilterStats, error) {
	stats := model.FilterStats{Scanned: len(db.Books)}
	var rejections []model.RejectionRecord

	if policy.IsEmpty() {
		stats.Remaining = len(db.Books)
		return rejections, stats, nil
	}

	engine := blacklist.Compile(policy)

	ids := make([]string, 0, len(db.Books))
	for id := range db.Books {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		book := db.Books[id]

		verdict, err := p.match(engine, book)
		if err != nil {
			p.logger.Errorf("blacklist check failed for %s (%q): %v", id, book.Title, err)
			verdict = blacklist.Verdict{Matched: true, Reason: model.ReasonErrorDuringCheck}
		}
		if !verdict.Matched {
			continue
		}

		rec := model.RejectionRecord{
			BookID:         id,
			Title:          book.Title,
			Author:         book.Author,
			SourceURL:      book.SourceURL,
			RankValue:      book.RankValue,
			Reason:         verdict.Reason,
			MatchedPattern: verdict.Pattern,
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		}
		if p.trail != nil {
			if terr := p.trail.Append(rec); terr != nil {
				return rejections, stats, fmt.Errorf("recording rejection for %s: %w", id, terr)
			}
		}

		delete(db.Books, id)
		rejections = append(rejections, rec)
		stats.Purged++
		p.logger.Infof("purged %s (%q by %q): %s", id, book.Title, book.Author, verdict.Reason)
	}

	stats.Remaining = len(db.Books)
	return rejections, stats, nil
}
