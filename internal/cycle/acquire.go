package cycle

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"shelfrank/internal/fetch"
	"shelfrank/internal/logging"
	"shelfrank/internal/model"
	"shelfrank/internal/parse"
)

// Acquirer fetches every queued submission sequentially and folds the
// results into the book database. The database is persisted after every
// submission so a crash loses at most one book's worth of work.
type Acquirer struct {
	client         *fetch.Client
	requiredFormat string
	delayMin       time.Duration
	delayMax       time.Duration
	persist        func(db *model.BookDB) error
	logger         *logging.Logger
}

// SubmissionOutcome records what happened to a single submission during
// acquisition. Detail carries human context for non-success outcomes.
type SubmissionOutcome struct {
	Submission model.Submission
	BookID     string
	Outcome    model.Outcome
	Detail     string
}

func NewAcquirer(client *fetch.Client, requiredFormat string, delayMin, delayMax time.Duration, persist func(db *model.BookDB) error, logger *logging.Logger) *Acquirer {
	return &Acquirer{
		client:         client,
		requiredFormat: requiredFormat,
		delayMin:       delayMin,
		delayMax:       delayMax,
		persist:        persist,
		logger:         logger,
	}
}

// Acquire processes the queue in order. One submission failing never stops
// the others; only infrastructure problems (context cancellation, a failed
// database write) abort the stage. The returned session carries cookie and
// User-Agent state forward into the next cycle.
func (a *Acquirer) Acquire(ctx context.Context, subs []model.Submission, db *model.BookDB, sess fetch.Session, progress func(current, total int, message string)) (fetch.Session, []SubmissionOutcome, model.AcquireStats, error) {
	outcomes := make([]SubmissionOutcome, 0, len(subs))
	stats := model.AcquireStats{}

	for i, sub := range subs {
		if progress != nil {
			progress(i+1, len(subs), fmt.Sprintf("fetching %s", sub.URL))
		}

		var out SubmissionOutcome
		var err error
		sess, out, err = a.acquireOne(ctx, sub, db, sess)
		if err != nil {
			return sess, outcomes, stats, err
		}
		outcomes = append(outcomes, out)

		stats.Attempted++
		if out.Outcome == model.OutcomeSuccess {
			stats.Succeeded++
			a.logger.Infof("acquired %s (%q by %q)", out.BookID, db.Books[out.BookID].Title, db.Books[out.BookID].Author)
		} else {
			stats.Failed++
			a.logger.Warnf("submission %s: %s (%s)", sub.URL, out.Outcome, out.Detail)
		}

		// Persist after each submission, not just at stage end.
		if a.persist != nil {
			if perr := a.persist(db); perr != nil {
				return sess, outcomes, stats, fmt.Errorf("persisting book database: %w", perr)
			}
		}

		if i+1 < len(subs) {
			if werr := a.politenessWait(ctx); werr != nil {
				return sess, outcomes, stats, werr
			}
		}
	}

	stats.BooksTotal = len(db.Books)
	return sess, outcomes, stats, nil
}

func (a *Acquirer) acquireOne(ctx context.Context, sub model.Submission, db *model.BookDB, sess fetch.Session) (fetch.Session, SubmissionOutcome, error) {
	out := SubmissionOutcome{Submission: sub}

	id, ok := model.ExtractBookID(sub.URL)
	if !ok {
		out.Outcome = model.OutcomeInvalidKey
		out.Detail = "no book ID in URL"
		return sess, out, nil
	}
	out.BookID = id

	res, sess, err := a.client.Fetch(ctx, sub.URL, sess)
	if err != nil {
		if ctx.Err() != nil {
			return sess, out, ctx.Err()
		}
		out.Outcome = model.OutcomeNetworkError
		out.Detail = err.Error()
		return sess, out, nil
	}
	if res.StatusCode != http.StatusOK {
		out.Outcome = model.OutcomeNetworkError
		out.Detail = fmt.Sprintf("status %d after %d attempts", res.StatusCode, res.Attempts)
		return sess, out, nil
	}

	product, err := parse.ProductPage(res.Body)
	if err != nil {
		out.Outcome = model.OutcomeMissingMetadata
		out.Detail = fmt.Sprintf("unreadable page: %v", err)
		return sess, out, nil
	}

	if !product.MatchesFormat(a.requiredFormat) {
		out.Outcome = model.OutcomeWrongFormat
		out.Detail = fmt.Sprintf("page does not describe a %s edition", a.requiredFormat)
		return sess, out, nil
	}
	if product.RankRaw == "" {
		out.Outcome = model.OutcomeMissingRank
		out.Detail = "no sales rank found on page"
		return sess, out, nil
	}
	if missing := missingFields(product); len(missing) > 0 {
		out.Outcome = model.OutcomeMissingMetadata
		out.Detail = "missing " + strings.Join(missing, ", ")
		return sess, out, nil
	}

	upsertBook(db, id, sub, product)
	out.Outcome = model.OutcomeSuccess
	return sess, out, nil
}

func missingFields(p *parse.Product) []string {
	var missing []string
	if p.Title == "" {
		missing = append(missing, "title")
	}
	if p.Author == "" {
		missing = append(missing, "author")
	}
	if p.CoverURL == "" {
		missing = append(missing, "cover_url")
	}
	return missing
}

// upsertBook merges a successful scrape into the database. A new book starts
// with an empty history; a known book gets the fresh sample appended and its
// scalar fields replaced, keeping first_seen.
func upsertBook(db *model.BookDB, id string, sub model.Submission, p *parse.Product) {
	now := time.Now().UTC().Format(time.RFC3339)
	book, exists := db.Books[id]
	if !exists {
		book = model.Book{
			ID:        id,
			FirstSeen: now,
			History:   []model.RankSample{},
		}
	} else {
		book.History = append(book.History, model.RankSample{Timestamp: now, RankValue: p.RankRaw})
	}
	book.Title = p.Title
	book.Author = p.Author
	book.CoverURL = p.CoverURL
	book.RankValue = p.RankRaw
	book.SourceURL = sub.URL
	book.Status = model.BookStatusActive
	book.LastChecked = now
	db.Books[id] = book
}

// politenessWait sleeps a random interval between page fetches. Cancelling
// the context aborts the wait and the stage.
func (a *Acquirer) politenessWait(ctx context.Context) error {
	d := a.delayMin
	if a.delayMax > a.delayMin {
		d = a.delayMin + time.Duration(rand.Int63n(int64(a.delayMax-a.delayMin)))
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
