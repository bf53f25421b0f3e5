package cycle

import (
	"fmt"
	"html"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"shelfrank/internal/logging"
	"shelfrank/internal/model"
)

// Publisher turns the book database into the public leaderboard artifact.
// The write is all or nothing: a candidate artifact that fails validation
// is discarded and the previously published one stays untouched.
type Publisher struct {
	version string
	domain  string
	logger  *logging.Logger
}

func NewPublisher(version, domain string, logger *logging.Logger) *Publisher {
	return &Publisher{version: version, domain: domain, logger: logger}
}

type candidate struct {
	id   string
	book model.Book
	rank int
}

// Publish builds, validates and returns the leaderboard. Books whose rank
// value cannot be coerced to an integer, or that are missing title, author
// or cover, are logged and skipped; they stay in the database for the next
// cycle to repair. An empty database publishes an empty, valid artifact.
func (p *Publisher) Publish(db *model.BookDB) (*model.Leaderboard, model.PublishStats, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	stats := model.PublishStats{Considered: len(db.Books), PublishedAt: now}

	candidates := make([]candidate, 0, len(db.Books))
	for id, book := range db.Books {
		rank, err := coerceRank(book.RankValue)
		if err != nil {
			p.logger.Warnf("skipping %s: unusable rank value %v (%v)", id, book.RankValue, err)
			continue
		}
		if book.Title == "" || book.Author == "" || book.CoverURL == "" {
			p.logger.Warnf("skipping %s: incomplete metadata", id)
			continue
		}
		candidates = append(candidates, candidate{id: id, book: book, rank: rank})
	}

	// Ascending by scraped rank; ties break on ID so output is stable.
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return candidates[i].id < candidates[j].id
	})

	board := model.NewLeaderboard(p.version)
	board.LastUpdated = now
	for pos, c := range candidates {
		board.Books[c.id] = model.LeaderboardEntry{
			Rank:      pos + 1,
			Title:     decodeEntities(c.book.Title),
			Author:    decodeEntities(c.book.Author),
			CoverURL:  c.book.CoverURL,
			RankValue: c.rank,
			SourceURL: c.book.SourceURL,
		}
	}

	if err := validateLeaderboard(board, p.domain); err != nil {
		return nil, stats, fmt.Errorf("leaderboard failed validation: %w", err)
	}

	stats.Ranked = len(board.Books)
	return board, stats, nil
}

// coerceRank accepts the shapes a rank value takes after scraping and JSON
// round-trips: native ints, JSON float64, and strings with thousands
// separators such as "1,234". A sales rank is 1-based, so zero and negative
// values are rejected.
func coerceRank(v any) (int, error) {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("not an integer: %v", t)
		}
		n = int(t)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if s == "" {
			return 0, fmt.Errorf("empty rank string")
		}
		parsed, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", t)
		}
		n = parsed
	case nil:
		return 0, fmt.Errorf("no rank value")
	default:
		return 0, fmt.Errorf("unsupported rank type %T", v)
	}
	if n < 1 {
		return 0, fmt.Errorf("rank %d is not positive", n)
	}
	return n, nil
}

// decodeEntities resolves HTML entities left over from scraping. Non-breaking
// spaces become plain spaces so titles compare and render predictably.
func decodeEntities(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, " ", " ")
	return strings.TrimSpace(s)
}

// validateLeaderboard enforces the artifact contract: version and timestamp
// present, every entry complete with an absolute cover URL and a source URL
// on the expected domain, and ranks forming exactly 1..N with no gaps or
// duplicates. An empty board is valid.
func validateLeaderboard(board *model.Leaderboard, domain string) error {
	if board.Version == "" {
		return fmt.Errorf("missing version")
	}
	if _, err := time.Parse(time.RFC3339, board.LastUpdated); err != nil {
		return fmt.Errorf("bad last_updated %q: %v", board.LastUpdated, err)
	}

	n := len(board.Books)
	seen := make(map[int]string, n)
	for id, entry := range board.Books {
		if entry.Title == "" || entry.Author == "" {
			return fmt.Errorf("entry %s: missing title or author", id)
		}
		if err := validateAbsoluteURL(entry.CoverURL); err != nil {
			return fmt.Errorf("entry %s: cover_url: %v", id, err)
		}
		if !model.URLOnDomain(entry.SourceURL, domain) {
			return fmt.Errorf("entry %s: source_url %q not on %s", id, entry.SourceURL, domain)
		}
		if entry.Rank < 1 || entry.Rank > n {
			return fmt.Errorf("entry %s: rank %d outside 1..%d", id, entry.Rank, n)
		}
		if prev, dup := seen[entry.Rank]; dup {
			return fmt.Errorf("rank %d assigned to both %s and %s", entry.Rank, prev, id)
		}
		seen[entry.Rank] = id
	}
	// n entries, all in 1..n, no duplicates: the ranks are exactly 1..n.
	return nil
}

func validateAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("unparseable: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q is not http(s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
