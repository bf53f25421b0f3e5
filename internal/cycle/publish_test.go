package cycle

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"testing"

	"shelfrank/internal/model"
)

func completeBook(id string, rank any) model.Book {
	return model.Book{
		ID:        id,
		Title:     "Title " + id,
		Author:    "Author " + id,
		CoverURL:  "https://images.example.com/" + id + ".jpg",
		RankValue: rank,
		SourceURL: "https://www.amazon.com/dp/" + id,
		Status:    model.BookStatusActive,
	}
}

func TestPublish_DenseRanks(t *testing.T) {
	db := model.NewBookDB()
	db.Books["AAAAAAAAA1"] = completeBook("AAAAAAAAA1", "1,234")
	db.Books["BBBBBBBBB2"] = completeBook("BBBBBBBBB2", "5")
	db.Books["CCCCCCCCC3"] = completeBook("CCCCCCCCC3", 2)

	p := NewPublisher("1", "amazon.com", testLogger())
	board, stats, err := p.Publish(db)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Sorted by scraped rank, positions renumbered 1..N
	if got := board.Books["CCCCCCCCC3"].Rank; got != 1 {
		t.Errorf("rank of CCCCCCCCC3: got %d, want 1", got)
	}
	if got := board.Books["BBBBBBBBB2"].Rank; got != 2 {
		t.Errorf("rank of BBBBBBBBB2: got %d, want 2", got)
	}
	if got := board.Books["AAAAAAAAA1"].Rank; got != 3 {
		t.Errorf("rank of AAAAAAAAA1: got %d, want 3", got)
	}

	// Thousands separator coerced away in the published value
	if got := board.Books["AAAAAAAAA1"].RankValue; got != 1234 {
		t.Errorf("rank value: got %d, want 1234", got)
	}

	if stats.Considered != 3 || stats.Ranked != 3 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestPublish_SkipsUnusableBooks(t *testing.T) {
	db := model.NewBookDB()
	db.Books["GOODBOOK01"] = completeBook("GOODBOOK01", "10")

	noRank := completeBook("NORANKHERE", "unranked")
	db.Books["NORANKHERE"] = noRank

	noCover := completeBook("NOCOVER001", "3")
	noCover.CoverURL = ""
	db.Books["NOCOVER001"] = noCover

	p := NewPublisher("1", "amazon.com", testLogger())
	board, stats, err := p.Publish(db)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(board.Books) != 1 {
		t.Fatalf("board size: got %d, want 1", len(board.Books))
	}
	if board.Books["GOODBOOK01"].Rank != 1 {
		t.Errorf("sole survivor should hold rank 1, got %d", board.Books["GOODBOOK01"].Rank)
	}
	// Skipped books stay in the database for the next cycle
	if len(db.Books) != 3 {
		t.Errorf("database should be untouched, got %d books", len(db.Books))
	}
	if stats.Considered != 3 || stats.Ranked != 1 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestPublish_DenseRanksAcrossLargeInput(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	db := model.NewBookDB()

	// 100 books with distinct positive rank values in shuffled order.
	for i, v := range rng.Perm(100) {
		id := fmt.Sprintf("BULKBOOK%02d", i)
		db.Books[id] = completeBook(id, strconv.Itoa((v+1)*3))
	}
	// Junk ranks that must not reach the board.
	db.Books["NEGATIVE01"] = completeBook("NEGATIVE01", -4)
	db.Books["ZERORANK01"] = completeBook("ZERORANK01", "0")
	db.Books["WORDSRANK1"] = completeBook("WORDSRANK1", "top ten")

	p := NewPublisher("1", "amazon.com", testLogger())
	board, stats, err := p.Publish(db)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if len(board.Books) != 100 {
		t.Fatalf("board size: got %d, want 100", len(board.Books))
	}
	if stats.Considered != 103 || stats.Ranked != 100 {
		t.Errorf("stats: got %+v", stats)
	}

	byRank := make(map[int]model.LeaderboardEntry, len(board.Books))
	for id, entry := range board.Books {
		if prev, dup := byRank[entry.Rank]; dup {
			t.Fatalf("rank %d assigned twice: %v and %s", entry.Rank, prev, id)
		}
		byRank[entry.Rank] = entry
	}
	for r := 1; r <= 100; r++ {
		entry, ok := byRank[r]
		if !ok {
			t.Fatalf("rank %d missing: ranks are not dense", r)
		}
		if r > 1 && byRank[r-1].RankValue > entry.RankValue {
			t.Errorf("rank %d (value %d) sorts above rank %d (value %d)",
				r-1, byRank[r-1].RankValue, r, entry.RankValue)
		}
	}
}

func TestPublish_EmptyBoardIsValid(t *testing.T) {
	p := NewPublisher("1", "amazon.com", testLogger())

	board, stats, err := p.Publish(model.NewBookDB())
	if err != nil {
		t.Fatalf("empty database should publish cleanly: %v", err)
	}
	if len(board.Books) != 0 {
		t.Errorf("board: got %d entries", len(board.Books))
	}
	if board.Version != "1" || board.LastUpdated == "" {
		t.Errorf("board header: %+v", board)
	}
	if stats.Ranked != 0 {
		t.Errorf("stats: got %+v", stats)
	}
}

func TestPublish_DecodesEntities(t *testing.T) {
	db := model.NewBookDB()
	b := completeBook("ENTITYBOOK", "1")
	b.Title = "Dungeons &amp; Dragons"
	b.Author = "A B" // scraped non-breaking space
	db.Books["ENTITYBOOK"] = b

	p := NewPublisher("1", "amazon.com", testLogger())
	board, _, err := p.Publish(db)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	entry := board.Books["ENTITYBOOK"]
	if entry.Title != "Dungeons & Dragons" {
		t.Errorf("title: got %q", entry.Title)
	}
	if entry.Author != "A B" {
		t.Errorf("author: got %q", entry.Author)
	}
}

func TestPublish_OffDomainSourceFailsValidation(t *testing.T) {
	db := model.NewBookDB()
	bad := completeBook("OFFDOMAIN1", "1")
	bad.SourceURL = "https://mirror.example.org/dp/OFFDOMAIN1"
	db.Books["OFFDOMAIN1"] = bad

	p := NewPublisher("1", "amazon.com", testLogger())
	board, _, err := p.Publish(db)
	if err == nil {
		t.Fatal("expected validation failure for off-domain source")
	}
	if board != nil {
		t.Error("a failed validation must not return a board")
	}
	if !strings.Contains(err.Error(), "source_url") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestPublish_RelativeCoverFailsValidation(t *testing.T) {
	db := model.NewBookDB()
	bad := completeBook("RELCOVER01", "1")
	bad.CoverURL = "/images/cover.jpg"
	db.Books["RELCOVER01"] = bad

	p := NewPublisher("1", "amazon.com", testLogger())
	if _, _, err := p.Publish(db); err == nil {
		t.Fatal("expected validation failure for relative cover URL")
	}
}

func TestCoerceRank(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    int
		wantErr bool
	}{
		{"int", 7, 7, false},
		{"int64", int64(250), 250, false},
		{"json float", float64(42), 42, false},
		{"fractional float", 3.5, 0, true},
		{"plain string", "514", 514, false},
		{"thousands separator", "1,234", 1234, false},
		{"multiple separators", "12,345,678", 12345678, false},
		{"padded string", "  99 ", 99, false},
		{"empty string", "", 0, true},
		{"words", "unranked", 0, true},
		{"zero", 0, 0, true},
		{"negative int", -3, 0, true},
		{"negative string", "-12", 0, true},
		{"nil", nil, 0, true},
		{"bool", true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coerceRank(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("coerceRank(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("coerceRank(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateLeaderboard_RejectsBrokenRanks(t *testing.T) {
	board := model.NewLeaderboard("1")
	board.LastUpdated = "2026-01-02T03:04:05Z"
	entry := func(rank int) model.LeaderboardEntry {
		return model.LeaderboardEntry{
			Rank:      rank,
			Title:     "T",
			Author:    "A",
			CoverURL:  "https://img.example.com/c.jpg",
			SourceURL: "https://www.amazon.com/dp/0136083250",
		}
	}

	// Duplicate rank
	board.Books["AAAAAAAAA1"] = entry(1)
	board.Books["BBBBBBBBB2"] = entry(1)
	if err := validateLeaderboard(board, "amazon.com"); err == nil {
		t.Error("expected duplicate rank to fail")
	}

	// Gap: ranks 1 and 3 over two entries
	board.Books["BBBBBBBBB2"] = entry(3)
	if err := validateLeaderboard(board, "amazon.com"); err == nil {
		t.Error("expected out-of-range rank to fail")
	}

	// Dense 1..2 passes
	board.Books["BBBBBBBBB2"] = entry(2)
	if err := validateLeaderboard(board, "amazon.com"); err != nil {
		t.Errorf("dense ranks should pass: %v", err)
	}
}
