package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"shelfrank/internal/config"
	"shelfrank/internal/cycle"
	"shelfrank/internal/logging"
	"shelfrank/internal/model"
	"shelfrank/internal/store"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelDebug, "test")
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, store.Paths) {
	t.Helper()
	cfg := config.Default()
	cfg.Data.Dir = t.TempDir()
	cfg.Server.RatePerMin = 600
	cfg.Server.RateBurst = 100
	if mutate != nil {
		mutate(&cfg)
	}

	runner, err := cycle.NewRunner(cfg, testLogger(), nil)
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	t.Cleanup(func() { runner.Close() })

	s := New(cfg, testLogger(), runner, NewBroadcaster())
	return s, runner.Paths()
}

func postSubmission(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestHandleSubmit_Created(t *testing.T) {
	s, paths := newTestServer(t, nil)

	rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0136083250","submitter":"alice"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	var resp submissionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if resp.BookID != "0136083250" || resp.Queued != 1 || resp.ID == "" {
		t.Errorf("response: got %+v", resp)
	}

	var queue model.SubmissionQueue
	if err := store.Read(paths.Submissions(), &queue); err != nil {
		t.Fatalf("reading queue: %v", err)
	}
	if len(queue.Submissions) != 1 || queue.Submissions[0].Submitter != "alice" {
		t.Errorf("persisted queue: got %+v", queue.Submissions)
	}
	if queue.Submissions[0].SubmittedAt == "" {
		t.Error("submission timestamp missing")
	}
}

func TestHandleSubmit_Rejections(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "not json",
			body: `this is not json`,
			want: http.StatusBadRequest,
		},
		{
			name: "missing url",
			body: `{"submitter":"bob"}`,
			want: http.StatusBadRequest,
		},
		{
			name: "off domain",
			body: `{"url":"https://evil.example.com/dp/0136083250"}`,
			want: http.StatusUnprocessableEntity,
		},
		{
			name: "no product ID",
			body: `{"url":"https://www.amazon.com/gp/bestsellers/books"}`,
			want: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postSubmission(s, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestHandleSubmit_DuplicateQueued(t *testing.T) {
	s, _ := newTestServer(t, nil)

	if rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0136083250"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first submission: got %d", rec.Code)
	}

	// Same book through a different URL shape is still a duplicate
	rec := postSubmission(s, `{"url":"https://www.amazon.com/gp/product/0136083250"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409 (body %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleSubmit_QueueFull(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.MaxQueueSize = 1
	})

	if rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0136083250"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first submission: got %d", rec.Code)
	}
	rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0132350882"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", rec.Code)
	}
}

func TestHandleSubmit_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RatePerMin = 1
		cfg.Server.RateBurst = 1
	})

	if rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0136083250","submitter":"carol"}`); rec.Code != http.StatusCreated {
		t.Fatalf("first submission: got %d", rec.Code)
	}
	rec := postSubmission(s, `{"url":"https://www.amazon.com/dp/0132350882","submitter":"carol"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status: got %d, want 429", rec.Code)
	}
}

func TestHandleLeaderboard_EmptyBeforeFirstPublish(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var board model.Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &board); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(board.Books) != 0 || board.Version == "" {
		t.Errorf("board: got %+v", board)
	}
}

func TestHandleLeaderboard_ServesPublished(t *testing.T) {
	s, paths := newTestServer(t, nil)

	board := model.NewLeaderboard("1")
	board.LastUpdated = "2026-02-03T04:05:06Z"
	board.Books["0136083250"] = model.LeaderboardEntry{
		Rank: 1, Title: "T", Author: "A",
		CoverURL:  "https://img.example.com/c.jpg",
		RankValue: 99,
		SourceURL: "https://www.amazon.com/dp/0136083250",
	}
	if err := store.Write(paths.Leaderboard(), board); err != nil {
		t.Fatalf("seeding leaderboard: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var got model.Leaderboard
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got.Books["0136083250"].Rank != 1 || got.LastUpdated != board.LastUpdated {
		t.Errorf("board: got %+v", got)
	}
}

func TestHandleBook(t *testing.T) {
	s, paths := newTestServer(t, nil)

	db := model.NewBookDB()
	db.Books["0136083250"] = model.Book{ID: "0136083250", Title: "Tracked Book", RankValue: "5"}
	if err := store.Write(paths.Books(), db); err != nil {
		t.Fatalf("seeding books: %v", err)
	}

	// Path IDs are case insensitive
	req := httptest.NewRequest(http.MethodGet, "/api/books/0136083250", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var book model.Book
	if err := json.Unmarshal(rec.Body.Bytes(), &book); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if book.Title != "Tracked Book" {
		t.Errorf("book: got %+v", book)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/books/UNKNOWN999", nil)
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown book: got %d, want 404", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	s, paths := newTestServer(t, nil)

	meta := model.NewMetadata()
	meta.Cycle.State = model.CycleCompleted
	meta.UpdatedAt = "2026-02-03T04:05:06Z"
	if err := store.Write(paths.Metadata(), meta); err != nil {
		t.Fatalf("seeding metadata: %v", err)
	}
	db := model.NewBookDB()
	db.Books["0136083250"] = model.Book{ID: "0136083250"}
	if err := store.Write(paths.Books(), db); err != nil {
		t.Fatalf("seeding books: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if resp.Cycle.State != model.CycleCompleted || resp.BooksTracked != 1 {
		t.Errorf("response: got %+v", resp)
	}
}

func TestHandleTriggerCycle_RejectsWhileBusy(t *testing.T) {
	s, paths := newTestServer(t, nil)

	if err := os.MkdirAll(paths.LockDir(), 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(paths.CycleLock(), []byte(`{"pid":1}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/cycle", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", rec.Code)
	}
}

func TestHandleTriggerCycle_RunsInBackground(t *testing.T) {
	s, paths := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/cycle", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, body %s", rec.Code, rec.Body.String())
	}

	// An empty data directory cycles quickly; wait for completion
	deadline := time.After(5 * time.Second)
	for {
		var meta model.Metadata
		if err := store.Read(paths.Metadata(), &meta); err == nil &&
			meta.Cycle.State == model.CycleCompleted {
			return
		}
		select {
		case <-deadline:
			t.Fatal("triggered cycle never completed")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body: got %s", rec.Body.String())
	}
}

func TestHandleProgress_StreamsEvents(t *testing.T) {
	s, _ := newTestServer(t, nil)

	srv := httptest.NewServer(s.echo)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/progress")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("content type: got %q", ct)
	}

	// Wait for the handler to register its subscription
	deadline := time.After(5 * time.Second)
	for s.progress.SubscriberCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("subscriber never registered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.progress.Notify(cycle.Event{Stage: cycle.StageAcquire, Current: 2, Total: 5, Message: "fetching"})

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e cycle.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &e); err != nil {
			t.Fatalf("event payload: %v", err)
		}
		if e.Stage != cycle.StageAcquire || e.Current != 2 {
			t.Errorf("event: got %+v", e)
		}
		return
	}
}
