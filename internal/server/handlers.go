package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"shelfrank/internal/cycle"
	"shelfrank/internal/metrics"
	"shelfrank/internal/model"
	"shelfrank/internal/store"
)

var validate = validator.New()

type submissionRequest struct {
	URL       string `json:"url" validate:"required,url"`
	Submitter string `json:"submitter" validate:"omitempty,max=64"`
}

type submissionResponse struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Queued int    `json:"queued"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSubmit validates and enqueues one tracking request. Submissions for
// already tracked books are accepted; the next cycle refreshes them. Only a
// URL whose book ID is already waiting in the queue is rejected as a
// duplicate.
func (s *Server) handleSubmit(c echo.Context) error {
	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "malformed request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if !model.URLOnDomain(req.URL, s.cfg.Source.Domain) {
		return c.JSON(http.StatusUnprocessableEntity,
			errorResponse{Error: fmt.Sprintf("url must be on %s", s.cfg.Source.Domain)})
	}
	bookID, ok := model.ExtractBookID(req.URL)
	if !ok {
		return c.JSON(http.StatusUnprocessableEntity,
			errorResponse{Error: "url does not contain a product ID"})
	}

	key := req.Submitter
	if key == "" {
		key = c.RealIP()
	}
	if !s.limiters.allow(key) {
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
	}

	queue := model.NewSubmissionQueue()
	if err := store.Read(s.paths.Submissions(), queue); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorf("reading submission queue: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "submission store unavailable"})
	}

	if len(queue.Submissions) >= s.cfg.Server.MaxQueueSize {
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "submission queue is full"})
	}
	for _, existing := range queue.Submissions {
		if id, ok := model.ExtractBookID(existing.URL); ok && id == bookID {
			return c.JSON(http.StatusConflict,
				errorResponse{Error: fmt.Sprintf("book %s is already queued", bookID)})
		}
	}

	sub := model.Submission{
		ID:          uuid.New().String(),
		URL:         req.URL,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
		Submitter:   req.Submitter,
	}
	queue.Submissions = append(queue.Submissions, sub)

	if err := store.Write(s.paths.Submissions(), queue); err != nil {
		s.logger.Errorf("persisting submission queue: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "could not persist submission"})
	}
	metrics.SubmissionsPending.Set(float64(len(queue.Submissions)))
	s.logger.Infof("queued %s (%s)", bookID, req.URL)

	return c.JSON(http.StatusCreated, submissionResponse{
		ID:     sub.ID,
		BookID: bookID,
		Queued: len(queue.Submissions),
	})
}

// handleLeaderboard serves the last published artifact. Before the first
// publication an empty board is returned rather than a 404 so clients can
// render unconditionally.
func (s *Server) handleLeaderboard(c echo.Context) error {
	board := model.NewLeaderboard(s.cfg.Publish.Version)
	err := store.Read(s.paths.Leaderboard(), board)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorf("reading leaderboard: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "leaderboard unavailable"})
	}
	return c.JSON(http.StatusOK, board)
}

func (s *Server) handleBook(c echo.Context) error {
	id := strings.ToUpper(c.Param("id"))

	db := model.NewBookDB()
	err := store.Read(s.paths.Books(), db)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorf("reading book database: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "book database unavailable"})
	}
	book, ok := db.Books[id]
	if !ok {
		return c.JSON(http.StatusNotFound, errorResponse{Error: fmt.Sprintf("book %s is not tracked", id)})
	}
	return c.JSON(http.StatusOK, book)
}

type statusResponse struct {
	Cycle              model.CycleStatus `json:"cycle"`
	BooksTracked       int               `json:"books_tracked"`
	SubmissionsPending int               `json:"submissions_pending"`
	UpdatedAt          string            `json:"updated_at"`
}

func (s *Server) handleStatus(c echo.Context) error {
	meta := model.NewMetadata()
	if err := store.Read(s.paths.Metadata(), meta); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Errorf("reading cycle status: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "status unavailable"})
	}

	db := model.NewBookDB()
	if err := store.Read(s.paths.Books(), db); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warnf("reading book database for status: %v", err)
	}
	queue := model.NewSubmissionQueue()
	if err := store.Read(s.paths.Submissions(), queue); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Warnf("reading submission queue for status: %v", err)
	}

	return c.JSON(http.StatusOK, statusResponse{
		Cycle:              meta.Cycle,
		BooksTracked:       len(db.Books),
		SubmissionsPending: len(queue.Submissions),
		UpdatedAt:          meta.UpdatedAt,
	})
}

// handleTriggerCycle starts a cycle in the background. The Busy check gives
// an early 409; a racing trigger that slips past it is still rejected by the
// cycle lock itself.
func (s *Server) handleTriggerCycle(c echo.Context) error {
	if s.runner.Busy() {
		return c.JSON(http.StatusConflict, errorResponse{Error: "a cycle is already running"})
	}

	go func() {
		if _, err := s.runner.RunCycle(context.Background()); err != nil {
			if errors.Is(err, cycle.ErrCycleRunning) {
				s.logger.Infof("cycle trigger lost the lock race")
				return
			}
			// RunCycle already logged the failure in detail.
			s.logger.Debugf("triggered cycle finished with error: %v", err)
		}
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"status": "cycle started"})
}

// handleProgress streams cycle progress events over SSE until the client
// disconnects.
func (s *Server) handleProgress(c echo.Context) error {
	events, cancel := s.progress.Subscribe()
	defer cancel()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream; charset=utf-8")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	c.Response().Flush()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(e)
			if err != nil {
				s.logger.Warnf("marshaling progress event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", payload); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.progress.SubscriberCount(),
	})
}
