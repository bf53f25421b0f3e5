package cycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"shelfrank/internal/audit"
	"shelfrank/internal/blacklist"
	"shelfrank/internal/config"
	"shelfrank/internal/fetch"
	"shelfrank/internal/logging"
	"shelfrank/internal/metrics"
	"shelfrank/internal/model"
	"shelfrank/internal/store"
)

// Runner owns one full update cycle: clean the queue, acquire submissions,
// apply the blacklist, publish the leaderboard. A filesystem lock makes the
// cycle single flight; a second trigger while one runs is rejected with
// ErrCycleRunning before any document is touched.
type Runner struct {
	cfg      config.Config
	paths    store.Paths
	logger   *logging.Logger
	notifier Notifier

	lock      *cycleLock
	cleaner   *Cleaner
	acquirer  *Acquirer
	purger    *Purger
	publisher *Publisher

	cleanupTrail   *audit.Trail
	rejectionTrail *audit.Trail

	mu      sync.Mutex
	session fetch.Session
}

// CycleResult summarizes a finished run for callers that triggered it.
type CycleResult struct {
	RunID       string
	Success     bool
	Duration    time.Duration
	Stats       model.CycleStats
	FailedStage string
}

func NewRunner(cfg config.Config, logger *logging.Logger, notifier Notifier) (*Runner, error) {
	paths := store.NewPaths(cfg.Data.Dir)

	cleanupTrail, err := audit.Open(paths.CleanupTrail(), 0)
	if err != nil {
		return nil, fmt.Errorf("opening cleanup trail: %w", err)
	}
	rejectionTrail, err := audit.Open(paths.RejectionTrail(), 0)
	if err != nil {
		cleanupTrail.Close()
		return nil, fmt.Errorf("opening rejection trail: %w", err)
	}

	session, err := fetch.NewSession(cfg.Fetch.UserAgents)
	if err != nil {
		cleanupTrail.Close()
		rejectionTrail.Close()
		return nil, fmt.Errorf("initializing fetch session: %w", err)
	}

	policy := fetch.RetryPolicy{
		MaxAttempts:   cfg.Fetch.MaxRetries + 1,
		BaseDelay:     time.Duration(cfg.Fetch.BackoffBaseMs) * time.Millisecond,
		MaxDelay:      time.Duration(cfg.Fetch.BackoffMaxMs) * time.Millisecond,
		BackoffFactor: 2.0,
		JitterFactor:  0.2,
	}
	client := fetch.NewClient(fetch.Options{
		Timeout:      time.Duration(cfg.Fetch.TimeoutSec) * time.Second,
		MaxRedirects: cfg.Fetch.MaxRedirects,
	}, policy, nil, logger.WithComponent("fetch"))
	client.OnRetry = metrics.RecordFetchRetry

	persist := func(db *model.BookDB) error {
		return store.Write(paths.Books(), db)
	}

	r := &Runner{
		cfg:      cfg,
		paths:    paths,
		logger:   logger.WithComponent("cycle"),
		notifier: notifier,
		lock: newCycleLock(paths.CycleLock(),
			time.Duration(cfg.Cycle.LockStaleSec)*time.Second,
			logger.WithComponent("lock")),
		cleaner: NewCleaner(cfg.Cleaner.MaxFailedAttempts, cleanupTrail,
			logger.WithComponent("cleaner")),
		acquirer: NewAcquirer(client, cfg.Source.RequiredFormat,
			time.Duration(cfg.Fetch.DelayMinMs)*time.Millisecond,
			time.Duration(cfg.Fetch.DelayMaxMs)*time.Millisecond,
			persist, logger.WithComponent("acquire")),
		purger:         NewPurger(rejectionTrail, logger.WithComponent("filter")),
		publisher:      NewPublisher(cfg.Publish.Version, cfg.Source.Domain, logger.WithComponent("publish")),
		cleanupTrail:   cleanupTrail,
		rejectionTrail: rejectionTrail,
		session:        session,
	}
	return r, nil
}

// Paths exposes the document layout so callers can read what the cycle
// writes.
func (r *Runner) Paths() store.Paths { return r.paths }

// Busy reports whether a cycle appears to be in flight. Callers use it for
// fast rejection; RunCycle still enforces single flight itself.
func (r *Runner) Busy() bool { return r.lock.Held() }

// Close flushes and closes the audit trails.
func (r *Runner) Close() error {
	var first error
	for _, t := range []*audit.Trail{r.cleanupTrail, r.rejectionTrail} {
		if t == nil {
			continue
		}
		if err := t.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RunCycle executes the four stages in order. The lock is released on every
// exit path, success or not. On failure the cycle status records the failed
// stage, the error, and statistics for the stages that did complete.
func (r *Runner) RunCycle(ctx context.Context) (CycleResult, error) {
	runID := uuid.New().String()
	res := CycleResult{RunID: runID}

	if err := r.lock.Acquire(runID); err != nil {
		return res, err
	}
	defer r.lock.Release()

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	r.logger.Infof("cycle %s starting", runID)

	stats := model.CycleStats{}
	meta, err := r.loadMetadata()
	if err != nil {
		return res, fmt.Errorf("loading cycle status: %w", err)
	}

	prev := meta.Cycle.State
	if prev == "" {
		prev = model.CycleIdle
	}
	if prev == model.CycleRunning {
		// A crashed run left running behind; the stale lock ceiling already
		// let us in, so take over.
		r.logger.Warnf("previous cycle %s did not finish cleanly", meta.Cycle.RunID)
	} else if terr := model.ValidateCycleTransition(prev, model.CycleRunning); terr != nil {
		return res, terr
	}

	startedAt := nowStamp()
	meta.Cycle = model.CycleStatus{
		State:     model.CycleRunning,
		RunID:     runID,
		StartedAt: &startedAt,
		Stats:     &stats,
	}
	if err := r.persistMetadata(meta); err != nil {
		return res, fmt.Errorf("recording cycle start: %w", err)
	}

	fail := func(stage Stage, stageErr error) (CycleResult, error) {
		r.recordFailure(meta, stage, stageErr, start)
		metrics.RecordCycle("failed")
		res.Stats = stats
		res.FailedStage = string(stage)
		res.Duration = time.Since(start)
		r.notify(newEvent(stage, 0, 0, fmt.Sprintf("cycle failed: %v", stageErr)))
		return res, fmt.Errorf("%s stage: %w", stage, stageErr)
	}

	// Stage 1: clean the submission queue.
	r.notify(newEvent(StageClean, 0, 0, "cleaning submission queue"))
	stageStart := time.Now()

	queue, err := r.loadQueue()
	if err != nil {
		return fail(StageClean, err)
	}
	db, err := r.loadBooks()
	if err != nil {
		return fail(StageClean, err)
	}

	kept, _, cstats := r.cleaner.Clean(queue.Submissions, db.Books)
	queue.Submissions = kept
	stats.Cleaner = &cstats
	if err := store.Write(r.paths.Submissions(), queue); err != nil {
		return fail(StageClean, fmt.Errorf("persisting submission queue: %w", err))
	}
	if err := r.persistMetadata(meta); err != nil {
		return fail(StageClean, err)
	}
	metrics.RecordStage(string(StageClean), time.Since(stageStart).Seconds())
	r.notify(newEvent(StageClean, cstats.Checked, cstats.Checked,
		fmt.Sprintf("queue cleaned: %d removed, %d remaining", cstats.Removed, cstats.Remaining)))

	// Stage 2: acquire every queued submission.
	r.notify(newEvent(StageAcquire, 0, len(queue.Submissions), "acquiring submissions"))
	stageStart = time.Now()

	progress := func(current, total int, message string) {
		r.notify(newEvent(StageAcquire, current, total, message))
	}
	session, outcomes, astats, err := r.acquirer.Acquire(ctx, queue.Submissions, db, r.session, progress)
	r.session = session
	for _, o := range outcomes {
		metrics.RecordOutcome(string(o.Outcome))
	}
	stats.Acquisition = &astats
	if err != nil {
		return fail(StageAcquire, err)
	}
	if err := r.persistMetadata(meta); err != nil {
		return fail(StageAcquire, err)
	}
	metrics.RecordStage(string(StageAcquire), time.Since(stageStart).Seconds())
	r.notify(newEvent(StageAcquire, astats.Attempted, astats.Attempted,
		fmt.Sprintf("acquisition done: %d succeeded, %d failed", astats.Succeeded, astats.Failed)))

	// Stage 3: purge blacklisted books.
	r.notify(newEvent(StageFilter, 0, len(db.Books), "applying blacklist"))
	stageStart = time.Now()

	policyDoc := blacklist.Load(r.paths.Blacklist(), r.logger)
	rejections, fstats, err := r.purger.Purge(db, policyDoc)
	stats.Filter = &fstats
	if err != nil {
		return fail(StageFilter, err)
	}
	if err := store.Write(r.paths.Books(), db); err != nil {
		return fail(StageFilter, fmt.Errorf("persisting book database: %w", err))
	}
	for _, rej := range rejections {
		metrics.RecordPurge(rej.Reason)
	}
	if err := r.persistMetadata(meta); err != nil {
		return fail(StageFilter, err)
	}
	metrics.RecordStage(string(StageFilter), time.Since(stageStart).Seconds())
	r.notify(newEvent(StageFilter, fstats.Scanned, fstats.Scanned,
		fmt.Sprintf("blacklist applied: %d purged, %d remaining", fstats.Purged, fstats.Remaining)))

	// Stage 4: publish the leaderboard.
	r.notify(newEvent(StagePublish, 0, len(db.Books), "publishing leaderboard"))
	stageStart = time.Now()

	board, pstats, err := r.publisher.Publish(db)
	stats.Publication = &pstats
	if err != nil {
		return fail(StagePublish, err)
	}
	if err := store.Write(r.paths.Leaderboard(), board); err != nil {
		return fail(StagePublish, fmt.Errorf("writing leaderboard: %w", err))
	}
	if err := r.persistMetadata(meta); err != nil {
		return fail(StagePublish, err)
	}
	metrics.RecordStage(string(StagePublish), time.Since(stageStart).Seconds())
	metrics.LeaderboardSize.Set(float64(pstats.Ranked))
	r.notify(newEvent(StagePublish, pstats.Ranked, pstats.Ranked,
		fmt.Sprintf("published %d of %d books", pstats.Ranked, pstats.Considered)))

	// Completion.
	duration := time.Since(start)
	completedAt := nowStamp()
	meta.Cycle.State = model.CycleCompleted
	meta.Cycle.CompletedAt = &completedAt
	meta.Cycle.Duration = duration.Seconds()
	if err := r.persistMetadata(meta); err != nil {
		metrics.RecordCycle("failed")
		res.Stats = stats
		res.Duration = duration
		return res, fmt.Errorf("recording cycle completion: %w", err)
	}

	metrics.RecordCycle("completed")
	metrics.BooksTracked.Set(float64(len(db.Books)))
	metrics.SubmissionsPending.Set(float64(len(queue.Submissions)))

	res.Success = true
	res.Stats = stats
	res.Duration = duration
	r.logger.Infof("cycle %s completed in %s: %d books ranked", runID,
		duration.Round(time.Millisecond), pstats.Ranked)
	return res, nil
}

// RunFilterRefresh re-applies the blacklist to the tracked books and
// republishes the leaderboard, touching neither the submission queue nor the
// network. The daemon triggers it when blacklist.json is edited on disk. It
// takes the same lock as a full cycle, so the two never interleave.
func (r *Runner) RunFilterRefresh() (CycleResult, error) {
	runID := uuid.New().String()
	res := CycleResult{RunID: runID}

	if err := r.lock.Acquire(runID); err != nil {
		return res, err
	}
	defer r.lock.Release()

	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	r.logger.Infof("filter refresh %s starting", runID)

	stats := model.CycleStats{}
	meta, err := r.loadMetadata()
	if err != nil {
		return res, fmt.Errorf("loading cycle status: %w", err)
	}

	prev := meta.Cycle.State
	if prev == "" {
		prev = model.CycleIdle
	}
	if prev == model.CycleRunning {
		r.logger.Warnf("previous cycle %s did not finish cleanly", meta.Cycle.RunID)
	} else if terr := model.ValidateCycleTransition(prev, model.CycleRunning); terr != nil {
		return res, terr
	}

	startedAt := nowStamp()
	meta.Cycle = model.CycleStatus{
		State:     model.CycleRunning,
		RunID:     runID,
		StartedAt: &startedAt,
		Stats:     &stats,
	}
	if err := r.persistMetadata(meta); err != nil {
		return res, fmt.Errorf("recording refresh start: %w", err)
	}

	fail := func(stage Stage, stageErr error) (CycleResult, error) {
		r.recordFailure(meta, stage, stageErr, start)
		res.Stats = stats
		res.FailedStage = string(stage)
		res.Duration = time.Since(start)
		r.notify(newEvent(stage, 0, 0, fmt.Sprintf("refresh failed: %v", stageErr)))
		return res, fmt.Errorf("%s stage: %w", stage, stageErr)
	}

	db, err := r.loadBooks()
	if err != nil {
		return fail(StageFilter, err)
	}

	r.notify(newEvent(StageFilter, 0, len(db.Books), "re-applying blacklist"))
	stageStart := time.Now()

	policyDoc := blacklist.Load(r.paths.Blacklist(), r.logger)
	rejections, fstats, err := r.purger.Purge(db, policyDoc)
	stats.Filter = &fstats
	if err != nil {
		return fail(StageFilter, err)
	}
	if err := store.Write(r.paths.Books(), db); err != nil {
		return fail(StageFilter, fmt.Errorf("persisting book database: %w", err))
	}
	for _, rej := range rejections {
		metrics.RecordPurge(rej.Reason)
	}
	if err := r.persistMetadata(meta); err != nil {
		return fail(StageFilter, err)
	}
	metrics.RecordStage(string(StageFilter), time.Since(stageStart).Seconds())
	r.notify(newEvent(StageFilter, fstats.Scanned, fstats.Scanned,
		fmt.Sprintf("blacklist applied: %d purged, %d remaining", fstats.Purged, fstats.Remaining)))

	r.notify(newEvent(StagePublish, 0, len(db.Books), "publishing leaderboard"))
	stageStart = time.Now()

	board, pstats, err := r.publisher.Publish(db)
	stats.Publication = &pstats
	if err != nil {
		return fail(StagePublish, err)
	}
	if err := store.Write(r.paths.Leaderboard(), board); err != nil {
		return fail(StagePublish, fmt.Errorf("writing leaderboard: %w", err))
	}
	metrics.RecordStage(string(StagePublish), time.Since(stageStart).Seconds())
	metrics.LeaderboardSize.Set(float64(pstats.Ranked))
	r.notify(newEvent(StagePublish, pstats.Ranked, pstats.Ranked,
		fmt.Sprintf("published %d of %d books", pstats.Ranked, pstats.Considered)))

	duration := time.Since(start)
	completedAt := nowStamp()
	meta.Cycle.State = model.CycleCompleted
	meta.Cycle.CompletedAt = &completedAt
	meta.Cycle.Duration = duration.Seconds()
	if err := r.persistMetadata(meta); err != nil {
		res.Stats = stats
		res.Duration = duration
		return res, fmt.Errorf("recording refresh completion: %w", err)
	}

	metrics.BooksTracked.Set(float64(len(db.Books)))

	res.Success = true
	res.Stats = stats
	res.Duration = duration
	r.logger.Infof("filter refresh %s completed in %s: %d purged, %d ranked",
		runID, duration.Round(time.Millisecond), fstats.Purged, pstats.Ranked)
	return res, nil
}

func (r *Runner) recordFailure(meta *model.Metadata, stage Stage, stageErr error, start time.Time) {
	failedAt := nowStamp()
	errMsg := stageErr.Error()
	meta.Cycle.State = model.CycleFailed
	meta.Cycle.FailedAt = &failedAt
	meta.Cycle.Duration = time.Since(start).Seconds()
	meta.Cycle.FailedStage = string(stage)
	meta.Cycle.LastError = &errMsg
	if err := r.persistMetadata(meta); err != nil {
		r.logger.Errorf("recording cycle failure: %v", err)
	}
	r.logger.Errorf("cycle %s failed in %s stage: %v", meta.Cycle.RunID, stage, stageErr)
}

func (r *Runner) persistMetadata(meta *model.Metadata) error {
	meta.UpdatedAt = nowStamp()
	if err := store.Write(r.paths.Metadata(), meta); err != nil {
		return fmt.Errorf("persisting cycle status: %w", err)
	}
	return nil
}

func (r *Runner) loadMetadata() (*model.Metadata, error) {
	meta := model.NewMetadata()
	if err := r.loadDoc(r.paths.Metadata(), "metadata", meta); err != nil {
		return nil, err
	}
	return meta, nil
}

func (r *Runner) loadQueue() (*model.SubmissionQueue, error) {
	queue := model.NewSubmissionQueue()
	if err := r.loadDoc(r.paths.Submissions(), "submissions", queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func (r *Runner) loadBooks() (*model.BookDB, error) {
	db := model.NewBookDB()
	if err := r.loadDoc(r.paths.Books(), "books", db); err != nil {
		return nil, err
	}
	if db.Books == nil {
		db.Books = make(map[string]model.Book)
	}
	return db, nil
}

// loadDoc reads one document, leaving the caller's skeleton value in place
// when the file does not exist yet. A corrupted file goes through the
// recovery chain (quarantine, backup restore, skeleton) and is read again.
func (r *Runner) loadDoc(path, fileType string, v any) error {
	err := store.Read(path, v)
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if errors.Is(err, store.ErrInvalidDocument) {
		r.logger.Warnf("%s is corrupted, attempting recovery", filepath.Base(path))
		if rerr := store.RecoverCorruptedFile(r.cfg.Data.Dir, path, fileType); rerr != nil {
			return fmt.Errorf("recovering %s: %w", filepath.Base(path), rerr)
		}
		return store.Read(path, v)
	}
	return err
}

func (r *Runner) notify(e Event) {
	if r.notifier != nil {
		r.notifier.Notify(e)
	}
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
