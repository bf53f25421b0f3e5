// Package daemon runs shelfrank as a long-lived process: the HTTP API, a
// cycle scheduler, and a watcher that reacts to submission and blacklist
// edits on disk.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"shelfrank/internal/blacklist"
	"shelfrank/internal/config"
	"shelfrank/internal/cycle"
	"shelfrank/internal/lock"
	"shelfrank/internal/logging"
	"shelfrank/internal/model"
	"shelfrank/internal/server"
	"shelfrank/internal/setup"
	"shelfrank/internal/store"
)

// Daemon wires the runner, the HTTP server and the filesystem watcher
// together and owns their lifecycle.
type Daemon struct {
	cfg    config.Config
	logger *logging.Logger

	runner    *cycle.Runner
	srv       *server.Server
	broadcast *server.Broadcaster
	fileLock  *lock.FileLock
	watcher   *fsnotify.Watcher
	ticker    *time.Ticker
	kick      chan string
	refresh   chan string

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown sync.Once

	lastCycleEnd atomic.Int64
}

func New(cfg config.Config, logger *logging.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	broadcast := server.NewBroadcaster()
	runner, err := cycle.NewRunner(cfg, logger, broadcast)
	if err != nil {
		cancel()
		return nil, err
	}

	d := &Daemon{
		cfg:       cfg,
		logger:    logger.WithComponent("daemon"),
		runner:    runner,
		srv:       server.New(cfg, logger, runner, broadcast),
		broadcast: broadcast,
		fileLock:  lock.NewFileLock(runner.Paths().DaemonLock()),
		ticker:    time.NewTicker(time.Duration(cfg.Cycle.IntervalSec) * time.Second),
		kick:      make(chan string, 1),
		refresh:   make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	return d, nil
}

// Run starts the daemon and blocks until shutdown completes.
func (d *Daemon) Run() error {
	// Step 1: Ensure the data directory and skeleton documents exist.
	if err := setup.EnsureLayout(d.cfg.Data.Dir); err != nil {
		return fmt.Errorf("preparing data directory: %w", err)
	}

	// Step 2: One daemon per data directory.
	if err := d.fileLock.TryLock(); err != nil {
		return fmt.Errorf("daemon lock: %w", err)
	}
	d.logger.Infof("daemon starting pid=%d data=%s", os.Getpid(), d.cfg.Data.Dir)

	// Step 3: Check and repair the documents before serving anything.
	d.integrityCheck()

	// Step 4: Watch the data directory for submission and blacklist edits.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.fileLock.Unlock()
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	d.watcher = watcher
	if err := watcher.Add(d.cfg.Data.Dir); err != nil {
		watcher.Close()
		d.fileLock.Unlock()
		return fmt.Errorf("watch %s: %w", d.cfg.Data.Dir, err)
	}

	// Step 5: Start background loops.
	d.wg.Add(2)
	go d.watchLoop()
	go d.cycleLoop()

	// Step 6: Start the HTTP server.
	g, gctx := errgroup.WithContext(d.ctx)
	g.Go(func() error {
		return d.srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(d.cfg.Daemon.ShutdownTimeoutSec) * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return d.srv.Shutdown(shutdownCtx)
	})

	// Step 7: Kick off an initial cycle so a restart picks up pending work.
	select {
	case d.kick <- "startup":
	default:
	}
	d.logger.Infof("daemon ready")

	// Step 8: Block until a signal arrives or the server dies.
	d.waitSignals(gctx)

	if err := g.Wait(); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// integrityCheck runs every document through the recovery chain so a
// corrupted file is quarantined and rebuilt before the first cycle or
// request needs it.
func (d *Daemon) integrityCheck() {
	paths := d.runner.Paths()
	checks := []struct {
		path     string
		fileType string
		doc      any
	}{
		{paths.Books(), "books", model.NewBookDB()},
		{paths.Submissions(), "submissions", model.NewSubmissionQueue()},
		{paths.Metadata(), "metadata", model.NewMetadata()},
		{paths.Blacklist(), "blacklist", &blacklist.Policy{}},
		{paths.Leaderboard(), "leaderboard", &model.Leaderboard{}},
	}
	for _, chk := range checks {
		err := store.Read(chk.path, chk.doc)
		switch {
		case err == nil, errors.Is(err, store.ErrNotFound):
		case errors.Is(err, store.ErrInvalidDocument):
			d.logger.Warnf("%s failed integrity check, recovering", filepath.Base(chk.path))
			if rerr := store.RecoverCorruptedFile(d.cfg.Data.Dir, chk.path, chk.fileType); rerr != nil {
				d.logger.Errorf("recovery failed for %s: %v", filepath.Base(chk.path), rerr)
			}
		default:
			d.logger.Errorf("reading %s: %v", filepath.Base(chk.path), err)
		}
	}
}

// watchLoop debounces filesystem events into triggers: a submissions.json
// edit starts a full cycle, a blacklist.json edit a filter-only refresh.
// Events caused by a running cycle's own writes are ignored, as is anything
// inside the settle window right after a run ends.
func (d *Daemon) watchLoop() {
	defer d.wg.Done()

	debounceDur := time.Duration(d.cfg.Daemon.WatchDebounceSec * float64(time.Second))
	if debounceDur <= 0 {
		debounceDur = 2 * time.Second
	}
	debounce := map[string]*time.Timer{}
	defer func() {
		for _, t := range debounce {
			t.Stop()
		}
	}()

	for {
		select {
		case <-d.ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			base := filepath.Base(event.Name)
			if base != "submissions.json" && base != "blacklist.json" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if d.runner.Busy() {
				continue
			}
			if time.Since(time.Unix(0, d.lastCycleEnd.Load())) < debounceDur {
				continue
			}
			d.logger.Debugf("change detected in %s", base)
			target := d.kick
			if base == "blacklist.json" {
				target = d.refresh
			}
			if t := debounce[base]; t != nil {
				t.Stop()
			}
			debounce[base] = time.AfterFunc(debounceDur, func() {
				select {
				case target <- "watch":
				default:
				}
			})
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Errorf("watcher error: %v", err)
		}
	}
}

// cycleLoop serializes triggers from the interval ticker and the watcher.
// Triggers arriving while a run is in flight are rejected by the lock.
func (d *Daemon) cycleLoop() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-d.ticker.C:
			d.triggerCycle("interval")
		case origin := <-d.kick:
			d.triggerCycle(origin)
		case origin := <-d.refresh:
			d.triggerRefresh(origin)
		}
	}
}

func (d *Daemon) triggerCycle(origin string) {
	res, err := d.runner.RunCycle(d.ctx)
	d.lastCycleEnd.Store(time.Now().UnixNano())
	if err != nil {
		if errors.Is(err, cycle.ErrCycleRunning) {
			d.logger.Debugf("cycle trigger (%s) skipped: %v", origin, err)
			return
		}
		d.logger.Warnf("cycle (%s) did not complete: %v", origin, err)
		return
	}
	d.logger.Infof("cycle (%s) finished in %s", origin, res.Duration.Round(time.Millisecond))
}

func (d *Daemon) triggerRefresh(origin string) {
	res, err := d.runner.RunFilterRefresh()
	d.lastCycleEnd.Store(time.Now().UnixNano())
	if err != nil {
		if errors.Is(err, cycle.ErrCycleRunning) {
			d.logger.Debugf("refresh trigger (%s) skipped: %v", origin, err)
			return
		}
		d.logger.Warnf("filter refresh (%s) did not complete: %v", origin, err)
		return
	}
	d.logger.Infof("filter refresh (%s) finished in %s", origin, res.Duration.Round(time.Millisecond))
}

// waitSignals blocks until a shutdown signal arrives or the server group
// fails. A second signal forces exit.
func (d *Daemon) waitSignals(gctx context.Context) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		d.logger.Infof("received signal=%s, initiating graceful shutdown", sig)
		go func() {
			<-sigCh
			d.logger.Warnf("received second signal, forcing exit")
			os.Exit(1)
		}()
	case <-gctx.Done():
		d.logger.Errorf("http server stopped, shutting down")
	}

	d.Shutdown()
}

// Shutdown performs graceful shutdown (idempotent via sync.Once).
func (d *Daemon) Shutdown() {
	d.shutdown.Do(func() {
		d.logger.Infof("shutdown started")

		// 1. Cancel context: stops the loops and the HTTP server group.
		d.cancel()

		// 2. Stop producers.
		d.ticker.Stop()
		if d.watcher != nil {
			d.watcher.Close()
		}

		// 3. Drain in-flight work with a timeout. A cycle mid-fetch observes
		// the cancelled context and aborts between submissions.
		timeout := time.Duration(d.cfg.Daemon.ShutdownTimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			d.logger.Infof("all goroutines drained")
		case <-time.After(timeout):
			d.logger.Warnf("shutdown timeout after %s, some operations may be incomplete", timeout)
		}

		// 4. Release runner resources and the instance lock.
		if err := d.runner.Close(); err != nil {
			d.logger.Warnf("closing runner: %v", err)
		}
		if err := d.fileLock.Unlock(); err != nil {
			d.logger.Warnf("releasing daemon lock: %v", err)
		}
		d.logger.Infof("daemon stopped")
	})
}
