package cycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shelfrank/internal/logging"
)

// ErrCycleRunning is returned when a cycle is requested while another one
// holds the lock. Callers treat it as a rejection, not a failure.
var ErrCycleRunning = errors.New("a cycle is already running")

// lockInfo is written into the lock file for operators inspecting a stuck
// cycle. Staleness is judged from the file's mtime, not from this payload,
// so a corrupt lock file still expires.
type lockInfo struct {
	PID        int    `json:"pid"`
	RunID      string `json:"run_id"`
	AcquiredAt string `json:"acquired_at"`
}

// cycleLock is a filesystem mutex around the update cycle. Acquisition is
// atomic via O_EXCL; locks older than staleAfter are presumed abandoned by a
// crashed process and are broken.
type cycleLock struct {
	path       string
	staleAfter time.Duration
	logger     *logging.Logger
}

func newCycleLock(path string, staleAfter time.Duration, logger *logging.Logger) *cycleLock {
	return &cycleLock{path: path, staleAfter: staleAfter, logger: logger}
}

// Acquire takes the lock or returns ErrCycleRunning. A stale lock is cleared
// and acquisition retried exactly once; losing that race also reports
// ErrCycleRunning.
func (l *cycleLock) Acquire(runID string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating lock directory: %w", err)
	}

	err := l.tryCreate(runID)
	if err == nil {
		return nil
	}
	if !os.IsExist(err) {
		return fmt.Errorf("creating lock file: %w", err)
	}

	info, statErr := os.Stat(l.path)
	if statErr != nil {
		// Holder released between our create and stat. One retry.
		if os.IsNotExist(statErr) {
			if err := l.tryCreate(runID); err == nil {
				return nil
			}
			return ErrCycleRunning
		}
		return fmt.Errorf("inspecting lock file: %w", statErr)
	}

	age := time.Since(info.ModTime())
	if age < l.staleAfter {
		return fmt.Errorf("%w (held for %s)", ErrCycleRunning, age.Round(time.Second))
	}

	l.logger.Warnf("breaking stale cycle lock (age %s exceeds %s)", age.Round(time.Second), l.staleAfter)
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale lock: %w", err)
	}
	if err := l.tryCreate(runID); err != nil {
		if os.IsExist(err) {
			return ErrCycleRunning
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	return nil
}

func (l *cycleLock) tryCreate(runID string) error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	info := lockInfo{
		PID:        os.Getpid(),
		RunID:      runID,
		AcquiredAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, merr := json.Marshal(info)
	if merr == nil {
		_, merr = f.Write(data)
	}
	if cerr := f.Close(); merr == nil {
		merr = cerr
	}
	if merr != nil {
		// A lock file we cannot describe is still a lock; leave it held.
		l.logger.Warnf("writing lock metadata: %v", merr)
	}
	return nil
}

// Held reports whether a non-stale lock file exists. Advisory only: the
// authoritative check is the O_EXCL create in Acquire.
func (l *cycleLock) Held() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < l.staleAfter
}

// Release removes the lock file. A missing file is not an error: a stale
// lock may have been broken by a newer cycle while we ran past the ceiling.
func (l *cycleLock) Release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Errorf("releasing cycle lock: %v", err)
	}
}
