// Package audit provides append-only JSONL trails for rejection and
// cleanup records, with size-based rotation into an archive directory.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// Default maximum trail file size (50MB)
	DefaultMaxSize = 50 * 1024 * 1024
	// Trail file extension
	FileExtension = ".jsonl"
	// Archive directory name
	ArchiveDir = "archive"
)

// Trail is an append-only JSONL writer. Every append is synced to disk so
// a crash never loses an acknowledged record.
type Trail struct {
	mu          sync.Mutex
	file        *os.File
	currentSize int64
	maxSize     int64
	path        string
	rotations   int
}

// Open opens or creates the trail at path. maxSize <= 0 selects the default.
func Open(path string, maxSize int64) (*Trail, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	t := &Trail{
		path:    path,
		maxSize: maxSize,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create trail directory: %w", err)
	}
	if err := t.openFile(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Trail) openFile() error {
	file, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open trail file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat trail file: %w", err)
	}

	t.file = file
	t.currentSize = stat.Size()
	return nil
}

// Append writes one record as a JSONL line.
func (t *Trail) Append(record any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal trail record: %w", err)
	}
	data = append(data, '\n')

	if t.currentSize+int64(len(data)) > t.maxSize {
		if err := t.rotate(); err != nil {
			return fmt.Errorf("rotate trail: %w", err)
		}
	}

	n, err := t.file.Write(data)
	if err != nil {
		return fmt.Errorf("write trail record: %w", err)
	}
	if err := t.file.Sync(); err != nil {
		return fmt.Errorf("sync trail file: %w", err)
	}

	t.currentSize += int64(n)
	return nil
}

// rotate moves the current file into the archive directory and reopens a
// fresh one.
func (t *Trail) rotate() error {
	if err := t.file.Close(); err != nil {
		return fmt.Errorf("close trail file: %w", err)
	}

	archiveDir := filepath.Join(filepath.Dir(t.path), ArchiveDir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	t.rotations++
	baseName := filepath.Base(t.path)
	archiveName := fmt.Sprintf("%s.%s.%d%s",
		baseName[:len(baseName)-len(FileExtension)],
		timestamp,
		t.rotations,
		FileExtension)

	if err := os.Rename(t.path, filepath.Join(archiveDir, archiveName)); err != nil {
		return fmt.Errorf("archive trail file: %w", err)
	}

	return t.openFile()
}

func (t *Trail) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentSize
}

func (t *Trail) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		if err := t.file.Sync(); err != nil {
			return err
		}
		return t.file.Close()
	}
	return nil
}

// Records reads a trail file into raw JSON messages, stopping at the
// first malformed line.
func Records(path string) ([]json.RawMessage, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open trail file: %w", err)
	}
	defer file.Close()

	var records []json.RawMessage
	decoder := json.NewDecoder(file)
	for decoder.More() {
		var raw json.RawMessage
		if err := decoder.Decode(&raw); err != nil {
			break
		}
		records = append(records, raw)
	}
	return records, nil
}
