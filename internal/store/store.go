// Package store provides crash-safe JSON document I/O with
// backup-then-write-then-restore semantics, plus quarantine utilities
// for corrupted documents.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrNotFound reports a document that does not exist. Callers fall back
	// to defaults only on this error, never on ErrInvalidDocument.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidDocument reports a document that exists but does not parse.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrRestoreFailed reports that a write failed and the prior content
	// could not be restored from backup. Both current and prior state may
	// be lost; callers must surface this loudly.
	ErrRestoreFailed = errors.New("restore from backup failed")
)

// Read unmarshals the document at path into v. A missing file yields
// ErrNotFound; unparseable content yields ErrInvalidDocument.
func Read(path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(content, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	return nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
