package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write persists doc to path so that path always contains either the
// previous valid content or the new valid content, never a partial write.
func Write(path string, doc any) error {
	content, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return WriteRaw(path, append(content, '\n'))
}

// WriteRaw is Write for pre-marshalled content.
//
// Protocol: back up the existing file, write the new content to a temp
// file, validate it, rename it over path, then delete the backup. Any
// failure after the backup exists restores path from the backup before
// returning the original error.
func WriteRaw(path string, content []byte) error {
	// Step 1: Back up the current content if there is any
	hadPrior := false
	if _, err := os.Stat(path); err == nil {
		hadPrior = true
		if err := copyFile(path, path+".backup"); err != nil {
			return fmt.Errorf("create backup: %w", err)
		}
	}

	// Step 2: Write content to a temp file in the same directory
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".shelfrank-tmp-*.json")
	if err != nil {
		return wrapWithRestore(fmt.Errorf("create temp file: %w", err), path, hadPrior)
	}
	tmpName := tmp.Name()

	defer func() {
		// Clean up temp file on any failure
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		return wrapWithRestore(fmt.Errorf("write temp file: %w", err), path, hadPrior)
	}
	if err := tmp.Sync(); err != nil {
		return wrapWithRestore(fmt.Errorf("sync temp file: %w", err), path, hadPrior)
	}
	if err := tmp.Close(); err != nil {
		return wrapWithRestore(fmt.Errorf("close temp file: %w", err), path, hadPrior)
	}

	// Step 3: Validate written content by re-reading the temp file
	written, err := os.ReadFile(tmpName)
	if err != nil {
		return wrapWithRestore(fmt.Errorf("read temp file for validation: %w", err), path, hadPrior)
	}
	if err := validateJSON(written); err != nil {
		return wrapWithRestore(fmt.Errorf("json validation failed: %w", err), path, hadPrior)
	}

	// Step 4: Atomic rename (same volume)
	if err := os.Rename(tmpName, path); err != nil {
		return wrapWithRestore(fmt.Errorf("atomic rename: %w", err), path, hadPrior)
	}

	// Step 5: Drop the backup now that path holds the new content
	if hadPrior {
		if err := os.Remove(path + ".backup"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove backup: %w", err)
		}
	}

	return nil
}

// wrapWithRestore restores path from its backup after a failed write and
// folds any restore failure into the returned error.
func wrapWithRestore(writeErr error, path string, hadPrior bool) error {
	if !hadPrior {
		return writeErr
	}
	if rerr := restoreBackup(path); rerr != nil {
		return fmt.Errorf("%v: %w", writeErr, rerr)
	}
	return writeErr
}

func restoreBackup(path string) error {
	bak := path + ".backup"
	if _, err := os.Stat(bak); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: backup missing for %s", ErrRestoreFailed, path)
		}
		return fmt.Errorf("%w: stat backup for %s: %v", ErrRestoreFailed, path, err)
	}
	// Rename both restores the content and consumes the backup
	if err := os.Rename(bak, path); err != nil {
		return fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}
	return nil
}

func validateJSON(content []byte) error {
	var v any
	return json.Unmarshal(content, &v)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
