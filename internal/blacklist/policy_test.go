package blacklist

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"shelfrank/internal/logging"
	"shelfrank/internal/store"
)

func testLogger() *logging.Logger {
	return logging.New(io.Discard, logging.LevelDebug, "test")
}

func TestLoad_MissingFile(t *testing.T) {
	dir := t.TempDir()

	p := Load(filepath.Join(dir, "blacklist.json"), testLogger())
	if !p.IsEmpty() {
		t.Errorf("missing file should load as empty policy, got %+v", p)
	}
}

func TestLoad_ValidPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.json")

	doc := Policy{
		Authors:       []string{"Bad Writer"},
		TitlePatterns: []string{"banned"},
		Patterns:      []string{"title:junk", "Spam Author"},
		Version:       "3",
	}
	if err := store.Write(path, doc); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	p := Load(path, testLogger())
	if len(p.Authors) != 1 || p.Authors[0] != "Bad Writer" {
		t.Errorf("authors: got %v", p.Authors)
	}
	if len(p.Patterns) != 2 {
		t.Errorf("patterns: got %v", p.Patterns)
	}
	if p.Version != "3" {
		t.Errorf("version: got %q", p.Version)
	}
}

func TestLoad_MalformedFallsBackToEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.json")

	if err := os.WriteFile(path, []byte("{ not json"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// A broken policy must not abort filtering, only disable it
	p := Load(path, testLogger())
	if !p.IsEmpty() {
		t.Errorf("malformed file should load as empty policy, got %+v", p)
	}
}

func TestLoad_NilSlicesNormalized(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.json")

	if err := os.WriteFile(path, []byte(`{"version": "1"}`), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	p := Load(path, testLogger())
	if p.Authors == nil || p.TitlePatterns == nil || p.Patterns == nil {
		t.Error("loaded policy should never carry nil slices")
	}
}
