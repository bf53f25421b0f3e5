// Package setup bootstraps a shelfrank data directory: the layout, the
// skeleton documents, and optionally a starter config file.
package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"shelfrank/internal/blacklist"
	"shelfrank/internal/config"
	"shelfrank/internal/model"
	"shelfrank/internal/store"
)

// Run initializes a fresh data directory and refuses to touch one that is
// already initialized. When configPath is non-empty and no file exists
// there, a default config file is written too.
func Run(dataDir, configPath string) error {
	paths := store.NewPaths(dataDir)
	if store.Exists(paths.Books()) {
		return fmt.Errorf("%s is already initialized", dataDir)
	}

	if err := EnsureLayout(dataDir); err != nil {
		return err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return nil
		}
		if err := writeDefaultConfig(configPath, dataDir); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	return nil
}

// EnsureLayout creates the directory tree and any missing skeleton
// documents. It never overwrites existing files, so the daemon can call it
// on every start.
func EnsureLayout(dataDir string) error {
	paths := store.NewPaths(dataDir)

	for _, dir := range []string{dataDir, paths.LogDir(), paths.LockDir(), paths.QuarantineDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	docs := []struct {
		path string
		doc  any
	}{
		{paths.Books(), model.NewBookDB()},
		{paths.Submissions(), model.NewSubmissionQueue()},
		{paths.Metadata(), model.NewMetadata()},
		{paths.Blacklist(), starterBlacklist()},
		{paths.Leaderboard(), starterBoard()},
	}
	for _, d := range docs {
		if store.Exists(d.path) {
			continue
		}
		if err := store.Write(d.path, d.doc); err != nil {
			return fmt.Errorf("write %s: %w", filepath.Base(d.path), err)
		}
	}
	return nil
}

func starterBlacklist() blacklist.Policy {
	p := blacklist.Empty()
	p.Version = "1"
	p.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return p
}

// starterBoard is the empty leaderboard a fresh install serves until the
// first cycle publishes a real one.
func starterBoard() *model.Leaderboard {
	b := model.NewLeaderboard("1")
	b.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	return b
}

func writeDefaultConfig(path, dataDir string) error {
	cfg := config.Default()
	cfg.Data.Dir = dataDir

	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
