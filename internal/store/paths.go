package store

import "path/filepath"

// Paths resolves every persisted document under one data directory.
type Paths struct {
	DataDir string
}

func NewPaths(dataDir string) Paths {
	return Paths{DataDir: dataDir}
}

func (p Paths) Books() string       { return filepath.Join(p.DataDir, "books.json") }
func (p Paths) Submissions() string { return filepath.Join(p.DataDir, "submissions.json") }
func (p Paths) Blacklist() string   { return filepath.Join(p.DataDir, "blacklist.json") }
func (p Paths) Metadata() string    { return filepath.Join(p.DataDir, "metadata.json") }
func (p Paths) Leaderboard() string { return filepath.Join(p.DataDir, "leaderboard.json") }

func (p Paths) LockDir() string    { return filepath.Join(p.DataDir, "locks") }
func (p Paths) CycleLock() string  { return filepath.Join(p.LockDir(), "cycle.lock") }
func (p Paths) DaemonLock() string { return filepath.Join(p.LockDir(), "daemon.lock") }

func (p Paths) LogDir() string         { return filepath.Join(p.DataDir, "logs") }
func (p Paths) RejectionTrail() string { return filepath.Join(p.LogDir(), "rejections.jsonl") }
func (p Paths) CleanupTrail() string   { return filepath.Join(p.LogDir(), "cleanup.jsonl") }

func (p Paths) QuarantineDir() string { return filepath.Join(p.DataDir, "quarantine") }
