package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Quarantine moves a corrupted document into dataDir/quarantine with a
// timestamped name so it can be inspected later.
func Quarantine(dataDir, filePath string) error {
	quarantineDir := filepath.Join(dataDir, "quarantine")
	if err := os.MkdirAll(quarantineDir, 0755); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}

	baseName := filepath.Base(filePath)
	timestamp := time.Now().Format("20060102T150405")
	quarantineName := fmt.Sprintf("%s.%s.corrupt", baseName, timestamp)
	quarantinePath := filepath.Join(quarantineDir, quarantineName)

	if err := os.Rename(filePath, quarantinePath); err != nil {
		return fmt.Errorf("move to quarantine: %w", err)
	}

	log.Printf("quarantined corrupted file: %s → %s", filePath, quarantinePath)
	return nil
}

// RestoreFromBackup replaces filePath with its ".backup" sibling. A backup
// only exists while a write is in flight, so this applies exactly to the
// crashed-mid-write case.
func RestoreFromBackup(filePath string) error {
	bakPath := filePath + ".backup"
	if _, err := os.Stat(bakPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup file: %s", bakPath)
	}

	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	if err := validateJSON(content); err != nil {
		return fmt.Errorf("backup is also corrupted: %w", err)
	}

	if err := os.WriteFile(filePath, content, 0644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}
	_ = os.Remove(bakPath)

	log.Printf("restored from backup: %s → %s", bakPath, filePath)
	return nil
}

// GenerateSkeleton writes a minimal valid document for the given file type.
func GenerateSkeleton(filePath string, fileType string) error {
	skeleton := generateSkeletonForType(fileType)
	content, err := json.MarshalIndent(skeleton, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal skeleton: %w", err)
	}

	if err := os.WriteFile(filePath, append(content, '\n'), 0644); err != nil {
		return fmt.Errorf("write skeleton: %w", err)
	}

	log.Printf("generated skeleton: %s (type: %s)", filePath, fileType)
	return nil
}

// RecoverCorruptedFile runs the recovery chain for a document that failed
// to parse: quarantine it, restore from backup if one is valid, otherwise
// regenerate a skeleton.
func RecoverCorruptedFile(dataDir, filePath, fileType string) error {
	// Step 1: Quarantine the corrupted file
	if err := Quarantine(dataDir, filePath); err != nil {
		return fmt.Errorf("quarantine failed: %w", err)
	}

	// Step 2: Try to restore from .backup
	if err := RestoreFromBackup(filePath); err != nil {
		log.Printf("backup restore failed for %s: %v, falling back to skeleton generation", filePath, err)
	} else {
		return nil
	}

	// Step 3: Generate minimal skeleton
	if err := GenerateSkeleton(filePath, fileType); err != nil {
		return fmt.Errorf("skeleton generation failed: %w", err)
	}

	return nil
}

func generateSkeletonForType(fileType string) any {
	switch fileType {
	case "books":
		return map[string]any{
			"schema_version": CurrentSchemaVersion,
			"file_type":      "books",
			"books":          map[string]any{},
		}
	case "submissions":
		return map[string]any{
			"schema_version": CurrentSchemaVersion,
			"file_type":      "submissions",
			"submissions":    []any{},
		}
	case "metadata":
		return map[string]any{
			"schema_version": CurrentSchemaVersion,
			"file_type":      "metadata",
			"cycle": map[string]any{
				"state":        "idle",
				"started_at":   nil,
				"completed_at": nil,
				"failed_at":    nil,
				"duration":     0,
				"last_error":   nil,
				"stats":        nil,
			},
			"updated_at": nil,
		}
	case "blacklist":
		return map[string]any{
			"authors":        []any{},
			"title_patterns": []any{},
			"patterns":       []any{},
			"version":        "1",
			"last_updated":   nil,
		}
	case "leaderboard":
		return map[string]any{
			"version":      "0",
			"last_updated": nil,
			"books":        map[string]any{},
		}
	default:
		return map[string]any{
			"schema_version": CurrentSchemaVersion,
			"file_type":      fileType,
		}
	}
}
