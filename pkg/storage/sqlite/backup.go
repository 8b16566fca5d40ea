// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
)

// Backup writes an online copy of the database at dbPath using VACUUM
// INTO, which produces a clean, defragmented snapshot while the source
// stays readable. The copy is named with a timestamp suffix, e.g.
// "codemaster.db.backup.20260315T120000". A partially written copy is
// removed before returning an error.
func Backup(dbPath string) (backupPath string, err error) {
	backupPath = dbPath + ".backup." + time.Now().Format("20060102T150405")

	srcDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return "", fmt.Errorf("backup: open source database %q: %w", dbPath, err)
	}
	defer func() { _ = srcDB.Close() }()

	if _, err := srcDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return "", fmt.Errorf("backup: set busy_timeout on %q: %w", dbPath, err)
	}

	if _, err := srcDB.Exec("VACUUM INTO ?", backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: vacuum into %q from %q: %w", backupPath, dbPath, err)
	}

	if err := srcDB.Close(); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: close source database %q: %w", dbPath, err)
	}

	if err := VerifyBackup(backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", fmt.Errorf("backup: verification failed for %q: %w", backupPath, err)
	}

	return backupPath, nil
}

// VerifyBackup runs PRAGMA integrity_check against the file at
// backupPath and reports whether it is a valid SQLite database.
func VerifyBackup(backupPath string) error {
	db, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("verify backup: open %q: %w", backupPath, err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("verify backup: integrity check on %q: %w", backupPath, err)
	}

	if result != "ok" {
		return fmt.Errorf("verify backup: integrity check failed on %q: %s", backupPath, result)
	}

	return nil
}

// PruneBackups removes old snapshots of dbPath, keeping the newest keep
// files. The timestamp suffix sorts lexicographically, so name order is
// age order. Returns how many snapshots were removed.
func PruneBackups(dbPath string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("%w: keep must be at least 1, got %d", storage.ErrInvalidInput, keep)
	}

	matches, err := filepath.Glob(dbPath + ".backup.*")
	if err != nil {
		return 0, fmt.Errorf("prune backups: list snapshots of %q: %w", dbPath, err)
	}
	if len(matches) <= keep {
		return 0, nil
	}
	sort.Strings(matches)

	removed := 0
	for _, path := range matches[:len(matches)-keep] {
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("prune backups: remove %q: %w", path, err)
		}
		removed++
	}
	return removed, nil
}
