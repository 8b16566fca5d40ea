// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the CodeMaster data directory.
//
// Priority:
// 1. CODEMASTER_DATA_DIR environment variable (if set and non-empty)
// 2. ~/.codemaster (default)
//
// The returned path is always absolute. Tilde (~) in CODEMASTER_DATA_DIR is
// expanded to the user's home directory, and relative paths are converted to
// absolute paths.
//
// This function is called during bootstrap (before the config file is loaded)
// to locate the config file itself. It reads directly from os.Getenv(), not
// from viper, to avoid a circular dependency during config initialization.
func GetDataDir() string {
	if dataDir := os.Getenv("CODEMASTER_DATA_DIR"); dataDir != "" {
		return expandPath(dataDir)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home dir cannot be determined
		return ".codemaster"
	}
	return filepath.Join(homeDir, ".codemaster")
}

// GetDatabasePath returns the default SQLite database path,
// ~/.codemaster/codemaster.db unless CODEMASTER_DATA_DIR overrides the base.
func GetDatabasePath() string {
	return filepath.Join(GetDataDir(), "codemaster.db")
}

// GetSubDir returns a subdirectory within the CodeMaster data directory.
// Example: GetSubDir("ladders") returns ~/.codemaster/ladders
func GetSubDir(subdir string) string {
	return filepath.Join(GetDataDir(), subdir)
}

// expandPath expands ~ and resolves to absolute path
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path // Return as-is if we can't get home dir
		}
		return filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return path // Return as-is if we can't make it absolute
	}
	return absPath
}
