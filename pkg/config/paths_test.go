// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDataDir(t *testing.T) {
	// Save original env var
	originalEnv := os.Getenv("CODEMASTER_DATA_DIR")
	defer func() {
		if originalEnv != "" {
			_ = os.Setenv("CODEMASTER_DATA_DIR", originalEnv)
		} else {
			_ = os.Unsetenv("CODEMASTER_DATA_DIR")
		}
	}()

	t.Run("default to ~/.codemaster", func(t *testing.T) {
		_ = os.Unsetenv("CODEMASTER_DATA_DIR")

		dataDir := GetDataDir()

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		expected := filepath.Join(homeDir, ".codemaster")
		assert.Equal(t, expected, dataDir)
	})

	t.Run("use CODEMASTER_DATA_DIR when set", func(t *testing.T) {
		customDir := "/custom/codemaster/data"
		_ = os.Setenv("CODEMASTER_DATA_DIR", customDir)

		dataDir := GetDataDir()

		assert.Equal(t, customDir, dataDir)
	})

	t.Run("expand ~ in CODEMASTER_DATA_DIR", func(t *testing.T) {
		_ = os.Setenv("CODEMASTER_DATA_DIR", "~/custom/.codemaster")

		dataDir := GetDataDir()

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		expected := filepath.Join(homeDir, "custom", ".codemaster")
		assert.Equal(t, expected, dataDir)
	})

	t.Run("make relative path absolute in CODEMASTER_DATA_DIR", func(t *testing.T) {
		_ = os.Setenv("CODEMASTER_DATA_DIR", "relative/path")

		dataDir := GetDataDir()

		assert.True(t, filepath.IsAbs(dataDir))
		assert.True(t, strings.HasSuffix(dataDir, "relative/path") || strings.HasSuffix(dataDir, "relative\\path"))
	})
}

func TestGetDatabasePath(t *testing.T) {
	originalEnv := os.Getenv("CODEMASTER_DATA_DIR")
	defer func() {
		if originalEnv != "" {
			_ = os.Setenv("CODEMASTER_DATA_DIR", originalEnv)
		} else {
			_ = os.Unsetenv("CODEMASTER_DATA_DIR")
		}
	}()

	_ = os.Setenv("CODEMASTER_DATA_DIR", "/custom/codemaster")
	assert.Equal(t, filepath.Join("/custom/codemaster", "codemaster.db"), GetDatabasePath())
}

func TestGetSubDir(t *testing.T) {
	originalEnv := os.Getenv("CODEMASTER_DATA_DIR")
	defer func() {
		if originalEnv != "" {
			_ = os.Setenv("CODEMASTER_DATA_DIR", originalEnv)
		} else {
			_ = os.Unsetenv("CODEMASTER_DATA_DIR")
		}
	}()

	t.Run("return subdirectory path", func(t *testing.T) {
		_ = os.Unsetenv("CODEMASTER_DATA_DIR")

		laddersDir := GetSubDir("ladders")

		homeDir, err := os.UserHomeDir()
		require.NoError(t, err)
		expected := filepath.Join(homeDir, ".codemaster", "ladders")
		assert.Equal(t, expected, laddersDir)
	})

	t.Run("respect CODEMASTER_DATA_DIR for subdirectories", func(t *testing.T) {
		customDir := "/custom/codemaster"
		_ = os.Setenv("CODEMASTER_DATA_DIR", customDir)

		exportsDir := GetSubDir("exports")

		expected := filepath.Join(customDir, "exports")
		assert.Equal(t, expected, exportsDir)
	})
}

func TestExpandPath(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "expand tilde",
			input:    "~/test/path",
			expected: filepath.Join(homeDir, "test", "path"),
		},
		{
			name:     "absolute path unchanged",
			input:    "/absolute/path",
			expected: "/absolute/path",
		},
		{
			name:  "relative path made absolute",
			input: "relative/path",
			// expected is checked for being absolute, not exact match
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)

			if tt.name == "relative path made absolute" {
				assert.True(t, filepath.IsAbs(result))
				assert.True(t, strings.HasSuffix(result, "relative/path") || strings.HasSuffix(result, "relative\\path"))
			} else {
				assert.Equal(t, tt.expected, result)
			}
		})
	}
}
