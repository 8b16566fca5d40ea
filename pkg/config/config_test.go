// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Point the data dir at an empty temp dir so no config file is found.
	t.Setenv("CODEMASTER_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.4, cfg.Scoring.MasteryWeight, 1e-9)
	assert.InDelta(t, 0.4, cfg.GuardRail.MaxHardFraction, 1e-9)
	assert.Equal(t, 20*time.Second, cfg.Assembly.Deadline)
	assert.Equal(t, 50, cfg.Assembly.CandidateCap)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "0 3 * * *", cfg.Sweeper.CronSpec)
	assert.Equal(t, 24*time.Hour, cfg.Sweeper.AbandonAfter)
	assert.Equal(t, 5, cfg.Backup.Keep)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEMASTER_DATA_DIR", dir)

	content := `
scoring:
  mastery_weight: 0.5
  decay_weight: 0.25
  connection_weight: 0.25
guard_rail:
  max_hard_fraction: 0.3
assembly:
  deadline: 10s
`
	err := os.WriteFile(filepath.Join(dir, "codemaster.yaml"), []byte(content), 0o644)
	require.NoError(t, err)

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Scoring.MasteryWeight, 1e-9)
	assert.InDelta(t, 0.3, cfg.GuardRail.MaxHardFraction, 1e-9)
	assert.Equal(t, 10*time.Second, cfg.Assembly.Deadline)
	// Untouched values keep defaults.
	assert.Equal(t, 50, cfg.Assembly.CandidateCap)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CODEMASTER_DATA_DIR", dir)

	content := `
guard_rail:
  max_hard_fraction: 1.5
`
	err := os.WriteFile(filepath.Join(dir, "codemaster.yaml"), []byte(content), 0o644)
	require.NoError(t, err)

	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_hard_fraction")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "default is valid",
			mutate: func(*Config) {},
		},
		{
			name:    "negative scoring weight",
			mutate:  func(c *Config) { c.Scoring.DecayWeight = -0.1 },
			wantErr: "non-negative",
		},
		{
			name: "all weights zero",
			mutate: func(c *Config) {
				c.Scoring = ScoringConfig{}
			},
			wantErr: "at least one scoring weight",
		},
		{
			name:    "zero deadline",
			mutate:  func(c *Config) { c.Assembly.Deadline = 0 },
			wantErr: "deadline",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Sweeper.Timezone = "Mars/Olympus" },
			wantErr: "timezone",
		},
		{
			name:    "empty cron spec",
			mutate:  func(c *Config) { c.Sweeper.CronSpec = "" },
			wantErr: "cron_spec",
		},
		{
			name:    "zero abandon window",
			mutate:  func(c *Config) { c.Sweeper.AbandonAfter = 0 },
			wantErr: "abandon_after",
		},
		{
			name:    "zero backup retention",
			mutate:  func(c *Config) { c.Backup.Keep = 0 },
			wantErr: "backup.keep",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNormalizedScoringWeights(t *testing.T) {
	cfg := Default()
	cfg.Scoring = ScoringConfig{MasteryWeight: 2, DecayWeight: 1, ConnectionWeight: 1}

	m, d, c := cfg.NormalizedScoringWeights()
	assert.InDelta(t, 0.5, m, 1e-9)
	assert.InDelta(t, 0.25, d, 1e-9)
	assert.InDelta(t, 0.25, c, 1e-9)
	assert.InDelta(t, 1.0, m+d+c, 1e-9)
}
