// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config loads engine tunables from config files and environment
// variables, and locates the CodeMaster data directory.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every engine tunable. Values come from (highest priority
// first) environment variables with the CODEMASTER_ prefix, a config file,
// and built-in defaults.
type Config struct {
	// DataDir is where the database and catalogs live.
	DataDir string `mapstructure:"data_dir"`

	// DatabasePath is the SQLite database file.
	DatabasePath string `mapstructure:"database_path"`

	// TagCatalogPath is the YAML tag-relationship catalog. Empty means
	// the catalog is loaded from the database instead.
	TagCatalogPath string `mapstructure:"tag_catalog_path"`

	Scoring   ScoringConfig   `mapstructure:"scoring"`
	GuardRail GuardRailConfig `mapstructure:"guard_rail"`
	Assembly  AssemblyConfig  `mapstructure:"assembly"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Backup    BackupConfig    `mapstructure:"backup"`
}

// ScoringConfig weights the optimal-path score used to rank new-problem
// candidates. The three weights should sum to roughly 1.0 but the engine
// normalizes, so any positive values work.
type ScoringConfig struct {
	MasteryWeight    float64 `mapstructure:"mastery_weight"`
	DecayWeight      float64 `mapstructure:"decay_weight"`
	ConnectionWeight float64 `mapstructure:"connection_weight"`
}

// GuardRailConfig bounds session difficulty.
type GuardRailConfig struct {
	// MaxHardFraction is the largest share of Hard problems a session
	// may carry when the user's recent accuracy is below
	// AccuracyThreshold.
	MaxHardFraction   float64 `mapstructure:"max_hard_fraction"`
	AccuracyThreshold float64 `mapstructure:"accuracy_threshold"`
}

// AssemblyConfig bounds session assembly.
type AssemblyConfig struct {
	// Deadline caps how long assembly may run before the engine falls
	// back to whatever has been gathered so far.
	Deadline time.Duration `mapstructure:"deadline"`

	// CandidateCap limits how many new-problem candidates are scored
	// per assembly.
	CandidateCap int `mapstructure:"candidate_cap"`
}

// CacheConfig bounds the focus-analytics snapshot cache.
type CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries"`
	TTL        time.Duration `mapstructure:"ttl"`
}

// SweeperConfig drives the background session-expiry sweep.
type SweeperConfig struct {
	// CronSpec is a robfig/cron expression. The default runs daily at
	// 03:00 in Timezone.
	CronSpec string `mapstructure:"cron_spec"`
	Timezone string `mapstructure:"timezone"`

	// AbandonAfter is how long an in-progress session may sit idle
	// before the sweep expires it.
	AbandonAfter time.Duration `mapstructure:"abandon_after"`
}

// BackupConfig bounds database snapshots.
type BackupConfig struct {
	// Keep is how many timestamped snapshots survive a backup run;
	// older ones are pruned.
	Keep int `mapstructure:"keep"`
}

// Load reads configuration from codemaster.yaml in the data directory (or
// the working directory) plus CODEMASTER_ environment variables. A missing
// config file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("codemaster")
	v.SetConfigType("yaml")
	v.AddConfigPath(GetDataDir())
	v.AddConfigPath(".")

	v.SetEnvPrefix("CODEMASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; run on defaults.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", GetDataDir())
	v.SetDefault("database_path", GetDatabasePath())
	v.SetDefault("tag_catalog_path", "")

	v.SetDefault("scoring.mastery_weight", 0.4)
	v.SetDefault("scoring.decay_weight", 0.3)
	v.SetDefault("scoring.connection_weight", 0.3)

	v.SetDefault("guard_rail.max_hard_fraction", 0.4)
	v.SetDefault("guard_rail.accuracy_threshold", 0.4)

	v.SetDefault("assembly.deadline", 20*time.Second)
	v.SetDefault("assembly.candidate_cap", 50)

	v.SetDefault("cache.max_entries", 50)
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("sweeper.cron_spec", "0 3 * * *")
	v.SetDefault("sweeper.timezone", "Local")
	v.SetDefault("sweeper.abandon_after", 24*time.Hour)

	v.SetDefault("backup.keep", 5)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	s := c.Scoring
	if s.MasteryWeight < 0 || s.DecayWeight < 0 || s.ConnectionWeight < 0 {
		return fmt.Errorf("scoring weights must be non-negative")
	}
	if s.MasteryWeight+s.DecayWeight+s.ConnectionWeight <= 0 {
		return fmt.Errorf("at least one scoring weight must be positive")
	}
	if c.GuardRail.MaxHardFraction < 0 || c.GuardRail.MaxHardFraction > 1 {
		return fmt.Errorf("guard_rail.max_hard_fraction must be in [0, 1], got %v", c.GuardRail.MaxHardFraction)
	}
	if c.GuardRail.AccuracyThreshold < 0 || c.GuardRail.AccuracyThreshold > 1 {
		return fmt.Errorf("guard_rail.accuracy_threshold must be in [0, 1], got %v", c.GuardRail.AccuracyThreshold)
	}
	if c.Assembly.Deadline <= 0 {
		return fmt.Errorf("assembly.deadline must be positive, got %v", c.Assembly.Deadline)
	}
	if c.Assembly.CandidateCap <= 0 {
		return fmt.Errorf("assembly.candidate_cap must be positive, got %d", c.Assembly.CandidateCap)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %v", c.Cache.TTL)
	}
	if c.Sweeper.CronSpec == "" {
		return fmt.Errorf("sweeper.cron_spec is required")
	}
	if _, err := time.LoadLocation(c.Sweeper.Timezone); err != nil {
		return fmt.Errorf("invalid sweeper.timezone %q: %w", c.Sweeper.Timezone, err)
	}
	if c.Sweeper.AbandonAfter <= 0 {
		return fmt.Errorf("sweeper.abandon_after must be positive, got %v", c.Sweeper.AbandonAfter)
	}
	if c.Backup.Keep < 1 {
		return fmt.Errorf("backup.keep must be at least 1, got %d", c.Backup.Keep)
	}
	return nil
}

// NormalizedScoringWeights returns the three scoring weights scaled to sum
// to 1.0.
func (c *Config) NormalizedScoringWeights() (mastery, decay, connection float64) {
	total := c.Scoring.MasteryWeight + c.Scoring.DecayWeight + c.Scoring.ConnectionWeight
	if total <= 0 {
		return 0.4, 0.3, 0.3
	}
	return c.Scoring.MasteryWeight / total, c.Scoring.DecayWeight / total, c.Scoring.ConnectionWeight / total
}

// Default returns the built-in configuration without touching the
// filesystem or environment.
func Default() *Config {
	return &Config{
		DataDir:        GetDataDir(),
		DatabasePath:   GetDatabasePath(),
		TagCatalogPath: "",
		Scoring: ScoringConfig{
			MasteryWeight:    0.4,
			DecayWeight:      0.3,
			ConnectionWeight: 0.3,
		},
		GuardRail: GuardRailConfig{
			MaxHardFraction:   0.4,
			AccuracyThreshold: 0.4,
		},
		Assembly: AssemblyConfig{
			Deadline:     20 * time.Second,
			CandidateCap: 50,
		},
		Cache: CacheConfig{
			MaxEntries: 50,
			TTL:        5 * time.Minute,
		},
		Sweeper: SweeperConfig{
			CronSpec:     "0 3 * * *",
			Timezone:     "Local",
			AbandonAfter: 24 * time.Hour,
		},
		Backup: BackupConfig{
			Keep: 5,
		},
	}
}
