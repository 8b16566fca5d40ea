// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package sqlite persists every storage port to a single SQLite file.
// Uses WAL mode for concurrent read/write access; the pure-Go
// modernc.org/sqlite driver keeps the binary CGO-free.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
)

// openGroup collapses concurrent Open calls for the same path into one
// connection handshake. SQLite tolerates multiple handles on one file,
// but a single pool per path keeps WAL checkpointing predictable.
var openGroup singleflight.Group

// Store persists the full engine state to SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *zap.Logger
}

// Open creates a store backed by the database at dbPath. The dbPath
// should point to $CODEMASTER_DATA_DIR/codemaster.db.
func Open(ctx context.Context, dbPath string, logger *zap.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path is empty", storage.ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v, err, _ := openGroup.Do(dbPath, func() (interface{}, error) {
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		store := &Store{
			db:     db,
			logger: logger,
		}

		if err := store.initSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}

		logger.Debug("opened database", zap.String("path", dbPath))
		return store, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

// initSchema creates the database tables if they don't exist.
func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS problems (
		leetcode_id INTEGER PRIMARY KEY,
		title TEXT,
		slug TEXT NOT NULL,
		difficulty TEXT NOT NULL,
		tags_json TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_problem_slug ON problems(slug);

	CREATE TABLE IF NOT EXISTS problem_edges (
		from_id INTEGER NOT NULL,
		to_id INTEGER NOT NULL,
		weight REAL NOT NULL,
		PRIMARY KEY (from_id, to_id)
	);

	CREATE TABLE IF NOT EXISTS tag_relationships (
		tag TEXT PRIMARY KEY,
		classification TEXT NOT NULL,
		related_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tag_classification ON tag_relationships(classification);

	CREATE TABLE IF NOT EXISTS user_problems (
		leetcode_id INTEGER PRIMARY KEY,
		problem_id TEXT NOT NULL,
		box_level INTEGER NOT NULL,
		stability REAL NOT NULL,
		review_schedule INTEGER NOT NULL,
		last_attempt_at INTEGER,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		successful_attempts INTEGER NOT NULL DEFAULT 0,
		unsuccessful_attempts INTEGER NOT NULL DEFAULT 0,
		perceived_difficulty REAL NOT NULL DEFAULT 0,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		cooldown_until INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_review_schedule ON user_problems(review_schedule);
	CREATE INDEX IF NOT EXISTS idx_box_level ON user_problems(box_level);

	CREATE TABLE IF NOT EXISTS attempts (
		attempt_id TEXT PRIMARY KEY,
		problem_id TEXT,
		leetcode_id INTEGER NOT NULL,
		attempt_date INTEGER NOT NULL,
		success INTEGER NOT NULL,
		time_spent_seconds INTEGER NOT NULL DEFAULT 0,
		perceived_difficulty REAL NOT NULL DEFAULT 0,
		session_id TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_attempt_date ON attempts(attempt_date);
	CREATE INDEX IF NOT EXISTS idx_attempt_session ON attempts(session_id);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		date INTEGER NOT NULL,
		status TEXT NOT NULL,
		session_type TEXT NOT NULL,
		origin TEXT NOT NULL,
		last_activity INTEGER NOT NULL,
		problems_json TEXT NOT NULL,
		attempts_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_status ON sessions(status);

	CREATE TABLE IF NOT EXISTS tag_mastery (
		tag TEXT PRIMARY KEY,
		total_attempts INTEGER NOT NULL DEFAULT 0,
		successful_attempts INTEGER NOT NULL DEFAULT 0,
		decay_score REAL NOT NULL DEFAULT 0,
		mastered INTEGER NOT NULL DEFAULT 0,
		last_attempt_at INTEGER,
		struggle_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pattern_ladders (
		tag TEXT PRIMARY KEY,
		ladder_size INTEGER NOT NULL,
		problems_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_analytics (
		session_id TEXT PRIMARY KEY,
		completed_at INTEGER NOT NULL,
		accuracy REAL NOT NULL,
		avg_time_seconds REAL NOT NULL,
		predominant_difficulty TEXT NOT NULL,
		strong_tags_json TEXT NOT NULL,
		weak_tags_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analytics_completed ON session_analytics(completed_at);

	CREATE TABLE IF NOT EXISTS session_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		state_json TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Stores bundles this store behind every engine port. Each port is a
// thin view over the shared handle; the ports collide on method names,
// so one receiver cannot carry them all.
func (s *Store) Stores() storage.Stores {
	return storage.Stores{
		Catalog:       catalogView{s},
		ProblemEdges:  catalogView{s},
		UserProblems:  userProblemView{s},
		Attempts:      attemptView{s},
		Sessions:      sessionView{s},
		TagMastery:    tagMasteryView{s},
		TagCatalog:    tagCatalogView{s},
		Ladders:       ladderView{s},
		Analytics:     analyticsView{s},
		SessionStates: sessionStateView{s},
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func marshalJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal: %w", err)
	}
	return string(b), nil
}

func unmarshalJSON(data string, v interface{}) error {
	if err := json.Unmarshal([]byte(data), v); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// toUnix converts a time to storage form. Zero times store as 0.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// fromUnix converts storage form back to a UTC time. Zero stays zero.
func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}

func toUnixPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnixPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
