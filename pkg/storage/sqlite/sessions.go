// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// sessionView is the SessionStore port. Problem and attempt lists are
// JSON columns; sessions are read and written whole, never joined.
type sessionView struct {
	s *Store
}

const sessionColumns = `session_id, date, status, session_type, origin,
	last_activity, problems_json, attempts_json`

func scanSession(row interface{ Scan(...interface{}) error }) (types.Session, error) {
	var (
		sess         types.Session
		date         int64
		status       string
		sessionType  string
		origin       string
		lastActivity int64
		problemsJSON string
		attemptsJSON string
	)
	err := row.Scan(
		&sess.SessionID,
		&date,
		&status,
		&sessionType,
		&origin,
		&lastActivity,
		&problemsJSON,
		&attemptsJSON,
	)
	if err != nil {
		return types.Session{}, err
	}
	sess.Date = fromUnix(date)
	sess.Status = types.SessionStatus(status)
	sess.SessionType = types.SessionType(sessionType)
	sess.Origin = types.SessionOrigin(origin)
	sess.LastActivityTime = fromUnix(lastActivity)
	if err := unmarshalJSON(problemsJSON, &sess.Problems); err != nil {
		return types.Session{}, err
	}
	if err := unmarshalJSON(attemptsJSON, &sess.Attempts); err != nil {
		return types.Session{}, err
	}
	return sess, nil
}

// Get returns a session by id.
func (v sessionView) Get(ctx context.Context, sessionID string) (types.Session, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE session_id = ?", sessionID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, fmt.Errorf("session %s: %w", sessionID, storage.ErrNotFound)
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to query session %s: %w", sessionID, err)
	}
	return sess, nil
}

// Put upserts a session. The upsert preserves the rowid, so insertion
// order survives status updates.
func (v sessionView) Put(ctx context.Context, session types.Session) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	problemsJSON, err := marshalJSON(session.Problems)
	if err != nil {
		return fmt.Errorf("session %s: %w", session.SessionID, err)
	}
	attemptsJSON, err := marshalJSON(session.Attempts)
	if err != nil {
		return fmt.Errorf("session %s: %w", session.SessionID, err)
	}

	query := `
		INSERT INTO sessions (session_id, date, status, session_type, origin,
			last_activity, problems_json, attempts_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			date = excluded.date,
			status = excluded.status,
			session_type = excluded.session_type,
			origin = excluded.origin,
			last_activity = excluded.last_activity,
			problems_json = excluded.problems_json,
			attempts_json = excluded.attempts_json
	`

	_, err = v.s.db.ExecContext(ctx, query,
		session.SessionID,
		toUnix(session.Date),
		string(session.Status),
		string(session.SessionType),
		string(session.Origin),
		toUnix(session.LastActivityTime),
		problemsJSON,
		attemptsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session %s: %w", session.SessionID, err)
	}
	return nil
}

// GetLatest returns the most recently created session.
func (v sessionView) GetLatest(ctx context.Context) (types.Session, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY rowid DESC LIMIT 1")
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Session{}, fmt.Errorf("no sessions: %w", storage.ErrNotFound)
	}
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to query latest session: %w", err)
	}
	return sess, nil
}

// ListByStatus returns sessions in the given status, oldest first.
func (v sessionView) ListByStatus(ctx context.Context, status types.SessionStatus) ([]types.Session, error) {
	return v.list(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status = ? ORDER BY rowid ASC",
		string(status))
}

// ListRecent returns up to limit sessions, newest first.
func (v sessionView) ListRecent(ctx context.Context, limit int) ([]types.Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY rowid DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return v.list(ctx, query, args...)
}

func (v sessionView) list(ctx context.Context, query string, args ...interface{}) ([]types.Session, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var out []types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

// analyticsView is the SessionAnalyticsStore port.
type analyticsView struct {
	s *Store
}

// Append adds an analytics row. Duplicate session ids fail with
// ErrConstraintViolation so the reducer stays idempotent.
func (v analyticsView) Append(ctx context.Context, analytics types.SessionAnalytics) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	var exists int
	err := v.s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM session_analytics WHERE session_id = ?", analytics.SessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check analytics %s: %w", analytics.SessionID, err)
	}
	if exists > 0 {
		return fmt.Errorf("analytics %s: %w", analytics.SessionID, storage.ErrConstraintViolation)
	}

	strongJSON, err := marshalJSON(analytics.StrongTags)
	if err != nil {
		return fmt.Errorf("analytics %s: %w", analytics.SessionID, err)
	}
	weakJSON, err := marshalJSON(analytics.WeakTags)
	if err != nil {
		return fmt.Errorf("analytics %s: %w", analytics.SessionID, err)
	}

	_, err = v.s.db.ExecContext(ctx,
		`INSERT INTO session_analytics (session_id, completed_at, accuracy, avg_time_seconds,
			predominant_difficulty, strong_tags_json, weak_tags_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		analytics.SessionID,
		toUnix(analytics.CompletedAt),
		analytics.Accuracy,
		analytics.AvgTimeSeconds,
		string(analytics.PredominantDifficulty),
		strongJSON,
		weakJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analytics: %w", err)
	}
	return nil
}

const analyticsColumns = `session_id, completed_at, accuracy, avg_time_seconds,
	predominant_difficulty, strong_tags_json, weak_tags_json`

func scanAnalytics(row interface{ Scan(...interface{}) error }) (types.SessionAnalytics, error) {
	var (
		a           types.SessionAnalytics
		completedAt int64
		predominant string
		strongJSON  string
		weakJSON    string
	)
	err := row.Scan(
		&a.SessionID,
		&completedAt,
		&a.Accuracy,
		&a.AvgTimeSeconds,
		&predominant,
		&strongJSON,
		&weakJSON,
	)
	if err != nil {
		return types.SessionAnalytics{}, err
	}
	a.CompletedAt = fromUnix(completedAt)
	a.PredominantDifficulty = types.Difficulty(predominant)
	if err := unmarshalJSON(strongJSON, &a.StrongTags); err != nil {
		return types.SessionAnalytics{}, err
	}
	if err := unmarshalJSON(weakJSON, &a.WeakTags); err != nil {
		return types.SessionAnalytics{}, err
	}
	return a, nil
}

// Get returns the analytics row for a session.
func (v analyticsView) Get(ctx context.Context, sessionID string) (types.SessionAnalytics, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+analyticsColumns+" FROM session_analytics WHERE session_id = ?", sessionID)
	a, err := scanAnalytics(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SessionAnalytics{}, fmt.Errorf("analytics %s: %w", sessionID, storage.ErrNotFound)
	}
	if err != nil {
		return types.SessionAnalytics{}, fmt.Errorf("failed to query analytics %s: %w", sessionID, err)
	}
	return a, nil
}

// ListRecent returns up to limit analytics rows, newest first.
func (v analyticsView) ListRecent(ctx context.Context, limit int) ([]types.SessionAnalytics, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	query := "SELECT " + analyticsColumns + " FROM session_analytics ORDER BY completed_at DESC, rowid DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := v.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analytics: %w", err)
	}
	defer rows.Close()

	var out []types.SessionAnalytics
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytics: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analytics: %w", err)
	}
	return out, nil
}

// sessionStateView is the SessionStateStore port. The singleton state is
// stored whole as JSON; it changes twice per session and is never
// queried by field.
type sessionStateView struct {
	s *Store
}

// Get returns the stored state, or ErrNotFound before the first Put.
func (v sessionStateView) Get(ctx context.Context) (types.SessionState, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var stateJSON string
	err := v.s.db.QueryRowContext(ctx,
		"SELECT state_json FROM session_state WHERE id = 1").Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SessionState{}, fmt.Errorf("session state: %w", storage.ErrNotFound)
	}
	if err != nil {
		return types.SessionState{}, fmt.Errorf("failed to query session state: %w", err)
	}

	var state types.SessionState
	if err := unmarshalJSON(stateJSON, &state); err != nil {
		return types.SessionState{}, err
	}
	return state, nil
}

// Put replaces the singleton state.
func (v sessionStateView) Put(ctx context.Context, state types.SessionState) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	stateJSON, err := marshalJSON(state)
	if err != nil {
		return fmt.Errorf("session state: %w", err)
	}

	_, err = v.s.db.ExecContext(ctx,
		`INSERT INTO session_state (id, state_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		stateJSON,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session state: %w", err)
	}
	return nil
}
