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
	"strings"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// userProblemView is the UserProblemStore port.
type userProblemView struct {
	s *Store
}

const userProblemColumns = `leetcode_id, problem_id, box_level, stability, review_schedule,
	last_attempt_at, total_attempts, successful_attempts, unsuccessful_attempts,
	perceived_difficulty, consecutive_failures, cooldown_until`

func scanUserProblem(row interface{ Scan(...interface{}) error }) (types.UserProblem, error) {
	var (
		up            types.UserProblem
		schedule      int64
		lastAttempt   sql.NullInt64
		cooldownUntil sql.NullInt64
	)
	err := row.Scan(
		&up.LeetcodeID,
		&up.ProblemID,
		&up.BoxLevel,
		&up.Stability,
		&schedule,
		&lastAttempt,
		&up.AttemptStats.Total,
		&up.AttemptStats.Successful,
		&up.AttemptStats.Unsuccessful,
		&up.PerceivedDifficulty,
		&up.ConsecutiveFailures,
		&cooldownUntil,
	)
	if err != nil {
		return types.UserProblem{}, err
	}
	up.ReviewSchedule = fromUnix(schedule)
	up.LastAttemptDate = fromUnixPtr(lastAttempt)
	up.CooldownUntil = fromUnixPtr(cooldownUntil)
	return up, nil
}

// Get returns the row for a leetcode id.
func (v userProblemView) Get(ctx context.Context, leetcodeID int) (types.UserProblem, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+userProblemColumns+" FROM user_problems WHERE leetcode_id = ?", leetcodeID)
	up, err := scanUserProblem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.UserProblem{}, fmt.Errorf("user problem %d: %w", leetcodeID, storage.ErrNotFound)
	}
	if err != nil {
		return types.UserProblem{}, fmt.Errorf("failed to query user problem %d: %w", leetcodeID, err)
	}
	return up, nil
}

// Put upserts a row keyed by leetcode id.
func (v userProblemView) Put(ctx context.Context, up types.UserProblem) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	query := `
		INSERT INTO user_problems (
			leetcode_id, problem_id, box_level, stability, review_schedule,
			last_attempt_at, total_attempts, successful_attempts, unsuccessful_attempts,
			perceived_difficulty, consecutive_failures, cooldown_until
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(leetcode_id) DO UPDATE SET
			problem_id = excluded.problem_id,
			box_level = excluded.box_level,
			stability = excluded.stability,
			review_schedule = excluded.review_schedule,
			last_attempt_at = excluded.last_attempt_at,
			total_attempts = excluded.total_attempts,
			successful_attempts = excluded.successful_attempts,
			unsuccessful_attempts = excluded.unsuccessful_attempts,
			perceived_difficulty = excluded.perceived_difficulty,
			consecutive_failures = excluded.consecutive_failures,
			cooldown_until = excluded.cooldown_until
	`

	_, err := v.s.db.ExecContext(ctx, query,
		up.LeetcodeID,
		up.ProblemID,
		up.BoxLevel,
		up.Stability,
		toUnix(up.ReviewSchedule),
		toUnixPtr(up.LastAttemptDate),
		up.AttemptStats.Total,
		up.AttemptStats.Successful,
		up.AttemptStats.Unsuccessful,
		up.PerceivedDifficulty,
		up.ConsecutiveFailures,
		toUnixPtr(up.CooldownUntil),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user problem %d: %w", up.LeetcodeID, err)
	}
	return nil
}

// List returns all rows ordered by leetcode id.
func (v userProblemView) List(ctx context.Context) ([]types.UserProblem, error) {
	return v.list(ctx,
		"SELECT "+userProblemColumns+" FROM user_problems ORDER BY leetcode_id ASC")
}

// ListRange returns rows matching the range filter, ordered by leetcode
// id.
func (v userProblemView) ListRange(ctx context.Context, r storage.UserProblemRange) ([]types.UserProblem, error) {
	var (
		conds []string
		args  []interface{}
	)
	if r.DueBefore != nil {
		conds = append(conds, "review_schedule <= ?")
		args = append(args, r.DueBefore.Unix())
	}
	if r.MinBox > 0 {
		conds = append(conds, "box_level >= ?")
		args = append(args, r.MinBox)
	}
	if r.MaxBox > 0 {
		conds = append(conds, "box_level <= ?")
		args = append(args, r.MaxBox)
	}

	query := "SELECT " + userProblemColumns + " FROM user_problems"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY leetcode_id ASC"

	return v.list(ctx, query, args...)
}

func (v userProblemView) list(ctx context.Context, query string, args ...interface{}) ([]types.UserProblem, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query user problems: %w", err)
	}
	defer rows.Close()

	var out []types.UserProblem
	for rows.Next() {
		up, err := scanUserProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user problem: %w", err)
		}
		out = append(out, up)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user problems: %w", err)
	}
	return out, nil
}

// attemptView is the AttemptLog port.
type attemptView struct {
	s *Store
}

const attemptColumns = `attempt_id, problem_id, leetcode_id, attempt_date, success,
	time_spent_seconds, perceived_difficulty, session_id`

func scanAttempt(row interface{ Scan(...interface{}) error }) (types.Attempt, error) {
	var (
		a         types.Attempt
		date      int64
		success   int
		sessionID sql.NullString
		problemID sql.NullString
	)
	err := row.Scan(
		&a.AttemptID,
		&problemID,
		&a.LeetcodeID,
		&date,
		&success,
		&a.TimeSpentSeconds,
		&a.PerceivedDifficulty,
		&sessionID,
	)
	if err != nil {
		return types.Attempt{}, err
	}
	a.AttemptDate = fromUnix(date)
	a.Success = success != 0
	a.ProblemID = problemID.String
	a.SessionID = sessionID.String
	return a, nil
}

// Append adds an attempt. Duplicate attempt ids fail with
// ErrConstraintViolation.
func (v attemptView) Append(ctx context.Context, attempt types.Attempt) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if attempt.AttemptID != "" {
		var exists int
		err := v.s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM attempts WHERE attempt_id = ?", attempt.AttemptID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check attempt %s: %w", attempt.AttemptID, err)
		}
		if exists > 0 {
			return fmt.Errorf("attempt %s: %w", attempt.AttemptID, storage.ErrConstraintViolation)
		}
	}

	success := 0
	if attempt.Success {
		success = 1
	}
	_, err := v.s.db.ExecContext(ctx,
		`INSERT INTO attempts (attempt_id, problem_id, leetcode_id, attempt_date, success,
			time_spent_seconds, perceived_difficulty, session_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.AttemptID,
		attempt.ProblemID,
		attempt.LeetcodeID,
		toUnix(attempt.AttemptDate),
		success,
		attempt.TimeSpentSeconds,
		attempt.PerceivedDifficulty,
		attempt.SessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}
	return nil
}

// ListRecent returns up to limit attempts, most recent first.
func (v attemptView) ListRecent(ctx context.Context, limit int) ([]types.Attempt, error) {
	query := "SELECT " + attemptColumns + " FROM attempts ORDER BY attempt_date DESC, rowid DESC"
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return v.list(ctx, query, args...)
}

// ListBySession returns a session's attempts in insertion order.
func (v attemptView) ListBySession(ctx context.Context, sessionID string) ([]types.Attempt, error) {
	return v.list(ctx,
		"SELECT "+attemptColumns+" FROM attempts WHERE session_id = ? ORDER BY rowid ASC",
		sessionID)
}

func (v attemptView) list(ctx context.Context, query string, args ...interface{}) ([]types.Attempt, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var out []types.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}
	return out, nil
}
