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

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// tagMasteryView is the TagMasteryStore port.
type tagMasteryView struct {
	s *Store
}

const tagMasteryColumns = `tag, total_attempts, successful_attempts, decay_score,
	mastered, last_attempt_at, struggle_json`

func scanTagMastery(row interface{ Scan(...interface{}) error }) (types.TagMastery, error) {
	var (
		tm           types.TagMastery
		mastered     int
		lastAttempt  sql.NullInt64
		struggleJSON string
	)
	err := row.Scan(
		&tm.Tag,
		&tm.TotalAttempts,
		&tm.SuccessfulAttempts,
		&tm.DecayScore,
		&mastered,
		&lastAttempt,
		&struggleJSON,
	)
	if err != nil {
		return types.TagMastery{}, err
	}
	tm.Mastered = mastered != 0
	tm.LastAttemptDate = fromUnixPtr(lastAttempt)
	if err := unmarshalJSON(struggleJSON, &tm.Struggle); err != nil {
		return types.TagMastery{}, err
	}
	return tm, nil
}

// Get returns the row for a tag.
func (v tagMasteryView) Get(ctx context.Context, tag string) (types.TagMastery, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+tagMasteryColumns+" FROM tag_mastery WHERE tag = ?", tag)
	tm, err := scanTagMastery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TagMastery{}, fmt.Errorf("tag %q: %w", tag, storage.ErrNotFound)
	}
	if err != nil {
		return types.TagMastery{}, fmt.Errorf("failed to query tag mastery %q: %w", tag, err)
	}
	return tm, nil
}

// Put replaces the row for a tag.
func (v tagMasteryView) Put(ctx context.Context, tm types.TagMastery) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	struggleJSON, err := marshalJSON(tm.Struggle)
	if err != nil {
		return fmt.Errorf("tag %q: %w", tm.Tag, err)
	}

	mastered := 0
	if tm.Mastered {
		mastered = 1
	}

	query := `
		INSERT INTO tag_mastery (tag, total_attempts, successful_attempts, decay_score,
			mastered, last_attempt_at, struggle_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			total_attempts = excluded.total_attempts,
			successful_attempts = excluded.successful_attempts,
			decay_score = excluded.decay_score,
			mastered = excluded.mastered,
			last_attempt_at = excluded.last_attempt_at,
			struggle_json = excluded.struggle_json
	`

	_, err = v.s.db.ExecContext(ctx, query,
		tm.Tag,
		tm.TotalAttempts,
		tm.SuccessfulAttempts,
		tm.DecayScore,
		mastered,
		toUnixPtr(tm.LastAttemptDate),
		struggleJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert tag mastery %q: %w", tm.Tag, err)
	}
	return nil
}

// List returns every mastery row ordered by tag.
func (v tagMasteryView) List(ctx context.Context) ([]types.TagMastery, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx,
		"SELECT "+tagMasteryColumns+" FROM tag_mastery ORDER BY tag")
	if err != nil {
		return nil, fmt.Errorf("failed to query tag mastery: %w", err)
	}
	defer rows.Close()

	var out []types.TagMastery
	for rows.Next() {
		tm, err := scanTagMastery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag mastery: %w", err)
		}
		out = append(out, tm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag mastery: %w", err)
	}
	return out, nil
}

// ladderView is the PatternLadderStore port. Rungs are one JSON column;
// ladders are always replaced whole.
type ladderView struct {
	s *Store
}

// Get returns the ladder for a tag.
func (v ladderView) Get(ctx context.Context, tag string) (types.PatternLadder, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var (
		ladderSize   int
		problemsJSON string
	)
	err := v.s.db.QueryRowContext(ctx,
		"SELECT ladder_size, problems_json FROM pattern_ladders WHERE tag = ?", tag).
		Scan(&ladderSize, &problemsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return types.PatternLadder{}, fmt.Errorf("ladder %q: %w", tag, storage.ErrNotFound)
	}
	if err != nil {
		return types.PatternLadder{}, fmt.Errorf("failed to query ladder %q: %w", tag, err)
	}

	ladder := types.PatternLadder{Tag: tag, LadderSize: ladderSize}
	if err := unmarshalJSON(problemsJSON, &ladder.Problems); err != nil {
		return types.PatternLadder{}, err
	}
	return ladder, nil
}

// Put replaces the ladder for a tag.
func (v ladderView) Put(ctx context.Context, ladder types.PatternLadder) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	problemsJSON, err := marshalJSON(ladder.Problems)
	if err != nil {
		return fmt.Errorf("ladder %q: %w", ladder.Tag, err)
	}

	_, err = v.s.db.ExecContext(ctx,
		`INSERT INTO pattern_ladders (tag, ladder_size, problems_json) VALUES (?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			ladder_size = excluded.ladder_size,
			problems_json = excluded.problems_json`,
		ladder.Tag,
		ladder.LadderSize,
		problemsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert ladder %q: %w", ladder.Tag, err)
	}
	return nil
}

// List returns every ladder ordered by tag.
func (v ladderView) List(ctx context.Context) ([]types.PatternLadder, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx,
		"SELECT tag, ladder_size, problems_json FROM pattern_ladders ORDER BY tag")
	if err != nil {
		return nil, fmt.Errorf("failed to query ladders: %w", err)
	}
	defer rows.Close()

	var out []types.PatternLadder
	for rows.Next() {
		var (
			ladder       types.PatternLadder
			problemsJSON string
		)
		if err := rows.Scan(&ladder.Tag, &ladder.LadderSize, &problemsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan ladder: %w", err)
		}
		if err := unmarshalJSON(problemsJSON, &ladder.Problems); err != nil {
			return nil, err
		}
		out = append(out, ladder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ladders: %w", err)
	}
	return out, nil
}
