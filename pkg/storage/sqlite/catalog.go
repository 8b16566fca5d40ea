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

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// SeedCatalog replaces the problem catalog and its relationship edges.
// The catalog is read-only to the engine; this is the ingestion path.
func (s *Store) SeedCatalog(ctx context.Context, problems []types.Problem, edges []storage.ProblemEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM problems"); err != nil {
		return fmt.Errorf("failed to clear problems: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM problem_edges"); err != nil {
		return fmt.Errorf("failed to clear problem edges: %w", err)
	}

	for _, p := range problems {
		tagsJSON, err := marshalJSON(p.Tags)
		if err != nil {
			return fmt.Errorf("problem %d: %w", p.LeetcodeID, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO problems (leetcode_id, title, slug, difficulty, tags_json) VALUES (?, ?, ?, ?, ?)`,
			p.LeetcodeID, p.Title, p.Slug, string(p.Difficulty), tagsJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert problem %d: %w", p.LeetcodeID, err)
		}
	}

	for _, e := range edges {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO problem_edges (from_id, to_id, weight) VALUES (?, ?, ?)`,
			e.From, e.To, e.Weight,
		)
		if err != nil {
			return fmt.Errorf("failed to insert edge %d-%d: %w", e.From, e.To, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}

	s.logger.Info("seeded problem catalog",
		zap.Int("problems", len(problems)),
		zap.Int("edges", len(edges)))
	return nil
}

// SeedTagCatalog replaces the tag relationship catalog.
func (s *Store) SeedTagCatalog(ctx context.Context, rows []types.TagRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tag_relationships"); err != nil {
		return fmt.Errorf("failed to clear tag relationships: %w", err)
	}

	for _, row := range rows {
		relatedJSON, err := marshalJSON(row.Related)
		if err != nil {
			return fmt.Errorf("tag %q: %w", row.Tag, err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO tag_relationships (tag, classification, related_json) VALUES (?, ?, ?)`,
			row.Tag, string(row.Classification), relatedJSON,
		)
		if err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", row.Tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tag catalog: %w", err)
	}
	return nil
}

// catalogView is the ProblemCatalog and ProblemRelationshipStore port.
type catalogView struct {
	s *Store
}

const problemColumns = "leetcode_id, title, slug, difficulty, tags_json"

func scanProblem(row interface{ Scan(...interface{}) error }) (types.Problem, error) {
	var (
		p          types.Problem
		difficulty string
		tagsJSON   string
	)
	if err := row.Scan(&p.LeetcodeID, &p.Title, &p.Slug, &difficulty, &tagsJSON); err != nil {
		return types.Problem{}, err
	}
	p.Difficulty = types.Difficulty(difficulty)
	if err := unmarshalJSON(tagsJSON, &p.Tags); err != nil {
		return types.Problem{}, err
	}
	return p, nil
}

// GetBySlug returns the catalog problem with the given slug.
func (v catalogView) GetBySlug(ctx context.Context, slug string) (types.Problem, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+problemColumns+" FROM problems WHERE slug = ?", slug)
	p, err := scanProblem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Problem{}, fmt.Errorf("problem %q: %w", slug, storage.ErrNotFound)
	}
	if err != nil {
		return types.Problem{}, fmt.Errorf("failed to query problem %q: %w", slug, err)
	}
	return p, nil
}

// GetByID returns the catalog problem with the given leetcode id.
func (v catalogView) GetByID(ctx context.Context, leetcodeID int) (types.Problem, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT "+problemColumns+" FROM problems WHERE leetcode_id = ?", leetcodeID)
	p, err := scanProblem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Problem{}, fmt.Errorf("problem %d: %w", leetcodeID, storage.ErrNotFound)
	}
	if err != nil {
		return types.Problem{}, fmt.Errorf("failed to query problem %d: %w", leetcodeID, err)
	}
	return p, nil
}

// ListWithFilter returns problems matching the filter in catalog order.
// Tag matching happens in Go; tags live in a JSON column and the catalog
// is small enough that a table scan stays cheap.
func (v catalogView) ListWithFilter(ctx context.Context, filter storage.ProblemFilter) ([]types.Problem, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx,
		"SELECT "+problemColumns+" FROM problems ORDER BY leetcode_id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query problems: %w", err)
	}
	defer rows.Close()

	var result []types.Problem
	for rows.Next() {
		p, err := scanProblem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan problem: %w", err)
		}
		if filter.ExcludeIDs != nil && filter.ExcludeIDs[p.LeetcodeID] {
			continue
		}
		if filter.DifficultyCap != "" && p.Difficulty.Exceeds(filter.DifficultyCap) {
			continue
		}
		if len(filter.Tags) > 0 {
			matched := false
			for _, tag := range filter.Tags {
				if p.HasTag(tag) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		result = append(result, p)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating problems: %w", err)
	}
	return result, nil
}

// ListProblemEdges returns the relationship edges.
func (v catalogView) ListProblemEdges(ctx context.Context) ([]storage.ProblemEdge, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx,
		"SELECT from_id, to_id, weight FROM problem_edges ORDER BY from_id, to_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query problem edges: %w", err)
	}
	defer rows.Close()

	var edges []storage.ProblemEdge
	for rows.Next() {
		var e storage.ProblemEdge
		if err := rows.Scan(&e.From, &e.To, &e.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

// tagCatalogView is the TagRelationshipStore port.
type tagCatalogView struct {
	s *Store
}

func scanTagRelationship(row interface{ Scan(...interface{}) error }) (types.TagRelationship, error) {
	var (
		tr             types.TagRelationship
		classification string
		relatedJSON    string
	)
	if err := row.Scan(&tr.Tag, &classification, &relatedJSON); err != nil {
		return types.TagRelationship{}, err
	}
	tr.Classification = types.TagClassification(classification)
	if err := unmarshalJSON(relatedJSON, &tr.Related); err != nil {
		return types.TagRelationship{}, err
	}
	return tr, nil
}

// Get returns the tag relationship row for a tag.
func (v tagCatalogView) Get(ctx context.Context, tag string) (types.TagRelationship, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	row := v.s.db.QueryRowContext(ctx,
		"SELECT tag, classification, related_json FROM tag_relationships WHERE tag = ?", tag)
	tr, err := scanTagRelationship(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TagRelationship{}, fmt.Errorf("tag %q: %w", tag, storage.ErrNotFound)
	}
	if err != nil {
		return types.TagRelationship{}, fmt.Errorf("failed to query tag %q: %w", tag, err)
	}
	return tr, nil
}

// List returns every tag relationship row ordered by tag.
func (v tagCatalogView) List(ctx context.Context) ([]types.TagRelationship, error) {
	return v.list(ctx,
		"SELECT tag, classification, related_json FROM tag_relationships ORDER BY tag")
}

// ListByClassification returns the tags in one tier ordered by tag.
func (v tagCatalogView) ListByClassification(ctx context.Context, c types.TagClassification) ([]types.TagRelationship, error) {
	return v.list(ctx,
		"SELECT tag, classification, related_json FROM tag_relationships WHERE classification = ? ORDER BY tag",
		string(c))
}

func (v tagCatalogView) list(ctx context.Context, query string, args ...interface{}) ([]types.TagRelationship, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	rows, err := v.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag relationships: %w", err)
	}
	defer rows.Close()

	var out []types.TagRelationship
	for rows.Next() {
		tr, err := scanTagRelationship(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag relationship: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tag relationships: %w", err)
	}
	return out, nil
}
