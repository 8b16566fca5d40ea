// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// In-memory port implementations. They back unit tests and small
// single-process deployments; the SQLite implementations in
// storage/sqlite are the persistent variants.

// MemoryCatalog is an in-memory ProblemCatalog and
// ProblemRelationshipStore.
type MemoryCatalog struct {
	mu       sync.RWMutex
	problems []types.Problem
	edges    []ProblemEdge
}

// NewMemoryCatalog creates a catalog over the given problems, preserving
// catalog order.
func NewMemoryCatalog(problems []types.Problem, edges []ProblemEdge) *MemoryCatalog {
	return &MemoryCatalog{problems: problems, edges: edges}
}

// GetBySlug returns the problem with the given slug.
func (c *MemoryCatalog) GetBySlug(ctx context.Context, slug string) (types.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.problems {
		if p.Slug == slug {
			return p, nil
		}
	}
	return types.Problem{}, fmt.Errorf("problem %q: %w", slug, ErrNotFound)
}

// GetByID returns the problem with the given leetcode id.
func (c *MemoryCatalog) GetByID(ctx context.Context, leetcodeID int) (types.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.problems {
		if p.LeetcodeID == leetcodeID {
			return p, nil
		}
	}
	return types.Problem{}, fmt.Errorf("problem %d: %w", leetcodeID, ErrNotFound)
}

// ListWithFilter returns problems matching the filter in catalog order.
func (c *MemoryCatalog) ListWithFilter(ctx context.Context, filter ProblemFilter) ([]types.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []types.Problem
	for _, p := range c.problems {
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
	return result, nil
}

// ListProblemEdges returns the relationship edges.
func (c *MemoryCatalog) ListProblemEdges(ctx context.Context) ([]ProblemEdge, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ProblemEdge, len(c.edges))
	copy(out, c.edges)
	return out, nil
}

// MemoryUserProblems is an in-memory UserProblemStore.
type MemoryUserProblems struct {
	mu   sync.RWMutex
	rows map[int]types.UserProblem
}

// NewMemoryUserProblems creates an empty store.
func NewMemoryUserProblems() *MemoryUserProblems {
	return &MemoryUserProblems{rows: make(map[int]types.UserProblem)}
}

// Get returns the row for a leetcode id.
func (s *MemoryUserProblems) Get(ctx context.Context, leetcodeID int) (types.UserProblem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[leetcodeID]
	if !ok {
		return types.UserProblem{}, fmt.Errorf("user problem %d: %w", leetcodeID, ErrNotFound)
	}
	return row, nil
}

// Put upserts a row keyed by leetcode id.
func (s *MemoryUserProblems) Put(ctx context.Context, up types.UserProblem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[up.LeetcodeID] = up
	return nil
}

// List returns all rows ordered by leetcode id.
func (s *MemoryUserProblems) List(ctx context.Context) ([]types.UserProblem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.UserProblem, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeetcodeID < out[j].LeetcodeID })
	return out, nil
}

// ListRange returns rows matching the range filter, ordered by leetcode
// id.
func (s *MemoryUserProblems) ListRange(ctx context.Context, r UserProblemRange) ([]types.UserProblem, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []types.UserProblem
	for _, row := range all {
		if r.DueBefore != nil && row.ReviewSchedule.After(*r.DueBefore) {
			continue
		}
		if r.MinBox > 0 && row.BoxLevel < r.MinBox {
			continue
		}
		if r.MaxBox > 0 && row.BoxLevel > r.MaxBox {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// MemoryAttemptLog is an in-memory AttemptLog.
type MemoryAttemptLog struct {
	mu       sync.RWMutex
	attempts []types.Attempt
	ids      map[string]bool
}

// NewMemoryAttemptLog creates an empty log.
func NewMemoryAttemptLog() *MemoryAttemptLog {
	return &MemoryAttemptLog{ids: make(map[string]bool)}
}

// Append adds an attempt. Duplicate attempt ids fail with
// ErrConstraintViolation.
func (l *MemoryAttemptLog) Append(ctx context.Context, attempt types.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if attempt.AttemptID != "" && l.ids[attempt.AttemptID] {
		return fmt.Errorf("attempt %s: %w", attempt.AttemptID, ErrConstraintViolation)
	}
	l.attempts = append(l.attempts, attempt)
	if attempt.AttemptID != "" {
		l.ids[attempt.AttemptID] = true
	}
	return nil
}

// ListRecent returns up to limit attempts, most recent first.
func (l *MemoryAttemptLog) ListRecent(ctx context.Context, limit int) ([]types.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Attempt, len(l.attempts))
	copy(out, l.attempts)
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptDate.After(out[j].AttemptDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBySession returns a session's attempts in insertion order.
func (l *MemoryAttemptLog) ListBySession(ctx context.Context, sessionID string) ([]types.Attempt, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []types.Attempt
	for _, a := range l.attempts {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	return out, nil
}

// MemorySessions is an in-memory SessionStore.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]types.Session
	order    []string
}

// NewMemorySessions creates an empty store.
func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]types.Session)}
}

// Get returns a session by id.
func (s *MemorySessions) Get(ctx context.Context, sessionID string) (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return types.Session{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	return sess, nil
}

// Put upserts a session.
func (s *MemorySessions) Put(ctx context.Context, session types.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.SessionID]; !exists {
		s.order = append(s.order, session.SessionID)
	}
	s.sessions[session.SessionID] = session
	return nil
}

// GetLatest returns the most recently created session.
func (s *MemorySessions) GetLatest(ctx context.Context) (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return types.Session{}, fmt.Errorf("no sessions: %w", ErrNotFound)
	}
	return s.sessions[s.order[len(s.order)-1]], nil
}

// ListByStatus returns sessions in the given status, oldest first.
func (s *MemorySessions) ListByStatus(ctx context.Context, status types.SessionStatus) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Session
	for _, id := range s.order {
		if s.sessions[id].Status == status {
			out = append(out, s.sessions[id])
		}
	}
	return out, nil
}

// ListRecent returns up to limit sessions, newest first.
func (s *MemorySessions) ListRecent(ctx context.Context, limit int) ([]types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Session
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.sessions[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MemoryTagMastery is an in-memory TagMasteryStore.
type MemoryTagMastery struct {
	mu   sync.RWMutex
	rows map[string]types.TagMastery

	// FailPut, when set, makes Put fail for the named tag. Used to test
	// partial-failure isolation.
	FailPut string
}

// NewMemoryTagMastery creates an empty store.
func NewMemoryTagMastery() *MemoryTagMastery {
	return &MemoryTagMastery{rows: make(map[string]types.TagMastery)}
}

// Get returns the row for a tag.
func (s *MemoryTagMastery) Get(ctx context.Context, tag string) (types.TagMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[tag]
	if !ok {
		return types.TagMastery{}, fmt.Errorf("tag %q: %w", tag, ErrNotFound)
	}
	return row, nil
}

// Put replaces the row for a tag.
func (s *MemoryTagMastery) Put(ctx context.Context, tm types.TagMastery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailPut != "" && s.FailPut == tm.Tag {
		return fmt.Errorf("tag %q: %w", tm.Tag, ErrStoreUnavailable)
	}
	s.rows[tm.Tag] = tm
	return nil
}

// List returns all rows ordered by tag.
func (s *MemoryTagMastery) List(ctx context.Context) ([]types.TagMastery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.TagMastery, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// MemoryTagCatalog is an in-memory TagRelationshipStore.
type MemoryTagCatalog struct {
	rows map[string]types.TagRelationship
}

// NewMemoryTagCatalog creates a catalog from the given rows.
func NewMemoryTagCatalog(rows []types.TagRelationship) *MemoryTagCatalog {
	m := make(map[string]types.TagRelationship, len(rows))
	for _, r := range rows {
		m[r.Tag] = r
	}
	return &MemoryTagCatalog{rows: m}
}

// Get returns the catalog row for a tag.
func (s *MemoryTagCatalog) Get(ctx context.Context, tag string) (types.TagRelationship, error) {
	row, ok := s.rows[tag]
	if !ok {
		return types.TagRelationship{}, fmt.Errorf("tag %q: %w", tag, ErrNotFound)
	}
	return row, nil
}

// List returns all rows ordered by tag.
func (s *MemoryTagCatalog) List(ctx context.Context) ([]types.TagRelationship, error) {
	out := make([]types.TagRelationship, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// ListByClassification returns rows in a tier, ordered by tag.
func (s *MemoryTagCatalog) ListByClassification(ctx context.Context, c types.TagClassification) ([]types.TagRelationship, error) {
	all, _ := s.List(ctx)
	var out []types.TagRelationship
	for _, row := range all {
		if row.Classification == c {
			out = append(out, row)
		}
	}
	return out, nil
}

// MemoryLadders is an in-memory PatternLadderStore.
type MemoryLadders struct {
	mu   sync.RWMutex
	rows map[string]types.PatternLadder
}

// NewMemoryLadders creates an empty store.
func NewMemoryLadders() *MemoryLadders {
	return &MemoryLadders{rows: make(map[string]types.PatternLadder)}
}

// Get returns the ladder for a tag.
func (s *MemoryLadders) Get(ctx context.Context, tag string) (types.PatternLadder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[tag]
	if !ok {
		return types.PatternLadder{}, fmt.Errorf("ladder %q: %w", tag, ErrNotFound)
	}
	return row, nil
}

// Put replaces the ladder for a tag.
func (s *MemoryLadders) Put(ctx context.Context, ladder types.PatternLadder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[ladder.Tag] = ladder
	return nil
}

// List returns all ladders ordered by tag.
func (s *MemoryLadders) List(ctx context.Context) ([]types.PatternLadder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.PatternLadder, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out, nil
}

// MemoryAnalytics is an in-memory SessionAnalyticsStore.
type MemoryAnalytics struct {
	mu   sync.RWMutex
	rows []types.SessionAnalytics
}

// NewMemoryAnalytics creates an empty store.
func NewMemoryAnalytics() *MemoryAnalytics {
	return &MemoryAnalytics{}
}

// Append adds an analytics row. Duplicate session ids fail with
// ErrConstraintViolation.
func (s *MemoryAnalytics) Append(ctx context.Context, analytics types.SessionAnalytics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.SessionID == analytics.SessionID {
			return fmt.Errorf("analytics %s: %w", analytics.SessionID, ErrConstraintViolation)
		}
	}
	s.rows = append(s.rows, analytics)
	return nil
}

// Get returns the analytics row for a session.
func (s *MemoryAnalytics) Get(ctx context.Context, sessionID string) (types.SessionAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, row := range s.rows {
		if row.SessionID == sessionID {
			return row, nil
		}
	}
	return types.SessionAnalytics{}, fmt.Errorf("analytics %s: %w", sessionID, ErrNotFound)
}

// ListRecent returns up to limit rows, newest first.
func (s *MemoryAnalytics) ListRecent(ctx context.Context, limit int) ([]types.SessionAnalytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.SessionAnalytics
	for i := len(s.rows) - 1; i >= 0; i-- {
		out = append(out, s.rows[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MemorySessionState is an in-memory SessionStateStore.
type MemorySessionState struct {
	mu    sync.RWMutex
	state *types.SessionState
}

// NewMemorySessionState creates an empty store.
func NewMemorySessionState() *MemorySessionState {
	return &MemorySessionState{}
}

// Get returns the stored state, or ErrNotFound before the first Put.
func (s *MemorySessionState) Get(ctx context.Context) (types.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return types.SessionState{}, fmt.Errorf("session state: %w", ErrNotFound)
	}
	return *s.state, nil
}

// Put replaces the stored state.
func (s *MemorySessionState) Put(ctx context.Context, state types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = &state
	return nil
}

// FixedClock is a Clock pinned to a settable instant. Tests advance it
// explicitly.
type FixedClock struct {
	mu  sync.RWMutex
	now time.Time

	// Location for day boundaries. Nil means UTC.
	Location *time.Location
}

// NewFixedClock creates a clock pinned to t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the pinned instant.
func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// DayStart truncates t to midnight in the configured location.
func (c *FixedClock) DayStart(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NewMemoryStores bundles fresh in-memory stores over the given catalog.
func NewMemoryStores(problems []types.Problem, edges []ProblemEdge, tagRows []types.TagRelationship) Stores {
	catalog := NewMemoryCatalog(problems, edges)
	return Stores{
		Catalog:       catalog,
		ProblemEdges:  catalog,
		UserProblems:  NewMemoryUserProblems(),
		Attempts:      NewMemoryAttemptLog(),
		Sessions:      NewMemorySessions(),
		TagMastery:    NewMemoryTagMastery(),
		TagCatalog:    NewMemoryTagCatalog(tagRows),
		Ladders:       NewMemoryLadders(),
		Analytics:     NewMemoryAnalytics(),
		SessionStates: NewMemorySessionState(),
	}
}
