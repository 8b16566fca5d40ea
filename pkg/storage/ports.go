// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package storage defines the outbound ports the engine consumes, the
// error kinds stores may return, and the retry and caching layers shared
// by every store-facing component. The engine never learns whether a
// port is backed by an embedded SQLite file or a remote service.
package storage

import (
	"context"
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// ProblemFilter narrows a catalog listing.
type ProblemFilter struct {
	// Tags restricts results to problems carrying at least one of the
	// listed tags. Empty means any tag.
	Tags []string

	// DifficultyCap excludes problems harder than the cap. Empty means
	// no cap.
	DifficultyCap types.Difficulty

	// ExcludeIDs removes specific leetcode ids from the result.
	ExcludeIDs map[int]bool

	// Limit bounds the result size. Zero means no limit.
	Limit int
}

// ProblemCatalog is the read-only problem catalog.
type ProblemCatalog interface {
	GetBySlug(ctx context.Context, slug string) (types.Problem, error)
	GetByID(ctx context.Context, leetcodeID int) (types.Problem, error)
	ListWithFilter(ctx context.Context, filter ProblemFilter) ([]types.Problem, error)
}

// ProblemEdge is one weighted undirected edge between two catalog
// problems.
type ProblemEdge struct {
	From   int
	To     int
	Weight float64
}

// ProblemRelationshipStore serves the problem-relationship graph edges.
type ProblemRelationshipStore interface {
	ListProblemEdges(ctx context.Context) ([]ProblemEdge, error)
}

// UserProblemRange filters a UserProblem listing.
type UserProblemRange struct {
	// DueBefore keeps rows with ReviewSchedule <= DueBefore when set.
	DueBefore *time.Time

	// MinBox and MaxBox bound the box level. Zero values mean unbounded.
	MinBox int
	MaxBox int
}

// UserProblemStore persists per-user spaced-repetition rows.
type UserProblemStore interface {
	Get(ctx context.Context, leetcodeID int) (types.UserProblem, error)
	Put(ctx context.Context, up types.UserProblem) error
	List(ctx context.Context) ([]types.UserProblem, error)
	ListRange(ctx context.Context, r UserProblemRange) ([]types.UserProblem, error)
}

// AttemptLog is the append-only attempt history.
type AttemptLog interface {
	Append(ctx context.Context, attempt types.Attempt) error
	ListRecent(ctx context.Context, limit int) ([]types.Attempt, error)
	ListBySession(ctx context.Context, sessionID string) ([]types.Attempt, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (types.Session, error)
	Put(ctx context.Context, session types.Session) error
	GetLatest(ctx context.Context) (types.Session, error)
	ListByStatus(ctx context.Context, status types.SessionStatus) ([]types.Session, error)
	ListRecent(ctx context.Context, limit int) ([]types.Session, error)
}

// TagMasteryStore persists per-tag mastery rows.
type TagMasteryStore interface {
	Get(ctx context.Context, tag string) (types.TagMastery, error)
	Put(ctx context.Context, tm types.TagMastery) error
	List(ctx context.Context) ([]types.TagMastery, error)
}

// TagRelationshipStore serves the read-only tag catalog.
type TagRelationshipStore interface {
	Get(ctx context.Context, tag string) (types.TagRelationship, error)
	List(ctx context.Context) ([]types.TagRelationship, error)
	ListByClassification(ctx context.Context, c types.TagClassification) ([]types.TagRelationship, error)
}

// PatternLadderStore persists per-tag pattern ladders.
type PatternLadderStore interface {
	Get(ctx context.Context, tag string) (types.PatternLadder, error)
	Put(ctx context.Context, ladder types.PatternLadder) error
	List(ctx context.Context) ([]types.PatternLadder, error)
}

// SessionAnalyticsStore is the append-only analytics sink.
type SessionAnalyticsStore interface {
	Append(ctx context.Context, analytics types.SessionAnalytics) error
	Get(ctx context.Context, sessionID string) (types.SessionAnalytics, error)
	ListRecent(ctx context.Context, limit int) ([]types.SessionAnalytics, error)
}

// SessionStateStore persists the singleton per-user session state.
type SessionStateStore interface {
	Get(ctx context.Context) (types.SessionState, error)
	Put(ctx context.Context, state types.SessionState) error
}

// Clock abstracts time so tests and the staleness classifier share a
// single notion of "now".
type Clock interface {
	Now() time.Time

	// DayStart returns the start of the calendar day containing t in
	// the user's timezone.
	DayStart(t time.Time) time.Time
}

// SystemClock is the wall-clock Clock.
type SystemClock struct {
	// Location is the user's timezone. Nil means UTC.
	Location *time.Location
}

// Now returns the current wall-clock time.
func (c SystemClock) Now() time.Time {
	return time.Now()
}

// DayStart truncates t to midnight in the configured location.
func (c SystemClock) DayStart(t time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// Stores bundles every port the engine consumes.
type Stores struct {
	Catalog       ProblemCatalog
	ProblemEdges  ProblemRelationshipStore
	UserProblems  UserProblemStore
	Attempts      AttemptLog
	Sessions      SessionStore
	TagMastery    TagMasteryStore
	TagCatalog    TagRelationshipStore
	Ladders       PatternLadderStore
	Analytics     SessionAnalyticsStore
	SessionStates SessionStateStore
}
