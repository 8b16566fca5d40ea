// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package types contains the shared records used across the CodeMaster
// engine. This package breaks import cycles by providing the data model
// that every engine component (mastery, assembler, reducer, storage)
// depends on.
package types

import (
	"time"
)

// ============================================================================
// Catalog types (read-only to the engine)
// ============================================================================

// Difficulty is the catalog difficulty of a problem.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// Rank returns the ordinal position of the difficulty (Easy=1, Hard=3).
// Unknown difficulties rank 0 so they never pass a cap check.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyMedium:
		return 2
	case DifficultyHard:
		return 3
	default:
		return 0
	}
}

// Exceeds reports whether d is strictly harder than the cap.
func (d Difficulty) Exceeds(cap Difficulty) bool {
	return d.Rank() > cap.Rank()
}

// Promote returns the next difficulty up, capped at Hard.
func (d Difficulty) Promote() Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	default:
		return DifficultyHard
	}
}

// Problem is an immutable catalog entry.
type Problem struct {
	// LeetcodeID is the stable integer key of the problem.
	LeetcodeID int

	// Title is the display title.
	Title string

	// Slug is the URL slug.
	Slug string

	// Difficulty is Easy, Medium, or Hard.
	Difficulty Difficulty

	// Tags are lowercase topic tags.
	Tags []string
}

// HasTag reports whether the problem carries the given tag.
func (p Problem) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TagClassification is the tier band of a tag.
type TagClassification string

const (
	ClassificationCoreConcept          TagClassification = "Core Concept"
	ClassificationFundamentalTechnique TagClassification = "Fundamental Technique"
	ClassificationAdvancedTechnique    TagClassification = "Advanced Technique"
)

// TierOrder lists the classifications in progression order.
var TierOrder = []TagClassification{
	ClassificationCoreConcept,
	ClassificationFundamentalTechnique,
	ClassificationAdvancedTechnique,
}

// Rank returns the ordinal tier position (Core Concept=1). Unknown is 0.
func (c TagClassification) Rank() int {
	for i, t := range TierOrder {
		if t == c {
			return i + 1
		}
	}
	return 0
}

// TagRelationship is a read-only catalog row describing a tag, its tier
// classification, and its weighted edges to related tags.
type TagRelationship struct {
	Tag            string
	Classification TagClassification

	// Related maps neighbor tag -> edge weight in [0,1].
	Related map[string]float64
}

// ============================================================================
// Per-user spaced-repetition state
// ============================================================================

// Box level bounds. Levels 1-5 are learning, 6-8 are mastered.
const (
	MinBoxLevel         = 1
	MaxBoxLevel         = 8
	FirstMasteredBox    = 6
	DefaultStability    = 6.0
	MaxConsecutiveFails = 3
)

// AttemptStats aggregates attempt counts for a single problem.
type AttemptStats struct {
	Total        int
	Successful   int
	Unsuccessful int
}

// SuccessRate returns successful/total, or 0 for no attempts.
func (s AttemptStats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Successful) / float64(s.Total)
}

// UserProblem is the per-user, per-problem spaced-repetition row.
type UserProblem struct {
	// ProblemID is an opaque UUID assigned on first attempt.
	ProblemID string

	// LeetcodeID keys the catalog problem this row tracks.
	LeetcodeID int

	// BoxLevel is the Leitner box, 1..8.
	BoxLevel int

	// Stability scales the forgetting curve. Higher is slower decay.
	Stability float64

	// ReviewSchedule is the next due time, derived from BoxLevel,
	// LastAttemptDate, and Stability.
	ReviewSchedule time.Time

	// LastAttemptDate is nil before the first attempt.
	LastAttemptDate *time.Time

	AttemptStats AttemptStats

	// PerceivedDifficulty is the user-reported difficulty, 1..10.
	PerceivedDifficulty float64

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int

	// CooldownUntil blocks the problem from scheduling while set in the
	// future. Nil means no cooldown.
	CooldownUntil *time.Time
}

// Mastered reports whether the problem sits in a mastered box (6-8).
func (up UserProblem) Mastered() bool {
	return up.BoxLevel >= FirstMasteredBox
}

// Attempt is an append-only record of one problem attempt.
type Attempt struct {
	AttemptID string
	ProblemID string

	// LeetcodeID is denormalized from the UserProblem row so session
	// reducers and bridge-review lookups avoid a join per attempt.
	LeetcodeID int

	AttemptDate         time.Time
	Success             bool
	TimeSpentSeconds    int
	PerceivedDifficulty float64

	// SessionID is empty for attempts recorded outside any session.
	SessionID string
}

// ============================================================================
// Tag mastery
// ============================================================================

// StruggleHistory tracks how long a tag has resisted mastery.
type StruggleHistory struct {
	// ConsecutiveStruggles counts evaluations that left the tag
	// unmastered despite enough attempts. Reset on mastery.
	ConsecutiveStruggles int

	DaysWithoutProgress int
	TotalAttempts       int
}

// TagMastery is the per-tag roll-up recomputed from UserProblem rows and
// attempts. It is replaced wholesale, never patched incrementally.
type TagMastery struct {
	Tag                string
	TotalAttempts      int
	SuccessfulAttempts int

	// DecayScore is the stability-weighted mean decay of member
	// problems, in [0,1].
	DecayScore float64

	Mastered        bool
	LastAttemptDate *time.Time
	Struggle        StruggleHistory
}

// SuccessRate returns successful/total attempts, or 0 for none.
func (tm TagMastery) SuccessRate() float64 {
	if tm.TotalAttempts == 0 {
		return 0
	}
	return float64(tm.SuccessfulAttempts) / float64(tm.TotalAttempts)
}

// MasteryDelta is the per-tag change emitted by the post-session reducer.
type MasteryDelta struct {
	Tag          string
	PreMastered  bool
	PostMastered bool

	// StrengthDelta is the change in total attempts for the tag.
	StrengthDelta int

	// DecayDelta is the change in the tag decay score.
	DecayDelta float64
}

// IsNoop reports whether the delta carries no observable change.
func (d MasteryDelta) IsNoop() bool {
	return d.PreMastered == d.PostMastered && d.StrengthDelta == 0 && d.DecayDelta == 0
}

// ============================================================================
// Session state (singleton per user)
// ============================================================================

// PerformanceSnapshot is the last completed session's headline numbers.
type PerformanceSnapshot struct {
	Accuracy        float64
	EfficiencyScore float64
}

// EscapeHatchState tracks anti-stagnation counters.
type EscapeHatchState struct {
	SessionsAtCurrentDifficulty int
	SessionsWithoutPromotion    int

	// Activated records tags promoted through a time-based escape hatch.
	Activated map[string]bool

	// CurrentPromotionType names the rule that drove the last promotion
	// ("performance", "session_escape", ...). Empty if none.
	CurrentPromotionType string
}

// SessionState is the per-user adaptive settings record. It is mutated
// only by the settings computation at session start and the reducer at
// session end.
type SessionState struct {
	NumSessionsCompleted int
	CurrentDifficultyCap Difficulty

	// TagIndex controls how many focus tags are in the active window.
	TagIndex int

	SessionLength   int
	NewProblemCount int

	// CurrentAllowedTags is the ordered active tag window.
	CurrentAllowedTags []string

	LastPerformance PerformanceSnapshot
	EscapeHatches   EscapeHatchState

	// SessionsAtCurrentTagCount counts sessions since the tag window
	// last widened.
	SessionsAtCurrentTagCount int

	// CurrentTier is the tier the user is working, as of the last
	// settings computation.
	CurrentTier TagClassification

	// TierStartDate is when the user entered CurrentTier. Nil until the
	// first settings computation. Drives the time-based tier escape.
	TierStartDate *time.Time
}

// ============================================================================
// Sessions
// ============================================================================

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionDraft      SessionStatus = "draft"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionExpired    SessionStatus = "expired"
)

// SessionType describes what kind of practice the session is.
type SessionType string

const (
	SessionTypeStandard      SessionType = "standard"
	SessionTypeInterviewLike SessionType = "interview-like"
	SessionTypeFullInterview SessionType = "full-interview"
	SessionTypeTracking      SessionType = "tracking"
)

// SessionOrigin records which subsystem created the session.
type SessionOrigin string

const (
	OriginGenerator SessionOrigin = "generator"
	OriginTracking  SessionOrigin = "tracking"
	OriginInterview SessionOrigin = "interview"
)

// SelectionType tags why a problem entered a session.
type SelectionType string

const (
	SelectionNew            SelectionType = "new"
	SelectionLearningReview SelectionType = "learning_review"
	SelectionTriggered      SelectionType = "triggered_review"
	SelectionPassiveReview  SelectionType = "passive_review"
	SelectionFallback       SelectionType = "fallback"
	SelectionGuardRail      SelectionType = "guard_rail_replacement"
)

// SelectionReason explains a problem's presence in a session.
type SelectionReason struct {
	Type   SelectionType
	Reason string

	// TriggeredBy is the failed leetcode id that triggered a bridge
	// review. Zero when not a triggered review.
	TriggeredBy int

	// AggregateStrength is the summed relationship weight that selected
	// a triggered review.
	AggregateStrength float64
}

// SessionProblem pairs a catalog problem with its selection reason.
type SessionProblem struct {
	Problem Problem
	Reason  SelectionReason
}

// Session is one assembled practice session.
type Session struct {
	SessionID        string
	Date             time.Time
	Status           SessionStatus
	Problems         []SessionProblem
	Attempts         []Attempt
	SessionType      SessionType
	Origin           SessionOrigin
	LastActivityTime time.Time
}

// ContainsProblem reports whether the session already holds the given
// leetcode id.
func (s Session) ContainsProblem(leetcodeID int) bool {
	for _, sp := range s.Problems {
		if sp.Problem.LeetcodeID == leetcodeID {
			return true
		}
	}
	return false
}

// AttemptedIDs returns the set of leetcode ids attempted in the session.
func (s Session) AttemptedIDs() map[int]bool {
	ids := make(map[int]bool, len(s.Attempts))
	for _, a := range s.Attempts {
		ids[a.LeetcodeID] = true
	}
	return ids
}

// ProgressRatio returns attempted problems over session problems, in
// [0,1]. Sessions with no problems report zero progress.
func (s Session) ProgressRatio() float64 {
	if len(s.Problems) == 0 {
		return 0
	}
	ids := s.AttemptedIDs()
	attempted := 0
	for _, sp := range s.Problems {
		if ids[sp.Problem.LeetcodeID] {
			attempted++
		}
	}
	return float64(attempted) / float64(len(s.Problems))
}

// SessionAnalytics is the append-only per-session summary.
type SessionAnalytics struct {
	SessionID             string
	CompletedAt           time.Time
	Accuracy              float64
	AvgTimeSeconds        float64
	StrongTags            []string
	WeakTags              []string
	PredominantDifficulty Difficulty
}

// ============================================================================
// Pattern ladders
// ============================================================================

// Ladder sizes by tag role.
const (
	LadderSizeFocus   = 12
	LadderSizeTier    = 9
	LadderSizeDefault = 5
)

// LadderEntry is one rung of a pattern ladder.
type LadderEntry struct {
	LeetcodeID int
	Difficulty Difficulty
	DecayScore float64

	// Connections lists related leetcode ids.
	Connections []int

	Attempted bool
}

// PatternLadder is a per-tag ordered sequence of catalog problems.
type PatternLadder struct {
	Tag      string
	Problems []LadderEntry

	// LadderSize is 12 for focus tags, 9 for tier tags, 5 otherwise.
	LadderSize int
}

// FullyAttempted reports whether every rung has been attempted.
func (pl PatternLadder) FullyAttempted() bool {
	if len(pl.Problems) == 0 {
		return false
	}
	for _, e := range pl.Problems {
		if !e.Attempted {
			return false
		}
	}
	return true
}

// ============================================================================
// Staleness classification
// ============================================================================

// StalenessClass is the classifier verdict for an active session.
type StalenessClass string

const (
	StaleActive                StalenessClass = "active"
	StaleInterviewActive       StalenessClass = "interview_active"
	StaleInterviewStale        StalenessClass = "interview_stale"
	StaleInterviewAbandoned    StalenessClass = "interview_abandoned"
	StaleTrackingActive        StalenessClass = "tracking_active"
	StaleTrackingStale         StalenessClass = "tracking_stale"
	StaleAbandonedAtStart      StalenessClass = "abandoned_at_start"
	StaleAutoCompleteCandidate StalenessClass = "auto_complete_candidate"
	StaleStalledWithProgress   StalenessClass = "stalled_with_progress"
	StaleTrackingOnlyUser      StalenessClass = "tracking_only_user"
	StaleUnclear               StalenessClass = "unclear"
)

// RecommendedAction is what the engine should do with a classified session.
type RecommendedAction string

const (
	ActionNone                 RecommendedAction = "no_action"
	ActionExpire               RecommendedAction = "expire"
	ActionAutoComplete         RecommendedAction = "auto_complete"
	ActionCreateNewTracking    RecommendedAction = "create_new_tracking"
	ActionRefreshGuidedSession RecommendedAction = "refresh_guided_session"
	ActionFlagForUserChoice    RecommendedAction = "flag_for_user_choice"
)
