// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package settings computes the next session's configuration from the
// user's session state, last performance, and recency of practice.
package settings

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

const (
	// Onboarding defaults, used for the first sessions and as the safe
	// fallback for malformed state.
	OnboardingSessions       = 3
	OnboardingSessionLength  = 4
	OnboardingNewProblems    = 4
	OnboardingDifficultyCap  = types.DifficultyEasy

	// Promotion gate.
	PromoteAccuracy   = 0.85
	PromoteEfficiency = 0.70
	PromoteMaxIdle    = 3 // days

	// Demotion gate.
	DemoteAccuracy = 0.50
	DemoteMinIdle  = 5 // days

	MaxSessionLength  = 10
	MaxNewProblems    = 7
	DemotedMaxLength  = 5
	DemotedNewCount   = 1

	// Tag-window expansion.
	ExpandMinSessions = 3
	ExpandAccuracy    = 0.70
	ExpandEfficiency  = 0.60
	StagnationLimit   = 5

	// Session-based difficulty escape hatch.
	DifficultyEscapeSessions = 10
)

// Config wires the settings engine.
type Config struct {
	Clock  storage.Clock
	Logger *zap.Logger
}

// Engine computes session settings.
type Engine struct {
	clock  storage.Clock
	logger *zap.Logger
}

// NewEngine creates a settings engine.
func NewEngine(config Config) (*Engine, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Engine{clock: config.Clock, logger: config.Logger}, nil
}

// Input is everything Compute consumes.
type Input struct {
	// State is the current session state. A zero value means a brand-new
	// user.
	State types.SessionState

	// FocusTags is the current tier's active practice window, best first.
	FocusTags []string

	// Tier is the tier the focus tags came from.
	Tier types.TagClassification

	// LastAttemptDate is the most recent attempt across all problems.
	// Nil when the user has never attempted anything.
	LastAttemptDate *time.Time
}

// Compute derives the next session's settings. The returned state is what
// the caller persists; the input state is not mutated. Malformed state
// falls back to onboarding defaults rather than failing.
func (e *Engine) Compute(input Input) types.SessionState {
	now := e.clock.Now()
	state := input.State

	if malformed(state) {
		e.logger.Warn("malformed session state, using onboarding defaults",
			zap.Int("session_length", state.SessionLength),
			zap.Int("new_problem_count", state.NewProblemCount))
		state = onboardingState()
	}

	if state.NumSessionsCompleted < OnboardingSessions {
		state.SessionLength = OnboardingSessionLength
		state.NewProblemCount = OnboardingNewProblems
		state.CurrentDifficultyCap = OnboardingDifficultyCap
	} else {
		e.applyDecisionTable(&state, input.LastAttemptDate, now)
		e.applyDifficultyEscape(&state)
		e.applyTagExpansion(&state)
	}

	e.applyTierTracking(&state, input.Tier, now)
	state.CurrentAllowedTags = allowedWindow(input.FocusTags, state.TagIndex)

	return state
}

// applyDecisionTable applies the promotion/demotion rows. Exactly one row
// fires per computation.
func (e *Engine) applyDecisionTable(state *types.SessionState, lastAttempt *time.Time, now time.Time) {
	perf := state.LastPerformance
	idleDays := daysSince(lastAttempt, now)

	switch {
	case perf.Accuracy >= PromoteAccuracy && perf.EfficiencyScore >= PromoteEfficiency && idleDays <= PromoteMaxIdle:
		e.promote(state, "performance")

	case perf.Accuracy <= DemoteAccuracy && idleDays >= DemoteMinIdle:
		state.SessionLength = min(DemotedMaxLength, state.SessionLength)
		state.NewProblemCount = DemotedNewCount
		if state.CurrentDifficultyCap != types.DifficultyEasy {
			state.CurrentDifficultyCap = types.DifficultyEasy
			state.EscapeHatches.SessionsAtCurrentDifficulty = 0
		}
		// Narrow the tag window back to the single strongest focus tag.
		state.TagIndex = 0
		state.SessionsAtCurrentTagCount = 0
		e.logger.Info("session settings demoted",
			zap.Float64("accuracy", perf.Accuracy),
			zap.Float64("idle_days", idleDays))
	}
}

// applyDifficultyEscape forces a promotion attempt after too many sessions
// stuck at one difficulty cap.
func (e *Engine) applyDifficultyEscape(state *types.SessionState) {
	if state.EscapeHatches.SessionsAtCurrentDifficulty < DifficultyEscapeSessions {
		return
	}
	e.promote(state, "session_escape")
}

func (e *Engine) promote(state *types.SessionState, promotionType string) {
	state.SessionLength = min(state.SessionLength+1, MaxSessionLength)
	state.NewProblemCount = min(state.NewProblemCount+1, MaxNewProblems)
	if promoted := state.CurrentDifficultyCap.Promote(); promoted != state.CurrentDifficultyCap {
		state.CurrentDifficultyCap = promoted
		state.EscapeHatches.SessionsAtCurrentDifficulty = 0
	}
	state.EscapeHatches.SessionsWithoutPromotion = 0
	state.EscapeHatches.CurrentPromotionType = promotionType
	e.logger.Info("session settings promoted",
		zap.String("promotion_type", promotionType),
		zap.String("difficulty_cap", string(state.CurrentDifficultyCap)))
}

// applyTagExpansion widens the tag window on good performance (OR-based)
// or unconditionally after stagnating too long at one width.
func (e *Engine) applyTagExpansion(state *types.SessionState) {
	perf := state.LastPerformance

	expand := false
	switch {
	case state.SessionsAtCurrentTagCount >= StagnationLimit:
		expand = true
		e.logger.Info("tag window forced wider by stagnation fallback",
			zap.Int("sessions_at_width", state.SessionsAtCurrentTagCount))
	case state.SessionsAtCurrentTagCount >= ExpandMinSessions &&
		(perf.Accuracy >= ExpandAccuracy || perf.EfficiencyScore >= ExpandEfficiency):
		expand = true
	}

	if expand {
		state.TagIndex++
		state.SessionsAtCurrentTagCount = 0
	}
}

// applyTierTracking records tier transitions so the time-based tier escape
// has a start date to measure from.
func (e *Engine) applyTierTracking(state *types.SessionState, tier types.TagClassification, now time.Time) {
	if tier == "" {
		return
	}
	if state.CurrentTier != tier || state.TierStartDate == nil {
		if state.CurrentTier != "" && state.CurrentTier != tier {
			e.logger.Info("tier changed",
				zap.String("from", string(state.CurrentTier)),
				zap.String("to", string(tier)))
		}
		state.CurrentTier = tier
		state.TierStartDate = &now
	}
}

// allowedWindow is the first tagIndex+1 focus tags.
func allowedWindow(focusTags []string, tagIndex int) []string {
	if len(focusTags) == 0 {
		return nil
	}
	width := tagIndex + 1
	if width > len(focusTags) {
		width = len(focusTags)
	}
	window := make([]string, width)
	copy(window, focusTags[:width])
	return window
}

// malformed reports whether the state cannot drive a session.
func malformed(state types.SessionState) bool {
	if state.NumSessionsCompleted == 0 && state.SessionLength == 0 {
		// Zero value for a brand-new user is fine; onboarding row applies.
		return false
	}
	if state.SessionLength <= 0 || state.SessionLength > MaxSessionLength {
		return true
	}
	if state.NewProblemCount <= 0 || state.NewProblemCount > MaxNewProblems {
		return true
	}
	if state.NumSessionsCompleted < 0 || state.TagIndex < 0 {
		return true
	}
	switch state.CurrentDifficultyCap {
	case types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard:
	default:
		return true
	}
	return false
}

func onboardingState() types.SessionState {
	return types.SessionState{
		SessionLength:        OnboardingSessionLength,
		NewProblemCount:      OnboardingNewProblems,
		CurrentDifficultyCap: OnboardingDifficultyCap,
	}
}

// daysSince returns fractional days between then and now; a nil timestamp
// counts as infinitely long ago so the demotion row can fire for users who
// stopped practicing.
func daysSince(then *time.Time, now time.Time) float64 {
	if then == nil {
		return 1e9
	}
	return now.Sub(*then).Hours() / 24
}
