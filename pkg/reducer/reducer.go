// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package reducer folds a completed session back into user state: box
// transitions, tag mastery, analytics, session state, and ladders.
package reducer

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/decay"
	"github.com/smithrashell/CodeMaster-sub008/pkg/ladder"
	"github.com/smithrashell/CodeMaster-sub008/pkg/mastery"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

const (
	// StrongTagAccuracy and WeakTagAccuracy bound the per-session tag
	// classification in analytics.
	StrongTagAccuracy = 0.8
	WeakTagAccuracy   = 0.4
)

// timeBudgetSeconds is the per-difficulty budget behind the efficiency
// score: the share of successful attempts finished inside their budget.
var timeBudgetSeconds = map[types.Difficulty]int{
	types.DifficultyEasy:   15 * 60,
	types.DifficultyMedium: 25 * 60,
	types.DifficultyHard:   40 * 60,
}

// Config wires the reducer.
type Config struct {
	Catalog       storage.ProblemCatalog
	UserProblems  storage.UserProblemStore
	TagMastery    storage.TagMasteryStore
	Analytics     storage.SessionAnalyticsStore
	SessionStates storage.SessionStateStore
	Ladders       storage.PatternLadderStore
	Mastery       *mastery.Engine
	LadderGen     *ladder.Generator
	Clock         storage.Clock
	Logger        *zap.Logger

	// Retrier backs the reducer's writes off on transient failures. Nil
	// gets the default per-priority policies.
	Retrier *storage.Retrier
}

// Reducer applies a completed session to user state.
type Reducer struct {
	catalog       storage.ProblemCatalog
	userProblems  storage.UserProblemStore
	tagMastery    storage.TagMasteryStore
	analytics     storage.SessionAnalyticsStore
	sessionStates storage.SessionStateStore
	ladders       storage.PatternLadderStore
	mastery       *mastery.Engine
	ladderGen     *ladder.Generator
	clock         storage.Clock
	logger        *zap.Logger
	retrier       *storage.Retrier
}

// NewReducer creates a post-session reducer.
func NewReducer(config Config) (*Reducer, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("problem catalog is required")
	}
	if config.UserProblems == nil {
		return nil, fmt.Errorf("user problem store is required")
	}
	if config.TagMastery == nil {
		return nil, fmt.Errorf("tag mastery store is required")
	}
	if config.Analytics == nil {
		return nil, fmt.Errorf("analytics store is required")
	}
	if config.SessionStates == nil {
		return nil, fmt.Errorf("session state store is required")
	}
	if config.Mastery == nil {
		return nil, fmt.Errorf("mastery engine is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Retrier == nil {
		config.Retrier = storage.NewRetrier(nil, config.Logger)
	}
	return &Reducer{
		catalog:       config.Catalog,
		userProblems:  config.UserProblems,
		tagMastery:    config.TagMastery,
		analytics:     config.Analytics,
		sessionStates: config.SessionStates,
		ladders:       config.Ladders,
		mastery:       config.Mastery,
		ladderGen:     config.LadderGen,
		clock:         config.Clock,
		logger:        config.Logger,
		retrier:       config.Retrier,
	}, nil
}

// Result is everything one reducer pass produced.
type Result struct {
	Analytics types.SessionAnalytics
	Deltas    []types.MasteryDelta
	State     types.SessionState

	// AlreadyApplied is true when the session had been reduced before;
	// Analytics then carries the stored row and Deltas is empty.
	AlreadyApplied bool
}

// Apply folds the completed session into user state. Calling it again
// for the same session returns the stored analytics without reapplying.
func (r *Reducer) Apply(ctx context.Context, session types.Session) (Result, error) {
	if session.Status != types.SessionCompleted {
		return Result{}, fmt.Errorf("%w: session %s is %s, not completed",
			storage.ErrInvalidInput, session.SessionID, session.Status)
	}

	if existing, err := r.analytics.Get(ctx, session.SessionID); err == nil {
		r.logger.Debug("session already reduced", zap.String("session_id", session.SessionID))
		state, stateErr := r.sessionStates.Get(ctx)
		if stateErr != nil && !storage.IsNotFound(stateErr) {
			return Result{}, fmt.Errorf("failed to load session state: %w", stateErr)
		}
		return Result{Analytics: existing, State: state, AlreadyApplied: true}, nil
	} else if !storage.IsNotFound(err) {
		return Result{}, fmt.Errorf("failed to check prior reduction: %w", err)
	}

	touchedTags, err := r.applyAttempts(ctx, session)
	if err != nil {
		return Result{}, err
	}

	preRows, err := r.masterySnapshot(ctx, touchedTags)
	if err != nil {
		return Result{}, err
	}
	postList, err := r.mastery.Recompute(ctx, touchedTags)
	if err != nil {
		return Result{}, fmt.Errorf("failed to recompute tag mastery: %w", err)
	}
	deltas := computeDeltas(preRows, postList, touchedTags)

	analytics, err := r.computeAnalytics(ctx, session)
	if err != nil {
		return Result{}, err
	}
	err = r.retrier.Do(ctx, storage.PriorityNormal, "analytics.append", func(ctx context.Context) error {
		return r.analytics.Append(ctx, analytics)
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to append session analytics: %w", err)
	}

	state, err := r.updateSessionState(ctx, analytics, r.efficiencyScore(ctx, session))
	if err != nil {
		return Result{}, err
	}

	r.updateLadders(ctx, session)

	r.logger.Info("session reduced",
		zap.String("session_id", session.SessionID),
		zap.Float64("accuracy", analytics.Accuracy),
		zap.Int("mastery_deltas", len(deltas)))

	return Result{Analytics: analytics, Deltas: deltas, State: state}, nil
}

// applyAttempts runs every session attempt through the decay model and
// returns the tags touched. Attempts apply in date order so repeated
// tries of one problem land in sequence.
func (r *Reducer) applyAttempts(ctx context.Context, session types.Session) ([]string, error) {
	attempts := make([]types.Attempt, len(session.Attempts))
	copy(attempts, session.Attempts)
	sort.SliceStable(attempts, func(i, j int) bool {
		return attempts[i].AttemptDate.Before(attempts[j].AttemptDate)
	})

	touched := make(map[string]bool)
	for _, attempt := range attempts {
		up, err := r.userProblems.Get(ctx, attempt.LeetcodeID)
		if storage.IsNotFound(err) {
			up = types.UserProblem{
				ProblemID:  uuid.NewString(),
				LeetcodeID: attempt.LeetcodeID,
				BoxLevel:   types.MinBoxLevel,
				Stability:  types.DefaultStability,
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to load user problem %d: %w", attempt.LeetcodeID, err)
		}

		up = decay.Apply(up, attempt, r.clock.Now())
		err = r.retrier.Do(ctx, storage.PriorityNormal, "user_problems.put", func(ctx context.Context) error {
			return r.userProblems.Put(ctx, up)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to store user problem %d: %w", attempt.LeetcodeID, err)
		}

		p, err := r.catalog.GetByID(ctx, attempt.LeetcodeID)
		if err != nil {
			r.logger.Warn("attempted problem missing from catalog",
				zap.Int("leetcode_id", attempt.LeetcodeID), zap.Error(err))
			continue
		}
		for _, tag := range p.Tags {
			touched[tag] = true
		}
	}

	tags := make([]string, 0, len(touched))
	for tag := range touched {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

func (r *Reducer) masterySnapshot(ctx context.Context, tags []string) (map[string]types.TagMastery, error) {
	out := make(map[string]types.TagMastery, len(tags))
	for _, tag := range tags {
		tm, err := r.tagMastery.Get(ctx, tag)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load tag mastery %q: %w", tag, err)
		}
		out[tag] = tm
	}
	return out, nil
}

// computeDeltas diffs pre and post mastery rows, dropping no-ops.
func computeDeltas(pre map[string]types.TagMastery, post []types.TagMastery, tags []string) []types.MasteryDelta {
	postByTag := make(map[string]types.TagMastery, len(post))
	for _, tm := range post {
		postByTag[tm.Tag] = tm
	}

	var deltas []types.MasteryDelta
	for _, tag := range tags {
		before := pre[tag]
		after, ok := postByTag[tag]
		if !ok {
			continue
		}
		d := types.MasteryDelta{
			Tag:           tag,
			PreMastered:   before.Mastered,
			PostMastered:  after.Mastered,
			StrengthDelta: after.TotalAttempts - before.TotalAttempts,
			DecayDelta:    after.DecayScore - before.DecayScore,
		}
		if d.IsNoop() {
			continue
		}
		deltas = append(deltas, d)
	}
	return deltas
}

// computeAnalytics summarizes the session's attempts.
func (r *Reducer) computeAnalytics(ctx context.Context, session types.Session) (types.SessionAnalytics, error) {
	analytics := types.SessionAnalytics{
		SessionID:   session.SessionID,
		CompletedAt: r.clock.Now(),
	}
	if len(session.Attempts) == 0 {
		return analytics, nil
	}

	successes := 0
	totalTime := 0
	difficultyCounts := make(map[types.Difficulty]int)
	type tagTally struct{ total, success int }
	tallies := make(map[string]*tagTally)

	for _, attempt := range session.Attempts {
		if attempt.Success {
			successes++
		}
		totalTime += attempt.TimeSpentSeconds

		p, err := r.catalog.GetByID(ctx, attempt.LeetcodeID)
		if err != nil {
			continue
		}
		difficultyCounts[p.Difficulty]++
		for _, tag := range p.Tags {
			if tallies[tag] == nil {
				tallies[tag] = &tagTally{}
			}
			tallies[tag].total++
			if attempt.Success {
				tallies[tag].success++
			}
		}
	}

	n := len(session.Attempts)
	analytics.Accuracy = float64(successes) / float64(n)
	analytics.AvgTimeSeconds = float64(totalTime) / float64(n)
	analytics.PredominantDifficulty = predominant(difficultyCounts)

	var tags []string
	for tag := range tallies {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		t := tallies[tag]
		rate := float64(t.success) / float64(t.total)
		if rate >= StrongTagAccuracy {
			analytics.StrongTags = append(analytics.StrongTags, tag)
		} else if rate <= WeakTagAccuracy {
			analytics.WeakTags = append(analytics.WeakTags, tag)
		}
	}

	return analytics, nil
}

// predominant returns the most attempted difficulty, preferring the
// harder one on ties.
func predominant(counts map[types.Difficulty]int) types.Difficulty {
	best := types.DifficultyEasy
	bestCount := -1
	for _, d := range []types.Difficulty{types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard} {
		if counts[d] >= bestCount && counts[d] > 0 {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

// efficiencyScore is the share of successful attempts finished inside
// their per-difficulty time budget.
func (r *Reducer) efficiencyScore(ctx context.Context, session types.Session) float64 {
	successes := 0
	inBudget := 0
	for _, attempt := range session.Attempts {
		if !attempt.Success {
			continue
		}
		successes++
		budget := timeBudgetSeconds[types.DifficultyMedium]
		if p, err := r.catalog.GetByID(ctx, attempt.LeetcodeID); err == nil {
			if b, ok := timeBudgetSeconds[p.Difficulty]; ok {
				budget = b
			}
		}
		if attempt.TimeSpentSeconds <= budget {
			inBudget++
		}
	}
	if successes == 0 {
		return 0
	}
	return float64(inBudget) / float64(successes)
}

// updateSessionState advances the per-user counters.
func (r *Reducer) updateSessionState(ctx context.Context, analytics types.SessionAnalytics, efficiency float64) (types.SessionState, error) {
	state, err := r.sessionStates.Get(ctx)
	if err != nil && !storage.IsNotFound(err) {
		return types.SessionState{}, fmt.Errorf("failed to load session state: %w", err)
	}

	state.NumSessionsCompleted++
	state.SessionsAtCurrentTagCount++
	state.EscapeHatches.SessionsAtCurrentDifficulty++
	state.EscapeHatches.SessionsWithoutPromotion++
	state.LastPerformance = types.PerformanceSnapshot{
		Accuracy:        analytics.Accuracy,
		EfficiencyScore: efficiency,
	}

	err = r.retrier.Do(ctx, storage.PriorityNormal, "session_state.put", func(ctx context.Context) error {
		return r.sessionStates.Put(ctx, state)
	})
	if err != nil {
		return types.SessionState{}, fmt.Errorf("failed to store session state: %w", err)
	}
	return state, nil
}

// updateLadders marks attempted rungs and regenerates fully climbed
// ladders. Ladder failures never fail the reduction.
func (r *Reducer) updateLadders(ctx context.Context, session types.Session) {
	if r.ladders == nil {
		return
	}
	attempted := session.AttemptedIDs()
	if len(attempted) == 0 {
		return
	}

	all, err := r.ladders.List(ctx)
	if err != nil {
		r.logger.Warn("ladder update skipped", zap.Error(err))
		return
	}

	for _, pl := range all {
		changed := false
		for i, entry := range pl.Problems {
			if attempted[entry.LeetcodeID] && !entry.Attempted {
				pl.Problems[i].Attempted = true
				changed = true
			}
		}
		if !changed {
			continue
		}
		if r.ladderGen != nil && pl.FullyAttempted() {
			refreshed, err := r.ladderGen.Refresh(ctx, pl, nil)
			if err != nil {
				r.logger.Warn("ladder regeneration failed",
					zap.String("tag", pl.Tag), zap.Error(err))
			} else {
				pl = refreshed
			}
		}
		if err := r.ladders.Put(ctx, pl); err != nil {
			r.logger.Warn("ladder store failed",
				zap.String("tag", pl.Tag), zap.Error(err))
		}
	}
}
