// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package mastery recomputes per-tag mastery from the user's problem
// rows and attempt history. The recompute is a full rebuild per tag:
// each TagMastery row is either replaced atomically or left unchanged,
// so one failing tag never corrupts the others. Rebuilding is O(number
// of user problems) and idempotent for a fixed clock.
package mastery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/decay"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// Adaptive mastery thresholds. The base rule is strict; the escape
// hatches trade a lower success rate for more evidence so a struggling
// user is not locked out of progression.
const (
	BaseMasteryRate     = 0.80
	BaseMasteryAttempts = 4

	LightStruggleRate     = 0.75
	LightStruggleAttempts = 10

	ModerateStruggleRate     = 0.70
	ModerateStruggleAttempts = 20

	HeavyStruggleRate      = 0.65
	HeavyStruggleThreshold = 6

	// Time-based escape: a tag untouched for this long with a decent
	// success rate counts as effectively mastered for progression.
	EffectiveMasteryDays = 20
	EffectiveMasteryRate = 0.6
)

// Config wires the mastery engine.
type Config struct {
	UserProblems storage.UserProblemStore
	TagMastery   storage.TagMasteryStore
	Catalog      storage.ProblemCatalog
	Clock        storage.Clock
	Logger       *zap.Logger
}

// Engine recomputes TagMastery rows.
type Engine struct {
	userProblems storage.UserProblemStore
	tagMastery   storage.TagMasteryStore
	catalog      storage.ProblemCatalog
	clock        storage.Clock
	logger       *zap.Logger
}

// NewEngine creates a mastery engine.
func NewEngine(config Config) (*Engine, error) {
	if config.UserProblems == nil {
		return nil, fmt.Errorf("user problem store is required")
	}
	if config.TagMastery == nil {
		return nil, fmt.Errorf("tag mastery store is required")
	}
	if config.Catalog == nil {
		return nil, fmt.Errorf("problem catalog is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Engine{
		userProblems: config.UserProblems,
		tagMastery:   config.TagMastery,
		catalog:      config.Catalog,
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

// tagAggregate accumulates per-tag sums during a rebuild.
type tagAggregate struct {
	totalAttempts      int
	successfulAttempts int
	weightedDecay      float64
	stabilitySum       float64
	lastAttempt        *time.Time
}

// RecomputeAll rebuilds every tag that has at least one attempted
// problem. Returns the rebuilt rows.
func (e *Engine) RecomputeAll(ctx context.Context) ([]types.TagMastery, error) {
	return e.Recompute(ctx, nil)
}

// Recompute rebuilds the given tags from UserProblem rows. A nil tag
// list rebuilds every tag found. A tag whose store write fails is logged
// and skipped; the remaining tags still commit.
func (e *Engine) Recompute(ctx context.Context, tags []string) ([]types.TagMastery, error) {
	rows, err := e.userProblems.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list user problems: %w", err)
	}

	now := e.clock.Now()
	aggregates := make(map[string]*tagAggregate)

	var wanted map[string]bool
	if tags != nil {
		wanted = make(map[string]bool, len(tags))
		for _, t := range tags {
			wanted[t] = true
		}
	}

	for _, up := range rows {
		if up.AttemptStats.Total == 0 {
			continue
		}
		problem, err := e.catalog.GetByID(ctx, up.LeetcodeID)
		if err != nil {
			e.logger.Warn("catalog lookup failed during mastery rebuild",
				zap.Int("leetcode_id", up.LeetcodeID),
				zap.Error(err))
			continue
		}

		stability := up.Stability
		if stability <= 0 {
			stability = types.DefaultStability
		}
		problemDecay := decay.Score(up.LastAttemptDate, up.AttemptStats.SuccessRate(), stability, now)

		for _, tag := range problem.Tags {
			if wanted != nil && !wanted[tag] {
				continue
			}
			agg, ok := aggregates[tag]
			if !ok {
				agg = &tagAggregate{}
				aggregates[tag] = agg
			}
			agg.totalAttempts += up.AttemptStats.Total
			agg.successfulAttempts += up.AttemptStats.Successful
			agg.weightedDecay += problemDecay * stability
			agg.stabilitySum += stability
			if up.LastAttemptDate != nil {
				if agg.lastAttempt == nil || up.LastAttemptDate.After(*agg.lastAttempt) {
					agg.lastAttempt = up.LastAttemptDate
				}
			}
		}
	}

	var rebuilt []types.TagMastery
	for tag, agg := range aggregates {
		row, err := e.evaluateTag(ctx, tag, agg, now)
		if err != nil {
			e.logger.Warn("tag evaluation failed, leaving row unchanged",
				zap.String("tag", tag),
				zap.Error(err))
			continue
		}
		if err := e.tagMastery.Put(ctx, row); err != nil {
			e.logger.Warn("tag mastery write failed, leaving row unchanged",
				zap.String("tag", tag),
				zap.Error(err))
			continue
		}
		rebuilt = append(rebuilt, row)
	}

	e.logger.Debug("tag mastery rebuilt",
		zap.Int("tags", len(rebuilt)),
		zap.Int("user_problems", len(rows)))

	return rebuilt, nil
}

// evaluateTag turns one aggregate into a fresh TagMastery row, carrying
// struggle history forward from the previous row.
func (e *Engine) evaluateTag(ctx context.Context, tag string, agg *tagAggregate, now time.Time) (types.TagMastery, error) {
	prev, err := e.tagMastery.Get(ctx, tag)
	havePrev := err == nil
	if err != nil && !storage.IsNotFound(err) {
		return types.TagMastery{}, fmt.Errorf("failed to load previous mastery for %q: %w", tag, err)
	}

	row := types.TagMastery{
		Tag:                tag,
		TotalAttempts:      agg.totalAttempts,
		SuccessfulAttempts: agg.successfulAttempts,
		LastAttemptDate:    agg.lastAttempt,
	}
	if agg.stabilitySum > 0 {
		row.DecayScore = agg.weightedDecay / agg.stabilitySum
	}

	struggle := prev.Struggle
	row.Mastered = Decide(row.SuccessRate(), row.TotalAttempts, struggle.ConsecutiveStruggles)

	if row.Mastered {
		struggle.ConsecutiveStruggles = 0
		struggle.DaysWithoutProgress = 0
	} else if row.TotalAttempts >= BaseMasteryAttempts {
		// Count a struggle only when new evidence arrived since the
		// last evaluation, so rebuilding twice yields identical rows.
		if !havePrev || row.TotalAttempts > prev.TotalAttempts {
			struggle.ConsecutiveStruggles++
		}
		if agg.lastAttempt != nil {
			struggle.DaysWithoutProgress = int(now.Sub(*agg.lastAttempt).Hours() / 24)
		}
	}
	struggle.TotalAttempts = row.TotalAttempts
	row.Struggle = struggle

	return row, nil
}

// Decide applies the adaptive mastery thresholds to a tag's evidence.
func Decide(successRate float64, totalAttempts, consecutiveStruggles int) bool {
	switch {
	case totalAttempts >= BaseMasteryAttempts && successRate >= BaseMasteryRate:
		return true
	case totalAttempts >= LightStruggleAttempts && successRate >= LightStruggleRate:
		return true
	case totalAttempts >= ModerateStruggleAttempts && successRate >= ModerateStruggleRate:
		return true
	case consecutiveStruggles >= HeavyStruggleThreshold && successRate >= HeavyStruggleRate:
		return true
	default:
		return false
	}
}

// EffectivelyMastered reports whether a tag passes the time-based escape
// hatch: untouched for EffectiveMasteryDays with a success rate of at
// least EffectiveMasteryRate. Progression treats such tags as mastered.
func EffectivelyMastered(tm types.TagMastery, now time.Time) bool {
	if tm.Mastered {
		return true
	}
	if tm.LastAttemptDate == nil || tm.TotalAttempts == 0 {
		return false
	}
	days := now.Sub(*tm.LastAttemptDate).Hours() / 24
	return days >= EffectiveMasteryDays && tm.SuccessRate() >= EffectiveMasteryRate
}
