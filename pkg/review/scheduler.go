// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package review produces the daily review schedule from the user's
// spaced-repetition rows.
package review

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/decay"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// Config wires the review scheduler.
type Config struct {
	UserProblems storage.UserProblemStore
	Clock        storage.Clock
	Logger       *zap.Logger
}

// Scheduler computes which problems are due for review.
type Scheduler struct {
	userProblems storage.UserProblemStore
	clock        storage.Clock
	logger       *zap.Logger
}

// NewScheduler creates a review scheduler.
func NewScheduler(config Config) (*Scheduler, error) {
	if config.UserProblems == nil {
		return nil, fmt.Errorf("user problem store is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Scheduler{
		userProblems: config.UserProblems,
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

// DueProblem is one schedule entry: the user problem annotated with its
// decay score at schedule time.
type DueProblem struct {
	types.UserProblem

	// DecayScore is the forgetting-curve value at schedule time. Lower
	// means staler.
	DecayScore float64
}

// Schedule is the ordered daily review schedule.
type Schedule struct {
	// Due holds every due problem: schedule ascending, then decay
	// ascending (staler first), then total attempts ascending.
	Due []DueProblem
}

// Learning returns the due problems in learning boxes (1-5), preserving
// schedule order.
func (s Schedule) Learning() []DueProblem {
	var out []DueProblem
	for _, dp := range s.Due {
		if !dp.Mastered() {
			out = append(out, dp)
		}
	}
	return out
}

// MasteredDue returns the due problems in mastered boxes (6-8),
// preserving schedule order.
func (s Schedule) MasteredDue() []DueProblem {
	var out []DueProblem
	for _, dp := range s.Due {
		if dp.Mastered() {
			out = append(out, dp)
		}
	}
	return out
}

// DailySchedule computes the problems due now. A problem is due iff its
// review schedule has passed and it is not cooling down.
func (s *Scheduler) DailySchedule(ctx context.Context) (Schedule, error) {
	now := s.clock.Now()

	rows, err := s.userProblems.ListRange(ctx, storage.UserProblemRange{DueBefore: &now})
	if err != nil {
		return Schedule{}, fmt.Errorf("failed to list due problems: %w", err)
	}

	var due []DueProblem
	for _, up := range rows {
		if up.CooldownUntil != nil && up.CooldownUntil.After(now) {
			continue
		}
		due = append(due, DueProblem{
			UserProblem: up,
			DecayScore:  decay.Score(up.LastAttemptDate, up.AttemptStats.SuccessRate(), up.Stability, now),
		})
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].ReviewSchedule.Equal(due[j].ReviewSchedule) {
			return due[i].ReviewSchedule.Before(due[j].ReviewSchedule)
		}
		if due[i].DecayScore != due[j].DecayScore {
			return due[i].DecayScore < due[j].DecayScore
		}
		return due[i].AttemptStats.Total < due[j].AttemptStats.Total
	})

	s.logger.Debug("daily schedule computed",
		zap.Int("due", len(due)),
		zap.Time("now", now))

	return Schedule{Due: due}, nil
}
