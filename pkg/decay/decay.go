// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package decay implements the forgetting-curve and Leitner-box model.
//
// A problem's retention is modeled as an exponential forgetting curve:
// score = exp(-elapsedDays / (stability * (0.5 + successRate))), clamped
// to [0,1]. Higher stability and higher success rate slow the decay.
// Box levels map to fixed review intervals; success moves a problem up
// one box, failure drops it two.
//
// All functions in this package are pure. They never suspend and never
// touch a store.
package decay

import (
	"math"
	"time"

	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// boxIntervals maps box level to the review interval added to the last
// attempt date.
var boxIntervals = map[int]time.Duration{
	1: 1 * 24 * time.Hour,
	2: 2 * 24 * time.Hour,
	3: 4 * 24 * time.Hour,
	4: 7 * 24 * time.Hour,
	5: 14 * 24 * time.Hour,
	6: 30 * 24 * time.Hour,
	7: 60 * 24 * time.Hour,
	8: 120 * 24 * time.Hour,
}

// Interval returns the review interval for a box level. Levels outside
// 1..8 are clamped.
func Interval(boxLevel int) time.Duration {
	if boxLevel < types.MinBoxLevel {
		boxLevel = types.MinBoxLevel
	}
	if boxLevel > types.MaxBoxLevel {
		boxLevel = types.MaxBoxLevel
	}
	return boxIntervals[boxLevel]
}

// Score computes the decay score in [0,1] for a problem last attempted at
// lastAttempt, as observed at now. A nil lastAttempt means the problem
// was never attempted and is treated as fully retained (1.0).
//
// The score is monotonically decreasing in elapsed days and monotonically
// increasing in successRate and stability.
func Score(lastAttempt *time.Time, successRate, stability float64, now time.Time) float64 {
	if lastAttempt == nil {
		return 1.0
	}
	if stability <= 0 {
		stability = types.DefaultStability
	}
	if successRate < 0 {
		successRate = 0
	} else if successRate > 1 {
		successRate = 1
	}

	elapsedDays := now.Sub(*lastAttempt).Hours() / 24
	if elapsedDays < 0 {
		elapsedDays = 0
	}

	score := math.Exp(-elapsedDays / (stability * (0.5 + successRate)))
	return clamp01(score)
}

// ScoreWithDefaultStability is Score with the default stability of 6.0.
func ScoreWithDefaultStability(lastAttempt *time.Time, successRate float64, now time.Time) float64 {
	return Score(lastAttempt, successRate, types.DefaultStability, now)
}

// NextReview computes the next review timestamp for a box level. Box 1
// with a nil lastAttempt yields now (the problem is due immediately).
func NextReview(boxLevel int, lastAttempt *time.Time, now time.Time) time.Time {
	if lastAttempt == nil {
		return now
	}
	return lastAttempt.Add(Interval(boxLevel))
}

// Transition is the result of applying one attempt outcome to a box.
type Transition struct {
	// NewBox is the box level after the attempt.
	NewBox int

	// ConsecutiveFailures is the updated failure streak.
	ConsecutiveFailures int

	// ForcedReset is true when three consecutive failures forced the
	// box back to 1 with an immediate review.
	ForcedReset bool
}

// BoxTransition applies a success or failure to the current box level.
// Success increments the box (cap 8) and clears the failure streak.
// Failure drops the box by two (floor 1) and increments the streak; the
// third consecutive failure forces the box to 1 regardless of level.
func BoxTransition(currentBox int, success bool, consecutiveFailures int) Transition {
	if currentBox < types.MinBoxLevel {
		currentBox = types.MinBoxLevel
	}
	if currentBox > types.MaxBoxLevel {
		currentBox = types.MaxBoxLevel
	}

	if success {
		newBox := currentBox + 1
		if newBox > types.MaxBoxLevel {
			newBox = types.MaxBoxLevel
		}
		return Transition{NewBox: newBox, ConsecutiveFailures: 0}
	}

	failures := consecutiveFailures + 1
	if failures >= types.MaxConsecutiveFails {
		return Transition{NewBox: types.MinBoxLevel, ConsecutiveFailures: failures, ForcedReset: true}
	}

	newBox := currentBox - 2
	if newBox < types.MinBoxLevel {
		newBox = types.MinBoxLevel
	}
	return Transition{NewBox: newBox, ConsecutiveFailures: failures}
}

// Apply runs one attempt outcome through the full model and returns the
// updated UserProblem row. ReviewSchedule, AttemptStats, BoxLevel,
// ConsecutiveFailures, LastAttemptDate, and CooldownUntil are all
// recomputed. A forced reset schedules an immediate review but places a
// one-day cooldown so the problem cannot flood consecutive sessions.
func Apply(up types.UserProblem, attempt types.Attempt, now time.Time) types.UserProblem {
	tr := BoxTransition(up.BoxLevel, attempt.Success, up.ConsecutiveFailures)

	up.BoxLevel = tr.NewBox
	up.ConsecutiveFailures = tr.ConsecutiveFailures

	up.AttemptStats.Total++
	if attempt.Success {
		up.AttemptStats.Successful++
	} else {
		up.AttemptStats.Unsuccessful++
	}

	attemptDate := attempt.AttemptDate
	if attemptDate.IsZero() {
		attemptDate = now
	}
	up.LastAttemptDate = &attemptDate
	up.PerceivedDifficulty = attempt.PerceivedDifficulty

	if tr.ForcedReset {
		up.ReviewSchedule = now
		cooldown := now.Add(24 * time.Hour)
		up.CooldownUntil = &cooldown
	} else {
		up.ReviewSchedule = NextReview(up.BoxLevel, up.LastAttemptDate, now)
		up.CooldownUntil = nil
	}

	return up
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
