// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package reducer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/graphs"
	"github.com/smithrashell/CodeMaster-sub008/pkg/ladder"
	"github.com/smithrashell/CodeMaster-sub008/pkg/mastery"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	reducer      *Reducer
	stores       storage.Stores
	userProblems *storage.MemoryUserProblems
	analytics    *storage.MemoryAnalytics
	states       *storage.MemorySessionState
	ladders      *storage.MemoryLadders
	tagMastery   *storage.MemoryTagMastery
}

func testCatalogProblems() []types.Problem {
	return []types.Problem{
		{LeetcodeID: 1, Slug: "two-sum", Difficulty: types.DifficultyEasy, Tags: []string{"array", "hash-table"}},
		{LeetcodeID: 2, Slug: "three-sum", Difficulty: types.DifficultyMedium, Tags: []string{"array"}},
		{LeetcodeID: 3, Slug: "word-break", Difficulty: types.DifficultyHard, Tags: []string{"dynamic-programming"}},
		{LeetcodeID: 4, Slug: "rotate-array", Difficulty: types.DifficultyEasy, Tags: []string{"array"}},
	}
}

func testTagRows() []types.TagRelationship {
	return []types.TagRelationship{
		{Tag: "array", Classification: types.ClassificationCoreConcept, Related: map[string]float64{"hash-table": 0.9}},
		{Tag: "hash-table", Classification: types.ClassificationCoreConcept, Related: map[string]float64{"array": 0.9}},
		{Tag: "dynamic-programming", Classification: types.ClassificationAdvancedTechnique, Related: map[string]float64{"array": 0.4}},
	}
}

func setupReducer(t *testing.T) *fixture {
	return setupReducerConfigured(t, nil)
}

// setupReducerConfigured builds the reducer stack and lets the test
// adjust the Config before construction.
func setupReducerConfigured(t *testing.T, adjust func(*Config)) *fixture {
	stores := storage.NewMemoryStores(testCatalogProblems(), nil, testTagRows())
	clock := storage.NewFixedClock(testNow)

	masteryEngine, err := mastery.NewEngine(mastery.Config{
		UserProblems: stores.UserProblems,
		TagMastery:   stores.TagMastery,
		Catalog:      stores.Catalog,
		Clock:        clock,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)

	tagGraph, err := graphs.NewTagGraph(testTagRows())
	require.NoError(t, err)
	ladderGen, err := ladder.NewGenerator(ladder.Config{
		Catalog:      stores.Catalog,
		UserProblems: stores.UserProblems,
		TagGraph:     tagGraph,
		Clock:        clock,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)

	cfg := Config{
		Catalog:       stores.Catalog,
		UserProblems:  stores.UserProblems,
		TagMastery:    stores.TagMastery,
		Analytics:     stores.Analytics,
		SessionStates: stores.SessionStates,
		Ladders:       stores.Ladders,
		Mastery:       masteryEngine,
		LadderGen:     ladderGen,
		Clock:         clock,
		Logger:        zap.NewNop(),
	}
	if adjust != nil {
		adjust(&cfg)
	}
	r, err := NewReducer(cfg)
	require.NoError(t, err)

	return &fixture{
		reducer:      r,
		stores:       stores,
		userProblems: stores.UserProblems.(*storage.MemoryUserProblems),
		analytics:    stores.Analytics.(*storage.MemoryAnalytics),
		states:       stores.SessionStates.(*storage.MemorySessionState),
		ladders:      stores.Ladders.(*storage.MemoryLadders),
		tagMastery:   stores.TagMastery.(*storage.MemoryTagMastery),
	}
}

func completedSession(attempts ...types.Attempt) types.Session {
	return types.Session{
		SessionID: "s-1",
		Date:      testNow.Add(-time.Hour),
		Status:    types.SessionCompleted,
		Origin:    types.OriginGenerator,
		Attempts:  attempts,
	}
}

func attempt(id int, success bool, seconds int) types.Attempt {
	return types.Attempt{
		AttemptID:        fmt.Sprintf("a-%d-%v", id, success),
		LeetcodeID:       id,
		AttemptDate:      testNow.Add(-30 * time.Minute),
		Success:          success,
		TimeSpentSeconds: seconds,
		SessionID:        "s-1",
	}
}

func TestApply_RejectsIncompleteSession(t *testing.T) {
	f := setupReducer(t)
	session := completedSession(attempt(1, true, 600))
	session.Status = types.SessionInProgress

	_, err := f.reducer.Apply(context.Background(), session)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestApply_BoxTransitionsAndStats(t *testing.T) {
	f := setupReducer(t)

	session := completedSession(
		attempt(1, true, 600),
		attempt(2, false, 1200),
	)
	_, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	up1, err := f.userProblems.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, up1.BoxLevel)
	assert.Equal(t, types.AttemptStats{Total: 1, Successful: 1}, up1.AttemptStats)
	require.NotNil(t, up1.LastAttemptDate)

	up2, err := f.userProblems.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 1, up2.BoxLevel)
	assert.Equal(t, types.AttemptStats{Total: 1, Unsuccessful: 1}, up2.AttemptStats)
	assert.Equal(t, 1, up2.ConsecutiveFailures)
}

func TestApply_BoxMonotonicity(t *testing.T) {
	f := setupReducer(t)

	seed := types.UserProblem{
		ProblemID: "up-1", LeetcodeID: 1, BoxLevel: 4,
		Stability: types.DefaultStability,
	}
	require.NoError(t, f.userProblems.Put(context.Background(), seed))

	_, err := f.reducer.Apply(context.Background(), completedSession(attempt(1, true, 600)))
	require.NoError(t, err)
	up, err := f.userProblems.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, up.BoxLevel, 4)

	// Attempt-stat consistency after the pass.
	assert.Equal(t, up.AttemptStats.Total, up.AttemptStats.Successful+up.AttemptStats.Unsuccessful)
}

func TestApply_Analytics(t *testing.T) {
	f := setupReducer(t)

	session := completedSession(
		attempt(1, true, 600),  // easy, array+hash-table
		attempt(2, true, 900),  // medium, array
		attempt(4, true, 300),  // easy, array
		attempt(3, false, 1800), // hard, dynamic-programming
	)
	result, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	a := result.Analytics
	assert.Equal(t, "s-1", a.SessionID)
	assert.InDelta(t, 0.75, a.Accuracy, 1e-9)
	assert.InDelta(t, 900, a.AvgTimeSeconds, 1e-9)
	assert.Equal(t, types.DifficultyEasy, a.PredominantDifficulty)
	assert.ElementsMatch(t, []string{"array", "hash-table"}, a.StrongTags)
	assert.ElementsMatch(t, []string{"dynamic-programming"}, a.WeakTags)
}

func TestApply_MasteryDeltasDropNoops(t *testing.T) {
	f := setupReducer(t)

	session := completedSession(attempt(1, true, 600))
	result, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	// Tags touched: array and hash-table, both changed (new attempts).
	require.Len(t, result.Deltas, 2)
	for _, d := range result.Deltas {
		assert.False(t, d.IsNoop())
		assert.Equal(t, 1, d.StrengthDelta)
	}
}

func TestApply_SessionStateCounters(t *testing.T) {
	f := setupReducer(t)

	require.NoError(t, f.states.Put(context.Background(), types.SessionState{
		NumSessionsCompleted:      4,
		SessionsAtCurrentTagCount: 1,
		SessionLength:             5,
		NewProblemCount:           3,
		CurrentDifficultyCap:      types.DifficultyMedium,
	}))

	session := completedSession(
		attempt(1, true, 600),
		attempt(2, false, 900),
	)
	result, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	assert.Equal(t, 5, result.State.NumSessionsCompleted)
	assert.Equal(t, 2, result.State.SessionsAtCurrentTagCount)
	assert.Equal(t, 1, result.State.EscapeHatches.SessionsAtCurrentDifficulty)
	assert.InDelta(t, 0.5, result.State.LastPerformance.Accuracy, 1e-9)
	// The one success (easy, 600s) fits the easy budget.
	assert.InDelta(t, 1.0, result.State.LastPerformance.EfficiencyScore, 1e-9)
}

func TestApply_Idempotent(t *testing.T) {
	f := setupReducer(t)

	session := completedSession(attempt(1, true, 600))
	first, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)
	assert.False(t, first.AlreadyApplied)

	second, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, second.AlreadyApplied)
	assert.Equal(t, first.Analytics, second.Analytics)

	// No double box transition.
	up, err := f.userProblems.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, up.BoxLevel)
	assert.Equal(t, 1, up.AttemptStats.Total)

	// State counters did not advance twice.
	state, err := f.states.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, state.NumSessionsCompleted)
}

func TestApply_TagRecomputeIdempotent(t *testing.T) {
	f := setupReducer(t)

	session := completedSession(attempt(1, true, 600))
	_, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	before, err := f.tagMastery.List(context.Background())
	require.NoError(t, err)
	_, err = f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)
	after, err := f.tagMastery.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestApply_MarksLadderRungsAndRegenerates(t *testing.T) {
	f := setupReducer(t)

	require.NoError(t, f.ladders.Put(context.Background(), types.PatternLadder{
		Tag:        "array",
		LadderSize: 2,
		Problems: []types.LadderEntry{
			{LeetcodeID: 1, Difficulty: types.DifficultyEasy, Attempted: true},
			{LeetcodeID: 2, Difficulty: types.DifficultyMedium},
		},
	}))

	session := completedSession(attempt(2, true, 900))
	_, err := f.reducer.Apply(context.Background(), session)
	require.NoError(t, err)

	pl, err := f.ladders.Get(context.Background(), "array")
	require.NoError(t, err)
	// Fully attempted after marking rung 2, so the ladder regenerated
	// from problems the user has not actually attempted.
	assert.Equal(t, 2, pl.LadderSize)
	for _, e := range pl.Problems {
		assert.False(t, e.Attempted)
		assert.NotEqual(t, 2, e.LeetcodeID)
	}
}

func TestApply_ForcedResetCooldown(t *testing.T) {
	f := setupReducer(t)

	require.NoError(t, f.userProblems.Put(context.Background(), types.UserProblem{
		ProblemID: "up-2", LeetcodeID: 2, BoxLevel: 3,
		Stability:           types.DefaultStability,
		ConsecutiveFailures: 2,
		AttemptStats:        types.AttemptStats{Total: 2, Unsuccessful: 2},
	}))

	_, err := f.reducer.Apply(context.Background(), completedSession(attempt(2, false, 900)))
	require.NoError(t, err)

	up, err := f.userProblems.Get(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, types.MinBoxLevel, up.BoxLevel)
	require.NotNil(t, up.CooldownUntil)
	assert.True(t, up.CooldownUntil.After(testNow))
}

// flakyAnalytics fails the next failuresLeft appends with a transient
// store error, then delegates.
type flakyAnalytics struct {
	storage.SessionAnalyticsStore
	failuresLeft int
}

func (f *flakyAnalytics) Append(ctx context.Context, analytics types.SessionAnalytics) error {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return fmt.Errorf("disk hiccup: %w", storage.ErrStoreUnavailable)
	}
	return f.SessionAnalyticsStore.Append(ctx, analytics)
}

func TestApply_RetriesTransientAnalyticsAppend(t *testing.T) {
	var flaky *flakyAnalytics
	f := setupReducerConfigured(t, func(cfg *Config) {
		flaky = &flakyAnalytics{SessionAnalyticsStore: cfg.Analytics, failuresLeft: 2}
		cfg.Analytics = flaky
		policy := storage.RetryPolicy{
			MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1,
		}
		cfg.Retrier = storage.NewRetrier(map[storage.Priority]storage.RetryPolicy{
			storage.PriorityNormal: policy,
		}, zap.NewNop())
	})

	result, err := f.reducer.Apply(context.Background(), completedSession(
		attempt(1, true, 600),
		attempt(2, false, 900),
	))
	require.NoError(t, err)
	assert.Equal(t, 0, flaky.failuresLeft)
	assert.False(t, result.AlreadyApplied)

	stored, err := f.analytics.Get(context.Background(), "s-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, stored.Accuracy, 1e-9)
}
