// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package mastery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testCatalog() []types.Problem {
	return []types.Problem{
		{LeetcodeID: 1, Slug: "two-sum", Difficulty: types.DifficultyEasy, Tags: []string{"array", "hash-table"}},
		{LeetcodeID: 2, Slug: "add-two-numbers", Difficulty: types.DifficultyMedium, Tags: []string{"linked-list"}},
		{LeetcodeID: 3, Slug: "rotate-array", Difficulty: types.DifficultyMedium, Tags: []string{"array"}},
	}
}

type masteryFixture struct {
	engine       *Engine
	userProblems *storage.MemoryUserProblems
	tagMastery   *storage.MemoryTagMastery
	clock        *storage.FixedClock
}

func setupEngine(t *testing.T) *masteryFixture {
	userProblems := storage.NewMemoryUserProblems()
	tagMastery := storage.NewMemoryTagMastery()
	clock := storage.NewFixedClock(testNow)

	engine, err := NewEngine(Config{
		UserProblems: userProblems,
		TagMastery:   tagMastery,
		Catalog:      storage.NewMemoryCatalog(testCatalog(), nil),
		Clock:        clock,
		Logger:       zap.NewNop(),
	})
	require.NoError(t, err)
	return &masteryFixture{engine: engine, userProblems: userProblems, tagMastery: tagMastery, clock: clock}
}

func putProblem(t *testing.T, f *masteryFixture, leetcodeID, total, successful int, lastAttempt time.Time) {
	err := f.userProblems.Put(context.Background(), types.UserProblem{
		ProblemID:       "p",
		LeetcodeID:      leetcodeID,
		BoxLevel:        3,
		Stability:       types.DefaultStability,
		LastAttemptDate: &lastAttempt,
		AttemptStats:    types.AttemptStats{Total: total, Successful: successful, Unsuccessful: total - successful},
	})
	require.NoError(t, err)
}

func TestDecide_AdaptiveThresholds(t *testing.T) {
	cases := []struct {
		name      string
		rate      float64
		attempts  int
		struggles int
		want      bool
	}{
		{"base threshold", 0.80, 4, 0, true},
		{"base rate below", 0.79, 4, 0, false},
		{"base too few attempts", 1.0, 3, 0, false},
		{"light struggle hatch", 0.75, 10, 0, true},
		{"light struggle rate below", 0.74, 10, 0, false},
		{"moderate struggle hatch", 0.70, 20, 0, true},
		{"moderate rate below", 0.69, 20, 0, false},
		{"heavy struggle hatch", 0.65, 8, 6, true},
		{"heavy struggle rate below", 0.64, 8, 6, false},
		{"heavy struggle too few struggles", 0.65, 8, 5, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Decide(tc.rate, tc.attempts, tc.struggles))
		})
	}
}

func TestRecompute_AggregatesAcrossProblemsWithTag(t *testing.T) {
	f := setupEngine(t)
	last := testNow.Add(-24 * time.Hour)

	// Problems 1 and 3 both carry "array".
	putProblem(t, f, 1, 4, 4, last)
	putProblem(t, f, 3, 2, 1, last)

	rows, err := f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)

	var arrayRow types.TagMastery
	for _, row := range rows {
		if row.Tag == "array" {
			arrayRow = row
		}
	}
	assert.Equal(t, 6, arrayRow.TotalAttempts)
	assert.Equal(t, 5, arrayRow.SuccessfulAttempts)
	assert.Greater(t, arrayRow.DecayScore, 0.0)
	assert.LessOrEqual(t, arrayRow.DecayScore, 1.0)
	require.NotNil(t, arrayRow.LastAttemptDate)
	assert.Equal(t, last, *arrayRow.LastAttemptDate)

	// 5/6 ≈ 0.83 over 6 attempts passes the base threshold.
	assert.True(t, arrayRow.Mastered)

	// hash-table only sees problem 1: 4/4.
	ht, err := f.tagMastery.Get(context.Background(), "hash-table")
	require.NoError(t, err)
	assert.True(t, ht.Mastered)
	assert.Equal(t, 4, ht.TotalAttempts)
}

func TestRecompute_Idempotent(t *testing.T) {
	f := setupEngine(t)
	putProblem(t, f, 1, 6, 3, testNow.Add(-48*time.Hour)) // 0.5 rate, unmastered

	_, err := f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)
	first, err := f.tagMastery.List(context.Background())
	require.NoError(t, err)

	_, err = f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)
	second, err := f.tagMastery.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRecompute_StruggleCountsOnlyOnNewEvidence(t *testing.T) {
	f := setupEngine(t)
	putProblem(t, f, 1, 6, 3, testNow.Add(-48*time.Hour))

	_, err := f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)
	row, err := f.tagMastery.Get(context.Background(), "array")
	require.NoError(t, err)
	assert.Equal(t, 1, row.Struggle.ConsecutiveStruggles)

	// New attempts arrive, still unmastered: struggle grows.
	putProblem(t, f, 1, 8, 4, testNow.Add(-24*time.Hour))
	_, err = f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)
	row, err = f.tagMastery.Get(context.Background(), "array")
	require.NoError(t, err)
	assert.Equal(t, 2, row.Struggle.ConsecutiveStruggles)
}

func TestRecompute_MasteryResetsStruggle(t *testing.T) {
	f := setupEngine(t)
	putProblem(t, f, 1, 6, 3, testNow.Add(-48*time.Hour))
	_, err := f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)

	// The user recovers: 10 attempts at 0.8.
	putProblem(t, f, 1, 10, 8, testNow.Add(-2*time.Hour))
	_, err = f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)

	row, err := f.tagMastery.Get(context.Background(), "array")
	require.NoError(t, err)
	assert.True(t, row.Mastered)
	assert.Equal(t, 0, row.Struggle.ConsecutiveStruggles)
}

func TestRecompute_PartialFailureLeavesOtherTagsIntact(t *testing.T) {
	f := setupEngine(t)
	last := testNow.Add(-24 * time.Hour)
	putProblem(t, f, 1, 4, 4, last) // array + hash-table
	putProblem(t, f, 2, 4, 4, last) // linked-list

	f.tagMastery.FailPut = "array"

	rows, err := f.engine.RecomputeAll(context.Background())
	require.NoError(t, err)

	// array failed to commit but the other tags did.
	tags := make(map[string]bool)
	for _, row := range rows {
		tags[row.Tag] = true
	}
	assert.False(t, tags["array"])
	assert.True(t, tags["hash-table"])
	assert.True(t, tags["linked-list"])

	_, err = f.tagMastery.Get(context.Background(), "array")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRecompute_FilterToTouchedTags(t *testing.T) {
	f := setupEngine(t)
	last := testNow.Add(-24 * time.Hour)
	putProblem(t, f, 1, 4, 4, last)
	putProblem(t, f, 2, 4, 4, last)

	rows, err := f.engine.Recompute(context.Background(), []string{"linked-list"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "linked-list", rows[0].Tag)
}

func TestEffectivelyMastered(t *testing.T) {
	last := testNow.Add(-25 * 24 * time.Hour)
	tm := types.TagMastery{
		Tag:                "array",
		TotalAttempts:      5,
		SuccessfulAttempts: 3, // 0.6
		LastAttemptDate:    &last,
	}
	assert.True(t, EffectivelyMastered(tm, testNow))

	recent := testNow.Add(-24 * time.Hour)
	tm.LastAttemptDate = &recent
	assert.False(t, EffectivelyMastered(tm, testNow))

	tm.LastAttemptDate = &last
	tm.SuccessfulAttempts = 2 // 0.4
	assert.False(t, EffectivelyMastered(tm, testNow))

	tm.Mastered = true
	assert.True(t, EffectivelyMastered(tm, testNow))
}
