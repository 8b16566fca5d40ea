// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var seedTime = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zaptest.NewLogger(t)

	store, err := Open(context.Background(), dbPath, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedTestCatalog(t *testing.T, store *Store) {
	t.Helper()
	problems := []types.Problem{
		{LeetcodeID: 1, Title: "Two Sum", Slug: "two-sum", Difficulty: types.DifficultyEasy, Tags: []string{"array", "hash-table"}},
		{LeetcodeID: 2, Title: "Add Two Numbers", Slug: "add-two-numbers", Difficulty: types.DifficultyMedium, Tags: []string{"linked-list"}},
		{LeetcodeID: 3, Title: "Longest Substring", Slug: "longest-substring", Difficulty: types.DifficultyMedium, Tags: []string{"hash-table", "sliding-window"}},
		{LeetcodeID: 4, Title: "Median of Arrays", Slug: "median-of-arrays", Difficulty: types.DifficultyHard, Tags: []string{"array", "binary-search"}},
	}
	edges := []storage.ProblemEdge{
		{From: 1, To: 3, Weight: 0.8},
		{From: 1, To: 4, Weight: 0.5},
	}
	require.NoError(t, store.SeedCatalog(context.Background(), problems, edges))
}

func TestStore_CatalogRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedTestCatalog(t, store)
	catalog := store.Stores().Catalog

	bySlug, err := catalog.GetBySlug(ctx, "two-sum")
	require.NoError(t, err)
	assert.Equal(t, 1, bySlug.LeetcodeID)
	assert.Equal(t, types.DifficultyEasy, bySlug.Difficulty)
	assert.Equal(t, []string{"array", "hash-table"}, bySlug.Tags)

	byID, err := catalog.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "longest-substring", byID.Slug)

	_, err = catalog.GetBySlug(ctx, "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = catalog.GetByID(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_ListWithFilter(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedTestCatalog(t, store)
	catalog := store.Stores().Catalog

	tests := []struct {
		name    string
		filter  storage.ProblemFilter
		wantIDs []int
	}{
		{
			name:    "no filter returns catalog order",
			filter:  storage.ProblemFilter{},
			wantIDs: []int{1, 2, 3, 4},
		},
		{
			name:    "tag filter matches any listed tag",
			filter:  storage.ProblemFilter{Tags: []string{"hash-table"}},
			wantIDs: []int{1, 3},
		},
		{
			name:    "difficulty cap excludes harder problems",
			filter:  storage.ProblemFilter{DifficultyCap: types.DifficultyMedium},
			wantIDs: []int{1, 2, 3},
		},
		{
			name:    "exclusions and limit apply",
			filter:  storage.ProblemFilter{ExcludeIDs: map[int]bool{1: true}, Limit: 2},
			wantIDs: []int{2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.ListWithFilter(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]int, 0, len(got))
			for _, p := range got {
				ids = append(ids, p.LeetcodeID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestStore_ProblemEdges(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	seedTestCatalog(t, store)

	edges, err := store.Stores().ProblemEdges.ListProblemEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, storage.ProblemEdge{From: 1, To: 3, Weight: 0.8}, edges[0])
}

func TestStore_TagCatalog(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	rows := []types.TagRelationship{
		{Tag: "array", Classification: types.ClassificationCoreConcept, Related: map[string]float64{"hash-table": 0.9}},
		{Tag: "dynamic-programming", Classification: types.ClassificationAdvancedTechnique, Related: map[string]float64{}},
		{Tag: "hash-table", Classification: types.ClassificationCoreConcept, Related: map[string]float64{"array": 0.9}},
	}
	require.NoError(t, store.SeedTagCatalog(ctx, rows))
	tagCatalog := store.Stores().TagCatalog

	row, err := tagCatalog.Get(ctx, "array")
	require.NoError(t, err)
	assert.Equal(t, types.ClassificationCoreConcept, row.Classification)
	assert.InDelta(t, 0.9, row.Related["hash-table"], 1e-9)

	_, err = tagCatalog.Get(ctx, "graphs")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	all, err := tagCatalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	core, err := tagCatalog.ListByClassification(ctx, types.ClassificationCoreConcept)
	require.NoError(t, err)
	require.Len(t, core, 2)
	assert.Equal(t, "array", core[0].Tag)
	assert.Equal(t, "hash-table", core[1].Tag)
}

func TestStore_UserProblems(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	userProblems := store.Stores().UserProblems

	_, err := userProblems.Get(ctx, 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	lastAttempt := seedTime.Add(-24 * time.Hour)
	up := types.UserProblem{
		ProblemID:           "up-1",
		LeetcodeID:          1,
		BoxLevel:            3,
		Stability:           6.5,
		ReviewSchedule:      seedTime.Add(48 * time.Hour),
		LastAttemptDate:     &lastAttempt,
		AttemptStats:        types.AttemptStats{Total: 5, Successful: 4, Unsuccessful: 1},
		PerceivedDifficulty: 6,
		ConsecutiveFailures: 1,
	}
	require.NoError(t, userProblems.Put(ctx, up))

	got, err := userProblems.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "up-1", got.ProblemID)
	assert.Equal(t, 3, got.BoxLevel)
	assert.InDelta(t, 6.5, got.Stability, 1e-9)
	assert.True(t, got.ReviewSchedule.Equal(up.ReviewSchedule))
	require.NotNil(t, got.LastAttemptDate)
	assert.True(t, got.LastAttemptDate.Equal(lastAttempt))
	assert.Nil(t, got.CooldownUntil)
	assert.Equal(t, up.AttemptStats, got.AttemptStats)

	// Upsert replaces the row.
	up.BoxLevel = 4
	up.ConsecutiveFailures = 0
	require.NoError(t, userProblems.Put(ctx, up))
	got, err = userProblems.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, got.BoxLevel)
	assert.Equal(t, 0, got.ConsecutiveFailures)
}

func TestStore_UserProblemRange(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	userProblems := store.Stores().UserProblems

	put := func(id, box int, due time.Time) {
		require.NoError(t, userProblems.Put(ctx, types.UserProblem{
			ProblemID:      "up",
			LeetcodeID:     id,
			BoxLevel:       box,
			Stability:      types.DefaultStability,
			ReviewSchedule: due,
		}))
	}
	put(1, 2, seedTime.Add(-time.Hour))
	put(2, 6, seedTime.Add(-time.Hour))
	put(3, 3, seedTime.Add(72*time.Hour))

	due := seedTime
	dueRows, err := userProblems.ListRange(ctx, storage.UserProblemRange{DueBefore: &due})
	require.NoError(t, err)
	require.Len(t, dueRows, 2)
	assert.Equal(t, 1, dueRows[0].LeetcodeID)
	assert.Equal(t, 2, dueRows[1].LeetcodeID)

	mastered, err := userProblems.ListRange(ctx, storage.UserProblemRange{MinBox: types.FirstMasteredBox})
	require.NoError(t, err)
	require.Len(t, mastered, 1)
	assert.Equal(t, 2, mastered[0].LeetcodeID)

	learning, err := userProblems.ListRange(ctx, storage.UserProblemRange{MaxBox: types.FirstMasteredBox - 1})
	require.NoError(t, err)
	assert.Len(t, learning, 2)

	all, err := userProblems.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestStore_Attempts(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	attempts := store.Stores().Attempts

	a1 := types.Attempt{
		AttemptID:        "a-1",
		LeetcodeID:       1,
		AttemptDate:      seedTime,
		Success:          true,
		TimeSpentSeconds: 600,
		SessionID:        "s-1",
	}
	a2 := types.Attempt{
		AttemptID:   "a-2",
		LeetcodeID:  2,
		AttemptDate: seedTime.Add(time.Hour),
		Success:     false,
		SessionID:   "s-1",
	}
	require.NoError(t, attempts.Append(ctx, a1))
	require.NoError(t, attempts.Append(ctx, a2))

	err := attempts.Append(ctx, a1)
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)

	recent, err := attempts.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "a-2", recent[0].AttemptID)
	assert.Equal(t, "a-1", recent[1].AttemptID)
	assert.True(t, recent[1].Success)
	assert.Equal(t, 600, recent[1].TimeSpentSeconds)

	limited, err := attempts.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "a-2", limited[0].AttemptID)

	bySession, err := attempts.ListBySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, bySession, 2)
	assert.Equal(t, "a-1", bySession[0].AttemptID)
}

func TestStore_Sessions(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	sessions := store.Stores().Sessions

	_, err := sessions.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = sessions.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	first := types.Session{
		SessionID:        "s-1",
		Date:             seedTime,
		Status:           types.SessionInProgress,
		SessionType:      types.SessionTypeStandard,
		Origin:           types.OriginGenerator,
		LastActivityTime: seedTime,
		Problems: []types.SessionProblem{
			{
				Problem: types.Problem{LeetcodeID: 1, Slug: "two-sum", Difficulty: types.DifficultyEasy, Tags: []string{"array"}},
				Reason:  types.SelectionReason{Type: types.SelectionNew, Reason: "new problem"},
			},
		},
	}
	second := types.Session{
		SessionID:        "s-2",
		Date:             seedTime.Add(time.Hour),
		Status:           types.SessionInProgress,
		SessionType:      types.SessionTypeStandard,
		Origin:           types.OriginGenerator,
		LastActivityTime: seedTime.Add(time.Hour),
	}
	require.NoError(t, sessions.Put(ctx, first))
	require.NoError(t, sessions.Put(ctx, second))

	got, err := sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, types.SessionInProgress, got.Status)
	require.Len(t, got.Problems, 1)
	assert.Equal(t, types.SelectionNew, got.Problems[0].Reason.Type)
	assert.Equal(t, []string{"array"}, got.Problems[0].Problem.Tags)

	// Completing the first session must not reorder creation order.
	first.Status = types.SessionCompleted
	first.Attempts = []types.Attempt{{AttemptID: "a-1", LeetcodeID: 1, AttemptDate: seedTime, Success: true, SessionID: "s-1"}}
	require.NoError(t, sessions.Put(ctx, first))

	latest, err := sessions.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s-2", latest.SessionID)

	open, err := sessions.ListByStatus(ctx, types.SessionInProgress)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "s-2", open[0].SessionID)

	recent, err := sessions.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "s-2", recent[0].SessionID)

	completed, err := sessions.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, completed.Attempts, 1)
	assert.True(t, completed.Attempts[0].Success)
}

func TestStore_TagMastery(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	tagMastery := store.Stores().TagMastery

	_, err := tagMastery.Get(ctx, "array")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	lastAttempt := seedTime
	tm := types.TagMastery{
		Tag:                "array",
		TotalAttempts:      12,
		SuccessfulAttempts: 9,
		DecayScore:         0.2,
		Mastered:           true,
		LastAttemptDate:    &lastAttempt,
		Struggle:           types.StruggleHistory{ConsecutiveStruggles: 1, TotalAttempts: 12},
	}
	require.NoError(t, tagMastery.Put(ctx, tm))

	got, err := tagMastery.Get(ctx, "array")
	require.NoError(t, err)
	assert.Equal(t, 12, got.TotalAttempts)
	assert.True(t, got.Mastered)
	assert.InDelta(t, 0.2, got.DecayScore, 1e-9)
	assert.Equal(t, tm.Struggle, got.Struggle)
	require.NotNil(t, got.LastAttemptDate)
	assert.True(t, got.LastAttemptDate.Equal(lastAttempt))

	tm.Mastered = false
	require.NoError(t, tagMastery.Put(ctx, tm))
	got, err = tagMastery.Get(ctx, "array")
	require.NoError(t, err)
	assert.False(t, got.Mastered)

	require.NoError(t, tagMastery.Put(ctx, types.TagMastery{Tag: "hash-table", Struggle: types.StruggleHistory{}}))
	all, err := tagMastery.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "array", all[0].Tag)
}

func TestStore_PatternLadders(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	ladders := store.Stores().Ladders

	_, err := ladders.Get(ctx, "array")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	ladder := types.PatternLadder{
		Tag:        "array",
		LadderSize: types.LadderSizeFocus,
		Problems: []types.LadderEntry{
			{LeetcodeID: 1, Difficulty: types.DifficultyEasy, DecayScore: 0.1, Connections: []int{3}},
			{LeetcodeID: 3, Difficulty: types.DifficultyMedium, Attempted: true},
		},
	}
	require.NoError(t, ladders.Put(ctx, ladder))

	got, err := ladders.Get(ctx, "array")
	require.NoError(t, err)
	assert.Equal(t, types.LadderSizeFocus, got.LadderSize)
	require.Len(t, got.Problems, 2)
	assert.Equal(t, []int{3}, got.Problems[0].Connections)
	assert.True(t, got.Problems[1].Attempted)

	all, err := ladders.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_Analytics(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	analytics := store.Stores().Analytics

	row := types.SessionAnalytics{
		SessionID:             "s-1",
		CompletedAt:           seedTime,
		Accuracy:              0.75,
		AvgTimeSeconds:        840,
		StrongTags:            []string{"array"},
		WeakTags:              []string{"dynamic-programming"},
		PredominantDifficulty: types.DifficultyMedium,
	}
	require.NoError(t, analytics.Append(ctx, row))

	err := analytics.Append(ctx, row)
	assert.ErrorIs(t, err, storage.ErrConstraintViolation)

	got, err := analytics.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.InDelta(t, 0.75, got.Accuracy, 1e-9)
	assert.Equal(t, []string{"array"}, got.StrongTags)
	assert.Equal(t, types.DifficultyMedium, got.PredominantDifficulty)

	_, err = analytics.Get(ctx, "s-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, analytics.Append(ctx, types.SessionAnalytics{
		SessionID:   "s-2",
		CompletedAt: seedTime.Add(time.Hour),
		Accuracy:    0.5,
	}))
	recent, err := analytics.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "s-2", recent[0].SessionID)
	assert.Equal(t, "s-1", recent[1].SessionID)
}

func TestStore_SessionState(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	states := store.Stores().SessionStates

	_, err := states.Get(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	tierStart := seedTime
	state := types.SessionState{
		NumSessionsCompleted: 7,
		CurrentDifficultyCap: types.DifficultyMedium,
		TagIndex:             2,
		SessionLength:        6,
		NewProblemCount:      4,
		CurrentAllowedTags:   []string{"array", "hash-table", "two-pointers"},
		LastPerformance:      types.PerformanceSnapshot{Accuracy: 0.9, EfficiencyScore: 0.8},
		CurrentTier:          types.ClassificationCoreConcept,
		TierStartDate:        &tierStart,
	}
	require.NoError(t, states.Put(ctx, state))

	got, err := states.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, got.NumSessionsCompleted)
	assert.Equal(t, types.DifficultyMedium, got.CurrentDifficultyCap)
	assert.Equal(t, state.CurrentAllowedTags, got.CurrentAllowedTags)
	assert.InDelta(t, 0.9, got.LastPerformance.Accuracy, 1e-9)
	require.NotNil(t, got.TierStartDate)
	assert.True(t, got.TierStartDate.Equal(tierStart))

	state.NumSessionsCompleted = 8
	require.NoError(t, states.Put(ctx, state))
	got, err = states.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, got.NumSessionsCompleted)
}

func TestStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	logger := zaptest.NewLogger(t)

	store, err := Open(ctx, dbPath, logger)
	require.NoError(t, err)
	require.NoError(t, store.Stores().UserProblems.Put(ctx, types.UserProblem{
		ProblemID:      "up-1",
		LeetcodeID:     1,
		BoxLevel:       2,
		Stability:      types.DefaultStability,
		ReviewSchedule: seedTime,
	}))
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, dbPath, logger)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Stores().UserProblems.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got.BoxLevel)
}

func TestOpen_RejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", zaptest.NewLogger(t))
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
