// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package graphs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

func setupProblemGraph(t *testing.T) *ProblemGraph {
	pg, err := NewProblemGraph([]storage.ProblemEdge{
		{From: 1, To: 42, Weight: 0.9},
		{From: 1, To: 15, Weight: 0.4},
		{From: 42, To: 15, Weight: 0.2},
		{From: 7, To: 7, Weight: 1.0}, // self edge, dropped
	})
	require.NoError(t, err)
	return pg
}

func TestProblemGraph_Neighbors(t *testing.T) {
	pg := setupProblemGraph(t)

	neighbors := pg.Neighbors(1)
	assert.Len(t, neighbors, 2)
	assert.InDelta(t, 0.9, neighbors[42], 1e-9)
	assert.InDelta(t, 0.4, neighbors[15], 1e-9)

	// Undirected: the reverse direction carries the same weight.
	assert.InDelta(t, 0.9, pg.Neighbors(42)[1], 1e-9)

	assert.Empty(t, pg.Neighbors(999))
}

func TestProblemGraph_AggregateStrength(t *testing.T) {
	pg := setupProblemGraph(t)

	// 42 connects to 1 (0.9) and 15 (0.2).
	assert.InDelta(t, 1.1, pg.AggregateStrength(42, []int{1, 15}), 1e-9)
	assert.InDelta(t, 0.9, pg.AggregateStrength(42, []int{1, 999}), 1e-9)
	assert.Equal(t, 0.0, pg.AggregateStrength(999, []int{1}))
}

func setupTagGraph(t *testing.T) *TagGraph {
	tg, err := NewTagGraph([]types.TagRelationship{
		{
			Tag:            "array",
			Classification: types.ClassificationCoreConcept,
			Related:        map[string]float64{"hash-table": 0.8, "two-pointers": 0.6},
		},
		{
			Tag:            "hash-table",
			Classification: types.ClassificationCoreConcept,
			Related:        map[string]float64{"array": 0.8},
		},
		{
			Tag:            "dynamic-programming",
			Classification: types.ClassificationAdvancedTechnique,
			Related:        map[string]float64{"array": 0.3},
		},
	})
	require.NoError(t, err)
	return tg
}

func TestTagGraph_Classification(t *testing.T) {
	tg := setupTagGraph(t)

	c, ok := tg.Classification("array")
	require.True(t, ok)
	assert.Equal(t, types.ClassificationCoreConcept, c)

	_, ok = tg.Classification("graph-theory")
	assert.False(t, ok)
}

func TestTagGraph_TagsInTier(t *testing.T) {
	tg := setupTagGraph(t)

	core := tg.TagsInTier(types.ClassificationCoreConcept)
	assert.Equal(t, []string{"array", "hash-table"}, core)

	assert.Empty(t, tg.TagsInTier(types.ClassificationFundamentalTechnique))
}

func TestTagGraph_RelatedByWeight(t *testing.T) {
	tg := setupTagGraph(t)

	related := tg.RelatedByWeight("array")
	require.Len(t, related, 3)
	assert.Equal(t, "hash-table", related[0])
	assert.Equal(t, "two-pointers", related[1])
	assert.Equal(t, "dynamic-programming", related[2])
}

func TestTagGraph_ConnectionToMastered(t *testing.T) {
	tg := setupTagGraph(t)

	mastered := map[string]bool{"hash-table": true}
	assert.InDelta(t, 0.8, tg.ConnectionToMastered("array", mastered), 1e-9)

	mastered["two-pointers"] = true
	assert.InDelta(t, 1.4, tg.ConnectionToMastered("array", mastered), 1e-9)

	assert.Equal(t, 0.0, tg.ConnectionToMastered("array", nil))
}

func TestTagGraph_TotalWeight(t *testing.T) {
	tg := setupTagGraph(t)
	assert.InDelta(t, 0.8+0.6+0.3, tg.TotalWeight("array"), 1e-9)
}
