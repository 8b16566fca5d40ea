// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package graphs materializes the problem-relationship and
// tag-relationship catalogs as weighted undirected graphs. The engine
// only ever queries one-hop neighborhoods, so both graphs expose indexed
// edge lookups rather than traversals.
package graphs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dominikbraun/graph"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// ProblemGraph is the weighted undirected graph over catalog problems,
// keyed by stable leetcode id.
type ProblemGraph struct {
	g graph.Graph[int, int]
}

// NewProblemGraph builds a problem graph from catalog edges. Duplicate
// vertices and edges are tolerated; self-edges are dropped.
func NewProblemGraph(edges []storage.ProblemEdge) (*ProblemGraph, error) {
	g := graph.New(graph.IntHash, graph.Weighted())

	for _, e := range edges {
		if e.From == e.To {
			continue
		}
		for _, v := range []int{e.From, e.To} {
			if err := g.AddVertex(v); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("add vertex %d: %w", v, err)
			}
		}
		err := g.AddEdge(e.From, e.To, graph.EdgeData(e.Weight))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil, fmt.Errorf("add edge %d-%d: %w", e.From, e.To, err)
		}
	}

	return &ProblemGraph{g: g}, nil
}

// Neighbors returns the one-hop neighborhood of a problem as a map from
// neighbor leetcode id to edge weight. Unknown ids return an empty map.
func (pg *ProblemGraph) Neighbors(leetcodeID int) map[int]float64 {
	adjacency, err := pg.g.AdjacencyMap()
	if err != nil {
		return map[int]float64{}
	}

	result := make(map[int]float64)
	for neighbor, edge := range adjacency[leetcodeID] {
		result[neighbor] = edgeWeight(edge)
	}
	return result
}

// AggregateStrength sums the edge weights from candidate to each of the
// given target problems. Missing edges contribute zero.
func (pg *ProblemGraph) AggregateStrength(candidate int, targets []int) float64 {
	neighbors := pg.Neighbors(candidate)
	total := 0.0
	for _, target := range targets {
		total += neighbors[target]
	}
	return total
}

func edgeWeight(e graph.Edge[int]) float64 {
	if w, ok := e.Properties.Data.(float64); ok {
		return w
	}
	// Fall back to the integer weight when edges were built without
	// float data.
	return float64(e.Properties.Weight)
}

// TagGraph indexes the tag-relationship catalog: tier classification per
// tag plus weighted undirected edges between tags.
type TagGraph struct {
	g               graph.Graph[string, string]
	classifications map[string]types.TagClassification
}

// NewTagGraph builds a tag graph from catalog rows.
func NewTagGraph(rows []types.TagRelationship) (*TagGraph, error) {
	g := graph.New(graph.StringHash, graph.Weighted())
	classifications := make(map[string]types.TagClassification, len(rows))

	for _, row := range rows {
		classifications[row.Tag] = row.Classification
		if err := g.AddVertex(row.Tag); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
			return nil, fmt.Errorf("add tag %q: %w", row.Tag, err)
		}
	}

	for _, row := range rows {
		for related, weight := range row.Related {
			if related == row.Tag {
				continue
			}
			if err := g.AddVertex(related); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				return nil, fmt.Errorf("add tag %q: %w", related, err)
			}
			err := g.AddEdge(row.Tag, related, graph.EdgeData(weight))
			if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
				return nil, fmt.Errorf("add edge %q-%q: %w", row.Tag, related, err)
			}
		}
	}

	return &TagGraph{g: g, classifications: classifications}, nil
}

// Classification returns the tier band for a tag. Unknown tags report
// false.
func (tg *TagGraph) Classification(tag string) (types.TagClassification, bool) {
	c, ok := tg.classifications[tag]
	return c, ok
}

// TagsInTier lists the catalog tags carrying the given classification, in
// lexical order for determinism.
func (tg *TagGraph) TagsInTier(c types.TagClassification) []string {
	var tags []string
	for tag, class := range tg.classifications {
		if class == c {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// Related returns the one-hop neighborhood of a tag with edge weights.
func (tg *TagGraph) Related(tag string) map[string]float64 {
	adjacency, err := tg.g.AdjacencyMap()
	if err != nil {
		return map[string]float64{}
	}

	result := make(map[string]float64)
	for neighbor, edge := range adjacency[tag] {
		result[neighbor] = edgeWeightString(edge)
	}
	return result
}

// RelatedByWeight returns a tag's neighbors sorted by edge weight
// descending, ties broken lexically.
func (tg *TagGraph) RelatedByWeight(tag string) []string {
	related := tg.Related(tag)
	tags := make([]string, 0, len(related))
	for t := range related {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		if related[tags[i]] != related[tags[j]] {
			return related[tags[i]] > related[tags[j]]
		}
		return tags[i] < tags[j]
	})
	return tags
}

// ConnectionToMastered sums a tag's edge weights to already-mastered
// tags. Used to seed new tags closest to what the user already knows.
func (tg *TagGraph) ConnectionToMastered(tag string, mastered map[string]bool) float64 {
	total := 0.0
	for neighbor, weight := range tg.Related(tag) {
		if mastered[neighbor] {
			total += weight
		}
	}
	return total
}

// TotalWeight sums all edge weights of a tag. Used to rank onboarding
// candidates when no mastery exists yet.
func (tg *TagGraph) TotalWeight(tag string) float64 {
	total := 0.0
	for _, weight := range tg.Related(tag) {
		total += weight
	}
	return total
}

func edgeWeightString(e graph.Edge[string]) float64 {
	if w, ok := e.Properties.Data.(float64); ok {
		return w
	}
	return float64(e.Properties.Weight)
}
