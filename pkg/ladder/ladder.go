// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package ladder builds per-tag pattern ladders: ordered sequences of
// catalog problems a user climbs while practicing one tag.
package ladder

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/decay"
	"github.com/smithrashell/CodeMaster-sub008/pkg/graphs"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// candidateFetchLimit bounds how many catalog problems one ladder build
// considers.
const candidateFetchLimit = 200

// targetDistributions maps a tag's tier to its Easy/Medium/Hard shares.
// Ladders for higher tiers lean harder.
var targetDistributions = map[types.TagClassification][3]float64{
	types.ClassificationCoreConcept:          {0.5, 0.4, 0.1},
	types.ClassificationFundamentalTechnique: {0.3, 0.5, 0.2},
	types.ClassificationAdvancedTechnique:    {0.2, 0.5, 0.3},
}

// SizeFor returns the ladder size for a tag given its role: focus tags
// get the longest ladders, current-tier tags a medium one, everything
// else a short one.
func SizeFor(tag string, focusTags, tierTags []string) int {
	for _, f := range focusTags {
		if f == tag {
			return types.LadderSizeFocus
		}
	}
	for _, t := range tierTags {
		if t == tag {
			return types.LadderSizeTier
		}
	}
	return types.LadderSizeDefault
}

// Config wires the ladder generator.
type Config struct {
	Catalog      storage.ProblemCatalog
	UserProblems storage.UserProblemStore
	ProblemGraph *graphs.ProblemGraph
	TagGraph     *graphs.TagGraph
	Clock        storage.Clock
	Logger       *zap.Logger
}

// Generator builds and refreshes pattern ladders.
type Generator struct {
	catalog      storage.ProblemCatalog
	userProblems storage.UserProblemStore
	problemGraph *graphs.ProblemGraph
	tagGraph     *graphs.TagGraph
	clock        storage.Clock
	logger       *zap.Logger
}

// NewGenerator creates a ladder generator.
func NewGenerator(config Config) (*Generator, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("problem catalog is required")
	}
	if config.UserProblems == nil {
		return nil, fmt.Errorf("user problem store is required")
	}
	if config.TagGraph == nil {
		return nil, fmt.Errorf("tag graph is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Generator{
		catalog:      config.Catalog,
		userProblems: config.UserProblems,
		problemGraph: config.ProblemGraph,
		tagGraph:     config.TagGraph,
		clock:        config.Clock,
		logger:       config.Logger,
	}, nil
}

// Build generates a fresh ladder for the tag. Candidates are catalog
// problems carrying the tag, not yet attempted, whose tags all fall in
// allowed classifications (nil allows every known classification). The
// rungs follow the tag tier's difficulty distribution, easier first.
func (g *Generator) Build(ctx context.Context, tag string, size int, allowed map[types.TagClassification]bool) (types.PatternLadder, error) {
	if size <= 0 {
		return types.PatternLadder{}, fmt.Errorf("ladder size must be positive, got %d", size)
	}

	attempted, err := g.attemptedIDs(ctx)
	if err != nil {
		return types.PatternLadder{}, fmt.Errorf("failed to list attempted problems: %w", err)
	}

	problems, err := g.catalog.ListWithFilter(ctx, storage.ProblemFilter{
		Tags:       []string{tag},
		ExcludeIDs: attempted,
		Limit:      candidateFetchLimit,
	})
	if err != nil {
		return types.PatternLadder{}, fmt.Errorf("failed to list ladder candidates for %q: %w", tag, err)
	}

	var candidates []types.Problem
	for _, p := range problems {
		if g.tagsAllowed(p, allowed) {
			candidates = append(candidates, p)
		}
	}

	selected := selectByDistribution(candidates, size, g.distributionFor(tag))

	now := g.clock.Now()
	entries := make([]types.LadderEntry, 0, len(selected))
	for _, p := range selected {
		entries = append(entries, types.LadderEntry{
			LeetcodeID:  p.LeetcodeID,
			Difficulty:  p.Difficulty,
			DecayScore:  decay.Score(nil, 0, types.DefaultStability, now),
			Connections: g.connections(p.LeetcodeID),
		})
	}

	g.logger.Debug("ladder built",
		zap.String("tag", tag),
		zap.Int("size", size),
		zap.Int("rungs", len(entries)))

	return types.PatternLadder{Tag: tag, Problems: entries, LadderSize: size}, nil
}

// Refresh regenerates a ladder once every rung has been attempted,
// preserving its size. Partially climbed ladders come back unchanged.
func (g *Generator) Refresh(ctx context.Context, pl types.PatternLadder, allowed map[types.TagClassification]bool) (types.PatternLadder, error) {
	if !pl.FullyAttempted() {
		return pl, nil
	}
	size := pl.LadderSize
	if size <= 0 {
		size = types.LadderSizeDefault
	}
	g.logger.Info("regenerating fully attempted ladder",
		zap.String("tag", pl.Tag),
		zap.Int("size", size))
	return g.Build(ctx, pl.Tag, size, allowed)
}

// attemptedIDs returns the leetcode ids the user has attempted at least
// once.
func (g *Generator) attemptedIDs(ctx context.Context) (map[int]bool, error) {
	rows, err := g.userProblems.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make(map[int]bool, len(rows))
	for _, up := range rows {
		if up.AttemptStats.Total > 0 {
			ids[up.LeetcodeID] = true
		}
	}
	return ids, nil
}

// tagsAllowed reports whether every tag on the problem is classified in
// the allowed set. Unknown tags always disqualify; they would drag in
// material the progression model cannot place.
func (g *Generator) tagsAllowed(p types.Problem, allowed map[types.TagClassification]bool) bool {
	for _, tag := range p.Tags {
		classification, ok := g.tagGraph.Classification(tag)
		if !ok {
			return false
		}
		if allowed != nil && !allowed[classification] {
			return false
		}
	}
	return true
}

func (g *Generator) distributionFor(tag string) [3]float64 {
	classification, ok := g.tagGraph.Classification(tag)
	if !ok {
		return targetDistributions[types.ClassificationCoreConcept]
	}
	return targetDistributions[classification]
}

func (g *Generator) connections(leetcodeID int) []int {
	if g.problemGraph == nil {
		return nil
	}
	neighbors := g.problemGraph.Neighbors(leetcodeID)
	if len(neighbors) == 0 {
		return nil
	}
	ids := make([]int, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// selectByDistribution picks up to size problems honoring the target
// Easy/Medium/Hard shares, then orders the result easier rungs first.
// Buckets short on candidates hand their slots to the next difficulty up,
// then back down, so a sparse catalog still fills the ladder.
func selectByDistribution(candidates []types.Problem, size int, dist [3]float64) []types.Problem {
	if len(candidates) == 0 {
		return nil
	}

	buckets := map[types.Difficulty][]types.Problem{}
	for _, p := range candidates {
		buckets[p.Difficulty] = append(buckets[p.Difficulty], p)
	}

	order := []types.Difficulty{types.DifficultyEasy, types.DifficultyMedium, types.DifficultyHard}
	want := allocate(size, dist)

	// First pass: take each bucket's proportional share in catalog order.
	taken := map[types.Difficulty][]types.Problem{}
	remaining := 0
	for i, d := range order {
		n := want[i]
		if n > len(buckets[d]) {
			n = len(buckets[d])
		}
		taken[d] = buckets[d][:n]
		buckets[d] = buckets[d][n:]
		remaining += want[i] - n
	}

	// Second pass: unfilled slots drain the leftover buckets in order.
	for _, d := range order {
		if remaining == 0 {
			break
		}
		n := remaining
		if n > len(buckets[d]) {
			n = len(buckets[d])
		}
		taken[d] = append(taken[d], buckets[d][:n]...)
		remaining -= n
	}

	var out []types.Problem
	for _, d := range order {
		out = append(out, taken[d]...)
	}
	return out
}

// allocate splits size into three integer shares by largest remainder.
func allocate(size int, dist [3]float64) [3]int {
	var out [3]int
	var fracs [3]float64
	total := 0
	for i, share := range dist {
		exact := float64(size) * share
		out[i] = int(math.Floor(exact))
		fracs[i] = exact - float64(out[i])
		total += out[i]
	}
	for total < size {
		best := 0
		for i := 1; i < 3; i++ {
			if fracs[i] > fracs[best] {
				best = i
			}
		}
		out[best]++
		fracs[best] = -1
		total++
	}
	return out
}
