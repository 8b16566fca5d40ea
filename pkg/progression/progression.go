// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package progression selects the user's current tier and focus tags.
//
// Tiers are ordered Core Concept < Fundamental Technique < Advanced
// Technique. The current tier is the lowest one whose mastered fraction
// is below the 80% gate. A tier held for 30+ days at 60%+ mastery is
// advanced anyway so a near miss cannot stall the user forever.
package progression

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/graphs"
	"github.com/smithrashell/CodeMaster-sub008/pkg/mastery"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

const (
	// TierGate is the mastered fraction that closes out a tier.
	TierGate = 0.80

	// MaxFocusTags bounds the active focus window.
	MaxFocusTags = 5

	// Time-based tier escape.
	TierEscapeDays     = 30
	TierEscapeFraction = 0.60
)

// Config wires the progression engine.
type Config struct {
	TagMastery storage.TagMasteryStore
	TagGraph   *graphs.TagGraph
	Clock      storage.Clock
	Logger     *zap.Logger
}

// Engine computes tier status and focus tags.
type Engine struct {
	tagMastery storage.TagMasteryStore
	tagGraph   *graphs.TagGraph
	clock      storage.Clock
	logger     *zap.Logger
}

// NewEngine creates a progression engine.
func NewEngine(config Config) (*Engine, error) {
	if config.TagMastery == nil {
		return nil, fmt.Errorf("tag mastery store is required")
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
	return &Engine{
		tagMastery: config.TagMastery,
		tagGraph:   config.TagGraph,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// TierStatus is the result of a tier evaluation.
type TierStatus struct {
	// Tier is the user's current tier.
	Tier types.TagClassification

	// AllTags lists every tag in the tier.
	AllTags []string

	// MasteredTags lists tier tags the user has mastered (including
	// effective mastery through the time-based escape hatch).
	MasteredTags []string

	// FocusTags is the active practice window: up to five unmastered
	// tier tags closest to mastery, padded with seeded new tags.
	FocusTags []string

	// MasteredFraction is len(MasteredTags)/len(AllTags).
	MasteredFraction float64

	// Advanced is true when the time-based escape promoted the user
	// past a tier this evaluation.
	Advanced bool

	// Onboarding is true when the user has no mastery rows yet.
	Onboarding bool
}

// Evaluate computes the current tier and focus tags. tierStart is when
// the user entered their current tier (nil before the first session);
// it drives the time-based escape.
func (e *Engine) Evaluate(ctx context.Context, tierStart *time.Time) (TierStatus, error) {
	rows, err := e.tagMastery.List(ctx)
	if err != nil {
		return TierStatus{}, fmt.Errorf("failed to list tag mastery: %w", err)
	}

	now := e.clock.Now()

	if len(rows) == 0 {
		return e.onboardingStatus(), nil
	}

	byTag := make(map[string]types.TagMastery, len(rows))
	masteredSet := make(map[string]bool)
	for _, row := range rows {
		byTag[row.Tag] = row
		if mastery.EffectivelyMastered(row, now) {
			masteredSet[row.Tag] = true
		}
	}

	tierIdx := e.currentTierIndex(masteredSet)
	status := e.tierStatus(tierIdx, byTag, masteredSet)

	// Time-based escape: long enough in the tier with most of it
	// mastered advances the user even though the 80% gate is unmet.
	if tierStart != nil && tierIdx < len(types.TierOrder)-1 {
		days := now.Sub(*tierStart).Hours() / 24
		if days >= TierEscapeDays && status.MasteredFraction >= TierEscapeFraction {
			e.logger.Info("time-based tier escape",
				zap.String("tier", string(status.Tier)),
				zap.Float64("mastered_fraction", status.MasteredFraction),
				zap.Float64("days_at_tier", days))
			status = e.tierStatus(tierIdx+1, byTag, masteredSet)
			status.Advanced = true
		}
	}

	return status, nil
}

// currentTierIndex returns the index of the lowest tier whose mastered
// count is below the gate. When every tier passes, the last tier is the
// current one.
func (e *Engine) currentTierIndex(masteredSet map[string]bool) int {
	for i, tier := range types.TierOrder {
		tags := e.tagGraph.TagsInTier(tier)
		if len(tags) == 0 {
			continue
		}
		mastered := 0
		for _, tag := range tags {
			if masteredSet[tag] {
				mastered++
			}
		}
		gate := int(math.Ceil(float64(len(tags)) * TierGate))
		if mastered < gate {
			return i
		}
	}
	return len(types.TierOrder) - 1
}

func (e *Engine) tierStatus(tierIdx int, byTag map[string]types.TagMastery, masteredSet map[string]bool) TierStatus {
	tier := types.TierOrder[tierIdx]
	allTags := e.tagGraph.TagsInTier(tier)

	var masteredTags, unmastered []string
	for _, tag := range allTags {
		if masteredSet[tag] {
			masteredTags = append(masteredTags, tag)
		} else {
			unmastered = append(unmastered, tag)
		}
	}

	// Closest-to-mastery first: success rate descending, ties lexical.
	// Tags with no attempts sort last.
	sort.SliceStable(unmastered, func(i, j int) bool {
		ri := byTag[unmastered[i]].SuccessRate()
		rj := byTag[unmastered[j]].SuccessRate()
		if ri != rj {
			return ri > rj
		}
		return unmastered[i] < unmastered[j]
	})

	focus := unmastered
	if len(focus) > MaxFocusTags {
		focus = focus[:MaxFocusTags]
	}
	if len(focus) < MaxFocusTags {
		focus = append(focus, e.seedNewTags(MaxFocusTags-len(focus), byTag, masteredSet, focus)...)
	}

	fraction := 0.0
	if len(allTags) > 0 {
		fraction = float64(len(masteredTags)) / float64(len(allTags))
	}

	return TierStatus{
		Tier:             tier,
		AllTags:          allTags,
		MasteredTags:     masteredTags,
		FocusTags:        focus,
		MasteredFraction: fraction,
	}
}

// seedNewTags picks up to n catalog tags with no mastery row yet, ranked
// by summed relationship weight to already-mastered tags.
func (e *Engine) seedNewTags(n int, byTag map[string]types.TagMastery, masteredSet map[string]bool, exclude []string) []string {
	excluded := make(map[string]bool, len(exclude))
	for _, tag := range exclude {
		excluded[tag] = true
	}

	var candidates []string
	for _, tier := range types.TierOrder {
		for _, tag := range e.tagGraph.TagsInTier(tier) {
			if _, seen := byTag[tag]; seen {
				continue
			}
			if excluded[tag] {
				continue
			}
			candidates = append(candidates, tag)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		wi := e.tagGraph.ConnectionToMastered(candidates[i], masteredSet)
		wj := e.tagGraph.ConnectionToMastered(candidates[j], masteredSet)
		if wi != wj {
			return wi > wj
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// onboardingStatus is the tier status for a user with no history: the
// top Core-Concept tags by total relationship weight.
func (e *Engine) onboardingStatus() TierStatus {
	coreTags := e.tagGraph.TagsInTier(types.ClassificationCoreConcept)

	ranked := make([]string, len(coreTags))
	copy(ranked, coreTags)
	sort.SliceStable(ranked, func(i, j int) bool {
		wi := e.tagGraph.TotalWeight(ranked[i])
		wj := e.tagGraph.TotalWeight(ranked[j])
		if wi != wj {
			return wi > wj
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > MaxFocusTags {
		ranked = ranked[:MaxFocusTags]
	}

	return TierStatus{
		Tier:       types.ClassificationCoreConcept,
		AllTags:    coreTags,
		FocusTags:  ranked,
		Onboarding: true,
	}
}
