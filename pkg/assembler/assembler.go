// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package assembler builds practice sessions through a strict priority
// pipeline: triggered bridge reviews, learning reviews, new problems,
// passive mastered reviews, then a fallback over already-attempted
// problems, finished by a difficulty guard rail.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/decay"
	"github.com/smithrashell/CodeMaster-sub008/pkg/graphs"
	"github.com/smithrashell/CodeMaster-sub008/pkg/review"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

const (
	// MaxTriggeredPerSession caps bridge reviews per session.
	MaxTriggeredPerSession = 2

	// TriggerThreshold is the minimum aggregate relationship weight for
	// a mastered problem to qualify as a bridge review.
	TriggerThreshold = 0.5

	// TriggerSessionLookback is how many recent sessions supply failures.
	TriggerSessionLookback = 2

	// LearningShare is the fraction of remaining slots handed to
	// learning reviews.
	LearningShare = 0.3

	// RecentAccuracySessions is how many analytics rows feed the guard
	// rail's recent-accuracy estimate.
	RecentAccuracySessions = 3
)

// Tunables are the configurable knobs of the pipeline. Zero values take
// the documented defaults.
type Tunables struct {
	// Optimal-path scoring weights for Priority 3.
	MasteryWeight    float64
	DecayWeight      float64
	ConnectionWeight float64

	// Guard rail: rewrite the tail when recent accuracy is at or below
	// AccuracyThreshold and Hard problems exceed MaxHardFraction.
	MaxHardFraction   float64
	AccuracyThreshold float64

	// CandidateCap bounds Priority 3's candidate fetch.
	CandidateCap int
}

func (t Tunables) withDefaults() Tunables {
	if t.MasteryWeight == 0 && t.DecayWeight == 0 && t.ConnectionWeight == 0 {
		t.MasteryWeight, t.DecayWeight, t.ConnectionWeight = 0.4, 0.3, 0.3
	}
	if t.MaxHardFraction == 0 {
		t.MaxHardFraction = 0.4
	}
	if t.AccuracyThreshold == 0 {
		t.AccuracyThreshold = 0.4
	}
	if t.CandidateCap == 0 {
		t.CandidateCap = 50
	}
	return t
}

// Config wires the assembler.
type Config struct {
	Catalog      storage.ProblemCatalog
	UserProblems storage.UserProblemStore
	Sessions     storage.SessionStore
	TagMastery   storage.TagMasteryStore
	Ladders      storage.PatternLadderStore
	Analytics    storage.SessionAnalyticsStore
	Scheduler    *review.Scheduler
	ProblemGraph *graphs.ProblemGraph
	TagGraph     *graphs.TagGraph
	Clock        storage.Clock
	Logger       *zap.Logger
	Tunables     Tunables
}

// Assembler builds sessions.
type Assembler struct {
	catalog      storage.ProblemCatalog
	userProblems storage.UserProblemStore
	sessions     storage.SessionStore
	tagMastery   storage.TagMasteryStore
	ladders      storage.PatternLadderStore
	analytics    storage.SessionAnalyticsStore
	scheduler    *review.Scheduler
	problemGraph *graphs.ProblemGraph
	tagGraph     *graphs.TagGraph
	clock        storage.Clock
	logger       *zap.Logger
	tunables     Tunables
}

// NewAssembler creates a session assembler.
func NewAssembler(config Config) (*Assembler, error) {
	if config.Catalog == nil {
		return nil, fmt.Errorf("problem catalog is required")
	}
	if config.UserProblems == nil {
		return nil, fmt.Errorf("user problem store is required")
	}
	if config.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if config.Scheduler == nil {
		return nil, fmt.Errorf("review scheduler is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Assembler{
		catalog:      config.Catalog,
		userProblems: config.UserProblems,
		sessions:     config.Sessions,
		tagMastery:   config.TagMastery,
		ladders:      config.Ladders,
		analytics:    config.Analytics,
		scheduler:    config.Scheduler,
		problemGraph: config.ProblemGraph,
		tagGraph:     config.TagGraph,
		clock:        config.Clock,
		logger:       config.Logger,
		tunables:     config.Tunables.withDefaults(),
	}, nil
}

// Request carries the settings the pipeline fills against.
type Request struct {
	// State is the session state after the settings computation.
	State types.SessionState

	// Onboarding skips the review priorities and disables scoring.
	Onboarding bool
}

// build tracks pipeline state across priorities.
type build struct {
	problems []types.SessionProblem
	seen     map[int]bool
	length   int
}

func (b *build) add(p types.Problem, reason types.SelectionReason) bool {
	if b.full() || b.seen[p.LeetcodeID] {
		return false
	}
	b.seen[p.LeetcodeID] = true
	b.problems = append(b.problems, types.SessionProblem{Problem: p, Reason: reason})
	return true
}

func (b *build) full() bool     { return len(b.problems) >= b.length }
func (b *build) remaining() int { return b.length - len(b.problems) }

// Build runs the pipeline and returns the session problems in pipeline
// order. Priorities 1, 2, 4, and the fallback absorb store errors and
// contribute nothing; Priority 3 degrades to catalog order. An empty
// result carries ErrInsufficientCatalog.
func (a *Assembler) Build(ctx context.Context, req Request) ([]types.SessionProblem, error) {
	length := req.State.SessionLength
	if length <= 0 {
		return nil, fmt.Errorf("%w: session length must be positive, got %d", storage.ErrInvalidInput, length)
	}

	b := &build{seen: make(map[int]bool), length: length}

	// The schedule feeds Priorities 2 and 4; a failure here costs both
	// but never the whole session.
	var schedule review.Schedule
	if !req.Onboarding {
		var err error
		schedule, err = a.scheduler.DailySchedule(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.logger.Warn("review schedule unavailable, skipping review priorities", zap.Error(err))
		}
	}

	if !req.Onboarding {
		a.addTriggeredReviews(ctx, b)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a.addLearningReviews(ctx, b, schedule)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	a.addNewProblems(ctx, b, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !req.Onboarding {
		a.addPassiveReviews(ctx, b, schedule)
		a.addFallback(ctx, b)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	a.applyGuardRail(ctx, b, req.State)

	if len(b.problems) == 0 {
		return nil, fmt.Errorf("no problems could be assembled: %w", storage.ErrInsufficientCatalog)
	}

	a.logger.Info("session assembled",
		zap.Int("problems", len(b.problems)),
		zap.Int("session_length", length),
		zap.Bool("onboarding", req.Onboarding))

	return b.problems, nil
}

// addTriggeredReviews implements Priority 1: mastered problems strongly
// related to recent failures.
func (a *Assembler) addTriggeredReviews(ctx context.Context, b *build) {
	if a.problemGraph == nil || b.full() {
		return
	}

	recent, err := a.sessions.ListRecent(ctx, TriggerSessionLookback)
	if err != nil {
		a.logger.Warn("triggered reviews skipped: recent sessions unavailable", zap.Error(err))
		return
	}

	var failed []int
	failedSet := make(map[int]bool)
	for _, s := range recent {
		for _, attempt := range s.Attempts {
			if !attempt.Success && !failedSet[attempt.LeetcodeID] {
				failedSet[attempt.LeetcodeID] = true
				failed = append(failed, attempt.LeetcodeID)
			}
		}
	}
	if len(failed) == 0 {
		return
	}

	mastered, err := a.userProblems.ListRange(ctx, storage.UserProblemRange{MinBox: types.FirstMasteredBox})
	if err != nil {
		a.logger.Warn("triggered reviews skipped: mastered rows unavailable", zap.Error(err))
		return
	}

	type bridge struct {
		leetcodeID  int
		strength    float64
		triggeredBy int
	}
	var bridges []bridge
	for _, up := range mastered {
		if failedSet[up.LeetcodeID] {
			continue
		}
		strength := a.problemGraph.AggregateStrength(up.LeetcodeID, failed)
		if strength < TriggerThreshold {
			continue
		}
		bridges = append(bridges, bridge{
			leetcodeID:  up.LeetcodeID,
			strength:    strength,
			triggeredBy: a.strongestTrigger(up.LeetcodeID, failed),
		})
	}

	sort.SliceStable(bridges, func(i, j int) bool {
		if bridges[i].strength != bridges[j].strength {
			return bridges[i].strength > bridges[j].strength
		}
		return bridges[i].leetcodeID < bridges[j].leetcodeID
	})

	added := 0
	for _, br := range bridges {
		if added >= MaxTriggeredPerSession || b.full() {
			break
		}
		p, err := a.catalog.GetByID(ctx, br.leetcodeID)
		if err != nil {
			a.logger.Warn("triggered review dropped: catalog miss",
				zap.Int("leetcode_id", br.leetcodeID), zap.Error(err))
			continue
		}
		if b.add(p, types.SelectionReason{
			Type:              types.SelectionTriggered,
			Reason:            "related to recent failure",
			TriggeredBy:       br.triggeredBy,
			AggregateStrength: br.strength,
		}) {
			added++
		}
	}
}

// strongestTrigger returns the failed problem with the heaviest direct
// edge to the candidate.
func (a *Assembler) strongestTrigger(candidate int, failed []int) int {
	neighbors := a.problemGraph.Neighbors(candidate)
	best, bestWeight := 0, -1.0
	for _, id := range failed {
		if w, ok := neighbors[id]; ok && w > bestWeight {
			best, bestWeight = id, w
		}
	}
	return best
}

// addLearningReviews implements Priority 2: about 30% of the remaining
// slots go to due problems still in learning boxes.
func (a *Assembler) addLearningReviews(ctx context.Context, b *build, schedule review.Schedule) {
	if b.full() {
		return
	}
	quota := int(math.Ceil(float64(b.remaining()) * LearningShare))

	added := 0
	for _, dp := range schedule.Learning() {
		if added >= quota || b.full() {
			break
		}
		p, err := a.catalog.GetByID(ctx, dp.LeetcodeID)
		if err != nil {
			a.logger.Warn("learning review dropped: catalog miss",
				zap.Int("leetcode_id", dp.LeetcodeID), zap.Error(err))
			continue
		}
		if b.add(p, types.SelectionReason{
			Type:   types.SelectionLearningReview,
			Reason: "due learning review",
		}) {
			added++
		}
	}
}

// addNewProblems implements Priority 3. A store failure degrades to
// nothing; a scoring input failure degrades to catalog order.
func (a *Assembler) addNewProblems(ctx context.Context, b *build, req Request) {
	needed := b.remaining()
	if needed <= 0 {
		return
	}

	exclude := make(map[int]bool, len(b.seen))
	for id := range b.seen {
		exclude[id] = true
	}
	if rows, err := a.userProblems.List(ctx); err == nil {
		for _, up := range rows {
			if up.AttemptStats.Total > 0 {
				exclude[up.LeetcodeID] = true
			}
		}
	} else {
		a.logger.Warn("attempted-problem exclusion unavailable", zap.Error(err))
	}

	limit := needed * 3
	if limit > a.tunables.CandidateCap {
		limit = a.tunables.CandidateCap
	}

	candidates, err := a.catalog.ListWithFilter(ctx, storage.ProblemFilter{
		Tags:          req.State.CurrentAllowedTags,
		DifficultyCap: req.State.CurrentDifficultyCap,
		ExcludeIDs:    exclude,
		Limit:         limit,
	})
	if err != nil {
		a.logger.Error("new-problem fetch failed, returning partial session", zap.Error(err))
		return
	}

	if !req.Onboarding {
		candidates = a.rankByOptimalPath(ctx, candidates)
	}

	for _, p := range candidates {
		if b.full() {
			break
		}
		b.add(p, types.SelectionReason{Type: types.SelectionNew, Reason: "new problem"})
	}
}

// rankByOptimalPath orders candidates by a weighted blend of tag success
// rate (closer to mastery first), tag staleness, and connection strength
// to mastered tags. Scoring-input failures keep catalog order.
func (a *Assembler) rankByOptimalPath(ctx context.Context, candidates []types.Problem) []types.Problem {
	if a.tagMastery == nil || len(candidates) < 2 {
		return candidates
	}
	rows, err := a.tagMastery.List(ctx)
	if err != nil {
		a.logger.Warn("optimal-path scoring unavailable, using catalog order", zap.Error(err))
		return candidates
	}

	byTag := make(map[string]types.TagMastery, len(rows))
	masteredTags := make(map[string]bool)
	for _, row := range rows {
		byTag[row.Tag] = row
		if row.Mastered {
			masteredTags[row.Tag] = true
		}
	}

	scores := make(map[int]float64, len(candidates))
	maxConnection := 0.0
	connections := make(map[int]float64, len(candidates))
	for _, p := range candidates {
		c := a.connectionStrength(p, masteredTags)
		connections[p.LeetcodeID] = c
		if c > maxConnection {
			maxConnection = c
		}
	}

	wm, wd, wc := a.tunables.MasteryWeight, a.tunables.DecayWeight, a.tunables.ConnectionWeight
	total := wm + wd + wc
	if total > 0 {
		wm, wd, wc = wm/total, wd/total, wc/total
	}

	for _, p := range candidates {
		var rateSum, decaySum float64
		n := 0
		for _, tag := range p.Tags {
			if tm, ok := byTag[tag]; ok {
				rateSum += tm.SuccessRate()
				decaySum += tm.DecayScore
				n++
			}
		}
		masteryComponent, staleness := 0.0, 1.0
		if n > 0 {
			masteryComponent = rateSum / float64(n)
			staleness = 1 - decaySum/float64(n)
		}
		connection := 0.0
		if maxConnection > 0 {
			connection = connections[p.LeetcodeID] / maxConnection
		}
		scores[p.LeetcodeID] = wm*masteryComponent + wd*staleness + wc*connection
	}

	ranked := make([]types.Problem, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].LeetcodeID] > scores[ranked[j].LeetcodeID]
	})
	return ranked
}

func (a *Assembler) connectionStrength(p types.Problem, masteredTags map[string]bool) float64 {
	if a.tagGraph == nil {
		return 0
	}
	sum := 0.0
	for _, tag := range p.Tags {
		sum += a.tagGraph.ConnectionToMastered(tag, masteredTags)
	}
	return sum
}

// addPassiveReviews implements Priority 4: mastered-due problems fill
// leftover slots.
func (a *Assembler) addPassiveReviews(ctx context.Context, b *build, schedule review.Schedule) {
	for _, dp := range schedule.MasteredDue() {
		if b.full() {
			return
		}
		p, err := a.catalog.GetByID(ctx, dp.LeetcodeID)
		if err != nil {
			a.logger.Warn("passive review dropped: catalog miss",
				zap.Int("leetcode_id", dp.LeetcodeID), zap.Error(err))
			continue
		}
		b.add(p, types.SelectionReason{
			Type:   types.SelectionPassiveReview,
			Reason: "mastered review fill",
		})
	}
}

// addFallback fills any remaining slots from already-attempted problems,
// most overdue first.
func (a *Assembler) addFallback(ctx context.Context, b *build) {
	if b.full() {
		return
	}

	rows, err := a.userProblems.List(ctx)
	if err != nil {
		a.logger.Warn("fallback fill skipped: user problems unavailable", zap.Error(err))
		return
	}

	now := a.clock.Now()
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].ReviewSchedule.Equal(rows[j].ReviewSchedule) {
			return rows[i].ReviewSchedule.Before(rows[j].ReviewSchedule)
		}
		return decayOf(rows[i], now) < decayOf(rows[j], now)
	})

	for _, up := range rows {
		if b.full() {
			return
		}
		if up.AttemptStats.Total == 0 {
			continue
		}
		p, err := a.catalog.GetByID(ctx, up.LeetcodeID)
		if err != nil {
			continue
		}
		b.add(p, types.SelectionReason{
			Type:   types.SelectionFallback,
			Reason: "fallback fill",
		})
	}
}

// applyGuardRail rewrites the session tail when recent accuracy is poor
// and the session carries too many Hard problems. Replacements come from
// related-tag pattern ladders at Medium, then Easy.
func (a *Assembler) applyGuardRail(ctx context.Context, b *build, state types.SessionState) {
	if a.analytics == nil {
		return
	}
	recent, err := a.analytics.ListRecent(ctx, RecentAccuracySessions)
	if err != nil {
		a.logger.Warn("guard rail skipped: analytics unavailable", zap.Error(err))
		return
	}
	if len(recent) == 0 {
		return
	}
	sum := 0.0
	for _, row := range recent {
		sum += row.Accuracy
	}
	accuracy := sum / float64(len(recent))
	if accuracy > a.tunables.AccuracyThreshold {
		return
	}

	maxHard := int(math.Floor(float64(b.length) * a.tunables.MaxHardFraction))
	hardCount := 0
	for _, sp := range b.problems {
		if sp.Problem.Difficulty == types.DifficultyHard {
			hardCount++
		}
	}
	if hardCount <= maxHard {
		return
	}

	// Remove excess Hards from the tail.
	removed := 0
	kept := b.problems[:0]
	var reversedKept []types.SessionProblem
	for i := len(b.problems) - 1; i >= 0; i-- {
		sp := b.problems[i]
		if sp.Problem.Difficulty == types.DifficultyHard && hardCount-removed > maxHard {
			delete(b.seen, sp.Problem.LeetcodeID)
			removed++
			continue
		}
		reversedKept = append(reversedKept, sp)
	}
	for i := len(reversedKept) - 1; i >= 0; i-- {
		kept = append(kept, reversedKept[i])
	}
	b.problems = kept

	a.logger.Info("guard rail removed hard problems",
		zap.Int("removed", removed),
		zap.Float64("recent_accuracy", accuracy))

	for _, d := range []types.Difficulty{types.DifficultyMedium, types.DifficultyEasy} {
		if removed == 0 {
			break
		}
		removed -= a.fillFromRelatedLadders(ctx, b, state, d, removed)
	}
}

// fillFromRelatedLadders draws up to n replacement problems of the given
// difficulty from ladders of tags related to the allowed window. Returns
// how many were added.
func (a *Assembler) fillFromRelatedLadders(ctx context.Context, b *build, state types.SessionState, difficulty types.Difficulty, n int) int {
	if a.ladders == nil || a.tagGraph == nil || n <= 0 {
		return 0
	}

	var relatedTags []string
	seenTag := make(map[string]bool)
	for _, tag := range state.CurrentAllowedTags {
		for _, related := range a.tagGraph.RelatedByWeight(tag) {
			if !seenTag[related] {
				seenTag[related] = true
				relatedTags = append(relatedTags, related)
			}
		}
	}

	added := 0
	for _, tag := range relatedTags {
		if added >= n {
			break
		}
		pl, err := a.ladders.Get(ctx, tag)
		if err != nil {
			if !storage.IsNotFound(err) {
				a.logger.Warn("guard rail ladder unavailable",
					zap.String("tag", tag), zap.Error(err))
			}
			continue
		}
		for _, entry := range pl.Problems {
			if added >= n {
				break
			}
			if entry.Attempted || entry.Difficulty != difficulty || b.seen[entry.LeetcodeID] {
				continue
			}
			p, err := a.catalog.GetByID(ctx, entry.LeetcodeID)
			if err != nil {
				continue
			}
			if b.add(p, types.SelectionReason{
				Type:   types.SelectionGuardRail,
				Reason: fmt.Sprintf("replaced hard problem from %s ladder", tag),
			}) {
				added++
			}
		}
	}
	return added
}

func decayOf(up types.UserProblem, now time.Time) float64 {
	return decay.Score(up.LastAttemptDate, up.AttemptStats.SuccessRate(), up.Stability, now)
}

// IsInsufficientCatalog reports whether an assembly error means the
// catalog could not produce any problems.
func IsInsufficientCatalog(err error) bool {
	return errors.Is(err, storage.ErrInsufficientCatalog)
}
