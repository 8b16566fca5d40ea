// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package engine is the adaptive practice engine's entry point. It ties
// settings, progression, assembly, and reduction into the session
// lifecycle and serializes all user-state mutations behind one lock.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/assembler"
	"github.com/smithrashell/CodeMaster-sub008/pkg/progression"
	"github.com/smithrashell/CodeMaster-sub008/pkg/reducer"
	"github.com/smithrashell/CodeMaster-sub008/pkg/settings"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

// DefaultAssemblyDeadline bounds one session assembly.
const DefaultAssemblyDeadline = 20 * time.Second

// DefaultSweepSpec runs the expiry sweep daily at 03:00.
const DefaultSweepSpec = "0 3 * * *"

const focusAnalyticsCacheKey = "focus-analytics"

// Config wires the engine.
type Config struct {
	Stores      storage.Stores
	Settings    *settings.Engine
	Progression *progression.Engine
	Assembler   *assembler.Assembler
	Reducer     *reducer.Reducer
	Clock       storage.Clock
	Logger      *zap.Logger

	// AssemblyDeadline defaults to 20s.
	AssemblyDeadline time.Duration

	// AbandonAfter is the idle window past which an untouched generator
	// session counts as abandoned at start. Defaults to 24h.
	AbandonAfter time.Duration

	// Retrier backs every store write off on transient failures. Nil
	// gets the default per-priority policies.
	Retrier *storage.Retrier

	// SweepSpec is the cron expression for the expiry sweep; SweepLocation
	// is its timezone. Defaults: daily 03:00, local time.
	SweepSpec     string
	SweepLocation *time.Location

	// Cache holds read-path snapshots. Nil disables caching.
	Cache *storage.SnapshotCache
}

// Engine is the adaptive practice engine for one user.
type Engine struct {
	stores      storage.Stores
	settings    *settings.Engine
	progression *progression.Engine
	assembler   *assembler.Assembler
	reducer     *reducer.Reducer
	clock       storage.Clock
	logger      *zap.Logger
	deadline    time.Duration
	abandon     time.Duration
	retrier     *storage.Retrier
	cache       *storage.SnapshotCache

	// mu serializes user-state mutations. Read paths take snapshot reads
	// and skip it.
	mu sync.Mutex

	sweepSpec string
	sweepLoc  *time.Location
	cron      *cron.Cron
}

// NewEngine creates the engine.
func NewEngine(config Config) (*Engine, error) {
	if config.Stores.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if config.Stores.SessionStates == nil {
		return nil, fmt.Errorf("session state store is required")
	}
	if config.Stores.Attempts == nil {
		return nil, fmt.Errorf("attempt log is required")
	}
	if config.Settings == nil {
		return nil, fmt.Errorf("settings engine is required")
	}
	if config.Progression == nil {
		return nil, fmt.Errorf("progression engine is required")
	}
	if config.Assembler == nil {
		return nil, fmt.Errorf("assembler is required")
	}
	if config.Reducer == nil {
		return nil, fmt.Errorf("reducer is required")
	}
	if config.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.AssemblyDeadline <= 0 {
		config.AssemblyDeadline = DefaultAssemblyDeadline
	}
	if config.AbandonAfter <= 0 {
		config.AbandonAfter = DefaultAbandonAfter
	}
	if config.Retrier == nil {
		config.Retrier = storage.NewRetrier(nil, config.Logger)
	}
	if config.SweepSpec == "" {
		config.SweepSpec = DefaultSweepSpec
	}
	if config.SweepLocation == nil {
		config.SweepLocation = time.Local
	}
	return &Engine{
		stores:      config.Stores,
		settings:    config.Settings,
		progression: config.Progression,
		assembler:   config.Assembler,
		reducer:     config.Reducer,
		clock:       config.Clock,
		logger:      config.Logger,
		deadline:    config.AssemblyDeadline,
		abandon:     config.AbandonAfter,
		retrier:     config.Retrier,
		cache:       config.Cache,
		sweepSpec:   config.SweepSpec,
		sweepLoc:    config.SweepLocation,
	}, nil
}

// StartSession resumes the in-progress session if one survives the
// staleness classifier, otherwise computes settings, evaluates the tier,
// and assembles a fresh session. Safe to call repeatedly.
func (e *Engine) StartSession(ctx context.Context) (types.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()

	if existing, ok, err := e.resumableSession(ctx, now); err != nil {
		return types.Session{}, err
	} else if ok {
		return existing, nil
	}

	state, err := e.stores.SessionStates.Get(ctx)
	if err != nil && !storage.IsNotFound(err) {
		return types.Session{}, fmt.Errorf("failed to load session state: %w", err)
	}

	tier, err := e.progression.Evaluate(ctx, state.TierStartDate)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to evaluate tier: %w", err)
	}

	lastAttempt, err := e.lastAttemptDate(ctx)
	if err != nil {
		return types.Session{}, err
	}

	state = e.settings.Compute(settings.Input{
		State:           state,
		FocusTags:       tier.FocusTags,
		Tier:            tier.Tier,
		LastAttemptDate: lastAttempt,
	})
	if err := e.putSessionState(ctx, state); err != nil {
		return types.Session{}, fmt.Errorf("failed to store session state: %w", err)
	}

	assemblyCtx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()
	problems, err := e.assembler.Build(assemblyCtx, assembler.Request{
		State:      state,
		Onboarding: tier.Onboarding || state.NumSessionsCompleted < settings.OnboardingSessions,
	})
	if err != nil {
		if assembler.IsInsufficientCatalog(err) {
			// The caller presents the empty session; nothing is persisted.
			return types.Session{}, err
		}
		return types.Session{}, fmt.Errorf("session assembly failed: %w", err)
	}

	session := types.Session{
		SessionID:        uuid.NewString(),
		Date:             now,
		Status:           types.SessionInProgress,
		Problems:         problems,
		SessionType:      types.SessionTypeStandard,
		Origin:           types.OriginGenerator,
		LastActivityTime: now,
	}
	if err := e.putSession(ctx, storage.PriorityHigh, session); err != nil {
		return types.Session{}, fmt.Errorf("failed to store session: %w", err)
	}

	e.invalidateReadCache()
	e.logger.Info("session started",
		zap.String("session_id", session.SessionID),
		zap.Int("problems", len(session.Problems)))
	return session, nil
}

// resumableSession returns the current in-progress session when the
// staleness classifier lets it live, applying expiry or auto-completion
// otherwise.
func (e *Engine) resumableSession(ctx context.Context, now time.Time) (types.Session, bool, error) {
	open, err := e.stores.Sessions.ListByStatus(ctx, types.SessionInProgress)
	if err != nil {
		return types.Session{}, false, fmt.Errorf("failed to list open sessions: %w", err)
	}
	if len(open) == 0 {
		return types.Session{}, false, nil
	}

	session := open[len(open)-1]
	outside, err := e.outsideAttempts(ctx, session)
	if err != nil {
		return types.Session{}, false, err
	}

	verdict := ClassifyStaleSessionAfter(session, outside, now, e.abandon)
	e.logger.Debug("classified open session",
		zap.String("session_id", session.SessionID),
		zap.String("class", string(verdict.Class)),
		zap.String("action", string(verdict.Action)))

	switch verdict.Action {
	case types.ActionExpire, types.ActionCreateNewTracking, types.ActionRefreshGuidedSession:
		session.Status = types.SessionExpired
		if err := e.putSession(ctx, storage.PriorityNormal, session); err != nil {
			return types.Session{}, false, fmt.Errorf("failed to expire session: %w", err)
		}
		return types.Session{}, false, nil

	case types.ActionAutoComplete:
		if _, err := e.completeLocked(ctx, session); err != nil {
			return types.Session{}, false, err
		}
		return types.Session{}, false, nil

	default:
		// no_action and flag_for_user_choice both resume; flagged
		// sessions stay the user's call, not the engine's.
		return session, true, nil
	}
}

// RecordAttempt appends an attempt to the session and the attempt log.
// The attempt that covers the session's last remaining problem completes
// the session and runs the reducer.
func (e *Engine) RecordAttempt(ctx context.Context, sessionID string, attempt types.Attempt) (types.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status != types.SessionInProgress {
		return types.Session{}, fmt.Errorf("%w: session %s is %s", storage.ErrInvalidInput, sessionID, session.Status)
	}
	if !session.ContainsProblem(attempt.LeetcodeID) {
		return types.Session{}, fmt.Errorf("%w: problem %d is not in session %s",
			storage.ErrInvalidInput, attempt.LeetcodeID, sessionID)
	}

	now := e.clock.Now()
	if attempt.AttemptID == "" {
		attempt.AttemptID = uuid.NewString()
	}
	if attempt.AttemptDate.IsZero() {
		attempt.AttemptDate = now
	}
	attempt.SessionID = sessionID

	if err := e.appendAttempt(ctx, attempt); err != nil {
		return types.Session{}, fmt.Errorf("failed to append attempt: %w", err)
	}

	session.Attempts = append(session.Attempts, attempt)
	session.LastActivityTime = now

	if e.allProblemsAttempted(session) {
		return e.completeLocked(ctx, session)
	}

	if err := e.putSession(ctx, storage.PriorityHigh, session); err != nil {
		return types.Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// CompleteSession forces completion and returns the session analytics.
// Safe to call twice; the second call returns the stored analytics.
func (e *Engine) CompleteSession(ctx context.Context, sessionID string) (types.SessionAnalytics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return types.SessionAnalytics{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	if session.Status == types.SessionCompleted {
		result, err := e.reducer.Apply(ctx, session)
		if err != nil {
			return types.SessionAnalytics{}, err
		}
		return result.Analytics, nil
	}
	if session.Status == types.SessionExpired {
		return types.SessionAnalytics{}, fmt.Errorf("%w: session %s is expired", storage.ErrInvalidInput, sessionID)
	}

	completed, err := e.completeLocked(ctx, session)
	if err != nil {
		return types.SessionAnalytics{}, err
	}
	result, err := e.reducer.Apply(ctx, completed)
	if err != nil {
		return types.SessionAnalytics{}, err
	}
	return result.Analytics, nil
}

// completeLocked transitions the session to completed, persists it, and
// runs the reducer. Callers hold e.mu.
func (e *Engine) completeLocked(ctx context.Context, session types.Session) (types.Session, error) {
	session.Status = types.SessionCompleted
	session.LastActivityTime = e.clock.Now()
	if err := e.putSession(ctx, storage.PriorityHigh, session); err != nil {
		return types.Session{}, fmt.Errorf("failed to store completed session: %w", err)
	}
	if _, err := e.reducer.Apply(ctx, session); err != nil {
		return types.Session{}, fmt.Errorf("failed to reduce session %s: %w", session.SessionID, err)
	}
	e.invalidateReadCache()
	e.logger.Info("session completed", zap.String("session_id", session.SessionID))
	return session, nil
}

// SkipProblem removes an unattempted problem from the session.
func (e *Engine) SkipProblem(ctx context.Context, sessionID string, leetcodeID int) (types.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.stores.Sessions.Get(ctx, sessionID)
	if err != nil {
		return types.Session{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if session.Status != types.SessionInProgress {
		return types.Session{}, fmt.Errorf("%w: session %s is %s", storage.ErrInvalidInput, sessionID, session.Status)
	}

	kept := session.Problems[:0]
	found := false
	for _, sp := range session.Problems {
		if sp.Problem.LeetcodeID == leetcodeID {
			found = true
			continue
		}
		kept = append(kept, sp)
	}
	if !found {
		return types.Session{}, fmt.Errorf("%w: problem %d is not in session %s",
			storage.ErrInvalidInput, leetcodeID, sessionID)
	}
	session.Problems = kept
	session.LastActivityTime = e.clock.Now()

	if len(session.Problems) > 0 && e.allProblemsAttempted(session) {
		return e.completeLocked(ctx, session)
	}

	if err := e.putSession(ctx, storage.PriorityHigh, session); err != nil {
		return types.Session{}, fmt.Errorf("failed to store session: %w", err)
	}
	return session, nil
}

// FocusInsight summarizes one focus tag for the dashboard read path.
type FocusInsight struct {
	Tag         string
	Mastered    bool
	SuccessRate float64
	DecayScore  float64
}

// FocusAnalytics returns per-focus-tag mastery insights. Results are
// cached for the configured TTL; the cache is never authoritative.
func (e *Engine) FocusAnalytics(ctx context.Context) ([]FocusInsight, error) {
	now := e.clock.Now()
	if e.cache != nil {
		if v, ok := e.cache.Get(focusAnalyticsCacheKey, now); ok {
			return v.([]FocusInsight), nil
		}
	}

	state, err := e.stores.SessionStates.Get(ctx)
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load session state: %w", err)
	}

	insights := make([]FocusInsight, 0, len(state.CurrentAllowedTags))
	for _, tag := range state.CurrentAllowedTags {
		insight := FocusInsight{Tag: tag}
		if tm, err := e.stores.TagMastery.Get(ctx, tag); err == nil {
			insight.Mastered = tm.Mastered
			insight.SuccessRate = tm.SuccessRate()
			insight.DecayScore = tm.DecayScore
		} else if !storage.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load tag mastery %q: %w", tag, err)
		}
		insights = append(insights, insight)
	}

	if e.cache != nil {
		e.cache.Put(focusAnalyticsCacheKey, insights, now)
	}
	return insights, nil
}

// StartSweeper launches the background cron that expires or auto-completes
// stale sessions. Call StopSweeper on shutdown.
func (e *Engine) StartSweeper() error {
	if e.cron != nil {
		return fmt.Errorf("sweeper already running")
	}
	c := cron.New(cron.WithLocation(e.sweepLoc))
	_, err := c.AddFunc(e.sweepSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := e.SweepStaleSessions(ctx); err != nil {
			e.logger.Error("session sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep spec %q: %w", e.sweepSpec, err)
	}
	c.Start()
	e.cron = c
	e.logger.Info("session sweeper started", zap.String("spec", e.sweepSpec))
	return nil
}

// StopSweeper stops the background cron and waits for a running sweep.
func (e *Engine) StopSweeper() {
	if e.cron == nil {
		return
	}
	<-e.cron.Stop().Done()
	e.cron = nil
	e.logger.Info("session sweeper stopped")
}

// SweepStaleSessions classifies every open session and applies the
// recommended action.
func (e *Engine) SweepStaleSessions(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	open, err := e.stores.Sessions.ListByStatus(ctx, types.SessionInProgress)
	if err != nil {
		return fmt.Errorf("failed to list open sessions: %w", err)
	}

	now := e.clock.Now()
	for _, session := range open {
		outside, err := e.outsideAttempts(ctx, session)
		if err != nil {
			e.logger.Warn("sweep skipped session",
				zap.String("session_id", session.SessionID), zap.Error(err))
			continue
		}
		verdict := ClassifyStaleSessionAfter(session, outside, now, e.abandon)

		switch verdict.Action {
		case types.ActionExpire, types.ActionCreateNewTracking, types.ActionRefreshGuidedSession:
			session.Status = types.SessionExpired
			if err := e.putSession(ctx, storage.PriorityLow, session); err != nil {
				e.logger.Warn("sweep failed to expire session",
					zap.String("session_id", session.SessionID), zap.Error(err))
				continue
			}
			e.logger.Info("sweep expired session",
				zap.String("session_id", session.SessionID),
				zap.String("class", string(verdict.Class)))

		case types.ActionAutoComplete:
			if _, err := e.completeLocked(ctx, session); err != nil {
				e.logger.Warn("sweep failed to auto-complete session",
					zap.String("session_id", session.SessionID), zap.Error(err))
				continue
			}
			e.logger.Info("sweep auto-completed session",
				zap.String("session_id", session.SessionID))
		}
	}

	if e.cache != nil {
		if evicted := e.cache.EvictExpired(now); evicted > 0 {
			e.logger.Debug("sweep evicted cache snapshots", zap.Int("evicted", evicted))
		}
	}
	return nil
}

// Store writes route through the retry layer so transient failures back
// off within the operation's priority budget.

func (e *Engine) putSession(ctx context.Context, priority storage.Priority, session types.Session) error {
	return e.retrier.Do(ctx, priority, "sessions.put", func(ctx context.Context) error {
		return e.stores.Sessions.Put(ctx, session)
	})
}

func (e *Engine) putSessionState(ctx context.Context, state types.SessionState) error {
	return e.retrier.Do(ctx, storage.PriorityHigh, "session_state.put", func(ctx context.Context) error {
		return e.stores.SessionStates.Put(ctx, state)
	})
}

func (e *Engine) appendAttempt(ctx context.Context, attempt types.Attempt) error {
	return e.retrier.Do(ctx, storage.PriorityHigh, "attempts.append", func(ctx context.Context) error {
		return e.stores.Attempts.Append(ctx, attempt)
	})
}

func (e *Engine) allProblemsAttempted(session types.Session) bool {
	attempted := session.AttemptedIDs()
	for _, sp := range session.Problems {
		if !attempted[sp.Problem.LeetcodeID] {
			return false
		}
	}
	return len(session.Problems) > 0
}

// outsideAttempts counts attempts recorded outside the session since it
// started.
func (e *Engine) outsideAttempts(ctx context.Context, session types.Session) (int, error) {
	recent, err := e.stores.Attempts.ListRecent(ctx, 50)
	if err != nil {
		return 0, fmt.Errorf("failed to list recent attempts: %w", err)
	}
	count := 0
	for _, a := range recent {
		if a.SessionID != session.SessionID && a.AttemptDate.After(session.Date) {
			count++
		}
	}
	return count, nil
}

func (e *Engine) lastAttemptDate(ctx context.Context) (*time.Time, error) {
	recent, err := e.stores.Attempts.ListRecent(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent attempts: %w", err)
	}
	if len(recent) == 0 {
		return nil, nil
	}
	ts := recent[0].AttemptDate
	return &ts, nil
}

func (e *Engine) invalidateReadCache() {
	if e.cache != nil {
		e.cache.Invalidate(focusAnalyticsCacheKey)
	}
}
