// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/assembler"
	"github.com/smithrashell/CodeMaster-sub008/pkg/config"
	"github.com/smithrashell/CodeMaster-sub008/pkg/engine"
	"github.com/smithrashell/CodeMaster-sub008/pkg/graphs"
	"github.com/smithrashell/CodeMaster-sub008/pkg/ladder"
	"github.com/smithrashell/CodeMaster-sub008/pkg/mastery"
	"github.com/smithrashell/CodeMaster-sub008/pkg/progression"
	"github.com/smithrashell/CodeMaster-sub008/pkg/reducer"
	"github.com/smithrashell/CodeMaster-sub008/pkg/review"
	"github.com/smithrashell/CodeMaster-sub008/pkg/settings"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage/sqlite"
)

// app bundles the wired engine with everything a command needs.
type app struct {
	engine *engine.Engine
	stores storage.Stores
	store  *sqlite.Store
	logger *zap.Logger
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// buildApp opens the database and wires the full engine stack from the
// loaded configuration.
func buildApp(ctx context.Context) (*app, error) {
	logger := newLogger()

	store, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
	}
	stores := store.Stores()

	// A tag catalog file overrides whatever the database holds.
	if cfg.TagCatalogPath != "" {
		rows, err := config.LoadTagCatalog(cfg.TagCatalogPath, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to load tag catalog: %w", err)
		}
		if err := store.SeedTagCatalog(ctx, rows); err != nil {
			store.Close()
			return nil, err
		}
	}

	tagRows, err := stores.TagCatalog.List(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to list tag catalog: %w", err)
	}
	if len(tagRows) == 0 {
		store.Close()
		return nil, fmt.Errorf("tag catalog is empty; run 'codemaster seed' first")
	}

	edges, err := stores.ProblemEdges.ListProblemEdges(ctx)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to list problem edges: %w", err)
	}

	tagGraph, err := graphs.NewTagGraph(tagRows)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build tag graph: %w", err)
	}
	problemGraph, err := graphs.NewProblemGraph(edges)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to build problem graph: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Sweeper.Timezone)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Sweeper.Timezone, err)
	}
	clock := storage.SystemClock{Location: loc}
	retrier := storage.NewRetrier(storage.DefaultRetryPolicies(), logger)

	scheduler, err := review.NewScheduler(review.Config{
		UserProblems: stores.UserProblems, Clock: clock, Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	masteryEngine, err := mastery.NewEngine(mastery.Config{
		UserProblems: stores.UserProblems, TagMastery: stores.TagMastery,
		Catalog: stores.Catalog, Clock: clock, Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	progressionEngine, err := progression.NewEngine(progression.Config{
		TagMastery: stores.TagMastery, TagGraph: tagGraph, Clock: clock, Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	settingsEngine, err := settings.NewEngine(settings.Config{Clock: clock, Logger: logger})
	if err != nil {
		store.Close()
		return nil, err
	}

	mw, dw, cw := cfg.NormalizedScoringWeights()
	asm, err := assembler.NewAssembler(assembler.Config{
		Catalog: stores.Catalog, UserProblems: stores.UserProblems,
		Sessions: stores.Sessions, TagMastery: stores.TagMastery,
		Ladders: stores.Ladders, Analytics: stores.Analytics,
		Scheduler: scheduler, ProblemGraph: problemGraph, TagGraph: tagGraph,
		Clock: clock, Logger: logger,
		Tunables: assembler.Tunables{
			MasteryWeight:     mw,
			DecayWeight:       dw,
			ConnectionWeight:  cw,
			MaxHardFraction:   cfg.GuardRail.MaxHardFraction,
			AccuracyThreshold: cfg.GuardRail.AccuracyThreshold,
			CandidateCap:      cfg.Assembly.CandidateCap,
		},
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	ladderGen, err := ladder.NewGenerator(ladder.Config{
		Catalog: stores.Catalog, UserProblems: stores.UserProblems,
		ProblemGraph: problemGraph, TagGraph: tagGraph, Clock: clock, Logger: logger,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	red, err := reducer.NewReducer(reducer.Config{
		Catalog: stores.Catalog, UserProblems: stores.UserProblems,
		TagMastery: stores.TagMastery, Analytics: stores.Analytics,
		SessionStates: stores.SessionStates, Ladders: stores.Ladders,
		Mastery: masteryEngine, LadderGen: ladderGen, Clock: clock, Logger: logger,
		Retrier: retrier,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.NewEngine(engine.Config{
		Stores:           stores,
		Settings:         settingsEngine,
		Progression:      progressionEngine,
		Assembler:        asm,
		Reducer:          red,
		Clock:            clock,
		Logger:           logger,
		AssemblyDeadline: cfg.Assembly.Deadline,
		AbandonAfter:     cfg.Sweeper.AbandonAfter,
		Retrier:          retrier,
		SweepSpec:        cfg.Sweeper.CronSpec,
		SweepLocation:    loc,
		Cache:            storage.NewSnapshotCache(cfg.Cache.MaxEntries, cfg.Cache.TTL),
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{engine: eng, stores: stores, store: store, logger: logger}, nil
}
