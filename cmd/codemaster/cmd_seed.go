// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smithrashell/CodeMaster-sub008/pkg/config"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/storage/sqlite"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the problem catalog and tag catalog into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		problemsPath, _ := cmd.Flags().GetString("problems")
		tagsPath, _ := cmd.Flags().GetString("tags")
		if problemsPath == "" && tagsPath == "" {
			return fmt.Errorf("nothing to seed; pass --problems and/or --tags")
		}

		ctx := context.Background()
		logger := newLogger()
		defer func() { _ = logger.Sync() }()

		store, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
		if err != nil {
			return fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath, err)
		}
		defer func() { _ = store.Close() }()

		if problemsPath != "" {
			problems, edges, err := loadProblemCatalog(problemsPath)
			if err != nil {
				return err
			}
			if err := store.SeedCatalog(ctx, problems, edges); err != nil {
				return err
			}
			fmt.Printf("Seeded %d problems, %d edges\n", len(problems), len(edges))
		}

		if tagsPath != "" {
			rows, err := config.LoadTagCatalog(tagsPath, logger)
			if err != nil {
				return err
			}
			if err := store.SeedTagCatalog(ctx, rows); err != nil {
				return err
			}
			fmt.Printf("Seeded %d tags\n", len(rows))
		}
		return nil
	},
}

func init() {
	seedCmd.Flags().String("problems", "", "problem catalog JSON file")
	seedCmd.Flags().String("tags", "", "tag catalog YAML file")
}

// problemCatalogFile is the JSON ingestion format for the problem
// catalog.
type problemCatalogFile struct {
	Problems []problemEntry `json:"problems"`
	Edges    []edgeEntry    `json:"edges"`
}

type problemEntry struct {
	LeetcodeID int      `json:"leetcode_id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags"`
}

type edgeEntry struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

func loadProblemCatalog(path string) ([]types.Problem, []storage.ProblemEdge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read problem catalog: %w", err)
	}

	var file problemCatalogFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse problem catalog %s: %w", path, err)
	}
	if len(file.Problems) == 0 {
		return nil, nil, fmt.Errorf("problem catalog %s has no problems", path)
	}

	problems := make([]types.Problem, 0, len(file.Problems))
	seen := make(map[int]bool, len(file.Problems))
	for _, p := range file.Problems {
		if p.LeetcodeID <= 0 {
			return nil, nil, fmt.Errorf("problem %q has no leetcode id", p.Slug)
		}
		if seen[p.LeetcodeID] {
			return nil, nil, fmt.Errorf("duplicate problem id %d", p.LeetcodeID)
		}
		seen[p.LeetcodeID] = true
		difficulty := types.Difficulty(p.Difficulty)
		if difficulty.Rank() == 0 {
			return nil, nil, fmt.Errorf("problem %d has unknown difficulty %q", p.LeetcodeID, p.Difficulty)
		}
		problems = append(problems, types.Problem{
			LeetcodeID: p.LeetcodeID,
			Title:      p.Title,
			Slug:       p.Slug,
			Difficulty: difficulty,
			Tags:       p.Tags,
		})
	}

	edges := make([]storage.ProblemEdge, 0, len(file.Edges))
	for _, e := range file.Edges {
		if !seen[e.From] || !seen[e.To] {
			return nil, nil, fmt.Errorf("edge %d-%d references an unknown problem", e.From, e.To)
		}
		if e.Weight <= 0 || e.Weight > 1 {
			return nil, nil, fmt.Errorf("edge %d-%d weight %v outside (0, 1]", e.From, e.To, e.Weight)
		}
		edges = append(edges, storage.ProblemEdge{From: e.From, To: e.To, Weight: e.Weight})
	}

	return problems, edges, nil
}
