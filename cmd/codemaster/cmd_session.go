// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage"
	"github.com/smithrashell/CodeMaster-sub008/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start, advance, and complete practice sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a practice session (or resume the open one)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := a.engine.StartSession(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("Session %s (%d problems)\n\n", session.SessionID, len(session.Problems))
		printProblems(session)
		return nil
	},
}

var sessionAttemptCmd = &cobra.Command{
	Use:   "attempt <leetcode-id>",
	Short: "Record an attempt against the open session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leetcodeID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid leetcode id %q: %w", args[0], err)
		}
		success, _ := cmd.Flags().GetBool("success")
		timeSpent, _ := cmd.Flags().GetInt("time-spent")
		perceived, _ := cmd.Flags().GetFloat64("perceived")

		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := openSession(ctx, a)
		if err != nil {
			return err
		}

		updated, err := a.engine.RecordAttempt(ctx, session.SessionID, types.Attempt{
			LeetcodeID:          leetcodeID,
			Success:             success,
			TimeSpentSeconds:    timeSpent,
			PerceivedDifficulty: perceived,
		})
		if err != nil {
			return err
		}

		outcome := "failed"
		if success {
			outcome = "solved"
		}
		fmt.Printf("Recorded: problem %d %s\n", leetcodeID, outcome)
		if updated.Status == types.SessionCompleted {
			fmt.Println("Session complete.")
			return printAnalytics(ctx, a, updated.SessionID)
		}
		remaining := len(updated.Problems) - len(updated.AttemptedIDs())
		fmt.Printf("%d problem(s) remaining\n", remaining)
		return nil
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:   "complete",
	Short: "Complete the open session and show its analytics",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := openSession(ctx, a)
		if err != nil {
			return err
		}
		if _, err := a.engine.CompleteSession(ctx, session.SessionID); err != nil {
			return err
		}
		return printAnalytics(ctx, a, session.SessionID)
	},
}

var sessionSkipCmd = &cobra.Command{
	Use:   "skip <leetcode-id>",
	Short: "Remove an unattempted problem from the open session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		leetcodeID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid leetcode id %q: %w", args[0], err)
		}

		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		session, err := openSession(ctx, a)
		if err != nil {
			return err
		}
		updated, err := a.engine.SkipProblem(ctx, session.SessionID, leetcodeID)
		if err != nil {
			return err
		}
		fmt.Printf("Skipped problem %d; %d problem(s) left\n", leetcodeID, len(updated.Problems))
		return nil
	},
}

var sessionSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire or auto-complete stale sessions now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.SweepStaleSessions(ctx); err != nil {
			return err
		}
		fmt.Println("Sweep complete.")
		return nil
	},
}

func init() {
	sessionAttemptCmd.Flags().Bool("success", false, "the attempt solved the problem")
	sessionAttemptCmd.Flags().Int("time-spent", 0, "time spent in seconds")
	sessionAttemptCmd.Flags().Float64("perceived", 0, "perceived difficulty, 1-10")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionAttemptCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionSkipCmd)
	sessionCmd.AddCommand(sessionSweepCmd)
}

// openSession returns the single in-progress session.
func openSession(ctx context.Context, a *app) (types.Session, error) {
	open, err := a.stores.Sessions.ListByStatus(ctx, types.SessionInProgress)
	if err != nil {
		return types.Session{}, err
	}
	if len(open) == 0 {
		return types.Session{}, fmt.Errorf("no open session; run 'codemaster session start': %w", storage.ErrNotFound)
	}
	return open[len(open)-1], nil
}

func printProblems(session types.Session) {
	attempted := session.AttemptedIDs()
	for i, sp := range session.Problems {
		marker := " "
		if attempted[sp.Problem.LeetcodeID] {
			marker = "x"
		}
		fmt.Printf("  [%s] %d. #%d %s (%s) [%s] via %s\n",
			marker, i+1, sp.Problem.LeetcodeID, sp.Problem.Title,
			sp.Problem.Difficulty, strings.Join(sp.Problem.Tags, ", "),
			sp.Reason.Type)
	}
}

func printAnalytics(ctx context.Context, a *app, sessionID string) error {
	analytics, err := a.stores.Analytics.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("\nAccuracy: %.0f%%\n", analytics.Accuracy*100)
	fmt.Printf("Avg time: %.0fs\n", analytics.AvgTimeSeconds)
	fmt.Printf("Predominant difficulty: %s\n", analytics.PredominantDifficulty)
	if len(analytics.StrongTags) > 0 {
		fmt.Printf("Strong tags: %s\n", strings.Join(analytics.StrongTags, ", "))
	}
	if len(analytics.WeakTags) > 0 {
		fmt.Printf("Weak tags: %s\n", strings.Join(analytics.WeakTags, ", "))
	}
	return nil
}
