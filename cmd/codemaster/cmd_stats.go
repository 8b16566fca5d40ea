// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show mastery insights for the current focus tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		insights, err := a.engine.FocusAnalytics(ctx)
		if err != nil {
			return err
		}
		if len(insights) == 0 {
			fmt.Println("No focus tags yet; start a session first.")
			return nil
		}

		fmt.Printf("%-24s %-9s %-9s %s\n", "TAG", "MASTERED", "SUCCESS", "DECAY")
		for _, in := range insights {
			mastered := "no"
			if in.Mastered {
				mastered = "yes"
			}
			fmt.Printf("%-24s %-9s %-9s %.2f\n",
				in.Tag, mastered, fmt.Sprintf("%.0f%%", in.SuccessRate*100), in.DecayScore)
		}
		return nil
	},
}
