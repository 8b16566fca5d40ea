// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smithrashell/CodeMaster-sub008/pkg/config"
)

var cfg *config.Config

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "codemaster",
	Short: "CodeMaster - Adaptive coding practice engine",
	Long: `CodeMaster assembles adaptive practice sessions over a coding-problem
catalog. It tracks spaced-repetition state per problem, rolls attempts up
into per-tag mastery, and adjusts session length, difficulty, and focus
tags to the user's recent performance.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("db", "", "SQLite database path (default: $CODEMASTER_DATA_DIR/codemaster.db)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backupCmd)
}

// initConfig reads the config file and CODEMASTER_ environment variables.
func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if db, _ := rootCmd.PersistentFlags().GetString("db"); db != "" {
		cfg.DatabasePath = db
	}
}

// newLogger builds a production logger honoring the --log-level flag.
func newLogger() *zap.Logger {
	zapConfig := zap.NewProductionConfig()

	logLevel := zap.WarnLevel
	if lvl, _ := rootCmd.PersistentFlags().GetString("log-level"); lvl != "" {
		if err := logLevel.UnmarshalText([]byte(lvl)); err != nil {
			log.Printf("Invalid log level %q, using WARN: %v", lvl, err)
		}
	}
	zapConfig.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := zapConfig.Build(zap.AddStacktrace(zap.ErrorLevel))
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}
