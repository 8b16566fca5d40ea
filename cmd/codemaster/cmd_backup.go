// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smithrashell/CodeMaster-sub008/pkg/storage/sqlite"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a verified snapshot of the database",
	Long: `Backup copies the database with VACUUM INTO and verifies the copy
with an integrity check. The snapshot is written next to the database
file with a timestamp suffix; snapshots beyond backup.keep are pruned,
oldest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backupPath, err := sqlite.Backup(cfg.DatabasePath)
		if err != nil {
			return err
		}
		fmt.Printf("Backup written to %s\n", backupPath)

		removed, err := sqlite.PruneBackups(cfg.DatabasePath, cfg.Backup.Keep)
		if err != nil {
			return err
		}
		if removed > 0 {
			fmt.Printf("Pruned %d old snapshot(s)\n", removed)
		}
		return nil
	},
}
