package main

import (
	"strings"

	"github.com/leadsengine/dashboard/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or revert the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		applied, err := migrations.Apply(cmd.Context(), pool)
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]any{"applied": applied},
			"Applied %d migrations: %s", len(applied), strings.Join(applied, ", "))
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all migrations (drops every table)",
	RunE: func(cmd *cobra.Command, args []string) error {
		reverted, err := migrations.Revert(cmd.Context(), pool)
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]any{"reverted": reverted},
			"Reverted %d migrations: %s", len(reverted), strings.Join(reverted, ", "))
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
