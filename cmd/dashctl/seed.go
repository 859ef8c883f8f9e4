package main

import (
	"time"

	"github.com/leadsengine/dashboard/internal/seed"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create test accounts and data",
}

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create the test admin if missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		created, err := seed.Admin(cmd.Context(), pool)
		if err != nil {
			return err
		}
		if !created {
			return printResult(cmd, map[string]any{"created": false, "email": seed.TestAdminEmail},
				"Test admin %s already exists", seed.TestAdminEmail)
		}
		return printResult(cmd, map[string]any{"created": true, "email": seed.TestAdminEmail},
			"Created test admin %s (password %s)", seed.TestAdminEmail, seed.TestAdminPassword)
	},
}

var seedLeadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Replace the test user's leads with generated ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := seed.Leads(cmd.Context(), pool, time.Now())
		if err != nil {
			return err
		}
		return printResult(cmd, map[string]any{
			"userId":       result.User.ID,
			"email":        result.User.Email,
			"leadsCreated": result.Counts,
		}, "Seeded %d leads for %s", result.Counts.Total(), result.User.Email)
	},
}

func init() {
	seedCmd.AddCommand(seedAdminCmd, seedLeadsCmd)
	rootCmd.AddCommand(seedCmd)
}
