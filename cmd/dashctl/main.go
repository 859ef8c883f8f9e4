package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time.
var Version = "dev"

var (
	jsonOutput bool
	quietFlag  bool

	cfg    *config.Config
	logger *logrus.Logger
	pool   *pgxpool.Pool
)

var rootCmd = &cobra.Command{
	Use:           "dashctl",
	Short:         "dashctl - Operate the dashboard backend",
	Long:          "Run migrations, seed data, and drive the mailbox from the command line.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "version", "dashctl":
			return nil
		}

		var err error
		cfg, err = config.NewConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.LogLevel
		if quietFlag {
			level = "warn"
		}
		logger = logging.NewWithOutput(os.Stderr, cfg.Environment, level)

		pool, err = db.NewConnection(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pool != nil {
			db.CloseConnection(pool)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dashctl version %s\n", Version)
	},
}

// printResult writes v as JSON with --json, or the human line otherwise.
func printResult(cmd *cobra.Command, v any, human string, args ...any) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if quietFlag {
		return nil
	}
	_, err := fmt.Fprintf(out, human+"\n", args...)
	return err
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
