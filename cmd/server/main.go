package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idees/internal/config"
	"idees/internal/logger"
)

const programName = "idees"

// app holds what every subcommand needs, filled in by the root pre-run.
var app struct {
	cfg *config.Config
	log logger.Logger
}

func main() {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Community suggestion and voting server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			app.cfg = cfg
			app.log = logger.New(cfg.LogLevel, cfg.PrettyLog)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context())
		},
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(promoteCommand())

	err := rootCmd.Execute()
	if app.log != nil {
		_ = app.log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
