package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"idees/internal/db"
	"idees/internal/logger"
	"idees/internal/services"
)

// migrateCommand applies the schema, which db.Open already does, and
// seeds tags.
func migrateCommand() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and seed tags, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(app.cfg, app.log)
			if err != nil {
				return err
			}
			if seed == "" {
				seed = app.cfg.SeedFile
			}
			if seed == "" {
				return nil
			}
			n, err := db.SeedTags(conn, seed, app.log)
			if err != nil {
				return err
			}
			app.log.Info("tags seeded", logger.Int("inserted", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "YAML tag seed file (defaults to IDEES_SEED_FILE)")
	return cmd
}

func promoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "promote <email>",
		Short: "Grant admin rights to an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(app.cfg, app.log)
			if err != nil {
				return err
			}
			admin := services.NewAdmin(conn, app.log, nil, nil)
			if err := admin.GrantAdmin(context.Background(), args[0]); err != nil {
				return fmt.Errorf("promote %s: %w", args[0], err)
			}
			app.log.Info("user promoted", logger.String("email", args[0]))
			return nil
		},
	}
}
