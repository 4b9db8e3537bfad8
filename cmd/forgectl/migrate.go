// cmd/forgectl/migrate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ammerola/data-forge/internal/adapters/db"
	"github.com/ammerola/data-forge/internal/pkg/config"
)

type migrateOptions struct {
	source     string
	forceDirty bool
}

var migrateActions = []string{"up", "down", "version"}

func newMigrateCmd(global *globalOptions) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate [up|down|version]",
		Short: "Manage the PostgreSQL catalog schema",
		Long: `Migrate applies, rolls back or reports the catalog_items schema of the
PostgreSQL store named by the DB_* settings. The API applies pending
migrations at startup; this command is for operators.

  up       apply every pending migration (default)
  down     roll back the most recent migration
  version  print the current version and whether it is dirty`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateActions,
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}
			return runMigrate(cmd, global, opts, action)
		},
	}

	cmd.Flags().StringVar(&opts.source, "source", "", "Directory of migration files (default embedded)")
	cmd.Flags().BoolVar(&opts.forceDirty, "force-dirty", false, "Force a dirty version clean before migrating up")

	return cmd
}

func runMigrate(cmd *cobra.Command, global *globalOptions, opts *migrateOptions, action string) error {
	ctx, cancel := withTimeout(cmd, global)
	defer cancel()

	log, closeLog, err := newLogger(global, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(log)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Store.Driver != config.StoreDriverPostgres {
		return fmt.Errorf("migrate needs STORE_DRIVER=%s, have %q", config.StoreDriverPostgres, cfg.Store.Driver)
	}

	migrator, err := db.NewMigrator(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		SourcePath:  opts.source,
		ForceDirty:  opts.forceDirty,
	}, log)
	if err != nil {
		return err
	}
	defer migrator.Close()

	switch action {
	case "up":
		err = migrator.Up(ctx)
	case "down":
		err = migrator.Down(ctx)
	}
	if err != nil {
		return err
	}

	version, dirty, err := migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	return nil
}
