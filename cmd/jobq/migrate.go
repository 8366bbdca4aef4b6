package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jobq/internal/config"
	"jobq/internal/store"
)

func newMigrateCmd(cfg *config.Config, structured func() bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect || dryRun {
				plan, err := migrationPlan(cfg)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}
				if structured() {
					return writeStructured(plan)
				}
				return writeMigrationPlan(plan)
			}

			// Same as what happens on server start.
			st, err := store.Open(storeOptions(cfg))
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			plan, err := store.MigrationPlan(st.DB())
			if err != nil {
				return err
			}
			if structured() {
				return writeStructured(plan)
			}
			return writePlain("Migrations applied successfully (schema version %d).\n", plan.CurrentVersion)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func migrationPlan(cfg *config.Config) (*store.MigrationStatus, error) {
	db, err := store.OpenRaw(storeOptions(cfg))
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return store.MigrationPlan(db)
}

func writeMigrationPlan(plan *store.MigrationStatus) error {
	_ = writePlain("Current version: %d\n", plan.CurrentVersion)
	_ = writePlain("Available version: %d\n", plan.AvailableVersion)
	if len(plan.Pending) == 0 {
		return writePlain("No pending migrations.\n")
	}
	_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
	for _, m := range plan.Pending {
		if err := writePlain("  %d: %s\n", m.Version, m.Description); err != nil {
			return err
		}
	}
	return nil
}
