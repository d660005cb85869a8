package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/executor"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/migrator"
	"github.com/urfave/cli/v3"
)

// migrate creates the migrate command for applying pending migrations.
//
// Every pending migration runs in version order. Schema changes are routed through
// pt-online-schema-change unless the migration (or percona.enabled_by_default) disables
// it, and the result of each migration is recorded in schema_migrations.
//
// Command flags:
//   - --dry-run: Show how each pending statement would be dispatched without running it
//
// Example usage:
//
//	# Apply all pending migrations
//	departure migrate
//
//	# Preview the pt-osc invocations
//	departure migrate --dry-run
func migrate(p commandParams) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "Apply pending migrations",
		Description: `Apply all pending migrations to the configured MySQL database.

Migrations execute in version order. ALTER TABLE statements run through
pt-online-schema-change while everything else runs directly on the connection.
If a statement fails the migration is recorded as failed and execution stops. Running
migrate again resumes the failed migration at the statement that failed, once the
statements that already ran are verified against their recorded hashes.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Show what would be executed without applying changes",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, p)
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, p commandParams) error {
	dryRun := cmd.Bool("dry-run")
	out := output(cmd)

	s, err := openSession(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	slog.Info("Starting migration execution",
		"database", s.config.Connection.Database,
		"dry_run", dryRun,
		"online", s.config.Percona.EnabledByDefault,
	)

	migrationDir, err := s.migrations()
	if err != nil {
		return err
	}

	if len(migrationDir.Migrations) == 0 {
		fmt.Fprintf(out, "No migrations found in %s\n", migrationsDir(s.configPath, s.config))
		return nil
	}

	slog.Info("Loaded migrations", "count", len(migrationDir.Migrations))

	exec := executor.New(executor.Config{
		Database:         s.adapter,
		Hook:             adapter.NewMigrationHook(s.adapter, s.config.Percona.EnabledByDefault),
		Metrics:          s.metrics,
		DepartureVersion: p.Version.Version,
	})

	bootstrapped, err := exec.IsBootstrapped(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check bootstrap status")
	}

	if dryRun {
		revisionSet := migrator.NewRevisionSet(nil)
		if bootstrapped {
			if revisionSet, err = migrator.LoadRevisions(ctx, s.adapter); err != nil {
				return errors.Wrap(err, "failed to load revisions")
			}
		}

		return runDryRun(out, s.config, migrationDir, revisionSet)
	}

	if !bootstrapped {
		fmt.Fprintln(out, "Creating schema_migrations table...")
	}

	results, err := exec.Execute(ctx, migrationDir.Migrations)
	if err != nil {
		return errors.Wrap(err, "failed to execute migrations")
	}

	return reportResults(out, results)
}

func runDryRun(out io.Writer, cfg *config.Config, migrationDir *migrator.MigrationDir, revisionSet *migrator.RevisionSet) error {
	fmt.Fprintln(out, "Dry run: showing migrations that would be executed")
	fmt.Fprintln(out)

	var pendingCount, resumeCount, skippedCount int

	for _, migration := range migrationDir.Migrations {
		if revisionSet.IsCompleted(migration) {
			fmt.Fprintf(out, "  ⏭  %s (already applied)\n", migration.ID())
			skippedCount++
			continue
		}

		start := 0
		if revisionSet.IsPartiallyApplied(migration) {
			revision := revisionSet.GetRevision(migration)
			fmt.Fprintf(out, "  ⚠️  %s (%d/%d statements applied - would resume)\n",
				migration.ID(), revision.Applied, revision.Total)
			start = revision.Applied
			resumeCount++
		} else {
			fmt.Fprintf(out, "  ▶  %s (%d statements, departure %s)\n",
				migration.ID(), len(migration.Up), onlineLabel(migration.Online(cfg.Percona.EnabledByDefault)))
			pendingCount++
		}

		online := migration.Online(cfg.Percona.EnabledByDefault)
		for i, sql := range migration.Up[start:] {
			plan, err := adapter.BuildPlan(cfg, sql, online)
			if err != nil {
				return errors.Wrapf(err, "failed to plan statement %d of %s", start+i+1, migration.ID())
			}

			fmt.Fprintf(out, "     [%s] %s\n", plan.Route, truncate(sql, 80))
			if plan.Route == metrics.RouteOnline {
				fmt.Fprintf(out, "       $ %s\n", plan.Command)
			}
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Summary: %d migrations would be executed, %d would be resumed, %d already applied\n",
		pendingCount, resumeCount, skippedCount)

	if pendingCount == 0 && resumeCount == 0 {
		fmt.Fprintln(out, "All migrations are up to date.")
	}

	return nil
}

func reportResults(out io.Writer, results []*executor.ExecutionResult) error {
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Migration execution results:")
	fmt.Fprintln(out)

	var (
		successCount int
		failedCount  int
		skippedCount int
		lastError    error
	)

	for _, result := range results {
		switch result.Status {
		case executor.StatusSuccess:
			fmt.Fprintf(out, "  ✅ %s completed in %v (%d/%d statements, %d rows)\n",
				result.Version,
				result.ExecutionTime,
				result.StatementsApplied,
				result.TotalStatements,
				result.RowsAffected,
			)
			successCount++

		case executor.StatusFailed:
			fmt.Fprintf(out, "  ❌ %s failed after %v (%d/%d statements)\n",
				result.Version,
				result.ExecutionTime,
				result.StatementsApplied,
				result.TotalStatements,
			)
			if result.Error != nil {
				fmt.Fprintf(out, "     Error: %v\n", result.Error)
				lastError = result.Error
			}
			failedCount++

		case executor.StatusSkipped:
			fmt.Fprintf(out, "  ⏭  %s (already applied)\n", result.Version)
			skippedCount++
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Summary: %d successful, %d failed, %d skipped\n",
		successCount, failedCount, skippedCount)

	if failedCount > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "❌ Migration execution failed. Please review the errors above.")
		fmt.Fprintln(out, "   Failed migrations resume from the failed statement on the next run.")
		return lastError
	}

	fmt.Fprintln(out)
	if successCount > 0 {
		fmt.Fprintln(out, "✅ All migrations executed successfully.")
	} else {
		fmt.Fprintln(out, "ℹ️  All migrations are up to date.")
	}

	return nil
}

func onlineLabel(online bool) string {
	if online {
		return "enabled"
	}

	return "disabled"
}
