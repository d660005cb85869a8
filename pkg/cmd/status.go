package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/executor"
	"github.com/pseudomuto/departure/pkg/migrator"
	"github.com/urfave/cli/v3"
)

const timeLayout = "2006-01-02 15:04:05 UTC"

// status creates the status command for showing migration status.
//
// Command flags:
//   - --verbose: Show the recorded revision of every migration
//
// Example usage:
//
//	departure status
//	departure status --verbose
func status(p commandParams) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show migration status",
		Description: `Display the migration status of the configured database.

The status command shows:
- Total number of migration files found
- Number of completed, pending and failed migrations
- Migrations that failed part way and will resume on the next migrate
- Whether pt-online-schema-change is enabled for each pending migration
- Execution history with timing information (when --verbose is used)`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show detailed migration information",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStatus(ctx, cmd, p)
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command, p commandParams) error {
	out := output(cmd)

	s, err := openSession(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	slog.Info("Checking migration status", "database", s.config.Connection.Database)

	migrationDir, err := s.migrations()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Migration Status")
	fmt.Fprintf(out, "Migration directory: %s\n", migrationsDir(s.configPath, s.config))
	fmt.Fprintln(out)

	if len(migrationDir.Migrations) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return nil
	}

	bootstrapped, err := executor.New(executor.Config{Database: s.adapter}).IsBootstrapped(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check bootstrap status")
	}

	if !bootstrapped {
		showUnbootstrappedStatus(out, s.config, migrationDir)
		return nil
	}

	revisionSet, err := migrator.LoadRevisions(ctx, s.adapter)
	if err != nil {
		return errors.Wrap(err, "failed to load revisions")
	}

	completed := revisionSet.GetCompleted(migrationDir)
	pending := revisionSet.GetPending(migrationDir)
	failed := revisionSet.GetFailed(migrationDir)

	fmt.Fprintf(out, "Total migrations: %d\n", len(migrationDir.Migrations))
	fmt.Fprintf(out, "✅ Completed: %d\n", len(completed))
	fmt.Fprintf(out, "⏳ Pending: %d\n", len(pending))
	fmt.Fprintf(out, "❌ Failed: %d\n", len(failed))
	fmt.Fprintln(out)

	if len(completed) > 0 {
		last := completed[len(completed)-1]
		fmt.Fprintf(out, "Last applied: %s at %s\n", last.ID(),
			revisionSet.GetRevision(last).ExecutedAt.UTC().Format(timeLayout))
		fmt.Fprintln(out)
	}

	showFailedMigrations(out, migrationDir, revisionSet)
	showPendingMigrations(out, s.config, pending, revisionSet)

	if cmd.Bool("verbose") {
		showVerboseStatus(out, migrationDir, revisionSet)
	}

	switch {
	case len(failed) > 0:
		fmt.Fprintln(out, "💡 Fix the failed migration and run 'departure migrate' to resume it")
	case len(pending) > 0:
		fmt.Fprintln(out, "💡 Run 'departure migrate' to apply pending migrations")
	default:
		fmt.Fprintln(out, "✅ All migrations are up to date")
	}

	return nil
}

func showUnbootstrappedStatus(out io.Writer, cfg *config.Config, migrationDir *migrator.MigrationDir) {
	fmt.Fprintln(out, "❗ schema_migrations table not found")
	fmt.Fprintln(out, "   Run 'departure migrate' to create it and apply migrations")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Found %d migration files:\n", len(migrationDir.Migrations))
	for _, migration := range migrationDir.Migrations {
		fmt.Fprintf(out, "  📄 %s (%d statements, departure %s)\n",
			migration.ID(), len(migration.Up), onlineLabel(migration.Online(cfg.Percona.EnabledByDefault)))
	}
}

func showFailedMigrations(out io.Writer, migrationDir *migrator.MigrationDir, revisionSet *migrator.RevisionSet) {
	failed := revisionSet.GetFailed(migrationDir)
	if len(failed) == 0 {
		return
	}

	fmt.Fprintln(out, "❌ Failed migrations:")
	for _, migration := range failed {
		revision := revisionSet.GetRevision(migration)
		fmt.Fprintf(out, "  %s (failed at %s, %d/%d statements applied)\n",
			migration.ID(),
			revision.ExecutedAt.UTC().Format(timeLayout),
			revision.Applied,
			revision.Total,
		)
		if revision.Error != nil {
			fmt.Fprintf(out, "    Error: %s\n", *revision.Error)
		}
	}
	fmt.Fprintln(out)
}

func showPendingMigrations(out io.Writer, cfg *config.Config, pending []*migrator.Migration, revisionSet *migrator.RevisionSet) {
	if len(pending) == 0 {
		return
	}

	fmt.Fprintln(out, "⏳ Pending migrations:")
	for _, migration := range pending {
		if revisionSet.IsFailed(migration) {
			continue
		}

		fmt.Fprintf(out, "  %s (%d statements, departure %s)\n",
			migration.ID(), len(migration.Up), onlineLabel(migration.Online(cfg.Percona.EnabledByDefault)))
	}
	fmt.Fprintln(out)
}

func showVerboseStatus(out io.Writer, migrationDir *migrator.MigrationDir, revisionSet *migrator.RevisionSet) {
	fmt.Fprintln(out, "📊 Detailed migration history:")
	fmt.Fprintln(out)

	for _, migration := range migrationDir.Migrations {
		revision := revisionSet.GetRevision(migration)
		if revision == nil {
			fmt.Fprintf(out, "  📄 %s - Not executed\n", migration.ID())
			continue
		}

		icon, text := "✅", "Completed"
		if revision.Error != nil {
			icon, text = "❌", "Failed"
		}

		fmt.Fprintf(out, "  %s %s - %s\n", icon, migration.ID(), text)
		fmt.Fprintf(out, "     Executed: %s\n", revision.ExecutedAt.UTC().Format(timeLayout))
		fmt.Fprintf(out, "     Duration: %v\n", revision.ExecutionTime)
		fmt.Fprintf(out, "     Statements: %d/%d applied\n", revision.Applied, revision.Total)
		fmt.Fprintf(out, "     Departure version: %s\n", revision.DepartureVersion)
		if revision.Error != nil {
			fmt.Fprintf(out, "     Error: %s\n", *revision.Error)
		}
		fmt.Fprintln(out)
	}
}
