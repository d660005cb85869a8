package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/executor"
	"github.com/pseudomuto/departure/pkg/migrator"
	"github.com/urfave/cli/v3"
)

// rollback creates the rollback command, which reverts the most recently applied
// migration by running its -- +down section.
func rollback(p commandParams) *cli.Command {
	return &cli.Command{
		Name:  "rollback",
		Usage: "Revert the last applied migration",
		Description: `Run the -- +down section of the most recently completed migration and remove
its schema_migrations entry. Schema changes in the down section go through
pt-online-schema-change the same way migrate routes them.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runRollback(ctx, cmd, p)
		},
	}
}

func runRollback(ctx context.Context, cmd *cli.Command, p commandParams) error {
	out := output(cmd)

	s, err := openSession(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	migrationDir, err := s.migrations()
	if err != nil {
		return err
	}

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

	if !bootstrapped {
		fmt.Fprintln(out, "Nothing to roll back: no migrations have been applied.")
		return nil
	}

	revisionSet, err := migrator.LoadRevisions(ctx, s.adapter)
	if err != nil {
		return errors.Wrap(err, "failed to load revisions")
	}

	last := revisionSet.GetLastCompleted(migrationDir)
	if last == nil {
		fmt.Fprintln(out, "Nothing to roll back: no migrations have been applied.")
		return nil
	}

	slog.Info("Rolling back migration", "version", last.Version, "name", last.Name)

	result, err := exec.Rollback(ctx, last)
	if err != nil {
		return err
	}

	if result.Status == executor.StatusFailed {
		fmt.Fprintf(out, "  ❌ %s rollback failed after %v (%d/%d statements)\n",
			last.ID(), result.ExecutionTime, result.StatementsApplied, result.TotalStatements)
		fmt.Fprintf(out, "     Error: %v\n", result.Error)
		return result.Error
	}

	fmt.Fprintf(out, "  ✅ %s rolled back in %v (%d statements)\n",
		last.ID(), result.ExecutionTime, result.StatementsApplied)
	return nil
}
