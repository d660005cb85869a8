package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/cmd/testutil"
	"github.com/stretchr/testify/require"
)

func TestMigrateCommand(t *testing.T) {
	t.Run("applies pending migrations", func(t *testing.T) {
		f := testutil.TestProject(t).WithMigrations(
			testutil.MigrationFile{ID: "20250101000000_create_comments", SQL: createComments},
			testutil.MigrationFile{ID: "20250102000000_add_some_id", SQL: addSomeID},
		)

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)

		require.Contains(t, out, "Creating schema_migrations table...")
		require.Contains(t, out, "✅ 20250101000000 completed in")
		require.Contains(t, out, "✅ 20250102000000 completed in")
		require.Contains(t, out, "Summary: 2 successful, 0 failed, 0 skipped")
		require.Contains(t, out, "-- Departure enabled for 20250102000000_add_some_id")
		require.Contains(t, out, "Running pt-online-schema-change")
		require.Contains(t, out, `--alter "ADD COLUMN some_id_field INT(8)"`)
		require.NotContains(t, out, "s3cret")

		// the ALTER ran through pt-osc, everything else on the driver
		require.Equal(t, []string{
			"CREATE TABLE comments (id INT PRIMARY KEY, body TEXT)",
			"INSERT INTO comments (id, body) VALUES (1, 'first')",
		}, f.Database.Statements())
		require.Equal(t, []string{"20250101000000", "20250102000000"}, f.Database.Versions())
		require.True(t, f.Database.Closed())
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		f := testutil.TestProject(t).WithMigrations(
			testutil.MigrationFile{ID: "20250101000000_create_comments", SQL: createComments},
		)

		_, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)
		require.Contains(t, out, "⏭  20250101000000 (already applied)")
		require.Contains(t, out, "ℹ️  All migrations are up to date.")
		require.Len(t, f.Database.Statements(), 2)
	})

	t.Run("disabled migrations run directly", func(t *testing.T) {
		f := testutil.TestProject(t).WithPTOSC("exit 1").WithMigrations(
			testutil.MigrationFile{ID: "20250101000000_add_some_id", SQL: "-- departure:disable\n" + addSomeID},
		)

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)
		require.Contains(t, out, "-- Departure disabled for 20250101000000_add_some_id")
		require.Equal(t, []string{"ALTER TABLE comments ADD COLUMN some_id_field INT(8)"}, f.Database.Statements())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		f := testutil.TestProject(t).WithMigrations(
			testutil.MigrationFile{ID: "20250101000000_create_comments", SQL: createComments},
			testutil.MigrationFile{ID: "20250102000000_add_some_id", SQL: addSomeID},
		)
		f.Database.FailOn = []string{"INSERT INTO comments"}

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		testutil.RequireError(t, err, "Error 1064")
		require.Contains(t, out, "❌ 20250101000000 failed after")
		require.Contains(t, out, "(1/2 statements)")
		require.Contains(t, out, "Summary: 0 successful, 1 failed, 0 skipped")
		require.NotContains(t, out, "20250102000000")

		// the failed attempt is recorded and resumed once fixed
		require.Equal(t, []string{"20250101000000"}, f.Database.Versions())

		f.Database.FailOn = nil
		out, err = testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)
		require.Contains(t, out, "✅ 20250101000000 completed")
		require.Equal(t, []string{
			"CREATE TABLE comments (id INT PRIMARY KEY, body TEXT)",
			"INSERT INTO comments (id, body) VALUES (1, 'first')",
		}, f.Database.Statements())
	})

	t.Run("reports pt-osc failures", func(t *testing.T) {
		f := testutil.TestProject(t).
			WithPTOSC("echo 'Error altering `blog`.`comments`' >&2\nexit 2").
			WithMigrations(testutil.MigrationFile{ID: "20250101000000_add_some_id", SQL: addSomeID})

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.Error(t, err)
		require.Contains(t, out, "❌ 20250101000000 failed after")
		require.Contains(t, err.Error(), "ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
	})

	t.Run("no migrations", func(t *testing.T) {
		f := testutil.TestProject(t)

		out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath())
		require.NoError(t, err)
		require.Contains(t, out, "No migrations found in "+f.MigrationsDir())
	})

	t.Run("writes metrics", func(t *testing.T) {
		f := testutil.TestProject(t).WithMigrations(
			testutil.MigrationFile{ID: "20250101000000_add_some_id", SQL: addSomeID},
		)
		metricsFile := filepath.Join(t.TempDir(), "departure.prom")

		_, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath(), "--metrics-file", metricsFile)
		require.NoError(t, err)

		testutil.RequireFileExists(t, metricsFile,
			testutil.RequireFileContains(t, `departure_migrations_total{status="success"} 1`),
			testutil.RequireFileContains(t, `departure_statements_total{route="online"} 1`),
			testutil.RequireFileContains(t, "departure_ptosc_run_duration_seconds"),
		)
	})
}

func TestMigrateCommand_DryRun(t *testing.T) {
	f := testutil.TestProject(t).WithMigrations(
		testutil.MigrationFile{ID: "20250101000000_create_comments", SQL: createComments},
		testutil.MigrationFile{ID: "20250102000000_add_some_id", SQL: addSomeID},
	)

	out, err := testutil.RunCommand(t, migrate(testParams(f)), f.ConfigPath(), "--dry-run")
	require.NoError(t, err)

	require.Contains(t, out, "▶  20250101000000_create_comments (2 statements, departure enabled)")
	require.Contains(t, out, "[direct] CREATE TABLE comments (id INT PRIMARY KEY, body TEXT)")
	require.Contains(t, out, "[online] ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
	require.Contains(t, out, `--alter "ADD COLUMN some_id_field INT(8)"`)
	require.Contains(t, out, "p=[filtered_password]")
	require.Contains(t, out, "Summary: 2 migrations would be executed, 0 would be resumed, 0 already applied")
	require.NotContains(t, out, "s3cret")

	require.Empty(t, f.Database.Statements())
	require.Empty(t, f.Database.Versions())

	_, err = os.Stat(f.MigrationsDir())
	require.NoError(t, err)
}

func TestMigrateCommand_Aliases(t *testing.T) {
	command := migrate(commandParams{})
	require.Equal(t, "migrate", command.Name)
	require.Contains(t, command.Aliases, "apply")
}

func TestMigrateCommand_Integration(t *testing.T) {
	_, conn := testutil.StartMySQLContainer(t)

	f := testutil.TestProject(t).WithMigrations(
		testutil.MigrationFile{ID: "20250101000000_create_comments", SQL: createComments},
		testutil.MigrationFile{ID: "20250102000000_add_some_id", SQL: addSomeID},
	)
	f.Config.Connection = conn
	f.Config.Percona.EnabledByDefault = false

	p := commandParams{Loader: f.Loader(), Connector: adapter.Open, Version: &Version{Version: "1.2.3"}}
	out, err := testutil.RunCommand(t, migrate(p), f.ConfigPath())
	require.NoError(t, err)
	require.Contains(t, out, "Summary: 2 successful, 0 failed, 0 skipped")

	out, err = testutil.RunCommand(t, status(p), f.ConfigPath())
	require.NoError(t, err)
	require.Contains(t, out, "✅ All migrations are up to date")
}
