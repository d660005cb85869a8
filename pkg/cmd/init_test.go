package cmd

import (
	"path/filepath"
	"testing"

	"github.com/pseudomuto/departure/pkg/cmd/testutil"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/stretchr/testify/require"
)

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blog")

	out, err := testutil.RunCommand(t, initCmd(), "", "--dir", dir, "--host", "db.internal", "--original-adapter", "mysql")
	require.NoError(t, err)
	require.Contains(t, out, "✅ Initialized departure project in "+dir)

	testutil.RequireValidProject(t, dir)
	testutil.RequireFileExists(t, filepath.Join(dir, consts.DefaultConfigFile),
		testutil.RequireFileContains(t, "adapter: percona"),
		testutil.RequireFileContains(t, "original_adapter: mysql"),
		testutil.RequireFileContains(t, "host: db.internal"),
		testutil.RequireFileContains(t, "database: blog"),
		testutil.RequireFileNotContains(t, "{{"),
	)

	// running it again keeps the existing config
	_, err = testutil.RunCommand(t, initCmd(), "", "--dir", dir, "--host", "elsewhere")
	require.NoError(t, err)
	testutil.RequireFileExists(t, filepath.Join(dir, consts.DefaultConfigFile),
		testutil.RequireFileNotContains(t, "elsewhere"),
	)
}

func TestNewMigrationCommand(t *testing.T) {
	f := testutil.TestProject(t)

	out, err := testutil.RunCommand(t, newMigration(testParams(f)), f.ConfigPath(), "add some id to comments")
	require.NoError(t, err)
	require.Contains(t, out, "✅ Created ")
	require.Contains(t, out, "_add_some_id_to_comments.sql")
	testutil.RequireMigrationCount(t, f.MigrationsDir(), 1)

	_, err = testutil.RunCommand(t, newMigration(testParams(f)), f.ConfigPath())
	testutil.RequireError(t, err, "new requires a migration name")
}
