package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/migrator"
	"github.com/stretchr/testify/require"
)

// FileCheck inspects the content of a file read by RequireFileExists.
type FileCheck func(content string)

// RequireValidProject asserts that dir holds a departure.yaml that loads and validates,
// along with the default migrations directory.
func RequireValidProject(t *testing.T, dir string) {
	t.Helper()

	require.DirExists(t, filepath.Join(dir, consts.DefaultMigrationsDir))

	cfg, err := config.LoadConfigFile(filepath.Join(dir, consts.DefaultConfigFile))
	require.NoError(t, err, "config should load")
	require.NoError(t, cfg.Validate(), "config should validate")
}

// RequireFileExists asserts that path exists and runs each check against its content.
func RequireFileExists(t *testing.T, path string, checks ...FileCheck) {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected %s to be readable", path)

	for _, check := range checks {
		check(string(data))
	}
}

// RequireFileContains checks that a file contains expected.
func RequireFileContains(t *testing.T, expected string) FileCheck {
	return func(content string) {
		t.Helper()
		require.Contains(t, content, expected)
	}
}

// RequireFileNotContains checks that a file does not contain unexpected.
func RequireFileNotContains(t *testing.T, unexpected string) FileCheck {
	return func(content string) {
		t.Helper()
		require.NotContains(t, content, unexpected)
	}
}

// RequireMigrationCount asserts that dir loads as a migration directory with n migrations.
func RequireMigrationCount(t *testing.T, dir string, n int) {
	t.Helper()

	migrationDir, err := migrator.LoadMigrationDir(os.DirFS(dir))
	require.NoError(t, err, "migrations should load from %s", dir)
	require.Len(t, migrationDir.Migrations, n)
}

// RequireError asserts that err is non-nil and its message contains every fragment.
func RequireError(t *testing.T, err error, fragments ...string) {
	t.Helper()

	require.Error(t, err)
	for _, fragment := range fragments {
		require.ErrorContains(t, err, fragment)
	}
}
