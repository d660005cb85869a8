package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/departure/pkg/cmd/testutil"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/stretchr/testify/require"
)

const (
	createComments = `-- +up
CREATE TABLE comments (id INT PRIMARY KEY, body TEXT);
INSERT INTO comments (id, body) VALUES (1, 'first');
-- +down
DROP TABLE comments;
`

	addSomeID = `-- +up
ALTER TABLE comments ADD COLUMN some_id_field INT(8);
-- +down
ALTER TABLE comments DROP COLUMN some_id_field;
`
)

func testParams(f *testutil.ProjectFixture) commandParams {
	return commandParams{
		Loader:    f.Loader(),
		Connector: f.Connector(),
		Version:   &Version{Version: "1.2.3"},
	}
}

func TestMigrationsDir(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, filepath.Join("/srv/app", consts.DefaultMigrationsDir), migrationsDir("/srv/app/departure.yaml", cfg))
	require.Equal(t, filepath.Join("config", consts.DefaultMigrationsDir), migrationsDir("config/departure.yaml", cfg))

	cfg.Migrations.Dir = "/var/migrations"
	require.Equal(t, "/var/migrations", migrationsDir("/srv/app/departure.yaml", cfg))
}

func TestLoadMigrations(t *testing.T) {
	t.Run("missing directory has no migrations", func(t *testing.T) {
		cfg := config.Default()
		dir, err := loadMigrations(filepath.Join(t.TempDir(), consts.DefaultConfigFile), cfg)
		require.NoError(t, err)
		require.Empty(t, dir.Migrations)
	})

	t.Run("invalid file names fail", func(t *testing.T) {
		root := t.TempDir()
		migrations := filepath.Join(root, consts.DefaultMigrationsDir)
		require.NoError(t, os.MkdirAll(migrations, consts.ModeDir))
		require.NoError(t, os.WriteFile(filepath.Join(migrations, "bad name.sql"), []byte("SELECT 1;"), consts.ModeFile))

		_, err := loadMigrations(filepath.Join(root, consts.DefaultConfigFile), config.Default())
		testutil.RequireError(t, err, "failed to load migrations", "invalid migration filename")
	})
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "SELECT 1", truncate("SELECT 1", 80))
	require.Equal(t, "ALTER T...", truncate("ALTER TABLE comments ADD COLUMN x INT", 10))
}
