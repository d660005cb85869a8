package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/project"
	"github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/stretchr/testify/require"
)

// SuccessfulRun is the output of a pt-osc run that copied 5 rows.
const SuccessfulRun = "echo 'Altering `blog`.`comments`...'\n" +
	"echo 'Copying approximately 5 rows...'\n" +
	"echo '# INSERT     5'\n" +
	"echo 'Successfully altered `blog`.`comments`.'\n"

type (
	// ProjectFixture is an initialized departure project in a temp directory, with a fake
	// pt-osc binary and an in-memory database behind its adapter.
	ProjectFixture struct {
		Dir      string
		Config   *config.Config
		Database *FakeDatabase
		t        *testing.T
	}

	// MigrationFile is a migration written by WithMigrations.
	MigrationFile struct {
		// ID is the file name without extension, e.g. 20250101120000_add_some_id.
		ID  string
		SQL string
	}
)

// TestProject creates an isolated temp directory with an initialized departure project.
// PERCONA_DB_* variables are cleared for the duration of the test.
func TestProject(t *testing.T) *ProjectFixture {
	t.Helper()

	for _, name := range []string{ptosc.EnvHost, ptosc.EnvUser, ptosc.EnvPassword, ptosc.EnvDatabase, ptosc.EnvArgs} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	require.NoError(t, project.New(dir).Initialize(project.InitOptions{Database: "blog"}), "Failed to initialize test project")

	cfg, err := config.LoadConfigFile(filepath.Join(dir, consts.DefaultConfigFile))
	require.NoError(t, err, "Failed to load config file")

	cfg.Connection.Host = "db.internal"
	cfg.Connection.Username = "deploy"
	cfg.Connection.Password = "s3cret"

	fixture := &ProjectFixture{
		Dir:      dir,
		Config:   cfg,
		Database: NewFakeDatabase(),
		t:        t,
	}

	return fixture.WithPTOSC(SuccessfulRun)
}

// WithPTOSC replaces pt-online-schema-change with a shell script.
func (p *ProjectFixture) WithPTOSC(script string) *ProjectFixture {
	p.t.Helper()

	binary := filepath.Join(p.t.TempDir(), "pt-online-schema-change")
	err := os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), consts.ModeExecutable)
	require.NoError(p.t, err, "Failed to write fake pt-osc")

	p.Config.Percona.Binary = binary
	return p
}

// WithMigrations adds migration files to the project.
func (p *ProjectFixture) WithMigrations(migrations ...MigrationFile) *ProjectFixture {
	p.t.Helper()

	dir := p.MigrationsDir()
	require.NoError(p.t, os.MkdirAll(dir, consts.ModeDir), "Failed to create migrations directory")

	for _, migration := range migrations {
		path := filepath.Join(dir, migration.ID+".sql")
		err := os.WriteFile(path, []byte(migration.SQL), consts.ModeFile)
		require.NoError(p.t, err, "Failed to write migration file: %s", path)
	}

	return p
}

// ConfigPath returns the path to the departure.yaml file.
func (p *ProjectFixture) ConfigPath() string {
	return filepath.Join(p.Dir, consts.DefaultConfigFile)
}

// MigrationsDir returns the path to the migrations directory.
func (p *ProjectFixture) MigrationsDir() string {
	return filepath.Join(p.Dir, p.Config.Migrations.Dir)
}

// Loader returns a config.Loader that serves the fixture's config for its config path.
func (p *ProjectFixture) Loader() config.Loader {
	return func(path string) (*config.Config, error) {
		require.Equal(p.t, p.ConfigPath(), path, "unexpected config path")
		return p.Config, nil
	}
}

// Connector opens a real adapter whose original_adapter passthrough is the fixture's
// FakeDatabase.
func (p *ProjectFixture) Connector() func(context.Context, *config.Config, adapter.OpenOptions) (*adapter.Adapter, error) {
	return func(ctx context.Context, cfg *config.Config, opts adapter.OpenOptions) (*adapter.Adapter, error) {
		factory := func(context.Context, *ptosc.ConnectionDetails) (adapter.DriverPassthrough, error) {
			return p.Database, nil
		}

		opts.Drivers = map[string]adapter.DriverFactory{"mysql": factory, "mysql2": factory}
		return adapter.Open(ctx, cfg, opts)
	}
}
