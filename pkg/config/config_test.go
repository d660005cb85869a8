package config_test

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/stretchr/testify/require"
)

//go:embed testdata/departure.yaml
var testConfigYAML string

func TestLoadConfig(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		t.Setenv("DEPARTURE_TEST_PASSWORD", "s3cret")

		cfg, err := LoadConfig(strings.NewReader(testConfigYAML))
		require.NoError(t, err)
		validateTestConfig(t, cfg)
	})

	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader("connection:\n  database: blog\n"))
		require.NoError(t, err)
		require.Equal(t, consts.AdapterName, cfg.Connection.Adapter)
		require.Equal(t, consts.DefaultBinary, cfg.Percona.Binary)
		require.Equal(t, consts.DefaultStallTimeout, cfg.Percona.StallTimeout)
		require.Equal(t, consts.DefaultTerminateGrace, cfg.Percona.TerminateGrace)
		require.True(t, cfg.Percona.EnabledByDefault)
		require.True(t, cfg.Percona.RedirectStderr)
		require.True(t, cfg.Log.Verbose)
		require.Equal(t, consts.DefaultMigrationsDir, cfg.Migrations.Dir)
	})

	t.Run("empty document", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader(""))
		require.NoError(t, err)
		require.Equal(t, Default(), cfg)
	})

	t.Run("unset variables expand to empty", func(t *testing.T) {
		t.Setenv("DEPARTURE_TEST_UNSET", "")

		cfg, err := LoadConfig(strings.NewReader("connection:\n  password: \"${DEPARTURE_TEST_UNSET}\"\n"))
		require.NoError(t, err)
		require.Empty(t, cfg.Connection.Password)
	})

	t.Run("dollar signs without braces are kept", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader("connection:\n  password: pa$$word\n"))
		require.NoError(t, err)
		require.Equal(t, "pa$$word", cfg.Connection.Password)
	})

	t.Run("errors", func(t *testing.T) {
		cfg, err := LoadConfig(strings.NewReader("invalid: yaml: ["))
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "failed to unmarshal config")

		_, err = LoadConfig(strings.NewReader("percona:\n  stall_timeout: soon\n"))
		require.Error(t, err)

		_, err = LoadConfig(strings.NewReader("connection:\n  adapter: mysql2\n"))
		var cfgErr *ptosc.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)

		_, err = LoadConfig(strings.NewReader("percona:\n  terminate_grace: -1s\n"))
		require.ErrorAs(t, err, &cfgErr)
	})
}

func TestLoadConfigFile(t *testing.T) {
	t.Run("success with dotenv", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, consts.DefaultConfigFile)
		require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), consts.ModeFile))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEPARTURE_TEST_PASSWORD=s3cret\n"), consts.ModeFile))

		// Register the variable with t.Setenv so it is restored, then clear it so the
		// .env file provides the value.
		t.Setenv("DEPARTURE_TEST_PASSWORD", "")
		require.NoError(t, os.Unsetenv("DEPARTURE_TEST_PASSWORD"))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		validateTestConfig(t, cfg)
	})

	t.Run("environment wins over dotenv", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, consts.DefaultConfigFile)
		require.NoError(t, os.WriteFile(path, []byte("connection:\n  password: ${DEPARTURE_TEST_PASSWORD}\n"), consts.ModeFile))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEPARTURE_TEST_PASSWORD=from-dotenv\n"), consts.ModeFile))
		t.Setenv("DEPARTURE_TEST_PASSWORD", "from-env")

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		require.Equal(t, "from-env", cfg.Connection.Password)
	})

	t.Run("error", func(t *testing.T) {
		cfg, err := LoadConfigFile("nonexistent.yaml")
		require.Error(t, err)
		require.Nil(t, cfg)
		require.Contains(t, err.Error(), "failed to open file")
	})
}

func TestConversions(t *testing.T) {
	t.Setenv("DEPARTURE_TEST_PASSWORD", "s3cret")

	cfg, err := LoadConfig(strings.NewReader(testConfigYAML))
	require.NoError(t, err)

	require.Equal(t, ptosc.ConnectionConfig{
		Host:     "db.internal",
		Port:     3307,
		Username: "deploy",
		Password: "s3cret",
		Database: "blog",
	}, cfg.ConnectionConfig())

	require.Equal(t, ptosc.GeneratorOptions{
		Binary:     "/usr/local/bin/pt-online-schema-change",
		GlobalArgs: "--chunk-time=1 --max-load Threads_running=50",
		Env:        map[string]string{"PERL5LIB": "/opt/percona/lib"},
	}, cfg.GeneratorOptions())
}

func validateTestConfig(t *testing.T, cfg *Config) {
	t.Helper()

	require.Equal(t, "percona", cfg.Connection.Adapter)
	require.Equal(t, "mysql2", cfg.Connection.OriginalAdapter)
	require.Equal(t, "db.internal", cfg.Connection.Host)
	require.Equal(t, 3307, cfg.Connection.Port)
	require.Equal(t, "deploy", cfg.Connection.Username)
	require.Equal(t, "s3cret", cfg.Connection.Password)
	require.Equal(t, "blog", cfg.Connection.Database)
	require.Equal(t, "/usr/local/bin/pt-online-schema-change", cfg.Percona.Binary)
	require.Equal(t, 45*time.Minute, cfg.Percona.StallTimeout)
	require.Equal(t, 10*time.Second, cfg.Percona.TerminateGrace)
	require.False(t, cfg.Percona.EnabledByDefault)
	require.False(t, cfg.Percona.RedirectStderr)
	require.False(t, cfg.Log.Verbose)
	require.Equal(t, "db/migrate", cfg.Migrations.Dir)
}
