package adapter_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	. "github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/logger"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/pseudomuto/departure/pkg/runner"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type (
	execCall struct {
		sql  string
		args []any
	}

	fakeDriver struct {
		execs   []execCall
		queries []string
		result  ExecResult
		rows    *Result
		err     error
		closed  bool
	}

	fakeRunner struct {
		stmts   []*parser.Statement
		outcome *runner.Outcome
		err     error
	}
)

func (d *fakeDriver) Exec(_ context.Context, sql string, args ...any) (ExecResult, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	return d.result, d.err
}

func (d *fakeDriver) Query(_ context.Context, sql string, _ ...any) (*Result, error) {
	d.queries = append(d.queries, sql)
	if d.err != nil {
		return nil, d.err
	}
	return d.rows, nil
}

func (d *fakeDriver) ServerVersion(context.Context) (string, error) {
	return "8.0.36", nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func (r *fakeRunner) Execute(_ context.Context, stmt *parser.Statement) (*runner.Outcome, error) {
	r.stmts = append(r.stmts, stmt)
	if r.err != nil {
		return nil, r.err
	}
	return r.outcome, nil
}

type fixture struct {
	adapter  *Adapter
	driver   *fakeDriver
	runner   *fakeRunner
	built    int
	recorder *metrics.Recorder
}

func newFixture(online bool) *fixture {
	f := &fixture{
		driver:   &fakeDriver{result: ExecResult{RowsAffected: 2, LastInsertID: 7}},
		runner:   &fakeRunner{outcome: &runner.Outcome{RowsAffected: 42}},
		recorder: metrics.New(),
	}

	f.adapter = New(Config{
		Driver: f.driver,
		NewRunner: func() StatementRunner {
			f.built++
			return f.runner
		},
		Metrics: f.recorder,
		Online:  online,
	})

	return f
}

func TestExecuteRoutesSchemaChangesToRunner(t *testing.T) {
	f := newFixture(true)

	res, err := f.adapter.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
	require.NoError(t, err)
	require.Equal(t, int64(42), res.RowsAffected)
	require.Empty(t, f.driver.execs)
	require.Len(t, f.runner.stmts, 1)
	require.Equal(t, "ADD COLUMN some_id_field INT(8)", f.runner.stmts[0].Clause)
	require.Equal(t, 1.0, testutil.ToFloat64(f.recorder.Statements.WithLabelValues(metrics.RouteOnline)))
}

func TestExecuteUsesFreshRunnerPerStatement(t *testing.T) {
	f := newFixture(true)

	for range 3 {
		_, err := f.adapter.Execute(t.Context(), "ALTER TABLE comments DROP COLUMN a")
		require.NoError(t, err)
	}

	require.Equal(t, 3, f.built)
}

func TestExecuteBypassesRunner(t *testing.T) {
	tests := []string{
		"SELECT * FROM comments",
		"DROP TABLE comments",
		"CREATE TABLE comments (id INT)",
		"RENAME TABLE comments TO notes",
		"ALTER TABLE comments RENAME TO notes",
		"INSERT INTO comments (id) VALUES (1)",
		"SET NAMES utf8mb4",
	}

	for _, sql := range tests {
		t.Run(sql, func(t *testing.T) {
			f := newFixture(true)

			_, err := f.adapter.Execute(t.Context(), sql)
			require.NoError(t, err)
			require.Zero(t, f.built)
			require.Equal(t, []execCall{{sql: sql}}, f.driver.execs)
		})
	}
}

func TestExecuteOffline(t *testing.T) {
	f := newFixture(false)

	res, err := f.adapter.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN a INT")
	require.NoError(t, err)
	require.Equal(t, int64(2), res.RowsAffected)
	require.Zero(t, f.built)
	require.Len(t, f.driver.execs, 1)

	f.adapter.SetOnline(true)
	require.True(t, f.adapter.Online())

	_, err = f.adapter.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN b INT")
	require.NoError(t, err)
	require.Equal(t, 1, f.built)
}

func TestExecuteRejectsBindArgsOnSchemaChange(t *testing.T) {
	f := newFixture(true)

	_, err := f.adapter.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN a INT DEFAULT ?", 1)

	var cfgErr *ptosc.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Zero(t, f.built)
}

func TestExecuteWrapsRunnerErrors(t *testing.T) {
	f := newFixture(true)
	f.runner.err = &ptosc.ExecutionError{ExitCode: 1, Lines: []string{"Error: foo"}}

	_, err := f.adapter.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN a INT;")

	var stmtErr *StatementError
	require.ErrorAs(t, err, &stmtErr)
	require.Equal(t, "ALTER TABLE comments ADD COLUMN a INT", stmtErr.SQL)

	var execErr *ptosc.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 1, execErr.ExitCode)
}

func TestDriverErrorsAreUnchanged(t *testing.T) {
	f := newFixture(true)
	driverErr := errors.New("Error 1146: Table 'blog.nope' doesn't exist")
	f.driver.err = driverErr

	_, err := f.adapter.Execute(t.Context(), "DELETE FROM nope")
	require.Same(t, driverErr, err)

	_, err = f.adapter.SelectRows(t.Context(), "SELECT * FROM nope")
	require.Same(t, driverErr, err)
}

func TestRowCountHelpers(t *testing.T) {
	f := newFixture(true)

	n, err := f.adapter.ExecUpdate(t.Context(), "UPDATE comments SET body = ? WHERE id = ?", "x", 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, []any{"x", 1}, f.driver.execs[0].args)

	n, err = f.adapter.ExecDelete(t.Context(), "DELETE FROM comments")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	id, err := f.adapter.ExecInsert(t.Context(), "INSERT INTO comments (body) VALUES ('x')")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestQueries(t *testing.T) {
	f := newFixture(true)
	f.driver.rows = &Result{
		Columns: []string{"id", "body"},
		Rows:    [][]any{{int64(1), "first"}, {int64(2), "second"}},
	}

	rows, err := f.adapter.SelectRows(t.Context(), "SELECT id, body FROM comments")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	maps, err := f.adapter.Select(t.Context(), "SELECT id, body FROM comments")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"id": int64(2), "body": "second"}, maps[1])

	res, err := f.adapter.ExecQuery(t.Context(), "SELECT id, body FROM comments")
	require.NoError(t, err)
	require.Equal(t, []string{"id", "body"}, res.Columns)
	require.Zero(t, f.built)
}

func TestAdapterInfo(t *testing.T) {
	f := newFixture(true)

	require.Equal(t, "Percona", f.adapter.Name())
	require.True(t, f.adapter.SupportsMigrations())
	require.False(t, f.adapter.IsWriteQuery("SHOW TABLES"))
	require.True(t, f.adapter.IsWriteQuery("ALTER TABLE comments ADD COLUMN a INT"))

	version, err := f.adapter.FullVersion(t.Context())
	require.NoError(t, err)
	require.Equal(t, "8.0.36", version)

	require.NoError(t, f.adapter.Close())
	require.True(t, f.driver.closed)
}

func clearConnectionEnv(t *testing.T) {
	t.Helper()

	for _, name := range []string{ptosc.EnvHost, ptosc.EnvUser, ptosc.EnvPassword, ptosc.EnvDatabase, ptosc.EnvArgs} {
		t.Setenv(name, "")
	}
}

func testConfig(t *testing.T, script string) *config.Config {
	t.Helper()

	binary := filepath.Join(t.TempDir(), "pt-online-schema-change")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), consts.ModeExecutable))

	cfg := config.Default()
	cfg.Connection.OriginalAdapter = "mysql2"
	cfg.Connection.Host = "db.internal"
	cfg.Connection.Username = "deploy"
	cfg.Connection.Password = "s3cret"
	cfg.Connection.Database = "blog"
	cfg.Percona.Binary = binary

	return cfg
}

func fakeDrivers(d *fakeDriver) map[string]DriverFactory {
	factory := func(context.Context, *ptosc.ConnectionDetails) (DriverPassthrough, error) {
		return d, nil
	}

	return map[string]DriverFactory{"mysql": factory, "mysql2": factory}
}

func TestOpen(t *testing.T) {
	t.Run("runs pt-osc for schema changes", func(t *testing.T) {
		clearConnectionEnv(t)

		cfg := testConfig(t, `
echo "args: $*"
echo "# INSERT     5"
`)

		var out bytes.Buffer
		driver := &fakeDriver{}
		a, err := Open(t.Context(), cfg, OpenOptions{Writer: &out, Drivers: fakeDrivers(driver)})
		require.NoError(t, err)

		res, err := a.Execute(t.Context(), "ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
		require.NoError(t, err)
		require.Equal(t, int64(5), res.RowsAffected)
		require.Empty(t, driver.execs)

		output := out.String()
		require.Contains(t, output, "-- Running pt-online-schema-change")
		require.Contains(t, output, "t=comments")
		require.Contains(t, output, `--alter "ADD COLUMN some_id_field INT(8)"`)
		require.NotContains(t, output, "s3cret")
		require.Contains(t, output, logger.FilteredPassword)
	})

	t.Run("missing original adapter", func(t *testing.T) {
		clearConnectionEnv(t)

		cfg := testConfig(t, "exit 0")
		cfg.Connection.OriginalAdapter = ""

		_, err := Open(t.Context(), cfg, OpenOptions{Drivers: fakeDrivers(&fakeDriver{})})

		var cfgErr *ptosc.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.True(t, strings.HasPrefix(cfgErr.Reason, "You must supply the original_adapter"))
		require.Contains(t, cfgErr.Reason, "Supported adapters: mysql, mysql2")
	})

	t.Run("unsupported original adapter", func(t *testing.T) {
		clearConnectionEnv(t)

		cfg := testConfig(t, "exit 0")
		cfg.Connection.OriginalAdapter = "postgresql"

		_, err := Open(t.Context(), cfg, OpenOptions{Drivers: fakeDrivers(&fakeDriver{})})
		require.ErrorContains(t, err, `unsupported original_adapter "postgresql"`)
	})

	t.Run("missing database", func(t *testing.T) {
		clearConnectionEnv(t)

		cfg := testConfig(t, "exit 0")
		cfg.Connection.Database = ""

		_, err := Open(t.Context(), cfg, OpenOptions{Drivers: fakeDrivers(&fakeDriver{})})

		var cfgErr *ptosc.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("driver errors", func(t *testing.T) {
		clearConnectionEnv(t)

		cfg := testConfig(t, "exit 0")
		boom := errors.New("connection refused")
		drivers := map[string]DriverFactory{
			"mysql2": func(context.Context, *ptosc.ConnectionDetails) (DriverPassthrough, error) {
				return nil, boom
			},
		}

		_, err := Open(t.Context(), cfg, OpenOptions{Drivers: drivers})
		require.ErrorIs(t, err, boom)
	})
}
