package runner_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/logger"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/pseudomuto/departure/pkg/ptosc"
	. "github.com/pseudomuto/departure/pkg/runner"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const password = "s3cret"

type fixture struct {
	runner  *Runner
	output  *bytes.Buffer
	metrics *metrics.Recorder
}

func newFixture(t *testing.T, script string, opts Options) *fixture {
	t.Helper()
	t.Setenv(ptosc.EnvArgs, "")

	binary := filepath.Join(t.TempDir(), "pt-online-schema-change")
	require.NoError(t, os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), consts.ModeExecutable))

	return newFixtureWithBinary(t, binary, opts)
}

func newFixtureWithBinary(t *testing.T, binary string, opts Options) *fixture {
	t.Helper()

	details, err := ptosc.NewConnectionDetails(ptosc.ConnectionConfig{
		Host:     "db.internal",
		Username: "deploy",
		Password: password,
		Database: "blog",
	})
	require.NoError(t, err)

	gen, err := ptosc.NewGenerator(ptosc.GeneratorOptions{Binary: binary})
	require.NoError(t, err)

	var buf bytes.Buffer
	rec := metrics.New()

	return &fixture{
		output:  &buf,
		metrics: rec,
		runner: New(Config{
			Generator: gen,
			Details:   details,
			Metrics:   rec,
			Options:   opts,
			Logger: logger.Build(logger.Options{
				Sanitizers: []logger.Sanitizer{logger.NewPasswordSanitizer(password)},
				Verbose:    true,
				Writer:     &buf,
			}),
		}),
	}
}

var alter = parser.Classify("ALTER TABLE comments ADD COLUMN some_id_field INT(8)")

func TestRunnerSucceeds(t *testing.T) {
	f := newFixture(t, "echo 'Altering `blog`.`comments`...'\n"+
		"echo '# Event  Count'\n"+
		"echo '# INSERT     3'\n"+
		"echo 'Successfully altered `blog`.`comments`.'", Options{})

	require.Equal(t, Idle, f.runner.State())

	outcome, err := f.runner.Execute(context.Background(), alter)
	require.NoError(t, err)
	require.EqualValues(t, 3, outcome.RowsAffected)
	require.Equal(t, Succeeded, f.runner.State())
	require.True(t, f.runner.State().Terminal())

	out := f.output.String()
	require.Contains(t, out, "-- Running pt-online-schema-change\n")
	require.Contains(t, out, "   -> ")
	require.Contains(t, out, "p=[filtered_password]")
	require.Contains(t, out, `--alter "ADD COLUMN some_id_field INT(8)"`)
	require.Contains(t, out, "Successfully altered `blog`.`comments`.\n")
	require.NotContains(t, out, password)

	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("succeeded")), 0)
	require.InDelta(t, 4, testutil.ToFloat64(f.metrics.OutputLines.WithLabelValues("INFO")), 0)
}

func TestRunnerFailsOnErrorLineDespiteZeroExit(t *testing.T) {
	f := newFixture(t, `
echo "Error: foo"
exit 0
`, Options{})

	outcome, err := f.runner.Execute(context.Background(), alter)
	require.Nil(t, outcome)
	require.Equal(t, Failed, f.runner.State())

	var execErr *ptosc.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, []string{"Error: foo"}, execErr.Lines)
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("failed")), 0)
}

func TestRunnerSanitizesDiagnostics(t *testing.T) {
	f := newFixture(t, `
for arg in "$@"; do
  case "$arg" in
    h=*) echo "Error: cannot connect using $arg" ;;
  esac
done
exit 1
`, Options{})

	_, err := f.runner.Execute(context.Background(), alter)

	var execErr *ptosc.ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Equal(t, 1, execErr.ExitCode)
	require.NotContains(t, err.Error(), password)
	require.Contains(t, err.Error(), "p=[filtered_password]")
	require.NotContains(t, f.output.String(), password)
}

func TestRunnerRedirectsStderr(t *testing.T) {
	script := `
echo "to stdout"
echo "to stderr" >&2
`

	t.Run("redirected", func(t *testing.T) {
		f := newFixture(t, script, Options{RedirectStderr: true})
		_, err := f.runner.Execute(context.Background(), alter)
		require.NoError(t, err)
		require.Contains(t, f.output.String(), "to stdout")
		require.NotContains(t, f.output.String(), "to stderr")
	})

	t.Run("shown", func(t *testing.T) {
		f := newFixture(t, script, Options{})
		_, err := f.runner.Execute(context.Background(), alter)
		require.NoError(t, err)
		require.Contains(t, f.output.String(), "to stderr")
	})
}

func TestRunnerLaunchError(t *testing.T) {
	t.Setenv(ptosc.EnvArgs, "")
	f := newFixtureWithBinary(t, filepath.Join(t.TempDir(), "missing"), Options{})

	_, err := f.runner.Execute(context.Background(), alter)

	var launchErr *ptosc.LaunchError
	require.ErrorAs(t, err, &launchErr)
	require.Equal(t, Failed, f.runner.State())
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("launch_error")), 0)
}

func TestRunnerTimeout(t *testing.T) {
	f := newFixture(t, `
echo "Copying rows..."
exec sleep 30
`, Options{StallTimeout: 200 * time.Millisecond, TerminateGrace: 2 * time.Second})

	_, err := f.runner.Execute(context.Background(), alter)

	var timeoutErr *ptosc.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	require.Equal(t, Failed, f.runner.State())
	require.InDelta(t, 1, testutil.ToFloat64(f.metrics.Runs.WithLabelValues("timeout")), 0)
}

func TestRunnerRejectsPlainQueries(t *testing.T) {
	f := newFixture(t, "exit 0", Options{})

	_, err := f.runner.Execute(context.Background(), parser.Classify("SELECT * FROM comments"))

	var cfgErr *ptosc.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, Failed, f.runner.State())
}

func TestRunnerIsSingleUse(t *testing.T) {
	f := newFixture(t, "exit 0", Options{})

	_, err := f.runner.Execute(context.Background(), alter)
	require.NoError(t, err)

	_, err = f.runner.Execute(context.Background(), alter)
	require.ErrorIs(t, err, ErrAlreadyUsed)
	require.Equal(t, Succeeded, f.runner.State())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "launching", Launching.String())
	require.Equal(t, "streaming", Streaming.String())
	require.Equal(t, "succeeded", Succeeded.String())
	require.Equal(t, "failed", Failed.String())
	require.False(t, Streaming.Terminal())
}
