package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/urfave/cli/v3"
)

// RunCommand executes a command under a test root command and returns what it printed.
// The root carries the same global flags as the departure app, with --config pointing at
// configPath.
func RunCommand(t *testing.T, command *cli.Command, configPath string, args ...string) (string, error) {
	t.Helper()
	return RunCommandWithContext(t.Context(), t, command, configPath, args...)
}

// RunCommandWithContext executes a command with a custom context.
func RunCommandWithContext(ctx context.Context, t *testing.T, command *cli.Command, configPath string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	app := &cli.Command{
		Name:   "test",
		Writer: &out,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: configPath},
			&cli.StringFlag{Name: "metrics-file"},
		},
		Commands: []*cli.Command{command},
	}

	err := app.Run(ctx, append([]string{"test", command.Name}, args...))
	return out.String(), err
}
