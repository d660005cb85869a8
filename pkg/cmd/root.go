package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run creates the departure CLI application and schedules it to run when the fx
// application starts. The app shuts fx down with a non-zero exit code when the command
// fails.
//
// Global Flags:
//   - --config, -c: The departure config file (env DEPARTURE_CONFIG, default departure.yaml)
//   - --metrics-file: Write Prometheus metrics to this file after the command runs
//
// Example usage:
//
//	departure migrate
//	departure --config prod.yaml status
//	departure plan "ALTER TABLE comments ADD COLUMN some_id_field INT(8)"
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "departure",
		Usage: "Run MySQL schema migrations through pt-online-schema-change",
		Description: `departure applies MySQL migrations without locking tables. Every ALTER TABLE
(and CREATE/DROP INDEX) is handed to Percona's pt-online-schema-change, while all other
statements run directly on the connection configured as the original_adapter.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the departure config file",
				Sources: cli.EnvVars("DEPARTURE_CONFIG"),
				Value:   consts.DefaultConfigFile,
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "metrics-file",
				Usage: "write Prometheus metrics in text format to this file",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Commands: p.Commands,
	}

	// Migrations can outlive fx's start timeout, so the app runs outside the hook.
	p.Lifecycle.Append(fx.StartHook(func() {
		go func() {
			if err := app.Run(p.Ctx, p.Args); err != nil {
				slog.Error("Error running command", "err", err)
				_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
				return
			}

			_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
		}()
	}))
}
