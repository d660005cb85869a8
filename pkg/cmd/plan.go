package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/urfave/cli/v3"
)

// plan creates the plan command. It shows how a statement would be dispatched, and the
// pt-online-schema-change command line for schema changes, without connecting to MySQL.
//
// Example usage:
//
//	departure plan "ALTER TABLE comments ADD COLUMN some_id_field INT(8)"
//	departure plan --offline "CREATE INDEX idx_body ON comments (body)"
func plan(p commandParams) *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show how a statement would be executed",
		ArgsUsage: "<sql>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Plan as if pt-online-schema-change were disabled",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sql := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
			if sql == "" {
				return errors.New("plan requires a SQL statement")
			}

			cfg, _, err := loadConfig(cmd, p)
			if err != nil {
				return err
			}

			online := cfg.Percona.EnabledByDefault && !cmd.Bool("offline")
			pl, err := adapter.BuildPlan(cfg, sql, online)
			if err != nil {
				return err
			}

			out := output(cmd)
			fmt.Fprintf(out, "Statement: %s\n", pl.Statement.SQL)
			fmt.Fprintf(out, "Kind:      %s\n", pl.Statement.Kind)
			if pl.Statement.Table != "" {
				fmt.Fprintf(out, "Table:     %s\n", pl.Statement.Table)
			}
			fmt.Fprintf(out, "Route:     %s\n", pl.Route)

			if pl.Route == metrics.RouteOnline {
				fmt.Fprintf(out, "Alter:     %s\n", pl.Statement.Clause)
				fmt.Fprintf(out, "Command:   %s\n", pl.Command)
			}

			return nil
		},
	}
}
