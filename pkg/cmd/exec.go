package cmd

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/urfave/cli/v3"
)

var queryVerbs = []string{"SELECT", "SHOW", "DESC", "DESCRIBE", "EXPLAIN", "WITH"}

// execCmd creates the exec command, which runs a single statement through the adapter.
//
// Schema changes go through pt-online-schema-change (unless --offline is given), writes
// report the number of affected rows and queries print their result set.
//
// Example usage:
//
//	departure exec "ALTER TABLE comments ADD COLUMN some_id_field INT(8)"
//	departure exec "SELECT id, body FROM comments LIMIT 5"
func execCmd(p commandParams) *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Execute a single SQL statement",
		ArgsUsage: "<sql>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "offline",
				Usage: "Run schema changes directly instead of through pt-online-schema-change",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runExec(ctx, cmd, p)
		},
	}
}

func runExec(ctx context.Context, cmd *cli.Command, p commandParams) error {
	sql := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if sql == "" {
		return errors.New("exec requires a SQL statement")
	}

	out := output(cmd)

	s, err := openSession(ctx, cmd, p)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	if cmd.Bool("offline") {
		s.adapter.SetOnline(false)
	}

	if returnsRows(sql) {
		res, err := s.adapter.ExecQuery(ctx, sql)
		if err != nil {
			return err
		}

		return printResult(out, res)
	}

	res, err := s.adapter.Execute(ctx, sql)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Query OK, %d rows affected\n", res.RowsAffected)
	return nil
}

// returnsRows reports whether sql produces a result set.
func returnsRows(sql string) bool {
	return slices.Contains(queryVerbs, parser.Classify(sql).Verb)
}

func printResult(out io.Writer, res *adapter.Result) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(res.Columns, "\t"))

	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
				continue
			}

			cells[i] = fmt.Sprint(v)
		}

		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d rows in set\n", len(res.Rows))
	return nil
}
