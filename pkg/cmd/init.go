package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd returns a command that initializes a departure project. It is idempotent:
// an existing departure.yaml is never overwritten.
//
// Created structure:
//   - departure.yaml: Connection and pt-osc settings
//   - db/migrations/: Directory for migration files
//
// Example usage:
//
//	departure init --database blog
func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a project",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "the project directory",
				Value:   ".",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "the database migrations run against (defaults to the directory name)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "the MySQL host",
			},
			&cli.StringFlag{
				Name:  "original-adapter",
				Usage: "the driver variant for statements pt-osc does not run (mysql or mysql2)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("dir")
			if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
				return errors.Wrapf(err, "failed to create %s", dir)
			}

			proj := project.New(dir)
			if err := proj.Initialize(project.InitOptions{
				OriginalAdapter: cmd.String("original-adapter"),
				Host:            cmd.String("host"),
				Database:        cmd.String("database"),
			}); err != nil {
				return err
			}

			fmt.Fprintf(output(cmd), "✅ Initialized departure project in %s\n", dir)
			return nil
		},
	}
}

// newMigration returns a command that creates an empty, timestamped migration file in
// the configured migrations directory.
//
// Example usage:
//
//	departure new add_some_id_to_comments
func newMigration(p commandParams) *cli.Command {
	return &cli.Command{
		Name:      "new",
		Usage:     "Create a new migration file",
		ArgsUsage: "<name>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(name) == "" {
				return errors.New("new requires a migration name")
			}

			cfg, path, err := loadConfig(cmd, p)
			if err != nil {
				return err
			}

			file, err := project.New(".").NewMigration(migrationsDir(path, cfg), name, time.Now())
			if err != nil {
				return err
			}

			fmt.Fprintf(output(cmd), "✅ Created %s\n", file)
			return nil
		},
	}
}
