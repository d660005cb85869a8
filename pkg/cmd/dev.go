package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/docker"
	"github.com/pseudomuto/departure/pkg/executor"
	"github.com/urfave/cli/v3"
)

const (
	devContainerName = "departure-dev"
	devConnectTries  = 60
)

// dev creates the dev command group, which manages a local MySQL server with every
// migration applied.
func dev(p commandParams) *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "Manage a local MySQL development server",
		Commands: []*cli.Command{
			devUp(p),
			devDown(),
		},
	}
}

func devUp(p commandParams) *cli.Command {
	return &cli.Command{
		Name:  "up",
		Usage: "Start a MySQL development server and apply migrations",
		Description: `Start a MySQL container named departure-dev and apply every migration to it.
Statements run directly on the server since pt-online-schema-change is not needed
against an empty development database.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "mysql-version",
				Usage: "the mysql image tag",
				Value: docker.DefaultVersion,
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "the host port MySQL is published on",
				Value: consts.DefaultPort,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			return runDevUp(ctx, cmd, p, engine)
		},
	}
}

func devDown() *cli.Command {
	return &cli.Command{
		Name:  "down",
		Usage: "Stop and remove the MySQL development server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			engine, closer, err := newEngine()
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			return runDevDown(ctx, output(cmd), engine)
		},
	}
}

func runDevUp(ctx context.Context, cmd *cli.Command, p commandParams, engine *docker.Engine) error {
	out := output(cmd)

	cfg, path, err := loadConfig(cmd, p)
	if err != nil {
		return err
	}

	migrationDir, err := loadMigrations(path, cfg)
	if err != nil {
		return err
	}

	if _, err := engine.Get(ctx, devContainerName); err == nil {
		fmt.Fprintln(out, "MySQL development server is already running")
		fmt.Fprintln(out, "Use 'departure dev down' to stop it first")
		return nil
	} else if !errors.Is(err, docker.ErrNotFound) {
		return err
	}

	devCfg := devConfig(cfg, int(cmd.Int("port")))
	image := "mysql:" + cmd.String("mysql-version")

	fmt.Fprintf(out, "Starting %s container...\n", image)
	if err := engine.Pull(ctx, image, io.Discard); err != nil {
		return err
	}

	if _, err := engine.Start(ctx, docker.ContainerOptions{
		Name:  devContainerName,
		Image: image,
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": devCfg.Connection.Password,
			"MYSQL_DATABASE":      devCfg.Connection.Database,
		},
		Ports: map[int]int{devCfg.Connection.Port: docker.DefaultMySQLPort},
	}); err != nil {
		return err
	}

	a, err := connectWithRetry(ctx, p.Connector, devCfg, devConnectTries, time.Second)
	if err != nil {
		_ = engine.Stop(ctx, devContainerName)
		return err
	}
	defer func() { _ = a.Close() }()

	if len(migrationDir.Migrations) == 0 {
		fmt.Fprintln(out, "No migrations found")
	} else {
		fmt.Fprintf(out, "Applying %d migrations...\n", len(migrationDir.Migrations))

		exec := executor.New(executor.Config{Database: a, DepartureVersion: p.Version.Version})
		results, err := exec.Execute(ctx, migrationDir.Migrations)
		if err != nil {
			return errors.Wrap(err, "failed to execute migrations")
		}

		if err := reportResults(out, results); err != nil {
			return err
		}
	}

	printDevConnection(out, devCfg)
	return nil
}

func runDevDown(ctx context.Context, out io.Writer, engine *docker.Engine) error {
	if err := engine.Stop(ctx, devContainerName); err != nil {
		if errors.Is(err, docker.ErrNotFound) {
			fmt.Fprintln(out, "No MySQL development server is currently running")
			return nil
		}

		return err
	}

	fmt.Fprintln(out, "MySQL development server stopped")
	return nil
}

// devConfig points cfg at the development server. Statements run directly.
func devConfig(cfg *config.Config, port int) *config.Config {
	dev := *cfg
	dev.Connection = config.Connection{
		Adapter:         consts.AdapterName,
		OriginalAdapter: "mysql2",
		Host:            "127.0.0.1",
		Port:            port,
		Username:        consts.DefaultUsername,
		Password:        docker.DefaultPassword,
		Database:        cfg.Connection.Database,
	}
	if dev.Connection.Database == "" {
		dev.Connection.Database = docker.DefaultDatabase
	}

	dev.Percona.EnabledByDefault = false
	dev.Log.Verbose = false
	return &dev
}

// connectWithRetry opens an adapter, retrying while the server starts up.
func connectWithRetry(ctx context.Context, connect Connector, cfg *config.Config, tries int, wait time.Duration) (*adapter.Adapter, error) {
	var lastErr error
	for range tries {
		a, err := connect(ctx, cfg, adapter.OpenOptions{})
		if err == nil {
			return a, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, errors.Wrapf(lastErr, "MySQL did not become ready after %d attempts", tries)
}

func newEngine() (*docker.Engine, io.Closer, error) {
	cl, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create Docker client")
	}

	return docker.NewEngine(cl), cl, nil
}

func printDevConnection(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(out, "MySQL Development Server Started")
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Host:      %s\n", cfg.Connection.Host)
	fmt.Fprintf(out, "Port:      %s\n", strconv.Itoa(cfg.Connection.Port))
	fmt.Fprintf(out, "Username:  %s\n", cfg.Connection.Username)
	fmt.Fprintf(out, "Password:  %s\n", cfg.Connection.Password)
	fmt.Fprintf(out, "Database:  %s\n", cfg.Connection.Database)
	fmt.Fprintln(out, "\nUse 'departure dev down' to stop the server")
	fmt.Fprintln(out, strings.Repeat("=", 60))
}
