package cmd

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/migrator"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	// Connector opens an adapter for a loaded configuration. adapter.Open outside of tests.
	Connector func(context.Context, *config.Config, adapter.OpenOptions) (*adapter.Adapter, error)

	// commandParams are the dependencies shared by every command that talks to MySQL.
	commandParams struct {
		fx.In

		Loader    config.Loader
		Connector Connector
		Version   *Version
	}

	// session is an open adapter along with the configuration it was built from.
	session struct {
		config      *config.Config
		configPath  string
		adapter     *adapter.Adapter
		metrics     *metrics.Recorder
		metricsFile string
	}
)

// output returns the writer commands print to.
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}

func loadConfig(cmd *cli.Command, p commandParams) (*config.Config, string, error) {
	path := cmd.String("config")
	cfg, err := p.Loader(path)
	if err != nil {
		return nil, "", err
	}

	return cfg, path, nil
}

// openSession loads the config named by --config and connects the adapter. Callers must
// Close the session, which also writes --metrics-file when it was given.
func openSession(ctx context.Context, cmd *cli.Command, p commandParams) (*session, error) {
	cfg, path, err := loadConfig(cmd, p)
	if err != nil {
		return nil, err
	}

	rec := metrics.New()
	a, err := p.Connector(ctx, cfg, adapter.OpenOptions{
		Writer:  output(cmd),
		Metrics: rec,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect")
	}

	slog.Debug("Connected", "adapter", a.Name(), "online", a.Online())

	return &session{
		config:      cfg,
		configPath:  path,
		adapter:     a,
		metrics:     rec,
		metricsFile: cmd.String("metrics-file"),
	}, nil
}

func (s *session) Close() error {
	closeErr := s.adapter.Close()

	if s.metricsFile != "" {
		if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
			return errors.Wrap(err, "failed to write metrics")
		}
	}

	return closeErr
}

// migrations loads the migration directory of the session's config.
func (s *session) migrations() (*migrator.MigrationDir, error) {
	return loadMigrations(s.configPath, s.config)
}

// loadMigrations reads the migrations directory. Relative directories are resolved against
// the directory holding the config file. A missing directory holds no migrations.
func loadMigrations(configPath string, cfg *config.Config) (*migrator.MigrationDir, error) {
	dir := migrationsDir(configPath, cfg)

	migrationDir, err := migrator.LoadMigrationDir(os.DirFS(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &migrator.MigrationDir{}, nil
		}

		return nil, errors.Wrapf(err, "failed to load migrations from %s", dir)
	}

	return migrationDir, nil
}

func migrationsDir(configPath string, cfg *config.Config) string {
	dir := cfg.Migrations.Dir
	if filepath.IsAbs(dir) || configPath == "" {
		return dir
	}

	return filepath.Join(filepath.Dir(configPath), dir)
}

// truncate shortens long statements for display.
func truncate(sql string, n int) string {
	if len(sql) <= n {
		return sql
	}

	return sql[:n-3] + "..."
}
