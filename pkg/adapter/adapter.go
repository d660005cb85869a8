package adapter

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/logger"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/pseudomuto/departure/pkg/runner"
)

// Name is the adapter name reported to callers.
const Name = "Percona"

type (
	// StatementRunner applies a single schema change. *runner.Runner implements it.
	StatementRunner interface {
		Execute(ctx context.Context, stmt *parser.Statement) (*runner.Outcome, error)
	}

	// RunnerFactory returns a fresh StatementRunner for every schema change.
	RunnerFactory func() StatementRunner

	// Config wires an Adapter.
	Config struct {
		Driver    DriverPassthrough
		NewRunner RunnerFactory
		Logger    logger.Logger
		Metrics   *metrics.Recorder

		// Online routes schema changes through the runner. When false every statement
		// goes to the driver.
		Online bool
	}

	// OpenOptions customizes Open.
	OpenOptions struct {
		// Writer receives console output. Defaults to stdout.
		Writer io.Writer

		Metrics *metrics.Recorder

		// Drivers overrides Variants.
		Drivers map[string]DriverFactory
	}

	// StatementError reports a schema change that failed in pt-osc. Err is one of the
	// ptosc error types.
	StatementError struct {
		SQL string
		Err error
	}

	// Adapter dispatches statements between pt-osc and the driver.
	Adapter struct {
		driver    DriverPassthrough
		newRunner RunnerFactory
		log       logger.Logger
		metrics   *metrics.Recorder
		online    atomic.Bool
	}
)

func (e *StatementError) Error() string {
	return e.Err.Error() + ": " + e.SQL
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// New creates an Adapter from already built collaborators.
func New(cfg Config) *Adapter {
	if cfg.Logger == nil {
		cfg.Logger = logger.Build(logger.Options{})
	}

	a := &Adapter{
		driver:    cfg.Driver,
		newRunner: cfg.NewRunner,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
	a.online.Store(cfg.Online)

	return a
}

// Open resolves connection details, connects the original_adapter passthrough and
// returns an Adapter ready to dispatch statements.
//
// Configuration problems (a missing database or original_adapter, bad pt-osc args) are
// returned as *ptosc.ConfigurationError before anything connects.
func Open(ctx context.Context, cfg *config.Config, opts OpenOptions) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	drivers := opts.Drivers
	if drivers == nil {
		drivers = Variants
	}

	factory, err := lookupVariant(drivers, cfg.Connection.OriginalAdapter)
	if err != nil {
		return nil, err
	}

	details, err := ptosc.NewConnectionDetails(cfg.ConnectionConfig())
	if err != nil {
		return nil, err
	}

	gen, err := ptosc.NewGenerator(cfg.GeneratorOptions())
	if err != nil {
		return nil, err
	}

	log := logger.Build(logger.Options{
		Sanitizers: []logger.Sanitizer{logger.NewPasswordSanitizer(details.Password())},
		Verbose:    cfg.Log.Verbose,
		Writer:     opts.Writer,
	})

	driver, err := factory(ctx, details)
	if err != nil {
		return nil, err
	}

	runnerOpts := runner.Options{
		StallTimeout:   cfg.Percona.StallTimeout,
		TerminateGrace: cfg.Percona.TerminateGrace,
		RedirectStderr: cfg.Percona.RedirectStderr,
	}

	return New(Config{
		Driver: driver,
		NewRunner: func() StatementRunner {
			return runner.New(runner.Config{
				Generator: gen,
				Details:   details,
				Logger:    log,
				Metrics:   opts.Metrics,
				Options:   runnerOpts,
			})
		},
		Logger:  log,
		Metrics: opts.Metrics,
		Online:  cfg.Percona.EnabledByDefault,
	}), nil
}

// Name returns the adapter name.
func (a *Adapter) Name() string {
	return Name
}

// Logger returns the console logger shared with the runners.
func (a *Adapter) Logger() logger.Logger {
	return a.log
}

// Online reports whether schema changes currently go through pt-osc.
func (a *Adapter) Online() bool {
	return a.online.Load()
}

// SetOnline toggles the online schema change path.
func (a *Adapter) SetOnline(online bool) {
	a.online.Store(online)
}

// SupportsMigrations always returns true.
func (a *Adapter) SupportsMigrations() bool {
	return true
}

// IsWriteQuery reports whether sql may modify data. Only DESC, DESCRIBE, SET, SHOW and
// USE are read-only.
func (a *Adapter) IsWriteQuery(sql string) bool {
	return parser.IsWriteQuery(sql)
}

// FullVersion returns the server version string, e.g. 8.0.36.
func (a *Adapter) FullVersion(ctx context.Context) (string, error) {
	return a.driver.ServerVersion(ctx)
}

// Execute runs a statement that returns no rows.
//
// While online, schema changes run through pt-osc and RowsAffected is the number of rows
// it copied. Schema changes cannot take bind parameters since pt-osc receives the
// alteration as text. Every other statement runs on the driver.
func (a *Adapter) Execute(ctx context.Context, sql string, args ...any) (ExecResult, error) {
	stmt := parser.Classify(sql)
	if !a.Online() || !stmt.IsSchemaChange() {
		a.metrics.ObserveStatement(metrics.RouteDirect)
		slog.Debug("Executing statement", "route", metrics.RouteDirect, "verb", stmt.Verb)
		return a.driver.Exec(ctx, sql, args...)
	}

	a.metrics.ObserveStatement(metrics.RouteOnline)
	if len(args) > 0 {
		return ExecResult{}, ptosc.NewConfigurationError("schema changes cannot use bind parameters: %s", stmt.SQL)
	}

	slog.Debug("Executing statement", "route", metrics.RouteOnline, "table", stmt.Table)
	outcome, err := a.newRunner().Execute(ctx, stmt)
	if err != nil {
		return ExecResult{}, &StatementError{SQL: stmt.SQL, Err: err}
	}

	return ExecResult{RowsAffected: outcome.RowsAffected}, nil
}

// ExecQuery runs a query on the driver and returns its rows.
func (a *Adapter) ExecQuery(ctx context.Context, sql string, args ...any) (*Result, error) {
	a.metrics.ObserveStatement(metrics.RouteDirect)
	return a.driver.Query(ctx, sql, args...)
}

// Select runs a query and returns each row keyed by column name.
func (a *Adapter) Select(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	res, err := a.ExecQuery(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return res.Maps(), nil
}

// SelectRows runs a query and returns its rows as value slices in column order.
func (a *Adapter) SelectRows(ctx context.Context, sql string, args ...any) ([][]any, error) {
	res, err := a.ExecQuery(ctx, sql, args...)
	if err != nil {
		return nil, err
	}

	return res.Rows, nil
}

// ExecInsert runs an INSERT and returns the generated id.
func (a *Adapter) ExecInsert(ctx context.Context, sql string, args ...any) (int64, error) {
	res, err := a.Execute(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return res.LastInsertID, nil
}

// ExecUpdate runs an UPDATE and returns the number of affected rows.
func (a *Adapter) ExecUpdate(ctx context.Context, sql string, args ...any) (int64, error) {
	return a.execAffected(ctx, sql, args...)
}

// ExecDelete runs a DELETE and returns the number of affected rows.
func (a *Adapter) ExecDelete(ctx context.Context, sql string, args ...any) (int64, error) {
	return a.execAffected(ctx, sql, args...)
}

// Close releases the driver connection.
func (a *Adapter) Close() error {
	if a.driver == nil {
		return nil
	}

	return errors.Wrap(a.driver.Close(), "failed to close connection")
}

func (a *Adapter) execAffected(ctx context.Context, sql string, args ...any) (int64, error) {
	res, err := a.Execute(ctx, sql, args...)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected, nil
}
