package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/logger"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/pseudomuto/departure/pkg/ptosc"
)

const (
	Idle State = iota
	Launching
	Streaming
	Succeeded
	Failed
)

// ErrAlreadyUsed is returned when Execute is called on a Runner that already ran.
var ErrAlreadyUsed = errors.New("runner already executed a statement")

type (
	// State is a step of the Runner lifecycle.
	State int

	// Options tunes process handling.
	Options struct {
		// StallTimeout is how long pt-osc may stay silent. Zero disables the watchdog.
		StallTimeout time.Duration

		// TerminateGrace is how long pt-osc gets to exit after an interrupt.
		TerminateGrace time.Duration

		// RedirectStderr keeps stderr lines off the console. They are still classified
		// and kept for diagnostics.
		RedirectStderr bool
	}

	// Config wires a Runner to its collaborators.
	Config struct {
		Generator *ptosc.Generator
		Details   *ptosc.ConnectionDetails
		Logger    logger.Logger
		Metrics   *metrics.Recorder
		Options   Options
	}

	// Outcome is the result of a successful run.
	Outcome struct {
		// RowsAffected is the number of rows pt-osc copied, or 0 when unknown.
		RowsAffected int64

		Duration time.Duration
	}

	// Runner executes a single schema change through pt-osc.
	Runner struct {
		cfg Config

		mu    sync.Mutex
		state State
	}
)

func (s State) String() string {
	switch s {
	case Launching:
		return "launching"
	case Streaming:
		return "streaming"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Succeeded || s == Failed
}

// New returns an idle Runner.
func New(cfg Config) *Runner {
	if cfg.Logger == nil {
		cfg.Logger = logger.Build(logger.Options{})
	}

	return &Runner{cfg: cfg}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// Execute applies stmt with pt-osc and blocks until the process has exited.
//
// Output lines are sanitized and forwarded to the logger in the order they arrive. On
// failure the returned error is one of the ptosc taxonomy types; its diagnostic lines are
// sanitized. Canceling ctx interrupts pt-osc and waits for it to exit.
func (r *Runner) Execute(ctx context.Context, stmt *parser.Statement) (*Outcome, error) {
	if err := r.transition(Idle, Launching); err != nil {
		return nil, err
	}

	spec, err := r.cfg.Generator.Build(r.cfg.Details, stmt)
	if err != nil {
		return nil, r.fail(err)
	}

	log := r.cfg.Logger
	cmdline := log.Sanitize(spec.String())
	log.Say("Running pt-online-schema-change", false)
	log.Say(cmdline, true)
	slog.Info("Starting online schema change", "table", stmt.Table, "command", cmdline)

	proc, err := ptosc.NewCommand(spec, ptosc.CommandOptions{
		StallTimeout:   r.cfg.Options.StallTimeout,
		TerminateGrace: r.cfg.Options.TerminateGrace,
		Sanitize:       log.Sanitize,
	}).Start(ctx)
	if err != nil {
		r.cfg.Metrics.ObserveRun("launch_error", 0)
		return nil, r.fail(err)
	}

	if err := r.transition(Launching, Streaming); err != nil {
		proc.Stop()
		return nil, err
	}

	for line := range proc.Lines() {
		r.cfg.Metrics.ObserveLine(line.Severity.String())
		if line.Stream == ptosc.Stderr && r.cfg.Options.RedirectStderr {
			slog.Debug("pt-online-schema-change stderr", "line", line.Sanitized)
			continue
		}

		log.WriteLine(line.Sanitized)
	}

	res := proc.Wait()
	if err := res.Err(spec.Path); err != nil {
		r.cfg.Metrics.ObserveRun(outcomeLabel(res), res.Duration)
		slog.Error("Online schema change failed",
			"table", stmt.Table,
			"exit_code", res.ExitCode,
			"duration", res.Duration,
			"error", err,
		)
		return nil, r.fail(err)
	}

	r.cfg.Metrics.ObserveRun("succeeded", res.Duration)
	slog.Info("Online schema change finished",
		"table", stmt.Table,
		"rows", res.RowsAffected,
		"duration", res.Duration,
	)

	r.setState(Succeeded)
	return &Outcome{RowsAffected: res.RowsAffected, Duration: res.Duration}, nil
}

func (r *Runner) transition(from, to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != from {
		if from == Idle {
			return ErrAlreadyUsed
		}
		return errors.Errorf("invalid runner transition %s -> %s (current state %s)", from, to, r.state)
	}

	r.state = to
	return nil
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state = s
}

func (r *Runner) fail(err error) error {
	r.setState(Failed)
	return err
}

func outcomeLabel(res *ptosc.ExecutionResult) string {
	switch {
	case res.TimedOut:
		return "timeout"
	case res.Canceled, res.Abandoned:
		return "canceled"
	case res.ExitCode == 127:
		return "launch_error"
	default:
		return "failed"
	}
}
