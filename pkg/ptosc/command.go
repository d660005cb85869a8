package ptosc

import (
	"bufio"
	"context"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/consts"
)

const (
	defaultTailLines   = 200
	diagnosticTailSize = 10
	maxLineSize        = 1024 * 1024
)

var (
	errStalled   = errors.New("no output within the stall window")
	errAbandoned = errors.New("output abandoned by the caller")
)

type (
	// CommandOptions tunes how a Command runs.
	CommandOptions struct {
		// StallTimeout is the longest pt-osc may stay silent before it is treated as hung
		// and terminated. Zero disables the watchdog.
		StallTimeout time.Duration

		// TerminateGrace is how long pt-osc gets to clean up after an interrupt before it
		// is killed. Defaults to consts.DefaultTerminateGrace.
		TerminateGrace time.Duration

		// Sanitize redacts secrets from each line. Lines pass through unchanged when nil.
		Sanitize func(string) string

		// TailLines bounds how many output lines the result keeps. ERROR lines are always
		// kept. Defaults to 200.
		TailLines int
	}

	// Command launches a single pt-osc process for a CommandSpec.
	Command struct {
		spec *CommandSpec
		opts CommandOptions
	}

	// Process is a running pt-osc invocation.
	//
	// Output is drained from both pipes concurrently with the process and merged in
	// arrival order, preferring stdout when lines from both pipes are ready. Lines must
	// be consumed (through Lines or Wait) for the process to make progress once its pipe
	// buffers fill up.
	Process struct {
		cmd     *exec.Cmd
		opts    CommandOptions
		ctx     context.Context
		cancel  context.CancelCauseFunc
		started time.Time

		lines    chan LogLine
		discard  chan struct{}
		stopOnce sync.Once
		exited   chan struct{}
		done     chan struct{}
		result   *ExecutionResult
	}

	// ExecutionResult describes a finished pt-osc run.
	ExecutionResult struct {
		// ExitCode is the process exit status, or -1 when it was killed by a signal.
		ExitCode int

		// Lines is the tail of the output, bounded by CommandOptions.TailLines.
		Lines []LogLine

		// ErrorLines holds every ERROR-classified line.
		ErrorLines []LogLine

		// ErrorDetected is true when at least one ERROR line was seen.
		ErrorDetected bool

		// RowsAffected is the INSERT count from the --statistics summary, or 0.
		RowsAffected int64

		// Signaled is true when pt-osc was terminated by a signal.
		Signaled bool

		// Signal names the terminating signal, e.g. "interrupt".
		Signal string

		// TimedOut is true when the stall watchdog terminated the process.
		TimedOut bool

		// Canceled is true when the caller's context ended the run.
		Canceled bool

		// Abandoned is true when the caller stopped consuming output early.
		Abandoned bool

		// StallTimeout is the watchdog window the run was started with.
		StallTimeout time.Duration

		// Duration is the wall time from launch until the output was drained.
		Duration time.Duration
	}
)

// NewCommand returns a Command for spec.
func NewCommand(spec *CommandSpec, opts CommandOptions) *Command {
	if opts.TerminateGrace <= 0 {
		opts.TerminateGrace = consts.DefaultTerminateGrace
	}

	if opts.TailLines <= 0 {
		opts.TailLines = defaultTailLines
	}

	if opts.Sanitize == nil {
		opts.Sanitize = func(s string) string { return s }
	}

	return &Command{spec: spec, opts: opts}
}

// Start launches pt-osc. A LaunchError is returned when the binary cannot be executed.
//
// Canceling ctx interrupts the process, and kills it if it is still running after the
// terminate grace period.
//
// Example:
//
//	proc, err := ptosc.NewCommand(spec, ptosc.CommandOptions{StallTimeout: time.Hour}).Start(ctx)
//	if err != nil {
//		return err
//	}
//
//	for line := range proc.Lines() {
//		fmt.Println(line.Sanitized)
//	}
//
//	if res := proc.Wait(); !res.Success() {
//		return res.Err(spec.Path)
//	}
func (c *Command) Start(ctx context.Context) (*Process, error) {
	if ctx.Err() != nil {
		return nil, &ExecutionError{Canceled: true}
	}

	ctx, cancel := context.WithCancelCause(ctx)

	// pt-osc runs in its own process group so wrapper scripts and their children are
	// interrupted and killed together.
	cmd := exec.CommandContext(ctx, c.spec.Path, c.spec.Args...)
	cmd.Env = append(os.Environ(), c.spec.Env...)
	cmd.Cancel = func() error { return signalGroup(cmd.Process, syscall.SIGINT) }
	cmd.WaitDelay = c.opts.TerminateGrace
	setProcessGroup(cmd)

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		cancel(nil)
		_ = stdoutW.Close()
		_ = stderrW.Close()
		return nil, &LaunchError{Binary: c.spec.Path, Err: err}
	}

	p := &Process{
		cmd:     cmd,
		opts:    c.opts,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		lines:   make(chan LogLine),
		discard: make(chan struct{}),
		exited:  make(chan struct{}),
		done:    make(chan struct{}),
	}

	go p.wait(stdoutW, stderrW)
	go p.escalate()
	go p.pump(scanLines(stdoutR), scanLines(stderrR))

	return p, nil
}

// PID returns the operating system process id.
func (p *Process) PID() int {
	return p.cmd.Process.Pid
}

// Lines returns the output as it arrives. Breaking out of the loop stops the process
// and waits for it to be reaped.
func (p *Process) Lines() iter.Seq[LogLine] {
	return func(yield func(LogLine) bool) {
		for line := range p.lines {
			if !yield(line) {
				p.Stop()
				return
			}
		}
	}
}

// Wait discards any output not consumed through Lines, waits for the process to exit
// and returns the result.
func (p *Process) Wait() *ExecutionResult {
	for range p.lines {
	}

	<-p.done
	return p.result
}

// Stop abandons the output, terminates the process and waits until it is reaped. It is
// safe to call more than once and from any goroutine.
func (p *Process) Stop() {
	p.stopOnce.Do(func() {
		close(p.discard)
		p.cancel(errAbandoned)
	})

	<-p.done
}

// Success reports whether pt-osc exited 0 without printing an error.
func (r *ExecutionResult) Success() bool {
	return r.ExitCode == 0 &&
		!r.ErrorDetected &&
		!r.Signaled &&
		!r.TimedOut &&
		!r.Canceled &&
		!r.Abandoned
}

// Err maps a failed result onto the error taxonomy. It returns nil on success.
func (r *ExecutionResult) Err(binary string) error {
	if r.Success() {
		return nil
	}

	diagnostics := r.diagnostics()
	switch {
	case r.TimedOut:
		return &TimeoutError{Stall: r.StallTimeout, Lines: diagnostics}
	case r.ExitCode == 127 && !r.Signaled:
		return &LaunchError{Binary: binary}
	default:
		return &ExecutionError{
			ExitCode: r.ExitCode,
			Signal:   r.Signal,
			Canceled: r.Canceled || r.Abandoned,
			Lines:    diagnostics,
		}
	}
}

func (r *ExecutionResult) diagnostics() []string {
	source := r.ErrorLines
	if len(source) == 0 {
		source = r.Lines[max(0, len(r.Lines)-diagnosticTailSize):]
	}

	lines := make([]string, len(source))
	for i, line := range source {
		lines[i] = line.Sanitized
	}

	return lines
}

func (r *ExecutionResult) record(line LogLine, tail int) {
	if line.Severity == SeverityError {
		r.ErrorDetected = true
		r.ErrorLines = append(r.ErrorLines, line)
	}

	if len(r.Lines) == tail {
		r.Lines = append(r.Lines[:0], r.Lines[1:]...)
	}
	r.Lines = append(r.Lines, line)
}

// wait reaps the process, kills whatever is left of its group and closes the pipe
// writers so the scanners see EOF.
func (p *Process) wait(stdout, stderr *io.PipeWriter) {
	_ = p.cmd.Wait()
	_ = signalGroup(p.cmd.Process, syscall.SIGKILL)
	_ = stdout.Close()
	_ = stderr.Close()
	close(p.exited)
}

// escalate kills the process group when it outlives the terminate grace period after
// its context ends.
func (p *Process) escalate() {
	select {
	case <-p.exited:
		return
	case <-p.ctx.Done():
	}

	timer := time.NewTimer(p.opts.TerminateGrace)
	defer timer.Stop()

	select {
	case <-p.exited:
	case <-timer.C:
		_ = signalGroup(p.cmd.Process, syscall.SIGKILL)
	}
}

// pump merges both streams, classifies each line, runs the stall watchdog and hands the
// lines to the consumer until both pipes are drained.
func (p *Process) pump(stdout, stderr <-chan string) {
	defer close(p.done)
	defer close(p.lines)

	classifier := newOutputClassifier()
	res := &ExecutionResult{StallTimeout: p.opts.StallTimeout}

	var (
		timer *time.Timer
		stall <-chan time.Time
	)
	if p.opts.StallTimeout > 0 {
		timer = time.NewTimer(p.opts.StallTimeout)
		defer timer.Stop()
		stall = timer.C
	}

	for stdout != nil || stderr != nil {
		var (
			raw    string
			stream Stream
			ok     bool
		)

		// stdout wins when both pipes have a line ready
		select {
		case raw, ok = <-stdout:
			if !ok {
				stdout = nil
				continue
			}
		default:
			select {
			case raw, ok = <-stdout:
				if !ok {
					stdout = nil
					continue
				}
			case raw, ok = <-stderr:
				if !ok {
					stderr = nil
					continue
				}
				stream = Stderr
			case <-stall:
				res.TimedOut = true
				stall = nil
				p.cancel(errStalled)
				continue
			}
		}

		if stall != nil {
			timer.Reset(p.opts.StallTimeout)
		}

		line := LogLine{
			Raw:       raw,
			Sanitized: p.opts.Sanitize(raw),
			Severity:  classifier.classify(raw),
			Stream:    stream,
		}
		res.record(line, p.opts.TailLines)

		select {
		case p.lines <- line:
		case <-p.discard:
		}
	}

	<-p.exited
	p.finish(res, classifier)
}

func (p *Process) finish(res *ExecutionResult, classifier *outputClassifier) {
	res.Duration = time.Since(p.started)
	res.RowsAffected = classifier.rowsAffected
	res.ExitCode = -1

	if state := p.cmd.ProcessState; state != nil {
		res.ExitCode = state.ExitCode()
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			res.Signaled = true
			res.Signal = ws.Signal().String()
		}
	}

	cause := context.Cause(p.ctx)
	switch {
	case errors.Is(cause, errStalled):
		res.TimedOut = true
	case errors.Is(cause, errAbandoned):
		res.Abandoned = true
	case cause != nil && (res.ExitCode != 0 || res.Signaled):
		res.Canceled = true
	}

	p.cancel(nil)
	p.result = res
}

// scanLines reads r line by line until EOF. Lines longer than the scanner limit end the
// scan and the rest of the stream is discarded so the process never blocks on a full pipe.
func scanLines(r *io.PipeReader) <-chan string {
	ch := make(chan string, 64)

	go func() {
		defer close(ch)
		defer func() { _ = r.Close() }()

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			ch <- strings.TrimRight(scanner.Text(), "\r")
		}

		if scanner.Err() != nil {
			_, _ = io.Copy(io.Discard, r)
		}
	}()

	return ch
}
