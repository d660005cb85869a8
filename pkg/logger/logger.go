package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type (
	// Logger receives adapter announcements and pt-osc output.
	Logger interface {
		// Say writes an announcement. Sub-items are indented under the previous one.
		Say(message string, subitem bool)

		// WriteLine writes a line of tool output verbatim, after sanitizing it.
		WriteLine(line string)

		// Sanitize applies the configured sanitizers.
		Sanitize(text string) string
	}

	// Options configures Build.
	Options struct {
		Sanitizers []Sanitizer
		Verbose    bool

		// Writer defaults to os.Stdout.
		Writer io.Writer
	}

	consoleLogger struct {
		mu         sync.Mutex
		w          io.Writer
		sanitizers []Sanitizer
	}

	nullLogger struct {
		sanitizers []Sanitizer
	}
)

// Build returns a console logger when opts.Verbose is set, otherwise a logger that only
// sanitizes.
func Build(opts Options) Logger {
	if !opts.Verbose {
		return &nullLogger{sanitizers: opts.Sanitizers}
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	return &consoleLogger{w: w, sanitizers: opts.Sanitizers}
}

func (l *consoleLogger) Say(message string, subitem bool) {
	prefix := "-- "
	if subitem {
		prefix = "   -> "
	}

	l.write(prefix + l.Sanitize(message))
}

func (l *consoleLogger) WriteLine(line string) {
	l.write(l.Sanitize(line))
}

func (l *consoleLogger) Sanitize(text string) string {
	return sanitize(l.sanitizers, text)
}

func (l *consoleLogger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = fmt.Fprintln(l.w, line)
}

func (l *nullLogger) Say(string, bool) {}
func (l *nullLogger) WriteLine(string) {}

func (l *nullLogger) Sanitize(text string) string {
	return sanitize(l.sanitizers, text)
}

func sanitize(sanitizers []Sanitizer, text string) string {
	for _, s := range sanitizers {
		text = s.Sanitize(text)
	}

	return text
}
