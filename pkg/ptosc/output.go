package ptosc

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	// SeverityInfo marks ordinary pt-osc output.
	SeverityInfo Severity = iota

	// SeverityError marks lines matching one of pt-osc's failure markers.
	SeverityError
)

const (
	Stdout Stream = iota
	Stderr
)

var (
	// progressPattern matches pt-osc progress reports such as
	// "Copying `blog`.`comments`:  45% 00:10 remain".
	progressPattern = regexp.MustCompile(`^(.*?):\s+(\d+(?:\.\d+)?)%\s`)

	// insertedRowsPattern matches the INSERT row of the --statistics summary.
	insertedRowsPattern = regexp.MustCompile(`^#\s+INSERT\s+(\d+)\s*$`)
)

type (
	// Severity classifies a line of pt-osc output.
	Severity int

	// Stream identifies the pipe a line was read from.
	Stream int

	// LogLine is a single line of pt-osc output.
	LogLine struct {
		// Raw is the line exactly as the tool printed it, without the line terminator.
		Raw string

		// Sanitized is Raw with secrets redacted. Only this form may reach a log sink.
		Sanitized string

		Severity Severity
		Stream   Stream
	}

	// outputClassifier assigns severities to pt-osc output lines. It keeps the last
	// progress percentage per operation so a restarted copy is recognized.
	outputClassifier struct {
		progress     map[string]float64
		rowsAffected int64
	}
)

func (s Severity) String() string {
	if s == SeverityError {
		return "ERROR"
	}

	return "INFO"
}

func (s Stream) String() string {
	if s == Stderr {
		return "stderr"
	}

	return "stdout"
}

func newOutputClassifier() *outputClassifier {
	return &outputClassifier{progress: make(map[string]float64)}
}

// classify returns the severity of line and records summary values.
//
// A line is an error when it starts with "Error", contains "was not altered" or reports
// a progress percentage lower than the previous report for the same operation.
func (c *outputClassifier) classify(line string) Severity {
	trimmed := strings.TrimSpace(line)

	if m := insertedRowsPattern.FindStringSubmatch(trimmed); m != nil {
		if n, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			c.rowsAffected = n
		}
	}

	if strings.HasPrefix(trimmed, "Error") || strings.Contains(trimmed, "was not altered") {
		return SeverityError
	}

	if m := progressPattern.FindStringSubmatch(trimmed); m != nil {
		pct, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return SeverityInfo
		}

		last, seen := c.progress[m[1]]
		c.progress[m[1]] = pct
		if seen && pct < last {
			return SeverityError
		}
	}

	return SeverityInfo
}
