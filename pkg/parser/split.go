package parser

import "strings"

// Split breaks a script into individual statements on top-level semicolons. Semicolons
// inside strings, quoted identifiers and comments do not terminate a statement. Pieces
// that only contain whitespace or comments are dropped, and the returned statements do
// not include their terminating semicolon.
//
// Example:
//
//	parser.Split("CREATE TABLE t (a INT); -- done\nALTER TABLE t ADD b INT;")
//	// []string{"CREATE TABLE t (a INT)", "-- done\nALTER TABLE t ADD b INT"}
func Split(script string) []string {
	var (
		statements []string
		start      int
		pending    bool
	)

	for _, t := range tokenize(script) {
		if !t.punct(";") {
			pending = true
			continue
		}

		if pending {
			statements = append(statements, strings.TrimSpace(script[start:t.offset]))
		}

		start = t.offset + 1
		pending = false
	}

	if pending {
		statements = append(statements, strings.TrimSpace(script[start:]))
	}

	return statements
}
