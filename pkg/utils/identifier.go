package utils

import "strings"

// BacktickIdentifier adds backticks around an identifier, handling qualified names.
// It backticks each part of a database.table style identifier and doubles any
// backtick that appears inside an unquoted part, which is how MySQL escapes them.
//
// Examples:
//   - "comments" -> "`comments`"
//   - "blog.comments" -> "`blog`.`comments`"
//   - "`comments`" -> "`comments`" (already backticked, not double-backticked)
//   - "odd`name" -> "`odd``name`"
//   - "" -> ""
func BacktickIdentifier(name string) string {
	if name == "" {
		return ""
	}

	if IsBackticked(name) {
		return name
	}

	parts := strings.Split(name, ".")
	for i, part := range parts {
		if IsBackticked(part) {
			continue
		}
		parts[i] = "`" + strings.ReplaceAll(part, "`", "``") + "`"
	}

	return strings.Join(parts, ".")
}

// BacktickQualifiedName formats a table name with an optional database qualifier.
//
// Examples:
//   - ("blog", "comments") -> "`blog`.`comments`"
//   - ("", "comments") -> "`comments`"
func BacktickQualifiedName(database, name string) string {
	if database != "" {
		return BacktickIdentifier(database) + "." + BacktickIdentifier(name)
	}

	return BacktickIdentifier(name)
}

// IsBackticked checks if a string is a single identifier wrapped in backticks.
//
// Examples:
//   - "`table`" -> true
//   - "table" -> false
//   - "`db`.`table`" -> false (qualified name, not a single backticked identifier)
//   - "" -> false
func IsBackticked(s string) bool {
	if len(s) < 2 || s[0] != '`' || s[len(s)-1] != '`' {
		return false
	}

	return !strings.Contains(strings.ReplaceAll(s[1:len(s)-1], "``", ""), "`")
}

// StripBackticks removes backtick quoting from an identifier if present.
//
// Examples:
//   - "`table`" -> "table"
//   - "table" -> "table"
//   - "`odd``name`" -> "odd`name"
func StripBackticks(s string) string {
	if IsBackticked(s) {
		return strings.ReplaceAll(s[1:len(s)-1], "``", "`")
	}

	return s
}

// QuoteString returns value as a single-quoted MySQL string literal.
//
// Examples:
//   - "lookup" -> "'lookup'"
//   - "it's" -> "'it''s'"
func QuoteString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(escaped, "'", "''") + "'"
}
