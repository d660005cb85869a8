package parser

import "slices"

// readOnlyVerbs are the statements that never write, no matter their arguments.
var readOnlyVerbs = []string{"DESC", "DESCRIBE", "SET", "SHOW", "USE"}

// IsWriteQuery reports whether sql must be treated as a write for transaction and retry
// purposes. A statement is read-only only when its first keyword (after any leading
// parentheses or comments) is DESC, DESCRIBE, SET, SHOW or USE; everything else,
// including SELECT and every schema change, counts as a write.
//
// Example:
//
//	parser.IsWriteQuery("SHOW TABLES")                 // false
//	parser.IsWriteQuery("/* hint */ describe users")  // false
//	parser.IsWriteQuery("ALTER TABLE t ADD c INT")     // true
func IsWriteQuery(sql string) bool {
	for _, t := range tokenize(sql) {
		if t.punct("(") {
			continue
		}

		if t.typ != identType {
			return true
		}

		return !slices.ContainsFunc(readOnlyVerbs, t.keyword)
	}

	return true
}
