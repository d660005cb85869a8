package parser_test

import (
	"testing"

	. "github.com/pseudomuto/departure/pkg/parser"
	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		script   string
		expected []string
	}{
		{
			name:     "single statement without terminator",
			script:   "SELECT 1",
			expected: []string{"SELECT 1"},
		},
		{
			name:   "multiple statements",
			script: "CREATE TABLE t (a INT);\nALTER TABLE t ADD COLUMN b INT;\n",
			expected: []string{
				"CREATE TABLE t (a INT)",
				"ALTER TABLE t ADD COLUMN b INT",
			},
		},
		{
			name:   "semicolons in strings, identifiers and comments",
			script: "INSERT INTO t VALUES ('a;b');\n-- note; ignored\nALTER TABLE `we;ird` ADD c INT;",
			expected: []string{
				"INSERT INTO t VALUES ('a;b')",
				"-- note; ignored\nALTER TABLE `we;ird` ADD c INT",
			},
		},
		{
			name:   "double dash without a space is not a comment",
			script: "UPDATE t SET a = a--1;\nALTER TABLE t ADD COLUMN b INT;",
			expected: []string{
				"UPDATE t SET a = a--1",
				"ALTER TABLE t ADD COLUMN b INT",
			},
		},
		{
			name:     "double dash comment at end of input",
			script:   "SELECT 1; --",
			expected: []string{"SELECT 1"},
		},
		{
			name:     "empty pieces are dropped",
			script:   ";;  ; -- only a comment\n",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, Split(tt.script))
		})
	}
}

func TestSplitKeepsSchemaChangesAfterArithmetic(t *testing.T) {
	statements := Split("UPDATE t SET a = a--1;\nALTER TABLE t ADD COLUMN b INT;")
	require.Len(t, statements, 2)

	stmt := Classify(statements[1])
	require.Equal(t, SchemaChange, stmt.Kind)
	require.Equal(t, "t", stmt.Table)
	require.Equal(t, "ADD COLUMN b INT", stmt.Clause)
}
