package utils

import "strings"

// SQLBuilder provides a fluent interface for building MySQL ALTER TABLE statements and
// the alteration clauses the percona adapter hands to pt-online-schema-change.
//
// Example usage:
//
//	clause := NewSQLBuilder().
//		Add("UNIQUE INDEX").
//		Name("idx_email").
//		Columns("email").
//		String()
//	// Output: ADD UNIQUE INDEX `idx_email` (`email`)
//
//	sql := NewSQLBuilder().
//		Alter("TABLE").
//		QualifiedName("blog", "users").
//		Raw(clause).
//		String()
//	// Output: ALTER TABLE `blog`.`users` ADD UNIQUE INDEX `idx_email` (`email`)
type SQLBuilder struct {
	parts []string
}

// NewSQLBuilder creates a new SQLBuilder instance.
func NewSQLBuilder() *SQLBuilder {
	return &SQLBuilder{
		parts: make([]string, 0, 10),
	}
}

// Alter adds an ALTER clause with the specified object type.
//
// Example:
//
//	builder.Alter("TABLE") // ALTER TABLE
func (b *SQLBuilder) Alter(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ALTER", objectType)
	return b
}

// Add adds an ADD clause with the specified object type.
//
// Example:
//
//	builder.Add("INDEX")       // ADD INDEX
//	builder.Add("FOREIGN KEY") // ADD FOREIGN KEY
func (b *SQLBuilder) Add(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "ADD", objectType)
	return b
}

// Drop adds a DROP clause with the specified object type.
//
// Example:
//
//	builder.Drop("INDEX") // DROP INDEX
func (b *SQLBuilder) Drop(objectType string) *SQLBuilder {
	b.parts = append(b.parts, "DROP", objectType)
	return b
}

// Keyword adds bare keywords.
func (b *SQLBuilder) Keyword(keywords ...string) *SQLBuilder {
	b.parts = append(b.parts, keywords...)
	return b
}

// Name adds a backticked identifier. Empty names are skipped.
func (b *SQLBuilder) Name(name string) *SQLBuilder {
	if name != "" {
		b.parts = append(b.parts, BacktickIdentifier(name))
	}
	return b
}

// QualifiedName adds a table name with an optional database qualifier.
func (b *SQLBuilder) QualifiedName(database, name string) *SQLBuilder {
	b.parts = append(b.parts, BacktickQualifiedName(database, name))
	return b
}

// Columns adds a parenthesized, backticked column list.
//
// Example:
//
//	builder.Columns("a", "b") // (`a`, `b`)
func (b *SQLBuilder) Columns(columns ...string) *SQLBuilder {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = BacktickIdentifier(column)
	}

	b.parts = append(b.parts, "("+strings.Join(quoted, ", ")+")")
	return b
}

// Using adds an index type (BTREE, HASH). Empty types are skipped.
func (b *SQLBuilder) Using(indexType string) *SQLBuilder {
	if indexType != "" {
		b.parts = append(b.parts, "USING", strings.ToUpper(indexType))
	}
	return b
}

// Comment adds a COMMENT clause. Empty comments are skipped.
func (b *SQLBuilder) Comment(comment string) *SQLBuilder {
	if comment != "" {
		b.parts = append(b.parts, "COMMENT", QuoteString(comment))
	}
	return b
}

// Raw adds SQL verbatim. Empty strings are skipped.
func (b *SQLBuilder) Raw(sql string) *SQLBuilder {
	if sql != "" {
		b.parts = append(b.parts, sql)
	}
	return b
}

// String returns the built SQL. No terminating semicolon is added since neither the
// MySQL driver nor pt-osc wants one.
func (b *SQLBuilder) String() string {
	return strings.Join(b.parts, " ")
}
