// Package utils provides common utility functions used throughout the departure codebase.
//
// # Identifier Utilities (identifier.go)
//
// The identifier utilities provide consistent handling of MySQL identifiers, including
// backtick quoting for names that may contain special characters or reserved keywords:
//
//	utils.BacktickIdentifier("blog.comments")           // `blog`.`comments`
//	utils.BacktickQualifiedName("", "comments")         // `comments`
//	utils.StripBackticks("`comments`")                  // comments
//	utils.QuoteString("it's")                           // 'it''s'
//
// # SQL Builder (sqlbuilder.go)
//
// SQLBuilder assembles ALTER TABLE statements and alteration clauses for the structured
// adapter API (AddIndex, RemoveIndex, foreign keys, bulk table changes):
//
//	utils.NewSQLBuilder().Drop("INDEX").Name("idx_author").String()
//	// DROP INDEX `idx_author`
package utils
