package parser

import (
	"strings"
)

const (
	// PlainQuery statements are handed to the MySQL driver unchanged.
	PlainQuery Kind = iota

	// SchemaChange statements rewrite an existing table and are executed through
	// pt-online-schema-change.
	SchemaChange
)

type (
	// Kind is the classification tag of a Statement.
	Kind int

	// Statement is a classified SQL statement.
	//
	// For schema changes Table (and Schema when the statement qualifies the table with a
	// database) names the table being altered and Clause holds the alteration exactly as
	// written, without the leading ALTER TABLE <table>. pt-osc re-adds that prefix itself.
	//
	// Example:
	//
	//	stmt := parser.Classify("ALTER TABLE `blog`.`comments` DROP INDEX idx_author")
	//	// stmt.Kind   == parser.SchemaChange
	//	// stmt.Schema == "blog"
	//	// stmt.Table  == "comments"
	//	// stmt.Clause == "DROP INDEX idx_author"
	Statement struct {
		// SQL is the statement text with surrounding whitespace and trailing
		// semicolons removed.
		SQL string

		// Kind tells whether the statement needs the online schema change tool.
		Kind Kind

		// Verb is the upper-cased first keyword of the statement (SELECT, ALTER, ...).
		Verb string

		// Schema is the database qualifier of the altered table, if any.
		Schema string

		// Table is the unquoted name of the altered table.
		Table string

		// Clause is the alteration handed to pt-osc via --alter.
		Clause string
	}
)

// String returns a readable name for the kind.
func (k Kind) String() string {
	switch k {
	case SchemaChange:
		return "schema-change"
	default:
		return "plain-query"
	}
}

// IsSchemaChange reports whether the statement must run through pt-osc.
func (s *Statement) IsSchemaChange() bool {
	return s.Kind == SchemaChange
}

// Classify inspects the header of sql and returns its classification.
//
// A statement is a SchemaChange when it is one of:
//   - ALTER [ONLINE|OFFLINE] [IGNORE] TABLE <table> <clause>, unless the clause only
//     renames the table
//   - CREATE [UNIQUE|FULLTEXT|SPATIAL] INDEX <name> ON <table> (...), rewritten to
//     ADD ... INDEX <name> (...)
//   - DROP INDEX <name> ON <table>, rewritten to DROP INDEX <name>
//
// Everything else, including CREATE TABLE, DROP TABLE and RENAME TABLE, is a PlainQuery.
// Classify never fails and always returns the same result for the same input.
//
// Example:
//
//	parser.Classify("SELECT * FROM comments").Kind           // PlainQuery
//	parser.Classify("DROP TABLE comments").Kind              // PlainQuery
//	parser.Classify("CREATE INDEX idx ON comments (a)").Clause // ADD INDEX idx (a)
func Classify(sql string) *Statement {
	text := trimStatement(sql)
	stmt := &Statement{SQL: text, Kind: PlainQuery}

	tokens := tokenize(text)
	if len(tokens) == 0 {
		return stmt
	}

	if tokens[0].typ == identType {
		stmt.Verb = strings.ToUpper(tokens[0].value)
	}

	switch stmt.Verb {
	case "ALTER":
		classifyAlter(stmt, text, tokens)
	case "CREATE":
		classifyCreateIndex(stmt, text, tokens)
	case "DROP":
		classifyDropIndex(stmt, tokens)
	}

	return stmt
}

func classifyAlter(stmt *Statement, text string, tokens []token) {
	i := 1
	if i < len(tokens) && (tokens[i].keyword("ONLINE") || tokens[i].keyword("OFFLINE")) {
		i++
	}
	if i < len(tokens) && tokens[i].keyword("IGNORE") {
		i++
	}
	if i >= len(tokens) || !tokens[i].keyword("TABLE") {
		return
	}

	schema, table, next, ok := tableName(tokens, i+1)
	if !ok || next >= len(tokens) {
		return
	}

	clause := tokens[next:]
	if renamesTable(clause) {
		return
	}

	stmt.Kind = SchemaChange
	stmt.Schema = schema
	stmt.Table = table
	stmt.Clause = strings.TrimSpace(text[clause[0].offset:])
}

func classifyCreateIndex(stmt *Statement, text string, tokens []token) {
	i := 1
	if i < len(tokens) && (tokens[i].keyword("ONLINE") || tokens[i].keyword("OFFLINE")) {
		i++
	}

	var modifier string
	if i < len(tokens) && (tokens[i].keyword("UNIQUE") || tokens[i].keyword("FULLTEXT") || tokens[i].keyword("SPATIAL")) {
		modifier = strings.ToUpper(tokens[i].value)
		i++
	}
	if i+1 >= len(tokens) || !tokens[i].keyword("INDEX") || !tokens[i+1].identifier() {
		return
	}

	indexName := tokens[i+1].value
	i += 2

	var indexType string
	if i+1 < len(tokens) && tokens[i].keyword("USING") {
		indexType = "USING " + strings.ToUpper(tokens[i+1].value)
		i += 2
	}
	if i >= len(tokens) || !tokens[i].keyword("ON") {
		return
	}

	schema, table, next, ok := tableName(tokens, i+1)
	if !ok || next >= len(tokens) || !tokens[next].punct("(") {
		return
	}

	parts := []string{"ADD"}
	if modifier != "" {
		parts = append(parts, modifier)
	}
	parts = append(parts, "INDEX", indexName)
	if indexType != "" {
		parts = append(parts, indexType)
	}
	parts = append(parts, strings.TrimSpace(text[tokens[next].offset:]))

	stmt.Kind = SchemaChange
	stmt.Schema = schema
	stmt.Table = table
	stmt.Clause = strings.Join(parts, " ")
}

func classifyDropIndex(stmt *Statement, tokens []token) {
	if len(tokens) < 5 || !tokens[1].keyword("INDEX") || !tokens[2].identifier() || !tokens[3].keyword("ON") {
		return
	}

	schema, table, _, ok := tableName(tokens, 4)
	if !ok {
		return
	}

	stmt.Kind = SchemaChange
	stmt.Schema = schema
	stmt.Table = table
	stmt.Clause = "DROP INDEX " + tokens[2].value
}

// tableName reads an optionally database-qualified table name starting at tokens[i].
// It returns the index of the first token after the name.
func tableName(tokens []token, i int) (schema, table string, next int, ok bool) {
	if i >= len(tokens) || !tokens[i].identifier() {
		return "", "", i, false
	}

	if i+2 < len(tokens) && tokens[i+1].punct(".") && tokens[i+2].identifier() {
		return tokens[i].name(), tokens[i+2].name(), i + 3, true
	}

	return "", tokens[i].name(), i + 1, true
}

// renamesTable reports whether an ALTER TABLE clause does nothing but rename the table.
// RENAME COLUMN and RENAME INDEX/KEY are real alterations, as is any clause list.
func renamesTable(clause []token) bool {
	if len(clause) < 2 || !clause[0].keyword("RENAME") {
		return false
	}

	if clause[1].keyword("COLUMN") || clause[1].keyword("INDEX") || clause[1].keyword("KEY") {
		return false
	}

	depth := 0
	for _, t := range clause {
		switch {
		case t.punct("("):
			depth++
		case t.punct(")"):
			depth--
		case t.punct(",") && depth == 0:
			return false
		}
	}

	return true
}

// trimStatement removes surrounding whitespace and trailing statement terminators.
func trimStatement(sql string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}
