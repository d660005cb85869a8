// Package parser classifies MySQL statements for the percona adapter.
//
// The package tokenizes SQL with a participle lexer (github.com/alecthomas/participle/v2)
// and decides, for every statement handed to the adapter, whether it is a schema change
// that must be executed through pt-online-schema-change or a plain query that goes to
// the MySQL driver unchanged. Only the statement header is interpreted; the alteration
// clause is kept verbatim as an opaque string so pt-osc receives exactly what the
// migration author wrote.
//
// Key features:
//   - Total, deterministic classification (every input yields a Statement)
//   - ALTER TABLE detection with optional database qualifier and backtick quoting
//   - Rewriting of raw CREATE INDEX / DROP INDEX into ALTER TABLE clauses
//   - Table renames (ALTER TABLE ... RENAME TO) bypass the online path
//   - Read-only query detection used for transaction and retry decisions
//   - Splitting of migration files into individual statements
//
// Basic usage:
//
//	stmt := parser.Classify("ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
//	if stmt.IsSchemaChange() {
//		fmt.Println(stmt.Table)  // comments
//		fmt.Println(stmt.Clause) // ADD COLUMN some_id_field INT(8)
//	}
//
//	for _, sql := range parser.Split(migrationContent) {
//		fmt.Println(parser.Classify(sql).Kind)
//	}
//
//	parser.IsWriteQuery("SHOW TABLES") // false
package parser
