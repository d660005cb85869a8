// Package adapter is the percona connection adapter. It wraps a regular MySQL driver
// connection and sends every statement that rewrites an existing table through
// pt-online-schema-change, while everything else goes to the driver untouched.
//
// Dispatch is decided per statement by parser.Classify:
//
//	a, err := adapter.Open(ctx, cfg, adapter.OpenOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Close()
//
//	// Runs pt-osc against blog.comments
//	_, err = a.Execute(ctx, "ALTER TABLE comments ADD COLUMN some_id_field INT(8)")
//
//	// Runs on the driver connection
//	rows, err := a.SelectRows(ctx, "SELECT * FROM comments")
//
// The structured schema helpers (AddIndex, RemoveIndex, AddForeignKey,
// RemoveForeignKey and ChangeTable) synthesize ALTER TABLE statements and go through
// the same dispatch, so index and foreign key changes are applied online too.
//
// Each schema change gets a fresh runner.Runner. Runner failures are returned as a
// *StatementError wrapping one of the ptosc error types, while driver errors are
// returned unchanged so callers can inspect *mysql.MySQLError themselves.
package adapter
