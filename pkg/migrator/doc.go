// Package migrator loads MySQL migration files and tracks which of them have been applied.
//
// Migration files are named <version>_<name>.sql and live in a single directory. A file may
// be split into an up and a down section with marker comments, and may opt in or out of the
// online schema change path with a directive:
//
//	-- departure:disable
//	-- +up
//	ALTER TABLE comments ADD COLUMN some_id_field INT(8);
//	CREATE INDEX idx_some_id ON comments (some_id_field);
//
//	-- +down
//	ALTER TABLE comments DROP COLUMN some_id_field;
//
// Files without markers are entirely up. Statements are split with parser.Split, so
// semicolons inside strings, quoted identifiers and comments are handled.
//
// Applied migrations are recorded as revisions in the schema_migrations table. A revision
// stores how many statements were applied along with a hash of each, which lets a migration
// that failed halfway (MySQL DDL is not transactional) resume at the failed statement as
// long as the already-applied statements have not been edited.
//
// Example usage:
//
//	dir, err := migrator.LoadMigrationDir(os.DirFS("db/migrations"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	revisions, err := migrator.LoadRevisions(ctx, db)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, m := range revisions.GetPending(dir) {
//		fmt.Printf("pending: %s (%d statements)\n", m.ID(), len(m.Up))
//	}
package migrator
