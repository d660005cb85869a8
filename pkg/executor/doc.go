// Package executor applies migrations through the percona adapter and records them in
// the schema_migrations table.
//
// Each migration runs statement by statement. The adapter decides per statement whether
// pt-online-schema-change or the MySQL driver applies it, and the optional Hook switches
// the adapter's online mode per migration before its statements run.
//
// MySQL DDL is not transactional, so a migration that fails part way stays partially
// applied. Its revision records how many statements succeeded together with a hash of
// each, and the next run resumes at the failed statement once the applied statements are
// verified to be unchanged.
//
// # Usage Example
//
//	a, err := adapter.Open(ctx, cfg, adapter.OpenOptions{})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer a.Close()
//
//	migrationDir, err := migrator.LoadMigrationDir(os.DirFS(cfg.Migrations.Dir))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	exec := executor.New(executor.Config{
//		Database: a,
//		Hook:     adapter.NewMigrationHook(a, cfg.Percona.EnabledByDefault),
//	})
//
//	results, err := exec.Execute(ctx, migrationDir.Migrations)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, result := range results {
//		if result.Status == executor.StatusFailed {
//			log.Fatalf("%s failed: %v", result.Version, result.Error)
//		}
//	}
package executor
