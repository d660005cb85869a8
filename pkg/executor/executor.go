package executor

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/migrator"
)

const (
	// StatusSuccess indicates the migration was executed successfully
	StatusSuccess ExecutionStatus = "success"

	// StatusFailed indicates the migration execution failed
	StatusFailed ExecutionStatus = "failed"

	// StatusSkipped indicates the migration was already applied
	StatusSkipped ExecutionStatus = "skipped"

	// StatusRolledBack indicates the migration's down section was applied
	StatusRolledBack ExecutionStatus = "rolled_back"
)

var bootstrapSQL = fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    version VARCHAR(255) NOT NULL PRIMARY KEY COMMENT 'The version (e.g. 20250101123045)',
    executed_at DATETIME(3) NOT NULL COMMENT 'The UTC time at which this attempt was executed',
    execution_time_ms BIGINT UNSIGNED NOT NULL COMMENT 'How long the migration took to run',
    kind VARCHAR(32) NOT NULL COMMENT 'The type of revision',
    error TEXT NULL COMMENT 'The error message from the last attempt (if any)',
    applied INT UNSIGNED NOT NULL COMMENT 'The number of applied statements',
    total INT UNSIGNED NOT NULL COMMENT 'The total number of statements in the migration',
    hash VARCHAR(64) NOT NULL COMMENT 'The h1 hash of the migration',
    partial_hashes TEXT NOT NULL COMMENT 'Newline separated h1 hashes for each applied statement',
    departure_version VARCHAR(64) NOT NULL COMMENT 'The version of departure used to run the migration'
) ENGINE=InnoDB COMMENT='Table used to track migrations'`, consts.RevisionsTable)

type (
	// Database is the connection migrations run on. *adapter.Adapter implements it.
	Database interface {
		Execute(ctx context.Context, sql string, args ...any) (adapter.ExecResult, error)
		SelectRows(ctx context.Context, sql string, args ...any) ([][]any, error)
	}

	// Hook is called around every migration. *adapter.MigrationHook implements it.
	Hook interface {
		BeforeMigration(ctx context.Context, m *migrator.Migration) error
		AfterMigration(ctx context.Context, m *migrator.Migration, err error) error
	}

	// Executor applies migrations and records them in the schema_migrations table.
	//
	// Example usage:
	//
	//	exec := executor.New(executor.Config{
	//		Database:         a,
	//		Hook:             adapter.NewMigrationHook(a, cfg.Percona.EnabledByDefault),
	//		DepartureVersion: "1.0.0",
	//	})
	//
	//	results, err := exec.Execute(ctx, migrationDir.Migrations)
	//	if err != nil {
	//		log.Fatal(err)
	//	}
	//
	//	for _, result := range results {
	//		fmt.Printf("Migration %s: %s\n", result.Version, result.Status)
	//	}
	Executor struct {
		db               Database
		hook             Hook
		metrics          *metrics.Recorder
		departureVersion string
	}

	// Config contains configuration options for creating a new Executor.
	Config struct {
		Database Database

		// Hook is optional.
		Hook Hook

		// Metrics is optional.
		Metrics *metrics.Recorder

		// DepartureVersion is recorded in revision entries.
		DepartureVersion string
	}

	// ExecutionResult contains the result of executing a single migration.
	ExecutionResult struct {
		Version string
		Status  ExecutionStatus
		Error   error

		ExecutionTime time.Duration

		// StatementsApplied counts statements applied so far, including those applied by
		// an earlier partial run.
		StatementsApplied int
		TotalStatements   int

		// RowsAffected sums what each statement reported.
		RowsAffected int64

		// Revision is the record written for this execution, nil for skipped migrations.
		Revision *migrator.Revision
	}

	// ExecutionStatus represents the outcome of a migration execution.
	ExecutionStatus string
)

// New creates a migration executor.
func New(config Config) *Executor {
	return &Executor{
		db:               config.Database,
		hook:             config.Hook,
		metrics:          config.Metrics,
		departureVersion: config.DepartureVersion,
	}
}

// Execute applies migrations in order.
//
// The schema_migrations table is created first if needed. Completed migrations are
// skipped, and a migration that failed part way resumes at the failed statement once
// the already-applied statements are verified against their recorded hashes. Execution
// stops at the first failure, which is reported in the results rather than as an error.
// The returned error covers bootstrap and revision loading problems only.
func (e *Executor) Execute(ctx context.Context, migrations []*migrator.Migration) ([]*ExecutionResult, error) {
	if err := e.ensureBootstrap(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to bootstrap migration tracking")
	}

	revisionSet, err := migrator.LoadRevisions(ctx, e.db)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load existing revisions")
	}

	results := make([]*ExecutionResult, 0, len(migrations))
	for _, migration := range migrations {
		result := e.executeMigration(ctx, migration, revisionSet)
		results = append(results, result)
		e.metrics.ObserveMigration(string(result.Status))

		if result.Status == StatusFailed {
			break
		}
	}

	return results, nil
}

// Rollback applies the down section of migration and removes its revision.
//
// Returns an error when the migration has no down section. Statement failures are
// reported in the result.
func (e *Executor) Rollback(ctx context.Context, migration *migrator.Migration) (*ExecutionResult, error) {
	if !migration.Reversible() {
		return nil, errors.Errorf("migration %s has no -- +down section", migration.ID())
	}

	startTime := time.Now()
	applied, rows, execErr := e.runStatements(ctx, migration, migration.Down, 0)

	result := &ExecutionResult{
		Version:           migration.Version,
		Status:            StatusRolledBack,
		Error:             execErr,
		ExecutionTime:     time.Since(startTime),
		StatementsApplied: applied,
		TotalStatements:   len(migration.Down),
		RowsAffected:      rows,
	}

	if execErr == nil {
		deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE version = ?", consts.RevisionsTable)
		if _, err := e.db.Execute(ctx, deleteSQL, migration.Version); err != nil {
			result.Error = errors.Wrap(err, "failed to delete revision")
		}
	}

	if result.Error != nil {
		result.Status = StatusFailed
	}

	e.metrics.ObserveMigration(string(result.Status))
	return result, nil
}

// IsBootstrapped reports whether the schema_migrations table exists in the current
// database.
func (e *Executor) IsBootstrapped(ctx context.Context) (bool, error) {
	rows, err := e.db.SelectRows(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
		consts.RevisionsTable,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to check for revisions table")
	}

	return len(rows) > 0, nil
}

func (e *Executor) ensureBootstrap(ctx context.Context) error {
	bootstrapped, err := e.IsBootstrapped(ctx)
	if err != nil || bootstrapped {
		return err
	}

	slog.Info("Creating revisions table", "table", consts.RevisionsTable)
	if _, err := e.db.Execute(ctx, bootstrapSQL); err != nil {
		return errors.Wrap(err, "failed to create revisions table")
	}

	return nil
}

func (e *Executor) executeMigration(ctx context.Context, migration *migrator.Migration, revisionSet *migrator.RevisionSet) *ExecutionResult {
	startTime := time.Now()

	if revisionSet.IsCompleted(migration) {
		return &ExecutionResult{
			Version:           migration.Version,
			Status:            StatusSkipped,
			StatementsApplied: len(migration.Up),
			TotalStatements:   len(migration.Up),
		}
	}

	startIndex, err := e.resumeIndex(migration, revisionSet)
	if err != nil {
		return &ExecutionResult{
			Version:         migration.Version,
			Status:          StatusFailed,
			Error:           errors.Wrap(err, "failed to validate partial revision"),
			ExecutionTime:   time.Since(startTime),
			TotalStatements: len(migration.Up),
		}
	}

	if startIndex > 0 {
		slog.Info("Resuming partially applied migration", "version", migration.Version, "from_statement", startIndex+1)
	}

	applied, rows, execErr := e.runStatements(ctx, migration, migration.Up, startIndex)
	executionTime := time.Since(startTime)

	status := StatusSuccess
	if execErr != nil {
		status = StatusFailed
	}

	migrationHash, partialHashes := ComputeHashes(migration.Up)

	revision := &migrator.Revision{
		Version:          migration.Version,
		ExecutedAt:       startTime.UTC(),
		ExecutionTime:    executionTime,
		Kind:             migrator.StandardRevision,
		Applied:          applied,
		Total:            len(migration.Up),
		Hash:             migrationHash,
		PartialHashes:    partialHashes[:applied],
		DepartureVersion: e.departureVersion,
	}

	if execErr != nil {
		msg := execErr.Error()
		revision.Error = &msg
	}

	if err := e.saveRevision(ctx, revision); err != nil {
		// The schema change itself may have succeeded, so the result keeps its status.
		slog.Warn("Failed to save revision record", "version", migration.Version, "error", err)
	}

	return &ExecutionResult{
		Version:           migration.Version,
		Status:            status,
		Error:             execErr,
		ExecutionTime:     executionTime,
		StatementsApplied: applied,
		TotalStatements:   len(migration.Up),
		RowsAffected:      rows,
		Revision:          revision,
	}
}

// runStatements runs statements[start:] between the hook calls and returns how many
// statements have been applied in total.
func (e *Executor) runStatements(ctx context.Context, migration *migrator.Migration, statements []string, start int) (int, int64, error) {
	if e.hook != nil {
		if err := e.hook.BeforeMigration(ctx, migration); err != nil {
			return start, 0, errors.Wrap(err, "before migration hook failed")
		}
	}

	applied := start
	var (
		rows    int64
		execErr error
	)

	for i := start; i < len(statements); i++ {
		res, err := e.db.Execute(ctx, statements[i])
		if err != nil {
			execErr = errors.Wrapf(err, "failed to execute statement %d", i+1)
			break
		}

		rows += res.RowsAffected
		applied++
	}

	if e.hook != nil {
		if err := e.hook.AfterMigration(ctx, migration, execErr); err != nil && execErr == nil {
			execErr = errors.Wrap(err, "after migration hook failed")
		}
	}

	return applied, rows, execErr
}

// resumeIndex returns the statement to start from. Partially applied migrations resume
// after their last applied statement as long as those statements are unchanged.
func (e *Executor) resumeIndex(migration *migrator.Migration, revisionSet *migrator.RevisionSet) (int, error) {
	revision := revisionSet.GetRevision(migration)
	if revision == nil || revision.Applied == 0 {
		return 0, nil
	}

	if revision.Error == nil && revision.Applied == revision.Total {
		// Completed, but the file now has a different number of statements.
		return 0, errors.Errorf(
			"migration %s was applied with %d statements but now has %d",
			migration.ID(), revision.Total, len(migration.Up),
		)
	}

	if len(migration.Up) != revision.Total {
		return 0, errors.Errorf(
			"migration statement count changed: expected %d statements, found %d in revision",
			len(migration.Up), revision.Total,
		)
	}

	if len(revision.PartialHashes) < revision.Applied {
		return 0, errors.New("partial revision has no statement hashes for validation")
	}

	for i := range revision.Applied {
		expected := revision.PartialHashes[i]
		if actual := computeHash(migration.Up[i]); actual != expected {
			return 0, errors.Errorf(
				"statement %d hash mismatch: migration file may have been modified since partial execution (expected %s, got %s)",
				i+1, expected, actual,
			)
		}
	}

	return revision.Applied, nil
}

func (e *Executor) saveRevision(ctx context.Context, revision *migrator.Revision) error {
	insertSQL := fmt.Sprintf(`
		REPLACE INTO %s (
			version,
			executed_at,
			execution_time_ms,
			kind,
			error,
			applied,
			total,
			hash,
			partial_hashes,
			departure_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, consts.RevisionsTable)

	var errorValue any
	if revision.Error != nil {
		errorValue = *revision.Error
	}

	_, err := e.db.Execute(ctx, insertSQL,
		revision.Version,
		revision.ExecutedAt,
		revision.ExecutionTime.Milliseconds(),
		string(revision.Kind),
		errorValue,
		revision.Applied,
		revision.Total,
		revision.Hash,
		strings.Join(revision.PartialHashes, "\n"),
		revision.DepartureVersion,
	)

	return err
}

// ComputeHashes returns the h1 hash of all statements and of each statement.
func ComputeHashes(statements []string) (string, []string) {
	partialHashes := make([]string, 0, len(statements))
	var allContent strings.Builder

	for _, stmt := range statements {
		partialHashes = append(partialHashes, computeHash(stmt))
		allContent.WriteString(stmt)
		allContent.WriteString("\n")
	}

	return computeHash(allContent.String()), partialHashes
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "h1:" + base64.StdEncoding.EncodeToString(hash[:])
}
