package migrator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/consts"
)

const (
	// StandardRevision records a migration applied by migrate.
	StandardRevision RevisionKind = "migration"
)

type (
	// RowQuerier runs a query and returns every row, one []any per row, in column order.
	RowQuerier interface {
		SelectRows(ctx context.Context, query string, args ...any) ([][]any, error)
	}

	// Revision is a row of the schema_migrations table.
	//
	// Example usage:
	//   revision := &migrator.Revision{
	//       Version:          "20240101120000",
	//       ExecutedAt:       time.Now(),
	//       ExecutionTime:    2 * time.Second,
	//       Kind:             migrator.StandardRevision,
	//       Applied:          2,
	//       Total:            2,
	//       Hash:             "h1:abc123...",
	//       PartialHashes:    []string{"h1:...", "h1:..."},
	//       DepartureVersion: "1.0.0",
	//   }
	Revision struct {
		// Version matches Migration.Version.
		Version string

		// ExecutedAt is when execution began.
		ExecutedAt time.Time

		// ExecutionTime is how long the statements took to run.
		ExecutionTime time.Duration

		Kind RevisionKind

		// Error is the failure message, nil when the migration succeeded.
		Error *string

		// Applied is the number of statements that ran successfully.
		Applied int

		// Total is the number of up statements in the migration.
		Total int

		// Hash covers every up statement of the migration.
		Hash string

		// PartialHashes holds one hash per applied statement, used to validate a resume.
		PartialHashes []string

		// DepartureVersion is the version of the tool that wrote the revision.
		DepartureVersion string
	}

	// RevisionKind categorizes a revision.
	RevisionKind string

	// RevisionSet is the set of recorded revisions with status queries over migrations.
	RevisionSet struct {
		revisions       map[string]*Revision
		orderedVersions []string
	}
)

// NewRevisionSet creates a RevisionSet from revisions in applied order.
func NewRevisionSet(revisions []*Revision) *RevisionSet {
	revisionMap := make(map[string]*Revision)
	orderedVersions := make([]string, 0, len(revisions))

	for _, revision := range revisions {
		revisionMap[revision.Version] = revision
		orderedVersions = append(orderedVersions, revision.Version)
	}

	return &RevisionSet{
		revisions:       revisionMap,
		orderedVersions: orderedVersions,
	}
}

// LoadRevisions reads the schema_migrations table.
//
// Example usage:
//
//	revisionSet, err := migrator.LoadRevisions(ctx, db)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, migration := range migrationDir.Migrations {
//		if revisionSet.IsCompleted(migration) {
//			fmt.Printf("✓ %s completed\n", migration.ID())
//		}
//	}
//
// Returns an error if the query fails or a row cannot be converted.
func LoadRevisions(ctx context.Context, db RowQuerier) (*RevisionSet, error) {
	rows, err := db.SelectRows(ctx, fmt.Sprintf(`
		SELECT
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
		FROM %s
		ORDER BY version ASC
	`, consts.RevisionsTable))
	if err != nil {
		return nil, errors.Wrap(err, "failed to load revisions")
	}

	revisions := make([]*Revision, 0, len(rows))
	for i, row := range rows {
		revision, err := scanRevision(row)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to scan revision row %d", i)
		}

		revisions = append(revisions, revision)
	}

	return NewRevisionSet(revisions), nil
}

func scanRevision(row []any) (*Revision, error) {
	if len(row) != 10 {
		return nil, errors.Errorf("expected 10 columns, got %d", len(row))
	}

	executedAt, err := asTime(row[1])
	if err != nil {
		return nil, errors.Wrap(err, "executed_at")
	}

	executionTimeMs, err := asInt(row[2])
	if err != nil {
		return nil, errors.Wrap(err, "execution_time_ms")
	}

	applied, err := asInt(row[5])
	if err != nil {
		return nil, errors.Wrap(err, "applied")
	}

	total, err := asInt(row[6])
	if err != nil {
		return nil, errors.Wrap(err, "total")
	}

	revision := &Revision{
		Version:          asString(row[0]),
		ExecutedAt:       executedAt,
		ExecutionTime:    time.Duration(executionTimeMs) * time.Millisecond,
		Kind:             RevisionKind(asString(row[3])),
		Applied:          int(applied),
		Total:            int(total),
		Hash:             asString(row[7]),
		DepartureVersion: asString(row[9]),
	}

	if row[4] != nil {
		msg := asString(row[4])
		revision.Error = &msg
	}

	if hashes := asString(row[8]); hashes != "" {
		revision.PartialHashes = strings.Split(hashes, "\n")
	}

	return revision, nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func asInt(v any) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		return int64(t), nil //nolint:gosec
	case uint32:
		return int64(t), nil
	case string, []byte:
		return strconv.ParseInt(asString(t), 10, 64)
	default:
		return 0, errors.Errorf("unexpected type %T", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string, []byte:
		for _, layout := range []string{"2006-01-02 15:04:05.999999", time.RFC3339Nano} {
			if ts, err := time.Parse(layout, asString(t)); err == nil {
				return ts, nil
			}
		}
		return time.Time{}, errors.Errorf("unparseable time %q", asString(t))
	default:
		return time.Time{}, errors.Errorf("unexpected type %T", v)
	}
}

// IsCompleted reports whether the migration ran every up statement without error.
func (rs *RevisionSet) IsCompleted(migration *Migration) bool {
	revision, exists := rs.revisions[migration.Version]
	if !exists {
		return false
	}

	if revision.Error != nil || revision.Kind != StandardRevision {
		return false
	}

	return revision.Applied == revision.Total && len(migration.Up) == revision.Total
}

// IsFailed reports whether the migration was attempted and recorded an error.
func (rs *RevisionSet) IsFailed(migration *Migration) bool {
	revision, exists := rs.revisions[migration.Version]
	if !exists {
		return false
	}

	return revision.Kind == StandardRevision && revision.Error != nil
}

// IsPending reports whether the migration has never been attempted.
func (rs *RevisionSet) IsPending(migration *Migration) bool {
	_, exists := rs.revisions[migration.Version]
	return !exists
}

// IsPartiallyApplied reports whether the migration failed after applying some statements.
func (rs *RevisionSet) IsPartiallyApplied(migration *Migration) bool {
	revision, exists := rs.revisions[migration.Version]
	if !exists {
		return false
	}

	return revision.Error != nil && revision.Applied > 0 && revision.Applied < revision.Total
}

// GetRevision returns the revision recorded for the migration, or nil.
func (rs *RevisionSet) GetRevision(migration *Migration) *Revision {
	return rs.revisions[migration.Version]
}

// GetPending returns the migrations that still need to run, including failed ones, in
// directory order.
func (rs *RevisionSet) GetPending(migrationDir *MigrationDir) []*Migration {
	var pending []*Migration
	for _, migration := range migrationDir.Migrations {
		if !rs.IsCompleted(migration) {
			pending = append(pending, migration)
		}
	}

	return pending
}

// GetCompleted returns the completed migrations in directory order.
func (rs *RevisionSet) GetCompleted(migrationDir *MigrationDir) []*Migration {
	var completed []*Migration
	for _, migration := range migrationDir.Migrations {
		if rs.IsCompleted(migration) {
			completed = append(completed, migration)
		}
	}

	return completed
}

// GetFailed returns the failed migrations in directory order.
func (rs *RevisionSet) GetFailed(migrationDir *MigrationDir) []*Migration {
	var failed []*Migration
	for _, migration := range migrationDir.Migrations {
		if rs.IsFailed(migration) {
			failed = append(failed, migration)
		}
	}

	return failed
}

// GetPartiallyApplied returns the migrations that can be resumed, in directory order.
func (rs *RevisionSet) GetPartiallyApplied(migrationDir *MigrationDir) []*Migration {
	var partial []*Migration
	for _, migration := range migrationDir.Migrations {
		if rs.IsPartiallyApplied(migration) {
			partial = append(partial, migration)
		}
	}

	return partial
}

// GetLastCompleted returns the most recently ordered completed migration, or nil. This is
// the migration rollback reverts.
func (rs *RevisionSet) GetLastCompleted(migrationDir *MigrationDir) *Migration {
	completed := rs.GetCompleted(migrationDir)
	if len(completed) == 0 {
		return nil
	}

	return completed[len(completed)-1]
}

// GetExecutedVersions returns every recorded version in table order.
func (rs *RevisionSet) GetExecutedVersions() []string {
	versions := make([]string, len(rs.orderedVersions))
	copy(versions, rs.orderedVersions)
	return versions
}

// Count returns the number of recorded revisions.
func (rs *RevisionSet) Count() int {
	return len(rs.revisions)
}

// HasRevision reports whether a revision exists for version.
func (rs *RevisionSet) HasRevision(version string) bool {
	_, exists := rs.revisions[version]
	return exists
}
