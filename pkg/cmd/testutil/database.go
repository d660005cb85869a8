package testutil

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	"github.com/pseudomuto/departure/pkg/adapter"
	"github.com/pseudomuto/departure/pkg/consts"
)

// FakeDatabase is an in-memory adapter.DriverPassthrough. It keeps a schema_migrations
// table so the executor can bootstrap, record and reload revisions, and records every
// other statement it is given.
type FakeDatabase struct {
	// Results are returned for queries matching the key exactly.
	Results map[string]*adapter.Result

	// FailOn makes any statement containing one of these substrings fail with a
	// *mysql.MySQLError.
	FailOn []string

	mu           sync.Mutex
	bootstrapped bool
	revisions    map[string][]any
	statements   []string
	closed       bool
}

// NewFakeDatabase returns an empty database.
func NewFakeDatabase() *FakeDatabase {
	return &FakeDatabase{
		Results:   make(map[string]*adapter.Result),
		revisions: make(map[string][]any),
	}
}

func (f *FakeDatabase) Exec(_ context.Context, query string, args ...any) (adapter.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sql := strings.TrimSpace(query)
	switch {
	case strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+consts.RevisionsTable):
		f.bootstrapped = true
		return adapter.ExecResult{}, nil
	case strings.HasPrefix(sql, "REPLACE INTO "+consts.RevisionsTable):
		f.revisions[args[0].(string)] = args
		return adapter.ExecResult{RowsAffected: 1}, nil
	case strings.HasPrefix(sql, "DELETE FROM "+consts.RevisionsTable):
		delete(f.revisions, args[0].(string))
		return adapter.ExecResult{RowsAffected: 1}, nil
	}

	for _, s := range f.FailOn {
		if strings.Contains(sql, s) {
			return adapter.ExecResult{}, &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}
		}
	}

	f.statements = append(f.statements, sql)
	return adapter.ExecResult{RowsAffected: 1, LastInsertID: int64(len(f.statements))}, nil
}

func (f *FakeDatabase) Query(_ context.Context, query string, _ ...any) (*adapter.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case strings.Contains(query, "information_schema.tables"):
		res := &adapter.Result{Columns: []string{"1"}}
		if f.bootstrapped {
			res.Rows = [][]any{{int64(1)}}
		}
		return res, nil
	case strings.Contains(query, "FROM "+consts.RevisionsTable):
		res := &adapter.Result{}
		for _, version := range slices.Sorted(maps.Keys(f.revisions)) {
			res.Rows = append(res.Rows, f.revisions[version])
		}
		return res, nil
	}

	if res, ok := f.Results[query]; ok {
		return res, nil
	}

	return &adapter.Result{}, nil
}

func (f *FakeDatabase) ServerVersion(context.Context) (string, error) {
	return "8.0.36", nil
}

func (f *FakeDatabase) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	return nil
}

// Statements returns the statements executed directly, excluding revision bookkeeping.
func (f *FakeDatabase) Statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.statements)
}

// Versions returns the versions recorded in schema_migrations.
func (f *FakeDatabase) Versions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Sorted(maps.Keys(f.revisions))
}

// Closed reports whether Close was called.
func (f *FakeDatabase) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}
