package adapter

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/pseudomuto/departure/pkg/ptosc"
)

// Variants maps original_adapter names to the passthrough that serves them.
var Variants = map[string]DriverFactory{
	"mysql":  OpenMySQL,
	"mysql2": OpenMySQL,
}

type (
	// ExecResult is the outcome of a statement that returns no rows.
	ExecResult struct {
		RowsAffected int64
		LastInsertID int64
	}

	// Result holds the rows returned by a query. Text columns are returned as strings.
	Result struct {
		Columns []string
		Rows    [][]any
	}

	// DriverPassthrough is the capability set the adapter needs from the underlying
	// MySQL driver. There is one implementation per supported original_adapter.
	DriverPassthrough interface {
		Exec(ctx context.Context, query string, args ...any) (ExecResult, error)
		Query(ctx context.Context, query string, args ...any) (*Result, error)
		ServerVersion(ctx context.Context) (string, error)
		Close() error
	}

	// DriverFactory connects a passthrough using resolved connection details.
	DriverFactory func(ctx context.Context, details *ptosc.ConnectionDetails) (DriverPassthrough, error)
)

// Maps returns each row keyed by column name.
func (r *Result) Maps() []map[string]any {
	res := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for j, col := range r.Columns {
			m[col] = row[j]
		}
		res[i] = m
	}

	return res
}

func lookupVariant(drivers map[string]DriverFactory, name string) (DriverFactory, error) {
	supported := slices.Sorted(maps.Keys(drivers))

	if name == "" {
		return nil, ptosc.NewConfigurationError(
			"You must supply the original_adapter when connecting using the percona adapter. Supported adapters: %s",
			strings.Join(supported, ", "),
		)
	}

	factory, ok := drivers[name]
	if !ok {
		return nil, ptosc.NewConfigurationError(
			"unsupported original_adapter %q. Supported adapters: %s",
			name,
			strings.Join(supported, ", "),
		)
	}

	return factory, nil
}
