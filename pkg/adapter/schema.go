package adapter

import (
	"context"
	"strings"

	"github.com/pseudomuto/departure/pkg/ptosc"
	"github.com/pseudomuto/departure/pkg/utils"
)

type (
	// IndexOptions describes an index for AddIndex and RemoveIndex.
	IndexOptions struct {
		// Name defaults to index_<table>_on_<col1>_and_<col2>.
		Name string

		Unique bool

		// Type is FULLTEXT or SPATIAL.
		Type string

		// Using is BTREE or HASH.
		Using string

		Comment string
	}

	// ForeignKeyOptions describes a foreign key for AddForeignKey.
	ForeignKeyOptions struct {
		// Column defaults to the singular referenced table followed by _id.
		Column string

		// PrimaryKey defaults to id.
		PrimaryKey string

		// Name defaults to fk_<from>_<column>.
		Name string

		// OnDelete and OnUpdate take cascade, nullify or restrict.
		OnDelete string
		OnUpdate string
	}

	// TableChanges collects alterations for ChangeTable.
	TableChanges struct {
		table   string
		clauses []string
		err     error
	}
)

// IndexName returns the default name for an index on columns of table.
func IndexName(table string, columns []string) string {
	return "index_" + table + "_on_" + strings.Join(columns, "_and_")
}

// ForeignKeyName returns the name pt-osc gives a foreign key after rebuilding the table
// that owns it. pt-osc prefixes rebuilt constraints with an underscore, and strips two
// underscores when a name already carries them, so the names alternate between runs.
func ForeignKeyName(name string) string {
	if rest, ok := strings.CutPrefix(name, "__"); ok {
		return rest
	}

	return "_" + name
}

// AddIndex adds an index to table with an online ALTER TABLE.
func (a *Adapter) AddIndex(ctx context.Context, table string, columns []string, opts IndexOptions) error {
	return a.ChangeTable(ctx, table, func(t *TableChanges) {
		t.AddIndex(columns, opts)
	})
}

// RemoveIndex drops an index from table with an online ALTER TABLE. The index is found
// by opts.Name, or by the default name for columns.
func (a *Adapter) RemoveIndex(ctx context.Context, table string, columns []string, opts IndexOptions) error {
	return a.ChangeTable(ctx, table, func(t *TableChanges) {
		t.RemoveIndex(columns, opts)
	})
}

// AddForeignKey adds a foreign key from one table to another.
func (a *Adapter) AddForeignKey(ctx context.Context, from, to string, opts ForeignKeyOptions) error {
	return a.ChangeTable(ctx, from, func(t *TableChanges) {
		t.AddForeignKey(to, opts)
	})
}

// RemoveForeignKey drops a foreign key, translating its name the way pt-osc renamed it.
func (a *Adapter) RemoveForeignKey(ctx context.Context, table, name string) error {
	return a.ChangeTable(ctx, table, func(t *TableChanges) {
		t.RemoveForeignKey(name)
	})
}

// ChangeTable merges every alteration made by fn into a single ALTER TABLE so pt-osc
// copies the table once. Nothing runs when fn makes no changes.
//
// Example:
//
//	err := a.ChangeTable(ctx, "comments", func(t *adapter.TableChanges) {
//		t.AddColumn("some_id_field", "INT(8)")
//		t.AddIndex([]string{"some_id_field"}, adapter.IndexOptions{})
//	})
//	// ALTER TABLE `comments` ADD COLUMN `some_id_field` INT(8),
//	//   ADD INDEX `index_comments_on_some_id_field` (`some_id_field`)
func (a *Adapter) ChangeTable(ctx context.Context, table string, fn func(*TableChanges)) error {
	sql, err := BuildChangeTable(table, fn)
	if err != nil || sql == "" {
		return err
	}

	_, err = a.Execute(ctx, sql)
	return err
}

// BuildChangeTable returns the ALTER TABLE statement ChangeTable would run, or an empty
// string when fn makes no changes.
func BuildChangeTable(table string, fn func(*TableChanges)) (string, error) {
	changes := &TableChanges{table: table}
	fn(changes)

	if changes.err != nil {
		return "", changes.err
	}
	if len(changes.clauses) == 0 {
		return "", nil
	}

	return utils.NewSQLBuilder().
		Alter("TABLE").
		Name(table).
		Raw(strings.Join(changes.clauses, ", ")).
		String(), nil
}

// AddColumn adds a column with a raw type definition, e.g. "INT(8) NOT NULL".
func (t *TableChanges) AddColumn(name, definition string) {
	t.add(utils.NewSQLBuilder().Add("COLUMN").Name(name).Raw(definition).String())
}

// RemoveColumn drops a column.
func (t *TableChanges) RemoveColumn(name string) {
	t.add(utils.NewSQLBuilder().Drop("COLUMN").Name(name).String())
}

// ChangeColumn redefines a column in place.
func (t *TableChanges) ChangeColumn(name, definition string) {
	t.add(utils.NewSQLBuilder().Keyword("MODIFY", "COLUMN").Name(name).Raw(definition).String())
}

// RenameColumn renames a column.
func (t *TableChanges) RenameColumn(from, to string) {
	t.add(utils.NewSQLBuilder().Keyword("RENAME", "COLUMN").Name(from).Keyword("TO").Name(to).String())
}

// AddIndex adds an index on columns.
func (t *TableChanges) AddIndex(columns []string, opts IndexOptions) {
	if len(columns) == 0 {
		t.fail("an index needs at least one column")
		return
	}

	kind := "INDEX"
	switch {
	case opts.Unique:
		kind = "UNIQUE INDEX"
	case opts.Type != "":
		kind = strings.ToUpper(opts.Type) + " INDEX"
	}

	name := opts.Name
	if name == "" {
		name = IndexName(t.table, columns)
	}

	t.add(utils.NewSQLBuilder().
		Add(kind).
		Name(name).
		Using(opts.Using).
		Columns(columns...).
		Comment(opts.Comment).
		String())
}

// RemoveIndex drops the index named by opts.Name, or the default index on columns.
func (t *TableChanges) RemoveIndex(columns []string, opts IndexOptions) {
	name := opts.Name
	if name == "" {
		if len(columns) == 0 {
			t.fail("removing an index needs a name or columns")
			return
		}
		name = IndexName(t.table, columns)
	}

	t.add(utils.NewSQLBuilder().Drop("INDEX").Name(name).String())
}

// AddForeignKey adds a foreign key referencing to.
func (t *TableChanges) AddForeignKey(to string, opts ForeignKeyOptions) {
	column := opts.Column
	if column == "" {
		column = strings.TrimSuffix(to, "s") + "_id"
	}

	pk := opts.PrimaryKey
	if pk == "" {
		pk = "id"
	}

	name := opts.Name
	if name == "" {
		name = "fk_" + t.table + "_" + column
	}

	onDelete, err := referentialAction(opts.OnDelete)
	if err != nil {
		t.fail("%v", err)
		return
	}

	onUpdate, err := referentialAction(opts.OnUpdate)
	if err != nil {
		t.fail("%v", err)
		return
	}

	b := utils.NewSQLBuilder().
		Add("CONSTRAINT").
		Name(name).
		Keyword("FOREIGN", "KEY").
		Columns(column).
		Keyword("REFERENCES").
		Name(to).
		Columns(pk)

	if onDelete != "" {
		b.Keyword("ON", "DELETE", onDelete)
	}
	if onUpdate != "" {
		b.Keyword("ON", "UPDATE", onUpdate)
	}

	t.add(b.String())
}

// RemoveForeignKey drops a foreign key by the name it was created with.
func (t *TableChanges) RemoveForeignKey(name string) {
	t.add(utils.NewSQLBuilder().Drop("FOREIGN KEY").Name(ForeignKeyName(name)).String())
}

// Raw adds an alteration clause as written.
func (t *TableChanges) Raw(clause string) {
	if clause = strings.TrimSpace(clause); clause != "" {
		t.add(clause)
	}
}

func (t *TableChanges) add(clause string) {
	t.clauses = append(t.clauses, clause)
}

func (t *TableChanges) fail(format string, args ...any) {
	if t.err == nil {
		t.err = ptosc.NewConfigurationError(format, args...)
	}
}

func referentialAction(action string) (string, error) {
	switch strings.ToLower(action) {
	case "":
		return "", nil
	case "cascade":
		return "CASCADE", nil
	case "nullify":
		return "SET NULL", nil
	case "restrict":
		return "RESTRICT", nil
	default:
		return "", ptosc.NewConfigurationError("unsupported referential action %q", action)
	}
}
