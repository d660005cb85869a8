package migrator

import (
	"bufio"
	"io"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/parser"
)

const (
	// DirectiveNone leaves the online schema change setting at its configured default.
	DirectiveNone Directive = iota

	// DirectiveEnable routes the migration's schema changes through pt-osc.
	DirectiveEnable

	// DirectiveDisable runs every statement of the migration directly.
	DirectiveDisable
)

var (
	filenamePattern  = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_]+)\.sql$`)
	sectionPattern   = regexp.MustCompile(`(?i)^\s*--\s*\+(up|down)\s*$`)
	directivePattern = regexp.MustCompile(`(?i)^\s*--\s*departure:(enable|disable)\s*$`)
)

type (
	// Directive is the per-migration online schema change override.
	Directive int

	// Migration is a single migration file.
	//
	// Example migration content:
	//
	//	-- +up
	//	ALTER TABLE comments ADD COLUMN some_id_field INT(8);
	//	-- +down
	//	ALTER TABLE comments DROP COLUMN some_id_field;
	Migration struct {
		// Version orders migrations and identifies their revision, e.g. 20240101120000.
		Version string

		// Name is the descriptive part of the filename.
		Name string

		// Up holds the statements applied by migrate.
		Up []string

		// Down holds the statements applied by rollback.
		Down []string

		// Directive is the departure:enable / departure:disable override, if any.
		Directive Directive
	}

	// MigrationDir is the ordered set of migrations loaded from a directory.
	MigrationDir struct {
		// Migrations are sorted by filename, which sorts them by version.
		Migrations []*Migration
	}
)

func (d Directive) String() string {
	switch d {
	case DirectiveEnable:
		return "enable"
	case DirectiveDisable:
		return "disable"
	default:
		return "default"
	}
}

// LoadMigrationDir loads all .sql files from dir in lexical order. Other files are ignored.
//
// Example usage:
//
//	migDir, err := migrator.LoadMigrationDir(os.DirFS("./db/migrations"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	for _, mig := range migDir.Migrations {
//		fmt.Printf("Migration %s has %d statements\n", mig.ID(), len(mig.Up))
//	}
//
// Returns an error if the directory cannot be read, a filename does not follow the
// <version>_<name>.sql convention, two files share a version or a file is malformed.
func LoadMigrationDir(dir fs.FS) (*MigrationDir, error) {
	mig := &MigrationDir{}
	seen := make(map[string]string)

	// NB: WalkDir always walks in lexical order.
	if err := fs.WalkDir(dir, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		m := filenamePattern.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			return errors.Errorf("invalid migration filename %s, expected <version>_<name>.sql", path)
		}

		if other, ok := seen[m[1]]; ok {
			return errors.Errorf("duplicate migration version %s: %s and %s", m[1], other, path)
		}
		seen[m[1]] = path

		f, err := dir.Open(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open: %s", path)
		}
		defer func() { _ = f.Close() }()

		migration, err := LoadMigration(m[1], m[2], f)
		if err != nil {
			return errors.Wrapf(err, "failed to load migration: %s", path)
		}

		mig.Migrations = append(mig.Migrations, migration)
		return nil
	}); err != nil {
		return nil, err
	}

	return mig, nil
}

// LoadMigration parses migration content read from r.
//
// Example usage:
//
//	sql := `
//	-- +up
//	ALTER TABLE comments ADD COLUMN some_id_field INT(8);
//	-- +down
//	ALTER TABLE comments DROP COLUMN some_id_field;
//	`
//	migration, err := migrator.LoadMigration("20240101120000", "add_some_id", strings.NewReader(sql))
func LoadMigration(version, name string, r io.Reader) (*Migration, error) {
	var (
		up, down strings.Builder
		current  = &up
		seenUp   bool
		seenDown bool
	)

	migration := &Migration{Version: version, Name: name}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			switch strings.ToLower(m[1]) {
			case "up":
				if seenUp || seenDown {
					return nil, errors.New("-- +up must appear once, before -- +down")
				}
				seenUp = true
				current = &up
			case "down":
				if seenDown {
					return nil, errors.New("-- +down must appear once")
				}
				seenDown = true
				current = &down
			}
			continue
		}

		if m := directivePattern.FindStringSubmatch(line); m != nil {
			directive := DirectiveEnable
			if strings.EqualFold(m[1], "disable") {
				directive = DirectiveDisable
			}

			if migration.Directive != DirectiveNone && migration.Directive != directive {
				return nil, errors.New("migration cannot both enable and disable departure")
			}
			migration.Directive = directive
			continue
		}

		current.WriteString(line)
		current.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read: %s_%s.sql", version, name)
	}

	migration.Up = parser.Split(up.String())
	migration.Down = parser.Split(down.String())

	return migration, nil
}

// ID returns the migration's filename without extension.
func (m *Migration) ID() string {
	return m.Version + "_" + m.Name
}

// Online reports whether schema changes in this migration go through pt-osc.
func (m *Migration) Online(enabledByDefault bool) bool {
	switch m.Directive {
	case DirectiveEnable:
		return true
	case DirectiveDisable:
		return false
	default:
		return enabledByDefault
	}
}

// Reversible reports whether the migration has a down section.
func (m *Migration) Reversible() bool {
	return len(m.Down) > 0
}

// Find returns the migration with the given version, or nil.
func (d *MigrationDir) Find(version string) *Migration {
	for _, m := range d.Migrations {
		if m.Version == version {
			return m
		}
	}

	return nil
}
