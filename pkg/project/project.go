package project

import (
	"bytes"
	_ "embed"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/consts"
)

// VersionLayout formats the timestamp used as a migration version.
const VersionLayout = "20060102150405"

var (
	//go:embed embed/departure.yaml
	defaultConfig string

	//go:embed embed/migration.sql
	defaultMigration string

	configTemplate    = template.Must(template.New("config").Parse(defaultConfig))
	migrationTemplate = template.Must(template.New("migration").Parse(defaultMigration))

	nonWord = regexp.MustCompile(`[^a-z0-9]+`)
)

type (
	// InitOptions contains options for project initialization. Empty fields take defaults.
	InitOptions struct {
		// OriginalAdapter is the driver variant for plain statements (default: mysql2)
		OriginalAdapter string

		// Host is the MySQL host (default: 127.0.0.1)
		Host string

		// Database is the schema migrations run against (default: the directory name)
		Database string
	}

	// Project is a directory holding a departure config file and its migrations.
	Project struct {
		root string
	}
)

// New creates a Project rooted at path.
//
// Example:
//
//	proj := project.New(".")
//	if err := proj.Initialize(project.InitOptions{Database: "blog"}); err != nil {
//		log.Fatal(err)
//	}
//
//	path, err := proj.NewMigration("add some_id to comments", time.Now())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Println(path) // db/migrations/20250101120000_add_some_id_to_comments.sql
func New(path string) *Project {
	return &Project{root: path}
}

// ConfigPath returns the path of the project's config file.
func (p *Project) ConfigPath() string {
	return filepath.Join(p.root, consts.DefaultConfigFile)
}

// MigrationsDir returns the default migrations directory of the project.
func (p *Project) MigrationsDir() string {
	return filepath.Join(p.root, consts.DefaultMigrationsDir)
}

// Initialize creates departure.yaml and db/migrations. It is idempotent: existing files
// and directories are left untouched.
func (p *Project) Initialize(options InitOptions) error {
	if err := p.ensureDirectory(); err != nil {
		return err
	}

	if err := os.MkdirAll(p.MigrationsDir(), consts.ModeDir); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", p.MigrationsDir())
	}

	if _, err := os.Stat(p.ConfigPath()); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return errors.Wrapf(err, "failed to stat %s", p.ConfigPath())
	}

	if options.OriginalAdapter == "" {
		options.OriginalAdapter = "mysql2"
	}
	if options.Host == "" {
		options.Host = "127.0.0.1"
	}
	if options.Database == "" {
		abs, err := filepath.Abs(p.root)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", p.root)
		}
		options.Database = slug(filepath.Base(abs))
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, options); err != nil {
		return errors.Wrap(err, "failed to render config")
	}

	if err := os.WriteFile(p.ConfigPath(), buf.Bytes(), consts.ModeFile); err != nil {
		return errors.Wrapf(err, "failed to write file %s", p.ConfigPath())
	}

	return nil
}

// NewMigration writes an empty migration named name into dir, versioned by at, and
// returns its path. An empty dir means the project's migrations directory.
func (p *Project) NewMigration(dir, name string, at time.Time) (string, error) {
	id := slug(name)
	if id == "" {
		return "", errors.Errorf("invalid migration name %q", name)
	}

	if dir == "" {
		dir = p.MigrationsDir()
	}

	if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
		return "", errors.Wrapf(err, "failed to create directory %s", dir)
	}

	path := filepath.Join(dir, at.UTC().Format(VersionLayout)+"_"+id+".sql")
	if _, err := os.Stat(path); err == nil {
		return "", errors.Errorf("migration already exists: %s", path)
	}

	var buf bytes.Buffer
	if err := migrationTemplate.Execute(&buf, struct{ Name string }{Name: name}); err != nil {
		return "", errors.Wrap(err, "failed to render migration")
	}

	if err := os.WriteFile(path, buf.Bytes(), consts.ModeFile); err != nil {
		return "", errors.Wrapf(err, "failed to write file %s", path)
	}

	return path, nil
}

func (p *Project) ensureDirectory() error {
	dir, err := os.Stat(p.root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.root)
	}

	if !dir.IsDir() {
		return errors.Errorf("%s is not a directory", p.root)
	}

	return nil
}

// slug turns a free-form name into the identifier used in file names.
func slug(name string) string {
	return strings.Trim(nonWord.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
