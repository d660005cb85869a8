package consts

import (
	"os"
	"time"
)

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ModeExecutable is the file mode used for generated executables (mostly fake tools in tests)
	ModeExecutable = os.FileMode(0o755)

	// AdapterName is the name the percona adapter is looked up by in connection configs
	AdapterName = "percona"

	// DefaultBinary is the pt-online-schema-change executable looked up on the PATH
	DefaultBinary = "pt-online-schema-change"

	// DefaultConfigFile is the configuration file loaded when --config is not given
	DefaultConfigFile = "departure.yaml"

	// DefaultMigrationsDir is where migration files are loaded from
	DefaultMigrationsDir = "db/migrations"

	// DefaultUsername is used when the connection config omits a username
	DefaultUsername = "root"

	// DefaultPort is the standard MySQL port
	DefaultPort = 3306

	// DefaultStallTimeout is how long pt-osc may stay silent before it is considered hung
	DefaultStallTimeout = 30 * time.Minute

	// DefaultTerminateGrace is how long pt-osc gets to clean up after an interrupt
	// before it is killed
	DefaultTerminateGrace = 30 * time.Second

	// RevisionsTable stores applied migration versions
	RevisionsTable = "schema_migrations"
)
