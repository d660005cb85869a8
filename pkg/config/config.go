package config

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/ptosc"
	"gopkg.in/yaml.v3"
)

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type (
	// Connection holds the database connection settings.
	//
	// Adapter must be "percona" (or empty). OriginalAdapter names the underlying driver
	// variant that handles every statement pt-osc does not, and is required.
	Connection struct {
		Adapter         string `yaml:"adapter,omitempty"`
		OriginalAdapter string `yaml:"original_adapter,omitempty"`
		Host            string `yaml:"host,omitempty"`
		Port            int    `yaml:"port,omitempty"`
		Socket          string `yaml:"socket,omitempty"`
		Username        string `yaml:"username,omitempty"`
		Password        string `yaml:"password,omitempty"`
		Database        string `yaml:"database,omitempty"`
	}

	// Percona configures how pt-online-schema-change is invoked.
	Percona struct {
		// Binary is the pt-osc executable, looked up on PATH unless it contains a slash
		Binary string `yaml:"binary,omitempty"`

		// Args are extra pt-osc options applied to every run (PERCONA_ARGS overrides them)
		Args string `yaml:"args,omitempty"`

		// Env is added to pt-osc's environment
		Env map[string]string `yaml:"env,omitempty"`

		// StallTimeout is how long pt-osc may stay silent before it is terminated
		StallTimeout time.Duration `yaml:"stall_timeout,omitempty"`

		// TerminateGrace is how long pt-osc gets to clean up after an interrupt
		TerminateGrace time.Duration `yaml:"terminate_grace,omitempty"`

		// EnabledByDefault routes schema changes through pt-osc unless a migration opts out
		EnabledByDefault bool `yaml:"enabled_by_default"`

		// RedirectStderr keeps pt-osc's stderr off the console
		RedirectStderr bool `yaml:"redirect_stderr"`
	}

	// Log configures console output.
	Log struct {
		Verbose bool `yaml:"verbose"`
	}

	// Migrations configures where migration files live.
	Migrations struct {
		Dir string `yaml:"dir,omitempty"`
	}

	// Config represents the departure configuration file.
	Config struct {
		Connection Connection `yaml:"connection"`
		Percona    Percona    `yaml:"percona"`
		Log        Log        `yaml:"log"`
		Migrations Migrations `yaml:"migrations"`
	}
)

// Default returns the configuration used for any setting the file leaves out.
func Default() *Config {
	return &Config{
		Connection: Connection{
			Adapter: consts.AdapterName,
		},
		Percona: Percona{
			Binary:           consts.DefaultBinary,
			StallTimeout:     consts.DefaultStallTimeout,
			TerminateGrace:   consts.DefaultTerminateGrace,
			EnabledByDefault: true,
			RedirectStderr:   true,
		},
		Log: Log{
			Verbose: true,
		},
		Migrations: Migrations{
			Dir: consts.DefaultMigrationsDir,
		},
	}
}

// LoadConfig parses a configuration from the provided io.Reader.
//
// ${VAR} references are replaced with environment values before the YAML is decoded, so
// secrets can stay out of the file. Settings the document omits keep their defaults.
//
// Example:
//
//	yamlData := `
//	connection:
//	  original_adapter: mysql2
//	  host: db.internal
//	  username: deploy
//	  password: ${DB_PASSWORD}
//	  database: blog
//	percona:
//	  args: --chunk-time=1 --max-load Threads_running=50
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Println(cfg.Percona.StallTimeout) // 30m0s
func LoadConfig(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	expanded := envReference.ReplaceAllStringFunc(string(raw), func(ref string) string {
		return os.Getenv(envReference.FindStringSubmatch(ref)[1])
	})

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfigFile loads a configuration from the specified file path. A .env file next to
// it is loaded into the environment first; variables that are already set win.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("departure.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
func LoadConfigFile(path string) (*Config, error) {
	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if info, err := os.Stat(dotenv); err == nil && !info.IsDir() {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, errors.Wrapf(err, "failed to load %s", dotenv)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	return LoadConfig(f)
}

// Validate checks the settings that can be checked without touching the environment.
// Connection parameters are validated when the adapter is opened, after the PERCONA_DB_*
// fallbacks are applied.
func (c *Config) Validate() error {
	if c.Connection.Adapter != "" && c.Connection.Adapter != consts.AdapterName {
		return ptosc.NewConfigurationError("unknown adapter %q, expected %q", c.Connection.Adapter, consts.AdapterName)
	}

	if c.Percona.StallTimeout < 0 {
		return ptosc.NewConfigurationError("percona.stall_timeout must not be negative")
	}

	if c.Percona.TerminateGrace < 0 {
		return ptosc.NewConfigurationError("percona.terminate_grace must not be negative")
	}

	return nil
}

// ConnectionConfig returns the raw connection parameters for ptosc.NewConnectionDetails.
func (c *Config) ConnectionConfig() ptosc.ConnectionConfig {
	return ptosc.ConnectionConfig{
		Host:     c.Connection.Host,
		Port:     c.Connection.Port,
		Socket:   c.Connection.Socket,
		Username: c.Connection.Username,
		Password: c.Connection.Password,
		Database: c.Connection.Database,
	}
}

// GeneratorOptions returns the pt-osc command line settings.
func (c *Config) GeneratorOptions() ptosc.GeneratorOptions {
	return ptosc.GeneratorOptions{
		Binary:     c.Percona.Binary,
		GlobalArgs: c.Percona.Args,
		Env:        c.Percona.Env,
	}
}
