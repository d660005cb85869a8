package ptosc

import (
	"os"

	"github.com/pseudomuto/departure/pkg/consts"
)

// Environment variables that fill in connection parameters the configuration omits.
const (
	EnvHost     = "PERCONA_DB_HOST"
	EnvUser     = "PERCONA_DB_USER"
	EnvPassword = "PERCONA_DB_PASSWORD"
	EnvDatabase = "PERCONA_DB_NAME"
)

type (
	// ConnectionConfig holds the raw connection parameters as they appear in the
	// connection configuration.
	ConnectionConfig struct {
		Host     string
		Port     int
		Socket   string
		Username string
		Password string
		Database string
	}

	// ConnectionDetails is the validated, immutable set of connection parameters shared by
	// the pt-osc command generator, the password sanitizer and the driver passthrough for
	// the lifetime of one adapter connection.
	//
	// Database and username are always present. When a socket is configured it replaces
	// host and port.
	ConnectionDetails struct {
		host     string
		port     int
		socket   string
		username string
		password string
		database string
	}
)

// NewConnectionDetails validates cfg and returns the resulting ConnectionDetails.
//
// Empty fields fall back to PERCONA_DB_HOST, PERCONA_DB_USER, PERCONA_DB_PASSWORD and
// PERCONA_DB_NAME. A missing username defaults to root, a missing host to localhost and a
// missing port to 3306. A ConfigurationError is returned when no database is known or the
// port is out of range.
//
// Example:
//
//	details, err := ptosc.NewConnectionDetails(ptosc.ConnectionConfig{
//		Socket:   "/var/run/mysqld/mysqld.sock",
//		Username: "deploy",
//		Database: "blog",
//	})
func NewConnectionDetails(cfg ConnectionConfig) (*ConnectionDetails, error) {
	d := &ConnectionDetails{
		host:     fallback(cfg.Host, EnvHost),
		port:     cfg.Port,
		socket:   cfg.Socket,
		username: fallback(cfg.Username, EnvUser),
		password: fallback(cfg.Password, EnvPassword),
		database: fallback(cfg.Database, EnvDatabase),
	}

	if d.database == "" {
		return nil, NewConfigurationError("database is required (set connection.database or %s)", EnvDatabase)
	}

	if d.username == "" {
		d.username = consts.DefaultUsername
	}

	if d.port == 0 {
		d.port = consts.DefaultPort
	}

	if d.port < 0 || d.port > 65535 {
		return nil, NewConfigurationError("invalid port %d", d.port)
	}

	if d.host == "" && d.socket == "" {
		d.host = "localhost"
	}

	return d, nil
}

func (d *ConnectionDetails) Host() string     { return d.host }
func (d *ConnectionDetails) Port() int        { return d.port }
func (d *ConnectionDetails) Socket() string   { return d.socket }
func (d *ConnectionDetails) Username() string { return d.username }
func (d *ConnectionDetails) Password() string { return d.password }
func (d *ConnectionDetails) Database() string { return d.database }

// UsesSocket reports whether connections go through a unix socket instead of TCP.
func (d *ConnectionDetails) UsesSocket() bool {
	return d.socket != ""
}

func fallback(value, env string) string {
	if value != "" {
		return value
	}

	return os.Getenv(env)
}
