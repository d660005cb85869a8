package docker

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

const (
	// DefaultMySQLPort is the port MySQL listens on inside the container.
	DefaultMySQLPort = 3306

	// DefaultVersion is the MySQL image tag used when none is given.
	DefaultVersion = "8.0"

	// DefaultPassword is the root password of containers started by this package.
	DefaultPassword = "departure"

	// DefaultDatabase is created on startup when no database is given.
	DefaultDatabase = "departure"
)

type (
	// DockerOptions configures a MySQL container.
	DockerOptions struct {
		// Version is the mysql image tag (default: 8.0)
		Version string

		// Database is created on startup (default: departure)
		Database string

		// Password is the root password (default: departure)
		Password string

		// ConfigDir is mounted at /etc/mysql/conf.d. Relative paths are made absolute.
		ConfigDir string
	}

	// MySQLContainer is a throwaway MySQL server for tests.
	MySQLContainer struct {
		options   DockerOptions
		container *mysql.MySQLContainer
	}
)

// NewMySQL returns a stopped container with opts. Empty fields take their defaults.
func NewMySQL(opts DockerOptions) *MySQLContainer {
	if opts.Version == "" {
		opts.Version = DefaultVersion
	}
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.Password == "" {
		opts.Password = DefaultPassword
	}

	return &MySQLContainer{options: opts}
}

// Start runs the container and waits for MySQL to accept connections.
func (c *MySQLContainer) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	customizers := []testcontainers.ContainerCustomizer{
		mysql.WithDatabase(c.options.Database),
		mysql.WithUsername("root"),
		mysql.WithPassword(c.options.Password),
	}

	if c.options.ConfigDir != "" {
		absConfigDir, err := filepath.Abs(c.options.ConfigDir)
		if err != nil {
			return errors.Wrapf(err, "failed to get absolute path for ConfigDir: %s", c.options.ConfigDir)
		}

		customizers = append(
			customizers,
			testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
				hostConfig.Mounts = []mount.Mount{
					{
						Type:     mount.TypeBind,
						Source:   absConfigDir,
						Target:   "/etc/mysql/conf.d",
						ReadOnly: true,
					},
				}
			}),
		)
	}

	ctr, err := mysql.Run(ctx, "mysql:"+c.options.Version, customizers...)
	if err != nil {
		return errors.Wrap(err, "failed to start MySQL container")
	}

	c.container = ctr
	return nil
}

// Stop terminates the container. Stopping a container that is not running is a no-op.
func (c *MySQLContainer) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil
	}

	err := c.container.Terminate(ctx)
	c.container = nil

	if err != nil {
		return errors.Wrap(err, "failed to stop MySQL container")
	}

	return nil
}

// Connection returns connection settings for the running container.
func (c *MySQLContainer) Connection(ctx context.Context) (config.Connection, error) {
	if c.container == nil {
		return config.Connection{}, errors.New("container is not running")
	}

	host, err := c.container.Host(ctx)
	if err != nil {
		return config.Connection{}, errors.Wrap(err, "failed to get container host")
	}

	port, err := c.container.MappedPort(ctx, "3306/tcp")
	if err != nil {
		return config.Connection{}, errors.Wrap(err, "failed to get container port")
	}

	portNum, err := strconv.Atoi(port.Port())
	if err != nil {
		return config.Connection{}, errors.Wrapf(err, "invalid mapped port: %s", port.Port())
	}

	return config.Connection{
		OriginalAdapter: "mysql2",
		Host:            host,
		Port:            portNum,
		Username:        "root",
		Password:        c.options.Password,
		Database:        c.options.Database,
	}, nil
}

// GetDSN returns a go-sql-driver DSN for the running container.
func (c *MySQLContainer) GetDSN(ctx context.Context) (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}

	dsn, err := c.container.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		return "", errors.Wrap(err, "failed to get connection string")
	}

	return dsn, nil
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (c *MySQLContainer) IsRunning() bool {
	return c.container != nil
}
