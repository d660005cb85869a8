package config

import (
	"os"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// Loader loads the configuration file named on the command line. The CLI parses its
// flags after the fx graph is built, so commands receive a Loader instead of a *Config.
type Loader func(path string) (*Config, error)

var Module = fx.Module("config", fx.Provide(
	// Missing files are reported with a friendly message since most commands cannot run
	// without a connection.
	func() Loader {
		return func(path string) (*Config, error) {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil, errors.Errorf("%s not found (use --config to point at a departure config file)", path)
			}

			return LoadConfigFile(path)
		}
	},
))
