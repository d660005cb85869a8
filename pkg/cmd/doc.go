// Package cmd provides the CLI commands for the departure tool.
//
// Commands are urfave/cli/v3 commands provided to the fx graph in the "commands"
// group and mounted under a single root command by Run.
//
// # Available Commands
//
//   - init: Create departure.yaml and the migrations directory
//   - new: Create an empty, timestamped migration file
//   - migrate: Apply pending migrations, routing ALTER TABLE through pt-online-schema-change
//   - rollback: Run the down section of the last applied migration
//   - status: Show completed, pending and failed migrations
//   - exec: Execute a single statement through the adapter
//   - plan: Show how a statement would be dispatched without running it
//   - dev up/down: Manage a local MySQL server with every migration applied
//
// # Global Options
//
//   - --config, -c: The departure config file (env DEPARTURE_CONFIG, default departure.yaml)
//   - --metrics-file: Write Prometheus metrics in text format after the command runs
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Example Usage
//
//	departure migrate                                                # Apply pending migrations
//	departure migrate --dry-run                                      # Preview the pt-osc runs
//	departure --config prod.yaml status --verbose                    # Detailed status
//	departure plan "ALTER TABLE comments ADD COLUMN some_id INT(8)"  # Show the pt-osc command
//	departure dev up                                                 # Start a local server
package cmd
