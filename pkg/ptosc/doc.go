// Package ptosc runs pt-online-schema-change (pt-osc) for a single classified ALTER
// statement.
//
// The package is split along the life of one invocation:
//   - ConnectionDetails validates connection parameters and applies PERCONA_DB_* fallbacks
//   - Generator builds the CommandSpec: resolved options, DSN descriptor and --alter clause
//   - Command starts the process and exposes a Process whose output is streamed line by
//     line, classified, and sanitized before it is handed out
//   - ExecutionResult summarizes the run and maps failures onto the error taxonomy
//     (ConfigurationError, LaunchError, ExecutionError, TimeoutError)
//
// Basic usage:
//
//	details, err := ptosc.NewConnectionDetails(ptosc.ConnectionConfig{Host: "db", Database: "blog"})
//	if err != nil {
//		return err
//	}
//
//	gen, err := ptosc.NewGenerator(ptosc.GeneratorOptions{GlobalArgs: "--chunk-time=1"})
//	if err != nil {
//		return err
//	}
//
//	spec, err := gen.Build(details, parser.Classify("ALTER TABLE comments ADD COLUMN c INT"))
//	if err != nil {
//		return err
//	}
//
//	proc, err := ptosc.NewCommand(spec, ptosc.CommandOptions{StallTimeout: time.Hour}).Start(ctx)
//	if err != nil {
//		return err
//	}
//
//	for line := range proc.Lines() {
//		fmt.Println(line.Sanitized)
//	}
//
//	return proc.Wait().Err(spec.Path)
package ptosc
