// Package logger provides the sink pt-osc output is written to.
//
// A Logger is built once per adapter connection from a list of sanitizers and a verbose
// flag. Verbose loggers write to an io.Writer (stdout by default), one write per line so
// progress shows up while a long schema change runs. Non-verbose loggers discard output
// but still sanitize, so error diagnostics never carry secrets.
//
// Example:
//
//	log := logger.Build(logger.Options{
//		Sanitizers: []logger.Sanitizer{logger.NewPasswordSanitizer(details.Password())},
//		Verbose:    true,
//	})
//
//	log.Say("Running pt-online-schema-change", false)
//	// -- Running pt-online-schema-change
//	log.Say(cmdline, true)
//	//    -> pt-online-schema-change ... p=[filtered_password] ...
package logger
