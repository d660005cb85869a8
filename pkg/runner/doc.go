// Package runner orchestrates one online schema change.
//
// A Runner moves through Idle → Launching → Streaming → Succeeded | Failed while it builds
// the pt-osc command line, starts the process, forwards each sanitized output line to the
// logger as it arrives and turns the final ExecutionResult into an Outcome or an error from
// the ptosc taxonomy. Terminal states are final: a Runner executes exactly one statement,
// and a fresh Runner is created for every schema change.
//
// Example:
//
//	r := runner.New(runner.Config{
//		Generator: gen,
//		Details:   details,
//		Logger:    log,
//		Options:   runner.Options{StallTimeout: 30 * time.Minute},
//	})
//
//	outcome, err := r.Execute(ctx, parser.Classify("ALTER TABLE comments ADD COLUMN c INT"))
//	if err != nil {
//		return err
//	}
//	fmt.Println(outcome.RowsAffected)
package runner
