package adapter

import (
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/logger"
	"github.com/pseudomuto/departure/pkg/metrics"
	"github.com/pseudomuto/departure/pkg/parser"
	"github.com/pseudomuto/departure/pkg/ptosc"
)

// Plan describes how a statement would be dispatched without running it.
type Plan struct {
	Statement *parser.Statement

	// Route is metrics.RouteOnline or metrics.RouteDirect.
	Route string

	// Command is the sanitized pt-osc command line for online statements.
	Command string
}

// BuildPlan classifies sql and, for schema changes, renders the pt-osc invocation that
// would apply it. Nothing connects to the database.
func BuildPlan(cfg *config.Config, sql string, online bool) (*Plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stmt := parser.Classify(sql)
	plan := &Plan{Statement: stmt, Route: metrics.RouteDirect}
	if !online || !stmt.IsSchemaChange() {
		return plan, nil
	}

	details, err := ptosc.NewConnectionDetails(cfg.ConnectionConfig())
	if err != nil {
		return nil, err
	}

	gen, err := ptosc.NewGenerator(cfg.GeneratorOptions())
	if err != nil {
		return nil, err
	}

	spec, err := gen.Build(details, stmt)
	if err != nil {
		return nil, err
	}

	log := logger.Build(logger.Options{
		Sanitizers: []logger.Sanitizer{logger.NewPasswordSanitizer(details.Password())},
	})

	plan.Route = metrics.RouteOnline
	plan.Command = log.Sanitize(spec.String())
	return plan, nil
}
