package ptosc

import (
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/pseudomuto/departure/pkg/consts"
	"github.com/pseudomuto/departure/pkg/parser"
)

type (
	// CommandSpec is a fully resolved pt-osc invocation. It is immutable once built and is
	// used for exactly one run.
	CommandSpec struct {
		// Path is the executable, either a bare name looked up on PATH or a path.
		Path string

		// Args are passed to the executable as separate argv entries, so the alteration
		// clause never goes through a shell.
		Args []string

		// Env holds KEY=VALUE pairs added to the inherited environment, sorted by key.
		Env []string
	}

	// GeneratorOptions configures a Generator.
	GeneratorOptions struct {
		// Binary is the pt-osc executable. Defaults to pt-online-schema-change.
		Binary string

		// GlobalArgs are extra pt-osc options from the configuration file. They override
		// the defaults and are overridden by PERCONA_ARGS.
		GlobalArgs string

		// Env is added to the environment of every pt-osc process.
		Env map[string]string
	}

	// Generator builds pt-osc command lines. It is safe for concurrent use and Build is a
	// pure function of its inputs.
	Generator struct {
		binary  string
		options []Option
		env     []string
	}
)

// NewGenerator resolves the option layers (defaults, global args, PERCONA_ARGS) once and
// returns a Generator. Invalid user options are reported as a ConfigurationError.
func NewGenerator(opts GeneratorOptions) (*Generator, error) {
	global, err := ParseOptions(opts.GlobalArgs)
	if err != nil {
		return nil, err
	}

	fromEnv, err := ParseOptions(os.Getenv(EnvArgs))
	if err != nil {
		return nil, err
	}

	binary := opts.Binary
	if binary == "" {
		binary = consts.DefaultBinary
	}

	env := make([]string, 0, len(opts.Env))
	for _, key := range slices.Sorted(maps.Keys(opts.Env)) {
		env = append(env, key+"="+opts.Env[key])
	}

	return &Generator{
		binary:  binary,
		options: MergeOptions(DefaultOptions, global, fromEnv),
		env:     env,
	}, nil
}

// Options returns the resolved option list.
func (g *Generator) Options() []Option {
	return slices.Clone(g.options)
}

// Build returns the command spec that applies stmt with pt-osc.
//
// The argument list is the resolved options, the DSN descriptor
// (h=,P=,u=,p=,D=,t= or S= in place of h and P) and --alter followed by the clause exactly
// as the statement carried it. D is the database qualifier of the statement when present,
// otherwise the connection database.
//
// Example:
//
//	spec, _ := gen.Build(details, parser.Classify("ALTER TABLE comments ADD COLUMN some_id_field INT(8)"))
//	fmt.Println(spec)
//	// pt-online-schema-change --execute --statistics --alter-foreign-keys-method=auto
//	//   --no-check-alter S=/tmp/mysql.sock,u=root,D=blog,t=comments
//	//   --alter "ADD COLUMN some_id_field INT(8)"
func (g *Generator) Build(details *ConnectionDetails, stmt *parser.Statement) (*CommandSpec, error) {
	if details == nil {
		return nil, NewConfigurationError("connection details are required")
	}

	if stmt == nil || !stmt.IsSchemaChange() {
		return nil, NewConfigurationError("statement is not an online schema change")
	}

	args := make([]string, 0, len(g.options)+3)
	for _, opt := range g.options {
		args = append(args, opt.String())
	}
	args = append(args, Descriptor(details, stmt.Schema, stmt.Table), "--alter", stmt.Clause)

	return &CommandSpec{
		Path: g.binary,
		Args: args,
		Env:  slices.Clone(g.env),
	}, nil
}

// Descriptor renders the pt-osc DSN for table. An empty schema means the connection
// database.
func Descriptor(details *ConnectionDetails, schema, table string) string {
	parts := make([]string, 0, 6)
	if details.UsesSocket() {
		parts = append(parts, "S="+details.Socket())
	} else {
		parts = append(parts, "h="+details.Host(), "P="+strconv.Itoa(details.Port()))
	}

	parts = append(parts, "u="+details.Username())
	if details.Password() != "" {
		parts = append(parts, "p="+details.Password())
	}

	if schema == "" {
		schema = details.Database()
	}
	parts = append(parts, "D="+schema, "t="+table)

	return strings.Join(parts, ",")
}

// String renders the spec as a shell command line for display. Arguments containing
// whitespace or shell metacharacters are double quoted. The result contains the password;
// sanitize it before logging.
func (s *CommandSpec) String() string {
	words := make([]string, 0, len(s.Args)+1)
	words = append(words, shellQuote(s.Path))
	for _, arg := range s.Args {
		words = append(words, shellQuote(arg))
	}

	return strings.Join(words, " ")
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\"'\\$`;&|<>()*?!#~") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')

	return b.String()
}
