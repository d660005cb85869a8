package ptosc

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"
)

// EnvArgs holds pt-osc options that override both the defaults and the configured
// global arguments.
const EnvArgs = "PERCONA_ARGS"

var (
	// DefaultOptions are always passed to pt-osc unless overridden by name.
	DefaultOptions = []Option{
		{Name: "--execute"},
		{Name: "--statistics"},
		{Name: "--alter-foreign-keys-method", Value: "auto"},
		{Name: "--no-check-alter"},
	}

	argsLexer = lexer.MustSimple([]lexer.SimpleRule{
		{Name: "DoubleQuoted", Pattern: `"(\\.|[^"\\])*"`},
		{Name: "SingleQuoted", Pattern: `'[^']*'`},
		{Name: "Word", Pattern: `[^\s"']+`},
		{Name: "Whitespace", Pattern: `\s+`},
	})

	argsSymbols = argsLexer.Symbols()
)

// Option is a single pt-osc command line option such as --chunk-time=1 or --execute.
type Option struct {
	// Name includes the leading dashes.
	Name string

	// Value is empty for flags.
	Value string
}

// String renders the option the way pt-osc expects it on the command line.
func (o Option) String() string {
	if o.Value == "" {
		return o.Name
	}

	return o.Name + "=" + o.Value
}

// ParseOptions splits a user supplied argument string into options. Arguments are
// separated by whitespace and may be single or double quoted. A value may be attached
// with = or given as the following argument.
//
// Example:
//
//	opts, _ := ptosc.ParseOptions(`--chunk-time=1 --max-load "Threads_running=50" --dry-run`)
//	// [--chunk-time=1 --max-load=Threads_running=50 --dry-run]
func ParseOptions(args string) ([]Option, error) {
	words, err := splitArgs(args)
	if err != nil {
		return nil, err
	}

	var opts []Option
	for i := 0; i < len(words); i++ {
		word := words[i]
		if !strings.HasPrefix(word, "-") {
			return nil, NewConfigurationError("unexpected pt-osc argument %q, options must start with -", word)
		}

		if name, value, ok := strings.Cut(word, "="); ok {
			opts = append(opts, Option{Name: name, Value: value})
			continue
		}

		opt := Option{Name: word}
		if i+1 < len(words) && !strings.HasPrefix(words[i+1], "-") {
			opt.Value = words[i+1]
			i++
		}
		opts = append(opts, opt)
	}

	return opts, nil
}

// MergeOptions combines option layers. Options in later layers replace options with the
// same name from earlier layers in place; new names are appended in order.
func MergeOptions(layers ...[]Option) []Option {
	var merged []Option
	index := make(map[string]int)

	for _, layer := range layers {
		for _, opt := range layer {
			if i, ok := index[opt.Name]; ok {
				merged[i] = opt
				continue
			}

			index[opt.Name] = len(merged)
			merged = append(merged, opt)
		}
	}

	return merged
}

// splitArgs tokenizes a shell-like argument string. Adjacent tokens that are not
// separated by whitespace form a single argument, so --max-load="a b" stays together.
func splitArgs(args string) ([]string, error) {
	lex, err := argsLexer.LexString("", args)
	if err != nil {
		return nil, errors.Wrap(err, "failed to tokenize pt-osc arguments")
	}

	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil, NewConfigurationError("invalid pt-osc arguments %q: %v", args, err)
	}

	var (
		words   []string
		current strings.Builder
		pending bool
	)

	flush := func() {
		if pending {
			words = append(words, current.String())
			current.Reset()
			pending = false
		}
	}

	for _, t := range tokens {
		if t.EOF() {
			break
		}

		switch t.Type {
		case argsSymbols["Whitespace"]:
			flush()
		case argsSymbols["DoubleQuoted"]:
			current.WriteString(unescapeDoubleQuoted(t.Value[1 : len(t.Value)-1]))
			pending = true
		case argsSymbols["SingleQuoted"]:
			current.WriteString(t.Value[1 : len(t.Value)-1])
			pending = true
		default:
			current.WriteString(t.Value)
			pending = true
		}
	}
	flush()

	return words, nil
}

func unescapeDoubleQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}

	return b.String()
}
