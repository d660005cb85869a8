package parser

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pseudomuto/departure/pkg/utils"
)

var (
	// mysqlLexer splits MySQL text into tokens. Only the statement header is ever
	// interpreted, so the rules focus on getting quoting and comments right. The final
	// Char rule makes lexing total: any byte no other rule accepts becomes a token.
	mysqlLexer = lexer.MustSimple([]lexer.SimpleRule{
		// "--" only starts a comment when followed by whitespace, a line break or the end
		// of input. a--1 is arithmetic.
		{Name: "Comment", Pattern: `--(?:[ \t\f\v][^\r\n]*|[\r\n]|$)|#[^\r\n]*`},
		{Name: "MultilineComment", Pattern: `/\*[^*]*\*+([^/*][^*]*\*+)*/`},
		{Name: "String", Pattern: `'([^'\\]|\\.|'')*'|"([^"\\]|\\.|"")*"`},
		{Name: "BacktickIdent", Pattern: "`([^`]|``)*`"},
		{Name: "Number", Pattern: `\d+(\.\d*)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_$][a-zA-Z0-9_$]*`},
		{Name: "Punct", Pattern: `[(),.;=+\-*/%<>\[\]!@:?{}|&^~]`},
		{Name: "Whitespace", Pattern: `\s+`},
		{Name: "Char", Pattern: `[^\s]`},
	})

	symbols = mysqlLexer.Symbols()

	commentType          = symbols["Comment"]
	multilineCommentType = symbols["MultilineComment"]
	whitespaceType       = symbols["Whitespace"]
	identType            = symbols["Ident"]
	backtickIdentType    = symbols["BacktickIdent"]
	punctType            = symbols["Punct"]
)

// token is a lexed, non-trivia piece of a statement along with its byte offset into
// the original text.
type token struct {
	typ    lexer.TokenType
	value  string
	offset int
}

// keyword reports whether the token is the given (case-insensitive) bare word.
func (t token) keyword(kw string) bool {
	return t.typ == identType && strings.EqualFold(t.value, kw)
}

// punct reports whether the token is the given punctuation character.
func (t token) punct(p string) bool {
	return t.typ == punctType && t.value == p
}

// identifier reports whether the token can name a table, column or index.
func (t token) identifier() bool {
	return t.typ == identType || t.typ == backtickIdentType
}

// name returns the identifier with backtick quoting removed.
func (t token) name() string {
	if t.typ != backtickIdentType {
		return t.value
	}

	return utils.StripBackticks(t.value)
}

// tokenize lexes sql and drops whitespace and comments. Lexing never fails thanks to
// the catch-all rule, but a failure is still treated as "no tokens" to keep callers total.
func tokenize(sql string) []token {
	lex, err := mysqlLexer.LexString("", sql)
	if err != nil {
		return nil
	}

	raw, err := lexer.ConsumeAll(lex)
	if err != nil {
		return nil
	}

	tokens := make([]token, 0, len(raw))
	for _, t := range raw {
		if t.EOF() {
			break
		}

		switch t.Type {
		case commentType, multilineCommentType, whitespaceType:
			continue
		}

		tokens = append(tokens, token{typ: t.Type, value: t.Value, offset: t.Pos.Offset})
	}

	return tokens
}
