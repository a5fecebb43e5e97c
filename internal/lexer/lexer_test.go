package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/token"
)

func collect(src string) []token.Token {
	l := New(src)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestOperators(t *testing.T) {
	toks := collect("== != <= >= << >> += -= *= /= <<= >>= ++ -- ->")
	require.Equal(t, []token.Kind{
		token.EQUAL_EQUAL, token.BANG_EQUAL, token.LESS_EQUAL, token.GREATER_EQUAL,
		token.LESS_LESS, token.GREATER_GREATER, token.PLUS_EQUAL, token.MINUS_EQUAL,
		token.STAR_EQUAL, token.SLASH_EQUAL, token.LESS_LESS_EQUAL, token.GREATER_GREATER_EQUAL,
		token.PLUS_PLUS, token.MINUS_MINUS, token.ARROW, token.EOF,
	}, kinds(toks))
}

func TestKeywordsAndPrimitiveTypes(t *testing.T) {
	toks := collect("class function var if else while for return print import export from as this super true false null i8 u64 usize f32 bool str")
	want := []token.Kind{
		token.CLASS, token.FUNCTION, token.VAR, token.IF, token.ELSE, token.WHILE, token.FOR,
		token.RETURN, token.PRINT, token.IMPORT, token.EXPORT, token.FROM, token.AS, token.THIS,
		token.SUPER, token.TRUE, token.FALSE, token.NULL,
		token.I8, token.U64, token.USIZE, token.F32, token.BOOL, token.STR, token.EOF,
	}
	require.Equal(t, want, kinds(toks))
}

func TestNumbersAndStrings(t *testing.T) {
	toks := collect(`42 3.14 "hello world"`)
	require.Len(t, toks, 4)
	require.Equal(t, token.NUMBER, toks[0].Kind)
	require.Equal(t, "42", toks[0].Lexeme)
	require.Equal(t, token.NUMBER, toks[1].Kind)
	require.Equal(t, "3.14", toks[1].Lexeme)
	require.Equal(t, token.STRING, toks[2].Kind)
	require.Equal(t, "hello world", toks[2].Lexeme)
}

func TestLineTracking(t *testing.T) {
	toks := collect("var x = 1;\nvar y = 2;")
	require.Equal(t, 1, toks[0].Line)
	// find the token for 'y' on line 2
	var yLine int
	for _, tk := range toks {
		if tk.Lexeme == "y" {
			yLine = tk.Line
		}
	}
	require.Equal(t, 2, yLine)
}

func TestUnterminatedStringIsError(t *testing.T) {
	toks := collect(`"abc`)
	require.Equal(t, token.ERROR, toks[0].Kind)
}

func TestUnknownCharacterIsError(t *testing.T) {
	toks := collect("@")
	require.Equal(t, token.ERROR, toks[0].Kind)
	require.Contains(t, toks[0].Lexeme, "@")
}

func TestEOFSticks(t *testing.T) {
	l := New("")
	first := l.NextToken()
	second := l.NextToken()
	require.Equal(t, token.EOF, first.Kind)
	require.Equal(t, token.EOF, second.Kind)
}

func TestIdentifiers(t *testing.T) {
	toks := collect("foo_bar _baz qux2")
	require.Equal(t, []token.Kind{token.IDENT, token.IDENT, token.IDENT, token.EOF}, kinds(toks))
	require.Equal(t, "foo_bar", toks[0].Lexeme)
	require.Equal(t, "_baz", toks[1].Lexeme)
	require.Equal(t, "qux2", toks[2].Lexeme)
}
