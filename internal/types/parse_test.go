package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funvibe/scriptlang/internal/token"
)

type fakeCursor struct {
	toks []token.Token
	pos  int
}

func (f *fakeCursor) Peek(n int) token.Token {
	i := f.pos + n
	if i >= len(f.toks) {
		return token.Token{Kind: token.EOF}
	}
	return f.toks[i]
}

func (f *fakeCursor) Advance() token.Token {
	t := f.Peek(0)
	f.pos++
	return t
}

func toks(kinds ...interface{}) []token.Token {
	out := make([]token.Token, len(kinds))
	for i, k := range kinds {
		switch v := k.(type) {
		case token.Kind:
			out[i] = token.Token{Kind: v}
		case string:
			out[i] = token.Token{Kind: token.IDENT, Lexeme: v}
		}
	}
	return out
}

func TestParseTypeExprPrimitive(t *testing.T) {
	c := &fakeCursor{toks: toks(token.I32)}
	ty, err := ParseTypeExpr(c, nil)
	require.NoError(t, err)
	require.Same(t, I32Type(), ty)
}

func TestParseTypeExprArrayGeneric(t *testing.T) {
	c := &fakeCursor{toks: toks("Array", token.LESS, token.STR, token.GREATER)}
	ty, err := ParseTypeExpr(c, nil)
	require.NoError(t, err)
	require.Equal(t, ARRAY, ty.Kind)
	require.Same(t, StrType(), ty.ElementType)
}

func TestParseTypeExprDictGeneric(t *testing.T) {
	c := &fakeCursor{toks: toks("Dict", token.LESS, token.STR, token.COMMA, token.I64, token.GREATER)}
	ty, err := ParseTypeExpr(c, nil)
	require.NoError(t, err)
	require.Equal(t, DICT, ty.Kind)
	require.Same(t, StrType(), ty.KeyType)
	require.Same(t, I64Type(), ty.ValueType)
}

func TestParseTypeExprClassLookup(t *testing.T) {
	info := &ClassInfo{Name: "Shape"}
	lookup := func(name string) (*ClassInfo, bool) {
		if name == "Shape" {
			return info, true
		}
		return nil, false
	}
	c := &fakeCursor{toks: toks("Shape")}
	ty, err := ParseTypeExpr(c, lookup)
	require.NoError(t, err)
	require.Equal(t, CLASS, ty.Kind)
	require.Same(t, info, ty.ClassRef)
}

func TestParseTypeExprRejectsNonType(t *testing.T) {
	c := &fakeCursor{toks: toks(token.SEMICOLON)}
	_, err := ParseTypeExpr(c, nil)
	require.Error(t, err)
}
