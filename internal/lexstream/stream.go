// Package lexstream provides a small lookahead buffer over the Lexer.
// The TypeChecker and Compiler each walk the token stream with their own,
// independent grammar logic (per spec.md §4.3/§4.4); this package only
// supplies the shared mechanical concern of peeking more than one token
// ahead, which a single-pass hand-written recursive-descent/Pratt walk
// needs to disambiguate constructs like `T x = e;` from an expression
// statement starting with an identifier.
package lexstream

import (
	"github.com/funvibe/scriptlang/internal/lexer"
	"github.com/funvibe/scriptlang/internal/token"
)

// Stream buffers tokens from a Lexer so callers can peek ahead without
// consuming.
type Stream struct {
	lex  *lexer.Lexer
	buf  []token.Token
}

// New wraps src in a Stream.
func New(src string) *Stream {
	return &Stream{lex: lexer.New(src)}
}

func (s *Stream) fill(n int) {
	for len(s.buf) <= n {
		s.buf = append(s.buf, s.lex.NextToken())
	}
}

// Peek returns the token n positions ahead of the cursor without
// consuming it; Peek(0) is the next token Advance() would return.
func (s *Stream) Peek(n int) token.Token {
	s.fill(n)
	return s.buf[n]
}

// Advance consumes and returns the next token.
func (s *Stream) Advance() token.Token {
	s.fill(0)
	tok := s.buf[0]
	s.buf = s.buf[1:]
	return tok
}
