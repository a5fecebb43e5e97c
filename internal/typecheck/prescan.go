package typecheck

import (
	"github.com/funvibe/scriptlang/internal/lexstream"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

// prescanClasses walks the whole token stream once, recording every
// `class Name` declaration so forward references (a subclass declared
// before its base, or a parameter typed with a class declared later)
// resolve during the real walk. Grounded on spec.md §4.4's compiler
// pre-pass (a); the checker needs the same information independently.
func prescanClasses(src string) map[string]*types.ClassInfo {
	classes := make(map[string]*types.ClassInfo)
	s := lexstream.New(src)
	for {
		tok := s.Advance()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind == token.CLASS {
			name := s.Advance()
			if name.Kind == token.IDENT {
				if _, exists := classes[name.Lexeme]; !exists {
					classes[name.Lexeme] = &types.ClassInfo{Name: name.Lexeme}
				}
			}
		}
	}
	// second pass to link superclasses, now that every class is known.
	s = lexstream.New(src)
	for {
		tok := s.Advance()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind != token.CLASS {
			continue
		}
		name := s.Advance()
		if name.Kind != token.IDENT {
			continue
		}
		if s.Peek(0).Kind == token.LESS {
			s.Advance()
			base := s.Advance()
			if base.Kind == token.IDENT {
				if info, ok := classes[name.Lexeme]; ok {
					classes[name.Lexeme].Superclass = classes[base.Lexeme]
					_ = info
				}
			}
		}
	}
	return classes
}

// prescanFunctions walks the token stream collecting top-level function
// signatures (name + declared parameter/return types) so mutually
// recursive top-level definitions type-check (spec.md §4.4 pre-pass (b),
// §9 "single-pass parsing with forward references"). Only depth-0
// `function` declarations count; methods inside a class body are not
// top-level and are resolved per-instance instead.
func prescanFunctions(src string, classes map[string]*types.ClassInfo) map[string]*types.Type {
	sigs := make(map[string]*types.Type)
	s := lexstream.New(src)
	depth := 0
	for {
		tok := s.Advance()
		if tok.Kind == token.EOF {
			break
		}
		switch tok.Kind {
		case token.LBRACE:
			depth++
			continue
		case token.RBRACE:
			depth--
			continue
		}
		if tok.Kind != token.FUNCTION || depth != 0 {
			continue
		}
		name := s.Advance()
		if name.Kind != token.IDENT {
			continue
		}
		params, ret, ok := parseSignatureTail(s, classes)
		if !ok {
			continue
		}
		sigs[name.Lexeme] = types.FunctionType(params, ret)
	}
	return sigs
}

// parseSignatureTail consumes `(params) [-> RetType]` starting at the
// open paren. It never fails hard: spec.md §9 open question (d) says the
// pre-scan is permissive — a parameter it cannot confidently parse as
// `T name` degrades to an untyped (`any`) parameter rather than
// rejecting the whole signature.
func parseSignatureTail(s *lexstream.Stream, classes map[string]*types.ClassInfo) ([]*types.Type, *types.Type, bool) {
	if s.Peek(0).Kind != token.LPAREN {
		return nil, nil, false
	}
	s.Advance()

	var params []*types.Type
	for s.Peek(0).Kind != token.RPAREN && s.Peek(0).Kind != token.EOF {
		pt := parsePermissiveParam(s, classes)
		params = append(params, pt)
		if s.Peek(0).Kind == token.COMMA {
			s.Advance()
			continue
		}
		break
	}
	if s.Peek(0).Kind != token.RPAREN {
		return nil, nil, false
	}
	s.Advance()

	ret := types.AnyType()
	if s.Peek(0).Kind == token.ARROW {
		s.Advance()
		cur := &streamCursor{s: s}
		if t, err := types.ParseTypeExpr(cur, classLookupFor(classes)); err == nil {
			ret = t
		}
	}
	if params == nil {
		params = []*types.Type{}
	}
	return params, ret, true
}

// parsePermissiveParam consumes one parameter entry, typed (`T name`) or
// bare (`name`), returning its declared type (`any` for the bare form).
func parsePermissiveParam(s *lexstream.Stream, classes map[string]*types.ClassInfo) *types.Type {
	first := s.Peek(0)
	second := s.Peek(1)

	if types.IsTypeStart(first) && second.Kind == token.IDENT {
		cur := &streamCursor{s: s}
		t, err := types.ParseTypeExpr(cur, classLookupFor(classes))
		if err != nil {
			// consume the one token we peeked at and degrade to any.
			s.Advance()
			return types.AnyType()
		}
		s.Advance() // parameter name
		return t
	}

	// bare identifier parameter, or something unrecognized: consume one
	// token and call it untyped, per the permissive contract.
	if first.Kind != token.RPAREN && first.Kind != token.EOF {
		s.Advance()
	}
	return types.AnyType()
}

func classLookupFor(classes map[string]*types.ClassInfo) types.ClassLookup {
	return func(name string) (*types.ClassInfo, bool) {
		info, ok := classes[name]
		return info, ok
	}
}

// streamCursor adapts lexstream.Stream to types.TokenCursor.
type streamCursor struct {
	s *lexstream.Stream
}

func (c *streamCursor) Peek(n int) token.Token { return c.s.Peek(n) }
func (c *streamCursor) Advance() token.Token   { return c.s.Advance() }
