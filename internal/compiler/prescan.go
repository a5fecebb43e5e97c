package compiler

import (
	"github.com/funvibe/scriptlang/internal/lexstream"
	"github.com/funvibe/scriptlang/internal/token"
	"github.com/funvibe/scriptlang/internal/types"
)

// prescanClasses walks src once to collect every class name declared in it,
// then a second time to link superclass references now that all names are
// known. The compiler runs this independently of typecheck's own prescan
// (spec.md §4.3's "shares no mutable state" applies to the two passes as a
// whole, not to this mechanical token scan).
func prescanClasses(src string) map[string]*types.ClassInfo {
	classes := make(map[string]*types.ClassInfo)
	s := lexstream.New(src)
	for {
		tok := s.Advance()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind != token.CLASS {
			continue
		}
		name := s.Advance()
		if name.Kind == token.IDENT {
			classes[name.Lexeme] = &types.ClassInfo{Name: name.Lexeme}
		}
	}

	s2 := lexstream.New(src)
	for {
		tok := s2.Advance()
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind != token.CLASS {
			continue
		}
		name := s2.Advance()
		info := classes[name.Lexeme]
		if s2.Peek(0).Kind == token.LESS {
			s2.Advance()
			base := s2.Advance()
			if info != nil {
				info.Superclass = classes[base.Lexeme]
			}
		}
	}
	return classes
}
