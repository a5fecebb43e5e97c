package types

import (
	"fmt"

	"github.com/funvibe/scriptlang/internal/token"
)

// TokenCursor is the minimal read-only view over a token stream that type
// expression parsing needs. Both the type checker and the compiler pass
// their own stream (each does its own independent walk, per spec.md §2
// "share no mutable runtime state") — this is pure, stateless grammar
// logic, not shared state.
type TokenCursor interface {
	Peek(n int) token.Token
	Advance() token.Token
}

// ClassLookup resolves a class name to its ClassInfo during type parsing,
// for class-typed declarations (`Shape x;`) and generic parameters. Both
// collaborators supply their own (a pre-scanned table, in each case).
type ClassLookup func(name string) (*ClassInfo, bool)

// ParseTypeExpr consumes a type expression from cur: a primitive type
// name, a bare identifier (class name, per spec.md §6.1), or a generic
// collection form (`Array<T>`, `Set<T>`, `Dict<K, V>`). OPTIONAL has no
// surface syntax: the tag exists in the TypeInfo lattice but nothing in
// Scanner/TypeChecker/Compiler ever produces it — see DESIGN.md. Returns
// an error describing what was found if the next token cannot start a
// type.
func ParseTypeExpr(cur TokenCursor, classes ClassLookup) (*Type, error) {
	return parseBaseTypeExpr(cur, classes)
}

func parseBaseTypeExpr(cur TokenCursor, classes ClassLookup) (*Type, error) {
	tok := cur.Peek(0)

	if token.IsPrimitiveType(tok.Kind) {
		cur.Advance()
		pt, ok := FromPrimitiveToken(tok.Kind)
		if !ok {
			return nil, fmt.Errorf("unrecognized primitive type token %q", tok.Lexeme)
		}
		return pt, nil
	}

	if tok.Kind != token.IDENT {
		return nil, fmt.Errorf("expected a type, got %q", tok.Lexeme)
	}
	cur.Advance()

	switch tok.Lexeme {
	case "Array":
		elem, err := expectGenericArgs(cur, classes, 1)
		if err != nil {
			return nil, err
		}
		return ArrayType(elem[0]), nil
	case "Set":
		elem, err := expectGenericArgs(cur, classes, 1)
		if err != nil {
			return nil, err
		}
		return SetType(elem[0]), nil
	case "Dict":
		elem, err := expectGenericArgs(cur, classes, 2)
		if err != nil {
			return nil, err
		}
		return DictType(elem[0], elem[1]), nil
	default:
		var ref *ClassInfo
		if classes != nil {
			ref, _ = classes(tok.Lexeme)
		}
		return ClassType(tok.Lexeme, ref), nil
	}
}

func expectGenericArgs(cur TokenCursor, classes ClassLookup, n int) ([]*Type, error) {
	if cur.Peek(0).Kind != token.LESS {
		return nil, fmt.Errorf("expected '<' to open generic argument list")
	}
	cur.Advance()

	args := make([]*Type, 0, n)
	for i := 0; i < n; i++ {
		t, err := ParseTypeExpr(cur, classes)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		if i < n-1 {
			if cur.Peek(0).Kind != token.COMMA {
				return nil, fmt.Errorf("expected ',' between generic arguments")
			}
			cur.Advance()
		}
	}
	if cur.Peek(0).Kind != token.GREATER {
		return nil, fmt.Errorf("expected '>' to close generic argument list")
	}
	cur.Advance()
	return args, nil
}

// IsTypeStart reports whether tok could begin a type expression: a
// primitive type name or an identifier (class name or generic collection
// name). Used by callers disambiguating `T x = e;` from an expression
// statement starting with a bare identifier.
func IsTypeStart(tok token.Token) bool {
	return token.IsPrimitiveType(tok.Kind) || tok.Kind == token.IDENT
}
