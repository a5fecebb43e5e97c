package typecheck

import "github.com/funvibe/scriptlang/internal/types"

// ExprInfo is what the checker returns for every expression it visits,
// per spec.md §4.3.
type ExprInfo struct {
	Type          *types.Type
	IsAssignable  bool
	IsClassSymbol bool
	Name          string
	Line          int
}

func errInfo(line int) ExprInfo {
	return ExprInfo{Type: types.AnyType(), Line: line}
}
