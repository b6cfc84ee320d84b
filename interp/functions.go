package interp

import "github.com/xaonfc/posish/ast"

// FuncTable is the shell function table (spec §3, Function body; spec
// §4.6, "Function table"): a flat name -> body map, replaced wholesale on
// redefinition, with no nesting of its own (function bodies may contain
// further FuncDecl nodes, which simply re-register on execution).
type FuncTable struct {
	fns map[string]ast.Node
}

// NewFuncTable returns an empty function table.
func NewFuncTable() *FuncTable { return &FuncTable{fns: make(map[string]ast.Node)} }

// Define registers or replaces name's body (spec §4.4, FuncDecl execution).
func (ft *FuncTable) Define(name string, body ast.Node) { ft.fns[name] = body }

// Lookup returns name's body, if defined.
func (ft *FuncTable) Lookup(name string) (ast.Node, bool) {
	body, ok := ft.fns[name]
	return body, ok
}

// Unset removes name from the table (spec §4.6, `unset -f`).
func (ft *FuncTable) Unset(name string) { delete(ft.fns, name) }

// Names returns every defined function name (spec §4.6, `set` with no
// options lists functions after variables in some shells; kept here for
// completeness of the table's read surface).
func (ft *FuncTable) Names() []string {
	names := make([]string, 0, len(ft.fns))
	for n := range ft.fns {
		names = append(names, n)
	}
	return names
}
