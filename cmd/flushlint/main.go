// Command flushlint enforces the checkpointing core's flush discipline: a
// call to durable.Flush, durable.FlushRange, durable.FlushSlice, or
// durable.Fence is only permitted from the packages that own the durable
// layout those calls make assumptions about (pmem, vm, execctx, ppinfo,
// kernel). A call from anywhere else means some other package has started
// reasoning about cache-line persistence it doesn't own.
package main

import (
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/analysis/singlechecker"
	"golang.org/x/tools/go/ast/inspector"

	"go/ast"
)

var allowedPackages = map[string]bool{
	"pmem":    true,
	"vm":      true,
	"execctx": true,
	"ppinfo":  true,
	"kernel":  true,
	"durable": true, // durable may call its own backend methods freely
}

var flushFuncs = map[string]bool{
	"Flush":      true,
	"FlushRange": true,
	"FlushSlice": true,
	"Fence":      true,
}

var Analyzer = &analysis.Analyzer{
	Name:     "flushlint",
	Doc:      "reports calls to durable.Flush* and durable.Fence from outside the checkpointing core",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (interface{}, error) {
	if allowedPackages[pass.Pkg.Name()] {
		return nil, nil
	}

	insp := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)
	nodeFilter := []ast.Node{(*ast.CallExpr)(nil)}

	insp.Preorder(nodeFilter, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return
		}
		pkgIdent, ok := sel.X.(*ast.Ident)
		if !ok || pkgIdent.Name != "durable" {
			return
		}
		if !flushFuncs[sel.Sel.Name] {
			return
		}
		pass.Reportf(call.Pos(), "package %s must not call durable.%s directly; route through a checkpointing-core package", pass.Pkg.Name(), sel.Sel.Name)
	})

	return nil, nil
}

func main() {
	singlechecker.Main(Analyzer)
}
