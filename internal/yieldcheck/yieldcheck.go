// Package yieldcheck detects cooperative task bodies that can starve the
// scheduler: loops inside an entry function passed to a runtime's Spawn
// that never reach a Yield call on the task handle. Under purely
// voluntary suspension such a loop keeps every other task from running.
//
// The analysis is syntactic. It recognizes entries written as function
// literals passed directly to a method named Spawn and does not follow
// calls into helper functions, so a loop that yields only through a
// helper is still reported.
package yieldcheck

import (
	"fmt"
	"go/ast"
	"go/token"
)

// Diagnostic is one finding, positioned at the offending loop.
type Diagnostic struct {
	Pos     token.Position
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Pos, d.Message)
}

// CheckFile inspects a parsed file and reports every loop inside a task
// entry that contains no yield on the entry's task handle.
func CheckFile(fset *token.FileSet, file *ast.File) []Diagnostic {
	var diags []Diagnostic
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Spawn" || len(call.Args) == 0 {
			return true
		}
		entry, ok := call.Args[0].(*ast.FuncLit)
		if !ok {
			return true
		}
		diags = append(diags, checkEntry(fset, entry)...)
		return true
	})
	return diags
}

func checkEntry(fset *token.FileSet, entry *ast.FuncLit) []Diagnostic {
	handle := handleName(entry.Type)

	var diags []Diagnostic
	ast.Inspect(entry.Body, func(n ast.Node) bool {
		var body ast.Node
		switch n := n.(type) {
		case *ast.FuncLit:
			// Nested function literals are not part of the task's own
			// control flow.
			return false
		case *ast.ForStmt:
			body = n
		case *ast.RangeStmt:
			body = n
		default:
			return true
		}

		switch {
		case handle == "":
			diags = append(diags, Diagnostic{
				Pos:     fset.Position(body.Pos()),
				Message: "loop cannot yield: the task entry does not name its handle",
			})
		case !yieldsOn(body, handle):
			diags = append(diags, Diagnostic{
				Pos:     fset.Position(body.Pos()),
				Message: fmt.Sprintf("loop never calls %s.Yield and starves the scheduler", handle),
			})
		}
		return true
	})
	return diags
}

// handleName returns the name the entry binds its task handle to, or the
// empty string when the handle is unnamed or blank.
func handleName(ft *ast.FuncType) string {
	if ft.Params == nil || len(ft.Params.List) != 1 {
		return ""
	}
	names := ft.Params.List[0].Names
	if len(names) != 1 || names[0].Name == "_" {
		return ""
	}
	return names[0].Name
}

// yieldsOn reports whether n contains a call of the form handle.Yield(...)
// outside of nested function literals.
func yieldsOn(n ast.Node, handle string) bool {
	found := false
	ast.Inspect(n, func(n ast.Node) bool {
		if found {
			return false
		}
		if _, ok := n.(*ast.FuncLit); ok {
			return false
		}
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "Yield" {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok && id.Name == handle {
			found = true
			return false
		}
		return true
	})
	return found
}
