package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/anthropic-exercises/pcc/internal/ast"
	"github.com/anthropic-exercises/pcc/internal/symbol"
)

// PrintTree renders a program's parse tree and symbol table to w, in the
// format the -p driver mode writes (spec §6). It is a diagnostic dump,
// not a re-parseable serialization.
func PrintTree(w io.Writer, prog *Program) {
	fmt.Fprintln(w, "main:")
	printStmt(w, prog.Main, 1)
	fmt.Fprintln(w, "globals:")
	printTable(w, prog.Globals, 1)
}

func indent(w io.Writer, depth int) {
	fmt.Fprint(w, strings.Repeat("  ", depth))
}

func printTable(w io.Writer, tab *symbol.Table, depth int) {
	for _, sym := range tab.InOrder() {
		indent(w, depth)
		switch sym.Kind {
		case symbol.SymVariable:
			fmt.Fprintf(w, "var %s: %s\n", sym.Name, sym.Type)
		case symbol.SymConstant:
			fmt.Fprintf(w, "const %s = %s: %s\n", sym.Name, sym.ConstLiteral, sym.Type)
		case symbol.SymTypeName:
			fmt.Fprintf(w, "type %s = %s\n", sym.Name, sym.Type)
		case symbol.SymProcedure:
			fmt.Fprintf(w, "procedure %s (used=%v)\n", sym.Name, sym.Used)
			if body, ok := sym.Body.(ast.Stmt); ok {
				printStmt(w, body, depth+1)
			}
		case symbol.SymFunction:
			fmt.Fprintf(w, "function %s: %s (used=%v)\n", sym.Name, sym.ReturnType, sym.Used)
			if body, ok := sym.Body.(ast.Stmt); ok {
				printStmt(w, body, depth+1)
			}
		}
	}
}

func printStmt(w io.Writer, s ast.Stmt, depth int) {
	indent(w, depth)
	switch st := s.(type) {
	case *ast.Block:
		fmt.Fprintln(w, "block")
		for _, inner := range st.Stmts {
			printStmt(w, inner, depth+1)
		}
	case *ast.ExprStmt:
		fmt.Fprintln(w, "expr-stmt")
		printExpr(w, st.X, depth+1)
	case *ast.While:
		fmt.Fprintln(w, "while")
		printExpr(w, st.Cond, depth+1)
		printStmt(w, st.Body, depth+1)
	case *ast.Repeat:
		fmt.Fprintln(w, "repeat")
		printStmt(w, st.Body, depth+1)
		printExpr(w, st.Cond, depth+1)
	case *ast.If:
		fmt.Fprintln(w, "if")
		printExpr(w, st.Cond, depth+1)
		printStmt(w, st.Then, depth+1)
		printStmt(w, st.Else, depth+1)
	case *ast.For:
		fmt.Fprintf(w, "for %s\n", st.Var.Name)
		printExpr(w, st.From, depth+1)
		printExpr(w, st.To, depth+1)
		printStmt(w, st.Body, depth+1)
	case *ast.Break:
		fmt.Fprintln(w, "break")
	case *ast.Continue:
		fmt.Fprintln(w, "continue")
	case *ast.Write:
		fmt.Fprintf(w, "write (newline=%v)\n", st.Newline)
		for _, a := range st.Args {
			printExpr(w, a, depth+1)
		}
	case *ast.Read:
		fmt.Fprintf(w, "read (newline=%v)\n", st.Newline)
		for _, a := range st.Targets {
			printExpr(w, a, depth+1)
		}
	case *ast.EmptyStmt:
		fmt.Fprintln(w, "empty")
	default:
		fmt.Fprintf(w, "<unknown stmt %T>\n", s)
	}
}

func printExpr(w io.Writer, e ast.Expr, depth int) {
	indent(w, depth)
	switch ex := e.(type) {
	case *ast.BinaryOp:
		fmt.Fprintf(w, "%s: %s\n", ex.Op, ex.Typ)
		printExpr(w, ex.Left, depth+1)
		printExpr(w, ex.Right, depth+1)
	case *ast.UnaryOp:
		fmt.Fprintf(w, "%s: %s\n", ex.Op, ex.Typ)
		printExpr(w, ex.Operand, depth+1)
	case *ast.VarRef:
		fmt.Fprintf(w, "var %s: %s\n", ex.Sym.Name, ex.Typ)
	case *ast.ArrayAccess:
		fmt.Fprintf(w, "index: %s\n", ex.Typ)
		printExpr(w, ex.Base, depth+1)
		for _, idx := range ex.Indices {
			printExpr(w, idx, depth+1)
		}
	case *ast.RecordField:
		fmt.Fprintf(w, "field %s: %s\n", ex.Field.Name, ex.Typ)
		printExpr(w, ex.Base, depth+1)
	case *ast.IntLit:
		fmt.Fprintf(w, "int %d\n", ex.Value)
	case *ast.DoubleLit:
		fmt.Fprintf(w, "double %g\n", ex.Value)
	case *ast.StringLit:
		fmt.Fprintf(w, "string %q\n", ex.Value)
	case *ast.FunCall:
		fmt.Fprintf(w, "call %s: %s\n", ex.Func.Name, ex.Typ)
		for _, a := range ex.Args {
			printExpr(w, a, depth+1)
		}
	case *ast.EmptyExpr:
		fmt.Fprintln(w, "empty")
	default:
		fmt.Fprintf(w, "<unknown expr %T>\n", e)
	}
}
