package parser

import (
	"strings"
	"testing"

	"github.com/anthropic-exercises/pcc/internal/ast"
	"github.com/anthropic-exercises/pcc/internal/symbol"
)

const maxInt32 = 1<<31 - 1

func mustParse(t *testing.T, src string) *Program {
	t.Helper()
	p := New(strings.NewReader(src))
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return prog
}

func mainBlock(t *testing.T, prog *Program) *ast.Block {
	t.Helper()
	b, ok := prog.Main.(*ast.Block)
	if !ok {
		t.Fatalf("expected main to be a block, got %T", prog.Main)
	}
	return b
}

func TestConstantFoldingArithmetic(t *testing.T) {
	src := `var x: integer;
begin
   x := 2 + 3 * 4;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	lit, ok := assign.Right.(*ast.IntLit)
	if !ok {
		t.Fatalf("expected folded integer literal, got %T", assign.Right)
	}
	if lit.Value != 14 {
		t.Fatalf("expected 2+3*4 to fold to 14, got %d", lit.Value)
	}
}

func TestConstantFoldingChainsIntoRightOperand(t *testing.T) {
	src := `var x: integer;
begin
   x := x + 3 + 4;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	rhs, ok := assign.Right.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("expected x + 3 + 4 to stay a single BinaryOp with a folded right operand, got %T", assign.Right)
	}
	lit, ok := rhs.Right.(*ast.IntLit)
	if !ok {
		t.Fatalf("expected folded right operand, got %T", rhs.Right)
	}
	if lit.Value != 7 {
		t.Fatalf("expected 3+4 to fold to 7, got %d", lit.Value)
	}
}

func TestParenthesesBlockChainFolding(t *testing.T) {
	src := `var x: integer;
begin
   x := x + (3 + 4);
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	// (3 + 4) folds eagerly to 7 inside the parens, but the explicit
	// parenthesization marks it higher-priority, which blocks x + 7 from
	// being combined any further: it stays x + 7, not further folded.
	outer, ok := assign.Right.(*ast.BinaryOp)
	if !ok {
		t.Fatalf("expected x + (3+4) to remain x + 7, got %T", assign.Right)
	}
	lit, ok := outer.Right.(*ast.IntLit)
	if !ok {
		t.Fatalf("expected (3+4) to fold eagerly to a literal, got %T", outer.Right)
	}
	if lit.Value != 7 {
		t.Fatalf("expected (3+4) to fold to 7, got %d", lit.Value)
	}
}

func TestDoubleIntegerWideningFolds(t *testing.T) {
	src := `var x: double;
begin
   x := 1 + 2.5;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	lit, ok := assign.Right.(*ast.DoubleLit)
	if !ok {
		t.Fatalf("expected 1+2.5 to fold to a double literal, got %T", assign.Right)
	}
	if lit.Value != 3.5 {
		t.Fatalf("expected 1+2.5 to fold to 3.5, got %v", lit.Value)
	}
}

func TestDoubleToIntegerAssignmentIsRejected(t *testing.T) {
	src := `var x: integer;
begin
   x := 2.5;
end.`
	p := New(strings.NewReader(src))
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected an error assigning a double literal to an integer variable")
	}
}

func TestRelationalFoldIsAlwaysInteger(t *testing.T) {
	src := `var x: integer;
begin
   x := 1.0 < 2.0;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	lit, ok := assign.Right.(*ast.IntLit)
	if !ok {
		t.Fatalf("expected a folded relational comparison to produce an integer literal, got %T", assign.Right)
	}
	if lit.Value != 1 {
		t.Fatalf("expected 1.0 < 2.0 to fold to 1, got %d", lit.Value)
	}
}

func TestWhileFalseFoldsToEmptyStatement(t *testing.T) {
	src := `var x: integer;
begin
   while 1 > 2 do x := x + 1;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	if _, ok := block.Stmts[0].(*ast.EmptyStmt); !ok {
		t.Fatalf("expected a statically-false while loop to fold to EmptyStmt, got %T", block.Stmts[0])
	}
}

func TestForLoopWithUnsatisfiedBoundsFoldsAway(t *testing.T) {
	src := `var i: integer;
begin
   for i := 10 to 1 do i := i;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	if _, ok := block.Stmts[0].(*ast.EmptyStmt); !ok {
		t.Fatalf("expected a for-loop with iv > fv (to-direction) to fold away, got %T", block.Stmts[0])
	}
}

func TestArrayAndRecordChainedAccess(t *testing.T) {
	src := `type
   point = record
      x: integer;
      y: integer
   end;
var
   pts: array[3] of point;
begin
   pts[1].x := 5;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	field, ok := assign.Left.(*ast.RecordField)
	if !ok {
		t.Fatalf("expected pts[1].x to parse as a RecordField, got %T", assign.Left)
	}
	if _, ok := field.Base.(*ast.ArrayAccess); !ok {
		t.Fatalf("expected the record field's base to be an ArrayAccess, got %T", field.Base)
	}
}

func TestUndeclaredIdentifierIsAnError(t *testing.T) {
	src := `begin
   y := 1;
end.`
	p := New(strings.NewReader(src))
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected an error referencing an undeclared identifier")
	}
}

func TestProcedureCallArityIsChecked(t *testing.T) {
	src := `procedure greet(n: integer);
begin
end;
begin
   greet(1, 2);
end.`
	p := New(strings.NewReader(src))
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected an error calling greet with the wrong number of arguments")
	}
}

func TestUnusedGlobalIsNotMarkedUsed(t *testing.T) {
	src := `var unused: integer;
var used: integer;
begin
   used := 1;
end.`
	prog := mustParse(t, src)
	if sym := prog.Globals.Lookup("unused"); sym == nil || sym.Used {
		t.Fatalf("expected 'unused' to be declared but never marked used")
	}
	if sym := prog.Globals.Lookup("used"); sym == nil || !sym.Used {
		t.Fatalf("expected 'used' to be marked used")
	}
}

func TestFunctionReturningArrayIsRejected(t *testing.T) {
	src := `function bad: array[3] of integer;
begin
end;
begin
end.`
	p := New(strings.NewReader(src))
	if _, err := p.Parse(); err == nil {
		t.Fatalf("expected an error declaring a function with an array return type")
	}
}

func TestErrorMessageFormatMatchesSpec(t *testing.T) {
	src := `begin
   y := 1;
end.`
	p := New(strings.NewReader(src))
	_, err := p.Parse()
	if err == nil {
		t.Fatalf("expected an error referencing an undeclared identifier")
	}
	const want = "Error at line 2, col 4: undeclared identifier \"y\""
	if err.Error() != want {
		t.Fatalf("expected error %q, got %q", want, err.Error())
	}
}

func TestIntegerOverflowWrapsTo32BitSigned(t *testing.T) {
	src := `var x: integer;
begin
   x := 2147483647 + 1;
end.`
	prog := mustParse(t, src)
	block := mainBlock(t, prog)
	assign := block.Stmts[0].(*ast.ExprStmt).X.(*ast.BinaryOp)
	lit, ok := assign.Right.(*ast.IntLit)
	if !ok {
		t.Fatalf("expected maxint+1 to fold to a single wrapped integer literal, got %T", assign.Right)
	}
	if lit.Value != -(maxInt32 + 1) {
		t.Fatalf("expected maxint+1 to wrap to %d, got %d", -(maxInt32 + 1), lit.Value)
	}
}

func TestFunctionDeclarationInsertsResultAlias(t *testing.T) {
	src := `function square(n: integer): integer;
begin
   square := n * n;
end;
var r: integer;
begin
   r := square(5);
end.`
	prog := mustParse(t, src)
	fn := prog.Globals.Lookup("square")
	if fn == nil || fn.Kind != symbol.SymFunction {
		t.Fatalf("expected square to be declared as a function")
	}
	if fn.ReturnType != symbol.IntegerType {
		t.Fatalf("expected square's return type to be integer")
	}
	if !fn.Locals.Contains("result") {
		t.Fatalf("expected the function's local table to contain the synthesized 'result' alias")
	}
}
