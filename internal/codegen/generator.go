// Package codegen lowers a parsed program into the instruction list
// internal/codegen.Instruction models (spec §4.3): an abstract evaluation
// stack where every expression leaves exactly one value on top, mapped to
// the physical x86 stack, with the FPU stack used internally for double
// arithmetic and comparisons.
package codegen

import (
	"fmt"

	"github.com/anthropic-exercises/pcc/internal/ast"
	"github.com/anthropic-exercises/pcc/internal/idgen"
	"github.com/anthropic-exercises/pcc/internal/parser"
	"github.com/anthropic-exercises/pcc/internal/symbol"
	"github.com/anthropic-exercises/pcc/internal/token"
)

// loopCtx records the jump targets break/continue resolve to inside the
// loop currently being generated (spec §4.3 "loop-context stack").
type loopCtx struct {
	continueLabel string
	breakLabel    string
}

// Generator walks a parsed Program once and produces a flat instruction
// list; it holds no state beyond the loop-context stack and the shared
// id generator threaded in from parsing (spec §9: no global counters).
type Generator struct {
	ids   *idgen.IdGen
	out   []Instruction
	loops []loopCtx
}

// Generate lowers prog to its full instruction list: prelude, data
// segment, procedures/functions, then the main program under the "start"
// label (spec §4.3, §6 "Emitted assembly").
func Generate(prog *parser.Program) []Instruction {
	g := &Generator{ids: prog.IDs}
	g.emitPrelude()
	g.emitDataSegment(prog.Globals)
	g.emitProcs(prog.Globals)
	g.emit(Label("start"))
	g.genStmt(prog.Main)
	g.emit(Directive("include source\\end.inc"))
	g.emit(Directive("end start"))
	return g.out
}

func (g *Generator) emit(in Instruction) {
	g.out = append(g.out, in)
}

func (g *Generator) newLabel() string {
	return fmt.Sprintf("l_%d", g.ids.NextLabel())
}

func (g *Generator) pushLoop(continueLabel, breakLabel string) {
	g.loops = append(g.loops, loopCtx{continueLabel, breakLabel})
}

func (g *Generator) popLoop() {
	g.loops = g.loops[:len(g.loops)-1]
}

// emitPrelude emits the include directive and the fixed prelude of
// format strings every compiled program carries, per spec §6.
func (g *Generator) emitPrelude() {
	g.emit(Directive("include source\\start.inc"))
	g.emit(DataDB("int_frmt", "'%d', 0"))
	g.emit(DataDB("double_frmt", "'%f', 0"))
	g.emit(DataDB("int_scan_frmt", "'%d', 0"))
	g.emit(DataDB("double_scan_frmt", "'%lf', 0"))
	g.emit(DataDB("new_line", "'', 0Dh, 0Ah, 0"))
	g.emit(DataDQ("double_buff", "0.0"))
}

// emitDataSegment emits one declaration per used global variable and per
// synthesized literal constant (dc_N / s_N); unused declarations are
// omitted (spec §3 "Lifecycle", §8 "Unused declarations do not appear in
// the data segment").
func (g *Generator) emitDataSegment(globals *symbol.Table) {
	for _, sym := range globals.InOrder() {
		if !sym.Used && sym.Kind != symbol.SymConstant {
			continue
		}
		switch sym.Kind {
		case symbol.SymVariable:
			if !sym.Global {
				continue
			}
			name := "v_" + sym.Name
			switch {
			case sym.Type.IsAggregate():
				g.emit(DataDD(name, fmt.Sprintf("%d dup(?)", sym.Type.FlatCount())))
			case sym.Type.Kind == symbol.Double:
				g.emit(DataDQ(name, "?"))
			default:
				g.emit(DataDD(name, "?"))
			}
		case symbol.SymConstant:
			switch {
			case sym.Type.Kind == symbol.Double:
				g.emit(DataDQ(sym.Name, sym.ConstLiteral))
			default:
				g.emit(DataDB(sym.Name, fmt.Sprintf("'%s', 0", sym.ConstLiteral)))
			}
		}
	}
}

// emitProcs emits one pr_<name> block per used procedure/function.
func (g *Generator) emitProcs(globals *symbol.Table) {
	for _, sym := range globals.InOrder() {
		if !sym.Used || !sym.IsCallable() {
			continue
		}
		g.genProc(sym)
	}
}

// genProc emits a procedure/function's prologue, body, and epilogue
// (spec §4.3 "Procedure/function emission").
func (g *Generator) genProc(sym *symbol.Symbol) {
	g.emit(Directive(fmt.Sprintf("pr_%s proc near", sym.Name)))
	g.emit(Insn1("push", Register(EBP)))
	g.emit(Insn2("mov", Register(EBP), Register(ESP)))
	if sym.FrameSize > 0 {
		g.emit(Insn2("sub", Register(ESP), Imm32(int64(sym.FrameSize))))
	}
	if body, ok := sym.Body.(ast.Stmt); ok {
		g.genStmt(body)
	}
	g.emit(Insn2("mov", Register(ESP), Register(EBP)))
	g.emit(Insn1("pop", Register(EBP)))
	g.emit(Insn0("ret"))
	g.emit(Directive(fmt.Sprintf("pr_%s endp", sym.Name)))
}

// ---- addresses ---------------------------------------------------------

// genAddr computes the address of an lvalue-producing expression into
// ESI. It never itself leaves a value on the abstract evaluation stack;
// callers combine it with a typed load/store.
func (g *Generator) genAddr(e ast.Expr) {
	switch v := e.(type) {
	case *ast.VarRef:
		g.genVarAddr(v.Sym)
	case *ast.ArrayAccess:
		g.genAddr(v.Base)
		g.emit(Insn1("push", Register(ESI)))
		arrType := v.Base.Type()
		for i, idx := range v.Indices {
			g.genValue(idx)
			stride := arrType.ElementSize(i + 1)
			g.emit(Insn1("pop", Register(EAX)))
			g.emit(Insn2("sub", Register(EAX), Imm32(1)))
			if stride != 1 {
				g.emit(Insn2("imul", Register(EAX), Imm32(int64(stride))))
			}
			g.emit(Insn1("pop", Register(ESI)))
			g.emit(Insn2("add", Register(ESI), Register(EAX)))
			g.emit(Insn1("push", Register(ESI)))
		}
		g.emit(Insn1("pop", Register(ESI)))
	case *ast.RecordField:
		g.genAddr(v.Base)
		if v.Field.FieldOffset != 0 {
			g.emit(Insn2("add", Register(ESI), Imm32(int64(v.Field.FieldOffset))))
		}
	default:
		panic(fmt.Sprintf("codegen: %T is not an lvalue", e))
	}
}

// genVarAddr computes a variable symbol's address into ESI: `push offset
// v_name; pop esi` for a global, `lea esi, [off+ebp]` for a local, or
// `mov esi, [off+ebp]` to dereference a by-reference parameter (spec
// §4.3 "Variable read").
func (g *Generator) genVarAddr(sym *symbol.Symbol) {
	if sym.Global {
		g.emit(Insn1("push", Offset("v_"+sym.Name)))
		g.emit(Insn1("pop", Register(ESI)))
		return
	}
	mem := Mem("", EBP, int64(sym.FrameOffset))
	if sym.ByRef {
		g.emit(Insn2("mov", Register(ESI), mem))
	} else {
		g.emit(Insn2("lea", Register(ESI), mem))
	}
}

// loadFromAddr loads the value at [ESI] (of type t) onto the abstract
// evaluation stack, per the per-kind rules of spec §4.3 "Variable read".
func (g *Generator) loadFromAddr(t *symbol.Type) {
	switch {
	case t.IsAggregate():
		size := t.Size()
		g.emit(Insn2("sub", Register(ESP), Imm32(int64(size))))
		g.emit(Insn2("mov", Register(EDI), Register(ESP)))
		g.emit(Insn2("mov", Register(ECX), Imm32(int64(t.FlatCount()))))
		g.emit(Insn0("rep movsd"))
	case t.Kind == symbol.Double:
		g.emit(Insn1("push", Mem("qword ptr", ESI, 0)))
	default:
		g.emit(Insn1("push", Mem("dword ptr", ESI, 0)))
	}
}

// ---- values -------------------------------------------------------------

// genValue evaluates e and leaves its value on the abstract evaluation
// stack: 4 bytes for integer, 8 for double, N for an aggregate.
func (g *Generator) genValue(e ast.Expr) {
	switch v := e.(type) {
	case *ast.IntLit:
		g.emit(Insn1("push", Imm32(v.Value)))
	case *ast.DoubleLit:
		g.emit(Insn1("push", Sized("qword ptr", v.Sym.Name)))
	case *ast.StringLit:
		// Strings are statically typed as Integer (an address); pushed
		// the same way a global's address would be.
		g.emit(Insn1("push", Offset(v.Sym.Name)))
	case *ast.VarRef:
		g.genAddr(v)
		g.loadFromAddr(v.Type())
	case *ast.ArrayAccess:
		g.genAddr(v)
		g.loadFromAddr(v.Type())
	case *ast.RecordField:
		g.genAddr(v)
		g.loadFromAddr(v.Type())
	case *ast.UnaryOp:
		g.genUnary(v)
	case *ast.BinaryOp:
		g.genBinary(v)
	case *ast.FunCall:
		g.genCall(v)
	case *ast.EmptyExpr:
		// no value to produce
	default:
		panic(fmt.Sprintf("codegen: unhandled expr %T", e))
	}
}

func (g *Generator) genUnary(u *ast.UnaryOp) {
	if u.Typ.Kind == symbol.Double {
		g.genValue(u.Operand)
		g.emit(Insn1("fld", Mem("qword ptr", ESP, 0)))
		g.emit(Insn2("add", Register(ESP), Imm32(8)))
		switch u.Op {
		case token.Plus:
			g.emit(Insn0("fabs"))
		case token.Minus:
			g.emit(Insn0("fchs"))
		default:
			panic(fmt.Sprintf("codegen: unary %s not valid on double", u.Op))
		}
		g.emit(Insn2("sub", Register(ESP), Imm32(8)))
		g.emit(Insn1("fstp", Mem("qword ptr", ESP, 0)))
		return
	}
	g.genValue(u.Operand)
	g.emit(Insn1("pop", Register(EAX)))
	switch u.Op {
	case token.Plus:
		// identity
	case token.Minus:
		g.emit(Insn1("neg", Register(EAX)))
	case token.Not:
		g.emit(Insn2("test", Register(EAX), Register(EAX)))
		g.emit(Insn1("sete", Register(AL)))
		g.emit(Insn2("movzx", Register(EAX), Register(AL)))
	default:
		panic(fmt.Sprintf("codegen: unhandled unary op %s", u.Op))
	}
	g.emit(Insn1("push", Register(EAX)))
}

func isPowerOfTwo(v int64) (int, bool) {
	if v <= 0 {
		return 0, false
	}
	k := 0
	for n := v; n > 1; n >>= 1 {
		if n&1 != 0 {
			return 0, false
		}
		k++
	}
	return k, true
}

func asIntLit(e ast.Expr) (*ast.IntLit, bool) {
	lit, ok := e.(*ast.IntLit)
	return lit, ok
}

// isRelOpKind reports whether k is one of the six relational operators
// (token.Token.IsRelOp checks a scanned Token; here we only have the
// bare Kind the parser recorded on the BinaryOp node).
func isRelOpKind(k token.Kind) bool {
	switch k {
	case token.Lesser, token.LesserEqual, token.Greater, token.GreaterEqual, token.Equal, token.NotEqual:
		return true
	}
	return false
}

func (g *Generator) genBinary(b *ast.BinaryOp) {
	if b.Typ.Kind == symbol.Double {
		g.genDoubleArith(b)
		return
	}
	if isRelOpKind(b.Op) {
		g.genCompare(b)
		return
	}
	// Strength reduction (spec §4.3, §8): multiply/divide by a literal
	// power of two becomes a shift, and mul/idiv are never emitted for
	// those cases.
	if b.Op == token.Mul {
		if lit, ok := asIntLit(b.Right); ok {
			if k, pow := isPowerOfTwo(lit.Value); pow {
				g.genValue(b.Left)
				g.emit(Insn1("pop", Register(EAX)))
				g.emit(Insn2("sal", Register(EAX), Imm32(int64(k))))
				g.emit(Insn1("push", Register(EAX)))
				return
			}
		}
	}
	if b.Op == token.Div {
		if lit, ok := asIntLit(b.Right); ok {
			if k, pow := isPowerOfTwo(lit.Value); pow {
				g.genValue(b.Left)
				g.emit(Insn1("pop", Register(EAX)))
				g.emit(Insn2("sar", Register(EAX), Imm32(int64(k))))
				g.emit(Insn1("push", Register(EAX)))
				return
			}
		}
	}

	g.genValue(b.Left)
	g.genValue(b.Right)
	g.emit(Insn1("pop", Register(ECX)))
	g.emit(Insn1("pop", Register(EAX)))
	switch b.Op {
	case token.Plus:
		g.emit(Insn2("add", Register(EAX), Register(ECX)))
	case token.Minus:
		g.emit(Insn2("sub", Register(EAX), Register(ECX)))
	case token.Mul:
		g.emit(Insn1("mul", Register(ECX)))
	case token.Div:
		g.emit(Insn0("cdq"))
		g.emit(Insn1("idiv", Register(ECX)))
	case token.Mod:
		g.emit(Insn0("cdq"))
		g.emit(Insn1("idiv", Register(ECX)))
		g.emit(Insn2("mov", Register(EAX), Register(EDX)))
	case token.And:
		g.emit(Insn2("and", Register(EAX), Register(ECX)))
	case token.Or:
		g.emit(Insn2("or", Register(EAX), Register(ECX)))
	case token.Xor:
		g.emit(Insn2("xor", Register(EAX), Register(ECX)))
	default:
		panic(fmt.Sprintf("codegen: unhandled integer operator %s", b.Op))
	}
	g.emit(Insn1("push", Register(EAX)))
}

// genDoubleArith lowers +,-,*,/,mod between double (or widened integer)
// operands using the paired-pop FPU forms (spec §4.3 "Double
// arithmetic"). Operands are loaded left then right, so ST(0)=right,
// ST(1)=left, matching the paired-pop instructions' ST(1) := ST(1) op
// ST(0) semantics for non-commutative operators. For mod the order is
// reversed, since fprem divides ST(0) by ST(1).
func (g *Generator) genDoubleArith(b *ast.BinaryOp) {
	if b.Op == token.Mod {
		g.loadDoubleOperand(b.Right)
		g.loadDoubleOperand(b.Left)
	} else {
		g.loadDoubleOperand(b.Left)
		g.loadDoubleOperand(b.Right)
	}
	switch b.Op {
	case token.Plus:
		g.emit(Insn2("faddp", Raw("st(1)"), Raw("st")))
	case token.Minus:
		g.emit(Insn2("fsubp", Raw("st(1)"), Raw("st")))
	case token.Mul:
		g.emit(Insn2("fmulp", Raw("st(1)"), Raw("st")))
	case token.Div:
		g.emit(Insn2("fdivp", Raw("st(1)"), Raw("st")))
	case token.Mod:
		g.emit(Insn0("fprem"))
		g.emit(Insn1("fstp", Raw("st(1)")))
	default:
		panic(fmt.Sprintf("codegen: unhandled double operator %s", b.Op))
	}
	g.emit(Insn2("sub", Register(ESP), Imm32(8)))
	g.emit(Insn1("fstp", Mem("qword ptr", ESP, 0)))
}

// loadDoubleOperand evaluates e (widening through fild if e is an
// integer) and pushes it onto the FPU stack as a new ST(0).
func (g *Generator) loadDoubleOperand(e ast.Expr) {
	g.genValue(e)
	if e.Type().IsInteger() {
		g.emit(Insn1("fild", Mem("dword ptr", ESP, 0)))
		g.emit(Insn2("add", Register(ESP), Imm32(4)))
	} else {
		g.emit(Insn1("fld", Mem("qword ptr", ESP, 0)))
		g.emit(Insn2("add", Register(ESP), Imm32(8)))
	}
}

// genCompare lowers a relational operator. Integer operands use cmp +
// setcc; double operands load right then left (so ST(0)=left, ST(1)=
// right) and use fcompp/fstsw/sahf, reading the resulting flags with the
// unsigned set forms, since x87 reports ST(0) vs ST(1) via CF/ZF rather
// than SF/OF (spec §4.3 "Binary comparisons").
func (g *Generator) genCompare(b *ast.BinaryOp) {
	leftIsDouble := b.Left.Type().Kind == symbol.Double
	rightIsDouble := b.Right.Type().Kind == symbol.Double
	if !leftIsDouble && !rightIsDouble {
		g.genValue(b.Left)
		g.genValue(b.Right)
		g.emit(Insn1("pop", Register(ECX)))
		g.emit(Insn1("pop", Register(EAX)))
		g.emit(Insn2("cmp", Register(EAX), Register(ECX)))
		g.emit(Insn1(setccFor(b.Op, false), Register(AL)))
		g.emit(Insn2("movzx", Register(EAX), Register(AL)))
		g.emit(Insn1("push", Register(EAX)))
		return
	}
	g.loadDoubleOperand(b.Right)
	g.loadDoubleOperand(b.Left)
	g.emit(Insn0("fcompp"))
	g.emit(Insn1("fstsw", Register(AX)))
	g.emit(Insn0("sahf"))
	g.emit(Insn1(setccFor(b.Op, true), Register(AL)))
	g.emit(Insn2("movzx", Register(EAX), Register(AL)))
	g.emit(Insn1("push", Register(EAX)))
}

// setccFor returns the conditional-set mnemonic for a relational
// operator. The unsigned ("below"/"above") forms are used for doubles,
// exploiting the CF-based flags fcompp/sahf produce; the signed forms
// are used for integers.
func setccFor(op token.Kind, unsigned bool) string {
	if unsigned {
		switch op {
		case token.Lesser:
			return "setb"
		case token.LesserEqual:
			return "setbe"
		case token.Greater:
			return "seta"
		case token.GreaterEqual:
			return "setae"
		case token.Equal:
			return "sete"
		case token.NotEqual:
			return "setne"
		}
	}
	switch op {
	case token.Lesser:
		return "setl"
	case token.LesserEqual:
		return "setle"
	case token.Greater:
		return "setg"
	case token.GreaterEqual:
		return "setge"
	case token.Equal:
		return "sete"
	case token.NotEqual:
		return "setne"
	}
	panic(fmt.Sprintf("codegen: %s is not a relational operator", op))
}

// genCall lowers a procedure/function call (spec §4.3 "Calling
// convention"). For a function, the caller first reserves raw storage
// for the return value and pushes its address as a hidden leading
// argument (mirroring a by-reference parameter, which is how the
// callee's synthesized `result` alias is frame-addressed); the reserved
// bytes, left untouched by the argument cleanup, become the call's
// produced value.
func (g *Generator) genCall(call *ast.FunCall) {
	var retSize int
	if call.Func.ReturnType != nil {
		retSize = call.Func.ReturnType.Size()
		g.emit(Insn2("sub", Register(ESP), Imm32(int64(retSize))))
		g.emit(Insn2("mov", Register(EAX), Register(ESP)))
		g.emit(Insn1("push", Register(EAX)))
	}
	argSize := 0
	if retSize > 0 {
		argSize += 4
	}
	for i, arg := range call.Args {
		param := call.Func.Params[i]
		if param.ByRef {
			g.genAddr(arg)
			g.emit(Insn1("push", Register(ESI)))
			argSize += 4
		} else {
			g.genValue(arg)
			argSize += param.Type.Size()
		}
	}
	g.emit(Insn1("call", LabelRef("pr_"+call.Func.Name)))
	if argSize > 0 {
		g.emit(Insn2("add", Register(ESP), Imm32(int64(argSize))))
	}
}

// ---- statements ---------------------------------------------------------

func (g *Generator) genStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.Block:
		for _, inner := range st.Stmts {
			g.genStmt(inner)
		}
	case *ast.ExprStmt:
		g.genExprStmt(st)
	case *ast.While:
		g.genWhile(st)
	case *ast.Repeat:
		g.genRepeat(st)
	case *ast.If:
		g.genIf(st)
	case *ast.For:
		g.genFor(st)
	case *ast.Break:
		g.genBreak()
	case *ast.Continue:
		g.genContinue()
	case *ast.Write:
		g.genWrite(st)
	case *ast.Read:
		g.genRead(st)
	case *ast.EmptyStmt:
		// no code
	default:
		panic(fmt.Sprintf("codegen: unhandled stmt %T", s))
	}
}

func (g *Generator) genExprStmt(st *ast.ExprStmt) {
	if bin, ok := st.X.(*ast.BinaryOp); ok && bin.Op == token.Assign {
		g.genAssign(bin)
		return
	}
	g.genValue(st.X)
	if call, ok := st.X.(*ast.FunCall); ok && call.Func.ReturnType != nil {
		// A function called as a bare statement: its result is unused.
		g.emit(Insn2("add", Register(ESP), Imm32(int64(call.Func.ReturnType.Size()))))
	}
}

// genAssign lowers `:=` (spec §4.3 "Binary assignment").
func (g *Generator) genAssign(bin *ast.BinaryOp) {
	lhsType := bin.Left.Type()
	switch {
	case lhsType.IsAggregate():
		g.genAddr(bin.Left)
		g.emit(Insn2("mov", Register(EDI), Register(ESI)))
		g.genAddr(bin.Right)
		g.emit(Insn2("mov", Register(ECX), Imm32(int64(lhsType.FlatCount()))))
		g.emit(Insn0("rep movsd"))
	case lhsType.Kind == symbol.Double:
		g.loadDoubleOperand(bin.Right)
		g.genAddr(bin.Left)
		g.emit(Insn1("fstp", Mem("qword ptr", ESI, 0)))
	default:
		g.genValue(bin.Right)
		g.genAddr(bin.Left)
		g.emit(Insn1("pop", Register(EAX)))
		g.emit(Insn2("mov", Mem("dword ptr", ESI, 0), Register(EAX)))
	}
}

func (g *Generator) genWhile(w *ast.While) {
	lbegin := g.newLabel()
	lend := g.newLabel()
	g.emit(Label(lbegin))
	g.pushLoop(lbegin, lend)
	g.genValue(w.Cond)
	g.emit(Insn1("pop", Register(EAX)))
	g.emit(Insn2("test", Register(EAX), Register(EAX)))
	g.emit(Insn1("jz", LabelRef(lend)))
	g.genStmt(w.Body)
	g.emit(Insn1("jmp", LabelRef(lbegin)))
	g.emit(Label(lend))
	g.popLoop()
}

func (g *Generator) genRepeat(r *ast.Repeat) {
	lbegin := g.newLabel()
	lcond := g.newLabel()
	lend := g.newLabel()
	g.emit(Label(lbegin))
	g.pushLoop(lcond, lend)
	g.genStmt(r.Body)
	g.emit(Label(lcond))
	g.genValue(r.Cond)
	g.emit(Insn1("pop", Register(EAX)))
	g.emit(Insn2("test", Register(EAX), Register(EAX)))
	g.emit(Insn1("jz", LabelRef(lbegin)))
	g.emit(Label(lend))
	g.popLoop()
}

func (g *Generator) genIf(f *ast.If) {
	lelse := g.newLabel()
	lexit := g.newLabel()
	g.genValue(f.Cond)
	g.emit(Insn1("pop", Register(EAX)))
	g.emit(Insn2("test", Register(EAX), Register(EAX)))
	g.emit(Insn1("jz", LabelRef(lelse)))
	g.genStmt(f.Then)
	g.emit(Insn1("jmp", LabelRef(lexit)))
	g.emit(Label(lelse))
	if f.Else != nil {
		g.genStmt(f.Else)
	}
	g.emit(Label(lexit))
}

// genFor lowers a counted loop (spec §4.3 "Control flow"). The final
// bound and the loop variable's address occupy two stack slots for the
// duration of the loop; break/continue's targets are the step label
// (re-test after increment/decrement) and the exit label.
func (g *Generator) genFor(fr *ast.For) {
	lbody := g.newLabel()
	lstep := g.newLabel()
	lcond := g.newLabel()
	lend := g.newLabel()

	g.genValue(fr.To)
	g.genVarAddr(fr.Var)
	g.emit(Insn1("push", Register(ESI)))

	g.genValue(fr.From)
	g.emit(Insn1("pop", Register(EAX)))
	g.emit(Insn2("mov", Register(ESI), Mem("", ESP, 0)))
	g.emit(Insn2("mov", Mem("dword ptr", ESI, 0), Register(EAX)))

	g.emit(Insn1("jmp", LabelRef(lcond)))
	g.emit(Label(lbody))
	g.pushLoop(lstep, lend)
	g.genStmt(fr.Body)
	g.popLoop()

	g.emit(Label(lstep))
	g.emit(Insn2("mov", Register(ESI), Mem("", ESP, 0)))
	if fr.Down {
		g.emit(Insn1("dec", Mem("dword ptr", ESI, 0)))
	} else {
		g.emit(Insn1("inc", Mem("dword ptr", ESI, 0)))
	}

	g.emit(Label(lcond))
	g.emit(Insn2("mov", Register(ESI), Mem("", ESP, 0)))
	g.emit(Insn2("mov", Register(ECX), Mem("dword ptr", ESI, 0)))
	g.emit(Insn2("mov", Register(EAX), Mem("dword ptr", ESP, 4)))
	g.emit(Insn2("cmp", Register(ECX), Register(EAX)))
	if fr.Down {
		g.emit(Insn1("jge", LabelRef(lbody)))
	} else {
		g.emit(Insn1("jle", LabelRef(lbody)))
	}
	g.emit(Label(lend))
	g.emit(Insn2("add", Register(ESP), Imm32(8)))
}

func (g *Generator) genBreak() {
	if len(g.loops) == 0 {
		return
	}
	g.emit(Insn1("jmp", LabelRef(g.loops[len(g.loops)-1].breakLabel)))
}

func (g *Generator) genContinue() {
	if len(g.loops) == 0 {
		return
	}
	g.emit(Insn1("jmp", LabelRef(g.loops[len(g.loops)-1].continueLabel)))
}

// genWrite lowers write/writeln (spec §4.3 "write / writeln"). Each
// argument dispatches on its static type: strings print their address
// directly through ESI, integers and doubles go through printf with the
// matching format constant.
func (g *Generator) genWrite(w *ast.Write) {
	for _, a := range w.Args {
		if str, ok := a.(*ast.StringLit); ok {
			g.emit(Insn2("mov", Register(ESI), Offset(str.Sym.Name)))
			g.emit(Insn1("push", Register(ESI)))
			g.emit(Insn1("call", LabelRef("printf")))
			g.emit(Insn2("add", Register(ESP), Imm32(4)))
			continue
		}
		if a.Type().Kind == symbol.Double {
			g.genValue(a)
			g.emit(Insn1("fld", Mem("qword ptr", ESP, 0)))
			g.emit(Insn2("add", Register(ESP), Imm32(8)))
			g.emit(Insn1("fstp", Sized("qword ptr", "double_buff")))
			g.emit(Insn1("push", Sized("qword ptr", "double_buff")))
			g.emit(Insn1("push", Offset("double_frmt")))
			g.emit(Insn1("call", LabelRef("printf")))
			g.emit(Insn2("add", Register(ESP), Imm32(12)))
			continue
		}
		g.genValue(a)
		g.emit(Insn1("push", Offset("int_frmt")))
		g.emit(Insn1("call", LabelRef("printf")))
		g.emit(Insn2("add", Register(ESP), Imm32(8)))
	}
	if w.Newline {
		g.emit(Insn1("push", Offset("new_line")))
		g.emit(Insn1("call", LabelRef("printf")))
		g.emit(Insn2("add", Register(ESP), Imm32(4)))
	}
}

// genRead lowers read/readln: each target's address is passed to scanf
// with the format constant matching its static type (SPEC_FULL.md
// supplemented feature 1).
func (g *Generator) genRead(r *ast.Read) {
	for _, target := range r.Targets {
		g.genAddr(target)
		g.emit(Insn1("push", Register(ESI)))
		if target.Type().Kind == symbol.Double {
			g.emit(Insn1("push", Offset("double_scan_frmt")))
		} else {
			g.emit(Insn1("push", Offset("int_scan_frmt")))
		}
		g.emit(Insn1("call", LabelRef("scanf")))
		g.emit(Insn2("add", Register(ESP), Imm32(8)))
	}
}
