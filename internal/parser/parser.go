// Package parser implements the recursive-descent parser described in
// spec §4.2: one token of lookahead, constant folding interleaved with
// AST construction, and full symbol/type resolution as each declaration
// and statement is read. There is no separate semantic-analysis pass;
// by the time Parse returns, every node in the tree carries its final
// resolved type.
package parser

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/anthropic-exercises/pcc/internal/ast"
	"github.com/anthropic-exercises/pcc/internal/idgen"
	"github.com/anthropic-exercises/pcc/internal/lexer"
	"github.com/anthropic-exercises/pcc/internal/symbol"
	"github.com/anthropic-exercises/pcc/internal/token"
)

// Program is the result of a successful parse: the global symbol table
// (procedures/functions carry their own local tables and bodies) and the
// main begin...end block.
type Program struct {
	Globals *symbol.Table
	Main    ast.Stmt
	IDs     *idgen.IdGen
}

// Parser turns a token stream into a Program. It is single-use: create a
// new one per source file.
type Parser struct {
	lex    *lexer.Lexer
	cur    token.Token
	global *symbol.Table
	ids    *idgen.IdGen
}

// New creates a parser reading from r.
func New(r io.Reader) *Parser {
	return &Parser{
		lex:    lexer.New(r),
		global: symbol.NewTable(),
		ids:    idgen.New(),
	}
}

// parseError is the panic payload used to unwind out of arbitrarily deep
// recursive-descent calls on the first error, the way ysem's analyzer and
// ylex's scanner abort to their top-level caller.
type parseError struct{ error }

// Parse consumes the whole program and returns it, or the first error
// encountered.
func (p *Parser) Parse() (prog *Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				err = pe.error
				return
			}
			panic(r)
		}
	}()

	p.advance()
	p.parseDeclarations()
	main := p.parseBlock(nil)
	p.expect(token.Dot)

	return &Program{Globals: p.global, Main: main, IDs: p.ids}, nil
}

// errorf raises a fatal parse error in the format spec §7 mandates,
// matching the lexer's own *Error.Error() ("Error at line L, col C: msg").
func (p *Parser) errorf(line, col int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	panic(parseError{fmt.Errorf("Error at line %d, col %d: %s", line, col, msg)})
}

func (p *Parser) advance() {
	tok, err := p.lex.Next()
	if err != nil {
		panic(parseError{err})
	}
	p.cur = tok
}

// expect requires the current token to have kind k, then advances past
// it; it is the workhorse behind every "require_token" call site in the
// grammar.
func (p *Parser) expect(k token.Kind) {
	if !p.cur.Is(k) {
		p.errorf(p.cur.Line, p.cur.Col, "expected %s, found %s %q", k, p.cur.Kind, p.cur.Literal)
	}
	p.advance()
}

func (p *Parser) lookup(scope *symbol.Table, name string) *symbol.Symbol {
	if scope != nil {
		if sym := scope.Lookup(name); sym != nil {
			return sym
		}
	}
	return p.global.Lookup(name)
}

// ---- declarations --------------------------------------------------

func (p *Parser) parseDeclarations() {
	for !p.cur.Is(token.KwBegin) {
		switch p.cur.Kind {
		case token.KwType:
			p.advance()
			p.parseTypeDecls()
		case token.KwVar:
			p.advance()
			p.parseVarDecl(p.global, false)
		case token.KwProcedure, token.KwFunction:
			p.parseProcOrFunc(p.cur.Kind)
		default:
			p.errorf(p.cur.Line, p.cur.Col, "expected a declaration or \"begin\", found %s", p.cur.Kind)
		}
	}
}

func (p *Parser) parseTypeDecls() {
	for p.cur.Is(token.Ident) {
		name := p.cur.Literal
		line, col := p.cur.Line, p.cur.Col
		if p.global.Contains(name) {
			p.errorf(line, col, "duplicate identifier %q", name)
		}
		p.advance()
		p.expect(token.Equal)
		typ := p.parseType()
		p.global.Insert(&symbol.Symbol{Name: name, Kind: symbol.SymTypeName, Type: typ})
		p.expect(token.Semicolon)
	}
}

// parseVarDecl parses one or more "name, name: type;" groups into tab.
// When isLocal is true, each variable is assigned a growing negative
// frame offset and the total byte count used is returned as FrameSize;
// otherwise variables are inserted as globals at offset 0.
func (p *Parser) parseVarDecl(tab *symbol.Table, isLocal bool) int {
	size := 0
	for p.cur.Is(token.Ident) {
		names := p.parseNameList()
		p.advance() // consume ':'
		typ := p.parseType()
		for _, name := range names {
			if tab.Contains(name) {
				p.errorf(p.cur.Line, p.cur.Col, "duplicate identifier %q", name)
			}
			sym := &symbol.Symbol{Name: name, Kind: symbol.SymVariable, Type: typ}
			if isLocal {
				size += typ.Size()
				sym.FrameOffset = -size
			} else {
				sym.Global = true
			}
			tab.Insert(sym)
		}
		p.expect(token.Semicolon)
	}
	return size
}

// parseNameList reads a comma-separated identifier list up to (but not
// consuming) the following colon.
func (p *Parser) parseNameList() []string {
	var names []string
	for {
		if !p.cur.Is(token.Ident) {
			p.errorf(p.cur.Line, p.cur.Col, "expected an identifier, found %s", p.cur.Kind)
		}
		names = append(names, p.cur.Literal)
		p.advance()
		if p.cur.Is(token.Colon) {
			break
		}
		p.expect(token.Comma)
	}
	return names
}

func (p *Parser) parseType() *symbol.Type {
	switch p.cur.Kind {
	case token.KwInteger:
		p.advance()
		return symbol.IntegerType
	case token.KwDouble:
		p.advance()
		return symbol.DoubleType
	case token.IntLit:
		lo := p.parseIntLiteral()
		p.advance()
		hi := lo
		if p.cur.Is(token.Dot) {
			p.advance()
			p.expect(token.Dot)
			hi = p.parseIntLiteral()
			p.advance()
		}
		return symbol.NewIntRangeType(lo, hi)
	case token.KwArray:
		p.advance()
		p.expect(token.LeftSquare)
		length := p.parseIntLiteral()
		p.advance()
		if p.cur.Is(token.Dot) {
			p.advance()
			p.expect(token.Dot)
			hi := p.parseIntLiteral()
			p.advance()
			length = hi - length + 1
		}
		p.expect(token.RightSquare)
		p.expect(token.KwOf)
		elem := p.parseType()
		return symbol.NewArrayType(elem, length)
	case token.KwRecord:
		p.advance()
		fields := symbol.NewTable()
		offset := 0
		for !p.cur.Is(token.KwEnd) {
			names := p.parseNameList()
			p.advance() // consume ':'
			ftype := p.parseType()
			for _, name := range names {
				fields.Insert(&symbol.Symbol{Name: name, Kind: symbol.SymVariable, Type: ftype, FieldOffset: offset})
				offset += ftype.Size()
			}
			if p.cur.Is(token.Semicolon) {
				p.advance()
			}
		}
		p.expect(token.KwEnd)
		return symbol.NewRecordType("record", fields)
	case token.Ident:
		name := p.cur.Literal
		line, col := p.cur.Line, p.cur.Col
		sym := p.global.Lookup(name)
		if sym == nil || sym.Kind != symbol.SymTypeName {
			p.errorf(line, col, "undefined type %q", name)
		}
		p.advance()
		return sym.Type
	default:
		p.errorf(p.cur.Line, p.cur.Col, "expected a type, found %s", p.cur.Kind)
		return nil
	}
}

func (p *Parser) parseIntLiteral() int {
	if !p.cur.Is(token.IntLit) {
		p.errorf(p.cur.Line, p.cur.Col, "expected an integer literal, found %s", p.cur.Kind)
	}
	n, err := strconv.Atoi(p.cur.Literal)
	if err != nil {
		p.errorf(p.cur.Line, p.cur.Col, "malformed integer literal %q", p.cur.Literal)
	}
	return n
}

// parseProcOrFunc parses a procedure or function declaration, including
// its parameter list and body. The symbol is inserted into the global
// table before the body is parsed, so a procedure can call itself. Inside
// a function's body its own name resolves to the local `result` alias,
// so a function cannot call itself by name.
func (p *Parser) parseProcOrFunc(kind token.Kind) {
	p.advance() // consume "procedure"/"function"
	if !p.cur.Is(token.Ident) {
		p.errorf(p.cur.Line, p.cur.Col, "expected a procedure/function name, found %s", p.cur.Kind)
	}
	name := p.cur.Literal
	line, col := p.cur.Line, p.cur.Col
	if p.global.Contains(name) {
		p.errorf(line, col, "duplicate identifier %q", name)
	}
	p.advance()

	locals := symbol.NewTable()
	var params []*symbol.Symbol
	nextOffset := 8
	if p.cur.Is(token.LeftRound) {
		p.advance()
		params, nextOffset = p.parseParams(locals)
		p.expect(token.RightRound)
	}

	var retType *symbol.Type
	if kind == token.KwFunction {
		p.expect(token.Colon)
		typeLine, typeCol := p.cur.Line, p.cur.Col
		retType = p.parseType()
		if retType.Kind == symbol.Array {
			p.errorf(typeLine, typeCol, "wrong return type form for a function: arrays are disallowed")
		}
		result := &symbol.Symbol{Name: "result", Kind: symbol.SymVariable, Type: retType, FrameOffset: nextOffset, ByRef: true}
		locals.InsertNamed("result", result)
		locals.InsertNamed(name, result)
	}
	p.expect(token.Semicolon)

	frameSize := 0
	if p.cur.Is(token.KwVar) {
		p.advance()
		frameSize = p.parseVarDecl(locals, true)
	}

	sym := &symbol.Symbol{
		Name:       name,
		Type:       retType,
		Params:     params,
		Locals:     locals,
		FrameSize:  frameSize,
		ReturnType: retType,
	}
	if kind == token.KwFunction {
		sym.Kind = symbol.SymFunction
	} else {
		sym.Kind = symbol.SymProcedure
	}
	p.global.Insert(sym)

	body := p.parseBlock(locals)
	p.expect(token.Semicolon)
	sym.Body = body
}

// parseParams parses a parameter list and inserts each parameter into
// locals with its declaration-order frame offset already assigned (spec
// §4.3: the caller pushes arguments left to right, so the last-declared
// parameter sits closest to the return address).
func (p *Parser) parseParams(locals *symbol.Table) ([]*symbol.Symbol, int) {
	var params []*symbol.Symbol
	for p.cur.Is(token.Ident) || p.cur.Is(token.KwVar) {
		byRef := false
		if p.cur.Is(token.KwVar) {
			byRef = true
			p.advance()
		}
		names := p.parseNameList()
		p.advance() // consume ':'
		typ := p.parseType()
		if !p.cur.Is(token.RightRound) {
			p.expect(token.Semicolon)
		}
		for _, name := range names {
			if locals.Contains(name) {
				p.errorf(p.cur.Line, p.cur.Col, "duplicate identifier %q", name)
			}
			sym := &symbol.Symbol{Name: name, Kind: symbol.SymVariable, Type: typ, ByRef: byRef}
			locals.Insert(sym)
			params = append(params, sym)
		}
	}
	offset := 8
	for i := len(params) - 1; i >= 0; i-- {
		params[i].FrameOffset = offset
		if params[i].ByRef {
			offset += 4
		} else {
			offset += params[i].Type.Size()
		}
	}
	return params, offset
}

// ---- statements ------------------------------------------------------

func (p *Parser) parseBlock(scope *symbol.Table) *ast.Block {
	line := p.cur.Line
	p.expect(token.KwBegin)
	stmts := p.parseStmtSeq(scope, token.KwEnd)
	p.expect(token.KwEnd)
	return &ast.Block{StmtBase: ast.StmtBase{LineNum: line}, Stmts: stmts}
}

// parseStmtSeq parses statements separated by ';' until term is seen.
// Statements after a break/continue are parsed (so later declarations'
// identifiers are still resolved and erroneous code still rejected) but
// dropped from the result, since they are unreachable.
func (p *Parser) parseStmtSeq(scope *symbol.Table, term token.Kind) []ast.Stmt {
	var stmts []ast.Stmt
	dead := false
	for !p.cur.Is(term) {
		s := p.parseStmt(scope)
		if !dead {
			stmts = append(stmts, s)
		}
		p.expect(token.Semicolon)
		if isBreakOrContinue(s) {
			dead = true
		}
	}
	return stmts
}

func isBreakOrContinue(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.Break, *ast.Continue:
		return true
	default:
		return false
	}
}

func (p *Parser) parseStmt(scope *symbol.Table) ast.Stmt {
	switch p.cur.Kind {
	case token.KwBegin:
		return p.parseBlock(scope)
	case token.KwWhile:
		return p.parseWhile(scope)
	case token.KwRepeat:
		return p.parseRepeat(scope)
	case token.KwIf:
		return p.parseIf(scope)
	case token.KwFor:
		return p.parseFor(scope)
	case token.KwBreak:
		line := p.cur.Line
		p.advance()
		return &ast.Break{StmtBase: ast.StmtBase{LineNum: line}}
	case token.KwContinue:
		line := p.cur.Line
		p.advance()
		return &ast.Continue{StmtBase: ast.StmtBase{LineNum: line}}
	case token.KwWrite, token.KwWriteln, token.KwRead, token.KwReadln:
		kind := p.cur.Kind
		line, col := p.cur.Line, p.cur.Col
		p.advance()
		return p.parseWriteRead(kind, scope, line, col)
	case token.Ident:
		return p.parseAssignmentOrCall(scope)
	default:
		p.errorf(p.cur.Line, p.cur.Col, "unexpected token %s in statement", p.cur.Kind)
		return nil
	}
}

func (p *Parser) parseAssignmentOrCall(scope *symbol.Table) ast.Stmt {
	name := p.cur.Literal
	line, col := p.cur.Line, p.cur.Col
	sym := p.lookup(scope, name)
	if sym == nil {
		p.errorf(line, col, "undeclared identifier %q", name)
	}
	p.advance()

	if p.cur.Is(token.Assign) || p.cur.Is(token.LeftSquare) || p.cur.Is(token.Dot) {
		target := p.parseIdentRef(sym, scope, line)
		p.expect(token.Assign)
		rhs := p.parseRel(scope)
		if err := symbol.CheckAssignable(target.Type(), rhs.Type()); err != nil {
			p.errorf(line, col, "%v", err)
		}
		resultType := chooseExprType(target.Type(), rhs.Type())
		assign := &ast.BinaryOp{ExprBase: ast.ExprBase{Typ: resultType, LineNum: line}, Op: token.Assign, Left: target, Right: rhs}
		return &ast.ExprStmt{StmtBase: ast.StmtBase{LineNum: line}, X: assign}
	}

	call := p.parseFunctionCall(sym, scope, line, col)
	return &ast.ExprStmt{StmtBase: ast.StmtBase{LineNum: line}, X: call}
}

func (p *Parser) parseWhile(scope *symbol.Table) ast.Stmt {
	line := p.cur.Line
	p.expect(token.KwWhile)

	var cond ast.Expr
	if p.cur.Is(token.LeftRound) {
		p.advance()
		cond = p.parseRel(scope)
		p.expect(token.RightRound)
	} else {
		cond = p.parseRel(scope)
	}
	p.expect(token.KwDo)

	if isFalseConst(cond) {
		p.parseStmt(scope)
		return &ast.EmptyStmt{StmtBase: ast.StmtBase{LineNum: line}}
	}
	body := p.parseStmt(scope)
	return &ast.While{StmtBase: ast.StmtBase{LineNum: line}, Cond: cond, Body: body}
}

func (p *Parser) parseRepeat(scope *symbol.Table) ast.Stmt {
	line := p.cur.Line
	p.expect(token.KwRepeat)
	stmts := p.parseStmtSeq(scope, token.KwUntil)
	p.expect(token.KwUntil)
	cond := p.parseRel(scope)
	body := &ast.Block{StmtBase: ast.StmtBase{LineNum: line}, Stmts: stmts}
	return &ast.Repeat{StmtBase: ast.StmtBase{LineNum: line}, Body: body, Cond: cond}
}

func (p *Parser) parseIf(scope *symbol.Table) ast.Stmt {
	line := p.cur.Line
	p.expect(token.KwIf)
	cond := p.parseRel(scope)
	p.expect(token.KwThen)
	thenStmt := p.parseStmt(scope)

	if !p.cur.Is(token.Semicolon) {
		p.expect(token.KwElse)
		elseStmt := p.parseStmt(scope)
		if isFalseConst(cond) {
			return elseStmt
		}
		return &ast.If{StmtBase: ast.StmtBase{LineNum: line}, Cond: cond, Then: thenStmt, Else: elseStmt}
	}

	if isFalseConst(cond) {
		return &ast.EmptyStmt{StmtBase: ast.StmtBase{LineNum: line}}
	}
	return &ast.If{StmtBase: ast.StmtBase{LineNum: line}, Cond: cond, Then: thenStmt, Else: &ast.EmptyStmt{StmtBase: ast.StmtBase{LineNum: line}}}
}

func (p *Parser) parseFor(scope *symbol.Table) ast.Stmt {
	line, col := p.cur.Line, p.cur.Col
	p.expect(token.KwFor)
	if !p.cur.Is(token.Ident) {
		p.errorf(p.cur.Line, p.cur.Col, "expected a loop variable, found %s", p.cur.Kind)
	}
	name := p.cur.Literal
	loopVar := p.lookup(scope, name)
	if loopVar == nil {
		p.errorf(p.cur.Line, p.cur.Col, "undeclared identifier %q", name)
	}
	loopVar.SetUsed()
	p.advance()

	p.expect(token.Assign)
	from := p.parseExpr(scope)
	if err := symbol.CheckAssignable(loopVar.Type, from.Type()); err != nil {
		p.errorf(line, col, "%v", err)
	}

	var down bool
	switch p.cur.Kind {
	case token.KwTo:
		down = false
	case token.KwDownto:
		down = true
	default:
		p.errorf(p.cur.Line, p.cur.Col, "expected \"to\" or \"downto\", found %s", p.cur.Kind)
	}
	p.advance()

	to := p.parseRel(scope)
	p.expect(token.KwDo)
	body := p.parseStmt(scope)

	if fromLit, ok := from.(*ast.IntLit); ok {
		if toLit, ok2 := to.(*ast.IntLit); ok2 {
			if (!down && fromLit.Value > toLit.Value) || (down && fromLit.Value < toLit.Value) {
				return &ast.EmptyStmt{StmtBase: ast.StmtBase{LineNum: line}}
			}
		}
	}
	return &ast.For{StmtBase: ast.StmtBase{LineNum: line}, Var: loopVar, From: from, To: to, Down: down, Body: body}
}

func (p *Parser) parseWriteRead(kind token.Kind, scope *symbol.Table, line, col int) ast.Stmt {
	var args []ast.Expr
	if p.cur.Is(token.LeftRound) {
		p.advance()
		if !p.cur.Is(token.RightRound) {
			for {
				e := p.parseRel(scope)
				p.checkWriteReadArg(kind, e, line, col)
				args = append(args, e)
				if !p.cur.Is(token.Comma) {
					break
				}
				p.advance()
			}
		}
		p.expect(token.RightRound)
	}

	switch kind {
	case token.KwWrite:
		return &ast.Write{StmtBase: ast.StmtBase{LineNum: line}, Args: args, Newline: false}
	case token.KwWriteln:
		return &ast.Write{StmtBase: ast.StmtBase{LineNum: line}, Args: args, Newline: true}
	case token.KwRead:
		return &ast.Read{StmtBase: ast.StmtBase{LineNum: line}, Targets: args, Newline: false}
	default: // token.KwReadln
		return &ast.Read{StmtBase: ast.StmtBase{LineNum: line}, Targets: args, Newline: true}
	}
}

func (p *Parser) checkWriteReadArg(kind token.Kind, e ast.Expr, line, col int) {
	if kind == token.KwWrite || kind == token.KwWriteln {
		if e.Type().IsScalar() || isStringLit(e) {
			return
		}
		p.errorf(line, col, "write/writeln arguments must be integer, double, or string")
	}
	if !e.Type().IsInteger() && e.Type().Kind != symbol.Double {
		p.errorf(line, col, "read/readln targets must be integer or double variables")
	}
}

func isStringLit(e ast.Expr) bool {
	_, ok := e.(*ast.StringLit)
	return ok
}

func isFalseConst(e ast.Expr) bool {
	if lit, ok := e.(*ast.IntLit); ok {
		return lit.Value == 0
	}
	return false
}

// parseIdentRef builds the lvalue/rvalue chain for a variable reference,
// peeling any number of array-index and record-field accesses (spec §9
// supplement: chained access is not limited to one level).
func (p *Parser) parseIdentRef(sym *symbol.Symbol, scope *symbol.Table, line int) ast.Expr {
	sym.SetUsed()
	var expr ast.Expr = &ast.VarRef{ExprBase: ast.ExprBase{Typ: sym.Type, LineNum: line}, Sym: sym}
	typ := sym.Type

	for {
		switch {
		case p.cur.Is(token.LeftSquare) && typ.Kind == symbol.Array:
			var indices []ast.Expr
			count := 0
			for p.cur.Is(token.LeftSquare) {
				p.advance()
				idx := p.parseExpr(scope)
				if !idx.Type().IsInteger() {
					p.errorf(p.cur.Line, p.cur.Col, "array index must be an integer expression")
				}
				p.expect(token.RightSquare)
				indices = append(indices, idx)
				count++
			}
			typ = typ.ElementKType(count)
			expr = &ast.ArrayAccess{ExprBase: ast.ExprBase{Typ: typ, LineNum: line}, Base: expr, Indices: indices}
		case p.cur.Is(token.Dot) && typ.Kind == symbol.Record:
			p.advance()
			if !p.cur.Is(token.Ident) {
				p.errorf(p.cur.Line, p.cur.Col, "expected a field name, found %s", p.cur.Kind)
			}
			fieldName := p.cur.Literal
			fsym := typ.Fields.Lookup(fieldName)
			if fsym == nil {
				p.errorf(p.cur.Line, p.cur.Col, "type %s has no field %q", typ, fieldName)
			}
			p.advance()
			typ = fsym.Type
			expr = &ast.RecordField{ExprBase: ast.ExprBase{Typ: typ, LineNum: line}, Base: expr, Field: fsym}
		default:
			return expr
		}
	}
}

func (p *Parser) parseFunctionCall(sym *symbol.Symbol, scope *symbol.Table, line, col int) ast.Expr {
	if !sym.IsCallable() {
		p.errorf(line, col, "%q is not a procedure or function", sym.Name)
	}
	sym.SetUsed()

	var args []ast.Expr
	if p.cur.Is(token.LeftRound) {
		p.advance()
		if !p.cur.Is(token.RightRound) {
			args = append(args, p.parseRel(scope))
			for p.cur.Is(token.Comma) {
				p.advance()
				args = append(args, p.parseRel(scope))
			}
		}
		p.expect(token.RightRound)
	}

	if len(args) != len(sym.Params) {
		p.errorf(line, col, "wrong number of arguments to %q: expected %d, got %d", sym.Name, len(sym.Params), len(args))
	}
	for i, a := range args {
		if err := symbol.CheckAssignable(sym.Params[i].Type, a.Type()); err != nil {
			p.errorf(line, col, "argument %d to %q: %v", i+1, sym.Name, err)
		}
	}

	return &ast.FunCall{ExprBase: ast.ExprBase{Typ: sym.ReturnType, LineNum: line}, Func: sym, Args: args}
}

// ---- expressions -------------------------------------------------

func (p *Parser) parseRel(scope *symbol.Table) ast.Expr {
	left := p.parseExpr(scope)
	for p.cur.IsRelOp() {
		op := p.cur
		p.advance()
		right := p.parseExpr(scope)
		left = p.combine(op, left, right)
	}
	return left
}

func (p *Parser) parseExpr(scope *symbol.Table) ast.Expr {
	left := p.parseTerm(scope)
	for p.cur.Kind == token.Plus || p.cur.Kind == token.Minus || p.cur.Kind == token.Or || p.cur.Kind == token.Xor {
		op := p.cur
		p.advance()
		right := p.parseTerm(scope)
		left = p.combine(op, left, right)
	}
	return left
}

func (p *Parser) parseTerm(scope *symbol.Table) ast.Expr {
	left := p.parseFactor(scope)
	for p.cur.Kind == token.Mul || p.cur.Kind == token.Div || p.cur.Kind == token.And || p.cur.Kind == token.Mod {
		op := p.cur
		p.advance()
		right := p.parseFactor(scope)
		left = p.combine(op, left, right)
	}
	return left
}

func (p *Parser) parseUnary(scope *symbol.Table) ast.Expr {
	op := p.cur
	p.advance()
	operand := p.parseFactor(scope)

	if op.Kind == token.Not && !operand.Type().IsInteger() {
		p.errorf(op.Line, op.Col, "not requires an integer operand")
	}
	if operand.IsConst() && op.Kind != token.Plus {
		return p.foldUnary(op, operand)
	}
	return &ast.UnaryOp{
		ExprBase: ast.ExprBase{Typ: operand.Type(), LineNum: op.Line, HigherPriority: operand.IsHigherPriority()},
		Op:       op.Kind,
		Operand:  operand,
	}
}

func (p *Parser) parseFactor(scope *symbol.Table) ast.Expr {
	switch p.cur.Kind {
	case token.Ident:
		name := p.cur.Literal
		line, col := p.cur.Line, p.cur.Col
		sym := p.lookup(scope, name)
		if sym == nil {
			p.errorf(line, col, "undeclared identifier %q", name)
		}
		p.advance()
		if p.cur.Is(token.LeftRound) || sym.IsCallable() {
			return p.parseFunctionCall(sym, scope, line, col)
		}
		return p.parseIdentRef(sym, scope, line)

	case token.IntLit:
		line, col := p.cur.Line, p.cur.Col
		v, err := strconv.ParseInt(p.cur.Literal, 10, 64)
		if err != nil {
			p.errorf(line, col, "malformed integer literal %q", p.cur.Literal)
		}
		p.advance()
		return &ast.IntLit{ExprBase: ast.ExprBase{Typ: symbol.IntegerType, LineNum: line}, Value: v}

	case token.DoubleLit:
		line, col := p.cur.Line, p.cur.Col
		v, err := strconv.ParseFloat(p.cur.Literal, 64)
		if err != nil {
			p.errorf(line, col, "malformed double literal %q", p.cur.Literal)
		}
		p.advance()
		sym := p.newDoubleConst(v)
		return &ast.DoubleLit{ExprBase: ast.ExprBase{Typ: symbol.DoubleType, LineNum: line}, Value: v, Sym: sym}

	case token.StringLit:
		line := p.cur.Line
		v := p.cur.Literal
		p.advance()
		sym := p.newStringConst(v)
		// A string literal's static type is integer: it is the address of
		// the data-segment bytes, per the write-argument dispatch rule
		// (spec §9 supplement).
		return &ast.StringLit{ExprBase: ast.ExprBase{Typ: symbol.IntegerType, LineNum: line}, Value: v, Sym: sym}

	case token.LeftRound:
		p.advance()
		e := p.parseRel(scope)
		e.SetHigherPriority()
		p.expect(token.RightRound)
		return e

	case token.Plus, token.Minus, token.Not:
		return p.parseUnary(scope)

	default:
		return &ast.EmptyExpr{ExprBase: ast.ExprBase{Typ: symbol.IntegerType, LineNum: p.cur.Line}}
	}
}

func (p *Parser) newDoubleConst(v float64) *symbol.Symbol {
	id := p.ids.NextDouble()
	name := fmt.Sprintf("dc_%d", id)
	sym := &symbol.Symbol{Name: name, Kind: symbol.SymConstant, Type: symbol.DoubleType, ConstID: id, ConstLiteral: formatDouble(v)}
	p.global.InsertNamed(name, sym)
	return sym
}

func (p *Parser) newStringConst(v string) *symbol.Symbol {
	id := p.ids.NextString()
	name := fmt.Sprintf("s_%d", id)
	sym := &symbol.Symbol{Name: name, Kind: symbol.SymConstant, Type: symbol.IntegerType, ConstID: id, ConstLiteral: v}
	p.global.InsertNamed(name, sym)
	return sym
}

func formatDouble(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ---- operator combination and constant folding ------------------

func isLogicalOp(k token.Kind) bool {
	return k == token.And || k == token.Or || k == token.Xor
}

func chooseExprType(a, b *symbol.Type) *symbol.Type {
	if a.Kind == symbol.Double || b.Kind == symbol.Double {
		return symbol.DoubleType
	}
	return symbol.IntegerType
}

// combine builds the node for left OP right: folding it to a constant
// when both sides are already constant and neither is walled off by
// explicit parenthesization (spec §4.2 rule 2), and additionally folding
// a trailing constant into the most recently built chain's right operand
// when possible (rule 3), so that "a + 3 + 4" collapses to "a + 7"
// without ever materializing the intermediate "3 + 4" node in the tree.
// Rule 3 applies only when the chain's operator is the same "+" or "*" as
// the new one, so that e.g. "a * 3 + 4" is never folded into "a * 7".
func (p *Parser) combine(op token.Token, left, right ast.Expr) ast.Expr {
	var resultType *symbol.Type
	if op.IsRelOp() {
		if err := symbol.CheckComparable(left.Type(), right.Type()); err != nil {
			p.errorf(op.Line, op.Col, "%v", err)
		}
		resultType = symbol.IntegerType
	} else {
		rt, err := symbol.CheckArithmetic(left.Type(), right.Type())
		if err != nil {
			p.errorf(op.Line, op.Col, "%v", err)
		}
		if isLogicalOp(op.Kind) && !rt.IsInteger() {
			p.errorf(op.Line, op.Col, "%s requires integer operands", op.Kind)
		}
		resultType = rt
	}

	hp := left.IsHigherPriority() || right.IsHigherPriority()
	if !hp && left.IsConst() && right.IsConst() {
		return p.fold(op, left, right)
	}
	if !hp {
		if bin, ok := left.(*ast.BinaryOp); ok && bin.Op == op.Kind && (op.Kind == token.Plus || op.Kind == token.Mul) && bin.Right.IsConst() && right.IsConst() {
			bin.Right = p.fold(op, bin.Right, right)
			bin.Typ = chooseExprType(bin.Left.Type(), bin.Right.Type())
			return bin
		}
	}

	return &ast.BinaryOp{ExprBase: ast.ExprBase{Typ: resultType, LineNum: op.Line}, Op: op.Kind, Left: left, Right: right}
}

func exprDoubleValue(e ast.Expr) float64 {
	switch v := e.(type) {
	case *ast.IntLit:
		return float64(v.Value)
	case *ast.DoubleLit:
		return v.Value
	default:
		return 0
	}
}

func exprIntValue(e ast.Expr) int64 {
	if v, ok := e.(*ast.IntLit); ok {
		return v.Value
	}
	return 0
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (p *Parser) intLit(v int64, line int) *ast.IntLit {
	return &ast.IntLit{ExprBase: ast.ExprBase{Typ: symbol.IntegerType, LineNum: line}, Value: v}
}

// foldDoubleResult wraps a folded double value, reusing the left
// operand's synthesized dc_N symbol in place when it has one (the usual
// case once a fold chain is underway) or allocating a fresh one when the
// left operand was a plain integer literal being promoted.
func (p *Parser) foldDoubleResult(v float64, reuse *symbol.Symbol, line int) ast.Expr {
	if reuse != nil {
		reuse.ConstLiteral = formatDouble(v)
		return &ast.DoubleLit{ExprBase: ast.ExprBase{Typ: symbol.DoubleType, LineNum: line}, Value: v, Sym: reuse}
	}
	sym := p.newDoubleConst(v)
	return &ast.DoubleLit{ExprBase: ast.ExprBase{Typ: symbol.DoubleType, LineNum: line}, Value: v, Sym: sym}
}

// foldBool erases whichever synthesized double symbols are no longer
// needed (a relational fold never keeps a dc_N: its result is an
// Integer) and returns the 0/1 result.
func (p *Parser) foldBool(b bool, leftSym *symbol.Symbol, line int) ast.Expr {
	if leftSym != nil {
		p.global.Erase(leftSym.Name)
		p.ids.UndoDouble()
	}
	return p.intLit(boolToInt(b), line)
}

// fold implements constant folding for a binary operator applied to two
// already-constant operands (spec §4.2). Relational operators always
// fold to an Integer 0/1, matching the type already assigned to a
// non-folded relational BinaryOp node (see combine).
func (p *Parser) fold(op token.Token, left, right ast.Expr) ast.Expr {
	line, col := op.Line, op.Col
	if left.Type().Kind == symbol.Double || right.Type().Kind == symbol.Double {
		d1 := exprDoubleValue(left)
		d2 := exprDoubleValue(right)

		var leftSym *symbol.Symbol
		if dl, ok := left.(*ast.DoubleLit); ok {
			leftSym = dl.Sym
		}
		if dl, ok := right.(*ast.DoubleLit); ok && dl.Sym != nil {
			p.global.Erase(dl.Sym.Name)
			p.ids.UndoDouble()
		}

		switch op.Kind {
		case token.Plus:
			return p.foldDoubleResult(d1+d2, leftSym, line)
		case token.Minus:
			return p.foldDoubleResult(d1-d2, leftSym, line)
		case token.Mul:
			return p.foldDoubleResult(d1*d2, leftSym, line)
		case token.Div:
			return p.foldDoubleResult(d1/d2, leftSym, line)
		case token.Mod:
			return p.foldDoubleResult(math.Mod(d1, d2), leftSym, line)
		case token.Lesser:
			return p.foldBool(d1 < d2, leftSym, line)
		case token.LesserEqual:
			return p.foldBool(d1 <= d2, leftSym, line)
		case token.Greater:
			return p.foldBool(d1 > d2, leftSym, line)
		case token.GreaterEqual:
			return p.foldBool(d1 >= d2, leftSym, line)
		case token.Equal:
			return p.foldBool(d1 == d2, leftSym, line)
		case token.NotEqual:
			return p.foldBool(d1 != d2, leftSym, line)
		default:
			p.errorf(line, col, "operator %s is not valid on double operands", op.Kind)
		}
	}

	i1 := exprIntValue(left)
	i2 := exprIntValue(right)
	switch op.Kind {
	case token.Plus:
		return p.intLit(wrapInt32(i1+i2), line)
	case token.Minus:
		return p.intLit(wrapInt32(i1-i2), line)
	case token.Mul:
		return p.intLit(wrapInt32(i1*i2), line)
	case token.Div:
		return p.intLit(wrapInt32(i1/i2), line)
	case token.Mod:
		return p.intLit(wrapInt32(i1%i2), line)
	case token.And:
		return p.intLit(boolToInt(i1 != 0 && i2 != 0), line)
	case token.Or:
		return p.intLit(boolToInt(i1 != 0 || i2 != 0), line)
	case token.Xor:
		return p.intLit(boolToInt((i1 != 0) != (i2 != 0)), line)
	case token.Lesser:
		return p.intLit(boolToInt(i1 < i2), line)
	case token.LesserEqual:
		return p.intLit(boolToInt(i1 <= i2), line)
	case token.Greater:
		return p.intLit(boolToInt(i1 > i2), line)
	case token.GreaterEqual:
		return p.intLit(boolToInt(i1 >= i2), line)
	case token.Equal:
		return p.intLit(boolToInt(i1 == i2), line)
	case token.NotEqual:
		return p.intLit(boolToInt(i1 != i2), line)
	default:
		p.errorf(line, col, "unexpected operator %s in constant expression", op.Kind)
		return nil
	}
}

// wrapInt32 truncates a folded integer result to 32-bit signed semantics
// (spec §8 boundary behavior): compile-time overflow silently wraps rather
// than erroring, matching the 32-bit integer representation every folded
// constant is eventually emitted as.
func wrapInt32(v int64) int64 {
	return int64(int32(v))
}

// foldUnary implements constant folding for a unary +/-/not applied to
// an already-constant operand.
func (p *Parser) foldUnary(op token.Token, operand ast.Expr) ast.Expr {
	if operand.Type().Kind == symbol.Double {
		v := -exprDoubleValue(operand)
		var sym *symbol.Symbol
		if dl, ok := operand.(*ast.DoubleLit); ok {
			sym = dl.Sym
		}
		return p.foldDoubleResult(v, sym, op.Line)
	}
	i := exprIntValue(operand)
	switch op.Kind {
	case token.Minus:
		i = wrapInt32(-i)
	case token.Not:
		i = boolToInt(i == 0)
	}
	return p.intLit(i, op.Line)
}
