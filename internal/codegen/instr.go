// Package codegen lowers a parsed program (internal/ast, internal/symbol)
// into a list of x86/MASM instructions (spec §4.3), for later peephole
// optimization (internal/peephole) and textual emission.
//
// The teacher's ygen (lang/ygen/emit.go) streams text straight to a
// bufio.Writer and never looks at its own output again. Our peephole pass
// has to pattern-match and rewrite pairs of already-emitted instructions
// (spec §4.4), so instructions here are a structured, mutable slice
// instead of a text stream; String() renders each one back to a
// tab-indented "mnemonic operand, operand" line.
package codegen

import (
	"fmt"
	"strings"
)

// OperandKind identifies which case of Operand a value represents.
type OperandKind int

const (
	OpNone OperandKind = iota
	OpReg
	OpImm
	OpMem
	OpLabelRef
	OpSymbol // "offset name" / "dword ptr name" / bare data-segment name
	OpRaw    // escape hatch for fixed text ("st", "st(1)", directive text, data-declaration fields, ...)
)

// Reg names the eight 32-bit general registers plus the two narrow ones
// the generator emits: "ax" (where fstsw stores the FPU status word) and
// "al" (the target of setcc).
type Reg string

const (
	EAX Reg = "eax"
	EBX Reg = "ebx"
	ECX Reg = "ecx"
	EDX Reg = "edx"
	ESI Reg = "esi"
	EDI Reg = "edi"
	EBP Reg = "ebp"
	ESP Reg = "esp"
	AX  Reg = "ax"
	AL  Reg = "al"
)

// Operand is a single instruction argument: a register, an immediate, a
// memory reference, a label reference, a data-segment symbol reference,
// or raw fixed text. Peephole rules compare operands with Equal, not
// String, so that two syntactically different renderings of the same
// value are never mistaken for a match.
type Operand struct {
	Kind OperandKind

	Reg   Reg    // OpReg
	Imm   int64  // OpImm
	Label string // OpLabelRef
	Name  string // OpSymbol, OpRaw

	// OpMem: [Base + Disp], or [Base] when Disp == 0. Ptr names the MASM
	// size prefix ("dword ptr", "qword ptr", ""), used by loads/stores of
	// a given width through a register holding an address.
	Base Reg
	Disp int64
	Ptr  string
}

// Register builds a register operand.
func Register(r Reg) Operand { return Operand{Kind: OpReg, Reg: r} }

// Imm32 builds an immediate integer operand.
func Imm32(v int64) Operand { return Operand{Kind: OpImm, Imm: v} }

// LabelRef builds a bare label operand, used as a jump/call target.
func LabelRef(name string) Operand { return Operand{Kind: OpLabelRef, Label: name} }

// Offset builds an "offset name" operand (the address of a data-segment
// symbol, spec §4.3's `push offset v_name`).
func Offset(name string) Operand { return Operand{Kind: OpSymbol, Name: "offset " + name} }

// Sized builds a "<ptr> name" operand referencing a data-segment symbol
// directly by its declared storage (spec §4.3's `push qword ptr dc_N`).
func Sized(ptr, name string) Operand { return Operand{Kind: OpSymbol, Name: ptr + " " + name} }

// Mem builds a "[base + disp]" memory operand, optionally sized.
func Mem(ptr string, base Reg, disp int64) Operand {
	return Operand{Kind: OpMem, Ptr: ptr, Base: base, Disp: disp}
}

// Raw builds an operand carrying arbitrary fixed text verbatim.
func Raw(text string) Operand { return Operand{Kind: OpRaw, Name: text} }

// Equal reports whether two operands denote the same value, used by the
// peephole matcher (spec §4.4 rules 1-3, 8-13) so that e.g. `push eax` /
// `pop eax` is recognized regardless of how each operand was built.
func (o Operand) Equal(other Operand) bool {
	if o.Kind != other.Kind {
		return false
	}
	switch o.Kind {
	case OpNone:
		return true
	case OpReg:
		return o.Reg == other.Reg
	case OpImm:
		return o.Imm == other.Imm
	case OpLabelRef:
		return o.Label == other.Label
	case OpSymbol, OpRaw:
		return o.Name == other.Name
	case OpMem:
		return o.Ptr == other.Ptr && o.Base == other.Base && o.Disp == other.Disp
	default:
		return false
	}
}

// IsRegister reports whether the operand is a bare register, and returns
// it.
func (o Operand) IsRegister() (Reg, bool) {
	if o.Kind == OpReg {
		return o.Reg, true
	}
	return "", false
}

// IsImmediate reports whether the operand is an immediate, and returns
// its value.
func (o Operand) IsImmediate() (int64, bool) {
	if o.Kind == OpImm {
		return o.Imm, true
	}
	return 0, false
}

func (o Operand) String() string {
	switch o.Kind {
	case OpNone:
		return ""
	case OpReg:
		return string(o.Reg)
	case OpImm:
		return fmt.Sprintf("%d", o.Imm)
	case OpLabelRef:
		return o.Label
	case OpSymbol, OpRaw:
		return o.Name
	case OpMem:
		var sb strings.Builder
		if o.Ptr != "" {
			sb.WriteString(o.Ptr)
			sb.WriteByte(' ')
		}
		sb.WriteByte('[')
		sb.WriteString(string(o.Base))
		if o.Disp > 0 {
			fmt.Fprintf(&sb, " + %d", o.Disp)
		} else if o.Disp < 0 {
			fmt.Fprintf(&sb, " - %d", -o.Disp)
		}
		sb.WriteByte(']')
		return sb.String()
	default:
		return "?"
	}
}

// Instruction is one line of emitted assembly: a mnemonic plus its
// operands. Labels, directives and data declarations are carried as
// meta-instructions (Op == OpcodeLabel / OpcodeDirective / OpcodeDataDD /
// OpcodeDataDQ / OpcodeDataDB) rather than a separate
// type, so that the peephole pass can walk a single flat []Instruction
// and still recognize labels and data declarations by Op (spec §4.4
// rules 4-7, 14).
type Instruction struct {
	Op       string
	Operands []Operand

	// Comment, when non-empty, is rendered as a trailing "; text" on the
	// line; purely diagnostic, never inspected by the peephole matcher.
	Comment string
}

// Meta-instruction opcodes. These do not correspond to real x86
// mnemonics; they let labels, data declarations, and raw include
// directives live in the same instruction list the peephole optimizer
// walks (spec §4.4 rule 4's "two consecutive labels" needs labels to be
// list elements, not a side channel).
const (
	OpcodeLabel     = "@label"
	OpcodeDirective = "@directive"
	OpcodeDataDD    = "@dd" // `name dd ?` or `name dd <value>`
	OpcodeDataDQ    = "@dq" // `name dq ?` or `name dq <value>`
	OpcodeDataDB    = "@db" // `name db '...', 0` or `name db <bytes>`
)

// Label returns a label meta-instruction ("l_3:").
func Label(name string) Instruction {
	return Instruction{Op: OpcodeLabel, Operands: []Operand{LabelRef(name)}}
}

// Directive returns a raw directive meta-instruction (an `include`
// line).
func Directive(text string) Instruction {
	return Instruction{Op: OpcodeDirective, Operands: []Operand{Raw(text)}}
}

// DataDD declares an uninitialized or constant-valued 4-byte datum.
func DataDD(name string, value string) Instruction {
	return Instruction{Op: OpcodeDataDD, Operands: []Operand{Raw(name), Raw(value)}}
}

// DataDQ declares an uninitialized or constant-valued 8-byte datum.
func DataDQ(name string, value string) Instruction {
	return Instruction{Op: OpcodeDataDQ, Operands: []Operand{Raw(name), Raw(value)}}
}

// DataDB declares a byte-string datum (a string literal, NUL-terminated).
func DataDB(name string, literal string) Instruction {
	return Instruction{Op: OpcodeDataDB, Operands: []Operand{Raw(name), Raw(literal)}}
}

// IsLabel reports whether the instruction is a label, returning its
// name.
func (in Instruction) IsLabel() (string, bool) {
	if in.Op == OpcodeLabel {
		return in.Operands[0].Label, true
	}
	return "", false
}

// jumpMnemonics is the closed set spec §4.4 names for label-rename and
// fixpoint purposes: "Jump detection recognizes jz jnz jne jg jge jl jle
// je jmp as jump instructions".
var jumpMnemonics = map[string]bool{
	"jz": true, "jnz": true, "jne": true, "jg": true,
	"jge": true, "jl": true, "jle": true, "je": true, "jmp": true,
}

// IsJump reports whether the instruction is a jump, and whether it is
// the unconditional form ("jmp").
func (in Instruction) IsJump() (target string, unconditional bool, ok bool) {
	if !jumpMnemonics[in.Op] {
		return "", false, false
	}
	return in.Operands[0].Label, in.Op == "jmp", true
}

func (in Instruction) String() string {
	var sb strings.Builder
	switch in.Op {
	case OpcodeLabel:
		fmt.Fprintf(&sb, "%s:", in.Operands[0].Label)
	case OpcodeDirective:
		fmt.Fprintf(&sb, "%s", in.Operands[0].Name)
	case OpcodeDataDD:
		fmt.Fprintf(&sb, "    %s dd %s", in.Operands[0].Name, in.Operands[1].Name)
	case OpcodeDataDQ:
		fmt.Fprintf(&sb, "    %s dq %s", in.Operands[0].Name, in.Operands[1].Name)
	case OpcodeDataDB:
		fmt.Fprintf(&sb, "    %s db %s", in.Operands[0].Name, in.Operands[1].Name)
	default:
		sb.WriteByte('\t')
		sb.WriteString(in.Op)
		if len(in.Operands) > 0 {
			sb.WriteByte(' ')
			parts := make([]string, len(in.Operands))
			for i, o := range in.Operands {
				parts[i] = o.String()
			}
			sb.WriteString(strings.Join(parts, ", "))
		}
	}
	if in.Comment != "" {
		sb.WriteString("\t; ")
		sb.WriteString(in.Comment)
	}
	return sb.String()
}

// Insn0 builds a zero-operand instruction (ret, cdq, rep movsd...).
func Insn0(op string) Instruction { return Instruction{Op: op} }

// Insn1 builds a one-operand instruction (push, pop, call, jmp...).
func Insn1(op string, a Operand) Instruction { return Instruction{Op: op, Operands: []Operand{a}} }

// Insn2 builds a two-operand instruction (mov, add, cmp...).
func Insn2(op string, a, b Operand) Instruction {
	return Instruction{Op: op, Operands: []Operand{a, b}}
}
