package peephole

import (
	"testing"

	cg "github.com/anthropic-exercises/pcc/internal/codegen"
)

func instrsEqual(t *testing.T, got, want []cg.Instruction) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d instructions, want %d\ngot:  %v\nwant: %v", len(got), len(want), render(got), render(want))
	}
	for i := range got {
		if got[i].String() != want[i].String() {
			t.Fatalf("instruction %d: got %q, want %q", i, got[i].String(), want[i].String())
		}
	}
}

func render(instrs []cg.Instruction) []string {
	out := make([]string, len(instrs))
	for i, in := range instrs {
		out[i] = in.String()
	}
	return out
}

func TestPushPopDifferentRegistersBecomesMov(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("push", cg.Register(cg.EAX)),
		cg.Insn1("pop", cg.Register(cg.ECX)),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn2("mov", cg.Register(cg.ECX), cg.Register(cg.EAX))}
	instrsEqual(t, got, want)
}

func TestPushPopSameOperandIsDeleted(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("push", cg.Register(cg.EAX)),
		cg.Insn1("pop", cg.Register(cg.EAX)),
	}
	got := Optimize(in)
	instrsEqual(t, got, nil)
}

func TestPopPushSameRegisterIsDeleted(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("pop", cg.Register(cg.EBX)),
		cg.Insn1("push", cg.Register(cg.EBX)),
	}
	got := Optimize(in)
	instrsEqual(t, got, nil)
}

func TestConsecutiveLabelsMergeAndRenameJumpTargets(t *testing.T) {
	// The jmp is kept one instruction away from its target label so this
	// case exercises rules 4/5 (label merge + rename) in isolation from
	// rule 6 (jmp-to-next-instruction), which would otherwise also fire.
	in := []cg.Instruction{
		cg.Insn1("jmp", cg.LabelRef("l_1")),
		cg.Insn1("call", cg.LabelRef("foo")),
		cg.Label("l_1"),
		cg.Label("l_2"),
		cg.Insn0("ret"),
	}
	got := Optimize(in)
	want := []cg.Instruction{
		cg.Insn1("jmp", cg.LabelRef("l_2")),
		cg.Insn1("call", cg.LabelRef("foo")),
		cg.Label("l_2"),
		cg.Insn0("ret"),
	}
	instrsEqual(t, got, want)
}

func TestJumpToNextInstructionIsDeleted(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("jmp", cg.LabelRef("l_1")),
		cg.Label("l_1"),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Label("l_1")}
	instrsEqual(t, got, want)
}

func TestSecondOfTwoUnconditionalJumpsIsDeleted(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("jmp", cg.LabelRef("a")),
		cg.Insn1("jmp", cg.LabelRef("b")),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn1("jmp", cg.LabelRef("a"))}
	instrsEqual(t, got, want)
}

func TestMovZeroBecomesXor(t *testing.T) {
	in := []cg.Instruction{cg.Insn2("mov", cg.Register(cg.EAX), cg.Imm32(0))}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn2("xor", cg.Register(cg.EAX), cg.Register(cg.EAX))}
	instrsEqual(t, got, want)
}

func TestMovSelfIsDeleted(t *testing.T) {
	in := []cg.Instruction{cg.Insn2("mov", cg.Register(cg.EAX), cg.Register(cg.EAX))}
	got := Optimize(in)
	instrsEqual(t, got, nil)
}

func TestAddSubZeroIsDeleted(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn2("add", cg.Register(cg.EAX), cg.Imm32(0)),
		cg.Insn2("sub", cg.Register(cg.EBX), cg.Imm32(0)),
	}
	got := Optimize(in)
	instrsEqual(t, got, nil)
}

func TestAddSubOneBecomesIncDec(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn2("add", cg.Register(cg.EAX), cg.Imm32(1)),
		cg.Insn2("sub", cg.Register(cg.EBX), cg.Imm32(1)),
	}
	got := Optimize(in)
	want := []cg.Instruction{
		cg.Insn1("inc", cg.Register(cg.EAX)),
		cg.Insn1("dec", cg.Register(cg.EBX)),
	}
	instrsEqual(t, got, want)
}

func TestMovOneThenDecBecomesXor(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn2("mov", cg.Register(cg.EAX), cg.Imm32(1)),
		cg.Insn1("dec", cg.Register(cg.EAX)),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn2("xor", cg.Register(cg.EAX), cg.Register(cg.EAX))}
	instrsEqual(t, got, want)
}

func TestXorThenImulOnSameRegisterDropsTheImul(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn2("xor", cg.Register(cg.EAX), cg.Register(cg.EAX)),
		cg.Insn2("imul", cg.Register(cg.EAX), cg.Imm32(7)),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn2("xor", cg.Register(cg.EAX), cg.Register(cg.EAX))}
	instrsEqual(t, got, want)
}

func TestXorThenAddWithRegisterAsSecondOperandDropsTheAdd(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn2("xor", cg.Register(cg.ECX), cg.Register(cg.ECX)),
		cg.Insn2("add", cg.Register(cg.EAX), cg.Register(cg.ECX)),
	}
	got := Optimize(in)
	want := []cg.Instruction{cg.Insn2("xor", cg.Register(cg.ECX), cg.Register(cg.ECX))}
	instrsEqual(t, got, want)
}

func TestDuplicateDoubleConstantsAreDeduplicated(t *testing.T) {
	in := []cg.Instruction{
		cg.DataDQ("dc_1", "3.14"),
		cg.DataDQ("dc_2", "3.14"),
		cg.Insn1("push", cg.Sized("qword ptr", "dc_1")),
		cg.Insn1("push", cg.Sized("qword ptr", "dc_2")),
		cg.Insn2("mov", cg.Register(cg.ESI), cg.Offset("dc_2")),
	}
	got := Optimize(in)
	want := []cg.Instruction{
		cg.DataDQ("dc_1", "3.14"),
		cg.Insn1("push", cg.Sized("qword ptr", "dc_1")),
		cg.Insn1("push", cg.Sized("qword ptr", "dc_1")),
		cg.Insn2("mov", cg.Register(cg.ESI), cg.Offset("dc_1")),
	}
	instrsEqual(t, got, want)
}

func TestOptimizeIsIdempotentAtFixpoint(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("push", cg.Register(cg.EAX)),
		cg.Insn1("pop", cg.Register(cg.ECX)),
		cg.Insn2("add", cg.Register(cg.EDX), cg.Imm32(1)),
		cg.Label("l_1"),
		cg.Label("l_2"),
		cg.Insn1("jmp", cg.LabelRef("l_1")),
	}
	once := Optimize(in)
	twice := Optimize(once)
	instrsEqual(t, twice, once)
}

func TestUnrelatedInstructionsAreLeftAlone(t *testing.T) {
	in := []cg.Instruction{
		cg.Insn1("push", cg.Imm32(14)),
		cg.Insn1("call", cg.LabelRef("printf")),
	}
	got := Optimize(in)
	instrsEqual(t, got, in)
}
