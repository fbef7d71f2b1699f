// Package peephole implements the fixpoint peephole optimizer of spec
// §4.4: a sliding window of instruction rewrites applied to the flat
// instruction list internal/codegen produces, repeated until a pass
// makes no further change.
package peephole

import (
	cg "github.com/anthropic-exercises/pcc/internal/codegen"
)

// Optimize rewrites instrs according to the fourteen rules of spec §4.4,
// looping pass after pass until none of them fire (fixpoint). It never
// mutates the input slice. Termination is guaranteed because instruction
// count, distinct label count, and distinct double-constant count never
// increase, and every rule either strictly decreases one of them or
// (rules 8 and 11) rewrites a single instruction into a form (xor R, R;
// inc R; dec R) that no single-instruction rule rewrites again.
func Optimize(instrs []cg.Instruction) []cg.Instruction {
	cur := append([]cg.Instruction(nil), instrs...)
	for {
		next, changed1 := windowPass(cur)
		next, changed2 := labelMergePass(next)
		next, changed3 := constDedupPass(next)
		cur = next
		if !changed1 && !changed2 && !changed3 {
			return cur
		}
	}
}

// windowPass applies the local, purely-adjacent rewrite rules (1-3, 6-13)
// in a single left-to-right scan.
func windowPass(instrs []cg.Instruction) ([]cg.Instruction, bool) {
	var out []cg.Instruction
	changed := false
	i := 0
	for i < len(instrs) {
		if i+1 < len(instrs) {
			a, b := instrs[i], instrs[i+1]

			// Rule 1 & 2: push X / pop Y.
			if a.Op == "push" && b.Op == "pop" && len(a.Operands) == 1 && len(b.Operands) == 1 {
				x, y := a.Operands[0], b.Operands[0]
				if _, isReg := y.IsRegister(); isReg {
					if x.Equal(y) {
						changed = true
						i += 2
						continue
					}
					out = append(out, cg.Insn2("mov", y, x))
					changed = true
					i += 2
					continue
				}
			}

			// Rule 3: pop R / push R.
			if a.Op == "pop" && b.Op == "push" && len(a.Operands) == 1 && len(b.Operands) == 1 {
				if _, isReg := a.Operands[0].IsRegister(); isReg && a.Operands[0].Equal(b.Operands[0]) {
					changed = true
					i += 2
					continue
				}
			}

			// Rule 6: jmp L / L:.
			if target, unconditional, isJump := a.IsJump(); isJump && unconditional {
				if lbl, isLabel := b.IsLabel(); isLabel && lbl == target {
					out = append(out, b)
					changed = true
					i += 2
					continue
				}
			}

			// Rule 7: two consecutive unconditional jumps.
			if _, aUncond, aIsJump := a.IsJump(); aIsJump && aUncond {
				if _, bUncond, bIsJump := b.IsJump(); bIsJump && bUncond {
					out = append(out, a)
					changed = true
					i += 2
					continue
				}
			}

			// Rule 12: mov R, 1 / dec R -> xor R, R.
			if a.Op == "mov" && b.Op == "dec" && len(a.Operands) == 2 && len(b.Operands) == 1 {
				if r, isReg := a.Operands[0].IsRegister(); isReg {
					if imm, isImm := a.Operands[1].IsImmediate(); isImm && imm == 1 {
						if r2, isReg2 := b.Operands[0].IsRegister(); isReg2 && r2 == r {
							out = append(out, cg.Insn2("xor", cg.Register(r), cg.Register(r)))
							changed = true
							i += 2
							continue
						}
					}
				}
			}

			// Rule 13: xor R, R followed by an instruction referencing R
			// as the destination of imul/idiv or the R-operand of
			// add/sub -> delete the second (R is still known-zero).
			if r, isXorRR := asXorRR(a); isXorRR && refersToAsSecondOperand(b, r) {
				out = append(out, a)
				changed = true
				i += 2
				continue
			}
		}

		cur := instrs[i]
		if rewritten, ok := singleRule(cur); ok {
			if rewritten != nil {
				out = append(out, *rewritten)
			}
			changed = true
			i++
			continue
		}
		out = append(out, cur)
		i++
	}
	return out, changed
}

// asXorRR reports whether in is "xor R, R" for some register R.
func asXorRR(in cg.Instruction) (cg.Reg, bool) {
	if in.Op != "xor" || len(in.Operands) != 2 {
		return "", false
	}
	r1, ok1 := in.Operands[0].IsRegister()
	r2, ok2 := in.Operands[1].IsRegister()
	if ok1 && ok2 && r1 == r2 {
		return r1, true
	}
	return "", false
}

// refersToAsSecondOperand reports whether in is one of the four
// instructions rule 13 names, with r as its register operand (the first
// operand for imul/idiv, the second for add/sub).
func refersToAsSecondOperand(in cg.Instruction, r cg.Reg) bool {
	switch in.Op {
	case "imul", "idiv":
		if len(in.Operands) < 1 {
			return false
		}
		reg, ok := in.Operands[0].IsRegister()
		return ok && reg == r
	case "add", "sub":
		if len(in.Operands) != 2 {
			return false
		}
		reg, ok := in.Operands[1].IsRegister()
		return ok && reg == r
	default:
		return false
	}
}

// singleRule applies the rewrite rules that only ever look at one
// instruction (8-11). It returns (nil, true) to mean "delete this
// instruction", (&replacement, true) to mean "rewrite it", or (nil,
// false) to mean "no rule applies, keep it as-is".
func singleRule(in cg.Instruction) (*cg.Instruction, bool) {
	switch in.Op {
	case "mov":
		if len(in.Operands) == 2 {
			// Rule 9: mov X, X.
			if in.Operands[0].Equal(in.Operands[1]) {
				return nil, true
			}
			// Rule 8: mov R, 0 -> xor R, R.
			if r, isReg := in.Operands[0].IsRegister(); isReg {
				if imm, isImm := in.Operands[1].IsImmediate(); isImm && imm == 0 {
					rewritten := cg.Insn2("xor", cg.Register(r), cg.Register(r))
					return &rewritten, true
				}
			}
		}
	case "add", "sub":
		if len(in.Operands) == 2 {
			if imm, isImm := in.Operands[1].IsImmediate(); isImm {
				// Rule 10: add/sub R, 0.
				if imm == 0 {
					return nil, true
				}
				// Rule 11: add R, 1 -> inc R; sub R, 1 -> dec R.
				if imm == 1 {
					if r, isReg := in.Operands[0].IsRegister(); isReg {
						op := "inc"
						if in.Op == "sub" {
							op = "dec"
						}
						rewritten := cg.Insn1(op, cg.Register(r))
						return &rewritten, true
					}
				}
			}
		}
	}
	return nil, false
}

// labelMergePass implements rules 4 and 5: two consecutive labels
// collapse into the second, and every jump target naming the deleted
// label is rewritten to the surviving one.
func labelMergePass(instrs []cg.Instruction) ([]cg.Instruction, bool) {
	renames := map[string]string{}
	var out []cg.Instruction
	changed := false
	i := 0
	for i < len(instrs) {
		if i+1 < len(instrs) {
			if l1, ok1 := instrs[i].IsLabel(); ok1 {
				if l2, ok2 := instrs[i+1].IsLabel(); ok2 {
					renames[l1] = l2
					changed = true
					i++
					continue
				}
			}
		}
		out = append(out, instrs[i])
		i++
	}
	if !changed {
		return instrs, false
	}
	resolve := func(name string) string {
		visited := map[string]bool{}
		for {
			next, ok := renames[name]
			if !ok || visited[name] {
				return name
			}
			visited[name] = true
			name = next
		}
	}
	for idx, in := range out {
		if target, _, isJump := in.IsJump(); isJump {
			if resolved := resolve(target); resolved != target {
				out[idx] = cg.Insn1(in.Op, cg.LabelRef(resolved))
			}
		}
	}
	return out, true
}

// constDedupPass implements rule 14: two double-constant declarations
// with identical literal values collapse into one, and every reference
// to the deleted name (as a sized operand or an "offset" operand) is
// rewritten to the surviving name.
func constDedupPass(instrs []cg.Instruction) ([]cg.Instruction, bool) {
	seenValue := map[string]string{}
	renames := map[string]string{}
	var out []cg.Instruction
	changed := false
	for _, in := range instrs {
		if in.Op == cg.OpcodeDataDQ {
			name := in.Operands[0].Name
			value := in.Operands[1].Name
			if first, ok := seenValue[value]; ok {
				renames[name] = first
				changed = true
				continue
			}
			seenValue[value] = name
		}
		out = append(out, in)
	}
	if !changed {
		return instrs, false
	}
	for idx, in := range out {
		out[idx] = rewriteSymbolRefs(in, renames)
	}
	return out, true
}

// rewriteSymbolRefs rewrites any operand of in naming an old data-segment
// symbol (via "offset name" or a sized reference like "qword ptr name")
// to its renamed target.
func rewriteSymbolRefs(in cg.Instruction, renames map[string]string) cg.Instruction {
	changed := false
	operands := make([]cg.Operand, len(in.Operands))
	for i, op := range in.Operands {
		if op.Kind != cg.OpSymbol {
			operands[i] = op
			continue
		}
		rewritten := op
		for old, next := range renames {
			if op.Name == "offset "+old {
				rewritten = cg.Offset(next)
				changed = true
			} else if op.Name == "qword ptr "+old {
				rewritten = cg.Sized("qword ptr", next)
				changed = true
			} else if op.Name == "dword ptr "+old {
				rewritten = cg.Sized("dword ptr", next)
				changed = true
			}
		}
		operands[i] = rewritten
	}
	if !changed {
		return in
	}
	out := in
	out.Operands = operands
	return out
}
