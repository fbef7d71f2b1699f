package peephole

import (
	"strings"
	"testing"

	cg "github.com/anthropic-exercises/pcc/internal/codegen"
	"github.com/anthropic-exercises/pcc/internal/parser"
)

// TestScenario6ConstantDeduplicationEndToEnd exercises spec §8 scenario 6
// through the full pipeline: parse, generate, then optimize. Assigning
// the same double literal to two variables should leave exactly one
// dq-declared constant behind after optimization, with both uses
// rewritten to reference it.
func TestScenario6ConstantDeduplicationEndToEnd(t *testing.T) {
	src := `var x, y: double;
begin
   x := 3.14;
   y := 3.14;
end.`
	p := parser.New(strings.NewReader(src))
	prog, err := p.Parse()
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	instrs := Optimize(cg.Generate(prog))

	dqCount := 0
	var survivor string
	for _, in := range instrs {
		if in.Op == cg.OpcodeDataDQ && in.Operands[1].Name == "3.14" {
			dqCount++
			survivor = in.Operands[0].Name
		}
	}
	if dqCount != 1 {
		t.Fatalf("expected exactly one dq 3.14 constant after optimization, found %d", dqCount)
	}

	for _, in := range instrs {
		for _, op := range in.Operands {
			if op.Kind == cg.OpSymbol && strings.Contains(op.Name, "3.14") {
				t.Fatalf("did not expect a literal-named operand: %v", op)
			}
			if op.Kind == cg.OpSymbol && strings.HasSuffix(op.Name, "dc_2") {
				t.Fatalf("expected every reference to be rewritten off the deduplicated constant, got %v referencing dc_2 instead of %s", op, survivor)
			}
		}
	}
}
