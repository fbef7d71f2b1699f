// Package idgen generates the small integer ids used to name synthesized
// symbols and labels: double-literal constants (dc_N), string-literal
// constants (s_N), and generated branch targets (l_N). Spec §9's design
// notes call for a single value threaded through the parser and code
// generator rather than process-level counters, so that running the
// compiler twice in the same process (as the test suite does) never
// leaks state between runs.
package idgen

// IdGen hands out increasing ids for each of the three namespaces it
// tracks; UndoDouble is the one call that gives an id back. The zero
// value is ready to use.
type IdGen struct {
	label  int
	str    int
	double int
}

// New returns a fresh generator with all counters at zero.
func New() *IdGen {
	return &IdGen{}
}

// NextLabel returns the next label id, used to synthesize l_N branch
// targets during code generation.
func (g *IdGen) NextLabel() int {
	g.label++
	return g.label
}

// NextString returns the next string-literal id, used to name s_N.
func (g *IdGen) NextString() int {
	g.str++
	return g.str
}

// NextDouble returns the next double-literal id, used to name dc_N.
func (g *IdGen) NextDouble() int {
	g.double++
	return g.double
}

// UndoDouble rolls back the most recent NextDouble call. Constant folding
// retracts a double literal's synthesized symbol when it is consumed into
// a folded result (spec §4.2), and the id it held is reused for the
// folded value rather than left to dangle.
func (g *IdGen) UndoDouble() {
	if g.double > 0 {
		g.double--
	}
}
