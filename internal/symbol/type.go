// Package symbol implements the type system and symbol-table hierarchy of
// spec §3 and §4.1: scalar types (integer, double), fixed-size arrays,
// records, integer subranges, and the symbols (variable, constant, type,
// procedure/function) that carry them.
package symbol

import "fmt"

// Kind identifies which case of Type a value represents.
type Kind int

const (
	Invalid Kind = iota
	Integer
	Double
	Array
	Record
	IntRange
)

// Type is a node in the type system. Only the fields relevant to Kind are
// populated; see the comment on each field.
type Type struct {
	Kind Kind

	// Array
	Elem   *Type // element type
	Length int   // this dimension's length (>= 0)

	// Record
	Name   string  // label used in diagnostics; the parser sets "record" for every record type
	Fields *Table  // ordered name -> *Symbol (Kind == Variable), field offsets precomputed

	// IntRange
	Lo, Hi int
}

// Predeclared scalar types, inserted into the global symbol table at
// construction (spec §3 "Lifecycle").
var (
	IntegerType = &Type{Kind: Integer}
	DoubleType  = &Type{Kind: Double}
)

// NewArrayType builds a (possibly multi-dimensional, modeled as
// array-of-array) fixed-size array type.
func NewArrayType(elem *Type, length int) *Type {
	return &Type{Kind: Array, Elem: elem, Length: length}
}

// NewRecordType builds a record type whose fields live in the given table,
// with each field's FieldOffset already assigned by the caller.
func NewRecordType(name string, fields *Table) *Type {
	return &Type{Kind: Record, Name: name, Fields: fields}
}

// NewIntRangeType builds an integer subrange type. Per spec §9 the bounds
// are decorative: the type behaves exactly like Integer at every use site
// except pretty-printing (see DESIGN.md, Open Question "IntRange").
func NewIntRangeType(lo, hi int) *Type {
	return &Type{Kind: IntRange, Lo: lo, Hi: hi}
}

// Size returns the type's size in bytes, per spec §3's size conventions:
// integer=4, double=8, array=length*element size, record=sum of field
// sizes (no padding).
func (t *Type) Size() int {
	switch t.Kind {
	case Integer, IntRange:
		return 4
	case Double:
		return 8
	case Array:
		return t.Length * t.Elem.Size()
	case Record:
		total := 0
		for _, sym := range t.Fields.InOrder() {
			total += sym.Type.Size()
		}
		return total
	default:
		return 0
	}
}

// FlatCount returns the number of 4-byte slots this type occupies, used as
// the rep movsd count for block copies of arrays and records (spec §4.3).
func (t *Type) FlatCount() int {
	return t.Size() / 4
}

// IsScalar reports whether the type is integer or double.
func (t *Type) IsScalar() bool {
	return t.Kind == Integer || t.Kind == Double || t.Kind == IntRange
}

// IsInteger reports whether the type behaves as integer for arithmetic
// and indexing purposes (plain integer or a decorative subrange).
func (t *Type) IsInteger() bool {
	return t.Kind == Integer || t.Kind == IntRange
}

// IsAggregate reports whether the type is an array or record, whose values
// are moved with block copies rather than register loads/stores.
func (t *Type) IsAggregate() bool {
	return t.Kind == Array || t.Kind == Record
}

// ElementType returns the element type of an array, i.e. element_type.
func (t *Type) ElementType() *Type {
	if t.Kind != Array {
		return nil
	}
	return t.Elem
}

// ElementKType peels k index levels off a (possibly multi-dimensional)
// array type and returns the type of what remains, i.e. element_k_type(k).
func (t *Type) ElementKType(k int) *Type {
	cur := t
	for i := 0; i < k; i++ {
		if cur.Kind != Array {
			return cur
		}
		cur = cur.Elem
	}
	return cur
}

// ElementSize returns the size in bytes of the remainder after peeling k
// index levels, i.e. element_size(k).
func (t *Type) ElementSize(k int) int {
	return t.ElementKType(k).Size()
}

// Equal reports identity-based compatibility for arrays and records (same
// node) and structural equality for scalars, used by the type-compatibility
// rules in spec §4.1. Integer and every subrange count as the same type,
// since subrange bounds are decorative.
func (t *Type) Equal(other *Type) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	if t.IsInteger() && other.IsInteger() {
		return true
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Double:
		return true
	default:
		// Array and Record are compatible only by identity (same node);
		// having reached here means t != other, so they are not equal.
		return false
	}
}

func (t *Type) String() string {
	switch t.Kind {
	case Integer:
		return "integer"
	case Double:
		return "double"
	case IntRange:
		return fmt.Sprintf("%d..%d", t.Lo, t.Hi)
	case Array:
		return fmt.Sprintf("array[%d] of %s", t.Length, t.Elem)
	case Record:
		return "record " + t.Name
	default:
		return "<invalid type>"
	}
}

// CompatibleError is returned by CheckAssignable, CheckArithmetic and
// CheckComparable when two types cannot be combined in the given context;
// its Error() matches spec §4.1's wording.
type CompatibleError struct {
	To, From *Type
}

func (e *CompatibleError) Error() string {
	return fmt.Sprintf("impossible type conversion from %s to %s", e.From, e.To)
}

// CheckAssignable reports whether a value of type from can be assigned to
// a variable of type to (spec §4.1: same scalar kind; integer->double
// widening allowed; double->integer forbidden; array/record by identity).
func CheckAssignable(to, from *Type) error {
	if to.IsAggregate() || from.IsAggregate() {
		if to == from {
			return nil
		}
		return &CompatibleError{to, from}
	}
	if to.Equal(from) {
		return nil
	}
	if to.Kind == Double && from.IsInteger() {
		return nil
	}
	return &CompatibleError{to, from}
}

// CheckArithmetic reports whether two operand types may be combined in an
// arithmetic expression: same scalar kind, or an integer paired with a
// double (the integer is widened). Arrays/records are never arithmetic
// operands.
func CheckArithmetic(a, b *Type) (*Type, error) {
	if a.IsAggregate() || b.IsAggregate() {
		return nil, &CompatibleError{a, b}
	}
	if a.Kind == Double || b.Kind == Double {
		return DoubleType, nil
	}
	if a.IsInteger() && b.IsInteger() {
		return IntegerType, nil
	}
	return nil, &CompatibleError{a, b}
}

// CheckComparable reports whether two types may be compared (spec §4.1's
// compatibility rule applied to relational operators).
func CheckComparable(a, b *Type) error {
	if a.IsAggregate() || b.IsAggregate() {
		if a == b {
			return nil
		}
		return &CompatibleError{a, b}
	}
	if a.Equal(b) {
		return nil
	}
	if (a.Kind == Double && b.IsInteger()) || (b.Kind == Double && a.IsInteger()) {
		return nil
	}
	return &CompatibleError{a, b}
}
