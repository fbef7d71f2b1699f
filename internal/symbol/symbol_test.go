package symbol

import "testing"

func TestTableOrderedIteration(t *testing.T) {
	tab := NewTable()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		if err := tab.Insert(&Symbol{Name: n, Kind: SymVariable, Type: IntegerType}); err != nil {
			t.Fatalf("insert %q: %v", n, err)
		}
	}
	got := tab.InOrder()
	if len(got) != len(names) {
		t.Fatalf("expected %d symbols, got %d", len(names), len(got))
	}
	for i, n := range names {
		if got[i].Name != n {
			t.Fatalf("expected order %v, got %v at %d", names, got[i].Name, i)
		}
	}
}

func TestTableDuplicateInsertIsError(t *testing.T) {
	tab := NewTable()
	tab.Insert(&Symbol{Name: "x", Type: IntegerType})
	if err := tab.Insert(&Symbol{Name: "x", Type: IntegerType}); err == nil {
		t.Fatalf("expected duplicate identifier error")
	}
}

func TestTableEraseRemovesFromOrder(t *testing.T) {
	tab := NewTable()
	tab.InsertNamed("dc_1", &Symbol{Name: "dc_1", Type: DoubleType})
	tab.InsertNamed("dc_2", &Symbol{Name: "dc_2", Type: DoubleType})
	tab.Erase("dc_2")
	if tab.Contains("dc_2") {
		t.Fatalf("expected dc_2 to be erased")
	}
	if len(tab.InOrder()) != 1 {
		t.Fatalf("expected 1 remaining symbol, got %d", len(tab.InOrder()))
	}
}

func TestSizeConventions(t *testing.T) {
	arr := NewArrayType(IntegerType, 10)
	if arr.Size() != 40 {
		t.Fatalf("expected array size 40, got %d", arr.Size())
	}

	fields := NewTable()
	fields.Insert(&Symbol{Name: "x", Kind: SymVariable, Type: IntegerType, FieldOffset: 0})
	fields.Insert(&Symbol{Name: "y", Kind: SymVariable, Type: DoubleType, FieldOffset: 4})
	rec := NewRecordType("point", fields)
	if rec.Size() != 12 {
		t.Fatalf("expected record size 12 (4+8), got %d", rec.Size())
	}
	if rec.FlatCount() != 3 {
		t.Fatalf("expected flat count 3, got %d", rec.FlatCount())
	}
}

func TestCheckAssignableForbidsNarrowing(t *testing.T) {
	if err := CheckAssignable(IntegerType, DoubleType); err == nil {
		t.Fatalf("expected double->integer assignment to be forbidden")
	}
	if err := CheckAssignable(DoubleType, IntegerType); err != nil {
		t.Fatalf("expected integer->double assignment to widen, got %v", err)
	}
}

func TestCheckArithmeticWidensIntegerWithDouble(t *testing.T) {
	result, err := CheckArithmetic(IntegerType, DoubleType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != Double {
		t.Fatalf("expected widened result to be double, got %v", result)
	}
}

func TestArraysCompatibleOnlyByIdentity(t *testing.T) {
	a1 := NewArrayType(IntegerType, 5)
	a2 := NewArrayType(IntegerType, 5)
	if a1.Equal(a2) {
		t.Fatalf("expected distinct array type nodes to be incompatible")
	}
	if !a1.Equal(a1) {
		t.Fatalf("expected an array type to be compatible with itself")
	}
}

func TestElementKTypeAndSize(t *testing.T) {
	inner := NewArrayType(IntegerType, 3)
	outer := NewArrayType(inner, 4)
	if outer.ElementKType(1) != inner {
		t.Fatalf("expected element_k_type(1) to be the inner array")
	}
	if outer.ElementSize(1) != 12 {
		t.Fatalf("expected element_size(1) == 12, got %d", outer.ElementSize(1))
	}
	if outer.ElementKType(2) != IntegerType {
		t.Fatalf("expected element_k_type(2) to be integer")
	}
}
