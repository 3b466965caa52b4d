package grammar

import (
	"reflect"
	"testing"
)

func TestIntSet(t *testing.T) {
	s := newIntSet(5, 1, 3, 5)
	if got := s.elements(); !reflect.DeepEqual(got, []int{1, 3, 5}) {
		t.Fatalf("the elements must be sorted and unique; got: %v", got)
	}
	if s.len() != 3 {
		t.Errorf("unexpected length; got: %v", s.len())
	}
	if !s.find(3) || s.find(2) {
		t.Error("find must report membership")
	}
	if s.insert(3) {
		t.Error("inserting a member must report no change")
	}
	if !s.insert(2) {
		t.Error("inserting a non-member must report a change")
	}
	if got := s.elements(); !reflect.DeepEqual(got, []int{1, 2, 3, 5}) {
		t.Fatalf("unexpected elements after insert; got: %v", got)
	}
	if !s.delete(2) || s.delete(4) {
		t.Error("delete must report whether the value was present")
	}
	if got := s.elements(); !reflect.DeepEqual(got, []int{1, 3, 5}) {
		t.Fatalf("unexpected elements after delete; got: %v", got)
	}
}

func TestIntSet_Union(t *testing.T) {
	s := newIntSet(1, 3)
	if s.union(newIntSet(1, 3)) {
		t.Error("a union adding nothing must report no change")
	}
	if !s.union(newIntSet(2, 3, 9)) {
		t.Error("a growing union must report a change")
	}
	if got := s.elements(); !reflect.DeepEqual(got, []int{1, 2, 3, 9}) {
		t.Fatalf("unexpected union result; got: %v", got)
	}
	if s.union(nil) {
		t.Error("a union with nil must report no change")
	}
}

func TestIntSet_IntersectDisjointEqual(t *testing.T) {
	a := newIntSet(1, 2, 3, 7)
	b := newIntSet(2, 7, 9)
	if got := a.intersect(b).elements(); !reflect.DeepEqual(got, []int{2, 7}) {
		t.Fatalf("unexpected intersection; got: %v", got)
	}
	if a.disjoint(b) {
		t.Error("sets sharing elements are not disjoint")
	}
	if !a.disjoint(newIntSet(4, 8)) {
		t.Error("sets sharing nothing are disjoint")
	}
	if !a.disjoint(nil) {
		t.Error("every set is disjoint from nil")
	}
	if !a.equal(newIntSet(7, 3, 2, 1)) {
		t.Error("equality must ignore insertion order")
	}
	if a.equal(b) {
		t.Error("different sets must not compare equal")
	}
}

func TestIntSet_Clone(t *testing.T) {
	a := newIntSet(1, 2)
	c := a.clone()
	c.insert(3)
	if a.find(3) {
		t.Error("mutating a clone must not affect the original")
	}
	if !c.find(1) || !c.find(2) {
		t.Error("a clone must keep the original elements")
	}
}

func TestSymbolSet(t *testing.T) {
	tab := NewSymbolTable()
	x := tab.Lookup("x", SymbolKindTerminal, LookupInsert)
	y := tab.Lookup("y", SymbolKindTerminal, LookupInsert)
	z := tab.Lookup("z", SymbolKindTerminal, LookupInsert)

	s := newSymbolSet(z, x)
	if got := s.elements(); len(got) != 2 || got[0] != x || got[1] != z {
		t.Fatalf("the elements must be ordered by allocation; got: %v", got)
	}
	if !s.find(z) || s.find(y) {
		t.Error("find must report membership")
	}
	if !s.union(newSymbolSet(y)) {
		t.Error("a growing union must report a change")
	}
	if got := s.elements(); len(got) != 3 || got[1] != y {
		t.Fatalf("unexpected union result; got: %v", got)
	}
	if got := s.intersect(newSymbolSet(y, z)).elements(); len(got) != 2 {
		t.Fatalf("unexpected intersection; got: %v", got)
	}
	if !s.delete(y) || s.delete(y) {
		t.Error("delete must report whether the symbol was present")
	}
	if !s.equal(newSymbolSet(x, z)) {
		t.Error("unexpected final set")
	}
}
