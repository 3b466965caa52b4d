package grammar

import (
	"bytes"
	"testing"
)

func TestRangeClass(t *testing.T) {
	out, err := RangeClass(newCharNode([]byte{'0'}), newCharNode([]byte{'9'}))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes, []byte("0123456789")) {
		t.Errorf("unexpected class; got: %q", out.Bytes)
	}

	if _, err := RangeClass(newCharNode([]byte{'9'}), newCharNode([]byte{'0'})); err == nil {
		t.Error("a descending range must fail")
	}
	if _, err := RangeClass(newCharNode([]byte("ab")), newCharNode([]byte{'z'})); err == nil {
		t.Error("a multi-character bound must fail")
	}
}

func TestDiffClass(t *testing.T) {
	out, err := DiffClass(newClassNode([]byte("abcdef")), newClassNode([]byte("bdf")))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes, []byte("ace")) {
		t.Errorf("unexpected class; got: %q", out.Bytes)
	}

	single, err := DiffClass(newClassNode([]byte("xy")), newCharNode([]byte{'x'}))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(single.Bytes, []byte("y")) {
		t.Errorf("a single character is a valid operand; got: %q", single.Bytes)
	}

	if _, err := DiffClass(newCharNode([]byte("ab")), newCharNode([]byte{'a'})); err == nil {
		t.Error("a string operand must fail")
	}
}

func TestComplementClass(t *testing.T) {
	out, err := ComplementClass(newClassNode([]byte{0}))
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Bytes) != 255 {
		t.Fatalf("the complement of one byte has 255 members; got: %v", len(out.Bytes))
	}
	for _, b := range out.Bytes {
		if b == 0 {
			t.Error("the complement must not contain the operand")
		}
	}

	alt := newRegexNode(RegexOpAlt, newCharNode([]byte{'a'}), newClassNode([]byte("bc")))
	out, err = ComplementClass(alt)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Bytes) != 253 {
		t.Fatalf("an alternation of characters is a class; got %v members", len(out.Bytes))
	}

	if _, err := ComplementClass(newRegexNode(RegexOpClosure, newCharNode([]byte{'a'}))); err == nil {
		t.Error("a complex operand must fail")
	}
}

func TestExpandRepeat(t *testing.T) {
	out, err := ExpandRepeat(newCharNode([]byte{'a'}), 3)
	if err != nil {
		t.Fatal(err)
	}
	if out.Op != RegexOpConcat || len(out.Children) != 3 {
		t.Fatalf("unexpected expansion; got: %+v", out)
	}
	out.Children[0].Bytes[0] = 'z'
	if out.Children[1].Bytes[0] != 'a' {
		t.Error("the copies must not share storage")
	}

	if _, err := ExpandRepeat(newCharNode([]byte{'a'}), 0); err == nil {
		t.Error("a zero count must fail")
	}
}

func TestExpandRange(t *testing.T) {
	out, err := ExpandRange(newCharNode([]byte{'a'}), 2, 4)
	if err != nil {
		t.Fatal(err)
	}
	if out.Op != RegexOpAlt || len(out.Children) != 3 {
		t.Fatalf("the range 2:4 has three branches; got: %+v", out)
	}
	for i, c := range out.Children {
		if c.Op != RegexOpConcat || len(c.Children) != i+2 {
			t.Errorf("branch %v must hold %v copies; got: %v", i, i+2, len(c.Children))
		}
	}

	if _, err := ExpandRange(newCharNode([]byte{'a'}), 3, 2); err == nil {
		t.Error("a descending range must fail")
	}
}

func TestClassifyChars(t *testing.T) {
	tab := NewSymbolTable()
	digit := tab.Lookup("digit", SymbolKindDefinition, LookupInsert)
	digit.Regex = newClassNode([]byte("0123456789"))

	tests := []struct {
		caption string
		node    *RegexNode
		want    CharType
	}{
		{"epsilon", newLeafNode(RegexLeafEpsilon), EmptyCharacter},
		{"one byte", newCharNode([]byte{'a'}), SingleCharacter},
		{"byte sequence", newCharNode([]byte("ab")), CharacterString},
		{"class", newClassNode([]byte("ab")), CharacterClass},
		{"end of file", newLeafNode(RegexLeafEndOfFile), SingleCharacter},
		{"reference to a class", newRefNode(digit), CharacterClass},
		{"alternation of characters", newRegexNode(RegexOpAlt, newCharNode([]byte{'a'}), newCharNode([]byte{'b'})), CharacterClass},
		{"alternation with a string", newRegexNode(RegexOpAlt, newCharNode([]byte{'a'}), newCharNode([]byte("bc"))), ComplexExpression},
		{"concatenation of characters", newRegexNode(RegexOpConcat, newCharNode([]byte{'a'}), newCharNode([]byte{'b'})), CharacterString},
		{"closure", newRegexNode(RegexOpClosure, newCharNode([]byte{'a'})), ComplexExpression},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			if got := ClassifyChars(tt.node); got != tt.want {
				t.Errorf("want: %v, got: %v", tt.want, got)
			}
		})
	}
}

func TestFoldCase(t *testing.T) {
	single := newCharNode([]byte{'a'})
	FoldCase(single)
	if single.Leaf != RegexLeafClass || !bytes.Equal(single.Bytes, []byte("aA")) {
		t.Errorf("a letter must widen to both cases; got: %+v", single)
	}

	word := newCharNode([]byte("if2"))
	FoldCase(word)
	if word.Op != RegexOpConcat || len(word.Children) != 3 {
		t.Fatalf("a word must become a concatenation; got: %+v", word)
	}
	if !bytes.Equal(word.Children[0].Bytes, []byte("iI")) {
		t.Errorf("unexpected first element; got: %q", word.Children[0].Bytes)
	}
	if word.Children[2].Leaf != RegexLeafCharacter || !bytes.Equal(word.Children[2].Bytes, []byte("2")) {
		t.Errorf("a non-letter must stay a character; got: %+v", word.Children[2])
	}

	class := newClassNode([]byte("aBc3"))
	FoldCase(class)
	if !bytes.Equal(class.Bytes, []byte("aBc3AbC")) {
		t.Errorf("a class must gain the missing cases; got: %q", class.Bytes)
	}

	digits := newCharNode([]byte("123"))
	FoldCase(digits)
	if digits.Leaf != RegexLeafCharacter {
		t.Errorf("a letterless node must stay untouched; got: %+v", digits)
	}
}

func TestCopyTree(t *testing.T) {
	orig := newRegexNode(RegexOpConcat,
		newCharNode([]byte("ab")),
		newRegexNode(RegexOpClosure, newClassNode([]byte("xy"))))
	clone := CopyTree(orig)
	clone.Children[0].Bytes[0] = 'z'
	clone.Children[1].Children[0].Bytes = nil
	if orig.Children[0].Bytes[0] != 'a' {
		t.Error("a clone must not share byte storage")
	}
	if orig.Children[1].Children[0].Bytes == nil {
		t.Error("a clone must not share child nodes")
	}
	if CopyTree(nil) != nil {
		t.Error("copying nil yields nil")
	}
}
