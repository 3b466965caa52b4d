package grammar

import "fmt"

type RegexOp byte

const (
	RegexOpNone      = RegexOp(0)
	RegexOpConcat    = RegexOp('.')
	RegexOpAlt       = RegexOp('|')
	RegexOpClosure   = RegexOp('*')
	RegexOpPositive  = RegexOp('+')
	RegexOpDiff      = RegexOp('-')
	RegexOpNot       = RegexOp('~')
	RegexOpRange     = RegexOp(':')
	RegexOpRepeat    = RegexOp('_')
	RegexOpLookahead = RegexOp('>')
)

type RegexLeafKind int

const (
	RegexLeafNone = RegexLeafKind(iota)
	RegexLeafEpsilon
	RegexLeafLookahead
	RegexLeafReference
	RegexLeafCharacter
	RegexLeafClass
	RegexLeafZeroByte
	RegexLeafEndOfFile
	RegexLeafSemantic
)

// RegexNode is one node of a scanner pattern tree. Internal nodes carry Op
// and Children; leaves carry Leaf plus the payload fields. Nodes are owned
// by their parent; CopyTree clones, never shares.
type RegexNode struct {
	Leaf     RegexLeafKind
	Op       RegexOp
	Children []*RegexNode

	Bytes []byte  // Character: byte sequence; Class: member bytes
	Ref   *Symbol // Reference target
	N     int     // Semantic number or Repeat count
}

func newLeafNode(kind RegexLeafKind) *RegexNode {
	return &RegexNode{Leaf: kind}
}

func newCharNode(bs []byte) *RegexNode {
	return &RegexNode{Leaf: RegexLeafCharacter, Bytes: bs}
}

func newClassNode(bs []byte) *RegexNode {
	return &RegexNode{Leaf: RegexLeafClass, Bytes: bs}
}

func newRefNode(sym *Symbol) *RegexNode {
	return &RegexNode{Leaf: RegexLeafReference, Ref: sym}
}

func newSemanticNode(n int) *RegexNode {
	return &RegexNode{Leaf: RegexLeafSemantic, N: n}
}

func newRegexNode(op RegexOp, children ...*RegexNode) *RegexNode {
	return &RegexNode{Op: op, Children: children}
}

func (n *RegexNode) isLeaf() bool {
	return n.Leaf != RegexLeafNone
}

// AppendChild adds a child at the tail of a list node.
func (n *RegexNode) AppendChild(c *RegexNode) {
	n.Children = append(n.Children, c)
}

// PrefixChild adds a child at the head of a list node.
func (n *RegexNode) PrefixChild(c *RegexNode) {
	n.Children = append([]*RegexNode{c}, n.Children...)
}

// CopyTree deep-clones a pattern tree.
func CopyTree(n *RegexNode) *RegexNode {
	if n == nil {
		return nil
	}
	c := &RegexNode{
		Leaf:  n.Leaf,
		Op:    n.Op,
		Bytes: append([]byte(nil), n.Bytes...),
		Ref:   n.Ref,
		N:     n.N,
	}
	for _, child := range n.Children {
		c.Children = append(c.Children, CopyTree(child))
	}
	return c
}

type CharType int

const (
	EmptyCharacter = CharType(iota)
	SingleCharacter
	CharacterClass
	CharacterString
	ComplexExpression
)

// ClassifyChars reports what kind of character expression a subtree
// denotes. Range and difference operands must classify as single
// characters or classes.
func ClassifyChars(n *RegexNode) CharType {
	switch n.Leaf {
	case RegexLeafEpsilon:
		return EmptyCharacter
	case RegexLeafCharacter:
		if len(n.Bytes) == 0 {
			return EmptyCharacter
		}
		if len(n.Bytes) == 1 {
			return SingleCharacter
		}
		return CharacterString
	case RegexLeafClass:
		return CharacterClass
	case RegexLeafZeroByte, RegexLeafEndOfFile:
		return SingleCharacter
	case RegexLeafReference:
		if n.Ref != nil && n.Ref.Regex != nil {
			return ClassifyChars(n.Ref.Regex)
		}
		return ComplexExpression
	case RegexLeafNone:
		switch n.Op {
		case RegexOpAlt:
			out := EmptyCharacter
			for _, c := range n.Children {
				switch ClassifyChars(c) {
				case SingleCharacter:
					if out == EmptyCharacter {
						out = SingleCharacter
					} else {
						out = CharacterClass
					}
				case CharacterClass:
					out = CharacterClass
				default:
					return ComplexExpression
				}
			}
			return out
		case RegexOpConcat:
			if len(n.Children) == 1 {
				return ClassifyChars(n.Children[0])
			}
			for _, c := range n.Children {
				switch ClassifyChars(c) {
				case SingleCharacter, CharacterString:
				default:
					return ComplexExpression
				}
			}
			return CharacterString
		}
		return ComplexExpression
	default:
		return ComplexExpression
	}
}

// classBytes collects the byte membership of a single-character or class
// expression. Returns false for anything more complex.
func classBytes(n *RegexNode) ([]byte, bool) {
	switch ClassifyChars(n) {
	case SingleCharacter:
		switch n.Leaf {
		case RegexLeafCharacter:
			return []byte{n.Bytes[0]}, true
		case RegexLeafZeroByte:
			return []byte{0}, true
		case RegexLeafReference:
			return classBytes(n.Ref.Regex)
		}
		return nil, false
	case CharacterClass:
		switch n.Leaf {
		case RegexLeafClass:
			return append([]byte(nil), n.Bytes...), true
		case RegexLeafReference:
			return classBytes(n.Ref.Regex)
		case RegexLeafNone:
			var out []byte
			seen := [256]bool{}
			for _, c := range n.Children {
				bs, ok := classBytes(c)
				if !ok {
					return nil, false
				}
				for _, b := range bs {
					if !seen[b] {
						seen[b] = true
						out = append(out, b)
					}
				}
			}
			return out, true
		}
	}
	return nil, false
}

// RangeClass builds the class [lo..hi] from two single-character operands.
func RangeClass(lo, hi *RegexNode) (*RegexNode, error) {
	lb, ok := classBytes(lo)
	if !ok || len(lb) != 1 {
		return nil, fmt.Errorf("the lower bound of a character range must be a single character")
	}
	hb, ok := classBytes(hi)
	if !ok || len(hb) != 1 {
		return nil, fmt.Errorf("the upper bound of a character range must be a single character")
	}
	if lb[0] > hb[0] {
		return nil, fmt.Errorf("invalid character range: %q > %q", lb[0], hb[0])
	}
	bs := make([]byte, 0, int(hb[0])-int(lb[0])+1)
	for b := int(lb[0]); b <= int(hb[0]); b++ {
		bs = append(bs, byte(b))
	}
	return newClassNode(bs), nil
}

// DiffClass removes the right class's bytes from the left class.
func DiffClass(left, right *RegexNode) (*RegexNode, error) {
	lb, ok := classBytes(left)
	if !ok {
		return nil, fmt.Errorf("the left operand of a difference must be a character or class")
	}
	rb, ok := classBytes(right)
	if !ok {
		return nil, fmt.Errorf("the right operand of a difference must be a character or class")
	}
	drop := [256]bool{}
	for _, b := range rb {
		drop[b] = true
	}
	var out []byte
	for _, b := range lb {
		if !drop[b] {
			out = append(out, b)
		}
	}
	return newClassNode(out), nil
}

// ComplementClass inverts a class over the byte alphabet. The end-of-file
// pseudo-byte is never a member.
func ComplementClass(operand *RegexNode) (*RegexNode, error) {
	bs, ok := classBytes(operand)
	if !ok {
		return nil, fmt.Errorf("the operand of a complement must be a character or class")
	}
	member := [256]bool{}
	for _, b := range bs {
		member[b] = true
	}
	var out []byte
	for b := 0; b < 256; b++ {
		if !member[b] {
			out = append(out, byte(b))
		}
	}
	return newClassNode(out), nil
}

// ExpandRepeat unrolls {r}n into n concatenated copies.
func ExpandRepeat(n *RegexNode, count int) (*RegexNode, error) {
	if count < 1 {
		return nil, fmt.Errorf("a repeat count must be >=1")
	}
	cat := newRegexNode(RegexOpConcat)
	for i := 0; i < count; i++ {
		cat.AppendChild(CopyTree(n))
	}
	return cat, nil
}

// ExpandRange unrolls {r}lo:hi into an alternation of lo..hi copies.
func ExpandRange(n *RegexNode, lo, hi int) (*RegexNode, error) {
	if lo < 1 || hi < lo {
		return nil, fmt.Errorf("invalid repetition range %v:%v", lo, hi)
	}
	alt := newRegexNode(RegexOpAlt)
	for count := lo; count <= hi; count++ {
		rep, err := ExpandRepeat(n, count)
		if err != nil {
			return nil, err
		}
		alt.AppendChild(rep)
	}
	return alt, nil
}

// FoldCase widens every letter in a tree to match both cases.
func FoldCase(n *RegexNode) {
	if n == nil {
		return
	}
	switch n.Leaf {
	case RegexLeafCharacter:
		// A multi-byte character leaf becomes a concatenation of
		// one-byte classes where letters occur.
		if !hasLetter(n.Bytes) {
			return
		}
		if len(n.Bytes) == 1 {
			b := n.Bytes[0]
			n.Leaf = RegexLeafClass
			n.Bytes = bothCases(b)
			return
		}
		cat := newRegexNode(RegexOpConcat)
		for _, b := range n.Bytes {
			if isLetter(b) {
				cat.AppendChild(newClassNode(bothCases(b)))
			} else {
				cat.AppendChild(newCharNode([]byte{b}))
			}
		}
		*n = *cat
	case RegexLeafClass:
		seen := [256]bool{}
		for _, b := range n.Bytes {
			seen[b] = true
		}
		for _, b := range n.Bytes {
			if isLetter(b) {
				for _, o := range bothCases(b) {
					if !seen[o] {
						seen[o] = true
						n.Bytes = append(n.Bytes, o)
					}
				}
			}
		}
	case RegexLeafNone:
		for _, c := range n.Children {
			FoldCase(c)
		}
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func hasLetter(bs []byte) bool {
	for _, b := range bs {
		if isLetter(b) {
			return true
		}
	}
	return false
}

func bothCases(b byte) []byte {
	switch {
	case b >= 'a' && b <= 'z':
		return []byte{b, b - 'a' + 'A'}
	case b >= 'A' && b <= 'Z':
		return []byte{b, b - 'A' + 'a'}
	default:
		return []byte{b}
	}
}
