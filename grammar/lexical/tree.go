package lexical

import (
	"fmt"
	"strings"

	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/spec"
)

const mapWords = spec.MapCount/32 + 1

// position is one important leaf of the scanner pattern forest. It
// carries the byte values the leaf consumes, the set of positions that
// may legally follow it, and the acceptance bookkeeping: token is
// non-zero when reaching the position recognizes that token, final is
// non-zero when the position marks where that token's text ends.
type position struct {
	bitmap  [mapWords]uint32
	follow  *posSet
	token   int
	final   int
	install bool
}

func (p *position) setChar(c int) {
	p.bitmap[c>>5] |= 1 << (c & 31)
}

func (p *position) hasChar(c int) bool {
	return p.bitmap[c>>5]&(1<<(c&31)) != 0
}

// posSet is a sorted vector of position numbers.
type posSet struct {
	vals []int
}

func newPosSet(vals ...int) *posSet {
	s := &posSet{}
	for _, v := range vals {
		s.insert(v)
	}
	return s
}

func (s *posSet) len() int {
	return len(s.vals)
}

func (s *posSet) insert(v int) bool {
	lo, hi := 0, len(s.vals)
	for lo < hi {
		mid := (lo + hi) / 2
		switch {
		case s.vals[mid] < v:
			lo = mid + 1
		case s.vals[mid] > v:
			hi = mid
		default:
			return false
		}
	}
	s.vals = append(s.vals, 0)
	copy(s.vals[lo+1:], s.vals[lo:])
	s.vals[lo] = v
	return true
}

func (s *posSet) union(other *posSet) bool {
	if other == nil || len(other.vals) == 0 {
		return false
	}
	merged := make([]int, 0, len(s.vals)+len(other.vals))
	i, j := 0, 0
	changed := false
	for i < len(s.vals) && j < len(other.vals) {
		switch {
		case s.vals[i] < other.vals[j]:
			merged = append(merged, s.vals[i])
			i++
		case s.vals[i] > other.vals[j]:
			merged = append(merged, other.vals[j])
			j++
			changed = true
		default:
			merged = append(merged, s.vals[i])
			i++
			j++
		}
	}
	merged = append(merged, s.vals[i:]...)
	if j < len(other.vals) {
		merged = append(merged, other.vals[j:]...)
		changed = true
	}
	s.vals = merged
	return changed
}

func (s *posSet) elements() []int {
	return s.vals
}

// key returns a map key unique to the set's membership.
func (s *posSet) key() string {
	var b strings.Builder
	b.Grow(len(s.vals) * 3)
	for _, v := range s.vals {
		b.WriteByte(byte(v))
		b.WriteByte(byte(v >> 8))
		b.WriteByte(byte(v >> 16))
	}
	return b.String()
}

// nodeAttrs aggregates the followpos attributes of a subtree.
type nodeAttrs struct {
	nullable bool
	first    *posSet
	last     *posSet
}

type treeBuilder struct {
	positions []*position
	token     int
	marked    bool
}

func (b *treeBuilder) alloc() (int, *position) {
	p := &position{follow: newPosSet()}
	b.positions = append(b.positions, p)
	return len(b.positions) - 1, p
}

// genPositions numbers the important leaves of the scanner forest and
// computes the follow relation. The returned slice is 1-based; the set
// is the initial state of the subset construction.
func genPositions(root *grammar.RegexNode) ([]*position, *posSet, error) {
	b := &treeBuilder{positions: []*position{nil}}
	first := newPosSet()
	for _, branch := range root.Children {
		ref := trailingRef(branch)
		if ref == nil {
			return nil, nil, fmt.Errorf("a scanner pattern lacks its token marker")
		}
		b.token = ref.Token
		b.marked = hasLookahead(branch)
		attrs, err := b.walk(branch)
		if err != nil {
			return nil, nil, err
		}
		first.union(attrs.first)
	}
	return b.positions, first, nil
}

// trailingRef finds the token marker at the tail of a scanner branch.
func trailingRef(n *grammar.RegexNode) *grammar.Symbol {
	for n != nil && n.Leaf == grammar.RegexLeafNone &&
		n.Op == grammar.RegexOpConcat && len(n.Children) > 0 {
		n = n.Children[len(n.Children)-1]
	}
	if n != nil && n.Leaf == grammar.RegexLeafReference {
		return n.Ref
	}
	return nil
}

func hasLookahead(n *grammar.RegexNode) bool {
	if n.Leaf == grammar.RegexLeafLookahead {
		return true
	}
	for _, c := range n.Children {
		if hasLookahead(c) {
			return true
		}
	}
	return false
}

func (b *treeBuilder) walk(n *grammar.RegexNode) (nodeAttrs, error) {
	switch n.Leaf {
	case grammar.RegexLeafEpsilon, grammar.RegexLeafSemantic:
		return nodeAttrs{nullable: true, first: newPosSet(), last: newPosSet()}, nil
	case grammar.RegexLeafCharacter:
		return b.walkString(n.Bytes), nil
	case grammar.RegexLeafClass:
		i, p := b.alloc()
		for _, c := range n.Bytes {
			p.setChar(int(c))
		}
		return nodeAttrs{first: newPosSet(i), last: newPosSet(i)}, nil
	case grammar.RegexLeafZeroByte:
		i, p := b.alloc()
		p.setChar(0)
		return nodeAttrs{first: newPosSet(i), last: newPosSet(i)}, nil
	case grammar.RegexLeafEndOfFile:
		i, p := b.alloc()
		p.setChar(spec.EOFChar)
		return nodeAttrs{first: newPosSet(i), last: newPosSet(i)}, nil
	case grammar.RegexLeafLookahead:
		// The marker consumes nothing. Reaching it records where the
		// token's text ends; the scan continues through the trailing
		// context to the accepting position.
		i, p := b.alloc()
		p.final = b.token
		return nodeAttrs{nullable: true, first: newPosSet(i), last: newPosSet(i)}, nil
	case grammar.RegexLeafReference:
		i, p := b.alloc()
		p.token = n.Ref.Token
		p.install = n.Ref.Flags.Has(grammar.SymbolFlagInstall)
		if !b.marked {
			p.final = n.Ref.Token
		}
		return nodeAttrs{nullable: true, first: newPosSet(i), last: newPosSet(i)}, nil
	}

	switch n.Op {
	case grammar.RegexOpConcat:
		acc := nodeAttrs{nullable: true, first: newPosSet(), last: newPosSet()}
		for _, c := range n.Children {
			attrs, err := b.walk(c)
			if err != nil {
				return nodeAttrs{}, err
			}
			for _, l := range acc.last.elements() {
				b.positions[l].follow.union(attrs.first)
			}
			if acc.nullable {
				acc.first.union(attrs.first)
			}
			if attrs.nullable {
				acc.last.union(attrs.last)
			} else {
				acc.last = attrs.last
			}
			acc.nullable = acc.nullable && attrs.nullable
		}
		return acc, nil
	case grammar.RegexOpAlt:
		acc := nodeAttrs{first: newPosSet(), last: newPosSet()}
		for _, c := range n.Children {
			attrs, err := b.walk(c)
			if err != nil {
				return nodeAttrs{}, err
			}
			acc.nullable = acc.nullable || attrs.nullable
			acc.first.union(attrs.first)
			acc.last.union(attrs.last)
		}
		return acc, nil
	case grammar.RegexOpClosure, grammar.RegexOpPositive:
		attrs, err := b.walk(n.Children[0])
		if err != nil {
			return nodeAttrs{}, err
		}
		for _, l := range attrs.last.elements() {
			b.positions[l].follow.union(attrs.first)
		}
		if n.Op == grammar.RegexOpClosure {
			attrs.nullable = true
		}
		return attrs, nil
	}
	return nodeAttrs{}, fmt.Errorf("unexpected operator %q in a lowered scanner pattern", n.Op)
}

// walkString chains one position per byte of a literal.
func (b *treeBuilder) walkString(bs []byte) nodeAttrs {
	if len(bs) == 0 {
		return nodeAttrs{nullable: true, first: newPosSet(), last: newPosSet()}
	}
	var head, prev int
	for k, c := range bs {
		i, p := b.alloc()
		p.setChar(int(c))
		if k == 0 {
			head = i
		} else {
			b.positions[prev].follow.insert(i)
		}
		prev = i
	}
	return nodeAttrs{first: newPosSet(head), last: newPosSet(prev)}
}
