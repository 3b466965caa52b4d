package lexical

import (
	"fmt"
	"sort"

	"github.com/sdtkit/sdt/spec"
)

// dfaState is one state of the subset construction. tokens lists, in
// ascending order, the tokens whose text ends in this state; final is
// the token the state accepts, zero when it accepts nothing.
type dfaState struct {
	set     *posSet
	next    [spec.MapCount]int
	tokens  []int
	final   int
	install bool
}

// genDFA runs the subset construction over the position table. The
// returned slice is 1-based with the initial state at index 1.
func genDFA(positions []*position, first *posSet) []*dfaState {
	states := []*dfaState{nil, newDFAState(first, positions)}
	index := map[string]int{first.key(): 1}
	for i := 1; i < len(states); i++ {
		st := states[i]
		for c := 0; c < spec.MapCount; c++ {
			var next *posSet
			for _, pi := range st.set.elements() {
				if positions[pi].hasChar(c) {
					if next == nil {
						next = newPosSet()
					}
					next.union(positions[pi].follow)
				}
			}
			if next == nil || next.len() == 0 {
				continue
			}
			key := next.key()
			j, ok := index[key]
			if !ok {
				j = len(states)
				states = append(states, newDFAState(next, positions))
				index[key] = j
			}
			st.next[c] = j
		}
	}
	return states
}

func newDFAState(set *posSet, positions []*position) *dfaState {
	st := &dfaState{set: set}
	seen := map[int]bool{}
	for _, pi := range set.elements() {
		p := positions[pi]
		if p.final != 0 && !seen[p.final] {
			seen[p.final] = true
			st.tokens = append(st.tokens, p.final)
		}
		// The lowest position number wins, so the earliest declared
		// pattern takes priority when several accept the same text.
		if p.token != 0 && st.final == 0 {
			st.final = p.token
			st.install = p.install
		}
	}
	sort.Ints(st.tokens)
	return st
}

// minimize partitions the states into distinguishability classes and
// returns the old-to-new renumbering plus the new state count. The
// initial state keeps number 1.
func minimize(states []*dfaState) ([]int, int) {
	group := make([]int, len(states))
	next := assignGroups(states, func(i int) string {
		st := states[i]
		return fmt.Sprint(st.final, st.install, st.tokens)
	})
	for {
		copy(group, next)
		next = assignGroups(states, func(i int) string {
			key := make([]int, 0, spec.MapCount+1)
			key = append(key, group[i])
			for _, n := range states[i].next {
				key = append(key, group[n])
			}
			return fmt.Sprint(key)
		})
		if sameGroups(group, next) {
			break
		}
	}
	count := 0
	for i := 1; i < len(next); i++ {
		if next[i] > count {
			count = next[i]
		}
	}
	return next, count
}

// assignGroups numbers the partition blocks in first-seen order, which
// keeps the initial state in block 1.
func assignGroups(states []*dfaState, key func(int) string) []int {
	group := make([]int, len(states))
	blocks := map[string]int{}
	for i := 1; i < len(states); i++ {
		k := key(i)
		g, ok := blocks[k]
		if !ok {
			g = len(blocks) + 1
			blocks[k] = g
		}
		group[i] = g
	}
	return group
}

func sameGroups(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
