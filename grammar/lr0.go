package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// itemRef addresses an item inside the state arena. States are numbered
// from 1; the zero value means "no reference".
type itemRef struct {
	state int
	item  int
}

func (r itemRef) valid() bool {
	return r.state != 0
}

// lrItem is one LR item instance inside one state. The same (production,
// dot) pair owns distinct instances in distinct states because lookahead
// bookkeeping is per state, and state splitting clones instances.
type lrItem struct {
	prod *Production
	dot  int

	kernel    bool
	reducible bool

	// spont is the follow set produced structurally in this state; la is
	// the full propagated lookahead. Both hold terminal token numbers,
	// plus marker tokens transiently while the update graph is built.
	spont *intSet
	la    *intSet

	// ancestors lists the items whose dot advance produced this kernel
	// item. descendant is the item this one shifts into. updates lists
	// the kernel items this one's lookahead flows into.
	ancestors  []itemRef
	descendant itemRef
	updates    []itemRef
}

func (it *lrItem) dottedSymbol() *Symbol {
	if it.dot >= it.prod.EffLen {
		return nil
	}
	return it.prod.RHS[it.dot]
}

// normDot advances past empty-flagged terminals so the dot always rests on
// a meaningful symbol or at the effective end.
func normDot(prod *Production, dot int) int {
	for dot < prod.EffLen {
		sym := prod.RHS[dot]
		if sym.Kind == SymbolKindTerminal && sym.Base().Flags.Has(SymbolFlagEmpty) {
			dot++
			continue
		}
		break
	}
	return dot
}

func newLRItem(prod *Production, dot int, kernel bool) *lrItem {
	dot = normDot(prod, dot)
	return &lrItem{
		prod:      prod,
		dot:       dot,
		kernel:    kernel,
		reducible: dot >= prod.EffLen,
		spont:     newIntSet(),
		la:        newIntSet(),
	}
}

type gotoEntry struct {
	sym   *Symbol
	state int
}

// lrState is one CFSM configuration. Kernel items come first in items;
// kernelLen marks the boundary.
type lrState struct {
	num       int
	items     []*lrItem
	kernelLen int

	gotos []gotoEntry

	// shiftReduces maps a terminal token to the production of a fused
	// shift-reduce action that replaced a successor state.
	shiftReduces map[int]int
}

func (s *lrState) findGoto(sym *Symbol) int {
	for _, g := range s.gotos {
		if g.sym == sym {
			return g.state
		}
	}
	return 0
}

func (s *lrState) setGoto(sym *Symbol, state int) {
	for i, g := range s.gotos {
		if g.sym == sym {
			s.gotos[i].state = state
			return
		}
	}
	s.gotos = append(s.gotos, gotoEntry{sym: sym, state: state})
}

// findItem locates the item instance for (prod, dot), normalized.
func (s *lrState) findItem(prod *Production, dot int) int {
	dot = normDot(prod, dot)
	for i, it := range s.items {
		if it.prod == prod && it.dot == dot {
			return i
		}
	}
	return -1
}

// lr0Automaton is the state arena. states[0] is a placeholder so state
// numbers are stable 1-based indices; splitting appends clones without
// disturbing existing numbers.
type lr0Automaton struct {
	states  []*lrState
	initial int
}

func (a *lr0Automaton) state(n int) *lrState {
	return a.states[n]
}

func (a *lr0Automaton) count() int {
	return len(a.states) - 1
}

func (a *lr0Automaton) addState(st *lrState) int {
	st.num = len(a.states)
	a.states = append(a.states, st)
	return st.num
}

func kernelKey(items []*lrItem, ordered bool) string {
	keys := make([]string, len(items))
	for i, it := range items {
		keys[i] = fmt.Sprintf("%v.%v", it.prod.Num, it.dot)
	}
	if !ordered {
		sort.Strings(keys)
	}
	return strings.Join(keys, "/")
}

// genLR0Automaton builds the canonical collection. When errorRepair is
// set, closure is depth-first and kernels are compared in order, because
// item order selects the continuation used by error repair.
func genLR0Automaton(prods *ProductionSet, opts *Options) (*lr0Automaton, error) {
	goal := prods.ByNum(1)
	if goal == nil {
		return nil, fmt.Errorf("the grammar has no productions")
	}

	automaton := &lr0Automaton{
		states: []*lrState{nil},
	}

	kernels := map[string]int{}

	iniItem := newLRItem(goal, 0, true)
	iniState := &lrState{
		items:        []*lrItem{iniItem},
		kernelLen:    1,
		shiftReduces: map[int]int{},
	}
	closeState(iniState, prods, opts.ErrorRepair)
	automaton.initial = automaton.addState(iniState)
	kernels[kernelKey(iniState.items[:1], opts.ErrorRepair)] = automaton.initial

	for n := 1; n < len(automaton.states); n++ {
		state := automaton.states[n]

		for _, sym := range transitionSymbols(state) {
			var srcIdx []int
			for i, it := range state.items {
				if it.dottedSymbol() == sym {
					srcIdx = append(srcIdx, i)
				}
			}

			// A lone terminal shift that completes its production
			// becomes a fused shift-reduce when requested.
			if opts.DefaultReduce && sym.Kind == SymbolKindTerminal && len(srcIdx) == 1 {
				it := state.items[srcIdx[0]]
				if normDot(it.prod, it.dot+1) >= it.prod.EffLen && it.prod.Num != 1 {
					state.shiftReduces[sym.Base().Token] = it.prod.Num
					continue
				}
			}

			kItems := make([]*lrItem, 0, len(srcIdx))
			for _, i := range srcIdx {
				it := state.items[i]
				kItems = append(kItems, newLRItem(it.prod, it.dot+1, true))
			}

			key := kernelKey(kItems, opts.ErrorRepair)
			target, known := kernels[key]
			if !known {
				next := &lrState{
					items:        kItems,
					kernelLen:    len(kItems),
					shiftReduces: map[int]int{},
				}
				closeState(next, prods, opts.ErrorRepair)
				target = automaton.addState(next)
				kernels[key] = target
			}

			state.setGoto(sym, target)

			tgt := automaton.states[target]
			for _, i := range srcIdx {
				it := state.items[i]
				j := tgt.findItem(it.prod, it.dot+1)
				if j < 0 {
					return nil, fmt.Errorf("kernel item not found in state %v", target)
				}
				it.descendant = itemRef{state: target, item: j}
				tgt.items[j].ancestors = append(tgt.items[j].ancestors, itemRef{state: n, item: i})
			}
		}
	}

	return automaton, nil
}

// transitionSymbols returns the dotted symbols of a state ordered by first
// appearance over the itemset.
func transitionSymbols(state *lrState) []*Symbol {
	var syms []*Symbol
	seen := map[*Symbol]bool{}
	for _, it := range state.items {
		sym := it.dottedSymbol()
		if sym == nil || seen[sym] {
			continue
		}
		seen[sym] = true
		syms = append(syms, sym)
	}
	return syms
}

func closeState(state *lrState, prods *ProductionSet, depthFirst bool) {
	known := map[[2]int]bool{}
	for _, it := range state.items {
		known[[2]int{it.prod.Num, it.dot}] = true
	}

	var expand func(it *lrItem)
	var queue []*lrItem

	add := func(prod *Production) *lrItem {
		dot := normDot(prod, 0)
		key := [2]int{prod.Num, dot}
		if known[key] {
			return nil
		}
		known[key] = true
		item := newLRItem(prod, 0, false)
		state.items = append(state.items, item)
		return item
	}

	expand = func(it *lrItem) {
		sym := it.dottedSymbol()
		if sym == nil || sym.Kind != SymbolKindNonTerminal {
			return
		}
		for _, prod := range prods.ByLHS(sym) {
			item := add(prod)
			if item == nil {
				continue
			}
			if depthFirst {
				expand(item)
			} else {
				queue = append(queue, item)
			}
		}
	}

	for _, it := range state.items[:state.kernelLen] {
		expand(it)
	}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		expand(it)
	}
}
