package grammar

import "fmt"

// Lookahead construction follows the spontaneous/propagated technique.
// Every kernel item gets a private marker token injected into its
// spontaneous follow; wherever a marker surfaces in the closure, the
// owning kernel item must propagate its real lookahead to the closure
// item's destination. Marker tokens live above every real terminal token
// so they can share the ordered-set machinery.

type lalr1Builder struct {
	automaton *lr0Automaton
	prods     *ProductionSet
	first     *firstSet

	// markerBase is the largest real terminal token number; markers are
	// markerBase+1+kernelIndex, unique within one state.
	markerBase int

	// sentinelToken seeds the lookahead of the initial item.
	sentinelToken int
}

func genLookAheads(automaton *lr0Automaton, prods *ProductionSet, first *firstSet, markerBase, sentinelToken int) (*lalr1Builder, error) {
	b := &lalr1Builder{
		automaton:     automaton,
		prods:         prods,
		first:         first,
		markerBase:    markerBase,
		sentinelToken: sentinelToken,
	}
	if err := b.buildUpdateGraph(); err != nil {
		return nil, err
	}
	if err := b.propagate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *lalr1Builder) marker(kernelIndex int) int {
	return b.markerBase + 1 + kernelIndex
}

func (b *lalr1Builder) buildUpdateGraph() error {
	for n := 1; n < len(b.automaton.states); n++ {
		state := b.automaton.state(n)

		for i, it := range state.items[:state.kernelLen] {
			it.spont.insert(b.marker(i))
		}

		if err := b.spreadSpontaneous(state); err != nil {
			return err
		}

		for i, kItem := range state.items[:state.kernelLen] {
			m := b.marker(i)
			for j := state.kernelLen; j < len(state.items); j++ {
				cItem := state.items[j]
				if !cItem.spont.find(m) {
					continue
				}
				if cItem.descendant.valid() {
					kItem.updates = append(kItem.updates, cItem.descendant)
				} else if cItem.reducible {
					kItem.updates = append(kItem.updates, itemRef{state: n, item: j})
				}
			}
			if kItem.descendant.valid() {
				kItem.updates = append(kItem.updates, kItem.descendant)
			}
		}

		for _, it := range state.items {
			b.stripMarkers(it.spont)
		}
	}
	return nil
}

// spreadSpontaneous runs the in-state fixpoint: an item with a nonterminal
// at the dot injects FIRST of its tail into every closure item deriving
// that nonterminal, plus its own spontaneous set when the tail is
// nullable.
func (b *lalr1Builder) spreadSpontaneous(state *lrState) error {
	for {
		changed := false
		for _, it := range state.items {
			sym := it.dottedSymbol()
			if sym == nil || sym.Kind != SymbolKindNonTerminal {
				continue
			}

			tail, err := b.first.find(it.prod, it.dot+1)
			if err != nil {
				return err
			}

			for j := state.kernelLen; j < len(state.items); j++ {
				cItem := state.items[j]
				if cItem.prod.LHS != sym {
					continue
				}
				if cItem.spont.union(tail.tokens) {
					changed = true
				}
				if tail.empty {
					if cItem.spont.union(it.spont) {
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return nil
}

func (b *lalr1Builder) stripMarkers(s *intSet) {
	vals := s.elements()
	kept := vals[:0]
	for _, v := range vals {
		if v <= b.markerBase {
			kept = append(kept, v)
		}
	}
	s.vals = kept
}

// propagate computes the lookahead fixpoint from scratch. It is re-run
// after state splitting rewires the update graph.
func (b *lalr1Builder) propagate() error {
	totalItems := 0
	for n := 1; n < len(b.automaton.states); n++ {
		state := b.automaton.state(n)
		for _, it := range state.items {
			it.la = it.spont.clone()
		}
		totalItems += len(state.items)
	}

	ini := b.automaton.state(b.automaton.initial)
	ini.items[0].la.insert(b.sentinelToken)

	limit := totalItems * b.automaton.count()
	if limit < 1 {
		limit = 1
	}
	for sweep := 0; ; sweep++ {
		if sweep > limit {
			return fmt.Errorf("look-ahead propagation did not settle after %v sweeps", limit)
		}
		changed := false
		for n := 1; n < len(b.automaton.states); n++ {
			state := b.automaton.state(n)
			for _, kItem := range state.items[:state.kernelLen] {
				for _, ref := range kItem.updates {
					dest := b.automaton.state(ref.state).items[ref.item]
					if dest.la.union(kItem.la) {
						changed = true
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return nil
}
