package grammar

import "fmt"

type firstEntry struct {
	tokens *intSet
	empty  bool
}

func newFirstEntry() *firstEntry {
	return &firstEntry{
		tokens: newIntSet(),
	}
}

func (e *firstEntry) addEmpty() bool {
	if !e.empty {
		e.empty = true
		return true
	}
	return false
}

type firstSet struct {
	set map[*Symbol]*firstEntry
}

func newFirstSet(prods *ProductionSet) *firstSet {
	fst := &firstSet{
		set: map[*Symbol]*firstEntry{},
	}
	for _, prod := range prods.All()[1:] {
		if _, ok := fst.set[prod.LHS]; ok {
			continue
		}
		fst.set[prod.LHS] = newFirstEntry()
	}
	return fst
}

// find computes FIRST of the RHS tail starting at head. Terminals flagged
// Empty are transparent.
func (fst *firstSet) find(prod *Production, head int) (*firstEntry, error) {
	entry := newFirstEntry()
	if head >= prod.EffLen {
		entry.addEmpty()
		return entry, nil
	}
	for _, sym := range prod.RHS[head:prod.EffLen] {
		if sym.Kind == SymbolKindTerminal {
			if sym.Base().Flags.Has(SymbolFlagEmpty) {
				continue
			}
			entry.tokens.insert(sym.Base().Token)
			return entry, nil
		}

		e := fst.set[sym]
		if e == nil {
			return nil, fmt.Errorf("an entry of FIRST was not found; symbol: <%v>", sym.Name)
		}
		entry.tokens.union(e.tokens)
		if !e.empty {
			return entry, nil
		}
	}
	entry.addEmpty()
	return entry, nil
}

func genFirstSet(prods *ProductionSet) (*firstSet, error) {
	fst := newFirstSet(prods)
	for {
		more := false
		for _, prod := range prods.All()[1:] {
			acc := fst.set[prod.LHS]
			changed, err := genProdFirstEntry(fst, acc, prod)
			if err != nil {
				return nil, err
			}
			if changed {
				more = true
			}
		}
		if !more {
			break
		}
	}
	return fst, nil
}

func genProdFirstEntry(fst *firstSet, acc *firstEntry, prod *Production) (bool, error) {
	if prod.isEmpty() {
		return acc.addEmpty(), nil
	}

	changed := false
	for _, sym := range prod.RHS[:prod.EffLen] {
		if sym.Kind == SymbolKindTerminal {
			if sym.Base().Flags.Has(SymbolFlagEmpty) {
				continue
			}
			if acc.tokens.insert(sym.Base().Token) {
				changed = true
			}
			return changed, nil
		}

		e := fst.set[sym]
		if e == nil {
			return false, fmt.Errorf("an entry of FIRST was not found; symbol: <%v>", sym.Name)
		}
		if acc.tokens.union(e.tokens) {
			changed = true
		}
		if !e.empty {
			return changed, nil
		}
	}
	if acc.addEmpty() {
		changed = true
	}
	return changed, nil
}
