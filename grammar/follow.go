package grammar

// followSet maps each nonterminal to the terminals that can appear
// immediately after it in a sentential form. The table generator itself
// works from per-item lookaheads; follow sets exist for listings.
type followSet struct {
	set map[*Symbol]*intSet
}

func (flw *followSet) find(sym *Symbol) *intSet {
	return flw.set[sym]
}

func genFollowSet(prods *ProductionSet, first *firstSet, sentinelToken int) (*followSet, error) {
	flw := &followSet{set: map[*Symbol]*intSet{}}
	for _, prod := range prods.All()[1:] {
		if flw.set[prod.LHS] == nil {
			flw.set[prod.LHS] = newIntSet()
		}
	}

	goal := prods.ByNum(1).LHS
	flw.set[goal].insert(sentinelToken)

	for {
		more := false
		for _, prod := range prods.All()[1:] {
			for i, sym := range prod.RHS[:prod.EffLen] {
				if sym.Kind != SymbolKindNonTerminal {
					continue
				}
				acc := flw.set[sym]
				if acc == nil {
					acc = newIntSet()
					flw.set[sym] = acc
				}
				fst, err := first.find(prod, i+1)
				if err != nil {
					return nil, err
				}
				if acc.union(fst.tokens) {
					more = true
				}
				if fst.empty {
					if acc.union(flw.set[prod.LHS]) {
						more = true
					}
				}
			}
		}
		if !more {
			break
		}
	}
	return flw, nil
}
