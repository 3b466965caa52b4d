package grammar

import (
	"fmt"
	"sort"
)

// MaxCost saturates the steps and insert fixpoints and bounds every repair
// cost computed at runtime.
const MaxCost = 99999

// Production is one grammar rule. Productions are 1-indexed; production 1
// is the synthetic start production <Goal> -> <start> <sentinel>.
type Production struct {
	Num int
	LHS *Symbol
	RHS []*Symbol

	// EffLen is the index past the last non-empty terminal. Trailing
	// terminals flagged Empty stay in RHS but do not count toward the
	// length the parser pops.
	EffLen int

	// Semantic is the user action number fired when this production
	// reduces, 0 for none.
	Semantic int

	// Steps and Insert order the alternatives of one nonterminal so the
	// cheapest derivation comes first. Both saturate at MaxCost.
	Steps  int
	Insert int
}

func newProduction(lhs *Symbol, rhs []*Symbol, semantic int) (*Production, error) {
	if lhs == nil {
		return nil, fmt.Errorf("production LHS must be non-nil")
	}
	for _, sym := range rhs {
		if sym == nil {
			return nil, fmt.Errorf("production RHS for <%v> contains a nil symbol", lhs.Name)
		}
	}

	effLen := len(rhs)
	for effLen > 0 {
		last := rhs[effLen-1]
		if last.Kind == SymbolKindTerminal && last.Base().Flags.Has(SymbolFlagEmpty) {
			effLen--
			continue
		}
		break
	}

	return &Production{
		LHS:      lhs,
		RHS:      rhs,
		EffLen:   effLen,
		Semantic: semantic,
		Steps:    MaxCost,
		Insert:   MaxCost,
	}, nil
}

func (p *Production) isEmpty() bool {
	return p.EffLen == 0
}

// ProductionSet owns all productions in number order and indexes the
// alternatives of each nonterminal.
type ProductionSet struct {
	prods   []*Production // prods[0] unused
	byLHS   map[*Symbol][]*Production
	ordered []*Symbol // nonterminals in first-appearance order
}

func newProductionSet() *ProductionSet {
	return &ProductionSet{
		prods: []*Production{nil},
		byLHS: map[*Symbol][]*Production{},
	}
}

func (ps *ProductionSet) append(prod *Production) {
	prod.Num = len(ps.prods)
	ps.prods = append(ps.prods, prod)
	if _, ok := ps.byLHS[prod.LHS]; !ok {
		ps.ordered = append(ps.ordered, prod.LHS)
	}
	ps.byLHS[prod.LHS] = append(ps.byLHS[prod.LHS], prod)
}

// Count returns the number of productions.
func (ps *ProductionSet) Count() int {
	return len(ps.prods) - 1
}

// ByNum returns production n, or nil when out of range.
func (ps *ProductionSet) ByNum(n int) *Production {
	if n < 1 || n >= len(ps.prods) {
		return nil
	}
	return ps.prods[n]
}

// ByLHS returns the alternatives of a nonterminal in their current order.
func (ps *ProductionSet) ByLHS(lhs *Symbol) []*Production {
	return ps.byLHS[lhs]
}

// All returns every production in number order, index 0 unused.
func (ps *ProductionSet) All() []*Production {
	return ps.prods
}

// computeCosts runs the steps/insert fixpoint and then reorders the
// alternatives of every nonterminal by (steps, insert) ascending. The
// error-repair continuation depends on the cheapest alternative appearing
// first, so this runs under the ERRORREPAIR option. Production numbers
// are reassigned after the sort.
func (ps *ProductionSet) computeCosts() error {
	ntSteps := map[*Symbol]int{}
	ntInsert := map[*Symbol]int{}
	for _, lhs := range ps.ordered {
		ntSteps[lhs] = MaxCost
		ntInsert[lhs] = MaxCost
	}

	for {
		changed := false
		for _, prod := range ps.prods[1:] {
			steps := 1
			insert := 0
			for _, sym := range prod.RHS[:prod.EffLen] {
				if sym.Kind == SymbolKindTerminal {
					insert = satAdd(insert, sym.Base().InsertCost)
					continue
				}
				steps = satAdd(steps, ntSteps[sym])
				insert = satAdd(insert, ntInsert[sym])
			}
			if steps < prod.Steps {
				prod.Steps = steps
				changed = true
			}
			if insert < prod.Insert {
				prod.Insert = insert
				changed = true
			}
			if prod.Steps < ntSteps[prod.LHS] {
				ntSteps[prod.LHS] = prod.Steps
				changed = true
			}
			if prod.Insert < ntInsert[prod.LHS] {
				ntInsert[prod.LHS] = prod.Insert
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	for _, lhs := range ps.ordered {
		if ntSteps[lhs] >= MaxCost {
			return fmt.Errorf("nonterminal <%v> derives no terminal string", lhs.Name)
		}
	}

	for _, lhs := range ps.ordered {
		alts := ps.byLHS[lhs]
		sort.SliceStable(alts, func(i, j int) bool {
			if alts[i].Steps != alts[j].Steps {
				return alts[i].Steps < alts[j].Steps
			}
			return alts[i].Insert < alts[j].Insert
		})
	}

	// Renumber in LHS order so the emitted tables match the sorted
	// alternatives.
	renumbered := []*Production{nil}
	for _, lhs := range ps.ordered {
		for _, prod := range ps.byLHS[lhs] {
			prod.Num = len(renumbered)
			renumbered = append(renumbered, prod)
		}
	}
	ps.prods = renumbered

	return nil
}

func satAdd(a, b int) int {
	s := a + b
	if s >= MaxCost {
		return MaxCost
	}
	return s
}
