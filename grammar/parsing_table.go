package grammar

import "fmt"

// Action encoding in the emitted tables. The offsets leave room for every
// production number below ShiftOffset and every state number below
// -AcceptOffset.
const (
	ShiftOffset  = 10000
	AcceptOffset = -10000

	// ParseTableWidth bounds the token-indexed width of one parser row:
	// terminals plus nonterminals plus the unused column 0.
	ParseTableWidth = 128
)

type ActionType string

const (
	ActionTypeShift       = ActionType("shift")
	ActionTypeShiftReduce = ActionType("shift-reduce")
	ActionTypeReduce      = ActionType("reduce")
	ActionTypeAccept      = ActionType("accept")
	ActionTypeError       = ActionType("error")
)

// DecodeAction classifies a table cell.
func DecodeAction(v int) ActionType {
	switch {
	case v > ShiftOffset:
		return ActionTypeShift
	case v > 0:
		return ActionTypeShiftReduce
	case v == AcceptOffset:
		return ActionTypeAccept
	case v < 0:
		return ActionTypeReduce
	default:
		return ActionTypeError
	}
}

type conflictResolution string

const (
	resolvedByPrec   = conflictResolution("prec")
	resolvedByAssoc  = conflictResolution("assoc")
	resolvedBySplit  = conflictResolution("split")
	resolvedByNone   = conflictResolution("")
)

// Conflict describes one action-table collision and how it ended.
type Conflict struct {
	State      int
	Token      int
	ShiftState int         // 0 when reduce-reduce
	Prods      []int       // conflicting productions
	Kind       string      // "shift-reduce" or "reduce-reduce"
	ResolvedBy conflictResolution
	ChoseShift bool
}

// actionMatrix is the uncompressed parser table: rows are states (row 0
// unused), columns are token numbers for both terminals and nonterminals.
type actionMatrix struct {
	rows [][]int
	cols int
}

func newActionMatrix(states, cols int) *actionMatrix {
	m := &actionMatrix{
		rows: make([][]int, states+1),
		cols: cols,
	}
	for i := 1; i <= states; i++ {
		m.rows[i] = make([]int, cols)
	}
	return m
}

type tableBuildResult struct {
	matrix    *actionMatrix
	conflicts []*Conflict
	rrStates  []int // states with unresolved reduce-reduce conflicts
}

// genActionMatrix fills the action/goto matrix from the automaton and the
// propagated lookaheads. Shifts land first, then reduces; collisions are
// resolved by precedence under AMBIGUOUS, recorded for the splitter when
// reduce-reduce, and fatal otherwise. Accept lives on the goal symbol's
// goto column of the initial state, where the reduce of production 1
// lands.
func genActionMatrix(automaton *lr0Automaton, prods *ProductionSet, opts *Options, tnumber int, goalToken int, ntCount int) (*tableBuildResult, error) {
	cols := tnumber + ntCount + 1
	if cols > ParseTableWidth {
		return nil, fmt.Errorf("the grammar needs %v parse table columns; the limit is %v", cols, ParseTableWidth)
	}

	res := &tableBuildResult{
		matrix: newActionMatrix(automaton.count(), cols),
	}
	res.matrix.rows[automaton.initial][goalToken] = AcceptOffset

	for n := 1; n < len(automaton.states); n++ {
		state := automaton.state(n)
		row := res.matrix.rows[n]

		for _, g := range state.gotos {
			row[g.sym.Base().Token] = ShiftOffset + g.state
		}
		for tok, prod := range state.shiftReduces {
			row[tok] = prod
		}

		rrSeen := false
		for _, it := range state.items {
			if !it.reducible {
				continue
			}
			for _, tok := range it.la.elements() {
				if tok > tnumber {
					continue
				}
				cur := row[tok]
				if cur == 0 {
					row[tok] = -it.prod.Num
					continue
				}

				switch DecodeAction(cur) {
				case ActionTypeReduce:
					if -cur == it.prod.Num {
						continue
					}
					res.conflicts = append(res.conflicts, &Conflict{
						State: n,
						Token: tok,
						Prods: []int{-cur, it.prod.Num},
						Kind:  "reduce-reduce",
					})
					if !rrSeen {
						res.rrStates = append(res.rrStates, n)
						rrSeen = true
					}
				case ActionTypeShift, ActionTypeShiftReduce:
					c := &Conflict{
						State: n,
						Token: tok,
						Prods: []int{it.prod.Num},
						Kind:  "shift-reduce",
					}
					if cur > ShiftOffset {
						c.ShiftState = cur - ShiftOffset
					}
					if !opts.Ambiguous {
						res.conflicts = append(res.conflicts, c)
						return res, fmt.Errorf("shift-reduce conflict in state %v on token %v (declare AMBIGUOUS and precedences to resolve)", n, tok)
					}
					choseShift, resolvedBy, err := resolveShiftReduce(prods, it.prod, tok, opts)
					if err != nil {
						return res, fmt.Errorf("state %v, token %v: %v", n, tok, err)
					}
					c.ResolvedBy = resolvedBy
					c.ChoseShift = choseShift
					res.conflicts = append(res.conflicts, c)
					if !choseShift {
						row[tok] = -it.prod.Num
					}
				case ActionTypeAccept:
					// The sentinel never appears in a lookahead
					// set alongside an accept cell.
					return res, fmt.Errorf("state %v: reduce collides with accept", n)
				}
			}
		}
	}

	return res, nil
}

// resolveShiftReduce applies precedence and associativity. The reducing
// side uses the precedence of the last terminal on the production's RHS;
// the shifting side uses the token's own attributes.
func resolveShiftReduce(prods *ProductionSet, reduceProd *Production, shiftTok int, opts *Options) (bool, conflictResolution, error) {
	var reduceSym *Symbol
	for i := reduceProd.EffLen - 1; i >= 0; i-- {
		if reduceProd.RHS[i].Kind == SymbolKindTerminal {
			reduceSym = reduceProd.RHS[i].Base()
			break
		}
	}
	shiftSym := opts.tokenSymbol(shiftTok)
	if reduceSym == nil || reduceSym.Precedence == 0 {
		return false, resolvedByNone, fmt.Errorf("the reducing production has no precedence")
	}
	if shiftSym == nil || shiftSym.Precedence == 0 {
		return false, resolvedByNone, fmt.Errorf("the shifted token has no precedence")
	}

	switch {
	case reduceSym.Precedence > shiftSym.Precedence:
		return false, resolvedByPrec, nil
	case reduceSym.Precedence < shiftSym.Precedence:
		return true, resolvedByPrec, nil
	case shiftSym.Flags.Has(SymbolFlagLeft):
		return false, resolvedByAssoc, nil
	case shiftSym.Flags.Has(SymbolFlagRight):
		return true, resolvedByAssoc, nil
	default:
		return false, resolvedByNone, fmt.Errorf("equal precedence with no usable associativity")
	}
}

// genRepairValues selects the continuation value of every state: positive
// = shift that terminal, negative = reduce by that production, 0 = no
// repair possible. Item order matters, which is why closure is depth-first
// when repair is enabled.
func genRepairValues(automaton *lr0Automaton) []int {
	repair := make([]int, len(automaton.states))
	for n := 1; n < len(automaton.states); n++ {
		state := automaton.state(n)
		for _, it := range state.items {
			if it.reducible {
				repair[n] = -it.prod.Num
				break
			}
			sym := it.dottedSymbol()
			if sym.Kind == SymbolKindTerminal {
				repair[n] = sym.Base().Token
				break
			}
		}
	}
	return repair
}
