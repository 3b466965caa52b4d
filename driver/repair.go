package driver

import (
	"fmt"
	"strings"
)

type repairChoice struct {
	token  int
	prefix int
	cost   int
}

// repairError finds and applies a locally least-cost repair of the
// syntax error at the front of the token queue: a mix of deleted input
// tokens and tokens inserted from the continuation, chosen so that
// parsing can proceed.
func (p *Parser) repairError() error {
	t := p.tables

	// Copy the parse-stack states, then apply queued reduces while the
	// top is a shift-reduce placeholder so the top is a real state.
	p.errstack = p.errstack[:0]
	for _, e := range p.parstack {
		p.errstack = append(p.errstack, e.state)
	}
	for i := 0; p.errstack[len(p.errstack)-1] == 0; i++ {
		p.errstack = p.errstack[:p.redqueue[i].pointer]
		p.errstack = append(p.errstack, p.redqueue[i].state)
	}

	if err := p.buildContinuation(); err != nil {
		return err
	}

	choice := repairChoice{token: -1, prefix: -1, cost: maxCost}
	deleted := 0
	p.scnstack = p.scnstack[:0]
	p.deletion = p.deletion[:0]

	first := 0
	if len(p.insertion) > 1 {
		first = p.insertion[1].token
	}

	for {
		// The cheapest single terminal that is legal right here and
		// makes the next input token acceptable.
		insert := repairChoice{token: -1, prefix: -1, cost: maxCost}
		for token := 1; token <= t.TNumber; token++ {
			if p.followset[token] != 0 || token == first || p.lookAhead(token, 0, 1) != 0 {
				continue
			}
			cost := deleted + t.InsCost[token]
			if t.Context > 1 {
				cost += p.lookAhead(token, 0, t.Context) * t.DefCost / t.Context
			}
			if cost < insert.cost {
				insert.token = token
				insert.cost = cost
			}
		}

		if len(p.tknqueue) == 0 {
			p.inputToken()
		}
		token := p.tknqueue[0].Number

		// The continuation prefix after which the next input token
		// becomes legal, if any.
		prefix := repairChoice{token: -1, prefix: 0, cost: maxCost}
		if p.followset[token] >= 0 {
			cost := deleted + p.insertion[p.followset[token]].cost
			if t.Context > 0 {
				cost += p.lookAhead(0, p.followset[token], t.Context) * t.DefCost / t.Context
			}
			prefix.prefix = p.followset[token]
			prefix.cost = cost
		}

		if insert.cost < choice.cost || prefix.cost < choice.cost {
			if insert.cost <= prefix.cost {
				choice = insert
			} else {
				choice = prefix
			}

			// A new best repair turns everything scanned past into
			// deletions.
			p.deletion = append(p.deletion, p.scnstack...)
			p.scnstack = p.scnstack[:0]
		}

		// Keep scanning ahead only while deleting up to the next token
		// stays under the best repair found so far.
		if deleted+t.DelCost[token] >= choice.cost {
			break
		}
		p.scnstack = append(p.scnstack, p.tknqueue[0])
		p.tknqueue = p.tknqueue[1:]
		deleted += t.DelCost[token]
	}

	// Scanned but undeleted tokens go back in front of the input.
	if len(p.scnstack) > 0 {
		queue := make([]Token, 0, len(p.scnstack)+len(p.tknqueue))
		queue = append(queue, p.scnstack...)
		queue = append(queue, p.tknqueue...)
		p.tknqueue = queue
		p.scnstack = p.scnstack[:0]
	}

	// A single-token insertion becomes a length-one continuation prefix
	// so one path applies and reports the repair.
	token := p.tknqueue[0].Number
	if choice.token > 0 {
		choice.prefix = 1
		if len(p.insertion) > 1 {
			p.insertion[1] = insertEntry{token: choice.token}
		} else {
			p.insertion = append(p.insertion, insertEntry{token: choice.token})
		}
		p.followset[token] = 1
	}

	p.recordRepair(p.followset[token])
	p.deletion = p.deletion[:0]

	// Inserted tokens take the line and column of the token they are
	// inserted before.
	if n := p.followset[token]; n > 0 {
		queue := make([]Token, 0, n+len(p.tknqueue))
		for i := 1; i <= n; i++ {
			queue = append(queue, Token{
				Number: p.insertion[i].token,
				Symbol: p.insertion[i].symbol,
				locus:  p.tknqueue[0].locus,
				where:  p.tknqueue[0].where,
			})
		}
		p.tknqueue = append(queue, p.tknqueue...)
	}
	p.insertion = p.insertion[:0]
	return nil
}

// buildContinuation parses from the error stack to acceptance using the
// per-state repair values, collecting the forced terminals as the
// continuation and the followset values alongside.
func (p *Parser) buildContinuation() error {
	t := p.tables
	p.lclstack = append(p.lclstack[:0], p.errstack...)
	p.insertion = append(p.insertion[:0], insertEntry{})
	for i := range p.followset {
		p.followset[i] = -1
	}

	for {
		value, err := p.errorValue()
		if err != nil {
			return err
		}

		var action actionType
		var entry int
		if value < 0 {
			action, entry = actionReduce, -value
		} else {
			action, entry = p.decodeAction(p.lclstack[len(p.lclstack)-1], value)
		}

		if action == actionShift || action == actionShiftReduce {
			p.lclstack = append(p.lclstack, entry)
			if action == actionShift {
				continue
			}
		}
		if action != actionReduce && action != actionShiftReduce {
			continue
		}
		for {
			p.lclstack = p.lclstack[:len(p.lclstack)-t.RHSLength[entry]]
			var next int
			action, next = p.decodeGoto(p.lclstack[len(p.lclstack)-1], t.LHSymbol[entry])
			p.lclstack = append(p.lclstack, next)
			if action == actionShiftReduce {
				entry = next
				continue
			}
			if action == actionAccept {
				return nil
			}
			break
		}
	}
}

// errorValue returns the repair value of the continuation's current
// state, extending the continuation when it is a terminal, and fills
// the followset for terminals that first become legal here. A state
// with no repair value makes the error fatal.
func (p *Parser) errorValue() (int, error) {
	t := p.tables
	top := p.lclstack[len(p.lclstack)-1]
	value := t.Repair[top]
	if value == 0 {
		p.RecordError(p.tknqueue[0].where, "Syntax error")
		for !p.tknqueue[0].locus.before(p.unwritten) {
			p.writeLine()
		}
		return 0, fmt.Errorf("parsing stopped at an unrepairable syntax error on line %v", p.lineno)
	}

	// Reduces revisit this continuation prefix, so the followset pass
	// runs once per prefix.
	if last := len(p.insertion) - 1; !p.insertion[last].known {
		for i := 1; i <= t.TNumber; i++ {
			if p.followset[i] >= 0 {
				continue
			}
			action, entry := p.decodeAction(top, i)
			if action == actionShift || action == actionShiftReduce {
				p.followset[i] = last
				continue
			}
			if action != actionReduce {
				continue
			}

			// The terminal forces a reduce; it is legal only if it is
			// eventually shifted when parsing forward from here.
			p.stastack = append(p.stastack[:0], p.lclstack...)
			for {
				for {
					p.stastack = p.stastack[:len(p.stastack)-t.RHSLength[entry]]
					action, entry = p.decodeGoto(p.stastack[len(p.stastack)-1], t.LHSymbol[entry])
					p.stastack = append(p.stastack, entry)
					if action != actionShiftReduce {
						break
					}
				}
				if action == actionAccept {
					break
				}
				action, entry = p.decodeAction(p.stastack[len(p.stastack)-1], i)
				if action != actionReduce {
					break
				}
			}
			if action == actionShift || action == actionShiftReduce || action == actionAccept {
				p.followset[i] = last
			}
		}
		p.insertion[last].known = true
	}

	if value > 0 {
		prev := p.insertion[len(p.insertion)-1]
		p.insertion = append(p.insertion, insertEntry{
			token: value,
			cost:  prev.cost + t.InsCost[value],
		})
	}
	return value, nil
}

// lookAhead parses forward over token (when positive), then count
// tokens of the continuation, then number tokens of real input, on a
// scratch copy of the error stack. It returns how many of those tokens
// were left when the parse failed, or zero when they were all consumed
// or the parse accepted.
func (p *Parser) lookAhead(token, count, number int) int {
	t := p.tables
	p.stastack = append(p.stastack[:0], p.errstack...)

	p.chkqueue = p.chkqueue[:0]
	if token > 0 {
		p.chkqueue = append(p.chkqueue, token)
	}
	for i := 1; i <= count; i++ {
		p.chkqueue = append(p.chkqueue, p.insertion[i].token)
	}
	for len(p.tknqueue) < number {
		p.inputToken()
	}
	for i := 0; i < number; i++ {
		p.chkqueue = append(p.chkqueue, p.tknqueue[i].Number)
	}

	pointer := len(p.stastack) - 1
	i := 0
	for {
		action, entry := p.decodeAction(p.stastack[pointer], p.chkqueue[i])
		if action == actionError {
			return len(p.chkqueue) - i
		}
		if action == actionShift || action == actionShiftReduce {
			pointer++
			p.stastack = putState(p.stastack, pointer, entry)
			i++
			if i >= len(p.chkqueue) {
				return 0
			}
			if action == actionShift {
				continue
			}
		}
		for {
			pointer -= t.RHSLength[entry]
			action, entry = p.decodeGoto(p.stastack[pointer], t.LHSymbol[entry])
			pointer++
			p.stastack = putState(p.stastack, pointer, entry)
			if action == actionShiftReduce {
				continue
			}
			if action == actionAccept {
				return 0
			}
			break
		}
	}
}

func putState(stack []int, i, state int) []int {
	if i < len(stack) {
		stack[i] = state
		return stack
	}
	return append(stack, state)
}

// recordRepair reports the repair as error messages: deletions grouped
// by source line, with the final group and the insertions merged into a
// single replacement message whenever there are insertions.
func (p *Parser) recordRepair(insert int) {
	t := p.tables
	var b strings.Builder
	var where Location

	appendToken := func(number int, symbol string) {
		b.WriteByte(' ')
		if symbol == "" {
			b.WriteString(t.TokenName(number))
		} else {
			b.WriteString(symbol)
		}
	}

	i := 0
	for i < len(p.deletion) {
		where = p.deletion[i].where
		j := i + 1
		for j < len(p.deletion) && p.deletion[j].locus == p.deletion[j-1].locus {
			j++
		}

		// The last group pairs with the insertions, if any, as a
		// replacement; everything else is a deletion.
		b.Reset()
		if j < len(p.deletion) || insert == 0 {
			b.WriteString("Deleted:")
		} else {
			b.WriteString("Replaced:")
		}
		for ; i < j; i++ {
			appendToken(p.deletion[i].Number, p.deletion[i].Symbol)
		}
		if i < len(p.deletion) || insert == 0 {
			p.enqueueError(where, b.String(), false)
		}
	}

	if insert != 0 {
		if len(p.deletion) == 0 {
			where = p.tknqueue[0].where
			b.Reset()
			b.WriteString("Inserted:")
		} else {
			b.WriteString("  with ")

			// An inserted token with the same number as a deleted one
			// keeps the deleted token's installed text.
			for i := 1; i <= insert; i++ {
				for j := range p.deletion {
					if p.deletion[j].Number == p.insertion[i].token && p.deletion[j].Symbol != "" {
						p.insertion[i].symbol = p.deletion[j].Symbol
						p.deletion[j].Symbol = ""
						break
					}
				}
			}
		}
		for i := 1; i <= insert; i++ {
			appendToken(p.insertion[i].token, p.insertion[i].symbol)
		}
		p.enqueueError(where, b.String(), false)
	}
}
