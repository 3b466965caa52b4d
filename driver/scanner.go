package driver

import "strings"

// inputToken appends the next token to the token queue. The scanner
// runs to the longest match, remembering the text end of every token
// reachable through the current state, then rolls the read position
// back to the end of the accepted token. Characters no pattern covers
// are reported and skipped; ignored tokens are scanned past silently.
func (p *Parser) inputToken() {
	t := p.tables
	var tok Token
	final := 0
	for {
		var where Location
		ch := p.inputChar(&where)
		tok.locus = p.beginning
		tok.where = where

		final = 0
		state := 1
		for {
			for i := t.TokenIndex[state]; i < t.TokenIndex[state+1]; i++ {
				p.tokenEnd[t.TokenTable[i]] = where
			}
			if t.Final[state] != 0 {
				final = state
			}
			if state = t.ScanAction(state, ch); state == 0 {
				break
			}
			ch = p.inputChar(&where)
		}

		if final == 0 {
			p.enqueueError(tok.where, "", true)
			p.position = tok.where
			p.position.offset++
			continue
		}
		p.position = p.tokenEnd[t.Final[final]]
		if t.Final[final] <= t.TNumber {
			break
		}
	}
	tok.Number = t.Final[final]

	if t.Install[final] != 0 {
		// Copy the token text, which may span buffers, into one
		// contiguous string before handing it to the callback.
		var b strings.Builder
		loc := tok.where
		for loc != p.position {
			if loc.offset >= loc.buf.count {
				loc = Location{buf: loc.buf.next}
			}
			b.WriteByte(loc.buf.data[loc.offset])
			loc.offset++
		}
		tok.Symbol = b.String()
		if p.install != nil {
			p.install(p, &tok)
		}
	}
	p.tknqueue = append(p.tknqueue, tok)
}
