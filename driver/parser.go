package driver

import (
	"io"
	"os"

	"github.com/sdtkit/sdt/spec"
)

// Action encoding of the emitted parser tables: values above
// shiftOffset shift to a state, positive values below it are the
// shift half of a shift-reduce by that production, negative values
// reduce, and zero is an error.
const (
	shiftOffset = 10000
	maxCost     = 99999
)

type actionType int

const (
	actionError actionType = iota
	actionShift
	actionShiftReduce
	actionReduce
	actionAccept
)

// Token is one scanned token. Symbol holds the verbatim source text of
// tokens whose pattern carries the install attribute and is empty
// otherwise.
type Token struct {
	Number int
	Symbol string
	locus  Location // start of the token's source line
	where  Location // start of the token's text
}

type parseEntry struct {
	state  int
	where  Location
	token  int
	symbol string
}

// reduceEntry is one postponed reduce. pointer is the parse-stack index
// of the left hand side entry the reduction pushes, so the stack holds
// pointer+1 entries afterwards; state is the resulting state, zero when the
// goto half was itself a shift-reduce.
type reduceEntry struct {
	number  int
	pointer int
	state   int
}

type insertEntry struct {
	token  int
	symbol string
	cost   int
	known  bool
}

// Parser interprets a generated table set over one input stream.
// Reduces are queued until the next terminal shift so that a syntax
// error can still be repaired before any semantic action has fired.
type Parser struct {
	tables *spec.Tables
	src    io.Reader
	out    io.Writer

	listing bool
	action  func(*Parser, int)
	install func(*Parser, *Token)

	bufferlist *bufferEntry
	bufferend  *bufferEntry
	position   Location
	beginning  Location
	unwritten  Location
	newline    bool
	endfile    bool
	lineno     int
	msgwritten bool
	err        error

	tokenEnd  []Location
	followset []int
	names     map[string]int

	msgqueue  []message
	parstack  []parseEntry
	redqueue  []reduceEntry
	tknqueue  []Token
	errstack  []int
	lclstack  []int
	stastack  []int
	chkqueue  []int
	scnstack  []Token
	deletion  []Token
	insertion []insertEntry
}

// Option configures a Parser.
type Option func(*Parser)

// WithListing makes Parse echo every source line instead of only the
// lines that carry messages.
func WithListing() Option {
	return func(p *Parser) { p.listing = true }
}

// WithOutput redirects the listing and message output, which defaults
// to standard output.
func WithOutput(w io.Writer) Option {
	return func(p *Parser) { p.out = w }
}

// WithSemanticAction installs the callback invoked with the action
// number of every reduced production that carries one. The production's
// right hand side is still on the parse stack during the call.
func WithSemanticAction(fn func(*Parser, int)) Option {
	return func(p *Parser) { p.action = fn }
}

// WithInstallToken installs the callback invoked with every scanned
// token whose pattern carries the install attribute. The callback may
// rewrite the token number or text.
func WithInstallToken(fn func(*Parser, *Token)) Option {
	return func(p *Parser) { p.install = fn }
}

// New builds a parser over src. The tables may be either the packed or
// the unpacked form.
func New(t *spec.Tables, src io.Reader, opts ...Option) *Parser {
	first := &bufferEntry{}
	p := &Parser{
		tables:     t,
		src:        src,
		out:        os.Stdout,
		bufferlist: first,
		bufferend:  first,
		newline:    true,
		tokenEnd:   make([]Location, t.NTokens+2),
		followset:  make([]int, t.TNumber+1),
		names:      make(map[string]int, t.TNumber),
	}
	p.position = Location{buf: first}
	p.beginning = p.position
	p.unwritten = p.position
	for i := 1; i <= t.TNumber; i++ {
		p.names[t.TokenName(i)] = i
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TokenNumber returns the terminal number of name, or zero when the
// tables define no such terminal.
func (p *Parser) TokenNumber(name string) int {
	return p.names[name]
}

// Symbol returns the installed text of the parse-stack entry depth
// entries below the top, or "" when it carries none.
func (p *Parser) Symbol(depth int) string {
	if i := len(p.parstack) - 1 - depth; i >= 0 {
		return p.parstack[i].symbol
	}
	return ""
}

// Where returns the source location of the parse-stack entry depth
// entries below the top.
func (p *Parser) Where(depth int) Location {
	if i := len(p.parstack) - 1 - depth; i >= 0 {
		return p.parstack[i].where
	}
	return Location{}
}

// Parse consumes the whole input, invoking the configured callbacks and
// writing the listing and any repair messages. It returns an error only
// for a read failure or a syntax error that no repair can mend.
func (p *Parser) Parse() error {
	t := p.tables
	p.parstack = append(p.parstack, parseEntry{state: 1})

	// state and pointer track the virtual top of the stack as queued
	// reduces would leave it; knownptr is the lowest index any queued
	// reduce has popped to.
	state, pointer, knownptr := 1, 0, 0
	var where Location
	accepted := false
	for !accepted {
		if p.err != nil {
			return p.err
		}
		if len(p.tknqueue) == 0 {
			p.inputToken()
		}
		action, entry := p.decodeAction(state, p.tknqueue[0].Number)
		switch action {
		case actionError:
			if err := p.repairError(); err != nil {
				return err
			}
			continue
		case actionShift, actionShiftReduce:
			// Shifting a terminal commits every queued reduce.
			where = p.parstack[len(p.parstack)-1].where
			p.performReduces(where)

			if action == actionShift {
				state = entry
			} else {
				state = 0
			}
			pointer = len(p.parstack)
			knownptr = pointer
			tok := p.tknqueue[0]
			p.parstack = append(p.parstack, parseEntry{
				state:  state,
				where:  tok.where,
				token:  tok.Number,
				symbol: tok.Symbol,
			})

			// Every line before the shifted token is complete.
			for p.unwritten.before(tok.locus) {
				p.writeLine()
			}
			p.tknqueue = p.tknqueue[1:]
			if action == actionShift {
				continue
			}
		}

		// entry is now a production number, from a reduce action or
		// from the reduce half of a shift-reduce.
		for {
			num := entry
			pointer -= t.RHSLength[num]
			if pointer < knownptr {
				knownptr = pointer
			}
			if pointer > knownptr {
				// The popped-to position was produced by a queued
				// reduce; the most recent one that reached it holds
				// the state. None means an epsilon reduce, which
				// leaves the state unchanged.
				i := len(p.redqueue) - 1
				for i >= 0 && p.redqueue[i].pointer > pointer {
					i--
				}
				if i >= 0 && p.redqueue[i].pointer == pointer {
					state = p.redqueue[i].state
				}
			} else {
				state = p.parstack[pointer].state
			}

			var next int
			action, next = p.decodeGoto(state, t.LHSymbol[num])
			if action == actionShift {
				state = next
			} else {
				state = 0
			}
			pointer++
			p.redqueue = append(p.redqueue, reduceEntry{number: num, pointer: pointer, state: state})
			if action == actionShiftReduce {
				entry = next
				continue
			}
			accepted = action == actionAccept
			break
		}
	}

	p.performReduces(where)
	for len(p.msgqueue) > 0 {
		p.writeLine()
	}
	if p.listing {
		for !p.endfile || p.unwritten.buf.next != nil || p.unwritten.offset < p.unwritten.buf.count {
			p.writeLine()
		}
	}
	return p.err
}

// performReduces applies every queued reduce in order: fire its
// semantic action, pop the right hand side, and push the left hand
// side sharing where.
func (p *Parser) performReduces(where Location) {
	t := p.tables
	for i := 0; i < len(p.redqueue); i++ {
		r := p.redqueue[i]
		if n := t.Semantics[r.number]; n != 0 && p.action != nil {
			p.action(p, n)
		}
		p.parstack = p.parstack[:r.pointer]
		p.parstack = append(p.parstack, parseEntry{
			state: r.state,
			where: where,
			token: t.LHSymbol[r.number],
		})
	}
	p.redqueue = p.redqueue[:0]
}

// decodeAction classifies the table action for a state and terminal.
// The second result is the target state for a shift and the production
// number for a reduce or shift-reduce.
func (p *Parser) decodeAction(state, token int) (actionType, int) {
	next := p.tables.ParseAction(state, token)
	switch {
	case next == 0:
		return actionError, 0
	case next < 0:
		return actionReduce, -next
	case next > shiftOffset:
		return actionShift, next - shiftOffset
	default:
		return actionShiftReduce, next
	}
}

// decodeGoto classifies the goto entry for a state and nonterminal.
// A nonterminal entry is always valid: a shift, a shift-reduce, or the
// accept.
func (p *Parser) decodeGoto(state, token int) (actionType, int) {
	next := p.tables.ParseAction(state, token)
	switch {
	case next > shiftOffset:
		return actionShift, next - shiftOffset
	case next > 0:
		return actionShiftReduce, next
	default:
		return actionAccept, 0
	}
}
