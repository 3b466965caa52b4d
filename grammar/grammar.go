package grammar

import (
	"fmt"
	"io"
	"strings"

	verr "github.com/sdtkit/sdt/error"
	"github.com/sdtkit/sdt/spec"
)

// Options carries the OPTIONS section of a grammar file plus the
// token-to-terminal map the table generator resolves precedence with.
type Options struct {
	// Ambiguous allows shift-reduce conflicts to be settled by
	// precedence and associativity instead of failing.
	Ambiguous bool

	// ErrorRepair switches the generator into the mode the repairing
	// driver needs: productions sorted by derivation cost and depth-first
	// closure. Repair values for every state are generated either way.
	ErrorRepair bool

	// DefaultReduce folds single-item final shifts into shift-reduce
	// actions, trading parse states for a slightly slower driver.
	DefaultReduce bool

	// SplitStates clones conflicting states by lane tracing when the
	// grammar is not LALR(1) but is LR(1).
	SplitStates bool

	// Debug receives internal-structure dumps during table generation
	// when DebugFlags selects them. Nil disables all dumps.
	Debug      io.Writer
	DebugFlags DebugFlag

	terms []*Symbol
}

// tokenSymbol resolves a terminal token number to its base symbol.
func (o *Options) tokenSymbol(tok int) *Symbol {
	if tok < 1 || tok >= len(o.terms) {
		return nil
	}
	return o.terms[tok]
}

// Grammar is the lowered form of one grammar file: interned symbols,
// numbered tokens, the scanner pattern tree, and the finalized
// production list.
type Grammar struct {
	Name  string
	Title string

	Opts *Options

	SymTab *SymbolTable
	Prods  *ProductionSet

	// TNumber counts the parser terminals including the sentinel.
	// NTokens additionally counts ignored scanner patterns, whose
	// numbers all exceed TNumber so the driver loops over them.
	TNumber  int
	NTokens  int
	NTNumber int

	// DefCost and Context parameterize runtime error repair.
	DefCost int
	Context int

	StartSym *Symbol
	GoalSym  *Symbol
	Sentinel *Symbol

	// ScanRoot is an alternation with one branch per scanner rule, each
	// ending in a Reference leaf naming the accepted terminal. The last
	// branch accepts end-of-file as the sentinel.
	ScanRoot *RegexNode

	// Terms maps token 1..TNumber to its base terminal; NonTerms maps
	// token-TNumber 1..NTNumber to its nonterminal.
	Terms    []*Symbol
	NonTerms []*Symbol
}

// sentinelName deliberately contains quote characters so no quoted name
// in a grammar file can collide with it.
const sentinelName = `"'$'"`

// goalName contains an angle bracket for the same reason.
const goalName = "<Goal>"

type GrammarBuilder struct {
	AST *spec.RootNode

	errs verr.SpecErrors
}

func (b *GrammarBuilder) addError(cause error, pos spec.Position, detail string) {
	b.errs = append(b.errs, &verr.SpecError{
		Cause:  cause,
		Detail: detail,
		Row:    pos.Row,
		Col:    pos.Col,
	})
}

// Build lowers the parsed grammar file into a Grammar: options, named
// definitions, scanner rules with eager token numbering, defaults, and
// the production list headed by the synthetic goal production. When the
// grammar file has errors, Build returns the partial grammar alongside
// the accumulated SpecErrors; listings and debug dumps still work on
// it, but it must not be compiled into tables.
func (b *GrammarBuilder) Build() (*Grammar, error) {
	g := &Grammar{
		Name:   b.AST.Ident,
		Title:  b.AST.Title,
		Opts:   &Options{},
		SymTab: NewSymbolTable(),
	}

	b.buildOptions(g)
	b.buildDefines(g)
	b.buildScanner(g)
	b.buildDefaults(g)
	b.buildParser(g)

	if g.Opts.ErrorRepair && len(b.errs) == 0 {
		if err := g.Prods.computeCosts(); err != nil {
			b.addError(semErrNoDerivation, spec.Position{}, err.Error())
		}
	}

	if len(b.errs) > 0 {
		return g, b.errs
	}
	return g, nil
}

func (b *GrammarBuilder) buildOptions(g *Grammar) {
	for _, opt := range b.AST.Options {
		switch {
		case strings.EqualFold(opt.Name, "AMBIGUOUS"):
			g.Opts.Ambiguous = true
		case strings.EqualFold(opt.Name, "ERRORREPAIR"):
			g.Opts.ErrorRepair = true
		case strings.EqualFold(opt.Name, "SHIFTREDUCE"):
			g.Opts.DefaultReduce = true
		case strings.EqualFold(opt.Name, "SPLITSTATES"):
			g.Opts.SplitStates = true
		default:
			b.addError(semErrUnknownOption, opt.Pos, opt.Name)
		}
	}
}

func (b *GrammarBuilder) buildDefines(g *Grammar) {
	for _, def := range b.AST.Defines {
		if g.SymTab.Lookup(def.Name, SymbolKindDefinition, LookupOnly) != nil {
			b.addError(semErrDupDefine, def.Pos, def.Name)
			continue
		}
		tree := b.lowerRegex(g, def.Pattern)
		g.SymTab.Lookup(def.Name, SymbolKindDefinition, LookupInsert).Regex = tree
	}
}

// tokenAttrs is the attribute accumulator one scanner rule fills before
// its terminal is created, mirroring how declarations reset between
// rules.
type tokenAttrs struct {
	flags      SymbolFlag
	precedence int
	insert     int
	delete     int
}

func (b *GrammarBuilder) applyAttrs(decl *spec.TokenDeclNode) tokenAttrs {
	attrs := tokenAttrs{insert: 1, delete: 1}
	for _, a := range decl.Attrs {
		switch a.Kind {
		case spec.AttrKindPrecedence:
			attrs.precedence = a.Value
		case spec.AttrKindAssociativity:
			if attrs.flags.Has(SymbolFlagLeft | SymbolFlagRight | SymbolFlagNone) {
				b.addError(semErrDupAssoc, a.Pos, "")
				continue
			}
			switch a.Assoc {
			case spec.AssocLeft:
				attrs.flags |= SymbolFlagLeft
			case spec.AssocRight:
				attrs.flags |= SymbolFlagRight
			default:
				attrs.flags |= SymbolFlagNone
			}
		case spec.AttrKindInsert:
			attrs.insert = a.Value
		case spec.AttrKindDelete:
			attrs.delete = a.Value
		case spec.AttrKindInstall:
			attrs.flags |= SymbolFlagInstall
		case spec.AttrKindIgnoreCase:
			attrs.flags |= SymbolFlagCase
		}
	}
	return attrs
}

func (attrs *tokenAttrs) defaultAssoc() {
	if !attrs.flags.Has(SymbolFlagLeft | SymbolFlagRight | SymbolFlagNone) {
		attrs.flags |= SymbolFlagNone
	}
}

func (b *GrammarBuilder) buildScanner(g *Grammar) {
	root := newRegexNode(RegexOpAlt)
	ignored := 0

	for _, decl := range b.AST.Tokens {
		attrs := b.applyAttrs(decl)

		switch {
		case decl.Name == "":
			// An ignored pattern gets a unique placeholder terminal
			// with token 0; numbering later pushes it past TNumber so
			// the driver never hands it to the parser.
			ignored++
			sym := g.SymTab.alloc(fmt.Sprintf("ignored-%d", ignored), SymbolKindTerminal)
			sym.InsertCost = 0
			sym.DeleteCost = 0
			tree := b.lowerRegex(g, decl.Pattern)
			root.AppendChild(scanBranch(tree, sym))

		case decl.Pattern == nil:
			// Bare form: the quoted name is its own pattern.
			if g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupOnly) != nil {
				b.addError(semErrDupToken, decl.Pos, decl.Name)
				continue
			}
			attrs.defaultAssoc()
			g.TNumber++
			sym := g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupInsert)
			sym.Token = g.TNumber
			sym.Flags = attrs.flags
			sym.Precedence = attrs.precedence
			sym.InsertCost = attrs.insert
			sym.DeleteCost = attrs.delete
			pattern := newCharNode(decodeString(decl.Name))
			if sym.Flags.Has(SymbolFlagCase) {
				FoldCase(pattern)
			}
			root.AppendChild(scanBranch(pattern, sym))

		case decl.Pattern.Kind == spec.RegexKindString && decl.Pattern.Text != "":
			// A lone non-empty quoted pattern declares an alias of an
			// existing terminal: same token number, separate attributes.
			b.buildAlias(g, decl, attrs)

		default:
			if g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupOnly) != nil {
				b.addError(semErrDupToken, decl.Pos, decl.Name)
				continue
			}
			tree := b.lowerRegex(g, decl.Pattern)
			sym := g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupInsert)
			if ClassifyChars(tree) == EmptyCharacter {
				// A pattern that can only match the empty string never
				// comes back from the scanner. The terminal survives
				// as an epsilon marker for the grammar.
				sym.Flags = SymbolFlagEmpty
				sym.Token = 0
				sym.InsertCost = 0
				sym.DeleteCost = 0
			} else {
				attrs.defaultAssoc()
				g.TNumber++
				sym.Token = g.TNumber
				sym.Flags = attrs.flags
				sym.Precedence = attrs.precedence
				sym.InsertCost = attrs.insert
				sym.DeleteCost = attrs.delete
			}
			if sym.Flags.Has(SymbolFlagCase) {
				FoldCase(tree)
			}
			root.AppendChild(scanBranch(tree, sym))
		}
	}

	// The sentinel terminal accepts end-of-file. The quotes in its name
	// keep grammar files from referencing it.
	g.TNumber++
	g.Sentinel = g.SymTab.Lookup(sentinelName, SymbolKindTerminal, LookupInsert)
	g.Sentinel.Token = g.TNumber
	g.Sentinel.Flags = SymbolFlagNone
	g.Sentinel.InsertCost = (MaxCost+1)/2 - 1
	g.Sentinel.DeleteCost = MaxCost
	eof := CopyTree(g.SymTab.Lookup("EOF", SymbolKindDefinition, LookupOnly).Regex)
	root.AppendChild(scanBranch(eof, g.Sentinel))

	// Number everything the eager pass left at zero: ignored patterns
	// and empty-pattern terminals land above TNumber.
	next := g.TNumber
	for _, branch := range root.Children {
		ref := branch.Children[len(branch.Children)-1]
		if ref.Leaf == RegexLeafReference && ref.Ref.Token == 0 {
			next++
			ref.Ref.Token = next
		}
	}
	g.NTokens = next
	g.ScanRoot = root

	g.Terms = make([]*Symbol, g.TNumber+1)
	for _, branch := range root.Children {
		ref := branch.Children[len(branch.Children)-1]
		sym := ref.Ref
		if !sym.Flags.Has(SymbolFlagAlias) && sym.Token <= g.TNumber && g.Terms[sym.Token] == nil {
			g.Terms[sym.Token] = sym
		}
	}
	g.Opts.terms = g.Terms
}

// scanBranch appends the accepting Reference leaf to one rule's pattern.
func scanBranch(tree *RegexNode, sym *Symbol) *RegexNode {
	ref := newRefNode(sym)
	if tree.isLeaf() || tree.Op != RegexOpConcat {
		return newRegexNode(RegexOpConcat, tree, ref)
	}
	tree.AppendChild(ref)
	return tree
}

func (b *GrammarBuilder) buildAlias(g *Grammar, decl *spec.TokenDeclNode, attrs tokenAttrs) {
	if g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupOnly) != nil {
		b.addError(semErrDupAlias, decl.Pos, decl.Name)
		return
	}
	base := g.SymTab.Lookup(decl.Pattern.Text, SymbolKindTerminal, LookupOnly)
	if base == nil {
		b.addError(semErrUndefAlias, decl.Pos, decl.Pattern.Text)
		return
	}
	if base.Flags.Has(SymbolFlagAlias) {
		b.addError(semErrAliasOfAlias, decl.Pos, decl.Pattern.Text)
		return
	}

	// The alias carries its own precedence and costs but inherits the
	// scanner-facing flags of its base.
	attrs.flags = attrs.flags&^(SymbolFlagInstall|SymbolFlagCase|SymbolFlagEmpty) |
		base.Flags&(SymbolFlagInstall|SymbolFlagCase|SymbolFlagEmpty)
	attrs.defaultAssoc()
	attrs.flags |= SymbolFlagAlias

	sym := g.SymTab.Lookup(decl.Name, SymbolKindTerminal, LookupInsert)
	sym.Token = base.Token
	sym.Flags = attrs.flags
	sym.Precedence = attrs.precedence
	sym.InsertCost = attrs.insert
	sym.DeleteCost = attrs.delete
	sym.Alias = base
}

func (b *GrammarBuilder) buildDefaults(g *Grammar) {
	for _, def := range b.AST.Defaults {
		switch def.Kind {
		case spec.DefaultKindStart:
			g.StartSym = g.SymTab.Lookup(def.Name, SymbolKindNonTerminal, LookupInsert)
		case spec.DefaultKindCost:
			if def.Value == 0 {
				b.addError(semErrBadRepairCost, def.Pos, "")
				g.DefCost = MaxCost
			} else {
				g.DefCost = def.Value
			}
		case spec.DefaultKindContext:
			if def.Value == 0 {
				b.addError(semErrBadContext, def.Pos, "")
				g.Context = 1
			} else {
				g.Context = def.Value
			}
		}
	}
}

func (b *GrammarBuilder) buildParser(g *Grammar) {
	if len(b.AST.Productions) == 0 {
		return
	}

	if g.StartSym == nil {
		g.StartSym = g.SymTab.Lookup(b.AST.Productions[0].LHS, SymbolKindNonTerminal, LookupInsert)
	}
	g.GoalSym = g.SymTab.Lookup(goalName, SymbolKindNonTerminal, LookupInsert)

	// Nonterminal token numbers continue past the terminals, the goal
	// symbol first, then left-hand sides in declaration order.
	g.NTNumber++
	g.GoalSym.Token = g.TNumber + g.NTNumber
	for _, prod := range b.AST.Productions {
		sym := g.SymTab.Lookup(prod.LHS, SymbolKindNonTerminal, LookupInsert)
		if sym.Token == 0 {
			g.NTNumber++
			sym.Token = g.TNumber + g.NTNumber
		}
	}
	if g.StartSym.Token == 0 {
		b.addError(semErrUndefNonTerm, spec.Position{}, g.StartSym.Name)
		g.NTNumber++
		g.StartSym.Token = g.TNumber + g.NTNumber
	}
	for _, prod := range b.AST.Productions {
		for _, alt := range prod.RHS {
			for _, el := range alt.Elements {
				if el.Kind != spec.ElementKindSymbol || el.Name == "" {
					continue
				}
				sym := g.SymTab.Lookup(el.Name, SymbolKindNonTerminal, LookupInsert)
				if sym.Token == 0 {
					b.addError(semErrUndefNonTerm, el.Pos, el.Name)
					g.NTNumber++
					sym.Token = g.TNumber + g.NTNumber
				}
			}
		}
	}

	g.NonTerms = make([]*Symbol, g.NTNumber+1)
	for _, sym := range g.SymTab.Symbols() {
		if sym.Kind == SymbolKindNonTerminal && sym.Token > g.TNumber {
			g.NonTerms[sym.Token-g.TNumber] = sym
		}
	}

	// Productions are collected in nonterminal token order so every
	// alternative of one symbol is contiguous, with the goal production
	// as production 1.
	byLHS := map[int][]*spec.ProductionNode{}
	for _, prod := range b.AST.Productions {
		tok := g.SymTab.Lookup(prod.LHS, SymbolKindNonTerminal, LookupOnly).Token
		byLHS[tok] = append(byLHS[tok], prod)
	}

	ps := newProductionSet()
	g.Prods = ps
	goal, err := newProduction(g.GoalSym, []*Symbol{g.StartSym, g.Sentinel}, 0)
	if err != nil {
		b.addError(semErrNoDerivation, spec.Position{}, err.Error())
		return
	}
	ps.append(goal)

	for tok := g.TNumber + 2; tok <= g.TNumber+g.NTNumber; tok++ {
		for _, prod := range byLHS[tok] {
			lhs := g.SymTab.Lookup(prod.LHS, SymbolKindNonTerminal, LookupOnly)
			for _, alt := range prod.RHS {
				rhs, semantic := b.buildRHS(g, alt)
				p, err := newProduction(lhs, rhs, semantic)
				if err != nil {
					b.addError(semErrNoDerivation, alt.Pos, err.Error())
					continue
				}
				ps.append(p)
			}
		}
	}
}

// buildRHS lowers one alternative. Strings must name terminals that
// already have a scanner rule; names carrying token 0 vanish because the
// scanner can never produce them.
func (b *GrammarBuilder) buildRHS(g *Grammar, alt *spec.AlternativeNode) ([]*Symbol, int) {
	var rhs []*Symbol
	semantic := 0
	for _, el := range alt.Elements {
		switch el.Kind {
		case spec.ElementKindSymbol:
			if el.Name == "" {
				continue
			}
			rhs = append(rhs, g.SymTab.Lookup(el.Name, SymbolKindNonTerminal, LookupOnly))
		case spec.ElementKindToken:
			sym := g.SymTab.Lookup(el.Name, SymbolKindTerminal, LookupOnly)
			if sym == nil {
				b.addError(semErrUndefTerminal, el.Pos, fmt.Sprintf("%q", el.Name))
				sym = g.SymTab.Lookup(el.Name, SymbolKindTerminal, LookupInsert)
				sym.InsertCost = 0
				sym.DeleteCost = 0
				continue
			}
			if sym.Token == 0 {
				continue
			}
			rhs = append(rhs, sym)
		case spec.ElementKindSemantic:
			semantic = el.Number
		}
	}
	return rhs, semantic
}

// lowerRegex turns a parsed pattern into a scanner tree. Errors are
// recorded and the offending construct collapses to epsilon so one bad
// pattern surfaces every problem in a file.
func (b *GrammarBuilder) lowerRegex(g *Grammar, n *spec.RegexNode) *RegexNode {
	if n == nil {
		return newLeafNode(RegexLeafEpsilon)
	}
	switch n.Kind {
	case spec.RegexKindAlt:
		alt := newRegexNode(RegexOpAlt)
		for _, c := range n.Children {
			alt.AppendChild(b.lowerRegex(g, c))
		}
		return alt
	case spec.RegexKindConcat:
		cat := newRegexNode(RegexOpConcat)
		for _, c := range n.Children {
			cat.AppendChild(b.lowerRegex(g, c))
		}
		return cat
	case spec.RegexKindClosure:
		return newRegexNode(RegexOpClosure, b.lowerRegex(g, n.Children[0]))
	case spec.RegexKindPositive:
		return newRegexNode(RegexOpPositive, b.lowerRegex(g, n.Children[0]))
	case spec.RegexKindOption:
		return newRegexNode(RegexOpAlt, newLeafNode(RegexLeafEpsilon), b.lowerRegex(g, n.Children[0]))
	case spec.RegexKindDiff:
		left := b.lowerRegex(g, n.Children[0])
		right := b.lowerRegex(g, n.Children[1])
		out, err := DiffClass(left, right)
		if err != nil {
			b.addError(semErrBadClassOperand, n.Pos, err.Error())
			return newLeafNode(RegexLeafEpsilon)
		}
		return out
	case spec.RegexKindNot:
		out, err := ComplementClass(b.lowerRegex(g, n.Children[0]))
		if err != nil {
			b.addError(semErrBadClassOperand, n.Pos, err.Error())
			return newLeafNode(RegexLeafEpsilon)
		}
		return out
	case spec.RegexKindRange:
		lo := b.lowerRegex(g, n.Children[0])
		hi := b.lowerRegex(g, n.Children[1])
		out, err := RangeClass(lo, hi)
		if err != nil {
			lb, lok := classBytes(lo)
			hb, hok := classBytes(hi)
			if lok && hok && len(lb) == 1 && len(hb) == 1 {
				b.addError(semErrBadRange, n.Pos, "")
			} else {
				b.addError(semErrBadClassOperand, n.Pos, err.Error())
			}
			return newLeafNode(RegexLeafEpsilon)
		}
		return out
	case spec.RegexKindRepeat:
		return b.lowerRepeat(g, n)
	case spec.RegexKindLookahead:
		return newRegexNode(RegexOpConcat,
			b.lowerRegex(g, n.Children[0]),
			newLeafNode(RegexLeafLookahead),
			b.lowerRegex(g, n.Children[1]))
	case spec.RegexKindString:
		bs := decodeString(n.Text)
		if len(bs) == 0 {
			return newLeafNode(RegexLeafEpsilon)
		}
		return newCharNode(bs)
	case spec.RegexKindClass:
		return newClassNode(decodeString(n.Text))
	case spec.RegexKindReference:
		def := g.SymTab.Lookup(n.Text, SymbolKindDefinition, LookupOnly)
		if def == nil {
			b.addError(semErrUndefDefine, n.Pos, n.Text)
			def = g.SymTab.Lookup(n.Text, SymbolKindDefinition, LookupInsert)
			def.Regex = newLeafNode(RegexLeafEpsilon)
		}
		return CopyTree(def.Regex)
	default:
		return newLeafNode(RegexLeafEpsilon)
	}
}

func (b *GrammarBuilder) lowerRepeat(g *Grammar, n *spec.RegexNode) *RegexNode {
	body := b.lowerRegex(g, n.Children[0])
	lo, hi := n.Low, n.High
	if hi == 0 {
		// Exact form {r}n.
		if lo == 0 {
			return newLeafNode(RegexLeafEpsilon)
		}
		out, err := ExpandRepeat(body, lo)
		if err != nil {
			b.addError(semErrBadRange, n.Pos, err.Error())
			return newLeafNode(RegexLeafEpsilon)
		}
		return out
	}
	if lo > hi {
		b.addError(semErrBadRange, n.Pos, "")
		return newLeafNode(RegexLeafEpsilon)
	}
	if lo == 0 {
		out, err := ExpandRange(body, 1, hi)
		if err != nil {
			b.addError(semErrBadRange, n.Pos, err.Error())
			return newLeafNode(RegexLeafEpsilon)
		}
		return newRegexNode(RegexOpAlt, newLeafNode(RegexLeafEpsilon), out)
	}
	out, err := ExpandRange(body, lo, hi)
	if err != nil {
		b.addError(semErrBadRange, n.Pos, err.Error())
		return newLeafNode(RegexLeafEpsilon)
	}
	return out
}

// decodeString expands escape sequences in quoted strings and classes:
// \xHH, octal \OOO, the C control escapes, and literal fallthrough for
// anything else.
func decodeString(s string) []byte {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		c, n := decodeChar(s[i:])
		out = append(out, c)
		i += n
	}
	return out
}

func decodeChar(s string) (byte, int) {
	if s[0] != '\\' {
		return s[0], 1
	}
	if len(s) == 1 {
		return '\\', 1
	}
	rest := s[1:]

	if rest[0] == 'x' {
		v, n := 0, 0
		for n < 2 && n+1 < len(rest) {
			d := hexDigit(rest[n+1])
			if d < 0 {
				break
			}
			v = v*16 + d
			n++
		}
		if v > 0 {
			return byte(v), 2 + n
		}
	} else if rest[0] >= '0' && rest[0] <= '7' {
		v, n := 0, 0
		for n < 3 && n < len(rest) {
			c := rest[n]
			if c < '0' || c > '7' || v*8+int(c-'0') >= 0xFF {
				break
			}
			v = v*8 + int(c-'0')
			n++
		}
		if v > 0 {
			return byte(v), 1 + n
		}
	}

	switch rest[0] {
	case 'a':
		return '\a', 2
	case 'b':
		return '\b', 2
	case 'e':
		return 0x1b, 2
	case 'f':
		return '\f', 2
	case 'n':
		return '\n', 2
	case 'r':
		return '\r', 2
	case 't':
		return '\t', 2
	case 'v':
		return '\v', 2
	default:
		return rest[0], 2
	}
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}

// Report summarizes one table generation for listings.
type Report struct {
	Terminals    int
	NonTerminals int
	Productions  int
	States       int
	Conflicts    []*Conflict
}

// Compile generates the parser side of the persistent tables: the
// uncompressed action matrix, repair values, costs, and the token name
// string table. The scanner fields stay empty for the scanner builder to
// fill in.
func Compile(gram *Grammar) (*spec.Tables, *Report, error) {
	prods := gram.Prods
	opts := gram.Opts

	first, err := genFirstSet(prods)
	if err != nil {
		return nil, nil, err
	}
	if opts.Debug != nil && opts.DebugFlags&DebugGrammar != 0 {
		dumpProductions(opts.Debug, prods)
	}
	if opts.Debug != nil && opts.DebugFlags&DebugFollow != 0 {
		flw, err := genFollowSet(prods, first, gram.Sentinel.Token)
		if err != nil {
			return nil, nil, err
		}
		dumpFollowSets(opts.Debug, gram, flw)
	}
	automaton, err := genLR0Automaton(prods, opts)
	if err != nil {
		return nil, nil, err
	}
	builder, err := genLookAheads(automaton, prods, first, gram.TNumber, gram.Sentinel.Token)
	if err != nil {
		return nil, nil, err
	}

	var res *tableBuildResult
	var split []*Conflict
	for {
		res, err = genActionMatrix(automaton, prods, opts, gram.TNumber, gram.GoalSym.Token, gram.NTNumber)
		if err != nil {
			return nil, nil, err
		}
		if len(res.rrStates) == 0 {
			break
		}
		if !opts.SplitStates {
			c := res.conflicts[len(res.conflicts)-1]
			return nil, nil, fmt.Errorf("reduce-reduce conflict in state %v between productions %v (declare SPLITSTATES to try repairing)", c.State, c.Prods)
		}
		if err := splitStates(automaton, res.rrStates[0], opts); err != nil {
			return nil, nil, fmt.Errorf("state %v: %v", res.rrStates[0], err)
		}
		for _, c := range res.conflicts {
			if c.Kind == "reduce-reduce" && c.State == res.rrStates[0] {
				c.ResolvedBy = resolvedBySplit
				split = append(split, c)
			}
		}
		if err := builder.propagate(); err != nil {
			return nil, nil, err
		}
	}

	if opts.Debug != nil && opts.DebugFlags&DebugItems != 0 {
		dumpItems(opts.Debug, gram, automaton)
	}
	if opts.Debug != nil && opts.DebugFlags&DebugAncestors != 0 {
		dumpAncestors(opts.Debug, automaton)
	}

	t := &spec.Tables{
		Name:     gram.Name,
		TNumber:  gram.TNumber,
		NTokens:  gram.NTokens,
		NTNumber: gram.NTNumber,
		GNumber:  prods.Count(),
		PNumber:  automaton.count(),
		Context:  gram.Context,
		DefCost:  gram.DefCost,
	}

	t.InsCost = make([]int, gram.TNumber+1)
	t.DelCost = make([]int, gram.TNumber+1)
	for tok := 1; tok <= gram.TNumber; tok++ {
		if sym := gram.Terms[tok]; sym != nil {
			t.InsCost[tok] = sym.InsertCost
			t.DelCost[tok] = sym.DeleteCost
		}
	}

	t.LHSymbol = make([]int, t.GNumber+1)
	t.RHSLength = make([]int, t.GNumber+1)
	t.Semantics = make([]int, t.GNumber+1)
	for _, prod := range prods.All()[1:] {
		t.LHSymbol[prod.Num] = prod.LHS.Token
		t.RHSLength[prod.Num] = prod.EffLen
		t.Semantics[prod.Num] = prod.Semantic
	}

	t.Repair = genRepairValues(automaton)
	if opts.Debug != nil && opts.DebugFlags&DebugRepair != 0 {
		dumpRepairValues(opts.Debug, gram, t.Repair)
	}

	var names strings.Builder
	t.StringIndex = make([]int, gram.TNumber+gram.NTNumber+2)
	for tok := 1; tok <= gram.TNumber; tok++ {
		t.StringIndex[tok] = names.Len()
		if sym := gram.Terms[tok]; sym != nil {
			names.WriteString(sym.Name)
		}
	}
	for n := 1; n <= gram.NTNumber; n++ {
		t.StringIndex[gram.TNumber+n] = names.Len()
		if sym := gram.NonTerms[n]; sym != nil {
			names.WriteString(sym.Name)
		}
	}
	t.StringIndex[gram.TNumber+gram.NTNumber+1] = names.Len()
	t.StringTable = names.String()

	t.ParseActions = res.matrix.rows

	rep := &Report{
		Terminals:    gram.TNumber,
		NonTerminals: gram.NTNumber,
		Productions:  prods.Count(),
		States:       automaton.count(),
		Conflicts:    append(split, res.conflicts...),
	}
	return t, rep, nil
}
