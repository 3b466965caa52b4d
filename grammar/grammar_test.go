package grammar

import (
	"errors"
	"strings"
	"testing"

	verr "github.com/sdtkit/sdt/error"
	"github.com/sdtkit/sdt/spec"
)

func buildGrammar(t *testing.T, src string) *Grammar {
	t.Helper()
	ast, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	b := &GrammarBuilder{AST: ast}
	g, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func buildError(t *testing.T, src string) verr.SpecErrors {
	t.Helper()
	ast, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	b := &GrammarBuilder{AST: ast}
	_, err = b.Build()
	if err == nil {
		t.Fatal("an error must occur")
	}
	specErrs, ok := err.(verr.SpecErrors)
	if !ok {
		t.Fatalf("unexpected error type: %T (%v)", err, err)
	}
	return specErrs
}

func containsCause(errs verr.SpecErrors, cause error) bool {
	for _, e := range errs {
		if errors.Is(e, cause) {
			return true
		}
	}
	return false
}

const calcSrc = `
IDENT calc;
TITLE "calculator";
OPTIONS AMBIGUOUS;
DEFINE
    digit = [0123456789];
SCANNER
    "number" = digit+, INSTALL, INSERT = 2;
    "+", PRECEDENCE = 1, ASSOCIATIVITY = LEFT;
    "*", PRECEDENCE = 2, ASSOCIATIVITY = LEFT;
    "(";
    ")";
    [ \t\n]+;
PARSER
    <expr> = <expr> "+" <expr> $1
           | <expr> "*" <expr> $2
           | "(" <expr> ")"
           | "number" $3;
`

func TestGrammarBuilder_TokenNumbering(t *testing.T) {
	g := buildGrammar(t, calcSrc)

	if g.Name != "calc" || g.Title != "calculator" {
		t.Errorf("unexpected name or title; got: %v, %v", g.Name, g.Title)
	}
	if !g.Opts.Ambiguous {
		t.Error("the AMBIGUOUS option must be set")
	}

	// Five declared terminals plus the sentinel; the ignored pattern is
	// numbered past the parser terminals.
	if g.TNumber != 6 {
		t.Fatalf("unexpected terminal count; want: 6, got: %v", g.TNumber)
	}
	if g.NTokens != 7 {
		t.Fatalf("unexpected scanner token count; want: 7, got: %v", g.NTokens)
	}

	wantTerms := []string{"number", "+", "*", "(", ")"}
	for i, name := range wantTerms {
		sym := g.Terms[i+1]
		if sym == nil || sym.Name != name {
			t.Errorf("token %v: want: %v, got: %v", i+1, name, sym)
		}
	}
	if g.Terms[6] != g.Sentinel {
		t.Errorf("the sentinel must take the last terminal number; got: %v", g.Terms[6])
	}

	number := g.Terms[1]
	if !number.Flags.Has(SymbolFlagInstall) {
		t.Error("the number token must carry the install flag")
	}
	if number.InsertCost != 2 || number.DeleteCost != 1 {
		t.Errorf("unexpected costs; got: insert %v, delete %v", number.InsertCost, number.DeleteCost)
	}

	plus := g.Terms[2]
	if plus.Precedence != 1 || !plus.Flags.Has(SymbolFlagLeft) {
		t.Errorf("unexpected plus attributes; got: %+v", plus)
	}
	star := g.Terms[3]
	if star.Precedence != 2 || !star.Flags.Has(SymbolFlagLeft) {
		t.Errorf("unexpected star attributes; got: %+v", star)
	}
	lparen := g.Terms[4]
	if lparen.Precedence != 0 || !lparen.Flags.Has(SymbolFlagNone) {
		t.Errorf("an unattributed token defaults to no associativity; got: %+v", lparen)
	}

	if g.Sentinel.InsertCost != (MaxCost+1)/2-1 || g.Sentinel.DeleteCost != MaxCost {
		t.Errorf("unexpected sentinel costs; got: insert %v, delete %v", g.Sentinel.InsertCost, g.Sentinel.DeleteCost)
	}

	if g.NTNumber != 2 {
		t.Fatalf("unexpected nonterminal count; want: 2, got: %v", g.NTNumber)
	}
	if g.GoalSym.Token != g.TNumber+1 {
		t.Errorf("the goal symbol must take the first nonterminal number; got: %v", g.GoalSym.Token)
	}
	expr := g.SymTab.Lookup("expr", SymbolKindNonTerminal, LookupOnly)
	if expr == nil || expr.Token != g.TNumber+2 {
		t.Errorf("unexpected expr token; got: %+v", expr)
	}
	if g.StartSym != expr {
		t.Errorf("the start symbol defaults to the first production's LHS; got: %v", g.StartSym)
	}

	if n := g.Prods.Count(); n != 5 {
		t.Fatalf("unexpected production count; want: 5, got: %v", n)
	}
	goal := g.Prods.ByNum(1)
	if goal.LHS != g.GoalSym || len(goal.RHS) != 2 || goal.RHS[0] != expr || goal.RHS[1] != g.Sentinel {
		t.Errorf("unexpected goal production; got: %+v", goal)
	}
	wantSemantics := []int{0, 1, 2, 0, 3}
	for i, want := range wantSemantics {
		if got := g.Prods.ByNum(i + 1).Semantic; got != want {
			t.Errorf("production %v: unexpected semantic; want: %v, got: %v", i+1, want, got)
		}
	}
}

func TestGrammarBuilder_ScanRoot(t *testing.T) {
	g := buildGrammar(t, calcSrc)

	// One branch per scanner rule, one for the ignored pattern, and the
	// end-of-file branch accepting the sentinel.
	if len(g.ScanRoot.Children) != 7 {
		t.Fatalf("unexpected branch count; want: 7, got: %v", len(g.ScanRoot.Children))
	}
	for i, branch := range g.ScanRoot.Children {
		if branch.Op != RegexOpConcat {
			t.Fatalf("branch %v must be a concatenation; got: %+v", i, branch)
		}
		last := branch.Children[len(branch.Children)-1]
		if last.Leaf != RegexLeafReference || last.Ref == nil {
			t.Fatalf("branch %v must end in its accepting reference; got: %+v", i, last)
		}
	}
	last := g.ScanRoot.Children[6]
	if last.Children[0].Leaf != RegexLeafEndOfFile {
		t.Errorf("the last branch accepts end-of-file; got: %+v", last.Children[0])
	}
	ignored := g.ScanRoot.Children[5].Children[len(g.ScanRoot.Children[5].Children)-1].Ref
	if ignored.Token != 7 || ignored.InsertCost != 0 || ignored.DeleteCost != 0 {
		t.Errorf("unexpected ignored placeholder; got: %+v", ignored)
	}
}

func TestGrammarBuilder_Alias(t *testing.T) {
	g := buildGrammar(t, `
SCANNER
    "a", PRECEDENCE = 3, INSTALL;
    "also" = "a", INSERT = 7;
PARSER
    <s> = "a" | "also";
`)
	base := g.SymTab.Lookup("a", SymbolKindTerminal, LookupOnly)
	alias := g.SymTab.Lookup("also", SymbolKindTerminal, LookupOnly)
	if alias == nil || !alias.Flags.Has(SymbolFlagAlias) {
		t.Fatalf("the alias flag must be set; got: %+v", alias)
	}
	if alias.Token != base.Token {
		t.Errorf("an alias shares its base's token; want: %v, got: %v", base.Token, alias.Token)
	}
	if alias.Base() != base {
		t.Errorf("Base must resolve to the owning terminal; got: %v", alias.Base())
	}
	if alias.InsertCost != 7 {
		t.Errorf("an alias keeps its own costs; got: %v", alias.InsertCost)
	}
	if alias.Precedence != 0 {
		t.Errorf("an alias keeps its own precedence; got: %v", alias.Precedence)
	}
	if !alias.Flags.Has(SymbolFlagInstall) {
		t.Error("an alias inherits its base's install flag")
	}
	if g.TNumber != 2 {
		t.Errorf("an alias takes no token number; want: 2, got: %v", g.TNumber)
	}
}

func TestGrammarBuilder_EmptyPattern(t *testing.T) {
	g := buildGrammar(t, `
SCANNER
    "mark" = "";
    "a";
PARSER
    <s> = "a" "mark";
`)
	mark := g.SymTab.Lookup("mark", SymbolKindTerminal, LookupOnly)
	if !mark.Flags.Has(SymbolFlagEmpty) {
		t.Fatalf("an empty pattern becomes an epsilon marker; got: %+v", mark)
	}
	if mark.Token <= g.TNumber {
		t.Errorf("the marker must be numbered past the parser terminals; got: %v", mark.Token)
	}
	prod := g.Prods.ByNum(2)
	if len(prod.RHS) != 2 || prod.EffLen != 1 {
		t.Errorf("a trailing marker must not count toward the effective length; got: %+v", prod)
	}
}

func TestGrammarBuilder_IgnoreCase(t *testing.T) {
	g := buildGrammar(t, `
SCANNER
    "begin", IGNORE CASE;
PARSER
    <s> = "begin";
`)
	// The folded keyword is a concatenation, so scanBranch appends the
	// reference to it: five letter classes, then the reference.
	word := g.ScanRoot.Children[0]
	if word.Op != RegexOpConcat || len(word.Children) != 6 {
		t.Fatalf("the keyword must fold into per-letter classes; got: %+v", word)
	}
	if word.Children[0].Leaf != RegexLeafClass || string(word.Children[0].Bytes) != "bB" {
		t.Errorf("unexpected first letter; got: %+v", word.Children[0])
	}
}

func TestGrammarBuilder_Defaults(t *testing.T) {
	g := buildGrammar(t, `
SCANNER
    "a";
    "b";
DEFAULT
    START = <t>;
    COST = 4;
    CONTEXT = 9;
PARSER
    <s> = "a";
    <t> = "b";
`)
	if g.DefCost != 4 || g.Context != 9 {
		t.Errorf("unexpected defaults; got: cost %v, context %v", g.DefCost, g.Context)
	}
	if g.StartSym.Name != "t" {
		t.Errorf("START must override the first production; got: %v", g.StartSym)
	}
	goal := g.Prods.ByNum(1)
	if goal.RHS[0] != g.StartSym {
		t.Errorf("the goal production must derive the start symbol; got: %+v", goal)
	}
}

func TestGrammarBuilder_OptionsCaseInsensitive(t *testing.T) {
	g := buildGrammar(t, `
OPTIONS ambiguous, ErrorRepair;
SCANNER
    "a";
PARSER
    <s> = "a";
`)
	if !g.Opts.Ambiguous || !g.Opts.ErrorRepair {
		t.Errorf("option names match case-insensitively; got: %+v", g.Opts)
	}
}

func TestGrammarBuilder_Errors(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		want    error
	}{
		{
			caption: "an unknown option",
			src:     `OPTIONS TURBO; SCANNER "a"; PARSER <s> = "a";`,
			want:    semErrUnknownOption,
		},
		{
			caption: "a duplicate definition",
			src:     `DEFINE d = "x"; d = "y"; SCANNER "a"; PARSER <s> = "a";`,
			want:    semErrDupDefine,
		},
		{
			caption: "an undefined definition reference",
			src:     `SCANNER "a" = nothing; PARSER <s> = "a";`,
			want:    semErrUndefDefine,
		},
		{
			caption: "a duplicate token",
			src:     `SCANNER "a"; "a" = [xy]; PARSER <s> = "a";`,
			want:    semErrDupToken,
		},
		{
			caption: "an alias of an unknown terminal",
			src:     `SCANNER "b" = "a"; PARSER <s> = "b";`,
			want:    semErrUndefAlias,
		},
		{
			caption: "an alias of an alias",
			src:     `SCANNER "a"; "b" = "a"; "c" = "b"; PARSER <s> = "a";`,
			want:    semErrAliasOfAlias,
		},
		{
			caption: "two associativities on one token",
			src:     `SCANNER "a", ASSOCIATIVITY = LEFT, ASSOCIATIVITY = RIGHT; PARSER <s> = "a";`,
			want:    semErrDupAssoc,
		},
		{
			caption: "an undefined terminal in a production",
			src:     `SCANNER "a"; PARSER <s> = "zzz";`,
			want:    semErrUndefTerminal,
		},
		{
			caption: "an undefined nonterminal",
			src:     `SCANNER "a"; PARSER <s> = <ghost> "a";`,
			want:    semErrUndefNonTerm,
		},
		{
			caption: "an undefined start symbol",
			src:     `SCANNER "a"; DEFAULT START = <ghost>; PARSER <s> = "a";`,
			want:    semErrUndefNonTerm,
		},
		{
			caption: "a zero repair cost",
			src:     `SCANNER "a"; DEFAULT COST = 0; PARSER <s> = "a";`,
			want:    semErrBadRepairCost,
		},
		{
			caption: "a zero repair context",
			src:     `SCANNER "a"; DEFAULT CONTEXT = 0; PARSER <s> = "a";`,
			want:    semErrBadContext,
		},
		{
			caption: "a descending character range",
			src:     `SCANNER "a" = [9] : [0]; PARSER <s> = "a";`,
			want:    semErrBadRange,
		},
		{
			caption: "a difference of complex operands",
			src:     `SCANNER "a" = "xy"* - "x"; PARSER <s> = "a";`,
			want:    semErrBadClassOperand,
		},
		{
			caption: "a nonterminal deriving no terminal string",
			src:     `OPTIONS ERRORREPAIR; SCANNER "a"; PARSER <s> = <s> "a";`,
			want:    semErrNoDerivation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			errs := buildError(t, tt.src)
			if !containsCause(errs, tt.want) {
				t.Fatalf("want an error caused by %q; got: %v", tt.want, errs)
			}
		})
	}
}

func TestGrammarBuilder_PartialGrammar(t *testing.T) {
	ast, err := spec.Parse(strings.NewReader(`SCANNER "a"; PARSER <s> = <ghost> "a";`))
	if err != nil {
		t.Fatal(err)
	}
	g, err := (&GrammarBuilder{AST: ast}).Build()
	if err == nil {
		t.Fatal("an error must occur")
	}
	if g == nil {
		t.Fatal("a broken grammar file must still yield a partial grammar")
	}
	if g.ScanRoot == nil {
		t.Error("the scanner tree must survive")
	}
	if g.Prods == nil || g.Prods.Count() != 2 {
		t.Errorf("the productions must survive; got: %+v", g.Prods)
	}
	if g.SymTab.Lookup("ghost", SymbolKindNonTerminal, LookupOnly) == nil {
		t.Error("the undefined nonterminal must be entered for the listings")
	}
}

func TestGrammarBuilder_PredefinedNames(t *testing.T) {
	g := buildGrammar(t, `
SCANNER
    "nl" = NL;
    "tab" = HT;
PARSER
    <s> = "nl" "tab";
`)
	nl := g.ScanRoot.Children[0].Children[0]
	if nl.Leaf != RegexLeafCharacter || string(nl.Bytes) != "\n" {
		t.Errorf("NL must expand to a newline; got: %+v", nl)
	}
	tab := g.ScanRoot.Children[1].Children[0]
	if tab.Leaf != RegexLeafCharacter || string(tab.Bytes) != "\t" {
		t.Errorf("HT must expand to a tab; got: %+v", tab)
	}
}

func TestDisplayName(t *testing.T) {
	tab := NewSymbolTable()
	term := tab.Lookup("+", SymbolKindTerminal, LookupInsert)
	if got := DisplayName(term); got != `"+"` {
		t.Errorf(`want: "+", got: %v`, got)
	}
	ctrl := tab.Lookup("\n", SymbolKindTerminal, LookupInsert)
	if got := DisplayName(ctrl); got != "LF" {
		t.Errorf("want: LF, got: %v", got)
	}
	nt := tab.Lookup("expr", SymbolKindNonTerminal, LookupInsert)
	if got := DisplayName(nt); got != "<expr>" {
		t.Errorf("want: <expr>, got: %v", got)
	}
}
