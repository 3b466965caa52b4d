package driver

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtkit/sdt/compressor"
	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/grammar/lexical"
	"github.com/sdtkit/sdt/spec"
)

const calcSrc = `
IDENT calc;
OPTIONS AMBIGUOUS, ERRORREPAIR;
DEFINE
    digit = [0123456789];
SCANNER
    "number" = digit+, INSTALL;
    "+", PRECEDENCE = 1, ASSOCIATIVITY = LEFT;
    "*", PRECEDENCE = 2, ASSOCIATIVITY = LEFT;
    "(";
    ")";
    [ \t\n]+;
DEFAULT
    COST = 2;
    CONTEXT = 3;
PARSER
    <expr> = <expr> "+" <expr> $1
           | <expr> "*" <expr> $2
           | "(" <expr> ")"
           | "number" $3;
`

func buildTables(t *testing.T, src string) *spec.Tables {
	t.Helper()
	ast, err := spec.Parse(strings.NewReader(src))
	require.NoError(t, err)
	g, err := (&grammar.GrammarBuilder{AST: ast}).Build()
	require.NoError(t, err)
	tab, _, err := grammar.Compile(g)
	require.NoError(t, err)
	require.NoError(t, lexical.Compile(g, tab))
	return tab
}

// calcRun collects everything the callbacks observe: the value stack of
// the evaluating semantic action, the fired action numbers, and the
// installed token texts.
type calcRun struct {
	out     bytes.Buffer
	stack   []int
	actions []int
	symbols []string
}

func newCalc(t *testing.T, tab *spec.Tables, input string, extra ...Option) (*Parser, *calcRun) {
	t.Helper()
	r := &calcRun{}
	opts := []Option{
		WithOutput(&r.out),
		WithInstallToken(func(p *Parser, tok *Token) {
			r.symbols = append(r.symbols, tok.Symbol)
		}),
		WithSemanticAction(func(p *Parser, n int) {
			r.actions = append(r.actions, n)
			switch n {
			case 1:
				r.stack[len(r.stack)-2] += r.stack[len(r.stack)-1]
				r.stack = r.stack[:len(r.stack)-1]
			case 2:
				r.stack[len(r.stack)-2] *= r.stack[len(r.stack)-1]
				r.stack = r.stack[:len(r.stack)-1]
			case 3:
				v, _ := strconv.Atoi(p.Symbol(0))
				r.stack = append(r.stack, v)
			}
		}),
	}
	return New(tab, strings.NewReader(input), append(opts, extra...)...), r
}

func TestParser_Evaluate(t *testing.T) {
	tests := []struct {
		caption string
		input   string
		want    int
	}{
		{caption: "a single number", input: "12\n", want: 12},
		{caption: "precedence", input: "1+2*3\n", want: 7},
		{caption: "parentheses", input: "(1+2)*3\n", want: 9},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			tab := buildTables(t, calcSrc)
			p, r := newCalc(t, tab, tt.input)
			require.NoError(t, p.Parse())
			require.Len(t, r.stack, 1)
			assert.Equal(t, tt.want, r.stack[0])
			assert.Zero(t, r.out.Len())
		})
	}
}

func TestParser_Callbacks(t *testing.T) {
	tab := buildTables(t, calcSrc)
	p, r := newCalc(t, tab, "1+2*3\n")
	require.NoError(t, p.Parse())

	// Every number is installed in input order; the reduce of an operand
	// fires before the reduce that consumes it.
	assert.Equal(t, []string{"1", "2", "3"}, r.symbols)
	assert.Equal(t, []int{3, 3, 3, 2, 1}, r.actions)
}

func TestParser_PackedTables(t *testing.T) {
	tab := buildTables(t, calcSrc)
	_, err := compressor.Compress(tab)
	require.NoError(t, err)

	p, r := newCalc(t, tab, "1+2*3\n")
	require.NoError(t, p.Parse())
	require.Len(t, r.stack, 1)
	assert.Equal(t, 7, r.stack[0])
	assert.Zero(t, r.out.Len())
}

func TestParser_TokenNumber(t *testing.T) {
	tab := buildTables(t, calcSrc)
	p := New(tab, strings.NewReader(""))

	assert.Equal(t, 1, p.TokenNumber("number"))
	assert.Equal(t, 2, p.TokenNumber("+"))
	assert.Equal(t, 6, p.TokenNumber(`"'$'"`))
	assert.Zero(t, p.TokenNumber("ghost"))
}

func TestParser_Listing(t *testing.T) {
	tab := buildTables(t, calcSrc)
	p, r := newCalc(t, tab, "1+\n2\n", WithListing())
	require.NoError(t, p.Parse())

	require.Len(t, r.stack, 1)
	assert.Equal(t, 3, r.stack[0])
	assert.Equal(t, "     1: 1+\n     2: 2\n", r.out.String())
}

func TestParser_RecordError(t *testing.T) {
	tab := buildTables(t, calcSrc)
	var out bytes.Buffer
	p := New(tab, strings.NewReader("1+42\n"),
		WithOutput(&out),
		WithSemanticAction(func(p *Parser, n int) {
			if n == 3 && p.Symbol(0) == "42" {
				p.RecordError(p.Where(0), "forbidden value %v", p.Symbol(0))
			}
		}))
	require.NoError(t, p.Parse())
	assert.Equal(t, "     1: 1+42\n\t  ^\n *****\tforbidden value 42\n", out.String())
}

const listSrc = `
IDENT list;
SCANNER
    "stop";
    "word" = [abcdefghijklmnopqrstuvwxyz]+, INSTALL;
    [ \n]+;
PARSER
    <list> = <list> "word" $1
           | "stop";
`

func TestParser_InstallRewrite(t *testing.T) {
	tab := buildTables(t, listSrc)
	var installed []int
	var words []string
	var out bytes.Buffer
	p := New(tab, strings.NewReader("stop ab cd\n"),
		WithOutput(&out),
		WithInstallToken(func(p *Parser, tok *Token) {
			installed = append(installed, tok.Number)
			tok.Symbol = strings.ToUpper(tok.Symbol)
		}),
		WithSemanticAction(func(p *Parser, n int) {
			if n == 1 {
				words = append(words, p.Symbol(0))
			}
		}))
	require.NoError(t, p.Parse())

	// The keyword never reaches the install callback; the rewritten
	// texts are what the semantic action sees.
	assert.Equal(t, []int{2, 2}, installed)
	assert.Equal(t, []string{"AB", "CD"}, words)
	assert.Zero(t, out.Len())
}

func TestParser_BufferBoundary(t *testing.T) {
	tab := buildTables(t, calcSrc)

	// The number starts two bytes before the end of the first input
	// buffer, so its text must be assembled across the seam.
	input := strings.Repeat(" ", 8190) + "12345+1\n"
	p, r := newCalc(t, tab, input)
	require.NoError(t, p.Parse())

	assert.Equal(t, []string{"12345", "1"}, r.symbols)
	require.Len(t, r.stack, 1)
	assert.Equal(t, 12346, r.stack[0])
}
