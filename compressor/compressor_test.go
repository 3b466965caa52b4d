package compressor

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdtkit/sdt/grammar"
	"github.com/sdtkit/sdt/grammar/lexical"
	"github.com/sdtkit/sdt/spec"
)

const calcSrc = `
IDENT calc;
OPTIONS AMBIGUOUS;
DEFINE
    digit = [0123456789];
SCANNER
    "number" = digit+, INSTALL;
    "+", PRECEDENCE = 1, ASSOCIATIVITY = LEFT;
    "*", PRECEDENCE = 2, ASSOCIATIVITY = LEFT;
    "(";
    ")";
    [ \t\n]+;
PARSER
    <expr> = <expr> "+" <expr>
           | <expr> "*" <expr>
           | "(" <expr> ")"
           | "number";
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

func TestCompress_Equivalence(t *testing.T) {
	tab := buildTables(t, calcSrc)
	scan := tab.ScanTrans
	parse := tab.ParseActions

	stats, err := Compress(tab)
	require.NoError(t, err)
	assert.True(t, tab.Compressed)
	assert.Nil(t, tab.ScanTrans)
	assert.Nil(t, tab.ParseActions)

	for s := 1; s <= tab.SNumber; s++ {
		for c := 0; c < spec.MapCount; c++ {
			if got := tab.ScanAction(s, c); got != scan[s][c] {
				t.Fatalf("scanner state %v, char %v: want: %v, got: %v", s, c, scan[s][c], got)
			}
		}
	}
	width := tab.TNumber + tab.NTNumber
	for s := 1; s <= tab.PNumber; s++ {
		for tok := 1; tok <= width; tok++ {
			if got := tab.ParseAction(s, tok); got != parse[s][tok] {
				t.Fatalf("parser state %v, token %v: want: %v, got: %v", s, tok, parse[s][tok], got)
			}
		}
	}

	assert.Greater(t, stats.ScannerEntries, 0)
	assert.Greater(t, stats.ParserEntries, 0)
	assert.GreaterOrEqual(t, stats.MaxChain, 1)
	assert.GreaterOrEqual(t, stats.MeanChain, 1.0)
	assert.LessOrEqual(t, stats.MeanChain, float64(stats.MaxChain))
}

func TestCompress_AlreadyCompressed(t *testing.T) {
	tab := buildTables(t, calcSrc)
	_, err := Compress(tab)
	require.NoError(t, err)
	_, err = Compress(tab)
	assert.Error(t, err)
}

func TestCompress_WriteRoundTrip(t *testing.T) {
	tab := buildTables(t, calcSrc)
	_, err := Compress(tab)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tab.Write(&buf))
	got, err := spec.ReadTables(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	if !reflect.DeepEqual(got, tab) {
		t.Fatal("the reread tables differ from the packed originals")
	}
}
