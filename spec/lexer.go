package spec

import (
	"fmt"
	"io"

	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

type tokenKind string

const (
	tokenKindID        = tokenKind("id")
	tokenKindNumber    = tokenKind("number")
	tokenKindString    = tokenKind("string")
	tokenKindClass     = tokenKind("character class")
	tokenKindSymbol    = tokenKind("symbol")
	tokenKindSemantic  = tokenKind("semantic marker")
	tokenKindEq        = tokenKind("=")
	tokenKindComma     = tokenKind(",")
	tokenKindSemicolon = tokenKind(";")
	tokenKindOr        = tokenKind("|")
	tokenKindLParen    = tokenKind("(")
	tokenKindRParen    = tokenKind(")")
	tokenKindLBrace    = tokenKind("{")
	tokenKindRBrace    = tokenKind("}")
	tokenKindColon     = tokenKind(":")
	tokenKindStar      = tokenKind("*")
	tokenKindPlus      = tokenKind("+")
	tokenKindQuestion  = tokenKind("?")
	tokenKindSlash     = tokenKind("/")
	tokenKindMinus     = tokenKind("-")
	tokenKindTilde     = tokenKind("~")
	tokenKindUnclosed  = tokenKind("unclosed literal")
	tokenKindEOF       = tokenKind("eof")
	tokenKindInvalid   = tokenKind("invalid")
)

type token struct {
	kind tokenKind
	text string
	num  int
	row  int
	col  int
}

// tokenPatterns drives the lexer construction. The machine prefers the
// longest match, so the unclosed-literal patterns only fire when the
// closing delimiter is genuinely missing on the line.
var tokenPatterns = []struct {
	kind    tokenKind
	pattern string
}{
	{tokenKindID, `[a-zA-Z_][a-zA-Z0-9_]*`},
	{tokenKindNumber, `[0-9]+`},
	{tokenKindString, `"[^"\n]*"`},
	{tokenKindString, `'[^'\n]*'`},
	{tokenKindClass, `\[[^\]\n]*\]`},
	{tokenKindSymbol, `<[^>\n]*>`},
	{tokenKindSemantic, `\$[0-9]+`},
	{tokenKindUnclosed, `"[^"\n]*`},
	{tokenKindUnclosed, `'[^'\n]*`},
	{tokenKindUnclosed, `\[[^\]\n]*`},
	{tokenKindUnclosed, `<[^>\n]*`},
	{tokenKindEq, `=`},
	{tokenKindComma, `,`},
	{tokenKindSemicolon, `;`},
	{tokenKindOr, `\|`},
	{tokenKindLParen, `\(`},
	{tokenKindRParen, `\)`},
	{tokenKindLBrace, `{`},
	{tokenKindRBrace, `}`},
	{tokenKindColon, `:`},
	{tokenKindStar, `\*`},
	{tokenKindPlus, `\+`},
	{tokenKindQuestion, `\?`},
	{tokenKindSlash, `/`},
	{tokenKindMinus, `-`},
	{tokenKindTilde, `~`},
}

func newLexMachine() (*lexmachine.Lexer, error) {
	lex := lexmachine.NewLexer()
	skip := func(*lexmachine.Scanner, *machines.Match) (interface{}, error) {
		return nil, nil
	}
	lex.Add([]byte(`%[^%]*%`), skip)
	lex.Add([]byte(`( |\t|\n|\r)+`), skip)
	for i, p := range tokenPatterns {
		id := i
		lex.Add([]byte(p.pattern), func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
			return s.Token(id, string(m.Bytes), m), nil
		})
	}
	if err := lex.Compile(); err != nil {
		return nil, fmt.Errorf("failed to compile the token patterns: %v", err)
	}
	return lex, nil
}

type lexer struct {
	scanner *lexmachine.Scanner
}

func newLexer(src io.Reader) (*lexer, error) {
	b, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	lm, err := newLexMachine()
	if err != nil {
		return nil, err
	}
	s, err := lm.Scanner(b)
	if err != nil {
		return nil, err
	}
	return &lexer{
		scanner: s,
	}, nil
}

func (l *lexer) next() (*token, error) {
	tok, err, eof := l.scanner.Next()
	if eof {
		return &token{
			kind: tokenKindEOF,
		}, nil
	}
	if err != nil {
		ui, ok := err.(*machines.UnconsumedInput)
		if !ok {
			return nil, err
		}
		l.scanner.TC = ui.FailTC
		return &token{
			kind: tokenKindInvalid,
			text: string(ui.Text[ui.StartTC:ui.FailTC]),
			row:  ui.StartLine,
			col:  ui.StartColumn,
		}, nil
	}
	t := tok.(*lexmachine.Token)
	kind := tokenPatterns[t.Type].kind
	out := &token{
		kind: kind,
		text: string(t.Lexeme),
		row:  t.StartLine,
		col:  t.StartColumn,
	}
	switch kind {
	case tokenKindString, tokenKindClass, tokenKindSymbol:
		out.text = out.text[1 : len(out.text)-1]
	case tokenKindNumber:
		out.num = atoiSaturating(out.text)
	case tokenKindSemantic:
		out.num = atoiSaturating(out.text[1:])
	}
	return out, nil
}

// atoiSaturating parses a digit run, clamping at the int maximum instead
// of failing.
func atoiSaturating(s string) int {
	const max = int(^uint(0) >> 1)
	n := 0
	for _, c := range []byte(s) {
		if n > (max-int(c-'0'))/10 {
			return max
		}
		n = n*10 + int(c-'0')
	}
	return n
}
