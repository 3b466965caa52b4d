package spec

import (
	"io"

	verr "github.com/sdtkit/sdt/error"
)

func raiseSyntaxError(synErr *SyntaxError) {
	panic(synErr)
}

// reservedWords are section keywords. They terminate the section that is
// being parsed and are never usable as definition names or pattern
// references.
var reservedWords = map[string]bool{
	"IDENT":   true,
	"TITLE":   true,
	"OPTIONS": true,
	"DEFINE":  true,
	"SCANNER": true,
	"DEFAULT": true,
	"PARSER":  true,
}

func Parse(src io.Reader) (*RootNode, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return root, nil
}

type parser struct {
	lex       *lexer
	peekedTok *token
	lastTok   *token
}

func newParser(src io.Reader) (*parser, error) {
	lex, err := newLexer(src)
	if err != nil {
		return nil, err
	}
	return &parser{
		lex: lex,
	}, nil
}

func (p *parser) parse() (root *RootNode, retErr error) {
	defer func() {
		err := recover()
		if err != nil {
			synErr, ok := err.(*SyntaxError)
			if !ok {
				retErr = err.(error)
				return
			}
			pos := p.errPos()
			retErr = &verr.SpecError{
				Cause: synErr,
				Row:   pos.Row,
				Col:   pos.Col,
			}
			return
		}
	}()
	return p.parseRoot(), nil
}

func (p *parser) errPos() Position {
	if p.lastTok != nil {
		return Position{Row: p.lastTok.row, Col: p.lastTok.col}
	}
	if p.peekedTok != nil {
		return Position{Row: p.peekedTok.row, Col: p.peekedTok.col}
	}
	return Position{}
}

func (p *parser) parseRoot() *RootNode {
	root := &RootNode{}
	p.parseIdent(root)
	p.parseTitle(root)
	p.parseOptions(root)
	p.parseDefines(root)
	p.parseScanner(root)
	p.parseDefaults(root)
	p.parseParser(root)
	return root
}

func (p *parser) parseIdent(root *RootNode) {
	if !p.consumeKeyword("IDENT") {
		return
	}
	if !p.consume(tokenKindID) {
		raiseSyntaxError(synErrNoIdentName)
	}
	root.Ident = p.lastTok.text
	if !p.consume(tokenKindSemicolon) {
		raiseSyntaxError(synErrNoSemicolon)
	}
}

func (p *parser) parseTitle(root *RootNode) {
	if !p.consumeKeyword("TITLE") {
		return
	}
	if !p.consume(tokenKindString) {
		raiseSyntaxError(synErrNoTitleText)
	}
	root.Title = p.lastTok.text
	p.consume(tokenKindSemicolon)
}

func (p *parser) parseOptions(root *RootNode) {
	if !p.consumeKeyword("OPTIONS") {
		return
	}
	if !p.consume(tokenKindID) {
		raiseSyntaxError(synErrNoOptionName)
	}
	root.Options = append(root.Options, &OptionNode{
		Name: p.lastTok.text,
		Pos:  p.pos(),
	})
	for p.consume(tokenKindComma) {
		if !p.consume(tokenKindID) {
			raiseSyntaxError(synErrNoOptionName)
		}
		root.Options = append(root.Options, &OptionNode{
			Name: p.lastTok.text,
			Pos:  p.pos(),
		})
	}
	p.consume(tokenKindSemicolon)
}

func (p *parser) parseDefines(root *RootNode) {
	if !p.consumeKeyword("DEFINE") {
		return
	}
	for {
		tok := p.peek()
		if tok.kind != tokenKindID || reservedWords[tok.text] {
			break
		}
		p.consume(tokenKindID)
		def := &DefineNode{
			Name: p.lastTok.text,
			Pos:  p.pos(),
		}
		if !p.consume(tokenKindEq) {
			raiseSyntaxError(synErrNoDefineEq)
		}
		def.Pattern = p.parseRegexAlt()
		if !p.consume(tokenKindSemicolon) {
			raiseSyntaxError(synErrNoSemicolon)
		}
		root.Defines = append(root.Defines, def)
	}
}

func (p *parser) parseScanner(root *RootNode) {
	if !p.consumeKeyword("SCANNER") {
		raiseSyntaxError(synErrNoScanner)
	}
	for {
		tok := p.peek()
		if tok.kind == tokenKindEOF {
			break
		}
		if tok.kind == tokenKindID && reservedWords[tok.text] {
			break
		}
		root.Tokens = append(root.Tokens, p.parseTokenDecl())
	}
}

// parseTokenDecl handles the three declaration forms of the SCANNER
// section: a named pattern ("name" = pattern, attrs;), a bare name whose
// text is its own pattern ("name", attrs;), and an anonymous ignored
// pattern (pattern;).
func (p *parser) parseTokenDecl() *TokenDeclNode {
	pattern := p.parseRegexAlt()
	decl := &TokenDeclNode{
		Pos: pattern.Pos,
	}
	if pattern.Kind == RegexKindString && p.consume(tokenKindEq) {
		decl.Name = pattern.Text
		decl.Pattern = p.parseRegexAlt()
		decl.Attrs = p.parseAttrs()
	} else if pattern.Kind == RegexKindString {
		decl.Name = pattern.Text
		decl.Attrs = p.parseAttrs()
	} else {
		decl.Pattern = pattern
	}
	if !p.consume(tokenKindSemicolon) {
		raiseSyntaxError(synErrNoSemicolon)
	}
	return decl
}

func (p *parser) parseAttrs() []*AttrNode {
	var attrs []*AttrNode
	for p.consume(tokenKindComma) {
		attrs = append(attrs, p.parseAttr())
	}
	return attrs
}

func (p *parser) parseAttr() *AttrNode {
	if !p.consume(tokenKindID) {
		raiseSyntaxError(synErrNoAttr)
	}
	attr := &AttrNode{
		Pos: p.pos(),
	}
	switch p.lastTok.text {
	case "PRECEDENCE":
		attr.Kind = AttrKindPrecedence
		attr.Value = p.parseAttrNumber()
	case "ASSOCIATIVITY":
		attr.Kind = AttrKindAssociativity
		if !p.consume(tokenKindEq) {
			raiseSyntaxError(synErrNoAssoc)
		}
		if !p.consume(tokenKindID) {
			raiseSyntaxError(synErrNoAssoc)
		}
		switch p.lastTok.text {
		case "LEFT":
			attr.Assoc = AssocLeft
		case "RIGHT":
			attr.Assoc = AssocRight
		case "NONE":
			attr.Assoc = AssocNone
		default:
			raiseSyntaxError(synErrNoAssoc)
		}
	case "INSERT":
		attr.Kind = AttrKindInsert
		attr.Value = p.parseAttrNumber()
	case "DELETE":
		attr.Kind = AttrKindDelete
		attr.Value = p.parseAttrNumber()
	case "INSTALL":
		attr.Kind = AttrKindInstall
	case "IGNORE":
		if !p.consume(tokenKindID) || p.lastTok.text != "CASE" {
			raiseSyntaxError(synErrIgnoreNoCase)
		}
		attr.Kind = AttrKindIgnoreCase
	default:
		raiseSyntaxError(synErrInvalidAttr)
	}
	return attr
}

func (p *parser) parseAttrNumber() int {
	if !p.consume(tokenKindEq) {
		raiseSyntaxError(synErrNoNumber)
	}
	if !p.consume(tokenKindNumber) {
		raiseSyntaxError(synErrNoNumber)
	}
	return p.lastTok.num
}

func (p *parser) parseDefaults(root *RootNode) {
	if !p.consumeKeyword("DEFAULT") {
		return
	}
	for {
		tok := p.peek()
		if tok.kind != tokenKindID || reservedWords[tok.text] {
			break
		}
		p.consume(tokenKindID)
		def := &DefaultNode{
			Pos: p.pos(),
		}
		switch p.lastTok.text {
		case "START":
			def.Kind = DefaultKindStart
			if !p.consume(tokenKindEq) {
				raiseSyntaxError(synErrNoDefaultEq)
			}
			if !p.consume(tokenKindSymbol) {
				raiseSyntaxError(synErrNoStartSymbol)
			}
			def.Name = p.lastTok.text
		case "COST":
			def.Kind = DefaultKindCost
			def.Value = p.parseDefaultNumber()
		case "CONTEXT":
			def.Kind = DefaultKindContext
			def.Value = p.parseDefaultNumber()
		default:
			raiseSyntaxError(synErrInvalidAttr)
		}
		p.consume(tokenKindSemicolon)
		root.Defaults = append(root.Defaults, def)
	}
}

func (p *parser) parseDefaultNumber() int {
	if !p.consume(tokenKindEq) {
		raiseSyntaxError(synErrNoDefaultEq)
	}
	if !p.consume(tokenKindNumber) {
		raiseSyntaxError(synErrNoNumber)
	}
	return p.lastTok.num
}

func (p *parser) parseParser(root *RootNode) {
	if !p.consumeKeyword("PARSER") {
		raiseSyntaxError(synErrNoParser)
	}
	prod := p.parseProduction()
	if prod == nil {
		raiseSyntaxError(synErrNoProduction)
	}
	root.Productions = []*ProductionNode{prod}
	for {
		prod := p.parseProduction()
		if prod == nil {
			break
		}
		root.Productions = append(root.Productions, prod)
	}
}

func (p *parser) parseProduction() *ProductionNode {
	if p.consume(tokenKindEOF) {
		return nil
	}
	if !p.consume(tokenKindSymbol) {
		raiseSyntaxError(synErrNoProductionName)
	}
	prod := &ProductionNode{
		LHS: p.lastTok.text,
		Pos: p.pos(),
	}
	if !p.consume(tokenKindEq) {
		raiseSyntaxError(synErrNoProductionEq)
	}
	alt := p.parseAlternative()
	prod.RHS = []*AlternativeNode{alt}
	for p.consume(tokenKindOr) {
		alt := p.parseAlternative()
		prod.RHS = append(prod.RHS, alt)
	}
	if !p.consume(tokenKindSemicolon) {
		raiseSyntaxError(synErrNoSemicolon)
	}
	return prod
}

func (p *parser) parseAlternative() *AlternativeNode {
	alt := &AlternativeNode{
		Elements: []*ElementNode{},
		Pos:      p.peekPos(),
	}
	for {
		elem := p.parseElement()
		if elem == nil {
			break
		}
		alt.Elements = append(alt.Elements, elem)
	}
	return alt
}

func (p *parser) parseElement() *ElementNode {
	switch {
	case p.consume(tokenKindSymbol):
		return &ElementNode{
			Kind: ElementKindSymbol,
			Name: p.lastTok.text,
			Pos:  p.pos(),
		}
	case p.consume(tokenKindString):
		return &ElementNode{
			Kind: ElementKindToken,
			Name: p.lastTok.text,
			Pos:  p.pos(),
		}
	case p.consume(tokenKindSemantic):
		return &ElementNode{
			Kind:   ElementKindSemantic,
			Number: p.lastTok.num,
			Pos:    p.pos(),
		}
	}
	return nil
}

// Pattern expressions. Precedence, loosest first: alternation, lookahead,
// concatenation (juxtaposition), difference/range, complement, postfix
// repetition.

func (p *parser) parseRegexAlt() *RegexNode {
	left := p.parseRegexBranch()
	if !p.consume(tokenKindOr) {
		return left
	}
	alt := &RegexNode{
		Kind:     RegexKindAlt,
		Children: []*RegexNode{left},
		Pos:      left.Pos,
	}
	for {
		alt.Children = append(alt.Children, p.parseRegexBranch())
		if !p.consume(tokenKindOr) {
			break
		}
	}
	return alt
}

func (p *parser) parseRegexBranch() *RegexNode {
	left := p.parseRegexSeq()
	if !p.consume(tokenKindSlash) {
		return left
	}
	right := p.parseRegexSeq()
	return &RegexNode{
		Kind:     RegexKindLookahead,
		Children: []*RegexNode{left, right},
		Pos:      left.Pos,
	}
}

func (p *parser) parseRegexSeq() *RegexNode {
	first := p.parseRegexTerm()
	if !p.startsRegexTerm() {
		return first
	}
	seq := &RegexNode{
		Kind:     RegexKindConcat,
		Children: []*RegexNode{first},
		Pos:      first.Pos,
	}
	for p.startsRegexTerm() {
		seq.Children = append(seq.Children, p.parseRegexTerm())
	}
	return seq
}

func (p *parser) startsRegexTerm() bool {
	switch tok := p.peek(); tok.kind {
	case tokenKindString, tokenKindClass, tokenKindLParen, tokenKindLBrace, tokenKindTilde:
		return true
	case tokenKindID:
		return !reservedWords[tok.text]
	}
	return false
}

func (p *parser) parseRegexTerm() *RegexNode {
	left := p.parseRegexUnary()
	switch {
	case p.consume(tokenKindMinus):
		right := p.parseRegexUnary()
		return &RegexNode{
			Kind:     RegexKindDiff,
			Children: []*RegexNode{left, right},
			Pos:      left.Pos,
		}
	case p.consume(tokenKindColon):
		right := p.parseRegexUnary()
		return &RegexNode{
			Kind:     RegexKindRange,
			Children: []*RegexNode{left, right},
			Pos:      left.Pos,
		}
	}
	return left
}

func (p *parser) parseRegexUnary() *RegexNode {
	if p.consume(tokenKindTilde) {
		pos := p.pos()
		operand := p.parseRegexUnary()
		return &RegexNode{
			Kind:     RegexKindNot,
			Children: []*RegexNode{operand},
			Pos:      pos,
		}
	}
	node := p.parseRegexPrimary()
	for {
		switch {
		case p.consume(tokenKindStar):
			node = &RegexNode{
				Kind:     RegexKindClosure,
				Children: []*RegexNode{node},
				Pos:      node.Pos,
			}
		case p.consume(tokenKindPlus):
			node = &RegexNode{
				Kind:     RegexKindPositive,
				Children: []*RegexNode{node},
				Pos:      node.Pos,
			}
		case p.consume(tokenKindQuestion):
			node = &RegexNode{
				Kind:     RegexKindOption,
				Children: []*RegexNode{node},
				Pos:      node.Pos,
			}
		default:
			return node
		}
	}
}

func (p *parser) parseRegexPrimary() *RegexNode {
	switch {
	case p.consume(tokenKindString):
		return &RegexNode{
			Kind: RegexKindString,
			Text: p.lastTok.text,
			Pos:  p.pos(),
		}
	case p.consume(tokenKindClass):
		return &RegexNode{
			Kind: RegexKindClass,
			Text: p.lastTok.text,
			Pos:  p.pos(),
		}
	case p.consume(tokenKindID):
		if reservedWords[p.lastTok.text] {
			raiseSyntaxError(synErrNoPattern)
		}
		return &RegexNode{
			Kind: RegexKindReference,
			Text: p.lastTok.text,
			Pos:  p.pos(),
		}
	case p.consume(tokenKindLParen):
		node := p.parseRegexAlt()
		if !p.consume(tokenKindRParen) {
			raiseSyntaxError(synErrNoCloseParen)
		}
		return node
	case p.consume(tokenKindLBrace):
		pos := p.pos()
		operand := p.parseRegexAlt()
		if !p.consume(tokenKindRBrace) {
			raiseSyntaxError(synErrNoCloseBrace)
		}
		if !p.consume(tokenKindNumber) {
			raiseSyntaxError(synErrNoRepeatCount)
		}
		rep := &RegexNode{
			Kind:     RegexKindRepeat,
			Children: []*RegexNode{operand},
			Low:      p.lastTok.num,
			Pos:      pos,
		}
		if p.consume(tokenKindColon) {
			if !p.consume(tokenKindNumber) {
				raiseSyntaxError(synErrNoRepeatCount)
			}
			rep.High = p.lastTok.num
		}
		return rep
	}
	raiseSyntaxError(synErrNoPattern)
	return nil
}

func (p *parser) pos() Position {
	return Position{Row: p.lastTok.row, Col: p.lastTok.col}
}

func (p *parser) peekPos() Position {
	tok := p.peek()
	return Position{Row: tok.row, Col: tok.col}
}

func (p *parser) peek() *token {
	if p.peekedTok != nil {
		return p.peekedTok
	}
	tok, err := p.lex.next()
	if err != nil {
		panic(err)
	}
	p.peekedTok = tok
	return tok
}

func (p *parser) consume(expected tokenKind) bool {
	var tok *token
	var err error
	if p.peekedTok != nil {
		tok = p.peekedTok
		p.peekedTok = nil
	} else {
		tok, err = p.lex.next()
		if err != nil {
			panic(err)
		}
	}
	p.lastTok = tok
	if tok.kind == tokenKindInvalid {
		raiseSyntaxError(synErrInvalidToken)
	}
	if tok.kind == tokenKindUnclosed {
		raiseSyntaxError(synErrUnclosedLiteral)
	}
	if tok.kind == expected {
		return true
	}
	p.peekedTok = tok
	p.lastTok = nil

	return false
}

func (p *parser) consumeKeyword(name string) bool {
	tok := p.peek()
	if tok.kind != tokenKindID || tok.text != name {
		return false
	}
	p.consume(tokenKindID)
	return true
}
