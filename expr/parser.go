// Package expr implements the expression language embedded in templates.
//
// Expressions appear inside mustache interpolations, directive values, and
// event handler attributes. The language is a small dynamically-typed
// expression grammar: literals, identifiers resolved against a scope chain,
// arithmetic and comparison operators, ternaries, calls, attribute and
// subscript access, and list/map literals. Event handlers may additionally
// use assignment, the ++/-- postfix operators, and semicolon-separated
// sequences.
//
// A parser is created internally by Parse or ParseProgram and used once.
// Parsing never panics on malformed input; errors are returned as structured
// diagnostics with source positions.
package expr

import (
	"fmt"
	"strconv"

	"github.com/deepnoodle-ai/loom/diag"
	"github.com/deepnoodle-ai/loom/internal/lexer"
	"github.com/deepnoodle-ai/loom/internal/tmpl"
	"github.com/deepnoodle-ai/loom/internal/token"
)

type (
	prefixParseFn func() Node
	infixParseFn  func(Node) Node
)

// MaxErrors is the maximum number of errors recorded for one expression.
const MaxErrors = 8

// DefaultMaxDepth is the default maximum nesting depth for parsing.
// Template expressions are short, so this is far smaller than a general
// purpose language would use.
const DefaultMaxDepth = 100

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the file name used in error positions.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// WithMaxDepth sets the maximum nesting depth for the parser.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// Parse parses a single expression and returns its AST. The entire input
// must be consumed; trailing tokens are an error.
func Parse(input string, options ...Option) (Node, error) {
	p := newParser(input, options...)
	if p.hasErrors() {
		return nil, diag.NewList(p.errors)
	}
	node := p.parseExpression(LOWEST)
	if !p.hasErrors() && !p.curTokenIs(token.EOF) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		p.addTokenError(p.curToken, "unexpected token after expression: %s", tokenDescription(p.curToken))
	}
	if p.hasErrors() {
		return nil, diag.NewList(p.errors)
	}
	return node, nil
}

// ParseProgram parses a semicolon-separated sequence of expressions, as
// written in event handler attributes.
func ParseProgram(input string, options ...Option) (*Program, error) {
	p := newParser(input, options...)
	if p.hasErrors() {
		return nil, diag.NewList(p.errors)
	}
	prog := &Program{}
	for !p.curTokenIs(token.EOF) {
		if p.tooManyErrors() {
			break
		}
		node := p.parseExpression(LOWEST)
		if node != nil {
			prog.Exprs = append(prog.Exprs, node)
		}
		if p.hasErrors() {
			break
		}
		if p.peekTokenIs(token.SEMICOLON) {
			p.nextToken()
			for p.peekTokenIs(token.SEMICOLON) {
				p.nextToken()
			}
			p.nextToken()
			continue
		}
		if p.peekTokenIs(token.EOF) {
			break
		}
		p.nextToken()
		p.addTokenError(p.curToken, "unexpected token after expression: %s", tokenDescription(p.curToken))
	}
	if p.hasErrors() {
		return nil, diag.NewList(p.errors)
	}
	if len(prog.Exprs) == 0 {
		return nil, diag.NewList([]*diag.Diagnostic{{
			Kind:    diag.KindExpression,
			Message: "empty expression",
			File:    p.filename,
		}})
	}
	return prog, nil
}

// Parser builds an expression AST from a token stream.
type Parser struct {
	l *lexer.Lexer

	// prevToken holds the previous token, which we already processed.
	prevToken token.Token

	// curToken holds the current token from the lexer.
	curToken token.Token

	// peekToken holds the next token from the lexer.
	peekToken token.Token

	// parsing errors collected during parsing
	errors []*diag.Diagnostic

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn

	filename string

	// current recursion depth
	depth int

	// maximum allowed recursion depth
	maxDepth int
}

func newParser(input string, options ...Option) *Parser {
	p := &Parser{
		prefixParseFns: map[token.Type]prefixParseFn{},
		infixParseFns:  map[token.Type]infixParseFn{},
		maxDepth:       DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(p)
	}
	p.l = lexer.New(input, lexer.WithFile(p.filename))

	// Prime the token pump
	p.nextToken() // makes curToken=<empty>, peekToken=token[0]
	p.nextToken() // makes curToken=token[0], peekToken=token[1]

	// Register prefix-functions
	p.registerPrefix(token.BANG, p.parsePrefixExpr)
	p.registerPrefix(token.EOF, p.illegalToken)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.FLOAT, p.parseFloat)
	p.registerPrefix(token.IDENT, p.parseIdent)
	p.registerPrefix(token.ILLEGAL, p.illegalToken)
	p.registerPrefix(token.INT, p.parseInt)
	p.registerPrefix(token.LBRACE, p.parseMap)
	p.registerPrefix(token.LBRACKET, p.parseList)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpr)
	p.registerPrefix(token.MINUS, p.parsePrefixExpr)
	p.registerPrefix(token.NULL, p.parseNil)
	p.registerPrefix(token.STRING, p.parseString)
	p.registerPrefix(token.TEMPLATE, p.parseTemplateString)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.UNDEFINED, p.parseNil)

	// Register infix functions
	p.registerInfix(token.AND, p.parseInfixExpr)
	p.registerInfix(token.ASSIGN, p.parseAssign)
	p.registerInfix(token.ASTERISK, p.parseInfixExpr)
	p.registerInfix(token.EQ, p.parseInfixExpr)
	p.registerInfix(token.EQ_STRICT, p.parseInfixExpr)
	p.registerInfix(token.GT, p.parseInfixExpr)
	p.registerInfix(token.GT_EQUALS, p.parseInfixExpr)
	p.registerInfix(token.LBRACKET, p.parseIndex)
	p.registerInfix(token.LPAREN, p.parseCall)
	p.registerInfix(token.LT, p.parseInfixExpr)
	p.registerInfix(token.LT_EQUALS, p.parseInfixExpr)
	p.registerInfix(token.MINUS, p.parseInfixExpr)
	p.registerInfix(token.MOD, p.parseInfixExpr)
	p.registerInfix(token.NOT_EQ, p.parseInfixExpr)
	p.registerInfix(token.NOT_EQ_STRICT, p.parseInfixExpr)
	p.registerInfix(token.NULLISH, p.parseInfixExpr)
	p.registerInfix(token.OR, p.parseInfixExpr)
	p.registerInfix(token.MINUS_MINUS, p.parsePostfix)
	p.registerInfix(token.PERIOD, p.parseGetAttr)
	p.registerInfix(token.PLUS, p.parseInfixExpr)
	p.registerInfix(token.PLUS_PLUS, p.parsePostfix)
	p.registerInfix(token.POW, p.parseInfixExpr)
	p.registerInfix(token.QUESTION, p.parseTernary)
	p.registerInfix(token.QUESTION_DOT, p.parseOptionalChain)
	p.registerInfix(token.SLASH, p.parseInfixExpr)

	return p
}

// nextToken moves to the next token from the lexer, updating all of
// prevToken, curToken, and peekToken.
func (p *Parser) nextToken() {
	var err error
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.peekToken, err = p.l.Next()
	if err != nil {
		p.addError(&diag.Diagnostic{
			Kind:   diag.KindExpression,
			Cause:  err,
			File:   p.l.Filename(),
			Start:  p.peekToken.StartPosition,
			End:    p.peekToken.EndPosition,
			Source: p.l.GetLineText(p.peekToken),
		})
	}
}

func (p *Parser) registerPrefix(tokenType token.Type, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.Type, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) addError(d *diag.Diagnostic) {
	if len(p.errors) < MaxErrors {
		p.errors = append(p.errors, d)
	}
}

func (p *Parser) hasErrors() bool {
	return len(p.errors) > 0
}

func (p *Parser) tooManyErrors() bool {
	return len(p.errors) >= MaxErrors
}

func (p *Parser) addTokenError(t token.Token, msg string, args ...interface{}) {
	p.addError(&diag.Diagnostic{
		Kind:    diag.KindExpression,
		Message: fmt.Sprintf(msg, args...),
		File:    p.l.Filename(),
		Start:   t.StartPosition,
		End:     t.EndPosition,
		Source:  p.l.GetLineText(t),
	})
}

func (p *Parser) noPrefixParseFnError(t token.Token) {
	p.addTokenError(t, "invalid syntax (unexpected %q)", t.Literal)
}

// peekError raises an error if the next token is not the expected type.
func (p *Parser) peekError(context string, expected token.Type, got token.Token) {
	p.addTokenError(got, "unexpected %s while parsing %s (expected %s)",
		tokenDescription(got), context, tokenTypeDescription(expected))
}

func tokenTypeDescription(t token.Type) string {
	switch t {
	case token.EOF:
		return "end of expression"
	case token.IDENT:
		return "identifier"
	default:
		return string(t)
	}
}

func tokenDescription(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of expression"
	default:
		if t.Literal == "" {
			return string(t.Type)
		}
		return t.Literal
	}
}

func (p *Parser) parseExpression(precedence int) Node {
	if p.hasErrors() {
		return nil
	}
	p.depth++
	if p.depth > p.maxDepth {
		p.addTokenError(p.curToken, "maximum nesting depth exceeded")
		p.depth--
		return nil
	}
	defer func() { p.depth-- }()

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if p.hasErrors() || leftExp == nil {
		return nil
	}
	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if p.hasErrors() {
			return nil
		}
	}
	// Check for postfix operators (++ or --)
	if p.peekTokenIs(token.PLUS_PLUS) || p.peekTokenIs(token.MINUS_MINUS) {
		p.nextToken()
		return p.parsePostfix(leftExp)
	}
	return leftExp
}

func (p *Parser) illegalToken() Node {
	if p.curTokenIs(token.EOF) {
		p.addTokenError(p.curToken, "unexpected end of expression")
	} else {
		p.addTokenError(p.curToken, "illegal token %s", p.curToken.Literal)
	}
	return nil
}

// newIdent creates a new Ident node from a token.
func (p *Parser) newIdent(tok token.Token) *Ident {
	return &Ident{NamePos: tok.StartPosition, Name: tok.Literal}
}

func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// expectPeek validates if the next token is of the given type, and advances
// if it is. If it's a different type, then an error is stored.
func (p *Parser) expectPeek(context string, t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(context, t, p.peekToken)
	return false
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) currentPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) parseIdent() Node {
	return p.newIdent(p.curToken)
}

func (p *Parser) parseInt() Node {
	tok := p.curToken
	value, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.addTokenError(tok, "invalid integer literal: %s", tok.Literal)
		return nil
	}
	return &Int{ValuePos: tok.StartPosition, Literal: tok.Literal, Value: value}
}

func (p *Parser) parseFloat() Node {
	tok := p.curToken
	value, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.addTokenError(tok, "invalid float literal: %s", tok.Literal)
		return nil
	}
	return &Float{ValuePos: tok.StartPosition, Literal: tok.Literal, Value: value}
}

func (p *Parser) parseBoolean() Node {
	return &Bool{
		ValuePos: p.curToken.StartPosition,
		Literal:  p.curToken.Literal,
		Value:    p.curTokenIs(token.TRUE),
	}
}

func (p *Parser) parseNil() Node {
	return &Nil{NilPos: p.curToken.StartPosition, Literal: p.curToken.Literal}
}

func (p *Parser) parseString() Node {
	return &String{ValuePos: p.curToken.StartPosition, Value: p.curToken.Literal}
}

// parseTemplateString parses a backtick-quoted string, splitting out its
// ${...} fragments and sub-parsing each embedded expression.
func (p *Parser) parseTemplateString() Node {
	tok := p.curToken
	template, err := tmpl.Parse(tok.Literal)
	if err != nil {
		p.addTokenError(tok, "%s", err.Error())
		return nil
	}
	node := &String{
		ValuePos: tok.StartPosition,
		Value:    tok.Literal,
		Template: template,
	}
	for _, frag := range template.Fragments() {
		if !frag.IsVariable() {
			continue
		}
		if frag.Value() == "" {
			p.addTokenError(tok, "empty expression in template string")
			return nil
		}
		sub, err := Parse(frag.Value(), WithFilename(p.filename))
		if err != nil {
			p.addTokenError(tok, "invalid expression in template string: %s", frag.Value())
			return nil
		}
		node.Exprs = append(node.Exprs, sub)
	}
	return node
}

func (p *Parser) parsePrefixExpr() Node {
	tok := p.curToken
	p.nextToken()
	x := p.parseExpression(PREFIX)
	if x == nil {
		return nil
	}
	return &Prefix{OpPos: tok.StartPosition, Op: tok.Literal, X: x}
}

func (p *Parser) parseInfixExpr(left Node) Node {
	tok := p.curToken
	precedence := p.currentPrecedence()
	// The power operator is right-associative: 2**3**2 is 2**(3**2)
	if p.curTokenIs(token.POW) {
		precedence--
	}
	p.nextToken()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return &Infix{X: left, OpPos: tok.StartPosition, Op: tok.Literal, Y: right}
}

func (p *Parser) parsePostfix(left Node) Node {
	if !isAssignable(left) {
		p.addTokenError(p.curToken, "invalid operand for %s", p.curToken.Literal)
		return nil
	}
	return &Postfix{X: left, OpPos: p.curToken.StartPosition, Op: p.curToken.Literal}
}

func (p *Parser) parseAssign(left Node) Node {
	tok := p.curToken
	if !isAssignable(left) {
		p.addTokenError(tok, "invalid assignment target")
		return nil
	}
	p.nextToken()
	y := p.parseExpression(ASSIGNMENT - 1)
	if y == nil {
		return nil
	}
	return &Assign{X: left, OpPos: tok.StartPosition, Y: y}
}

// isAssignable reports whether a node is a valid assignment target.
func isAssignable(node Node) bool {
	switch node.(type) {
	case *Ident, *GetAttr, *Index:
		return true
	}
	return false
}

func (p *Parser) parseTernary(cond Node) Node {
	question := p.curToken.StartPosition
	p.nextToken()
	ifTrue := p.parseExpression(LOWEST)
	if ifTrue == nil {
		return nil
	}
	if !p.expectPeek("ternary expression", token.COLON) {
		return nil
	}
	colon := p.curToken.StartPosition
	p.nextToken()
	ifFalse := p.parseExpression(LOWEST)
	if ifFalse == nil {
		return nil
	}
	return &Ternary{
		Cond:     cond,
		Question: question,
		IfTrue:   ifTrue,
		Colon:    colon,
		IfFalse:  ifFalse,
	}
}

func (p *Parser) parseCall(fun Node) Node {
	lparen := p.curToken.StartPosition
	var args []Node
	if !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		args = append(args, arg)
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil
			}
			args = append(args, arg)
		}
	}
	if !p.expectPeek("call expression", token.RPAREN) {
		return nil
	}
	return &Call{
		Fun:    fun,
		Lparen: lparen,
		Args:   args,
		Rparen: p.curToken.StartPosition,
	}
}

func (p *Parser) parseGetAttr(left Node) Node {
	period := p.curToken.StartPosition
	if !p.expectPeek("attribute access", token.IDENT) {
		return nil
	}
	return &GetAttr{
		X:      left,
		Period: period,
		Attr:   p.newIdent(p.curToken),
	}
}

func (p *Parser) parseOptionalChain(left Node) Node {
	period := p.curToken.StartPosition
	if !p.expectPeek("attribute access", token.IDENT) {
		return nil
	}
	return &GetAttr{
		X:        left,
		Period:   period,
		Attr:     p.newIdent(p.curToken),
		Optional: true,
	}
}

func (p *Parser) parseIndex(left Node) Node {
	lbrack := p.curToken.StartPosition
	p.nextToken()
	index := p.parseExpression(LOWEST)
	if index == nil {
		return nil
	}
	if !p.expectPeek("index expression", token.RBRACKET) {
		return nil
	}
	return &Index{
		X:      left,
		Lbrack: lbrack,
		Index:  index,
		Rbrack: p.curToken.StartPosition,
	}
}

func (p *Parser) parseGroupedExpr() Node {
	p.nextToken()
	node := p.parseExpression(LOWEST)
	if node == nil {
		return nil
	}
	if !p.expectPeek("grouped expression", token.RPAREN) {
		return nil
	}
	return node
}

func (p *Parser) parseList() Node {
	lbrack := p.curToken.StartPosition
	var items []Node
	if !p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		item := p.parseExpression(LOWEST)
		if item == nil {
			return nil
		}
		items = append(items, item)
		for p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			item := p.parseExpression(LOWEST)
			if item == nil {
				return nil
			}
			items = append(items, item)
		}
	}
	if !p.expectPeek("list literal", token.RBRACKET) {
		return nil
	}
	return &List{Lbrack: lbrack, Items: items, Rbrack: p.curToken.StartPosition}
}

func (p *Parser) parseMap() Node {
	lbrace := p.curToken.StartPosition
	m := &Map{Lbrace: lbrace}
	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		item := p.parseMapItem()
		if item == nil {
			return nil
		}
		m.Items = append(m.Items, item)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek("map literal", token.RBRACE) {
		return nil
	}
	m.Rbrace = p.curToken.StartPosition
	return m
}

func (p *Parser) parseMapItem() *MapItem {
	var key Node
	switch p.curToken.Type {
	case token.IDENT:
		key = p.newIdent(p.curToken)
	case token.STRING:
		key = &String{ValuePos: p.curToken.StartPosition, Value: p.curToken.Literal}
	case token.INT:
		if node := p.parseInt(); node != nil {
			key = node
		} else {
			return nil
		}
	default:
		p.addTokenError(p.curToken, "invalid map key: %s", tokenDescription(p.curToken))
		return nil
	}
	// Shorthand entry: {visible} is equivalent to {visible: visible}
	if ident, ok := key.(*Ident); ok && !p.peekTokenIs(token.COLON) {
		return &MapItem{Key: key, Value: &Ident{NamePos: ident.NamePos, Name: ident.Name}}
	}
	if !p.expectPeek("map literal", token.COLON) {
		return nil
	}
	p.nextToken()
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}
	return &MapItem{Key: key, Value: value}
}
