// Package lexer converts template expression source into a token stream.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deepnoodle-ai/loom/internal/token"
)

// Option configures the lexer.
type Option func(*Lexer)

// WithFile associates a filename with the input, for use in positions.
func WithFile(name string) Option {
	return func(l *Lexer) {
		l.file = name
	}
}

// Lexer converts an input string into a stream of tokens.
type Lexer struct {
	input     string
	pos       int  // byte offset of ch
	readPos   int  // byte offset following ch
	ch        rune // current rune under examination
	chWidth   int  // byte width of ch
	line      int  // 0-indexed line of ch
	lineStart int  // byte offset of the start of the current line
	file      string
}

// New returns a Lexer for the given input.
func New(input string, opts ...Option) *Lexer {
	l := &Lexer{input: input}
	for _, opt := range opts {
		opt(l)
	}
	l.readRune()
	return l
}

// Next returns the next token from the input. After the input is exhausted,
// it returns EOF tokens forever. A non-nil error indicates malformed input,
// in which case the returned token carries the offending position.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	start := l.position()
	switch l.ch {
	case 0:
		return l.emit(token.EOF, "", start), nil
	case '=':
		if l.peek() == '=' {
			l.readRune()
			if l.peek() == '=' {
				l.readRune()
				return l.emitHere(token.EQ_STRICT, "===", start), nil
			}
			return l.emitHere(token.EQ, "==", start), nil
		}
		return l.emitHere(token.ASSIGN, "=", start), nil
	case '!':
		if l.peek() == '=' {
			l.readRune()
			if l.peek() == '=' {
				l.readRune()
				return l.emitHere(token.NOT_EQ_STRICT, "!==", start), nil
			}
			return l.emitHere(token.NOT_EQ, "!=", start), nil
		}
		return l.emitHere(token.BANG, "!", start), nil
	case '+':
		if l.peek() == '+' {
			l.readRune()
			return l.emitHere(token.PLUS_PLUS, "++", start), nil
		}
		return l.emitHere(token.PLUS, "+", start), nil
	case '-':
		if l.peek() == '-' {
			l.readRune()
			return l.emitHere(token.MINUS_MINUS, "--", start), nil
		}
		return l.emitHere(token.MINUS, "-", start), nil
	case '*':
		if l.peek() == '*' {
			l.readRune()
			return l.emitHere(token.POW, "**", start), nil
		}
		return l.emitHere(token.ASTERISK, "*", start), nil
	case '/':
		return l.emitHere(token.SLASH, "/", start), nil
	case '%':
		return l.emitHere(token.MOD, "%", start), nil
	case '<':
		if l.peek() == '=' {
			l.readRune()
			return l.emitHere(token.LT_EQUALS, "<=", start), nil
		}
		return l.emitHere(token.LT, "<", start), nil
	case '>':
		if l.peek() == '=' {
			l.readRune()
			return l.emitHere(token.GT_EQUALS, ">=", start), nil
		}
		return l.emitHere(token.GT, ">", start), nil
	case '&':
		if l.peek() == '&' {
			l.readRune()
			return l.emitHere(token.AND, "&&", start), nil
		}
		return l.illegal(start, "unexpected character: &")
	case '|':
		if l.peek() == '|' {
			l.readRune()
			return l.emitHere(token.OR, "||", start), nil
		}
		return l.illegal(start, "unexpected character: |")
	case '?':
		switch l.peek() {
		case '?':
			l.readRune()
			return l.emitHere(token.NULLISH, "??", start), nil
		case '.':
			l.readRune()
			return l.emitHere(token.QUESTION_DOT, "?.", start), nil
		}
		return l.emitHere(token.QUESTION, "?", start), nil
	case '.':
		return l.emitHere(token.PERIOD, ".", start), nil
	case ',':
		return l.emitHere(token.COMMA, ",", start), nil
	case ';':
		return l.emitHere(token.SEMICOLON, ";", start), nil
	case ':':
		return l.emitHere(token.COLON, ":", start), nil
	case '(':
		return l.emitHere(token.LPAREN, "(", start), nil
	case ')':
		return l.emitHere(token.RPAREN, ")", start), nil
	case '[':
		return l.emitHere(token.LBRACKET, "[", start), nil
	case ']':
		return l.emitHere(token.RBRACKET, "]", start), nil
	case '{':
		return l.emitHere(token.LBRACE, "{", start), nil
	case '}':
		return l.emitHere(token.RBRACE, "}", start), nil
	case '\'', '"', '`':
		typ := token.STRING
		if l.ch == '`' {
			typ = token.TEMPLATE
		}
		lit, err := l.readString(l.ch)
		if err != nil {
			tok := l.emit(token.ILLEGAL, lit, start)
			tok.EndPosition = l.position()
			return tok, err
		}
		tok := l.emit(typ, lit, start)
		tok.EndPosition = l.position()
		l.readRune()
		return tok, nil
	}
	if isDigit(l.ch) {
		lit, typ := l.readNumber()
		return l.emit(typ, lit, start), nil
	}
	if isIdentStart(l.ch) {
		lit := l.readIdentifier()
		return l.emit(token.LookupIdentifier(lit), lit, start), nil
	}
	return l.illegal(start, fmt.Sprintf("unexpected character: %c", l.ch))
}

// Filename returns the filename associated with the input, if any.
func (l *Lexer) Filename() string {
	return l.file
}

// GetLineText returns the full line of input text containing the given token.
func (l *Lexer) GetLineText(tok token.Token) string {
	start := tok.StartPosition.LineStart
	if start < 0 || start > len(l.input) {
		return ""
	}
	end := strings.IndexByte(l.input[start:], '\n')
	if end < 0 {
		return l.input[start:]
	}
	return l.input[start : start+end]
}

// Tokenize consumes the entire input, returning all tokens up to and
// including the first EOF, or the first error encountered.
func (l *Lexer) Tokenize() ([]token.Token, error) {
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

func (l *Lexer) position() token.Position {
	return token.Position{
		Char:      l.pos,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    l.pos - l.lineStart,
		File:      l.file,
	}
}

// emit builds a token whose start and end both sit at the given position.
func (l *Lexer) emit(typ token.Type, lit string, start token.Position) token.Token {
	return token.Token{
		Type:          typ,
		Literal:       lit,
		StartPosition: start,
		EndPosition:   start.Advance(maxInt(len(lit)-1, 0)),
	}
}

// emitHere builds a token ending at the current rune and then advances.
func (l *Lexer) emitHere(typ token.Type, lit string, start token.Position) token.Token {
	tok := token.Token{
		Type:          typ,
		Literal:       lit,
		StartPosition: start,
		EndPosition:   l.position(),
	}
	l.readRune()
	return tok
}

func (l *Lexer) illegal(start token.Position, msg string) (token.Token, error) {
	tok := l.emitHere(token.ILLEGAL, string(l.ch), start)
	return tok, fmt.Errorf("%s", msg)
}

func (l *Lexer) readRune() {
	if l.readPos >= len(l.input) {
		l.pos = len(l.input)
		l.ch = 0
		l.chWidth = 0
		return
	}
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.pos = l.readPos
	l.readPos += w
	l.ch = r
	l.chWidth = w
}

func (l *Lexer) peek() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readRune()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) {
		l.readRune()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber() (string, token.Type) {
	start := l.pos
	typ := token.INT
	for isDigit(l.ch) {
		l.readRune()
	}
	if l.ch == '.' && isDigit(l.peek()) {
		typ = token.FLOAT
		l.readRune()
		for isDigit(l.ch) {
			l.readRune()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		if isDigit(l.peek()) || ((l.peek() == '+' || l.peek() == '-') && l.readPos+1 < len(l.input)) {
			typ = token.FLOAT
			l.readRune()
			if l.ch == '+' || l.ch == '-' {
				l.readRune()
			}
			for isDigit(l.ch) {
				l.readRune()
			}
		}
	}
	return l.input[start:l.pos], typ
}

// readString consumes a quoted string, returning its unescaped contents. The
// current rune is the opening quote on entry and the closing quote on return.
func (l *Lexer) readString(quote rune) (string, error) {
	var out strings.Builder
	for {
		l.readRune()
		switch l.ch {
		case 0:
			return out.String(), fmt.Errorf("unterminated string literal")
		case '\n':
			if quote != '`' {
				return out.String(), fmt.Errorf("unterminated string literal")
			}
			out.WriteRune('\n')
		case '\\':
			next := l.peek()
			switch next {
			case 'n':
				out.WriteRune('\n')
			case 't':
				out.WriteRune('\t')
			case 'r':
				out.WriteRune('\r')
			case '\\', '\'', '"', '`':
				out.WriteRune(next)
			case '$':
				// Preserved in template strings so the ${ escape reaches
				// the fragment parser.
				if quote == '`' {
					out.WriteRune('\\')
				}
				out.WriteRune('$')
			default:
				return out.String(), fmt.Errorf("invalid escape sequence: \\%c", next)
			}
			l.readRune()
		case quote:
			return out.String(), nil
		default:
			out.WriteRune(l.ch)
		}
	}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || ch == '$' || unicode.IsLetter(ch)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
