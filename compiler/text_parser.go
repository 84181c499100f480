package compiler

import (
	"regexp"
	"strings"
	"sync"

	"github.com/deepnoodle-ai/loom/ast"
)

var defaultTagRE = regexp.MustCompile(`\{\{((?s).+?)\}\}`)

var (
	tagREMu    sync.Mutex
	tagRECache = map[[2]string]*regexp.Regexp{}
)

func buildTagRE(delimiters [2]string) *regexp.Regexp {
	if delimiters == [2]string{} || delimiters == [2]string{"{{", "}}"} {
		return defaultTagRE
	}
	tagREMu.Lock()
	defer tagREMu.Unlock()
	if re, ok := tagRECache[delimiters]; ok {
		return re
	}
	re := regexp.MustCompile(
		regexp.QuoteMeta(delimiters[0]) + `((?s).+?)` + regexp.QuoteMeta(delimiters[1]))
	tagRECache[delimiters] = re
	return re
}

// TextParseResult is the outcome of interpolation parsing: the combined
// expression string and the ordered literal/binding token list.
type TextParseResult struct {
	Expression string
	Tokens     []ast.TextToken
}

// ParseText scans text for interpolation delimiters and splits it into
// alternating literal and expression segments, concatenated into one
// expression string: 'literal'+_s(expr)+'literal'. Returns nil when the
// text contains no delimiters, signaling plain text that needs no parsing.
func ParseText(text string, delimiters [2]string) *TextParseResult {
	tagRE := buildTagRE(delimiters)
	matches := tagRE.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil
	}
	var tokens []string
	var rawTokens []ast.TextToken
	lastIndex := 0
	for _, m := range matches {
		if m[0] > lastIndex {
			literal := text[lastIndex:m[0]]
			rawTokens = append(rawTokens, ast.TextToken{Text: literal})
			tokens = append(tokens, quoteJS(literal))
		}
		exp := ParseFilters(strings.TrimSpace(text[m[2]:m[3]]))
		tokens = append(tokens, "_s("+exp+")")
		rawTokens = append(rawTokens, ast.TextToken{Binding: exp})
		lastIndex = m[1]
	}
	if lastIndex < len(text) {
		literal := text[lastIndex:]
		rawTokens = append(rawTokens, ast.TextToken{Text: literal})
		tokens = append(tokens, quoteJS(literal))
	}
	return &TextParseResult{
		Expression: strings.Join(tokens, "+"),
		Tokens:     rawTokens,
	}
}

// quoteJS renders a single-quoted string literal for generated code.
func quoteJS(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
