// Package tmpl parses template strings containing ${...} expressions into
// literal and variable fragments.
package tmpl

import (
	"fmt"
	"strings"
)

// Fragment is one piece of a template string: either a run of literal text
// or the source of one embedded ${...} expression.
type Fragment struct {
	value      string
	isVariable bool
}

// Value returns the fragment text. For variable fragments this is the
// expression source without the surrounding ${ and }.
func (f *Fragment) Value() string {
	return f.value
}

// IsVariable returns true if this fragment is an embedded expression.
func (f *Fragment) IsVariable() bool {
	return f.isVariable
}

// Template is a parsed template string.
type Template struct {
	value     string
	fragments []*Fragment
}

// Value returns the original template source.
func (t *Template) Value() string {
	return t.value
}

// Fragments returns the template's fragments in order.
func (t *Template) Fragments() []*Fragment {
	return t.fragments
}

// Parse splits a template string into literal and variable fragments.
// A variable fragment is delimited by ${ and a matching }, with nested
// braces balanced. A $ not followed by { is literal text. \${ escapes
// the delimiter.
func Parse(s string) (*Template, error) {
	tmpl := &Template{value: s}
	var buf strings.Builder
	flushLiteral := func() {
		if buf.Len() > 0 {
			tmpl.fragments = append(tmpl.fragments, &Fragment{value: buf.String()})
			buf.Reset()
		}
	}
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '\\' && strings.HasPrefix(s[i+1:], "${") {
			buf.WriteString("${")
			i += 3
			continue
		}
		if c == '$' && i+1 < len(s) && s[i+1] == '{' {
			end := matchBrace(s, i+2)
			if end < 0 {
				return nil, fmt.Errorf("missing '}' in template: %s", s)
			}
			flushLiteral()
			tmpl.fragments = append(tmpl.fragments, &Fragment{
				value:      s[i+2 : end],
				isVariable: true,
			})
			i = end + 1
			continue
		}
		buf.WriteByte(c)
		i++
	}
	flushLiteral()
	return tmpl, nil
}

// matchBrace returns the index of the } closing a ${ whose contents begin at
// start, or -1 if the input ends first. Interior braces must balance.
func matchBrace(s string, start int) int {
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}
