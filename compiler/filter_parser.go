package compiler

import (
	"regexp"
	"strings"
)

// validDivisionChars match characters that can legally precede a division
// operator; a "/" after anything else starts a regex literal.
var validDivisionCharRE = regexp.MustCompile(`[\w).+\-_$\]]`)

// ParseFilters splits an expression on top-level pipe characters into a
// base expression plus filter invocations, and rewrites the chain as nested
// calls: each filter wraps the expression so far as its first argument,
// with the filter's own arguments appended after.
//
//	msg | filterA | filterB(arg)  →  _f("filterB")(_f("filterA")(msg),arg)
//
// Pipes inside strings, template strings, regex literals, or any bracket
// nesting are not split points, and double pipes are the logical-or
// operator.
func ParseFilters(exp string) string {
	var inSingle, inDouble, inTemplateString, inRegex bool
	var curly, square, paren int
	lastFilterIndex := 0
	var expression string
	haveExpression := false
	var filters []string

	pushFilter := func(i int) {
		filters = append(filters, strings.TrimSpace(exp[lastFilterIndex:i]))
		lastFilterIndex = i + 1
	}

	var c, prev byte
	for i := 0; i < len(exp); i++ {
		prev = c
		c = exp[i]
		switch {
		case inSingle:
			if c == '\'' && prev != '\\' {
				inSingle = false
			}
		case inDouble:
			if c == '"' && prev != '\\' {
				inDouble = false
			}
		case inTemplateString:
			if c == '`' && prev != '\\' {
				inTemplateString = false
			}
		case inRegex:
			if c == '/' && prev != '\\' {
				inRegex = false
			}
		case c == '|' &&
			(i+1 >= len(exp) || exp[i+1] != '|') &&
			(i == 0 || exp[i-1] != '|') &&
			curly == 0 && square == 0 && paren == 0:
			if !haveExpression {
				expression = strings.TrimSpace(exp[:i])
				haveExpression = true
				lastFilterIndex = i + 1
			} else {
				pushFilter(i)
			}
		default:
			switch c {
			case '"':
				inDouble = true
			case '\'':
				inSingle = true
			case '`':
				inTemplateString = true
			case '(':
				paren++
			case ')':
				paren--
			case '[':
				square++
			case ']':
				square--
			case '{':
				curly++
			case '}':
				curly--
			}
			if c == '/' {
				// Look back for the last non-space character to decide
				// between division and the start of a regex literal.
				j := i - 1
				for ; j >= 0; j-- {
					if exp[j] != ' ' {
						break
					}
				}
				if j < 0 || !validDivisionCharRE.MatchString(string(exp[j])) {
					inRegex = true
				}
			}
		}
	}

	if !haveExpression {
		expression = strings.TrimSpace(exp)
	} else {
		pushFilter(len(exp))
	}

	for _, filter := range filters {
		expression = wrapFilter(expression, filter)
	}
	return expression
}

func wrapFilter(exp, filter string) string {
	i := strings.IndexByte(filter, '(')
	if i < 0 {
		return `_f("` + filter + `")(` + exp + `)`
	}
	name := filter[:i]
	args := filter[i+1:]
	if args == ")" {
		return `_f("` + name + `")(` + exp + args
	}
	return `_f("` + name + `")(` + exp + "," + args
}
