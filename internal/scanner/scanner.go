// Package scanner implements a streaming tokenizer for template markup.
//
// Scan reads a template left to right and emits tag-open, tag-close, text,
// and comment events through callbacks, in source order. It keeps a stack
// of open tags so it can apply HTML auto-closing rules and synthesize close
// events for tags left open at end of input. It builds no tree; the
// compiler's parser layers tree construction on top of these events.
package scanner

import (
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/loom/internal/token"
)

// Attr is one attribute scanned from a start tag. Values are unquoted and
// entity-decoded.
type Attr struct {
	Name  string
	Value string
	Start token.Position
	End   token.Position
}

// Options configures a scan and receives its events. Callback fields may be
// nil; tag-table fields fall back to conservative defaults when nil.
type Options struct {
	// File is the name used in positions.
	File string

	// ExpectHTML enables HTML recovery rules: paragraphs auto-close before
	// non-phrasing content, and tags that may omit their end tag close when
	// a sibling of the same name opens.
	ExpectHTML bool

	// KeepComments emits comment events instead of dropping comments.
	KeepComments bool

	IsUnaryTag         func(tag string) bool
	CanBeLeftOpenTag   func(tag string) bool
	IsNonPhrasingTag   func(tag string) bool
	IsPlainTextElement func(tag string) bool

	// ShouldDecodeNewlines additionally decodes &#10; and &#9; in attribute
	// values. ShouldDecodeNewlinesForHref does the same for href attributes
	// on anchors only.
	ShouldDecodeNewlines        bool
	ShouldDecodeNewlinesForHref bool

	Start   func(tag string, attrs []Attr, unary bool, start, end token.Position)
	End     func(tag string, start, end token.Position)
	Text    func(text string, start, end token.Position)
	Comment func(text string, start, end token.Position)
	Warn    func(msg string, pos token.Position)
}

// Name characters beyond ASCII allowed in tag and attribute names, taken
// from the XML standard's NCName production.
const unicodeNameRanges = `\x{00B7}\x{00C0}-\x{00D6}\x{00D8}-\x{00F6}\x{00F8}-\x{037D}` +
	`\x{037F}-\x{1FFF}\x{200C}-\x{200D}\x{203F}-\x{2040}\x{2070}-\x{218F}` +
	`\x{2C00}-\x{2FEF}\x{3001}-\x{D7FF}\x{F900}-\x{FDCF}\x{FDF0}-\x{FFFD}`

const ncname = `[a-zA-Z_][\-\.0-9_a-zA-Z` + unicodeNameRanges + `]*`
const qnameCapture = `((?:` + ncname + `\:)?` + ncname + `)`

var (
	startTagOpenRE  = regexp.MustCompile(`^<` + qnameCapture)
	startTagCloseRE = regexp.MustCompile(`^\s*(\/?)>`)
	endTagRE        = regexp.MustCompile(`^<\/` + qnameCapture + `[^>]*>`)
	doctypeRE       = regexp.MustCompile(`(?i)^<!DOCTYPE [^>]+>`)
	commentRE       = regexp.MustCompile(`^<!--`)
	conditionalRE   = regexp.MustCompile(`^<!\[`)

	attributeRE = regexp.MustCompile(
		`^\s*([^\s"'<>\/=]+)(?:\s*(=)\s*(?:"([^"]*)"+|'([^']*)'+|([^\s"'=<>` + "`" + `]+)))?`)
	dynamicArgAttributeRE = regexp.MustCompile(
		`^\s*((?:v-[\w-]+:|@|:|#)\[[^=]+?\][^\s"'<>\/=]*)(?:\s*(=)\s*(?:"([^"]*)"+|'([^']*)'+|([^\s"'=<>` + "`" + `]+)))?`)
)

var defaultPlainTextElements = map[string]bool{
	"script":   true,
	"style":    true,
	"textarea": true,
}

var (
	attrDecoder = strings.NewReplacer(
		"&lt;", "<", "&gt;", ">", "&quot;", `"`, "&amp;", "&", "&#39;", "'")
	attrNewlineDecoder = strings.NewReplacer(
		"&lt;", "<", "&gt;", ">", "&quot;", `"`, "&amp;", "&", "&#39;", "'",
		"&#10;", "\n", "&#9;", "\t")
)

// Scan tokenizes the template, delivering events to the callbacks in opts.
func Scan(src string, opts Options) {
	s := &scanner{src: src, opts: opts, rawRE: map[string]*regexp.Regexp{}}
	s.run()
}

type stackEntry struct {
	tag   string
	lower string
	start token.Position
	end   token.Position
}

type scanner struct {
	src  string
	opts Options

	index     int
	line      int
	lineStart int

	stack   []stackEntry
	lastTag string

	rawRE map[string]*regexp.Regexp
}

func (s *scanner) run() {
	for s.index < len(s.src) {
		before := s.index
		if s.lastTag == "" || !s.isPlainTextElement(s.lastTag) {
			s.step()
		} else {
			s.scanRawText()
		}
		if s.index == before {
			// No progress: emit what remains as text and stop.
			rest := s.rest()
			start := s.position()
			s.advance(len(rest))
			if s.opts.Text != nil {
				s.opts.Text(rest, start, s.position())
			}
			if len(s.stack) == 0 && s.opts.Warn != nil {
				s.opts.Warn("mal-formatted tag at end of template: "+strconvQuote(rest), s.position())
			}
			break
		}
	}
	// Force-close anything left open.
	s.parseEndTag("", s.position(), s.position())
}

func (s *scanner) step() {
	if s.rest()[0] == '<' {
		if s.tryComment() || s.tryConditionalComment() || s.tryDoctype() ||
			s.tryEndTag() || s.tryStartTag() {
			return
		}
	}
	s.scanText()
}

func (s *scanner) tryComment() bool {
	rest := s.rest()
	if !commentRE.MatchString(rest) {
		return false
	}
	end := strings.Index(rest, "-->")
	if end < 0 {
		return false
	}
	start := s.position()
	content := rest[4:end]
	s.advance(end + 3)
	if s.opts.KeepComments && s.opts.Comment != nil {
		s.opts.Comment(content, start, s.position())
	}
	return true
}

// tryConditionalComment drops downlevel-revealed conditional comment
// markers without emitting anything.
func (s *scanner) tryConditionalComment() bool {
	rest := s.rest()
	if !conditionalRE.MatchString(rest) {
		return false
	}
	end := strings.Index(rest, "]>")
	if end < 0 {
		return false
	}
	s.advance(end + 2)
	return true
}

func (s *scanner) tryDoctype() bool {
	m := doctypeRE.FindString(s.rest())
	if m == "" {
		return false
	}
	s.advance(len(m))
	return true
}

func (s *scanner) tryEndTag() bool {
	m := endTagRE.FindStringSubmatch(s.rest())
	if m == nil {
		return false
	}
	start := s.position()
	s.advance(len(m[0]))
	s.parseEndTag(m[1], start, s.position())
	return true
}

// tryStartTag scans a start tag and its attributes. A tag that opens but
// never closes with ">" consumes what it matched and emits nothing; the
// main loop treats the consumed input as progress.
func (s *scanner) tryStartTag() bool {
	open := startTagOpenRE.FindStringSubmatch(s.rest())
	if open == nil {
		return false
	}
	tag := open[1]
	start := s.position()
	s.advance(len(open[0]))

	var attrs []Attr
	for {
		rest := s.rest()
		if close := startTagCloseRE.FindStringSubmatch(rest); close != nil {
			s.advance(len(close[0]))
			s.handleStartTag(tag, attrs, close[1] == "/", start, s.position())
			if ignoreFirstNewline(tag, s.rest()) {
				s.advance(1)
			}
			return true
		}
		m := dynamicArgAttributeRE.FindStringSubmatch(rest)
		if m == nil {
			m = attributeRE.FindStringSubmatch(rest)
		}
		if m == nil {
			return true
		}
		ws := len(m[0]) - len(strings.TrimLeft(m[0], " \t\n\f\r"))
		s.advance(ws)
		attrStart := s.position()
		s.advance(len(m[0]) - ws)

		value := m[3]
		if value == "" {
			value = m[4]
		}
		if value == "" {
			value = m[5]
		}
		attrs = append(attrs, Attr{
			Name:  m[1],
			Value: s.decodeAttr(tag, m[1], value),
			Start: attrStart,
			End:   s.position(),
		})
	}
}

func (s *scanner) handleStartTag(tag string, attrs []Attr, selfClosing bool, start, end token.Position) {
	if s.opts.ExpectHTML {
		if s.lastTag == "p" && s.isNonPhrasing(tag) {
			s.parseEndTag(s.lastTag, s.position(), s.position())
		}
		if s.canBeLeftOpen(tag) && s.lastTag == tag {
			s.parseEndTag(tag, s.position(), s.position())
		}
	}
	unary := s.isUnary(tag) || selfClosing
	if !unary {
		s.stack = append(s.stack, stackEntry{
			tag:   tag,
			lower: strings.ToLower(tag),
			start: start,
			end:   end,
		})
		s.lastTag = tag
	}
	if s.opts.Start != nil {
		s.opts.Start(tag, attrs, unary, start, end)
	}
}

// parseEndTag closes the named tag, force-closing anything opened after it
// with a mismatched-tag warning. With an empty name it closes the whole
// stack. Unmatched end tags are dropped, except </br> and </p>, which
// browsers turn into elements.
func (s *scanner) parseEndTag(tag string, start, end token.Position) {
	lower := strings.ToLower(tag)
	pos := 0
	if tag != "" {
		for pos = len(s.stack) - 1; pos >= 0; pos-- {
			if s.stack[pos].lower == lower {
				break
			}
		}
	}
	if pos >= 0 {
		for i := len(s.stack) - 1; i >= pos; i-- {
			if (i > pos || tag == "") && s.opts.Warn != nil {
				s.opts.Warn("tag <"+s.stack[i].tag+"> has no matching end tag", s.stack[i].start)
			}
			if s.opts.End != nil {
				s.opts.End(s.stack[i].tag, start, end)
			}
		}
		s.stack = s.stack[:pos]
		if pos > 0 {
			s.lastTag = s.stack[pos-1].tag
		} else {
			s.lastTag = ""
		}
	} else if lower == "br" {
		if s.opts.Start != nil {
			s.opts.Start(tag, nil, true, start, end)
		}
	} else if lower == "p" {
		if s.opts.Start != nil {
			s.opts.Start(tag, nil, false, start, end)
		}
		if s.opts.End != nil {
			s.opts.End(tag, start, end)
		}
	}
}

// scanText consumes text up to the next "<" that starts a recognized
// construct, treating bare "<" characters as text.
func (s *scanner) scanText() {
	rest := s.rest()
	textEnd := strings.IndexByte(rest, '<')
	var text string
	if textEnd >= 0 {
		r := rest[textEnd:]
		for !endTagRE.MatchString(r) && !startTagOpenRE.MatchString(r) &&
			!commentRE.MatchString(r) && !conditionalRE.MatchString(r) {
			next := strings.IndexByte(r[1:], '<')
			if next < 0 {
				break
			}
			textEnd += next + 1
			r = rest[textEnd:]
		}
		text = rest[:textEnd]
	} else {
		text = rest
	}
	if text != "" {
		start := s.position()
		s.advance(len(text))
		if s.opts.Text != nil {
			s.opts.Text(text, start, s.position())
		}
	}
}

// scanRawText handles content inside script, style, and textarea, where
// everything up to the literal matching close tag is text.
func (s *scanner) scanRawText() {
	stacked := strings.ToLower(s.lastTag)
	m := s.rawTextRE(stacked).FindStringSubmatchIndex(s.rest())
	if m == nil {
		// No closing tag; pop the element so the main loop emits the
		// remainder as text.
		s.parseEndTag(s.lastTag, s.position(), s.position())
		return
	}
	rest := s.rest()
	text := rest[m[2]:m[3]]
	if ignoreFirstNewline(stacked, text) {
		s.advance(1)
		text = text[1:]
	}
	start := s.position()
	s.advance(len(text))
	if text != "" && s.opts.Text != nil {
		s.opts.Text(text, start, s.position())
	}
	endStart := s.position()
	s.advance(m[5] - m[4])
	s.parseEndTag(s.lastTag, endStart, s.position())
}

func (s *scanner) rawTextRE(tag string) *regexp.Regexp {
	if re, ok := s.rawRE[tag]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)([\s\S]*?)(</` + regexp.QuoteMeta(tag) + `[^>]*>)`)
	s.rawRE[tag] = re
	return re
}

func (s *scanner) decodeAttr(tag, name, value string) string {
	if tag == "a" && name == "href" {
		if s.opts.ShouldDecodeNewlinesForHref {
			return attrNewlineDecoder.Replace(value)
		}
		return attrDecoder.Replace(value)
	}
	if s.opts.ShouldDecodeNewlines {
		return attrNewlineDecoder.Replace(value)
	}
	return attrDecoder.Replace(value)
}

func (s *scanner) rest() string {
	return s.src[s.index:]
}

func (s *scanner) advance(n int) {
	chunk := s.src[s.index : s.index+n]
	for i := 0; i < len(chunk); i++ {
		if chunk[i] == '\n' {
			s.line++
			s.lineStart = s.index + i + 1
		}
	}
	s.index += n
}

func (s *scanner) position() token.Position {
	return token.Position{
		Char:      s.index,
		LineStart: s.lineStart,
		Line:      s.line,
		Column:    s.index - s.lineStart,
		File:      s.opts.File,
	}
}

func (s *scanner) isPlainTextElement(tag string) bool {
	if s.opts.IsPlainTextElement != nil {
		return s.opts.IsPlainTextElement(tag)
	}
	return defaultPlainTextElements[strings.ToLower(tag)]
}

func (s *scanner) isUnary(tag string) bool {
	return s.opts.IsUnaryTag != nil && s.opts.IsUnaryTag(tag)
}

func (s *scanner) canBeLeftOpen(tag string) bool {
	return s.opts.CanBeLeftOpenTag != nil && s.opts.CanBeLeftOpenTag(tag)
}

func (s *scanner) isNonPhrasing(tag string) bool {
	return s.opts.IsNonPhrasingTag != nil && s.opts.IsNonPhrasingTag(tag)
}

// ignoreFirstNewline reports whether a newline immediately following the
// start tag should be dropped, matching browser treatment of pre and
// textarea content.
func ignoreFirstNewline(tag, text string) bool {
	lower := strings.ToLower(tag)
	return (lower == "pre" || lower == "textarea") && strings.HasPrefix(text, "\n")
}

func strconvQuote(s string) string {
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return `"` + s + `"`
}
