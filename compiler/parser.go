package compiler

import (
	"html"
	"regexp"
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/internal/scanner"
	"github.com/deepnoodle-ai/loom/internal/token"
)

var (
	onRE  = regexp.MustCompile(`^@|^v-on:`)
	dirRE = regexp.MustCompile(`^v-|^@|^:|^\.`)

	forAliasRE    = regexp.MustCompile(`([\s\S]*?)\s+(?:in|of)\s+([\s\S]*)`)
	forIteratorRE = regexp.MustCompile(`,([^,\}\]]*)(?:,([^,\}\]]*))?$`)
	stripParensRE = regexp.MustCompile(`^\(|\)$`)

	dynamicArgRE = regexp.MustCompile(`^\[.*\]$`)
	argRE        = regexp.MustCompile(`:(.*)$`)
	bindRE       = regexp.MustCompile(`^:|^\.|^v-bind:`)
	propBindRE   = regexp.MustCompile(`^\.`)

	lineBreakRE       = regexp.MustCompile(`[\r\n]`)
	condenseRE        = regexp.MustCompile(`[ \f\t\r\n]+`)
	invalidAttrCharRE = regexp.MustCompile(`[\s"'<>\/=]`)

	camelizeRE  = regexp.MustCompile(`-(\w)`)
	hyphenateRE = regexp.MustCompile(`\B([A-Z])`)
)

func camelize(s string) string {
	return camelizeRE.ReplaceAllStringFunc(s, func(m string) string {
		return strings.ToUpper(m[1:])
	})
}

func hyphenate(s string) string {
	return strings.ToLower(hyphenateRE.ReplaceAllString(s, "-$1"))
}

// parseModifiers splits trailing .modifier segments off a directive name.
// Dots inside a [dynamic] argument are part of the argument expression, so
// only dots after the closing bracket count.
func parseModifiers(name string) (string, map[string]bool) {
	searchFrom := strings.LastIndexByte(name, ']') + 1
	dot := strings.IndexByte(name[searchFrom:], '.')
	if dot < 0 {
		return name, nil
	}
	dot += searchFrom
	mods := map[string]bool{}
	for _, m := range strings.Split(name[dot+1:], ".") {
		if m != "" {
			mods[m] = true
		}
	}
	return name[:dot], mods
}

// ForResult is the decomposition of a v-for expression.
type ForResult struct {
	For       string
	Alias     string
	Iterator1 string
	Iterator2 string
}

// ParseFor decomposes a v-for expression of the form "alias in source",
// "(alias, i) in source", or "(value, key, index) in source". Returns nil
// when the expression has no in/of clause.
func ParseFor(exp string) *ForResult {
	inMatch := forAliasRE.FindStringSubmatch(exp)
	if inMatch == nil {
		return nil
	}
	res := &ForResult{For: strings.TrimSpace(inMatch[2])}
	alias := stripParensRE.ReplaceAllString(strings.TrimSpace(inMatch[1]), "")
	if iter := forIteratorRE.FindStringSubmatch(alias); iter != nil {
		res.Alias = strings.TrimSpace(forIteratorRE.ReplaceAllString(alias, ""))
		res.Iterator1 = strings.TrimSpace(iter[1])
		if iter[2] != "" {
			res.Iterator2 = strings.TrimSpace(iter[2])
		}
	} else {
		res.Alias = alias
	}
	return res
}

type parser struct {
	opts *Options

	root          *ast.Element
	stack         []*ast.Element
	currentParent *ast.Element

	inVPre bool
	inPre  bool

	warnedRoot bool
}

// Parse converts template markup into an annotated element tree. Diagnostics
// go through opts.Warn; the returned root is nil when the template contains
// no element.
func Parse(template string, opts *Options) *ast.Element {
	if opts == nil {
		opts = &Options{}
	}
	p := &parser{opts: opts}
	scanner.Scan(template, scanner.Options{
		File:                        opts.Filename,
		ExpectHTML:                  opts.ExpectHTML,
		KeepComments:                opts.Comments,
		IsUnaryTag:                  opts.IsUnaryTag,
		CanBeLeftOpenTag:            opts.CanBeLeftOpenTag,
		IsNonPhrasingTag:            opts.IsNonPhrasingTag,
		ShouldDecodeNewlines:        opts.ShouldDecodeNewlines,
		ShouldDecodeNewlinesForHref: opts.ShouldDecodeNewlinesForHref,
		Start:                       p.start,
		End:                         p.end,
		Text:                        p.text,
		Comment:                     p.comment,
		Warn: func(msg string, pos token.Position) {
			p.warn(msg, pos, pos)
		},
	})
	return p.root
}

func (p *parser) warn(msg string, start, end token.Position) {
	if p.opts.Warn != nil {
		p.opts.Warn(msg, start, end, false)
	}
}

func (p *parser) warnOnce(msg string, start, end token.Position) {
	if p.warnedRoot {
		return
	}
	p.warnedRoot = true
	p.warn(msg, start, end)
}

func (p *parser) start(tag string, attrs []scanner.Attr, unary bool, start, end token.Position) {
	ns := p.opts.tagNamespace(tag)
	if p.currentParent != nil && p.currentParent.Namespace != "" {
		ns = p.currentParent.Namespace
	}

	astAttrs := make([]ast.Attr, len(attrs))
	for i, a := range attrs {
		astAttrs[i] = ast.Attr{Name: a.Name, Value: a.Value, StartPos: a.Start, EndPos: a.End}
		if invalidAttrCharRE.MatchString(a.Name) {
			p.warn("invalid dynamic argument expression: attribute names cannot contain "+
				"spaces, quotes, <, >, / or =.", a.Start, a.End)
		}
	}

	element := ast.NewElement(tag, astAttrs, p.currentParent)
	element.StartPos = start
	element.EndPos = end
	if ns != "" {
		element.Namespace = ns
	}

	if isForbiddenTag(element) {
		element.Forbidden = true
		p.warn("Templates should only be responsible for mapping the state to the UI. "+
			"Avoid placing tags with side-effects in your templates, such as "+
			"<"+tag+">, as they will not be parsed.", start, end)
	}

	for _, mod := range p.opts.Modules {
		if mod.PreTransformNode != nil {
			if replaced := mod.PreTransformNode(element, p.opts); replaced != nil {
				element = replaced
			}
		}
	}

	if !p.inVPre {
		p.processPre(element)
		if element.Pre {
			p.inVPre = true
		}
	}
	if p.opts.isPreTag(element.Tag) {
		p.inPre = true
	}
	if p.inVPre {
		p.processRawAttrs(element)
	} else {
		p.processFor(element)
		p.processIf(element)
		p.processOnce(element)
	}

	if p.root == nil {
		p.root = element
		p.checkRootConstraints(element)
	}

	if unary {
		p.closeElement(element)
	} else {
		p.currentParent = element
		p.stack = append(p.stack, element)
	}
}

func (p *parser) end(tag string, start, end token.Position) {
	if len(p.stack) == 0 {
		return
	}
	element := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	if len(p.stack) > 0 {
		p.currentParent = p.stack[len(p.stack)-1]
	} else {
		p.currentParent = nil
	}
	element.EndPos = end
	p.closeElement(element)
}

func (p *parser) closeElement(element *ast.Element) {
	p.trimEndingWhitespace(element)
	if !p.inVPre {
		p.processElement(element)
	}

	if len(p.stack) == 0 && element != p.root {
		// Extra top-level elements are only legal as else branches of a
		// conditional root.
		if p.root != nil && p.root.If != "" && (element.ElseIf != "" || element.Else) {
			p.checkRootConstraints(element)
			addIfCondition(p.root, ast.IfCondition{Exp: element.ElseIf, Block: element})
		} else {
			p.warnOnce("Component template should contain exactly one root element. "+
				"If you are using v-if on multiple elements, use v-else-if to chain them instead.",
				element.StartPos, element.EndPos)
		}
	}

	if p.currentParent != nil && !element.Forbidden {
		if element.ElseIf != "" || element.Else {
			p.processIfConditions(element, p.currentParent)
		} else {
			if element.SlotScope != "" {
				name := element.SlotTarget
				if name == "" {
					name = "'default'"
				}
				if p.currentParent.ScopedSlots == nil {
					p.currentParent.ScopedSlots = map[string]*ast.Element{}
				}
				p.currentParent.ScopedSlots[name] = element
			}
			p.currentParent.Children = append(p.currentParent.Children, element)
			element.Parent = p.currentParent
		}
	}

	// Scoped slot content is reachable through ScopedSlots only.
	if element.ScopedSlots != nil {
		var kept []ast.Node
		for _, child := range element.Children {
			if el, ok := child.(*ast.Element); ok && el.SlotScope != "" {
				continue
			}
			kept = append(kept, child)
		}
		element.Children = kept
	}
	p.trimEndingWhitespace(element)

	if element.Pre {
		p.inVPre = false
	}
	if p.opts.isPreTag(element.Tag) {
		p.inPre = false
	}
	for _, mod := range p.opts.Modules {
		if mod.PostTransformNode != nil {
			mod.PostTransformNode(element, p.opts)
		}
	}
}

func (p *parser) trimEndingWhitespace(element *ast.Element) {
	if p.inPre {
		return
	}
	for len(element.Children) > 0 {
		last, ok := element.Children[len(element.Children)-1].(*ast.Text)
		if !ok || last.Text != " " {
			break
		}
		element.Children = element.Children[:len(element.Children)-1]
	}
}

func (p *parser) checkRootConstraints(el *ast.Element) {
	if el.Tag == "slot" || el.Tag == "template" {
		p.warnOnce("Cannot use <"+el.Tag+"> as component root element because it may "+
			"contain multiple nodes.", el.StartPos, el.EndPos)
	}
	if _, ok := el.AttrsMap["v-for"]; ok {
		p.warnOnce("Cannot use v-for on stateful component root element because "+
			"it renders multiple elements.", el.StartPos, el.EndPos)
	}
}

func (p *parser) text(text string, start, end token.Position) {
	if p.currentParent == nil {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			p.warnOnce(`text "`+trimmed+`" outside root element will be ignored.`, start, end)
		}
		return
	}
	children := p.currentParent.Children

	if p.inPre || strings.TrimSpace(text) != "" {
		if !isTextTag(p.currentParent.Tag) {
			text = html.UnescapeString(text)
		}
	} else if len(children) == 0 {
		// Whitespace-only node right after an opening tag.
		text = ""
	} else if p.opts.Whitespace == WhitespaceCondense {
		// Whitespace between tags containing a line break is removed;
		// other whitespace condenses to one space.
		if lineBreakRE.MatchString(text) {
			text = ""
		} else {
			text = " "
		}
	} else {
		text = " "
	}
	if text == "" {
		return
	}
	if !p.inPre && p.opts.Whitespace == WhitespaceCondense {
		text = condenseRE.ReplaceAllString(text, " ")
	}

	if !p.inVPre && text != " " {
		if res := ParseText(text, p.opts.delimiters()); res != nil {
			p.currentParent.Children = append(p.currentParent.Children, &ast.Expression{
				Text:     text,
				Expr:     res.Expression,
				Tokens:   res.Tokens,
				StartPos: start,
				EndPos:   end,
			})
			return
		}
	}
	// Collapse runs of whitespace-only nodes.
	if text == " " && len(children) > 0 {
		if last, ok := children[len(children)-1].(*ast.Text); ok && last.Text == " " {
			return
		}
	}
	p.currentParent.Children = append(p.currentParent.Children, &ast.Text{
		Text:     text,
		StartPos: start,
		EndPos:   end,
	})
}

func (p *parser) comment(text string, start, end token.Position) {
	// Comments outside the root are dropped; a comment node needs a parent.
	if p.currentParent == nil {
		return
	}
	p.currentParent.Children = append(p.currentParent.Children, &ast.Text{
		Text:      text,
		IsComment: true,
		StartPos:  start,
		EndPos:    end,
	})
}

func (p *parser) processElement(element *ast.Element) {
	p.processKey(element)

	// An element with nothing but structural directives compiles without a
	// data descriptor.
	element.Plain = element.Key == "" && element.ScopedSlots == nil && len(element.AttrsList) == 0

	p.processRef(element)
	p.processSlotContent(element)
	p.processSlotOutlet(element)
	p.processComponent(element)
	for _, mod := range p.opts.Modules {
		if mod.TransformNode != nil {
			mod.TransformNode(element, p.opts)
		}
	}
	p.processAttrs(element)
}

func (p *parser) processPre(el *ast.Element) {
	if _, _, ok := getAndRemoveAttr(el, "v-pre", false); ok {
		el.Pre = true
	}
}

// processRawAttrs copies attributes through untouched for v-pre subtrees.
func (p *parser) processRawAttrs(el *ast.Element) {
	if len(el.AttrsList) > 0 {
		el.Attrs = make([]ast.Attr, len(el.AttrsList))
		for i, attr := range el.AttrsList {
			el.Attrs[i] = ast.Attr{
				Name:     attr.Name,
				Value:    quoteJS(attr.Value),
				StartPos: attr.StartPos,
				EndPos:   attr.EndPos,
			}
		}
	} else if !el.Pre {
		// Non-root nodes inside v-pre carry no bindings at all.
		el.Plain = true
	}
}

func (p *parser) processKey(el *ast.Element) {
	exp, ok := getBindingAttr(el, "key", true)
	if !ok || exp == "" {
		return
	}
	if el.Tag == "template" {
		attr, _ := getRawBindingAttr(el, "key")
		p.warn("<template> cannot be keyed. Place the key on real elements instead.",
			attr.StartPos, attr.EndPos)
	}
	el.Key = exp
}

func (p *parser) processRef(el *ast.Element) {
	if ref, ok := getBindingAttr(el, "ref", true); ok && ref != "" {
		el.Ref = ref
		el.RefInFor = el.InFor()
	}
}

func (p *parser) processFor(el *ast.Element) {
	exp, src, ok := getAndRemoveAttr(el, "v-for", false)
	if !ok {
		return
	}
	res := ParseFor(exp)
	if res == nil {
		p.warn("Invalid v-for expression: "+exp, src.StartPos, src.EndPos)
		return
	}
	el.For = res.For
	el.Alias = res.Alias
	el.Iterator1 = res.Iterator1
	el.Iterator2 = res.Iterator2
}

func (p *parser) processIf(el *ast.Element) {
	if exp, _, ok := getAndRemoveAttr(el, "v-if", false); ok && exp != "" {
		el.If = exp
		addIfCondition(el, ast.IfCondition{Exp: exp, Block: el})
		return
	}
	if _, _, ok := getAndRemoveAttr(el, "v-else", false); ok {
		el.Else = true
	}
	if exp, _, ok := getAndRemoveAttr(el, "v-else-if", false); ok && exp != "" {
		el.ElseIf = exp
	}
}

func (p *parser) processIfConditions(el *ast.Element, parent *ast.Element) {
	prev, children := p.findPrevElement(parent.Children)
	parent.Children = children
	if prev != nil && prev.If != "" {
		exp := el.ElseIf
		addIfCondition(prev, ast.IfCondition{Exp: exp, Block: el})
		return
	}
	name := "v-else"
	if el.ElseIf != "" {
		name = `v-else-if="` + el.ElseIf + `"`
	}
	p.warn(name+" used on element <"+el.Tag+"> without corresponding v-if.",
		el.StartPos, el.EndPos)
}

// findPrevElement locates the preceding element sibling an else branch
// chains onto, warning about non-whitespace text that would sit between the
// branches and dropping trailing text nodes.
func (p *parser) findPrevElement(children []ast.Node) (*ast.Element, []ast.Node) {
	for len(children) > 0 {
		last := children[len(children)-1]
		if el, ok := last.(*ast.Element); ok {
			return el, children
		}
		if text, ok := last.(*ast.Text); ok && strings.TrimSpace(text.Text) != "" {
			p.warn(`text "`+strings.TrimSpace(text.Text)+
				`" between v-if and v-else(-if) will be ignored.`,
				text.StartPos, text.EndPos)
		}
		children = children[:len(children)-1]
	}
	return nil, children
}

func addIfCondition(el *ast.Element, cond ast.IfCondition) {
	el.IfConditions = append(el.IfConditions, cond)
}

func (p *parser) processOnce(el *ast.Element) {
	if _, _, ok := getAndRemoveAttr(el, "v-once", false); ok {
		el.Once = true
	}
}

// processSlotContent handles content being passed into a component slot:
// the slot target attribute and the scoped slot scope attribute.
func (p *parser) processSlotContent(el *ast.Element) {
	var slotScope string
	if el.Tag == "template" {
		if scope, src, ok := getAndRemoveAttr(el, "scope", false); ok {
			p.warn(`the "scope" attribute for scoped slots have been deprecated and `+
				`replaced by "slot-scope". The new "slot-scope" attribute can also be `+
				`used on plain elements in addition to <template> to denote scoped slots.`,
				src.StartPos, src.EndPos)
			slotScope = scope
		}
		if slotScope == "" {
			slotScope, _, _ = getAndRemoveAttr(el, "slot-scope", false)
		}
		el.SlotScope = slotScope
	} else if scope, src, ok := getAndRemoveAttr(el, "slot-scope", false); ok {
		if _, hasFor := el.AttrsMap["v-for"]; hasFor {
			p.warn("Ambiguous combined usage of slot-scope and v-for on <"+el.Tag+"> "+
				"(v-for takes higher priority). Use a wrapper <template> for the scoped slot "+
				"to make it clearer.", src.StartPos, src.EndPos)
		}
		el.SlotScope = scope
	}

	if slotTarget, ok := getBindingAttr(el, "slot", true); ok {
		if slotTarget == "''" || slotTarget == "" {
			slotTarget = "'default'"
		}
		el.SlotTarget = slotTarget
		_, boundShorthand := el.AttrsMap[":slot"]
		_, boundLonghand := el.AttrsMap["v-bind:slot"]
		el.SlotTargetDynamic = boundShorthand || boundLonghand
		// Preserve slot as a native shadow-DOM attribute on plain content.
		if el.Tag != "template" && el.SlotScope == "" {
			attr, _ := getRawBindingAttr(el, "slot")
			addAttr(el, "slot", slotTarget, attr, false)
		}
	}
}

// processSlotOutlet handles <slot> outlets inside a component template.
func (p *parser) processSlotOutlet(el *ast.Element) {
	if el.Tag != "slot" {
		return
	}
	if name, ok := getBindingAttr(el, "name", true); ok {
		el.SlotName = name
	}
	if el.Key != "" {
		attr, _ := getRawBindingAttr(el, "key")
		p.warn("`key` does not work on <slot> because slots are abstract outlets "+
			"and can possibly be replaced by multiple elements. "+
			"Use the key on a wrapping element instead.", attr.StartPos, attr.EndPos)
	}
}

func (p *parser) processComponent(el *ast.Element) {
	if binding, ok := getBindingAttr(el, "is", false); ok && binding != "" {
		el.Component = binding
	}
	if _, _, ok := getAndRemoveAttr(el, "inline-template", false); ok {
		el.InlineTemplate = true
	}
}

func (p *parser) processAttrs(el *ast.Element) {
	list := el.AttrsList
	el.AttrsList = nil
	for _, attr := range list {
		name := attr.Name
		rawName := attr.Name
		value := attr.Value
		if dirRE.MatchString(name) {
			el.HasBindings = true
			// Modifiers hang off the name after the directive prefix; the
			// leading dot of the .prop shorthand is prefix, not modifier.
			prefixLen := len(name) - len(dirRE.ReplaceAllString(name, ""))
			stripped, modifiers := parseModifiers(name[prefixLen:])
			name = name[:prefixLen] + stripped
			if propBindRE.MatchString(name) {
				if modifiers == nil {
					modifiers = map[string]bool{}
				}
				modifiers["prop"] = true
			}

			switch {
			case bindRE.MatchString(name): // v-bind
				name = bindRE.ReplaceAllString(name, "")
				value = ParseFilters(value)
				isDynamic := dynamicArgRE.MatchString(name)
				if isDynamic {
					name = name[1 : len(name)-1]
				}
				if strings.TrimSpace(value) == "" {
					p.warn(`The value for a v-bind expression cannot be empty. Found in "v-bind:`+
						name+`"`, attr.StartPos, attr.EndPos)
				}
				if modifiers != nil {
					if modifiers["prop"] && !isDynamic {
						name = camelize(name)
						if name == "innerHtml" {
							name = "innerHTML"
						}
					}
					if modifiers["camel"] && !isDynamic {
						name = camelize(name)
					}
					if modifiers["sync"] {
						syncGen := genAssignmentCode(value, "$event")
						if !isDynamic {
							addHandler(el, "update:"+camelize(name), syncGen, nil, false, p.opts.Warn, attr, false)
							if hyphenate(name) != camelize(name) {
								addHandler(el, "update:"+hyphenate(name), syncGen, nil, false, p.opts.Warn, attr, false)
							}
						} else {
							addHandler(el, `"update:"+(`+name+`)`, syncGen, nil, false, p.opts.Warn, attr, true)
						}
					}
				}
				if (modifiers != nil && modifiers["prop"]) ||
					(el.Component == "" && p.opts.mustUseProp(el.Tag, el.AttrsMap["type"], name)) {
					addProp(el, name, value, attr, isDynamic)
				} else {
					addAttr(el, name, value, attr, isDynamic)
				}
			case onRE.MatchString(name): // v-on
				name = onRE.ReplaceAllString(name, "")
				isDynamic := dynamicArgRE.MatchString(name)
				if isDynamic {
					name = name[1 : len(name)-1]
				}
				addHandler(el, name, value, modifiers, false, p.opts.Warn, attr, isDynamic)
			default: // normal directive
				name = dirRE.ReplaceAllString(name, "")
				var arg string
				isDynamic := false
				if argMatch := argRE.FindStringSubmatch(name); argMatch != nil {
					arg = argMatch[1]
					name = name[:len(name)-len(arg)-1]
					if dynamicArgRE.MatchString(arg) {
						arg = arg[1 : len(arg)-1]
						isDynamic = true
					}
				}
				addDirective(el, ast.Directive{
					Name:       name,
					RawName:    rawName,
					Value:      value,
					Arg:        arg,
					DynamicArg: isDynamic,
					Modifiers:  modifiers,
					StartPos:   attr.StartPos,
					EndPos:     attr.EndPos,
				})
			}
		} else {
			// Literal attribute.
			if res := ParseText(value, p.opts.delimiters()); res != nil {
				p.warn(name+`="`+value+`": interpolation inside attributes has been removed. `+
					`Use v-bind or the colon shorthand instead. For example, `+
					`instead of <div id="{{ val }}">, use <div :id="val">.`,
					attr.StartPos, attr.EndPos)
			}
			addAttr(el, name, quoteJS(value), attr, false)
			// Browsers do not reflect the muted attribute into its property.
			if el.Component == "" && name == "muted" &&
				p.opts.mustUseProp(el.Tag, el.AttrsMap["type"], name) {
				addProp(el, name, "true", attr, false)
			}
		}
	}
}

// isTextTag reports tags whose text content is never entity-decoded.
func isTextTag(tag string) bool {
	return tag == "script" || tag == "style"
}

func isForbiddenTag(el *ast.Element) bool {
	switch el.Tag {
	case "style":
		return true
	case "script":
		t, ok := el.AttrsMap["type"]
		return !ok || t == "text/javascript"
	}
	return false
}
