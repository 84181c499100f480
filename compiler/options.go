package compiler

import (
	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/internal/token"
)

// Whitespace handling modes for text between tags.
const (
	WhitespacePreserve = "preserve"
	WhitespaceCondense = "condense"
)

// WarnFn receives a compile-time diagnostic. Tips are advisory; everything
// else blocks.
type WarnFn func(msg string, start, end token.Position, tip bool)

// Module is a platform extension hook. Modules participate in parsing
// (normalizing attributes into element metadata) and code generation
// (contributing fragments to the element's data descriptor).
type Module struct {
	// StaticKeys names the element fields this module writes that are
	// compatible with static hoisting, such as staticClass.
	StaticKeys []string

	// PreTransformNode runs on tag-open, before structural directives are
	// extracted. It may return a replacement element.
	PreTransformNode func(el *ast.Element, opts *Options) *ast.Element

	// TransformNode runs during element processing, after structural
	// directives are extracted.
	TransformNode func(el *ast.Element, opts *Options)

	// PostTransformNode runs on tag-close, after the element is finished.
	PostTransformNode func(el *ast.Element, opts *Options)

	// GenData contributes a "key:value," fragment to the element's data
	// descriptor.
	GenData func(el *ast.Element) string
}

// DirectiveGen compiles one custom directive occurrence. It may rewrite the
// element (adding props or handlers) and reports whether the directive also
// needs a runtime entry in the generated data descriptor.
type DirectiveGen func(el *ast.Element, dir *ast.Directive, warn WarnFn) bool

// Options configure a template compilation. The zero value is usable but
// platform-unaware; DefaultOptions returns the HTML platform configuration.
type Options struct {
	// Filename appears in diagnostic positions.
	Filename string

	// Delimiters override the default {{ }} interpolation markers.
	Delimiters [2]string

	// Whitespace selects the text whitespace policy: WhitespacePreserve
	// (default) or WhitespaceCondense.
	Whitespace string

	// Comments keeps HTML comments as comment nodes instead of dropping
	// them.
	Comments bool

	// OutputSourceRange includes full position ranges on diagnostics.
	OutputSourceRange bool

	// Modules are platform extension hooks, applied in order.
	Modules []Module

	// Directives maps directive names to their compile-time generators.
	Directives map[string]DirectiveGen

	// Platform predicates.
	IsReservedTag    func(tag string) bool
	IsUnaryTag       func(tag string) bool
	CanBeLeftOpenTag func(tag string) bool
	IsNonPhrasingTag func(tag string) bool
	IsPreTag         func(tag string) bool
	MustUseProp      func(tag, attrType, name string) bool
	GetTagNamespace  func(tag string) string

	// ExpectHTML enables HTML auto-closing recovery in the scanner.
	ExpectHTML bool

	ShouldDecodeNewlines        bool
	ShouldDecodeNewlinesForHref bool

	// Warn receives diagnostics in addition to the compile result's
	// collected errors and tips.
	Warn WarnFn
}

// Merge layers override onto base: list-valued options concatenate,
// map-valued options merge with override precedence, and scalar or function
// options overwrite when set. Neither input is modified.
func Merge(base, override *Options) *Options {
	if base == nil {
		base = &Options{}
	}
	merged := *base
	if override == nil {
		return &merged
	}
	merged.Modules = append(append([]Module{}, base.Modules...), override.Modules...)
	if len(base.Directives) > 0 || len(override.Directives) > 0 {
		dirs := make(map[string]DirectiveGen, len(base.Directives)+len(override.Directives))
		for name, gen := range base.Directives {
			dirs[name] = gen
		}
		for name, gen := range override.Directives {
			dirs[name] = gen
		}
		merged.Directives = dirs
	}
	if override.Filename != "" {
		merged.Filename = override.Filename
	}
	if override.Delimiters != [2]string{} {
		merged.Delimiters = override.Delimiters
	}
	if override.Whitespace != "" {
		merged.Whitespace = override.Whitespace
	}
	if override.Comments {
		merged.Comments = true
	}
	if override.OutputSourceRange {
		merged.OutputSourceRange = true
	}
	if override.IsReservedTag != nil {
		merged.IsReservedTag = override.IsReservedTag
	}
	if override.IsUnaryTag != nil {
		merged.IsUnaryTag = override.IsUnaryTag
	}
	if override.CanBeLeftOpenTag != nil {
		merged.CanBeLeftOpenTag = override.CanBeLeftOpenTag
	}
	if override.IsNonPhrasingTag != nil {
		merged.IsNonPhrasingTag = override.IsNonPhrasingTag
	}
	if override.IsPreTag != nil {
		merged.IsPreTag = override.IsPreTag
	}
	if override.MustUseProp != nil {
		merged.MustUseProp = override.MustUseProp
	}
	if override.GetTagNamespace != nil {
		merged.GetTagNamespace = override.GetTagNamespace
	}
	if override.ExpectHTML {
		merged.ExpectHTML = true
	}
	if override.ShouldDecodeNewlines {
		merged.ShouldDecodeNewlines = true
	}
	if override.ShouldDecodeNewlinesForHref {
		merged.ShouldDecodeNewlinesForHref = true
	}
	if override.Warn != nil {
		merged.Warn = override.Warn
	}
	return &merged
}

func (o *Options) delimiters() [2]string {
	if o.Delimiters == [2]string{} {
		return [2]string{"{{", "}}"}
	}
	return o.Delimiters
}

func (o *Options) isReservedTag(tag string) bool {
	return o.IsReservedTag != nil && o.IsReservedTag(tag)
}

func (o *Options) isUnaryTag(tag string) bool {
	return o.IsUnaryTag != nil && o.IsUnaryTag(tag)
}

func (o *Options) isPreTag(tag string) bool {
	return o.IsPreTag != nil && o.IsPreTag(tag)
}

func (o *Options) mustUseProp(tag, attrType, name string) bool {
	return o.MustUseProp != nil && o.MustUseProp(tag, attrType, name)
}

func (o *Options) tagNamespace(tag string) string {
	if o.GetTagNamespace == nil {
		return ""
	}
	return o.GetTagNamespace(tag)
}
