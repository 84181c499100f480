package loom

import (
	"github.com/deepnoodle-ai/loom/compiler"
)

// Option configures a template compilation.
type Option func(*options)

type options struct {
	filename          string
	delimiters        [2]string
	whitespace        string
	comments          bool
	outputSourceRange bool
	modules           []compiler.Module
	directives        map[string]compiler.DirectiveGen
	filters           map[string]any
	warn              compiler.WarnFn
}

func collectOptions(opts ...Option) *options {
	o := &options{
		directives: map[string]compiler.DirectiveGen{},
		filters:    map[string]any{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// compilerOpts layers the collected options over the HTML platform
// defaults: modules concatenate, directives merge with caller
// precedence, scalars overwrite.
func (o *options) compilerOpts() *compiler.Options {
	override := &compiler.Options{
		Filename:          o.filename,
		Delimiters:        o.delimiters,
		Whitespace:        o.whitespace,
		Comments:          o.comments,
		OutputSourceRange: o.outputSourceRange,
		Modules:           o.modules,
		Directives:        o.directives,
		Warn:              o.warn,
	}
	return compiler.Merge(compiler.DefaultOptions(), override)
}

// WithFilename sets the filename attached to diagnostics.
func WithFilename(filename string) Option {
	return func(o *options) {
		o.filename = filename
	}
}

// WithDelimiters overrides the default {{ }} interpolation markers.
func WithDelimiters(open, close string) Option {
	return func(o *options) {
		o.delimiters = [2]string{open, close}
	}
}

// WithWhitespace selects the whitespace policy for text between tags:
// compiler.WhitespacePreserve (default) or compiler.WhitespaceCondense.
func WithWhitespace(mode string) Option {
	return func(o *options) {
		o.whitespace = mode
	}
}

// WithComments keeps HTML comments as comment nodes instead of dropping
// them.
func WithComments() Option {
	return func(o *options) {
		o.comments = true
	}
}

// WithOutputSourceRange includes full position ranges on diagnostics.
func WithOutputSourceRange() Option {
	return func(o *options) {
		o.outputSourceRange = true
	}
}

// WithModule adds a platform module that participates in parsing and
// code generation. This option is additive.
func WithModule(mod compiler.Module) Option {
	return func(o *options) {
		o.modules = append(o.modules, mod)
	}
}

// WithDirective registers a compile-time directive generator. If the
// same name is supplied multiple times, the last generator wins.
func WithDirective(name string, gen compiler.DirectiveGen) Option {
	return func(o *options) {
		o.directives[name] = gen
	}
}

// WithFilter registers a filter available to pipe expressions in
// templates rendered from the compiled result. This option is additive.
func WithFilter(name string, fn any) Option {
	return func(o *options) {
		o.filters[name] = fn
	}
}

// WithWarn installs a reporter that receives every diagnostic as it is
// produced, in addition to the collected result buckets.
func WithWarn(warn compiler.WarnFn) Option {
	return func(o *options) {
		o.warn = warn
	}
}
