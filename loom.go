// Package loom is a fine-grained reactivity engine paired with a
// template compiler. Templates compile to virtual node builders whose
// state reads register dependencies, so a watcher wrapping a render
// re-runs exactly when the state it touched changes.
package loom

import (
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/deepnoodle-ai/loom/compiler"
	"github.com/deepnoodle-ai/loom/render"
)

// CompileResult is the outcome of compiling one template: the annotated
// tree, the generated program text, and the collected diagnostics.
type CompileResult = compiler.Result

// Compile parses, optimizes, and generates program text for a template.
// Diagnostics never abort compilation; the result carries its error and
// tip buckets, and blocking errors are also aggregated into the returned
// error. The result is immutable afterward and safe for concurrent use.
func Compile(template string, opts ...Option) (*CompileResult, error) {
	o := collectOptions(opts...)
	res := compiler.Compile(template, o.compilerOpts())
	return res, compileError(res)
}

func compileError(res *CompileResult) error {
	if len(res.Errors) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, d := range res.Errors {
		merr = multierror.Append(merr, d)
	}
	return merr.ErrorOrNil()
}

// cacheKey identifies a compilation structurally, so templates compiled
// under different option sets never collide.
type cacheKey struct {
	delimiters [2]string
	whitespace string
	template   string
}

var (
	cacheMu       sync.Mutex
	templateCache = map[cacheKey]*CompiledTemplate{}
)

// CompileToFunctions compiles a template and builds its render function,
// memoizing end-to-end on the template text and the options that affect
// its meaning. Repeated calls with the same inputs return the same
// CompiledTemplate.
func CompileToFunctions(template string, opts ...Option) (*CompiledTemplate, error) {
	o := collectOptions(opts...)
	key := cacheKey{
		delimiters: o.delimiters,
		whitespace: o.whitespace,
		template:   template,
	}

	cacheMu.Lock()
	cached, ok := templateCache[key]
	cacheMu.Unlock()
	if ok {
		return cached, nil
	}

	compilerOpts := o.compilerOpts()
	res := compiler.Compile(template, compilerOpts)
	if err := compileError(res); err != nil {
		return nil, err
	}
	renderFn, err := render.Build(res.AST, compilerOpts)
	if err != nil {
		return nil, err
	}
	compiled := &CompiledTemplate{
		source:   template,
		filename: o.filename,
		result:   res,
		render:   renderFn,
		filters:  o.filters,
	}

	cacheMu.Lock()
	// A concurrent compile of the same key may have won; keep the first.
	if winner, ok := templateCache[key]; ok {
		compiled = winner
	} else {
		templateCache[key] = compiled
	}
	cacheMu.Unlock()
	return compiled, nil
}
