package compiler

import (
	"strings"

	"github.com/deepnoodle-ai/loom/ast"
	"github.com/deepnoodle-ai/loom/diag"
	"github.com/deepnoodle-ai/loom/internal/token"
)

// Result is the outcome of one template compilation.
type Result struct {
	AST             *ast.Element
	Render          string
	StaticRenderFns []string
	Errors          []*diag.Diagnostic
	Tips            []*diag.Diagnostic
}

// Err returns the collected errors as a single error value, or nil when the
// template compiled cleanly. Tips never make a compilation fail.
func (r *Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	list := diag.NewList(r.Errors)
	if list == nil {
		return nil
	}
	return list
}

// Compile parses, analyzes, and generates code for a template in one pass,
// collecting diagnostics instead of failing fast so authors see every
// problem at once.
func Compile(template string, opts *Options) *Result {
	opts = Merge(opts, nil)

	rep := &reporter{
		template: template,
		file:     opts.Filename,
		forward:  opts.Warn,
	}

	rep.kind = diag.KindSyntax
	opts.Warn = rep.warn
	root := Parse(template, opts)

	Optimize(root, opts)

	rep.kind = diag.KindExpression
	DetectErrors(root, rep.warn)

	rep.kind = diag.KindGenerate
	code := Generate(root, opts)

	return &Result{
		AST:             root,
		Render:          code.Render,
		StaticRenderFns: code.StaticRenderFns,
		Errors:          rep.errors,
		Tips:            rep.tips,
	}
}

// reporter adapts warn callbacks into structured diagnostics, attaching the
// source line each position falls on.
type reporter struct {
	template string
	file     string
	kind     diag.Kind
	errors   []*diag.Diagnostic
	tips     []*diag.Diagnostic
	forward  WarnFn
}

func (r *reporter) warn(msg string, start, end token.Position, tip bool) {
	d := &diag.Diagnostic{
		Severity: diag.Error,
		Kind:     r.kind,
		Message:  msg,
		File:     r.file,
		Start:    start,
		End:      end,
		Source:   r.sourceLine(start),
	}
	if tip {
		d.Severity = diag.Tip
		r.tips = append(r.tips, d)
	} else {
		r.errors = append(r.errors, d)
	}
	if r.forward != nil {
		r.forward(msg, start, end, tip)
	}
}

func (r *reporter) sourceLine(pos token.Position) string {
	if pos.LineStart < 0 || pos.LineStart > len(r.template) {
		return ""
	}
	line := r.template[pos.LineStart:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimRight(line, "\r")
}
