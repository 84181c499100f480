// Package diag defines the structured diagnostics produced while compiling
// templates. A Diagnostic carries a severity, a category, source positions,
// and the relevant line of source text, so callers can render compiler
// output with precise ranges.
package diag

import (
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/loom/internal/token"
)

// Severity distinguishes hard errors from advisory tips.
type Severity int

const (
	// Error indicates the template cannot be compiled as written.
	Error Severity = iota
	// Tip indicates advisory output: the template compiles, but something
	// about it deserves the author's attention.
	Tip
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Tip:
		return "tip"
	default:
		return "error"
	}
}

// Kind represents the category of a diagnostic.
type Kind int

const (
	// KindSyntax indicates malformed template markup.
	KindSyntax Kind = iota
	// KindStructure indicates invalid element structure, such as multiple
	// roots or a misplaced else branch.
	KindStructure
	// KindAttribute indicates an invalid attribute or directive usage.
	KindAttribute
	// KindExpression indicates an invalid embedded expression.
	KindExpression
	// KindGenerate indicates a failure while generating output code.
	KindGenerate
)

// String returns the string representation of the diagnostic kind.
func (k Kind) String() string {
	switch k {
	case KindSyntax:
		return "syntax error"
	case KindStructure:
		return "structure error"
	case KindAttribute:
		return "attribute error"
	case KindExpression:
		return "expression error"
	case KindGenerate:
		return "generate error"
	default:
		return "error"
	}
}

// Diagnostic is one issue found while compiling a template.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Message  string
	Cause    error
	File     string
	Start    token.Position
	End      token.Position
	// Source is the relevant line of template text, when available.
	Source string
}

// Error implements the error interface.
func (d *Diagnostic) Error() string {
	msg := d.Message
	if d.Cause != nil {
		msg = d.Cause.Error()
	}
	if d.Start.IsValid() {
		return fmt.Sprintf("%s: %s (%d:%d)", d.Kind, msg, d.Start.LineNumber(), d.Start.ColumnNumber())
	}
	return fmt.Sprintf("%s: %s", d.Kind, msg)
}

// Unwrap returns the underlying cause, if any.
func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

// FriendlyErrorMessage returns a human-friendly rendering with the source
// line and a caret range, without color.
func (d *Diagnostic) FriendlyErrorMessage() string {
	formatter := NewFormatter(false)
	return formatter.Format(d.ToFormatted())
}

// ToFormatted converts the diagnostic to a Formatted for display.
func (d *Diagnostic) ToFormatted() *Formatted {
	message := d.Message
	if d.Cause != nil {
		message = d.Cause.Error()
	}
	f := &Formatted{
		Kind:      d.Kind.String(),
		Message:   message,
		Filename:  d.File,
		Line:      d.Start.LineNumber(),
		Column:    d.Start.ColumnNumber(),
		EndColumn: d.End.ColumnNumber(),
	}
	if d.Severity == Tip {
		f.Kind = "tip"
	}
	if d.Source != "" {
		f.SourceLines = []SourceLine{
			{Number: d.Start.LineNumber(), Text: d.Source, IsMain: true},
		}
	}
	return f
}

// List wraps multiple diagnostics for multi-error reporting. It implements
// the error interface so it can be returned directly from compile calls.
type List struct {
	diags []*Diagnostic
}

// NewList creates a List from a slice of diagnostics. Returns nil if the
// slice is empty.
func NewList(diags []*Diagnostic) *List {
	if len(diags) == 0 {
		return nil
	}
	return &List{diags: diags}
}

// Error implements the error interface. Returns the first error message.
func (l *List) Error() string {
	if len(l.diags) == 0 {
		return ""
	}
	if len(l.diags) == 1 {
		return l.diags[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l.diags[0].Error(), len(l.diags)-1)
}

// Diagnostics returns the underlying slice.
func (l *List) Diagnostics() []*Diagnostic {
	return l.diags
}

// Count returns the number of diagnostics.
func (l *List) Count() int {
	return len(l.diags)
}

// First returns the first diagnostic, or nil if empty.
func (l *List) First() *Diagnostic {
	if len(l.diags) == 0 {
		return nil
	}
	return l.diags[0]
}

// FriendlyErrorMessage returns a formatted message showing all diagnostics.
func (l *List) FriendlyErrorMessage() string {
	formatter := NewFormatter(false)
	formatted := make([]*Formatted, 0, len(l.diags))
	for _, d := range l.diags {
		formatted = append(formatted, d.ToFormatted())
	}
	return formatter.FormatMultiple(formatted)
}

// Unwrap returns the underlying diagnostics for use with errors.Is/As.
func (l *List) Unwrap() []error {
	result := make([]error, len(l.diags))
	for i, d := range l.diags {
		result[i] = d
	}
	return result
}

// SortByPosition orders diagnostics by file, then line, then column.
func SortByPosition(diags []*Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Start.Line != b.Start.Line {
			return a.Start.Line < b.Start.Line
		}
		return a.Start.Column < b.Start.Column
	})
}
