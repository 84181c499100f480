package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Formatter formats diagnostics with colors and consistent styling.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool
}

// NewFormatter creates a new diagnostic formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

// Colors used for diagnostic formatting
var (
	colorError     = color.New(color.FgRed)
	colorErrorBold = color.New(color.FgHiRed)
	colorCode      = color.New(color.FgHiBlack)
	colorLocation  = color.New(color.FgCyan)
	colorLineNum   = color.New(color.FgHiBlack)
	colorPipe      = color.New(color.FgHiBlack)
	colorSource    = color.New(color.FgWhite)
	colorCaret     = color.New(color.FgHiRed)
	colorHint      = color.New(color.FgHiYellow)
)

// Formatted represents a diagnostic ready for display.
type Formatted struct {
	Kind        string // "syntax error", "expression error", "tip", etc.
	Message     string
	Filename    string
	Line        int
	Column      int
	EndColumn   int // for multi-character underlines
	SourceLines []SourceLine
	Hint        string
}

// SourceLine represents a line of source text with its number.
type SourceLine struct {
	Number int
	Text   string
	IsMain bool // true if this is the line with the error
}

func (f *Formatter) paint(c *color.Color, s string) string {
	if !f.UseColor {
		return s
	}
	return c.Sprint(s)
}

// Format formats the diagnostic as a string using a consistent style.
func (f *Formatter) Format(d *Formatted) string {
	return f.FormatWithPrefix(d, "")
}

// FormatWithPrefix formats the diagnostic with an optional prefix like "1/5".
func (f *Formatter) FormatWithPrefix(d *Formatted, prefix string) string {
	var b strings.Builder

	lineNumWidth := 2
	if d.Line >= 100 {
		lineNumWidth = len(fmt.Sprintf("%d", d.Line))
	}

	f.writeHeader(&b, d, prefix)
	f.writeLocation(&b, d, lineNumWidth)
	f.writeSource(&b, d, lineNumWidth)
	if d.Hint != "" {
		f.writeHint(&b, d.Hint, lineNumWidth)
	}
	return b.String()
}

func (f *Formatter) writeHeader(b *strings.Builder, d *Formatted, prefix string) {
	label := "error"
	if d.Kind != "" {
		label = d.Kind
	}
	b.WriteString(f.paint(colorErrorBold, label))
	if prefix != "" {
		b.WriteString(f.paint(colorCode, fmt.Sprintf("[%s]", prefix)))
	}
	b.WriteString(f.paint(colorError, ": "))
	b.WriteString(d.Message)
	b.WriteString("\n")
}

func (f *Formatter) writeLocation(b *strings.Builder, d *Formatted, lineNumWidth int) {
	if d.Line == 0 && d.Filename == "" {
		return
	}
	padding := strings.Repeat(" ", lineNumWidth)
	b.WriteString(f.paint(colorLineNum, padding))
	b.WriteString(f.paint(colorLocation, "-->"))
	b.WriteString(" ")

	loc := ""
	if d.Filename != "" {
		loc = d.Filename
		if d.Line > 0 {
			loc += fmt.Sprintf(":%d:%d", d.Line, d.Column)
		}
	} else if d.Line > 0 {
		loc = fmt.Sprintf("%d:%d", d.Line, d.Column)
	}
	b.WriteString(f.paint(colorLocation, loc))
	b.WriteString("\n")
}

func (f *Formatter) writeSource(b *strings.Builder, d *Formatted, lineNumWidth int) {
	if len(d.SourceLines) == 0 {
		return
	}
	padding := strings.Repeat(" ", lineNumWidth)

	b.WriteString(f.paint(colorLineNum, padding))
	b.WriteString(f.paint(colorPipe, " |\n"))

	for _, line := range d.SourceLines {
		lineNumStr := fmt.Sprintf("%*d", lineNumWidth, line.Number)
		b.WriteString(f.paint(colorLineNum, lineNumStr))
		b.WriteString(f.paint(colorPipe, " | "))
		b.WriteString(f.paint(colorSource, line.Text))
		b.WriteString("\n")

		if line.IsMain && d.Column > 0 {
			b.WriteString(f.paint(colorLineNum, padding))
			b.WriteString(f.paint(colorPipe, " | "))
			b.WriteString(strings.Repeat(" ", d.Column-1))
			caretLen := 1
			if d.EndColumn > d.Column {
				caretLen = d.EndColumn - d.Column + 1
			}
			b.WriteString(f.paint(colorCaret, strings.Repeat("^", caretLen)))
			b.WriteString("\n")
		}
	}
}

func (f *Formatter) writeHint(b *strings.Builder, hint string, lineNumWidth int) {
	padding := strings.Repeat(" ", lineNumWidth)
	b.WriteString(f.paint(colorLineNum, padding))
	b.WriteString(f.paint(colorPipe, " |\n"))
	b.WriteString(f.paint(colorLineNum, padding))
	b.WriteString(f.paint(colorPipe, " = "))
	b.WriteString(f.paint(colorHint, "hint: "))
	b.WriteString(hint)
	b.WriteString("\n")
}

// FormatMultiple formats multiple diagnostics with consistent styling.
func (f *Formatter) FormatMultiple(diags []*Formatted) string {
	if len(diags) == 0 {
		return ""
	}
	if len(diags) == 1 {
		return f.Format(diags[0])
	}

	var b strings.Builder
	total := len(diags)
	for i, d := range diags {
		if i > 0 {
			b.WriteString("\n")
		}
		prefix := fmt.Sprintf("%d/%d", i+1, total)
		b.WriteString(f.FormatWithPrefix(d, prefix))
	}
	b.WriteString("\n")
	b.WriteString(f.paint(colorErrorBold, fmt.Sprintf("found %d problems", total)))
	b.WriteString("\n")
	return b.String()
}
