package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/deepnoodle-ai/loom"
	"github.com/deepnoodle-ai/loom/compiler"
	"github.com/deepnoodle-ai/loom/diag"
)

// printDiagnostics writes compile diagnostics to stderr, errors first,
// then tips.
func printDiagnostics(res *loom.CompileResult) {
	diags := make([]*diag.Diagnostic, 0, len(res.Errors)+len(res.Tips))
	diags = append(diags, res.Errors...)
	diags = append(diags, res.Tips...)
	if len(diags) == 0 {
		return
	}
	diag.SortByPosition(diags)

	f := diag.NewFormatter(!color.NoColor)
	formatted := make([]*diag.Formatted, len(diags))
	for i, d := range diags {
		formatted[i] = d.ToFormatted()
	}
	fmt.Fprint(os.Stderr, f.FormatMultiple(formatted))
}

// readInput resolves the template source from the -c flag, --stdin, or a
// file argument, in that order of precedence. Exactly one source must be
// provided. The returned name labels diagnostics.
func readInput(cmd *cli.Command) (source, name string, err error) {
	codeSet := cmd.IsSet("template")
	stdinSet := cmd.Bool("stdin")
	file := cmd.Args().First()

	count := 0
	if codeSet {
		count++
	}
	if stdinSet {
		count++
	}
	if file != "" {
		count++
	}
	if count > 1 {
		return "", "", errors.New("multiple input sources specified")
	}
	if count == 0 {
		return "", "", errors.New("no input provided")
	}

	switch {
	case stdinSet:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", err
		}
		return string(data), "<stdin>", nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", "", err
		}
		return string(data), file, nil
	default:
		return cmd.String("template"), "<arg>", nil
	}
}

// inputFlags are shared by the commands that accept a single template.
func inputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "template",
			Aliases: []string{"c"},
			Usage:   "Template text to compile",
		},
		&cli.BoolFlag{
			Name:  "stdin",
			Usage: "Read the template from stdin",
		},
	}
}

// compileOptions converts the shared compile flags to façade options.
func compileOptions(cmd *cli.Command, filename string) []loom.Option {
	opts := []loom.Option{
		loom.WithFilename(filename),
		loom.WithOutputSourceRange(),
	}
	if cmd.Bool("condense") {
		opts = append(opts, loom.WithWhitespace(compiler.WhitespaceCondense))
	}
	if cmd.Bool("comments") {
		opts = append(opts, loom.WithComments())
	}
	return opts
}

func compileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "condense",
			Usage: "Condense whitespace between elements",
		},
		&cli.BoolFlag{
			Name:  "comments",
			Usage: "Keep HTML comments",
		},
	}
}
