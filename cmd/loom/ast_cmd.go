package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/deepnoodle-ai/loom"
)

func astCommand() *cli.Command {
	return &cli.Command{
		Name:      "ast",
		Usage:     "Display the annotated tree for a template",
		ArgsUsage: "file?",
		Flags:     append(inputFlags(), compileFlags()...),
		Action:    astHandler,
	}
}

func astHandler(ctx context.Context, cmd *cli.Command) error {
	setup(cmd)
	source, name, err := readInput(cmd)
	if err != nil {
		return err
	}

	res, err := loom.Compile(source, compileOptions(cmd, name)...)
	printDiagnostics(res)
	if err != nil {
		return errors.New("template failed to compile")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.AST)
}
