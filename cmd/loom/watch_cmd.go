package main

import (
	"context"
	"errors"
	"os"
	"time"

	"atomicgo.dev/keyboard"
	"atomicgo.dev/keyboard/keys"
	"github.com/urfave/cli/v3"

	"github.com/deepnoodle-ai/loom"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Recompile a template on demand (r to rebuild, q to quit)",
		ArgsUsage: "file",
		Flags:     compileFlags(),
		Action:    watchHandler,
	}
}

func watchHandler(ctx context.Context, cmd *cli.Command) error {
	setup(cmd)
	file := cmd.Args().First()
	if file == "" {
		return errors.New("no input file")
	}

	rebuild := func() {
		data, err := os.ReadFile(file)
		if err != nil {
			logger.Error().Err(err).Str("file", file).Msg("read failed")
			return
		}
		start := time.Now()
		res, err := loom.Compile(string(data), compileOptions(cmd, file)...)
		printDiagnostics(res)
		if err != nil {
			logger.Error().Str("file", file).
				Int("errors", len(res.Errors)).
				Msg("compile failed")
			return
		}
		logger.Info().Str("file", file).
			Dur("elapsed", time.Since(start)).
			Int("tips", len(res.Tips)).
			Msg("compiled")
	}

	rebuild()
	logger.Info().Msg("press r to rebuild, q to quit")

	return keyboard.Listen(func(key keys.Key) (bool, error) {
		switch key.Code {
		case keys.CtrlC, keys.Escape:
			return true, nil
		case keys.RuneKey:
			switch key.String() {
			case "r":
				rebuild()
			case "q":
				return true, nil
			}
		}
		return false, nil
	})
}
