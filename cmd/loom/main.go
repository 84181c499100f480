package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	With().Timestamp().Logger()

// setup applies the global flags. Flag lookups traverse the command
// lineage, so subcommand actions see the root flags.
func setup(cmd *cli.Command) {
	if cmd.Bool("no-color") {
		color.NoColor = true
	}
	if cmd.Bool("verbose") {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
}

func main() {
	app := &cli.Command{
		Name:    "loom",
		Usage:   "Compile reactive templates to render programs",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "no-color",
				Usage:   "Disable colored output",
				Sources: cli.EnvVars("NO_COLOR"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			buildCommand(),
			astCommand(),
			benchCommand(),
			watchCommand(),
			versionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("loom %s (commit %s, built %s)\n", version, commit, date)
			return nil
		},
	}
}

func printError(msg string) {
	fmt.Fprintln(os.Stderr, color.RedString("error: %s", msg))
}
