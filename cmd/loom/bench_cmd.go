package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/deepnoodle-ai/loom"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Benchmark template compilation",
		ArgsUsage: "file?",
		Flags: append(inputFlags(),
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Usage:   "Number of timed compilations",
				Value:   1000,
			},
			&cli.IntFlag{
				Name:    "warmup",
				Aliases: []string{"w"},
				Usage:   "Warmup compilations before timing",
				Value:   100,
			},
		),
		Action: benchHandler,
	}
}

func benchHandler(ctx context.Context, cmd *cli.Command) error {
	setup(cmd)
	source, name, err := readInput(cmd)
	if err != nil {
		return err
	}

	// A broken template would benchmark diagnostics collection instead.
	res, err := loom.Compile(source, loom.WithFilename(name))
	if err != nil {
		printDiagnostics(res)
		return errors.New("template failed to compile")
	}

	iterations := int(cmd.Int("iterations"))
	warmup := int(cmd.Int("warmup"))
	if iterations < 1 {
		return errors.New("iterations must be positive")
	}

	logger.Debug().Int("iterations", iterations).Int("warmup", warmup).Msg("benchmarking")
	for i := 0; i < warmup; i++ {
		loom.Compile(source, loom.WithFilename(name))
	}

	tach := tachymeter.New(&tachymeter.Config{Size: iterations})
	wallStart := time.Now()
	for i := 0; i < iterations; i++ {
		start := time.Now()
		loom.Compile(source, loom.WithFilename(name))
		tach.AddTime(time.Since(start))
	}
	tach.SetWallTime(time.Since(wallStart))

	calc := tach.Calc()
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetTitle("compile %s", name)
	tbl.AppendHeader(table.Row{"iterations", "avg", "min", "p50", "p95", "p99", "max", "rate"})
	tbl.AppendRow(table.Row{
		iterations,
		calc.Time.Avg,
		calc.Time.Min,
		calc.Time.P50,
		calc.Time.P95,
		calc.Time.P99,
		calc.Time.Max,
		fmt.Sprintf("%.0f/s", calc.Rate.Second),
	})
	tbl.Render()
	return nil
}
