package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/deepnoodle-ai/loom"
)

// artifact is the persisted form of one compiled template.
type artifact struct {
	Path            string   `json:"path"`
	Hash            string   `json:"hash"`
	Render          string   `json:"render"`
	StaticRenderFns []string `json:"staticRenderFns,omitempty"`
}

type manifest struct {
	BuildID   string          `json:"buildId"`
	CreatedAt time.Time       `json:"createdAt"`
	Files     []manifestEntry `json:"files"`
}

type manifestEntry struct {
	Path        string `json:"path"`
	Hash        string `json:"hash"`
	SourceBytes int    `json:"sourceBytes"`
	RenderBytes int    `json:"renderBytes"`
}

// fileResult records one file's outcome for the stats table.
type fileResult struct {
	path     string
	art      *artifact
	srcBytes int
	tips     int
	errs     int
	cached   bool
	elapsed  time.Duration
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "build",
		Usage:     "Compile template files to render programs",
		ArgsUsage: "files...",
		Flags: append(compileFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Directory to write JSON artifacts into",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "Print a per-file summary table",
			},
			&cli.StringFlag{
				Name:  "cache",
				Usage: "Path to a build cache database",
			},
			&cli.StringFlag{
				Name:  "manifest",
				Usage: "Write a build manifest to this file",
			},
		),
		Action: buildHandler,
	}
}

func buildHandler(ctx context.Context, cmd *cli.Command) error {
	setup(cmd)
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return errors.New("no input files")
	}

	var cache *buildCache
	if path := cmd.String("cache"); path != "" {
		var err error
		cache, err = openBuildCache(path)
		if err != nil {
			return fmt.Errorf("open build cache: %w", err)
		}
		defer cache.Close()
	}

	results := make([]*fileResult, 0, len(files))
	failed := 0
	for _, file := range files {
		res, err := buildFile(cmd, cache, file)
		if err != nil {
			return err
		}
		if res.errs > 0 {
			failed++
		}
		results = append(results, res)
	}

	if out := cmd.String("out"); out != "" {
		if err := writeArtifacts(out, results); err != nil {
			return err
		}
	} else if len(results) == 1 && results[0].art != nil && !cmd.Bool("stats") {
		fmt.Println(results[0].art.Render)
	}

	if cmd.Bool("stats") {
		printStats(results)
	}
	if path := cmd.String("manifest"); path != "" {
		if err := writeManifest(path, results); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", failed, len(files))
	}
	return nil
}

func buildFile(cmd *cli.Command, cache *buildCache, file string) (*fileResult, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	source := string(data)
	hash := contentHash(source)
	result := &fileResult{path: file, srcBytes: len(data)}

	start := time.Now()
	if cache != nil {
		art, err := cache.Get(hash)
		if err != nil {
			return nil, fmt.Errorf("read build cache: %w", err)
		}
		if art != nil {
			art.Path = file
			result.art = art
			result.cached = true
			result.elapsed = time.Since(start)
			logger.Debug().Str("file", file).Str("hash", hash).Msg("cache hit")
			return result, nil
		}
	}

	res, err := loom.Compile(source, compileOptions(cmd, file)...)
	result.elapsed = time.Since(start)
	result.tips = len(res.Tips)
	result.errs = len(res.Errors)
	printDiagnostics(res)
	if err != nil {
		logger.Error().Str("file", file).Int("errors", result.errs).Msg("compile failed")
		return result, nil
	}

	result.art = &artifact{
		Path:            file,
		Hash:            hash,
		Render:          res.Render,
		StaticRenderFns: res.StaticRenderFns,
	}
	if cache != nil {
		if err := cache.Put(hash, result.art); err != nil {
			return nil, fmt.Errorf("write build cache: %w", err)
		}
	}
	logger.Debug().Str("file", file).Dur("elapsed", result.elapsed).Msg("compiled")
	return result, nil
}

func writeArtifacts(dir string, results []*fileResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, res := range results {
		if res.art == nil {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(res.path), filepath.Ext(res.path)) + ".json"
		data, err := json.MarshalIndent(res.art, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func printStats(results []*fileResult) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"file", "source", "program", "static fns", "tips", "time", "cached"})
	for _, res := range results {
		renderSize := "-"
		staticFns := 0
		if res.art != nil {
			renderSize = humanize.Bytes(uint64(len(res.art.Render)))
			staticFns = len(res.art.StaticRenderFns)
		}
		tbl.AppendRow(table.Row{
			res.path,
			humanize.Bytes(uint64(res.srcBytes)),
			renderSize,
			staticFns,
			res.tips,
			res.elapsed.Round(time.Microsecond),
			res.cached,
		})
	}
	tbl.Render()
}

func writeManifest(path string, results []*fileResult) error {
	m := manifest{
		BuildID:   uuid.Must(uuid.NewV4()).String(),
		CreatedAt: time.Now().UTC(),
	}
	for _, res := range results {
		if res.art == nil {
			continue
		}
		m.Files = append(m.Files, manifestEntry{
			Path:        res.path,
			Hash:        res.art.Hash,
			SourceBytes: res.srcBytes,
			RenderBytes: len(res.art.Render),
		})
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func contentHash(source string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(source))
}
