// Command autoremesh converts a triangle mesh in OBJ format into a quad mesh.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/autoremesh"
	"github.com/gogpu/autoremesh/internal/objfile"
	"github.com/gogpu/autoremesh/internal/preview"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("autoremesh: %v", err)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("autoremesh", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		input         = fs.String("in", "", "input OBJ file (triangles or polygons)")
		output        = fs.String("out", "quads.obj", "output OBJ file")
		configPath    = fs.String("config", "", "YAML config file")
		vertices      = fs.Int("target-vertices", 0, "cap on remeshed vertices per island (0 disables the search)")
		singularities = fs.Int("max-singularities", 0, "singularity budget per island")
		gradient      = fs.Float64("gradient-size", 0, "iso-lines per working half-extent")
		workers       = fs.Int("workers", 0, "worker goroutines (0 uses GOMAXPROCS)")
		timeout       = fs.Duration("timeout", 0, "time limit per island (0 disables)")
		debugDir      = fs.String("debug-dir", "", "directory for per-island debug dumps")
		previewPath   = fs.String("preview", "", "write a PNG preview of the result")
		lang          = fs.String("lang", "en", "language of the summary line")
		verbose       = fs.Bool("v", false, "log debug output to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *input == "" {
		fs.Usage()
		return errors.New("missing -in")
	}

	var cfg config
	if *configPath != "" {
		c, err := loadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = c
	}
	if *vertices > 0 {
		cfg.TargetVertexCount = *vertices
	}
	if *singularities > 0 {
		cfg.MaxSingularityCount = *singularities
	}
	if *gradient > 0 {
		cfg.GradientSize = *gradient
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *timeout > 0 {
		cfg.IslandTimeout = *timeout
	}
	if *debugDir != "" {
		cfg.DebugDir = *debugDir
	}

	runID := uuid.NewString()
	if *verbose {
		h := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		autoremesh.SetLogger(slog.New(h).With("run", runID))
		defer autoremesh.SetLogger(nil)
	}

	mesh, err := objfile.ReadFile(*input)
	if err != nil {
		return err
	}
	start := time.Now()
	res, err := autoremesh.New(mesh.Vertices, mesh.Triangles(), cfg.options()...).Remesh(ctx)
	if err != nil {
		return err
	}
	if err := objfile.WriteQuadFile(*output, res.Vertices, res.Quads); err != nil {
		return err
	}
	if *previewPath != "" {
		img := preview.Quads(res.Vertices, res.Quads, preview.Options{Caption: *output})
		if err := preview.WritePNG(*previewPath, img); err != nil {
			return err
		}
	}

	summary(stdout, *lang, res, time.Since(start))
	for _, is := range res.Failed() {
		fmt.Fprintf(stderr, "%v\n", is.Err)
	}
	return nil
}

// summary prints one line with locale-aware number formatting.
func summary(w io.Writer, lang string, res *autoremesh.Result, elapsed time.Duration) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	p.Fprintf(w, "%d islands (%d failed), %d vertices, %d quads in %v\n",
		len(res.Islands), len(res.Failed()), len(res.Vertices), len(res.Quads), elapsed.Round(time.Millisecond))
}
