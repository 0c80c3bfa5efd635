package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/Faultbox/meshopt-go/internal/config"
	"github.com/Faultbox/meshopt-go/internal/logger"
	"github.com/Faultbox/meshopt-go/internal/meshio"
	"github.com/Faultbox/meshopt-go/internal/pipeline"
	"github.com/Faultbox/meshopt-go/pkg/meshopt"
)

// stageFlags registers the simplification flags on fs with cfg as defaults.
func stageFlags(fs *flag.FlagSet, cfg *config.Config) func() {
	ratio := fs.Float64("ratio", cfg.Simplify.Ratio, "Fraction of triangles to keep")
	targetError := fs.Float64("error", cfg.Simplify.TargetError, "Error bound relative to mesh extent")
	uvWeight := fs.Float64("uv-weight", cfg.Simplify.UVWeight, "Weight of UV seams in the error metric")
	lockBorder := fs.Bool("lock-border", cfg.Simplify.LockBorder, "Never move border vertices")
	optimal := fs.Bool("optimal", cfg.Simplify.Optimal, "Move collapsed vertices to the optimal position")
	return func() {
		cfg.Simplify.Ratio = *ratio
		cfg.Simplify.TargetError = *targetError
		cfg.Simplify.UVWeight = *uvWeight
		cfg.Simplify.LockBorder = *lockBorder
		cfg.Simplify.Optimal = *optimal
	}
}

// parseInOut parses fs and returns the input and output paths.
func parseInOut(fs *flag.FlagSet, args []string, apply ...func()) (string, string, error) {
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() < 2 {
		return "", "", fmt.Errorf("usage: meshtool %s [options] <in> <out>", fs.Name())
	}
	for _, f := range apply {
		f()
	}
	return fs.Arg(0), fs.Arg(1), nil
}

func cmdInfo(cfg *config.Config, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: meshtool info <in>")
	}

	model, err := meshio.Load(args[0])
	if err != nil {
		return err
	}

	vertices, triangles := model.Stats()
	fmt.Printf("File:       %s\n", args[0])
	fmt.Printf("Primitives: %d (%d skipped)\n", len(model.Primitives), model.Skipped)
	fmt.Printf("Vertices:   %d\n", vertices)
	fmt.Printf("Triangles:  %d\n", triangles)
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIMITIVE\tVERTICES\tTRIANGLES\tUNIQUE\tACMR\tATVR")
	for _, p := range model.Primitives {
		a := p.Arrays
		stats, err := meshopt.AnalyzeVertexCache(a.Indices, a.VertexCount(), cfg.Cache.Size)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		_, unique, err := meshopt.WeldMeshArrays(a, 0)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.3f\t%.3f\n", p.Name, a.VertexCount(), a.TriangleCount(), unique, stats.ACMR, stats.ATVR)
	}
	return w.Flush()
}

func cmdSimplify(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("simplify", flag.ContinueOnError)
	apply := stageFlags(fs, cfg)
	in, out, err := parseInOut(fs, args, apply)
	if err != nil {
		return err
	}
	cfg.Simplify.Enabled, cfg.Simplify.Mode = true, config.ModeCollapse
	cfg.Weld.Enabled, cfg.Cache.Enabled = false, false
	return processFile(cfg, in, out)
}

func cmdSloppy(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sloppy", flag.ContinueOnError)
	ratio := fs.Float64("ratio", cfg.Simplify.Ratio, "Fraction of triangles to keep")
	targetError := fs.Float64("error", cfg.Simplify.TargetError, "Error bound relative to mesh extent")
	in, out, err := parseInOut(fs, args, func() {
		cfg.Simplify.Ratio = *ratio
		cfg.Simplify.TargetError = *targetError
	})
	if err != nil {
		return err
	}
	cfg.Simplify.Enabled, cfg.Simplify.Mode = true, config.ModeSloppy
	cfg.Weld.Enabled, cfg.Cache.Enabled = false, false
	return processFile(cfg, in, out)
}

func cmdOptimize(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	size := fs.Int("cache-size", cfg.Cache.Size, "Simulated vertex cache entries")
	in, out, err := parseInOut(fs, args, func() { cfg.Cache.Size = *size })
	if err != nil {
		return err
	}
	cfg.Cache.Enabled = true
	cfg.Weld.Enabled, cfg.Simplify.Enabled = false, false
	return processFile(cfg, in, out)
}

func cmdWeld(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("weld", flag.ContinueOnError)
	threshold := fs.Float64("threshold", cfg.Weld.Threshold, "Merge distance in model units")
	in, out, err := parseInOut(fs, args, func() { cfg.Weld.Threshold = *threshold })
	if err != nil {
		return err
	}
	cfg.Weld.Enabled = true
	cfg.Simplify.Enabled, cfg.Cache.Enabled = false, false
	return processFile(cfg, in, out)
}

func cmdProcess(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	apply := stageFlags(fs, cfg)
	mode := fs.String("mode", cfg.Simplify.Mode, "Simplification mode: collapse or sloppy")
	noWeld := fs.Bool("no-weld", !cfg.Weld.Enabled, "Skip welding")
	noSimplify := fs.Bool("no-simplify", !cfg.Simplify.Enabled, "Skip simplification")
	noCache := fs.Bool("no-cache", !cfg.Cache.Enabled, "Skip vertex cache optimization")
	in, out, err := parseInOut(fs, args, apply, func() {
		cfg.Simplify.Mode = *mode
		cfg.Weld.Enabled = !*noWeld
		cfg.Simplify.Enabled = !*noSimplify
		cfg.Cache.Enabled = !*noCache
	})
	if err != nil {
		return err
	}
	return processFile(cfg, in, out)
}

func cmdConfig(cfg *config.Config, args []string) error {
	if len(args) > 0 {
		if err := cfg.SaveTo(args[0]); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", args[0])
		return nil
	}
	path, err := cfg.Save()
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func cmdVersion() error {
	fmt.Println(meshopt.Version)
	return nil
}

// processFile runs the configured pipeline over every primitive of in and
// writes the result to out.
func processFile(cfg *config.Config, in, out string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	model, err := meshio.Load(in)
	if err != nil {
		return err
	}

	items := make([]pipeline.Item, len(model.Primitives))
	for i, p := range model.Primitives {
		if p.Extra && cfg.Weld.Enabled {
			logger.Sugar.Warnf("%s: extra vertex attributes, skipping weld", p.Name)
		}
		items[i] = pipeline.Item{Name: p.Name, Arrays: p.Arrays, KeepVertices: p.Extra}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := pipeline.New(cfg, logger.Named("pipeline")).ProcessAll(ctx, items)
	if err != nil {
		return err
	}
	for i, p := range model.Primitives {
		p.Arrays = results[i].Arrays
		if err := model.Update(p); err != nil {
			return err
		}
	}
	if err := model.Save(out); err != nil {
		return fmt.Errorf("saving %s: %w", out, err)
	}

	printStats(results)
	return nil
}

func printStats(results []pipeline.Result) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRIMITIVE\tVERTICES\tTRIANGLES\tERROR\tACMR\tTIME")
	row := func(s pipeline.Stats) {
		fmt.Fprintf(w, "%s\t%d -> %d\t%d -> %d\t%.4g\t%.3f -> %.3f\t%v\n",
			s.Name, s.VerticesIn, s.VerticesOut, s.TrianglesIn, s.TrianglesOut, s.Error, s.ACMRBefore, s.ACMRAfter, s.Elapsed.Round(time.Microsecond))
	}
	for _, r := range results {
		row(r.Stats)
	}
	if len(results) > 1 {
		row(pipeline.Totals(results))
	}
	w.Flush()
}
