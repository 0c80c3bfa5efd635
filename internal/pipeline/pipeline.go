// Package pipeline chains weld, simplification and vertex cache optimization
// over mesh primitives.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/meshopt-go/internal/config"
	"github.com/Faultbox/meshopt-go/pkg/meshopt"
)

// Item is one mesh to process.
type Item struct {
	Name   string
	Arrays meshopt.MeshArrays
	// KeepVertices forbids stages that change the vertex count.
	KeepVertices bool
}

// Stats describes what the stages did to one mesh.
type Stats struct {
	Name         string
	VerticesIn   int
	VerticesOut  int
	TrianglesIn  int
	TrianglesOut int
	Error        float64 // simplification error relative to mesh extent
	ACMRBefore   float64
	ACMRAfter    float64
	Elapsed      time.Duration
}

// Result is the processed mesh and its stats.
type Result struct {
	Arrays meshopt.MeshArrays
	Stats  Stats
}

// Pipeline runs the configured stages.
type Pipeline struct {
	cfg *config.Config
	log *zap.Logger
}

// New creates a pipeline. A nil logger discards output.
func New(cfg *config.Config, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, log: log}
}

// Process runs weld, simplify and vertex cache optimization on one mesh,
// skipping stages disabled in the config.
func (p *Pipeline) Process(item Item) (Result, error) {
	start := time.Now()
	m := item.Arrays
	st := Stats{
		Name:        item.Name,
		VerticesIn:  m.VertexCount(),
		TrianglesIn: m.TriangleCount(),
	}
	log := p.log.With(zap.String("mesh", item.Name))

	if p.cfg.Weld.Enabled && !item.KeepVertices {
		welded, unique, err := meshopt.WeldMeshArrays(m, p.cfg.Weld.Threshold)
		if err != nil {
			return Result{}, fmt.Errorf("weld %s: %w", item.Name, err)
		}
		log.Debug("welded", zap.Int("before", m.VertexCount()), zap.Int("after", unique))
		m = welded
	}

	if p.cfg.Simplify.Enabled {
		simplified, err := p.simplify(m)
		if err != nil {
			return Result{}, fmt.Errorf("simplify %s: %w", item.Name, err)
		}
		st.Error = simplified.Stats.Error
		log.Debug("simplified",
			zap.String("mode", p.cfg.Simplify.Mode),
			zap.Int("before", simplified.Stats.OriginalTriangles),
			zap.Int("after", simplified.Stats.SimplifiedTriangles),
			zap.Float64("error", simplified.Stats.Error))
		m = simplified.Arrays
	}

	if p.cfg.Cache.Enabled && len(m.Indices) > 0 {
		before, err := meshopt.AnalyzeVertexCache(m.Indices, m.VertexCount(), p.cfg.Cache.Size)
		if err != nil {
			return Result{}, fmt.Errorf("analyze %s: %w", item.Name, err)
		}
		indices, err := meshopt.OptimizeVertexCacheSize(m.Indices, m.VertexCount(), p.cfg.Cache.Size)
		if err != nil {
			return Result{}, fmt.Errorf("optimize %s: %w", item.Name, err)
		}
		after, err := meshopt.AnalyzeVertexCache(indices, m.VertexCount(), p.cfg.Cache.Size)
		if err != nil {
			return Result{}, fmt.Errorf("analyze %s: %w", item.Name, err)
		}
		st.ACMRBefore, st.ACMRAfter = before.ACMR, after.ACMR
		log.Debug("cache optimized", zap.Float64("acmr_before", before.ACMR), zap.Float64("acmr_after", after.ACMR))
		m.Indices = indices
	}

	st.VerticesOut = m.VertexCount()
	st.TrianglesOut = m.TriangleCount()
	st.Elapsed = time.Since(start)
	log.Info("processed",
		zap.Int("vertices", st.VerticesOut),
		zap.Int("triangles", st.TrianglesOut),
		zap.Duration("elapsed", st.Elapsed))
	return Result{Arrays: m, Stats: st}, nil
}

type simplified struct {
	Arrays meshopt.MeshArrays
	Stats  meshopt.SimplifyStats
}

func (p *Pipeline) simplify(m meshopt.MeshArrays) (simplified, error) {
	s := p.cfg.Simplify
	var (
		out   meshopt.MeshArrays
		stats meshopt.SimplifyStats
		err   error
	)
	switch s.Mode {
	case config.ModeSloppy:
		out, stats, err = meshopt.SimplifySloppyMeshArrays(m, s.Ratio, s.TargetError)
	case config.ModeCollapse:
		if s.LockBorder || s.Optimal {
			out, stats, err = p.reduce(m)
		} else {
			out, stats, err = meshopt.SimplifyMeshArrays(m, s.Ratio, s.TargetError, s.UVWeight)
		}
	default:
		err = fmt.Errorf("unknown simplify mode %q", s.Mode)
	}
	return simplified{Arrays: out, Stats: stats}, err
}

// reduce runs the collapse simplifier with options the mesh-array helper does
// not expose. Optimal placement rewrites positions; other streams keep the
// values of the surviving vertex.
func (p *Pipeline) reduce(m meshopt.MeshArrays) (meshopt.MeshArrays, meshopt.SimplifyStats, error) {
	s := p.cfg.Simplify
	stats := meshopt.SimplifyStats{OriginalTriangles: m.TriangleCount()}
	if m.VertexCount() == 0 || len(m.Indices) == 0 {
		m.Indices = []uint32{}
		return m, stats, nil
	}

	var attrs []meshopt.Attribute[float32]
	if len(m.UVs) == len(m.Positions) {
		uv := make([]float32, 0, 2*len(m.UVs))
		for _, t := range m.UVs {
			uv = append(uv, t[0], t[1])
		}
		attrs = append(attrs, meshopt.Attribute[float32]{Name: "uv", Data: uv, Components: 2, Weight: s.UVWeight})
	}

	opts := &meshopt.SimplifyOptions{LockBorder: s.LockBorder}
	if s.Optimal {
		opts.Placement = meshopt.PlaceOptimal
	}
	ratio := s.Ratio
	if ratio > 1 {
		ratio = 1
	}
	target := meshopt.TargetIndexCount(len(m.Indices), ratio)
	res, err := meshopt.Reduce(meshopt.PositionBuffer(m.Positions), m.Indices, attrs, target, s.TargetError, opts)
	if err != nil {
		return meshopt.MeshArrays{}, stats, err
	}

	out := m
	out.Indices = res.Indices
	if s.Optimal && res.Collapses > 0 {
		out.Positions = make([][3]float32, res.Vertices.Len())
		for i := range out.Positions {
			copy(out.Positions[i][:], res.Vertices.Record(i))
		}
		if len(attrs) > 0 {
			out.UVs = make([][2]float32, len(m.UVs))
			uv := res.Attributes[0].Data
			for i := range out.UVs {
				out.UVs[i] = [2]float32{uv[2*i], uv[2*i+1]}
			}
		}
	}
	stats.SimplifiedTriangles = len(res.Indices) / 3
	stats.Error = res.Error
	return out, stats, nil
}

// ProcessAll runs Process over items concurrently, bounded by the configured
// worker count. Results keep the order of items. The first error cancels the
// remaining work.
func (p *Pipeline) ProcessAll(ctx context.Context, items []Item) ([]Result, error) {
	workers := p.cfg.Pipeline.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := p.Process(item)
			if err != nil {
				p.log.Error("processing failed", zap.String("mesh", item.Name), zap.Error(err))
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Totals sums stats over results.
func Totals(results []Result) Stats {
	var t Stats
	t.Name = "total"
	for _, r := range results {
		t.VerticesIn += r.Stats.VerticesIn
		t.VerticesOut += r.Stats.VerticesOut
		t.TrianglesIn += r.Stats.TrianglesIn
		t.TrianglesOut += r.Stats.TrianglesOut
		t.Elapsed += r.Stats.Elapsed
		if r.Stats.Error > t.Error {
			t.Error = r.Stats.Error
		}
	}
	return t
}
