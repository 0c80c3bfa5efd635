package meshopt

import (
	"fmt"
	"math"
)

// MeshArrays is a mesh in separate per-vertex streams, the layout engines and
// file formats usually hand out. Optional streams are either empty or hold one
// entry per position.
type MeshArrays struct {
	Positions [][3]float32
	Normals   [][3]float32
	UVs       [][2]float32
	Colors    [][4]float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m MeshArrays) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m MeshArrays) TriangleCount() int { return len(m.Indices) / 3 }

// validateStreams checks that every optional stream is empty or complete.
func (m MeshArrays) validateStreams() error {
	n := len(m.Positions)
	for _, s := range []struct {
		name string
		len  int
	}{
		{"normals", len(m.Normals)},
		{"uvs", len(m.UVs)},
		{"colors", len(m.Colors)},
	} {
		if s.len != 0 && s.len != n {
			return fmt.Errorf("%w: %s has %d entries for %d vertices", ErrInvalidAttribute, s.name, s.len, n)
		}
	}
	return nil
}

// SimplifyStats reports the outcome of a mesh-array simplification.
type SimplifyStats struct {
	OriginalTriangles   int
	SimplifiedTriangles int
	Error               float64
}

// TargetIndexCount converts a keep ratio into an index count: whole triangles,
// at least one.
func TargetIndexCount(indexCount int, ratio float64) int {
	target := int(float64(indexCount) * ratio)
	target -= target % 3
	if target < 3 {
		return 3
	}
	return target
}

func checkRatio(ratio float64) (float64, error) {
	if math.IsNaN(ratio) || ratio < 0 {
		return 0, fmt.Errorf("%w: ratio %v", ErrInvalidTarget, ratio)
	}
	return math.Min(ratio, 1), nil
}

// SimplifyMeshArrays keeps about ratio of the triangles using edge collapses.
// UVs, when present for every vertex, take part in the error metric with
// uvWeight; otherwise only positions count. Vertex streams are shared with m;
// only Indices is new.
func SimplifyMeshArrays(m MeshArrays, ratio, targetError, uvWeight float64) (MeshArrays, SimplifyStats, error) {
	ratio, err := checkRatio(ratio)
	if err != nil {
		return MeshArrays{}, SimplifyStats{}, err
	}
	stats := SimplifyStats{OriginalTriangles: m.TriangleCount()}
	out := m
	if len(m.Positions) == 0 || len(m.Indices) == 0 {
		out.Indices = []uint32{}
		return out, stats, nil
	}

	vertices := PositionBuffer(m.Positions)
	target := TargetIndexCount(len(m.Indices), ratio)

	var attrs []Attribute[float32]
	if len(m.UVs) == len(m.Positions) {
		uv := make([]float32, 0, 2*len(m.UVs))
		for _, t := range m.UVs {
			uv = append(uv, t[0], t[1])
		}
		attrs = []Attribute[float32]{{Name: "uv", Data: uv, Components: 2, Weight: uvWeight}}
	}

	indices, e, err := SimplifyWithAttributes(vertices, m.Indices, attrs, target, targetError, nil)
	if err != nil {
		return MeshArrays{}, SimplifyStats{}, err
	}
	out.Indices = indices
	stats.SimplifiedTriangles = len(indices) / 3
	stats.Error = e
	return out, stats, nil
}

// SimplifySloppyMeshArrays is SimplifyMeshArrays with grid clustering.
func SimplifySloppyMeshArrays(m MeshArrays, ratio, targetError float64) (MeshArrays, SimplifyStats, error) {
	ratio, err := checkRatio(ratio)
	if err != nil {
		return MeshArrays{}, SimplifyStats{}, err
	}
	stats := SimplifyStats{OriginalTriangles: m.TriangleCount()}
	out := m
	if len(m.Positions) == 0 || len(m.Indices) == 0 {
		out.Indices = []uint32{}
		return out, stats, nil
	}

	target := TargetIndexCount(len(m.Indices), ratio)
	indices, e, err := SimplifySloppy(PositionBuffer(m.Positions), m.Indices, target, targetError)
	if err != nil {
		return MeshArrays{}, SimplifyStats{}, err
	}
	out.Indices = indices
	stats.SimplifiedTriangles = len(indices) / 3
	stats.Error = e
	return out, stats, nil
}

// WeldMeshArrays merges vertices whose positions lie within threshold and
// whose other streams are identical. It returns the welded mesh and the number
// of unique vertices. A nil Indices stays nil.
func WeldMeshArrays(m MeshArrays, threshold float64) (MeshArrays, int, error) {
	if err := m.validateStreams(); err != nil {
		return MeshArrays{}, 0, err
	}

	hasN, hasUV, hasC := len(m.Normals) > 0, len(m.UVs) > 0, len(m.Colors) > 0
	stride := 3
	if hasN {
		stride += 3
	}
	if hasUV {
		stride += 2
	}
	if hasC {
		stride += 4
	}

	data := make([]float32, 0, stride*len(m.Positions))
	for i, p := range m.Positions {
		data = append(data, p[:]...)
		if hasN {
			data = append(data, m.Normals[i][:]...)
		}
		if hasUV {
			data = append(data, m.UVs[i][:]...)
		}
		if hasC {
			data = append(data, m.Colors[i][:]...)
		}
	}

	res, err := Weld(NewVertexBuffer(data, stride), m.Indices, threshold)
	if err != nil {
		return MeshArrays{}, 0, err
	}

	out := MeshArrays{Indices: res.Indices, Positions: make([][3]float32, res.UniqueCount)}
	if hasN {
		out.Normals = make([][3]float32, res.UniqueCount)
	}
	if hasUV {
		out.UVs = make([][2]float32, res.UniqueCount)
	}
	if hasC {
		out.Colors = make([][4]float32, res.UniqueCount)
	}
	for i := 0; i < res.UniqueCount; i++ {
		rec := res.Vertices.Record(i)
		copy(out.Positions[i][:], rec[0:3])
		off := 3
		if hasN {
			copy(out.Normals[i][:], rec[off:off+3])
			off += 3
		}
		if hasUV {
			copy(out.UVs[i][:], rec[off:off+2])
			off += 2
		}
		if hasC {
			copy(out.Colors[i][:], rec[off:off+4])
		}
	}
	return out, res.UniqueCount, nil
}
