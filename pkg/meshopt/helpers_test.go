package meshopt

import (
	"math"
	"math/rand"
	"sort"
)

// cubeMesh returns a unit cube: 8 vertices, 12 outward-facing triangles.
func cubeMesh() (VertexBuffer[float32], []uint32) {
	positions := [][3]float32{
		{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
		{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
	}
	indices := []uint32{
		0, 2, 1, 0, 3, 2, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4, // front
		2, 3, 7, 2, 7, 6, // back
		1, 2, 6, 1, 6, 5, // right
		3, 0, 4, 3, 4, 7, // left
	}
	return PositionBuffer(positions), indices
}

// gridMesh returns an n x n quad grid over [0,1]^2 with a gentle height field,
// two triangles per quad.
func gridMesh(n int) (VertexBuffer[float64], []uint32) {
	positions := make([][3]float64, 0, (n+1)*(n+1))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			fx, fy := float64(x)/float64(n), float64(y)/float64(n)
			positions = append(positions, [3]float64{fx, fy, 0.1 * math.Sin(3*fx) * math.Cos(2*fy)})
		}
	}
	indices := make([]uint32, 0, n*n*6)
	row := uint32(n + 1)
	for y := uint32(0); y < uint32(n); y++ {
		for x := uint32(0); x < uint32(n); x++ {
			a := y*row + x
			b, c, d := a+1, a+row, a+row+1
			indices = append(indices, a, b, d, a, d, c)
		}
	}
	return PositionBuffer(positions), indices
}

// gridUVs returns planar UVs for gridMesh(n).
func gridUVs(n int) []float64 {
	uv := make([]float64, 0, 2*(n+1)*(n+1))
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			uv = append(uv, float64(x)/float64(n), float64(y)/float64(n))
		}
	}
	return uv
}

// shuffleTriangles permutes whole triangles with a fixed seed.
func shuffleTriangles(indices []uint32, seed int64) []uint32 {
	rng := rand.New(rand.NewSource(seed))
	tris := len(indices) / 3
	order := rng.Perm(tris)
	out := make([]uint32, 0, len(indices))
	for _, t := range order {
		out = append(out, indices[3*t:3*t+3]...)
	}
	return out
}

// triangleSet returns the triangles as rotation-normalized keys, sorted.
func triangleSet(indices []uint32) [][3]uint32 {
	out := make([][3]uint32, 0, len(indices)/3)
	for i := 0; i+2 < len(indices); i += 3 {
		out = append(out, rotatedTriangle(indices[i], indices[i+1], indices[i+2]))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		if a[1] != b[1] {
			return a[1] < b[1]
		}
		return a[2] < b[2]
	})
	return out
}

func equalIndices(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
