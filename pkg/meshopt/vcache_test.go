package meshopt

import (
	"errors"
	"testing"
)

// stripMesh returns a triangle strip of n triangles as a list, already in
// cache-friendly order.
func stripMesh(n int) ([]uint32, int) {
	indices := make([]uint32, 0, 3*n)
	for i := 0; i < n; i++ {
		a, b, c := uint32(i), uint32(i+1), uint32(i+2)
		if i%2 == 1 {
			a, b = b, a
		}
		indices = append(indices, a, b, c)
	}
	return indices, n + 2
}

func TestOptimizeVertexCache_Permutation(t *testing.T) {
	_, indices := gridMesh(16)
	shuffled := shuffleTriangles(indices, 7)

	out, err := OptimizeVertexCache(shuffled, 17*17)
	if err != nil {
		t.Fatalf("OptimizeVertexCache() error = %v", err)
	}
	if len(out) != len(shuffled) {
		t.Fatalf("OptimizeVertexCache() returned %d indices, want %d", len(out), len(shuffled))
	}
	got, want := triangleSet(out), triangleSet(shuffled)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("triangle set differs at %d: %v vs %v", i, got[i], want[i])
		}
	}
}

func TestOptimizeVertexCache_ImprovesShuffled(t *testing.T) {
	_, indices := gridMesh(24)
	shuffled := shuffleTriangles(indices, 42)
	vertexCount := 25 * 25

	before, err := AnalyzeVertexCache(shuffled, vertexCount, DefaultCacheSize)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache() error = %v", err)
	}
	out, err := OptimizeVertexCache(shuffled, vertexCount)
	if err != nil {
		t.Fatalf("OptimizeVertexCache() error = %v", err)
	}
	after, err := AnalyzeVertexCache(out, vertexCount, DefaultCacheSize)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache() error = %v", err)
	}
	if after.ACMR >= before.ACMR {
		t.Errorf("ACMR = %v after, %v before; want an improvement", after.ACMR, before.ACMR)
	}
}

func TestOptimizeVertexCache_Strip(t *testing.T) {
	indices, vertexCount := stripMesh(64)

	before, err := AnalyzeVertexCache(indices, vertexCount, DefaultCacheSize)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache() error = %v", err)
	}
	out, err := OptimizeVertexCache(indices, vertexCount)
	if err != nil {
		t.Fatalf("OptimizeVertexCache() error = %v", err)
	}
	after, err := AnalyzeVertexCache(out, vertexCount, DefaultCacheSize)
	if err != nil {
		t.Fatalf("AnalyzeVertexCache() error = %v", err)
	}
	if after.VerticesTransformed > before.VerticesTransformed {
		t.Errorf("VerticesTransformed = %d, want <= %d", after.VerticesTransformed, before.VerticesTransformed)
	}
	if after.VerticesTransformed != vertexCount {
		t.Errorf("VerticesTransformed = %d, want %d (each vertex once)", after.VerticesTransformed, vertexCount)
	}
}

func TestOptimizeVertexCache_Deterministic(t *testing.T) {
	_, indices := gridMesh(12)
	shuffled := shuffleTriangles(indices, 3)

	a, err := OptimizeVertexCacheSize(shuffled, 13*13, 8)
	if err != nil {
		t.Fatalf("OptimizeVertexCacheSize() error = %v", err)
	}
	b, err := OptimizeVertexCacheSize(shuffled, 13*13, 8)
	if err != nil {
		t.Fatalf("OptimizeVertexCacheSize() error = %v", err)
	}
	if !equalIndices(a, b) {
		t.Error("OptimizeVertexCacheSize() differs between runs")
	}
}

func TestOptimizeVertexCache_DegenerateTriangles(t *testing.T) {
	indices := []uint32{0, 1, 2, 2, 2, 3, 1, 3, 2}
	out, err := OptimizeVertexCache(indices, 4)
	if err != nil {
		t.Fatalf("OptimizeVertexCache() error = %v", err)
	}
	got, want := triangleSet(out), triangleSet(indices)
	if len(got) != len(want) {
		t.Fatalf("OptimizeVertexCache() returned %d triangles, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("triangle %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestOptimizeVertexCache_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		indices   []uint32
		vertices  int
		cacheSize int
		want      error
	}{
		{"index count", []uint32{0, 1}, 3, DefaultCacheSize, ErrIndexCount},
		{"index range", []uint32{0, 1, 3}, 3, DefaultCacheSize, ErrIndexRange},
		{"cache too small", []uint32{0, 1, 2}, 3, 2, ErrCacheSize},
		{"cache too large", []uint32{0, 1, 2}, 3, MaxCacheSize + 1, ErrCacheSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OptimizeVertexCacheSize(tt.indices, tt.vertices, tt.cacheSize); !errors.Is(err, tt.want) {
				t.Errorf("OptimizeVertexCacheSize() error = %v, want %v", err, tt.want)
			}
			if _, err := AnalyzeVertexCache(tt.indices, tt.vertices, tt.cacheSize); !errors.Is(err, tt.want) {
				t.Errorf("AnalyzeVertexCache() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOptimizeVertexCache_Empty(t *testing.T) {
	out, err := OptimizeVertexCache(nil, 0)
	if err != nil || out == nil || len(out) != 0 {
		t.Errorf("OptimizeVertexCache(nil) = %v, %v; want empty slice", out, err)
	}
}

func TestAnalyzeVertexCache(t *testing.T) {
	tests := []struct {
		name      string
		indices   []uint32
		vertices  int
		cacheSize int
		want      VertexCacheStats
	}{
		{
			name:      "single triangle",
			indices:   []uint32{0, 1, 2},
			vertices:  3,
			cacheSize: 3,
			want:      VertexCacheStats{VerticesTransformed: 3, ACMR: 3, ATVR: 1},
		},
		{
			name:      "shared edge",
			indices:   []uint32{0, 1, 2, 2, 1, 3},
			vertices:  4,
			cacheSize: 3,
			want:      VertexCacheStats{VerticesTransformed: 4, ACMR: 2, ATVR: 1},
		},
		{
			name: "evicted",
			// With 3 entries loading 3 evicts 0, and reloading 0 starts a cascade.
			indices:   []uint32{0, 1, 2, 3, 1, 2, 0, 1, 2},
			vertices:  4,
			cacheSize: 3,
			want:      VertexCacheStats{VerticesTransformed: 7, ACMR: 7.0 / 3, ATVR: 1.75},
		},
		{
			name:      "empty",
			vertices:  0,
			cacheSize: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnalyzeVertexCache(tt.indices, tt.vertices, tt.cacheSize)
			if err != nil {
				t.Fatalf("AnalyzeVertexCache() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AnalyzeVertexCache() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
