package meshopt

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestGenerateVertexRemap_DuplicatePair(t *testing.T) {
	positions := [][3]float32{{0, 0, 0}, {0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	indices := []uint32{0, 1, 2, 1, 0, 3}

	remap, unique, err := GenerateVertexRemap(PositionBuffer(positions), indices, 0)
	if err != nil {
		t.Fatalf("GenerateVertexRemap() error = %v", err)
	}
	if unique != 3 {
		t.Errorf("unique = %d, want 3", unique)
	}
	want := RemapTable{0, 0, 1, 2}
	if !equalIndices(remap, want) {
		t.Errorf("remap = %v, want %v", remap, want)
	}
	if remap[1] != remap[0] {
		t.Errorf("remap[1] = %d, want remap[0] = %d", remap[1], remap[0])
	}
}

func TestGenerateVertexRemap(t *testing.T) {
	tests := []struct {
		name       string
		data       []float64
		stride     int
		tolerance  float64
		want       RemapTable
		wantUnique int
	}{
		{
			name:       "all unique",
			data:       []float64{0, 0, 0, 1, 0, 0, 2, 0, 0},
			want:       RemapTable{0, 1, 2},
			wantUnique: 3,
		},
		{
			name:       "signed zero",
			data:       []float64{0, 0, 0, math.Copysign(0, -1), 0, 0},
			want:       RemapTable{0, 0},
			wantUnique: 1,
		},
		{
			name:       "attribute differs",
			data:       []float64{0, 0, 0, 0.25, 0, 0, 0, 0.5, 0, 0, 0, 0.25},
			stride:     4,
			want:       RemapTable{0, 1, 0},
			wantUnique: 2,
		},
		{
			name:       "within tolerance",
			data:       []float64{0, 0, 0, 0.001, 0, 0, 1, 0, 0, 1, 0.0005, 0},
			tolerance:  0.01,
			want:       RemapTable{0, 0, 1, 1},
			wantUnique: 2,
		},
		{
			name:       "outside tolerance",
			data:       []float64{0, 0, 0, 0.02, 0, 0},
			tolerance:  0.01,
			want:       RemapTable{0, 1},
			wantUnique: 2,
		},
		{
			name: "joins earliest canonical",
			// 1 is near 0, 2 is near 1 but not 0: 2 stays its own.
			data:       []float64{0, 0, 0, 0.008, 0, 0, 0.016, 0, 0},
			tolerance:  0.01,
			want:       RemapTable{0, 0, 1},
			wantUnique: 2,
		},
		{
			name:       "neighbor cell",
			data:       []float64{0.0099, 0, 0, 0.0101, 0, 0},
			tolerance:  0.01,
			want:       RemapTable{0, 0},
			wantUnique: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remap, unique, err := GenerateVertexRemap(NewVertexBuffer(tt.data, tt.stride), nil, tt.tolerance)
			if err != nil {
				t.Fatalf("GenerateVertexRemap() error = %v", err)
			}
			if unique != tt.wantUnique {
				t.Errorf("unique = %d, want %d", unique, tt.wantUnique)
			}
			if !equalIndices(remap, tt.want) {
				t.Errorf("remap = %v, want %v", remap, tt.want)
			}
		})
	}
}

func TestGenerateVertexRemap_Idempotent(t *testing.T) {
	vertices, indices := gridMesh(8)
	// Duplicate every vertex once so there is something to weld.
	doubled := NewVertexBuffer(append(append([]float64(nil), vertices.Data...), vertices.Data...), 3)

	for _, tol := range []float64{0, 1e-6} {
		first, err := Weld(doubled, nil, tol)
		if err != nil {
			t.Fatalf("Weld(%v) error = %v", tol, err)
		}
		if first.UniqueCount != vertices.Len() {
			t.Errorf("Weld(%v) unique = %d, want %d", tol, first.UniqueCount, vertices.Len())
		}

		remap, unique, err := GenerateVertexRemap(first.Vertices, indices, tol)
		if err != nil {
			t.Fatalf("GenerateVertexRemap(%v) error = %v", tol, err)
		}
		if unique != first.UniqueCount {
			t.Errorf("second pass unique = %d, want %d", unique, first.UniqueCount)
		}
		for i, r := range remap {
			if r != uint32(i) {
				t.Fatalf("second pass remap[%d] = %d, want %d", i, r, i)
			}
		}
	}
}

func TestGenerateVertexRemap_Deterministic(t *testing.T) {
	vertices, _ := gridMesh(20)
	a, _, err := GenerateVertexRemap(vertices, nil, 0.03)
	if err != nil {
		t.Fatalf("GenerateVertexRemap() error = %v", err)
	}
	b, _, err := GenerateVertexRemap(vertices, nil, 0.03)
	if err != nil {
		t.Fatalf("GenerateVertexRemap() error = %v", err)
	}
	if !equalIndices(a, b) {
		t.Error("GenerateVertexRemap() differs between runs")
	}
	// Canonical ids are dense and first-seen.
	next := uint32(0)
	for i, r := range a {
		if r > next {
			t.Fatalf("remap[%d] = %d skips id %d", i, r, next)
		}
		if r == next {
			next++
		}
	}
}

func TestGenerateVertexRemap_Invalid(t *testing.T) {
	vb := PositionBuffer([][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	tests := []struct {
		name      string
		indices   []uint32
		tolerance float64
		want      error
	}{
		{"negative tolerance", nil, -1, ErrInvalidTolerance},
		{"nan tolerance", nil, math.NaN(), ErrInvalidTolerance},
		{"inf tolerance", nil, math.Inf(1), ErrInvalidTolerance},
		{"index range", []uint32{0, 1, 3}, 0, ErrIndexRange},
		{"index count", []uint32{0, 1}, 0, ErrIndexCount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := GenerateVertexRemap(vb, tt.indices, tt.tolerance)
			if !errors.Is(err, tt.want) {
				t.Errorf("GenerateVertexRemap() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateVertexRemap_Empty(t *testing.T) {
	remap, unique, err := GenerateVertexRemap(VertexBuffer[float32]{}, nil, 0)
	if err != nil || unique != 0 || len(remap) != 0 {
		t.Errorf("GenerateVertexRemap(empty) = %v, %d, %v", remap, unique, err)
	}
}

func TestRemapBuffers(t *testing.T) {
	vb := NewVertexBuffer([]float32{
		0, 0, 0, 1,
		0, 0, 0, 1,
		1, 0, 0, 2,
	}, 4)
	remap := RemapTable{0, 0, 1}

	out, err := RemapVertexBuffer(vb, remap)
	if err != nil {
		t.Fatalf("RemapVertexBuffer() error = %v", err)
	}
	want := []float32{0, 0, 0, 1, 1, 0, 0, 2}
	if len(out.Data) != len(want) || out.Stride != 4 {
		t.Fatalf("RemapVertexBuffer() = %v (stride %d), want %v", out.Data, out.Stride, want)
	}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("RemapVertexBuffer() Data[%d] = %v, want %v", i, out.Data[i], want[i])
		}
	}

	idx, err := RemapIndexBuffer([]uint32{0, 1, 2, 2, 1, 0}, remap)
	if err != nil {
		t.Fatalf("RemapIndexBuffer() error = %v", err)
	}
	if !equalIndices(idx, []uint32{0, 0, 1, 1, 0, 0}) {
		t.Errorf("RemapIndexBuffer() = %v", idx)
	}

	if _, err := RemapVertexBuffer(vb, RemapTable{0}); !errors.Is(err, ErrRemapLength) {
		t.Errorf("RemapVertexBuffer(short) error = %v, want %v", err, ErrRemapLength)
	}
	if _, err := RemapIndexBuffer([]uint32{5}, remap); !errors.Is(err, ErrIndexRange) {
		t.Errorf("RemapIndexBuffer(out of range) error = %v, want %v", err, ErrIndexRange)
	}
}

func TestWeld(t *testing.T) {
	positions := [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	indices := []uint32{0, 1, 2, 3, 5, 4}

	res, err := Weld(PositionBuffer(positions), indices, 0)
	if err != nil {
		t.Fatalf("Weld() error = %v", err)
	}
	if res.UniqueCount != 4 {
		t.Errorf("UniqueCount = %d, want 4", res.UniqueCount)
	}
	if !equalIndices(res.Indices, []uint32{0, 1, 2, 1, 3, 2}) {
		t.Errorf("Indices = %v", res.Indices)
	}
	if res.Vertices.Len() != 4 {
		t.Errorf("Vertices.Len() = %d, want 4", res.Vertices.Len())
	}

	noIdx, err := Weld(PositionBuffer(positions), nil, 0)
	if err != nil {
		t.Fatalf("Weld(nil indices) error = %v", err)
	}
	if noIdx.Indices != nil {
		t.Errorf("Weld(nil indices) Indices = %v, want nil", noIdx.Indices)
	}
}

func TestPositionRemap(t *testing.T) {
	got := positionRemap([]r3.Vec{{X: 1}, {Y: 1}, {X: 1}, {Z: 1}, {Y: 1}})
	want := []uint32{0, 1, 0, 2, 1}
	if !equalIndices(got, want) {
		t.Errorf("positionRemap() = %v, want %v", got, want)
	}
}
