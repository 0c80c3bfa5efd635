package meshopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// RemapTable maps every original vertex index to its canonical index.
// Canonical indices form the dense range [0, unique) in first-seen order.
type RemapTable []uint32

// UniqueCount returns the number of canonical vertices.
func (r RemapTable) UniqueCount() int {
	n := 0
	for _, v := range r {
		if int(v)+1 > n {
			n = int(v) + 1
		}
	}
	return n
}

// WeldResult is the output of Weld.
type WeldResult[T Float] struct {
	Remap       RemapTable
	UniqueCount int
	Vertices    VertexBuffer[T]
	Indices     []uint32 // nil when no index buffer was given
}

// maxCell bounds quantized cell coordinates so the float conversion stays defined.
const maxCell = 1 << 52

// cellKey is a quantized position used for tolerance welding.
type cellKey struct {
	X, Y, Z int64
}

func quantize(v, cell float64) int64 {
	q := math.Floor(v / cell)
	if q > maxCell {
		return maxCell
	}
	if q < -maxCell {
		return -maxCell
	}
	return int64(q)
}

// GenerateVertexRemap assigns canonical indices to vertices. Two vertices are
// equal when their positions are within tolerance (bitwise equal for 0) and
// all remaining record elements match exactly. A vertex joins the earliest
// canonical vertex it matches, so the table only depends on input order.
// indices, when given, are validated but do not affect the table.
func GenerateVertexRemap[T Float](vertices VertexBuffer[T], indices []uint32, tolerance float64) (RemapTable, int, error) {
	if math.IsNaN(tolerance) || math.IsInf(tolerance, 0) || tolerance < 0 {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidTolerance, tolerance)
	}
	if len(vertices.Data) == 0 {
		return RemapTable{}, 0, nil
	}
	if err := vertices.Validate(); err != nil {
		return nil, 0, err
	}
	if indices != nil {
		if err := validateIndices(indices, vertices.Len()); err != nil {
			return nil, 0, err
		}
	}

	if tolerance == 0 {
		remap, unique := remapExact(vertices)
		return remap, unique, nil
	}
	remap, unique := remapTolerance(vertices, tolerance)
	return remap, unique, nil
}

// sameTail compares the non-position elements of two records bit for bit.
func sameTail[T Float](a, b []T) bool {
	for i := 3; i < len(a); i++ {
		if a[i] != b[i] && !(a[i] != a[i] && b[i] != b[i]) {
			return false
		}
	}
	return true
}

func remapExact[T Float](vertices VertexBuffer[T]) (RemapTable, int) {
	n := vertices.Len()
	remap := make(RemapTable, n)
	buckets := make(map[r3.Vec][]uint32, n)
	unique := 0

	for i := 0; i < n; i++ {
		p := vertices.Position(i)
		rec := vertices.Record(i)
		found := false
		for _, j := range buckets[p] {
			if sameTail(rec, vertices.Record(int(j))) {
				remap[i] = remap[j]
				found = true
				break
			}
		}
		if !found {
			remap[i] = uint32(unique)
			unique++
			buckets[p] = append(buckets[p], uint32(i))
		}
	}
	return remap, unique
}

func remapTolerance[T Float](vertices VertexBuffer[T], tolerance float64) (RemapTable, int) {
	n := vertices.Len()
	keys := make([]cellKey, n)
	parallelFor(n, func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			p := vertices.Position(i)
			keys[i] = cellKey{quantize(p.X, tolerance), quantize(p.Y, tolerance), quantize(p.Z, tolerance)}
		}
	})

	remap := make(RemapTable, n)
	cells := make(map[cellKey][]uint32, n)
	limit := tolerance * tolerance
	unique := 0

	for i := 0; i < n; i++ {
		p := vertices.Position(i)
		rec := vertices.Record(i)
		k := keys[i]

		best := -1
		for dz := int64(-1); dz <= 1; dz++ {
			for dy := int64(-1); dy <= 1; dy++ {
				for dx := int64(-1); dx <= 1; dx++ {
					for _, j := range cells[cellKey{k.X + dx, k.Y + dy, k.Z + dz}] {
						if best >= 0 && int(j) >= best {
							continue
						}
						if r3.Norm2(r3.Sub(p, vertices.Position(int(j)))) <= limit && sameTail(rec, vertices.Record(int(j))) {
							best = int(j)
						}
					}
				}
			}
		}

		if best >= 0 {
			remap[i] = remap[best]
			continue
		}
		remap[i] = uint32(unique)
		unique++
		cells[k] = append(cells[k], uint32(i))
	}
	return remap, unique
}

// positionRemap classifies vertices by exact position only.
func positionRemap(positions []r3.Vec) []uint32 {
	remap := make([]uint32, len(positions))
	ids := make(map[r3.Vec]uint32, len(positions))
	for i, p := range positions {
		id, ok := ids[p]
		if !ok {
			id = uint32(len(ids))
			ids[p] = id
		}
		remap[i] = id
	}
	return remap
}

// RemapVertexBuffer builds the deduplicated vertex buffer: canonical vertex k
// receives the record of the first original vertex mapped to k.
func RemapVertexBuffer[T Float](vertices VertexBuffer[T], remap RemapTable) (VertexBuffer[T], error) {
	n := vertices.Len()
	if len(remap) != n {
		return VertexBuffer[T]{}, fmt.Errorf("%w: %d entries for %d vertices", ErrRemapLength, len(remap), n)
	}
	unique := remap.UniqueCount()
	stride := vertices.stride()
	out := VertexBuffer[T]{Data: make([]T, unique*stride), Stride: vertices.Stride}
	written := make([]bool, unique)
	for i, r := range remap {
		if written[r] {
			continue
		}
		written[r] = true
		copy(out.Data[int(r)*stride:], vertices.Record(i))
	}
	return out, nil
}

// RemapIndexBuffer rewrites indices through the remap table.
func RemapIndexBuffer(indices []uint32, remap RemapTable) ([]uint32, error) {
	out := make([]uint32, len(indices))
	for i, v := range indices {
		if int(v) >= len(remap) {
			return nil, fmt.Errorf("%w: indices[%d] = %d, remap length %d", ErrIndexRange, i, v, len(remap))
		}
		out[i] = remap[v]
	}
	return out, nil
}

// Weld merges duplicate vertices and returns the remap table, the deduplicated
// vertex buffer and, when indices is non-nil, the re-indexed triangles.
func Weld[T Float](vertices VertexBuffer[T], indices []uint32, tolerance float64) (*WeldResult[T], error) {
	remap, unique, err := GenerateVertexRemap(vertices, indices, tolerance)
	if err != nil {
		return nil, err
	}
	res := &WeldResult[T]{Remap: remap, UniqueCount: unique, Vertices: VertexBuffer[T]{Stride: vertices.Stride}}
	if unique == 0 {
		if indices != nil {
			res.Indices = []uint32{}
		}
		return res, nil
	}

	if res.Vertices, err = RemapVertexBuffer(vertices, remap); err != nil {
		return nil, err
	}
	if indices != nil {
		if res.Indices, err = RemapIndexBuffer(indices, remap); err != nil {
			return nil, err
		}
	}
	return res, nil
}
