package meshopt

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/spatial/r3"

	mmath "github.com/Faultbox/meshopt-go/pkg/math"
)

// MaxAttributeComponents is the largest number of weighted attribute
// components a single simplification call accepts.
const MaxAttributeComponents = 16

// Float is the element type of vertex and attribute buffers. Buffers keep the
// caller's precision; computation happens in float64.
type Float interface {
	~float32 | ~float64
}

// VertexBuffer is a flat buffer of interleaved vertex records. The first three
// elements of every record are the position.
type VertexBuffer[T Float] struct {
	Data   []T
	Stride int // elements per record; 0 means 3 (positions only)
}

// NewVertexBuffer wraps data as records of stride elements.
func NewVertexBuffer[T Float](data []T, stride int) VertexBuffer[T] {
	return VertexBuffer[T]{Data: data, Stride: stride}
}

// PositionBuffer flattens a position array into a stride-3 buffer.
func PositionBuffer[T Float](positions [][3]T) VertexBuffer[T] {
	data := make([]T, 0, len(positions)*3)
	for _, p := range positions {
		data = append(data, p[0], p[1], p[2])
	}
	return VertexBuffer[T]{Data: data, Stride: 3}
}

func (vb VertexBuffer[T]) stride() int {
	if vb.Stride == 0 {
		return 3
	}
	return vb.Stride
}

// Len returns the number of complete records.
func (vb VertexBuffer[T]) Len() int {
	s := vb.stride()
	if s <= 0 {
		return 0
	}
	return len(vb.Data) / s
}

// Record returns the elements of vertex i. The slice aliases the buffer.
func (vb VertexBuffer[T]) Record(i int) []T {
	s := vb.stride()
	return vb.Data[i*s : (i+1)*s]
}

// Position returns the position of vertex i.
func (vb VertexBuffer[T]) Position(i int) r3.Vec {
	s := vb.stride()
	return r3.Vec{X: float64(vb.Data[i*s]), Y: float64(vb.Data[i*s+1]), Z: float64(vb.Data[i*s+2])}
}

// Validate checks the record layout and that every position is finite.
func (vb VertexBuffer[T]) Validate() error {
	s := vb.stride()
	if s < 3 {
		return fmt.Errorf("%w: stride %d < 3", ErrInvalidStride, s)
	}
	if len(vb.Data)%s != 0 {
		return fmt.Errorf("%w: %d elements is not a multiple of stride %d", ErrInvalidStride, len(vb.Data), s)
	}
	for i := 0; i < len(vb.Data); i += s {
		for c := 0; c < 3; c++ {
			v := float64(vb.Data[i+c])
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: vertex %d", ErrNonFinite, i/s)
			}
		}
	}
	return nil
}

// positions loads every position into float64 and returns their bounds.
func (vb VertexBuffer[T]) positions() ([]r3.Vec, mmath.Bounds) {
	n := vb.Len()
	out := make([]r3.Vec, n)
	b := mmath.EmptyBounds()
	for i := range out {
		out[i] = vb.Position(i)
		b = b.Extend(out[i])
	}
	return out, b
}

// Attribute is one per-vertex attribute stream (UV, normal, color...) with an
// importance weight used by attribute-aware simplification.
type Attribute[T Float] struct {
	Name       string
	Data       []T
	Stride     int // elements between records; 0 means Components
	Offset     int // element offset of the first component inside a record
	Components int
	Weight     float64
}

func (a Attribute[T]) stride() int {
	if a.Stride == 0 {
		return a.Components
	}
	return a.Stride
}

// Value returns component c of vertex i.
func (a Attribute[T]) Value(i, c int) float64 {
	return float64(a.Data[i*a.stride()+a.Offset+c])
}

func (a Attribute[T]) validate(vertexCount int) error {
	if a.Components <= 0 {
		return fmt.Errorf("%w: %q has %d components", ErrInvalidAttribute, a.Name, a.Components)
	}
	s := a.stride()
	if a.Offset < 0 || a.Offset+a.Components > s {
		return fmt.Errorf("%w: %q components [%d,%d) exceed stride %d", ErrInvalidAttribute, a.Name, a.Offset, a.Offset+a.Components, s)
	}
	if math.IsNaN(a.Weight) || math.IsInf(a.Weight, 0) || a.Weight < 0 {
		return fmt.Errorf("%w: %q weight %v", ErrInvalidAttribute, a.Name, a.Weight)
	}
	if vertexCount > 0 && len(a.Data) < (vertexCount-1)*s+a.Offset+a.Components {
		return fmt.Errorf("%w: %q holds %d elements, need %d vertices", ErrInvalidAttribute, a.Name, len(a.Data), vertexCount)
	}
	return nil
}

// validateAttributes checks every stream and reports all problems at once.
func validateAttributes[T Float](attributes []Attribute[T], vertexCount int) error {
	var err error
	total := 0
	for _, a := range attributes {
		err = multierr.Append(err, a.validate(vertexCount))
		total += a.Components
	}
	if total > MaxAttributeComponents {
		err = multierr.Append(err, fmt.Errorf("%w: %d components exceed limit %d", ErrInvalidAttribute, total, MaxAttributeComponents))
	}
	return err
}

// validateIndices checks triangle-list structure and index range.
func validateIndices(indices []uint32, vertexCount int) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices", ErrIndexCount, len(indices))
	}
	for i, v := range indices {
		if int(v) >= vertexCount {
			return fmt.Errorf("%w: indices[%d] = %d, vertex count %d", ErrIndexRange, i, v, vertexCount)
		}
	}
	return nil
}

// clampTarget bounds a requested index count to [3, indexCount] and rounds it
// down to whole triangles.
func clampTarget(target, indexCount int) int {
	if target > indexCount {
		target = indexCount
	}
	if target < 3 {
		target = 3
	}
	return target - target%3
}

// validTargetError reports whether e can be used as an error bound.
func validTargetError(e float64) bool {
	return !math.IsNaN(e) && e >= 0
}
