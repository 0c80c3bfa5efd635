package math

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min r3.Vec
	Max r3.Vec
}

// EmptyBounds returns bounds that contain nothing; the first Extend sets both corners.
func EmptyBounds() Bounds {
	inf := math.Inf(1)
	return Bounds{
		Min: r3.Vec{X: inf, Y: inf, Z: inf},
		Max: r3.Vec{X: -inf, Y: -inf, Z: -inf},
	}
}

// IsEmpty reports whether no point was added.
func (b Bounds) IsEmpty() bool {
	return b.Min.X > b.Max.X
}

// Extend returns b grown to include p.
func (b Bounds) Extend(p r3.Vec) Bounds {
	b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
	b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	return b
}

// Size returns the box dimensions.
func (b Bounds) Size() r3.Vec {
	if b.IsEmpty() {
		return r3.Vec{}
	}
	return r3.Sub(b.Max, b.Min)
}

// Extent returns the largest box dimension.
func (b Bounds) Extent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Center returns the box midpoint.
func (b Bounds) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min, b.Max))
}

// Normalizer maps positions into the unit cube anchored at Min, scaling all
// axes uniformly by the largest extent so shapes keep their proportions.
type Normalizer struct {
	Origin r3.Vec
	Scale  float64
}

// Normalizer returns the uniform unit-cube mapping for b. A flat or empty box
// keeps scale 1.
func (b Bounds) Normalizer() Normalizer {
	if b.IsEmpty() {
		return Normalizer{Scale: 1}
	}
	ext := b.Extent()
	if ext == 0 {
		return Normalizer{Origin: b.Min, Scale: 1}
	}
	return Normalizer{Origin: b.Min, Scale: 1 / ext}
}

// Apply maps p into normalized space.
func (n Normalizer) Apply(p r3.Vec) r3.Vec {
	return r3.Scale(n.Scale, r3.Sub(p, n.Origin))
}

// Invert maps a normalized point back to the original space.
func (n Normalizer) Invert(p r3.Vec) r3.Vec {
	return r3.Add(r3.Scale(1/n.Scale, p), n.Origin)
}
