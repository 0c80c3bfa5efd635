// Package math provides small fixed-size geometry value types used by the mesh
// optimizer: plane quadrics and axis-aligned bounds.
package math

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// singularDet is the determinant magnitude below which a quadric is treated
// as having no unique minimizer.
const singularDet = 1e-12

// Quadric is a symmetric 4x4 error matrix accumulating squared distances to
// a set of weighted planes.
// Layout: [A00 A10 A20 B0]
//
//	[A10 A11 A21 B1]
//	[A20 A21 A22 B2]
//	[B0  B1  B2  C ]
//
// W is the accumulated plane weight, used to turn the raw sum into a mean.
type Quadric struct {
	A00, A11, A22 float64
	A10, A20, A21 float64
	B0, B1, B2    float64
	C             float64
	W             float64
}

// PlaneQuadric returns the fundamental quadric of the plane n·p + d = 0
// scaled by weight w. n is expected to be unit length.
func PlaneQuadric(n r3.Vec, d, w float64) Quadric {
	return Quadric{
		A00: w * n.X * n.X,
		A11: w * n.Y * n.Y,
		A22: w * n.Z * n.Z,
		A10: w * n.Y * n.X,
		A20: w * n.Z * n.X,
		A21: w * n.Z * n.Y,
		B0:  w * n.X * d,
		B1:  w * n.Y * d,
		B2:  w * n.Z * d,
		C:   w * d * d,
		W:   w,
	}
}

// TriangleQuadric returns the area-weighted plane quadric of triangle abc.
// ok is false for zero-area triangles, which contribute nothing.
func TriangleQuadric(a, b, c r3.Vec, weight float64) (q Quadric, ok bool) {
	n := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
	area := r3.Norm(n)
	if area == 0 {
		return Quadric{}, false
	}
	n = r3.Scale(1/area, n)
	return PlaneQuadric(n, -r3.Dot(n, a), area*weight), true
}

// EdgeQuadric returns a quadric for the plane that contains edge ab and is
// perpendicular to triangle abc. It penalizes moving a vertex off the edge.
func EdgeQuadric(a, b, c r3.Vec, weight float64) (q Quadric, ok bool) {
	ab := r3.Sub(b, a)
	length := r3.Norm(ab)
	if length == 0 {
		return Quadric{}, false
	}
	ab = r3.Scale(1/length, ab)

	ac := r3.Sub(c, a)
	perp := r3.Sub(ac, r3.Scale(r3.Dot(ac, ab), ab))
	plen := r3.Norm(perp)
	if plen == 0 {
		return Quadric{}, false
	}
	perp = r3.Scale(1/plen, perp)
	return PlaneQuadric(perp, -r3.Dot(perp, a), length*length*weight), true
}

// Add returns q + o.
func (q Quadric) Add(o Quadric) Quadric {
	return Quadric{
		A00: q.A00 + o.A00,
		A11: q.A11 + o.A11,
		A22: q.A22 + o.A22,
		A10: q.A10 + o.A10,
		A20: q.A20 + o.A20,
		A21: q.A21 + o.A21,
		B0:  q.B0 + o.B0,
		B1:  q.B1 + o.B1,
		B2:  q.B2 + o.B2,
		C:   q.C + o.C,
		W:   q.W + o.W,
	}
}

// Eval returns the raw quadric form pᵀAp + 2Bᵀp + C.
func (q Quadric) Eval(p r3.Vec) float64 {
	rx := q.A00*p.X + q.A10*p.Y + q.A20*p.Z
	ry := q.A10*p.X + q.A11*p.Y + q.A21*p.Z
	rz := q.A20*p.X + q.A21*p.Y + q.A22*p.Z

	r := rx*p.X + ry*p.Y + rz*p.Z
	r += 2 * (q.B0*p.X + q.B1*p.Y + q.B2*p.Z)
	return r + q.C
}

// Error returns the weight-normalized squared distance of p to the planes.
func (q Quadric) Error(p r3.Vec) float64 {
	e := q.Eval(p)
	if q.W > 0 {
		e /= q.W
	}
	return math.Abs(e)
}

// Optimum returns the point minimizing the quadric. ok is false when the
// matrix is singular (flat or linear neighborhoods).
func (q Quadric) Optimum() (r3.Vec, bool) {
	// Cofactors of the symmetric 3x3 block.
	c00 := q.A11*q.A22 - q.A21*q.A21
	c01 := q.A21*q.A20 - q.A10*q.A22
	c02 := q.A10*q.A21 - q.A11*q.A20

	det := q.A00*c00 + q.A10*c01 + q.A20*c02
	if math.Abs(det) < singularDet {
		return r3.Vec{}, false
	}

	c11 := q.A00*q.A22 - q.A20*q.A20
	c12 := q.A10*q.A20 - q.A00*q.A21
	c22 := q.A00*q.A11 - q.A10*q.A10

	inv := -1 / det
	return r3.Vec{
		X: (c00*q.B0 + c01*q.B1 + c02*q.B2) * inv,
		Y: (c01*q.B0 + c11*q.B1 + c12*q.B2) * inv,
		Z: (c02*q.B0 + c12*q.B1 + c22*q.B2) * inv,
	}, true
}
