package meshopt

import (
	"math"

	"gonum.org/v1/gonum/mat"

	mmath "github.com/Faultbox/meshopt-go/pkg/math"
)

// attributeQuadric is a generalized quadric over the combined space of
// position and weighted attributes: error(x) = xᵀAx + 2bᵀx + c.
type attributeQuadric struct {
	a *mat.SymDense
	b *mat.VecDense
	c float64
	w float64
}

func newAttributeQuadric(n int) attributeQuadric {
	return attributeQuadric{
		a: mat.NewSymDense(n, nil),
		b: mat.NewVecDense(n, nil),
	}
}

func dot(x, y []float64) float64 {
	var s float64
	for i := range x {
		s += x[i] * y[i]
	}
	return s
}

// attributeTriangleQuadric measures squared distance to the 2-flat spanned by
// a triangle in n-dimensional space, weighted by the triangle's area.
func attributeTriangleQuadric(p0, p1, p2 []float64, weight float64) (attributeQuadric, bool) {
	n := len(p0)
	e1 := make([]float64, n)
	e2 := make([]float64, n)
	for i := range e1 {
		e1[i] = p1[i] - p0[i]
		e2[i] = p2[i] - p0[i]
	}

	l1 := math.Sqrt(dot(e1, e1))
	if l1 == 0 {
		return attributeQuadric{}, false
	}
	for i := range e1 {
		e1[i] /= l1
	}
	proj := dot(e2, e1)
	for i := range e2 {
		e2[i] -= proj * e1[i]
	}
	l2 := math.Sqrt(dot(e2, e2))
	if l2 == 0 {
		return attributeQuadric{}, false
	}
	for i := range e2 {
		e2[i] /= l2
	}

	w := l1 * l2 * weight
	d1 := dot(p0, e1)
	d2 := dot(p0, e2)

	q := newAttributeQuadric(n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -e1[i]*e1[j] - e2[i]*e2[j]
			if i == j {
				v++
			}
			q.a.SetSym(i, j, w*v)
		}
		q.b.SetVec(i, w*(d1*e1[i]+d2*e2[i]-p0[i]))
	}
	q.c = w * (dot(p0, p0) - d1*d1 - d2*d2)
	q.w = w
	return q, true
}

// embedQuadric lifts a positional quadric into an n-dimensional one that
// ignores the attribute dimensions.
func embedQuadric(p mmath.Quadric, n int) attributeQuadric {
	q := newAttributeQuadric(n)
	q.a.SetSym(0, 0, p.A00)
	q.a.SetSym(1, 1, p.A11)
	q.a.SetSym(2, 2, p.A22)
	q.a.SetSym(1, 0, p.A10)
	q.a.SetSym(2, 0, p.A20)
	q.a.SetSym(2, 1, p.A21)
	q.b.SetVec(0, p.B0)
	q.b.SetVec(1, p.B1)
	q.b.SetVec(2, p.B2)
	q.c = p.C
	q.w = p.W
	return q
}

// add returns q + o as a new quadric; neither operand is modified.
func (q attributeQuadric) add(o attributeQuadric) attributeQuadric {
	n := q.b.Len()
	sum := newAttributeQuadric(n)
	sum.a.AddSym(q.a, o.a)
	sum.b.AddVec(q.b, o.b)
	sum.c = q.c + o.c
	sum.w = q.w + o.w
	return sum
}

// error returns the weight-normalized quadric error at x.
func (q attributeQuadric) error(x []float64) float64 {
	v := mat.NewVecDense(len(x), x)
	e := mat.Inner(v, q.a, v) + 2*mat.Dot(q.b, v) + q.c
	if q.w > 0 {
		e /= q.w
	}
	return math.Abs(e)
}

// optimum solves Ax = -b. ok is false when A is not positive definite.
func (q attributeQuadric) optimum() ([]float64, bool) {
	var chol mat.Cholesky
	if !chol.Factorize(q.a) {
		return nil, false
	}
	n := q.b.Len()
	rhs := mat.NewVecDense(n, nil)
	rhs.ScaleVec(-1, q.b)
	x := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(x, rhs); err != nil {
		return nil, false
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	return out, true
}
