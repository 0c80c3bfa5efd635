package meshopt

import (
	"container/heap"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	mmath "github.com/Faultbox/meshopt-go/pkg/math"
)

// borderWeight scales the penalty quadric added along border edges.
const borderWeight = 10.0

// Placement selects where a collapsed edge's surviving vertex ends up.
type Placement uint8

const (
	// PlaceEndpoint collapses onto one of the edge endpoints, so the output
	// indexes the unchanged input vertex buffer.
	PlaceEndpoint Placement = iota
	// PlaceOptimal moves the survivor to the minimizer of the summed quadric
	// (edge midpoint when singular). The result carries new vertex data.
	PlaceOptimal
)

// String returns the placement name.
func (p Placement) String() string {
	switch p {
	case PlaceEndpoint:
		return "Endpoint"
	case PlaceOptimal:
		return "Optimal"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// SimplifyOptions tunes edge-collapse simplification. The zero value is valid.
type SimplifyOptions struct {
	// Locked pins vertices; when set it must have one entry per vertex.
	Locked []bool
	// LockBorder pins every border and seam vertex.
	LockBorder bool
	Placement  Placement
}

// SimplifyResult is the full output of Reduce.
type SimplifyResult[T Float] struct {
	Indices   []uint32
	Error     float64 // largest collapse error, relative to the mesh extent
	Collapses int

	// Vertices and Attributes are the input buffers for PlaceEndpoint and
	// fresh copies with moved vertices for PlaceOptimal.
	Vertices   VertexBuffer[T]
	Attributes []Attribute[T]
}

// Simplify reduces a triangle list with quadric-error edge collapses until it
// reaches targetIndexCount indices or the next collapse would exceed
// targetError. The returned error is relative to the mesh extent.
//
// With the default PlaceEndpoint every collapse is scored at, and moves onto,
// the cheaper endpoint, so the vertex buffer stays valid as is. Scoring at the
// quadric's optimal point requires PlaceOptimal through Reduce, which returns
// the moved vertices.
func Simplify[T Float](vertices VertexBuffer[T], indices []uint32, targetIndexCount int, targetError float64, opts *SimplifyOptions) ([]uint32, float64, error) {
	res, err := Reduce(vertices, indices, nil, targetIndexCount, targetError, opts)
	if err != nil {
		return nil, 0, err
	}
	return res.Indices, res.Error, nil
}

// SimplifyWithAttributes is Simplify with attribute discontinuities added to
// the error metric, each attribute scaled by its Weight.
func SimplifyWithAttributes[T Float](vertices VertexBuffer[T], indices []uint32, attributes []Attribute[T], targetIndexCount int, targetError float64, opts *SimplifyOptions) ([]uint32, float64, error) {
	res, err := Reduce(vertices, indices, attributes, targetIndexCount, targetError, opts)
	if err != nil {
		return nil, 0, err
	}
	return res.Indices, res.Error, nil
}

// Reduce runs edge-collapse simplification and returns the detailed result.
// Input buffers are never modified.
func Reduce[T Float](vertices VertexBuffer[T], indices []uint32, attributes []Attribute[T], targetIndexCount int, targetError float64, opts *SimplifyOptions) (*SimplifyResult[T], error) {
	if opts == nil {
		opts = &SimplifyOptions{}
	}
	if !validTargetError(targetError) {
		return nil, fmt.Errorf("%w: target error %v", ErrInvalidTarget, targetError)
	}

	res := &SimplifyResult[T]{Indices: []uint32{}, Vertices: vertices, Attributes: attributes}
	if len(vertices.Data) == 0 || len(indices) == 0 {
		return res, nil
	}

	if err := vertices.Validate(); err != nil {
		return nil, err
	}
	vertexCount := vertices.Len()
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}
	if err := validateAttributes(attributes, vertexCount); err != nil {
		return nil, err
	}
	if opts.Locked != nil && len(opts.Locked) != vertexCount {
		return nil, fmt.Errorf("%w: %d entries for %d vertices", ErrLockCount, len(opts.Locked), vertexCount)
	}

	target := clampTarget(targetIndexCount, len(indices))
	if len(indices) <= target {
		res.Indices = append(res.Indices, indices...)
		return res, nil
	}

	s := newSimplifier(vertices, indices, attributes, opts)
	s.run(target, targetError)
	s.prune(target)

	res.Indices = s.output()
	res.Error = math.Sqrt(s.maxCost)
	res.Collapses = s.collapses
	if opts.Placement == PlaceOptimal && s.collapses > 0 {
		res.Vertices, res.Attributes = placeVertices(vertices, attributes, s)
	}
	return res, nil
}

// simplifier holds the transient collapse state of one Reduce call.
type simplifier struct {
	adj       *Adjacency
	norm      mmath.Normalizer
	placement Placement

	positions []r3.Vec    // normalized
	attrs     [][]float64 // weighted attribute values, nil without attributes
	attrDims  int

	tris     []uint32
	triAlive []bool
	liveTris int
	vertTris [][]uint32

	quadrics     []mmath.Quadric
	attrQuadrics []attributeQuadric

	alive  []bool
	parent []uint32 // collapsed vertices point at their survivor
	gen    []uint32
	moved  []bool

	queue collapseQueue
	mark  []uint32
	stamp uint32

	maxCost   float64
	collapses int
}

func newSimplifier[T Float](vertices VertexBuffer[T], indices []uint32, attributes []Attribute[T], opts *SimplifyOptions) *simplifier {
	n := vertices.Len()
	raw, bounds := vertices.positions()

	s := &simplifier{
		norm:      bounds.Normalizer(),
		placement: opts.Placement,
		positions: make([]r3.Vec, n),
		tris:      append([]uint32(nil), indices...),
		triAlive:  make([]bool, len(indices)/3),
		vertTris:  make([][]uint32, n),
		alive:     make([]bool, n),
		parent:    make([]uint32, n),
		gen:       make([]uint32, n),
		moved:     make([]bool, n),
		mark:      make([]uint32, n),
	}
	for i, p := range raw {
		s.positions[i] = s.norm.Apply(p)
		s.alive[i] = true
		s.parent[i] = uint32(i)
	}

	for _, a := range attributes {
		s.attrDims += a.Components
	}
	if s.attrDims > 0 {
		s.attrs = make([][]float64, n)
		for v := range s.attrs {
			vals := make([]float64, 0, s.attrDims)
			for _, a := range attributes {
				for c := 0; c < a.Components; c++ {
					vals = append(vals, a.Value(v, c)*a.Weight)
				}
			}
			s.attrs[v] = vals
		}
	}

	s.adj = BuildAdjacency(indices, n, opts.Locked)
	s.adj.markSeams(positionRemap(raw))
	if opts.LockBorder {
		s.adj.lockBorders()
	}

	for t := range s.triAlive {
		a, b, c := indices[3*t], indices[3*t+1], indices[3*t+2]
		if !isDegenerateTriangle(a, b, c) {
			s.triAlive[t] = true
			s.liveTris++
		}
	}
	for v := 0; v < n; v++ {
		s.vertTris[v] = append([]uint32(nil), s.adj.VertexTriangles(uint32(v))...)
	}

	s.buildQuadrics()
	return s
}

// point returns the combined position+attribute vector of v.
func (s *simplifier) point(v uint32) []float64 {
	p := s.positions[v]
	x := make([]float64, 0, 3+s.attrDims)
	x = append(x, p.X, p.Y, p.Z)
	return append(x, s.attrs[v]...)
}

func (s *simplifier) buildQuadrics() {
	n := len(s.positions)
	s.quadrics = make([]mmath.Quadric, n)
	dim := 3 + s.attrDims
	if s.attrDims > 0 {
		s.attrQuadrics = make([]attributeQuadric, n)
		for v := range s.attrQuadrics {
			s.attrQuadrics[v] = newAttributeQuadric(dim)
		}
	}

	for t, ok := range s.triAlive {
		if !ok {
			continue
		}
		tri := s.tris[3*t : 3*t+3]
		pa, pb, pc := s.positions[tri[0]], s.positions[tri[1]], s.positions[tri[2]]

		if q, ok := mmath.TriangleQuadric(pa, pb, pc, 1); ok {
			for _, v := range tri {
				s.quadrics[v] = s.quadrics[v].Add(q)
			}
		}
		if s.attrDims > 0 {
			if q, ok := attributeTriangleQuadric(s.point(tri[0]), s.point(tri[1]), s.point(tri[2]), 1); ok {
				for _, v := range tri {
					s.attrQuadrics[v] = s.attrQuadrics[v].add(q)
				}
			}
		}

		for e := 0; e < 3; e++ {
			i, j, k := tri[e], tri[(e+1)%3], tri[(e+2)%3]
			if s.adj.EdgeClass(i, j) != EdgeBorder {
				continue
			}
			q, ok := mmath.EdgeQuadric(s.positions[i], s.positions[j], s.positions[k], borderWeight)
			if !ok {
				continue
			}
			s.quadrics[i] = s.quadrics[i].Add(q)
			s.quadrics[j] = s.quadrics[j].Add(q)
			if s.attrDims > 0 {
				eq := embedQuadric(q, dim)
				s.attrQuadrics[i] = s.attrQuadrics[i].add(eq)
				s.attrQuadrics[j] = s.attrQuadrics[j].add(eq)
			}
		}
	}
}

func (s *simplifier) triHas(t, v uint32) bool {
	tri := s.tris[3*t : 3*t+3]
	return tri[0] == v || tri[1] == v || tri[2] == v
}

// find resolves a vertex to the survivor it was collapsed into.
func (s *simplifier) find(v uint32) uint32 {
	root := v
	for s.parent[root] != root {
		root = s.parent[root]
	}
	for s.parent[v] != root {
		next := s.parent[v]
		s.parent[v] = root
		v = next
	}
	return root
}

// adjacent reports whether a live triangle contains both u and v.
func (s *simplifier) adjacent(u, v uint32) bool {
	for _, t := range s.vertTris[u] {
		if s.triAlive[t] && s.triHas(t, v) {
			return true
		}
	}
	return false
}

// canCollapse applies the vertex-kind rules to the collapse src -> dst.
func (s *simplifier) canCollapse(src, dst uint32) bool {
	switch s.adj.Kinds[src] {
	case VertexLocked, VertexSeam:
		return false
	case VertexBorder:
		if s.adj.EdgeClass(src, dst) != EdgeBorder {
			return false
		}
		k := s.adj.Kinds[dst]
		return k == VertexBorder || k == VertexSeam || k == VertexLocked
	}
	return true
}

// score computes the cost and merged vertex of collapsing src into dst.
func (s *simplifier) score(src, dst uint32) *collapse {
	c := &collapse{
		Src:    src,
		Dst:    dst,
		SrcGen: s.gen[src],
		DstGen: s.gen[dst],
		Pos:    s.positions[dst],
	}
	optimal := s.placement == PlaceOptimal &&
		s.adj.Kinds[src] == VertexManifold && s.adj.Kinds[dst] == VertexManifold

	mid := r3.Scale(0.5, r3.Add(s.positions[src], s.positions[dst]))
	reach := 2 * r3.Norm(r3.Sub(s.positions[src], s.positions[dst]))

	if s.attrDims == 0 {
		q := s.quadrics[src].Add(s.quadrics[dst])
		if optimal {
			c.Pos = mid
			if p, ok := q.Optimum(); ok && r3.Norm(r3.Sub(p, mid)) <= reach {
				c.Pos = p
			}
		}
		c.Cost = q.Error(c.Pos)
		return c
	}

	q := s.attrQuadrics[src].add(s.attrQuadrics[dst])
	x := s.point(dst)
	if optimal {
		opt, ok := q.optimum()
		if ok && r3.Norm(r3.Sub(r3.Vec{X: opt[0], Y: opt[1], Z: opt[2]}, mid)) <= reach {
			x = opt
		} else {
			xs := s.point(src)
			for i := range x {
				x[i] = 0.5 * (x[i] + xs[i])
			}
		}
		c.Pos = r3.Vec{X: x[0], Y: x[1], Z: x[2]}
	}
	c.Attr = x[3:]
	c.Cost = q.error(x)
	return c
}

// evaluate returns the cheaper allowed direction of edge (u, v).
func (s *simplifier) evaluate(u, v uint32) (*collapse, bool) {
	var best *collapse
	for _, d := range [2][2]uint32{{u, v}, {v, u}} {
		src, dst := d[0], d[1]
		if !s.canCollapse(src, dst) {
			continue
		}
		c := s.score(src, dst)
		if best == nil || c.Cost < best.Cost || (c.Cost == best.Cost && c.Src < best.Src) {
			best = c
		}
	}
	return best, best != nil
}

// fillQueue scores every live edge. It runs once per pass.
func (s *simplifier) fillQueue() {
	s.queue = s.queue[:0]
	for u := range s.alive {
		if !s.alive[u] {
			continue
		}
		s.stamp++
		for _, t := range s.vertTris[u] {
			if !s.triAlive[t] {
				continue
			}
			for _, w := range s.tris[3*t : 3*t+3] {
				if w <= uint32(u) || s.mark[w] == s.stamp {
					continue
				}
				s.mark[w] = s.stamp
				if c, ok := s.evaluate(uint32(u), w); ok {
					s.queue = append(s.queue, c)
				}
			}
		}
	}
	heap.Init(&s.queue)
}

// flipCosine is the smallest cosine allowed between a triangle's normal
// before and after a collapse, about 75 degrees.
const flipCosine = 0.25

// flips reports whether moving v to p turns any of its triangles (other than
// those shared with other) further than flipCosine allows.
func (s *simplifier) flips(v, other uint32, p r3.Vec) bool {
	for _, t := range s.vertTris[v] {
		if !s.triAlive[t] || s.triHas(t, other) {
			continue
		}
		tri := s.tris[3*t : 3*t+3]
		var before, after [3]r3.Vec
		for i, w := range tri {
			before[i] = s.positions[w]
			after[i] = before[i]
			if w == v {
				after[i] = p
			}
		}
		n0 := r3.Cross(r3.Sub(before[1], before[0]), r3.Sub(before[2], before[0]))
		if r3.Norm2(n0) == 0 {
			continue
		}
		n1 := r3.Cross(r3.Sub(after[1], after[0]), r3.Sub(after[2], after[0]))
		if r3.Dot(n0, n1) <= flipCosine*math.Sqrt(r3.Norm2(n0)*r3.Norm2(n1)) {
			return true
		}
	}
	return false
}

// third returns the corner of triangle t that is neither a nor b.
func (s *simplifier) third(t, a, b uint32) uint32 {
	for _, w := range s.tris[3*t : 3*t+3] {
		if w != a && w != b {
			return w
		}
	}
	return a
}

// orphaned reports whether every live triangle of w contains both a and b.
func (s *simplifier) orphaned(w, a, b uint32) bool {
	for _, t := range s.vertTris[w] {
		if s.triAlive[t] && !(s.triHas(t, a) && s.triHas(t, b)) {
			return false
		}
	}
	return true
}

// valid checks the live mesh: the collapse must follow an edge, must leave at
// least one triangle, must keep every locked vertex referenced and must not
// flip any surviving triangle.
func (s *simplifier) valid(c *collapse) bool {
	removed := 0
	for _, t := range s.vertTris[c.Src] {
		if !s.triAlive[t] || !s.triHas(t, c.Dst) {
			continue
		}
		removed++
		if w := s.third(t, c.Src, c.Dst); s.adj.Kinds[w] == VertexLocked && s.orphaned(w, c.Src, c.Dst) {
			return false
		}
	}
	if removed == 0 || s.liveTris-removed < 1 {
		return false
	}
	if s.flips(c.Src, c.Dst, c.Pos) {
		return false
	}
	if c.Pos != s.positions[c.Dst] && s.flips(c.Dst, c.Src, c.Pos) {
		return false
	}
	return true
}

// apply performs the collapse src -> dst.
func (s *simplifier) apply(c *collapse) {
	src, dst := c.Src, c.Dst

	for _, t := range s.vertTris[src] {
		if !s.triAlive[t] {
			continue
		}
		if s.triHas(t, dst) {
			s.triAlive[t] = false
			s.liveTris--
			continue
		}
		tri := s.tris[3*t : 3*t+3]
		for i := range tri {
			if tri[i] == src {
				tri[i] = dst
			}
		}
		s.vertTris[dst] = append(s.vertTris[dst], t)
	}
	s.vertTris[src] = nil

	live := s.vertTris[dst][:0]
	for _, t := range s.vertTris[dst] {
		if s.triAlive[t] {
			live = append(live, t)
		}
	}
	s.vertTris[dst] = live

	s.quadrics[dst] = s.quadrics[dst].Add(s.quadrics[src])
	if s.attrDims > 0 {
		s.attrQuadrics[dst] = s.attrQuadrics[dst].add(s.attrQuadrics[src])
	}
	if c.Pos != s.positions[dst] {
		s.positions[dst] = c.Pos
		s.moved[dst] = true
		if s.attrDims > 0 {
			s.attrs[dst] = append([]float64(nil), c.Attr...)
		}
	}

	s.alive[src] = false
	s.parent[src] = dst
	s.gen[dst]++
	s.maxCost = math.Max(s.maxCost, c.Cost)
	s.collapses++
}

// run collapses edges until the target is met, the error bound is hit, or a
// full pass makes no progress. The error bound takes precedence.
func (s *simplifier) run(target int, targetError float64) {
	limit := targetError * targetError

	for s.liveTris*3 > target {
		s.fillQueue()
		progress := false

		for s.liveTris*3 > target && s.queue.Len() > 0 {
			c := heap.Pop(&s.queue).(*collapse)

			if !s.alive[c.Src] || !s.alive[c.Dst] || s.gen[c.Src] != c.SrcGen || s.gen[c.Dst] != c.DstGen {
				// Stale: re-derive against the current survivors.
				u, v := s.find(c.Src), s.find(c.Dst)
				if u != v && s.adjacent(u, v) {
					if fresh, ok := s.evaluate(u, v); ok {
						heap.Push(&s.queue, fresh)
					}
				}
				continue
			}

			if c.Cost > limit {
				return
			}
			if !s.valid(c) {
				continue
			}
			s.apply(c)
			progress = true
		}

		if !progress {
			return
		}
	}
}

// prune drops triangles repeating an earlier triangle's vertex set while the
// mesh is above target. Such pairs cover the same surface.
func (s *simplifier) prune(target int) {
	if s.liveTris*3 <= target {
		return
	}
	seen := make(map[[3]uint32]struct{}, s.liveTris)
	for t, ok := range s.triAlive {
		if !ok {
			continue
		}
		key := sortedTriangle(s.tris[3*t], s.tris[3*t+1], s.tris[3*t+2])
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			continue
		}
		s.triAlive[t] = false
		s.liveTris--
		if s.liveTris*3 <= target {
			return
		}
	}
}

func sortedTriangle(a, b, c uint32) [3]uint32 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b, c = c, b
	}
	if a > b {
		a, b = b, a
	}
	return [3]uint32{a, b, c}
}

// output returns live triangles in their original order.
func (s *simplifier) output() []uint32 {
	out := make([]uint32, 0, s.liveTris*3)
	for t, ok := range s.triAlive {
		if ok {
			out = append(out, s.tris[3*t:3*t+3]...)
		}
	}
	return out
}

// placeVertices copies the input buffers and writes moved vertices back in
// the caller's units.
func placeVertices[T Float](vertices VertexBuffer[T], attributes []Attribute[T], s *simplifier) (VertexBuffer[T], []Attribute[T]) {
	out := VertexBuffer[T]{Data: append([]T(nil), vertices.Data...), Stride: vertices.Stride}
	attrs := make([]Attribute[T], len(attributes))
	for i, a := range attributes {
		a.Data = append([]T(nil), a.Data...)
		attrs[i] = a
	}

	stride := out.stride()
	for v, moved := range s.moved {
		if !moved {
			continue
		}
		p := s.norm.Invert(s.positions[v])
		out.Data[v*stride] = T(p.X)
		out.Data[v*stride+1] = T(p.Y)
		out.Data[v*stride+2] = T(p.Z)

		off := 0
		for _, a := range attrs {
			if a.Weight > 0 {
				base := v*a.stride() + a.Offset
				for c := 0; c < a.Components; c++ {
					a.Data[base+c] = T(s.attrs[v][off+c] / a.Weight)
				}
			}
			off += a.Components
		}
	}
	return out, attrs
}
