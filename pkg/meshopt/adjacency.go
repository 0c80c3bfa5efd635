package meshopt

import "fmt"

// EdgeClass describes how many triangles share an edge.
type EdgeClass uint8

const (
	EdgeInterior    EdgeClass = iota // exactly two triangles
	EdgeBorder                       // one triangle: mesh boundary or attribute seam
	EdgeNonManifold                  // three or more triangles
)

// String returns a human-readable edge class name.
func (c EdgeClass) String() string {
	switch c {
	case EdgeInterior:
		return "Interior"
	case EdgeBorder:
		return "Border"
	case EdgeNonManifold:
		return "NonManifold"
	default:
		return fmt.Sprintf("Unknown(%d)", c)
	}
}

// VertexKind controls which collapses a vertex may take part in.
type VertexKind uint8

const (
	VertexManifold VertexKind = iota // interior vertex, collapses freely
	VertexBorder                     // on a border edge, moves only along the border
	VertexSeam                       // border vertex sharing its position with another vertex
	VertexLocked                     // pinned by the caller or touching a non-manifold edge
)

// String returns a human-readable vertex kind name.
func (k VertexKind) String() string {
	switch k {
	case VertexManifold:
		return "Manifold"
	case VertexBorder:
		return "Border"
	case VertexSeam:
		return "Seam"
	case VertexLocked:
		return "Locked"
	default:
		return fmt.Sprintf("Unknown(%d)", k)
	}
}

// Edge is an undirected mesh edge with A < B.
type Edge struct {
	A, B      uint32
	Triangles int
}

// Class returns the edge classification.
func (e Edge) Class() EdgeClass {
	switch {
	case e.Triangles <= 1:
		return EdgeBorder
	case e.Triangles == 2:
		return EdgeInterior
	default:
		return EdgeNonManifold
	}
}

// Adjacency is the vertex/triangle/edge incidence of an index buffer. It is
// rebuilt for every simplification call and never mutated afterwards.
type Adjacency struct {
	VertexCount int
	Edges       []Edge       // in first-seen order
	Kinds       []VertexKind // per vertex

	offsets   []uint32 // vertex v owns triangles[offsets[v]:offsets[v+1]]
	triangles []uint32
	edgeIndex map[uint64]int32
}

func edgeKey(a, b uint32) uint64 {
	if a > b {
		a, b = b, a
	}
	return uint64(a)<<32 | uint64(b)
}

// isDegenerateTriangle reports whether a triangle repeats an index.
func isDegenerateTriangle(a, b, c uint32) bool {
	return a == b || b == c || c == a
}

// vertexTriangles builds CSR vertex -> triangle lists. Triangles repeating an
// index are skipped; each triangle appears once per distinct corner.
func vertexTriangles(indices []uint32, vertexCount int) (offsets, data []uint32) {
	counts := make([]uint32, vertexCount+1)
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if isDegenerateTriangle(a, b, c) {
			continue
		}
		counts[a+1]++
		counts[b+1]++
		counts[c+1]++
	}
	for v := 1; v <= vertexCount; v++ {
		counts[v] += counts[v-1]
	}
	offsets = counts
	data = make([]uint32, offsets[vertexCount])
	fill := make([]uint32, vertexCount)
	copy(fill, offsets[:vertexCount])
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if isDegenerateTriangle(a, b, c) {
			continue
		}
		t := uint32(i / 3)
		for _, v := range [3]uint32{a, b, c} {
			data[fill[v]] = t
			fill[v]++
		}
	}
	return offsets, data
}

// BuildAdjacency builds the incidence tables for a validated index buffer.
// locked, when non-nil, pins vertices explicitly. Seam detection needs
// positions and is applied separately by the simplifier.
func BuildAdjacency(indices []uint32, vertexCount int, locked []bool) *Adjacency {
	adj := &Adjacency{
		VertexCount: vertexCount,
		Kinds:       make([]VertexKind, vertexCount),
		edgeIndex:   make(map[uint64]int32, len(indices)),
	}
	adj.offsets, adj.triangles = vertexTriangles(indices, vertexCount)

	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if isDegenerateTriangle(a, b, c) {
			continue
		}
		adj.addEdge(a, b)
		adj.addEdge(b, c)
		adj.addEdge(c, a)
	}

	for _, e := range adj.Edges {
		switch e.Class() {
		case EdgeBorder:
			adj.promote(e.A, VertexBorder)
			adj.promote(e.B, VertexBorder)
		case EdgeNonManifold:
			adj.promote(e.A, VertexLocked)
			adj.promote(e.B, VertexLocked)
		}
	}
	for v, l := range locked {
		if l && v < vertexCount {
			adj.Kinds[v] = VertexLocked
		}
	}
	return adj
}

func (adj *Adjacency) addEdge(a, b uint32) {
	key := edgeKey(a, b)
	if id, ok := adj.edgeIndex[key]; ok {
		adj.Edges[id].Triangles++
		return
	}
	if a > b {
		a, b = b, a
	}
	adj.edgeIndex[key] = int32(len(adj.Edges))
	adj.Edges = append(adj.Edges, Edge{A: a, B: b, Triangles: 1})
}

// promote raises a vertex kind; kinds only ever become more restrictive.
func (adj *Adjacency) promote(v uint32, k VertexKind) {
	if k > adj.Kinds[v] {
		adj.Kinds[v] = k
	}
}

// VertexTriangles returns the triangles incident to v.
func (adj *Adjacency) VertexTriangles(v uint32) []uint32 {
	return adj.triangles[adj.offsets[v]:adj.offsets[v+1]]
}

// Edge looks up the undirected edge (a, b).
func (adj *Adjacency) Edge(a, b uint32) (Edge, bool) {
	id, ok := adj.edgeIndex[edgeKey(a, b)]
	if !ok {
		return Edge{}, false
	}
	return adj.Edges[id], true
}

// EdgeClass classifies the edge (a, b). Edges not present in the original
// mesh report EdgeInterior.
func (adj *Adjacency) EdgeClass(a, b uint32) EdgeClass {
	e, ok := adj.Edge(a, b)
	if !ok {
		return EdgeInterior
	}
	return e.Class()
}

// markSeams turns border vertices that share a position with another vertex
// into seam vertices. remap maps every vertex to its position class.
func (adj *Adjacency) markSeams(remap []uint32) {
	shared := make([]uint32, adj.VertexCount)
	for _, r := range remap {
		shared[r]++
	}
	for v, k := range adj.Kinds {
		if k == VertexBorder && shared[remap[v]] > 1 {
			adj.Kinds[v] = VertexSeam
		}
	}
}

// lockBorders pins every border and seam vertex.
func (adj *Adjacency) lockBorders() {
	for v, k := range adj.Kinds {
		if k == VertexBorder || k == VertexSeam {
			adj.Kinds[v] = VertexLocked
		}
	}
}
