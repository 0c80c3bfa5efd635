package meshopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxGrid is the finest grid resolution (cells per axis) the sloppy
// simplifier searches.
const maxGrid = 1024

// SimplifySloppy reduces a triangle list by clustering vertices on a uniform
// grid, ignoring connectivity. Every vertex in a cell is replaced by the
// member closest to the cell centroid, and triangles that become degenerate or
// duplicated are dropped. The grid is chosen along a fixed ladder of
// resolutions, no coarser than targetError allows, and refined inside the
// last ladder step whose triangle count stays within targetIndexCount; when
// even the coarsest admissible grid exceeds the target, the error bound wins.
// The returned error is the cell diagonal of that ladder step relative to the
// mesh extent. It bounds the distance between any vertex and its replacement
// and never decreases as targetIndexCount decreases.
func SimplifySloppy[T Float](vertices VertexBuffer[T], indices []uint32, targetIndexCount int, targetError float64) ([]uint32, float64, error) {
	if !validTargetError(targetError) {
		return nil, 0, fmt.Errorf("%w: target error %v", ErrInvalidTarget, targetError)
	}
	if len(vertices.Data) == 0 || len(indices) == 0 {
		return []uint32{}, 0, nil
	}
	if err := vertices.Validate(); err != nil {
		return nil, 0, err
	}
	if err := validateIndices(indices, vertices.Len()); err != nil {
		return nil, 0, err
	}

	target := clampTarget(targetIndexCount, len(indices))
	if len(indices) <= target {
		return append([]uint32{}, indices...), 0, nil
	}

	if targetError == 0 {
		return append([]uint32{}, indices...), 0, nil
	}
	// A cell diagonal of sqrt(3)/g bounds the distance to any member.
	minGrid := 1
	if g := math.Ceil(math.Sqrt(3) / targetError); g > 1 {
		if g > maxGrid {
			return append([]uint32{}, indices...), 0, nil
		}
		minGrid = int(g)
	}

	raw, bounds := vertices.positions()
	norm := bounds.Normalizer()
	positions := make([]r3.Vec, len(raw))
	parallelFor(len(raw), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			positions[i] = norm.Apply(raw[i])
		}
	})

	c := &clusterer{positions: positions, indices: indices, cells: make([]uint32, len(positions))}
	grid, step := c.search(minGrid, target/3)
	return c.collapse(grid), math.Sqrt(3) / float64(step), nil
}

// gridLadder returns minGrid followed by the resolutions round(2^(k/2)) above
// it, up to maxGrid. The ladder depends only on minGrid.
func gridLadder(minGrid int) []int {
	ladder := []int{minGrid}
	for k := 0; ; k++ {
		g := int(math.Round(math.Pow(2, float64(k)/2)))
		if g > maxGrid {
			return ladder
		}
		if g > ladder[len(ladder)-1] {
			ladder = append(ladder, g)
		}
	}
}

// clusterer evaluates grid resolutions over normalized positions.
type clusterer struct {
	positions []r3.Vec
	indices   []uint32
	cells     []uint32
}

func gridCell(v float64, g int) uint32 {
	c := int(v * float64(g))
	if c < 0 {
		return 0
	}
	if c >= g {
		return uint32(g - 1)
	}
	return uint32(c)
}

// assign computes the cell id of every vertex for grid resolution g.
func (c *clusterer) assign(g int) {
	parallelFor(len(c.positions), func(_, lo, hi int) {
		for i := lo; i < hi; i++ {
			p := c.positions[i]
			x, y, z := gridCell(p.X, g), gridCell(p.Y, g), gridCell(p.Z, g)
			c.cells[i] = x + uint32(g)*(y+uint32(g)*z)
		}
	})
}

// count returns the number of triangles whose corners land in three distinct
// cells for grid resolution g.
func (c *clusterer) count(g int) int {
	c.assign(g)
	tris := len(c.indices) / 3
	parts := shards(tris)
	counts := make([]int, len(parts))
	parallelFor(tris, func(shard, lo, hi int) {
		n := 0
		for t := lo; t < hi; t++ {
			a, b, d := c.cells[c.indices[3*t]], c.cells[c.indices[3*t+1]], c.cells[c.indices[3*t+2]]
			if a != b && b != d && a != d {
				n++
			}
		}
		counts[shard] = n
	})
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// search walks the ladder from coarse to fine and stops at the first step
// whose triangle count exceeds targetTris. It returns the grid used for
// clustering, refined by bisection between the last passing step and the
// failing one, and that last passing step. Triangle counts are not monotone
// in the resolution; stopping at the first failure keeps the step
// non-increasing as targetTris falls. When even minGrid exceeds targetTris,
// minGrid is used.
func (c *clusterer) search(minGrid, targetTris int) (grid, step int) {
	ladder := gridLadder(minGrid)
	if c.count(ladder[0]) > targetTris {
		return minGrid, minGrid
	}
	k := 1
	for k < len(ladder) && c.count(ladder[k]) <= targetTris {
		k++
	}
	if k == len(ladder) {
		return ladder[k-1], ladder[k-1]
	}

	// Invariant: count(lo) <= targetTris < count(hi).
	lo, hi := ladder[k-1], ladder[k]
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if c.count(mid) <= targetTris {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, ladder[k-1]
}

// collapse clusters vertices on grid g and rewrites the triangle list.
func (c *clusterer) collapse(g int) []uint32 {
	c.assign(g)

	referenced := make([]bool, len(c.positions))
	for _, v := range c.indices {
		referenced[v] = true
	}

	// Dense slots per occupied cell, in first-seen vertex order.
	slot := make(map[uint32]int)
	vertexSlot := make([]int, len(c.positions))
	var sums []r3.Vec
	var counts []float64
	for v, ok := range referenced {
		if !ok {
			continue
		}
		s, seen := slot[c.cells[v]]
		if !seen {
			s = len(sums)
			slot[c.cells[v]] = s
			sums = append(sums, r3.Vec{})
			counts = append(counts, 0)
		}
		vertexSlot[v] = s
		sums[s] = r3.Add(sums[s], c.positions[v])
		counts[s]++
	}

	reps := make([]uint32, len(sums))
	best := make([]float64, len(sums))
	for s := range best {
		best[s] = math.Inf(1)
	}
	for v, ok := range referenced {
		if !ok {
			continue
		}
		s := vertexSlot[v]
		centroid := r3.Scale(1/counts[s], sums[s])
		if d := r3.Norm2(r3.Sub(c.positions[v], centroid)); d < best[s] {
			best[s] = d
			reps[s] = uint32(v)
		}
	}

	out := make([]uint32, 0, len(c.indices))
	seen := make(map[[3]uint32]struct{})
	for t := 0; t+2 < len(c.indices); t += 3 {
		a := reps[vertexSlot[c.indices[t]]]
		b := reps[vertexSlot[c.indices[t+1]]]
		d := reps[vertexSlot[c.indices[t+2]]]
		if a == b || b == d || a == d {
			continue
		}
		key := rotatedTriangle(a, b, d)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a, b, d)
	}
	return out
}

// rotatedTriangle rotates a triangle so its smallest index comes first,
// keeping the winding.
func rotatedTriangle(a, b, c uint32) [3]uint32 {
	switch {
	case a <= b && a <= c:
		return [3]uint32{a, b, c}
	case b <= a && b <= c:
		return [3]uint32{b, c, a}
	default:
		return [3]uint32{c, a, b}
	}
}
