package meshopt

import "gonum.org/v1/gonum/spatial/r3"

// collapse is a candidate half-edge collapse of src into dst.
type collapse struct {
	Cost     float64 // normalized squared error
	Src, Dst uint32
	SrcGen   uint32 // generation stamps at scoring time
	DstGen   uint32
	Pos      r3.Vec    // position of the merged vertex (normalized space)
	Attr     []float64 // weighted attributes of the merged vertex, if any
}

// collapseQueue is a min-heap of collapse candidates for container/heap.
// Ties break on the lower source and then destination vertex so runs are
// reproducible.
type collapseQueue []*collapse

func (q collapseQueue) Len() int { return len(q) }

func (q collapseQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.Cost != b.Cost {
		return a.Cost < b.Cost
	}
	if a.Src != b.Src {
		return a.Src < b.Src
	}
	return a.Dst < b.Dst
}

func (q collapseQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *collapseQueue) Push(x interface{}) {
	*q = append(*q, x.(*collapse))
}

func (q *collapseQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	*q = old[0 : n-1]
	return c
}
