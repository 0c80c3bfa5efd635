package meshopt

import (
	"fmt"
	"math"
)

// Vertex cache simulation limits.
const (
	DefaultCacheSize = 16
	MinCacheSize     = 3
	MaxCacheSize     = 256
)

// valenceWeight scales the live-triangle term of the triangle score. The term
// sums to less than one, so an extra cache hit always wins.
const valenceWeight = 0.3

// VertexCacheStats summarizes a FIFO cache simulation of an index buffer.
type VertexCacheStats struct {
	VerticesTransformed int
	ACMR                float64 // misses per triangle
	ATVR                float64 // misses per referenced vertex; 1 is optimal
}

// fifoCache is a FIFO transform cache keyed by insertion timestamps. The
// vertex inserted at time t lives in ring slot t%size until overwritten.
type fifoCache struct {
	size  uint32
	time  uint32
	stamp []uint32
	ring  []uint32
}

func newFIFOCache(vertexCount, size int) *fifoCache {
	return &fifoCache{
		size:  uint32(size),
		time:  uint32(size) + 1,
		stamp: make([]uint32, vertexCount),
		ring:  make([]uint32, size),
	}
}

func (c *fifoCache) contains(v uint32) bool {
	return c.time-c.stamp[v] <= c.size
}

// touch references v and reports whether it was a miss.
func (c *fifoCache) touch(v uint32) bool {
	if c.contains(v) {
		return false
	}
	c.stamp[v] = c.time
	c.ring[c.time%c.size] = v
	c.time++
	return true
}

func validateCacheSize(cacheSize int) error {
	if cacheSize < MinCacheSize || cacheSize > MaxCacheSize {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrCacheSize, cacheSize, MinCacheSize, MaxCacheSize)
	}
	return nil
}

// AnalyzeVertexCache simulates a FIFO cache of cacheSize entries over indices.
func AnalyzeVertexCache(indices []uint32, vertexCount, cacheSize int) (VertexCacheStats, error) {
	if err := validateCacheSize(cacheSize); err != nil {
		return VertexCacheStats{}, err
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return VertexCacheStats{}, err
	}
	if len(indices) == 0 {
		return VertexCacheStats{}, nil
	}
	return analyze(indices, vertexCount, cacheSize), nil
}

func analyze(indices []uint32, vertexCount, cacheSize int) VertexCacheStats {
	cache := newFIFOCache(vertexCount, cacheSize)
	used := make([]bool, vertexCount)
	unique := 0
	misses := 0
	for _, v := range indices {
		if cache.touch(v) {
			misses++
		}
		if !used[v] {
			used[v] = true
			unique++
		}
	}
	return VertexCacheStats{
		VerticesTransformed: misses,
		ACMR:                float64(misses) / float64(len(indices)/3),
		ATVR:                float64(misses) / float64(unique),
	}
}

// OptimizeVertexCache reorders triangles for a cache of DefaultCacheSize
// entries. See OptimizeVertexCacheSize.
func OptimizeVertexCache(indices []uint32, vertexCount int) ([]uint32, error) {
	return OptimizeVertexCacheSize(indices, vertexCount, DefaultCacheSize)
}

// OptimizeVertexCacheSize returns the triangles of indices in an order that
// reduces misses of a FIFO transform cache of cacheSize entries. Triangles
// keep their winding. The result never simulates worse than the input order.
func OptimizeVertexCacheSize(indices []uint32, vertexCount, cacheSize int) ([]uint32, error) {
	if err := validateCacheSize(cacheSize); err != nil {
		return nil, err
	}
	if err := validateIndices(indices, vertexCount); err != nil {
		return nil, err
	}
	if len(indices) == 0 {
		return []uint32{}, nil
	}

	out := reorderTriangles(indices, vertexCount, cacheSize)
	before := analyze(indices, vertexCount, cacheSize)
	after := analyze(out, vertexCount, cacheSize)
	if after.VerticesTransformed > before.VerticesTransformed {
		copy(out, indices)
	}
	return out, nil
}

func reorderTriangles(indices []uint32, vertexCount, cacheSize int) []uint32 {
	tris := len(indices) / 3
	offsets, adjacent := vertexTriangles(indices, vertexCount)

	live := make([]uint32, vertexCount)
	for v := range live {
		live[v] = offsets[v+1] - offsets[v]
	}
	valence := func(v uint32) float64 {
		if live[v] == 0 {
			return 0
		}
		return 1 / math.Sqrt(float64(live[v]))
	}

	cache := newFIFOCache(vertexCount, cacheSize)
	emitted := make([]bool, tris)
	out := make([]uint32, 0, len(indices))
	next := 0

	for len(out) < len(indices) {
		best := -1
		bestScore := 0.0
		for _, v := range cache.ring {
			if !cache.contains(v) {
				continue
			}
			for _, t := range adjacent[offsets[v]:offsets[v+1]] {
				if emitted[t] {
					continue
				}
				tri := indices[3*t : 3*t+3]
				score := 0.0
				for _, w := range tri {
					if cache.contains(w) {
						score++
					}
					score += valenceWeight / 3 * valence(w)
				}
				if best < 0 || score > bestScore || (score == bestScore && int(t) < best) {
					best, bestScore = int(t), score
				}
			}
		}

		if best < 0 {
			for emitted[next] {
				next++
			}
			best = next
		}

		emitted[best] = true
		tri := indices[3*best : 3*best+3]
		out = append(out, tri...)
		for _, w := range tri {
			cache.touch(w)
		}
		if !isDegenerateTriangle(tri[0], tri[1], tri[2]) {
			for _, w := range tri {
				live[w]--
			}
		}
	}
	return out
}
