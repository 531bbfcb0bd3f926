// Package island splits a triangle soup into edge-connected components.
package island

import "github.com/gogpu/autoremesh/geom"

// MinTriangles is the smallest island kept by Split. Smaller components are
// slivers that give the parameterization nothing to work with.
const MinTriangles = 4

// Island is an edge-connected set of triangles in the caller's (global)
// vertex numbering.
type Island struct {
	// Triangles are the island's triangles, in input order of discovery.
	Triangles [][3]int
}

// Split partitions triangles into edge-connected islands.
//
// Two triangles are connected when one holds the directed edge (a, b) and
// the other holds (b, a). A directed edge shared by several triangles maps to
// the last one; such non-manifold input is not explored further.
// Islands with fewer than MinTriangles triangles are dropped.
// The returned islands are ordered by their lowest triangle index.
func Split(triangles [][3]int) []Island {
	edgeToFace := make(map[[2]int]int, len(triangles)*3)
	for f, t := range triangles {
		for i := range 3 {
			edgeToFace[[2]int{t[i], t[(i+1)%3]}] = f
		}
	}

	visited := make([]bool, len(triangles))
	var islands []Island
	var queue []int
	for seed := range triangles {
		if visited[seed] {
			continue
		}
		var is Island
		queue = append(queue[:0], seed)
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			if visited[f] {
				continue
			}
			visited[f] = true
			t := triangles[f]
			for i := range 3 {
				opposite, ok := edgeToFace[[2]int{t[(i+1)%3], t[i]}]
				if !ok || visited[opposite] {
					continue
				}
				queue = append(queue, opposite)
			}
			is.Triangles = append(is.Triangles, t)
		}
		if len(is.Triangles) < MinTriangles {
			continue
		}
		islands = append(islands, is)
	}
	return islands
}

// Local is an island re-indexed onto its own compact vertex array.
type Local struct {
	Vertices  []geom.Vec3
	Triangles [][3]int
}

// Pick copies the island's vertices out of vertices, numbering them in
// first-seen order.
func (is Island) Pick(vertices []geom.Vec3) Local {
	local := Local{Triangles: make([][3]int, len(is.Triangles))}
	oldToNew := make(map[int]int, len(is.Triangles))
	for f, t := range is.Triangles {
		for i, v := range t {
			n, ok := oldToNew[v]
			if !ok {
				n = len(local.Vertices)
				oldToNew[v] = n
				local.Vertices = append(local.Vertices, vertices[v])
			}
			local.Triangles[f][i] = n
		}
	}
	return local
}

// Bounds returns the centre of the bounding box of vertices and its largest
// half-extent along any axis.
func Bounds(vertices []geom.Vec3) (origin geom.Vec3, halfExtent float64) {
	b := geom.BoundsOf(vertices)
	return b.Center(), b.MaxHalfExtent()
}
