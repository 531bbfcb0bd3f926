package param

import (
	"math"

	"github.com/gogpu/autoremesh/geom"
)

// RelativeHeights returns a signed flatness measure per vertex.
//
// For every vertex the neighbourhood reachable through faces within five
// average edge lengths is projected onto the vertex normal; the height is
// the span of the projections. The sign is positive when the neighbourhood
// drops below the tangent plane at least as far as it rises above it, and
// negative otherwise. Heights are
// divided by the largest one so the result lies in [-1, 1]; a flat mesh
// yields all zeros.
func RelativeHeights(vertices []geom.Vec3, triangles [][3]int) []float64 {
	normals := VertexNormals(vertices, triangles)
	adjacent := vertexNeighbors(len(vertices), triangles)
	avg := averageEdgeLength(vertices, triangles)
	maxSq := (avg * 5) * (avg * 5)

	heights := make([]float64, len(vertices))
	visited := make([]int, len(vertices))
	for i := range visited {
		visited[i] = -1
	}
	var queue []int
	maxHeight := 0.0
	for v, p := range vertices {
		n := normals[v]
		low, high := 0.0, 0.0
		queue = append(queue[:0], v)
		visited[v] = v
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			if vertices[u].Sub(p).LengthSq() > maxSq {
				continue
			}
			d := vertices[u].Sub(p).Dot(n)
			low = math.Min(low, d)
			high = math.Max(high, d)
			for _, w := range adjacent[u] {
				if visited[w] != v {
					visited[w] = v
					queue = append(queue, w)
				}
			}
		}
		h := high - low
		maxHeight = math.Max(maxHeight, h)
		if high <= math.Abs(low) {
			heights[v] = h
		} else {
			heights[v] = -h
		}
	}
	if maxHeight > 0 {
		for i := range heights {
			heights[i] /= maxHeight
		}
	}
	return heights
}

// VertexNormals returns area-weighted unit vertex normals.
func VertexNormals(vertices []geom.Vec3, triangles [][3]int) []geom.Vec3 {
	normals := make([]geom.Vec3, len(vertices))
	for _, t := range triangles {
		a, b, c := vertices[t[0]], vertices[t[1]], vertices[t[2]]
		n := b.Sub(a).Cross(c.Sub(a))
		for _, v := range t {
			normals[v] = normals[v].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

func vertexNeighbors(n int, triangles [][3]int) [][]int {
	adj := make([][]int, n)
	add := func(a, b int) {
		for _, x := range adj[a] {
			if x == b {
				return
			}
		}
		adj[a] = append(adj[a], b)
	}
	for _, t := range triangles {
		for i := range 3 {
			a, b := t[i], t[(i+1)%3]
			add(a, b)
			add(b, a)
		}
	}
	return adj
}

func averageEdgeLength(vertices []geom.Vec3, triangles [][3]int) float64 {
	if len(triangles) == 0 {
		return 0
	}
	var sum float64
	for _, t := range triangles {
		for i := range 3 {
			sum += vertices[t[i]].Sub(vertices[t[(i+1)%3]]).Length()
		}
	}
	return sum / float64(3*len(triangles))
}
