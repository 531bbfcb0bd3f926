// Package halfedge is an index-based half-edge triangle mesh with per-corner
// UV storage.
//
// Half-edge h belongs to face h/3 and starts at corner h%3 of that face, so
// faces, corners and half-edges share one numbering and no pointers are
// needed. UVs live on half-edges because a seamless parameterization is
// discontinuous across its cut graph.
package halfedge

import (
	"errors"
	"fmt"

	"github.com/gogpu/autoremesh/geom"
)

// None marks a missing half-edge.
const None = -1

// ErrBadIndex is returned by New for triangles referencing missing vertices.
var ErrBadIndex = errors.New("halfedge: triangle references a missing vertex")

// Mesh is a triangle mesh with half-edge connectivity.
type Mesh struct {
	Vertices []geom.Vec3
	Faces    [][3]int

	opposite []int
	outgoing [][]int
	uv       []geom.Vec2
}

// New builds a mesh from an indexed triangle list. Triangles are copied.
// When a directed edge appears in more than one triangle only the last one
// is linked to its opposite.
func New(vertices []geom.Vec3, triangles [][3]int) (*Mesh, error) {
	m := &Mesh{
		Vertices: vertices,
		Faces:    make([][3]int, len(triangles)),
		opposite: make([]int, 3*len(triangles)),
		outgoing: make([][]int, len(vertices)),
		uv:       make([]geom.Vec2, 3*len(triangles)),
	}
	directed := make(map[[2]int]int, 3*len(triangles))
	for f, t := range triangles {
		for _, v := range t {
			if v < 0 || v >= len(vertices) {
				return nil, fmt.Errorf("%w: face %d vertex %d", ErrBadIndex, f, v)
			}
		}
		m.Faces[f] = t
		for i := range 3 {
			h := 3*f + i
			m.opposite[h] = None
			directed[[2]int{t[i], t[(i+1)%3]}] = h
			m.outgoing[t[i]] = append(m.outgoing[t[i]], h)
		}
	}
	for f, t := range triangles {
		for i := range 3 {
			h := 3*f + i
			if o, ok := directed[[2]int{t[(i+1)%3], t[i]}]; ok {
				m.opposite[h] = o
			}
		}
	}
	// Drop links that are not mutual.
	for h, o := range m.opposite {
		if o != None && m.opposite[o] != h {
			m.opposite[h] = None
		}
	}
	return m, nil
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int { return len(m.Vertices) }

// FaceCount returns the number of faces.
func (m *Mesh) FaceCount() int { return len(m.Faces) }

// HalfEdgeCount returns the number of half-edges.
func (m *Mesh) HalfEdgeCount() int { return 3 * len(m.Faces) }

// Face returns the face of half-edge h.
func Face(h int) int { return h / 3 }

// Next returns the next half-edge around the face of h.
func Next(h int) int { return h - h%3 + (h%3+1)%3 }

// Prev returns the previous half-edge around the face of h.
func Prev(h int) int { return h - h%3 + (h%3+2)%3 }

// Start returns the vertex h starts at.
func (m *Mesh) Start(h int) int { return m.Faces[h/3][h%3] }

// End returns the vertex h points to.
func (m *Mesh) End(h int) int { return m.Start(Next(h)) }

// Opposite returns the twin of h, or None on the boundary.
func (m *Mesh) Opposite(h int) int { return m.opposite[h] }

// Outgoing returns the half-edges starting at v. The slice must not be
// modified.
func (m *Mesh) Outgoing(v int) []int { return m.outgoing[v] }

// IsBoundaryVertex reports whether v touches a half-edge without a twin.
func (m *Mesh) IsBoundaryVertex(v int) bool {
	for _, h := range m.outgoing[v] {
		if m.opposite[h] == None || m.opposite[Prev(h)] == None {
			return true
		}
	}
	return len(m.outgoing[v]) == 0
}

// FaceNormal returns the unit normal of face f.
func (m *Mesh) FaceNormal(f int) geom.Vec3 {
	t := m.Faces[f]
	return geom.TriangleNormal(m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]])
}

// UV returns the parameter value stored at the start corner of h.
func (m *Mesh) UV(h int) geom.Vec2 { return m.uv[h] }

// SetUV stores the parameter value at the start corner of h.
func (m *Mesh) SetUV(h int, uv geom.Vec2) { m.uv[h] = uv }

// FaceUV returns the three corner UVs of face f.
func (m *Mesh) FaceUV(f int) [3]geom.Vec2 {
	return [3]geom.Vec2{m.uv[3*f], m.uv[3*f+1], m.uv[3*f+2]}
}

// SetFaceUV stores the three corner UVs of face f.
func (m *Mesh) SetFaceUV(f int, uv [3]geom.Vec2) {
	copy(m.uv[3*f:3*f+3], uv[:])
}

// CornerUVs returns a copy of all corner UVs, three per face.
func (m *Mesh) CornerUVs() [][3]geom.Vec2 {
	out := make([][3]geom.Vec2, len(m.Faces))
	for f := range m.Faces {
		out[f] = m.FaceUV(f)
	}
	return out
}
