// Package field computes smooth 4-RoSy cross fields on triangle meshes.
//
// A cross field is stored as one representative angle per face, measured
// in the face's local frame. Angles in neighbouring faces are compared by
// parallel transport across the shared edge.
package field

import (
	"math"
	"slices"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
)

const quarter = math.Pi / 2

// Frame is an orthonormal tangent basis of a face.
type Frame struct {
	E1, E2, N geom.Vec3
}

// Frames returns a frame per face with E1 along the face's first edge.
func Frames(m *halfedge.Mesh) []Frame {
	frames := make([]Frame, m.FaceCount())
	for f, t := range m.Faces {
		p0, p1, p2 := m.Vertices[t[0]], m.Vertices[t[1]], m.Vertices[t[2]]
		n := p1.Sub(p0).Cross(p2.Sub(p0)).Normalize()
		e1 := p1.Sub(p0).Normalize()
		if n.IsZero() || e1.IsZero() {
			n = geom.V3(0, 0, 1)
			e1, _ = geom.Orthonormal(n)
		}
		frames[f] = Frame{E1: e1, E2: n.Cross(e1), N: n}
	}
	return frames
}

// Angle returns the angle of the tangent vector d in frame fr.
func (fr Frame) Angle(d geom.Vec3) float64 {
	return math.Atan2(d.Dot(fr.E2), d.Dot(fr.E1))
}

// Direction returns the unit tangent vector at angle theta.
func (fr Frame) Direction(theta float64) geom.Vec3 {
	return fr.E1.Mul(math.Cos(theta)).Add(fr.E2.Mul(math.Sin(theta)))
}

// Field is a cross field over a mesh.
type Field struct {
	Mesh   *halfedge.Mesh
	Frames []Frame
	// Theta holds one representative angle per face.
	Theta []float64
}

// edgeVector returns the 3D vector of half-edge h.
func (fd *Field) edgeVector(h int) geom.Vec3 {
	m := fd.Mesh
	return m.Vertices[m.End(h)].Sub(m.Vertices[m.Start(h)])
}

// Transport returns the angle of face h/3 carried across half-edge h into
// the frame of the opposite face. h must have an opposite.
func (fd *Field) Transport(h int, theta float64) float64 {
	e := fd.edgeVector(h)
	f := halfedge.Face(h)
	g := halfedge.Face(fd.Mesh.Opposite(h))
	return theta - fd.Frames[f].Angle(e) + fd.Frames[g].Angle(e)
}

// Smooth computes a cross field that is as smooth as possible while
// keeping the faces in fixed at the given angles.
//
// The field starts from a breadth-first propagation out of the fixed faces
// (or face 0 with angle 0 when there are none) and is then relaxed by
// Gauss-Seidel sweeps on the fourth-power complex representation, stopping
// when no angle moves by more than 1e-7 or after maxSweeps sweeps.
func Smooth(m *halfedge.Mesh, frames []Frame, fixed map[int]float64, maxSweeps int) *Field {
	fd := &Field{Mesh: m, Frames: frames, Theta: make([]float64, m.FaceCount())}
	seen := make([]bool, m.FaceCount())
	var queue []int
	for f, a := range fixed {
		fd.Theta[f] = a
		seen[f] = true
		queue = append(queue, f)
	}
	// Deterministic seed order.
	slices.Sort(queue)
	propagate := func() {
		for len(queue) > 0 {
			f := queue[0]
			queue = queue[1:]
			for i := range 3 {
				h := 3*f + i
				o := m.Opposite(h)
				if o == halfedge.None {
					continue
				}
				g := halfedge.Face(o)
				if seen[g] {
					continue
				}
				seen[g] = true
				fd.Theta[g] = fd.Transport(h, fd.Theta[f])
				queue = append(queue, g)
			}
		}
	}
	propagate()
	for f := range seen {
		if !seen[f] {
			seen[f] = true
			queue = append(queue, f)
			propagate()
		}
	}

	for range maxSweeps {
		moved := 0.0
		for f := range m.FaceCount() {
			if _, ok := fixed[f]; ok {
				continue
			}
			var sx, sy float64
			for i := range 3 {
				o := m.Opposite(3*f + i)
				if o == halfedge.None {
					continue
				}
				a := 4 * fd.Transport(o, fd.Theta[halfedge.Face(o)])
				sx += math.Cos(a)
				sy += math.Sin(a)
			}
			if sx*sx+sy*sy < 1e-24 {
				continue
			}
			next := math.Atan2(sy, sx) / 4
			d := math.Abs(geom.WrapAngle(next-fd.Theta[f], quarter))
			if d > moved {
				moved = d
			}
			fd.Theta[f] = next
		}
		if moved < 1e-7 {
			break
		}
	}
	return fd
}

// Mismatch returns the period jump across half-edge h: the number of
// quarter turns separating the transported field of h's face from the field
// of the opposite face, in [0, 4).
func (fd *Field) Mismatch(h int) int {
	o := fd.Mesh.Opposite(h)
	t := fd.Transport(h, fd.Theta[halfedge.Face(h)])
	k := int(math.Round((fd.Theta[halfedge.Face(o)] - t) / quarter))
	return ((k % 4) + 4) % 4
}
