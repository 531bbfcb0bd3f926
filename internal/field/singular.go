package field

import (
	"math"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
)

// Index returns the singularity index of vertex v in quarter turns (0 for a
// regular vertex, +1 for a valence-3 vertex, -1 for valence 5). Boundary
// vertices report 0 and ok=false.
//
// The index is (ΣΔ + K) / 2π, where Δ are the per-edge field rotations
// around the one-ring, each reduced to (-π/4, π/4], and K is the angle
// defect at v.
func (fd *Field) Index(v int) (quarters int, ok bool) {
	m := fd.Mesh
	out := m.Outgoing(v)
	if len(out) == 0 {
		return 0, false
	}
	start := out[0]
	h := start
	var sum, angles float64
	for range len(out) + 1 {
		in := halfedge.Prev(h)
		angles += cornerAngle(m, h)
		next := m.Opposite(in)
		if next == halfedge.None {
			return 0, false
		}
		t := fd.Transport(in, fd.Theta[halfedge.Face(h)])
		sum += geom.WrapAngle(fd.Theta[halfedge.Face(next)]-t, quarter)
		h = next
		if h == start {
			k := 2*math.Pi - angles
			return int(math.Round(2 * (sum + k) / math.Pi)), true
		}
	}
	// The star of v is not a disk.
	return 0, false
}

func cornerAngle(m *halfedge.Mesh, h int) float64 {
	p := m.Vertices[m.Start(h)]
	a := m.Vertices[m.End(h)].Sub(p)
	b := m.Vertices[m.Start(halfedge.Prev(h))].Sub(p)
	return a.AngleTo(b)
}

// Singularities returns the per-vertex index in quarter turns and the number
// of singular vertices.
func (fd *Field) Singularities() (indices []int, count int) {
	indices = make([]int, fd.Mesh.VertexCount())
	for v := range indices {
		q, ok := fd.Index(v)
		if !ok {
			continue
		}
		indices[v] = q
		if q != 0 {
			count++
		}
	}
	return indices, count
}

// Comb rotates face angles by quarter turns along a breadth-first spanning
// tree so that tree edges carry no period jump, and returns, per half-edge,
// whether the edge still has a non-zero jump and must be cut.
func (fd *Field) Comb() (cut []bool) {
	m := fd.Mesh
	seen := make([]bool, m.FaceCount())
	var queue []int
	for root := range seen {
		if seen[root] {
			continue
		}
		seen[root] = true
		queue = append(queue[:0], root)
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
				t := fd.Transport(h, fd.Theta[f])
				k := math.Round((t - fd.Theta[g]) / quarter)
				fd.Theta[g] += k * quarter
				queue = append(queue, g)
			}
		}
	}

	cut = make([]bool, m.HalfEdgeCount())
	for h := range cut {
		o := m.Opposite(h)
		if o == halfedge.None || o < h {
			continue
		}
		if fd.Mismatch(h) != 0 {
			cut[h] = true
			cut[o] = true
		}
	}
	return cut
}
