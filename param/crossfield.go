package param

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
	"github.com/gogpu/autoremesh/internal/field"
	"github.com/gogpu/autoremesh/internal/sparse"
)

// CrossFieldSolver is the built-in Solver.
//
// It relaxes a 4-RoSy field through the constrained faces, counts
// singularities from the field's one-ring rotation, combs the field and cuts
// the mesh along the remaining period jumps, then integrates the field into
// per-corner UVs by least squares. The result is not seamless across cuts;
// quads near cut edges may be lost during extraction.
type CrossFieldSolver struct {
	// SmoothingSweeps bounds field relaxation; 0 selects 200.
	SmoothingSweeps int
	// IgnoreBoundary disables aligning the field with boundary edges of
	// unconstrained faces.
	IgnoreBoundary bool
}

func (s CrossFieldSolver) field(p Problem) (*field.Field, *halfedge.Mesh, error) {
	m, err := halfedge.New(p.Vertices, p.Triangles)
	if err != nil {
		return nil, nil, err
	}
	frames := field.Frames(m)
	fixed := make(map[int]float64, p.Constraints.Len())
	for i, f := range p.Constraints.Faces {
		fixed[f] = frames[f].Angle(p.Constraints.Dir1[i])
	}
	if !s.IgnoreBoundary {
		for h := range m.HalfEdgeCount() {
			f := halfedge.Face(h)
			if m.Opposite(h) != halfedge.None {
				continue
			}
			if _, ok := fixed[f]; ok {
				continue
			}
			e := m.Vertices[m.End(h)].Sub(m.Vertices[m.Start(h)])
			fixed[f] = frames[f].Angle(e)
		}
	}
	sweeps := s.SmoothingSweeps
	if sweeps <= 0 {
		sweeps = 200
	}
	return field.Smooth(m, frames, fixed, sweeps), m, nil
}

// Singularities implements Solver.
func (s CrossFieldSolver) Singularities(ctx context.Context, p Problem) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	fd, _, err := s.field(p)
	if err != nil {
		return 0, err
	}
	_, count := fd.Singularities()
	return count, nil
}

// Solve implements Solver.
func (s CrossFieldSolver) Solve(ctx context.Context, p Problem) (Solution, error) {
	if err := ctx.Err(); err != nil {
		return Solution{}, err
	}
	fd, _, err := s.field(p)
	if err != nil {
		return Solution{}, err
	}
	indices, count := fd.Singularities()
	cut := fd.Comb()

	extent := geom.BoundsOf(p.Vertices).MaxHalfExtent()
	if extent == 0 || p.GradientSize <= 0 {
		return Solution{}, fmt.Errorf("param: degenerate problem (extent %g, gradient size %g)", extent, p.GradientSize)
	}
	scale := p.GradientSize / extent

	uv, err := integrate(ctx, fd, cut, scale)
	if err != nil {
		return Solution{}, err
	}
	valences := make([]int, len(indices))
	for v, q := range indices {
		valences[v] = 4 - q
	}
	return Solution{UV: uv, Singularities: count, Valences: valences}, nil
}

// integrate solves for per-corner u and v whose gradients best match the
// combed field scaled by scale. Corners are shared across uncut interior
// edges; each connected patch is shifted so its first corner lands on
// integer coordinates.
func integrate(ctx context.Context, fd *field.Field, cut []bool, scale float64) ([][3]geom.Vec2, error) {
	m := fd.Mesh
	groups := newUnionFind(m.HalfEdgeCount())
	for h := range m.HalfEdgeCount() {
		o := m.Opposite(h)
		if o == halfedge.None || cut[h] {
			continue
		}
		// h = a->b in f, o = b->a in g.
		groups.union(h, halfedge.Next(o))
		groups.union(halfedge.Next(h), o)
	}
	index := make(map[int]int)
	corner := make([]int, m.HalfEdgeCount())
	for h := range corner {
		r := groups.find(h)
		id, ok := index[r]
		if !ok {
			id = len(index)
			index[r] = id
		}
		corner[h] = id
	}
	n := len(index)

	lap := sparse.NewBuilder(n)
	bu := make([]float64, n)
	bv := make([]float64, n)
	patches := newUnionFind(n)
	for f := range m.FaceCount() {
		fr := fd.Frames[f]
		d1 := fr.Direction(fd.Theta[f])
		d2 := fr.N.Cross(d1)
		for i := range 3 {
			h := 3*f + i
			gi, gj := corner[h], corner[halfedge.Next(h)]
			if gi == gj {
				continue
			}
			e := m.Vertices[m.End(h)].Sub(m.Vertices[m.Start(h)])
			du, dv := scale*e.Dot(d1), scale*e.Dot(d2)
			lap.Add(gi, gi, 1)
			lap.Add(gj, gj, 1)
			lap.Add(gi, gj, -1)
			lap.Add(gj, gi, -1)
			bu[gi] -= du
			bu[gj] += du
			bv[gi] -= dv
			bv[gj] += dv
			patches.union(gi, gj)
		}
	}
	mat := lap.Build()
	u := make([]float64, n)
	v := make([]float64, n)
	opts := sparse.CGOptions{Tolerance: 1e-10, MaxIterations: 20 * n}
	for axis, sys := range [2]struct{ b, x []float64 }{{bu, u}, {bv, v}} {
		iters, err := sparse.SolveCG(ctx, mat, sys.b, sys.x, opts)
		if errors.Is(err, sparse.ErrNotConverged) {
			slogger().Warn("param: integration did not converge, using approximate solution",
				"axis", axis, "iterations", iters, "unknowns", n)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("param: integrate axis %d: %w", axis, err)
		}
	}

	shiftU := make(map[int]float64)
	shiftV := make(map[int]float64)
	for g := range n {
		r := patches.find(g)
		if _, ok := shiftU[r]; !ok {
			shiftU[r] = math.Round(u[g]) - u[g]
			shiftV[r] = math.Round(v[g]) - v[g]
		}
	}
	uv := make([][3]geom.Vec2, m.FaceCount())
	for f := range uv {
		for i := range 3 {
			g := corner[3*f+i]
			r := patches.find(g)
			uv[f][i] = geom.V2(u[g]+shiftU[r], v[g]+shiftV[r])
		}
	}
	return uv, nil
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		uf.parent[rb] = ra
	} else {
		uf.parent[ra] = rb
	}
}
