package param

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
)

// Sentinel errors for the param package.
var (
	// ErrBudgetNotMet is returned by Sweep when no constraint ratio in range
	// keeps the singularity count within the budget.
	ErrBudgetNotMet = errors.New("param: singularity budget not met")

	// ErrSolveFailed is returned when the solver's output does not match
	// the mesh.
	ErrSolveFailed = errors.New("param: solve failed")
)

// Range is a pair of constraint ratios. Low selects the flatness limit;
// High bounds the ratio sweep from above.
type Range struct {
	Low, High float64
}

// DefaultRatio is the constraint ratio range used when none is configured.
var DefaultRatio = Range{Low: 0.5, High: 1.0}

// Parameters configure a Parameterizer.
type Parameters struct {
	GradientSize float64
	// ConstrainOnFlatArea selects flat vertices (|height| below the limit)
	// as constraint seeds; otherwise curved vertices are used.
	ConstrainOnFlatArea bool
}

// Parameterizer turns a half-edge mesh into a UV parameterization guided by
// curvature directions.
//
// Relative heights, principal directions and the flatness order are
// computed once in New and kept as side tables indexed by vertex, so the
// same Parameterizer can be queried for many constraint sets.
type Parameterizer struct {
	mesh    *halfedge.Mesh
	params  Parameters
	solver  Solver
	heights []float64
	pd1     []geom.Vec3
	pd2     []geom.Vec3
	// flatness lists vertices by ascending |height|.
	flatness []int
	valences []int
}

// New prepares a Parameterizer for mesh.
func New(mesh *halfedge.Mesh, params Parameters, solver Solver) *Parameterizer {
	p := &Parameterizer{
		mesh:    mesh,
		params:  params,
		solver:  solver,
		heights: RelativeHeights(mesh.Vertices, mesh.Faces),
	}
	p.pd1, p.pd2 = PrincipalDirections(mesh.Vertices, mesh.Faces)
	p.flatness = make([]int, mesh.VertexCount())
	for i := range p.flatness {
		p.flatness[i] = i
	}
	slices.SortStableFunc(p.flatness, func(a, b int) int {
		return cmp.Compare(math.Abs(p.heights[a]), math.Abs(p.heights[b]))
	})
	return p
}

// LimitRelativeHeight returns the |height| of the vertex ranked at
// ratio.Low of the flatness order, so that roughly that fraction of the
// vertices is flatter than the limit. A rank past the end yields 1.
func (p *Parameterizer) LimitRelativeHeight(ratio Range) float64 {
	rank := int(float64(len(p.flatness)) * ratio.Low)
	if rank < 0 || rank >= len(p.flatness) {
		return 1
	}
	return math.Abs(p.heights[p.flatness[rank]])
}

// eligible reports whether vertex v may seed a constraint under limit.
func (p *Parameterizer) eligible(v int, limit float64) bool {
	h := math.Abs(p.heights[v])
	if p.params.ConstrainOnFlatArea {
		return h < limit
	}
	return h >= limit
}

// PrepareConstraints picks at most one constraint per face: the first
// corner, in face order, that is eligible under limit and has well-defined
// principal directions.
func (p *Parameterizer) PrepareConstraints(limit float64) Constraints {
	var c Constraints
	for f, t := range p.mesh.Faces {
		for _, v := range t {
			if !p.eligible(v, limit) || p.pd1[v].IsZero() || p.pd2[v].IsZero() {
				continue
			}
			c.Faces = append(c.Faces, f)
			c.Dir1 = append(c.Dir1, p.pd1[v])
			c.Dir2 = append(c.Dir2, p.pd2[v])
			break
		}
	}
	return c
}

func (p *Parameterizer) problem(c Constraints) Problem {
	return Problem{
		Vertices:     p.mesh.Vertices,
		Triangles:    p.mesh.Faces,
		Constraints:  c,
		GradientSize: p.params.GradientSize,
	}
}

// Singularities runs the cheap trial: it returns the singularity count the
// constraints would produce without touching the mesh UVs.
func (p *Parameterizer) Singularities(ctx context.Context, c Constraints) (int, error) {
	return p.solver.Singularities(ctx, p.problem(c))
}

// Solve runs the full parameterization, stores the corner UVs on the mesh
// and records target valences. It returns the singularity count.
func (p *Parameterizer) Solve(ctx context.Context, c Constraints) (int, error) {
	sol, err := p.solver.Solve(ctx, p.problem(c))
	if err != nil {
		return 0, err
	}
	if len(sol.UV) != p.mesh.FaceCount() {
		return 0, fmt.Errorf("%w: %d face UVs for %d faces", ErrSolveFailed, len(sol.UV), p.mesh.FaceCount())
	}
	for f, uv := range sol.UV {
		p.mesh.SetFaceUV(f, uv)
	}
	p.valences = sol.Valences
	return sol.Singularities, nil
}

// Valences returns the target vertex valences of the last Solve, or nil.
func (p *Parameterizer) Valences() []int { return p.valences }
