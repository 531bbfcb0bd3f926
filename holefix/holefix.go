// Package holefix closes small rectangular holes in a quad mesh.
//
// Boundary loops are found on the triangulation implied by splitting every
// quad along its first diagonal. A loop of four edges becomes one quad. An
// even loop of up to MaxLoopLength edges is projected onto the plane of its
// adjacent faces, two corners are located with an angle heuristic, and the
// hole is filled with a rows×columns grid whose interior vertices come from
// a bilinear Coons patch over the four sides.
//
// The corner heuristic is best-effort. Corner angles come from geom.Angle2,
// which is unsigned, so a reflex 270° vertex looks the same as a 90° corner
// and an L-shaped loop may be misread. Loops it cannot classify are left
// open and listed in the Report.
package holefix

import (
	"fmt"
	"math"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/gogpu/autoremesh/geom"
)

// MaxLoopLength is the longest boundary loop the fixer tries to fill.
const MaxLoopLength = 14

// CornerToleranceDegrees is how far an interior angle may deviate from 90°
// for its vertex to count as a corner.
const CornerToleranceDegrees = 45.0

// Outcome classifies what happened to one boundary loop.
type Outcome int

const (
	// Filled means the loop was closed with new quads.
	Filled Outcome = iota
	// TooLong means the loop has more than MaxLoopLength edges.
	TooLong
	// OddLength means the loop cannot be tiled by quads.
	OddLength
	// Outer means the loop winds like an outer boundary rather than a hole.
	Outer
	// Degenerate means the projected loop has no area or no usable normal.
	Degenerate
	// NoCorner means no vertex of the loop is within tolerance of 90°.
	NoCorner
	// Inconsistent means the two sides found from the first corner do not
	// add up to half the loop.
	Inconsistent
	// OutsideLoop means an interpolated vertex fell outside the projected
	// loop.
	OutsideLoop
)

var outcomeNames = [...]string{
	Filled:       "filled",
	TooLong:      "too long",
	OddLength:    "odd length",
	Outer:        "outer boundary",
	Degenerate:   "degenerate",
	NoCorner:     "no corner",
	Inconsistent: "inconsistent sides",
	OutsideLoop:  "outside loop",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Hole describes one boundary loop.
type Hole struct {
	Loop    []int
	Outcome Outcome
	// Rows and Columns are the side lengths found by the corner search.
	Rows, Columns int
	// Quads is the number of quads added for the loop.
	Quads int
}

// Report lists every boundary loop examined by Fix.
type Report struct {
	Holes []Hole
}

// Filled returns the number of loops that were closed.
func (r Report) Filled() int {
	n := 0
	for _, h := range r.Holes {
		if h.Outcome == Filled {
			n++
		}
	}
	return n
}

// Unfillable returns the holes that looked fillable by size but were left
// open because the corner search failed.
func (r Report) Unfillable() []Hole {
	var out []Hole
	for _, h := range r.Holes {
		switch h.Outcome {
		case NoCorner, Inconsistent, OutsideLoop, Degenerate:
			out = append(out, h)
		}
	}
	return out
}

// Fix fills the small holes of the quad mesh and returns the extended
// vertex and quad lists. The inputs are not modified.
func Fix(vertices []geom.Vec3, quads [][4]int) ([]geom.Vec3, [][4]int, Report) {
	outV := slices.Clone(vertices)
	outQ := slices.Clone(quads)
	var report Report
	if len(quads) == 0 {
		return outV, outQ, report
	}

	owner := make(map[[2]int]int, 4*len(quads))
	for f, q := range quads {
		for i := range 4 {
			owner[[2]int{q[i], q[(i+1)%4]}] = f
		}
	}

	for _, loop := range BoundaryLoops(quads) {
		h := Hole{Loop: loop}
		switch {
		case len(loop) > MaxLoopLength:
			h.Outcome = TooLong
		case len(loop)%2 != 0:
			h.Outcome = OddLength
		default:
			var added [][4]int
			added, outV, h = fillLoop(outV, quads, owner, h)
			outQ = append(outQ, added...)
			h.Quads = len(added)
		}
		switch h.Outcome {
		case Filled:
			slogger().Debug("holefix: filled hole", "edges", len(loop), "quads", h.Quads)
		case NoCorner, Inconsistent, OutsideLoop, Degenerate:
			slogger().Warn("holefix: hole left open", "edges", len(loop), "reason", h.Outcome.String())
		}
		report.Holes = append(report.Holes, h)
	}
	return outV, outQ, report
}

// BoundaryLoops returns the boundary loops of the triangulation implied by
// quads, in the direction of the face edges that bound them. Loops start at
// their smallest vertex index and are ordered by it.
func BoundaryLoops(quads [][4]int) [][]int {
	directed := make(map[[2]int]int, 6*len(quads))
	for _, q := range quads {
		for _, t := range [2][3]int{{q[0], q[1], q[2]}, {q[0], q[2], q[3]}} {
			for i := range 3 {
				directed[[2]int{t[i], t[(i+1)%3]}]++
			}
		}
	}
	next := make(map[int]int)
	for e := range directed {
		if directed[[2]int{e[1], e[0]}] == 0 {
			next[e[0]] = e[1]
		}
	}
	starts := make([]int, 0, len(next))
	for v := range next {
		starts = append(starts, v)
	}
	slices.Sort(starts)

	var loops [][]int
	for _, s := range starts {
		if _, ok := next[s]; !ok {
			continue
		}
		loop := []int{s}
		closed := false
		for v := s; len(loop) <= len(starts); {
			w, ok := next[v]
			if !ok {
				break
			}
			delete(next, v)
			if w == s {
				closed = true
				break
			}
			loop = append(loop, w)
			v = w
		}
		if closed && len(loop) >= 3 {
			loops = append(loops, loop)
		}
	}
	return loops
}

// fillLoop tries to close one even loop of at most MaxLoopLength edges.
func fillLoop(vertices []geom.Vec3, quads [][4]int, owner map[[2]int]int, h Hole) ([][4]int, []geom.Vec3, Hole) {
	loop := h.Loop
	n := len(loop)

	var normal geom.Vec3
	for i := range n {
		if f, ok := owner[[2]int{loop[i], loop[(i+1)%n]}]; ok {
			normal = normal.Add(quadNormal(vertices, quads[f]))
		}
	}
	if normal.LengthSq() == 0 || !normal.IsFinite() {
		h.Outcome = Degenerate
		return nil, vertices, h
	}
	var origin geom.Vec3
	for _, v := range loop {
		origin = origin.Add(vertices[v])
	}
	origin = origin.Div(float64(n))
	u, w := geom.Orthonormal(normal)

	pts := make([]geom.Vec2, n)
	ring := make(orb.Ring, 0, n+1)
	for i, v := range loop {
		pts[i] = geom.Project(vertices[v], origin, u, w)
		ring = append(ring, orb.Point{pts[i].X, pts[i].Y})
	}
	ring = append(ring, ring[0])

	if math.Abs(planar.Area(ring)) <= 1e-12 {
		h.Outcome = Degenerate
		return nil, vertices, h
	}
	if ring.Orientation() == orb.CCW {
		h.Outcome = Outer
		return nil, vertices, h
	}

	if n == 4 {
		h.Outcome, h.Rows, h.Columns = Filled, 1, 1
		return [][4]int{{loop[3], loop[2], loop[1], loop[0]}}, vertices, h
	}

	start, rows, cols, outcome := findCorners(pts)
	h.Rows, h.Columns = rows, cols
	if outcome != Filled {
		h.Outcome = outcome
		return nil, vertices, h
	}
	added, grown, ok := coons(vertices, loop, ring, origin, u, w, start, rows, cols)
	if !ok {
		h.Outcome = OutsideLoop
		return nil, vertices, h
	}
	h.Outcome = Filled
	return added, grown, h
}

func quadNormal(vertices []geom.Vec3, q [4]int) geom.Vec3 {
	var n geom.Vec3
	for i := range 4 {
		n = n.Add(vertices[q[i]].Cross(vertices[q[(i+1)%4]]))
	}
	return n.Normalize()
}

// findCorners picks the vertex whose angle is closest to 90° and walks
// forwards and backwards from it to the next corner on each side. The
// forward distance is the number of columns, the backward distance the
// number of rows.
func findCorners(pts []geom.Vec2) (start, rows, cols int, outcome Outcome) {
	n := len(pts)
	deviation := make([]float64, n)
	for i := range n {
		a := geom.Angle2(pts[(i+n-1)%n], pts[i], pts[(i+1)%n])
		deviation[i] = math.Abs(a - 90)
	}
	start = 0
	for i := 1; i < n; i++ {
		if deviation[i] < deviation[start] {
			start = i
		}
	}
	if deviation[start] > CornerToleranceDegrees {
		return start, 0, 0, NoCorner
	}
	for i := 1; i < n; i++ {
		if deviation[(start+i)%n] <= CornerToleranceDegrees {
			cols = i
			break
		}
	}
	for i := 1; i < n; i++ {
		if deviation[(start-i+n)%n] <= CornerToleranceDegrees {
			rows = i
			break
		}
	}
	if rows <= 0 || cols <= 0 || rows+cols != n/2 {
		return start, rows, cols, Inconsistent
	}
	return start, rows, cols, Filled
}

// coons fills the loop with a cols×rows grid. Side 0 runs from the start
// corner for cols edges, side 1 for rows edges, and so on around the loop.
// Interior vertices are appended to vertices; quads are wound against the
// loop so they match the faces around the hole.
func coons(vertices []geom.Vec3, loop []int, ring orb.Ring, origin, u, w geom.Vec3,
	start, rows, cols int) ([][4]int, []geom.Vec3, bool) {
	n := len(loop)
	at := func(k int) int { return loop[((start+k)%n+n)%n] }

	grid := make([][]int, cols+1)
	for i := range grid {
		grid[i] = make([]int, rows+1)
	}
	for i := 0; i <= cols; i++ {
		grid[i][0] = at(i)
		grid[i][rows] = at(cols + rows + cols - i)
	}
	for j := 0; j <= rows; j++ {
		grid[cols][j] = at(cols + j)
		grid[0][j] = at(-j)
	}

	p := func(i, j int) geom.Vec3 { return vertices[grid[i][j]] }
	out := slices.Clone(vertices)
	for i := 1; i < cols; i++ {
		for j := 1; j < rows; j++ {
			s, t := float64(i)/float64(cols), float64(j)/float64(rows)
			ruled := p(i, 0).Mul(1 - t).Add(p(i, rows).Mul(t)).
				Add(p(0, j).Mul(1 - s)).Add(p(cols, j).Mul(s))
			corners := p(0, 0).Mul((1 - s) * (1 - t)).
				Add(p(cols, 0).Mul(s * (1 - t))).
				Add(p(0, rows).Mul((1 - s) * t)).
				Add(p(cols, rows).Mul(s * t))
			pos := ruled.Sub(corners)
			q := geom.Project(pos, origin, u, w)
			if !planar.RingContains(ring, orb.Point{q.X, q.Y}) {
				return nil, vertices, false
			}
			grid[i][j] = len(out)
			out = append(out, pos)
		}
	}

	quads := make([][4]int, 0, rows*cols)
	for j := range rows {
		for i := range cols {
			quads = append(quads, [4]int{grid[i][j+1], grid[i+1][j+1], grid[i+1][j], grid[i][j]})
		}
	}
	return quads, out, true
}
