package holefix

import (
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/gogpu/autoremesh/geom"
)

// quadGrid returns a w×h grid of unit quads in the z=0 plane, wound
// counter-clockwise about +z, skipping the cells for which hole is true.
func quadGrid(w, h int, hole func(x, y int) bool) ([]geom.Vec3, [][4]int) {
	var vertices []geom.Vec3
	for y := 0; y <= h; y++ {
		for x := 0; x <= w; x++ {
			vertices = append(vertices, geom.V3(float64(x), float64(y), 0))
		}
	}
	id := func(x, y int) int { return y*(w+1) + x }
	var quads [][4]int
	for y := range h {
		for x := range w {
			if hole != nil && hole(x, y) {
				continue
			}
			quads = append(quads, [4]int{id(x, y), id(x+1, y), id(x+1, y+1), id(x, y+1)})
		}
	}
	return vertices, quads
}

// polygonRing returns n quads between a regular n-gon of radius 1 and one
// of radius 2. Inner vertices come first.
func polygonRing(n int) ([]geom.Vec3, [][4]int) {
	vertices := make([]geom.Vec3, 2*n)
	for i := range n {
		a := 2 * math.Pi * float64(i) / float64(n)
		vertices[i] = geom.V3(math.Cos(a), math.Sin(a), 0)
		vertices[n+i] = geom.V3(2*math.Cos(a), 2*math.Sin(a), 0)
	}
	quads := make([][4]int, n)
	for i := range n {
		j := (i + 1) % n
		quads[i] = [4]int{i, n + i, n + j, j}
	}
	return vertices, quads
}

func quadArea(v []geom.Vec3, q [4]int) float64 {
	return geom.TriangleArea(v[q[0]], v[q[1]], v[q[2]]) + geom.TriangleArea(v[q[0]], v[q[2]], v[q[3]])
}

// =============================================================================
// BoundaryLoops
// =============================================================================

func TestBoundaryLoops_SingleQuad(t *testing.T) {
	loops := BoundaryLoops([][4]int{{0, 1, 2, 3}})
	want := [][]int{{0, 1, 2, 3}}
	if !reflect.DeepEqual(loops, want) {
		t.Errorf("BoundaryLoops() = %v, want %v", loops, want)
	}
}

func TestBoundaryLoops_Closed(t *testing.T) {
	// Two quads glued along all four edges.
	loops := BoundaryLoops([][4]int{{0, 1, 2, 3}, {3, 2, 1, 0}})
	if len(loops) != 0 {
		t.Errorf("BoundaryLoops() = %v, want none", loops)
	}
}

func TestBoundaryLoops_GridWithHole(t *testing.T) {
	_, quads := quadGrid(3, 3, func(x, y int) bool { return x == 1 && y == 1 })
	loops := BoundaryLoops(quads)
	if len(loops) != 2 {
		t.Fatalf("len(BoundaryLoops()) = %d, want 2", len(loops))
	}
	if len(loops[0]) != 12 {
		t.Errorf("outer loop has %d edges, want 12", len(loops[0]))
	}
	if want := []int{5, 9, 10, 6}; !slices.Equal(loops[1], want) {
		t.Errorf("hole loop = %v, want %v", loops[1], want)
	}
}

// =============================================================================
// Fix
// =============================================================================

func TestFix_SingleQuadHole(t *testing.T) {
	vertices, quads := quadGrid(3, 3, func(x, y int) bool { return x == 1 && y == 1 })
	outV, outQ, report := Fix(vertices, quads)

	if len(outV) != len(vertices) {
		t.Errorf("len(vertices) = %d, want %d", len(outV), len(vertices))
	}
	if len(outQ) != 9 {
		t.Fatalf("len(quads) = %d, want 9", len(outQ))
	}
	if got, want := outQ[8], [4]int{6, 10, 9, 5}; got != want {
		t.Errorf("fill quad = %v, want %v", got, want)
	}
	if report.Filled() != 1 {
		t.Errorf("Filled() = %d, want 1", report.Filled())
	}
	if len(report.Holes) != 2 || report.Holes[0].Outcome != Outer {
		t.Errorf("Holes = %+v, want outer loop first", report.Holes)
	}
	if loops := BoundaryLoops(outQ); len(loops) != 1 {
		t.Errorf("%d loops after Fix, want 1", len(loops))
	}
}

func TestFix_HoleWindsAgainstNormal(t *testing.T) {
	// The hole loop runs clockwise about the face normal, so its signed
	// projected area is negative. Both windings of the grid must fill it.
	tests := []struct {
		name    string
		flipped bool
	}{
		{"counter-clockwise faces", false},
		{"clockwise faces", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vertices, quads := quadGrid(3, 3, func(x, y int) bool { return x == 1 && y == 1 })
			if tt.flipped {
				for i, q := range quads {
					quads[i] = [4]int{q[0], q[3], q[2], q[1]}
				}
			}
			_, outQ, report := Fix(vertices, quads)
			if len(report.Holes) != 2 {
				t.Fatalf("len(Holes) = %d, want 2", len(report.Holes))
			}
			for _, h := range report.Holes {
				if h.Outcome == Degenerate {
					t.Errorf("loop %v outcome = %v, want non-degenerate", h.Loop, h.Outcome)
				}
			}
			if report.Filled() != 1 {
				t.Errorf("Filled() = %d, want 1", report.Filled())
			}
			if got := len(outQ) - len(quads); got != 1 {
				t.Errorf("added %d quads, want 1", got)
			}
			if u := report.Unfillable(); len(u) != 0 {
				t.Errorf("Unfillable() = %+v, want none", u)
			}
		})
	}
}

func TestFix_RectangularHole(t *testing.T) {
	vertices, quads := quadGrid(5, 4, func(x, y int) bool {
		return x >= 1 && x <= 3 && y >= 1 && y <= 2
	})
	outV, outQ, report := Fix(vertices, quads)

	if got := len(outQ) - len(quads); got != 6 {
		t.Fatalf("added %d quads, want 6", got)
	}
	if got := len(outV) - len(vertices); got != 2 {
		t.Fatalf("added %d vertices, want 2", got)
	}

	var hole Hole
	for _, h := range report.Holes {
		switch len(h.Loop) {
		case 10:
			hole = h
		case 18:
			if h.Outcome != TooLong {
				t.Errorf("outer loop outcome = %v, want %v", h.Outcome, TooLong)
			}
		default:
			t.Errorf("unexpected loop of %d edges", len(h.Loop))
		}
	}
	if hole.Outcome != Filled || hole.Quads != 6 {
		t.Errorf("hole = %+v, want filled with 6 quads", hole)
	}
	if hole.Rows != 3 || hole.Columns != 2 {
		t.Errorf("Rows, Columns = %d, %d, want 3, 2", hole.Rows, hole.Columns)
	}

	area := 0.0
	for _, q := range outQ[len(quads):] {
		a := quadArea(outV, q)
		if math.Abs(a-1) > 1e-9 {
			t.Errorf("quad %v area = %v, want 1", q, a)
		}
		area += a
	}
	if math.Abs(area-6) > 1e-9 {
		t.Errorf("filled area = %v, want 6", area)
	}

	for _, p := range outV[len(vertices):] {
		if !p.Approx(geom.V3(2, 2, 0), 1e-9) && !p.Approx(geom.V3(3, 2, 0), 1e-9) {
			t.Errorf("new vertex %v not on the grid interior of the hole", p)
		}
	}

	loops := BoundaryLoops(outQ)
	if len(loops) != 1 || len(loops[0]) != 18 {
		t.Errorf("loops after Fix = %v, want only the outer boundary", loops)
	}
}

func TestFix_OddLoops(t *testing.T) {
	vertices, quads := polygonRing(5)
	outV, outQ, report := Fix(vertices, quads)
	if len(outV) != len(vertices) || len(outQ) != len(quads) {
		t.Errorf("Fix() changed the mesh: %d vertices, %d quads", len(outV), len(outQ))
	}
	if len(report.Holes) != 2 {
		t.Fatalf("len(Holes) = %d, want 2", len(report.Holes))
	}
	for _, h := range report.Holes {
		if h.Outcome != OddLength {
			t.Errorf("outcome = %v, want %v", h.Outcome, OddLength)
		}
	}
}

func TestFix_NoCorner(t *testing.T) {
	vertices, quads := polygonRing(10)
	_, outQ, report := Fix(vertices, quads)
	if len(outQ) != len(quads) {
		t.Errorf("len(quads) = %d, want %d", len(outQ), len(quads))
	}
	if len(report.Holes) != 2 {
		t.Fatalf("len(Holes) = %d, want 2", len(report.Holes))
	}
	if got := report.Holes[0].Outcome; got != NoCorner {
		t.Errorf("inner outcome = %v, want %v", got, NoCorner)
	}
	if got := report.Holes[1].Outcome; got != Outer {
		t.Errorf("outer outcome = %v, want %v", got, Outer)
	}
	if got := len(report.Unfillable()); got != 1 {
		t.Errorf("len(Unfillable()) = %d, want 1", got)
	}
}

func TestFix_DoesNotModifyInput(t *testing.T) {
	vertices, quads := quadGrid(3, 3, func(x, y int) bool { return x == 1 && y == 1 })
	v0, q0 := slices.Clone(vertices), slices.Clone(quads)
	Fix(vertices, quads)
	if !slices.Equal(vertices, v0) || !slices.Equal(quads, q0) {
		t.Error("Fix() modified its input")
	}
}

func TestFix_Empty(t *testing.T) {
	v, q, report := Fix(nil, nil)
	if len(v) != 0 || len(q) != 0 || len(report.Holes) != 0 {
		t.Errorf("Fix(nil, nil) = %v, %v, %+v", v, q, report)
	}
}

func TestOutcome_String(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{Filled, "filled"},
		{OddLength, "odd length"},
		{Outer, "outer boundary"},
		{Outcome(99), "Outcome(99)"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int(tt.o), got, tt.want)
		}
	}
}
