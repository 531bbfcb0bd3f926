package quadremesh

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
	"github.com/gogpu/autoremesh/holefix"
	"github.com/gogpu/autoremesh/quadextract"
)

type stubExtractor struct {
	out quadextract.Output
	err error
	got quadextract.Input
}

func (s *stubExtractor) Extract(_ context.Context, in quadextract.Input) (quadextract.Output, error) {
	s.got = in
	return s.out, s.err
}

// gridMesh triangulates [-100, 100]² with cells×cells squares and stores
// uv = position / spacing at every corner.
func gridMesh(t *testing.T, cells int, spacing float64) *halfedge.Mesh {
	t.Helper()
	step := 200 / float64(cells)
	var vertices []geom.Vec3
	for j := 0; j <= cells; j++ {
		for i := 0; i <= cells; i++ {
			x, y := -100+float64(i)*step, -100+float64(j)*step
			if i == cells {
				x = 100
			}
			if j == cells {
				y = 100
			}
			vertices = append(vertices, geom.V3(x, y, 0))
		}
	}
	var tris [][3]int
	for j := range cells {
		for i := range cells {
			a := j*(cells+1) + i
			b, c, d := a+1, a+cells+2, a+cells+1
			tris = append(tris, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	m, err := halfedge.New(vertices, tris)
	if err != nil {
		t.Fatalf("halfedge.New() error = %v", err)
	}
	for f, tri := range m.Faces {
		var uv [3]geom.Vec2
		for k, v := range tri {
			uv[k] = geom.V2(vertices[v].X/spacing, vertices[v].Y/spacing)
		}
		m.SetFaceUV(f, uv)
	}
	return m
}

// holedGrid is a 3×3 grid of unit quads without its centre cell.
func holedGrid() ([]geom.Vec3, [][4]int) {
	var vertices []geom.Vec3
	for y := range 4 {
		for x := range 4 {
			vertices = append(vertices, geom.V3(float64(x), float64(y), 0))
		}
	}
	var quads [][4]int
	for y := range 3 {
		for x := range 3 {
			if x == 1 && y == 1 {
				continue
			}
			a := 4*y + x
			quads = append(quads, [4]int{a, a + 1, a + 5, a + 4})
		}
	}
	return vertices, quads
}

// =============================================================================
// Filter
// =============================================================================

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		q    [4]int
		keep bool
	}{
		{"valid", [4]int{0, 1, 2, 3}, true},
		{"invalid index", [4]int{0, quadextract.InvalidIndex, 2, 3}, false},
		{"negative", [4]int{0, 1, -7, 3}, false},
		{"out of range", [4]int{0, 1, 2, 4}, false},
		{"repeated", [4]int{0, 1, 1, 3}, false},
		{"first and last equal", [4]int{2, 1, 0, 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, dropped := Filter([][4]int{tt.q}, 4)
			if got := len(out) == 1; got != tt.keep {
				t.Errorf("Filter(%v) kept = %v, want %v", tt.q, got, tt.keep)
			}
			if tt.keep == (dropped != 0) {
				t.Errorf("Filter(%v) dropped = %d", tt.q, dropped)
			}
		})
	}
}

func TestFilter_PreservesOrder(t *testing.T) {
	in := [][4]int{{0, 1, 2, 3}, {0, 0, 1, 2}, {3, 2, 1, 0}}
	out, dropped := Filter(in, 4)
	want := [][4]int{{0, 1, 2, 3}, {3, 2, 1, 0}}
	if !slices.Equal(out, want) || dropped != 1 {
		t.Errorf("Filter() = %v, %d, want %v, 1", out, dropped, want)
	}
}

// =============================================================================
// Adapter
// =============================================================================

func TestAdapter_FiltersAndFillsHoles(t *testing.T) {
	vertices, quads := holedGrid()
	quads = append(quads, [4]int{0, 0, 1, 2}, [4]int{quadextract.InvalidIndex, 1, 2, 3}, [4]int{0, 1, 2, 99})
	ex := &stubExtractor{out: quadextract.Output{Vertices: vertices, Quads: quads}}

	m := gridMesh(t, 2, 50)
	out, err := Adapter{Extractor: ex}.Remesh(context.Background(), m, []int{4, 4, 4})
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if out.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", out.Dropped)
	}
	if len(out.Quads) != 9 {
		t.Errorf("len(Quads) = %d, want 9", len(out.Quads))
	}
	if out.Holes.Filled() != 1 {
		t.Errorf("Holes.Filled() = %d, want 1", out.Holes.Filled())
	}

	if len(ex.got.Triangles) != 8 || len(ex.got.CornerUVs) != 8 {
		t.Errorf("extractor got %d triangles, %d UV sets, want 8, 8",
			len(ex.got.Triangles), len(ex.got.CornerUVs))
	}
	if !slices.Equal(ex.got.Valences, []int{4, 4, 4}) {
		t.Errorf("extractor got valences %v", ex.got.Valences)
	}
}

func TestAdapter_NoQuads(t *testing.T) {
	ex := &stubExtractor{err: quadextract.ErrNoQuads}
	out, err := Adapter{Extractor: ex}.Remesh(context.Background(), gridMesh(t, 2, 50), nil)
	if !errors.Is(err, ErrNoQuads) {
		t.Fatalf("Remesh() error = %v, want ErrNoQuads", err)
	}
	if out == nil || len(out.Quads) != 0 {
		t.Errorf("Remesh() output = %+v, want empty", out)
	}
}

func TestAdapter_ExtractorError(t *testing.T) {
	boom := errors.New("boom")
	ex := &stubExtractor{err: boom}
	_, err := Adapter{Extractor: ex}.Remesh(context.Background(), gridMesh(t, 2, 50), nil)
	if !errors.Is(err, boom) {
		t.Errorf("Remesh() error = %v, want %v", err, boom)
	}
}

func TestAdapter_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ex := &stubExtractor{}
	if _, err := (Adapter{Extractor: ex}).Remesh(ctx, gridMesh(t, 2, 50), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Remesh() error = %v, want context.Canceled", err)
	}
}

func TestRemesh_DefaultExtractor(t *testing.T) {
	out, err := Remesh(context.Background(), gridMesh(t, 7, 25), nil)
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if len(out.Quads) != 64 {
		t.Errorf("len(Quads) = %d, want 64", len(out.Quads))
	}
	if len(out.Vertices) != 81 {
		t.Errorf("len(Vertices) = %d, want 81", len(out.Vertices))
	}
	if len(out.Holes.Holes) != 1 || out.Holes.Holes[0].Outcome != holefix.TooLong {
		t.Errorf("Holes = %+v, want only the outer boundary", out.Holes.Holes)
	}
}
