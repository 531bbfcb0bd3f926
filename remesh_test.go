package autoremesh

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/internal/parallel"
	"github.com/gogpu/autoremesh/isotropic"
	"github.com/gogpu/autoremesh/param"
)

// gridRemesher ignores the edge length and retriangulates the bounding box
// of its input as a cells×cells grid in the plane z = min.Z.
type gridRemesher struct {
	cells int
}

func (g gridRemesher) Remesh(_ context.Context, in isotropic.Mesh, _, _ float64) (isotropic.Mesh, error) {
	box := geom.BoundsOf(in.Vertices)
	n := g.cells
	var out isotropic.Mesh
	for j := 0; j <= n; j++ {
		for i := 0; i <= n; i++ {
			x := box.Min.X + (box.Max.X-box.Min.X)*float64(i)/float64(n)
			y := box.Min.Y + (box.Max.Y-box.Min.Y)*float64(j)/float64(n)
			if i == n {
				x = box.Max.X
			}
			if j == n {
				y = box.Max.Y
			}
			out.Vertices = append(out.Vertices, geom.V3(x, y, box.Min.Z))
		}
	}
	for j := range n {
		for i := range n {
			a := j*(n+1) + i
			b, c, d := a+1, a+n+2, a+n+1
			out.Triangles = append(out.Triangles, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	return out, nil
}

// panicRemesher panics on every call.
type panicRemesher struct{}

func (panicRemesher) Remesh(context.Context, isotropic.Mesh, float64, float64) (isotropic.Mesh, error) {
	panic("remesher exploded")
}

// blockingRemesher waits for its context.
type blockingRemesher struct{}

func (blockingRemesher) Remesh(ctx context.Context, _ isotropic.Mesh, _, _ float64) (isotropic.Mesh, error) {
	<-ctx.Done()
	return isotropic.Mesh{}, ctx.Err()
}

// leftBlockingRemesher blocks on islands that lie entirely left of the
// working-frame origin and grids the others.
type leftBlockingRemesher struct {
	gridRemesher
}

func (l leftBlockingRemesher) Remesh(ctx context.Context, in isotropic.Mesh, edge, sharp float64) (isotropic.Mesh, error) {
	if geom.BoundsOf(in.Vertices).Max.X < 0 {
		return blockingRemesher{}.Remesh(ctx, in, edge, sharp)
	}
	return l.gridRemesher.Remesh(ctx, in, edge, sharp)
}

// planarSolver maps every vertex to its xy offset from the box centre,
// scaled so the box half-extent spans GradientSize units.
type planarSolver struct {
	singularities int
}

func (s planarSolver) Singularities(context.Context, param.Problem) (int, error) {
	return s.singularities, nil
}

func (s planarSolver) Solve(_ context.Context, p param.Problem) (param.Solution, error) {
	b := geom.BoundsOf(p.Vertices)
	c := b.Center()
	scale := p.GradientSize / b.MaxHalfExtent()
	sol := param.Solution{
		UV:            make([][3]geom.Vec2, len(p.Triangles)),
		Singularities: s.singularities,
		Valences:      make([]int, len(p.Vertices)),
	}
	for f, t := range p.Triangles {
		for k, v := range t {
			d := p.Vertices[v].Sub(c).Mul(scale)
			sol.UV[f][k] = geom.V2(d.X, d.Y)
		}
	}
	for i := range sol.Valences {
		sol.Valences[i] = 4
	}
	return sol, nil
}

// squareGrid triangulates the square [x0, x0+size]×[y0, y0+size] with
// cells×cells squares.
func squareGrid(x0, y0, size float64, cells int) ([]geom.Vec3, [][3]int) {
	var vertices []geom.Vec3
	for j := 0; j <= cells; j++ {
		for i := 0; i <= cells; i++ {
			vertices = append(vertices, geom.V3(
				x0+size*float64(i)/float64(cells),
				y0+size*float64(j)/float64(cells),
				0))
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
	return vertices, tris
}

func stubbed(opts ...Option) []Option {
	return append([]Option{
		WithIsotropicRemesher(gridRemesher{cells: 7}),
		WithSolver(planarSolver{}),
		WithWorkers(2),
	}, opts...)
}

func quadArea(v []geom.Vec3, q [4]int) float64 {
	return geom.TriangleArea(v[q[0]], v[q[1]], v[q[2]]) + geom.TriangleArea(v[q[0]], v[q[2]], v[q[3]])
}

func nearMultiple(x, step float64) bool {
	k := x / step
	return math.Abs(k-math.Round(k)) < 1e-6
}

// =============================================================================
// Pipeline
// =============================================================================

func TestRemesh_UnitSquare(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 2)
	res, err := New(vertices, triangles, stubbed(WithGradientSize(4))...).Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if len(res.Quads) != 64 {
		t.Errorf("len(Quads) = %d, want 64", len(res.Quads))
	}
	if len(res.Vertices) != 81 {
		t.Errorf("len(Vertices) = %d, want 81", len(res.Vertices))
	}

	for _, v := range res.Vertices {
		if v.X < -1e-9 || v.X > 1+1e-9 || v.Y < -1e-9 || v.Y > 1+1e-9 || math.Abs(v.Z) > 1e-9 {
			t.Errorf("vertex %v outside the unit square", v)
		}
		if !nearMultiple(v.X, 0.125) || !nearMultiple(v.Y, 0.125) {
			t.Errorf("vertex %v not on the 1/8 lattice", v)
		}
	}
	total := 0.0
	for _, q := range res.Quads {
		a := quadArea(res.Vertices, q)
		if math.Abs(a-0.015625) > 1e-6 {
			t.Errorf("quad %v area = %v, want 0.015625", q, a)
		}
		total += a
	}
	if math.Abs(total-1) > 1e-6 {
		t.Errorf("total area = %v, want 1", total)
	}

	if len(res.Islands) != 1 {
		t.Fatalf("len(Islands) = %d, want 1", len(res.Islands))
	}
	is := res.Islands[0]
	if is.Err != nil {
		t.Errorf("island error = %v", is.Err)
	}
	if is.Triangles != 8 || is.RemeshedVertices != 64 {
		t.Errorf("Triangles, RemeshedVertices = %d, %d, want 8, 64", is.Triangles, is.RemeshedVertices)
	}
	// The 7×7 grid has 28 vertices on its rim.
	if is.BoundaryVertices != 28 {
		t.Errorf("BoundaryVertices = %d, want 28", is.BoundaryVertices)
	}
	if is.GradientSize != 4 {
		t.Errorf("GradientSize = %v, want 4", is.GradientSize)
	}
	if is.Ratio != 0.5 || is.Trials != 1 || is.Singularities != 0 {
		t.Errorf("Ratio, Trials, Singularities = %v, %d, %d, want 0.5, 1, 0", is.Ratio, is.Trials, is.Singularities)
	}
	if is.Vertices != 81 || is.Quads != 64 || is.VertexOffset != 0 {
		t.Errorf("Vertices, Quads, VertexOffset = %d, %d, %d", is.Vertices, is.Quads, is.VertexOffset)
	}
	if len(res.Failed()) != 0 {
		t.Errorf("Failed() = %v, want none", res.Failed())
	}
}

func TestRemesh_TwoIslands(t *testing.T) {
	va, ta := squareGrid(0, 0, 2, 2)
	vb, tb := squareGrid(6, 0, 2, 2)
	vertices := append(va, vb...)
	triangles := ta
	for _, tri := range tb {
		triangles = append(triangles, [3]int{tri[0] + len(va), tri[1] + len(va), tri[2] + len(va)})
	}

	res, err := New(vertices, triangles, stubbed()...).Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if len(res.Islands) != 2 {
		t.Fatalf("len(Islands) = %d, want 2", len(res.Islands))
	}
	if len(res.Vertices) != 162 || len(res.Quads) != 128 {
		t.Fatalf("got %d vertices, %d quads, want 162, 128", len(res.Vertices), len(res.Quads))
	}
	for i, want := range []int{0, 81} {
		is := res.Islands[i]
		if is.VertexOffset != want {
			t.Errorf("island %d VertexOffset = %d, want %d", i, is.VertexOffset, want)
		}
		if is.GradientSize != 4 {
			t.Errorf("island %d GradientSize = %v, want 4", i, is.GradientSize)
		}
	}

	for k, q := range res.Quads {
		lo, hi := 0, 81
		if k >= 64 {
			lo, hi = 81, 162
		}
		for _, v := range q {
			if v < lo || v >= hi {
				t.Errorf("quad %d = %v references vertex outside [%d, %d)", k, q, lo, hi)
			}
		}
	}
	for i, v := range res.Vertices {
		lo, hi := 0.0, 2.0
		if i >= 81 {
			lo, hi = 6, 8
		}
		if v.X < lo-1e-9 || v.X > hi+1e-9 || v.Y < -1e-9 || v.Y > 2+1e-9 {
			t.Errorf("vertex %d = %v outside its island", i, v)
		}
	}
}

func TestRemesh_EmptyMesh(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 1)
	tests := []struct {
		name      string
		vertices  []geom.Vec3
		triangles [][3]int
	}{
		{"nil", nil, nil},
		{"too few triangles", vertices, triangles},
		{"no extent", []geom.Vec3{{}, {}, {}, {}, {}}, [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}, {0, 4, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.vertices, tt.triangles, stubbed()...).Remesh(context.Background())
			if !errors.Is(err, ErrEmptyMesh) {
				t.Errorf("Remesh() error = %v, want ErrEmptyMesh", err)
			}
		})
	}
}

// =============================================================================
// Island failures
// =============================================================================

func islandErr(t *testing.T, res *Result) *IslandError {
	t.Helper()
	failed := res.Failed()
	if len(failed) != 1 {
		t.Fatalf("len(Failed()) = %d, want 1", len(failed))
	}
	var ie *IslandError
	if !errors.As(failed[0].Err, &ie) {
		t.Fatalf("island error %v is not an *IslandError", failed[0].Err)
	}
	return ie
}

func TestRemesh_BudgetNotMet(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 2)
	r := New(vertices, triangles, stubbed(
		WithSolver(planarSolver{singularities: 100}),
		WithSweepTrials(3))...)
	res, err := r.Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if len(res.Quads) != 0 || len(res.Vertices) != 0 {
		t.Errorf("got %d quads, %d vertices, want none", len(res.Quads), len(res.Vertices))
	}
	ie := islandErr(t, res)
	if ie.Stage != StageSweep {
		t.Errorf("Stage = %v, want %v", ie.Stage, StageSweep)
	}
	if !errors.Is(ie, param.ErrBudgetNotMet) {
		t.Errorf("error = %v, want ErrBudgetNotMet", ie)
	}
	if got := res.Islands[0].Trials; got != 3 {
		t.Errorf("Trials = %d, want 3", got)
	}
}

func TestRemesh_RemesherPanic(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 2)
	res, err := New(vertices, triangles, stubbed(WithIsotropicRemesher(panicRemesher{}))...).
		Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	ie := islandErr(t, res)
	var pe *parallel.PanicError
	if !errors.As(ie, &pe) {
		t.Fatalf("error = %v, want *parallel.PanicError", ie)
	}
	if pe.Value != "remesher exploded" {
		t.Errorf("panic value = %v", pe.Value)
	}
}

func TestRemesh_IslandTimeout(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 2)
	r := New(vertices, triangles, stubbed(
		WithIsotropicRemesher(blockingRemesher{}),
		WithIslandTimeout(20*time.Millisecond))...)
	res, err := r.Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	ie := islandErr(t, res)
	if ie.Stage != StageRemesh {
		t.Errorf("Stage = %v, want %v", ie.Stage, StageRemesh)
	}
	if !errors.Is(ie, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", ie)
	}
}

func TestRemesh_IslandTimeoutIsPerIsland(t *testing.T) {
	// One worker runs island 0 to its timeout before island 1 starts.
	va, ta := squareGrid(0, 0, 2, 2)
	vb, tb := squareGrid(6, 0, 2, 2)
	vertices := append(va, vb...)
	triangles := ta
	for _, tri := range tb {
		triangles = append(triangles, [3]int{tri[0] + len(va), tri[1] + len(va), tri[2] + len(va)})
	}

	timeout := 200 * time.Millisecond
	start := time.Now()
	res, err := New(vertices, triangles, stubbed(
		WithIsotropicRemesher(leftBlockingRemesher{gridRemesher{cells: 7}}),
		WithWorkers(1),
		WithIslandTimeout(timeout))...).Remesh(context.Background())
	if err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Errorf("Remesh() took %v, want at least %v", elapsed, timeout)
	}
	if len(res.Islands) != 2 {
		t.Fatalf("len(Islands) = %d, want 2", len(res.Islands))
	}

	var ie *IslandError
	if !errors.As(res.Islands[0].Err, &ie) {
		t.Fatalf("island 0 Err = %v, want *IslandError", res.Islands[0].Err)
	}
	if ie.Stage != StageRemesh || !errors.Is(ie, context.DeadlineExceeded) {
		t.Errorf("island 0 Err = %v, want remesh stage deadline exceeded", ie)
	}
	if err := res.Islands[1].Err; err != nil {
		t.Errorf("island 1 Err = %v, want nil", err)
	}
	if len(res.Vertices) != 81 || len(res.Quads) != 64 {
		t.Errorf("got %d vertices, %d quads, want 81, 64", len(res.Vertices), len(res.Quads))
	}
	if got := res.Failed(); len(got) != 1 || got[0].Index != 0 {
		t.Errorf("Failed() = %+v, want island 0 only", got)
	}
}

func TestIslandJob_ContextChargesBudget(t *testing.T) {
	job := islandJob{limited: true, remaining: time.Hour}
	_, cancel := job.context(context.Background())
	time.Sleep(5 * time.Millisecond)
	cancel()
	if job.remaining >= time.Hour {
		t.Errorf("remaining = %v, want less than %v", job.remaining, time.Hour)
	}

	job = islandJob{limited: true, remaining: -time.Millisecond}
	ctx, cancel := job.context(context.Background())
	defer cancel()
	if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Errorf("exhausted budget ctx.Err() = %v, want %v", ctx.Err(), context.DeadlineExceeded)
	}

	job = islandJob{}
	ctx, cancel = job.context(context.Background())
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Error("unlimited job context has a deadline")
	}
}

func TestRemesh_Canceled(t *testing.T) {
	vertices, triangles := squareGrid(0, 0, 1, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(vertices, triangles, stubbed()...).Remesh(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Remesh() error = %v, want context.Canceled", err)
	}
}

func TestRemesh_DebugDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "debug")
	vertices, triangles := squareGrid(0, 0, 1, 2)
	if _, err := New(vertices, triangles, stubbed(WithGradientSize(4), WithDebugDir(dir))...).
		Remesh(context.Background()); err != nil {
		t.Fatalf("Remesh() error = %v", err)
	}
	for _, name := range []string{
		"island-000-remeshed.obj",
		"island-000-uv.obj",
		"island-000-quads.obj",
		"island-000-uv.png",
		"island-000-quads.png",
	} {
		if fi, err := os.Stat(filepath.Join(dir, name)); err != nil || fi.Size() == 0 {
			t.Errorf("debug file %s missing or empty (err = %v)", name, err)
		}
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestIslandError(t *testing.T) {
	inner := errors.New("boom")
	err := &IslandError{Index: 3, Stage: StageSolve, Err: inner}
	if got, want := err.Error(), "autoremesh: island 3: solve: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(IslandError, inner) = false, want true")
	}
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		s    Stage
		want string
	}{
		{StageRemesh, "remesh"},
		{StageSweep, "sweep"},
		{StageSolve, "solve"},
		{StageExtract, "extract"},
		{Stage(9), "Stage(9)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(tt.s), got, tt.want)
		}
	}
}
