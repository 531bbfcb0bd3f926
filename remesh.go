package autoremesh

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
	"github.com/gogpu/autoremesh/holefix"
	"github.com/gogpu/autoremesh/internal/parallel"
	"github.com/gogpu/autoremesh/island"
	"github.com/gogpu/autoremesh/isotropic"
	"github.com/gogpu/autoremesh/param"
	"github.com/gogpu/autoremesh/quadextract"
	"github.com/gogpu/autoremesh/quadremesh"
)

// WorkingHalfExtent is the half-extent of the frame every mesh is scaled
// into before processing. Edge lengths and gradient sizes are expressed in
// this frame.
const WorkingHalfExtent = 100

// Extractor turns a parameterized triangle mesh into quads. The built-in
// quadextract.Extractor is used when none is configured.
type Extractor = quadremesh.Extractor

var errNoTriangles = errors.New("autoremesh: remesher returned no triangles")

// Result is a remeshed quad mesh in the caller's coordinate frame.
type Result struct {
	Vertices []geom.Vec3
	Quads    [][4]int
	// Islands has one report per island, in island order.
	Islands []IslandReport
}

// Failed returns the reports of islands missing from the output.
func (r *Result) Failed() []IslandReport {
	var out []IslandReport
	for _, is := range r.Islands {
		if is.Err != nil {
			out = append(out, is)
		}
	}
	return out
}

// IslandReport describes how one island went through the pipeline.
type IslandReport struct {
	Index int
	// Triangles is the number of input triangles in the island.
	Triangles int
	// RemeshedVertices is the vertex count after the isotropic remesh.
	RemeshedVertices int
	// BoundaryVertices counts the remeshed vertices on an open boundary.
	BoundaryVertices int
	EdgeLength       float64
	GradientSize     float64
	Ratio            float64
	Trials           int
	Singularities    int
	// VertexOffset is the index of the island's first vertex in
	// Result.Vertices.
	VertexOffset int
	Vertices     int
	Quads        int
	Extraction   quadextract.Stats
	Holes        holefix.Report
	// Err is an *IslandError when the island contributed nothing.
	Err error
}

// Remesher converts a triangle mesh into a quad mesh.
type Remesher struct {
	vertices  []geom.Vec3
	triangles [][3]int
	opts      options
}

// New creates a Remesher for the given mesh. The slices are read but never
// modified.
func New(vertices []geom.Vec3, triangles [][3]int, opts ...Option) *Remesher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Remesher{vertices: vertices, triangles: triangles, opts: o}
}

// frame maps between the caller's coordinates and the working frame.
type frame struct {
	origin    geom.Vec3
	maxLength float64
}

func (f frame) toWorking(v geom.Vec3) geom.Vec3 {
	return v.Sub(f.origin).Mul(WorkingHalfExtent / f.maxLength)
}

func (f frame) fromWorking(v geom.Vec3) geom.Vec3 {
	return v.Mul(f.maxLength / WorkingHalfExtent).Add(f.origin)
}

// islandJob is the pipeline state of one island. During a phase it is
// touched only by the worker running it.
type islandJob struct {
	index        int
	local        island.Local
	gradientSize float64
	stage        Stage

	// limited is set when the island has a time budget; remaining is what
	// is left of it.
	limited   bool
	remaining time.Duration

	search isotropic.Outcome
	mesh   *halfedge.Mesh
	param  *param.Parameterizer
	sweep  param.SweepResult

	singularities int
	boundary      int
	quads         *quadremesh.Output
	err           error
}

// context bounds one task of the island by its remaining time budget. The
// returned cancel function charges the task's running time to the budget,
// so time spent queued behind other islands is free.
func (j *islandJob) context(ctx context.Context) (context.Context, context.CancelFunc) {
	if !j.limited {
		return context.WithCancel(ctx)
	}
	start := time.Now()
	ctx, cancel := context.WithDeadline(ctx, start.Add(j.remaining))
	return ctx, func() {
		j.remaining -= time.Since(start)
		cancel()
	}
}

func (j *islandJob) fail(err error) {
	j.err = &IslandError{Index: j.index, Stage: j.stage, Err: err}
	Logger().Warn("autoremesh: island failed", "island", j.index, "stage", j.stage.String(), "err", err)
}

func (j *islandJob) report() IslandReport {
	rep := IslandReport{
		Index:            j.index,
		Triangles:        len(j.local.Triangles),
		RemeshedVertices: len(j.search.Mesh.Vertices),
		BoundaryVertices: j.boundary,
		EdgeLength:       j.search.EdgeLength,
		GradientSize:     j.gradientSize,
		Ratio:            j.sweep.Ratio,
		Trials:           j.sweep.Trials,
		Singularities:    j.singularities,
		Err:              j.err,
	}
	if j.quads != nil {
		rep.Extraction = j.quads.Stats
		rep.Holes = j.quads.Holes
	}
	return rep
}

// Remesh runs the pipeline.
//
// The mesh is scaled into the working frame and split into islands. Phase
// one remeshes every island isotropically and sweeps the constraint ratio
// until the singularity budget is met. Phase two solves the final
// parameterization of the islands that succeeded. Phase three extracts
// quads and fills small holes. The islands are then merged in order, each
// offset by the number of vertices already emitted, and scaled back.
//
// Only an input without islands is an error. Islands that fail at any
// stage are left out and reported in Result.Islands. Canceling ctx aborts
// the whole run.
func (r *Remesher) Remesh(ctx context.Context) (*Result, error) {
	islands := island.Split(r.triangles)
	if len(islands) == 0 {
		return nil, ErrEmptyMesh
	}
	origin, maxLength := island.Bounds(r.vertices)
	if maxLength == 0 || math.IsNaN(maxLength) || math.IsInf(maxLength, 0) {
		return nil, fmt.Errorf("%w: extent %g", ErrEmptyMesh, maxLength)
	}
	f := frame{origin: origin, maxLength: maxLength}
	working := make([]geom.Vec3, len(r.vertices))
	for i, v := range r.vertices {
		working[i] = f.toWorking(v)
	}

	jobs := make([]islandJob, len(islands))
	for i, is := range islands {
		local := is.Pick(working)
		_, extent := island.Bounds(local.Vertices)
		jobs[i] = islandJob{
			index:        i,
			local:        local,
			gradientSize: r.opts.gradientSize * extent / WorkingHalfExtent,
			limited:      r.opts.islandTimeout > 0,
			remaining:    r.opts.islandTimeout,
		}
	}
	Logger().Info("autoremesh: islands found", "islands", len(jobs), "triangles", len(r.triangles))

	pool := parallel.NewWorkerPool(r.opts.workers)
	defer pool.Close()

	all := make([]int, len(jobs))
	for i := range all {
		all[i] = i
	}
	r.runPhase(ctx, pool, jobs, all, r.prepare)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.runPhase(ctx, pool, jobs, pending(jobs), r.solve)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := r.extractAll(ctx, jobs, pending(jobs)); err != nil {
		return nil, err
	}

	res := merge(jobs, f)
	Logger().Info("autoremesh: done",
		"vertices", len(res.Vertices), "quads", len(res.Quads), "failed", len(res.Failed()))
	return res, nil
}

// pending lists the jobs that have not failed.
func pending(jobs []islandJob) []int {
	var idx []int
	for i := range jobs {
		if jobs[i].err == nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// runPhase runs step for the listed jobs on the pool and records failures.
func (r *Remesher) runPhase(ctx context.Context, pool *parallel.WorkerPool, jobs []islandJob, idx []int,
	step func(context.Context, *islandJob) error) {
	errs := pool.ForEach(ctx, len(idx), func(ctx context.Context, k int) error {
		job := &jobs[idx[k]]
		ctx, cancel := job.context(ctx)
		defer cancel()
		return step(ctx, job)
	})
	for k, err := range errs {
		if err != nil {
			jobs[idx[k]].fail(err)
		}
	}
}

// prepare remeshes the island and sweeps the constraint ratio.
func (r *Remesher) prepare(ctx context.Context, job *islandJob) error {
	job.stage = StageRemesh
	out, err := isotropic.Search(ctx, r.opts.remesher,
		isotropic.Mesh{Vertices: job.local.Vertices, Triangles: job.local.Triangles},
		isotropic.SearchConfig{
			TargetEdgeLength:  r.opts.targetEdgeLength,
			TargetVertexCount: r.opts.targetVertexCount,
			SharpEdgeDegrees:  r.opts.sharpEdgeDegrees,
			MaxIterations:     r.opts.searchIterations,
		})
	job.search = out
	if err != nil {
		return err
	}
	if len(out.Mesh.Triangles) == 0 {
		return errNoTriangles
	}
	mesh, err := halfedge.New(out.Mesh.Vertices, out.Mesh.Triangles)
	if err != nil {
		return err
	}
	job.mesh = mesh
	for v := range mesh.VertexCount() {
		if mesh.IsBoundaryVertex(v) {
			job.boundary++
		}
	}

	job.stage = StageSweep
	job.param = param.New(mesh, param.Parameters{
		GradientSize:        job.gradientSize,
		ConstrainOnFlatArea: r.opts.constrainOnFlatArea,
	}, r.opts.solver)
	job.sweep, err = param.Sweep(ctx, job.param, param.SweepConfig{
		Ratio:            r.opts.ratio,
		MaxSingularities: r.opts.maxSingularityCount,
		MaxTrials:        r.opts.sweepTrials,
	})
	if err != nil {
		return err
	}
	Logger().Debug("autoremesh: ratio accepted", "island", job.index,
		"ratio", job.sweep.Ratio, "singularities", job.sweep.Singularities, "trials", job.sweep.Trials)
	return nil
}

// solve runs the final parameterization at the accepted ratio.
func (r *Remesher) solve(ctx context.Context, job *islandJob) error {
	job.stage = StageSolve
	n, err := job.param.Solve(ctx, job.sweep.Constraints)
	if err != nil {
		return err
	}
	job.singularities = n
	return nil
}

// extractAll runs quad extraction and hole fixing for the listed jobs, at
// most r.opts.workers at a time.
func (r *Remesher) extractAll(ctx context.Context, jobs []islandJob, idx []int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.workers)
	adapter := quadremesh.Adapter{Extractor: r.opts.extractor}
	for _, i := range idx {
		job := &jobs[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer func() {
				if v := recover(); v != nil {
					job.fail(&parallel.PanicError{Index: job.index, Value: v})
				}
			}()
			ctx, cancel := job.context(gctx)
			defer cancel()

			job.stage = StageExtract
			out, err := adapter.Remesh(ctx, job.mesh, job.param.Valences())
			if err != nil {
				job.fail(err)
				return nil
			}
			job.quads = out
			if r.opts.debugDir != "" {
				r.dump(job)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// merge concatenates the island outputs in island order.
func merge(jobs []islandJob, f frame) *Result {
	res := &Result{Islands: make([]IslandReport, len(jobs))}
	for i := range jobs {
		job := &jobs[i]
		rep := job.report()
		if job.err == nil && job.quads != nil {
			offset := len(res.Vertices)
			rep.VertexOffset = offset
			rep.Vertices = len(job.quads.Vertices)
			rep.Quads = len(job.quads.Quads)
			for _, v := range job.quads.Vertices {
				res.Vertices = append(res.Vertices, f.fromWorking(v))
			}
			for _, q := range job.quads.Quads {
				res.Quads = append(res.Quads, [4]int{q[0] + offset, q[1] + offset, q[2] + offset, q[3] + offset})
			}
			Logger().Info("autoremesh: island done", "island", job.index,
				"vertices", rep.Vertices, "quads", rep.Quads, "singularities", rep.Singularities,
				"boundary", rep.BoundaryVertices)
		}
		res.Islands[i] = rep
	}
	return res
}
