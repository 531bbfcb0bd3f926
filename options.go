package autoremesh

import (
	"runtime"
	"time"

	"github.com/gogpu/autoremesh/isotropic"
	"github.com/gogpu/autoremesh/param"
)

// DefaultGradientSize is the number of iso-lines per working-frame
// half-extent used when no gradient size is configured.
const DefaultGradientSize = 16

// DefaultMaxSingularityCount is the default singularity budget per island.
const DefaultMaxSingularityCount = 50

// Option configures a Remesher.
//
// Example:
//
//	r := autoremesh.New(vertices, triangles,
//	    autoremesh.WithTargetVertexCount(5000),
//	    autoremesh.WithMaxSingularityCount(50))
type Option func(*options)

// options holds the configuration of a Remesher.
type options struct {
	targetEdgeLength    float64
	targetVertexCount   int
	maxSingularityCount int
	sharpEdgeDegrees    float64
	ratio               param.Range
	gradientSize        float64
	constrainOnFlatArea bool
	workers             int
	searchIterations    int
	sweepTrials         int
	islandTimeout       time.Duration

	remesher  isotropic.Remesher
	solver    param.Solver
	extractor Extractor

	debugDir string
}

func defaultOptions() options {
	return options{
		maxSingularityCount: DefaultMaxSingularityCount,
		sharpEdgeDegrees:    isotropic.DefaultSharpEdgeDegrees,
		ratio:               param.DefaultRatio,
		gradientSize:        DefaultGradientSize,
		constrainOnFlatArea: true,
		workers:             runtime.GOMAXPROCS(0),
		searchIterations:    isotropic.DefaultMaxIterations,
		remesher:            isotropic.SplitCollapse{},
		solver:              param.CrossFieldSolver{},
	}
}

// WithTargetEdgeLength sets the starting edge length of the isotropic
// remesh, in the working frame where the mesh has half-extent 100.
// 0 selects isotropic.DefaultTargetEdgeLength.
func WithTargetEdgeLength(l float64) Option {
	return func(o *options) {
		o.targetEdgeLength = l
	}
}

// WithTargetVertexCount caps the vertex count of every remeshed island.
// 0 disables the edge length search.
func WithTargetVertexCount(n int) Option {
	return func(o *options) {
		o.targetVertexCount = n
	}
}

// WithMaxSingularityCount sets the singularity budget per island.
func WithMaxSingularityCount(n int) Option {
	return func(o *options) {
		o.maxSingularityCount = n
	}
}

// WithSharpEdgeDegrees sets the dihedral angle above which edges are kept
// as features by the isotropic remesher.
func WithSharpEdgeDegrees(deg float64) Option {
	return func(o *options) {
		o.sharpEdgeDegrees = deg
	}
}

// WithConstraintRatio sets the constraint ratio range. The sweep starts at
// low and never reaches high.
func WithConstraintRatio(low, high float64) Option {
	return func(o *options) {
		o.ratio = param.Range{Low: low, High: high}
	}
}

// WithGradientSize sets the quad density. Larger values produce smaller
// quads. Values <= 0 are ignored.
func WithGradientSize(g float64) Option {
	return func(o *options) {
		if g > 0 {
			o.gradientSize = g
		}
	}
}

// WithConstrainOnFlatArea selects whether flat (true) or curved (false)
// regions seed the cross field constraints.
func WithConstrainOnFlatArea(flat bool) Option {
	return func(o *options) {
		o.constrainOnFlatArea = flat
	}
}

// WithWorkers sets the number of islands processed concurrently. Values
// <= 0 select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n <= 0 {
			n = runtime.GOMAXPROCS(0)
		}
		o.workers = n
	}
}

// WithSearchIterations bounds each phase of the edge length search.
func WithSearchIterations(n int) Option {
	return func(o *options) {
		o.searchIterations = n
	}
}

// WithSweepTrials bounds the number of constraint ratio trials per island.
// 0 selects the param package default.
func WithSweepTrials(n int) Option {
	return func(o *options) {
		o.sweepTrials = n
	}
}

// WithIslandTimeout limits the time spent on one island. The budget is
// charged only while one of the island's tasks is running, summed over all
// stages, so islands waiting for a worker do not lose time. An island that
// runs out of time is reported as failed; the others are unaffected.
// 0 disables the limit.
func WithIslandTimeout(d time.Duration) Option {
	return func(o *options) {
		o.islandTimeout = d
	}
}

// WithIsotropicRemesher replaces the built-in isotropic remesher.
func WithIsotropicRemesher(r isotropic.Remesher) Option {
	return func(o *options) {
		if r != nil {
			o.remesher = r
		}
	}
}

// WithSolver replaces the built-in parameterization solver.
func WithSolver(s param.Solver) Option {
	return func(o *options) {
		if s != nil {
			o.solver = s
		}
	}
}

// WithExtractor replaces the built-in quad extractor.
func WithExtractor(e Extractor) Option {
	return func(o *options) {
		o.extractor = e
	}
}

// WithDebugDir enables per-island OBJ and PNG dumps into dir. The dumps
// are for inspection only and their layout may change.
func WithDebugDir(dir string) Option {
	return func(o *options) {
		o.debugDir = dir
	}
}
