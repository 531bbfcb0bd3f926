// Package isotropic drives an isotropic triangle remesher towards a target
// vertex count.
//
// The remesher itself is a collaborator behind the Remesher interface;
// SplitCollapse is the built-in implementation.
package isotropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/autoremesh/geom"
)

// DefaultTargetEdgeLength is the edge length used when none is configured.
// It is expressed in the normalized working frame (half-extent 100).
const DefaultTargetEdgeLength = 3.9

// DefaultMaxIterations bounds each phase of Search.
const DefaultMaxIterations = 64

// ErrSearchExhausted is returned when Search hits its iteration cap before
// the vertex count entered the acceptance band.
var ErrSearchExhausted = errors.New("isotropic: edge length search exhausted")

// Mesh is an indexed triangle mesh.
type Mesh struct {
	Vertices  []geom.Vec3
	Triangles [][3]int
}

// Remesher produces an isotropic retriangulation of a mesh.
//
// Implementations must not modify the input and must be safe to call from
// several goroutines on different inputs.
type Remesher interface {
	Remesh(ctx context.Context, in Mesh, targetEdgeLength, sharpEdgeDegrees float64) (Mesh, error)
}

// SearchConfig controls Search.
type SearchConfig struct {
	// TargetEdgeLength is the starting edge length; 0 selects
	// DefaultTargetEdgeLength.
	TargetEdgeLength float64

	// TargetVertexCount caps the output vertex count. 0 disables the search
	// and runs the remesher once.
	TargetVertexCount int

	// SharpEdgeDegrees is passed through to the remesher.
	SharpEdgeDegrees float64

	// MaxIterations bounds each phase; 0 selects DefaultMaxIterations.
	MaxIterations int
}

// Status is the terminal state of a search.
type Status int

const (
	// Converged means the vertex count ended inside the acceptance band,
	// or no search was requested.
	Converged Status = iota
	// Exhausted means a phase hit its iteration cap.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of Search.
type Outcome struct {
	Mesh       Mesh
	EdgeLength float64
	// Runs counts remesher invocations.
	Runs   int
	Status Status
}

// Search remeshes in with a shrinking, then growing, edge length until the
// vertex count lies in [0.9*target, target].
//
// While the count is below 90% of the target the edge length is multiplied
// by 0.9; afterwards, while the count exceeds the target, it is multiplied by
// 1.1. Every attempt starts from the original input. Each phase is bounded by
// MaxIterations; exceeding it returns the last mesh with Status Exhausted and
// ErrSearchExhausted.
func Search(ctx context.Context, r Remesher, in Mesh, cfg SearchConfig) (Outcome, error) {
	edge := cfg.TargetEdgeLength
	if edge <= 0 {
		edge = DefaultTargetEdgeLength
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	out := Outcome{EdgeLength: edge}
	run := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := r.Remesh(ctx, in, out.EdgeLength, cfg.SharpEdgeDegrees)
		if err != nil {
			return fmt.Errorf("isotropic: remesh at edge length %g: %w", out.EdgeLength, err)
		}
		out.Mesh = m
		out.Runs++
		return nil
	}

	if err := run(); err != nil {
		return out, err
	}
	if cfg.TargetVertexCount <= 0 {
		return out, nil
	}

	target := cfg.TargetVertexCount
	floor := float64(target) * 0.9
	for i := 0; float64(len(out.Mesh.Vertices)) < floor; i++ {
		if i >= maxIter {
			out.Status = Exhausted
			return out, ErrSearchExhausted
		}
		out.EdgeLength *= 0.9
		if err := run(); err != nil {
			return out, err
		}
	}
	for i := 0; len(out.Mesh.Vertices) > target; i++ {
		if i >= maxIter {
			out.Status = Exhausted
			return out, ErrSearchExhausted
		}
		out.EdgeLength *= 1.1
		if err := run(); err != nil {
			return out, err
		}
	}
	return out, nil
}
