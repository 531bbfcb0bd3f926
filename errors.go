package autoremesh

import (
	"errors"
	"fmt"
)

// ErrEmptyMesh is returned by Remesh when the input has no island with at
// least island.MinTriangles triangles, or no spatial extent.
var ErrEmptyMesh = errors.New("autoremesh: empty mesh")

// Stage names a step of the per-island pipeline.
type Stage int

const (
	// StageRemesh is the isotropic remesh and edge length search.
	StageRemesh Stage = iota
	// StageSweep is the constraint ratio sweep.
	StageSweep
	// StageSolve is the final parameterization.
	StageSolve
	// StageExtract is quad extraction and hole fixing.
	StageExtract
)

func (s Stage) String() string {
	switch s {
	case StageRemesh:
		return "remesh"
	case StageSweep:
		return "sweep"
	case StageSolve:
		return "solve"
	case StageExtract:
		return "extract"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// IslandError reports why an island was left out of the result.
type IslandError struct {
	Index int
	Stage Stage
	Err   error
}

func (e *IslandError) Error() string {
	return fmt.Sprintf("autoremesh: island %d: %s: %v", e.Index, e.Stage, e.Err)
}

func (e *IslandError) Unwrap() error { return e.Err }
