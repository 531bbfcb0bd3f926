// Package autoremesh converts triangle meshes into quad-dominant meshes
// whose edges follow surface curvature.
//
// # Overview
//
// The input mesh is split into edge-connected islands, and every island goes
// through the same pipeline: an isotropic retriangulation, a cross-field
// parameterization whose constraint set is searched until the number of
// singularities fits a budget, extraction of the integer iso-lines of the
// parameterization as quads, and repair of small holes left by extraction.
// Islands are processed in parallel and merged into one output mesh in the
// caller's coordinate frame.
//
// # Quick Start
//
//	import "github.com/gogpu/autoremesh"
//
//	r := autoremesh.New(vertices, triangles,
//	    autoremesh.WithTargetVertexCount(5000),
//	    autoremesh.WithMaxSingularityCount(50))
//	res, err := r.Remesh(ctx)
//	if err != nil {
//	    return err // only autoremesh.ErrEmptyMesh or a context error
//	}
//	for _, is := range res.Failed() {
//	    log.Printf("island %d skipped: %v", is.Index, is.Err)
//	}
//
// # Collaborators
//
// The three heavy steps sit behind small interfaces so they can be swapped:
//   - isotropic.Remesher: built-in isotropic.SplitCollapse
//   - param.Solver: built-in param.CrossFieldSolver
//   - Extractor: built-in quadextract.Extractor
//
// # Architecture
//
// The module is organized into:
//   - geom: vectors, quantized position keys, angles
//   - island: component splitting and re-indexing
//   - isotropic: edge length search and the built-in remesher
//   - halfedge: half-edge mesh with per-corner UVs
//   - param: relative height, curvature directions, constraint sweep, solver
//   - quadextract: iso-line crossing graph and quad extraction
//   - quadremesh: extractor adapter and degenerate quad filtering
//   - holefix: boundary loop detection and Coons patch filling
//
// # Logging
//
// Nothing is logged by default. See SetLogger.
package autoremesh
