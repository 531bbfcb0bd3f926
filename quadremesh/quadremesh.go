// Package quadremesh connects a parameterized half-edge mesh to a quad
// extractor and repairs the result.
package quadremesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/autoremesh/geom"
	"github.com/gogpu/autoremesh/halfedge"
	"github.com/gogpu/autoremesh/holefix"
	"github.com/gogpu/autoremesh/quadextract"
)

// ErrNoQuads is returned when no quad survives extraction, filtering and
// hole fixing.
var ErrNoQuads = errors.New("quadremesh: no quads")

// Extractor turns a parameterized triangle mesh into quads.
// quadextract.Extractor implements it.
type Extractor interface {
	Extract(ctx context.Context, in quadextract.Input) (quadextract.Output, error)
}

// Output is the quad mesh of one island in the frame of the input mesh.
type Output struct {
	Vertices []geom.Vec3
	Quads    [][4]int
	// Dropped counts extracted quads removed as degenerate.
	Dropped int
	Stats   quadextract.Stats
	// Problems counts topology diagnostics reported by the extractor.
	Problems int
	Holes    holefix.Report
}

// Adapter runs an Extractor followed by the hole fixer.
type Adapter struct {
	// Extractor defaults to quadextract.Extractor{} when nil.
	Extractor Extractor
}

// Remesh extracts quads with the default extractor.
func Remesh(ctx context.Context, mesh *halfedge.Mesh, valences []int) (*Output, error) {
	return Adapter{}.Remesh(ctx, mesh, valences)
}

// Remesh extracts the quads of mesh from its per-corner UVs, drops the
// degenerate ones and fills small holes. An extractor reporting
// quadextract.ErrNoQuads is not an error here; ErrNoQuads is returned only
// when nothing is left after hole fixing.
func (a Adapter) Remesh(ctx context.Context, mesh *halfedge.Mesh, valences []int) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ex := a.Extractor
	if ex == nil {
		ex = quadextract.Extractor{}
	}

	in := quadextract.Input{
		Vertices:  mesh.Vertices,
		Triangles: mesh.Faces,
		CornerUVs: mesh.CornerUVs(),
		Valences:  valences,
	}
	res, err := ex.Extract(ctx, in)
	if err != nil && !errors.Is(err, quadextract.ErrNoQuads) {
		return nil, fmt.Errorf("quadremesh: extract: %w", err)
	}

	quads, dropped := Filter(res.Quads, len(res.Vertices))
	if dropped > 0 {
		slogger().Debug("quadremesh: dropped degenerate quads", "count", dropped)
	}
	vertices, quads, report := holefix.Fix(res.Vertices, quads)
	out := &Output{
		Vertices: vertices,
		Quads:    quads,
		Dropped:  dropped,
		Stats:    res.Stats,
		Problems: len(res.Problems),
		Holes:    report,
	}
	if len(out.Quads) == 0 {
		return out, ErrNoQuads
	}
	return out, nil
}

// Filter returns the quads whose four indices are distinct and within
// [0, vertexCount), and the number removed. Order is preserved.
func Filter(quads [][4]int, vertexCount int) ([][4]int, int) {
	out := make([][4]int, 0, len(quads))
	for _, q := range quads {
		if valid(q, vertexCount) {
			out = append(out, q)
		}
	}
	return out, len(quads) - len(out)
}

func valid(q [4]int, vertexCount int) bool {
	for i, v := range q {
		if v == quadextract.InvalidIndex || v < 0 || v >= vertexCount {
			return false
		}
		for _, w := range q[:i] {
			if v == w {
				return false
			}
		}
	}
	return true
}
