// Package quadextract turns a triangle mesh with per-corner UV coordinates
// into a quad mesh by tracing the integer iso-lines of the parameterization.
//
// Extraction runs in three steps. First every triangle is scanned for the
// points where its edges cross integer u and v values; crossings computed in
// different triangles are merged through geom.PositionKey, so neighbouring
// triangles agree on shared points. Within a triangle two crossings of the
// same iso-value form a link, and where a v iso-line meets a u iso-line an
// intersection point is inserted and both links are split there. Second,
// the link graph is reduced to polylines between junctions (intersections
// and points whose degree is not 2). Third, the faces of the planar
// junction graph that are bounded by exactly four polylines become quads.
package quadextract

import (
	"context"
	"errors"
	"fmt"

	"github.com/gogpu/autoremesh/geom"
)

// InvalidIndex marks a missing vertex in an output quad.
const InvalidIndex = -1

// ErrNoQuads is returned when extraction produced no quad.
var ErrNoQuads = errors.New("quadextract: no quads extracted")

// ErrBadInput is returned for inputs whose arrays disagree in length or
// reference missing vertices.
var ErrBadInput = errors.New("quadextract: malformed input")

// Input is a parameterized triangle mesh.
type Input struct {
	Vertices  []geom.Vec3
	Triangles [][3]int
	// CornerUVs holds the UV of each triangle corner.
	CornerUVs [][3]geom.Vec2
	// Valences optionally holds the target valence of each vertex. The
	// built-in extractor does not use it.
	Valences []int
}

// Output is an extracted quad mesh.
type Output struct {
	Vertices []geom.Vec3
	// Quads are wound counter-clockwise about the source surface normal.
	Quads [][4]int
	// Problems lists inconsistencies found while tracing polylines. They
	// are not fatal; the affected polylines are dropped.
	Problems []*TopologyError
	Stats    Stats
}

// Stats summarizes the intermediate graphs of one extraction.
type Stats struct {
	CrossPoints   int
	Links         int
	Intersections int
	Polylines     int
	Faces         int
}

// TopologyError reports a crossing point in the middle of a polyline that
// does not have exactly one unvisited neighbour.
type TopologyError struct {
	Point     int
	Position  geom.Vec3
	Unvisited int
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("quadextract: point %d at %v has %d unvisited neighbours, want 1",
		e.Point, e.Position, e.Unvisited)
}

// Extractor is the built-in quad extractor. The zero value is ready to use.
type Extractor struct {
	// MaxIsoLines bounds the number of iso-values scanned per triangle and
	// axis; triangles spanning more are skipped. 0 selects 4096.
	MaxIsoLines int
}

// Extract builds the quad mesh of in. The result is deterministic for a
// given input.
func (e Extractor) Extract(ctx context.Context, in Input) (Output, error) {
	if len(in.CornerUVs) != len(in.Triangles) {
		return Output{}, fmt.Errorf("%w: %d corner UV sets for %d triangles",
			ErrBadInput, len(in.CornerUVs), len(in.Triangles))
	}
	for f, t := range in.Triangles {
		for _, v := range t {
			if v < 0 || v >= len(in.Vertices) {
				return Output{}, fmt.Errorf("%w: triangle %d references vertex %d", ErrBadInput, f, v)
			}
		}
	}
	maxLines := e.MaxIsoLines
	if maxLines <= 0 {
		maxLines = 4096
	}

	g := newGraph(in)
	if err := g.scan(ctx, maxLines); err != nil {
		return Output{}, err
	}
	out := Output{Stats: Stats{
		CrossPoints:   len(g.points),
		Links:         len(g.links),
		Intersections: g.intersectionCount(),
	}}

	j := g.junctions()
	out.Problems = j.trace()
	for _, p := range out.Problems {
		slogger().Warn("quadextract: inconsistent polyline", "point", p.Point, "unvisited", p.Unvisited)
	}
	j.prune()
	if j.collapseShort(0.01) {
		j.prune()
	}
	out.Stats.Polylines = j.alive()

	quads := j.faces()
	out.Stats.Faces = len(quads)
	quads = cleanup(quads)
	out.Vertices, out.Quads = compact(g.points, quads)

	slogger().Debug("quadextract: extracted",
		"crossPoints", out.Stats.CrossPoints, "links", out.Stats.Links,
		"intersections", out.Stats.Intersections, "polylines", out.Stats.Polylines,
		"quads", len(out.Quads))
	if len(out.Quads) == 0 {
		return out, ErrNoQuads
	}
	return out, nil
}

// compact keeps the points referenced by quads, numbered in first-use order.
func compact(points []geom.Vec3, quads [][4]int) ([]geom.Vec3, [][4]int) {
	index := make(map[int]int)
	var vertices []geom.Vec3
	out := make([][4]int, len(quads))
	for i, q := range quads {
		for k, p := range q {
			id, ok := index[p]
			if !ok {
				id = len(vertices)
				index[p] = id
				vertices = append(vertices, points[p])
			}
			out[i][k] = id
		}
	}
	return vertices, out
}
