package quadextract

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/gogpu/autoremesh/geom"
)

// snapEpsilon is the distance below which a UV coordinate is treated as
// lying on an integer.
const snapEpsilon = 1e-9

// insideEpsilon is the barycentric tolerance of the iso-line intersection
// test.
const insideEpsilon = 1e-9

// link is an undirected edge between two crossing points, stored with
// a < b.
type link struct {
	a, b int
}

func newLink(a, b int) link {
	if b < a {
		a, b = b, a
	}
	return link{a, b}
}

// crossing is a point where an iso-line meets a triangle edge, or an
// intersection of two iso-lines inside a triangle.
type crossing struct {
	id int
	uv geom.Vec2
}

// segment is the part of iso-line value k inside one triangle.
type segment struct {
	k    int
	a, b crossing
}

// split collects the intersections found on one u iso-line link.
type split struct {
	a, b crossing
	mids []crossing
}

// graph is the crossing-point graph of one extraction.
type graph struct {
	in Input

	keys          map[geom.PositionKey]int
	points        []geom.Vec3
	source        []int // triangle that created each point
	intersections map[int]struct{}

	links    map[link]struct{}
	canceled map[link]struct{}
	splits   map[link]*split
	chains   []link
}

func newGraph(in Input) *graph {
	return &graph{
		in:            in,
		keys:          make(map[geom.PositionKey]int),
		intersections: make(map[int]struct{}),
		links:         make(map[link]struct{}),
		canceled:      make(map[link]struct{}),
		splits:        make(map[link]*split),
	}
}

// point returns the index of the crossing point at p, adding it when no
// point shares its key.
func (g *graph) point(p geom.Vec3, tri int) int {
	k := geom.KeyOf(p)
	if id, ok := g.keys[k]; ok {
		return id
	}
	id := len(g.points)
	g.keys[k] = id
	g.points = append(g.points, p)
	g.source = append(g.source, tri)
	return id
}

func (g *graph) addLink(a, b int) {
	if a != b {
		g.links[newLink(a, b)] = struct{}{}
	}
}

func (g *graph) intersectionCount() int { return len(g.intersections) }

func snap(x float64) float64 {
	if r := math.Round(x); math.Abs(x-r) < snapEpsilon {
		return r
	}
	return x
}

// onLattice reports whether uv lies on both a u and a v iso-line. Such
// points are grid vertices even when no triangle holds segments of both
// lines, as at the corners of a parameterized boundary.
func onLattice(uv geom.Vec2) bool {
	return math.Abs(uv.X-math.Round(uv.X)) < snapEpsilon && math.Abs(uv.Y-math.Round(uv.Y)) < snapEpsilon
}

func (g *graph) cornerUVs(f int) [3]geom.Vec2 {
	uv := g.in.CornerUVs[f]
	for i := range uv {
		uv[i] = geom.V2(snap(uv[i].X), snap(uv[i].Y))
	}
	return uv
}

// scan runs the u pass over every triangle, then the v pass, then replaces
// the u links that were split by intersections with their chains.
func (g *graph) scan(ctx context.Context, maxLines int) error {
	uSegments := make([][]segment, len(g.in.Triangles))
	for f := range g.in.Triangles {
		if f%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		uSegments[f] = g.crossings(f, 0, maxLines)
		for _, s := range uSegments[f] {
			g.addLink(s.a.id, s.b.id)
		}
	}
	for f := range g.in.Triangles {
		if f%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		for _, s := range g.crossings(f, 1, maxLines) {
			g.intersect(f, s, uSegments[f])
		}
	}
	g.applySplits()
	for l := range g.canceled {
		delete(g.links, l)
	}
	for _, l := range g.chains {
		g.addLink(l.a, l.b)
	}
	return nil
}

// crossings returns the segments of the integer iso-lines of the given UV
// axis inside triangle f. Edge crossings are interpolated from the endpoint
// with the lower vertex index, so both triangles sharing an edge compute
// bit-identical positions.
func (g *graph) crossings(f, axis, maxLines int) []segment {
	t := g.in.Triangles[f]
	uv := g.cornerUVs(f)
	lo := math.Min(uv[0].Component(axis), math.Min(uv[1].Component(axis), uv[2].Component(axis)))
	hi := math.Max(uv[0].Component(axis), math.Max(uv[1].Component(axis), uv[2].Component(axis)))
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil
	}
	first, last := math.Ceil(lo), math.Floor(hi)
	if last-first >= float64(maxLines) {
		slogger().Warn("quadextract: triangle spans too many iso-lines, skipped",
			"triangle", f, "axis", axis, "span", hi-lo)
		return nil
	}

	var segs []segment
	var pts []crossing
	add := func(p geom.Vec3, puv geom.Vec2) {
		id := g.point(p, f)
		if onLattice(puv) {
			g.intersections[id] = struct{}{}
		}
		for _, c := range pts {
			if c.id == id {
				return
			}
		}
		pts = append(pts, crossing{id: id, uv: puv})
	}
	for k := int(first); k <= int(last); k++ {
		kf := float64(k)
		pts = pts[:0]
		for i := range 3 {
			if uv[i].Component(axis) == kf {
				add(g.in.Vertices[t[i]], uv[i])
			}
		}
		for i := range 3 {
			a, b := i, (i+1)%3
			if t[b] < t[a] {
				a, b = b, a
			}
			ua, ub := uv[a].Component(axis), uv[b].Component(axis)
			if (ua < kf && kf < ub) || (ub < kf && kf < ua) {
				s := (kf - ua) / (ub - ua)
				add(g.in.Vertices[t[a]].Lerp(g.in.Vertices[t[b]], s), uv[a].Lerp(uv[b], s))
			}
		}
		if len(pts) == 2 {
			segs = append(segs, segment{k: k, a: pts[0], b: pts[1]})
		}
	}
	return segs
}

// intersect splits the v segment s at every u segment of the same triangle
// it crosses. The v chain is linked immediately; the u links are recorded
// for splitting once the pass is over.
func (g *graph) intersect(f int, s segment, uSegs []segment) {
	t := g.in.Triangles[f]
	uv := g.cornerUVs(f)
	chain := []crossing{s.a, s.b}
	for _, u := range uSegs {
		p := geom.V2(float64(u.k), float64(s.k))
		l0, l1, l2, ok := barycentric(p, uv[0], uv[1], uv[2])
		if !ok || l0 < -insideEpsilon || l1 < -insideEpsilon || l2 < -insideEpsilon {
			continue
		}
		pos := g.in.Vertices[t[0]].Mul(l0).
			Add(g.in.Vertices[t[1]].Mul(l1)).
			Add(g.in.Vertices[t[2]].Mul(l2))
		x := crossing{id: g.point(pos, f), uv: p}
		g.intersections[x.id] = struct{}{}
		chain = append(chain, x)

		l := newLink(u.a.id, u.b.id)
		sp := g.splits[l]
		if sp == nil {
			sp = &split{a: u.a, b: u.b}
			g.splits[l] = sp
		}
		sp.mids = append(sp.mids, x)
	}
	for _, l := range chainLinks(chain, 0) {
		g.addLink(l.a, l.b)
	}
}

// chainLinks sorts points along the given UV axis and returns the links
// between consecutive distinct points.
func chainLinks(chain []crossing, axis int) []link {
	slices.SortStableFunc(chain, func(a, b crossing) int {
		if c := cmp.Compare(a.uv.Component(axis), b.uv.Component(axis)); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	var out []link
	for i := 1; i < len(chain); i++ {
		if chain[i-1].id != chain[i].id {
			out = append(out, newLink(chain[i-1].id, chain[i].id))
		}
	}
	return out
}

// applySplits cancels every split u link and queues its chain instead.
// Cancellation happens after both passes so that a link split in one
// triangle is not resurrected by a neighbour sharing the same edge.
func (g *graph) applySplits() {
	keys := make([]link, 0, len(g.splits))
	for l := range g.splits {
		keys = append(keys, l)
	}
	slices.SortFunc(keys, compareLinks)
	for _, l := range keys {
		sp := g.splits[l]
		g.canceled[l] = struct{}{}
		chain := append([]crossing{sp.a, sp.b}, sp.mids...)
		g.chains = append(g.chains, chainLinks(chain, 1)...)
	}
}

func compareLinks(x, y link) int {
	if c := cmp.Compare(x.a, y.a); c != 0 {
		return c
	}
	return cmp.Compare(x.b, y.b)
}

// barycentric returns the barycentric coordinates of p in triangle
// (a, b, c); ok is false for a degenerate triangle.
func barycentric(p, a, b, c geom.Vec2) (l0, l1, l2 float64, ok bool) {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d := ab.Cross(ac)
	if math.Abs(d) < 1e-15 {
		return 0, 0, 0, false
	}
	l1 = ap.Cross(ac) / d
	l2 = ab.Cross(ap) / d
	return 1 - l1 - l2, l1, l2, true
}
