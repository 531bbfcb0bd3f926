package quadextract

import (
	"cmp"
	"math"
	"slices"

	"github.com/gogpu/autoremesh/geom"
)

// polyline is a chain of crossing points between two junctions.
type polyline struct {
	from, to int
	path     []int
	dead     bool
}

// junctionGraph is the link graph reduced to polylines.
type junctionGraph struct {
	g        *graph
	adj      map[int][]int
	nodes    []int
	junction map[int]bool
	lines    []polyline
}

func (g *graph) junctions() *junctionGraph {
	links := make([]link, 0, len(g.links))
	for l := range g.links {
		links = append(links, l)
	}
	slices.SortFunc(links, compareLinks)

	j := &junctionGraph{g: g, adj: make(map[int][]int), junction: make(map[int]bool)}
	for _, l := range links {
		j.adj[l.a] = append(j.adj[l.a], l.b)
		j.adj[l.b] = append(j.adj[l.b], l.a)
	}
	for n, nb := range j.adj {
		slices.Sort(nb)
		j.nodes = append(j.nodes, n)
	}
	slices.Sort(j.nodes)
	for _, n := range j.nodes {
		_, crossed := g.intersections[n]
		if crossed || len(j.adj[n]) != 2 {
			j.junction[n] = true
		}
	}
	return j
}

// trace walks from every junction along each unused link through degree-2
// points until the next junction. A mid-path point without exactly one
// unused link ends the walk and is reported.
func (j *junctionGraph) trace() []*TopologyError {
	used := make(map[link]bool)
	var problems []*TopologyError
	for _, start := range j.nodes {
		if !j.junction[start] {
			continue
		}
		for _, n := range j.adj[start] {
			if used[newLink(start, n)] {
				continue
			}
			used[newLink(start, n)] = true
			path := []int{start, n}
			cur := n
			broken := false
			for !j.junction[cur] {
				next, unvisited := -1, 0
				for _, w := range j.adj[cur] {
					if !used[newLink(cur, w)] {
						next = w
						unvisited++
					}
				}
				if unvisited != 1 {
					problems = append(problems, &TopologyError{
						Point: cur, Position: j.g.points[cur], Unvisited: unvisited,
					})
					broken = true
					break
				}
				used[newLink(cur, next)] = true
				path = append(path, next)
				cur = next
			}
			if broken || cur == start {
				continue
			}
			j.lines = append(j.lines, polyline{from: start, to: cur, path: path})
		}
	}
	return problems
}

func (j *junctionGraph) alive() int {
	n := 0
	for _, l := range j.lines {
		if !l.dead {
			n++
		}
	}
	return n
}

// prune repeatedly removes polylines that end at a junction of degree 1.
func (j *junctionGraph) prune() {
	degree := make(map[int]int)
	for _, l := range j.lines {
		if !l.dead {
			degree[l.from]++
			degree[l.to]++
		}
	}
	for changed := true; changed; {
		changed = false
		for i := range j.lines {
			l := &j.lines[i]
			if l.dead || (degree[l.from] > 1 && degree[l.to] > 1) {
				continue
			}
			l.dead = true
			degree[l.from]--
			degree[l.to]--
			changed = true
		}
	}
}

func (j *junctionGraph) length(l polyline) float64 {
	total := 0.0
	for i := 1; i < len(l.path); i++ {
		total += j.g.points[l.path[i]].Sub(j.g.points[l.path[i-1]]).Length()
	}
	return total
}

// collapseShort merges the end junctions of polylines shorter than ratio
// times the average polyline length into their midpoint. It reports
// whether any junction moved.
func (j *junctionGraph) collapseShort(ratio float64) bool {
	lengths := make([]float64, len(j.lines))
	total, count := 0.0, 0
	for i, l := range j.lines {
		if l.dead {
			continue
		}
		lengths[i] = j.length(l)
		total += lengths[i]
		count++
	}
	if count == 0 {
		return false
	}
	threshold := ratio * total / float64(count)

	parent := make(map[int]int)
	var find func(int) int
	find = func(x int) int {
		p, ok := parent[x]
		if !ok || p == x {
			return x
		}
		r := find(p)
		parent[x] = r
		return r
	}
	collapsed := false
	for i := range j.lines {
		l := &j.lines[i]
		if l.dead || lengths[i] > threshold {
			continue
		}
		a, b := find(l.from), find(l.to)
		l.dead = true
		if a == b {
			continue
		}
		if b < a {
			a, b = b, a
		}
		j.g.points[a] = j.g.points[a].Lerp(j.g.points[b], 0.5)
		parent[b] = a
		collapsed = true
	}
	if !collapsed {
		return false
	}
	for i := range j.lines {
		l := &j.lines[i]
		if l.dead {
			continue
		}
		l.from, l.to = find(l.from), find(l.to)
		if l.from == l.to {
			l.dead = true
		}
	}
	slogger().Debug("quadextract: collapsed short polylines", "threshold", threshold)
	return true
}

// Darts are directed polylines: dart 2i runs along line i from its start,
// dart 2i+1 runs back. d^1 is the reverse of d.

func (j *junctionGraph) dartFrom(d int) int {
	l := j.lines[d/2]
	if d%2 == 0 {
		return l.from
	}
	return l.to
}

func (j *junctionGraph) dartTo(d int) int { return j.dartFrom(d ^ 1) }

// dartStep returns the first point after the origin of d.
func (j *junctionGraph) dartStep(d int) int {
	path := j.lines[d/2].path
	if d%2 == 0 {
		return path[1]
	}
	return path[len(path)-2]
}

// normal returns the surface normal at a crossing point, taken from the
// triangle that created it.
func (j *junctionGraph) normal(p int) geom.Vec3 {
	t := j.g.in.Triangles[j.g.source[p]]
	v := j.g.in.Vertices
	n := geom.TriangleNormal(v[t[0]], v[t[1]], v[t[2]])
	if n.IsZero() || !n.IsFinite() {
		return geom.V3(0, 0, 1)
	}
	return n
}

// faces walks the faces of the junction graph embedded on the surface and
// returns those bounded by four distinct junctions that wind
// counter-clockwise about the surface normal.
//
// Outgoing darts are ordered by angle around each junction; the face walk
// continues from the reverse of the arriving dart to its clockwise
// neighbour, which keeps each face on the left.
func (j *junctionGraph) faces() [][4]int {
	nd := 2 * len(j.lines)
	angle := make([]float64, nd)
	out := make(map[int][]int)
	for d := range nd {
		if j.lines[d/2].dead {
			continue
		}
		o := j.dartFrom(d)
		u, v := geom.Orthonormal(j.normal(o))
		dir := j.g.points[j.dartStep(d)].Sub(j.g.points[o])
		angle[d] = math.Atan2(dir.Dot(v), dir.Dot(u))
		out[o] = append(out[o], d)
	}
	slot := make([]int, nd)
	for _, ds := range out {
		slices.SortFunc(ds, func(a, b int) int {
			if c := cmp.Compare(angle[a], angle[b]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		for i, d := range ds {
			slot[d] = i
		}
	}
	next := func(d int) int {
		ds := out[j.dartTo(d)]
		return ds[(slot[d^1]-1+len(ds))%len(ds)]
	}

	visited := make([]bool, nd)
	var quads [][4]int
	for d := range nd {
		if j.lines[d/2].dead || visited[d] {
			continue
		}
		var cycle []int
		closed := false
		e := d
		for range nd {
			visited[e] = true
			cycle = append(cycle, j.dartFrom(e))
			e = next(e)
			if e == d {
				closed = true
				break
			}
			if visited[e] {
				break
			}
		}
		if !closed || len(cycle) != 4 {
			continue
		}
		q := [4]int{cycle[0], cycle[1], cycle[2], cycle[3]}
		if !distinct(q) || !j.counterClockwise(q) {
			continue
		}
		quads = append(quads, q)
	}
	return quads
}

func distinct(q [4]int) bool {
	for a := range 4 {
		for b := a + 1; b < 4; b++ {
			if q[a] == q[b] {
				return false
			}
		}
	}
	return true
}

// counterClockwise compares the Newell normal of q with the surface
// normals at its corners.
func (j *junctionGraph) counterClockwise(q [4]int) bool {
	var newell, surface geom.Vec3
	for i := range 4 {
		a, b := j.g.points[q[i]], j.g.points[q[(i+1)%4]]
		newell = newell.Add(a.Cross(b))
		surface = surface.Add(j.normal(q[i]))
	}
	return newell.Dot(surface) > 0
}
