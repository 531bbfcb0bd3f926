package isotropic

import (
	"context"
	"math"
	"slices"

	"github.com/gogpu/autoremesh/geom"
)

// DefaultSharpEdgeDegrees is the dihedral angle above which an edge is kept
// as a feature.
const DefaultSharpEdgeDegrees = 60

// SplitCollapse is an incremental isotropic remesher: long edges are split,
// short edges collapsed, valences equalized by edge flips and vertices
// relaxed in their tangent plane.
//
// Boundary, non-manifold and sharp edges are features. Feature vertices never
// move and feature edges are never flipped.
type SplitCollapse struct {
	// Iterations is the number of split/collapse/flip/smooth rounds.
	// 0 selects 3.
	Iterations int
}

// Remesh implements Remesher.
func (sc SplitCollapse) Remesh(ctx context.Context, in Mesh, targetEdgeLength, sharpEdgeDegrees float64) (Mesh, error) {
	iterations := sc.Iterations
	if iterations <= 0 {
		iterations = 3
	}
	if sharpEdgeDegrees <= 0 {
		sharpEdgeDegrees = DefaultSharpEdgeDegrees
	}
	w := newWorkMesh(in)
	high := targetEdgeLength * 4 / 3
	low := targetEdgeLength * 4 / 5
	sharpCos := math.Cos(geom.Radians(sharpEdgeDegrees))

	for range iterations {
		if err := ctx.Err(); err != nil {
			return Mesh{}, err
		}
		w.markFeatures(sharpCos)
		w.splitLongEdges(high)
		w.markFeatures(sharpCos)
		w.collapseShortEdges(low, high)
		w.flipEdges()
		w.relax()
	}
	return w.compact(), nil
}

// workMesh is a triangle soup with lazily pruned vertex-to-face adjacency.
type workMesh struct {
	v       []geom.Vec3
	t       [][3]int
	dead    []bool
	live    int
	vf      [][]int
	feature []bool
	// featureEdges holds edges (lo, hi) that must not be flipped.
	featureEdges map[[2]int]bool
}

func newWorkMesh(in Mesh) *workMesh {
	w := &workMesh{
		v:    slices.Clone(in.Vertices),
		t:    slices.Clone(in.Triangles),
		dead: make([]bool, len(in.Triangles)),
		vf:   make([][]int, len(in.Vertices)),
	}
	for f, t := range w.t {
		if t[0] == t[1] || t[1] == t[2] || t[2] == t[0] {
			w.dead[f] = true
			continue
		}
		w.live++
		for _, v := range t {
			w.vf[v] = append(w.vf[v], f)
		}
	}
	return w
}

func (w *workMesh) kill(f int) {
	if !w.dead[f] {
		w.dead[f] = true
		w.live--
	}
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// facesOf returns the live faces around v and prunes stale entries.
func (w *workMesh) facesOf(v int) []int {
	live := w.vf[v][:0]
	for _, f := range w.vf[v] {
		if w.dead[f] || !slices.Contains(w.t[f][:], v) || slices.Contains(live, f) {
			continue
		}
		live = append(live, f)
	}
	w.vf[v] = live
	return live
}

func (w *workMesh) neighbors(v int) []int {
	var out []int
	for _, f := range w.facesOf(v) {
		for _, u := range w.t[f] {
			if u != v && !slices.Contains(out, u) {
				out = append(out, u)
			}
		}
	}
	return out
}

func (w *workMesh) edgeFaces(a, b int) []int {
	var out []int
	for _, f := range w.facesOf(a) {
		if slices.Contains(w.t[f][:], b) {
			out = append(out, f)
		}
	}
	return out
}

func (w *workMesh) normal(f int) geom.Vec3 {
	t := w.t[f]
	return geom.TriangleNormal(w.v[t[0]], w.v[t[1]], w.v[t[2]])
}

func (w *workMesh) edges() map[[2]int][]int {
	em := make(map[[2]int][]int)
	for f, t := range w.t {
		if w.dead[f] {
			continue
		}
		for i := range 3 {
			k := edgeKey(t[i], t[(i+1)%3])
			em[k] = append(em[k], f)
		}
	}
	return em
}

// sortedEdgeKeys returns the keys of em in a stable order.
func sortedEdgeKeys(em map[[2]int][]int) [][2]int {
	keys := make([][2]int, 0, len(em))
	for k := range em {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if a[0] != b[0] {
			return a[0] - b[0]
		}
		return a[1] - b[1]
	})
	return keys
}

func (w *workMesh) markFeatures(sharpCos float64) {
	w.feature = make([]bool, len(w.v))
	w.featureEdges = make(map[[2]int]bool)
	for k, faces := range w.edges() {
		isFeature := len(faces) != 2
		if !isFeature && w.normal(faces[0]).Dot(w.normal(faces[1])) < sharpCos {
			isFeature = true
		}
		if isFeature {
			w.featureEdges[k] = true
			w.feature[k[0]] = true
			w.feature[k[1]] = true
		}
	}
}

func (w *workMesh) addVertex(p geom.Vec3, feature bool) int {
	w.v = append(w.v, p)
	w.vf = append(w.vf, nil)
	w.feature = append(w.feature, feature)
	return len(w.v) - 1
}

func (w *workMesh) addFace(a, b, c int) {
	f := len(w.t)
	w.t = append(w.t, [3]int{a, b, c})
	w.dead = append(w.dead, false)
	w.live++
	w.vf[a] = append(w.vf[a], f)
	w.vf[b] = append(w.vf[b], f)
	w.vf[c] = append(w.vf[c], f)
}

// splitLongEdges splits every edge longer than high at its midpoint, using
// 1-to-2, 1-to-3 or 1-to-4 face subdivision, until no long edge remains or
// a round limit is hit.
func (w *workMesh) splitLongEdges(high float64) {
	for range 16 {
		mid := make(map[[2]int]int)
		for _, k := range sortedEdgeKeys(w.edges()) {
			if w.v[k[0]].Sub(w.v[k[1]]).Length() > high {
				p := w.v[k[0]].Lerp(w.v[k[1]], 0.5)
				mid[k] = w.addVertex(p, w.featureEdges[k])
			}
		}
		if len(mid) == 0 {
			return
		}
		faceCount := len(w.t)
		for f := range faceCount {
			if w.dead[f] {
				continue
			}
			w.subdivide(f, mid)
		}
	}
}

func (w *workMesh) subdivide(f int, mid map[[2]int]int) {
	t := w.t[f]
	var m [3]int
	split := 0
	for i := range 3 {
		m[i] = -1
		if idx, ok := mid[edgeKey(t[i], t[(i+1)%3])]; ok {
			m[i] = idx
			split++
		}
	}
	if split == 0 {
		return
	}
	w.kill(f)
	switch split {
	case 1:
		for i := range 3 {
			if m[i] >= 0 {
				a, b, c := t[i], t[(i+1)%3], t[(i+2)%3]
				w.addFace(a, m[i], c)
				w.addFace(m[i], b, c)
			}
		}
	case 2:
		// Rotate so the unsplit edge is (t[2], t[0]).
		r := 0
		for i := range 3 {
			if m[i] < 0 {
				r = (i + 1) % 3
			}
		}
		v0, v1, v2 := t[r], t[(r+1)%3], t[(r+2)%3]
		m0, m1 := m[r], m[(r+1)%3]
		w.addFace(m0, v1, m1)
		w.addFace(v0, m0, m1)
		w.addFace(v0, m1, v2)
	case 3:
		w.addFace(t[0], m[0], m[2])
		w.addFace(m[0], t[1], m[1])
		w.addFace(m[2], m[1], t[2])
		w.addFace(m[0], m[1], m[2])
	}
}

// collapseShortEdges removes edges shorter than low by merging one endpoint
// into the other. A collapse is rejected when it would break the link
// condition, create an edge longer than high or flip a face.
func (w *workMesh) collapseShortEdges(low, high float64) {
	type candidate struct {
		k   [2]int
		len float64
	}
	var candidates []candidate
	for _, k := range sortedEdgeKeys(w.edges()) {
		if l := w.v[k[0]].Sub(w.v[k[1]]).Length(); l < low {
			candidates = append(candidates, candidate{k, l})
		}
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		switch {
		case a.len < b.len:
			return -1
		case a.len > b.len:
			return 1
		}
		return 0
	})

	locked := make(map[int]bool)
	for _, c := range candidates {
		if w.live <= 8 {
			return
		}
		a, b := c.k[0], c.k[1]
		if locked[a] || locked[b] {
			continue
		}
		if w.feature[a] && w.feature[b] {
			continue
		}
		if w.feature[a] {
			a, b = b, a
		}
		if !w.collapse(a, b, high) {
			continue
		}
		locked[b] = true
		for _, n := range w.neighbors(b) {
			locked[n] = true
		}
	}
}

// collapse merges a into b. b keeps its position when it is a feature vertex,
// otherwise it moves to the edge midpoint.
func (w *workMesh) collapse(a, b int, high float64) bool {
	shared := w.edgeFaces(a, b)
	if len(shared) != 2 {
		return false
	}
	var opposite []int
	for _, f := range shared {
		for _, v := range w.t[f] {
			if v != a && v != b {
				opposite = append(opposite, v)
			}
		}
	}
	na, nb := w.neighbors(a), w.neighbors(b)
	common := 0
	for _, v := range na {
		if slices.Contains(nb, v) {
			common++
			if !slices.Contains(opposite, v) {
				return false
			}
		}
	}
	if common != 2 {
		return false
	}

	target := w.v[b]
	if !w.feature[b] {
		target = w.v[a].Lerp(w.v[b], 0.5)
	}
	for _, n := range na {
		if n != b && w.v[n].Sub(target).Length() > high {
			return false
		}
	}
	for _, n := range nb {
		if n != a && w.v[n].Sub(target).Length() > high {
			return false
		}
	}
	if !w.keepsOrientation(a, b, target) || !w.keepsOrientation(b, a, target) {
		return false
	}

	for _, f := range w.facesOf(a) {
		if slices.Contains(shared, f) {
			w.kill(f)
			continue
		}
		for i := range 3 {
			if w.t[f][i] == a {
				w.t[f][i] = b
			}
		}
		w.vf[b] = append(w.vf[b], f)
	}
	w.vf[a] = nil
	w.v[b] = target
	return true
}

// keepsOrientation reports whether moving v to p leaves every face around v
// that does not contain other with a normal close to its current one.
func (w *workMesh) keepsOrientation(v, other int, p geom.Vec3) bool {
	for _, f := range w.facesOf(v) {
		t := w.t[f]
		if slices.Contains(t[:], other) {
			continue
		}
		before := w.normal(f)
		pts := [3]geom.Vec3{w.v[t[0]], w.v[t[1]], w.v[t[2]]}
		for i := range 3 {
			if t[i] == v {
				pts[i] = p
			}
		}
		after := geom.TriangleNormal(pts[0], pts[1], pts[2])
		if after.IsZero() || before.Dot(after) < 0.2 {
			return false
		}
	}
	return true
}

func (w *workMesh) targetValence(v int) int {
	if w.feature[v] {
		return 4
	}
	return 6
}

// flipEdges flips interior non-feature edges whenever that reduces the
// squared deviation of the four affected vertices from their ideal valence.
func (w *workMesh) flipEdges() {
	locked := make(map[int]bool)
	for _, k := range sortedEdgeKeys(w.edges()) {
		if w.featureEdges[k] || locked[k[0]] || locked[k[1]] {
			continue
		}
		faces := w.edgeFaces(k[0], k[1])
		if len(faces) != 2 {
			continue
		}
		// Orient: f1 holds a->b, f2 holds b->a.
		a, b := k[0], k[1]
		f1, f2 := faces[0], faces[1]
		if !hasDirected(w.t[f1], a, b) {
			f1, f2 = f2, f1
		}
		if !hasDirected(w.t[f1], a, b) || !hasDirected(w.t[f2], b, a) {
			continue
		}
		c := third(w.t[f1], a, b)
		d := third(w.t[f2], a, b)
		if c == d || locked[c] || locked[d] || slices.Contains(w.neighbors(c), d) {
			continue
		}

		dev := func(v, delta int) int {
			x := len(w.neighbors(v)) + delta - w.targetValence(v)
			return x * x
		}
		before := dev(a, 0) + dev(b, 0) + dev(c, 0) + dev(d, 0)
		after := dev(a, -1) + dev(b, -1) + dev(c, 1) + dev(d, 1)
		if after >= before {
			continue
		}

		n := w.normal(f1).Add(w.normal(f2))
		n1 := geom.TriangleNormal(w.v[a], w.v[d], w.v[c])
		n2 := geom.TriangleNormal(w.v[d], w.v[b], w.v[c])
		if n1.Dot(n) <= 0.2 || n2.Dot(n) <= 0.2 {
			continue
		}

		w.kill(f1)
		w.kill(f2)
		w.addFace(a, d, c)
		w.addFace(d, b, c)
		locked[a], locked[b], locked[c], locked[d] = true, true, true, true
	}
}

func hasDirected(t [3]int, a, b int) bool {
	for i := range 3 {
		if t[i] == a && t[(i+1)%3] == b {
			return true
		}
	}
	return false
}

func third(t [3]int, a, b int) int {
	for _, v := range t {
		if v != a && v != b {
			return v
		}
	}
	return -1
}

// relax moves every non-feature vertex halfway towards the centroid of its
// neighbours, restricted to its tangent plane.
func (w *workMesh) relax() {
	next := slices.Clone(w.v)
	for v := range w.v {
		if w.feature[v] {
			continue
		}
		faces := w.facesOf(v)
		if len(faces) == 0 {
			continue
		}
		var n geom.Vec3
		for _, f := range faces {
			t := w.t[f]
			n = n.Add(w.v[t[1]].Sub(w.v[t[0]]).Cross(w.v[t[2]].Sub(w.v[t[0]])))
		}
		n = n.Normalize()
		nbrs := w.neighbors(v)
		var c geom.Vec3
		for _, u := range nbrs {
			c = c.Add(w.v[u])
		}
		c = c.Div(float64(len(nbrs)))
		d := c.Sub(w.v[v])
		d = d.Sub(n.Mul(d.Dot(n)))
		next[v] = w.v[v].Add(d.Mul(0.5))
	}
	w.v = next
}

// compact drops dead faces and unreferenced vertices.
func (w *workMesh) compact() Mesh {
	remap := make([]int, len(w.v))
	for i := range remap {
		remap[i] = -1
	}
	var out Mesh
	for f, t := range w.t {
		if w.dead[f] {
			continue
		}
		var nt [3]int
		for i, v := range t {
			if remap[v] < 0 {
				remap[v] = len(out.Vertices)
				out.Vertices = append(out.Vertices, w.v[v])
			}
			nt[i] = remap[v]
		}
		out.Triangles = append(out.Triangles, nt)
	}
	return out
}
