package quadextract

// cleanup repairs the raw face list: faces that share most of their
// directed edges with other faces are flipped, then faces touching
// non-manifold boundary vertices are dropped and only the largest
// edge-connected piece is kept, until nothing changes.
func cleanup(quads [][4]int) [][4]int {
	quads = fixFlipped(quads)
	quads = keepLargestPiece(quads)
	for range len(quads) {
		var changed bool
		quads, changed = removeNonManifold(quads)
		if !changed {
			break
		}
		quads = keepLargestPiece(quads)
	}
	return quads
}

type edge struct{ a, b int }

func reversed(q [4]int) [4]int { return [4]int{q[3], q[2], q[1], q[0]} }

// fixFlipped reverses faces with three or more directed edges that also
// belong to another face.
func fixFlipped(quads [][4]int) [][4]int {
	owners := make(map[edge][]int)
	for f, q := range quads {
		for i := range 4 {
			e := edge{q[i], q[(i+1)%4]}
			owners[e] = append(owners[e], f)
		}
	}
	conflicts := make([]int, len(quads))
	for _, fs := range owners {
		if len(fs) < 2 {
			continue
		}
		for _, f := range fs {
			conflicts[f]++
		}
	}
	out := make([][4]int, len(quads))
	for f, q := range quads {
		if conflicts[f] >= 3 {
			q = reversed(q)
			slogger().Debug("quadextract: flipped face", "face", f)
		}
		out[f] = q
	}
	return out
}

// removeNonManifold drops faces touching a vertex with more than two open
// boundary edge ends.
func removeNonManifold(quads [][4]int) ([][4]int, bool) {
	directed := make(map[edge]struct{}, 4*len(quads))
	for _, q := range quads {
		for i := range 4 {
			directed[edge{q[i], q[(i+1)%4]}] = struct{}{}
		}
	}
	open := make(map[int]int)
	for e := range directed {
		if _, ok := directed[edge{e.b, e.a}]; ok {
			continue
		}
		open[e.a]++
		open[e.b]++
	}
	out := quads[:0:0]
	for _, q := range quads {
		bad := false
		for _, v := range q {
			if open[v] > 2 {
				bad = true
				break
			}
		}
		if !bad {
			out = append(out, q)
		}
	}
	return out, len(out) != len(quads)
}

// keepLargestPiece keeps the largest set of faces connected through shared
// edges. Ties go to the piece containing the earliest face. Face order is
// preserved.
func keepLargestPiece(quads [][4]int) [][4]int {
	if len(quads) == 0 {
		return quads
	}
	parent := make([]int, len(quads))
	for i := range parent {
		parent[i] = i
	}
	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	firstFace := make(map[edge]int)
	for f, q := range quads {
		for i := range 4 {
			a, b := q[i], q[(i+1)%4]
			if b < a {
				a, b = b, a
			}
			e := edge{a, b}
			g, ok := firstFace[e]
			if !ok {
				firstFace[e] = f
				continue
			}
			ra, rb := find(f), find(g)
			if ra < rb {
				parent[rb] = ra
			} else if rb < ra {
				parent[ra] = rb
			}
		}
	}
	size := make(map[int]int)
	best := -1
	for f := range quads {
		r := find(f)
		size[r]++
	}
	for f := range quads {
		r := find(f)
		if best == -1 || size[r] > size[best] {
			best = r
		}
	}
	out := make([][4]int, 0, size[best])
	for f, q := range quads {
		if find(f) == best {
			out = append(out, q)
		}
	}
	return out
}
