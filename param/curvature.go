package param

import (
	"math"

	"github.com/gogpu/autoremesh/geom"
)

// PrincipalDirections estimates per-vertex principal curvature directions
// with Taubin's curvature tensor.
//
// pd1 is the direction of the principal curvature with the larger
// magnitude and pd2 completes it to a tangent frame. Where the two
// curvatures coincide (flat or umbilic regions) the directions are
// undefined and both are returned as zero vectors.
func PrincipalDirections(vertices []geom.Vec3, triangles [][3]int) (pd1, pd2 []geom.Vec3) {
	normals := VertexNormals(vertices, triangles)
	type edgeWeight struct {
		to     int
		weight float64
	}
	star := make([][]edgeWeight, len(vertices))
	addWeight := func(a, b int, w float64) {
		for i := range star[a] {
			if star[a][i].to == b {
				star[a][i].weight += w
				return
			}
		}
		star[a] = append(star[a], edgeWeight{to: b, weight: w})
	}
	for _, t := range triangles {
		area := geom.TriangleArea(vertices[t[0]], vertices[t[1]], vertices[t[2]])
		for i := range 3 {
			a, b := t[i], t[(i+1)%3]
			addWeight(a, b, area)
			addWeight(b, a, area)
		}
	}

	pd1 = make([]geom.Vec3, len(vertices))
	pd2 = make([]geom.Vec3, len(vertices))
	for v, p := range vertices {
		n := normals[v]
		if n.IsZero() || len(star[v]) == 0 {
			continue
		}
		t1, t2 := geom.Orthonormal(n)
		var a, b, c, total float64
		for _, e := range star[v] {
			d := vertices[e.to].Sub(p)
			lsq := d.LengthSq()
			if lsq == 0 {
				continue
			}
			kappa := 2 * n.Dot(d) / lsq
			tangent := d.Sub(n.Mul(n.Dot(d))).Normalize()
			if tangent.IsZero() {
				continue
			}
			x, y := tangent.Dot(t1), tangent.Dot(t2)
			w := e.weight * kappa
			a += w * x * x
			b += w * x * y
			c += w * y * y
			total += e.weight
		}
		if total == 0 {
			continue
		}
		a, b, c = a/total, b/total, c/total

		mid := (a + c) / 2
		r := math.Hypot((a-c)/2, b)
		m1, m2 := mid+r, mid-r
		k1, k2 := 3*m1-m2, 3*m2-m1
		if r <= 1e-9*(math.Abs(m1)+math.Abs(m2)) || math.Abs(k1)+math.Abs(k2) < 1e-12 {
			continue
		}
		// Eigenvector of m1.
		ex, ey := 1.0, 0.0
		if math.Abs(b) > 1e-15 {
			ex, ey = m1-c, b
		} else if c > a {
			ex, ey = 0, 1
		}
		dir := t1.Mul(ex).Add(t2.Mul(ey)).Normalize()
		if math.Abs(k2) > math.Abs(k1) {
			dir = n.Cross(dir)
		}
		pd1[v] = dir
		pd2[v] = n.Cross(dir)
	}
	return pd1, pd2
}
