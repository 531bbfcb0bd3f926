package param

import (
	"context"

	"github.com/gogpu/autoremesh/geom"
)

// Constraints are per-face direction constraints for the cross field.
// Faces[i] is constrained to the pair (Dir1[i], Dir2[i]).
type Constraints struct {
	Faces []int
	Dir1  []geom.Vec3
	Dir2  []geom.Vec3
}

// Len returns the number of constrained faces.
func (c Constraints) Len() int { return len(c.Faces) }

// Problem is the input of a parameterization solve.
type Problem struct {
	Vertices    []geom.Vec3
	Triangles   [][3]int
	Constraints Constraints
	// GradientSize controls the density of integer iso-lines: larger
	// values produce smaller quads.
	GradientSize float64
}

// Solution is the output of a full parameterization solve.
type Solution struct {
	// UV holds the three corner parameters of every face.
	UV [][3]geom.Vec2
	// Singularities is the number of irregular vertices.
	Singularities int
	// Valences holds the target valence of every vertex (4 when regular).
	Valences []int
}

// Solver computes seamless parameterizations.
//
// Singularities is the cheap trial used while searching for constraints:
// it must not be more expensive than Solve and its result must equal
// Solve(...).Singularities for the same problem.
type Solver interface {
	Singularities(ctx context.Context, p Problem) (int, error)
	Solve(ctx context.Context, p Problem) (Solution, error)
}
