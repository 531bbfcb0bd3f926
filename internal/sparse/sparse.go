// Package sparse holds the small sparse linear algebra needed by the
// parameterization: a symmetric matrix assembled from triplets and a
// Jacobi-preconditioned conjugate gradient solve on top of
// gonum.org/v1/gonum/optimize.
package sparse

import (
	"context"
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// ErrNotConverged is returned when CG exhausts its iteration budget.
var ErrNotConverged = errors.New("sparse: conjugate gradient did not converge")

// Builder accumulates matrix entries. Duplicate entries are summed.
type Builder struct {
	n    int
	rows []map[int]float64
}

// NewBuilder returns a builder for an n×n matrix.
func NewBuilder(n int) *Builder {
	b := &Builder{n: n, rows: make([]map[int]float64, n)}
	for i := range b.rows {
		b.rows[i] = make(map[int]float64)
	}
	return b
}

// Add adds v to entry (i, j).
func (b *Builder) Add(i, j int, v float64) {
	b.rows[i][j] += v
}

// Build compresses the builder into a row-major matrix.
func (b *Builder) Build() *Matrix {
	m := &Matrix{n: b.n, rowStart: make([]int, b.n+1)}
	for i, row := range b.rows {
		cols := make([]int, 0, len(row))
		for j := range row {
			cols = append(cols, j)
		}
		slices.Sort(cols)
		for _, j := range cols {
			m.col = append(m.col, j)
			m.val = append(m.val, row[j])
		}
		m.rowStart[i+1] = len(m.col)
	}
	return m
}

// Matrix is a compressed sparse row matrix.
type Matrix struct {
	n        int
	rowStart []int
	col      []int
	val      []float64
}

// Size returns the dimension of the matrix.
func (m *Matrix) Size() int { return m.n }

// MulVec computes dst = m·x.
func (m *Matrix) MulVec(dst, x []float64) {
	for i := range m.n {
		var s float64
		for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
			s += m.val[k] * x[m.col[k]]
		}
		dst[i] = s
	}
}

// Diagonal returns the diagonal entries.
func (m *Matrix) Diagonal() []float64 {
	d := make([]float64, m.n)
	for i := range m.n {
		for k := m.rowStart[i]; k < m.rowStart[i+1]; k++ {
			if m.col[k] == i {
				d[i] = m.val[k]
			}
		}
	}
	return d
}

// CGOptions controls SolveCG.
type CGOptions struct {
	// Tolerance is the relative residual at which iteration stops.
	Tolerance float64
	// MaxIterations bounds the iteration count; 0 selects 4n.
	MaxIterations int
}

// SolveCG solves m·x = b for a symmetric positive semi-definite m, starting
// from the contents of x. Consistent singular systems converge to a
// solution. It returns the number of iterations used.
//
// Each round minimises ½dᵀmd + dᵀ(m·x − b) over the correction d with
// gonum's conjugate gradient method, the unknowns scaled by the inverse
// square root of the diagonal (Jacobi preconditioning). Rounds restart from
// the corrected x, which keeps the objective small enough for the line
// search to resolve, until the residual meets the tolerance or stops
// shrinking. On ErrNotConverged x holds the best iterate.
func SolveCG(ctx context.Context, m *Matrix, b, x []float64, opts CGOptions) (int, error) {
	n := m.n
	if n == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	tol := opts.Tolerance
	if tol <= 0 {
		tol = 1e-10
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = 4 * n
	}
	bnorm := floats.Norm(b, 2)
	if bnorm == 0 {
		bnorm = 1
	}

	// x = x0 + s∘y
	s := m.Diagonal()
	for i, d := range s {
		if d > 0 {
			s[i] = 1 / math.Sqrt(d)
		} else {
			s[i] = 1
		}
	}
	// |s∘r|∞ below this bounds |r|₂ by tol·|b|.
	threshold := tol * bnorm * floats.Min(s) / math.Sqrt(float64(n))

	r0 := make([]float64, n)
	d := make([]float64, n)
	md := make([]float64, n)
	correction := func(y []float64) {
		floats.MulTo(d, s, y)
		m.MulVec(md, d)
	}
	problem := optimize.Problem{
		Func: func(y []float64) float64 {
			correction(y)
			return 0.5*floats.Dot(d, md) + floats.Dot(d, r0)
		},
		Grad: func(grad, y []float64) {
			correction(y)
			floats.AddTo(grad, md, r0)
			floats.Mul(grad, s)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	iters := 0
	m.MulVec(r0, x)
	floats.Sub(r0, b)
	rnorm := floats.Norm(r0, 2)
	for rnorm > tol*bnorm && iters < maxIter {
		settings := &optimize.Settings{
			GradientThreshold: threshold,
			MajorIterations:   maxIter - iters,
			Converger:         optimize.NeverTerminate{},
		}
		res, err := optimize.Minimize(problem, make([]float64, n), settings, &optimize.CG{})
		if cerr := ctx.Err(); cerr != nil {
			return iters, cerr
		}
		if res == nil {
			return iters, err
		}
		iters += res.MajorIterations

		floats.MulTo(d, s, res.X)
		floats.Add(d, x)
		m.MulVec(r0, d)
		floats.Sub(r0, b)
		next := floats.Norm(r0, 2)
		if next >= rnorm {
			// No progress; keep x.
			m.MulVec(r0, x)
			floats.Sub(r0, b)
			break
		}
		copy(x, d)
		rnorm = next
		if res.MajorIterations == 0 {
			break
		}
	}
	if rnorm <= tol*bnorm {
		return iters, nil
	}
	return iters, ErrNotConverged
}
