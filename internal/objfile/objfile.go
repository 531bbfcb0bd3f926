// Package objfile reads and writes the subset of Wavefront OBJ used by the
// remesher: vertex positions, texture coordinates and polygonal faces.
package objfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/gogpu/autoremesh/geom"
)

// ErrNoFaces is returned by Read for files without faces.
var ErrNoFaces = errors.New("objfile: no faces")

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("objfile: line %d: %s", e.Line, e.Msg)
}

// Mesh is a polygon mesh read from an OBJ file. Face indices are 0-based.
type Mesh struct {
	Vertices []geom.Vec3
	Faces    [][]int
}

// Triangles fan-triangulates every face with more than three corners.
func (m *Mesh) Triangles() [][3]int {
	var out [][3]int
	for _, f := range m.Faces {
		for i := 1; i+1 < len(f); i++ {
			out = append(out, [3]int{f[0], f[i], f[i+1]})
		}
	}
	return out
}

// Read parses an OBJ stream. Texture and normal references in faces are
// ignored; negative indices count back from the last vertex read.
func Read(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		words := strings.Fields(sc.Text())
		if len(words) == 0 || strings.HasPrefix(words[0], "#") {
			continue
		}
		switch words[0] {
		case "v":
			if len(words) < 4 {
				return nil, &ParseError{Line: line, Msg: "vertex needs three coordinates"}
			}
			var c [3]float64
			for i := range c {
				x, err := strconv.ParseFloat(words[i+1], 64)
				if err != nil {
					return nil, &ParseError{Line: line, Msg: err.Error()}
				}
				c[i] = x
			}
			m.Vertices = append(m.Vertices, geom.V3(c[0], c[1], c[2]))
		case "f":
			if len(words) < 4 {
				return nil, &ParseError{Line: line, Msg: "face needs at least three corners"}
			}
			face := make([]int, 0, len(words)-1)
			for _, w := range words[1:] {
				ref, _, _ := strings.Cut(w, "/")
				n, err := strconv.Atoi(ref)
				if err != nil {
					return nil, &ParseError{Line: line, Msg: err.Error()}
				}
				switch {
				case n > 0:
					n--
				case n < 0:
					n += len(m.Vertices)
				default:
					return nil, &ParseError{Line: line, Msg: "vertex index 0"}
				}
				if n < 0 || n >= len(m.Vertices) {
					return nil, &ParseError{Line: line, Msg: fmt.Sprintf("vertex %s out of range", ref)}
				}
				face = append(face, n)
			}
			m.Faces = append(m.Faces, face)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(m.Faces) == 0 {
		return nil, ErrNoFaces
	}
	return m, nil
}

// ReadFile reads the OBJ file at path.
func ReadFile(path string) (*Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Writer emits OBJ records. The first error sticks and is returned by
// Flush.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

// Comment writes a comment line.
func (w *Writer) Comment(text string) { w.printf("# %s\n", text) }

// Vertices writes one v record per position.
func (w *Writer) Vertices(vs []geom.Vec3) {
	for _, v := range vs {
		w.printf("v %s %s %s\n", num(v.X), num(v.Y), num(v.Z))
	}
}

// TexCoords writes one vt record per coordinate.
func (w *Writer) TexCoords(uvs []geom.Vec2) {
	for _, t := range uvs {
		w.printf("vt %s %s\n", num(t.X), num(t.Y))
	}
}

// Triangles writes triangle faces with 0-based indices.
func (w *Writer) Triangles(tris [][3]int) {
	for _, t := range tris {
		w.printf("f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
	}
}

// Quads writes quad faces with 0-based indices.
func (w *Writer) Quads(quads [][4]int) {
	for _, q := range quads {
		w.printf("f %d %d %d %d\n", q[0]+1, q[1]+1, q[2]+1, q[3]+1)
	}
}

// TexturedTriangles writes triangle faces whose i-th corner references
// texture coordinate 3i+k.
func (w *Writer) TexturedTriangles(tris [][3]int) {
	for f, t := range tris {
		w.printf("f %d/%d %d/%d %d/%d\n",
			t[0]+1, 3*f+1, t[1]+1, 3*f+2, t[2]+1, 3*f+3)
	}
}

// Flush writes buffered data and returns the first error encountered.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	return w.w.Flush()
}

func num(x float64) string { return strconv.FormatFloat(x, 'g', -1, 64) }

// WriteQuadFile writes a quad mesh to path.
func WriteQuadFile(path string, vertices []geom.Vec3, quads [][4]int) error {
	return writeFile(path, func(w *Writer) {
		w.Vertices(vertices)
		w.Quads(quads)
	})
}

// WriteTriangleFile writes a triangle mesh to path.
func WriteTriangleFile(path string, vertices []geom.Vec3, tris [][3]int) error {
	return writeFile(path, func(w *Writer) {
		w.Vertices(vertices)
		w.Triangles(tris)
	})
}

// WriteUVFile writes a triangle mesh with per-corner texture coordinates.
func WriteUVFile(path string, vertices []geom.Vec3, tris [][3]int, uvs [][3]geom.Vec2) error {
	flat := make([]geom.Vec2, 0, 3*len(uvs))
	for _, uv := range uvs {
		flat = append(flat, uv[:]...)
	}
	return writeFile(path, func(w *Writer) {
		w.Vertices(vertices)
		w.TexCoords(flat)
		w.TexturedTriangles(tris)
	})
}

func writeFile(path string, fill func(*Writer)) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := NewWriter(f)
	fill(w)
	return w.Flush()
}
