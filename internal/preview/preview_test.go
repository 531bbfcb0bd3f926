package preview

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/autoremesh/geom"
)

func near(c color.Color, want color.RGBA, tol uint32) bool {
	r, g, b, _ := c.RGBA()
	d := func(x uint32, y uint8) uint32 {
		x >>= 8
		if x > uint32(y) {
			return x - uint32(y)
		}
		return uint32(y) - x
	}
	return d(r, want.R) <= tol && d(g, want.G) <= tol && d(b, want.B) <= tol
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func unitSquare() ([]geom.Vec3, [][4]int) {
	return []geom.Vec3{geom.V3(0, 0, 0), geom.V3(1, 0, 0), geom.V3(1, 1, 0), geom.V3(0, 1, 0)},
		[][4]int{{0, 1, 2, 3}}
}

func TestQuads(t *testing.T) {
	vertices, quads := unitSquare()
	img := Quads(vertices, quads, Options{Size: 100, LineWidth: 1.5})
	if got := img.Bounds(); got != image.Rect(0, 0, 100, 100) {
		t.Fatalf("Bounds() = %v, want 100×100", got)
	}
	if c := img.At(50, 50); !near(c, white, 2) {
		t.Errorf("centre pixel = %v, want background", c)
	}
	// The bottom edge lies on row 95.
	if c := img.At(50, 95); near(c, white, 40) {
		t.Errorf("edge pixel = %v, want stroke colour", c)
	}
}

func TestQuads_ProjectsAlongSmallestExtent(t *testing.T) {
	// The same square standing in the xz plane.
	vertices := []geom.Vec3{geom.V3(0, 0, 0), geom.V3(1, 0, 0), geom.V3(1, 0, 1), geom.V3(0, 0, 1)}
	img := Quads(vertices, [][4]int{{0, 1, 2, 3}}, Options{Size: 100, LineWidth: 1.5})
	if c := img.At(50, 95); near(c, white, 40) {
		t.Errorf("edge pixel = %v, want stroke colour", c)
	}
}

func TestUV_Grid(t *testing.T) {
	tris := [][3]int{{0, 1, 2}}
	uvs := [][3]geom.Vec2{{geom.V2(0, 0), geom.V2(2, 0), geom.V2(0, 2)}}
	plain := UV(tris, uvs, Options{Size: 100})
	gridded := UV(tris, uvs, Options{Size: 100, Grid: color.RGBA{B: 255, A: 255}})
	// u = 1 runs through column 50; the point (1, 1.9) is outside the
	// triangle.
	if c := plain.At(50, 10); !near(c, white, 2) {
		t.Errorf("plain pixel = %v, want background", c)
	}
	if c := gridded.At(50, 10); near(c, white, 10) {
		t.Errorf("grid pixel = %v, want grid colour", c)
	}
}

func TestUV_Empty(t *testing.T) {
	img := UV(nil, nil, Options{Size: 16})
	if c := img.At(8, 8); !near(c, white, 2) {
		t.Errorf("pixel = %v, want background", c)
	}
}

func TestWritePNG(t *testing.T) {
	vertices, quads := unitSquare()
	path := filepath.Join(t.TempDir(), "quads.png")
	if err := WritePNG(path, Quads(vertices, quads, Options{Size: 32, Caption: "1 quad"})); err != nil {
		t.Fatalf("WritePNG() error = %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("width = %d, want 32", img.Bounds().Dx())
	}
}
