package autoremesh

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/gogpu/autoremesh/internal/objfile"
	"github.com/gogpu/autoremesh/internal/preview"
)

// dump writes the intermediate meshes of a finished island into the debug
// directory. Failures are logged and otherwise ignored.
func (r *Remesher) dump(job *islandJob) {
	dir := r.opts.debugDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		Logger().Warn("autoremesh: debug dump", "err", err)
		return
	}
	name := func(suffix string) string {
		return filepath.Join(dir, fmt.Sprintf("island-%03d-%s", job.index, suffix))
	}
	uvs := job.mesh.CornerUVs()
	caption := fmt.Sprintf("island %d: %d singularities", job.index, job.singularities)

	steps := []struct {
		what string
		run  func() error
	}{
		{"remeshed", func() error {
			return objfile.WriteTriangleFile(name("remeshed.obj"), job.mesh.Vertices, job.mesh.Faces)
		}},
		{"uv", func() error {
			return objfile.WriteUVFile(name("uv.obj"), job.mesh.Vertices, job.mesh.Faces, uvs)
		}},
		{"quads", func() error {
			return objfile.WriteQuadFile(name("quads.obj"), job.quads.Vertices, job.quads.Quads)
		}},
		{"uv preview", func() error {
			img := preview.UV(job.mesh.Faces, uvs, preview.Options{
				Grid:    color.RGBA{R: 0x40, G: 0x80, B: 0xe0, A: 0xff},
				Caption: caption,
			})
			return preview.WritePNG(name("uv.png"), img)
		}},
		{"quad preview", func() error {
			img := preview.Quads(job.quads.Vertices, job.quads.Quads, preview.Options{Caption: caption})
			return preview.WritePNG(name("quads.png"), img)
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			Logger().Warn("autoremesh: debug dump", "island", job.index, "file", s.what, "err", err)
		}
	}
}
