// Package preview rasterizes meshes and UV layouts into PNG images for
// debugging.
package preview

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/gogpu/autoremesh/geom"
)

// supersample is the factor images are rendered at before downscaling.
const supersample = 2

// Options control an image.
type Options struct {
	// Size is the width and height in pixels; 0 selects 512.
	Size int
	// LineWidth is the stroke width in pixels; 0 selects 1.
	LineWidth float64
	Background color.Color
	Edge       color.Color
	// Grid colors the integer iso-lines of UV previews; nil disables them.
	Grid    color.Color
	Caption string
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = 512
	}
	if o.LineWidth <= 0 {
		o.LineWidth = 1
	}
	if o.Background == nil {
		o.Background = color.White
	}
	if o.Edge == nil {
		o.Edge = color.RGBA{R: 0x20, G: 0x20, B: 0x30, A: 0xff}
	}
	return o
}

type segment [2]geom.Vec2

// canvas maps a 2D point set onto a square supersampled image.
type canvas struct {
	size   int
	min    geom.Vec2
	scale  float64
	margin float64
}

func newCanvas(points []geom.Vec2, size int) canvas {
	c := canvas{size: size, margin: 0.05 * float64(size)}
	if len(points) == 0 {
		c.scale = 1
		return c
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = geom.V2(math.Min(lo.X, p.X), math.Min(lo.Y, p.Y))
		hi = geom.V2(math.Max(hi.X, p.X), math.Max(hi.Y, p.Y))
	}
	span := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	if span == 0 {
		span = 1
	}
	c.min = lo
	c.scale = (float64(size) - 2*c.margin) / span
	return c
}

func (c canvas) pixel(p geom.Vec2) geom.Vec2 {
	return geom.V2(
		c.margin+(p.X-c.min.X)*c.scale,
		float64(c.size)-c.margin-(p.Y-c.min.Y)*c.scale,
	)
}

// stroke draws every segment as a thin quad. All quads share one winding
// so overlapping strokes accumulate instead of cancelling.
func (c canvas) stroke(dst *image.RGBA, segs []segment, width float64, col color.Color) {
	r := vector.NewRasterizer(c.size, c.size)
	half := width / 2
	for _, s := range segs {
		a, b := c.pixel(s[0]), c.pixel(s[1])
		d := b.Sub(a)
		if d.Length() == 0 {
			continue
		}
		n := geom.V2(-d.Y, d.X).Normalize().Mul(half)
		r.MoveTo(float32(a.X+n.X), float32(a.Y+n.Y))
		r.LineTo(float32(b.X+n.X), float32(b.Y+n.Y))
		r.LineTo(float32(b.X-n.X), float32(b.Y-n.Y))
		r.LineTo(float32(a.X-n.X), float32(a.Y-n.Y))
		r.ClosePath()
	}
	r.Draw(dst, dst.Bounds(), image.NewUniform(col), image.Point{})
}

func render(points []geom.Vec2, layers func(c canvas, dst *image.RGBA, width float64), o Options) *image.RGBA {
	o = o.withDefaults()
	big := o.Size * supersample
	hi := image.NewRGBA(image.Rect(0, 0, big, big))
	xdraw.Draw(hi, hi.Bounds(), image.NewUniform(o.Background), image.Point{}, xdraw.Src)
	layers(newCanvas(points, big), hi, o.LineWidth*supersample)

	dst := image.NewRGBA(image.Rect(0, 0, o.Size, o.Size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), hi, hi.Bounds(), xdraw.Src, nil)
	if o.Caption != "" {
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(o.Edge),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(4, o.Size-4),
		}
		d.DrawString(o.Caption)
	}
	return dst
}

// UV draws the triangles of a parameterization in UV space.
func UV(tris [][3]int, uvs [][3]geom.Vec2, o Options) *image.RGBA {
	points := make([]geom.Vec2, 0, 3*len(uvs))
	segs := make([]segment, 0, 3*len(uvs))
	for f := range tris {
		if f >= len(uvs) {
			break
		}
		uv := uvs[f]
		points = append(points, uv[:]...)
		for i := range 3 {
			segs = append(segs, segment{uv[i], uv[(i+1)%3]})
		}
	}
	return render(points, func(c canvas, dst *image.RGBA, width float64) {
		if o.Grid != nil && len(points) > 0 {
			c.stroke(dst, gridLines(points), width/2, o.Grid)
		}
		c.stroke(dst, segs, width, o.withDefaults().Edge)
	}, o)
}

// gridLines returns the integer iso-lines crossing the bounding box of
// points, at most 512 per axis.
func gridLines(points []geom.Vec2) []segment {
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = geom.V2(math.Min(lo.X, p.X), math.Min(lo.Y, p.Y))
		hi = geom.V2(math.Max(hi.X, p.X), math.Max(hi.Y, p.Y))
	}
	var segs []segment
	for k := math.Ceil(lo.X); k <= hi.X && len(segs) < 512; k++ {
		segs = append(segs, segment{geom.V2(k, lo.Y), geom.V2(k, hi.Y)})
	}
	n := len(segs)
	for k := math.Ceil(lo.Y); k <= hi.Y && len(segs)-n < 512; k++ {
		segs = append(segs, segment{geom.V2(lo.X, k), geom.V2(hi.X, k)})
	}
	return segs
}

// Quads draws a quad mesh projected along the axis of its smallest extent.
func Quads(vertices []geom.Vec3, quads [][4]int, o Options) *image.RGBA {
	b := geom.BoundsOf(vertices)
	d := b.Max.Sub(b.Min)
	drop := 2
	if d.X <= d.Y && d.X <= d.Z {
		drop = 0
	} else if d.Y <= d.Z {
		drop = 1
	}
	project := func(p geom.Vec3) geom.Vec2 {
		switch drop {
		case 0:
			return geom.V2(p.Y, p.Z)
		case 1:
			return geom.V2(p.X, p.Z)
		}
		return geom.V2(p.X, p.Y)
	}

	points := make([]geom.Vec2, len(vertices))
	for i, v := range vertices {
		points[i] = project(v)
	}
	segs := make([]segment, 0, 4*len(quads))
	for _, q := range quads {
		for i := range 4 {
			segs = append(segs, segment{points[q[i]], points[q[(i+1)%4]]})
		}
	}
	return render(points, func(c canvas, dst *image.RGBA, width float64) {
		c.stroke(dst, segs, width, o.withDefaults().Edge)
	}, o)
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return png.Encode(f, img)
}
