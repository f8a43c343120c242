package vision

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

var (
	sampleColor    = color.NRGBA{255, 0, 0, 200}
	aggregateEdge  = color.NRGBA{0, 0, 0, 255}
	aggregateColor = color.NRGBA{0, 220, 0, 255}
)

// RenderDotMap marks each sample with a small red dot and the aggregate
// with a larger green dot on top of the screenshot. Points outside the
// image are pinned to its edge.
func RenderDotMap(pngBytes []byte, samples []Point, agg Point) ([]byte, error) {
	img, err := decodeRGBA(pngBytes)
	if err != nil {
		return nil, err
	}

	for _, p := range samples {
		fillCircle(img, pin(img.Bounds(), p), 4, sampleColor)
	}
	center := pin(img.Bounds(), agg)
	fillCircle(img, center, 8, aggregateEdge)
	fillCircle(img, center, 5, aggregateColor)

	return encodePNG(img)
}

func pin(b image.Rectangle, p Point) image.Point {
	if b.Empty() {
		return b.Min
	}
	return image.Point{
		X: min(max(p.X+b.Min.X, b.Min.X), b.Max.X-1),
		Y: min(max(p.Y+b.Min.Y, b.Min.Y), b.Max.Y-1),
	}
}

// circle is an alpha mask for a filled disc.
type circle struct {
	p image.Point
	r int
}

func (c *circle) ColorModel() color.Model { return color.AlphaModel }

func (c *circle) Bounds() image.Rectangle {
	return image.Rect(c.p.X-c.r, c.p.Y-c.r, c.p.X+c.r+1, c.p.Y+c.r+1)
}

func (c *circle) At(x, y int) color.Color {
	dx, dy := x-c.p.X, y-c.p.Y
	if dx*dx+dy*dy <= c.r*c.r {
		return color.Alpha{A: 255}
	}
	return color.Alpha{}
}

func fillCircle(img *image.RGBA, center image.Point, r int, col color.Color) {
	mask := &circle{p: center, r: r}
	draw.DrawMask(img, mask.Bounds(), image.NewUniform(col), image.Point{}, mask, mask.Bounds().Min, draw.Over)
}
