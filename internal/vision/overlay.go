package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GridOptions controls the coordinate grid drawn over screenshots.
type GridOptions struct {
	// Step is the line spacing in image pixels.
	Step int
	// LabelEvery labels every Nth line; 0 disables labels.
	LabelEvery int
	// FontScale enlarges each glyph pixel to a FontScale x FontScale block.
	FontScale int
}

var (
	gridColor  = color.RGBA{0, 200, 0, 255}
	labelColor = color.RGBA{255, 220, 0, 255}
)

// OverlayGrid draws grid lines every opts.Step pixels with coordinate
// labels along the top and left edges and returns the re-encoded PNG.
func OverlayGrid(pngBytes []byte, opts GridOptions) ([]byte, error) {
	if opts.Step <= 0 {
		return nil, fmt.Errorf("grid step must be positive, got %d", opts.Step)
	}
	img, err := decodeRGBA(pngBytes)
	if err != nil {
		return nil, err
	}
	drawGrid(img, opts)
	return encodePNG(img)
}

func drawGrid(img *image.RGBA, opts GridOptions) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	scale := max(opts.FontScale, 1)
	pad := 2 * scale
	line := image.NewUniform(gridColor)

	for tick := 0; tick <= w; tick += opts.Step {
		x := min(tick, w-1)
		draw.Draw(img, image.Rect(x, 0, x+1, h).Add(b.Min), line, image.Point{}, draw.Src)
		if labelled(tick, opts) {
			drawLabel(img, b.Min.X+min(tick+pad, w-1), b.Min.Y+min(pad, h-1), strconv.Itoa(tick), scale)
		}
	}
	for tick := 0; tick <= h; tick += opts.Step {
		y := min(tick, h-1)
		draw.Draw(img, image.Rect(0, y, w, y+1).Add(b.Min), line, image.Point{}, draw.Src)
		if labelled(tick, opts) {
			drawLabel(img, b.Min.X+min(pad, w-1), b.Min.Y+min(tick+pad, h-1), strconv.Itoa(tick), scale)
		}
	}
}

func labelled(tick int, opts GridOptions) bool {
	return opts.LabelEvery > 0 && (tick/opts.Step)%opts.LabelEvery == 0
}

// drawLabel renders text with the 7x13 bitmap face and scales it up with
// nearest-neighbour so glyphs stay crisp.
func drawLabel(dst *image.RGBA, x, y int, text string, scale int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	h := face.Height
	if w <= 0 {
		return
	}

	glyphs := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  glyphs,
		Src:  image.NewUniform(labelColor),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	target := image.Rect(x, y, x+w*scale, y+h*scale)
	draw.NearestNeighbor.Scale(dst, target, glyphs, glyphs.Bounds(), draw.Over, nil)
}

func decodeRGBA(pngBytes []byte) (*image.RGBA, error) {
	src, err := png.Decode(bytes.NewReader(pngBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode PNG: %w", err)
	}
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	b := src.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, src, b.Min, draw.Src)
	return rgba, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}
