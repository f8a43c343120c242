package vision

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlayGrid(t *testing.T) {
	out, err := OverlayGrid(testPNG(t, 200, 150), GridOptions{Step: 50, LabelEvery: 2, FontScale: 2})
	require.NoError(t, err)

	img := decodeTestPNG(t, out)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())

	assert.Equal(t, gridColor, rgbaAt(img, 50, 75), "vertical line")
	assert.Equal(t, gridColor, rgbaAt(img, 150, 100), "horizontal line")
	assert.Equal(t, gridColor, rgbaAt(img, 199, 75), "last line pinned inside the image")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 25, 75), "cells untouched")
}

func TestOverlayGrid_LabelsDrawn(t *testing.T) {
	plain, err := OverlayGrid(testPNG(t, 200, 150), GridOptions{Step: 50, LabelEvery: 0, FontScale: 2})
	require.NoError(t, err)
	labelled, err := OverlayGrid(testPNG(t, 200, 150), GridOptions{Step: 50, LabelEvery: 2, FontScale: 2})
	require.NoError(t, err)

	a, b := decodeTestPNG(t, plain), decodeTestPNG(t, labelled)
	differs := 0
	for y := 0; y < 40; y++ {
		for x := 100; x < 150; x++ {
			if rgbaAt(a, x, y) != rgbaAt(b, x, y) {
				differs++
			}
		}
	}
	assert.Positive(t, differs, "the 100 label appears near the top edge")
}

func TestOverlayGrid_Errors(t *testing.T) {
	_, err := OverlayGrid(testPNG(t, 10, 10), GridOptions{Step: 0})
	assert.Error(t, err)

	_, err = OverlayGrid([]byte("not a png"), GridOptions{Step: 10})
	assert.ErrorContains(t, err, "failed to decode PNG")
}

func TestRenderDotMap(t *testing.T) {
	out, err := RenderDotMap(testPNG(t, 100, 100),
		[]Point{{X: 10, Y: 10}, {X: 80, Y: 80}},
		Point{X: 50, Y: 50})
	require.NoError(t, err)
	img := decodeTestPNG(t, out)

	sample := rgbaAt(img, 10, 10)
	assert.Equal(t, uint8(255), sample.R)
	assert.Less(t, sample.G, uint8(100))

	center := rgbaAt(img, 50, 50)
	assert.Equal(t, aggregateColor.G, center.G)
	assert.Zero(t, center.R)

	edge := rgbaAt(img, 57, 50)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, edge, "aggregate has a dark ring")
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 30, 70))
}

func TestRenderDotMap_PinsOutOfBoundsPoints(t *testing.T) {
	out, err := RenderDotMap(testPNG(t, 40, 30), nil, Point{X: -50, Y: 9999})
	require.NoError(t, err)
	img := decodeTestPNG(t, out)
	assert.Equal(t, aggregateColor.G, rgbaAt(img, 0, 29).G)
}
