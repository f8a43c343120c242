// Package geometry maps points reported in screenshot space onto physical
// screen coordinates.
package geometry

import "math"

// Window is a rectangle in screen pixels.
type Window struct {
	X, Y, W, H int
}

// Inputs is captured fresh before every resolution; window geometry can
// shift between steps.
type Inputs struct {
	ScreenshotW, ScreenshotH int
	WindowX, WindowY         int
	WindowW, WindowH         int
}

// NewInputs pairs a screenshot size with a window.
func NewInputs(screenshotW, screenshotH int, win Window) Inputs {
	return Inputs{
		ScreenshotW: screenshotW,
		ScreenshotH: screenshotH,
		WindowX:     win.X,
		WindowY:     win.Y,
		WindowW:     win.W,
		WindowH:     win.H,
	}
}

func (in Inputs) degenerate() bool {
	return in.ScreenshotW <= 0 || in.ScreenshotH <= 0 || in.WindowW <= 0 || in.WindowH <= 0
}

// Mapper converts viewport points to screen points assuming the screenshot
// is rendered uniformly scaled and centred (letterboxed) inside the window.
// OffsetX and OffsetY are operator calibration nudges.
type Mapper struct {
	OffsetX int
	OffsetY int
}

// Map returns the screen point for (x, y) in screenshot pixels. The result
// always lies inside the window; degenerate inputs yield the window origin.
func (m Mapper) Map(in Inputs, x, y int) (int, int) {
	if in.degenerate() {
		return in.WindowX, in.WindowY
	}

	sx := float64(in.WindowW) / float64(in.ScreenshotW)
	sy := float64(in.WindowH) / float64(in.ScreenshotH)
	scale := math.Min(sx, sy)

	drawnW := max(int(math.Round(float64(in.ScreenshotW)*scale)), 1)
	drawnH := max(int(math.Round(float64(in.ScreenshotH)*scale)), 1)

	padX := int(math.Round(float64(in.WindowW-drawnW) / 2))
	padY := int(math.Round(float64(in.WindowH-drawnH) / 2))

	dx := clamp(int(math.Round(float64(x)*scale)), 0, drawnW-1)
	dy := clamp(int(math.Round(float64(y)*scale)), 0, drawnH-1)

	outX := in.WindowX + padX + dx + m.OffsetX
	outY := in.WindowY + padY + dy + m.OffsetY

	// Nudges must not push the click into another window.
	outX = clamp(outX, in.WindowX, in.WindowX+in.WindowW-1)
	outY = clamp(outY, in.WindowY, in.WindowY+in.WindowH-1)
	return outX, outY
}

// ClampToDisplay keeps (x, y) inside a w by h display anchored at the origin.
func ClampToDisplay(x, y, w, h int) (int, int) {
	return clamp(x, 0, max(w-1, 0)), clamp(y, 0, max(h-1, 0))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
