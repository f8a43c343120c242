package geometry

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMap_Letterbox(t *testing.T) {
	tests := []struct {
		name  string
		in    Inputs
		x, y  int
		wantX int
		wantY int
	}{
		{
			name:  "identity",
			in:    Inputs{ScreenshotW: 1280, ScreenshotH: 800, WindowW: 1280, WindowH: 800},
			x:     100,
			y:     200,
			wantX: 100,
			wantY: 200,
		},
		{
			name:  "window offset",
			in:    Inputs{ScreenshotW: 1280, ScreenshotH: 800, WindowX: 50, WindowY: 30, WindowW: 1280, WindowH: 800},
			x:     10,
			y:     10,
			wantX: 60,
			wantY: 40,
		},
		{
			// scale = min(2, 1.5) = 1.5; drawn 960x600; pad 160 x 0.
			name:  "pillarboxed",
			in:    Inputs{ScreenshotW: 640, ScreenshotH: 400, WindowW: 1280, WindowH: 600},
			x:     100,
			y:     100,
			wantX: 160 + 150,
			wantY: 150,
		},
		{
			// scale = min(0.5, 1) = 0.5; drawn 640x400; pad 0 x 100.
			name:  "letterboxed and downscaled",
			in:    Inputs{ScreenshotW: 1280, ScreenshotH: 800, WindowW: 640, WindowH: 600},
			x:     640,
			y:     400,
			wantX: 320,
			wantY: 100 + 200,
		},
		{
			name:  "clamped to the drawn image",
			in:    Inputs{ScreenshotW: 640, ScreenshotH: 400, WindowW: 1280, WindowH: 600},
			x:     5000,
			y:     -30,
			wantX: 160 + 959,
			wantY: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Mapper{}.Map(tt.in, tt.x, tt.y)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}

func TestMap_Degenerate(t *testing.T) {
	m := Mapper{OffsetX: 7, OffsetY: -3}
	cases := []Inputs{
		{ScreenshotW: 0, ScreenshotH: 800, WindowX: 11, WindowY: 22, WindowW: 100, WindowH: 100},
		{ScreenshotW: 800, ScreenshotH: -1, WindowX: 11, WindowY: 22, WindowW: 100, WindowH: 100},
		{ScreenshotW: 800, ScreenshotH: 800, WindowX: 11, WindowY: 22, WindowW: 0, WindowH: 100},
		{ScreenshotW: 800, ScreenshotH: 800, WindowX: 11, WindowY: 22, WindowW: 100, WindowH: -5},
	}
	for _, in := range cases {
		x, y := m.Map(in, 400, 400)
		assert.Equal(t, 11, x)
		assert.Equal(t, 22, y)
	}
}

func TestMap_OffsetsApplyAndStayInWindow(t *testing.T) {
	in := Inputs{ScreenshotW: 100, ScreenshotH: 100, WindowX: 10, WindowY: 10, WindowW: 100, WindowH: 100}

	x, y := Mapper{OffsetX: 3, OffsetY: -2}.Map(in, 50, 50)
	assert.Equal(t, 63, x)
	assert.Equal(t, 58, y)

	x, y = Mapper{OffsetX: 500, OffsetY: -500}.Map(in, 50, 50)
	assert.Equal(t, 109, x)
	assert.Equal(t, 10, y)
}

func TestMap_AlwaysInsideWindow(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Inputs{
			ScreenshotW: rapid.IntRange(1, 5000).Draw(t, "sw"),
			ScreenshotH: rapid.IntRange(1, 5000).Draw(t, "sh"),
			WindowX:     rapid.IntRange(-3000, 3000).Draw(t, "wx"),
			WindowY:     rapid.IntRange(-3000, 3000).Draw(t, "wy"),
			WindowW:     rapid.IntRange(1, 5000).Draw(t, "ww"),
			WindowH:     rapid.IntRange(1, 5000).Draw(t, "wh"),
		}
		m := Mapper{
			OffsetX: rapid.IntRange(-50, 50).Draw(t, "ox"),
			OffsetY: rapid.IntRange(-50, 50).Draw(t, "oy"),
		}
		vx := rapid.IntRange(-10000, 10000).Draw(t, "x")
		vy := rapid.IntRange(-10000, 10000).Draw(t, "y")

		x, y := m.Map(in, vx, vy)
		if x < in.WindowX || x >= in.WindowX+in.WindowW {
			t.Fatalf("x=%d outside [%d,%d)", x, in.WindowX, in.WindowX+in.WindowW)
		}
		if y < in.WindowY || y >= in.WindowY+in.WindowH {
			t.Fatalf("y=%d outside [%d,%d)", y, in.WindowY, in.WindowY+in.WindowH)
		}
	})
}

func TestMap_DegenerateAlwaysOrigin(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := Inputs{
			ScreenshotW: rapid.IntRange(-100, 100).Draw(t, "sw"),
			ScreenshotH: rapid.IntRange(-100, 100).Draw(t, "sh"),
			WindowX:     rapid.IntRange(-3000, 3000).Draw(t, "wx"),
			WindowY:     rapid.IntRange(-3000, 3000).Draw(t, "wy"),
			WindowW:     rapid.IntRange(-100, 0).Draw(t, "ww"),
			WindowH:     rapid.IntRange(-100, 100).Draw(t, "wh"),
		}
		x, y := Mapper{OffsetX: 5, OffsetY: 5}.Map(in, 10, 10)
		if x != in.WindowX || y != in.WindowY {
			t.Fatalf("got (%d,%d), want window origin (%d,%d)", x, y, in.WindowX, in.WindowY)
		}
	})
}

func TestClampToDisplay(t *testing.T) {
	x, y := ClampToDisplay(-5, 5000, 1920, 1080)
	assert.Equal(t, 0, x)
	assert.Equal(t, 1079, y)
}

func TestPNGSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 321, 123))))

	w, h, err := PNGSize(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 321, w)
	assert.Equal(t, 123, h)

	_, _, err = PNGSize([]byte("not a png"))
	assert.Error(t, err)
}
