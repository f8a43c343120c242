package vision

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/draw"

	"github.com/xkilldash9x/clickpilot/internal/llmclient"
)

// testPNG returns a white w x h PNG.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeTestPNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

// scriptedClient hands out replies in call order and honours Request.Accept
// the way the HTTP clients do, without retries.
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	images  [][]byte
	prompts []string
}

func (c *scriptedClient) Complete(_ context.Context, req llmclient.Request) (string, error) {
	c.mu.Lock()
	i := c.calls
	c.calls++
	c.images = append(c.images, req.Image)
	c.prompts = append(c.prompts, req.Prompt)
	var reply string
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	if len(c.replies) > 0 {
		reply = c.replies[min(i, len(c.replies)-1)]
	}
	c.mu.Unlock()

	if err != nil {
		return "", err
	}
	if req.Accept != nil {
		if aerr := req.Accept(reply); aerr != nil {
			return "", aerr
		}
	}
	return reply, nil
}

type memorySink struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (s *memorySink) Name(_ context.Context, stem, ext string) string {
	return stem + "." + ext
}

func (s *memorySink) Write(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.files == nil {
		s.files = map[string][]byte{}
	}
	s.files[name] = data
	return "/mem/" + name, nil
}
