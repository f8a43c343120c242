package geometry

import (
	"bytes"
	"fmt"
	"image/png"
)

// PNGSize reads the pixel dimensions from a PNG header without decoding
// the image data.
func PNGSize(data []byte) (int, int, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("reading png header: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
