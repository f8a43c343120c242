// Package records reads the client roster from a spreadsheet and writes
// status cells back.
package records

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Store is a spreadsheet-like grid. Rows and columns are 1-based.
type Store interface {
	Values(ctx context.Context) ([][]string, error)
	UpdateCell(ctx context.Context, row, col int, value string, color Color) error
}

// Color is an RGB cell background.
type Color struct {
	R, G, B uint8
}

// Named colours accepted by ParseColor.
var (
	White  = Color{255, 255, 255}
	Green  = Color{183, 225, 205}
	Yellow = Color{252, 232, 178}
	Red    = Color{244, 199, 195}
)

var namedColors = map[string]Color{
	"white":  White,
	"green":  Green,
	"yellow": Yellow,
	"red":    Red,
}

// ParseColor accepts a colour name or "#RRGGBB". Empty means white.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return White, nil
	}
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || len(hex) != 6 {
		return Color{}, fmt.Errorf("unknown color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("bad color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColumnLetter converts a 1-based column index to A1 notation: 1 is "A",
// 27 is "AA". Non-positive input yields "".
func ColumnLetter(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

func checkCell(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("row/col must be 1-based, got row=%d col=%d", row, col)
	}
	return nil
}
