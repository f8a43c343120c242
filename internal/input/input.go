// Package input injects OS-level or page-level mouse and keyboard events.
package input

import (
	"context"
	"time"

	"github.com/xkilldash9x/clickpilot/internal/geometry"
)

// Injector moves and clicks the pointer and types into the focused element.
type Injector interface {
	MoveClick(ctx context.Context, x, y int, double bool) error
	TypeText(ctx context.Context, text string, perChar time.Duration) error
	PressKey(ctx context.Context, combo string) error
}

// WindowLocator reports where the page is drawn in injector coordinates.
type WindowLocator interface {
	WindowGeometry(ctx context.Context) (geometry.Window, error)
}

// DisplayBounds is implemented by injectors that can clamp to the physical
// display.
type DisplayBounds interface {
	DisplayGeometry(ctx context.Context) (w, h int, err error)
}

// ZoomResetter restores the page zoom to 100%.
type ZoomResetter interface {
	ResetZoom(ctx context.Context) error
}
