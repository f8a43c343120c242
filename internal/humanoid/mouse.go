package humanoid

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"
)

// MoveClick glides the cursor to (x, y) and clicks there. A double click
// dispatches a second press/release pair with clickCount 2.
func (h *Injector) MoveClick(ctx context.Context, x, y int, double bool) error {
	target := Vector2D{X: float64(x), Y: float64(y)}
	start := h.Position()

	if err := h.simulateTrajectory(ctx, start, target); err != nil {
		return fmt.Errorf("humanoid: move to (%d,%d): %w", x, y, err)
	}
	if err := h.click(ctx, target, 1); err != nil {
		return err
	}
	if double {
		if err := h.executor.Sleep(ctx, time.Duration(h.cfg.DoubleClickGapMs)*time.Millisecond); err != nil {
			return err
		}
		if err := h.click(ctx, target, 2); err != nil {
			return err
		}
	}
	h.logger.Debug("Clicked.", zap.Int("x", x), zap.Int("y", y), zap.Bool("double", double))
	return nil
}

func (h *Injector) click(ctx context.Context, at Vector2D, count int64) error {
	press := input.DispatchMouseEvent(input.MousePressed, at.X, at.Y).
		WithButton(input.Left).
		WithButtons(1).
		WithClickCount(count)
	if err := h.executor.DispatchMouseEvent(ctx, press); err != nil {
		return fmt.Errorf("humanoid: mouse down: %w", err)
	}

	if err := h.executor.Sleep(ctx, h.holdDuration()); err != nil {
		return err
	}

	release := input.DispatchMouseEvent(input.MouseReleased, at.X, at.Y).
		WithButton(input.Left).
		WithButtons(0).
		WithClickCount(count)
	if err := h.executor.DispatchMouseEvent(ctx, release); err != nil {
		return fmt.Errorf("humanoid: mouse up: %w", err)
	}
	return nil
}
