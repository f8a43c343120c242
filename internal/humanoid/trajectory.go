package humanoid

import (
	"context"
	"math"
	"time"

	"github.com/chromedp/cdproto/input"
	"go.uber.org/zap"
)

// computeEaseInOutCubic gives the cursor a smooth acceleration and
// deceleration profile.
func computeEaseInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// fittsDuration is MT = A + B*log2(1 + D/W) with a symmetric jitter.
func (h *Injector) fittsDuration(distance float64) time.Duration {
	id := math.Log2(1.0 + distance/h.cfg.FittsW)
	mt := h.cfg.FittsA + h.cfg.FittsB*id
	if j := h.cfg.FittsJitter; j > 0 {
		mt += mt * (h.float64n()*2*j - j)
	}
	if mt < 0 {
		mt = 0
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// idealPath samples a cubic Bezier from start to end whose control points
// are pushed sideways by bend*distance. The first and last samples are the
// exact endpoints.
func idealPath(start, end Vector2D, bend float64, numSteps int) []Vector2D {
	mainVec := end.Sub(start)
	dist := mainVec.Mag()
	if dist < 1.0 || numSteps <= 1 {
		return []Vector2D{end}
	}

	normal := mainVec.Normalize().Perp()
	p1 := start.Add(mainVec.Mul(1.0 / 3.0)).Add(normal.Mul(bend * dist))
	p2 := start.Add(mainVec.Mul(2.0 / 3.0)).Add(normal.Mul(bend * dist * 0.5))

	path := make([]Vector2D, numSteps)
	for i := range numSteps {
		t := float64(i) / float64(numSteps-1)
		omt := 1.0 - t
		omt2 := omt * omt
		t2 := t * t
		path[i] = start.Mul(omt2 * omt).
			Add(p1.Mul(3 * omt2 * t)).
			Add(p2.Mul(3 * omt * t2)).
			Add(end.Mul(t2 * t))
	}
	path[numSteps-1] = end
	return path
}

// simulateTrajectory dispatches mouseMoved events along an eased path and
// leaves the cursor exactly on end.
func (h *Injector) simulateTrajectory(ctx context.Context, start, end Vector2D) error {
	duration := h.fittsDuration(start.Dist(end))
	numSteps := max(int(duration.Seconds()*float64(h.cfg.StepsPerSecond)), 2)

	// Alternate the bend direction so paths don't all curve the same way.
	bend := h.cfg.CurveBend
	if h.float64n() < 0.5 {
		bend = -bend
	}
	path := idealPath(start, end, bend, numSteps)
	last := len(path) - 1
	stepDelay := duration / time.Duration(max(last, 1))

	for i := range path {
		if err := ctx.Err(); err != nil {
			return err
		}

		t := 0.0
		if last > 0 {
			t = float64(i) / float64(last)
		}
		idx := min(int(math.Round(computeEaseInOutCubic(t)*float64(last))), last)
		pos := path[idx]
		if idx != last && h.cfg.Tremor > 0 {
			pos = pos.Add(Vector2D{X: h.normFloat64() * h.cfg.Tremor, Y: h.normFloat64() * h.cfg.Tremor})
		}

		move := input.DispatchMouseEvent(input.MouseMoved, pos.X, pos.Y)
		if err := h.executor.DispatchMouseEvent(ctx, move); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("Failed to dispatch mouse move event.", zap.Error(err))
			}
			return err
		}

		h.mu.Lock()
		h.currentPos = pos
		h.mu.Unlock()

		if i < last && stepDelay > 0 {
			if err := h.executor.Sleep(ctx, stepDelay); err != nil {
				return err
			}
		}
	}
	return nil
}
