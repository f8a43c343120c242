package input

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/geometry"
)

// Runner executes one xdotool invocation and returns its stdout.
type Runner func(ctx context.Context, display string, args ...string) ([]byte, error)

// ExecRunner runs the real xdotool binary with DISPLAY set.
func ExecRunner(ctx context.Context, display string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "xdotool", args...)
	cmd.Env = append(os.Environ(), "DISPLAY="+display)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("xdotool %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// Xdotool drives the X11 pointer and keyboard.
type Xdotool struct {
	display string
	run     Runner
	logger  *zap.Logger
}

// XdotoolOption customises an Xdotool.
type XdotoolOption func(*Xdotool)

// WithRunner replaces the process runner.
func WithRunner(r Runner) XdotoolOption {
	return func(x *Xdotool) { x.run = r }
}

// NewXdotool checks that xdotool is on PATH unless a custom runner is given.
func NewXdotool(display string, logger *zap.Logger, opts ...XdotoolOption) (*Xdotool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &Xdotool{display: display, logger: logger.Named("input.xdotool")}
	for _, opt := range opts {
		opt(x)
	}
	if x.run == nil {
		if _, err := exec.LookPath("xdotool"); err != nil {
			return nil, fmt.Errorf("xdotool not found, install it (e.g. apt-get install xdotool): %w", err)
		}
		x.run = ExecRunner
	}
	return x, nil
}

// MoveClick warps the pointer and clicks button 1, twice for a double click.
func (x *Xdotool) MoveClick(ctx context.Context, px, py int, double bool) error {
	if _, err := x.run(ctx, x.display, "mousemove", "--sync", strconv.Itoa(px), strconv.Itoa(py)); err != nil {
		return fmt.Errorf("mousemove failed: %w", err)
	}
	if _, err := x.run(ctx, x.display, "click", "1"); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	if double {
		if _, err := x.run(ctx, x.display, "click", "1"); err != nil {
			return fmt.Errorf("second click failed: %w", err)
		}
	}
	x.logger.Debug("Clicked.", zap.Int("x", px), zap.Int("y", py), zap.Bool("double", double))
	return nil
}

// TypeText types literal text into the active window.
func (x *Xdotool) TypeText(ctx context.Context, text string, perChar time.Duration) error {
	delay := strconv.FormatInt(perChar.Milliseconds(), 10)
	if _, err := x.run(ctx, x.display, "type", "--clearmodifiers", "--delay", delay, "--", text); err != nil {
		return fmt.Errorf("type failed (%d runes): %w", utf8.RuneCountInString(text), err)
	}
	return nil
}

// PressKey sends an xdotool key combo such as "ctrl+a" or "Return".
func (x *Xdotool) PressKey(ctx context.Context, combo string) error {
	if _, err := x.run(ctx, x.display, "key", "--clearmodifiers", xdotoolKey(combo)); err != nil {
		return fmt.Errorf("key %q failed: %w", combo, err)
	}
	return nil
}

// ResetZoom presses ctrl+0 twice; the first press is sometimes swallowed
// while the page still has focus elsewhere.
func (x *Xdotool) ResetZoom(ctx context.Context) error {
	for range 2 {
		if err := x.PressKey(ctx, "ctrl+0"); err != nil {
			return err
		}
	}
	return nil
}

// WindowGeometry returns the active window's origin and size.
func (x *Xdotool) WindowGeometry(ctx context.Context) (geometry.Window, error) {
	out, err := x.run(ctx, x.display, "getactivewindow", "getwindowgeometry", "--shell")
	if err != nil {
		return geometry.Window{}, fmt.Errorf("getwindowgeometry failed: %w", err)
	}
	return parseWindowGeometry(string(out))
}

// DisplayGeometry returns the physical display size.
func (x *Xdotool) DisplayGeometry(ctx context.Context) (int, int, error) {
	out, err := x.run(ctx, x.display, "getdisplaygeometry")
	if err != nil {
		return 0, 0, fmt.Errorf("getdisplaygeometry failed: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return 0, 0, fmt.Errorf("unexpected getdisplaygeometry output %q", strings.TrimSpace(string(out)))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad display width: %w", err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("bad display height: %w", err)
	}
	return w, h, nil
}

func parseWindowGeometry(out string) (geometry.Window, error) {
	var win geometry.Window
	for _, line := range strings.Split(out, "\n") {
		key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		var dst *int
		switch key {
		case "X":
			dst = &win.X
		case "Y":
			dst = &win.Y
		case "WIDTH":
			dst = &win.W
		case "HEIGHT":
			dst = &win.H
		default:
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return geometry.Window{}, fmt.Errorf("bad %s in window geometry: %w", key, err)
		}
		*dst = n
	}
	return win, nil
}

// xdotoolKey maps browser-style names onto X keysyms.
func xdotoolKey(combo string) string {
	parts := strings.Split(combo, "+")
	last := parts[len(parts)-1]
	switch strings.ToLower(last) {
	case "enter":
		last = "Return"
	case "esc":
		last = "Escape"
	case "backspace":
		last = "BackSpace"
	case "space":
		last = "space"
	}
	parts[len(parts)-1] = last
	return strings.Join(parts, "+")
}
