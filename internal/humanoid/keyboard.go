package humanoid

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"
)

var namedKeys = map[string]string{
	"enter":     kb.Enter,
	"return":    kb.Enter,
	"tab":       kb.Tab,
	"escape":    kb.Escape,
	"esc":       kb.Escape,
	"backspace": kb.Backspace,
	"delete":    kb.Delete,
	"up":        kb.ArrowUp,
	"down":      kb.ArrowDown,
	"left":      kb.ArrowLeft,
	"right":     kb.ArrowRight,
	"home":      kb.Home,
	"end":       kb.End,
	"pageup":    kb.PageUp,
	"pagedown":  kb.PageDown,
	"space":     " ",
}

var modifierKeys = map[string]input.Modifier{
	"ctrl":    input.ModifierCtrl,
	"control": input.ModifierCtrl,
	"alt":     input.ModifierAlt,
	"shift":   input.ModifierShift,
	"meta":    input.ModifierMeta,
	"super":   input.ModifierMeta,
	"cmd":     input.ModifierMeta,
}

// TypeText types text into the focused element, pausing perChar between
// runes with a little jitter. Only the length is logged.
func (h *Injector) TypeText(ctx context.Context, text string, perChar time.Duration) error {
	h.logger.Debug("Typing text.", zap.Int("runes", utf8.RuneCountInString(text)))
	for _, r := range text {
		for _, ev := range kb.Encode(r) {
			if err := h.executor.DispatchKeyEvent(ctx, ev); err != nil {
				return fmt.Errorf("humanoid: typing: %w", err)
			}
		}
		if perChar > 0 {
			jitter := 1 + (h.float64n()*0.4 - 0.2)
			if err := h.executor.Sleep(ctx, time.Duration(float64(perChar)*jitter)); err != nil {
				return err
			}
		}
	}
	return nil
}

// PressKey sends a combo such as "Enter", "Tab" or "ctrl+a".
func (h *Injector) PressKey(ctx context.Context, combo string) error {
	events, err := comboEvents(combo)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := h.executor.DispatchKeyEvent(ctx, ev); err != nil {
			return fmt.Errorf("humanoid: key %q: %w", combo, err)
		}
	}
	return nil
}

// comboEvents turns "mod+mod+key" into keyDown/keyUp events carrying the
// modifier bitmask.
func comboEvents(combo string) ([]*input.DispatchKeyEventParams, error) {
	parts := strings.Split(combo, "+")
	keyName := strings.TrimSpace(parts[len(parts)-1])
	if keyName == "" {
		return nil, fmt.Errorf("humanoid: empty key in combo %q", combo)
	}

	var mods input.Modifier
	for _, p := range parts[:len(parts)-1] {
		m, ok := modifierKeys[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return nil, fmt.Errorf("humanoid: unknown modifier %q in %q", p, combo)
		}
		mods |= m
	}

	keyText := keyName
	if named, ok := namedKeys[strings.ToLower(keyName)]; ok {
		keyText = named
	}
	r, size := utf8.DecodeRuneInString(keyText)
	if size != len(keyText) {
		return nil, fmt.Errorf("humanoid: unknown key %q", keyName)
	}

	if mods == 0 {
		return kb.Encode(r), nil
	}

	k, ok := kb.Keys[r]
	if !ok {
		return nil, fmt.Errorf("humanoid: unknown key %q", keyName)
	}
	down := input.DispatchKeyEvent(input.KeyRawDown).
		WithModifiers(mods).
		WithKey(k.Key).
		WithCode(k.Code).
		WithWindowsVirtualKeyCode(k.Windows).
		WithNativeVirtualKeyCode(k.Native)
	up := input.DispatchKeyEvent(input.KeyUp).
		WithModifiers(mods).
		WithKey(k.Key).
		WithCode(k.Code).
		WithWindowsVirtualKeyCode(k.Windows).
		WithNativeVirtualKeyCode(k.Native)
	return []*input.DispatchKeyEventParams{down, up}, nil
}
