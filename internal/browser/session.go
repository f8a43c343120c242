// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/clickpilot/internal/config"
	"github.com/xkilldash9x/clickpilot/internal/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// handleAttr marks elements returned by FindElements.
const handleAttr = "data-clickpilot-el"

// ArtifactSink stores screenshots for the run.
type ArtifactSink interface {
	Name(ctx context.Context, stem, ext string) string
	Write(name string, data []byte) (string, error)
}

// Session is one Chrome tab driven over CDP.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         config.BrowserConfig
	sink        ArtifactSink

	mu       sync.Mutex
	isClosed bool
}

// Option customises a Session.
type Option func(*Session)

// WithArtifacts saves every screenshot into sink when
// browser.save_screenshots is set.
func WithArtifacts(sink ArtifactSink) Option {
	return func(s *Session) { s.sink = sink }
}

// NewSession launches (or attaches to) Chrome and opens a tab. parent should
// outlive the session; individual calls take their own ctx.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessionID := uuid.New().String()
	sessionLogger := logger.Named("browser").With(zap.String("session_id", sessionID))

	allocCtx, allocCancel := NewAllocator(parent, cfg)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sessionLogger.Sugar().Debugf),
		chromedp.WithErrorf(sessionLogger.Sugar().Warnf),
	)

	// The first Run starts the browser and attaches the tab.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to initialize browser context/target connection: %w", err)
	}

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      sessionLogger,
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Info("Browser session started.", zap.Bool("headless", cfg.Headless), zap.Bool("remote", cfg.RemoteURL != ""))
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Run executes chromedp actions bound to both the tab and ctx.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Info("Navigating.", zap.String("url", url))
	if err := s.Run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	if s.cfg.SaveScreenshots && s.sink != nil {
		if path, err := s.sink.Write(s.sink.Name(ctx, "screenshot", "png"), buf); err != nil {
			s.logger.Warn("Failed to archive screenshot.", zap.Error(err))
		} else {
			s.logger.Debug("Archived screenshot.", zap.String("path", path))
		}
	}
	return buf, nil
}

// Evaluate runs script in the page and unmarshals the result into out.
func (s *Session) Evaluate(ctx context.Context, script string, out interface{}) error {
	return s.Run(ctx, chromedp.Evaluate(script, out))
}

// FindElements tags every element matching selector and returns a CSS
// selector handle for each one.
func (s *Session) FindElements(ctx context.Context, selector string) ([]string, error) {
	quotedSel, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	quotedTag, err := json.Marshal(uuid.NewString()[:8])
	if err != nil {
		return nil, err
	}

	script := fmt.Sprintf(`(() => {
		const tag = %s;
		return Array.from(document.querySelectorAll(%s)).map((el, i) => {
			const id = tag + "-" + i;
			el.setAttribute(%q, id);
			return '[%s="' + id + '"]';
		});
	})()`, quotedTag, quotedSel, handleAttr, handleAttr)

	var handles []string
	if err := s.Evaluate(ctx, script, &handles); err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}
	return handles, nil
}

// Text returns the rendered text of the element at handle, or "" if it is gone.
func (s *Session) Text(ctx context.Context, handle string) (string, error) {
	quoted, err := json.Marshal(handle)
	if err != nil {
		return "", err
	}
	var text string
	script := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? (el.innerText || el.textContent || "") : ""; })()`, quoted)
	if err := s.Evaluate(ctx, script, &text); err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", handle, err)
	}
	return text, nil
}

// Visible reports whether the element has a box and is not hidden by style.
func (s *Session) Visible(ctx context.Context, handle string) (bool, error) {
	quoted, err := json.Marshal(handle)
	if err != nil {
		return false, err
	}
	var visible bool
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const r = el.getBoundingClientRect();
		const st = getComputedStyle(el);
		return r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
	})()`, quoted)
	if err := s.Evaluate(ctx, script, &visible); err != nil {
		return false, fmt.Errorf("failed to check visibility of %s: %w", handle, err)
	}
	return visible, nil
}

// Click performs a DOM click on the element at handle.
func (s *Session) Click(ctx context.Context, handle string) error {
	if err := s.Run(ctx, chromedp.Click(handle, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("failed to click %s: %w", handle, err)
	}
	return nil
}

// Submit submits the form containing the element matched by selector.
func (s *Session) Submit(ctx context.Context, selector string) error {
	if err := s.Run(ctx, chromedp.Submit(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to submit %s: %w", selector, err)
	}
	return nil
}

// Viewport returns the CSS viewport as a window at the origin.
func (s *Session) Viewport(ctx context.Context) (geometry.Window, error) {
	var dims []int
	if err := s.Evaluate(ctx, `[window.innerWidth, window.innerHeight]`, &dims); err != nil {
		return geometry.Window{}, fmt.Errorf("failed to read viewport: %w", err)
	}
	if len(dims) != 2 {
		return geometry.Window{}, fmt.Errorf("unexpected viewport result %v", dims)
	}
	return geometry.Window{W: dims[0], H: dims[1]}, nil
}

// ResetZoom restores a page scale factor of 1.
func (s *Session) ResetZoom(ctx context.Context) error {
	if err := s.Run(ctx, emulation.SetPageScaleFactor(1)); err != nil {
		return fmt.Errorf("failed to reset zoom: %w", err)
	}
	return nil
}

// WaitVisible blocks until selector is visible or timeout elapses.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Close terminates the tab and, for a local browser, the Chrome process.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.cancel()
	s.allocCancel()
	return nil
}
