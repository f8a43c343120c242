// internal/browser/allocator.go
package browser

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/clickpilot/internal/config"
)

// chromeFlag is one command-line switch layered over chromedp's defaults.
type chromeFlag struct {
	Name  string
	Value interface{}
}

// allocatorFlags lists the switches derived from cfg, in order.
func allocatorFlags(cfg config.BrowserConfig) []chromeFlag {
	flags := []chromeFlag{
		{"no-sandbox", true},
		{"disable-dev-shm-usage", true},
	}

	// The defaults are headless; a visible window is the normal mode here
	// because OS-level input needs something to click on.
	if !cfg.Headless {
		flags = append(flags, chromeFlag{"headless", false})
	}
	if cfg.UserDataDir != "" {
		dir, err := homedir.Expand(cfg.UserDataDir)
		if err != nil {
			dir = cfg.UserDataDir
		}
		flags = append(flags, chromeFlag{"user-data-dir", dir})
	}

	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if found {
			flags = append(flags, chromeFlag{key, value})
		} else {
			flags = append(flags, chromeFlag{key, true})
		}
	}
	return flags
}

// AllocatorOptions translates the browser config into chromedp allocator
// options, starting from chromedp's defaults.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, f := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if cfg.WindowW > 0 && cfg.WindowH > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowW, cfg.WindowH))
	}
	return opts
}

// NewAllocator starts a local Chrome, or attaches to a running one when
// RemoteURL is set.
func NewAllocator(ctx context.Context, cfg config.BrowserConfig) (context.Context, context.CancelFunc) {
	if cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, cfg.RemoteURL)
	}
	return chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
}
