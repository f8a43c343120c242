// internal/browser/context_utils.go
package browser

import "context"

// CombineContext derives from ctx1, which carries the chromedp target, and
// is also cancelled when ctx2 is done.
func CombineContext(ctx1, ctx2 context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(ctx1)
	stop := context.AfterFunc(ctx2, cancel)
	return combinedCtx, func() {
		stop()
		cancel()
	}
}
