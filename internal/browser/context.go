// File: internal/browser/context.go
package browser

import "context"

// combineContext derives a context from parent that is additionally canceled
// when secondary is canceled. chromedp stores the tab identity in context
// values, so operations must derive from the session context while still
// honoring the caller's deadline.
func combineContext(parent, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(parent)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}
