// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/locator"
)

// Session is one live browser tab. It is owned by exactly one check at a
// time: it carries no internal locking for concurrent use, and teardown is
// unconditional via Close.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	pageLoadTimeout time.Duration

	onClose   func()
	closeOnce sync.Once
}

// newSession opens a fresh tab on the shared allocator.
func newSession(allocCtx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()
	log := logger.Named("session").With(zap.String("session_id", sessionID))

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:              sessionID,
		ctx:             tabCtx,
		cancel:          tabCancel,
		logger:          log,
		pageLoadTimeout: cfg.Target.PageLoadTimeout,
	}
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Close terminates the tab. Idempotent; runs on every exit path so the
// underlying browser process is never leaked.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing session.")
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("Graceful tab cancel returned an error.", zap.Error(err))
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}

// run executes chromedp actions on the tab while honoring both the session
// lifecycle and the caller's deadline.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, opCancel := combineContext(s.ctx, ctx)
	defer opCancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads a URL, bounded by the configured page-load timeout.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	s.logger.Info("Navigating.", zap.String("url", targetURL))

	navCtx, navCancel := context.WithTimeout(ctx, s.pageLoadTimeout)
	defer navCancel()

	if err := s.run(navCtx, chromedp.Navigate(targetURL)); err != nil {
		return fmt.Errorf("navigation to %q failed: %w", targetURL, err)
	}
	return nil
}

// Evaluate runs a read-only JavaScript expression and decodes the JSON result
// into out. Implements the wait engine's Evaluator.
func (s *Session) Evaluate(ctx context.Context, expr string, out any) error {
	return s.run(ctx, chromedp.Evaluate(expr, out))
}

// Click activates the first element matched by the locator, after chromedp's
// own visibility gating.
func (s *Session) Click(ctx context.Context, loc locator.Locator) error {
	if err := s.run(ctx, chromedp.Click(loc.Expression, queryOption(loc), chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %s failed: %w", loc, err)
	}
	return nil
}

// Focus moves keyboard focus to the first element matched by the locator.
func (s *Session) Focus(ctx context.Context, loc locator.Locator) error {
	if err := s.run(ctx, chromedp.Focus(loc.Expression, queryOption(loc))); err != nil {
		return fmt.Errorf("focus on %s failed: %w", loc, err)
	}
	return nil
}

// TypeKeys sends text to the focused element as key events, so value-bearing
// fields and contenteditable regions receive it the same way.
func (s *Session) TypeKeys(ctx context.Context, text string) error {
	return s.run(ctx, chromedp.KeyEvent(text))
}

// PressKey sends a single control key (Enter, Delete, ...) to the focused
// element.
func (s *Session) PressKey(ctx context.Context, key string) error {
	return s.run(ctx, chromedp.KeyEvent(key))
}

// ClearFocused empties the focused editable element with select-all + delete,
// the portable clearing strategy for inputs, textareas, and contenteditable
// regions alike.
func (s *Session) ClearFocused(ctx context.Context) error {
	return s.run(ctx,
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Delete),
	)
}

// ScrollToBottom scrolls the page to its full height.
func (s *Session) ScrollToBottom(ctx context.Context) error {
	return s.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, nil))
}

// PageSource returns the serialized document markup.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page source: %w", err)
	}
	return html, nil
}

// CaptureScreenshot returns a PNG of the current viewport.
func (s *Session) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// queryOption maps a locator strategy onto chromedp's query mechanisms.
func queryOption(loc locator.Locator) chromedp.QueryOption {
	switch loc.Strategy {
	case locator.XPath:
		return chromedp.BySearch
	default:
		return chromedp.ByQuery
	}
}

// IsStaleNode reports whether an interaction failed because the resolved
// element no longer corresponds to current page state (re-render between
// resolve and use). Stale references are retryable by re-resolving, not
// fatal.
func IsStaleNode(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find node") ||
		strings.Contains(msg, "node with given id does not belong to the document") ||
		strings.Contains(msg, "no node with given id found")
}
