// File: internal/chat/page.go

// Package chat is the interaction facade over a browser session: one Page
// per chat widget, exposing intent-level operations (open, submit, await
// reply, read transcript) on top of the wait engine and locator resolver.
// A Page is owned by a single check goroutine and is not safe for
// concurrent use.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/browser"
	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/locator"
	"github.com/xkilldash9x/chatprobe/internal/resolve"
	"github.com/xkilldash9x/chatprobe/internal/wait"
)

// Primitives is the low-level page surface the facade drives. It is the
// method set of *browser.Session, lifted to an interface so the facade can
// be exercised against a scripted fake.
type Primitives interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expr string, out any) error
	Click(ctx context.Context, loc locator.Locator) error
	Focus(ctx context.Context, loc locator.Locator) error
	TypeKeys(ctx context.Context, text string) error
	PressKey(ctx context.Context, key string) error
	ClearFocused(ctx context.Context) error
	ScrollToBottom(ctx context.Context) error
	PageSource(ctx context.Context) (string, error)
	CaptureScreenshot(ctx context.Context) ([]byte, error)
}

var _ Primitives = (*browser.Session)(nil)

// State tracks where the page is in its interaction cycle. Transitions are
// informational; operations do not refuse to run from an unexpected state,
// they just record it for diagnostics.
type State string

const (
	StateUnloaded      State = "unloaded"
	StateLoading       State = "loading"
	StateReady         State = "ready"
	StateSending       State = "sending"
	StateAwaitingReply State = "awaiting-reply"
	StateClosed        State = "closed"
)

// Page drives one chat widget through a Primitives implementation.
type Page struct {
	prim     Primitives
	targets  locator.Targets
	engine   *wait.Engine
	resolver *resolve.Resolver
	logger   *zap.Logger

	waitCfg config.WaitConfig
	grace   time.Duration

	state State
}

// NewPage wires a facade over the given primitives. grace bounds how long
// Open waits for the widget to become interactive after navigation.
func NewPage(prim Primitives, targets locator.Targets, waitCfg config.WaitConfig, grace time.Duration, logger *zap.Logger) *Page {
	logger = logger.Named("chat")
	engine := wait.NewEngine(prim, waitCfg, logger)
	return &Page{
		prim:     prim,
		targets:  targets,
		engine:   engine,
		resolver: resolve.New(engine, logger),
		logger:   logger,
		waitCfg:  waitCfg,
		grace:    grace,
		state:    StateUnloaded,
	}
}

// State reports the page's current lifecycle state.
func (p *Page) State() State { return p.state }

// Targets exposes the locator chains this page was built with, so checks
// probe the same elements the facade drives.
func (p *Page) Targets() locator.Targets { return p.targets }

func (p *Page) setState(next State) {
	if next == p.state {
		return
	}
	p.logger.Debug("Page state transition.",
		zap.String("from", string(p.state)),
		zap.String("to", string(next)))
	p.state = next
}

// Open navigates to the chat URL and waits for the input to become
// interactive within the widget grace period. On failure the page stays in
// the loading state so the caller can screenshot it before tearing down.
func (p *Page) Open(ctx context.Context, url string) error {
	p.setState(StateLoading)
	if err := p.prim.Navigate(ctx, url); err != nil {
		return fmt.Errorf("opening chat page: %w", err)
	}
	if _, err := p.resolver.Resolve(ctx, p.targets.Input, wait.KindClickable, p.grace); err != nil {
		return fmt.Errorf("chat widget not interactive after load: %w", err)
	}
	p.setState(StateReady)
	return nil
}

// IsWidgetReady probes, without failing, whether the input is currently
// interactive.
func (p *Page) IsWidgetReady(ctx context.Context) bool {
	_, err := p.resolver.Resolve(ctx, p.targets.Input, wait.KindClickable, p.waitCfg.ProbeTimeout)
	return err == nil
}

// SubmitMessage clears the input, types text into it and dispatches it.
// Dispatch prefers the dedicated send control; when no such control resolves
// within the send-control budget, Enter on the focused input is the
// fallback. A stale input node is re-resolved once before the interaction
// fails.
func (p *Page) SubmitMessage(ctx context.Context, text string) error {
	p.setState(StateSending)

	res, err := p.resolver.Resolve(ctx, p.targets.Input, wait.KindClickable, 0)
	if err != nil {
		return fmt.Errorf("submitting message: %w", err)
	}

	prepare := func(loc locator.Locator) error {
		if err := p.prim.Click(ctx, loc); err != nil {
			return err
		}
		if err := p.prim.ClearFocused(ctx); err != nil {
			return err
		}
		return p.prim.TypeKeys(ctx, text)
	}
	if err := prepare(res.Locator); err != nil {
		if !browser.IsStaleNode(err) {
			return fmt.Errorf("submitting message: %w", err)
		}
		// The widget re-rendered between resolution and interaction.
		// Resolve again and retry once against the fresh node.
		p.logger.Debug("Input node went stale; re-resolving.", zap.Error(err))
		res, err = p.resolver.Resolve(ctx, p.targets.Input, wait.KindClickable, 0)
		if err != nil {
			return fmt.Errorf("submitting message after stale input: %w", err)
		}
		if err := prepare(res.Locator); err != nil {
			return fmt.Errorf("submitting message after stale input: %w", err)
		}
	}

	if err := p.dispatch(ctx); err != nil {
		return fmt.Errorf("submitting message: %w", err)
	}
	p.setState(StateAwaitingReply)
	return nil
}

// dispatch clicks the send control when one resolves in time, otherwise
// presses Enter on the focused input. Widgets differ on which of the two
// they implement, so neither path is an error by itself.
func (p *Page) dispatch(ctx context.Context) error {
	res, err := p.resolver.Resolve(ctx, p.targets.SendControl, wait.KindClickable, p.waitCfg.SendControlTimeout)
	if err != nil {
		p.logger.Debug("No send control resolved; falling back to Enter.", zap.Error(err))
	} else {
		clickErr := p.prim.Click(ctx, res.Locator)
		if clickErr == nil {
			return nil
		}
		p.logger.Debug("Send control click failed; falling back to Enter.", zap.Error(clickErr))
	}
	return p.prim.PressKey(ctx, kb.Enter)
}

// AwaitReply blocks until a new AI message is visible. When the loading
// indicator is currently showing it must first disappear; both phases share
// the single timeout budget. Zero timeout means the configured reply
// timeout.
func (p *Page) AwaitReply(ctx context.Context, timeout time.Duration) (*resolve.Resolution, error) {
	if timeout <= 0 {
		timeout = p.waitCfg.ReplyTimeout
	}
	deadline := time.Now().Add(timeout)

	indicator := p.targets.LoadingIndicator.Primary()
	if !indicator.IsZero() {
		probe := p.waitCfg.ProbeTimeout
		if remaining := time.Until(deadline); remaining < probe {
			probe = remaining
		}
		if probe > 0 && p.engine.Holds(ctx, wait.Visible(indicator), probe) {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return nil, p.replyTimedOut(timeout)
			}
			if _, err := p.engine.Await(ctx, wait.NotVisible(indicator), remaining); err != nil {
				return nil, fmt.Errorf("awaiting reply: %w", err)
			}
		}
	}

	// The indicator phase may have consumed the whole budget. A non-positive
	// remainder must fail here: the resolver reads it as "use the default"
	// and would silently extend the wait past the caller's deadline.
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, p.replyTimedOut(timeout)
	}
	res, err := p.resolver.Resolve(ctx, p.targets.AIMessage, wait.KindVisible, remaining)
	if err != nil {
		return nil, fmt.Errorf("awaiting reply: %w", err)
	}
	p.setState(StateReady)
	return res, nil
}

// replyTimedOut builds the terminal error for a reply that never arrived
// inside the caller's budget.
func (p *Page) replyTimedOut(timeout time.Duration) error {
	return fmt.Errorf("awaiting reply: %w", &wait.TimedOutError{
		Condition: wait.Visible(p.targets.AIMessage.Primary()).Describe(),
		Timeout:   timeout,
	})
}

// LatestAIMessage reads the transcript once and returns the text of the
// most recent AI message. An empty transcript is a valid empty result, not
// an error.
func (p *Page) LatestAIMessage(ctx context.Context) (string, error) {
	texts, err := p.transcript(ctx, p.targets.AIMessage)
	if err != nil {
		return "", err
	}
	if len(texts) == 0 {
		return "", nil
	}
	return texts[len(texts)-1], nil
}

// AllAIMessages returns every AI message currently rendered, oldest first.
func (p *Page) AllAIMessages(ctx context.Context) ([]string, error) {
	return p.transcript(ctx, p.targets.AIMessage)
}

// AllUserMessages returns every user message currently rendered, oldest
// first.
func (p *Page) AllUserMessages(ctx context.Context) ([]string, error) {
	return p.transcript(ctx, p.targets.UserMessage)
}

// transcript probes the chain's locators in order and returns the texts
// from the first locator that matches anything. Transcripts render
// append-only, so document order is chronological order.
func (p *Page) transcript(ctx context.Context, chain locator.Chain) ([]string, error) {
	var lastErr error
	for _, loc := range chain.Locators {
		snaps, err := p.engine.Peek(ctx, wait.Present(loc))
		if err != nil {
			lastErr = err
			continue
		}
		if len(snaps) == 0 {
			continue
		}
		texts := make([]string, 0, len(snaps))
		for _, s := range snaps {
			texts = append(texts, strings.TrimSpace(s.Text))
		}
		return texts, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("reading %s transcript: %w", chain.Target, lastErr)
	}
	return nil, nil
}

// InputValue returns the current content of the chat input, whether it is a
// value-backed control or a contenteditable region.
func (p *Page) InputValue(ctx context.Context) (string, error) {
	res, err := p.resolver.Resolve(ctx, p.targets.Input, wait.KindPresent, p.waitCfg.ProbeTimeout)
	if err != nil {
		return "", fmt.Errorf("reading input value: %w", err)
	}
	snap, ok := res.First()
	if !ok {
		return "", nil
	}
	return snap.Value, nil
}

// AwaitInputCleared blocks until the widget has drained the input after a
// submission. Zero timeout means the engine default.
func (p *Page) AwaitInputCleared(ctx context.Context, timeout time.Duration) error {
	if _, err := p.resolver.Resolve(ctx, p.targets.Input, wait.KindValueEmpty, timeout); err != nil {
		return fmt.Errorf("awaiting cleared input: %w", err)
	}
	return nil
}

// IsInputCleared reports whether the input holds no residual text.
func (p *Page) IsInputCleared(ctx context.Context) (bool, error) {
	value, err := p.InputValue(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(value) == "", nil
}

// LoadingVisible probes whether the loading indicator is currently showing.
func (p *Page) LoadingVisible(ctx context.Context) bool {
	indicator := p.targets.LoadingIndicator.Primary()
	if indicator.IsZero() {
		return false
	}
	return p.engine.Holds(ctx, wait.Visible(indicator), p.waitCfg.ProbeTimeout)
}

// ErrorBanner returns the text of a visible error banner, or empty when
// none is showing.
func (p *Page) ErrorBanner(ctx context.Context) (string, error) {
	res, err := p.resolver.Resolve(ctx, p.targets.ErrorBanner, wait.KindVisible, p.waitCfg.ProbeTimeout)
	if err != nil {
		if resolve.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading error banner: %w", err)
	}
	snap, _ := res.Last()
	return strings.TrimSpace(snap.Text), nil
}

// IsVisibleAndEnabled probes a chain for an interactive match without
// failing.
func (p *Page) IsVisibleAndEnabled(ctx context.Context, chain locator.Chain) bool {
	_, err := p.resolver.Resolve(ctx, chain, wait.KindClickable, p.waitCfg.ProbeTimeout)
	return err == nil
}

// TextDirection reports the document's text direction: the declared dir
// attribute when present, the computed style otherwise, ltr by default.
func (p *Page) TextDirection(ctx context.Context) (string, error) {
	const expr = `(() => {
		const declared = (document.documentElement.getAttribute('dir') || '').toLowerCase();
		if (declared === 'rtl' || declared === 'ltr') { return declared; }
		const computed = (window.getComputedStyle(document.documentElement).direction || '').toLowerCase();
		if (computed === 'rtl' || computed === 'ltr') { return computed; }
		return 'ltr';
	})()`
	var dir string
	if err := p.prim.Evaluate(ctx, expr, &dir); err != nil {
		return "", fmt.Errorf("reading text direction: %w", err)
	}
	return dir, nil
}

// Evaluate runs an arbitrary expression in the page, for checks that probe
// page globals directly.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	return p.prim.Evaluate(ctx, expr, out)
}

// ScrollToBottom scrolls the transcript viewport to its end.
func (p *Page) ScrollToBottom(ctx context.Context) error {
	return p.prim.ScrollToBottom(ctx)
}

// PageSource returns the serialized document.
func (p *Page) PageSource(ctx context.Context) (string, error) {
	return p.prim.PageSource(ctx)
}

// CaptureScreenshot grabs a full-viewport screenshot.
func (p *Page) CaptureScreenshot(ctx context.Context) ([]byte, error) {
	return p.prim.CaptureScreenshot(ctx)
}

// Close marks the page retired. The underlying session is closed by its
// owner; the facade only records that no further operations are expected.
func (p *Page) Close() {
	p.setState(StateClosed)
}
