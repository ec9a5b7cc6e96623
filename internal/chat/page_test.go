// File: internal/chat/page_test.go
package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/locator"
	"github.com/xkilldash9x/chatprobe/internal/resolve"
	"github.com/xkilldash9x/chatprobe/internal/wait"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakePrimitives scripts page state per locator expression fragment. Probe
// JS embeds the locator expression verbatim, so fragment routing is stable.
// Each Evaluate against a fragment consumes the next frame; the last frame
// repeats.
type fakePrimitives struct {
	frames map[string][][]wait.Snapshot
	cursor map[string]int
	dir    string

	// clickErrs queues errors returned by Click per locator name,
	// consumed in order.
	clickErrs map[string][]error

	events []string
	source string
}

func newFakePrimitives() *fakePrimitives {
	return &fakePrimitives{
		frames:    map[string][][]wait.Snapshot{},
		cursor:    map[string]int{},
		clickErrs: map[string][]error{},
		dir:       "ltr",
	}
}

// serve scripts successive probe answers for a fragment. Call with a single
// frame for steady state.
func (f *fakePrimitives) serve(fragment string, frames ...[]wait.Snapshot) {
	f.frames[fragment] = frames
}

func (f *fakePrimitives) failClickOnce(name string, err error) {
	f.clickErrs[name] = append(f.clickErrs[name], err)
}

func (f *fakePrimitives) record(event string) {
	f.events = append(f.events, event)
}

func (f *fakePrimitives) Evaluate(_ context.Context, expr string, out any) error {
	if strings.Contains(expr, "getAttribute('dir')") {
		*(out.(*string)) = f.dir
		return nil
	}
	for fragment, frames := range f.frames {
		if !strings.Contains(expr, fragment) {
			continue
		}
		i := f.cursor[fragment]
		if i >= len(frames) {
			i = len(frames) - 1
		}
		f.cursor[fragment]++
		if p, ok := out.(*[]wait.Snapshot); ok {
			*p = frames[i]
		}
		return nil
	}
	if p, ok := out.(*[]wait.Snapshot); ok {
		*p = nil
	}
	return nil
}

func (f *fakePrimitives) Navigate(_ context.Context, url string) error {
	f.record("navigate:" + url)
	return nil
}

func (f *fakePrimitives) Click(_ context.Context, loc locator.Locator) error {
	if queue := f.clickErrs[loc.Name]; len(queue) > 0 {
		err := queue[0]
		f.clickErrs[loc.Name] = queue[1:]
		f.record("click-failed:" + loc.Name)
		return err
	}
	f.record("click:" + loc.Name)
	return nil
}

func (f *fakePrimitives) Focus(_ context.Context, loc locator.Locator) error {
	f.record("focus:" + loc.Name)
	return nil
}

func (f *fakePrimitives) TypeKeys(_ context.Context, text string) error {
	f.record("type:" + text)
	return nil
}

func (f *fakePrimitives) PressKey(_ context.Context, key string) error {
	f.record("press:" + key)
	return nil
}

func (f *fakePrimitives) ClearFocused(_ context.Context) error {
	f.record("clear")
	return nil
}

func (f *fakePrimitives) ScrollToBottom(_ context.Context) error {
	f.record("scroll")
	return nil
}

func (f *fakePrimitives) PageSource(_ context.Context) (string, error) {
	return f.source, nil
}

func (f *fakePrimitives) CaptureScreenshot(_ context.Context) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

// Compact chains so that routing fragments stay readable in tests.
func testTargets() locator.Targets {
	return locator.Targets{
		Input: locator.NewChain("chat input",
			locator.ByCSS("chat input", "textarea.chat-entry"),
			locator.ByXPath("chat input (broad)", "//div[@class='entry-fallback']"),
		),
		SendControl: locator.NewChain("send control",
			locator.ByCSS("send control", "button.send-button"),
		),
		UserMessage: locator.NewChain("user message",
			locator.ByCSS("user message", "div.user-bubble"),
		),
		AIMessage: locator.NewChain("ai message",
			locator.ByCSS("ai message", "div.ai-bubble"),
		),
		LoadingIndicator: locator.NewChain("loading indicator",
			locator.ByCSS("loading indicator", "div.typing-dots"),
		),
		ErrorBanner: locator.NewChain("error banner",
			locator.ByCSS("error banner", "div.error-banner"),
		),
	}
}

func interactive() wait.Snapshot {
	return wait.Snapshot{Visible: true, Enabled: true}
}

func newTestPage(prim Primitives) *Page {
	cfg := config.WaitConfig{
		PollInterval:       2 * time.Millisecond,
		DefaultTimeout:     100 * time.Millisecond,
		ReplyTimeout:       200 * time.Millisecond,
		ProbeTimeout:       20 * time.Millisecond,
		SendControlTimeout: 30 * time.Millisecond,
	}
	return NewPage(prim, testTargets(), cfg, 100*time.Millisecond, zap.NewNop())
}

func TestOpenTransitionsToReady(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{interactive()})

	page := newTestPage(prim)
	require.Equal(t, StateUnloaded, page.State())

	err := page.Open(context.Background(), "https://chat.example.test/")
	require.NoError(t, err)
	assert.Equal(t, StateReady, page.State())
	assert.Equal(t, []string{"navigate:https://chat.example.test/"}, prim.events)
}

func TestOpenFailsWhenWidgetNeverInteractive(t *testing.T) {
	prim := newFakePrimitives()
	// Input present but disabled for the whole grace period.
	prim.serve("chat-entry", []wait.Snapshot{{Visible: true, Enabled: false}})

	page := newTestPage(prim)
	err := page.Open(context.Background(), "https://chat.example.test/")

	require.Error(t, err)
	assert.True(t, resolve.IsNotFound(err))
	assert.Equal(t, StateLoading, page.State(), "failed load must stay observable for screenshots")
}

func TestSubmitMessagePrefersSendControl(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{interactive()})
	prim.serve("send-button", []wait.Snapshot{interactive()})

	page := newTestPage(prim)
	err := page.SubmitMessage(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []string{
		"click:chat input",
		"clear",
		"type:hello",
		"click:send control",
	}, prim.events, "input must be cleared before typing and dispatched via the send control")
	assert.Equal(t, StateAwaitingReply, page.State())
}

func TestSubmitMessageEnterFallbackWhenNoSendControl(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{interactive()})
	// send-button never resolves.

	page := newTestPage(prim)
	err := page.SubmitMessage(context.Background(), "hello")

	require.NoError(t, err, "a missing send control is a layout variant, not a failure")
	assert.Equal(t, "press:\r", prim.events[len(prim.events)-1])
}

func TestSubmitMessageRetriesOnceOnStaleInput(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{interactive()})
	prim.serve("send-button", []wait.Snapshot{interactive()})
	prim.failClickOnce("chat input", errors.New("could not find node (-32000)"))

	page := newTestPage(prim)
	err := page.SubmitMessage(context.Background(), "hello")

	require.NoError(t, err, "one stale node must be absorbed by re-resolving")
	assert.Equal(t, []string{
		"click-failed:chat input",
		"click:chat input",
		"clear",
		"type:hello",
		"click:send control",
	}, prim.events)
}

func TestSubmitMessageDoesNotRetryNonStaleErrors(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{interactive()})
	boom := errors.New("target crashed")
	prim.failClickOnce("chat input", boom)

	page := newTestPage(prim)
	err := page.SubmitMessage(context.Background(), "hello")

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, prim.events, "click:chat input")
}

func TestAwaitReplyWaitsOutLoadingIndicator(t *testing.T) {
	prim := newFakePrimitives()
	// Indicator shows for two polls, then hides.
	prim.serve("typing-dots",
		[]wait.Snapshot{{Visible: true}},
		[]wait.Snapshot{{Visible: true}},
		[]wait.Snapshot{},
	)
	// Reply appears only after the first probe.
	prim.serve("ai-bubble",
		nil,
		[]wait.Snapshot{{Visible: true, Text: "marhaba"}},
	)

	page := newTestPage(prim)
	res, err := page.AwaitReply(context.Background(), 0)

	require.NoError(t, err)
	last, ok := res.Last()
	require.True(t, ok)
	assert.Equal(t, "marhaba", last.Text)
	assert.Equal(t, StateReady, page.State())
}

func TestAwaitReplyTimesOutWhenNoReplyArrives(t *testing.T) {
	prim := newFakePrimitives()
	// Indicator never shows, reply never renders.

	page := newTestPage(prim)
	start := time.Now()
	_, err := page.AwaitReply(context.Background(), 60*time.Millisecond)

	require.Error(t, err)
	assert.True(t, resolve.IsNotFound(err))
	assert.ErrorIs(t, err, wait.ErrTimedOut, "a missing reply is a timeout underneath")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitReplyHonorsBudgetWhenIndicatorAbsent(t *testing.T) {
	// Nothing ever renders: the indicator probe consumes the whole caller
	// budget, and the reply wait must then fail at the deadline instead of
	// silently extending to the engine's default timeout.
	page := newTestPage(newFakePrimitives())

	start := time.Now()
	_, err := page.AwaitReply(context.Background(), 20*time.Millisecond)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, wait.ErrTimedOut)
	assert.Less(t, elapsed, 90*time.Millisecond,
		"the reply wait must not inflate past the caller's budget")
}

func TestLatestAIMessageReturnsMostRecent(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("ai-bubble", []wait.Snapshot{
		{Visible: true, Text: "first answer"},
		{Visible: true, Text: "  latest answer \n"},
	})

	page := newTestPage(prim)
	text, err := page.LatestAIMessage(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "latest answer", text)
}

func TestLatestAIMessageEmptyTranscript(t *testing.T) {
	page := newTestPage(newFakePrimitives())
	text, err := page.LatestAIMessage(context.Background())

	require.NoError(t, err, "an empty transcript is a valid empty result")
	assert.Empty(t, text)
}

func TestAllMessagesPreserveDocumentOrder(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("user-bubble", []wait.Snapshot{
		{Visible: true, Text: "question one"},
		{Visible: true, Text: "question two"},
	})

	page := newTestPage(prim)
	msgs, err := page.AllUserMessages(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"question one", "question two"}, msgs)
}

func TestInputValueAndCleared(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("chat-entry", []wait.Snapshot{{Visible: true, Enabled: true, Value: "   "}})

	page := newTestPage(prim)
	value, err := page.InputValue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "   ", value)

	cleared, err := page.IsInputCleared(context.Background())
	require.NoError(t, err)
	assert.True(t, cleared, "whitespace-only input counts as cleared")
}

func TestErrorBanner(t *testing.T) {
	prim := newFakePrimitives()
	page := newTestPage(prim)

	text, err := page.ErrorBanner(context.Background())
	require.NoError(t, err, "an absent banner is not an error")
	assert.Empty(t, text)

	prim.serve("error-banner", []wait.Snapshot{{Visible: true, Text: " something went wrong "}})
	text, err = page.ErrorBanner(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "something went wrong", text)
}

func TestLoadingVisible(t *testing.T) {
	prim := newFakePrimitives()
	page := newTestPage(prim)
	assert.False(t, page.LoadingVisible(context.Background()))

	prim.serve("typing-dots", []wait.Snapshot{{Visible: true}})
	assert.True(t, page.LoadingVisible(context.Background()))
}

func TestTextDirection(t *testing.T) {
	prim := newFakePrimitives()
	page := newTestPage(prim)

	dir, err := page.TextDirection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ltr", dir)

	prim.dir = "rtl"
	dir, err = page.TextDirection(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rtl", dir)
}

func TestIsVisibleAndEnabled(t *testing.T) {
	prim := newFakePrimitives()
	prim.serve("send-button", []wait.Snapshot{interactive()})

	page := newTestPage(prim)
	assert.True(t, page.IsVisibleAndEnabled(context.Background(), testTargets().SendControl))
	assert.False(t, page.IsVisibleAndEnabled(context.Background(), testTargets().ErrorBanner))
}

func TestCloseMarksPageRetired(t *testing.T) {
	page := newTestPage(newFakePrimitives())
	page.Close()
	assert.Equal(t, StateClosed, page.State())
}
