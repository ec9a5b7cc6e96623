// File: internal/runner/suite_ui.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

func uiChecks() []Check {
	return []Check{
		{Suite: "ui", Name: "widget_becomes_interactive", Run: checkWidgetInteractive},
		{Suite: "ui", Name: "submit_clears_input", Run: checkSubmitClearsInput},
		{Suite: "ui", Name: "transcript_shows_sent_messages", Run: checkTranscriptShowsSent},
		{Suite: "ui", Name: "document_text_direction", Run: checkTextDirection},
		{Suite: "ui", Name: "loading_indicator_lifecycle", Run: checkLoadingIndicator},
		{Suite: "ui", Name: "controls_accessible", Run: checkControlsAccessible},
	}
}

// The page is already open when a check runs; this re-probes interactivity
// to catch widgets that load but then disable their input.
func checkWidgetInteractive(ctx context.Context, h *Harness) error {
	if !h.Page.IsWidgetReady(ctx) {
		return errors.New("chat input is not interactive")
	}
	return nil
}

func checkSubmitClearsInput(ctx context.Context, h *Harness) error {
	msg := h.Data.UIValidation.TestMessages[0]
	if err := h.Submit(ctx, msg); err != nil {
		return err
	}
	if err := h.Page.AwaitInputCleared(ctx, 0); err != nil {
		return fmt.Errorf("input not cleared after submitting %q: %w", msg, err)
	}
	return nil
}

func checkTranscriptShowsSent(ctx context.Context, h *Harness) error {
	for _, msg := range h.Data.UIValidation.TestMessages {
		if _, err := h.Ask(ctx, msg); err != nil {
			return err
		}
	}
	if err := h.Page.ScrollToBottom(ctx); err != nil {
		return err
	}
	sent, err := h.Page.AllUserMessages(ctx)
	if err != nil {
		return err
	}
	last := h.Data.UIValidation.TestMessages[len(h.Data.UIValidation.TestMessages)-1]
	for _, msg := range sent {
		if strings.Contains(msg, last) {
			return nil
		}
	}
	return fmt.Errorf("last sent message %q missing from transcript of %d user messages", last, len(sent))
}

func checkTextDirection(ctx context.Context, h *Harness) error {
	dir, err := h.Page.TextDirection(ctx)
	if err != nil {
		return err
	}
	if dir != "ltr" && dir != "rtl" {
		return fmt.Errorf("unexpected document text direction %q", dir)
	}
	return nil
}

// The typing indicator must be gone once the reply has rendered. Whether it
// appeared at all is observational: fast widgets legitimately skip it.
func checkLoadingIndicator(ctx context.Context, h *Harness) error {
	if err := h.Submit(ctx, h.Data.UIValidation.TestMessages[0]); err != nil {
		return err
	}
	if !h.Page.LoadingVisible(ctx) {
		h.logger.Debug("Loading indicator was not observed before the reply; widget may answer too fast to show one.")
	}
	if _, err := h.Page.AwaitReply(ctx, 0); err != nil {
		return err
	}
	if h.Page.LoadingVisible(ctx) {
		return errors.New("loading indicator still visible after the reply arrived")
	}
	return nil
}

func checkControlsAccessible(ctx context.Context, h *Harness) error {
	targets := h.Page.Targets()
	if !h.Page.IsVisibleAndEnabled(ctx, targets.Input) {
		return errors.New("chat input is not visible and enabled")
	}
	if !h.Page.IsVisibleAndEnabled(ctx, targets.SendControl) {
		return errors.New("send control is not visible and enabled")
	}
	return nil
}
