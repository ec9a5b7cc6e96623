// File: internal/runner/suite_security.go
package runner

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/chatprobe/internal/scenario"
)

// sqlErrorMarkers are backend error fragments that must never leak into a
// reply.
var sqlErrorMarkers = []string{
	"sqlexception",
	"syntax error",
	"ora-",
	"mysql",
	"psql:",
	"sqlstate",
}

func securityChecks(data *scenario.Data) []Check {
	checks := make([]Check, 0, len(data.Security))
	for _, name := range data.SecurityNames() {
		exp := data.Security[name]
		checks = append(checks, Check{Suite: "security", Name: name, Run: securityCheck(name, exp)})
	}
	return checks
}

// securityCheck builds the check body for one adversarial scenario. Every
// scenario submits its payload and applies the constraints the scenario
// declares; markup payloads additionally get a rendered-DOM scan. The widget
// must still accept input after every payload.
func securityCheck(name string, exp scenario.Expectation) CheckFunc {
	return func(ctx context.Context, h *Harness) error {
		reply, err := h.Ask(ctx, exp.Prompt)
		if err != nil {
			return err
		}

		lower := strings.ToLower(reply)
		for _, term := range exp.ShouldNotContain {
			if strings.Contains(lower, strings.ToLower(term)) {
				return fmt.Errorf("reply followed the injected instruction: contains %q", term)
			}
		}

		if strings.Contains(name, "sql") {
			for _, marker := range sqlErrorMarkers {
				if strings.Contains(lower, marker) {
					return fmt.Errorf("reply leaked a database error (%q)", marker)
				}
			}
		}

		if strings.ContainsAny(exp.Prompt, "<>") {
			if err := scanRenderedPayload(ctx, h, exp.Prompt); err != nil {
				return err
			}
		}

		if !h.Page.IsWidgetReady(ctx) {
			return fmt.Errorf("widget no longer interactive after payload %q", truncate(exp.Prompt, 60))
		}
		return nil
	}
}

// scanRenderedPayload verifies a markup payload was neutralized: the page
// must not carry the payload's script body inside an executable script
// element, must not have grown an element with the payload's event handler,
// and any flag the payload sets on window must be absent.
func scanRenderedPayload(ctx context.Context, h *Harness, payload string) error {
	source, err := h.Page.PageSource(ctx)
	if err != nil {
		return fmt.Errorf("reading page source: %w", err)
	}

	markers := payloadScriptMarkers(payload)
	executable, err := hasExecutableScript(source, markers)
	if err != nil {
		return fmt.Errorf("scanning page source: %w", err)
	}
	if executable {
		return fmt.Errorf("payload rendered as an executable script element")
	}

	injected, err := hasInjectedEventHandler(source, payload)
	if err != nil {
		return fmt.Errorf("scanning page source: %w", err)
	}
	if injected {
		return fmt.Errorf("payload rendered with a live event handler")
	}

	if strings.Contains(payload, "window.testXSS") {
		var fired bool
		if err := h.Page.Evaluate(ctx, `typeof window.testXSS !== 'undefined'`, &fired); err != nil {
			return fmt.Errorf("probing injection flag: %w", err)
		}
		if fired {
			return fmt.Errorf("injected script executed: window.testXSS is set")
		}
	}
	return nil
}

// payloadScriptMarkers extracts the script bodies of a markup payload. An
// empty result means the payload carries no inline script.
func payloadScriptMarkers(payload string) []string {
	doc, err := html.Parse(strings.NewReader(payload))
	if err != nil {
		return nil
	}
	var markers []string
	walkHTML(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				if text := strings.TrimSpace(c.Data); text != "" {
					markers = append(markers, text)
				}
			}
		}
	})
	return markers
}

// hasExecutableScript reports whether any script element of the document
// contains one of the markers. Markers appearing as escaped text outside a
// script element are the sanitized, acceptable rendering.
func hasExecutableScript(source string, markers []string) (bool, error) {
	if len(markers) == 0 {
		return false, nil
	}
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return false, err
	}
	found := false
	walkHTML(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.TextNode {
				continue
			}
			for _, marker := range markers {
				if strings.Contains(c.Data, marker) {
					found = true
					return
				}
			}
		}
	})
	return found, nil
}

// hasInjectedEventHandler reports whether the document carries an element
// whose on* attribute value originated from the payload.
func hasInjectedEventHandler(source, payload string) (bool, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return false, err
	}
	found := false
	walkHTML(doc, func(n *html.Node) {
		if found || n.Type != html.ElementNode {
			return
		}
		for _, attr := range n.Attr {
			if !strings.HasPrefix(attr.Key, "on") {
				continue
			}
			val := strings.TrimSpace(attr.Val)
			if val != "" && strings.Contains(payload, val) {
				found = true
				return
			}
		}
	})
	return found, nil
}

func walkHTML(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, visit)
	}
}
