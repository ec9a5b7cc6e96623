// File: internal/wait/conditions.go
package wait

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/chatprobe/internal/locator"
)

// Kind names a supported wait condition.
type Kind string

const (
	// KindVisible: at least one match is rendered and visible.
	KindVisible Kind = "element-visible"
	// KindClickable: at least one match is visible and not disabled.
	KindClickable Kind = "element-clickable"
	// KindPresent: at least one match exists in the document, visible or not.
	KindPresent Kind = "element-present"
	// KindTextContains: at least one match's text contains a substring.
	KindTextContains Kind = "text-contains"
	// KindNotVisible: no match is visible (zero matches also satisfies).
	KindNotVisible Kind = "element-not-visible"
	// KindValueEmpty: at least one match exists and every match holds no
	// residual value.
	KindValueEmpty Kind = "value-empty"
)

// Snapshot is the observed state of one matched element at poll time.
// Transcript reads derive from fresh snapshots on every query; nothing is
// cached between polls.
type Snapshot struct {
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
	Text    string `json:"text"`
	Value   string `json:"value"`
}

// Condition is a stateless predicate over page state, parameterized by a
// locator. The engine re-evaluates it until true or timeout.
type Condition struct {
	Kind   Kind
	Target locator.Locator
	// Substring applies to KindTextContains only.
	Substring string
}

// Visible waits for the locator to match a visible element.
func Visible(l locator.Locator) Condition {
	return Condition{Kind: KindVisible, Target: l}
}

// Clickable waits for the locator to match a visible, enabled element.
func Clickable(l locator.Locator) Condition {
	return Condition{Kind: KindClickable, Target: l}
}

// Present waits for the locator to match any element, hidden or not.
func Present(l locator.Locator) Condition {
	return Condition{Kind: KindPresent, Target: l}
}

// TextContains waits for a match whose text contains sub.
func TextContains(l locator.Locator, sub string) Condition {
	return Condition{Kind: KindTextContains, Target: l, Substring: sub}
}

// ValueEmpty waits for the locator's matches to hold no residual value.
func ValueEmpty(l locator.Locator) Condition {
	return Condition{Kind: KindValueEmpty, Target: l}
}

// NotVisible waits for the locator to match nothing visible.
func NotVisible(l locator.Locator) Condition {
	return Condition{Kind: KindNotVisible, Target: l}
}

// Describe renders the condition for timeout diagnostics.
func (c Condition) Describe() string {
	if c.Kind == KindTextContains {
		return fmt.Sprintf("%s on %s (substring %q)", c.Kind, c.Target, c.Substring)
	}
	return fmt.Sprintf("%s on %s", c.Kind, c.Target)
}

// satisfied applies the condition's predicate to a set of fresh snapshots.
func (c Condition) satisfied(snaps []Snapshot) bool {
	switch c.Kind {
	case KindVisible:
		for _, s := range snaps {
			if s.Visible {
				return true
			}
		}
		return false
	case KindClickable:
		for _, s := range snaps {
			if s.Visible && s.Enabled {
				return true
			}
		}
		return false
	case KindPresent:
		return len(snaps) > 0
	case KindTextContains:
		for _, s := range snaps {
			if strings.Contains(s.Text, c.Substring) {
				return true
			}
		}
		return false
	case KindNotVisible:
		for _, s := range snaps {
			if s.Visible {
				return false
			}
		}
		return true
	case KindValueEmpty:
		if len(snaps) == 0 {
			return false
		}
		for _, s := range snaps {
			if strings.TrimSpace(s.Value) != "" {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// probeTemplate turns a locator's element-array expression into a read-only
// snapshot of each match. Visibility mirrors what a user can see: rendered
// box with non-zero area and not display:none / visibility:hidden /
// fully transparent.
const probeTemplate = `(() => {
	const els = %s;
	const visible = (el) => {
		if (!(el instanceof Element)) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		if (style.opacity !== '' && parseFloat(style.opacity) === 0) return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};
	return els.map((el) => ({
		visible: visible(el),
		enabled: !el.disabled,
		text: ((el.innerText !== undefined && el.innerText !== null) ? el.innerText : (el.textContent || '')).trim(),
		value: (el.value !== undefined && el.value !== null) ? String(el.value) : (el.isContentEditable ? (el.innerText || '') : '')
	}));
})()`

// probeExpr builds the JS probe for the condition's locator.
func (c Condition) probeExpr() string {
	return fmt.Sprintf(probeTemplate, c.Target.JSArrayExpr())
}
