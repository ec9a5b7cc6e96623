// File: internal/locator/locator.go

// Package locator models element lookup strategies for the chat UI under
// test. A Locator pairs a strategy with a query expression; a Chain orders
// alternative locators for one logical target so callers can degrade
// gracefully when the target markup is not what the primary expects.
package locator

import (
	"fmt"
	"strconv"
)

// Strategy identifies the query mechanism a locator uses.
type Strategy string

const (
	// CSS queries with document.querySelectorAll semantics.
	CSS Strategy = "css"
	// XPath queries with document.evaluate semantics.
	XPath Strategy = "xpath"
)

// Locator identifies UI elements by strategy and expression. Immutable once
// constructed.
type Locator struct {
	Strategy   Strategy
	Expression string
	// Name is the human label used in errors and logs, e.g. "chat input".
	Name string
}

// ByCSS builds a CSS locator.
func ByCSS(name, expression string) Locator {
	return Locator{Strategy: CSS, Expression: expression, Name: name}
}

// ByXPath builds an XPath locator.
func ByXPath(name, expression string) Locator {
	return Locator{Strategy: XPath, Expression: expression, Name: name}
}

// IsZero reports whether the locator is unset.
func (l Locator) IsZero() bool {
	return l.Expression == ""
}

// String renders the locator for diagnostics.
func (l Locator) String() string {
	return fmt.Sprintf("%s [%s: %s]", l.Name, l.Strategy, l.Expression)
}

// JSArrayExpr returns a JavaScript expression that evaluates to an array of
// the elements matched by this locator, in document order. The expression is
// self-contained and side-effect free.
func (l Locator) JSArrayExpr() string {
	quoted := strconv.Quote(l.Expression)
	switch l.Strategy {
	case XPath:
		return fmt.Sprintf(`(() => {
	const r = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < r.snapshotLength; i++) out.push(r.snapshotItem(i));
	return out;
})()`, quoted)
	default:
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, quoted)
	}
}

// Chain is an ordered list of alternative locators for one logical target.
// The first entry is the primary; the rest are fallbacks tried in order.
type Chain struct {
	// Target names the logical UI element, e.g. "chat input".
	Target   string
	Locators []Locator
}

// NewChain builds a chain. At least one locator is expected; zero-value
// locators are skipped.
func NewChain(target string, locs ...Locator) Chain {
	kept := make([]Locator, 0, len(locs))
	for _, l := range locs {
		if !l.IsZero() {
			kept = append(kept, l)
		}
	}
	return Chain{Target: target, Locators: kept}
}

// Primary returns the first locator of the chain, or a zero Locator when the
// chain is empty.
func (c Chain) Primary() Locator {
	if len(c.Locators) == 0 {
		return Locator{}
	}
	return c.Locators[0]
}

// Fallbacks returns the locators after the primary.
func (c Chain) Fallbacks() []Locator {
	if len(c.Locators) <= 1 {
		return nil
	}
	return c.Locators[1:]
}

// IsEmpty reports whether the chain holds no usable locator.
func (c Chain) IsEmpty() bool {
	return len(c.Locators) == 0
}

// String renders the chain for diagnostics.
func (c Chain) String() string {
	if c.IsEmpty() {
		return c.Target + " (no locators)"
	}
	s := c.Target + ": " + c.Locators[0].String()
	for _, l := range c.Locators[1:] {
		s += " | " + l.String()
	}
	return s
}
