// File: internal/locator/locator_test.go
package locator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainOrdering(t *testing.T) {
	primary := ByCSS("chat input", "textarea")
	fallback := ByXPath("chat input (broad)", "//textarea")

	chain := NewChain("chat input", primary, fallback)

	assert.Equal(t, primary, chain.Primary())
	require.Len(t, chain.Fallbacks(), 1)
	assert.Equal(t, fallback, chain.Fallbacks()[0])
	assert.False(t, chain.IsEmpty())
}

func TestChainSkipsZeroLocators(t *testing.T) {
	chain := NewChain("send control", Locator{}, ByCSS("send control", "button.send"))
	require.Len(t, chain.Locators, 1)
	assert.Equal(t, "button.send", chain.Primary().Expression)

	empty := NewChain("nothing")
	assert.True(t, empty.IsEmpty())
	assert.True(t, empty.Primary().IsZero())
	assert.Nil(t, empty.Fallbacks())
}

func TestJSArrayExprCSS(t *testing.T) {
	l := ByCSS("chat input", `input[type='text']`)
	expr := l.JSArrayExpr()
	assert.Contains(t, expr, "querySelectorAll")
	assert.Contains(t, expr, `"input[type='text']"`)
}

func TestJSArrayExprXPath(t *testing.T) {
	l := ByXPath("ai message", `//*[contains(@class, 'ai-message')]`)
	expr := l.JSArrayExpr()
	assert.Contains(t, expr, "document.evaluate")
	assert.Contains(t, expr, "ORDERED_NODE_SNAPSHOT_TYPE")
}

func TestJSArrayExprEscapesQuotes(t *testing.T) {
	// Expressions with embedded quotes must not break out of the JS string.
	l := ByCSS("weird", `[data-x="a'b"]`)
	expr := l.JSArrayExpr()
	assert.NotContains(t, strings.ReplaceAll(expr, `\"`, ""), `"a'b"`,
		"embedded double quotes must be escaped inside the JS literal")
}

func TestDefaultTargetsHaveFallbackForInput(t *testing.T) {
	targets := DefaultTargets()

	require.False(t, targets.Input.IsEmpty())
	assert.Equal(t, CSS, targets.Input.Primary().Strategy)
	require.NotEmpty(t, targets.Input.Fallbacks(), "input must keep a fallback strategy")
	assert.Equal(t, XPath, targets.Input.Fallbacks()[0].Strategy)

	for _, chain := range []Chain{
		targets.SendControl, targets.UserMessage, targets.AIMessage,
		targets.LoadingIndicator, targets.ErrorBanner,
	} {
		assert.False(t, chain.IsEmpty(), "chain %q must carry at least one locator", chain.Target)
	}
}
