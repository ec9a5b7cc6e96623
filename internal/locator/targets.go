// File: internal/locator/targets.go
package locator

// Targets groups the locator chains for the logical elements of a chat
// widget. Expressions here are configuration, not protocol: adapt them per
// target UI without touching the resolver or wait engine.
type Targets struct {
	Input            Chain
	SendControl      Chain
	UserMessage      Chain
	AIMessage        Chain
	LoadingIndicator Chain
	ErrorBanner      Chain
}

// DefaultTargets returns locator chains covering the markup conventions of
// common chatbot widgets. Primaries prefer cheap CSS lookups; fallbacks use
// broader XPath class and attribute heuristics.
func DefaultTargets() Targets {
	return Targets{
		Input: NewChain("chat input",
			ByCSS("chat input", `input[type='text'], textarea, [contenteditable='true']`),
			ByXPath("chat input (broad)",
				`//input[@type='text'] | //textarea | //*[@contenteditable='true'] | //*[contains(@class, 'input')] | //*[contains(@id, 'input')]`),
		),
		SendControl: NewChain("send control",
			ByXPath("send control",
				`//button[@type='submit'] | //*[contains(@class, 'send')] | //*[contains(@aria-label, 'send') or contains(@aria-label, 'Send')]`),
		),
		UserMessage: NewChain("user message",
			ByXPath("user message",
				`//*[contains(@class, 'user-message')] | //*[contains(@class, 'message') and contains(@class, 'user')]`),
		),
		AIMessage: NewChain("ai message",
			ByXPath("ai message",
				`//*[contains(@class, 'ai-message')] | //*[contains(@class, 'bot-message')] | //*[contains(@class, 'assistant-message')] | //*[contains(@class, 'response')]`),
		),
		LoadingIndicator: NewChain("loading indicator",
			ByXPath("loading indicator",
				`//*[contains(@class, 'loading')] | //*[contains(@class, 'typing')] | //*[contains(@class, 'spinner')] | //*[contains(@aria-label, 'loading')]`),
		),
		ErrorBanner: NewChain("error banner",
			ByXPath("error banner",
				`//*[contains(@class, 'error')] | //*[contains(@class, 'fallback')]`),
		),
	}
}
