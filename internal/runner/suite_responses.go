// File: internal/runner/suite_responses.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xkilldash9x/chatprobe/internal/scenario"
)

func responseChecks() []Check {
	return []Check{
		{Suite: "responses", Name: "english_public_service", Run: checkEnglishPublicService},
		{Suite: "responses", Name: "arabic_public_service", Run: checkArabicPublicService},
		{Suite: "responses", Name: "graceful_fallback", Run: checkGracefulFallback},
		{Suite: "responses", Name: "reply_contains_no_raw_html", Run: replyQuality(verifyNoRawHTML)},
		{Suite: "responses", Name: "reply_sentences_complete", Run: replyQuality(verifySentencesComplete)},
		{Suite: "responses", Name: "reply_formatting_clean", Run: replyQuality(verifyFormattingClean)},
		{Suite: "responses", Name: "reply_not_repetitive", Run: replyQuality(verifyNotRepetitive)},
	}
}

func checkEnglishPublicService(ctx context.Context, h *Harness) error {
	exp := h.Data.English.ValidPublicService
	reply, err := h.Ask(ctx, exp.Prompt)
	if err != nil {
		return err
	}
	return verifyExpectation(reply, exp)
}

func checkArabicPublicService(ctx context.Context, h *Harness) error {
	exp := h.Data.Arabic.ValidPublicService
	reply, err := h.Ask(ctx, exp.Prompt)
	if err != nil {
		return err
	}
	if err := verifyExpectation(reply, exp); err != nil {
		return err
	}
	if !containsArabic(reply) {
		return fmt.Errorf("reply to an arabic prompt carries no arabic text: %q", truncate(reply, 80))
	}
	return nil
}

// An unintelligible prompt must still produce a reply, not an error state.
func checkGracefulFallback(ctx context.Context, h *Harness) error {
	const gibberish = "xq zzkw fjor plmn 7301"
	reply, err := h.Ask(ctx, gibberish)
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) == "" {
		return errors.New("no reply to unintelligible input")
	}
	banner, err := h.Page.ErrorBanner(ctx)
	if err != nil {
		return err
	}
	if banner != "" {
		return fmt.Errorf("error banner shown for unintelligible input: %q", banner)
	}
	return nil
}

// replyQuality runs one rendering-quality verifier against the reply to the
// standard English prompt.
func replyQuality(verify func(reply string) error) CheckFunc {
	return func(ctx context.Context, h *Harness) error {
		reply, err := h.Ask(ctx, h.Data.English.ValidPublicService.Prompt)
		if err != nil {
			return err
		}
		if strings.TrimSpace(reply) == "" {
			return errors.New("empty reply")
		}
		return verify(reply)
	}
}

// verifyExpectation applies the scenario's reply constraints. Length bounds
// are counted in runes, and zero-valued bounds are skipped.
func verifyExpectation(reply string, exp scenario.Expectation) error {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" {
		return errors.New("empty reply")
	}
	n := utf8.RuneCountInString(trimmed)
	if exp.MinLength > 0 && n < exp.MinLength {
		return fmt.Errorf("reply too short: %d runes, want at least %d: %q", n, exp.MinLength, truncate(trimmed, 80))
	}
	if exp.MaxLength > 0 && n > exp.MaxLength {
		return fmt.Errorf("reply too long: %d runes, want at most %d", n, exp.MaxLength)
	}
	lower := strings.ToLower(trimmed)
	for _, term := range exp.ShouldNotContain {
		if strings.Contains(lower, strings.ToLower(term)) {
			return fmt.Errorf("reply contains forbidden term %q", term)
		}
	}
	return nil
}

var htmlTagPattern = regexp.MustCompile(`(?i)</?[a-z][a-z0-9-]*(\s[^>]*)?>`)

// verifyNoRawHTML rejects replies whose visible text carries unrendered
// markup, a sign the widget is leaking raw model output.
func verifyNoRawHTML(reply string) error {
	if tag := htmlTagPattern.FindString(reply); tag != "" {
		return fmt.Errorf("reply text contains raw markup %q", tag)
	}
	return nil
}

// sentenceTerminators covers Latin and Arabic punctuation.
const sentenceTerminators = ".!?؟"

// verifySentencesComplete rejects replies that trail off mid-thought.
func verifySentencesComplete(reply string) error {
	trimmed := strings.TrimSpace(reply)
	if strings.HasSuffix(trimmed, "...") || strings.HasSuffix(trimmed, "…") {
		return fmt.Errorf("reply trails off: %q", truncate(trimmed, 80))
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	if !strings.ContainsRune(sentenceTerminators, last) {
		return fmt.Errorf("reply does not end a sentence (last rune %q): %q", last, truncate(trimmed, 80))
	}
	return nil
}

// templateArtifacts are fragments of an unrendered templating or
// serialization layer.
var templateArtifacts = []string{"{{", "}}", "<%", "%>", "[object Object]", "NaN,"}

// verifyFormattingClean rejects control characters and template artifacts in
// the rendered reply.
func verifyFormattingClean(reply string) error {
	for _, r := range reply {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return fmt.Errorf("reply contains control character %U", r)
		}
	}
	for _, artifact := range templateArtifacts {
		if strings.Contains(reply, artifact) {
			return fmt.Errorf("reply contains template artifact %q", artifact)
		}
	}
	return nil
}

// maxSentenceRepeats bounds how often the same sentence may recur before the
// reply is flagged as looping.
const maxSentenceRepeats = 2

// verifyNotRepetitive is a looping-output heuristic: the same non-trivial
// sentence appearing more than maxSentenceRepeats times fails the reply.
func verifyNotRepetitive(reply string) error {
	counts := map[string]int{}
	for _, raw := range strings.FieldsFunc(reply, func(r rune) bool {
		return strings.ContainsRune(sentenceTerminators, r)
	}) {
		sentence := strings.ToLower(strings.Join(strings.Fields(raw), " "))
		if len(strings.Fields(sentence)) < 3 {
			continue
		}
		counts[sentence]++
		if counts[sentence] > maxSentenceRepeats {
			return fmt.Errorf("reply repeats %q %d times", truncate(sentence, 60), counts[sentence])
		}
	}
	return nil
}

func containsArabic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Arabic, r) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
