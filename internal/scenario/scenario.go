// File: internal/scenario/scenario.go

// Package scenario loads the prompt/expectation data that drives the check
// suites. The data file is configuration: checks read prompts and bounds
// from it rather than hardcoding target-specific strings.
package scenario

import (
	"fmt"
	"os"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Expectation pairs a prompt with what an acceptable reply looks like.
// Zero-valued bounds are not enforced.
type Expectation struct {
	Prompt           string   `json:"prompt"`
	MinLength        int      `json:"min_length,omitempty"`
	MaxLength        int      `json:"max_length,omitempty"`
	ShouldNotContain []string `json:"should_not_contain,omitempty"`
	ExpectedBehavior string   `json:"expected_behavior,omitempty"`
}

// LanguageScenarios groups the per-language conversation scenarios.
type LanguageScenarios struct {
	ValidPublicService Expectation `json:"valid_public_service"`
}

// UIValidation carries the free-form messages the UI suite cycles through.
type UIValidation struct {
	TestMessages []string `json:"test_messages"`
}

// Data is the full scenario file.
type Data struct {
	English      LanguageScenarios      `json:"english"`
	Arabic       LanguageScenarios      `json:"arabic"`
	Security     map[string]Expectation `json:"security"`
	UIValidation UIValidation           `json:"ui_validation"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario data: %w", err)
	}
	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parsing scenario data %q: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("scenario data %q: %w", path, err)
	}
	return &d, nil
}

// Validate checks the file carries everything the suites consume. Checks
// themselves stay free of nil-guards because of this.
func (d *Data) Validate() error {
	var missing []string
	if strings.TrimSpace(d.English.ValidPublicService.Prompt) == "" {
		missing = append(missing, "english.valid_public_service.prompt")
	}
	if strings.TrimSpace(d.Arabic.ValidPublicService.Prompt) == "" {
		missing = append(missing, "arabic.valid_public_service.prompt")
	}
	if len(d.Security) == 0 {
		missing = append(missing, "security")
	}
	for name, exp := range d.Security {
		if strings.TrimSpace(exp.Prompt) == "" {
			missing = append(missing, "security."+name+".prompt")
		}
	}
	if len(d.UIValidation.TestMessages) == 0 {
		missing = append(missing, "ui_validation.test_messages")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SecurityNames returns the security scenario keys in a stable order so
// runs and reports are deterministic.
func (d *Data) SecurityNames() []string {
	names := make([]string, 0, len(d.Security))
	for name := range d.Security {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
