// File: internal/report/report.go

// Package report collects check outcomes. The runner records one Result per
// check at teardown; registered observers see each result as it lands, and
// the collected set can be rendered as a JUnit XML file for CI ingestion.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Status is the terminal state of one check.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the outcome of a single check.
type Result struct {
	Suite          string
	Check          string
	Status         Status
	Err            error
	Duration       time.Duration
	ScreenshotPath string
}

// Observer receives each result at teardown time, after the check's browser
// session is gone. Observers must not block.
type Observer func(Result)

// Recorder accumulates results from concurrent checks.
type Recorder struct {
	mu            sync.Mutex
	logger        *zap.Logger
	screenshotDir string
	results       []Result
	observers     []Observer
}

// NewRecorder builds a recorder. screenshotDir may be empty to disable
// failure screenshots.
func NewRecorder(screenshotDir string, logger *zap.Logger) *Recorder {
	return &Recorder{
		logger:        logger.Named("report"),
		screenshotDir: screenshotDir,
	}
}

// Observe registers a callback invoked for every subsequently recorded
// result.
func (r *Recorder) Observe(fn Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

// Record stores a result and notifies observers.
func (r *Recorder) Record(res Result) {
	r.mu.Lock()
	r.results = append(r.results, res)
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.Unlock()

	switch res.Status {
	case StatusFailed:
		r.logger.Warn("Check failed.",
			zap.String("suite", res.Suite),
			zap.String("check", res.Check),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err))
	default:
		r.logger.Info("Check finished.",
			zap.String("suite", res.Suite),
			zap.String("check", res.Check),
			zap.String("status", string(res.Status)),
			zap.Duration("duration", res.Duration))
	}

	for _, fn := range observers {
		fn(res)
	}
}

// Results returns a copy of everything recorded so far, ordered by suite
// then check name for deterministic reports.
func (r *Recorder) Results() []Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Result, len(r.results))
	copy(out, r.results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Suite != out[j].Suite {
			return out[i].Suite < out[j].Suite
		}
		return out[i].Check < out[j].Check
	})
	return out
}

// Summary tallies the recorded results.
func (r *Recorder) Summary() (passed, failed, skipped int) {
	for _, res := range r.Results() {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SaveFailureScreenshot writes a PNG captured from a failing check and
// returns its path. A disabled or failing save is reported but must never
// mask the original check failure.
func (r *Recorder) SaveFailureScreenshot(suite, check string, png []byte) (string, error) {
	if r.screenshotDir == "" || len(png) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(r.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot dir: %w", err)
	}
	name := fmt.Sprintf("failure_%s_%s_%s.png",
		unsafeChars.ReplaceAllString(suite, "_"),
		unsafeChars.ReplaceAllString(check, "_"),
		time.Now().Format("20060102_150405"))
	path := filepath.Join(r.screenshotDir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	r.logger.Info("Saved failure screenshot.", zap.String("path", path))
	return path, nil
}

// WriteJUnit renders the recorded results as a JUnit XML file, one
// testsuite element per suite.
func (r *Recorder) WriteJUnit(path string) error {
	results := r.Results()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")

	var current *etree.Element
	var tests, failures, skips int
	var elapsed time.Duration
	flush := func() {
		if current == nil {
			return
		}
		current.CreateAttr("tests", fmt.Sprint(tests))
		current.CreateAttr("failures", fmt.Sprint(failures))
		current.CreateAttr("skipped", fmt.Sprint(skips))
		current.CreateAttr("time", fmt.Sprintf("%.3f", elapsed.Seconds()))
	}

	for _, res := range results {
		if current == nil || current.SelectAttrValue("name", "") != res.Suite {
			flush()
			current = root.CreateElement("testsuite")
			current.CreateAttr("name", res.Suite)
			tests, failures, skips, elapsed = 0, 0, 0, 0
		}
		tests++
		elapsed += res.Duration

		tc := current.CreateElement("testcase")
		tc.CreateAttr("classname", res.Suite)
		tc.CreateAttr("name", res.Check)
		tc.CreateAttr("time", fmt.Sprintf("%.3f", res.Duration.Seconds()))

		switch res.Status {
		case StatusFailed:
			failures++
			failure := tc.CreateElement("failure")
			msg := "check failed"
			if res.Err != nil {
				msg = res.Err.Error()
			}
			failure.CreateAttr("message", msg)
			if res.ScreenshotPath != "" {
				failure.SetText("screenshot: " + res.ScreenshotPath)
			}
		case StatusSkipped:
			skips++
			tc.CreateElement("skipped")
		}
	}
	flush()

	if dir := filepath.Dir(path); dir != "." && dir != string(filepath.Separator) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	doc.Indent(2)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("writing junit report: %w", err)
	}
	return nil
}

// Format renders a one-line human summary.
func Format(passed, failed, skipped int) string {
	parts := []string{fmt.Sprintf("%d passed", passed)}
	if failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", failed))
	}
	if skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", skipped))
	}
	return strings.Join(parts, ", ")
}
