// File: internal/runner/runner.go

// Package runner executes the check suites against the target chat UI.
// Every check gets a fresh browser session and an opened page; sessions are
// torn down unconditionally, and outcomes flow into the report recorder.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/chatprobe/internal/browser"
	"github.com/xkilldash9x/chatprobe/internal/chat"
	"github.com/xkilldash9x/chatprobe/internal/config"
	"github.com/xkilldash9x/chatprobe/internal/locator"
	"github.com/xkilldash9x/chatprobe/internal/report"
	"github.com/xkilldash9x/chatprobe/internal/scenario"
)

// sessionCloseGrace bounds teardown so a hung tab cannot block the run.
const sessionCloseGrace = 10 * time.Second

// PageFactory supplies the page primitives for one check and a teardown for
// the underlying session.
type PageFactory func(ctx context.Context) (chat.Primitives, func(context.Context) error, error)

// FromManager adapts the browser manager into a PageFactory.
func FromManager(m *browser.Manager) PageFactory {
	return func(ctx context.Context) (chat.Primitives, func(context.Context) error, error) {
		s, err := m.NewSession(ctx)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// CheckFunc is one check body. It runs against an already-opened page and
// returns nil on pass.
type CheckFunc func(ctx context.Context, h *Harness) error

// Check is a named, suite-scoped check.
type Check struct {
	Suite string
	Name  string
	Run   CheckFunc
}

// Harness is what a check sees: the open page, the scenario data, and the
// shared submission pacer.
type Harness struct {
	Page    *chat.Page
	Data    *scenario.Data
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Submit sends a message, paced by the shared rate limiter so concurrent
// checks do not hammer the target.
func (h *Harness) Submit(ctx context.Context, text string) error {
	if err := h.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pacing submission: %w", err)
	}
	return h.Page.SubmitMessage(ctx, text)
}

// Ask submits a prompt, waits for the reply and returns its text.
func (h *Harness) Ask(ctx context.Context, prompt string) (string, error) {
	if err := h.Submit(ctx, prompt); err != nil {
		return "", err
	}
	if _, err := h.Page.AwaitReply(ctx, 0); err != nil {
		return "", err
	}
	return h.Page.LatestAIMessage(ctx)
}

// Runner drives the configured suites.
type Runner struct {
	cfg      *config.Config
	factory  PageFactory
	data     *scenario.Data
	recorder *report.Recorder
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// New wires a runner. SubmitRate is messages per second across all checks;
// zero or negative disables pacing.
func New(cfg *config.Config, factory PageFactory, data *scenario.Data, recorder *report.Recorder, logger *zap.Logger) *Runner {
	limit := rate.Inf
	if cfg.Runner.SubmitRate > 0 {
		limit = rate.Limit(cfg.Runner.SubmitRate)
	}
	return &Runner{
		cfg:      cfg,
		factory:  factory,
		data:     data,
		recorder: recorder,
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger.Named("runner"),
	}
}

// Checks expands the configured suite names into the concrete check list.
func (r *Runner) Checks() ([]Check, error) {
	var checks []Check
	for _, suite := range r.cfg.Runner.Suites {
		switch suite {
		case "ui":
			checks = append(checks, uiChecks()...)
		case "responses":
			checks = append(checks, responseChecks()...)
		case "security":
			checks = append(checks, securityChecks(r.data)...)
		default:
			return nil, fmt.Errorf("unknown suite %q", suite)
		}
	}
	return checks, nil
}

// Run executes every configured check, bounded by the configured
// concurrency, then writes the JUnit report when one is configured. Check
// failures are recorded, not returned; Run errors only on setup problems.
func (r *Runner) Run(ctx context.Context) error {
	checks, err := r.Checks()
	if err != nil {
		return err
	}
	r.logger.Info("Starting run.",
		zap.String("target", r.cfg.Target.URL),
		zap.Int("checks", len(checks)),
		zap.Int("concurrency", r.cfg.Runner.Concurrency))

	g := new(errgroup.Group)
	limit := r.cfg.Runner.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, c := range checks {
		c := c
		g.Go(func() error {
			r.runCheck(ctx, c)
			return nil
		})
	}
	// Goroutines never return errors; failures land in the recorder.
	_ = g.Wait()

	passed, failed, skipped := r.recorder.Summary()
	r.logger.Info("Run finished.", zap.String("summary", report.Format(passed, failed, skipped)))

	if r.cfg.Runner.ReportFile != "" {
		if err := r.recorder.WriteJUnit(r.cfg.Runner.ReportFile); err != nil {
			return err
		}
	}
	return nil
}

// runCheck owns one check's full lifecycle: session, page, open, body,
// screenshot on failure, unconditional teardown, outcome record.
func (r *Runner) runCheck(ctx context.Context, c Check) {
	start := time.Now()
	logger := r.logger.With(zap.String("suite", c.Suite), zap.String("check", c.Name))
	logger.Debug("Check starting.")

	res := report.Result{Suite: c.Suite, Check: c.Name}

	prim, closeSession, err := r.factory(ctx)
	if err != nil {
		res.Status = report.StatusFailed
		res.Err = fmt.Errorf("starting browser session: %w", err)
		res.Duration = time.Since(start)
		r.recorder.Record(res)
		return
	}

	page := chat.NewPage(prim, locator.DefaultTargets(), r.cfg.Wait, r.cfg.Target.WidgetGrace, logger)
	defer func() {
		page.Close()
		// Teardown gets its own context so a cancelled run still
		// releases the session.
		closeCtx, cancel := context.WithTimeout(context.Background(), sessionCloseGrace)
		defer cancel()
		if closeErr := closeSession(closeCtx); closeErr != nil {
			logger.Warn("Session teardown failed.", zap.Error(closeErr))
		}
	}()

	err = page.Open(ctx, r.cfg.Target.URL)
	if err == nil {
		err = c.Run(ctx, &Harness{Page: page, Data: r.data, limiter: r.limiter, logger: logger})
	}

	res.Duration = time.Since(start)
	if err != nil {
		res.Status = report.StatusFailed
		res.Err = err
		if png, shotErr := page.CaptureScreenshot(ctx); shotErr == nil {
			if path, saveErr := r.recorder.SaveFailureScreenshot(c.Suite, c.Name, png); saveErr == nil {
				res.ScreenshotPath = path
			} else {
				logger.Warn("Could not save failure screenshot.", zap.Error(saveErr))
			}
		}
	} else {
		res.Status = report.StatusPassed
	}
	r.recorder.Record(res)
}
