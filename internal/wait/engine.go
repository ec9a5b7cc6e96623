// File: internal/wait/engine.go

// Package wait implements the condition-wait engine: it polls predicates
// against live page state at a bounded interval until they hold or a timeout
// elapses. Every wait is bounded; cancellation is timeout-only.
package wait

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/config"
)

// Evaluator abstracts read-only JavaScript evaluation against the live page.
// The browser session implements it; tests substitute fakes.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, out any) error
}

// Engine polls conditions. It holds no per-wait state; a single engine is
// shared by all lookups of one session.
type Engine struct {
	ev             Evaluator
	logger         *zap.Logger
	pollInterval   time.Duration
	defaultTimeout time.Duration
}

// NewEngine builds an engine from the wait configuration.
func NewEngine(ev Evaluator, cfg config.WaitConfig, logger *zap.Logger) *Engine {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	def := cfg.DefaultTimeout
	if def <= 0 {
		def = 10 * time.Second
	}
	return &Engine{
		ev:             ev,
		logger:         logger.Named("wait"),
		pollInterval:   poll,
		defaultTimeout: def,
	}
}

// PollInterval reports the engine's polling cadence.
func (e *Engine) PollInterval() time.Duration { return e.pollInterval }

// DefaultTimeout reports the budget applied when callers pass none.
func (e *Engine) DefaultTimeout() time.Duration { return e.defaultTimeout }

// Await evaluates the condition immediately, then at the poll interval, until
// it holds or the budget runs out. On success it returns the snapshots of
// every current match (possibly empty for KindNotVisible). On exhaustion it
// returns a *TimedOutError naming the condition and locator.
//
// Evaluation errors do not abort the wait: a page mid-render or mid-navigation
// can fail a probe transiently, and treating that as fatal would be a false
// negative. The last evaluation error is carried on the timeout for
// diagnostics.
func (e *Engine) Await(ctx context.Context, cond Condition, timeout time.Duration) ([]Snapshot, error) {
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	expr := cond.probeExpr()
	attempts := 0
	var lastErr error

	for {
		attempts++
		var snaps []Snapshot
		if err := e.ev.Evaluate(waitCtx, expr, &snaps); err != nil {
			if waitCtx.Err() != nil {
				break
			}
			lastErr = err
			e.logger.Debug("Condition probe failed; retrying.",
				zap.String("condition", cond.Describe()),
				zap.Error(err))
		} else {
			lastErr = nil
			if cond.satisfied(snaps) {
				e.logger.Debug("Condition satisfied.",
					zap.String("condition", cond.Describe()),
					zap.Int("attempts", attempts),
					zap.Int("matches", len(snaps)))
				return snaps, nil
			}
		}

		select {
		case <-waitCtx.Done():
		case <-time.After(e.pollInterval):
			continue
		}
		break
	}

	err := &TimedOutError{
		Condition: cond.Describe(),
		Timeout:   timeout,
		Attempts:  attempts,
		LastErr:   lastErr,
	}
	e.logger.Debug("Condition wait exhausted.", zap.Error(err))
	return nil, err
}

// Peek evaluates the condition's probe exactly once, without waiting, and
// returns the raw matches regardless of whether the condition holds. Used
// for transcript reads, where the live DOM is the source of truth and an
// empty result is a valid answer.
func (e *Engine) Peek(ctx context.Context, cond Condition) ([]Snapshot, error) {
	var snaps []Snapshot
	if err := e.ev.Evaluate(ctx, cond.probeExpr(), &snaps); err != nil {
		return nil, err
	}
	return snaps, nil
}

// Holds is the non-throwing form of Await: true when the condition becomes
// satisfied within the budget, false on timeout. Used for liveness probes
// where absence is an answer, not an error.
func (e *Engine) Holds(ctx context.Context, cond Condition, timeout time.Duration) bool {
	_, err := e.Await(ctx, cond, timeout)
	return err == nil
}
