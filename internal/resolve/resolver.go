// File: internal/resolve/resolver.go

// Package resolve selects, among the candidate locators of a chain, the
// first that satisfies a wait condition. Fallback order is an explicit,
// testable contract: the primary is always exhausted before a fallback is
// polled, and only the final failure surfaces to the caller.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatprobe/internal/locator"
	"github.com/xkilldash9x/chatprobe/internal/wait"
)

// ErrNotFound is the sentinel matched by errors.Is when every strategy of a
// chain has been exhausted.
var ErrNotFound = errors.New("no locator strategy resolved the target")

// Attempt records one failed locator try for diagnostics.
type Attempt struct {
	Locator locator.Locator
	Err     error
}

// NotFoundError reports that primary and fallback lookups all timed out.
type NotFoundError struct {
	Target   string
	Kind     wait.Kind
	Attempts []Attempt
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q not found (%s)", e.Target, e.Kind)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "; tried %s: %v", a.Locator, a.Err)
	}
	return b.String()
}

// Unwrap exposes the sentinel and every attempt's failure, so callers can
// match both errors.Is(err, ErrNotFound) and the underlying timeouts.
func (e *NotFoundError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+1)
	errs = append(errs, ErrNotFound)
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}

// IsNotFound reports whether err is a chain-exhaustion failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Resolution is the outcome of a successful lookup: the locator that
// satisfied the condition and the snapshots of its matches at that moment.
type Resolution struct {
	Target       string
	Locator      locator.Locator
	Matches      []wait.Snapshot
	UsedFallback bool
}

// Last returns the final match in document order. Transcripts render
// append-only, so the last match is the most recent; callers must never
// assume the first match is current.
func (r *Resolution) Last() (wait.Snapshot, bool) {
	if len(r.Matches) == 0 {
		return wait.Snapshot{}, false
	}
	return r.Matches[len(r.Matches)-1], true
}

// First returns the first match in document order, for singleton targets
// such as the input field where the earliest match is the canonical one.
func (r *Resolution) First() (wait.Snapshot, bool) {
	if len(r.Matches) == 0 {
		return wait.Snapshot{}, false
	}
	return r.Matches[0], true
}

// Resolver runs chains against the wait engine.
type Resolver struct {
	engine *wait.Engine
	logger *zap.Logger
}

// New builds a resolver on top of a wait engine.
func New(engine *wait.Engine, logger *zap.Logger) *Resolver {
	return &Resolver{engine: engine, logger: logger.Named("resolver")}
}

// Resolve attempts each locator of the chain in order under the given
// condition kind until one succeeds. timeout bounds the whole lookup;
// zero means the engine default.
//
// Budgeting: with fallbacks present the primary receives half the budget
// (never less than two poll intervals, to avoid false negatives from
// premature polling); each fallback then runs inside the remaining
// wall-clock budget with the same floor. A lone locator gets the full
// budget.
func (r *Resolver) Resolve(ctx context.Context, chain locator.Chain, kind wait.Kind, timeout time.Duration) (*Resolution, error) {
	return r.run(ctx, chain, kind, timeout, func(loc locator.Locator) wait.Condition {
		return wait.Condition{Kind: kind, Target: loc}
	})
}

// TextMatch resolves the chain under a text-contains condition. Separate from
// Resolve because the condition carries the substring.
func (r *Resolver) TextMatch(ctx context.Context, chain locator.Chain, sub string, timeout time.Duration) (*Resolution, error) {
	return r.run(ctx, chain, wait.KindTextContains, timeout, func(loc locator.Locator) wait.Condition {
		return wait.TextContains(loc, sub)
	})
}

// run walks the chain: the primary first under its half-or-full budget, then
// each fallback inside the remaining wall clock.
func (r *Resolver) run(ctx context.Context, chain locator.Chain, kind wait.Kind, timeout time.Duration, cond func(locator.Locator) wait.Condition) (*Resolution, error) {
	if chain.IsEmpty() {
		return nil, &NotFoundError{Target: chain.Target, Kind: kind}
	}
	if timeout <= 0 {
		timeout = r.engine.DefaultTimeout()
	}

	floor := 2 * r.engine.PollInterval()
	deadline := time.Now().Add(timeout)
	fallbacks := chain.Fallbacks()
	attempts := make([]Attempt, 0, len(fallbacks)+1)

	primary := chain.Primary()
	primaryBudget := timeout
	if len(fallbacks) > 0 {
		primaryBudget = timeout / 2
	}
	if primaryBudget < floor {
		primaryBudget = floor
	}

	snaps, err := r.engine.Await(ctx, cond(primary), primaryBudget)
	if err == nil {
		return &Resolution{Target: chain.Target, Locator: primary, Matches: snaps}, nil
	}
	attempts = append(attempts, Attempt{Locator: primary, Err: err})

	if ctx.Err() == nil {
		for _, loc := range fallbacks {
			budget := time.Until(deadline)
			if budget < floor {
				budget = floor
			}
			snaps, err := r.engine.Await(ctx, cond(loc), budget)
			if err == nil {
				r.logger.Debug("Primary locator missed; fallback resolved the target.",
					zap.String("target", chain.Target),
					zap.String("locator", loc.String()))
				return &Resolution{Target: chain.Target, Locator: loc, Matches: snaps, UsedFallback: true}, nil
			}
			attempts = append(attempts, Attempt{Locator: loc, Err: err})
			if ctx.Err() != nil {
				break
			}
		}
	}

	nf := &NotFoundError{Target: chain.Target, Kind: kind, Attempts: attempts}
	r.logger.Debug("All locator strategies exhausted.", zap.Error(nf))
	return nil, nf
}
