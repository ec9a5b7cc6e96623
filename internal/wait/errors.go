// File: internal/wait/errors.go
package wait

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimedOut is the sentinel matched by errors.Is when a condition was not
// satisfied within its budget.
var ErrTimedOut = errors.New("condition not satisfied within budget")

// TimedOutError reports an exhausted wait, carrying enough context to
// diagnose the failure without inspecting engine internals.
type TimedOutError struct {
	// Condition is the human description of the unmet condition, including
	// the locator polled.
	Condition string
	Timeout   time.Duration
	Attempts  int
	// LastErr holds the most recent evaluation error, if polling itself was
	// failing rather than the predicate staying false.
	LastErr error
}

func (e *TimedOutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("timed out after %s (%d attempts) waiting for %s; last evaluation error: %v",
			e.Timeout, e.Attempts, e.Condition, e.LastErr)
	}
	return fmt.Sprintf("timed out after %s (%d attempts) waiting for %s", e.Timeout, e.Attempts, e.Condition)
}

func (e *TimedOutError) Unwrap() error { return ErrTimedOut }
