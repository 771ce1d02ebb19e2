// Package wait polls a session until an element reaches a readiness state.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/locator"
	"github.com/v0xg/snapup/internal/session"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultInterval = 250 * time.Millisecond
)

// Readiness is the state an element must reach before it is returned
type Readiness int

const (
	Present   Readiness = iota // attached to the document
	Visible                    // present and displayed
	Clickable                  // visible and enabled
)

func (r Readiness) String() string {
	switch r {
	case Present:
		return "present"
	case Visible:
		return "visible"
	case Clickable:
		return "clickable"
	default:
		return fmt.Sprintf("readiness(%d)", int(r))
	}
}

// ErrTimeout is matched by every *TimeoutError.
var ErrTimeout = errors.New("wait: timed out")

// TimeoutError reports an element that never became ready.
type TimeoutError struct {
	Locator   locator.Locator
	Readiness Readiness
	Timeout   time.Duration
	Last      error // last lookup error, if any
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("element %s not %s within %s", e.Locator, e.Readiness, e.Timeout)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Fatal reports whether the timeout must end the whole run. A missing
// element (Present) is fatal; visibility and clickability timeouts are left
// to the caller.
func (e *TimeoutError) Fatal() bool { return e.Readiness == Present }

// Waiter polls a session for element readiness. A zero Interval means
// DefaultInterval and a nil Logger discards output.
type Waiter struct {
	Session  session.Session
	Interval time.Duration
	Logger   *zap.Logger
}

// New returns a Waiter with the default poll interval.
func New(sess session.Session, logger *zap.Logger) *Waiter {
	return &Waiter{Session: sess, Interval: DefaultInterval, Logger: logger}
}

func (w *Waiter) logger() *zap.Logger {
	if w.Logger == nil {
		return zap.NewNop()
	}
	return w.Logger
}

// For blocks until an element matching loc satisfies r, or timeout elapses.
// A non-positive timeout means DefaultTimeout.
func (w *Waiter) For(ctx context.Context, loc locator.Locator, r Readiness, timeout time.Duration) (session.Element, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last error
	for {
		el, err := w.check(ctx, loc, r)
		if err == nil && el != nil {
			return el, nil
		}
		if err != nil {
			last = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			te := &TimeoutError{Locator: loc, Readiness: r, Timeout: timeout, Last: last}
			w.logger().Error("wait: element not ready",
				zap.Stringer("locator", loc),
				zap.Stringer("readiness", r),
				zap.Duration("timeout", timeout))
			return nil, te
		case <-ticker.C:
		}
	}
}

// check returns (el, nil) when ready, (nil, nil) when not ready yet and
// (nil, err) for lookup errors worth remembering. Missing and stale
// elements are retried on the next tick.
func (w *Waiter) check(ctx context.Context, loc locator.Locator, r Readiness) (session.Element, error) {
	el, err := w.Session.FindElement(ctx, loc)
	if err != nil {
		return nil, err
	}
	if r == Present {
		return el, nil
	}

	shown, err := el.Displayed(ctx)
	if err != nil || !shown {
		return nil, err
	}
	if r == Visible {
		return el, nil
	}

	enabled, err := el.Enabled(ctx)
	if err != nil || !enabled {
		return nil, err
	}
	return el, nil
}
