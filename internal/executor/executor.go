package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/locator"
	"github.com/v0xg/snapup/internal/session"
	"github.com/v0xg/snapup/internal/wait"
)

// Resilience selects how Type and Click react to a misbehaving page
type Resilience int

const (
	// Lenient waits for visibility/clickability, retries stale elements,
	// falls back to script injection and swallows other failures.
	Lenient Resilience = iota
	// Strict waits for presence only and lets every failure propagate.
	Strict
)

func (r Resilience) String() string {
	if r == Strict {
		return "strict"
	}
	return "lenient"
}

// ParseResilience maps a configured name to a Resilience. Empty means Lenient.
func ParseResilience(s string) (Resilience, error) {
	switch s {
	case "", "lenient":
		return Lenient, nil
	case "strict":
		return Strict, nil
	default:
		return Lenient, fmt.Errorf("unknown resilience %q (want lenient or strict)", s)
	}
}

const (
	setValueJS    = `function(v) { this.value = v }`
	scriptClickJS = `function() { this.click() }`
)

// Executor performs single interaction primitives against a session
type Executor struct {
	sess       session.Session
	waiter     *wait.Waiter
	log        *zap.Logger
	timeout    time.Duration
	minDelay   time.Duration
	maxDelay   time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	resilience Resilience
	attempts   int
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithJitter sets the bounds of the random delay taken before every
// primitive. Default: 1s to 3s. Zero bounds disable the delay.
func WithJitter(min, max time.Duration) Option {
	return func(e *Executor) {
		if max < min {
			max = min
		}
		e.minDelay, e.maxDelay = min, max
	}
}

// WithSleep replaces the function used to wait out the jitter delay.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithTimeout sets the readiness timeout. Default: wait.DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithResilience selects lenient or strict primitives. Default: Lenient.
func WithResilience(r Resilience) Option {
	return func(e *Executor) { e.resilience = r }
}

// WithWaiter replaces the readiness waiter.
func WithWaiter(w *wait.Waiter) Option {
	return func(e *Executor) { e.waiter = w }
}

// WithRetries sets the total number of attempts for stale elements. Default: 3.
func WithRetries(n int) Option {
	return func(e *Executor) { e.attempts = n }
}

// New creates an Executor bound to sess.
func New(sess session.Session, opts ...Option) *Executor {
	e := &Executor{
		sess:     sess,
		log:      zap.NewNop(),
		timeout:  wait.DefaultTimeout,
		minDelay: time.Second,
		maxDelay: 3 * time.Second,
		sleep:    sleepCtx,
		attempts: 3,
	}
	for _, o := range opts {
		o(e)
	}
	if e.waiter == nil {
		e.waiter = wait.New(sess, e.log)
	}
	return e
}

// Type writes text into the element at loc.
func (e *Executor) Type(ctx context.Context, loc locator.Locator, text string) error {
	if e.resilience == Strict {
		el, err := e.prepare(ctx, loc, wait.Present)
		if err != nil {
			return err
		}
		return el.SendKeys(ctx, text)
	}
	return retryOnStale(e.log, e.attempts, string(Input), func() error {
		return e.typeOnce(ctx, loc, text)
	})
}

func (e *Executor) typeOnce(ctx context.Context, loc locator.Locator, text string) error {
	// Readiness failures are not guarded here; they reach the dispatcher.
	el, err := e.prepare(ctx, loc, wait.Visible)
	if err != nil {
		return err
	}

	err = el.SendKeys(ctx, text)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrStaleElement), ctx.Err() != nil:
		return err
	case errors.Is(err, session.ErrNotInteractable):
		e.log.Error("executor: element not interactable during input, setting value by script",
			zap.Stringer("locator", loc), zap.Error(err))
		_, err = el.Eval(ctx, setValueJS, text)
		return err
	default:
		e.log.Error("executor: unexpected error during input", zap.Stringer("locator", loc), zap.Error(err))
		return nil
	}
}

// Click clicks the element at loc.
func (e *Executor) Click(ctx context.Context, loc locator.Locator) error {
	if e.resilience == Strict {
		el, err := e.prepare(ctx, loc, wait.Present)
		if err != nil {
			return err
		}
		return el.Click(ctx)
	}
	return retryOnStale(e.log, e.attempts, string(Click), func() error {
		return e.clickOnce(ctx, loc)
	})
}

func (e *Executor) clickOnce(ctx context.Context, loc locator.Locator) error {
	if err := e.jitter(ctx); err != nil {
		return err
	}

	el, err := e.waiter.For(ctx, loc, wait.Clickable, e.timeout)
	if err == nil {
		err = el.Click(ctx)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrStaleElement), ctx.Err() != nil:
		return err
	case errors.Is(err, session.ErrNotInteractable) && el != nil:
		e.log.Error("executor: element not interactable, clicking by script",
			zap.Stringer("locator", loc), zap.Error(err))
		_, err = el.Eval(ctx, scriptClickJS)
		return err
	default:
		e.log.Error("executor: unexpected error during click", zap.Stringer("locator", loc), zap.Error(err))
		return nil
	}
}

// PointerDown presses and holds the primary button over the element.
func (e *Executor) PointerDown(ctx context.Context, loc locator.Locator) error {
	el, err := e.prepare(ctx, loc, wait.Present)
	if err != nil {
		return err
	}
	return el.PointerDown(ctx)
}

// PointerUp releases the primary button over the element.
func (e *Executor) PointerUp(ctx context.Context, loc locator.Locator) error {
	el, err := e.prepare(ctx, loc, wait.Present)
	if err != nil {
		return err
	}
	return el.PointerUp(ctx)
}

func (e *Executor) prepare(ctx context.Context, loc locator.Locator, r wait.Readiness) (session.Element, error) {
	if err := e.jitter(ctx); err != nil {
		return nil, err
	}
	return e.waiter.For(ctx, loc, r, e.timeout)
}

func (e *Executor) jitter(ctx context.Context) error {
	d := e.minDelay
	if spread := e.maxDelay - e.minDelay; spread > 0 {
		d += time.Duration(rand.Int63n(int64(spread) + 1))
	}
	if d <= 0 {
		return ctx.Err()
	}
	return e.sleep(ctx, d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// retryOnStale runs fn up to attempts times while it fails with a stale
// element. The last attempt's result is returned as is.
func retryOnStale(log *zap.Logger, attempts int, op string, fn func() error) error {
	for i := 1; i < attempts; i++ {
		err := fn()
		if !errors.Is(err, session.ErrStaleElement) {
			return err
		}
		log.Warn("executor: stale element, retrying", zap.String("op", op), zap.Int("attempt", i))
	}
	return fn()
}
