package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/notify"
)

// ErrorPolicy decides what happens after a non-fatal action failure.
// Returning nil continues with the next action; returning an error aborts
// the batch with it.
type ErrorPolicy interface {
	Handle(ctx context.Context, err *ActionError) error
}

const (
	PolicyFailFast = "fail-fast"
	PolicyFailSoft = "fail-soft"
)

// FailFast aborts on the first failure.
type FailFast struct{}

func (FailFast) Handle(_ context.Context, err *ActionError) error { return err }

// FailSoft reports the failure and keeps going.
type FailSoft struct {
	Notifier notify.Notifier
	Logger   *zap.Logger
}

func (p FailSoft) Handle(ctx context.Context, err *ActionError) error {
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Warn("executor: action failed, continuing",
		zap.Int("index", err.Index),
		zap.String("action", string(err.Action.Name)),
		zap.Error(err.Err))

	if p.Notifier != nil {
		if _, nerr := p.Notifier.Notify(ctx, notify.Message{Text: err.Error()}); nerr != nil {
			log.Warn("executor: failure report not delivered", zap.Error(nerr))
		}
	}
	return nil
}

// PolicyFor maps a configured policy name to an ErrorPolicy.
func PolicyFor(name string, n notify.Notifier, log *zap.Logger) (ErrorPolicy, error) {
	switch name {
	case "", PolicyFailFast:
		return FailFast{}, nil
	case PolicyFailSoft:
		return FailSoft{Notifier: n, Logger: log}, nil
	default:
		return nil, fmt.Errorf("unknown error policy %q", name)
	}
}
