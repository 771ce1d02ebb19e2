package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/session"
)

// Dispatcher runs a batch of actions in order against one session.
type Dispatcher struct {
	sess   session.Session
	exec   *Executor
	policy ErrorPolicy
	log    *zap.Logger
	after  func(ctx context.Context, index int, a Action)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPolicy sets the policy for non-fatal failures. Default: FailFast.
func WithPolicy(p ErrorPolicy) DispatcherOption {
	return func(d *Dispatcher) { d.policy = p }
}

// WithDispatchLogger sets a custom logger.
func WithDispatchLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithAfterAction registers a hook called after every successful action.
func WithAfterAction(fn func(ctx context.Context, index int, a Action)) DispatcherOption {
	return func(d *Dispatcher) { d.after = fn }
}

// NewDispatcher creates a Dispatcher. A nil exec gets an Executor with
// default settings.
func NewDispatcher(sess session.Session, exec *Executor, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sess:   sess,
		exec:   exec,
		policy: FailFast{},
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.exec == nil {
		d.exec = New(sess, WithLogger(d.log))
	}
	return d
}

// Execute runs actions strictly in order and collects the values produced by
// value-returning actions. On abort it returns nil results and an
// *ActionError.
func (d *Dispatcher) Execute(ctx context.Context, actions []Action) ([]any, error) {
	results := []any{}
	for i, a := range actions {
		if err := ctx.Err(); err != nil {
			return nil, &ActionError{Index: i, Action: a, Err: err}
		}

		d.log.Debug("executor: running action", zap.Int("index", i), zap.Stringer("action", a))
		out, produced, err := d.run(ctx, a)
		if err != nil {
			ae := &ActionError{Index: i, Action: a, Err: err}
			d.log.Error("executor: action failed", zap.Int("index", i), zap.Stringer("action", a), zap.Error(err))
			if IsFatal(err) || ctx.Err() != nil {
				return nil, ae
			}
			if perr := d.policy.Handle(ctx, ae); perr != nil {
				return nil, perr
			}
			continue
		}
		if produced {
			results = append(results, out)
		}
		if d.after != nil {
			d.after(ctx, i, a)
		}
	}
	return results, nil
}

// run performs one action. The bool reports whether the value is a result.
func (d *Dispatcher) run(ctx context.Context, a Action) (any, bool, error) {
	switch a.Name {
	case Input:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		return nil, false, d.exec.Type(ctx, loc, a.InputValue)

	case Click:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		return nil, false, d.exec.Click(ctx, loc)

	case MouseDown:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		return nil, false, d.exec.PointerDown(ctx, loc)

	case MouseUp:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		return nil, false, d.exec.PointerUp(ctx, loc)

	case SwitchTo:
		if a.Frame == "" {
			return nil, false, &MissingParamError{Action: a.Name, Param: "frame"}
		}
		return nil, false, d.sess.SwitchToFrame(ctx, string(a.Frame))

	case SwitchToDefaultContent:
		return nil, false, d.sess.SwitchToDefaultContent(ctx)

	case GetTitle:
		return produce(d.sess.Title(ctx))

	case GetCurrentURL:
		return produce(d.sess.URL(ctx))

	case GetPageSource:
		return produce(d.sess.PageSource(ctx))

	case FindElement:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		el, err := d.sess.FindElement(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		return produce(el.Text(ctx))

	case FindElements:
		loc, err := a.Locator()
		if err != nil {
			return nil, false, err
		}
		els, err := d.sess.FindElements(ctx, loc)
		if err != nil {
			return nil, false, err
		}
		texts := make([]string, 0, len(els))
		for _, el := range els {
			t, err := el.Text(ctx)
			if err != nil {
				return nil, false, err
			}
			texts = append(texts, t)
		}
		return texts, true, nil

	case SwitchToAlert:
		text, ok, err := d.sess.AlertText(ctx)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, true, nil
		}
		return text, true, nil

	case ExecuteScript, RunScript:
		if a.Script == "" {
			return nil, false, &MissingParamError{Action: a.Name, Param: "script"}
		}
		return produce(d.sess.ExecuteScript(ctx, a.Script))

	case GetCookies:
		return produce(d.sess.Cookies(ctx))

	case AddCookie:
		if a.Cookie == nil {
			return nil, false, &MissingParamError{Action: a.Name, Param: "cookie_dict"}
		}
		return nil, false, d.sess.AddCookie(ctx, *a.Cookie)

	case DeleteCookie:
		if a.CookieName == "" {
			return nil, false, &MissingParamError{Action: a.Name, Param: "cookie_name"}
		}
		return nil, false, d.sess.DeleteCookie(ctx, a.CookieName)

	case DeleteAllCookies:
		return nil, false, d.sess.DeleteAllCookies(ctx)

	case SaveScreenshot:
		if a.Path == "" {
			return nil, false, &MissingParamError{Action: a.Name, Param: "path"}
		}
		return nil, false, d.sess.SaveScreenshot(ctx, a.Path)

	case GetWindowHandles:
		return produce(d.sess.WindowHandles(ctx))

	case SwitchToWindow:
		if a.Handle == "" {
			return nil, false, &MissingParamError{Action: a.Name, Param: "handle"}
		}
		return nil, false, d.sess.SwitchToWindow(ctx, a.Handle)

	case SetWindowSize:
		if a.Width <= 0 || a.Height <= 0 {
			return nil, false, fmt.Errorf("setWindowSize: invalid size %dx%d", a.Width, a.Height)
		}
		return nil, false, d.sess.SetWindowSize(ctx, a.Width, a.Height)

	case GoBack:
		return nil, false, d.sess.Back(ctx)

	case GoForward:
		return nil, false, d.sess.Forward(ctx)

	case Refresh:
		return nil, false, d.sess.Refresh(ctx)

	case Close:
		return nil, false, d.sess.Close(ctx)

	case Quit:
		return nil, false, d.sess.Quit()

	default:
		d.log.Warn("executor: unknown action skipped", zap.String("action", string(a.Name)))
		return nil, false, nil
	}
}

func produce[T any](v T, err error) (any, bool, error) {
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
