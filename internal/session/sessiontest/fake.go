// Package sessiontest provides an in-memory session.Session for tests.
package sessiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/v0xg/snapup/internal/locator"
	"github.com/v0xg/snapup/internal/session"
)

// Fake is a scriptable session. Elements are registered per locator; error
// queues are consumed one entry per call, a nil entry meaning success.
type Fake struct {
	mu sync.Mutex

	TitleText  string
	CurrentURL string
	Source     string
	Scripts    map[string]any
	Alert      *string
	Jar        []session.Cookie
	Handles    []string
	Shot       []byte

	elements map[locator.Locator][]*Element
	findErrs map[locator.Locator][]error

	calls []string
	quits int
}

var _ session.Session = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		Scripts:  make(map[string]any),
		Handles:  []string{"main"},
		elements: make(map[locator.Locator][]*Element),
		findErrs: make(map[locator.Locator][]error),
	}
}

// Add registers el under loc and returns it.
func (f *Fake) Add(loc locator.Locator, el *Element) *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	el.fake = f
	f.elements[loc] = append(f.elements[loc], el)
	return el
}

// FailFind queues errors returned by FindElement for loc before lookups
// start succeeding.
func (f *Fake) FailFind(loc locator.Locator, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findErrs[loc] = append(f.findErrs[loc], errs...)
}

// Calls returns the operations recorded so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Quits reports how many times Quit was called.
func (f *Fake) Quits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quits
}

func (f *Fake) record(format string, args ...any) {
	f.mu.Lock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	f.mu.Unlock()
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.record("navigate %s", url)
	f.CurrentURL = url
	return nil
}

func (f *Fake) Title(ctx context.Context) (string, error)      { return f.TitleText, nil }
func (f *Fake) URL(ctx context.Context) (string, error)        { return f.CurrentURL, nil }
func (f *Fake) PageSource(ctx context.Context) (string, error) { return f.Source, nil }

func (f *Fake) FindElement(ctx context.Context, loc locator.Locator) (session.Element, error) {
	f.mu.Lock()
	if q := f.findErrs[loc]; len(q) > 0 {
		err := q[0]
		f.findErrs[loc] = q[1:]
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
	}
	els := f.elements[loc]
	f.mu.Unlock()

	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", session.ErrNoSuchElement, loc)
	}
	return els[0], nil
}

func (f *Fake) FindElements(ctx context.Context, loc locator.Locator) ([]session.Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]session.Element, 0, len(f.elements[loc]))
	for _, el := range f.elements[loc] {
		out = append(out, el)
	}
	return out, nil
}

func (f *Fake) ExecuteScript(ctx context.Context, script string) (any, error) {
	f.record("script %s", script)
	v, ok := f.Scripts[script]
	if err, isErr := v.(error); ok && isErr {
		return nil, err
	}
	return v, nil
}

func (f *Fake) Cookies(ctx context.Context) ([]session.Cookie, error) {
	return append([]session.Cookie(nil), f.Jar...), nil
}

func (f *Fake) AddCookie(ctx context.Context, c session.Cookie) error {
	f.record("add_cookie %s", c.Name)
	f.Jar = append(f.Jar, c)
	return nil
}

func (f *Fake) DeleteCookie(ctx context.Context, name string) error {
	f.record("delete_cookie %s", name)
	kept := f.Jar[:0]
	for _, c := range f.Jar {
		if c.Name != name {
			kept = append(kept, c)
		}
	}
	f.Jar = kept
	return nil
}

func (f *Fake) DeleteAllCookies(ctx context.Context) error {
	f.record("delete_all_cookies")
	f.Jar = nil
	return nil
}

func (f *Fake) WindowHandles(ctx context.Context) ([]string, error) {
	return append([]string(nil), f.Handles...), nil
}

func (f *Fake) SwitchToWindow(ctx context.Context, handle string) error {
	for _, h := range f.Handles {
		if h == handle {
			f.record("switch_window %s", handle)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", session.ErrNoSuchWindow, handle)
}

func (f *Fake) SwitchToFrame(ctx context.Context, frame string) error {
	f.record("switch_frame %s", frame)
	return nil
}

func (f *Fake) SwitchToDefaultContent(ctx context.Context) error {
	f.record("default_content")
	return nil
}

func (f *Fake) AlertText(ctx context.Context) (string, bool, error) {
	if f.Alert == nil {
		return "", false, nil
	}
	text := *f.Alert
	f.Alert = nil
	return text, true, nil
}

func (f *Fake) Screenshot(ctx context.Context) ([]byte, error) {
	f.record("screenshot")
	return f.Shot, nil
}

func (f *Fake) SaveScreenshot(ctx context.Context, path string) error {
	f.record("save_screenshot %s", path)
	return nil
}

func (f *Fake) Back(ctx context.Context) error    { f.record("back"); return nil }
func (f *Fake) Forward(ctx context.Context) error { f.record("forward"); return nil }
func (f *Fake) Refresh(ctx context.Context) error { f.record("refresh"); return nil }

func (f *Fake) SetWindowSize(ctx context.Context, width, height int) error {
	f.record("window_size %dx%d", width, height)
	return nil
}

func (f *Fake) Close(ctx context.Context) error {
	f.record("close")
	return nil
}

func (f *Fake) Quit() error {
	f.mu.Lock()
	f.quits++
	f.calls = append(f.calls, "quit")
	f.mu.Unlock()
	return nil
}

// Element is a fake DOM node.
type Element struct {
	Label    string
	TextVal  string
	Value    string
	Hidden   bool
	Disabled bool

	// HiddenPolls makes Displayed report false for the first n calls.
	HiddenPolls int

	SendKeysErrs []error
	ClickErrs    []error

	// X and Y are reported by Center.
	X, Y float64

	Clicks       int
	ScriptClicks int
	Pressed      bool

	fake     *Fake
	displays int
}

var _ session.Element = (*Element)(nil)

func pop(q *[]error) error {
	if len(*q) == 0 {
		return nil
	}
	err := (*q)[0]
	*q = (*q)[1:]
	return err
}

func (e *Element) Text(ctx context.Context) (string, error) { return e.TextVal, nil }

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.fake.record("send_keys %s %s", e.Label, text)
	if err := pop(&e.SendKeysErrs); err != nil {
		return err
	}
	e.Value += text
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	e.fake.record("click %s", e.Label)
	if err := pop(&e.ClickErrs); err != nil {
		return err
	}
	e.Clicks++
	return nil
}

func (e *Element) Displayed(ctx context.Context) (bool, error) {
	e.displays++
	if e.displays <= e.HiddenPolls {
		return false, nil
	}
	return !e.Hidden, nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) { return !e.Disabled, nil }

// Eval understands the two element scripts the executor falls back to.
func (e *Element) Eval(ctx context.Context, fn string, args ...any) (any, error) {
	e.fake.record("eval %s", e.Label)
	switch {
	case strings.Contains(fn, "this.value"):
		if len(args) > 0 {
			e.Value = fmt.Sprint(args[0])
		}
	case strings.Contains(fn, "this.click()"):
		e.ScriptClicks++
	}
	return nil, nil
}

func (e *Element) PointerDown(ctx context.Context) error {
	e.fake.record("pointer_down %s", e.Label)
	e.Pressed = true
	return nil
}

func (e *Element) PointerUp(ctx context.Context) error {
	e.fake.record("pointer_up %s", e.Label)
	e.Pressed = false
	return nil
}

func (e *Element) Center(ctx context.Context) (float64, float64, error) { return e.X, e.Y, nil }
