package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/locator"
)

// Rod implements Session on top of a go-rod browser. root is the active
// top-level page, cur is either root or the frame last switched to.
type Rod struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	root    *rod.Page
	cur     *rod.Page
	log     *zap.Logger

	mu         sync.Mutex
	dialog     *proto.PageJavascriptDialogOpening
	stopEvents context.CancelFunc

	quitOnce sync.Once
	quitErr  error
}

var _ Session = (*Rod)(nil)

// Page returns the underlying top-level Rod page
func (s *Rod) Page() *rod.Page {
	return s.root
}

func (s *Rod) setPage(p *rod.Page) {
	s.stopDialogs()
	s.root = p
	s.cur = p

	// Dialogs block the page until handled, so remember the latest one of the
	// current page and let AlertText dismiss it.
	ctx, cancel := context.WithCancel(context.Background())
	wait := p.Context(ctx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		s.mu.Lock()
		s.dialog = e
		s.mu.Unlock()
		s.log.Debug("session: dialog opened", zap.String("type", string(e.Type)), zap.String("message", e.Message))
	})
	s.mu.Lock()
	s.stopEvents = cancel
	s.mu.Unlock()
	go wait()
}

// stopDialogs ends the dialog listener of the current page and forgets any
// dialog it reported.
func (s *Rod) stopDialogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopEvents != nil {
		s.stopEvents()
		s.stopEvents = nil
	}
	s.dialog = nil
}

// live fails with ErrClosed once the browser is gone.
func (s *Rod) live() error {
	if s.browser == nil || s.root == nil {
		return ErrClosed
	}
	return nil
}

func (s *Rod) Navigate(ctx context.Context, url string) error {
	if err := s.live(); err != nil {
		return err
	}
	p := s.root.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.log.Warn("session: wait load failed", zap.String("url", url), zap.Error(err))
	}
	s.cur = s.root
	return nil
}

func (s *Rod) Title(ctx context.Context) (string, error) {
	if err := s.live(); err != nil {
		return "", err
	}
	res, err := s.cur.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", classify(err)
	}
	return res.Value.Str(), nil
}

func (s *Rod) URL(ctx context.Context) (string, error) {
	if err := s.live(); err != nil {
		return "", err
	}
	res, err := s.cur.Context(ctx).Eval(`() => window.location.href`)
	if err != nil {
		return "", classify(err)
	}
	return res.Value.Str(), nil
}

func (s *Rod) PageSource(ctx context.Context) (string, error) {
	if err := s.live(); err != nil {
		return "", err
	}
	html, err := s.cur.Context(ctx).HTML()
	if err != nil {
		return "", classify(err)
	}
	return html, nil
}

func (s *Rod) FindElement(ctx context.Context, loc locator.Locator) (Element, error) {
	els, err := s.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, loc)
	}
	return els[0], nil
}

func (s *Rod) FindElements(ctx context.Context, loc locator.Locator) ([]Element, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	p := s.cur.Context(ctx)

	var found rod.Elements
	var err error
	if css, xpath := loc.Query(); xpath != "" {
		found, err = p.ElementsX(xpath)
	} else {
		found, err = p.Elements(css)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", loc, classify(err))
	}

	out := make([]Element, 0, len(found))
	for _, el := range found {
		out = append(out, &rodElement{el: el, mouse: s.root.Mouse})
	}
	return out, nil
}

func (s *Rod) ExecuteScript(ctx context.Context, script string) (any, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	res, err := s.cur.Context(ctx).Eval("function() {\n" + script + "\n}")
	if err != nil {
		return nil, classify(err)
	}
	return res.Value.Val(), nil
}

func (s *Rod) Cookies(ctx context.Context) ([]Cookie, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	raw, err := s.root.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		cookie := Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Session {
			cookie.Expiry = int64(c.Expires)
		}
		out = append(out, cookie)
	}
	return out, nil
}

func (s *Rod) AddCookie(ctx context.Context, c Cookie) error {
	pageURL, err := s.URL(ctx)
	if err != nil {
		return err
	}
	req := proto.NetworkSetCookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HTTPOnly: c.HTTPOnly,
	}
	if c.Domain == "" {
		req.URL = pageURL
	}
	if _, err := req.Call(s.root.Context(ctx)); err != nil {
		return fmt.Errorf("add cookie %s: %w", c.Name, err)
	}
	return nil
}

func (s *Rod) DeleteCookie(ctx context.Context, name string) error {
	pageURL, err := s.URL(ctx)
	if err != nil {
		return err
	}
	return proto.NetworkDeleteCookies{Name: name, URL: pageURL}.Call(s.root.Context(ctx))
}

func (s *Rod) DeleteAllCookies(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	return proto.NetworkClearBrowserCookies{}.Call(s.root.Context(ctx))
}

func (s *Rod) WindowHandles(ctx context.Context) ([]string, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil {
		return nil, err
	}
	handles := make([]string, 0, len(pages))
	for _, p := range pages {
		handles = append(handles, string(p.TargetID))
	}
	return handles, nil
}

func (s *Rod) SwitchToWindow(ctx context.Context, handle string) error {
	if err := s.live(); err != nil {
		return err
	}
	p, err := s.browser.Context(ctx).PageFromTarget(proto.TargetTargetID(handle))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoSuchWindow, handle, err)
	}
	if _, err := p.Activate(); err != nil {
		return fmt.Errorf("activate window %s: %w", handle, err)
	}
	s.setPage(p)
	return nil
}

// SwitchToFrame accepts a frame index, a frame name or id, or a CSS selector.
func (s *Rod) SwitchToFrame(ctx context.Context, frame string) error {
	if err := s.live(); err != nil {
		return err
	}
	p := s.cur.Context(ctx)

	var el *rod.Element
	if idx, err := strconv.Atoi(frame); err == nil {
		frames, err := p.Elements("iframe, frame")
		if err != nil {
			return classify(err)
		}
		if idx < 0 || idx >= len(frames) {
			return fmt.Errorf("%w: index %d", ErrNoSuchFrame, idx)
		}
		el = frames[idx]
	} else {
		q := fmt.Sprintf(`iframe[name=%[1]q], iframe[id=%[1]q], frame[name=%[1]q], frame[id=%[1]q]`, frame)
		frames, err := p.Elements(q)
		if err != nil || len(frames) == 0 {
			frames, err = p.Elements(frame)
		}
		if err != nil || len(frames) == 0 {
			return fmt.Errorf("%w: %s", ErrNoSuchFrame, frame)
		}
		el = frames[0]
	}

	fp, err := el.Frame()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNoSuchFrame, frame, err)
	}
	s.cur = fp
	return nil
}

func (s *Rod) SwitchToDefaultContent(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	s.cur = s.root
	return nil
}

// AlertText reads the pending dialog and accepts it so the page can resume.
func (s *Rod) AlertText(ctx context.Context) (string, bool, error) {
	if err := s.live(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	d := s.dialog
	s.dialog = nil
	s.mu.Unlock()

	if d == nil {
		return "", false, nil
	}
	if err := (proto.PageHandleJavaScriptDialog{Accept: true}).Call(s.root.Context(ctx)); err != nil {
		return d.Message, true, fmt.Errorf("accept dialog: %w", err)
	}
	return d.Message, true, nil
}

func (s *Rod) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.live(); err != nil {
		return nil, err
	}
	return s.root.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

func (s *Rod) SaveScreenshot(ctx context.Context, path string) error {
	data, err := s.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Rod) Back(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	s.cur = s.root
	return s.root.Context(ctx).NavigateBack()
}

func (s *Rod) Forward(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	s.cur = s.root
	return s.root.Context(ctx).NavigateForward()
}

func (s *Rod) Refresh(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	s.cur = s.root
	return s.root.Context(ctx).Reload()
}

func (s *Rod) SetWindowSize(ctx context.Context, width, height int) error {
	if err := s.live(); err != nil {
		return err
	}
	return s.root.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	})
}

// Close closes the current window and moves to any remaining one.
func (s *Rod) Close(ctx context.Context) error {
	if err := s.live(); err != nil {
		return err
	}
	if err := s.root.Close(); err != nil {
		return err
	}
	pages, err := s.browser.Context(ctx).Pages()
	if err != nil || len(pages) == 0 {
		return nil
	}
	s.setPage(pages[0])
	return nil
}

// Quit closes the browser and releases the launcher and display. Only the
// first call has any effect.
func (s *Rod) Quit() error {
	s.quitOnce.Do(func() {
		s.stopDialogs()
		if s.browser != nil {
			s.quitErr = s.browser.Close()
			s.browser = nil
			s.root = nil
			s.cur = nil
		}
		s.cleanup()
		s.log.Info("session: quit")
	})
	return s.quitErr
}

type rodElement struct {
	el    *rod.Element
	mouse *rod.Mouse
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, classify(err)
}

func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if _, err := el.Interactable(); err != nil {
		return classify(err)
	}
	return classify(el.Input(text))
}

func (e *rodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx)
	if _, err := el.Interactable(); err != nil {
		return classify(err)
	}
	return classify(el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Displayed(ctx context.Context) (bool, error) {
	ok, err := e.el.Context(ctx).Visible()
	return ok, classify(err)
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`function() { return !this.disabled }`)
	if err != nil {
		return false, classify(err)
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) Eval(ctx context.Context, fn string, args ...any) (any, error) {
	res, err := e.el.Context(ctx).Eval(fn, args...)
	if err != nil {
		return nil, classify(err)
	}
	return res.Value.Val(), nil
}

func (e *rodElement) PointerDown(ctx context.Context) error {
	if err := e.moveToCenter(ctx); err != nil {
		return err
	}
	return e.mouse.Down(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) PointerUp(ctx context.Context) error {
	if err := e.moveToCenter(ctx); err != nil {
		return err
	}
	return e.mouse.Up(proto.InputMouseButtonLeft, 1)
}

func (e *rodElement) Center(ctx context.Context) (float64, float64, error) {
	return elementCenter(e.el.Context(ctx))
}

func (e *rodElement) moveToCenter(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.ScrollIntoView(); err != nil {
		return classify(err)
	}
	x, y, err := elementCenter(el)
	if err != nil {
		return err
	}
	return e.mouse.MoveTo(proto.Point{X: x, Y: y})
}

func elementCenter(el *rod.Element) (float64, float64, error) {
	box, err := el.Shape()
	if err != nil {
		return 0, 0, classify(err)
	}
	if len(box.Quads) == 0 {
		return 0, 0, fmt.Errorf("%w: element has no shape", ErrNotInteractable)
	}

	quad := box.Quads[0]
	x := (quad[0] + quad[2] + quad[4] + quad[6]) / 4
	y := (quad[1] + quad[3] + quad[5] + quad[7]) / 4
	return x, y, nil
}

// classify maps driver errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		invisible *rod.InvisibleShapeError
		covered   *rod.CoveredError
		noPointer *rod.NoPointerEventsError
		notFound  *rod.ObjectNotFoundError
		cdpErr    *cdp.Error
	)
	switch {
	case errors.As(err, &invisible), errors.As(err, &covered), errors.As(err, &noPointer):
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	case errors.As(err, &notFound):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	case errors.As(err, &cdpErr) && isDetached(cdpErr.Message):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}

func isDetached(msg string) bool {
	for _, s := range []string{
		"Could not find node with given id",
		"Node with given id does not belong to the document",
		"Cannot find context with specified id",
		"Cannot find object with id",
		"Node is detached from document",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
