// Package session defines the browser-control surface the action engine
// drives, and a go-rod implementation of it.
package session

import (
	"context"
	"errors"

	"github.com/v0xg/snapup/internal/locator"
)

var (
	ErrNoSuchElement   = errors.New("no such element")
	ErrStaleElement    = errors.New("stale element reference")
	ErrNotInteractable = errors.New("element not interactable")
	ErrNoSuchFrame     = errors.New("no such frame")
	ErrNoSuchWindow    = errors.New("no such window")
	ErrClosed          = errors.New("session: browser closed")
)

// Session is a live browser handle. It is owned by the caller and used by a
// single goroutine at a time.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	PageSource(ctx context.Context) (string, error)

	// FindElement returns ErrNoSuchElement without waiting when nothing matches.
	FindElement(ctx context.Context, loc locator.Locator) (Element, error)
	FindElements(ctx context.Context, loc locator.Locator) ([]Element, error)

	// ExecuteScript runs a script body in the current document and returns
	// its JSON-decoded return value.
	ExecuteScript(ctx context.Context, script string) (any, error)

	Cookies(ctx context.Context) ([]Cookie, error)
	AddCookie(ctx context.Context, c Cookie) error
	DeleteCookie(ctx context.Context, name string) error
	DeleteAllCookies(ctx context.Context) error

	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	SwitchToFrame(ctx context.Context, frame string) error
	SwitchToDefaultContent(ctx context.Context) error

	// AlertText reports the message of a pending JavaScript dialog. ok is
	// false when no dialog is open.
	AlertText(ctx context.Context) (text string, ok bool, err error)

	Screenshot(ctx context.Context) ([]byte, error)
	SaveScreenshot(ctx context.Context, path string) error

	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Refresh(ctx context.Context) error
	SetWindowSize(ctx context.Context, width, height int) error

	// Close closes the current window; Quit ends the whole browser.
	Close(ctx context.Context) error
	Quit() error
}

// Element is a reference to a node in the current document. Any method may
// return ErrStaleElement once the node has been detached.
type Element interface {
	Text(ctx context.Context) (string, error)
	SendKeys(ctx context.Context, text string) error
	Click(ctx context.Context) error
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)

	// Eval runs a function declaration with the element bound to this.
	Eval(ctx context.Context, fn string, args ...any) (any, error)

	PointerDown(ctx context.Context) error
	PointerUp(ctx context.Context) error

	// Center returns the element's midpoint in viewport coordinates.
	Center(ctx context.Context) (x, y float64, err error)
}

// Cookie follows the WebDriver cookie object.
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Expiry   int64  `json:"expiry,omitempty"`
}
