package executor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/v0xg/snapup/internal/locator"
	"github.com/v0xg/snapup/internal/session"
)

// Name identifies an action in the action document
type Name string

const (
	Input                  Name = "input"
	Click                  Name = "click"
	SwitchTo               Name = "switch_to"
	GetTitle               Name = "get_title"
	GetCurrentURL          Name = "get_current_url"
	GetPageSource          Name = "get_page_source"
	Close                  Name = "close"
	Quit                   Name = "quit"
	GoBack                 Name = "go_back"
	GoForward              Name = "go_forward"
	Refresh                Name = "refresh"
	FindElement            Name = "find_element"
	FindElements           Name = "find_elements"
	SwitchToAlert          Name = "switch_to_alert"
	SwitchToDefaultContent Name = "switch_to_default_content"
	ExecuteScript          Name = "execute_script"
	RunScript              Name = "runScript" // recorded-test spelling of execute_script
	GetCookies             Name = "get_cookies"
	AddCookie              Name = "add_cookie"
	DeleteCookie           Name = "delete_cookie"
	DeleteAllCookies       Name = "delete_all_cookies"
	SaveScreenshot         Name = "save_screenshot"
	GetWindowHandles       Name = "get_window_handles"
	SwitchToWindow         Name = "switch_to_window"
	MouseDown              Name = "mouse_down"
	MouseUp                Name = "mouse_up"
	SetWindowSize          Name = "setWindowSize"
)

// Names lists every action the dispatcher understands.
var Names = []Name{
	Input, Click, SwitchTo, GetTitle, GetCurrentURL, GetPageSource, Close, Quit,
	GoBack, GoForward, Refresh, FindElement, FindElements, SwitchToAlert,
	SwitchToDefaultContent, ExecuteScript, RunScript, GetCookies, AddCookie,
	DeleteCookie, DeleteAllCookies, SaveScreenshot, GetWindowHandles,
	SwitchToWindow, MouseDown, MouseUp, SetWindowSize,
}

// Known reports whether n is handled by the dispatcher.
func (n Name) Known() bool {
	for _, k := range Names {
		if k == n {
			return true
		}
	}
	return false
}

// Action is a single declarative step. Which fields are used depends on Name.
type Action struct {
	Name         Name            `json:"action"`
	LocatorType  string          `json:"locator_type,omitempty"`
	LocatorValue string          `json:"locator_value,omitempty"`
	InputValue   string          `json:"input_value,omitempty"`
	Frame        FrameRef        `json:"frame,omitempty"`
	Script       string          `json:"script,omitempty"`
	Cookie       *session.Cookie `json:"cookie_dict,omitempty"`
	CookieName   string          `json:"cookie_name,omitempty"`
	Path         string          `json:"path,omitempty"`
	Handle       string          `json:"handle,omitempty"`
	Width        int             `json:"width,omitempty"`
	Height       int             `json:"height,omitempty"`
}

func (a Action) String() string {
	if a.LocatorValue != "" {
		return fmt.Sprintf("%s %s=%s", a.Name, a.LocatorType, a.LocatorValue)
	}
	return string(a.Name)
}

// FrameRef names a frame by index, name, id or CSS selector. Documents may
// give the index as a JSON integer.
type FrameRef string

func (f *FrameRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FrameRef(s)
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("frame must be a string or an integer index, got %s", data)
	}
	*f = FrameRef(strconv.Itoa(n))
	return nil
}

// ErrMissingParam is matched by every *MissingParamError.
var ErrMissingParam = errors.New("missing action parameter")

// MissingParamError names a required field the action did not carry.
type MissingParamError struct {
	Action Name
	Param  string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("action %s: missing %s", e.Action, e.Param)
}

func (e *MissingParamError) Is(target error) bool { return target == ErrMissingParam }

// Locator resolves the action's locator. An empty locator type means the
// value is a raw CSS selector.
func (a Action) Locator() (locator.Locator, error) {
	if a.LocatorValue == "" {
		return locator.Locator{}, &MissingParamError{Action: a.Name, Param: "locator_value"}
	}
	if a.LocatorType == "" {
		return locator.Locator{Kind: locator.CSSSelector, Value: a.LocatorValue}, nil
	}
	return locator.New(a.LocatorType, a.LocatorValue)
}

// ActionError wraps the failure of one action in a batch.
type ActionError struct {
	Index  int
	Action Action
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("error executing action %s (#%d): %v", e.Action.Name, e.Index+1, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// IsFatal reports whether err must end the run whatever the error policy.
func IsFatal(err error) bool {
	var f interface{ Fatal() bool }
	return errors.As(err, &f) && f.Fatal()
}
