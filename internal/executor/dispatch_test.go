package executor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/v0xg/snapup/internal/locator"
	"github.com/v0xg/snapup/internal/notify"
	"github.com/v0xg/snapup/internal/session"
	"github.com/v0xg/snapup/internal/session/sessiontest"
	"github.com/v0xg/snapup/internal/wait"
)

var (
	searchBox = locator.Locator{Kind: locator.ID, Value: "q"}
	submitBtn = locator.Locator{Kind: locator.CSSSelector, Value: "#submit"}
)

func newTestDispatcher(f *sessiontest.Fake, opts ...DispatcherOption) *Dispatcher {
	e, _ := newTestExecutor(f)
	return NewDispatcher(f, e, opts...)
}

func searchPage() *sessiontest.Fake {
	f := sessiontest.New()
	f.TitleText = "Results"
	f.Add(searchBox, &sessiontest.Element{Label: "q"})
	f.Add(submitBtn, &sessiontest.Element{Label: "submit"})
	return f
}

func searchBatch() []Action {
	return []Action{
		{Name: Input, LocatorType: "ID", LocatorValue: "q", InputValue: "hello"},
		{Name: Click, LocatorType: "CSS", LocatorValue: "#submit"},
		{Name: GetTitle},
	}
}

func TestExecuteSearchScenario(t *testing.T) {
	f := searchPage()

	results, err := newTestDispatcher(f).Execute(context.Background(), searchBatch())
	require.NoError(t, err)
	assert.Equal(t, []any{"Results"}, results)
	assert.Equal(t, []string{"send_keys q hello", "click submit"}, f.Calls())
}

func TestExecuteSkipsUnknownAction(t *testing.T) {
	f := searchPage()
	batch := []Action{
		{Name: "open", LocatorValue: "https://example.com"},
		{Name: "hover", LocatorType: "ID", LocatorValue: "q"},
		{Name: GetTitle},
	}

	results, err := newTestDispatcher(f).Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []any{"Results"}, results)
	assert.Empty(t, f.Calls())
}

func TestExecuteEmptyBatch(t *testing.T) {
	results, err := newTestDispatcher(sessiontest.New()).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestExecuteValueProducers(t *testing.T) {
	f := sessiontest.New()
	f.TitleText = "Home"
	f.CurrentURL = "https://example.com/"
	f.Source = "<html></html>"
	f.Scripts["return 1+1"] = float64(2)
	f.Jar = []session.Cookie{{Name: "sid", Value: "abc"}}
	f.Handles = []string{"main", "popup"}
	alert := "are you sure?"
	f.Alert = &alert

	items := locator.Locator{Kind: locator.ClassName, Value: "item"}
	f.Add(items, &sessiontest.Element{Label: "a", TextVal: "first"})
	f.Add(items, &sessiontest.Element{Label: "b", TextVal: "second"})

	batch := []Action{
		{Name: GetTitle},
		{Name: GetCurrentURL},
		{Name: GetPageSource},
		{Name: FindElement, LocatorType: "CLASS_NAME", LocatorValue: "item"},
		{Name: FindElements, LocatorType: "CLASS_NAME", LocatorValue: "item"},
		{Name: SwitchToAlert},
		{Name: SwitchToAlert},
		{Name: ExecuteScript, Script: "return 1+1"},
		{Name: RunScript, Script: "return 1+1"},
		{Name: GetCookies},
		{Name: GetWindowHandles},
	}

	results, err := newTestDispatcher(f).Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []any{
		"Home",
		"https://example.com/",
		"<html></html>",
		"first",
		[]string{"first", "second"},
		"are you sure?",
		nil,
		float64(2),
		float64(2),
		[]session.Cookie{{Name: "sid", Value: "abc"}},
		[]string{"main", "popup"},
	}, results)
}

func TestExecuteSideEffects(t *testing.T) {
	f := sessiontest.New()
	batch := []Action{
		{Name: SwitchTo, Frame: "content"},
		{Name: SwitchToDefaultContent},
		{Name: AddCookie, Cookie: &session.Cookie{Name: "sid", Value: "1"}},
		{Name: DeleteCookie, CookieName: "sid"},
		{Name: DeleteAllCookies},
		{Name: SaveScreenshot, Path: "shot.png"},
		{Name: SwitchToWindow, Handle: "main"},
		{Name: SetWindowSize, Width: 1280, Height: 720},
		{Name: GoBack},
		{Name: GoForward},
		{Name: Refresh},
		{Name: Close},
		{Name: Quit},
	}

	results, err := newTestDispatcher(f).Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, []string{
		"switch_frame content",
		"default_content",
		"add_cookie sid",
		"delete_cookie sid",
		"delete_all_cookies",
		"save_screenshot shot.png",
		"switch_window main",
		"window_size 1280x720",
		"back",
		"forward",
		"refresh",
		"close",
		"quit",
	}, f.Calls())
	assert.Equal(t, 1, f.Quits())
}

func TestFrameRefDecodesIndexOrName(t *testing.T) {
	tests := []struct {
		json string
		want FrameRef
	}{
		{`{"action": "switch_to", "frame": 0}`, "0"},
		{`{"action": "switch_to", "frame": 2}`, "2"},
		{`{"action": "switch_to", "frame": "content"}`, "content"},
		{`{"action": "switch_to", "frame": "1"}`, "1"},
		{`{"action": "switch_to", "frame": null}`, ""},
	}
	for _, tt := range tests {
		var a Action
		require.NoError(t, json.Unmarshal([]byte(tt.json), &a), tt.json)
		assert.Equal(t, tt.want, a.Frame, tt.json)
	}

	var a Action
	assert.Error(t, json.Unmarshal([]byte(`{"action": "switch_to", "frame": 1.5}`), &a))
	assert.Error(t, json.Unmarshal([]byte(`{"action": "switch_to", "frame": true}`), &a))
}

func TestExecuteSwitchToFrameIndex(t *testing.T) {
	var batch []Action
	require.NoError(t, json.Unmarshal([]byte(`[{"action": "switch_to", "frame": 0}, {"action": "get_title"}]`), &batch))

	f := searchPage()
	results, err := newTestDispatcher(f).Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []any{"Results"}, results)
	assert.Equal(t, []string{"switch_frame 0"}, f.Calls())
}

func TestExecuteMissingParamFailsFast(t *testing.T) {
	tests := []struct {
		action Action
		param  string
	}{
		{Action{Name: Input, LocatorType: "ID"}, "locator_value"},
		{Action{Name: SwitchTo}, "frame"},
		{Action{Name: ExecuteScript}, "script"},
		{Action{Name: AddCookie}, "cookie_dict"},
		{Action{Name: DeleteCookie}, "cookie_name"},
		{Action{Name: SaveScreenshot}, "path"},
		{Action{Name: SwitchToWindow}, "handle"},
	}
	for _, tt := range tests {
		t.Run(string(tt.action.Name), func(t *testing.T) {
			results, err := newTestDispatcher(sessiontest.New()).Execute(context.Background(), []Action{tt.action})
			assert.Nil(t, results)
			require.ErrorIs(t, err, ErrMissingParam)

			var mp *MissingParamError
			require.True(t, errors.As(err, &mp))
			assert.Equal(t, tt.param, mp.Param)
		})
	}
}

func TestExecuteUnsupportedLocator(t *testing.T) {
	batch := []Action{{Name: Click, LocatorType: "by_label", LocatorValue: "Go"}}

	_, err := newTestDispatcher(sessiontest.New()).Execute(context.Background(), batch)
	assert.ErrorIs(t, err, locator.ErrUnsupportedKind)
}

func TestExecutePresentTimeoutAbortsOnce(t *testing.T) {
	f := sessiontest.New()
	f.TitleText = "Results"
	rec := &recordingNotifier{}
	batch := []Action{
		{Name: MouseDown, LocatorType: "ID", LocatorValue: "missing"},
		{Name: GetTitle},
	}

	d := newTestDispatcher(f, WithPolicy(FailSoft{Notifier: rec}))
	results, err := d.Execute(context.Background(), batch)
	assert.Nil(t, results)
	require.ErrorIs(t, err, wait.ErrTimeout)
	assert.True(t, IsFatal(err))

	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 0, ae.Index)
	assert.Equal(t, MouseDown, ae.Action.Name)

	assert.Empty(t, rec.msgs, "fatal errors bypass the policy")
	assert.Empty(t, f.Calls())
}

func TestExecuteFailFastAborts(t *testing.T) {
	f := searchPage()
	batch := []Action{
		{Name: FindElement, LocatorType: "ID", LocatorValue: "gone"},
		{Name: GetTitle},
	}

	results, err := newTestDispatcher(f).Execute(context.Background(), batch)
	assert.Nil(t, results)
	require.ErrorIs(t, err, session.ErrNoSuchElement)
	assert.False(t, IsFatal(err))
	assert.Contains(t, err.Error(), "error executing action find_element (#1)")
}

func TestExecuteFailSoftNotifiesAndContinues(t *testing.T) {
	f := searchPage()
	rec := &recordingNotifier{}
	batch := []Action{
		{Name: FindElement, LocatorType: "ID", LocatorValue: "gone"},
		{Name: GetTitle},
	}

	results, err := newTestDispatcher(f, WithPolicy(FailSoft{Notifier: rec})).Execute(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, []any{"Results"}, results)
	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0].Text, "find_element")
}

func TestExecuteAfterActionHook(t *testing.T) {
	f := searchPage()
	var seen []int
	hook := func(_ context.Context, i int, _ Action) { seen = append(seen, i) }

	_, err := newTestDispatcher(f, WithAfterAction(hook)).Execute(context.Background(), searchBatch())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestDispatcher(searchPage(), WithPolicy(FailSoft{})).Execute(ctx, searchBatch())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor("", nil, nil)
	require.NoError(t, err)
	assert.IsType(t, FailFast{}, p)

	p, err = PolicyFor(PolicyFailSoft, notify.Nop{}, nil)
	require.NoError(t, err)
	assert.IsType(t, FailSoft{}, p)

	_, err = PolicyFor("retry-forever", nil, nil)
	assert.Error(t, err)
}

func TestProperty_DispatchIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		producers := []Action{
			{Name: GetTitle},
			{Name: GetCurrentURL},
			{Name: Input, LocatorType: "ID", LocatorValue: "q", InputValue: "x"},
			{Name: Click, LocatorType: "CSS", LocatorValue: "#submit"},
			{Name: FindElements, LocatorType: "ID", LocatorValue: "q"},
			{Name: "unknown"},
		}
		batch := rapid.SliceOfN(rapid.SampledFrom(producers), 0, 12).Draw(t, "batch")

		run := func() []any {
			f := searchPage()
			f.CurrentURL = "https://example.com/"
			e := New(f, WithJitter(0, 0), WithTimeout(20*time.Millisecond))
			res, err := NewDispatcher(f, e).Execute(context.Background(), batch)
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			return res
		}

		first, second := run(), run()
		if len(first) != len(second) {
			t.Fatalf("length mismatch: %d vs %d", len(first), len(second))
		}
		for i := range first {
			assert.Equal(t, first[i], second[i])
		}
	})
}

type recordingNotifier struct{ msgs []notify.Message }

func (r *recordingNotifier) Notify(_ context.Context, m notify.Message) (int, error) {
	r.msgs = append(r.msgs, m)
	return http.StatusOK, nil
}
