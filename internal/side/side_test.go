package side

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/v0xg/snapup/internal/executor"
)

const recording = `{
  "id": "5b1f",
  "version": "2.0",
  "name": "momo",
  "url": "https://www.momoshop.com.tw",
  "tests": [{
    "id": "t1",
    "name": "search",
    "commands": [
      {"id": "c1", "command": "open", "target": "/", "value": ""},
      {"id": "c2", "command": "setWindowSize", "target": "1280x800", "value": ""},
      {"id": "c3", "command": "type", "target": "id=search", "value": "cats"},
      {"id": "c4", "command": "click", "target": "css=button[type=submit]", "value": ""},
      {"id": "c5", "command": "runScript", "target": "window.scrollTo(0, 500)", "value": ""},
      {"id": "c6", "command": "mouseOver", "target": "linkText=More", "value": ""}
    ]
  }]
}`

func TestImport(t *testing.T) {
	url, actions, err := Import([]byte(recording))
	require.NoError(t, err)
	assert.Equal(t, "https://www.momoshop.com.tw", url)

	want := []executor.Action{
		{Name: "open", LocatorValue: "/"},
		{Name: executor.SetWindowSize, LocatorValue: "1280x800", Width: 1280, Height: 800},
		{Name: executor.Input, LocatorType: "ID", LocatorValue: "search", InputValue: "cats"},
		{Name: executor.Click, LocatorType: "CSS", LocatorValue: "button[type=submit]"},
		{Name: executor.RunScript, Script: "window.scrollTo(0, 500)"},
		{Name: "mouseOver", LocatorType: "LINKTEXT", LocatorValue: "More"},
	}
	assert.Equal(t, want, actions)
}

func TestTranslateType(t *testing.T) {
	a, err := Translate(Command{Command: "type", Target: "id=search", Value: "cats"})
	require.NoError(t, err)
	assert.Equal(t, executor.Action{
		Name:         executor.Input,
		LocatorType:  "ID",
		LocatorValue: "search",
		InputValue:   "cats",
	}, a)
}

func TestTranslateBadWindowSize(t *testing.T) {
	for _, target := range []string{"1280", "wide x tall", "1280x"} {
		_, err := Translate(Command{Command: "setWindowSize", Target: target})
		assert.Error(t, err, target)
	}
}

func TestParseRejects(t *testing.T) {
	_, err := Parse([]byte(`{"name": "empty", "tests": []}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		target, kind, value string
	}{
		{"id=search", "ID", "search"},
		{"xpath=//a[@href='x=1']", "XPATH", "//a[@href='x=1']"},
		{"css=input[name=q]", "CSS", "input[name=q]"},
		{"#submit", "", "#submit"},
		{"=orphan", "", "orphan"},
	}
	for _, tt := range tests {
		kind, value := SplitTarget(tt.target)
		assert.Equal(t, tt.kind, kind, tt.target)
		assert.Equal(t, tt.value, value, tt.target)
	}
}

func TestProperty_SplitTargetFirstEquals(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.StringMatching(`[a-zA-Z]{1,12}`).Draw(t, "kind")
		value := rapid.String().Draw(t, "value")

		k, v := SplitTarget(kind + "=" + value)
		if k != strings.ToUpper(kind) || v != value {
			t.Fatalf("SplitTarget(%q=%q) = %q, %q", kind, value, k, v)
		}
	})
}

func TestProperty_SplitTargetRawValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.StringMatching(`[^=]*`).Draw(t, "raw")

		k, v := SplitTarget(raw)
		if k != "" || v != raw {
			t.Fatalf("SplitTarget(%q) = %q, %q", raw, k, v)
		}
	})
}
