package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/snapup/internal/session"
)

func results() []any {
	return []any{
		"Results",
		[]string{"first", "second"},
		nil,
		[]session.Cookie{{Name: "sid", Value: "abc"}},
	}
}

func TestRenderAll(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, results(), ""))
	assert.JSONEq(t, `["Results", ["first", "second"], null, [{"name": "sid", "value": "abc"}]]`, buf.String())
}

func TestRenderEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, ""))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRenderQuery(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{".[0]", "\"Results\"\n"},
		{".[1] | length", "2\n"},
		{".[3][0].value", "\"abc\"\n"},
		{".[1][]", "\"first\"\n\"second\"\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, results(), tt.query))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRenderBadQuery(t *testing.T) {
	var buf bytes.Buffer
	err := Render(&buf, results(), ".[")
	assert.ErrorContains(t, err, "failed to parse jq expression")

	err = Render(&buf, results(), ".[0] | keys")
	assert.ErrorContains(t, err, "jq evaluation error")
}
