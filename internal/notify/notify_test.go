package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	auth        string
	contentType string
	form        url.Values
	fileName    string
	fileBody    string
}

func newServer(t *testing.T, status int, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		got.contentType = r.Header.Get("Content-Type")
		if f, h, err := r.FormFile("imageFile"); err == nil {
			data, _ := io.ReadAll(f)
			got.fileName = h.Filename
			got.fileBody = string(data)
		}
		_ = r.ParseForm()
		got.form = r.Form
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewLineRequiresToken(t *testing.T) {
	_, err := NewLine("")
	assert.Error(t, err)
}

func TestLineNotifyText(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, &got)

	l, err := NewLine("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	status, err := l.Notify(context.Background(), Message{Text: "snapup: boom"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Bearer tok", got.auth)
	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "snapup: boom", got.form.Get("message"))
	assert.Empty(t, got.form.Get("imageThumbnail"))
}

func TestLineNotifyRemoteImage(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, &got)

	l, err := NewLine("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = l.Notify(context.Background(), Message{Text: "x", Image: "https://example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", got.form.Get("imageThumbnail"))
	assert.Equal(t, "https://example.com/a.png", got.form.Get("imageFullsize"))
}

func TestLineNotifyUploadsLocalImage(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusOK, &got)

	path := filepath.Join(t.TempDir(), "failure.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o644))

	l, err := NewLine("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	_, err = l.Notify(context.Background(), Message{Text: "x", Image: path})
	require.NoError(t, err)
	assert.Contains(t, got.contentType, "multipart/form-data")
	assert.Equal(t, "failure.png", got.fileName)
	assert.Equal(t, "png-bytes", got.fileBody)
}

func TestLineNotifyBadStatus(t *testing.T) {
	var got captured
	srv := newServer(t, http.StatusUnauthorized, &got)

	l, err := NewLine("tok", WithEndpoint(srv.URL))
	require.NoError(t, err)

	status, err := l.Notify(context.Background(), Message{Text: "x"})
	assert.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

type recorder struct{ msgs []Message }

func (r *recorder) Notify(_ context.Context, m Message) (int, error) {
	r.msgs = append(r.msgs, m)
	return http.StatusOK, nil
}

func TestReporterPrefixesProgram(t *testing.T) {
	rec := &recorder{}
	r := &Reporter{Program: "momo", Sink: rec}

	status, err := r.Notify(context.Background(), Message{Text: "element not found"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "momo: element not found", rec.msgs[0].Text)
}

func TestReporterWithoutSink(t *testing.T) {
	r := &Reporter{Program: "momo"}
	status, err := r.Notify(context.Background(), Message{Text: "x"})
	assert.NoError(t, err)
	assert.Zero(t, status)
}
