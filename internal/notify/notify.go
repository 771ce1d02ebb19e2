// Package notify delivers failure reports to a LINE Notify compatible
// endpoint.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the LINE Notify API.
const DefaultEndpoint = "https://notify-api.line.me/api/notify"

// Message is a single notification. Image is optional and may be an
// http(s) URL or a local file path.
type Message struct {
	Text  string
	Image string
}

// Notifier delivers a message and returns the delivery status code.
type Notifier interface {
	Notify(ctx context.Context, msg Message) (int, error)
}

// Line posts messages with a bearer token
type Line struct {
	token    string
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// LineOption configures a Line notifier.
type LineOption func(*Line)

// WithEndpoint overrides the API URL.
func WithEndpoint(u string) LineOption {
	return func(l *Line) {
		if u != "" {
			l.endpoint = u
		}
	}
}

// WithHTTPClient sets the HTTP client. Default: 10s timeout.
func WithHTTPClient(c *http.Client) LineOption {
	return func(l *Line) { l.client = c }
}

// WithLogger sets a custom logger.
func WithLogger(log *zap.Logger) LineOption {
	return func(l *Line) { l.logger = log }
}

// NewLine creates a Line notifier for the given access token.
func NewLine(token string, opts ...LineOption) (*Line, error) {
	if token == "" {
		return nil, fmt.Errorf("notify: token is required")
	}
	l := &Line{
		token:    token,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Notify sends one request. Delivery is not retried.
func (l *Line) Notify(ctx context.Context, msg Message) (int, error) {
	body, contentType, err := l.encode(msg)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, body)
	if err != nil {
		return 0, fmt.Errorf("notify: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.token)
	req.Header.Set("Content-Type", contentType)

	resp, err := l.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("notify: request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		l.logger.Warn("notify: bad status", zap.Int("status", resp.StatusCode))
		return resp.StatusCode, fmt.Errorf("notify: status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (l *Line) encode(msg Message) (io.Reader, string, error) {
	if msg.Image == "" || isRemote(msg.Image) {
		form := url.Values{"message": {msg.Text}}
		if msg.Image != "" {
			form.Set("imageThumbnail", msg.Image)
			form.Set("imageFullsize", msg.Image)
		}
		return strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", nil
	}

	img, err := os.ReadFile(msg.Image)
	if err != nil {
		return nil, "", fmt.Errorf("notify: read image: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("message", msg.Text); err != nil {
		return nil, "", err
	}
	part, err := w.CreateFormFile("imageFile", filepath.Base(msg.Image))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// Nop drops every message. It is used when no token is configured.
type Nop struct{}

func (Nop) Notify(context.Context, Message) (int, error) { return 0, nil }

// Reporter prefixes messages with the program name, logs them, and forwards
// them to Sink on a best-effort basis.
type Reporter struct {
	Program string
	Sink    Notifier
	Logger  *zap.Logger
}

func (r *Reporter) Notify(ctx context.Context, msg Message) (int, error) {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Error("notify: reporting error", zap.String("program", r.Program), zap.String("message", msg.Text))

	if r.Program != "" {
		msg.Text = r.Program + ": " + msg.Text
	}
	sink := r.Sink
	if sink == nil {
		sink = Nop{}
	}
	status, err := sink.Notify(ctx, msg)
	if err != nil {
		log.Warn("notify: delivery failed", zap.Int("status", status), zap.Error(err))
	}
	return status, err
}
