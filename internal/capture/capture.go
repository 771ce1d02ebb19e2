// Package capture turns session screenshots into failure thumbnails and
// recorded frames.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"
	"go.uber.org/zap"

	"github.com/v0xg/snapup/internal/gifgen"
	"github.com/v0xg/snapup/internal/overlay"
	"github.com/v0xg/snapup/internal/session"
)

// DefaultThumbnailWidth bounds failure screenshots sent with notifications.
const DefaultThumbnailWidth = 1024

// Thumbnail decodes a PNG and shrinks it to at most maxWidth pixels wide,
// keeping the aspect ratio. Narrower images are re-encoded unchanged.
func Thumbnail(data []byte, maxWidth uint) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if maxWidth > 0 && uint(img.Bounds().Dx()) > maxWidth {
		img = resize.Resize(maxWidth, 0, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Failure screenshots the session into path as a thumbnail.
func Failure(ctx context.Context, sess session.Session, path string, maxWidth uint) error {
	shot, err := sess.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	thumb, err := Thumbnail(shot, maxWidth)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, thumb, 0o644)
}

// Recorder accumulates one frame per Snap and writes them as a GIF.
type Recorder struct {
	sess   session.Session
	log    *zap.Logger
	frames []image.Image
}

func NewRecorder(sess session.Session, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{sess: sess, log: log}
}

// Snap captures the current viewport. A non-nil mark draws the pointer on
// the frame. Capture failures are logged and skipped.
func (r *Recorder) Snap(ctx context.Context, mark *overlay.Mark) {
	shot, err := r.sess.Screenshot(ctx)
	if err != nil {
		r.log.Warn("capture: screenshot failed", zap.Error(err))
		return
	}
	img, err := png.Decode(bytes.NewReader(shot))
	if err != nil {
		r.log.Warn("capture: decode frame failed", zap.Error(err))
		return
	}
	if mark != nil {
		img = overlay.Draw(img, *mark)
	}
	r.frames = append(r.frames, img)
}

// Len reports the number of captured frames.
func (r *Recorder) Len() int { return len(r.frames) }

// Save encodes the frames into path and returns the file size.
func (r *Recorder) Save(path string, opts gifgen.Options) (int64, error) {
	return gifgen.Write(path, r.frames, opts)
}
