package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/v0xg/snapup/internal/gifgen"
	"github.com/v0xg/snapup/internal/overlay"
	"github.com/v0xg/snapup/internal/session/sessiontest"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{10, 20, 30, 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestThumbnailShrinks(t *testing.T) {
	out, err := Thumbnail(pngOf(t, 2048, 1024), 512)
	require.NoError(t, err)
	w, h := decodeSize(t, out)
	assert.Equal(t, 512, w)
	assert.Equal(t, 256, h)
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	out, err := Thumbnail(pngOf(t, 300, 200), DefaultThumbnailWidth)
	require.NoError(t, err)
	w, h := decodeSize(t, out)
	assert.Equal(t, 300, w)
	assert.Equal(t, 200, h)
}

func TestThumbnailRejectsGarbage(t *testing.T) {
	_, err := Thumbnail([]byte("not a png"), 100)
	assert.Error(t, err)
}

func TestFailure(t *testing.T) {
	f := sessiontest.New()
	f.Shot = pngOf(t, 1600, 800)
	path := filepath.Join(t.TempDir(), "shots", "failure.png")

	require.NoError(t, Failure(context.Background(), f, path, 800))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	w, _ := decodeSize(t, data)
	assert.Equal(t, 800, w)
}

func TestRecorder(t *testing.T) {
	f := sessiontest.New()
	f.Shot = pngOf(t, 200, 100)
	r := NewRecorder(f, nil)

	r.Snap(context.Background(), nil)
	r.Snap(context.Background(), &overlay.Mark{X: 50, Y: 50, Pressed: true})
	require.Equal(t, 2, r.Len())

	f.Shot = []byte("broken")
	r.Snap(context.Background(), nil)
	assert.Equal(t, 2, r.Len(), "undecodable frames are skipped")

	path := filepath.Join(t.TempDir(), "run.gif")
	size, err := r.Save(path, gifgen.Options{FPS: 2})
	require.NoError(t, err)
	assert.Positive(t, size)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	g, err := gif.DecodeAll(file)
	require.NoError(t, err)
	assert.Len(t, g.Image, 2)
}
