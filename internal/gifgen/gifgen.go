// Package gifgen encodes recorded frames as an animated GIF.
package gifgen

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"sort"

	"github.com/nfnt/resize"
)

// ErrNoFrames is returned when there is nothing to encode.
var ErrNoFrames = errors.New("gifgen: no frames")

// Options configures GIF generation
type Options struct {
	FPS      int  // default 2
	MaxWidth uint // default 800
}

func (o *Options) defaults() {
	if o.FPS <= 0 {
		o.FPS = 2
	}
	if o.MaxWidth == 0 {
		o.MaxWidth = 800
	}
}

// Encode writes frames to w as a looping GIF. Every frame is scaled to the
// first frame's aspect ratio and quantised against one shared palette.
func Encode(w io.Writer, frames []image.Image, opts Options) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	opts.defaults()

	delay := 100 / opts.FPS
	if delay < 1 {
		delay = 1
	}

	bounds := frames[0].Bounds()
	width := opts.MaxWidth
	if uint(bounds.Dx()) < width {
		width = uint(bounds.Dx())
	}
	height := uint(float64(width) * float64(bounds.Dy()) / float64(bounds.Dx()))
	if height == 0 {
		height = 1
	}

	g := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	palette := buildPalette(frames[0])

	for i, frame := range frames {
		resized := resize.Resize(width, height, frame, resize.Lanczos3)
		paletted := image.NewPaletted(resized.Bounds(), palette)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})
		g.Image[i] = paletted
		g.Delay[i] = delay
	}
	return gif.EncodeAll(w, g)
}

// Write encodes frames into path and returns the file size.
func Write(path string, frames []image.Image, opts Options) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := Encode(f, frames, opts); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// buildPalette keeps the 255 most frequent colours of a sampled frame, after
// a transparent entry, and pads the rest with greys.
func buildPalette(img image.Image) color.Palette {
	const step = 4

	b := img.Bounds()
	counts := make(map[color.RGBA]int)
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			counts[c]++
		}
	}

	colors := make([]color.RGBA, 0, len(counts))
	for c := range counts {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if counts[colors[i]] != counts[colors[j]] {
			return counts[colors[i]] > counts[colors[j]]
		}
		return rgbaKey(colors[i]) < rgbaKey(colors[j])
	})

	palette := make(color.Palette, 0, 256)
	palette = append(palette, color.RGBA{})
	for _, c := range colors {
		if len(palette) == 256 {
			break
		}
		palette = append(palette, c)
	}
	for len(palette) < 256 {
		v := uint8(len(palette))
		palette = append(palette, color.RGBA{v, v, v, 255})
	}
	return palette
}

func rgbaKey(c color.RGBA) uint32 {
	return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
}
