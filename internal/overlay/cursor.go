// Package overlay marks pointer activity on recorded frames.
package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Mark is a pointer position on a frame. Pressed adds a ripple around it.
type Mark struct {
	X, Y    int
	Pressed bool
}

var (
	outline = color.RGBA{0, 0, 0, 255}
	fill    = color.RGBA{255, 255, 255, 255}
	ripple  = color.RGBA{66, 133, 244, 255}
)

// arrow is the pointer outline, relative to its tip.
var arrow = []image.Point{
	{0, 0}, {0, 16}, {4, 12}, {7, 18}, {10, 17}, {7, 11}, {12, 11},
}

// Draw returns a copy of frame with the pointer drawn at m.
func Draw(frame image.Image, m Mark) *image.RGBA {
	b := frame.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, frame, b.Min, draw.Src)

	if m.Pressed {
		circle(out, m.X, m.Y, 15)
		circle(out, m.X, m.Y, 16)
	}
	pointer(out, m.X, m.Y)
	return out
}

func pointer(img *image.RGBA, x, y int) {
	for dy := 0; dy <= 18; dy++ {
		for dx := 0; dx <= 12; dx++ {
			if inside(arrow, dx, dy) {
				set(img, x+dx, y+dy, fill)
			}
		}
	}
	for i, p := range arrow {
		q := arrow[(i+1)%len(arrow)]
		line(img, x+p.X, y+p.Y, x+q.X, y+q.Y, outline)
	}
}

// inside is an even-odd point-in-polygon test.
func inside(poly []image.Point, x, y int) bool {
	in := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > y) != (b.Y > y) &&
			float64(x) < float64(b.X-a.X)*float64(y-a.Y)/float64(b.Y-a.Y)+float64(a.X) {
			in = !in
		}
	}
	return in
}

// line is Bresenham's algorithm.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		set(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func circle(img *image.RGBA, cx, cy, r int) {
	steps := int(2 * math.Pi * float64(r) * 2)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		set(img, cx+int(math.Round(float64(r)*math.Cos(a))), cy+int(math.Round(float64(r)*math.Sin(a))), ripple)
	}
}

func set(img *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{x, y}).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
