// Package sim is an in-memory slider puzzle page. It renders a background
// with a slot and an overlay with the matching piece, moves the piece with
// the pointer and reports success when the piece is released over the slot.
package sim

import (
	"image"
	"image/color"
	"math/rand"

	"slider-solver/internal/raster"
	"slider-solver/pkg/colorutil"
	"slider-solver/pkg/geometry"
)

// Scene describes what the page renders.
type Scene struct {
	Width, Height int

	Slot   geometry.PointInt // Slot center in the background
	Piece  geometry.PointInt // Piece center in the overlay at rest
	Radius int

	Handle geometry.Rect // Slider handle at rest

	Background color.NRGBA
	SlotColor  color.NRGBA
	PieceColor color.NRGBA

	// Noise is the amplitude of the seeded texture added to the background.
	Noise int
	Seed  int64
}

// DefaultScene is a 320x160 puzzle with the slot 190 px right of the piece.
func DefaultScene() Scene {
	return Scene{
		Width:      320,
		Height:     160,
		Slot:       geometry.PointInt{X: 220, Y: 75},
		Piece:      geometry.PointInt{X: 30, Y: 75},
		Radius:     20,
		Handle:     geometry.NewRect(10, 200, 40, 40),
		Background: color.NRGBA{R: 60, G: 60, B: 60, A: 255},
		SlotColor:  colorutil.White,
		PieceColor: color.NRGBA{R: 220, G: 30, B: 30, A: 255},
		Noise:      6,
		Seed:       1,
	}
}

// Distance is the offset that puts the piece onto the slot.
func (s Scene) Distance() int {
	return s.Slot.X - s.Piece.X
}

// Render draws the background and the overlay at rest.
func (s Scene) Render() (bg, overlay *raster.Image) {
	b := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	rng := rand.New(rand.NewSource(s.Seed))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			b.SetNRGBA(x, y, jitter(s.Background, rng, s.Noise))
		}
	}
	drawDisk(b, s.Slot, s.Radius, s.SlotColor)

	o := image.NewNRGBA(image.Rect(0, 0, s.Width, s.Height))
	drawDisk(o, s.Piece, s.Radius, s.PieceColor)

	return raster.FromImage(b), raster.FromImage(o)
}

func jitter(c color.NRGBA, rng *rand.Rand, amp int) color.NRGBA {
	if amp <= 0 {
		return c
	}
	d := rng.Intn(2*amp+1) - amp
	return color.NRGBA{R: clamp(int(c.R) + d), G: clamp(int(c.G) + d), B: clamp(int(c.B) + d), A: c.A}
}

func clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// drawDisk fills a disk and draws a half-transparent one pixel rim around
// it, like an anti-aliased edge.
func drawDisk(img *image.NRGBA, c geometry.PointInt, r int, col color.NRGBA) {
	rim := col
	rim.A = col.A / 2
	inner, outer := r*r, (r+1)*(r+1)
	for y := c.Y - r - 1; y <= c.Y+r+1; y++ {
		for x := c.X - r - 1; x <= c.X+r+1; x++ {
			d := (x-c.X)*(x-c.X) + (y-c.Y)*(y-c.Y)
			switch {
			case d <= inner:
				img.SetNRGBA(x, y, col)
			case d <= outer:
				img.SetNRGBA(x, y, over(img.NRGBAAt(x, y), rim))
			}
		}
	}
}

// over composites src onto dst.
func over(dst, src color.NRGBA) color.NRGBA {
	sa := int(src.A)
	da := int(dst.A) * (255 - sa) / 255
	a := sa + da
	if a == 0 {
		return color.NRGBA{}
	}
	mix := func(s, d uint8) uint8 {
		return uint8((int(s)*sa + int(d)*da) / a)
	}
	return color.NRGBA{R: mix(src.R, dst.R), G: mix(src.G, dst.G), B: mix(src.B, dst.B), A: uint8(a)}
}
