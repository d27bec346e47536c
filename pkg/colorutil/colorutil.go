// Package colorutil provides shared color utilities for the slider solver.
package colorutil

import (
	"image/color"
	"math"
)

// Common reference canvas colors.
var (
	Black       = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	White       = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	Transparent = color.NRGBA{}
)

// maxYIQDelta is the largest possible squared YIQ delta.
const maxYIQDelta = 35215.0

// YIQ weights for the squared delta, from Kotsarenko & Ramos,
// "Measuring perceived color difference using YIQ NTSC transmission color space".
const (
	weightY = 0.5053
	weightI = 0.299
	weightQ = 0.1957
)

// blendWhite composites a non-premultiplied channel value onto white.
func blendWhite(c, a uint8) float64 {
	return 255 + (float64(c)-255)*float64(a)/255
}

func rgbToY(r, g, b float64) float64 {
	return r*0.29889531 + g*0.58662247 + b*0.11448223
}

func rgbToI(r, g, b float64) float64 {
	return r*0.59597799 - g*0.27417610 - b*0.32180189
}

func rgbToQ(r, g, b float64) float64 {
	return r*0.21147017 - g*0.52261711 + b*0.31114694
}

// YIQDelta returns the squared perceptual distance between two
// non-premultiplied colors after blending both onto white.
// The result is in [0, 35215].
func YIQDelta(c1, c2 color.NRGBA) float64 {
	if c1 == c2 {
		return 0
	}
	r1, g1, b1 := blendWhite(c1.R, c1.A), blendWhite(c1.G, c1.A), blendWhite(c1.B, c1.A)
	r2, g2, b2 := blendWhite(c2.R, c2.A), blendWhite(c2.G, c2.A), blendWhite(c2.B, c2.A)

	y := rgbToY(r1, g1, b1) - rgbToY(r2, g2, b2)
	i := rgbToI(r1, g1, b1) - rgbToI(r2, g2, b2)
	q := rgbToQ(r1, g1, b1) - rgbToQ(r2, g2, b2)

	return weightY*y*y + weightI*i*i + weightQ*q*q
}

// YIQDistance returns the perceptual distance normalized to [0, 1].
// Black and white are about 0.97 apart.
func YIQDistance(c1, c2 color.NRGBA) float64 {
	d := YIQDelta(c1, c2) / maxYIQDelta
	if d >= 1 {
		return 1
	}
	return math.Sqrt(d)
}

// Luma returns the BT.601 luma of an RGB triple in fixed point, rounded
// the same way OpenCV's RGB2GRAY conversion rounds.
func Luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*4899 + uint32(g)*9617 + uint32(b)*1868 + 8192) >> 14)
}
