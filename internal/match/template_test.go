package match

import (
	"image/color"
	"math/rand"
	"testing"

	"slider-solver/internal/mask"
	"slider-solver/internal/raster"
	"slider-solver/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ringTemplate(size int) *mask.Mask {
	m := mask.New(size, size)
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := (x-c)*(x-c) + (y-c)*(y-c)
			if d <= (c-1)*(c-1) && d >= (c-4)*(c-4) {
				m.Set(x, y, true)
			}
		}
	}
	return m
}

// noiseWithTemplate fills a w x h image with seeded gray noise and stamps
// tmpl at at, white on black.
func noiseWithTemplate(t *testing.T, w, h int, tmpl *mask.Mask, at geometry.PointInt) *raster.Image {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := raster.Filled(w, h, color.NRGBA{A: 255}).NRGBA()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(rng.Intn(256))
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	for y := 0; y < tmpl.Height(); y++ {
		for x := 0; x < tmpl.Width(); x++ {
			v := uint8(0)
			if tmpl.At(x, y) {
				v = 255
			}
			img.SetNRGBA(at.X+x, at.Y+y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return raster.FromImage(img)
}

func TestTemplateFindsExactCopy(t *testing.T) {
	tmpl := ringTemplate(21)
	at := geometry.PointInt{X: 97, Y: 31}
	target := noiseWithTemplate(t, 200, 80, tmpl, at)

	res, err := Template(target, tmpl)
	require.NoError(t, err)
	assert.Equal(t, at, res.Anchor)
	assert.Greater(t, res.Score, 0.99)
}

func TestTemplateWorkerInvariance(t *testing.T) {
	tmpl := ringTemplate(15)
	target := noiseWithTemplate(t, 120, 60, tmpl, geometry.PointInt{X: 40, Y: 20})

	parallel, err := Scores(target, tmpl)
	require.NoError(t, err)

	raster.Workers = 1
	defer func() { raster.Workers = 0 }()
	serial, err := Scores(target, tmpl)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestTemplateTooLarge(t *testing.T) {
	target := raster.Filled(10, 10, color.NRGBA{A: 255})

	_, err := Template(target, mask.New(11, 5))
	assert.ErrorIs(t, err, ErrTemplateTooLarge)

	_, err = Matcher{}.Match(target, mask.New(5, 11))
	assert.ErrorIs(t, err, ErrTemplateTooLarge)
}

func TestScoresTooLargeInOneDimension(t *testing.T) {
	target := raster.Filled(10, 10, color.NRGBA{A: 255})

	tests := []struct {
		name string
		w, h int
	}{
		{"wider", 12, 3},
		{"taller", 3, 12},
		{"both", 11, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := Scores(target, mask.New(tt.w, tt.h))
			assert.ErrorIs(t, err, ErrTemplateTooLarge)
			assert.Nil(t, scores)
		})
	}

	_, err := Scores(target, mask.New(0, 0))
	assert.Error(t, err)
}

func TestTemplateFlatInputsScoreZero(t *testing.T) {
	// A uniform target has no variance anywhere, so every window scores 0
	// and the first one wins.
	flat := raster.Filled(30, 20, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	res, err := Template(flat, ringTemplate(9))
	require.NoError(t, err)
	assert.Equal(t, geometry.PointInt{}, res.Anchor)
	assert.Zero(t, res.Score)

	// Same for a template without variance.
	solid := mask.New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			solid.Set(x, y, true)
		}
	}
	target := noiseWithTemplate(t, 30, 20, ringTemplate(9), geometry.PointInt{X: 10, Y: 5})
	scores, err := Scores(target, solid)
	require.NoError(t, err)
	for _, s := range scores {
		assert.Zero(t, s)
	}
}

func TestTemplateTiesGoToFirst(t *testing.T) {
	tmpl := mask.New(3, 1)
	tmpl.Set(1, 0, true)

	// Two identical bright dots on black: both windows score 1.
	img := raster.Filled(12, 3, color.NRGBA{A: 255}).NRGBA()
	white := color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	img.SetNRGBA(8, 1, white)
	img.SetNRGBA(3, 1, white)

	res, err := Template(raster.FromImage(img), tmpl)
	require.NoError(t, err)
	assert.Equal(t, geometry.PointInt{X: 2, Y: 1}, res.Anchor)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
}

func TestTemplateAnticorrelation(t *testing.T) {
	tmpl := mask.New(3, 1)
	tmpl.Set(1, 0, true)
	// A dark dot on white matches worst where the template expects bright.
	img := raster.Filled(5, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255}).NRGBA()
	img.SetNRGBA(2, 0, color.NRGBA{A: 255})

	scores, err := Scores(raster.FromImage(img), tmpl)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, -1.0, scores[1], 1e-9)
}
