package mask

import (
	"errors"
	"image/color"
	"testing"

	"slider-solver/internal/raster"
	"slider-solver/pkg/colorutil"
	"slider-solver/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var red = color.NRGBA{R: 255, A: 255}

// paint returns a copy of img with the rectangle filled with c.
func paint(t *testing.T, img *raster.Image, r geometry.RectInt, c color.NRGBA) *raster.Image {
	t.Helper()
	n := img.NRGBA()
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			n.SetNRGBA(x, y, c)
		}
	}
	return raster.FromImage(n)
}

func squareImage(t *testing.T, w, h int, sq geometry.RectInt, withAntialias bool) *raster.Image {
	t.Helper()
	img := raster.Filled(w, h, colorutil.White)
	if withAntialias {
		// A faint ring around the square, as a renderer would leave.
		img = paint(t, img, sq.Expand(1), color.NRGBA{R: 255, G: 191, B: 191, A: 255})
	}
	return paint(t, img, sq, red)
}

func TestExtractSquareArea(t *testing.T) {
	const w, h = 400, 200
	sq := geometry.RectInt{X: 120, Y: 60, Width: w / 4, Height: h / 4}
	img := squareImage(t, w, h, sq, true)

	m, err := Extract(img, ReferenceWhite.Canvas(img), DefaultParams())
	require.NoError(t, err)

	area := float64(sq.Width * sq.Height)
	assert.InDelta(t, area, float64(m.Count()), area*0.05)
	assert.Equal(t, sq, m.Bounds())
}

func TestExtractIsDeterministic(t *testing.T) {
	sq := geometry.RectInt{X: 30, Y: 20, Width: 40, Height: 25}
	img := squareImage(t, 160, 90, sq, true)
	ref := ReferenceWhite.Canvas(img)

	first, err := Extract(img, ref, DefaultParams())
	require.NoError(t, err)
	second, err := Extract(img, ref, DefaultParams())
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	raster.Workers = 1
	defer func() { raster.Workers = 0 }()
	serial, err := Extract(img, ref, DefaultParams())
	require.NoError(t, err)
	assert.True(t, first.Equal(serial), "worker count must not change the mask")
}

func TestExtractRemovesSpeckle(t *testing.T) {
	sq := geometry.RectInt{X: 40, Y: 40, Width: 30, Height: 30}
	img := squareImage(t, 120, 120, sq, false)
	for _, p := range []geometry.PointInt{{X: 5, Y: 5}, {X: 100, Y: 10}, {X: 10, Y: 100}} {
		img = paint(t, img, geometry.RectInt{X: p.X, Y: p.Y, Width: 1, Height: 1}, colorutil.Black)
	}

	raw, err := Difference(img, ReferenceWhite.Canvas(img), 0.3)
	require.NoError(t, err)
	assert.Equal(t, 30*30+3, raw.Count())

	m, err := Extract(img, ReferenceWhite.Canvas(img), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 30*30, m.Count())
	assert.Equal(t, sq, m.Bounds())
}

func TestExtractTransparentReference(t *testing.T) {
	img := raster.Filled(60, 40, colorutil.Transparent)
	img = paint(t, img, geometry.RectInt{X: 10, Y: 10, Width: 20, Height: 12}, red)

	m, err := Extract(img, ReferenceTransparent.Canvas(img), DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 20*12, m.Count())
}

func TestExtractBorderReference(t *testing.T) {
	gray := color.NRGBA{R: 60, G: 60, B: 60, A: 255}
	img := raster.Filled(80, 50, gray)
	img = paint(t, img, geometry.RectInt{X: 30, Y: 15, Width: 20, Height: 20}, colorutil.White)

	params := DefaultParams().WithMorphology(ShapeTightening())
	m, err := Extract(img, ReferenceBorder.Canvas(img), params)
	require.NoError(t, err)
	assert.Equal(t, geometry.RectInt{X: 30, Y: 15, Width: 20, Height: 20}, m.Bounds())
}

func TestExtractErrors(t *testing.T) {
	blank := raster.Filled(20, 20, colorutil.White)

	_, err := Extract(blank, ReferenceWhite.Canvas(blank), DefaultParams())
	assert.ErrorIs(t, err, ErrNoSilhouetteFound)

	_, err = Extract(blank, raster.Filled(21, 20, colorutil.White), DefaultParams())
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Extract(blank, blank, DefaultParams().WithThreshold(0))
	assert.Error(t, err)

	_, err = Extract(blank, blank, DefaultParams().WithMorphology(Morphology{Ops: []Op{OpErode}, Kernel: 4}))
	assert.Error(t, err)
}

type countingCleaner struct {
	calls int
	err   error
}

func (c *countingCleaner) Clean(m *Mask, morph Morphology) (*Mask, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return m.Apply(morph), nil
}

func TestExtractWithCleaner(t *testing.T) {
	img := squareImage(t, 80, 40, geometry.RectInt{X: 20, Y: 10, Width: 15, Height: 15}, true)
	ref := ReferenceWhite.Canvas(img)

	want, err := Extract(img, ref, DefaultParams())
	require.NoError(t, err)

	c := &countingCleaner{}
	got, err := ExtractWith(img, ref, DefaultParams(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, c.calls)
	assert.True(t, want.Equal(got))

	c.err = errors.New("backend down")
	_, err = ExtractWith(img, ref, DefaultParams(), c)
	assert.ErrorContains(t, err, "backend down")
	assert.ErrorContains(t, err, "erode->dilate")
}

func TestErodeDilate(t *testing.T) {
	m := New(9, 9)
	for y := 2; y <= 6; y++ {
		for x := 2; x <= 6; x++ {
			m.Set(x, y, true)
		}
	}

	eroded := m.Erode(3)
	assert.Equal(t, geometry.RectInt{X: 3, Y: 3, Width: 3, Height: 3}, eroded.Bounds())
	assert.Equal(t, 9, eroded.Count())

	dilated := m.Dilate(3)
	assert.Equal(t, geometry.RectInt{X: 1, Y: 1, Width: 7, Height: 7}, dilated.Bounds())

	// Erosion ignores pixels outside the mask, so a region touching the
	// border does not shrink away from it.
	full := New(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			full.Set(x, y, true)
		}
	}
	assert.Equal(t, 16, full.Erode(3).Count())

	// Closing fills a one pixel gap.
	gap := m.Apply(Morphology{})
	gap.Set(4, 4, false)
	assert.Equal(t, 24, gap.Count())
	closed := gap.Apply(Morphology{Ops: []Op{OpDilate, OpErode}, Kernel: 3})
	assert.True(t, closed.At(4, 4))
}

func TestCrop(t *testing.T) {
	m := New(10, 10)
	m.Set(0, 0, true)
	m.Set(3, 3, true)

	c := m.Crop(geometry.RectInt{X: -2, Y: -2, Width: 7, Height: 7})
	assert.Equal(t, 7, c.Width())
	assert.True(t, c.At(2, 2))
	assert.True(t, c.At(5, 5))
	assert.False(t, c.At(0, 0))
	assert.Equal(t, 2, c.Count())

	empty := m.Crop(geometry.RectInt{X: 2, Y: 2, Width: 4, Height: -1})
	assert.Equal(t, 0, empty.Width())
	assert.Equal(t, 0, empty.Count())
}

func TestParseHelpers(t *testing.T) {
	op, err := ParseOp("Dilate")
	require.NoError(t, err)
	assert.Equal(t, OpDilate, op)
	_, err = ParseOp("open")
	assert.Error(t, err)

	ref, err := ParseReference("transparent")
	require.NoError(t, err)
	assert.Equal(t, ReferenceTransparent, ref)

	assert.Equal(t, "erode->dilate->erode->dilate (3x3)", NoiseCleanup().String())
}
