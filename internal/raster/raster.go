// Package raster provides the immutable RGBA pixel buffer the solver works on,
// plus decoding, conversion and the small set of transforms the pipeline needs.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"slider-solver/pkg/colorutil"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidBuffer is returned when a pixel buffer does not match its dimensions.
var ErrInvalidBuffer = errors.New("invalid raster buffer")

// Image is an immutable, non-premultiplied RGBA buffer, 4 bytes per pixel,
// row-major with no padding. Every transform returns a new Image.
//
// Image implements image.Image so it can be encoded or drawn directly.
type Image struct {
	width  int
	height int
	pix    []byte
}

// New creates an Image from a copy of pix. len(pix) must equal width*height*4.
func New(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidBuffer, width, height)
	}
	if len(pix) != width*height*4 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d", ErrInvalidBuffer, len(pix), width, height)
	}
	buf := make([]byte, len(pix))
	copy(buf, pix)
	return &Image{width: width, height: height, pix: buf}, nil
}

// Filled creates a flat canvas of a single color. Used for reference canvases.
func Filled(width, height int, c color.NRGBA) *Image {
	pix := make([]byte, width*height*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = c.R
		pix[i+1] = c.G
		pix[i+2] = c.B
		pix[i+3] = c.A
	}
	return &Image{width: width, height: height, pix: pix}
}

// FromImage converts any image.Image into a raster Image.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if n, ok := src.(*image.NRGBA); ok && n.Stride == w*4 {
		pix := make([]byte, w*h*4)
		copy(pix, n.Pix[n.PixOffset(b.Min.X, b.Min.Y):])
		return &Image{width: w, height: h, pix: pix}
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Image{width: w, height: h, pix: dst.Pix}
}

// Decode reads an encoded image (PNG, JPEG, GIF, WebP, BMP or TIFF).
func Decode(r io.Reader) (*Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), format, nil
}

// Load decodes an image file from disk.
func Load(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Save writes the image as PNG, creating the parent directory if needed.
func (m *Image) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Width returns the image width in pixels.
func (m *Image) Width() int { return m.width }

// Height returns the image height in pixels.
func (m *Image) Height() int { return m.height }

// SameSize reports whether two images share dimensions.
func (m *Image) SameSize(other *Image) bool {
	return m.width == other.width && m.height == other.height
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.NRGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// At implements image.Image.
func (m *Image) At(x, y int) color.Color { return m.NRGBAAt(x, y) }

// NRGBAAt returns the pixel at (x, y). Out-of-range reads are transparent.
func (m *Image) NRGBAAt(x, y int) color.NRGBA {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return colorutil.Transparent
	}
	i := (y*m.width + x) * 4
	return color.NRGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: m.pix[i+3]}
}

// Pix returns a copy of the underlying buffer.
func (m *Image) Pix() []byte {
	buf := make([]byte, len(m.pix))
	copy(buf, m.pix)
	return buf
}

// NRGBA returns a mutable copy as a standard library image.
func (m *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{Pix: m.Pix(), Stride: m.width * 4, Rect: m.Bounds()}
}

// Luma converts to a single-channel BT.601 luma plane, blending any
// transparency onto white first.
func (m *Image) Luma() []uint8 {
	out := make([]uint8, m.width*m.height)
	ParallelRows(m.height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := y * m.width
			for x := 0; x < m.width; x++ {
				i := (row + x) * 4
				a := m.pix[i+3]
				out[row+x] = colorutil.Luma(onWhite(m.pix[i], a), onWhite(m.pix[i+1], a), onWhite(m.pix[i+2], a))
			}
		}
	})
	return out
}

func onWhite(c, a uint8) uint8 {
	if a == 255 {
		return c
	}
	return uint8(255 - (uint32(255-c)*uint32(a)+127)/255)
}

// Resize scales the image to width x height with bilinear filtering.
func (m *Image) Resize(width, height int) *Image {
	if width == m.width && height == m.height {
		return m
	}
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), m, m.Bounds(), draw.Src, nil)
	return &Image{width: width, height: height, pix: dst.Pix}
}

// Reframe places the image at the top-left of a width x height canvas of
// fill, at native scale. Content beyond the new bounds is cut off.
func (m *Image) Reframe(width, height int, fill color.NRGBA) *Image {
	if width == m.width && height == m.height {
		return m
	}
	out := Filled(width, height, fill)
	cw := min(width, m.width) * 4
	for y := 0; y < min(height, m.height); y++ {
		copy(out.pix[y*width*4:y*width*4+cw], m.pix[y*m.width*4:])
	}
	return out
}

// Translate shifts the content by (dx, dy), filling uncovered pixels with fill.
func (m *Image) Translate(dx, dy int, fill color.NRGBA) *Image {
	out := Filled(m.width, m.height, fill)
	for y := 0; y < m.height; y++ {
		sy := y - dy
		if sy < 0 || sy >= m.height {
			continue
		}
		for x := 0; x < m.width; x++ {
			sx := x - dx
			if sx < 0 || sx >= m.width {
				continue
			}
			copy(out.pix[(y*m.width+x)*4:(y*m.width+x)*4+4], m.pix[(sy*m.width+sx)*4:])
		}
	}
	return out
}

// BorderColor samples the border pixels and returns their average color.
// Useful as a flat reference canvas for a mostly uniform background.
func (m *Image) BorderColor() color.NRGBA {
	var r, g, b, a, count uint64
	add := func(x, y int) {
		c := m.NRGBAAt(x, y)
		r += uint64(c.R)
		g += uint64(c.G)
		b += uint64(c.B)
		a += uint64(c.A)
		count++
	}

	for x := 0; x < m.width; x++ {
		add(x, 0)
		add(x, m.height-1)
	}
	for y := 1; y < m.height-1; y++ {
		add(0, y)
		add(m.width-1, y)
	}

	if count == 0 {
		return colorutil.White
	}
	return color.NRGBA{
		R: uint8(r / count),
		G: uint8(g / count),
		B: uint8(b / count),
		A: uint8(a / count),
	}
}
