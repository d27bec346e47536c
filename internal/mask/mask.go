// Package mask provides binary silhouette masks and their extraction from
// raster images by perceptual pixel difference against a flat reference.
package mask

import (
	"errors"
	"fmt"
	"image"

	"slider-solver/pkg/geometry"
)

// Pixel values. Foreground is stored as 255 so a mask can be handed to
// single-channel consumers without conversion.
const (
	Background uint8 = 0
	Foreground uint8 = 255
)

var (
	// ErrNoSilhouetteFound is returned when extraction leaves no foreground pixels.
	ErrNoSilhouetteFound = errors.New("no silhouette found")
	// ErrSizeMismatch is returned when an image and its reference differ in size.
	ErrSizeMismatch = errors.New("image and reference sizes differ")
)

// Mask is a width x height binary image.
type Mask struct {
	width  int
	height int
	pix    []uint8
}

// New creates an all-background mask.
func New(width, height int) *Mask {
	return &Mask{width: width, height: height, pix: make([]uint8, width*height)}
}

// FromBytes creates a mask from single-channel bytes; any non-zero byte is foreground.
func FromBytes(width, height int, data []byte) (*Mask, error) {
	if width <= 0 || height <= 0 || len(data) != width*height {
		return nil, fmt.Errorf("invalid mask buffer: %d bytes for %dx%d", len(data), width, height)
	}
	m := New(width, height)
	for i, v := range data {
		if v != 0 {
			m.pix[i] = Foreground
		}
	}
	return m, nil
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// At reports whether (x, y) is foreground. Out-of-range pixels are background.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return false
	}
	return m.pix[y*m.width+x] != Background
}

// Set marks (x, y) as foreground or background. Out-of-range writes are ignored.
func (m *Mask) Set(x, y int, fg bool) {
	if x < 0 || y < 0 || x >= m.width || y >= m.height {
		return
	}
	if fg {
		m.pix[y*m.width+x] = Foreground
	} else {
		m.pix[y*m.width+x] = Background
	}
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.pix {
		if v != Background {
			n++
		}
	}
	return n
}

// Bounds returns the bounding box of all foreground pixels, or an empty
// rectangle when there are none.
func (m *Mask) Bounds() geometry.RectInt {
	minX, minY := m.width, m.height
	maxX, maxY := -1, -1
	for y := 0; y < m.height; y++ {
		row := m.pix[y*m.width : (y+1)*m.width]
		for x, v := range row {
			if v == Background {
				continue
			}
			minX = min(minX, x)
			maxX = max(maxX, x)
			minY = min(minY, y)
			maxY = max(maxY, y)
		}
	}
	if maxX < 0 {
		return geometry.RectInt{}
	}
	return geometry.RectInt{X: minX, Y: minY, Width: maxX - minX + 1, Height: maxY - minY + 1}
}

// Crop copies the region r into a new mask of r's size. Parts of r that lie
// outside the source are background. An empty r gives a 0x0 mask.
func (m *Mask) Crop(r geometry.RectInt) *Mask {
	if r.Empty() {
		return New(0, 0)
	}
	out := New(r.Width, r.Height)
	for y := 0; y < r.Height; y++ {
		sy := r.Y + y
		if sy < 0 || sy >= m.height {
			continue
		}
		for x := 0; x < r.Width; x++ {
			sx := r.X + x
			if sx < 0 || sx >= m.width {
				continue
			}
			out.pix[y*r.Width+x] = m.pix[sy*m.width+sx]
		}
	}
	return out
}

// Equal reports whether two masks have the same size and pixels.
func (m *Mask) Equal(other *Mask) bool {
	if m.width != other.width || m.height != other.height {
		return false
	}
	for i := range m.pix {
		if m.pix[i] != other.pix[i] {
			return false
		}
	}
	return true
}

// Bytes returns a copy of the mask as single-channel 0/255 bytes.
func (m *Mask) Bytes() []byte {
	buf := make([]byte, len(m.pix))
	copy(buf, m.pix)
	return buf
}

// Image returns the mask as a grayscale image, for debug output.
func (m *Mask) Image() *image.Gray {
	return &image.Gray{Pix: m.Bytes(), Stride: m.width, Rect: image.Rect(0, 0, m.width, m.height)}
}
