package mask

import (
	"fmt"
	"strings"

	"slider-solver/internal/raster"
)

// Op is a single morphological operation.
type Op int

const (
	// OpErode keeps a pixel only if its whole neighborhood is foreground.
	OpErode Op = iota
	// OpDilate sets a pixel if any neighbor is foreground.
	OpDilate
)

func (o Op) String() string {
	switch o {
	case OpErode:
		return "erode"
	case OpDilate:
		return "dilate"
	default:
		return "unknown"
	}
}

// ParseOp parses "erode" or "dilate".
func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "erode":
		return OpErode, nil
	case "dilate":
		return OpDilate, nil
	}
	return 0, fmt.Errorf("unknown morphology op %q", s)
}

// Morphology is a cleanup sequence applied with a Kernel x Kernel all-ones
// structuring element anchored at its center.
type Morphology struct {
	Ops    []Op
	Kernel int
}

// NoiseCleanup removes speckle and reconnects small gaps. Used for the piece.
func NoiseCleanup() Morphology {
	return Morphology{Ops: []Op{OpErode, OpDilate, OpErode, OpDilate}, Kernel: 3}
}

// ShapeTightening closes the outline of a cut-out. Used for the slot.
func ShapeTightening() Morphology {
	return Morphology{Ops: []Op{OpDilate, OpErode}, Kernel: 5}
}

// Validate checks the kernel size.
func (m Morphology) Validate() error {
	if len(m.Ops) == 0 {
		return nil
	}
	if m.Kernel < 1 || m.Kernel%2 == 0 {
		return fmt.Errorf("morphology kernel must be a positive odd size, got %d", m.Kernel)
	}
	return nil
}

func (m Morphology) String() string {
	names := make([]string, len(m.Ops))
	for i, op := range m.Ops {
		names[i] = op.String()
	}
	return fmt.Sprintf("%s (%dx%d)", strings.Join(names, "->"), m.Kernel, m.Kernel)
}

// Apply runs the sequence and returns a new mask.
func (m *Mask) Apply(morph Morphology) *Mask {
	out := m
	for _, op := range morph.Ops {
		switch op {
		case OpErode:
			out = out.Erode(morph.Kernel)
		case OpDilate:
			out = out.Dilate(morph.Kernel)
		}
	}
	if out == m {
		out = &Mask{width: m.width, height: m.height, pix: m.Bytes()}
	}
	return out
}

// Erode returns the erosion with a k x k all-ones element.
// Neighbors outside the mask do not take part.
func (m *Mask) Erode(k int) *Mask {
	return m.rectFilter(k, true)
}

// Dilate returns the dilation with a k x k all-ones element.
func (m *Mask) Dilate(k int) *Mask {
	return m.rectFilter(k, false)
}

// rectFilter applies a separable min (erode) or max (dilate) filter:
// one horizontal pass, then one vertical pass.
func (m *Mask) rectFilter(k int, erode bool) *Mask {
	r := k / 2
	w, h := m.width, m.height

	// In both passes "hit" is the value that decides the result as soon as it
	// appears in the window: background for erosion, foreground for dilation.
	hit, miss := Foreground, Background
	if erode {
		hit, miss = Background, Foreground
	}

	tmp := make([]uint8, w*h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := m.pix[y*w : (y+1)*w]
			for x := 0; x < w; x++ {
				v := miss
				for xx := max(0, x-r); xx <= min(w-1, x+r); xx++ {
					if row[xx] == hit {
						v = hit
						break
					}
				}
				tmp[y*w+x] = v
			}
		}
	})

	out := New(w, h)
	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				v := miss
				for yy := max(0, y-r); yy <= min(h-1, y+r); yy++ {
					if tmp[yy*w+x] == hit {
						v = hit
						break
					}
				}
				out.pix[y*w+x] = v
			}
		}
	})
	return out
}
