// Package contour finds the external contours of a binary mask and locates
// the centroid of a silhouette from its image moments.
package contour

import (
	"errors"
	"fmt"
	"strings"

	"slider-solver/internal/mask"
	"slider-solver/pkg/geometry"
)

// ErrEmptyRegion is returned when there are no foreground pixels to take a
// centroid of.
var ErrEmptyRegion = errors.New("empty region")

// Selection decides which contour is used when a mask holds several
// disjoint regions.
type Selection int

const (
	// SelectLargest picks the contour with the largest area (m00). Ties go
	// to the contour found first in raster order.
	SelectLargest Selection = iota
	// SelectFirst picks the first contour in raster order of its top-most,
	// then left-most pixel, regardless of size.
	SelectFirst
)

func (s Selection) String() string {
	switch s {
	case SelectLargest:
		return "largest"
	case SelectFirst:
		return "first"
	default:
		return "unknown"
	}
}

// ParseSelection parses "largest" or "first".
func ParseSelection(s string) (Selection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "largest":
		return SelectLargest, nil
	case "first":
		return SelectFirst, nil
	}
	return 0, fmt.Errorf("unknown contour selection %q", s)
}

// Contour is the ordered outer boundary of one 8-connected foreground
// region, together with the moments of the region it encloses.
type Contour struct {
	Points []geometry.PointInt

	moments Moments
}

// Start returns the first boundary pixel, which is the region's top-most,
// left-most pixel.
func (c Contour) Start() geometry.PointInt {
	if len(c.Points) == 0 {
		return geometry.PointInt{}
	}
	return c.Points[0]
}

// Bounds returns the bounding box of the boundary pixels.
func (c Contour) Bounds() geometry.RectInt {
	return geometry.BoundingBox(c.Points)
}

// Moments returns the raw moments of the filled region.
func (c Contour) Moments() Moments {
	return c.moments
}

// Solidity returns the area of the boundary polygon divided by the area of
// its convex hull. A convex silhouette scores close to 1; degenerate
// contours score 0.
func (c Contour) Solidity() float64 {
	pts := make([]geometry.Point2D, len(c.Points))
	for i, p := range c.Points {
		pts[i] = p.ToFloat()
	}
	hullArea := geometry.PolygonArea(geometry.ConvexHull(pts))
	if hullArea == 0 {
		return 0
	}
	return geometry.PolygonArea(pts) / hullArea
}

// 8-neighborhood offsets, counter-clockwise on screen starting east.
var neighbors = [8]geometry.PointInt{
	{X: 1, Y: 0},   // E
	{X: 1, Y: -1},  // NE
	{X: 0, Y: -1},  // N
	{X: -1, Y: -1}, // NW
	{X: -1, Y: 0},  // W
	{X: -1, Y: 1},  // SW
	{X: 0, Y: 1},   // S
	{X: 1, Y: 1},   // SE
}

const west = 4

// FindExternal returns the outer contour of every foreground region that is
// not enclosed by another region, ordered by raster position of each
// region's first pixel. Holes and regions inside holes are ignored.
func FindExternal(m *mask.Mask) []Contour {
	w, h := m.Width(), m.Height()
	if w == 0 || h == 0 {
		return nil
	}

	outside := exteriorBackground(m)
	labeled := make([]bool, w*h)
	filled := make([]bool, w*h)
	var contours []Contour
	var stack []int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := y*w + x
			if labeled[idx] || !m.At(x, y) {
				continue
			}

			// Flood the 8-connected region, noting whether it touches the
			// background that surrounds the whole mask.
			external := false
			labeled[idx] = true
			stack = append(stack[:0], idx)
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				cx, cy := cur%w, cur/w

				if cx == 0 || cy == 0 || cx == w-1 || cy == h-1 {
					external = true
				}
				for d, n := range neighbors {
					nx, ny := cx+n.X, cy+n.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					nidx := ny*w + nx
					if !m.At(nx, ny) {
						if d%2 == 0 && outside[nidx] {
							external = true
						}
						continue
					}
					if !labeled[nidx] {
						labeled[nidx] = true
						stack = append(stack, nidx)
					}
				}
			}

			if external {
				contours = append(contours, Contour{
					Points:  trace(m, geometry.PointInt{X: x, Y: y}),
					moments: fillMoments(outside, filled, w, h, idx),
				})
			}
		}
	}
	return contours
}

// exteriorBackground marks background pixels 4-connected to the mask border.
func exteriorBackground(m *mask.Mask) []bool {
	w, h := m.Width(), m.Height()
	outside := make([]bool, w*h)
	var stack []int

	seed := func(x, y int) {
		idx := y*w + x
		if !outside[idx] && !m.At(x, y) {
			outside[idx] = true
			stack = append(stack, idx)
		}
	}
	for x := 0; x < w; x++ {
		seed(x, 0)
		seed(x, h-1)
	}
	for y := 0; y < h; y++ {
		seed(0, y)
		seed(w-1, y)
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := cur%w, cur/w
		for d := 0; d < 8; d += 2 {
			nx, ny := cx+neighbors[d].X, cy+neighbors[d].Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			seed(nx, ny)
		}
	}
	return outside
}

// fillMoments accumulates the moments of everything enclosed by the outer
// border of the region containing start: the region itself, its holes and
// anything nested in them. That is every pixel outside the exterior
// background that is 8-connected to start.
func fillMoments(outside, filled []bool, w, h, start int) Moments {
	var mo Moments
	stack := []int{start}
	filled[start] = true
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cx, cy := cur%w, cur/w
		mo.add(cx, cy)

		for _, n := range neighbors {
			nx, ny := cx+n.X, cy+n.Y
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			nidx := ny*w + nx
			if outside[nidx] || filled[nidx] {
				continue
			}
			filled[nidx] = true
			stack = append(stack, nidx)
		}
	}
	return mo
}

// trace follows the outer border starting at a region's top-most, left-most
// pixel (Suzuki-Abe border following, no point compression).
func trace(m *mask.Mask, start geometry.PointInt) []geometry.PointInt {
	step := func(p geometry.PointInt, d int) geometry.PointInt {
		return geometry.PointInt{X: p.X + neighbors[d].X, Y: p.Y + neighbors[d].Y}
	}

	// Look clockwise from the west neighbor for the last border pixel.
	first := -1
	for k := 1; k <= 8; k++ {
		d := (west - k + 8) % 8
		if p := step(start, d); m.At(p.X, p.Y) {
			first = d
			break
		}
	}
	if first < 0 {
		return []geometry.PointInt{start}
	}
	last := step(start, first)

	var points []geometry.PointInt
	cur := start
	back := first // direction from cur to the previous border pixel
	limit := 4*m.Width()*m.Height() + 8
	for i := 0; i < limit; i++ {
		d := back
		for k := 1; k <= 8; k++ {
			d = (back + k) % 8
			if p := step(cur, d); m.At(p.X, p.Y) {
				break
			}
		}
		next := step(cur, d)
		points = append(points, cur)
		if next == start && cur == last {
			break
		}
		back = (d + 4) % 8
		cur = next
	}
	return points
}
