package contour

import (
	"fmt"

	"slider-solver/internal/mask"
	"slider-solver/pkg/geometry"
)

// Moments holds the raw spatial moments of a filled region. The sums are
// kept as exact integers so the centroid is reproducible bit for bit.
type Moments struct {
	M00 int64 // Area in pixels
	M10 int64 // Sum of x over the region
	M01 int64 // Sum of y over the region
}

func (m *Moments) add(x, y int) {
	m.M00++
	m.M10 += int64(x)
	m.M01 += int64(y)
}

// Centroid returns (floor(m10/m00), floor(m01/m00)).
// Returns ErrEmptyRegion when m00 is zero.
func (m Moments) Centroid() (geometry.PointInt, error) {
	if m.M00 == 0 {
		return geometry.PointInt{}, ErrEmptyRegion
	}
	return geometry.PointInt{X: floorDiv(m.M10, m.M00), Y: floorDiv(m.M01, m.M00)}, nil
}

func floorDiv(a, b int64) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return int(q)
}

// Select picks a contour from contours according to sel and returns it with
// its moments. Returns ErrEmptyRegion when the chosen contour has no area.
func Select(contours []Contour, sel Selection) (Contour, Moments, error) {
	if len(contours) == 0 {
		return Contour{}, Moments{}, ErrEmptyRegion
	}

	best := 0
	bestMoments := contours[0].Moments()
	if sel == SelectLargest {
		for i := 1; i < len(contours); i++ {
			mo := contours[i].Moments()
			if mo.M00 > bestMoments.M00 {
				best, bestMoments = i, mo
			}
		}
	}

	if bestMoments.M00 == 0 {
		return contours[best], bestMoments, fmt.Errorf("%w: contour at %v has zero area", ErrEmptyRegion, contours[best].Start())
	}
	return contours[best], bestMoments, nil
}

// LocateCentroid returns the integer centroid of the selected external
// region of m.
func LocateCentroid(m *mask.Mask, sel Selection) (geometry.PointInt, error) {
	if m == nil || m.Count() == 0 {
		return geometry.PointInt{}, ErrEmptyRegion
	}
	_, mo, err := Select(FindExternal(m), sel)
	if err != nil {
		return geometry.PointInt{}, err
	}
	return mo.Centroid()
}

// Locator adapts LocateCentroid to the solver's locator interface.
type Locator struct {
	Selection Selection
}

// Locate implements solver.Locator.
func (l Locator) Locate(m *mask.Mask) (geometry.PointInt, error) {
	return LocateCentroid(m, l.Selection)
}
