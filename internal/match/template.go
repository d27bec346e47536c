// Package match locates a binary template inside a raster image by
// normalized cross-correlation.
package match

import (
	"errors"
	"fmt"
	"math"

	"slider-solver/internal/mask"
	"slider-solver/internal/raster"
	"slider-solver/pkg/geometry"

	"gonum.org/v1/gonum/floats"
)

// ErrTemplateTooLarge is returned when the template does not fit inside the target.
var ErrTemplateTooLarge = errors.New("template larger than target")

// Result is the best template position in target coordinates.
type Result struct {
	Anchor geometry.PointInt // Top-left of the best window
	Score  float64           // Normalized correlation, -1 to 1
}

// Template correlates tmpl against the luma of target at every position
// where it fits entirely (OpenCV's TM_CCOEFF_NORMED). Foreground pixels of
// the template count as 255, background as 0.
//
// Windows or templates without variance score 0. The best score wins; ties
// go to the first position in raster order. All sums are exact integers, so
// the result does not depend on how rows are split across workers.
func Template(target *raster.Image, tmpl *mask.Mask) (Result, error) {
	scores, err := Scores(target, tmpl)
	if err != nil {
		return Result{}, err
	}
	rw := target.Width() - tmpl.Width() + 1
	best := floats.MaxIdx(scores)
	return Result{
		Anchor: geometry.PointInt{X: best % rw, Y: best / rw},
		Score:  scores[best],
	}, nil
}

// Scores returns the correlation map, (W-w+1) x (H-h+1), row-major.
// A template that does not fit inside the target returns ErrTemplateTooLarge.
func Scores(target *raster.Image, tmpl *mask.Mask) ([]float64, error) {
	tw, th := tmpl.Width(), tmpl.Height()
	W, H := target.Width(), target.Height()
	if tw <= 0 || th <= 0 {
		return nil, fmt.Errorf("empty template %dx%d", tw, th)
	}
	if tw > W || th > H {
		return nil, fmt.Errorf("%w: %dx%d in %dx%d", ErrTemplateTooLarge, tw, th, W, H)
	}
	rw, rh := W-tw+1, H-th+1

	luma := target.Luma()
	sum, sqsum := integrals(luma, W, H)

	// Template statistics. Foreground pixels are 255, so the template's
	// contribution to sum(T*I) is 255 times the image sum over those offsets.
	var offsets []int
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			if tmpl.At(x, y) {
				offsets = append(offsets, y*W+x)
			}
		}
	}
	n := int64(tw * th)
	fg := int64(len(offsets))
	sumT := 255 * fg
	sumT2 := 255 * 255 * fg
	varT := float64(n*sumT2 - sumT*sumT)

	scores := make([]float64, rw*rh)
	if varT == 0 {
		return scores, nil
	}

	stride := W + 1
	raster.ParallelRows(rh, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < rw; x++ {
				a := y*stride + x
				b := y*stride + x + tw
				c := (y+th)*stride + x
				d := (y+th)*stride + x + tw
				sumI := sum[d] - sum[b] - sum[c] + sum[a]
				sumI2 := sqsum[d] - sqsum[b] - sqsum[c] + sqsum[a]

				varI := float64(n*sumI2 - sumI*sumI)
				if varI <= 0 {
					continue
				}

				base := y*W + x
				var fgSum int64
				for _, off := range offsets {
					fgSum += int64(luma[base+off])
				}
				cov := float64(n*255*fgSum - sumT*sumI)

				s := cov / math.Sqrt(varT*varI)
				// Clamp rounding noise at perfect matches.
				if s > 1 {
					s = 1
				} else if s < -1 {
					s = -1
				}
				scores[y*rw+x] = s
			}
		}
	})
	return scores, nil
}

// integrals builds (W+1) x (H+1) summed-area tables of the plane and of its
// squares.
func integrals(plane []uint8, w, h int) (sum, sqsum []int64) {
	stride := w + 1
	sum = make([]int64, stride*(h+1))
	sqsum = make([]int64, stride*(h+1))
	for y := 0; y < h; y++ {
		var rowSum, rowSq int64
		for x := 0; x < w; x++ {
			v := int64(plane[y*w+x])
			rowSum += v
			rowSq += v * v
			sum[(y+1)*stride+x+1] = sum[y*stride+x+1] + rowSum
			sqsum[(y+1)*stride+x+1] = sqsum[y*stride+x+1] + rowSq
		}
	}
	return sum, sqsum
}

// Matcher adapts Template to the solver's matcher interface.
type Matcher struct{}

// Match implements solver.Matcher.
func (Matcher) Match(target *raster.Image, tmpl *mask.Mask) (Result, error) {
	return Template(target, tmpl)
}
