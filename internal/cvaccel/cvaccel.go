//go:build gocv
// +build gocv

// Package cvaccel implements the solver's matcher, locator and mask
// morphology with OpenCV.
// Build with -tags gocv.
package cvaccel

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"slider-solver/internal/contour"
	"slider-solver/internal/mask"
	"slider-solver/internal/match"
	"slider-solver/internal/raster"
	"slider-solver/pkg/geometry"

	"gocv.io/x/gocv"
)

func maskMat(m *mask.Mask) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(m.Height(), m.Width(), gocv.MatTypeCV8UC1, m.Bytes())
}

// Matcher runs cv::matchTemplate with TM_CCOEFF_NORMED on the target's luma.
type Matcher struct{}

// Match implements solver.Matcher.
func (Matcher) Match(target *raster.Image, tmpl *mask.Mask) (match.Result, error) {
	tw, th := tmpl.Width(), tmpl.Height()
	if tw > target.Width() || th > target.Height() {
		return match.Result{}, fmt.Errorf("%w: %dx%d in %dx%d", match.ErrTemplateTooLarge, tw, th, target.Width(), target.Height())
	}

	img, err := gocv.NewMatFromBytes(target.Height(), target.Width(), gocv.MatTypeCV8UC1, target.Luma())
	if err != nil {
		return match.Result{}, fmt.Errorf("target mat: %w", err)
	}
	defer img.Close()

	t, err := maskMat(tmpl)
	if err != nil {
		return match.Result{}, fmt.Errorf("template mat: %w", err)
	}
	defer t.Close()

	result := gocv.NewMat()
	defer result.Close()
	noMask := gocv.NewMat()
	defer noMask.Close()

	gocv.MatchTemplate(img, t, &result, gocv.TmCcoeffNormed, noMask)
	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)

	score := float64(maxVal)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		score = 0
	}
	return match.Result{Anchor: geometry.PointInt{X: maxLoc.X, Y: maxLoc.Y}, Score: score}, nil
}

// Locator finds external contours with cv::findContours and takes the
// centroid of the selected filled region.
type Locator struct {
	Selection contour.Selection
}

// Locate implements solver.Locator.
func (l Locator) Locate(m *mask.Mask) (geometry.PointInt, error) {
	if m == nil || m.Count() == 0 {
		return geometry.PointInt{}, contour.ErrEmptyRegion
	}

	src, err := maskMat(m)
	if err != nil {
		return geometry.PointInt{}, fmt.Errorf("mask mat: %w", err)
	}
	defer src.Close()

	contours := gocv.FindContours(src, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() == 0 {
		return geometry.PointInt{}, contour.ErrEmptyRegion
	}

	// OpenCV lists contours bottom-up; order them by their top-left pixel
	// the way the pure Go locator does.
	best, bestStart, bestArea := -1, image.Point{}, 0.0
	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		start := topLeft(pv.ToPoints())
		area := gocv.ContourArea(pv)

		switch {
		case best < 0:
		case l.Selection == contour.SelectFirst && before(start, bestStart):
		case l.Selection == contour.SelectLargest && (area > bestArea || (area == bestArea && before(start, bestStart))):
		default:
			continue
		}
		best, bestStart, bestArea = i, start, area
	}

	filled := gocv.NewMatWithSize(m.Height(), m.Width(), gocv.MatTypeCV8U)
	defer filled.Close()
	gocv.DrawContours(&filled, contours, best, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	mo := gocv.Moments(filled, true)
	if mo["m00"] == 0 {
		return geometry.PointInt{}, contour.ErrEmptyRegion
	}
	return geometry.PointInt{
		X: int(math.Floor(mo["m10"] / mo["m00"])),
		Y: int(math.Floor(mo["m01"] / mo["m00"])),
	}, nil
}

func topLeft(pts []image.Point) image.Point {
	best := pts[0]
	for _, p := range pts[1:] {
		if before(p, best) {
			best = p
		}
	}
	return best
}

func before(a, b image.Point) bool {
	return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
}

// Cleaner runs mask morphology with OpenCV.
type Cleaner struct{}

// Clean implements mask.Cleaner.
func (Cleaner) Clean(m *mask.Mask, morph mask.Morphology) (*mask.Mask, error) {
	return Apply(m, morph)
}

// Apply runs a morphology sequence with cv::erode and cv::dilate.
func Apply(m *mask.Mask, morph mask.Morphology) (*mask.Mask, error) {
	if err := morph.Validate(); err != nil {
		return nil, err
	}
	src, err := maskMat(m)
	if err != nil {
		return nil, fmt.Errorf("mask mat: %w", err)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(morph.Kernel, morph.Kernel))
	defer kernel.Close()

	for _, op := range morph.Ops {
		switch op {
		case mask.OpErode:
			gocv.Erode(src, &src, kernel)
		case mask.OpDilate:
			gocv.Dilate(src, &src, kernel)
		}
	}
	return mask.FromBytes(m.Width(), m.Height(), src.ToBytes())
}
