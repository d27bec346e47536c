//go:build !gocv
// +build !gocv

// Package cvaccel implements the solver's matcher, locator and mask
// morphology with OpenCV.
// Build with -tags gocv; without it the solver keeps its pure Go backend.
package cvaccel

import (
	"slider-solver/internal/contour"
	"slider-solver/internal/solver"
)

// Enabled reports whether the OpenCV backend is compiled in.
const Enabled = false

// SolverOptions returns no options without the gocv build tag.
func SolverOptions(contour.Selection) []solver.Option {
	return nil
}
