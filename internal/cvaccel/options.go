//go:build gocv
// +build gocv

package cvaccel

import (
	"slider-solver/internal/contour"
	"slider-solver/internal/solver"
)

// Enabled reports whether the OpenCV backend is compiled in.
const Enabled = true

// SolverOptions plugs the OpenCV matcher, locator and morphology into a solver.
func SolverOptions(sel contour.Selection) []solver.Option {
	return []solver.Option{
		solver.WithMatcher(Matcher{}),
		solver.WithLocator(Locator{Selection: sel}),
		solver.WithCleaner(Cleaner{}),
	}
}
