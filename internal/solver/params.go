package solver

import (
	"fmt"
	"strings"

	"slider-solver/internal/contour"
	"slider-solver/internal/mask"
)

// Strategy selects how the slot and the piece are located.
type Strategy int

const (
	// StrategyCorrelation matches the piece silhouette against the
	// background by normalized cross-correlation.
	StrategyCorrelation Strategy = iota
	// StrategyCentroid extracts a slot mask and a piece mask and compares
	// their contour centroids.
	StrategyCentroid
)

func (s Strategy) String() string {
	switch s {
	case StrategyCorrelation:
		return "correlation"
	case StrategyCentroid:
		return "centroid"
	default:
		return "unknown"
	}
}

// ParseStrategy parses "correlation" or "centroid".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "correlation", "template":
		return StrategyCorrelation, nil
	case "centroid", "contour":
		return StrategyCentroid, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Params holds solver parameters.
type Params struct {
	Strategy Strategy

	// Calibration is added to the correlation target X. It compensates for
	// the slot outline drawn around the cut-out.
	Calibration int

	// TemplatePadding is the background margin kept on each side of the
	// piece silhouette when cropping the correlation template.
	TemplatePadding int

	// PieceReference is the canvas the piece overlay is drawn on.
	PieceReference mask.Reference
	PieceMask      mask.Params
	SlotMask       mask.Params

	Selection contour.Selection

	// MinSolidity below which the piece silhouette is logged as non-convex.
	MinSolidity float64

	// DebugDir receives PNG dumps of intermediate masks when set.
	DebugDir string
}

// DefaultParams returns sensible defaults for slider puzzles.
func DefaultParams() Params {
	return Params{
		Strategy:        StrategyCorrelation,
		Calibration:     3,
		TemplatePadding: 4,
		PieceReference:  mask.ReferenceWhite,
		PieceMask:       mask.DefaultParams(),
		SlotMask:        mask.DefaultParams().WithMorphology(mask.ShapeTightening()),
		Selection:       contour.SelectLargest,
		MinSolidity:     0.85,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.Strategy != StrategyCorrelation && p.Strategy != StrategyCentroid {
		return fmt.Errorf("invalid strategy %d", p.Strategy)
	}
	if p.TemplatePadding < 0 {
		return fmt.Errorf("template padding must not be negative, got %d", p.TemplatePadding)
	}
	if p.MinSolidity < 0 || p.MinSolidity > 1 {
		return fmt.Errorf("min solidity must be within [0,1], got %v", p.MinSolidity)
	}
	if err := p.PieceMask.Validate(); err != nil {
		return fmt.Errorf("piece mask: %w", err)
	}
	if err := p.SlotMask.Validate(); err != nil {
		return fmt.Errorf("slot mask: %w", err)
	}
	return nil
}
