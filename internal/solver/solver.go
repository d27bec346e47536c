// Package solver computes the horizontal displacement that moves a puzzle
// piece onto its slot in the background image.
package solver

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"slider-solver/internal/contour"
	"slider-solver/internal/mask"
	"slider-solver/internal/match"
	"slider-solver/internal/raster"
	"slider-solver/pkg/colorutil"
	"slider-solver/pkg/geometry"

	"github.com/rs/zerolog"
)

// ErrDisplacementUnresolved wraps every failure to produce a plan.
var ErrDisplacementUnresolved = errors.New("displacement unresolved")

// Matcher finds the best position of a template mask inside a target image.
type Matcher interface {
	Match(target *raster.Image, tmpl *mask.Mask) (match.Result, error)
}

// Locator finds a representative point of a silhouette.
type Locator interface {
	Locate(m *mask.Mask) (geometry.PointInt, error)
}

// Plan is the outcome of a solve.
type Plan struct {
	Displacement int // TargetX - PieceX
	TargetX      int
	PieceX       int
	Strategy     Strategy
	Score        float64       // Correlation score, zero for centroid solves
	Handle       geometry.Rect // Slider handle, filled in by the drag controller
}

// Solver turns a background and piece image into a Plan.
type Solver struct {
	params  Params
	matcher Matcher
	locator Locator
	cleaner mask.Cleaner
	logger  zerolog.Logger
}

// Option configures a Solver.
type Option func(*Solver)

// WithMatcher replaces the built-in correlation matcher.
func WithMatcher(m Matcher) Option {
	return func(s *Solver) { s.matcher = m }
}

// WithLocator replaces the built-in contour centroid locator.
func WithLocator(l Locator) Option {
	return func(s *Solver) { s.locator = l }
}

// WithCleaner runs mask morphology through c instead of the built-in filter.
func WithCleaner(c mask.Cleaner) Option {
	return func(s *Solver) { s.cleaner = c }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Solver) { s.logger = l }
}

// New creates a solver.
func New(params Params, opts ...Option) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Solver{
		params:  params,
		matcher: match.Matcher{},
		locator: contour.Locator{Selection: params.Selection},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Params returns the solver's parameters.
func (s *Solver) Params() Params {
	return s.params
}

// Solve runs the configured strategy.
func (s *Solver) Solve(bg, piece *raster.Image) (Plan, error) {
	return s.SolveWith(s.params.Strategy, bg, piece)
}

// SolveWith runs the given strategy. A piece image whose size differs from
// the background is brought to the background's size first: rescaled when
// both sides differ by the same factor, otherwise placed at the background's
// top-left at native scale (a slice strip).
func (s *Solver) SolveWith(strategy Strategy, bg, piece *raster.Image) (Plan, error) {
	if bg == nil || piece == nil {
		return Plan{}, fmt.Errorf("%w: missing image", ErrDisplacementUnresolved)
	}
	piece = s.fitPiece(bg, piece)

	var (
		plan Plan
		err  error
	)
	switch strategy {
	case StrategyCorrelation:
		plan, err = s.correlate(bg, piece)
	case StrategyCentroid:
		plan, err = s.centroids(bg, piece)
	default:
		err = fmt.Errorf("invalid strategy %d", strategy)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %s: %w", ErrDisplacementUnresolved, strategy, err)
	}
	plan.Strategy = strategy
	plan.Displacement = plan.TargetX - plan.PieceX

	s.logger.Debug().
		Str("strategy", strategy.String()).
		Int("target_x", plan.TargetX).
		Int("piece_x", plan.PieceX).
		Int("displacement", plan.Displacement).
		Float64("score", plan.Score).
		Msg("solved")
	return plan, nil
}

func (s *Solver) fitPiece(bg, piece *raster.Image) *raster.Image {
	if piece.SameSize(bg) {
		return piece
	}
	ev := s.logger.Debug().
		Int("piece_w", piece.Width()).Int("piece_h", piece.Height()).
		Int("bg_w", bg.Width()).Int("bg_h", bg.Height())
	if bg.Width()*piece.Height() == piece.Width()*bg.Height() {
		ev.Msg("rescaling piece to background")
		return piece.Resize(bg.Width(), bg.Height())
	}
	ev.Msg("placing piece slice at background origin")
	return piece.Reframe(bg.Width(), bg.Height(), colorutil.Transparent)
}

func (s *Solver) pieceMask(piece *raster.Image) (*mask.Mask, error) {
	m, err := mask.ExtractWith(piece, s.params.PieceReference.Canvas(piece), s.params.PieceMask, s.cleaner)
	if err != nil {
		return nil, fmt.Errorf("piece mask: %w", err)
	}
	s.checkConvexity(m)
	s.dump("piece-mask.png", m.Image())
	return m, nil
}

func (s *Solver) correlate(bg, piece *raster.Image) (Plan, error) {
	pm, err := s.pieceMask(piece)
	if err != nil {
		return Plan{}, err
	}

	crop := pm.Bounds().Expand(s.params.TemplatePadding)
	tmpl := pm.Crop(crop)
	s.dump("template.png", tmpl.Image())

	res, err := s.matcher.Match(bg, tmpl)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		TargetX: res.Anchor.X + tmpl.Width()/2 + s.params.Calibration,
		PieceX:  crop.CenterX(),
		Score:   res.Score,
	}, nil
}

func (s *Solver) centroids(bg, piece *raster.Image) (Plan, error) {
	sm, err := mask.ExtractWith(bg, mask.ReferenceBorder.Canvas(bg), s.params.SlotMask, s.cleaner)
	if err != nil {
		return Plan{}, fmt.Errorf("slot mask: %w", err)
	}
	s.dump("slot-mask.png", sm.Image())

	slot, err := s.locator.Locate(sm)
	if err != nil {
		return Plan{}, fmt.Errorf("slot centroid: %w", err)
	}

	pm, err := s.pieceMask(piece)
	if err != nil {
		return Plan{}, err
	}
	p, err := s.locator.Locate(pm)
	if err != nil {
		return Plan{}, fmt.Errorf("piece centroid: %w", err)
	}
	return Plan{TargetX: slot.X, PieceX: p.X}, nil
}

// checkConvexity logs pieces whose outline is far from convex. Such pieces
// usually mean the mask picked up more than the piece.
func (s *Solver) checkConvexity(m *mask.Mask) {
	if s.params.MinSolidity == 0 {
		return
	}
	c, _, err := contour.Select(contour.FindExternal(m), s.params.Selection)
	if err != nil {
		return
	}
	if solidity := c.Solidity(); solidity < s.params.MinSolidity {
		s.logger.Warn().
			Float64("solidity", solidity).
			Float64("min", s.params.MinSolidity).
			Msg("piece silhouette is not convex")
	}
}

func (s *Solver) dump(name string, img image.Image) {
	if s.params.DebugDir == "" {
		return
	}
	if err := writePNG(filepath.Join(s.params.DebugDir, name), img); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("write debug image")
	}
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
