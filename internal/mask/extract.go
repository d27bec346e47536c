package mask

import (
	"fmt"
	"image/color"
	"strings"

	"slider-solver/internal/raster"
	"slider-solver/pkg/colorutil"
)

// Reference selects the flat canvas an image is compared against.
type Reference int

const (
	// ReferenceWhite is an opaque white canvas.
	ReferenceWhite Reference = iota
	// ReferenceTransparent is a fully transparent canvas.
	ReferenceTransparent
	// ReferenceBorder is a flat canvas of the image's average border color.
	ReferenceBorder
)

func (r Reference) String() string {
	switch r {
	case ReferenceWhite:
		return "white"
	case ReferenceTransparent:
		return "transparent"
	case ReferenceBorder:
		return "border"
	default:
		return "unknown"
	}
}

// ParseReference parses "white", "transparent" or "border".
func ParseReference(s string) (Reference, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white":
		return ReferenceWhite, nil
	case "transparent":
		return ReferenceTransparent, nil
	case "border":
		return ReferenceBorder, nil
	}
	return 0, fmt.Errorf("unknown reference canvas %q", s)
}

// Canvas builds the reference canvas for img.
func (r Reference) Canvas(img *raster.Image) *raster.Image {
	var c color.NRGBA
	switch r {
	case ReferenceTransparent:
		c = colorutil.Transparent
	case ReferenceBorder:
		c = img.BorderColor()
	default:
		c = colorutil.White
	}
	return raster.Filled(img.Width(), img.Height(), c)
}

// Params configures mask extraction.
type Params struct {
	// Threshold is the normalized perceptual distance (0-1) above which a
	// pixel counts as foreground. Anti-aliased edges below it are dropped.
	Threshold float64

	// Morphology is the cleanup applied after thresholding.
	Morphology Morphology
}

// DefaultParams returns parameters for extracting a clean piece silhouette.
func DefaultParams() Params {
	return Params{
		Threshold:  0.3,
		Morphology: NoiseCleanup(),
	}
}

// WithThreshold returns a copy of params with a different distance threshold.
func (p Params) WithThreshold(threshold float64) Params {
	p.Threshold = threshold
	return p
}

// WithMorphology returns a copy of params with a different cleanup sequence.
func (p Params) WithMorphology(m Morphology) Params {
	p.Morphology = m
	return p
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("mask threshold must be in (0, 1), got %g", p.Threshold)
	}
	return p.Morphology.Validate()
}

// Cleaner runs a morphology sequence on a mask, for backends other than
// Mask.Apply.
type Cleaner interface {
	Clean(m *Mask, morph Morphology) (*Mask, error)
}

// Extract computes the cleaned binary silhouette of img against reference.
// Returns ErrNoSilhouetteFound when nothing survives cleanup.
func Extract(img, reference *raster.Image, params Params) (*Mask, error) {
	return ExtractWith(img, reference, params, nil)
}

// ExtractWith is Extract with the cleanup run by c. A nil c uses Mask.Apply.
func ExtractWith(img, reference *raster.Image, params Params, c Cleaner) (*Mask, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	diff, err := Difference(img, reference, params.Threshold)
	if err != nil {
		return nil, err
	}

	var m *Mask
	if c == nil {
		m = diff.Apply(params.Morphology)
	} else if m, err = c.Clean(diff, params.Morphology); err != nil {
		return nil, fmt.Errorf("morphology %s: %w", params.Morphology, err)
	}
	if m.Count() == 0 {
		return nil, ErrNoSilhouetteFound
	}
	return m, nil
}

// Difference marks every pixel whose perceptual distance from reference
// exceeds threshold. No cleanup is applied.
func Difference(img, reference *raster.Image, threshold float64) (*Mask, error) {
	if !img.SameSize(reference) {
		return nil, fmt.Errorf("%w: %dx%d vs %dx%d", ErrSizeMismatch,
			img.Width(), img.Height(), reference.Width(), reference.Height())
	}

	w, h := img.Width(), img.Height()
	out := New(w, h)

	raster.ParallelRows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				if colorutil.YIQDistance(img.NRGBAAt(x, y), reference.NRGBAAt(x, y)) > threshold {
					out.pix[y*w+x] = Foreground
				}
			}
		}
	})
	return out, nil
}
