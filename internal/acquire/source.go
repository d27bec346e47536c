package acquire

import (
	"context"
	"fmt"
	"net/http"

	"slider-solver/internal/raster"
)

// Source serves a drag controller from fixed image URLs.
type Source struct {
	Client        *Client
	BackgroundURL string
	PieceURL      string
	// SnapshotURL renders the piece layer mid-drag. Empty means PieceURL.
	SnapshotURL string
}

// NewSource creates a Source for two image references resolved against
// base. With css set, each reference is a CSS background-image value such as
// `url("https://host/bg.png")` and the address is taken from it.
func NewSource(base, bgRef, pieceRef string, css bool, client *http.Client) (*Source, error) {
	if css {
		var err error
		if bgRef, err = CSSURL(bgRef); err != nil {
			return nil, fmt.Errorf("background: %w", err)
		}
		if pieceRef, err = CSSURL(pieceRef); err != nil {
			return nil, fmt.Errorf("piece: %w", err)
		}
	}
	c, err := NewClient(base, client)
	if err != nil {
		return nil, err
	}
	return &Source{Client: c, BackgroundURL: bgRef, PieceURL: pieceRef}, nil
}

// Acquire fetches the background and the piece.
func (s *Source) Acquire(ctx context.Context) (bg, piece *raster.Image, err error) {
	bg, err = s.Client.Fetch(ctx, s.BackgroundURL)
	if err != nil {
		return nil, nil, fmt.Errorf("background: %w", err)
	}
	piece, err = s.Client.Fetch(ctx, s.PieceURL)
	if err != nil {
		return nil, nil, fmt.Errorf("piece: %w", err)
	}
	return bg, piece, nil
}

// Snapshot fetches the current piece layer.
func (s *Source) Snapshot(ctx context.Context) (*raster.Image, error) {
	ref := s.SnapshotURL
	if ref == "" {
		ref = s.PieceURL
	}
	img, err := s.Client.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return img, nil
}
