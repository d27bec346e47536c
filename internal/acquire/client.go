// Package acquire downloads puzzle images over HTTP.
package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"slider-solver/internal/drag"
	"slider-solver/internal/raster"
)

// ErrAcquisitionFailed is drag.ErrAcquisitionFailed, so errors from this
// package match either name.
var ErrAcquisitionFailed = drag.ErrAcquisitionFailed

// MaxImageBytes caps how much of a response body is read.
const MaxImageBytes = 16 << 20

// Client fetches and decodes images.
type Client struct {
	base   *url.URL
	client *http.Client
}

// NewClient creates a client. Relative image URLs are resolved against
// base, which may be empty when only absolute URLs are used.
func NewClient(base string, client *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: u, client: client}, nil
}

// Fetch downloads ref and decodes it as PNG, JPEG, GIF, WebP, BMP or TIFF.
func (c *Client) Fetch(ctx context.Context, ref string) (*raster.Image, error) {
	u, err := c.base.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid image url %q: %w", ErrAcquisitionFailed, ref, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrAcquisitionFailed, err)
	}
	request.Header.Set("Accept", "image/*")

	response, err := c.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %w", ErrAcquisitionFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s: status code %d", ErrAcquisitionFailed, u, response.StatusCode)
	}

	img, _, err := raster.Decode(io.LimitReader(response.Body, MaxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrAcquisitionFailed, u, err)
	}
	return img, nil
}

// CSSURL extracts the address from a CSS value such as
// `url("https://host/a.png")`, the form a background-image style takes.
func CSSURL(value string) (string, error) {
	v := strings.TrimSpace(value)
	start := strings.Index(v, "url(")
	if start < 0 {
		return "", fmt.Errorf("no url() in %q", value)
	}
	v = v[start+len("url("):]
	end := strings.IndexByte(v, ')')
	if end < 0 {
		return "", fmt.Errorf("unterminated url() in %q", value)
	}
	v = strings.Trim(strings.TrimSpace(v[:end]), `"'`)
	if v == "" {
		return "", fmt.Errorf("empty url() in %q", value)
	}
	return v, nil
}
