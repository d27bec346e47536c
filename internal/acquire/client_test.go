package acquire

import (
	"bytes"
	"context"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"slider-solver/internal/drag"
	"slider-solver/internal/raster"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ drag.ImageSource = (*Source)(nil)

func pngBytes(t *testing.T, img *raster.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	bg := pngBytes(t, raster.Filled(30, 20, color.NRGBA{R: 60, G: 60, B: 60, A: 255}))
	piece := pngBytes(t, raster.Filled(30, 20, color.NRGBA{R: 200, A: 128}))

	mux := http.NewServeMux()
	mux.HandleFunc("/bg.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(bg)
	})
	mux.HandleFunc("/piece.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write(piece)
	})
	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := newServer(t)
	c, err := NewClient(srv.URL, srv.Client())
	require.NoError(t, err)

	img, err := c.Fetch(context.Background(), "/bg.png")
	require.NoError(t, err)
	assert.Equal(t, 30, img.Width())
	assert.Equal(t, color.NRGBA{R: 60, G: 60, B: 60, A: 255}, img.NRGBAAt(5, 5))

	// Absolute URLs ignore the base.
	img, err = c.Fetch(context.Background(), srv.URL+"/piece.png")
	require.NoError(t, err)
	assert.Equal(t, uint8(128), img.NRGBAAt(0, 0).A)
}

func TestFetchErrors(t *testing.T) {
	srv := newServer(t)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "/missing.png")
	assert.ErrorIs(t, err, ErrAcquisitionFailed)
	assert.ErrorIs(t, err, drag.ErrAcquisitionFailed)
	assert.Contains(t, err.Error(), "404")

	_, err = c.Fetch(context.Background(), "/text")
	assert.ErrorIs(t, err, ErrAcquisitionFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Fetch(ctx, "/bg.png")
	assert.ErrorIs(t, err, ErrAcquisitionFailed)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = NewClient("http://[::1", nil)
	assert.Error(t, err)
}

func TestSource(t *testing.T) {
	srv := newServer(t)
	c, err := NewClient(srv.URL, nil)
	require.NoError(t, err)

	s := &Source{Client: c, BackgroundURL: "/bg.png", PieceURL: "/piece.png"}
	bg, piece, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, bg.SameSize(piece))

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, piece.Pix(), snap.Pix())

	s.PieceURL = "/gone.png"
	_, _, err = s.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrAcquisitionFailed)
}

func TestCSSURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`url("https://static.example.com/slice.png")`, "https://static.example.com/slice.png", true},
		{`url('a/b.webp')`, "a/b.webp", true},
		{` url(https://x/y.jpg) no-repeat`, "https://x/y.jpg", true},
		{`none`, "", false},
		{`url(""`, "", false},
		{`url()`, "", false},
	}
	for _, tt := range tests {
		got, err := CSSURL(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewSource(t *testing.T) {
	srv := newServer(t)

	src, err := NewSource(srv.URL, `url("/bg.png")`, `url('/piece.png')`, true, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, "/bg.png", src.BackgroundURL)
	assert.Equal(t, "/piece.png", src.PieceURL)

	bg, piece, err := src.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 60, G: 60, B: 60, A: 255}, bg.NRGBAAt(0, 0))
	assert.Equal(t, 30, piece.Width())

	plain, err := NewSource("", srv.URL+"/bg.png", srv.URL+"/piece.png", false, srv.Client())
	require.NoError(t, err)
	_, _, err = plain.Acquire(context.Background())
	require.NoError(t, err)

	_, err = NewSource(srv.URL, "/bg.png", `url("/piece.png")`, true, nil)
	assert.ErrorContains(t, err, "background")
	_, err = NewSource("%zz", "/bg.png", "/piece.png", false, nil)
	assert.Error(t, err)
}
