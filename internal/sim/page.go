package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"slider-solver/internal/raster"
	"slider-solver/pkg/colorutil"
	"slider-solver/pkg/geometry"
)

// Default selectors answered by the page.
const (
	HandleSelector  = ".geetest_slider"
	SuccessSelector = ".geetest_success"
)

// ErrNoElement is returned for selectors the page does not know.
var ErrNoElement = errors.New("no such element")

// EventKind identifies a recorded pointer event.
type EventKind int

const (
	EventMove EventKind = iota
	EventPress
	EventRelease
)

func (k EventKind) String() string {
	switch k {
	case EventMove:
		return "move"
	case EventPress:
		return "press"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

// Event is a pointer event as received by the page.
type Event struct {
	Kind EventKind
	X, Y float64
}

// Page is a simulated puzzle page. It is safe for concurrent use.
type Page struct {
	mu sync.Mutex

	scene       Scene
	bg, overlay *raster.Image
	tolerance   float64
	handleSel   string
	successSel  string

	// Remaining injected failures.
	rejects       int
	acquireErrors int

	pointer  geometry.Point2D
	pressed  bool
	grabX    float64
	offset   float64
	released bool

	events       []Event
	acquisitions int
}

// Option configures a Page.
type Option func(*Page)

// WithTolerance sets how far, in pixels, a released piece may be from the
// slot and still count as solved.
func WithTolerance(px float64) Option {
	return func(p *Page) { p.tolerance = px }
}

// WithRejects makes the first n verifications fail even when the piece is
// in place.
func WithRejects(n int) Option {
	return func(p *Page) { p.rejects = n }
}

// WithAcquireErrors makes the first n acquisitions fail.
func WithAcquireErrors(n int) Option {
	return func(p *Page) { p.acquireErrors = n }
}

// WithSelectors overrides the handle and success selectors.
func WithSelectors(handle, success string) Option {
	return func(p *Page) { p.handleSel, p.successSel = handle, success }
}

// NewPage renders scene and returns a page showing it.
func NewPage(scene Scene, opts ...Option) *Page {
	p := &Page{
		scene:      scene,
		tolerance:  3,
		handleSel:  HandleSelector,
		successSel: SuccessSelector,
	}
	p.bg, p.overlay = scene.Render()
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Scene returns the rendered scene.
func (p *Page) Scene() Scene {
	return p.scene
}

// Acquire resets the slider and returns the background and piece overlay.
func (p *Page) Acquire(ctx context.Context) (bg, piece *raster.Image, err error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.acquisitions++
	if p.acquireErrors > 0 {
		p.acquireErrors--
		return nil, nil, fmt.Errorf("puzzle image %d not loaded", p.acquisitions)
	}
	p.offset, p.pressed, p.released = 0, false, false
	return p.bg, p.overlay, nil
}

// Snapshot returns the overlay with the piece at its current position.
func (p *Page) Snapshot(ctx context.Context) (*raster.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	off := int(math.Round(p.offset))
	p.mu.Unlock()
	return p.overlay.Translate(off, 0, colorutil.Transparent), nil
}

// MoveTo moves the pointer. A held handle drags the piece along.
func (p *Page) MoveTo(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, Event{Kind: EventMove, X: x, Y: y})
	p.pointer = geometry.NewPoint2D(x, y)
	if p.pressed {
		p.offset = math.Max(0, math.Min(x-p.grabX, float64(p.scene.Width)))
	}
	return nil
}

// Press presses the button. The handle is grabbed when the pointer is on it.
func (p *Page) Press(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, Event{Kind: EventPress, X: p.pointer.X, Y: p.pointer.Y})
	if p.handle().Contains(p.pointer) {
		p.pressed = true
		p.grabX = p.pointer.X - p.offset
	}
	return nil
}

// Release lets go of the handle. It works on a cancelled context so a
// gesture can always be finished.
func (p *Page) Release(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, Event{Kind: EventRelease, X: p.pointer.X, Y: p.pointer.Y})
	if p.pressed {
		p.pressed = false
		p.released = true
	}
	return nil
}

func (p *Page) handle() geometry.Rect {
	h := p.scene.Handle
	h.X += p.offset
	return h
}

// BoundingBox reports the handle's current box.
func (p *Page) BoundingBox(ctx context.Context, selector string) (geometry.Rect, error) {
	if err := ctx.Err(); err != nil {
		return geometry.Rect{}, err
	}
	if selector != p.handleSel {
		return geometry.Rect{}, fmt.Errorf("%w: %q", ErrNoElement, selector)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle(), nil
}

// WaitForMarker reports whether the success marker is shown within timeout.
func (p *Page) WaitForMarker(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	if selector != p.successSel {
		return false, fmt.Errorf("%w: %q", ErrNoElement, selector)
	}

	p.mu.Lock()
	shown := p.solved()
	if shown && p.rejects > 0 {
		p.rejects--
		shown = false
	}
	p.mu.Unlock()
	if shown {
		return true, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.C:
		return false, nil
	}
}

func (p *Page) solved() bool {
	return p.released && math.Abs(p.offset-float64(p.scene.Distance())) <= p.tolerance
}

// Offset returns how far the piece has been dragged.
func (p *Page) Offset() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

// Holding reports whether the handle is currently held.
func (p *Page) Holding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pressed
}

// Events returns the pointer events received so far.
func (p *Page) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Acquisitions returns how many times Acquire was called.
func (p *Page) Acquisitions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquisitions
}
