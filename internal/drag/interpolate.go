package drag

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Mouse is a pointer device that can only jump to a position.
type Mouse interface {
	MoveTo(ctx context.Context, x, y float64) error
	Press(ctx context.Context) error
	Release(ctx context.Context) error
}

// Stepper turns a Mouse into a Pointer by emitting evenly spaced
// intermediate positions.
type Stepper struct {
	mouse Mouse
	delay time.Duration
	x, y  float64
}

// Interpolate wraps m. delay is waited between intermediate positions.
func Interpolate(m Mouse, delay time.Duration) *Stepper {
	return &Stepper{mouse: m, delay: delay}
}

// Down moves to (x, y) and presses.
func (s *Stepper) Down(ctx context.Context, x, y float64) error {
	if err := s.mouse.MoveTo(ctx, x, y); err != nil {
		return err
	}
	s.x, s.y = x, y
	return s.mouse.Press(ctx)
}

// Move goes from the current position to (x, y) in steps moves, the last
// one landing exactly on (x, y).
func (s *Stepper) Move(ctx context.Context, x, y float64, steps int) error {
	if steps < 1 {
		steps = 1
	}
	xs := floats.Span(make([]float64, steps+1), s.x, x)
	ys := floats.Span(make([]float64, steps+1), s.y, y)
	for i := 1; i <= steps; i++ {
		if err := s.mouse.MoveTo(ctx, xs[i], ys[i]); err != nil {
			return err
		}
		s.x, s.y = xs[i], ys[i]
		if i < steps {
			if err := sleep(ctx, s.delay); err != nil {
				return err
			}
		}
	}
	return nil
}

// Up releases the button.
func (s *Stepper) Up(ctx context.Context) error {
	return s.mouse.Release(ctx)
}
