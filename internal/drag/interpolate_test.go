package drag

import (
	"context"
	"errors"
	"testing"

	"slider-solver/pkg/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMouse struct {
	moves   []geometry.Point2D
	presses int
	failAt  int
}

func (m *recordingMouse) MoveTo(_ context.Context, x, y float64) error {
	m.moves = append(m.moves, geometry.NewPoint2D(x, y))
	if m.failAt > 0 && len(m.moves) == m.failAt {
		return errors.New("mouse gone")
	}
	return nil
}

func (m *recordingMouse) Press(context.Context) error {
	m.presses++
	return nil
}

func (m *recordingMouse) Release(context.Context) error { return nil }

func TestInterpolate(t *testing.T) {
	m := &recordingMouse{}
	s := Interpolate(m, 0)
	ctx := context.Background()

	require.NoError(t, s.Down(ctx, 0, 0))
	require.NoError(t, s.Move(ctx, 8, 4, 4))
	assert.Equal(t, 1, m.presses)
	assert.Equal(t, []geometry.Point2D{
		{X: 0, Y: 0}, {X: 2, Y: 1}, {X: 4, Y: 2}, {X: 6, Y: 3}, {X: 8, Y: 4},
	}, m.moves)

	// The next move starts where the last one ended; zero steps means one.
	require.NoError(t, s.Move(ctx, 10, 4, 0))
	assert.Equal(t, geometry.Point2D{X: 10, Y: 4}, m.moves[len(m.moves)-1])
	assert.Len(t, m.moves, 6)
}

func TestInterpolateStopsOnError(t *testing.T) {
	m := &recordingMouse{failAt: 3}
	s := Interpolate(m, 0)
	ctx := context.Background()

	require.NoError(t, s.Down(ctx, 0, 0))
	assert.Error(t, s.Move(ctx, 10, 0, 10))
	assert.Len(t, m.moves, 3)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	m2 := &recordingMouse{}
	s2 := Interpolate(m2, 0)
	require.NoError(t, s2.Down(ctx, 0, 0))
	assert.ErrorIs(t, s2.Move(cancelled, 10, 0, 5), context.Canceled)
	assert.Len(t, m2.moves, 2)
}
