// Package drag drives a slider handle through a press, a coarse move, a
// measured correction and a release, then checks that the page accepted the
// result. Failed attempts are retried under a bounded policy.
package drag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slider-solver/internal/raster"
	"slider-solver/internal/solver"
	"slider-solver/pkg/geometry"
)

var (
	// ErrAcquisitionFailed means the puzzle images could not be obtained.
	ErrAcquisitionFailed = errors.New("image acquisition failed")
	// ErrDragAborted means a pointer event failed or the gesture was cancelled.
	ErrDragAborted = errors.New("drag aborted")
	// ErrVerificationTimeout means the success marker never appeared.
	ErrVerificationTimeout = errors.New("verification timed out")
	// ErrRetriesExhausted means no attempt succeeded within the retry policy.
	ErrRetriesExhausted = errors.New("retries exhausted")
)

// State is a stage of a single drag attempt.
type State int

const (
	StateIdle State = iota
	StateGrasped
	StateCoarseMoving
	StateSettling
	StateCorrecting
	StateReleased
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGrasped:
		return "grasped"
	case StateCoarseMoving:
		return "coarse_moving"
	case StateSettling:
		return "settling"
	case StateCorrecting:
		return "correcting"
	case StateReleased:
		return "released"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ImageSource supplies the puzzle images.
type ImageSource interface {
	// Acquire returns a fresh background and piece image for a new attempt.
	Acquire(ctx context.Context) (bg, piece *raster.Image, err error)
	// Snapshot returns the piece layer as it is currently rendered.
	Snapshot(ctx context.Context) (*raster.Image, error)
}

// Pointer issues pointer events in page coordinates.
type Pointer interface {
	Down(ctx context.Context, x, y float64) error
	// Move goes to (x, y) in the given number of intermediate steps.
	Move(ctx context.Context, x, y float64, steps int) error
	Up(ctx context.Context) error
}

// Inspector queries the page.
type Inspector interface {
	BoundingBox(ctx context.Context, selector string) (geometry.Rect, error)
	// WaitForMarker reports whether selector appears within timeout.
	WaitForMarker(ctx context.Context, selector string, timeout time.Duration) (bool, error)
}

// Planner computes displacement plans. *solver.Solver implements it.
type Planner interface {
	SolveWith(strategy solver.Strategy, bg, piece *raster.Image) (solver.Plan, error)
}

// Params configures a drag attempt.
type Params struct {
	CoarseSteps     int
	CorrectionSteps int
	SettleDelay     time.Duration
	VerifyTimeout   time.Duration

	HandleSelector  string
	SuccessSelector string

	InitialStrategy    solver.Strategy
	CorrectionStrategy solver.Strategy

	// SkipCorrection releases right after the coarse move.
	SkipCorrection bool
}

// DefaultParams mirrors the timings of a human-looking drag.
func DefaultParams() Params {
	return Params{
		CoarseSteps:        25,
		CorrectionSteps:    5,
		SettleDelay:        100 * time.Millisecond,
		VerifyTimeout:      3 * time.Second,
		HandleSelector:     ".geetest_slider",
		SuccessSelector:    ".geetest_success",
		InitialStrategy:    solver.StrategyCorrelation,
		CorrectionStrategy: solver.StrategyCentroid,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {
	if p.CoarseSteps < 1 || p.CorrectionSteps < 1 {
		return fmt.Errorf("step counts must be positive, got coarse=%d correction=%d", p.CoarseSteps, p.CorrectionSteps)
	}
	if p.SettleDelay < 0 || p.VerifyTimeout < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if p.HandleSelector == "" || p.SuccessSelector == "" {
		return fmt.Errorf("handle and success selectors are required")
	}
	return nil
}

// RetryPolicy bounds the number and total duration of attempts.
type RetryPolicy struct {
	MaxAttempts int
	Deadline    time.Duration // Zero means no deadline
}

// DefaultRetryPolicy allows five attempts within two minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, Deadline: 2 * time.Minute}
}

// Validate checks the policy.
func (r RetryPolicy) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", r.MaxAttempts)
	}
	if r.Deadline < 0 {
		return fmt.Errorf("deadline must not be negative, got %v", r.Deadline)
	}
	return nil
}

// AttemptResult describes one attempt.
type AttemptResult struct {
	Solved     bool
	Correction int  // Residual applied after settling
	Corrected  bool // Whether a correction move was made
	Plan       solver.Plan
	Err        error
}

// Outcome is the result of Run.
type Outcome struct {
	Attempts int
	Last     AttemptResult
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
