package drag

import (
	"context"
	"errors"
	"fmt"

	"slider-solver/internal/raster"

	"github.com/rs/zerolog"
)

// TransitionFunc observes state changes. attempt counts from 1.
type TransitionFunc func(attempt int, from, to State)

// Controller runs drag attempts until one is verified or the retry policy
// runs out.
type Controller struct {
	source    ImageSource
	pointer   Pointer
	inspector Inspector
	planner   Planner

	params  Params
	retry   RetryPolicy
	logger  zerolog.Logger
	observe TransitionFunc
}

// Option configures a Controller.
type Option func(*Controller)

// WithParams sets the attempt parameters.
func WithParams(p Params) Option {
	return func(c *Controller) { c.params = p }
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(r RetryPolicy) Option {
	return func(c *Controller) { c.retry = r }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OnTransition registers an observer for state changes.
func OnTransition(fn TransitionFunc) Option {
	return func(c *Controller) { c.observe = fn }
}

// NewController creates a controller over the page collaborators.
func NewController(source ImageSource, pointer Pointer, inspector Inspector, planner Planner, opts ...Option) (*Controller, error) {
	if source == nil || pointer == nil || inspector == nil || planner == nil {
		return nil, errors.New("drag: source, pointer, inspector and planner are required")
	}
	c := &Controller{
		source:    source,
		pointer:   pointer,
		inspector: inspector,
		planner:   planner,
		params:    DefaultParams(),
		retry:     DefaultRetryPolicy(),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.params.Validate(); err != nil {
		return nil, err
	}
	if err := c.retry.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Run performs attempts until one is verified. It returns an error wrapping
// ErrRetriesExhausted and the last attempt's error when the policy runs out
// or ctx ends.
func (c *Controller) Run(ctx context.Context) (Outcome, error) {
	if c.retry.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.retry.Deadline)
		defer cancel()
	}

	var out Outcome
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		out.Attempts = attempt
		out.Last = c.attempt(ctx, attempt)
		if out.Last.Solved {
			c.logger.Info().Int("attempt", attempt).Int("displacement", out.Last.Plan.Displacement).Msg("slider verified")
			return out, nil
		}
		c.logger.Warn().Err(out.Last.Err).Int("attempt", attempt).Msg("attempt failed")
	}

	cause := out.Last.Err
	if cause == nil {
		cause = ctx.Err()
	}
	return out, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, out.Attempts, cause)
}

// attempt runs one pass of the state machine.
func (c *Controller) attempt(ctx context.Context, n int) (res AttemptResult) {
	state := StateIdle
	to := func(next State) {
		c.logger.Debug().Int("attempt", n).Str("from", state.String()).Str("to", next.String()).Msg("transition")
		if c.observe != nil {
			c.observe(n, state, next)
		}
		state = next
	}
	fail := func(err error) AttemptResult {
		res.Err = err
		to(StateFailed)
		return res
	}
	aborted := func(what string, err error) AttemptResult {
		return fail(fmt.Errorf("%w: %s: %w", ErrDragAborted, what, err))
	}

	bg, piece, err := c.source.Acquire(ctx)
	if err != nil {
		if !errors.Is(err, ErrAcquisitionFailed) {
			err = fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
		}
		return fail(err)
	}

	plan, err := c.planner.SolveWith(c.params.InitialStrategy, bg, piece)
	if err != nil {
		return fail(err)
	}
	handle, err := c.inspector.BoundingBox(ctx, c.params.HandleSelector)
	if err != nil {
		return fail(fmt.Errorf("locate handle: %w", err))
	}
	if handle.Empty() {
		return fail(fmt.Errorf("locate handle: %q has no size", c.params.HandleSelector))
	}
	plan.Handle = handle
	res.Plan = plan

	start := handle.Center()
	if err := c.pointer.Down(ctx, start.X, start.Y); err != nil {
		return aborted("pointer down", err)
	}
	to(StateGrasped)

	released := false
	defer func() {
		if released {
			return
		}
		// Never leave the button held, even when ctx is already done.
		if err := c.pointer.Up(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error().Err(err).Int("attempt", n).Msg("release pointer")
		}
	}()

	x := handle.X + float64(plan.Displacement) - handle.Width/2
	y := handle.Y + handle.Height/3
	to(StateCoarseMoving)
	if err := c.pointer.Move(ctx, x, y, c.params.CoarseSteps); err != nil {
		return aborted("coarse move", err)
	}

	to(StateSettling)
	if err := sleep(ctx, c.params.SettleDelay); err != nil {
		return aborted("settle", err)
	}

	if !c.params.SkipCorrection {
		to(StateCorrecting)
		residual, ok := c.measure(ctx, n, bg)
		if ctx.Err() != nil {
			return aborted("correction", ctx.Err())
		}
		if ok {
			res.Correction = residual
			res.Corrected = true
			x += float64(residual)
			y = handle.Y + handle.Height/2
			if err := c.pointer.Move(ctx, x, y, c.params.CorrectionSteps); err != nil {
				return aborted("correction move", err)
			}
		}
	}

	released = true
	if err := c.pointer.Up(ctx); err != nil {
		return aborted("pointer up", err)
	}
	to(StateReleased)

	ok, err := c.inspector.WaitForMarker(ctx, c.params.SuccessSelector, c.params.VerifyTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return aborted("verification", err)
		}
		return fail(fmt.Errorf("%w: %w", ErrVerificationTimeout, err))
	}
	if !ok {
		return fail(fmt.Errorf("%w: %q not shown within %v", ErrVerificationTimeout, c.params.SuccessSelector, c.params.VerifyTimeout))
	}

	res.Solved = true
	to(StateVerified)
	return res
}

// measure re-locates the dragged piece and returns the remaining offset to
// the slot. A failed measurement leaves the coarse position in place.
func (c *Controller) measure(ctx context.Context, n int, bg *raster.Image) (int, bool) {
	snap, err := c.source.Snapshot(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Int("attempt", n).Msg("snapshot for correction")
		return 0, false
	}
	plan, err := c.planner.SolveWith(c.params.CorrectionStrategy, bg, snap)
	if err != nil {
		c.logger.Warn().Err(err).Int("attempt", n).Msg("measure residual")
		return 0, false
	}
	c.logger.Debug().Int("attempt", n).Int("residual", plan.Displacement).Msg("measured residual")
	return plan.Displacement, true
}
