// Package saga runs an ordered list of steps and undoes the completed ones, in
// reverse, when a later step fails.
package saga

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/taskflow/internal/telemetry"
)

// Step is one unit of work. Compensate may be nil for steps with nothing to undo.
type Step struct {
	Name       string
	Execute    func(ctx context.Context) error
	Compensate func(ctx context.Context) error
	// Partial marks a step whose Execute can take effect and still fail. Its
	// Compensate then runs for the failed attempt too.
	Partial bool
}

// Option configures a Saga.
type Option func(*Saga)

// WithMaxTries bounds how many times each compensation is attempted. Default: 3
func WithMaxTries(n uint) Option {
	return func(s *Saga) {
		if n > 0 {
			s.maxTries = n
		}
	}
}

// WithInitialInterval sets the first delay between compensation attempts. Default: 100ms
func WithInitialInterval(d time.Duration) Option {
	return func(s *Saga) {
		if d > 0 {
			s.initialInterval = d
		}
	}
}

// Saga is an explicit, ordered list of steps with their compensations.
type Saga struct {
	name            string
	steps           []Step
	maxTries        uint
	initialInterval time.Duration
}

func New(name string, opts ...Option) *Saga {
	s := &Saga{
		name:            name,
		maxTries:        3,
		initialInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStep appends a step. Steps run in the order they are added.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// Failure is returned by Run when a step fails. It unwraps to the step's own
// error; compensation errors are kept alongside but never replace it.
type Failure struct {
	Step string
	// Completed lists the steps that had finished before Step failed.
	Completed []string
	Err       error
	// CompensationErrs holds the compensations that still failed after retrying.
	CompensationErrs []error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("step %s failed: %v", f.Step, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Run executes the steps in order. When a step fails every completed step is
// compensated in reverse order, preceded by the failed step itself when it is
// Partial, and a *Failure is returned.
//
// Compensation runs detached from ctx cancellation so a caller going away does
// not leave half the work in place.
func (s *Saga) Run(ctx context.Context) error {
	completed := make([]Step, 0, len(s.steps))

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return s.fail(ctx, step.Name, completed, nil, err)
		}

		if err := step.Execute(ctx); err != nil {
			var partial *Step
			if step.Partial {
				partial = &step
			}
			return s.fail(ctx, step.Name, completed, partial, err)
		}

		log.Debug().Str("saga", s.name).Str("step", step.Name).Msg("Saga step completed")
		completed = append(completed, step)
	}

	return nil
}

func (s *Saga) fail(ctx context.Context, failed string, completed []Step, partial *Step, cause error) error {
	f := &Failure{Step: failed, Err: cause}
	for _, step := range completed {
		f.Completed = append(f.Completed, step.Name)
	}

	undo := slices.Clone(completed)
	if partial != nil {
		undo = append(undo, *partial)
	}

	log.Warn().Err(cause).
		Str("saga", s.name).
		Str("step", failed).
		Int("compensations", len(undo)).
		Msg("Saga step failed, compensating")

	cctx := context.WithoutCancel(ctx)

	for i := len(undo) - 1; i >= 0; i-- {
		step := undo[i]
		if step.Compensate == nil {
			continue
		}

		if err := s.compensate(cctx, step); err != nil {
			telemetry.GetMetrics().CompensationFailuresTotal.Add(cctx, 1)
			log.Error().Err(err).
				Str("saga", s.name).
				Str("step", step.Name).
				Msg("Compensation failed")
			f.CompensationErrs = append(f.CompensationErrs, fmt.Errorf("compensate %s: %w", step.Name, err))
		}
	}

	return f
}

func (s *Saga) compensate(ctx context.Context, step Step) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, step.Compensate(ctx)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.maxTries),
	)
	return err
}

// CompensationError joins the compensation errors carried by err, if any.
func CompensationError(err error) error {
	var f *Failure
	if errors.As(err, &f) {
		return errors.Join(f.CompensationErrs...)
	}
	return nil
}
