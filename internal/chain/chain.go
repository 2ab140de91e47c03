// Package chain runs one logical generation operation against an ordered
// list of (provider, model) candidates, deciding per classified error kind
// whether to retry the candidate, advance to the next one, or abort.
package chain

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"adstudio/internal/providers"
)

// Policy bounds a single chain run. The retry decision is a pure function of
// attempt count and error kind so tests can assert exact attempt counts.
type Policy struct {
	PerAttemptTimeout      time.Duration
	MaxRetriesPerCandidate int
	BackoffBase            time.Duration
}

// DefaultPolicy mirrors the production configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		PerAttemptTimeout:      90 * time.Second,
		MaxRetriesPerCandidate: 2,
		BackoffBase:            500 * time.Millisecond,
	}
}

// Operation invokes one candidate. Implementations resolve the adapter and
// perform the actual provider call.
type Operation func(ctx context.Context, candidate providers.Candidate) (*providers.Result, error)

// Attempt records one candidate invocation for diagnostics.
type Attempt struct {
	Candidate providers.Candidate
	Elapsed   time.Duration
	Kind      providers.ErrorKind
	Err       error
}

// ExhaustedError reports that every candidate failed, carrying the outcome
// of each attempt so callers can distinguish "all providers down" from a
// configuration problem.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	b.WriteString("chain exhausted")
	for _, attempt := range e.Attempts {
		fmt.Fprintf(&b, "; %s [%s]", attempt.Candidate, attempt.Kind)
	}
	return b.String()
}

// Runner executes fallback chains under a Policy.
type Runner struct {
	policy Policy
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	clock  func() time.Time
}

// Option customizes a Runner, mainly for tests.
type Option func(*Runner)

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithClock replaces the wall clock used for attempt timing.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) { r.clock = clock }
}

func NewRunner(policy Policy, logger *zerolog.Logger, opts ...Option) *Runner {
	if policy.PerAttemptTimeout <= 0 {
		policy.PerAttemptTimeout = DefaultPolicy().PerAttemptTimeout
	}
	if policy.MaxRetriesPerCandidate < 0 {
		policy.MaxRetriesPerCandidate = 0
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = DefaultPolicy().BackoffBase
	}
	r := &Runner{
		policy: policy,
		sleep:  sleepContext,
		clock:  time.Now,
	}
	if logger != nil {
		r.logger = *logger
	} else {
		r.logger = zerolog.New(io.Discard)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the chain in order. Per candidate: one attempt raced against the
// per-attempt timeout, transient failures retried with doubling backoff up to
// the policy ceiling, permanent failures skipped immediately. Credential and
// permission failures abort the whole chain. Cancellation is cooperative,
// observed between attempts, and surfaces as a Cancelled-kind error rather
// than an ExhaustedError.
func (r *Runner) Run(ctx context.Context, chain providers.Chain, op Operation) (*providers.Result, error) {
	if len(chain) == 0 {
		return nil, &ExhaustedError{}
	}

	var attempts []Attempt
	for _, candidate := range chain {
		retries := 0
		for {
			if err := ctx.Err(); err != nil {
				return nil, cancelled(candidate, err)
			}

			start := r.clock()
			result, err := r.attempt(ctx, candidate, op)
			elapsed := r.clock().Sub(start)
			if err == nil {
				r.logger.Debug().
					Str("candidate", candidate.String()).
					Dur("elapsed", elapsed).
					Int("retries", retries).
					Msg("chain: candidate succeeded")
				return result, nil
			}

			kind := providers.KindOf(err)
			attempts = append(attempts, Attempt{Candidate: candidate, Elapsed: elapsed, Kind: kind, Err: err})
			r.logger.Warn().
				Str("candidate", candidate.String()).
				Str("kind", string(kind)).
				Dur("elapsed", elapsed).
				Msg("chain: candidate attempt failed")

			switch kind {
			case providers.KindCancelled:
				return nil, err
			case providers.KindMissingCredential, providers.KindPermissionDenied:
				// Retrying or falling over cannot fix an auth problem and
				// would burn quota on other providers while masking it.
				return nil, err
			case providers.KindModelNotFound:
				// Permanently unusable for this request.
			case providers.KindRateLimited, providers.KindServiceOverloaded, providers.KindTimeout:
				if retries < r.policy.MaxRetriesPerCandidate {
					delay := r.policy.BackoffBase << retries
					retries++
					if err := r.sleep(ctx, delay); err != nil {
						return nil, cancelled(candidate, err)
					}
					continue
				}
			}
			break
		}
	}
	return nil, &ExhaustedError{Attempts: attempts}
}

func (r *Runner) attempt(ctx context.Context, candidate providers.Candidate, op Operation) (*providers.Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.PerAttemptTimeout)
	defer cancel()

	result, err := op(attemptCtx, candidate)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, &providers.Error{
				Kind:     providers.KindTimeout,
				Provider: candidate.Provider,
				Model:    candidate.Model,
				Err:      attemptCtx.Err(),
			}
		}
		return nil, err
	}
	return result, nil
}

func cancelled(candidate providers.Candidate, err error) error {
	return &providers.Error{
		Kind:     providers.KindCancelled,
		Provider: candidate.Provider,
		Model:    candidate.Model,
		Err:      err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
