// Package retry turns a delay policy into a bounded retry loop on top of
// cenkalti/backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Kind selects how long the policy waits after a failed attempt.
type Kind int

const (
	// KindUnexpected covers failures nobody classified (network errors,
	// undecodable bodies). They wait ErrorDelay.
	KindUnexpected Kind = iota
	// KindTransient waits BaseDelay plus jitter.
	KindTransient
	// KindEscalating waits like KindTransient, scaled by the attempt number.
	KindEscalating
)

type kindError struct {
	err  error
	kind Kind
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func Transient(err error) error {
	return &kindError{err: err, kind: KindTransient}
}

func Escalating(err error) error {
	return &kindError{err: err, kind: KindEscalating}
}

// Permanent stops the loop immediately; Do returns the wrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnexpected
}

type Policy struct {
	BaseDelay  time.Duration
	JitterMin  time.Duration
	JitterMax  time.Duration
	ErrorDelay time.Duration
	// Escalation is the extra multiple of the transient delay added per
	// attempt for KindEscalating: 1 means delay*attempt.
	Escalation  float64
	MaxAttempts int

	// Rand returns values in [0, 1); nil means math/rand/v2.
	Rand func() float64

	timer backoff.Timer
}

// Delay is the wait after the given 1-indexed attempt failed with err.
func (p Policy) Delay(attempt int, err error) time.Duration {
	switch KindOf(err) {
	case KindTransient:
		return p.transient()
	case KindEscalating:
		factor := 1 + p.Escalation*float64(attempt-1)
		if factor < 1 {
			factor = 1
		}
		return time.Duration(float64(p.transient()) * factor)
	default:
		return p.ErrorDelay
	}
}

func (p Policy) transient() time.Duration {
	d := p.BaseDelay + p.JitterMin
	if span := p.JitterMax - p.JitterMin; span > 0 {
		r := p.Rand
		if r == nil {
			r = rand.Float64
		}
		d += time.Duration(r() * float64(span))
	}
	return d
}

// schedule adapts Policy to backoff.BackOff; it needs the last error to pick
// the delay, which the wrapped operation records.
type schedule struct {
	policy  Policy
	attempt int
	last    error
}

func (s *schedule) NextBackOff() time.Duration {
	if s.policy.MaxAttempts > 0 && s.attempt >= s.policy.MaxAttempts {
		return backoff.Stop
	}
	return s.policy.Delay(s.attempt, s.last)
}

func (s *schedule) Reset() {
	s.attempt = 0
	s.last = nil
}

// Notify is called before each wait with the attempt that just failed.
type Notify func(attempt int, err error, wait time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the attempt budget
// runs out or ctx is done. It returns the last error with retry markers intact.
func Do(ctx context.Context, p Policy, op func(attempt int) error, notify Notify) error {
	s := &schedule{policy: p}

	operation := func() error {
		s.attempt++
		err := op(s.attempt)
		s.last = err
		return err
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, d time.Duration) {
			notify(s.attempt, err, d)
		}
	}

	return backoff.RetryNotifyWithTimer(operation, backoff.WithContext(s, ctx), n, p.timer)
}
