package services

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

type settings struct {
	now             func() time.Time
	newCode         func() (string, error)
	maxParticipants int
	reserveTimeout  time.Duration
	maxAttempts     int
	retryBackOff    func() backoff.BackOff
}

func defaultSettings() settings {
	return settings{
		now:             time.Now,
		newCode:         NewBookingCode,
		maxParticipants: 50,
		reserveTimeout:  2 * time.Second,
		maxAttempts:     3,
		retryBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 5 * time.Millisecond
			b.MaxInterval = 50 * time.Millisecond
			return b
		},
	}
}

type Option func(*settings)

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *settings) { s.newCode = gen }
}

func WithMaxParticipants(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxParticipants = n
		}
	}
}

// WithReserveTimeout bounds how long a reservation may wait for its
// capacity window.
func WithReserveTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.reserveTimeout = d
		}
	}
}

// WithMaxAttempts bounds the optimistic load-validate-write cycles of a
// single lifecycle operation.
func WithMaxAttempts(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithRetryBackOff(fn func() backoff.BackOff) Option {
	return func(s *settings) { s.retryBackOff = fn }
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}
