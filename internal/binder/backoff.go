package binder

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig shapes the delay between re-dial attempts.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	// RandomizationFactor spreads each delay by up to this fraction either way.
	RandomizationFactor float64
}

// DefaultBackoff doubles from 250ms up to 5s, randomized by half.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay:        250 * time.Millisecond,
		Multiplier:          2.0,
		MaxDelay:            5 * time.Second,
		RandomizationFactor: 0.5,
	}
}

// NewSchedule returns a re-dial schedule. It yields backoff.Stop once
// maxElapsed has passed since creation; zero never stops.
func (c BackoffConfig) NewSchedule(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	multiplier := c.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	opts := []backoff.ExponentialBackOffOpts{
		backoff.WithInitialInterval(c.InitialDelay),
		backoff.WithMultiplier(multiplier),
		backoff.WithRandomizationFactor(c.RandomizationFactor),
		backoff.WithMaxElapsedTime(maxElapsed),
	}
	if c.MaxDelay > 0 {
		opts = append(opts, backoff.WithMaxInterval(c.MaxDelay))
	}
	return backoff.NewExponentialBackOff(opts...)
}
