package ipc

import "time"

const (
	defaultFastRetry         = 2 * time.Second
	defaultBackoffBase       = 1 * time.Second
	defaultMaxBackoff        = 30 * time.Second
	defaultFailFastThreshold = 5
	defaultMaxFailures       = 20
)

// BackoffPolicy decides how long to wait after a failed connection.
// Failures up to FailFastThreshold retry quickly because the game has
// usually just not loaded the plugin yet.
type BackoffPolicy struct {
	FastRetry         time.Duration
	Base              time.Duration
	MaxDelay          time.Duration
	FailFastThreshold int
	MaxFailures       int
}

// DefaultBackoffPolicy returns the production retry policy
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		FastRetry:         defaultFastRetry,
		Base:              defaultBackoffBase,
		MaxDelay:          defaultMaxBackoff,
		FailFastThreshold: defaultFailFastThreshold,
		MaxFailures:       defaultMaxFailures,
	}
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	d := DefaultBackoffPolicy()
	if p.FastRetry <= 0 {
		p.FastRetry = d.FastRetry
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.FailFastThreshold <= 0 {
		p.FailFastThreshold = d.FailFastThreshold
	}
	if p.MaxFailures <= p.FailFastThreshold {
		p.MaxFailures = p.FailFastThreshold + (d.MaxFailures - d.FailFastThreshold)
	}
	return p
}

// Delay returns the wait before the next attempt after the given number of
// consecutive failures.
func (p BackoffPolicy) Delay(consecutiveFailures int) time.Duration {
	if consecutiveFailures <= p.FailFastThreshold {
		return p.FastRetry
	}

	exp := consecutiveFailures - p.FailFastThreshold
	// Cap the shift before it overflows
	if exp > 30 {
		return p.MaxDelay
	}
	delay := p.Base * time.Duration(1<<uint(exp))
	if delay > p.MaxDelay || delay <= 0 {
		delay = p.MaxDelay
	}
	return delay
}

// Health classifies the given number of consecutive failures
func (p BackoffPolicy) Health(consecutiveFailures int) Health {
	switch {
	case consecutiveFailures < p.FailFastThreshold:
		return HealthHealthy
	case consecutiveFailures < p.MaxFailures:
		return HealthDegraded
	default:
		return HealthFailed
	}
}
