package queue

import "time"

const (
	DefaultLeaseTTL        = 60 * time.Second
	DefaultReclaimInterval = 5 * time.Second
	DefaultDrainTimeout    = 30 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
)

// Config holds queue timing and teardown policy.
type Config struct {
	LeaseTTL        time.Duration
	ReclaimInterval time.Duration
	// DrainTimeout bounds how long Reap waits for active leases and in-flight
	// renew/complete calls to finish.
	DrainTimeout time.Duration
	PollInterval time.Duration
	// ForceExpire lets Reap expire leases still active after DrainTimeout
	// instead of failing with ErrSessionBusy.
	ForceExpire bool
}

func (c Config) withDefaults() Config {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = DefaultReclaimInterval
	}
	if c.DrainTimeout < 0 {
		c.DrainTimeout = 0
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}
