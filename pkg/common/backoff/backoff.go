// Package backoff wraps retry-go with the bounded exponential policy used
// for node queries, data store writes and round starts.
package backoff

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

// Policy bounds a retry loop. Attempts counts the first try.
type Policy struct {
	Attempts uint          `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

var (
	DefaultInitPolicy    = Policy{Attempts: 10, Delay: 500 * time.Millisecond, MaxDelay: 30 * time.Second}
	DefaultCommandPolicy = Policy{Attempts: 5, Delay: 100 * time.Millisecond, MaxDelay: 5 * time.Second}
	DefaultSendPolicy    = Policy{Attempts: 5, Delay: 50 * time.Millisecond, MaxDelay: 2 * time.Second}
)

// OrDefault fills zero fields from def.
func (p Policy) OrDefault(def Policy) Policy {
	if p.Attempts == 0 {
		p.Attempts = def.Attempts
	}
	if p.Delay == 0 {
		p.Delay = def.Delay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// Do runs fn until it succeeds, the attempts are used up or ctx is done.
// The last error is returned.
func Do(ctx context.Context, p Policy, log zerolog.Logger, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.MaxDelay(p.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Str("op", op).Uint("attempt", n+1).Msg("Attempt failed")
		}),
	)
}
