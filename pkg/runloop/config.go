package runloop

import (
	"time"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/common/backoff"
)

const DefaultEventTimeout = 50 * time.Millisecond

type Config struct {
	SignerID uint32
	Keys     committee.PublicKeySet
	// EventTimeout is how long the driver waits for input between passes.
	EventTimeout time.Duration
	// InitPolicy bounds the aggregate key lookup while uninitialized.
	InitPolicy backoff.Policy
	// CommandPolicy bounds attempts to start the round at the queue head.
	CommandPolicy backoff.Policy
}

func (c Config) withDefaults() Config {
	if c.EventTimeout <= 0 {
		c.EventTimeout = DefaultEventTimeout
	}
	c.InitPolicy = c.InitPolicy.OrDefault(backoff.DefaultInitPolicy)
	c.CommandPolicy = c.CommandPolicy.OrDefault(backoff.DefaultCommandPolicy)
	return c
}
