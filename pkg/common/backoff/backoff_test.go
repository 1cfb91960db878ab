package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

var fast = Policy{Attempts: 4, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast, zerolog.Nop(), "test", func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fast, zerolog.Nop(), "test", func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{}, zerolog.Nop(), "test", func() error {
		calls++
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestOrDefault(t *testing.T) {
	p := Policy{Attempts: 2}.OrDefault(DefaultSendPolicy)
	assert.Equal(t, uint(2), p.Attempts)
	assert.Equal(t, DefaultSendPolicy.Delay, p.Delay)
	assert.Equal(t, DefaultSendPolicy.MaxDelay, p.MaxDelay)
}
