package messaging

import (
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPubSub(t *testing.T) {
	bus := NewLocalPubSub()

	var got [][]byte
	sub, err := bus.Subscribe("a", func(msg *nats.Msg) {
		assert.Equal(t, "a", msg.Subject)
		got = append(got, msg.Data)
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish("a", []byte("one")))
	require.NoError(t, bus.Publish("b", []byte("other topic")))
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, sub.Unsubscribe())
	require.NoError(t, bus.Publish("a", []byte("two")))

	assert.Equal(t, [][]byte{[]byte("one")}, got)
}

func TestLocalPubSub_FanOut(t *testing.T) {
	bus := NewLocalPubSub()
	count := 0
	for i := 0; i < 3; i++ {
		_, err := bus.Subscribe("x", func(*nats.Msg) { count++ })
		require.NoError(t, err)
	}
	require.NoError(t, bus.Publish("x", nil))
	assert.Equal(t, 3, count)
}

func TestLocalPubSub_Closed(t *testing.T) {
	bus := NewLocalPubSub()
	bus.Close()

	assert.ErrorIs(t, bus.Publish("a", nil), ErrClosed)
	_, err := bus.Subscribe("a", func(*nats.Msg) {})
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, bus.Flush(0))
}
