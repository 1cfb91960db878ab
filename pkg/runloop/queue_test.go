package runloop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/types"
)

func TestCommandQueue(t *testing.T) {
	q := NewCommandQueue()
	_, ok := q.PopFront()
	assert.False(t, ok)
	_, ok = q.Front()
	assert.False(t, ok)

	q.PushBack(types.SignCommand{Message: []byte("a")})
	q.PushBack(types.SignCommand{Message: []byte("b")})
	q.PushFront(types.DkgCommand{})
	assert.Equal(t, 3, q.Len())

	front, ok := q.Front()
	require.True(t, ok)
	assert.True(t, types.IsDkg(front))
	assert.Equal(t, 3, q.Len())

	var order []string
	for q.Len() > 0 {
		cmd, ok := q.PopFront()
		require.True(t, ok)
		if sign, isSign := cmd.(types.SignCommand); isSign {
			order = append(order, string(sign.Message))
		} else {
			order = append(order, cmd.CommandName())
		}
	}
	assert.Equal(t, []string{"dkg", "a", "b"}, order)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "dkg", StateDkg.String())
	assert.Equal(t, "sign", StateSign.String())
	assert.Equal(t, "unknown", State(42).String())

	assert.False(t, StateIdle.RoundInFlight())
	assert.True(t, StateDkg.RoundInFlight())
	assert.True(t, StateSign.RoundInFlight())
}
