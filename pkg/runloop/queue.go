package runloop

import (
	"github.com/ef-ds/deque"

	"github.com/luxfi/signer/pkg/types"
)

// CommandQueue is a FIFO of pending commands. DKG may jump the line via
// PushFront. The queue is NOT concurrency safe; it is owned by the run loop.
type CommandQueue struct {
	queue deque.Deque
}

func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// PushBack appends cmd to the tail of the queue.
func (q *CommandQueue) PushBack(cmd types.Command) {
	q.queue.PushBack(cmd)
}

// PushFront puts cmd at the head of the queue.
func (q *CommandQueue) PushFront(cmd types.Command) {
	q.queue.PushFront(cmd)
}

// PopFront removes and returns the head. If the queue is empty, (nil, false)
// is returned.
func (q *CommandQueue) PopFront() (types.Command, bool) {
	v, ok := q.queue.PopFront()
	if !ok {
		return nil, false
	}
	return v.(types.Command), true
}

// Front peeks at the head without removing it.
func (q *CommandQueue) Front() (types.Command, bool) {
	v, ok := q.queue.Front()
	if !ok {
		return nil, false
	}
	return v.(types.Command), true
}

func (q *CommandQueue) Len() int {
	return q.queue.Len()
}
