package kernel

import (
	"sync"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// message is a mailbox cell. The next pointer is reused across the
// lock-free signal stack and the private FIFO: a cell is only ever in
// one of the two at a time.
type message struct {
	next    *message
	tag     types.Tag
	from    types.Pid
	payload any
}

// messagePool amortises cell allocation across senders. sync.Pool is
// per-P cached, which stands in for the per-thread freelists of the
// reference design.
var messagePool = sync.Pool{
	New: func() any { return new(message) },
}

func newMessage(from types.Pid, tag types.Tag, payload any) *message {
	m := messagePool.Get().(*message)
	m.next = nil
	m.tag = tag
	m.from = from
	m.payload = payload
	return m
}

// releaseMessage returns a consumed cell to the pool. The payload has
// already been handed to the receiver; the cell must not be referenced
// afterwards.
func releaseMessage(m *message) {
	m.next = nil
	m.payload = nil
	messagePool.Put(m)
}
