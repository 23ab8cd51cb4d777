package kernel

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// mailbox is a process's inbound buffer: a lock-free multi-producer
// signal stack plus a private FIFO owned by the receiving process.
//
// Invariants:
//   - senders touch only sigHead (CAS push) and the waiting flag,
//   - the owner is the sole consumer and solely mutates the private FIFO,
//   - waiting=1 is published only after a drain found no matching message,
//     and is cleared by exactly one party: the sender that then enqueues
//     the owner, or the owner if it finds a message before sleeping.
type mailbox struct {
	sigHead  atomic.Pointer[message]
	privHead *message
	privTail *message
	count    int
	waiting  atomix.Uint64
}

// push CAS-pushes a cell onto the signal stack. Safe from any thread.
func (mb *mailbox) push(m *message) {
	for {
		old := mb.sigHead.Load()
		m.next = old
		if mb.sigHead.CompareAndSwap(old, m) {
			return
		}
	}
}

// drain steals the whole signal stack, reverses the LIFO chain, and
// appends it to the private FIFO in send order. Owner only.
func (mb *mailbox) drain() {
	stolen := mb.sigHead.Swap(nil)
	if stolen == nil {
		return
	}

	// Reverse the stolen chain to recover FIFO order.
	var rev *message
	for stolen != nil {
		next := stolen.next
		stolen.next = rev
		rev = stolen
		stolen = next
	}

	for rev != nil {
		next := rev.next
		rev.next = nil
		if mb.privTail == nil {
			mb.privHead = rev
		} else {
			mb.privTail.next = rev
		}
		mb.privTail = rev
		mb.count++
		rev = next
	}
}

// pop removes the first private message, or the first one with the given
// tag when selective. Non-matching messages keep their relative order.
// Owner only.
func (mb *mailbox) pop(tag types.Tag, selective bool) *message {
	var prev *message
	for m := mb.privHead; m != nil; m = m.next {
		if selective && m.tag != tag {
			prev = m
			continue
		}
		if prev == nil {
			mb.privHead = m.next
		} else {
			prev.next = m.next
		}
		if mb.privTail == m {
			mb.privTail = prev
		}
		m.next = nil
		mb.count--
		return m
	}
	return nil
}

// pushFront returns a message to the head of the private queue. Used
// when the owner matched a message during the final drain but lost the
// waiting-flag race and must go through the scheduler once more.
func (mb *mailbox) pushFront(m *message) {
	m.next = mb.privHead
	mb.privHead = m
	if mb.privTail == nil {
		mb.privTail = m
	}
	mb.count++
}

// armWait publishes the owner's commitment to sleep.
func (mb *mailbox) armWait() {
	mb.waiting.StoreRelease(1)
}

// takeWaiting atomically clears the waiting flag, reporting whether this
// caller was the one to observe it set. The winner owns re-scheduling.
func (mb *mailbox) takeWaiting() bool {
	for {
		old := mb.waiting.LoadAcquire()
		if old == 0 {
			return false
		}
		if mb.waiting.CompareAndSwapAcqRel(old, 0) {
			return true
		}
	}
}

// empty reports whether the private queue holds no messages. It says
// nothing about the signal stack.
func (mb *mailbox) empty() bool {
	return mb.privHead == nil
}

// reset clears both queues, releasing any undelivered cells. Called
// during slot reclamation; at that point no sender can hold a reference
// to this incarnation.
func (mb *mailbox) reset() {
	mb.drain()
	for m := mb.privHead; m != nil; {
		next := m.next
		releaseMessage(m)
		m = next
	}
	mb.privHead = nil
	mb.privTail = nil
	mb.count = 0
	mb.waiting.Store(0)
}
