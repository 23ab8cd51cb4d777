package kernel

import (
	"time"

	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// Receive waits for the first untagged message. A zero timeout polls;
// types.Forever never times out. Returns ok=false on timeout or when
// the process has been killed.
func (p *Proc) Receive(timeout time.Duration) (any, bool) {
	payload, _, ok := p.receive(types.TagNone, true, timeout)
	return payload, ok
}

// ReceiveTagged waits for the first message carrying the given tag.
// Non-matching messages stay in the mailbox in their original order.
func (p *Proc) ReceiveTagged(tag types.Tag, timeout time.Duration) (any, bool) {
	payload, _, ok := p.receive(tag, true, timeout)
	return payload, ok
}

// ReceiveAny waits for the first message of any tag and reports the tag
// it carried.
func (p *Proc) ReceiveAny(timeout time.Duration) (any, types.Tag, bool) {
	return p.receive(types.TagNone, false, timeout)
}

// ReceiveNowait polls for a message of any tag without suspending.
func (p *Proc) ReceiveNowait() (any, types.Tag, bool) {
	return p.receive(types.TagNone, false, 0)
}

// receive implements the race-free blocking protocol. The rule that
// keeps it correct: the one party that atomically clears the waiting
// flag owns re-scheduling. Nothing else ever moves a waiting process
// to a run queue.
//
// Must be called on the process's own goroutine.
func (p *Proc) receive(tag types.Tag, selective bool, timeout time.Duration) (any, types.Tag, bool) {
	if p.Killed() {
		return nil, types.TagNone, false
	}

	finite := timeout != types.Forever
	var deadline time.Time
	if finite && timeout > 0 {
		deadline = p.rt.clock.Now().Add(timeout)
	}

	for {
		// Drain the signal stack, then try to match.
		p.mbox.drain()
		if m := p.mbox.pop(tag, selective); m != nil {
			return p.consume(m)
		}

		if timeout == 0 {
			return nil, types.TagNone, false // poll
		}
		if finite && !p.rt.clock.Now().Before(deadline) {
			return nil, types.TagNone, false
		}

		// Commit to sleeping, then drain once more: a sender may have
		// pushed between the drain above and the flag store.
		p.state.Store(uint64(types.StateWaiting))
		p.mbox.armWait()

		p.mbox.drain()
		if m := p.mbox.pop(tag, selective); m != nil {
			if p.mbox.takeWaiting() {
				// We cleared the flag first: we are not on any run
				// queue, so just resume.
				p.state.Store(uint64(types.StateRunning))
				return p.consume(m)
			}
			// A sender cleared the flag and enqueued us. Hand the
			// message back, go through the scheduler, and pick it up
			// on the next drain.
			p.mbox.pushFront(m)
			p.park()
			if p.Killed() {
				return nil, types.TagNone, false
			}
			continue
		}

		// Nothing matched. Arm a wake-up timer for finite timeouts and
		// switch back to the scheduler.
		var ref types.Ref
		if finite {
			remaining := deadline.Sub(p.rt.clock.Now())
			if remaining <= 0 {
				if p.mbox.takeWaiting() {
					p.state.Store(uint64(types.StateRunning))
					return nil, types.TagNone, false
				}
				// A sender got there first and enqueued us: consume
				// that dispatch, then re-check the mailbox.
				p.park()
				if p.Killed() {
					return nil, types.TagNone, false
				}
				continue
			}
			ref = p.rt.timers.addWake(remaining, p)
		}

		p.park()

		if ref != 0 {
			p.rt.timers.cancel(ref)
		}
		if p.Killed() {
			return nil, types.TagNone, false
		}
	}
}

// consume unwraps a matched message cell and recycles it. Payload
// ownership transfers to the caller.
func (p *Proc) consume(m *message) (any, types.Tag, bool) {
	payload, mtag := m.payload, m.tag
	releaseMessage(m)
	p.recvCount.Add(1)
	p.rt.recvTotal.Add(1)
	metrics.MessagesReceivedTotal.Inc()
	return payload, mtag, true
}
