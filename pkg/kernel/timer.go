package kernel

import (
	"sync"
	"time"

	"code.hybscloud.com/atomix"
	"github.com/zoobzio/clockz"

	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// timerEntry is one pending delivery or wake-up, keyed by absolute
// monotonic deadline. A destination with nil payload and TagNone is a
// pure wake-up; anything else is a scheduled tagged send.
type timerEntry struct {
	next     *timerEntry
	ref      types.Ref
	deadline time.Time
	dest     *Proc
	tag      types.Tag
	payload  any
}

var timerPool = sync.Pool{
	New: func() any { return new(timerEntry) },
}

// timerList is the shared sorted list of pending timers. Every worker
// probes it once per loop iteration; any worker may fire any timer.
// The mutex is held only while the list itself is manipulated, never
// across delivery.
type timerList struct {
	mu      sync.Mutex
	head    *timerEntry
	count   atomix.Int64 // mutated under mu; read lock-free as an emptiness hint
	nextRef atomix.Uint64
	clock   clockz.Clock
	rt      *Runtime
}

func newTimerList(rt *Runtime, clock clockz.Clock) *timerList {
	return &timerList{clock: clock, rt: rt}
}

// add inserts a timer sorted by deadline and returns its reference.
func (tl *timerList) add(delay time.Duration, dest *Proc, tag types.Tag, payload any) types.Ref {
	e := timerPool.Get().(*timerEntry)
	e.next = nil
	e.ref = types.Ref(tl.nextRef.Add(1))
	e.deadline = tl.clock.Now().Add(delay)
	e.dest = dest
	e.tag = tag
	e.payload = payload

	tl.mu.Lock()
	var prev *timerEntry
	cur := tl.head
	for cur != nil && !e.deadline.Before(cur.deadline) {
		prev = cur
		cur = cur.next
	}
	e.next = cur
	if prev == nil {
		tl.head = e
	} else {
		prev.next = e
	}
	tl.count.Add(1)
	tl.mu.Unlock()

	return e.ref
}

// addWake schedules a pure wake-up used by receive timeouts.
func (tl *timerList) addWake(delay time.Duration, dest *Proc) types.Ref {
	return tl.add(delay, dest, types.TagNone, nil)
}

// cancel unlinks a pending timer. Reports whether it was still pending.
func (tl *timerList) cancel(ref types.Ref) bool {
	tl.mu.Lock()
	var prev *timerEntry
	for cur := tl.head; cur != nil; prev, cur = cur, cur.next {
		if cur.ref != ref {
			continue
		}
		if prev == nil {
			tl.head = cur.next
		} else {
			prev.next = cur.next
		}
		tl.count.Add(-1)
		tl.mu.Unlock()
		cur.next = nil
		cur.dest = nil
		cur.payload = nil
		timerPool.Put(cur)
		metrics.TimersCancelledTotal.Inc()
		return true
	}
	tl.mu.Unlock()
	return false
}

// fire pops every due timer and delivers outside the lock. Pure
// wake-ups go through the mailbox wake handshake; everything else is a
// tagged send from pid 0.
func (tl *timerList) fire() {
	if tl.count.Load() == 0 {
		return
	}
	now := tl.clock.Now()

	tl.mu.Lock()
	var due *timerEntry
	var dueTail *timerEntry
	for tl.head != nil && !tl.head.deadline.After(now) {
		e := tl.head
		tl.head = e.next
		e.next = nil
		tl.count.Add(-1)
		if dueTail == nil {
			due = e
		} else {
			dueTail.next = e
		}
		dueTail = e
	}
	tl.mu.Unlock()

	for due != nil {
		e := due
		due = e.next

		if e.payload == nil && e.tag == types.TagNone {
			tl.rt.wake(e.dest)
		} else {
			// Delivery failures (dead destination) are dropped, same
			// as a send to an exited process.
			_ = tl.rt.deliver(0, e.dest, e.tag, e.payload)
		}
		metrics.TimersFiredTotal.Inc()

		e.next = nil
		e.dest = nil
		e.payload = nil
		timerPool.Put(e)
	}
}

// pending returns the number of timers in the list.
func (tl *timerList) pending() int {
	return int(tl.count.Load())
}

// drainAll discards every pending timer. Used during shutdown.
func (tl *timerList) drainAll() {
	tl.mu.Lock()
	for cur := tl.head; cur != nil; {
		next := cur.next
		cur.next = nil
		cur.dest = nil
		cur.payload = nil
		timerPool.Put(cur)
		cur = next
	}
	tl.head = nil
	tl.count.Store(0)
	tl.mu.Unlock()
}

// SendAfter schedules a tagged delivery after the given delay and
// returns a reference usable with CancelTimer.
func (rt *Runtime) SendAfter(delay time.Duration, dest *Proc, tag types.Tag, payload any) types.Ref {
	if dest == nil {
		return 0
	}
	return rt.timers.add(delay, dest, tag, payload)
}

// CancelTimer removes a pending timer. Reports whether it was found;
// a timer that already fired is gone.
func (rt *Runtime) CancelTimer(ref types.Ref) bool {
	if ref == 0 {
		return false
	}
	return rt.timers.cancel(ref)
}
