package kernel

import (
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// runNode is the intrusive run-queue linkage embedded in every process.
// A process is on at most one run queue at a time, so one node per
// process suffices; the stub node of each queue has a nil proc.
type runNode struct {
	next atomic.Pointer[runNode]
	proc *Proc
}

// runQueue is a Vyukov-style MPSC linked list with a permanent stub
// node. Push is safe from any thread; pop only from the owning worker.
type runQueue struct {
	head       *runNode // consumer-owned
	tail       atomic.Pointer[runNode]
	stub       runNode
	depth      atomix.Int64
	spinBudget int
}

func (q *runQueue) init(spinBudget int) {
	q.head = &q.stub
	q.tail.Store(&q.stub)
	q.spinBudget = spinBudget
}

// push links a process at the tail. Safe from any thread.
func (q *runQueue) push(p *Proc) {
	q.pushNode(&p.node)
	q.depth.Add(1)
}

// pushNode: exchange tail, then publish the link. Between the exchange
// and the link the chain is momentarily broken; pop spins across that
// window.
func (q *runQueue) pushNode(n *runNode) {
	n.next.Store(nil)
	prev := q.tail.Swap(n)
	prev.next.Store(n)
}

// pop removes the oldest process. Returns nil when the queue is empty
// or when a concurrent push has not yet been linked within the spin
// budget; the caller just moves on and retries next loop iteration.
func (q *runQueue) pop() *Proc {
	head := q.head
	next := head.next.Load()

	if head == &q.stub {
		if next == nil {
			if q.tail.Load() == head {
				return nil // truly empty
			}
			next = q.awaitLink(head)
			if next == nil {
				return nil
			}
		}
		// Skip past the stub.
		q.head = next
		head = next
		next = head.next.Load()
	}

	if next != nil {
		q.head = next
		q.depth.Add(-1)
		return head.proc
	}

	tail := q.tail.Load()
	if head != tail {
		// A push exchanged the tail but has not linked yet.
		next = q.awaitLink(head)
		if next == nil {
			return nil
		}
		q.head = next
		q.depth.Add(-1)
		return head.proc
	}

	// Single element: re-insert the stub so the last node can drain.
	q.pushNode(&q.stub)
	next = head.next.Load()
	if next == nil {
		// The stub push has linearized; its link lands promptly.
		sw := spin.Wait{}
		for next == nil {
			sw.Once()
			next = head.next.Load()
		}
	}
	q.head = next
	q.depth.Add(-1)
	return head.proc
}

// awaitLink spins briefly for a linearized-but-unlinked push to publish
// its next pointer.
func (q *runQueue) awaitLink(head *runNode) *runNode {
	sw := spin.Wait{}
	for i := 0; i < q.spinBudget; i++ {
		if next := head.next.Load(); next != nil {
			return next
		}
		sw.Once()
	}
	return head.next.Load()
}

// approxDepth is a racy depth estimate for stats output.
func (q *runQueue) approxDepth() int {
	d := q.depth.Load()
	if d < 0 {
		return 0
	}
	return int(d)
}

// prioritySet multiplexes one run queue per priority level. Pop drains
// strictly from max down to low.
type prioritySet struct {
	queues [types.NumPriorities]runQueue
}

func (ps *prioritySet) init(spinBudget int) {
	for i := range ps.queues {
		ps.queues[i].init(spinBudget)
	}
}

func (ps *prioritySet) push(p *Proc) {
	ps.queues[p.prio].push(p)
}

func (ps *prioritySet) pop() *Proc {
	for i := range ps.queues {
		if p := ps.queues[i].pop(); p != nil {
			return p
		}
	}
	return nil
}

func (ps *prioritySet) depths() [types.NumPriorities]int {
	var out [types.NumPriorities]int
	for i := range ps.queues {
		out[i] = ps.queues[i].approxDepth()
	}
	return out
}
