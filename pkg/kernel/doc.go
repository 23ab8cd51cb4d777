/*
Package kernel implements the SwarmRT process and scheduling core: a
pre-allocated process arena, per-worker multi-priority run queues,
lock-free mailboxes with a race-free sleep/wake handshake, cooperative
context switching, exit propagation across links and monitors, a name
registry, and a shared timer list.

# Architecture

	┌─────────────────────────── Runtime ───────────────────────────┐
	│                                                               │
	│  ┌───────────────────────── Arena ──────────────────────────┐ │
	│  │  process slab [max_procs]Proc                            │ │
	│  │  heap pool    [max_procs × heap_min_words]uint64         │ │
	│  │  partition 0 ... partition N-1  (free slot/block stacks) │ │
	│  └──────────────────────────────────────────────────────────┘ │
	│        │ pop/push (spinlock)          │ steal (ascending ids) │
	│        ▼                              ▼                       │
	│  ┌─ worker 0 ─────────┐  ...  ┌─ worker N-1 ────────┐         │
	│  │ runq[max]  (MPSC)  │       │ runq[max]           │         │
	│  │ runq[high] (MPSC)  │       │  ...                │         │
	│  │ runq[normal]       │       │                     │         │
	│  │ runq[low]          │       │                     │         │
	│  │ scheduler loop     │       │ scheduler loop      │         │
	│  └────────┬───────────┘       └─────────┬───────────┘         │
	│           │ token handoff               │                     │
	│           ▼                             ▼                     │
	│      process goroutines (entry fn + mailbox + heap block)     │
	│                                                               │
	│  shared: timer list (sorted, mutex) · registry (RWMutex)      │
	│          link/monitor table (mutex) · lifecycle hooks         │
	└───────────────────────────────────────────────────────────────┘

Each worker owns one arena partition and one run queue per priority.
Any thread may push onto a worker's queues (spawn, wake, exit signals);
only the owning worker pops. Work balance comes from partition stealing
at spawn time, not from queue stealing: spawns flow to wherever free
slots are.

# Processes and context switching

A process is a goroutine coupled to an arena slot. The slot carries
everything the C rendition would keep in the process record — heap block
bounds, mailbox, links, stats — while the goroutine supplies the stack.
Control transfer is a strict token handoff: the worker grants a run
token and blocks until the process hands it back by yielding, blocking
in a receive, or returning from its entry function. Exactly one process
per worker ever runs, and a process never holds a kernel lock across a
suspension.

Spawning never calls into the operating system: a slot and a heap block
are popped from the local partition's free stacks, the record is
re-initialized, and the process is pushed onto a run queue. When the
local partition is dry, one round of cross-partition stealing (both
locks taken in ascending partition order) moves a batch of slots and
blocks over before the spawn fails for good.

# Mailbox discipline

The mailbox is a lock-free LIFO signal stack shared by all senders plus
a private FIFO owned by the receiver. Receive drains the stack (one
atomic exchange), reverses the chain to restore send order, appends to
the private queue, and scans for a match. The blocking path publishes
waiting=1 only after a drain found no match, then drains and scans once
more before sleeping; whichever party then
atomically clears the flag — a sender that just pushed, or the receiver
re-inspecting before sleep — owns putting the process back on a run
queue. That single rule removes the lost-wakeup race without a lock on
the send path.

Per sender/receiver pair, delivery is FIFO. Selective receive skips
non-matching messages and leaves their relative order untouched.

# Exit propagation

When an entry function returns (or a kill is observed), the worker runs
propagation under the global link/monitor mutex: linked peers either
receive an EXIT message (trap_exit) or inherit the kill; watchers
receive DOWN messages tagged with their monitor reference; reverse
entries are unlinked. External owners — table store, process groups,
ports — reclaim through registered cleanup hooks, then the registry
entry is dropped and the slot and heap block return to the reclaiming
worker's partition.

# Usage

	rt, err := kernel.Init(config.Default())
	if err != nil {
		...
	}
	defer rt.Shutdown()

	echo, _ := rt.Spawn(func(self *kernel.Proc, arg any) {
		for {
			payload, tag, ok := self.ReceiveAny(types.Forever)
			if !ok {
				return
			}
			_, _ = payload, tag
			...
		}
	}, nil)

	_ = rt.Register("echo", echo)
	_ = rt.SendNamed("echo", types.TagUserMin, "hello")

# Concurrency notes

Scalar atomics use code.hybscloud.com/atomix with explicit memory
orderings; intrusive pointer links use sync/atomic.Pointer so queued
cells stay visible to the garbage collector. Bounded spinning in the
MPSC pop window and the partition spinlock uses code.hybscloud.com/spin.
Message and timer cells are recycled through sync.Pool.
*/
package kernel
