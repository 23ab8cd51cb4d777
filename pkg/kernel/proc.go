package kernel

import (
	"runtime"

	"code.hybscloud.com/atomix"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// Entry is a process body. It runs on the process's own goroutine under
// the cooperative token discipline: it holds its worker until it yields,
// blocks in a receive, or returns.
type Entry func(self *Proc, arg any)

// Proc is one process record in the arena slab. The record is recycled:
// the slot index is stable for the lifetime of the runtime while the
// pid changes with every incarnation.
type Proc struct {
	// Identity. slot and node are fixed at arena init; the rest is
	// reset on every spawn.
	slot      int32
	heapBlock int32
	pid       atomix.Uint64
	prio      types.Priority
	state     atomix.Uint64
	trapExit  atomix.Bool
	killFlag  atomix.Bool
	exitCode  atomix.Int64

	rt     *Runtime
	worker *worker
	entry  Entry
	arg    any

	// Cooperative handoff gate. A process runs only while it holds the
	// token: the worker grants it on resume and blocks until the
	// process hands it back on yield. Both channels carry at most one
	// token and are reused across slot reincarnations.
	resume chan struct{}
	yield  chan struct{}

	// Advisory reduction budget, replenished on each dispatch.
	fcalls int

	// Private heap block: a bump allocator over a fixed arena block.
	heap    []uint64
	heapTop int

	mbox mailbox
	node runNode

	// Relationships, guarded by the runtime's link table mutex.
	parent    types.Pid
	links     map[*Proc]struct{}
	watching  map[types.Ref]*monitor
	watchedBy map[types.Ref]*monitor

	// Registered name, guarded by the registry lock.
	regName string

	// Stats.
	reductions  atomix.Uint64
	ctxSwitches atomix.Uint64
	sentCount   atomix.Uint64
	recvCount   atomix.Uint64
}

// Pid returns the process's logical identity.
func (p *Proc) Pid() types.Pid {
	return types.Pid(p.pid.Load())
}

// Parent returns the pid of the spawning process, or 0 for processes
// spawned from outside the runtime.
func (p *Proc) Parent() types.Pid {
	return p.parent
}

// Priority returns the scheduling priority the process was spawned with.
func (p *Proc) Priority() types.Priority {
	return p.prio
}

// State returns the current lifecycle state.
func (p *Proc) State() types.State {
	return types.State(p.state.Load())
}

// Runtime returns the owning runtime instance.
func (p *Proc) Runtime() *Runtime {
	return p.rt
}

// alive reports whether the slot currently hosts a live process.
func (p *Proc) alive() bool {
	s := p.State()
	return s != types.StateFree && s != types.StateExiting
}

// SetTrapExit toggles the trap_exit flag: with it set, incoming EXIT
// signals arrive as TagExit mailbox messages instead of terminating the
// process.
func (p *Proc) SetTrapExit(on bool) {
	p.trapExit.StoreRelease(on)
}

// TrapsExit reports the trap_exit flag.
func (p *Proc) TrapsExit() bool {
	return p.trapExit.LoadAcquire()
}

// SetExitReason stores the reason the process will exit with when its
// entry function returns.
func (p *Proc) SetExitReason(reason int64) {
	p.exitCode.Store(reason)
}

// ExitReason returns the stored exit reason.
func (p *Proc) ExitReason() int64 {
	return p.exitCode.Load()
}

// Killed reports whether an external kill has been requested. Long
// computations should poll this at convenient points.
func (p *Proc) Killed() bool {
	return p.killFlag.LoadAcquire()
}

// Yield hands the worker back to the scheduler and re-enqueues the
// process at the tail of its priority queue.
func (p *Proc) Yield() {
	p.state.Store(uint64(types.StateRunnable))
	p.park()
}

// CheckReds consumes n reductions from the advisory budget and yields
// when it is exhausted. Interpreted or generated code calls this at
// function-call granularity; the kernel itself never preempts.
func (p *Proc) CheckReds(n int) {
	p.fcalls -= n
	p.reductions.Add(uint64(n))
	if p.fcalls <= 0 {
		p.Yield()
	}
}

// HeapAlloc bump-allocates words from the process's heap block. Returns
// nil when the block is exhausted; the fixed-size block is the heap,
// there is no growth path.
func (p *Proc) HeapAlloc(words int) []uint64 {
	if words < 1 || p.heapTop+words > len(p.heap) {
		return nil
	}
	out := p.heap[p.heapTop : p.heapTop+words : p.heapTop+words]
	p.heapTop += words
	return out
}

// HeapUsed returns the number of words allocated from the block.
func (p *Proc) HeapUsed() int {
	return p.heapTop
}

// park hands the token back to the worker and blocks until the next
// dispatch. Called only from the process's own goroutine with p.state
// already set to the disposition the worker should act on.
func (p *Proc) park() {
	p.yield <- struct{}{}
	select {
	case <-p.resume:
	case <-p.rt.done:
		// Runtime shutdown: unwind this goroutine. Deferred cleanup in
		// the trampoline still runs.
		runtime.Goexit()
	}
}

// resetForSpawn reinitializes the record for a new incarnation. The
// gate channels are created once per slot and reused; they are always
// drained when the slot is freed.
func (p *Proc) resetForSpawn(rt *Runtime, w *worker, entry Entry, arg any, prio types.Priority, parent types.Pid, heapBlock int32) {
	p.rt = rt
	p.worker = w
	p.entry = entry
	p.arg = arg
	p.prio = prio
	p.parent = parent
	p.heapBlock = heapBlock
	p.heap = rt.arena.block(heapBlock)
	p.heapTop = 0
	p.fcalls = rt.cfg.ContextReds
	p.killFlag.StoreRelease(false)
	p.exitCode.Store(types.ReasonNormal)
	p.trapExit.StoreRelease(false)
	p.regName = ""

	// Discard anything a stale handle pushed between reclamation and
	// this reincarnation.
	p.mbox.reset()

	if p.resume == nil {
		p.resume = make(chan struct{}, 1)
		p.yield = make(chan struct{}, 1)
	}

	if p.links == nil {
		p.links = make(map[*Proc]struct{})
		p.watching = make(map[types.Ref]*monitor)
		p.watchedBy = make(map[types.Ref]*monitor)
	}

	p.reductions.Store(0)
	p.ctxSwitches.Store(0)
	p.sentCount.Store(0)
	p.recvCount.Store(0)

	p.pid.Store(uint64(rt.arena.assignPid()))
	p.state.Store(uint64(types.StateRunnable))
}

// ProcStats is a copy of one process's counters.
type ProcStats struct {
	Pid             types.Pid
	State           types.State
	Priority        types.Priority
	Reductions      uint64
	ContextSwitches uint64
	MessagesSent    uint64
	MessagesRecv    uint64
	MailboxLen      int
	HeapUsed        int
}

// Stats snapshots the process counters. Racy by design; intended for
// diagnostics.
func (p *Proc) Stats() ProcStats {
	return ProcStats{
		Pid:             p.Pid(),
		State:           p.State(),
		Priority:        p.prio,
		Reductions:      p.reductions.Load(),
		ContextSwitches: p.ctxSwitches.Load(),
		MessagesSent:    p.sentCount.Load(),
		MessagesRecv:    p.recvCount.Load(),
		MailboxLen:      p.mbox.count,
		HeapUsed:        p.heapTop,
	}
}
