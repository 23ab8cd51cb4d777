package kernel

import (
	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// Kill requests termination of a process from outside. The target
// observes the flag in its next receive, which returns ok=false; Yield
// and the scheduler do not check it, so a process that never receives
// keeps running until it polls Killed. When the entry function then
// returns, the process exits with the given reason unless it stored
// another one.
func (rt *Runtime) Kill(p *Proc, reason int64) {
	if p == nil || !p.alive() {
		return
	}
	p.exitCode.Store(reason)
	p.killFlag.StoreRelease(true)
	rt.wake(p)
}

// propagateExit runs on the worker after a process handed the token
// back in the EXITING state. It fans the exit out through links and
// monitors, runs external cleanup hooks, clears the registry entry,
// and returns the slot and heap block to the worker's partition.
func (rt *Runtime) propagateExit(p *Proc, w *worker) {
	pid := p.Pid()
	reason := p.exitCode.Load()

	// Structural fan-out under the link table mutex. Deliveries from
	// inside the critical section only touch lock-free mailbox and
	// run-queue state, never the link table itself.
	lt := &rt.links
	lt.mu.Lock()

	for peer := range p.links {
		delete(peer.links, p)
		delete(p.links, peer)
		rt.sendExitSignal(peer, pid, reason)
	}

	for ref, m := range p.watchedBy {
		delete(m.watcher.watching, ref)
		delete(p.watchedBy, ref)
		_ = rt.deliver(pid, m.watcher, types.TagDown, &types.DownSignal{
			From:   pid,
			Ref:    ref,
			Reason: reason,
		})
	}

	for ref, m := range p.watching {
		delete(m.target.watchedBy, ref)
		delete(p.watching, ref)
	}

	lt.mu.Unlock()

	// External owned-resource cleanup (ETS tables, process groups,
	// ports, module subscriptions). Hooks take their own locks, so the
	// kernel holds none here.
	rt.runCleanupHooks(p)

	rt.registry.unregisterProc(p)

	rt.emit(EventProcExited, Event{Pid: pid, Reason: reason, Worker: w.id})
	if reason == types.ReasonNormal {
		metrics.ExitsTotal.WithLabelValues("normal").Inc()
	} else {
		metrics.ExitsTotal.WithLabelValues("abnormal").Inc()
	}
	rt.exitTotal.Add(1)

	rt.reclaim(p, w)
}

// reclaim scrubs the record and pushes the slot and heap block back to
// the reclaiming worker's partition. After this the slot is FREE and
// may be handed to a concurrent spawner immediately.
func (rt *Runtime) reclaim(p *Proc, w *worker) {
	p.mbox.reset()
	p.entry = nil
	p.arg = nil
	p.regName = ""
	p.parent = 0
	p.heap = nil
	p.heapTop = 0

	block := p.heapBlock
	p.heapBlock = -1

	p.state.Store(uint64(types.StateFree))
	rt.arena.pushPair(w.id, p.slot, block)
}
