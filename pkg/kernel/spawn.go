package kernel

import (
	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// Spawn creates a normal-priority process from outside any process
// context. The partition is chosen round-robin.
func (rt *Runtime) Spawn(entry Entry, arg any) (*Proc, error) {
	return rt.spawn(nil, entry, arg, types.PriorityNormal, false)
}

// SpawnWithPriority creates a process at an explicit priority.
func (rt *Runtime) SpawnWithPriority(entry Entry, arg any, prio types.Priority) (*Proc, error) {
	return rt.spawn(nil, entry, arg, prio, false)
}

// Spawn creates a child on the parent's worker, keeping parent/child
// partition affinity.
func (p *Proc) Spawn(entry Entry, arg any) (*Proc, error) {
	return p.rt.spawn(p, entry, arg, types.PriorityNormal, false)
}

// SpawnWithPriority creates a child at an explicit priority.
func (p *Proc) SpawnWithPriority(entry Entry, arg any, prio types.Priority) (*Proc, error) {
	return p.rt.spawn(p, entry, arg, prio, false)
}

// SpawnLink creates a child and atomically links it to this process:
// the link is installed before the child is enqueued, so the parent can
// never miss the child's exit.
func (p *Proc) SpawnLink(entry Entry, arg any) (*Proc, error) {
	return p.rt.spawn(p, entry, arg, types.PriorityNormal, true)
}

// spawn pops a slot and heap block from the chosen partition (stealing
// once across partitions if the local one is dry), initializes the
// record, and enqueues it on the owning worker.
func (rt *Runtime) spawn(parent *Proc, entry Entry, arg any, prio types.Priority, link bool) (*Proc, error) {
	if entry == nil {
		return nil, ErrNilTarget
	}
	if !prio.Valid() {
		prio = types.PriorityNormal
	}
	if rt.stopRequested() {
		return nil, ErrShutdown
	}

	// Partition choice: spawns from inside a worker stay local so
	// children land next to their parents; external spawns rotate.
	var w *worker
	if parent != nil {
		w = parent.worker
	} else {
		w = rt.workers[rt.rrCounter.Add(1)%uint64(len(rt.workers))]
	}

	slot, block, err := rt.arena.popPair(w.id)
	if err != nil {
		// One round of cross-partition stealing, then one retry.
		if rt.arena.stealRound(w.id, rt.cfg.StealBatch) {
			rt.emit(EventArenaSteal, Event{Worker: w.id})
			slot, block, err = rt.arena.popPair(w.id)
		}
		if err != nil {
			metrics.SpawnFailuresTotal.Inc()
			return nil, ErrNoResources
		}
	}

	p := &rt.arena.procs[slot]
	var parentPid types.Pid
	if parent != nil {
		parentPid = parent.Pid()
	}
	p.resetForSpawn(rt, w, entry, arg, prio, parentPid, block)

	if link && parent != nil {
		// Installed before the child can run or be observed exiting.
		lt := &rt.links
		lt.mu.Lock()
		parent.links[p] = struct{}{}
		p.links[parent] = struct{}{}
		lt.mu.Unlock()
	}

	rt.procWg.Add(1)
	go p.trampoline()

	rt.spawnTotal.Add(1)
	metrics.SpawnsTotal.Inc()
	rt.emit(EventProcSpawned, Event{Pid: p.Pid(), Worker: w.id})

	w.enqueue(p)
	return p, nil
}

// trampoline is the first and last code a process goroutine runs: wait
// for the first dispatch, call the entry function, then hand the token
// back in the EXITING state so the worker runs exit propagation.
func (p *Proc) trampoline() {
	defer p.rt.procWg.Done()

	select {
	case <-p.resume:
	case <-p.rt.done:
		return
	}

	p.entry(p, p.arg)

	p.state.Store(uint64(types.StateExiting))
	p.yield <- struct{}{}
}
