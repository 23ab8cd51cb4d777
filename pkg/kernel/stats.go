package kernel

import (
	"fmt"
	"io"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// StatsSnapshot is a point-in-time copy of the runtime counters.
// Gauges (free slots, live processes, queue depths) are exact only at
// quiescence; totals are exact always.
type StatsSnapshot struct {
	Instance        string
	Name            string
	Workers         int
	MaxProcesses    int
	FreeSlots       int
	FreeBlocks      int
	Live            int
	Spawns          uint64
	Exits           uint64
	MessagesSent    uint64
	MessagesRecv    uint64
	ContextSwitches uint64
	PendingTimers   int
	Registered      int
	QueueDepths     map[string]int
}

// Stats snapshots the runtime counters.
func (rt *Runtime) Stats() StatsSnapshot {
	free := rt.arena.freeSlots()
	s := StatsSnapshot{
		Instance:        rt.instanceID,
		Name:            rt.cfg.Name,
		Workers:         len(rt.workers),
		MaxProcesses:    rt.cfg.MaxProcesses,
		FreeSlots:       free,
		FreeBlocks:      rt.arena.freeBlocks(),
		Live:            rt.cfg.MaxProcesses - free,
		Spawns:          rt.spawnTotal.Load(),
		Exits:           rt.exitTotal.Load(),
		MessagesSent:    rt.sentTotal.Load(),
		MessagesRecv:    rt.recvTotal.Load(),
		ContextSwitches: rt.switchCount.Load(),
		PendingTimers:   rt.timers.pending(),
		Registered:      rt.registry.count(),
		QueueDepths:     rt.RunQueueDepths(),
	}
	return s
}

// DumpStats writes a human-readable stats report to the sink.
func (rt *Runtime) DumpStats(w io.Writer) {
	s := rt.Stats()
	fmt.Fprintf(w, "swarmrt instance %s (%s)\n", s.Instance, s.Name)
	fmt.Fprintf(w, "  workers:          %d\n", s.Workers)
	fmt.Fprintf(w, "  processes:        %d live / %d max\n", s.Live, s.MaxProcesses)
	fmt.Fprintf(w, "  free slots:       %d\n", s.FreeSlots)
	fmt.Fprintf(w, "  free blocks:      %d\n", s.FreeBlocks)
	fmt.Fprintf(w, "  spawns:           %d\n", s.Spawns)
	fmt.Fprintf(w, "  exits:            %d\n", s.Exits)
	fmt.Fprintf(w, "  messages sent:    %d\n", s.MessagesSent)
	fmt.Fprintf(w, "  messages recv:    %d\n", s.MessagesRecv)
	fmt.Fprintf(w, "  context switches: %d\n", s.ContextSwitches)
	fmt.Fprintf(w, "  pending timers:   %d\n", s.PendingTimers)
	fmt.Fprintf(w, "  registered names: %d\n", s.Registered)
	for _, prio := range []types.Priority{types.PriorityMax, types.PriorityHigh, types.PriorityNormal, types.PriorityLow} {
		fmt.Fprintf(w, "  runq[%s]: %d\n", prio, s.QueueDepths[prio.String()])
	}
}

// The methods below satisfy metrics.Source so a metrics.Collector can
// poll the runtime.

// FreeSlots counts free process slots across all partitions.
func (rt *Runtime) FreeSlots() int { return rt.arena.freeSlots() }

// FreeBlocks counts free heap blocks across all partitions.
func (rt *Runtime) FreeBlocks() int { return rt.arena.freeBlocks() }

// LiveProcesses counts occupied slots.
func (rt *Runtime) LiveProcesses() int { return rt.cfg.MaxProcesses - rt.arena.freeSlots() }

// RegisteredNames counts bound registry names.
func (rt *Runtime) RegisteredNames() int { return rt.registry.count() }

// PendingTimers counts timers not yet fired or cancelled.
func (rt *Runtime) PendingTimers() int { return rt.timers.pending() }

// RunQueueDepths sums approximate queue depth per priority across
// workers.
func (rt *Runtime) RunQueueDepths() map[string]int {
	out := make(map[string]int, types.NumPriorities)
	for _, w := range rt.workers {
		d := w.queues.depths()
		for i, n := range d {
			out[types.Priority(i).String()] += n
		}
	}
	return out
}
