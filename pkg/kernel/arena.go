package kernel

import (
	"fmt"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"

	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// spinLock is the per-partition lock. Partitions are held for a handful
// of index-stack operations, far below the cost of parking a thread.
type spinLock struct {
	word atomix.Uint64
}

func (l *spinLock) Lock() {
	sw := spin.Wait{}
	for !l.word.CompareAndSwapAcqRel(0, 1) {
		sw.Once()
	}
}

func (l *spinLock) Unlock() {
	l.word.StoreRelease(0)
}

// partition is one worker's slice of the free pools. Capacity of both
// stacks is the full arena so that stealing can concentrate resources
// arbitrarily without overflow.
type partition struct {
	lock   spinLock
	slots  []int32
	blocks []int32
}

func (pt *partition) pushSlotLocked(idx int32)  { pt.slots = append(pt.slots, idx) }
func (pt *partition) pushBlockLocked(idx int32) { pt.blocks = append(pt.blocks, idx) }

func (pt *partition) popSlotLocked() (int32, bool) {
	n := len(pt.slots)
	if n == 0 {
		return -1, false
	}
	idx := pt.slots[n-1]
	pt.slots = pt.slots[:n-1]
	return idx, true
}

func (pt *partition) popBlockLocked() (int32, bool) {
	n := len(pt.blocks)
	if n == 0 {
		return -1, false
	}
	idx := pt.blocks[n-1]
	pt.blocks = pt.blocks[:n-1]
	return idx, true
}

// arena owns the process slab, the heap-block pool, and the per-worker
// partitions of their free-index stacks. Everything is allocated once
// at init; spawn and exit never touch the system allocator for slots or
// blocks.
type arena struct {
	procs     []Proc
	heap      []uint64
	heapWords int
	parts     []partition
	maxProcs  int
	nextPid   atomix.Uint64
}

func newArena(maxProcs, heapWords, numPartitions int) (*arena, error) {
	if maxProcs < 1 || heapWords < 1 || numPartitions < 1 {
		return nil, fmt.Errorf("invalid arena geometry: procs=%d words=%d partitions=%d",
			maxProcs, heapWords, numPartitions)
	}
	if numPartitions > maxProcs {
		numPartitions = maxProcs
	}

	a := &arena{
		procs:     make([]Proc, maxProcs),
		heap:      make([]uint64, maxProcs*heapWords),
		heapWords: heapWords,
		parts:     make([]partition, numPartitions),
		maxProcs:  maxProcs,
	}

	for i := range a.procs {
		p := &a.procs[i]
		p.slot = int32(i)
		p.heapBlock = -1
		p.node.proc = p
	}

	// Contiguous initial distribution: partition k owns a dense range of
	// slot and block indices, so local spawns touch adjacent memory.
	// Indices are pushed in descending order so pops come out ascending.
	chunk := maxProcs / numPartitions
	for k := range a.parts {
		lo := k * chunk
		hi := lo + chunk
		if k == numPartitions-1 {
			hi = maxProcs
		}
		pt := &a.parts[k]
		pt.slots = make([]int32, 0, maxProcs)
		pt.blocks = make([]int32, 0, maxProcs)
		for i := hi - 1; i >= lo; i-- {
			pt.slots = append(pt.slots, int32(i))
			pt.blocks = append(pt.blocks, int32(i))
		}
	}

	return a, nil
}

// assignPid issues the next logical process identity. Pids start at 1
// and are never reused.
func (a *arena) assignPid() types.Pid {
	return types.Pid(a.nextPid.Add(1))
}

// popPair removes one slot and one block from the partition. If the
// block pop fails after the slot pop succeeded, the slot is pushed back
// so that every live slot always owns a block.
func (a *arena) popPair(part int) (int32, int32, error) {
	pt := &a.parts[part]
	pt.lock.Lock()
	slot, ok := pt.popSlotLocked()
	if !ok {
		pt.lock.Unlock()
		return -1, -1, iox.ErrWouldBlock
	}
	block, ok := pt.popBlockLocked()
	if !ok {
		pt.pushSlotLocked(slot)
		pt.lock.Unlock()
		return -1, -1, iox.ErrWouldBlock
	}
	pt.lock.Unlock()
	return slot, block, nil
}

// pushPair returns a slot and block to the partition.
func (a *arena) pushPair(part int, slot, block int32) {
	pt := &a.parts[part]
	pt.lock.Lock()
	pt.pushSlotLocked(slot)
	pt.pushBlockLocked(block)
	pt.lock.Unlock()
}

// steal moves up to batch slots and blocks from partition `from` into
// partition `into`. Both partition locks are taken in ascending id
// order regardless of direction, which rules out lock-order deadlock.
// Returns how many slots and blocks moved.
func (a *arena) steal(from, into, batch int) (int, int) {
	if from == into {
		return 0, 0
	}
	first, second := from, into
	if second < first {
		first, second = second, first
	}
	a.parts[first].lock.Lock()
	a.parts[second].lock.Lock()

	src, dst := &a.parts[from], &a.parts[into]
	movedSlots, movedBlocks := 0, 0
	for movedSlots < batch {
		idx, ok := src.popSlotLocked()
		if !ok {
			break
		}
		dst.pushSlotLocked(idx)
		movedSlots++
	}
	for movedBlocks < batch {
		idx, ok := src.popBlockLocked()
		if !ok {
			break
		}
		dst.pushBlockLocked(idx)
		movedBlocks++
	}

	a.parts[second].lock.Unlock()
	a.parts[first].lock.Unlock()

	if movedSlots > 0 || movedBlocks > 0 {
		metrics.StealsTotal.Inc()
	}
	return movedSlots, movedBlocks
}

// stealRound attempts one pass over all donors into the local
// partition. Returns true if anything moved.
func (a *arena) stealRound(into, batch int) bool {
	moved := false
	for from := range a.parts {
		if from == into {
			continue
		}
		s, b := a.steal(from, into, batch)
		if s > 0 || b > 0 {
			moved = true
		}
	}
	return moved
}

// block returns the heap slice backing block idx.
func (a *arena) block(idx int32) []uint64 {
	off := int(idx) * a.heapWords
	return a.heap[off : off+a.heapWords : off+a.heapWords]
}

// freeSlots counts free slots across all partitions. Partitions are
// locked one at a time, so the total is exact only at quiescence.
func (a *arena) freeSlots() int {
	total := 0
	for k := range a.parts {
		pt := &a.parts[k]
		pt.lock.Lock()
		total += len(pt.slots)
		pt.lock.Unlock()
	}
	return total
}

// freeBlocks counts free heap blocks across all partitions.
func (a *arena) freeBlocks() int {
	total := 0
	for k := range a.parts {
		pt := &a.parts[k]
		pt.lock.Lock()
		total += len(pt.blocks)
		pt.lock.Unlock()
	}
	return total
}
