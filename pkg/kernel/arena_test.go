package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArenaGeometry(t *testing.T) {
	tests := []struct {
		name       string
		procs      int
		words      int
		partitions int
		wantErr    bool
	}{
		{name: "basic", procs: 16, words: 8, partitions: 4, wantErr: false},
		{name: "single partition", procs: 8, words: 4, partitions: 1, wantErr: false},
		{name: "more partitions than procs", procs: 2, words: 4, partitions: 8, wantErr: false},
		{name: "zero procs", procs: 0, words: 4, partitions: 1, wantErr: true},
		{name: "zero words", procs: 8, words: 0, partitions: 1, wantErr: true},
		{name: "zero partitions", procs: 8, words: 4, partitions: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := newArena(tt.procs, tt.words, tt.partitions)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.procs, a.freeSlots())
			assert.Equal(t, tt.procs, a.freeBlocks())
			assert.Len(t, a.heap, tt.procs*tt.words)
		})
	}
}

func TestArenaContiguousDistribution(t *testing.T) {
	a, err := newArena(8, 4, 2)
	require.NoError(t, err)

	// Local pops come out in ascending slot order within the
	// partition's contiguous range.
	s0, b0, err := a.popPair(0)
	require.NoError(t, err)
	s1, b1, err := a.popPair(0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), s0)
	assert.Equal(t, int32(1), s1)
	assert.Equal(t, int32(0), b0)
	assert.Equal(t, int32(1), b1)

	s, _, err := a.popPair(1)
	require.NoError(t, err)
	assert.Equal(t, int32(4), s)
}

func TestArenaConservation(t *testing.T) {
	a, err := newArena(16, 4, 4)
	require.NoError(t, err)

	type pair struct{ slot, block int32 }
	var out []pair
	for part := 0; part < 4; part++ {
		for {
			s, b, err := a.popPair(part)
			if err != nil {
				break
			}
			out = append(out, pair{s, b})
		}
	}
	assert.Len(t, out, 16)
	assert.Equal(t, 0, a.freeSlots())
	assert.Equal(t, 0, a.freeBlocks())

	for i, p := range out {
		a.pushPair(i%4, p.slot, p.block)
	}
	assert.Equal(t, 16, a.freeSlots())
	assert.Equal(t, 16, a.freeBlocks())
}

func TestArenaSlotReturnedWhenBlockMissing(t *testing.T) {
	a, err := newArena(4, 4, 2)
	require.NoError(t, err)

	// Drain partition 0's blocks only, leaving its slots behind.
	pt := &a.parts[0]
	pt.lock.Lock()
	blocks := len(pt.blocks)
	pt.blocks = pt.blocks[:0]
	pt.lock.Unlock()
	require.Equal(t, 2, blocks)

	slotsBefore := a.freeSlots()
	_, _, err = a.popPair(0)
	assert.Error(t, err)
	// The popped slot was pushed back: no slot leaked.
	assert.Equal(t, slotsBefore, a.freeSlots())
}

func TestArenaSteal(t *testing.T) {
	a, err := newArena(16, 4, 2)
	require.NoError(t, err)

	// Drain partition 0 completely.
	for {
		if _, _, err := a.popPair(0); err != nil {
			break
		}
	}

	movedSlots, movedBlocks := a.steal(1, 0, 4)
	assert.Equal(t, 4, movedSlots)
	assert.Equal(t, 4, movedBlocks)

	s, _, err := a.popPair(0)
	require.NoError(t, err)
	// Stolen indices come from partition 1's range.
	assert.GreaterOrEqual(t, s, int32(8))

	// Self-steal is a no-op.
	ms, mb := a.steal(0, 0, 4)
	assert.Zero(t, ms)
	assert.Zero(t, mb)
}

func TestArenaStealRound(t *testing.T) {
	a, err := newArena(8, 4, 4)
	require.NoError(t, err)

	for {
		if _, _, err := a.popPair(0); err != nil {
			break
		}
	}
	require.True(t, a.stealRound(0, 32))

	// Everything now sits in partition 0.
	n := 0
	for {
		if _, _, err := a.popPair(0); err != nil {
			break
		}
		n++
	}
	assert.Equal(t, 6, n)
}

func TestArenaPidsMonotonic(t *testing.T) {
	a, err := newArena(2, 2, 1)
	require.NoError(t, err)

	p1 := a.assignPid()
	p2 := a.assignPid()
	p3 := a.assignPid()
	assert.Less(t, uint64(p1), uint64(p2))
	assert.Less(t, uint64(p2), uint64(p3))
	assert.NotZero(t, p1)
}
