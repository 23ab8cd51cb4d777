package kernel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// testProc builds a detached process record suitable for queue tests:
// the intrusive node points back at the record and the pid doubles as a
// label.
func testProc(label uint64, prio types.Priority) *Proc {
	p := &Proc{prio: prio}
	p.node.proc = p
	p.pid.Store(label)
	return p
}

func TestRunQueueFIFO(t *testing.T) {
	var q runQueue
	q.init(64)

	assert.Nil(t, q.pop())

	for i := uint64(1); i <= 5; i++ {
		q.push(testProc(i, types.PriorityNormal))
	}
	for i := uint64(1); i <= 5; i++ {
		p := q.pop()
		require.NotNil(t, p)
		assert.Equal(t, i, p.pid.Load())
	}
	assert.Nil(t, q.pop())
}

func TestRunQueueDrainRefillCycles(t *testing.T) {
	var q runQueue
	q.init(64)

	// Repeated single-element drain exercises stub re-insertion.
	for cycle := 0; cycle < 10; cycle++ {
		p := testProc(uint64(cycle+1), types.PriorityNormal)
		q.push(p)
		got := q.pop()
		require.NotNil(t, got)
		assert.Equal(t, uint64(cycle+1), got.pid.Load())
		assert.Nil(t, q.pop())
	}
}

func TestRunQueueConcurrentProducers(t *testing.T) {
	var q runQueue
	q.init(64)

	const producers = 8
	const perProducer = 200

	var wg sync.WaitGroup
	for pr := 0; pr < producers; pr++ {
		wg.Add(1)
		go func(pr int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				// Label encodes (producer, sequence).
				label := uint64(pr)<<32 | uint64(i+1)
				q.push(testProc(label, types.PriorityNormal))
			}
		}(pr)
	}

	// Single consumer: drain everything, spinning through transient
	// empty windows.
	lastSeq := make(map[uint64]uint64)
	got := 0
	for got < producers*perProducer {
		p := q.pop()
		if p == nil {
			continue
		}
		label := p.pid.Load()
		pr, seq := label>>32, label&0xffffffff
		// Per-producer FIFO must hold even across interleavings.
		assert.Greater(t, seq, lastSeq[pr])
		lastSeq[pr] = seq
		got++
	}
	wg.Wait()
	assert.Nil(t, q.pop())
}

func TestPrioritySetStrictOrder(t *testing.T) {
	var ps prioritySet
	ps.init(64)

	ps.push(testProc(40, types.PriorityLow))
	ps.push(testProc(10, types.PriorityMax))
	ps.push(testProc(30, types.PriorityNormal))
	ps.push(testProc(20, types.PriorityHigh))
	ps.push(testProc(11, types.PriorityMax))

	var order []uint64
	for {
		p := ps.pop()
		if p == nil {
			break
		}
		order = append(order, p.pid.Load())
	}
	assert.Equal(t, []uint64{10, 11, 20, 30, 40}, order)
}

func TestRunQueueDepthEstimate(t *testing.T) {
	var q runQueue
	q.init(64)
	assert.Equal(t, 0, q.approxDepth())

	q.push(testProc(1, types.PriorityNormal))
	q.push(testProc(2, types.PriorityNormal))
	assert.Equal(t, 2, q.approxDepth())

	require.NotNil(t, q.pop())
	assert.Equal(t, 1, q.approxDepth())
}
