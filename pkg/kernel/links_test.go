package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// linked reports link symmetry between two processes.
func linked(rt *Runtime, a, b *Proc) (forward, backward bool) {
	rt.links.mu.Lock()
	defer rt.links.mu.Unlock()
	_, forward = a.links[b]
	_, backward = b.links[a]
	return forward, backward
}

func TestLinkSymmetry(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	a, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	b, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	require.NoError(t, a.Link(b))
	fwd, bwd := linked(rt, a, b)
	assert.True(t, fwd)
	assert.True(t, bwd)

	require.NoError(t, a.Unlink(b))
	fwd, bwd = linked(rt, a, b)
	assert.False(t, fwd)
	assert.False(t, bwd)

	// Unlinking twice reports the missing link.
	assert.ErrorIs(t, a.Unlink(b), ErrNotLinked)
	assert.ErrorIs(t, a.Link(nil), ErrNilTarget)
}

func TestMonitorSymmetry(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	watcher, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	target, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	ref := watcher.Monitor(target)
	require.NotZero(t, ref)

	rt.links.mu.Lock()
	_, inWatcher := watcher.watching[ref]
	_, inTarget := target.watchedBy[ref]
	rt.links.mu.Unlock()
	assert.True(t, inWatcher)
	assert.True(t, inTarget)

	require.NoError(t, watcher.Demonitor(ref))
	rt.links.mu.Lock()
	_, inWatcher = watcher.watching[ref]
	_, inTarget = target.watchedBy[ref]
	rt.links.mu.Unlock()
	assert.False(t, inWatcher)
	assert.False(t, inTarget)

	assert.ErrorIs(t, watcher.Demonitor(ref), ErrNoMonitor)
	assert.Zero(t, watcher.Monitor(nil))
}

func TestMonitorDeliversDown(t *testing.T) {
	rt := newTestRuntime(t, 2, 16)

	down := make(chan *types.DownSignal, 1)

	// The target waits for a go-ahead so the monitor is installed
	// before it dies.
	target, err := rt.Spawn(func(self *Proc, _ any) {
		_, _ = self.Receive(types.Forever)
		self.SetExitReason(42)
	}, nil)
	require.NoError(t, err)

	_, err = rt.Spawn(func(self *Proc, _ any) {
		ref := self.Monitor(target)
		if ref == 0 {
			return
		}
		if self.Send(target, "die") != nil {
			return
		}
		payload, ok := self.ReceiveTagged(types.TagDown, 2*time.Second)
		if !ok {
			return
		}
		down <- payload.(*types.DownSignal)
	}, nil)
	require.NoError(t, err)

	select {
	case sig := <-down:
		assert.Equal(t, int64(42), sig.Reason)
		assert.Equal(t, target.Pid(), sig.From)
	case <-time.After(3 * time.Second):
		t.Fatal("DOWN signal was not delivered")
	}
}

func TestMonitorOnDeadProcess(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	down := make(chan *types.DownSignal, 1)

	// Spawn the watcher first so the dead target's slot is not
	// recycled into the watcher itself.
	watcher, err := rt.Spawn(func(self *Proc, _ any) {
		payload, ok := self.Receive(types.Forever)
		if !ok {
			return
		}
		ref := self.Monitor(payload.(*Proc))
		if ref == 0 {
			return
		}
		got, ok := self.ReceiveTagged(types.TagDown, 2*time.Second)
		if !ok {
			return
		}
		down <- got.(*types.DownSignal)
	}, nil)
	require.NoError(t, err)

	dead, err := rt.Spawn(func(*Proc, any) {}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return dead.State() == types.StateFree
	}, 2*time.Second, time.Millisecond)

	require.NoError(t, rt.Send(watcher, dead))

	select {
	case sig := <-down:
		assert.Equal(t, types.ReasonNoProc, sig.Reason)
	case <-time.After(3 * time.Second):
		t.Fatal("immediate DOWN for a dead target was not delivered")
	}
}

func TestAbnormalExitKillsLinkedPeer(t *testing.T) {
	rt := newTestRuntime(t, 2, 16)

	peerDown := make(chan *types.DownSignal, 1)
	monitored := make(chan struct{})

	peer, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	_, err = rt.Spawn(func(self *Proc, _ any) {
		ref := self.Monitor(peer)
		close(monitored)
		if ref == 0 {
			return
		}
		payload, ok := self.ReceiveTagged(types.TagDown, 3*time.Second)
		if !ok {
			return
		}
		peerDown <- payload.(*types.DownSignal)
	}, nil)
	require.NoError(t, err)
	<-monitored

	// The victim links to peer, then dies abnormally; the exit must
	// cascade into peer, which does not trap.
	_, err = rt.Spawn(func(self *Proc, _ any) {
		if self.Link(peer) != nil {
			return
		}
		self.SetExitReason(9)
	}, nil)
	require.NoError(t, err)

	select {
	case sig := <-peerDown:
		assert.Equal(t, int64(9), sig.Reason)
		assert.Equal(t, peer.Pid(), sig.From)
	case <-time.After(4 * time.Second):
		t.Fatal("exit did not cascade through the link")
	}
}

func TestNormalExitDoesNotKillLinkedPeer(t *testing.T) {
	rt := newTestRuntime(t, 2, 16)

	peer, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return peer.State() == types.StateWaiting
	}, 2*time.Second, time.Millisecond)

	quiet, err := rt.Spawn(func(self *Proc, _ any) {
		_ = self.Link(peer)
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return quiet.State() == types.StateFree
	}, 2*time.Second, time.Millisecond)

	// Give any (erroneous) cascade time to land, then confirm the
	// peer is still parked in its receive.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, types.StateWaiting, peer.State())
}

func TestLinkCleanupOnExit(t *testing.T) {
	rt := newTestRuntime(t, 2, 16)

	peer, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	peer.SetTrapExit(true)

	mortal, err := rt.Spawn(func(self *Proc, _ any) {
		_ = self.Link(peer)
	}, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mortal.State() == types.StateFree
	}, 2*time.Second, time.Millisecond)

	rt.links.mu.Lock()
	n := len(peer.links)
	rt.links.mu.Unlock()
	assert.Zero(t, n, "exited process must be removed from the peer's link list")
}
