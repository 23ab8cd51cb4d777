package kernel

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblanket/swarmrt/pkg/config"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// newTestRuntime starts a small runtime and tears it down with the test.
func newTestRuntime(t *testing.T, workers, maxProcs int) *Runtime {
	t.Helper()
	rt, err := Init(config.Config{
		Name:         "test",
		Workers:      workers,
		MaxProcesses: maxProcs,
	})
	require.NoError(t, err)
	t.Cleanup(rt.Shutdown)
	return rt
}

// blockForever parks the process in an infinite receive; it exits when
// killed or at shutdown.
func blockForever(self *Proc, _ any) {
	_, _ = self.Receive(types.Forever)
}

func TestRegistryRoundTrip(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	p, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	require.NoError(t, rt.Register("svc", p))
	assert.Same(t, p, rt.Whereis("svc"))

	require.NoError(t, rt.Unregister("svc"))
	assert.Nil(t, rt.Whereis("svc"))
}

func TestRegistryDuplicateName(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	p1, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	p2, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	require.NoError(t, rt.Register("svc", p1))
	assert.ErrorIs(t, rt.Register("svc", p2), ErrNameTaken)
	// The original binding is untouched.
	assert.Same(t, p1, rt.Whereis("svc"))
}

func TestRegistryOneNamePerProcess(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	p, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	require.NoError(t, rt.Register("first", p))
	assert.ErrorIs(t, rt.Register("second", p), ErrAlreadyNamed)
}

func TestRegistryBadArguments(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	p, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, rt.Register("x", nil), ErrNilTarget)
	assert.ErrorIs(t, rt.Register("", p), ErrNameInvalid)
	long := strings.Repeat("n", types.RegNameMax+1)
	assert.ErrorIs(t, rt.Register(long, p), ErrNameInvalid)
	assert.ErrorIs(t, rt.Unregister("ghost"), ErrNameNotFound)
	assert.Nil(t, rt.Whereis("ghost"))
	assert.ErrorIs(t, rt.SendNamed("ghost", types.TagNone, "m"), ErrNameNotFound)
}

func TestRegistryClearedOnExit(t *testing.T) {
	rt := newTestRuntime(t, 1, 16)

	p, err := rt.Spawn(blockForever, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Register("mortal", p))

	rt.Kill(p, types.ReasonKilled)

	require.Eventually(t, func() bool {
		return rt.Whereis("mortal") == nil
	}, 2*time.Second, time.Millisecond, "exit propagation should unregister the name")
	assert.Zero(t, rt.registry.count())
}

func TestSendNamed(t *testing.T) {
	rt := newTestRuntime(t, 2, 16)

	got := make(chan any, 1)
	p, err := rt.Spawn(func(self *Proc, _ any) {
		payload, _, ok := self.ReceiveAny(types.Forever)
		if ok {
			got <- payload
		}
	}, nil)
	require.NoError(t, err)
	require.NoError(t, rt.Register("sink", p))

	require.NoError(t, rt.SendNamed("sink", types.TagUserMin, "hello"))
	select {
	case payload := <-got:
		assert.Equal(t, "hello", payload)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}
