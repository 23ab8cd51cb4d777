package kernel

import (
	"context"

	"github.com/zoobzio/hookz"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// Hook event keys.
const (
	EventProcSpawned = hookz.Key("proc.spawned")
	EventProcExited  = hookz.Key("proc.exited")
	EventArenaSteal  = hookz.Key("arena.steal")
)

// Event is the payload carried by kernel lifecycle hooks. Fields are
// populated per event: spawn and exit carry Pid (and Reason for exit),
// steal carries only the worker id.
type Event struct {
	Pid    types.Pid
	Reason int64
	Worker int
}

// kernelHooks wraps the async hook dispatcher. Handlers run off the
// scheduler hot path; they observe lifecycle, they cannot veto it.
type kernelHooks struct {
	hooks *hookz.Hooks[Event]
}

func newKernelHooks() *kernelHooks {
	return &kernelHooks{hooks: hookz.New[Event]()}
}

func (kh *kernelHooks) close() {
	kh.hooks.Close()
}

// emit publishes a lifecycle event to registered handlers.
func (rt *Runtime) emit(key hookz.Key, ev Event) {
	_ = rt.hooks.hooks.Emit(context.Background(), key, ev) //nolint:errcheck
}

// OnProcSpawned registers a handler called after each successful spawn.
func (rt *Runtime) OnProcSpawned(handler func(context.Context, Event) error) error {
	_, err := rt.hooks.hooks.Hook(EventProcSpawned, handler)
	return err
}

// OnProcExited registers a handler called after exit propagation.
func (rt *Runtime) OnProcExited(handler func(context.Context, Event) error) error {
	_, err := rt.hooks.hooks.Hook(EventProcExited, handler)
	return err
}

// OnArenaSteal registers a handler called when a spawn had to steal
// resources from another partition.
func (rt *Runtime) OnArenaSteal(handler func(context.Context, Event) error) error {
	_, err := rt.hooks.hooks.Hook(EventArenaSteal, handler)
	return err
}

// cleanupHook is an external owned-resource reaper: table store, process
// groups, port subsystem, module registry. Hooks run synchronously
// during exit propagation, before the slot is recycled, and do their
// own locking.
type cleanupHook struct {
	name string
	fn   func(*Proc)
}

// AddCleanupHook registers an exit-time resource reaper.
func (rt *Runtime) AddCleanupHook(name string, fn func(*Proc)) {
	if fn == nil {
		return
	}
	rt.cleanups.mu.Lock()
	rt.cleanups.fns = append(rt.cleanups.fns, cleanupHook{name: name, fn: fn})
	rt.cleanups.mu.Unlock()
}

func (rt *Runtime) runCleanupHooks(p *Proc) {
	rt.cleanups.mu.Lock()
	hooks := rt.cleanups.fns
	rt.cleanups.mu.Unlock()

	for _, h := range hooks {
		h.fn(p)
	}
}
