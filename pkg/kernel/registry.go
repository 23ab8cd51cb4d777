package kernel

import (
	"sync"

	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// registry is the global name → process table. Reads are concurrent;
// registration, unregistration, and exit cleanup take the write lock.
type registry struct {
	mu     sync.RWMutex
	byName map[string]*Proc
}

func newRegistry(buckets int) *registry {
	if buckets < 1 {
		buckets = 1
	}
	return &registry{byName: make(map[string]*Proc, buckets)}
}

// Register binds a name to a process. A process holds at most one name
// and a name maps to at most one process.
func (rt *Runtime) Register(name string, p *Proc) error {
	if p == nil {
		return ErrNilTarget
	}
	if name == "" || len(name) > types.RegNameMax {
		return ErrNameInvalid
	}
	if !p.alive() {
		return ErrDeadTarget
	}

	r := rt.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byName[name]; taken {
		return ErrNameTaken
	}
	if p.regName != "" {
		return ErrAlreadyNamed
	}
	r.byName[name] = p
	p.regName = name
	metrics.RegisteredNames.Inc()
	return nil
}

// Unregister removes a name binding.
func (rt *Runtime) Unregister(name string) error {
	r := rt.registry
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byName[name]
	if !ok {
		return ErrNameNotFound
	}
	delete(r.byName, name)
	p.regName = ""
	metrics.RegisteredNames.Dec()
	return nil
}

// Whereis resolves a name, or nil when unbound.
func (rt *Runtime) Whereis(name string) *Proc {
	r := rt.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// SendNamed delivers a tagged message to a registered process.
func (rt *Runtime) SendNamed(name string, tag types.Tag, payload any) error {
	p := rt.Whereis(name)
	if p == nil {
		return ErrNameNotFound
	}
	return rt.deliver(0, p, tag, payload)
}

// count returns the number of bound names.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// unregisterProc drops p's binding during exit propagation, if any.
func (r *registry) unregisterProc(p *Proc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.regName == "" {
		return
	}
	delete(r.byName, p.regName)
	p.regName = ""
	metrics.RegisteredNames.Dec()
}
