package kernel

import (
	"sync"

	"code.hybscloud.com/atomix"

	"github.com/skyblanket/swarmrt/pkg/types"
)

// monitor is a one-way watch: watcher receives a DOWN signal when
// target exits. The record is referenced from both sides so exit
// propagation can unlink in either direction.
type monitor struct {
	ref     types.Ref
	watcher *Proc
	target  *Proc
}

// linkTable serializes every structural mutation of the link/monitor
// graph. It is held for map surgery only, never across a suspension or
// a mailbox delivery that could re-enter the kernel.
type linkTable struct {
	mu      sync.Mutex
	nextRef atomix.Uint64
}

// Link installs a symmetric link between this process and other. If
// other is already exiting or freed, no link is created; instead the
// exit signal is delivered (or the kill applied) immediately, as if the
// link had existed at the moment of death.
func (p *Proc) Link(other *Proc) error {
	if other == nil {
		return ErrNilTarget
	}
	if other == p {
		return nil
	}

	lt := &p.rt.links
	lt.mu.Lock()
	if !other.alive() {
		lt.mu.Unlock()
		p.rt.sendExitSignal(p, other.Pid(), types.ReasonNoProc)
		return nil
	}
	p.links[other] = struct{}{}
	other.links[p] = struct{}{}
	lt.mu.Unlock()
	return nil
}

// Unlink removes the symmetric link in both directions.
func (p *Proc) Unlink(other *Proc) error {
	if other == nil {
		return ErrNilTarget
	}

	lt := &p.rt.links
	lt.mu.Lock()
	if _, ok := p.links[other]; !ok {
		lt.mu.Unlock()
		return ErrNotLinked
	}
	delete(p.links, other)
	delete(other.links, p)
	lt.mu.Unlock()
	return nil
}

// Monitor starts watching other and returns the monitor reference, or
// 0 when other is nil. Monitoring a dead process delivers the DOWN
// signal immediately.
func (p *Proc) Monitor(other *Proc) types.Ref {
	if other == nil {
		return 0
	}

	lt := &p.rt.links
	lt.mu.Lock()
	ref := types.Ref(lt.nextRef.Add(1))
	if !other.alive() {
		lt.mu.Unlock()
		_ = p.rt.deliver(0, p, types.TagDown, &types.DownSignal{
			From:   other.Pid(),
			Ref:    ref,
			Reason: types.ReasonNoProc,
		})
		return ref
	}
	m := &monitor{ref: ref, watcher: p, target: other}
	p.watching[ref] = m
	other.watchedBy[ref] = m
	lt.mu.Unlock()
	return ref
}

// Demonitor removes a monitor this process holds.
func (p *Proc) Demonitor(ref types.Ref) error {
	if ref == 0 {
		return ErrNoMonitor
	}

	lt := &p.rt.links
	lt.mu.Lock()
	m, ok := p.watching[ref]
	if !ok {
		lt.mu.Unlock()
		return ErrNoMonitor
	}
	delete(p.watching, ref)
	delete(m.target.watchedBy, ref)
	lt.mu.Unlock()
	return nil
}

// sendExitSignal delivers an EXIT to p as if from pid `from`, honoring
// trap_exit: a trapping process gets a mailbox message, anything else
// is killed unless the reason is normal.
func (rt *Runtime) sendExitSignal(p *Proc, from types.Pid, reason int64) {
	if p.TrapsExit() {
		_ = rt.deliver(from, p, types.TagExit, &types.ExitSignal{From: from, Reason: reason})
		return
	}
	if reason == types.ReasonNormal {
		return
	}
	p.killFlag.StoreRelease(true)
	p.exitCode.Store(reason)
	rt.wake(p)
}
