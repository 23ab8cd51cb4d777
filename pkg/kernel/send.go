package kernel

import (
	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// deliver pushes a message into the target's mailbox and performs the
// wake handshake. It is the single choke point every send path funnels
// through, including EXIT/DOWN signals and timer deliveries.
func (rt *Runtime) deliver(from types.Pid, target *Proc, tag types.Tag, payload any) error {
	if target == nil {
		return ErrNilTarget
	}
	if !target.alive() {
		return ErrDeadTarget
	}

	target.mbox.push(newMessage(from, tag, payload))
	rt.sentTotal.Add(1)
	metrics.MessagesSentTotal.Inc()

	rt.wake(target)
	return nil
}

// wake clears the target's waiting flag; whoever wins the exchange owns
// re-scheduling and pushes the target onto its worker's run queue. The
// target's state is never written here — only the scheduler and the
// process itself transition state.
func (rt *Runtime) wake(target *Proc) {
	if target.mbox.takeWaiting() {
		metrics.WakeupsTotal.Inc()
		target.worker.enqueue(target)
	}
}

// Send delivers an untagged message from outside any process context.
func (rt *Runtime) Send(target *Proc, payload any) error {
	return rt.deliver(0, target, types.TagNone, payload)
}

// SendTagged delivers a tagged message from outside any process
// context. Payload ownership transfers to the receiver on pop.
func (rt *Runtime) SendTagged(target *Proc, tag types.Tag, payload any) error {
	return rt.deliver(0, target, tag, payload)
}

// Send delivers an untagged message carrying this process's pid.
func (p *Proc) Send(target *Proc, payload any) error {
	return p.SendTagged(target, types.TagNone, payload)
}

// SendTagged delivers a tagged message carrying this process's pid.
func (p *Proc) SendTagged(target *Proc, tag types.Tag, payload any) error {
	if err := p.rt.deliver(p.Pid(), target, tag, payload); err != nil {
		return err
	}
	p.sentCount.Add(1)
	return nil
}
