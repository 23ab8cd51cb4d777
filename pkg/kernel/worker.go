package kernel

import (
	"time"

	"code.hybscloud.com/atomix"
	"github.com/rs/zerolog"

	"github.com/skyblanket/swarmrt/pkg/metrics"
	"github.com/skyblanket/swarmrt/pkg/types"
)

// worker is one scheduler thread. It owns arena partition `id` and one
// run queue per priority; any thread may push onto its queues, only the
// worker pops.
type worker struct {
	id     int
	rt     *Runtime
	queues prioritySet

	// Idle protocol: the worker publishes idle=1, rechecks its queues,
	// then sleeps on wakeCh with a short cap. Pushers that observe
	// idle=1 drop a token into wakeCh.
	idle   atomix.Bool
	wakeCh chan struct{}

	logger zerolog.Logger
}

func newWorker(id int, rt *Runtime, logger zerolog.Logger) *worker {
	w := &worker{
		id:     id,
		rt:     rt,
		wakeCh: make(chan struct{}, 1),
		logger: logger.With().Int("worker_id", id).Logger(),
	}
	w.queues.init(rt.cfg.SpinBudget)
	return w
}

// enqueue makes p runnable on this worker. Safe from any thread.
func (w *worker) enqueue(p *Proc) {
	w.queues.push(p)
	if w.idle.LoadAcquire() {
		select {
		case w.wakeCh <- struct{}{}:
		default:
		}
	}
}

// run is the scheduler loop: fire due timers, pick a process, swap into
// it, dispose of it by its post-run state.
func (w *worker) run() {
	defer w.rt.workerWg.Done()
	w.logger.Debug().Msg("scheduler loop started")

	for {
		if w.rt.stopRequested() {
			w.logger.Debug().Msg("scheduler loop stopped")
			return
		}

		w.rt.timers.fire()

		p := w.queues.pop()
		if p == nil {
			w.idleWait()
			continue
		}

		w.dispatch(p)
	}
}

// dispatch swaps the worker into the process until it yields, blocks,
// or exits, then disposes of it.
func (w *worker) dispatch(p *Proc) {
	p.state.Store(uint64(types.StateRunning))
	p.fcalls = w.rt.cfg.ContextReds
	p.ctxSwitches.Add(1)
	w.rt.switchCount.Add(1)
	metrics.ContextSwitchesTotal.Inc()

	p.resume <- struct{}{}
	<-p.yield

	switch p.State() {
	case types.StateExiting:
		w.rt.propagateExit(p, w)
	case types.StateRunnable:
		w.enqueue(p)
	case types.StateWaiting:
		// Parked in receive; a wake will re-enqueue it.
	default:
		// A process must not hand the token back in any other state.
		w.logger.Error().
			Uint64("pid", uint64(p.Pid())).
			Str("state", p.State().String()).
			Msg("process yielded in unexpected state")
	}
}

// idleWait sleeps until a push wakes this worker, the idle cap expires,
// or shutdown begins. The cap bounds the window of the publish/recheck
// race on the idle flag, mirroring the timed condvar wait of the
// reference scheduler.
func (w *worker) idleWait() {
	w.idle.StoreRelease(true)

	// Recheck after publishing: a push may have raced the flag.
	if p := w.queues.pop(); p != nil {
		w.idle.StoreRelease(false)
		w.dispatch(p)
		return
	}

	select {
	case <-w.wakeCh:
	case <-time.After(time.Duration(w.rt.cfg.IdleSleepMicros) * time.Microsecond):
	case <-w.rt.stopCh:
	}
	w.idle.StoreRelease(false)
}
