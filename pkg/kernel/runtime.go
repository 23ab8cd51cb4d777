package kernel

import (
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"

	"github.com/skyblanket/swarmrt/pkg/config"
	"github.com/skyblanket/swarmrt/pkg/log"
)

// Runtime is one SwarmRT instance: the arena, the worker pool, the
// registry, the shared timer list, and the link/monitor table.
// Initialize once with Init, tear down with Shutdown.
type Runtime struct {
	cfg        config.Config
	instanceID string
	logger     zerolog.Logger
	clock      clockz.Clock

	arena    *arena
	workers  []*worker
	registry *registry
	timers   *timerList
	links    linkTable

	hooks    *kernelHooks
	cleanups struct {
		mu  sync.Mutex
		fns []cleanupHook
	}

	// Shutdown plumbing: stopCh asks workers to drain and exit, done
	// unwinds every parked process goroutine afterwards.
	stopCh   chan struct{}
	done     chan struct{}
	stopping atomix.Uint64
	workerWg sync.WaitGroup
	procWg   sync.WaitGroup

	rrCounter atomix.Uint64

	// Instance-wide counters for Stats.
	spawnTotal  atomix.Uint64
	exitTotal   atomix.Uint64
	sentTotal   atomix.Uint64
	recvTotal   atomix.Uint64
	switchCount atomix.Uint64
}

// Init allocates the arena and starts the worker pool. The
// configuration is normalized first, so a zero-valued Config is usable.
func Init(cfg config.Config) (*Runtime, error) {
	return initWithClock(cfg, clockz.RealClock)
}

// initWithClock backs Init; tests inject a fake clock through it.
func initWithClock(cfg config.Config, clock clockz.Clock) (*Runtime, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Workers > cfg.MaxProcesses {
		cfg.Workers = cfg.MaxProcesses
	}

	rt := &Runtime{
		cfg:        cfg,
		instanceID: uuid.New().String(),
		logger:     log.WithComponent("kernel"),
		clock:      clock,
		registry:   newRegistry(cfg.RegistryBuckets),
		hooks:      newKernelHooks(),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}

	a, err := newArena(cfg.MaxProcesses, cfg.HeapMinWords, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate arena: %w", err)
	}
	rt.arena = a
	rt.timers = newTimerList(rt, clock)

	rt.workers = make([]*worker, cfg.Workers)
	for i := range rt.workers {
		rt.workers[i] = newWorker(i, rt, rt.logger)
	}
	for _, w := range rt.workers {
		rt.workerWg.Add(1)
		go w.run()
	}

	rt.logger.Info().
		Str("instance", rt.instanceID).
		Str("name", cfg.Name).
		Int("workers", cfg.Workers).
		Int("max_processes", cfg.MaxProcesses).
		Msg("runtime started")

	return rt, nil
}

// Shutdown stops the workers, unwinds every remaining process
// goroutine, and discards pending timers. The arena is released when
// the Runtime itself becomes unreachable.
func (rt *Runtime) Shutdown() {
	if !rt.stopping.CompareAndSwapAcqRel(0, 1) {
		return
	}
	close(rt.stopCh)
	rt.workerWg.Wait()

	close(rt.done)
	rt.procWg.Wait()

	rt.timers.drainAll()
	rt.hooks.close()

	rt.logger.Info().
		Str("instance", rt.instanceID).
		Uint64("spawns", rt.spawnTotal.Load()).
		Msg("runtime stopped")
}

// stopRequested reports whether Shutdown has begun.
func (rt *Runtime) stopRequested() bool {
	select {
	case <-rt.stopCh:
		return true
	default:
		return false
	}
}

// InstanceID returns the uuid assigned to this runtime instance.
func (rt *Runtime) InstanceID() string {
	return rt.instanceID
}

// Config returns the normalized configuration the runtime started with.
func (rt *Runtime) Config() config.Config {
	return rt.cfg
}
