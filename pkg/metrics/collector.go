package metrics

import (
	"time"
)

// Source exposes the runtime counters the collector polls. The kernel
// implements it; the indirection keeps this package free of kernel
// imports.
type Source interface {
	FreeSlots() int
	FreeBlocks() int
	LiveProcesses() int
	RegisteredNames() int
	PendingTimers() int
	RunQueueDepths() map[string]int
}

// Collector periodically copies runtime counters into the prometheus
// gauges.
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a collector polling the given source.
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	FreeSlots.Set(float64(c.source.FreeSlots()))
	FreeBlocks.Set(float64(c.source.FreeBlocks()))
	LiveProcesses.Set(float64(c.source.LiveProcesses()))
	RegisteredNames.Set(float64(c.source.RegisteredNames()))
	TimersActive.Set(float64(c.source.PendingTimers()))

	for priority, depth := range c.source.RunQueueDepths() {
		RunQueueDepth.WithLabelValues(priority).Set(float64(depth))
	}
}
