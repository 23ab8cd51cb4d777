/*
Package metrics exports SwarmRT's prometheus instrumentation.

Counters are incremented inline by the kernel on the hot paths that can
afford it (spawns, exits, steals, timer fires); gauges that would require
cross-partition locking to keep exact (free slots, run-queue depth) are
sampled by a background Collector instead:

	collector := metrics.NewCollector(rt, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	http.Handle("/metrics", metrics.Handler())

All metric names carry the swarmrt_ prefix.
*/
package metrics
