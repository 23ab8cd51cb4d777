package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Arena metrics
	FreeSlots = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmrt_arena_free_slots",
			Help: "Number of free process slots across all partitions",
		},
	)

	FreeBlocks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmrt_arena_free_blocks",
			Help: "Number of free heap blocks across all partitions",
		},
	)

	LiveProcesses = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmrt_processes_live",
			Help: "Number of live processes",
		},
	)

	StealsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_arena_steals_total",
			Help: "Total number of cross-partition steal operations",
		},
	)

	// Scheduling metrics
	SpawnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_spawns_total",
			Help: "Total number of processes spawned",
		},
	)

	SpawnFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_spawn_failures_total",
			Help: "Total number of spawns refused for lack of arena resources",
		},
	)

	ExitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swarmrt_exits_total",
			Help: "Total number of process exits by kind",
		},
		[]string{"kind"},
	)

	ContextSwitchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_context_switches_total",
			Help: "Total number of dispatches into a process",
		},
	)

	RunQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "swarmrt_run_queue_depth",
			Help: "Approximate run queue depth by priority",
		},
		[]string{"priority"},
	)

	// Messaging metrics
	MessagesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_messages_sent_total",
			Help: "Total number of messages pushed into mailboxes",
		},
	)

	MessagesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_messages_received_total",
			Help: "Total number of messages popped from mailboxes",
		},
	)

	WakeupsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_wakeups_total",
			Help: "Total number of sleeping receivers re-enqueued by senders",
		},
	)

	// Timer metrics
	TimersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmrt_timers_active",
			Help: "Number of pending timers",
		},
	)

	TimersFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_timers_fired_total",
			Help: "Total number of timers fired",
		},
	)

	TimersCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swarmrt_timers_cancelled_total",
			Help: "Total number of timers cancelled before firing",
		},
	)

	// Registry metrics
	RegisteredNames = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "swarmrt_registered_names",
			Help: "Number of names currently registered",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(FreeSlots)
	prometheus.MustRegister(FreeBlocks)
	prometheus.MustRegister(LiveProcesses)
	prometheus.MustRegister(StealsTotal)
	prometheus.MustRegister(SpawnsTotal)
	prometheus.MustRegister(SpawnFailuresTotal)
	prometheus.MustRegister(ExitsTotal)
	prometheus.MustRegister(ContextSwitchesTotal)
	prometheus.MustRegister(RunQueueDepth)
	prometheus.MustRegister(MessagesSentTotal)
	prometheus.MustRegister(MessagesReceivedTotal)
	prometheus.MustRegister(WakeupsTotal)
	prometheus.MustRegister(TimersActive)
	prometheus.MustRegister(TimersFiredTotal)
	prometheus.MustRegister(TimersCancelledTotal)
	prometheus.MustRegister(RegisteredNames)
}

// Handler returns the HTTP handler for the /metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for measuring operation durations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time in the given histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
