/*
Package types defines the shared vocabulary of the SwarmRT kernel: process
identities, message tags, priorities, lifecycle states, and the signal
payloads exchanged by links, monitors, and timers.

The package has no dependencies on the rest of the runtime so that every
layer — the kernel, the metrics exporter, the CLI — can speak the same
types without import cycles.

# Identity

Pid is a monotonic 64-bit identity that is never reused; it is distinct
from the arena slot index a process happens to occupy, which is recycled
aggressively. Ref identifies monitors and pending timers; monitor and
timer references are numbered by separate counters, so a Ref is never
reissued within its kind, though the same number can name a monitor and
a timer.

# Tag space

Mailbox messages carry a Tag. Small integers 1..15 are reserved for system
signals so that kernel-generated EXIT, DOWN, and TIMER messages can never
collide with user traffic:

	TagNone   (0)  untagged user message
	TagExit   (1)  link exit signal, payload *ExitSignal
	TagDown   (2)  monitor down signal, payload *DownSignal
	TagTimer  (3)  reserved for timers (SendAfter keeps the caller's tag)
	>= TagUserMin  user tags

# Priorities and states

Each worker multiplexes four strict priority levels (max, high, normal,
low). A process slot moves through free → runnable → running → waiting /
exiting and back to free when the slot is reclaimed.
*/
package types
