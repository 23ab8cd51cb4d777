/*
Package log provides structured logging for SwarmRT built on zerolog.

Call Init once during runtime startup, then derive component loggers:

	log.Init(log.Config{Level: log.InfoLevel})
	logger := log.WithComponent("worker")
	logger.Info().Int("worker_id", 2).Msg("scheduler loop started")

Child-logger helpers exist for the fields used throughout the kernel:
component, worker_id, pid, and the runtime instance id.
*/
package log
