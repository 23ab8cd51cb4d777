package kernel

import "errors"

var (
	// ErrNoResources is returned by spawn when the arena has no free
	// slot or heap block after one round of cross-partition stealing.
	ErrNoResources = errors.New("kernel: out of process slots or heap blocks")

	// ErrNilTarget is returned when an operation names a nil process, and
	// by spawn for a nil entry function.
	ErrNilTarget = errors.New("kernel: nil target process")

	// ErrDeadTarget is returned when an operation names a process whose
	// slot is free or already exiting.
	ErrDeadTarget = errors.New("kernel: target process is not alive")

	// ErrNameTaken is returned by Register for a duplicate name.
	ErrNameTaken = errors.New("kernel: name already registered")

	// ErrAlreadyNamed is returned by Register when the process already
	// holds a name.
	ErrAlreadyNamed = errors.New("kernel: process already registered under a name")

	// ErrNameInvalid is returned for empty or over-long names.
	ErrNameInvalid = errors.New("kernel: invalid registry name")

	// ErrNameNotFound is returned by Unregister and SendNamed for an
	// unknown name.
	ErrNameNotFound = errors.New("kernel: name not registered")

	// ErrNotLinked is returned by Unlink when no link exists.
	ErrNotLinked = errors.New("kernel: processes are not linked")

	// ErrNoMonitor is returned by Demonitor for an unknown reference.
	ErrNoMonitor = errors.New("kernel: unknown monitor reference")

	// ErrShutdown is returned by spawn on a runtime that has been shut
	// down.
	ErrShutdown = errors.New("kernel: runtime is shut down")
)
