package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is the root of every static table validation failure.
	ErrConfig = errors.New("config error")

	// ErrCeilingViolation reports a lock attempted by a task whose priority does
	// not exceed the ceiling held by other tasks on its core.
	ErrCeilingViolation = errors.New("ceiling violation")

	// ErrNestingViolation reports an unlock that does not match the task's most
	// recent lock, or a recursive lock.
	ErrNestingViolation = errors.New("nesting violation")

	// ErrSemaphoreOverflow reports a signal on a semaphore whose reserved bits
	// are all set. The signal is dropped.
	ErrSemaphoreOverflow = errors.New("semaphore overflow")

	// ErrMigration is the root of every rejected migration.
	ErrMigration = errors.New("migration error")

	// ErrWaitTimeout is returned by a wait whose tick budget ran out.
	ErrWaitTimeout = errors.New("wait timeout")

	// ErrBlocked is returned by a wait that parked the task. The task is
	// Blocked until a matching post and should return from its step.
	ErrBlocked = errors.New("task blocked")

	ErrAccessDenied     = errors.New("task is not a declared user of the resource")
	ErrRemoteBusy       = errors.New("resource held on the other core")
	ErrLockHeld         = errors.New("task holds a core-local resource")
	ErrNotReady         = errors.New("task is not ready")
	ErrUnknownTask      = errors.New("unknown task")
	ErrUnknownResource  = errors.New("unknown resource")
	ErrUnknownSemaphore = errors.New("unknown semaphore")
	ErrUnknownCore      = errors.New("unknown core")
	ErrTaskPanic        = errors.New("task panicked")
	ErrEmptyMask        = errors.New("empty wait mask")
	ErrHalted           = errors.New("kernel halted by a fatal fault")
)

// ConfigError describes a malformed static table.
type ConfigError struct {
	Item   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Item == "" {
		return "config: " + e.Reason
	}
	return "config: " + e.Item + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

func configErrorf(item, format string, args ...any) *ConfigError {
	return &ConfigError{Item: item, Reason: fmt.Sprintf(format, args...)}
}

// MigrationError describes a rejected migration. Task state is unchanged.
type MigrationError struct {
	Task   TaskID
	From   CoreID
	To     CoreID
	Reason string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migrate task %d core %d -> %d: %s", e.Task, e.From, e.To, e.Reason)
}

func (e *MigrationError) Unwrap() error { return ErrMigration }
