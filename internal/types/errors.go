package types

import "fmt"

// ConfigurationError rejects an invalid risk-parameter update. State is left
// untouched when one of these is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// StateTransitionError rejects a manual command that is illegal for the
// controller's current state, e.g. resume during emergency stop.
type StateTransitionError struct {
	Op   string
	From AutomationStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s not allowed from state %s", e.Op, e.From)
}

// ExecutionError means a signal could not be turned into a position. No
// position is created; the signal is dropped or requeued per policy.
type ExecutionError struct {
	Symbol string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("signal execution failed for %s: %v", e.Symbol, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TaskHandlerError wraps a scheduler task handler failure or timeout. It is
// recorded against the task and never propagates past the tick.
type TaskHandlerError struct {
	Task     string
	TimedOut bool
	Err      error
}

func (e *TaskHandlerError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("task %s timed out: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task %s failed: %v", e.Task, e.Err)
}

func (e *TaskHandlerError) Unwrap() error { return e.Err }

// NotFoundError reports a manual operation against an unknown or non-open
// position id, or an unknown task name.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}
