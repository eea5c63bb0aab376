package domain

import "fmt"

// ValidationError reports a rejected input field. No state changes when
// it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// NotFoundError reports a lookup miss.
type NotFoundError struct {
	Kind string // agent|template|position|session
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Execution stages.
const (
	StageBuild = "build"
	StageRun   = "run"
)

// ExecutionError wraps a failure while building or running a crew.
type ExecutionError struct {
	Stage   string
	Message string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed during %s: %s", e.Stage, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
