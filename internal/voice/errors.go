package voice

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when a request stops early because its context
// was cancelled. The accompanying Report counts only persisted segments.
var ErrInterrupted = errors.New("synthesis interrupted")

// ValidationError reports a request that is missing a field its mode requires.
type ValidationError struct {
	Mode   Mode
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "is required"
	}
	if e.Mode.Valid() {
		return fmt.Sprintf("invalid %s request: %s %s", e.Mode, e.Field, reason)
	}
	return fmt.Sprintf("invalid request: %s %s", e.Field, reason)
}

// UnknownModeError is returned for a mode selector outside the known set.
type UnknownModeError struct {
	Mode  Mode
	Input string
}

func (e *UnknownModeError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("unknown synthesis mode %q", e.Input)
	}
	return fmt.Sprintf("unknown synthesis mode %d", int(e.Mode))
}

// IOError wraps a prompt load or audio write failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// EngineFailure wraps an error raised while pulling segment Index.
type EngineFailure struct {
	Mode  Mode
	Index int
	Err   error
}

func (e *EngineFailure) Error() string {
	return fmt.Sprintf("engine failure in %s at segment %d: %v", e.Mode, e.Index, e.Err)
}

func (e *EngineFailure) Unwrap() error { return e.Err }

// PersistenceError wraps a failed segment write. Segments written before
// Index stay on disk.
type PersistenceError struct {
	Path  string
	Index int
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist segment %d to %s: %v", e.Index, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
