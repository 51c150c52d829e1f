package session

import (
	"fmt"
	"time"
)

// ConfigurationError reports a missing or invalid Config field. It is
// returned synchronously from New, before any filesystem or engine call.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid session config: %s %s", e.Field, e.Reason)
}

// SessionCreationError reports a failure to prepare the on-disk session
// layout (record directory or engine config file). The engine is never
// touched when this is returned.
type SessionCreationError struct {
	Op   string
	Path string
	Err  error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create session: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// JoinError carries the native engine's join failure codes verbatim.
type JoinError struct {
	Code   int
	Status int
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("engine join failed: error=%d status=%d", e.Code, e.Status)
}

// JoinTimeoutError settles a pending join only when the session is
// configured with a fatal join timeout. The advisory (default) timeout is
// logged and never produces this error.
type JoinTimeoutError struct {
	After time.Duration
}

func (e *JoinTimeoutError) Error() string {
	return fmt.Sprintf("engine join timed out after %s", e.After)
}

// InvalidStateError reports a control call issued outside its valid
// lifecycle window. No native call is performed.
type InvalidStateError struct {
	Op    string
	State State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}
