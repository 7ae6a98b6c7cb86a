package conductor

import (
	"context"
	"errors"
)

// DispatchError describes a failure observed during dispatch: an async hook
// terminating in error, a malformed constraint detected at evaluation time,
// or a rejected event. Dispatch errors never halt the batch.
type DispatchError struct {
	// HookName is the name of the offending hook, or "" for event-level
	// failures.
	HookName string

	// EventType is the type tag of the event being processed, or "" for the
	// after-events phase.
	EventType string

	// Kind is one of the sentinel errors ErrHookFailed,
	// ErrMalformedConstraint or ErrInvalidEvent; test with errors.Is.
	Kind error

	// Err carries the underlying failure.
	Err error
}

// Error implements the error interface.
func (e DispatchError) Error() string {
	msg := "dispatch error"
	if e.HookName != "" {
		msg += " in hook " + e.HookName
	}
	if e.EventType != "" {
		msg += " for event " + e.EventType
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is see through to the underlying failure.
func (e DispatchError) Unwrap() error { return e.Err }

// Is reports kind matches so errors.Is(dispatchErr, ErrHookFailed) works.
func (e DispatchError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// ErrorSink receives dispatch errors. The dispatcher calls the sink on the
// core loop goroutine, reports the offending hook as skipped, and continues.
type ErrorSink interface {
	ReportDispatchError(ctx context.Context, derr DispatchError)
}

// ErrorSinkFunc adapts a function into an ErrorSink.
type ErrorSinkFunc func(ctx context.Context, derr DispatchError)

// ReportDispatchError implements ErrorSink.
func (f ErrorSinkFunc) ReportDispatchError(ctx context.Context, derr DispatchError) {
	f(ctx, derr)
}

// coreErrorSink is the default sink: it logs the failure and forwards it to
// the core's observers as a CloudEvent so external tooling can react.
type coreErrorSink struct {
	core *Core
}

func (s *coreErrorSink) ReportDispatchError(ctx context.Context, derr DispatchError) {
	s.core.Logger().Error("Dispatch error",
		"hook", derr.HookName,
		"eventType", derr.EventType,
		"kind", kindLabel(derr.Kind),
		"error", derr.Err,
	)
	evt := NewDispatchErrorEvent(derr)
	if err := s.core.NotifyObservers(ctx, evt); err != nil {
		s.core.Logger().Debug("Failed to notify observers of dispatch error", "error", err)
	}
}

func kindLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrMalformedConstraint):
		return "malformed-constraint"
	case errors.Is(kind, ErrHookFailed):
		return "hook-failed"
	case errors.Is(kind, ErrInvalidEvent):
		return "invalid-event"
	case kind == nil:
		return "unknown"
	default:
		return kind.Error()
	}
}
