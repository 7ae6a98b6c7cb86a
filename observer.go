// Observer pattern interfaces for out-of-band notification of dispatch
// activity. Notifications use the CloudEvents specification for
// standardized event format and better interoperability with external
// tooling; they are distinct from the dispatcher's own Event type, which
// stays inside the daemon.
package conductor

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer defines the interface for objects that want to be notified of
// dispatch activity: events pushed, batches completed, hooks failing.
// Observers register with the Core and are invoked synchronously on the
// goroutine that emits the notification (the core loop for hook failures
// and batch completions, the pushing goroutine for event-pushed
// notifications), so they must return quickly.
type Observer interface {
	// OnEvent is called when a notification the observer subscribed to
	// occurs.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer, used for
	// registration tracking and debugging.
	ObserverID() string
}

// Subject defines the interface for the notification side of the Core.
type Subject interface {
	// RegisterObserver adds an observer. Observers can optionally filter
	// notifications by type; an empty eventTypes list receives everything.
	RegisterObserver(observer Observer, eventTypes ...string) error

	// UnregisterObserver removes an observer. Idempotent.
	UnregisterObserver(observer Observer) error

	// NotifyObservers delivers a CloudEvent to all interested observers.
	NotifyObservers(ctx context.Context, event cloudevents.Event) error

	// GetObservers returns information about registered observers.
	GetObservers() []ObserverInfo
}

// ObserverInfo describes a registered observer for debugging and
// administrative interfaces.
type ObserverInfo struct {
	// ID is the unique identifier of the observer
	ID string `json:"id"`

	// EventTypes are the notification types this observer subscribed to.
	// Empty slice means all notifications.
	EventTypes []string `json:"eventTypes"`

	// RegisteredAt indicates when the observer was registered
	RegisteredAt time.Time `json:"registeredAt"`
}

// Notification type constants emitted by the core. Following the CloudEvents
// specification these use reverse domain notation.
const (
	// Dispatch activity
	EventTypeEventPushed    = "com.conductor.dispatch.event.pushed"
	EventTypeEventCancelled = "com.conductor.dispatch.event.cancelled"
	EventTypeBatchCompleted = "com.conductor.dispatch.batch.completed"
	EventTypeHookFailed     = "com.conductor.dispatch.hook.failed"

	// Hook registry
	EventTypeHookRegistered = "com.conductor.dispatch.hook.registered"
	EventTypeHookRemoved    = "com.conductor.dispatch.hook.removed"

	// Module lifecycle
	EventTypeModuleInitialized = "com.conductor.module.initialized"
	EventTypeModuleStarted     = "com.conductor.module.started"
	EventTypeModuleStopped     = "com.conductor.module.stopped"
	EventTypeModuleFailed      = "com.conductor.module.failed"

	// Configuration
	EventTypeConfigLoaded  = "com.conductor.config.loaded"
	EventTypeConfigChanged = "com.conductor.config.changed"
)

// FunctionalObserver provides a simple way to create observers from a
// function, without defining a full struct.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that delegates to handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent implements Observer by calling the handler function.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID implements Observer by returning the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}
