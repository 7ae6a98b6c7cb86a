// CloudEvents constructors for the core's notification surface.
package conductor

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience,
// and to keep it visually distinct from the dispatcher's own Event.
type CloudEvent = cloudevents.Event

// notificationSource identifies the core as the CloudEvents source.
const notificationSource = "conductor"

// NewNotification creates a CloudEvent with the given type and JSON data.
func NewNotification(eventType string, data interface{}) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(notificationSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// DispatchErrorPayload is the JSON body of a hook-failure notification.
type DispatchErrorPayload struct {
	HookName  string `json:"hookName,omitempty"`
	EventType string `json:"eventType,omitempty"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
}

// NewDispatchErrorEvent builds the CloudEvent emitted when a dispatch error
// reaches the default error sink.
func NewDispatchErrorEvent(derr DispatchError) cloudevents.Event {
	payload := DispatchErrorPayload{
		HookName:  derr.HookName,
		EventType: derr.EventType,
		Kind:      kindLabel(derr.Kind),
	}
	if derr.Err != nil {
		payload.Message = derr.Err.Error()
	}
	evt := NewNotification(EventTypeHookFailed, payload)
	// Extension names must be lower-case alphanumerics per CloudEvents 1.0.
	evt.SetExtension("hookname", derr.HookName)
	evt.SetExtension("dispatchkind", payload.Kind)
	return evt
}

// EventPushedPayload is the JSON body of an event-pushed notification.
type EventPushedPayload struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Priority  int    `json:"priority"`
}

// NewEventPushedEvent builds the CloudEvent emitted when an event enters the
// pending queue.
func NewEventPushedEvent(e *Event) cloudevents.Event {
	return NewNotification(EventTypeEventPushed, EventPushedPayload{
		EventID:   e.ID(),
		EventType: e.Type(),
		Priority:  e.Priority(),
	})
}

// BatchCompletedPayload is the JSON body of a batch-completed notification.
type BatchCompletedPayload struct {
	Batch  uint64 `json:"batch"`
	Events uint64 `json:"events"`
}

// NewBatchCompletedEvent builds the CloudEvent emitted when the queue drains
// and the after-events phase has run.
func NewBatchCompletedEvent(batch, events uint64) cloudevents.Event {
	return NewNotification(EventTypeBatchCompleted, BatchCompletedPayload{
		Batch:  batch,
		Events: events,
	})
}

// ModuleLifecyclePayload is the JSON body of module lifecycle notifications.
type ModuleLifecyclePayload struct {
	Module string `json:"module"`
	Action string `json:"action"`
	Error  string `json:"error,omitempty"`
}

// NewModuleLifecycleEvent builds a CloudEvent for a module lifecycle action
// ("initialized", "started", "stopped", "failed").
func NewModuleLifecycleEvent(module, action string, failure error) cloudevents.Event {
	payload := ModuleLifecyclePayload{Module: module, Action: action}
	var eventType string
	switch action {
	case "initialized":
		eventType = EventTypeModuleInitialized
	case "started":
		eventType = EventTypeModuleStarted
	case "stopped":
		eventType = EventTypeModuleStopped
	case "failed":
		eventType = EventTypeModuleFailed
	default:
		eventType = fmt.Sprintf("com.conductor.module.%s", action)
	}
	if failure != nil {
		payload.Error = failure.Error()
	}
	evt := NewNotification(eventType, payload)
	evt.SetExtension("modulename", module)
	return evt
}

// ValidateNotification validates that a CloudEvent conforms to the spec
// before delivery to observers.
func ValidateNotification(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("cloudevent validation failed: %w", err)
	}
	return nil
}
