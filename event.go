package conductor

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Well-known event property keys. NewEvent seeds every event's
// property bag with these so interests can constrain on them like on any
// other property.
const (
	// EventTypeKey holds the event's type tag.
	EventTypeKey = "event.type"
	// EventSubjectKindKey holds the kind of the event's subject, when set.
	EventSubjectKindKey = "event.subject.kind"
)

// Event is an immutable record of something that happened, queued for
// dispatch. Once pushed, only the stopped flag may change; everything else
// is fixed at construction.
type Event struct {
	id       string
	typeTag  string
	priority int
	props    *Properties
	subject  any
	subjKind string
	source   any
	created  time.Time
	stopped  atomic.Bool

	// seq is assigned by the dispatcher at push time and breaks FIFO ties
	// between equal-priority events.
	seq uint64
}

// NewEvent creates an event with the given type tag and priority.
// props may be nil; subject and source are optional opaque handles.
// If the subject implements SubjectKinder, its kind is recorded so that
// interests can resolve subject properties and attributes.
//
// Returns ErrInvalidEvent if the type tag is empty.
func NewEvent(typeTag string, priority int, props *Properties, subject, source any) (*Event, error) {
	if typeTag == "" {
		return nil, ErrInvalidEvent
	}
	if props == nil {
		props = NewProperties()
	}
	e := &Event{
		id:       newEventID(),
		typeTag:  typeTag,
		priority: priority,
		props:    props,
		subject:  subject,
		source:   source,
		created:  time.Now(),
	}
	if kinder, ok := subject.(SubjectKinder); ok {
		e.subjKind = kinder.SubjectKind()
		e.props.Set(EventSubjectKindKey, e.subjKind)
	}
	e.props.Set(EventTypeKey, typeTag)
	return e, nil
}

// MustNewEvent is NewEvent for callers with a known-good type tag.
// It panics on an empty tag.
func MustNewEvent(typeTag string, priority int, props *Properties, subject, source any) *Event {
	e, err := NewEvent(typeTag, priority, props, subject, source)
	if err != nil {
		panic(err)
	}
	return e
}

// newEventID generates a unique event identifier using UUIDv7, which is
// time-ordered. Falls back to v4 if v7 generation fails.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ID returns the event's unique identifier.
func (e *Event) ID() string { return e.id }

// Type returns the event's type tag, e.g. "node-added".
func (e *Event) Type() string { return e.typeTag }

// Priority returns the event's dispatch priority. Higher runs first.
func (e *Event) Priority() int { return e.priority }

// Properties returns the event's property bag. Hooks must treat it as
// read-only.
func (e *Event) Properties() *Properties { return e.props }

// Subject returns the domain object this event is about, or nil.
func (e *Event) Subject() any { return e.subject }

// SubjectKind returns the kind of the subject, or "" when there is none.
func (e *Event) SubjectKind() string { return e.subjKind }

// Source returns the originator handle, or nil.
func (e *Event) Source() any { return e.source }

// Created returns the event's construction time.
func (e *Event) Created() time.Time { return e.created }

// StopProcessing cancels the event. The dispatcher observes the flag at the
// next hook boundary: hooks that have not started for this event will not
// run, and an in-flight hook is never interrupted. Safe to call from any
// goroutine; calling it more than once has no further effect.
func (e *Event) StopProcessing() {
	e.stopped.Store(true)
}

// IsStopped reports whether StopProcessing has been called.
func (e *Event) IsStopped() bool {
	return e.stopped.Load()
}
