package conductor

import (
	"errors"
	"testing"
)

func TestNewEvent_EmptyTypeRejected(t *testing.T) {
	_, err := NewEvent("", 0, nil, nil, nil)
	if !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestNewEvent_SeedsTypeProperty(t *testing.T) {
	e := mustEvent(t, "object-added", 5, map[string]string{"k": "v"})
	if v, _ := e.Properties().Get(EventTypeKey); v != "object-added" {
		t.Fatalf("expected seeded event.type, got %q", v)
	}
	if e.Priority() != 5 {
		t.Fatalf("expected priority 5, got %d", e.Priority())
	}
	if e.ID() == "" {
		t.Fatalf("expected a generated event id")
	}
}

func TestNewEvent_SubjectKindRecorded(t *testing.T) {
	subject := &testSubject{props: NewProperties()}
	e, err := NewEvent("node-added", 0, nil, subject, nil)
	if err != nil {
		t.Fatalf("NewEvent failed: %v", err)
	}
	if e.SubjectKind() != "test-node" {
		t.Fatalf("expected subject kind test-node, got %q", e.SubjectKind())
	}
	if v, _ := e.Properties().Get(EventSubjectKindKey); v != "test-node" {
		t.Fatalf("expected seeded subject kind property, got %q", v)
	}
}

func TestEvent_StopIsIdempotent(t *testing.T) {
	e := mustEvent(t, "t", 0, nil)
	if e.IsStopped() {
		t.Fatalf("expected new event to not be stopped")
	}
	e.StopProcessing()
	e.StopProcessing()
	if !e.IsStopped() {
		t.Fatalf("expected event to be stopped")
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	a := mustEvent(t, "t", 0, nil)
	b := mustEvent(t, "t", 0, nil)
	if a.ID() == b.ID() {
		t.Fatalf("expected distinct event ids")
	}
}
