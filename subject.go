package conductor

import (
	"sync"
)

// SubjectKinder is implemented by domain objects that can be attached to an
// event as its subject. The kind string selects the SubjectAccessor used to
// answer property and attribute lookups during interest evaluation.
type SubjectKinder interface {
	SubjectKind() string
}

// SubjectAccessor answers property and attribute lookups for one kind of
// subject. Accessors are registered once at startup, before any event
// carrying that kind of subject is pushed.
type SubjectAccessor interface {
	// SubjectProperties returns the property bag of the subject, or nil if
	// the subject exposes none.
	SubjectProperties(subject any) *Properties

	// SubjectAttribute returns the named attribute of the subject, such as
	// "bound-id", and whether it is present.
	SubjectAttribute(subject any, name string) (string, bool)
}

// SubjectAccessorFuncs adapts two functions into a SubjectAccessor.
type SubjectAccessorFuncs struct {
	PropertiesFunc func(subject any) *Properties
	AttributeFunc  func(subject any, name string) (string, bool)
}

// SubjectProperties implements SubjectAccessor.
func (f SubjectAccessorFuncs) SubjectProperties(subject any) *Properties {
	if f.PropertiesFunc == nil {
		return nil
	}
	return f.PropertiesFunc(subject)
}

// SubjectAttribute implements SubjectAccessor.
func (f SubjectAccessorFuncs) SubjectAttribute(subject any, name string) (string, bool) {
	if f.AttributeFunc == nil {
		return "", false
	}
	return f.AttributeFunc(subject, name)
}

// SubjectAccessors is the per-core registry mapping subject kinds to their
// accessors. Lookups during dispatch happen on the core loop goroutine;
// registration may happen from anywhere during startup.
type SubjectAccessors struct {
	mu        sync.RWMutex
	accessors map[string]SubjectAccessor
}

// NewSubjectAccessors creates an empty accessor registry.
func NewSubjectAccessors() *SubjectAccessors {
	return &SubjectAccessors{accessors: make(map[string]SubjectAccessor)}
}

// Register installs the accessor for a subject kind.
// Registering a kind twice returns ErrDuplicateAccessor.
func (s *SubjectAccessors) Register(kind string, accessor SubjectAccessor) error {
	if kind == "" {
		return ErrAccessorKindEmpty
	}
	if accessor == nil {
		return ErrAccessorNil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accessors[kind]; exists {
		return ErrDuplicateAccessor
	}
	s.accessors[kind] = accessor
	return nil
}

// Lookup returns the accessor registered for kind, if any.
func (s *SubjectAccessors) Lookup(kind string) (SubjectAccessor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	accessor, ok := s.accessors[kind]
	return accessor, ok
}

// Kinds returns the registered subject kinds.
func (s *SubjectAccessors) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]string, 0, len(s.accessors))
	for kind := range s.accessors {
		kinds = append(kinds, kind)
	}
	return kinds
}
