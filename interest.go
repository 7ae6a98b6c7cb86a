package conductor

import (
	"fmt"
)

// Interest is a conjunction of constraints over an event. A hook holds a
// list of interests interpreted disjunctively: the hook matches an event if
// any one of its interests matches. An interest with zero constraints is
// rejected by CompileInterest, but a hook with zero interests matches every
// event.
type Interest struct {
	constraints []Constraint

	// compilation is lazy so that hooks can be declared with raw constraint
	// lists (e.g. straight from a config file) and only report a malformed
	// tuple when they are first evaluated.
	compiled   bool
	compileErr error
}

// NewInterest builds an interest from constraints without validating them.
// Validation happens at first evaluation; use CompileInterest to validate
// eagerly.
func NewInterest(constraints ...Constraint) *Interest {
	return &Interest{constraints: constraints}
}

// CompileInterest builds an interest and validates every constraint.
// It fails with an error wrapping ErrMalformedConstraint when the constraint
// list is empty or an operator is not applicable to its operand shape.
func CompileInterest(constraints ...Constraint) (*Interest, error) {
	in := NewInterest(constraints...)
	if err := in.compile(); err != nil {
		return nil, err
	}
	return in, nil
}

// Constraints returns the interest's constraint list.
func (in *Interest) Constraints() []Constraint {
	return in.constraints
}

func (in *Interest) compile() error {
	if in.compiled {
		return in.compileErr
	}
	in.compiled = true
	if len(in.constraints) == 0 {
		in.compileErr = ErrEmptyConstraintList
		return in.compileErr
	}
	for i, c := range in.constraints {
		if err := c.validate(); err != nil {
			in.compileErr = fmt.Errorf("constraint %d (%s %s %s): %w", i, c.Verb, c.Key, c.Op, err)
			return in.compileErr
		}
	}
	return nil
}

// Matches evaluates the interest against an event. Subject constraints are
// resolved through accessors; pass nil when no subject constraints are used.
// An error wrapping ErrMalformedConstraint is returned when the interest is
// ill-formed or when a subject constraint has no accessor for the event's
// subject kind.
func (in *Interest) Matches(event *Event, accessors *SubjectAccessors) (bool, error) {
	if err := in.compile(); err != nil {
		return false, err
	}
	for _, c := range in.constraints {
		value, present, err := resolveConstraintValue(c, event, accessors)
		if err != nil {
			return false, err
		}
		if !c.evaluate(value, present) {
			return false, nil
		}
	}
	return true, nil
}

// resolveConstraintValue reads the value a constraint compares against,
// according to the constraint's verb.
func resolveConstraintValue(c Constraint, event *Event, accessors *SubjectAccessors) (string, bool, error) {
	switch c.Verb {
	case ConstraintEventProperty:
		v, ok := event.Properties().Get(c.Key)
		return v, ok, nil

	case ConstraintSubjectProperty, ConstraintSubjectAttribute:
		subject := event.Subject()
		if subject == nil {
			return "", false, nil
		}
		kind := event.SubjectKind()
		if kind == "" {
			return "", false, nil
		}
		var accessor SubjectAccessor
		if accessors != nil {
			accessor, _ = accessors.Lookup(kind)
		}
		if accessor == nil {
			return "", false, fmt.Errorf("%w: subject kind %q", ErrNoSubjectAccessor, kind)
		}
		if c.Verb == ConstraintSubjectAttribute {
			v, ok := accessor.SubjectAttribute(subject, c.Key)
			return v, ok, nil
		}
		v, ok := accessor.SubjectProperties(subject).Get(c.Key)
		return v, ok, nil

	default:
		return "", false, fmt.Errorf("%w: unknown verb %d", ErrMalformedConstraint, int(c.Verb))
	}
}
