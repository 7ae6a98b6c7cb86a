package config

import (
	"context"
	"fmt"

	"github.com/golobby/cast"

	"github.com/soundgraph/conductor"
)

// CompileRules turns every rule spec into a hook and registers it with the
// dispatcher. Compilation is eager: a malformed rule fails the whole load,
// unlike programmatic hooks whose interests are validated lazily.
func CompileRules(cfg *Config, dispatcher *conductor.EventDispatcher) error {
	for i := range cfg.Rules {
		hook, err := CompileRule(&cfg.Rules[i], dispatcher)
		if err != nil {
			return fmt.Errorf("rule %q: %w", cfg.Rules[i].Name, err)
		}
		if err := dispatcher.RegisterHook(hook); err != nil {
			return fmt.Errorf("rule %q: %w", cfg.Rules[i].Name, err)
		}
	}
	return nil
}

// CompileRule builds a hook from a rule spec without registering it.
func CompileRule(spec *RuleSpec, dispatcher *conductor.EventDispatcher) (conductor.EventHook, error) {
	if spec.Name == "" {
		return nil, ErrRuleNameEmpty
	}
	execType, err := parseExecType(spec.ExecType)
	if err != nil {
		return nil, err
	}
	fn, err := compileActions(spec.Actions, dispatcher)
	if err != nil {
		return nil, err
	}

	hook := conductor.NewSimpleEventHook(spec.Name, spec.Priority, execType, fn)
	for _, interest := range spec.Interests {
		constraints := make([]conductor.Constraint, 0, len(interest.Constraints))
		for _, cs := range interest.Constraints {
			constraint, err := compileConstraint(cs)
			if err != nil {
				return nil, err
			}
			constraints = append(constraints, constraint)
		}
		// Validate eagerly so a bad config fails at load time rather than
		// producing error-sink noise on every event.
		if _, err := conductor.CompileInterest(constraints...); err != nil {
			return nil, err
		}
		hook.AddInterest(constraints...)
	}
	return hook, nil
}

func parseExecType(s string) (conductor.HookExecType, error) {
	switch s {
	case "", "on-event":
		return conductor.ExecOnEvent, nil
	case "after-events-with-event":
		return conductor.ExecAfterEventsWithEvent, nil
	case "after-events":
		return conductor.ExecAfterEvents, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrRuleUnknownExecType, s)
	}
}

func parseVerb(s string) (conductor.ConstraintVerb, error) {
	switch s {
	case "", "event-property":
		return conductor.ConstraintEventProperty, nil
	case "subject-property":
		return conductor.ConstraintSubjectProperty, nil
	case "subject-attribute":
		return conductor.ConstraintSubjectAttribute, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrRuleUnknownVerb, s)
	}
}

func parseOp(s string) (conductor.ConstraintOp, error) {
	switch s {
	case "equals":
		return conductor.OpEquals, nil
	case "not-equals":
		return conductor.OpNotEquals, nil
	case "in-list":
		return conductor.OpInList, nil
	case "in-range":
		return conductor.OpInRange, nil
	case "matches":
		return conductor.OpMatches, nil
	case "is-present":
		return conductor.OpIsPresent, nil
	case "is-absent":
		return conductor.OpIsAbsent, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrRuleUnknownOp, s)
	}
}

func compileConstraint(spec ConstraintSpec) (conductor.Constraint, error) {
	verb, err := parseVerb(spec.Verb)
	if err != nil {
		return conductor.Constraint{}, err
	}
	op, err := parseOp(spec.Op)
	if err != nil {
		return conductor.Constraint{}, err
	}
	operand, err := compileOperand(op, spec.Value)
	if err != nil {
		return conductor.Constraint{}, fmt.Errorf("%w (key %q)", err, spec.Key)
	}
	return conductor.NewConstraint(verb, spec.Key, op, operand), nil
}

// compileOperand maps the decoded YAML/TOML value onto the operand shape
// the operator expects.
func compileOperand(op conductor.ConstraintOp, value any) (conductor.Operand, error) {
	switch op {
	case conductor.OpIsPresent, conductor.OpIsAbsent:
		if value != nil {
			return conductor.Operand{}, fmt.Errorf("%w: presence operators take no value", ErrRuleBadOperand)
		}
		return conductor.NoOperand(), nil

	case conductor.OpInList:
		items, ok := value.([]any)
		if !ok {
			return conductor.Operand{}, fmt.Errorf("%w: in-list needs a list", ErrRuleBadOperand)
		}
		list := make([]string, 0, len(items))
		for _, item := range items {
			list = append(list, fmt.Sprint(item))
		}
		return conductor.ListOperand(list...), nil

	case conductor.OpInRange:
		bounds, ok := value.([]any)
		if !ok || len(bounds) != 2 {
			return conductor.Operand{}, fmt.Errorf("%w: in-range needs a [lo, hi] pair", ErrRuleBadOperand)
		}
		lo, err := toInt64(bounds[0])
		if err != nil {
			return conductor.Operand{}, fmt.Errorf("%w: %v", ErrRuleBadOperand, err)
		}
		hi, err := toInt64(bounds[1])
		if err != nil {
			return conductor.Operand{}, fmt.Errorf("%w: %v", ErrRuleBadOperand, err)
		}
		return conductor.RangeOperand(lo, hi), nil

	default:
		if value == nil {
			return conductor.Operand{}, fmt.Errorf("%w: %s needs a value", ErrRuleBadOperand, op)
		}
		return conductor.StringOperand(fmt.Sprint(value)), nil
	}
}

func toInt64(v any) (int64, error) {
	converted, err := cast.FromString(fmt.Sprint(v), "int64")
	if err != nil {
		return 0, err
	}
	n, ok := converted.(int64)
	if !ok {
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
	return n, nil
}

// compileActions builds the hook behaviour from the action list. Rules with
// no actions are match-only: the hook is registered and selected like any
// other but does nothing when it fires.
func compileActions(specs []ActionSpec, dispatcher *conductor.EventDispatcher) (conductor.HookFunc, error) {
	actions := make([]conductor.HookFunc, 0, len(specs))
	for _, spec := range specs {
		switch spec.Type {
		case "emit":
			if spec.Event == "" {
				return nil, ErrRuleEmitMissingType
			}
			eventType := spec.Event
			priority := spec.Priority
			props := spec.Properties
			actions = append(actions, func(_ context.Context, _ *conductor.Event) error {
				var bag *conductor.Properties
				if props != nil {
					bag = conductor.NewPropertiesFromMap(props)
				}
				e, err := conductor.NewEvent(eventType, priority, bag, nil, nil)
				if err != nil {
					return err
				}
				return dispatcher.PushEvent(e)
			})
		case "stop":
			actions = append(actions, func(_ context.Context, e *conductor.Event) error {
				if e != nil {
					e.StopProcessing()
				}
				return nil
			})
		default:
			return nil, fmt.Errorf("%w: %q", ErrRuleUnknownAction, spec.Type)
		}
	}
	if len(actions) == 0 {
		return nil, nil
	}
	return func(ctx context.Context, e *conductor.Event) error {
		for _, action := range actions {
			if err := action(ctx, e); err != nil {
				return err
			}
		}
		return nil
	}, nil
}
