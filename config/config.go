// Package config provides configuration loading for the conductor daemon:
// daemon settings plus declarative hook rules, read from YAML or TOML files
// resolved against an ordered list of search paths.
package config

import (
	"errors"
)

// Static errors for the config package
var (
	ErrFileNotFound        = errors.New("config file not found in search paths")
	ErrUnsupportedFormat   = errors.New("unsupported config file format")
	ErrRuleNameEmpty       = errors.New("rule name must not be empty")
	ErrRuleUnknownExecType = errors.New("rule has unknown exec type")
	ErrRuleUnknownVerb     = errors.New("rule constraint has unknown verb")
	ErrRuleUnknownOp       = errors.New("rule constraint has unknown operator")
	ErrRuleBadOperand      = errors.New("rule constraint operand has unsupported shape")
	ErrRuleUnknownAction   = errors.New("rule has unknown action")
	ErrRuleEmitMissingType = errors.New("emit action requires an event type")
)

// Config is the daemon configuration.
type Config struct {
	// Daemon holds process-level settings.
	Daemon DaemonConfig `json:"daemon" yaml:"daemon" toml:"daemon"`

	// Rules are declarative hooks compiled and registered at startup.
	Rules []RuleSpec `json:"rules" yaml:"rules" toml:"rules"`
}

// DaemonConfig holds process-level settings.
type DaemonConfig struct {
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `json:"logLevel" yaml:"logLevel" toml:"logLevel"`

	// StatusAddr is the listen address of the introspection API,
	// e.g. "127.0.0.1:9763". Empty disables the API.
	StatusAddr string `json:"statusAddr" yaml:"statusAddr" toml:"statusAddr"`

	// RescanSchedule is a cron expression for periodic graph rescans.
	// Empty disables the scheduler.
	RescanSchedule string `json:"rescanSchedule" yaml:"rescanSchedule" toml:"rescanSchedule"`
}

// RuleSpec is the declarative form of an event hook.
type RuleSpec struct {
	// Name is the hook name, unique within the dispatcher.
	Name string `json:"name" yaml:"name" toml:"name"`

	// Priority is the hook priority; higher runs first.
	Priority int `json:"priority" yaml:"priority" toml:"priority"`

	// ExecType is "on-event" (default), "after-events-with-event" or
	// "after-events".
	ExecType string `json:"execType" yaml:"execType" toml:"execType"`

	// Interests is a disjunction of constraint lists. A rule with no
	// interests matches every event.
	Interests []InterestSpec `json:"interests" yaml:"interests" toml:"interests"`

	// Actions run in order when the rule fires.
	Actions []ActionSpec `json:"actions" yaml:"actions" toml:"actions"`
}

// InterestSpec is a conjunction of constraints.
type InterestSpec struct {
	Constraints []ConstraintSpec `json:"constraints" yaml:"constraints" toml:"constraints"`
}

// ConstraintSpec is the declarative form of a constraint tuple.
type ConstraintSpec struct {
	// Verb is "event-property" (default), "subject-property" or
	// "subject-attribute".
	Verb string `json:"verb" yaml:"verb" toml:"verb"`

	// Key is the property or attribute name to read.
	Key string `json:"key" yaml:"key" toml:"key"`

	// Op is "equals", "not-equals", "in-list", "in-range", "matches",
	// "is-present" or "is-absent".
	Op string `json:"op" yaml:"op" toml:"op"`

	// Value is the operand: a scalar for equals/not-equals/matches, a list
	// for in-list, a [lo, hi] pair for in-range, absent for the presence
	// operators.
	Value any `json:"value,omitempty" yaml:"value,omitempty" toml:"value,omitempty"`
}

// ActionSpec describes what a rule does when it fires.
type ActionSpec struct {
	// Type is "emit" (push a new event) or "stop" (cancel the matched
	// event).
	Type string `json:"type" yaml:"type" toml:"type"`

	// Event is the type tag of the emitted event (emit only).
	Event string `json:"event,omitempty" yaml:"event,omitempty" toml:"event,omitempty"`

	// Priority is the priority of the emitted event (emit only).
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty" toml:"priority,omitempty"`

	// Properties seed the emitted event's property bag (emit only).
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty" toml:"properties,omitempty"`
}
