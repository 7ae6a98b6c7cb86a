package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundgraph/conductor"
)

func drainDispatcher(t *testing.T, core *conductor.Core, dispatcher *conductor.EventDispatcher) {
	t.Helper()
	quit := conductor.NewSimpleEventHook("zzz-test-quit", -1_000_000, conductor.ExecAfterEvents,
		func(context.Context, *conductor.Event) error {
			core.Quit()
			return nil
		})
	require.NoError(t, dispatcher.RegisterHook(quit))
	defer func() { _ = dispatcher.RemoveHook("zzz-test-quit") }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	core.Defer(core.Quit)
	require.NoError(t, core.Run(ctx))
}

func TestCompileRule_EmitAction(t *testing.T) {
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	cfg := &Config{Rules: []RuleSpec{{
		Name:     "suspend-idle-nodes",
		Priority: 50,
		Interests: []InterestSpec{{Constraints: []ConstraintSpec{{
			Key:   "event.type",
			Op:    "equals",
			Value: "node-idle",
		}}}},
		Actions: []ActionSpec{{
			Type:       "emit",
			Event:      "node-suspend",
			Priority:   10,
			Properties: map[string]string{"reason": "idle"},
		}},
	}}}
	require.NoError(t, CompileRules(cfg, dispatcher))

	var emitted []*conductor.Event
	collector := conductor.NewSimpleEventHook("collector", 0, conductor.ExecOnEvent,
		func(_ context.Context, e *conductor.Event) error {
			if e.Type() == "node-suspend" {
				emitted = append(emitted, e)
			}
			return nil
		})
	require.NoError(t, dispatcher.RegisterHook(collector))

	require.NoError(t, dispatcher.PushEvent(conductor.MustNewEvent("node-idle", 0, nil, nil, nil)))
	drainDispatcher(t, core, dispatcher)

	require.Len(t, emitted, 1)
	reason, _ := emitted[0].Properties().Get("reason")
	assert.Equal(t, "idle", reason)
	assert.Equal(t, 10, emitted[0].Priority())
}

func TestCompileRule_StopAction(t *testing.T) {
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	cfg := &Config{Rules: []RuleSpec{{
		Name:     "drop-hidden-nodes",
		Priority: 1000,
		Interests: []InterestSpec{{Constraints: []ConstraintSpec{{
			Key:   "node.name",
			Op:    "matches",
			Value: "hidden-*",
		}}}},
		Actions: []ActionSpec{{Type: "stop"}},
	}}}
	require.NoError(t, CompileRules(cfg, dispatcher))

	var reached []string
	later := conductor.NewSimpleEventHook("later", 0, conductor.ExecOnEvent,
		func(_ context.Context, e *conductor.Event) error {
			reached = append(reached, e.Type())
			return nil
		})
	require.NoError(t, dispatcher.RegisterHook(later))

	hidden := conductor.MustNewEvent("node-added", 0,
		conductor.NewPropertiesFromMap(map[string]string{"node.name": "hidden-monitor"}), nil, nil)
	visible := conductor.MustNewEvent("node-added", 0,
		conductor.NewPropertiesFromMap(map[string]string{"node.name": "alsa-output"}), nil, nil)
	require.NoError(t, dispatcher.PushEvent(hidden))
	require.NoError(t, dispatcher.PushEvent(visible))
	drainDispatcher(t, core, dispatcher)

	// The stop rule runs at priority 1000 and cancels the hidden event
	// before lower priority hooks see it.
	assert.Equal(t, []string{"node-added"}, reached)
	assert.True(t, hidden.IsStopped())
	assert.False(t, visible.IsStopped())
}

func TestCompileRule_ExecTypes(t *testing.T) {
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	for spec, want := range map[string]conductor.HookExecType{
		"":                        conductor.ExecOnEvent,
		"on-event":                conductor.ExecOnEvent,
		"after-events-with-event": conductor.ExecAfterEventsWithEvent,
		"after-events":            conductor.ExecAfterEvents,
	} {
		hook, err := CompileRule(&RuleSpec{Name: "r-" + spec, ExecType: spec}, dispatcher)
		require.NoError(t, err)
		assert.Equal(t, want, hook.ExecType())
	}

	_, err := CompileRule(&RuleSpec{Name: "bad", ExecType: "sometimes"}, dispatcher)
	assert.ErrorIs(t, err, ErrRuleUnknownExecType)
}

func TestCompileRule_OperandShapes(t *testing.T) {
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	hook, err := CompileRule(&RuleSpec{
		Name: "shapes",
		Interests: []InterestSpec{{Constraints: []ConstraintSpec{
			{Key: "media.class", Op: "in-list", Value: []any{"Audio/Sink", "Audio/Source"}},
			{Key: "node.id", Op: "in-range", Value: []any{1, 100}},
			{Key: "node.name", Op: "is-present"},
		}}},
	}, dispatcher)
	require.NoError(t, err)
	require.Len(t, hook.Interests(), 1)
	assert.Len(t, hook.Interests()[0].Constraints(), 3)
}

func TestCompileRule_Failures(t *testing.T) {
	dispatcher := conductor.EventDispatcherGetInstance(conductor.NewCore(nil))

	cases := []struct {
		name string
		rule RuleSpec
		want error
	}{
		{"empty name", RuleSpec{}, ErrRuleNameEmpty},
		{"unknown op", RuleSpec{Name: "r", Interests: []InterestSpec{{Constraints: []ConstraintSpec{{Key: "k", Op: "similar-to", Value: "x"}}}}}, ErrRuleUnknownOp},
		{"unknown verb", RuleSpec{Name: "r", Interests: []InterestSpec{{Constraints: []ConstraintSpec{{Verb: "galaxy", Key: "k", Op: "equals", Value: "x"}}}}}, ErrRuleUnknownVerb},
		{"range needs pair", RuleSpec{Name: "r", Interests: []InterestSpec{{Constraints: []ConstraintSpec{{Key: "k", Op: "in-range", Value: "5"}}}}}, ErrRuleBadOperand},
		{"range needs numbers", RuleSpec{Name: "r", Interests: []InterestSpec{{Constraints: []ConstraintSpec{{Key: "k", Op: "in-range", Value: []any{"a", "b"}}}}}}, ErrRuleBadOperand},
		{"unknown action", RuleSpec{Name: "r", Actions: []ActionSpec{{Type: "explode"}}}, ErrRuleUnknownAction},
		{"emit without event", RuleSpec{Name: "r", Actions: []ActionSpec{{Type: "emit"}}}, ErrRuleEmitMissingType},
		{"empty interest", RuleSpec{Name: "r", Interests: []InterestSpec{{}}}, conductor.ErrMalformedConstraint},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CompileRule(&tc.rule, dispatcher)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}
