package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundgraph/conductor"
)

func TestModule_ValidatesSchedules(t *testing.T) {
	core := conductor.NewCore(nil)

	cases := []struct {
		name     string
		schedule Schedule
		want     error
	}{
		{"missing name", Schedule{Spec: "@every 1s", EventType: "t"}, ErrScheduleNameEmpty},
		{"missing spec", Schedule{Name: "s", EventType: "t"}, ErrScheduleEmpty},
		{"missing event type", Schedule{Name: "s", Spec: "@every 1s"}, ErrEventTypeEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewModule(tc.schedule)
			assert.ErrorIs(t, m.Init(core), tc.want)
		})
	}
}

func TestModule_RejectsBadCronExpression(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule(Schedule{Name: "bad", Spec: "not a cron expr", EventType: "t"})
	assert.Error(t, m.Init(core))
}

func TestModule_PushesScheduledEvents(t *testing.T) {
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	m := NewModule(Schedule{
		Name:       "rescan",
		Spec:       "@every 100ms",
		EventType:  "graph-rescan",
		Priority:   5,
		Properties: map[string]string{"origin": "scheduler"},
	})
	require.NoError(t, m.Init(core))

	seen := make(chan *conductor.Event, 4)
	hook := conductor.NewSimpleEventHook("collect", 0, conductor.ExecOnEvent,
		func(_ context.Context, e *conductor.Event) error {
			select {
			case seen <- e:
			default:
			}
			core.Quit()
			return nil
		})
	require.NoError(t, dispatcher.RegisterHook(hook))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	// The cron fire happens on a scheduler goroutine; the hook runs on the
	// core loop the test drives here.
	require.NoError(t, core.Run(ctx))

	select {
	case e := <-seen:
		assert.Equal(t, "graph-rescan", e.Type())
		assert.Equal(t, 5, e.Priority())
		origin, _ := e.Properties().Get("origin")
		assert.Equal(t, "scheduler", origin)
	default:
		t.Fatal("expected a scheduled event")
	}
}

func TestModule_StartTwiceFails(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule()
	require.NoError(t, m.Init(core))
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop(context.Background()) }()
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
}

func TestModule_StopBeforeStartIsSilent(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule()
	require.NoError(t, m.Init(core))
	assert.NoError(t, m.Stop(context.Background()))
}
