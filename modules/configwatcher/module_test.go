package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundgraph/conductor"
)

func TestModule_RequiresPaths(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule()
	assert.ErrorIs(t, m.Init(core), ErrNoPathsConfigured)
}

func TestModule_PushesConfigChangedEvents(t *testing.T) {
	dir := t.TempDir()
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	m := NewModule(dir)
	require.NoError(t, m.Init(core))

	seen := make(chan *conductor.Event, 8)
	hook := conductor.NewSimpleEventHook("collect", 0, conductor.ExecOnEvent,
		func(_ context.Context, e *conductor.Event) error {
			select {
			case seen <- e:
			default:
			}
			core.Quit()
			return nil
		})
	hook.AddInterest(conductor.NewConstraint(
		conductor.ConstraintEventProperty, conductor.EventTypeKey,
		conductor.OpEquals, conductor.StringOperand(EventTypeConfigChanged)))
	require.NoError(t, dispatcher.RegisterHook(hook))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, m.Start(ctx))
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	path := filepath.Join(dir, "conductor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  logLevel: debug\n"), 0o644))

	require.NoError(t, core.Run(ctx))

	select {
	case e := <-seen:
		assert.Equal(t, EventTypeConfigChanged, e.Type())
		assert.Equal(t, configChangedPriority, e.Priority())
		got, _ := e.Properties().Get("config.path")
		assert.Equal(t, path, got)
	default:
		t.Fatal("expected a config-changed event")
	}
}

func TestModule_IgnoresUnrelatedExtensions(t *testing.T) {
	dir := t.TempDir()
	core := conductor.NewCore(nil)
	dispatcher := conductor.EventDispatcherGetInstance(core)

	m := NewModule(dir)
	require.NoError(t, m.Init(core))

	var count int
	hook := conductor.NewSimpleEventHook("collect", 0, conductor.ExecOnEvent,
		func(_ context.Context, e *conductor.Event) error {
			if e.Type() == EventTypeConfigChanged {
				count++
			}
			return nil
		})
	require.NoError(t, dispatcher.RegisterHook(hook))

	require.NoError(t, m.Start(context.Background()))
	defer func() { require.NoError(t, m.Stop(context.Background())) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	// Give the watcher a beat, then drain whatever arrived.
	time.Sleep(200 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	core.Defer(core.Quit)
	require.NoError(t, core.Run(ctx))

	assert.Zero(t, count)
}

func TestModule_StopBeforeStartIsSilent(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule(t.TempDir())
	require.NoError(t, m.Init(core))
	assert.NoError(t, m.Stop(context.Background()))
}

func TestModule_StartTwiceFails(t *testing.T) {
	core := conductor.NewCore(nil)
	m := NewModule(t.TempDir())
	require.NoError(t, m.Init(core))
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop(context.Background()) }()
	assert.ErrorIs(t, m.Start(context.Background()), ErrAlreadyStarted)
}
