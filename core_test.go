package conductor

import (
	"context"
	"errors"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

func TestCore_InvokeLaterRunsOnLoop(t *testing.T) {
	core := NewCore(nil)
	var order []string
	core.InvokeLater(func() { order = append(order, "first") })
	core.InvokeLater(func() { order = append(order, "second") })
	core.InvokeLater(core.Quit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := core.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected FIFO callback order, got %v", order)
	}
}

func TestCore_DeferRunsAfterPending(t *testing.T) {
	core := NewCore(nil)
	var order []string
	core.Defer(func() { order = append(order, "deferred") })
	core.InvokeLater(func() { order = append(order, "pending") })
	core.InvokeLater(func() {
		// Scheduled from inside the loop; still beats the deferred one.
		core.InvokeLater(func() { order = append(order, "nested") })
	})
	core.Defer(core.Quit)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := core.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	want := []string{"pending", "nested", "deferred"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestCore_RunTwiceSequentially(t *testing.T) {
	core := NewCore(nil)
	ran := 0
	core.InvokeLater(func() { ran++; core.Quit() })
	ctx := context.Background()
	if err := core.Run(ctx); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	core.InvokeLater(func() { ran++; core.Quit() })
	if err := core.Run(ctx); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if ran != 2 {
		t.Fatalf("expected both callbacks to run, got %d", ran)
	}
}

func TestCore_RunHonoursContextCancellation(t *testing.T) {
	core := NewCore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if err := core.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

type lifecycleModule struct {
	name    string
	inits   *[]string
	starts  *[]string
	stops   *[]string
	initErr error
}

func (m *lifecycleModule) Name() string { return m.name }

func (m *lifecycleModule) Init(core *Core) error {
	*m.inits = append(*m.inits, m.name)
	return m.initErr
}

func (m *lifecycleModule) Start(ctx context.Context) error {
	*m.starts = append(*m.starts, m.name)
	return nil
}

func (m *lifecycleModule) Stop(ctx context.Context) error {
	*m.stops = append(*m.stops, m.name)
	return nil
}

func TestCore_ModuleLifecycleOrder(t *testing.T) {
	core := NewCore(nil)
	var inits, starts, stops []string
	for _, name := range []string{"one", "two", "three"} {
		m := &lifecycleModule{name: name, inits: &inits, starts: &starts, stops: &stops}
		if err := core.RegisterModule(m); err != nil {
			t.Fatalf("register %s failed: %v", name, err)
		}
	}

	if err := core.InitModules(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	ctx := context.Background()
	if err := core.StartModules(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := core.StopModules(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if inits[0] != "one" || inits[2] != "three" {
		t.Fatalf("expected registration-order init, got %v", inits)
	}
	if starts[0] != "one" || starts[2] != "three" {
		t.Fatalf("expected registration-order start, got %v", starts)
	}
	if stops[0] != "three" || stops[2] != "one" {
		t.Fatalf("expected reverse-order stop, got %v", stops)
	}
}

func TestCore_DuplicateModuleRejected(t *testing.T) {
	core := NewCore(nil)
	var inits, starts, stops []string
	m := &lifecycleModule{name: "dup", inits: &inits, starts: &starts, stops: &stops}
	if err := core.RegisterModule(m); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := core.RegisterModule(m); !errors.Is(err, ErrDuplicateModule) {
		t.Fatalf("expected ErrDuplicateModule, got %v", err)
	}
}

func TestCore_InitFailureAborts(t *testing.T) {
	core := NewCore(nil)
	var inits, starts, stops []string
	boom := errors.New("boom")
	_ = core.RegisterModule(&lifecycleModule{name: "ok", inits: &inits, starts: &starts, stops: &stops})
	_ = core.RegisterModule(&lifecycleModule{name: "bad", inits: &inits, starts: &starts, stops: &stops, initErr: boom})
	_ = core.RegisterModule(&lifecycleModule{name: "never", inits: &inits, starts: &starts, stops: &stops})

	if err := core.InitModules(); !errors.Is(err, boom) {
		t.Fatalf("expected init failure, got %v", err)
	}
	if len(inits) != 2 {
		t.Fatalf("expected init to stop at the failing module, got %v", inits)
	}
}

func TestCore_ObserversFilterByType(t *testing.T) {
	core := NewCore(nil)
	var all, filtered []string

	_ = core.RegisterObserver(NewFunctionalObserver("all", func(_ context.Context, e cloudevents.Event) error {
		all = append(all, e.Type())
		return nil
	}))
	_ = core.RegisterObserver(NewFunctionalObserver("filtered", func(_ context.Context, e cloudevents.Event) error {
		filtered = append(filtered, e.Type())
		return nil
	}), EventTypeBatchCompleted)

	ctx := context.Background()
	if err := core.NotifyObservers(ctx, NewBatchCompletedEvent(1, 2)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if err := core.NotifyObservers(ctx, NewNotification(EventTypeEventPushed, nil)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if len(all) != 2 {
		t.Fatalf("expected unfiltered observer to see both, got %v", all)
	}
	if len(filtered) != 1 || filtered[0] != EventTypeBatchCompleted {
		t.Fatalf("expected filtered observer to see one, got %v", filtered)
	}
}

func TestCore_UnregisterObserverIdempotent(t *testing.T) {
	core := NewCore(nil)
	obs := NewFunctionalObserver("once", func(context.Context, cloudevents.Event) error { return nil })
	_ = core.RegisterObserver(obs)
	if err := core.UnregisterObserver(obs); err != nil {
		t.Fatalf("unregister failed: %v", err)
	}
	if err := core.UnregisterObserver(obs); err != nil {
		t.Fatalf("second unregister should be silent: %v", err)
	}
	if len(core.GetObservers()) != 0 {
		t.Fatalf("expected no observers left")
	}
}

func TestCore_DispatchEmitsNotifications(t *testing.T) {
	core := NewCore(nil)
	dispatcher := EventDispatcherGetInstance(core)

	var seen []string
	_ = core.RegisterObserver(NewFunctionalObserver("trace", func(_ context.Context, e cloudevents.Event) error {
		seen = append(seen, e.Type())
		return nil
	}), EventTypeEventPushed, EventTypeBatchCompleted)

	quit := NewSimpleEventHook("zz-quit", 0, ExecAfterEvents, func(context.Context, *Event) error {
		core.Quit()
		return nil
	})
	if err := dispatcher.RegisterHook(quit); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := dispatcher.PushEvent(MustNewEvent("t", 0, nil, nil, nil)); err != nil {
		t.Fatalf("push failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := core.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(seen) != 2 || seen[0] != EventTypeEventPushed || seen[1] != EventTypeBatchCompleted {
		t.Fatalf("expected pushed+batch notifications, got %v", seen)
	}
}

func TestCore_DefaultErrorSinkNotifiesObservers(t *testing.T) {
	core := NewCore(nil)
	dispatcher := EventDispatcherGetInstance(core)

	var payloads []DispatchErrorPayload
	_ = core.RegisterObserver(NewFunctionalObserver("errors", func(_ context.Context, e cloudevents.Event) error {
		var p DispatchErrorPayload
		if err := e.DataAs(&p); err != nil {
			return err
		}
		payloads = append(payloads, p)
		return nil
	}), EventTypeHookFailed)

	broken := NewSimpleEventHook("aa-broken", 0, ExecOnEvent, func(context.Context, *Event) error {
		return errors.New("port missing")
	})
	_ = dispatcher.RegisterHook(broken)
	quit := NewSimpleEventHook("zz-quit", 0, ExecAfterEvents, func(context.Context, *Event) error {
		core.Quit()
		return nil
	})
	_ = dispatcher.RegisterHook(quit)
	_ = dispatcher.PushEvent(MustNewEvent("node-added", 0, nil, nil, nil))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := core.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(payloads) != 1 {
		t.Fatalf("expected one hook-failed notification, got %d", len(payloads))
	}
	if payloads[0].HookName != "aa-broken" || payloads[0].EventType != "node-added" {
		t.Fatalf("unexpected payload: %+v", payloads[0])
	}
	if payloads[0].Kind != "hook-failed" {
		t.Fatalf("expected hook-failed kind, got %q", payloads[0].Kind)
	}
}
