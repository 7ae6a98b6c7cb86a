package conductor

import (
	"context"
	"fmt"
	"sync"
)

// DispatchState is the dispatcher's coarse state, exposed for introspection.
type DispatchState int

const (
	// StateIdle means the queue is empty and no activation is in flight.
	StateIdle DispatchState = iota
	// StateRunning means an event's hook list is being walked.
	StateRunning
	// StateSuspended means an asynchronous hook's transition is outstanding.
	StateSuspended
)

// String returns a human-readable state label.
func (s DispatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// dispatchPhase tracks which hook list of the current activation is being
// walked.
type dispatchPhase int

const (
	phaseOnEvent dispatchPhase = iota
	phaseAfterWithEvent
	phaseAfterEvents
)

// activation is the per-event (or per-batch, for the terminal phase)
// execution state: the ordered matching hook list and a cursor into it.
type activation struct {
	event      *Event // nil during phaseAfterEvents
	phase      dispatchPhase
	hooks      []EventHook
	cursor     int
	transition *Transition
}

// EventDispatcher serialises reactions to state changes: producers push
// events, the dispatcher pops them highest-priority first and walks each
// event's matching hooks in priority order, suspending at asynchronous hook
// boundaries and firing terminal hooks at event and batch granularity.
//
// Obtain the per-core instance with EventDispatcherGetInstance. All hook
// execution happens on the core loop goroutine; PushEvent is safe from any
// goroutine.
type EventDispatcher struct {
	core  *Core
	hooks *HookRegistry

	// queueMu guards the pending queue, the sequence counter and the
	// scheduled flag; everything else is touched only on the loop.
	queueMu   sync.Mutex
	queue     *eventQueue
	seq       uint64
	scheduled bool

	running     *activation
	batchActive bool
	batchEvents uint64
	batches     uint64

	// terminals holds the per-event terminal activations of the current
	// batch, one per processed event in processing order. They are flushed
	// when the queue drains, just before the after-events hooks fire.
	terminals []*activation

	// armed collects the names of after-events hooks that matched at least
	// one event of the current batch. armReported keeps a malformed
	// after-events hook to one sink entry per batch.
	armed       map[string]struct{}
	armReported map[string]struct{}

	sinkMu sync.RWMutex
	sink   ErrorSink
}

func newEventDispatcher(core *Core) *EventDispatcher {
	d := &EventDispatcher{
		core:        core,
		hooks:       NewHookRegistry(),
		queue:       newEventQueue(),
		armed:       make(map[string]struct{}),
		armReported: make(map[string]struct{}),
	}
	d.sink = &coreErrorSink{core: core}
	return d
}

// Core returns the host context this dispatcher belongs to.
func (d *EventDispatcher) Core() *Core { return d.core }

// SetErrorSink replaces the dispatcher's error sink. Passing nil restores
// the default sink, which logs and notifies core observers.
func (d *EventDispatcher) SetErrorSink(sink ErrorSink) {
	d.sinkMu.Lock()
	defer d.sinkMu.Unlock()
	if sink == nil {
		sink = &coreErrorSink{core: d.core}
	}
	d.sink = sink
}

func (d *EventDispatcher) reportError(derr DispatchError) {
	d.sinkMu.RLock()
	sink := d.sink
	d.sinkMu.RUnlock()
	sink.ReportDispatchError(context.Background(), derr)
}

// RegisterHook adds a hook to the dispatcher's registry. Registrations
// performed while an event is being dispatched take effect at the next
// event boundary. Fails with ErrDuplicateHook on a name collision; the
// existing hook stays active.
func (d *EventDispatcher) RegisterHook(hook EventHook) error {
	if err := d.hooks.Register(hook); err != nil {
		return err
	}
	d.core.Logger().Debug("Hook registered",
		"hook", hook.Name(), "priority", hook.Priority(), "execType", hook.ExecType().String())
	return nil
}

// RemoveHook removes the hook registered under name. The hook receives no
// further events; an event currently being dispatched finishes its already
// computed hook list. Fails with ErrUnknownHook for unknown names.
func (d *EventDispatcher) RemoveHook(name string) error {
	if err := d.hooks.Remove(name); err != nil {
		return err
	}
	d.core.Logger().Debug("Hook removed", "hook", name)
	return nil
}

// LookupHook returns the hook registered under name, if any.
func (d *EventDispatcher) LookupHook(name string) (EventHook, bool) {
	return d.hooks.Lookup(name)
}

// Hooks returns every registered hook in dispatch order, for introspection.
func (d *EventDispatcher) Hooks() []EventHook {
	return d.hooks.All()
}

// PushEvent enqueues an event for dispatch. It never runs hooks inline: the
// dispatch loop is scheduled on the core loop and picks the event up at the
// next iteration. Safe to call from any goroutine and from within hooks;
// events pushed from a hook are processed after the current event's
// on-event hooks have finished. Per-event terminal hooks are flushed only
// when the queue drains, so the current event's terminal hooks run after
// the pushed event's on-event hooks. Fails only for nil events.
func (d *EventDispatcher) PushEvent(e *Event) error {
	if e == nil {
		return ErrEventNil
	}
	d.queueMu.Lock()
	d.seq++
	e.seq = d.seq
	d.queue.push(e)
	schedule := !d.scheduled
	if schedule {
		d.scheduled = true
	}
	d.queueMu.Unlock()

	d.core.Logger().Debug("Event pushed",
		"eventType", e.Type(), "priority", e.Priority(), "eventID", e.ID())
	if err := d.core.NotifyObservers(context.Background(), NewEventPushedEvent(e)); err != nil {
		d.core.Logger().Debug("Failed to notify event push", "error", err)
	}
	if schedule {
		d.core.InvokeLater(d.process)
	}
	return nil
}

// State returns the dispatcher's coarse state. Meaningful when read from
// the loop goroutine; other readers get a snapshot.
func (d *EventDispatcher) State() DispatchState {
	if d.running == nil {
		return StateIdle
	}
	if d.running.transition != nil {
		return StateSuspended
	}
	return StateRunning
}

// PendingEvents returns the number of queued events.
func (d *EventDispatcher) PendingEvents() int {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.queue.len()
}

// Batches returns the number of completed batches.
func (d *EventDispatcher) Batches() uint64 {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	return d.batches
}

// popNext removes the highest-priority pending event, discarding events
// cancelled before they were popped. A cancelled event produces no error
// sink entry.
func (d *EventDispatcher) popNext() *Event {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	for {
		e := d.queue.pop()
		if e == nil {
			return nil
		}
		if e.IsStopped() {
			d.core.Logger().Debug("Discarding cancelled event", "eventType", e.Type(), "eventID", e.ID())
			continue
		}
		return e
	}
}

// process is the dispatch loop driver. It always runs on the core loop
// goroutine and returns whenever the dispatcher suspends on an async hook
// or the queue drains.
func (d *EventDispatcher) process() {
	d.queueMu.Lock()
	d.scheduled = false
	d.queueMu.Unlock()

	// Suspended on an async hook; the transition's completion reschedules.
	if d.running != nil && d.running.transition != nil {
		return
	}

	for {
		if d.running == nil {
			if !d.beginNextActivation() {
				return
			}
		}
		if !d.runActivation() {
			return // suspended
		}
	}
}

// beginNextActivation pops the next event and builds its activation. When
// the queue has drained it flushes the deferred per-event terminals in
// processing order, then builds the batch-terminal activation. Returns
// false when there is nothing left to do.
func (d *EventDispatcher) beginNextActivation() bool {
	event := d.popNext()
	if event == nil {
		if len(d.terminals) > 0 {
			d.running = d.terminals[0]
			d.terminals = d.terminals[1:]
			return true
		}
		if !d.batchActive {
			return false
		}
		d.running = &activation{
			phase: phaseAfterEvents,
			hooks: d.afterEventsHooks(),
		}
		return true
	}

	d.batchActive = true
	d.batchEvents++
	d.armAfterEvents(event)
	d.running = &activation{
		event: event,
		phase: phaseOnEvent,
		hooks: d.selectHooks(event, ExecOnEvent),
	}
	d.core.Logger().Debug("Dispatching event",
		"eventType", event.Type(), "priority", event.Priority(),
		"matchingHooks", len(d.running.hooks))
	return true
}

// runActivation walks the current activation's hook list from the cursor.
// Returns false when the dispatcher suspended on an async hook.
func (d *EventDispatcher) runActivation() bool {
	a := d.running
	for a.cursor < len(a.hooks) {
		// Cancellation is observed at hook boundaries only; an in-flight
		// hook is never interrupted.
		if a.event != nil && a.event.IsStopped() {
			break
		}
		hook := a.hooks[a.cursor]
		switch h := hook.(type) {
		case *SimpleEventHook:
			d.runSimpleHook(h, a.event)
			a.cursor++
		case *AsyncEventHook:
			t := newTransition(h, a.event, func(err error) {
				d.core.InvokeLater(func() { d.completeTransition(err) })
			})
			a.transition = t
			t.start()
			return false
		default:
			// Unknown hook implementations are declaration-only; skip.
			d.core.Logger().Warn("Skipping hook with unknown behaviour", "hook", hook.Name())
			a.cursor++
		}
	}
	d.finishPhase()
	return true
}

func (d *EventDispatcher) runSimpleHook(h *SimpleEventHook, event *Event) {
	eventType := ""
	if event != nil {
		eventType = event.Type()
	}
	defer func() {
		if r := recover(); r != nil {
			d.reportError(DispatchError{
				HookName:  h.Name(),
				EventType: eventType,
				Kind:      ErrHookFailed,
				Err:       fmt.Errorf("%w: panic: %v", ErrHookFailed, r),
			})
		}
	}()
	if err := h.run(context.Background(), event); err != nil {
		d.reportError(DispatchError{
			HookName:  h.Name(),
			EventType: eventType,
			Kind:      ErrHookFailed,
			Err:       err,
		})
	}
}

// completeTransition resumes the dispatch loop after an async hook's
// transition reached a terminal step. Runs on the core loop goroutine.
func (d *EventDispatcher) completeTransition(err error) {
	a := d.running
	if a == nil || a.transition == nil {
		return
	}
	if err != nil {
		eventType := ""
		if a.event != nil {
			eventType = a.event.Type()
		}
		// A failed hook counts as having run; the cursor advances and the
		// batch continues.
		d.reportError(DispatchError{
			HookName:  a.transition.hook.Name(),
			EventType: eventType,
			Kind:      ErrHookFailed,
			Err:       err,
		})
	}
	a.transition = nil
	a.cursor++
	d.process()
}

// finishPhase releases the completed activation. A finished on-event phase
// queues the event's terminal hooks for the drain-time flush; a cancelled
// event forfeits them.
func (d *EventDispatcher) finishPhase() {
	a := d.running
	switch a.phase {
	case phaseOnEvent:
		if a.event.IsStopped() {
			d.core.Logger().Debug("Event cancelled during dispatch",
				"eventType", a.event.Type(), "eventID", a.event.ID())
			d.running = nil
			return
		}
		if hooks := d.selectHooks(a.event, ExecAfterEventsWithEvent); len(hooks) > 0 {
			d.terminals = append(d.terminals, &activation{
				event: a.event,
				phase: phaseAfterWithEvent,
				hooks: hooks,
			})
		}
		d.running = nil
	case phaseAfterWithEvent:
		d.running = nil
	case phaseAfterEvents:
		d.running = nil
		d.finishBatch()
	}
}

func (d *EventDispatcher) finishBatch() {
	d.queueMu.Lock()
	d.batches++
	batch := d.batches
	events := d.batchEvents
	d.queueMu.Unlock()
	d.batchActive = false
	d.batchEvents = 0
	d.terminals = nil
	d.armed = make(map[string]struct{})
	d.armReported = make(map[string]struct{})

	d.core.Logger().Debug("Batch completed", "batch", batch, "events", events)
	if err := d.core.NotifyObservers(context.Background(), NewBatchCompletedEvent(batch, events)); err != nil {
		d.core.Logger().Debug("Failed to notify batch completion", "error", err)
	}
}

// selectHooks wraps the registry selection with error-sink reporting for
// malformed interests.
func (d *EventDispatcher) selectHooks(event *Event, execType HookExecType) []EventHook {
	return d.hooks.selectHooks(event, execType, d.core.SubjectAccessors(), func(hook EventHook, err error) {
		d.reportError(DispatchError{
			HookName:  hook.Name(),
			EventType: event.Type(),
			Kind:      ErrMalformedConstraint,
			Err:       err,
		})
	})
}

// armAfterEvents records which batch-terminal hooks matched this event.
// They fire once when the queue drains, even if they matched several
// events; likewise a malformed one is reported once per batch, not once
// per event.
func (d *EventDispatcher) armAfterEvents(event *Event) {
	hooks := d.hooks.selectHooks(event, ExecAfterEvents, d.core.SubjectAccessors(), func(hook EventHook, err error) {
		if _, seen := d.armReported[hook.Name()]; seen {
			return
		}
		d.armReported[hook.Name()] = struct{}{}
		d.reportError(DispatchError{
			HookName:  hook.Name(),
			EventType: event.Type(),
			Kind:      ErrMalformedConstraint,
			Err:       err,
		})
	})
	for _, hook := range hooks {
		d.armed[hook.Name()] = struct{}{}
	}
}

// afterEventsHooks resolves the armed batch-terminal hooks against the
// registry, dropping any removed in the meantime, in dispatch order.
func (d *EventDispatcher) afterEventsHooks() []EventHook {
	hooks := make([]EventHook, 0, len(d.armed))
	for name := range d.armed {
		if hook, ok := d.hooks.Lookup(name); ok {
			hooks = append(hooks, hook)
		}
	}
	sortHooks(hooks)
	return hooks
}
