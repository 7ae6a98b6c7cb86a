package conductor

import (
	"fmt"
)

// Transition step sentinels. Custom steps of an asynchronous hook start at
// StepCustomStart; StepNone and StepError are terminal.
const (
	StepError       = -1
	StepNone        = 0
	StepCustomStart = 100
)

// Transition is the per-activation state of an asynchronous hook: the
// current step, a slot for a captured error, and the triggering event. It
// is created when the dispatcher reaches the hook and destroyed when the
// transition terminates.
//
// Advance and Fail must run on the core loop goroutine. External callbacks
// resume a suspended transition through Core.InvokeLater:
//
//	core.InvokeLater(func() { transition.Advance() })
type Transition struct {
	hook      *AsyncEventHook
	event     *Event
	step      int
	err       error
	completed bool
	onDone    func(err error)
}

func newTransition(hook *AsyncEventHook, event *Event, onDone func(err error)) *Transition {
	return &Transition{hook: hook, event: event, step: StepNone, onDone: onDone}
}

// Hook returns the asynchronous hook this transition belongs to.
func (t *Transition) Hook() *AsyncEventHook { return t.hook }

// Event returns the event that triggered the hook. It is nil when the hook
// runs in the after-events phase.
func (t *Transition) Event() *Event { return t.event }

// Step returns the current step id.
func (t *Transition) Step() int { return t.step }

// Err returns the captured error after a failed transition.
func (t *Transition) Err() error { return t.err }

// Completed reports whether the transition has reached a terminal step.
func (t *Transition) Completed() bool { return t.completed }

// start kicks the state machine from StepNone.
func (t *Transition) start() {
	t.Advance()
}

// Advance moves the state machine to its next step. If the step function
// returns StepNone the transition completes successfully; StepError
// completes it as failed; any other step is executed via the hook's exec
// function, which in turn either advances synchronously or arranges a later
// callback. Advancing a completed transition is a no-op.
func (t *Transition) Advance() {
	if t.completed {
		return
	}
	next := StepNone
	if t.hook.nextStep != nil {
		next = t.hook.nextStep(t, t.step)
	}
	switch next {
	case StepNone:
		t.complete(nil)
	case StepError:
		if t.err == nil {
			t.err = fmt.Errorf("%w: step %d", ErrHookFailed, t.step)
		}
		t.complete(t.err)
	default:
		t.step = next
		if t.hook.execStep == nil {
			t.complete(nil)
			return
		}
		t.hook.execStep(t, next)
	}
}

// Fail terminates the transition with err. The dispatcher reports the
// failure to its error sink and continues the batch; the event is not
// cancelled. Failing a completed transition is a no-op.
func (t *Transition) Fail(err error) {
	if t.completed {
		return
	}
	if err == nil {
		err = ErrHookFailed
	}
	t.err = err
	t.step = StepError
	t.complete(err)
}

func (t *Transition) complete(err error) {
	if t.completed {
		return
	}
	t.completed = true
	if t.onDone != nil {
		t.onDone(err)
	}
}
