// Package conductor implements the session-management core for a user-space
// audio/video server: a priority-ordered, interest-matched event dispatcher
// plus the host context it runs on.
//
// Producers construct an Event and push it into the EventDispatcher obtained
// from a Core. The dispatcher picks the highest-priority pending event,
// computes the ordered list of matching hooks, runs them one at a time
// (suspending at asynchronous hook boundaries without blocking the loop),
// and — once the queue drains — fires the per-event terminal hooks of the
// processed events, then the batch-terminal hooks.
//
// Basic usage:
//
//	core := conductor.NewCore(logger)
//	dispatcher := conductor.EventDispatcherGetInstance(core)
//
//	hook := conductor.NewSimpleEventHook("log-nodes", 10, conductor.ExecOnEvent, onNode)
//	hook.AddInterest(conductor.NewConstraint(
//		conductor.ConstraintEventProperty, conductor.EventTypeKey,
//		conductor.OpEquals, conductor.StringOperand("node-added")))
//	if err := dispatcher.RegisterHook(hook); err != nil {
//		log.Fatal(err)
//	}
//
//	dispatcher.PushEvent(conductor.MustNewEvent("node-added", 10, nil, node, nil))
//	core.Run(ctx)
package conductor

import "context"

// Module represents a registrable component of the daemon, such as an event
// source or an introspection surface. Modules are initialized in
// registration order.
type Module interface {
	// Name returns the unique identifier for this module.
	Name() string

	// Init initializes the module with the core. This is where modules
	// register hooks, subject accessors, and factories.
	Init(core *Core) error
}

// Startable is an optional interface for modules with startup logic that
// runs after every module has been initialized, e.g. starting a file
// watcher or an HTTP listener.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is an optional interface for modules with shutdown logic.
// Stop is called in reverse registration order.
type Stoppable interface {
	Stop(ctx context.Context) error
}
