package conductor

import (
	"context"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// observerRegistration holds information about a registered observer.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// Core is the host context of the daemon: it owns the single-threaded
// cooperative loop the dispatcher runs on, the subject accessor registry,
// the registered modules, and the notification observers.
//
// All dispatch work happens on the goroutine that calls Run. Other
// goroutines interact with the loop through InvokeLater and Defer, which
// are safe to call from anywhere.
type Core struct {
	logger    Logger
	accessors *SubjectAccessors

	// loop state
	loopMu   sync.Mutex
	pending  []func()
	deferred []func()
	wake     chan struct{}
	quit     chan struct{}
	running  bool

	// modules
	moduleMu sync.Mutex
	modules  []Module
	started  bool

	// notification observers
	observerMu sync.RWMutex
	observers  map[string]*observerRegistration

	// per-core singletons
	dispatcherOnce sync.Once
	dispatcher     *EventDispatcher
}

// NewCore creates a host context. logger may be nil, in which case all core
// logging is discarded.
func NewCore(logger Logger) *Core {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Core{
		logger:    logger,
		accessors: NewSubjectAccessors(),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}, 1),
		observers: make(map[string]*observerRegistration),
	}
}

// Logger returns the core's logger.
func (c *Core) Logger() Logger { return c.logger }

// SubjectAccessors returns the per-core subject accessor registry consulted
// during interest evaluation.
func (c *Core) SubjectAccessors() *SubjectAccessors { return c.accessors }

// InvokeLater arranges for fn to run once on the loop goroutine, after any
// callbacks already scheduled. Safe to call from any goroutine; this is the
// thread-safe enqueue shim for external producers.
func (c *Core) InvokeLater(fn func()) {
	if fn == nil {
		return
	}
	c.loopMu.Lock()
	c.pending = append(c.pending, fn)
	c.loopMu.Unlock()
	c.signalWake()
}

// Defer arranges for fn to run on the loop goroutine at the lowest
// priority, after every pending InvokeLater callback. Safe to call from any
// goroutine.
func (c *Core) Defer(fn func()) {
	if fn == nil {
		return
	}
	c.loopMu.Lock()
	c.deferred = append(c.deferred, fn)
	c.loopMu.Unlock()
	c.signalWake()
}

func (c *Core) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// next pops the next callback to run: pending callbacks first, deferred
// ones only when nothing else is waiting.
func (c *Core) next() func() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	if len(c.pending) > 0 {
		fn := c.pending[0]
		c.pending = c.pending[1:]
		return fn
	}
	if len(c.deferred) > 0 {
		fn := c.deferred[0]
		c.deferred = c.deferred[1:]
		return fn
	}
	return nil
}

// Run executes the loop on the calling goroutine until Quit is called or
// ctx is cancelled. Run may be called again after it returns; scheduled
// callbacks survive across calls.
func (c *Core) Run(ctx context.Context) error {
	c.loopMu.Lock()
	if c.running {
		c.loopMu.Unlock()
		return ErrCoreAlreadyRunning
	}
	c.running = true
	c.loopMu.Unlock()
	defer func() {
		c.loopMu.Lock()
		c.running = false
		c.loopMu.Unlock()
	}()

	for {
		select {
		case <-c.quit:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		fn := c.next()
		if fn == nil {
			select {
			case <-c.quit:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-c.wake:
			}
			continue
		}
		fn()
	}
}

// Quit makes Run return after the currently executing callback, leaving the
// remaining queue intact. Safe to call from any goroutine, including from a
// hook running on the loop.
func (c *Core) Quit() {
	select {
	case c.quit <- struct{}{}:
	default:
	}
	c.signalWake()
}

// RegisterModule adds a module to the core. Modules are initialized and
// started by InitModules/StartModules in registration order.
func (c *Core) RegisterModule(module Module) error {
	if module == nil {
		return ErrModuleNil
	}
	if module.Name() == "" {
		return ErrModuleNameEmpty
	}
	c.moduleMu.Lock()
	defer c.moduleMu.Unlock()
	for _, m := range c.modules {
		if m.Name() == module.Name() {
			return ErrDuplicateModule
		}
	}
	c.modules = append(c.modules, module)
	c.logger.Debug("Module registered", "module", module.Name())
	return nil
}

// InitModules initializes every registered module in registration order.
// The first failure aborts initialization and is returned.
func (c *Core) InitModules() error {
	c.moduleMu.Lock()
	modules := make([]Module, len(c.modules))
	copy(modules, c.modules)
	c.moduleMu.Unlock()

	ctx := context.Background()
	for _, module := range modules {
		if err := module.Init(c); err != nil {
			c.notifyModuleLifecycle(ctx, module.Name(), "failed", err)
			return err
		}
		c.logger.Info("Module initialized", "module", module.Name())
		c.notifyModuleLifecycle(ctx, module.Name(), "initialized", nil)
	}
	return nil
}

// StartModules starts every module implementing Startable, in registration
// order.
func (c *Core) StartModules(ctx context.Context) error {
	c.moduleMu.Lock()
	if c.started {
		c.moduleMu.Unlock()
		return ErrModulesAlreadyStarted
	}
	c.started = true
	modules := make([]Module, len(c.modules))
	copy(modules, c.modules)
	c.moduleMu.Unlock()

	for _, module := range modules {
		startable, ok := module.(Startable)
		if !ok {
			continue
		}
		if err := startable.Start(ctx); err != nil {
			c.notifyModuleLifecycle(ctx, module.Name(), "failed", err)
			return err
		}
		c.logger.Info("Module started", "module", module.Name())
		c.notifyModuleLifecycle(ctx, module.Name(), "started", nil)
	}
	return nil
}

// StopModules stops every module implementing Stoppable, in reverse
// registration order. All modules are stopped even if one fails; the first
// error is returned.
func (c *Core) StopModules(ctx context.Context) error {
	c.moduleMu.Lock()
	modules := make([]Module, len(c.modules))
	copy(modules, c.modules)
	c.started = false
	c.moduleMu.Unlock()

	var firstErr error
	for i := len(modules) - 1; i >= 0; i-- {
		stoppable, ok := modules[i].(Stoppable)
		if !ok {
			continue
		}
		if err := stoppable.Stop(ctx); err != nil {
			c.logger.Error("Module stop failed", "module", modules[i].Name(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		c.logger.Info("Module stopped", "module", modules[i].Name())
		c.notifyModuleLifecycle(ctx, modules[i].Name(), "stopped", nil)
	}
	return firstErr
}

func (c *Core) notifyModuleLifecycle(ctx context.Context, module, action string, failure error) {
	if err := c.NotifyObservers(ctx, NewModuleLifecycleEvent(module, action, failure)); err != nil {
		c.logger.Debug("Failed to notify module lifecycle", "module", module, "error", err)
	}
}

// RegisterObserver adds an observer for core notifications. Observers can
// optionally filter by notification type; an empty list receives everything.
func (c *Core) RegisterObserver(observer Observer, eventTypes ...string) error {
	if observer == nil {
		return ErrObserverNil
	}
	c.observerMu.Lock()
	defer c.observerMu.Unlock()

	eventTypeMap := make(map[string]bool)
	for _, eventType := range eventTypes {
		eventTypeMap[eventType] = true
	}
	c.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   eventTypeMap,
		registeredAt: time.Now(),
	}
	c.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Idempotent; unknown observers are
// ignored.
func (c *Core) UnregisterObserver(observer Observer) error {
	if observer == nil {
		return ErrObserverNil
	}
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	delete(c.observers, observer.ObserverID())
	return nil
}

// NotifyObservers delivers a CloudEvent to every interested observer,
// synchronously and in no guaranteed order. Observer errors and panics are
// logged and do not affect other observers.
func (c *Core) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateNotification(event); err != nil {
		c.logger.Error("Invalid notification", "eventType", event.Type(), "error", err)
		return err
	}

	c.observerMu.RLock()
	registrations := make([]*observerRegistration, 0, len(c.observers))
	for _, registration := range c.observers {
		registrations = append(registrations, registration)
	}
	c.observerMu.RUnlock()

	for _, registration := range registrations {
		if len(registration.eventTypes) > 0 && !registration.eventTypes[event.Type()] {
			continue
		}
		c.deliver(ctx, registration, event)
	}
	return nil
}

func (c *Core) deliver(ctx context.Context, registration *observerRegistration, event cloudevents.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked", "observerID", registration.observer.ObserverID(), "event", event.Type(), "panic", r)
		}
	}()
	if err := registration.observer.OnEvent(ctx, event); err != nil {
		c.logger.Error("Observer error", "observerID", registration.observer.ObserverID(), "event", event.Type(), "error", err)
	}
}

// GetObservers returns information about currently registered observers.
func (c *Core) GetObservers() []ObserverInfo {
	c.observerMu.RLock()
	defer c.observerMu.RUnlock()

	info := make([]ObserverInfo, 0, len(c.observers))
	for _, registration := range c.observers {
		eventTypes := make([]string, 0, len(registration.eventTypes))
		for eventType := range registration.eventTypes {
			eventTypes = append(eventTypes, eventType)
		}
		info = append(info, ObserverInfo{
			ID:           registration.observer.ObserverID(),
			EventTypes:   eventTypes,
			RegisteredAt: registration.registeredAt,
		})
	}
	return info
}

// EventDispatcherGetInstance returns the core's event dispatcher, creating
// it on first use. There is exactly one dispatcher per core; its lifecycle
// is tied to the core rather than to any process-global state.
func EventDispatcherGetInstance(core *Core) *EventDispatcher {
	core.dispatcherOnce.Do(func() {
		core.dispatcher = newEventDispatcher(core)
	})
	return core.dispatcher
}
