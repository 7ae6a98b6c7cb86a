// Package scheduler provides a cron-driven event source for the conductor
// daemon. The media graph is not fully event-driven: some state (device
// availability, idle detection) is only discovered by periodic rescans, so
// this module pushes maintenance events into the dispatcher on cron
// schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/soundgraph/conductor"
)

// ModuleName is the unique identifier for the scheduler module.
const ModuleName = "scheduler"

// Static errors for the scheduler package
var (
	ErrScheduleNameEmpty = errors.New("schedule name must not be empty")
	ErrScheduleEmpty     = errors.New("schedule expression must not be empty")
	ErrEventTypeEmpty    = errors.New("schedule event type must not be empty")
	ErrAlreadyStarted    = errors.New("scheduler already started")
)

// Schedule describes one periodic event.
type Schedule struct {
	// Name identifies the schedule in logs.
	Name string `json:"name" yaml:"name"`

	// Spec is a cron expression, including the "@every 30s" shorthand.
	Spec string `json:"spec" yaml:"spec"`

	// EventType is the type tag of the pushed event.
	EventType string `json:"eventType" yaml:"eventType"`

	// Priority is the priority of the pushed event.
	Priority int `json:"priority" yaml:"priority"`

	// Properties seed the pushed event's property bag.
	Properties map[string]string `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Module pushes events into the dispatcher on cron schedules.
type Module struct {
	mu         sync.Mutex
	schedules  []Schedule
	cron       *cron.Cron
	entries    map[string]cron.EntryID
	core       *conductor.Core
	dispatcher *conductor.EventDispatcher
	started    bool
}

// NewModule creates a scheduler module with the given schedules.
func NewModule(schedules ...Schedule) *Module {
	return &Module{
		schedules: schedules,
		entries:   make(map[string]cron.EntryID),
	}
}

// Name implements conductor.Module.
func (m *Module) Name() string { return ModuleName }

// Init implements conductor.Module. It validates the schedules and
// registers them with the cron runner; nothing fires until Start.
func (m *Module) Init(core *conductor.Core) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.core = core
	m.dispatcher = conductor.EventDispatcherGetInstance(core)
	m.cron = cron.New()

	for _, schedule := range m.schedules {
		if err := m.addLocked(schedule); err != nil {
			return err
		}
	}
	return nil
}

// AddSchedule registers an additional schedule. Safe before or after Start.
func (m *Module) AddSchedule(schedule Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(schedule)
}

func (m *Module) addLocked(schedule Schedule) error {
	if schedule.Name == "" {
		return ErrScheduleNameEmpty
	}
	if schedule.Spec == "" {
		return fmt.Errorf("%w: %s", ErrScheduleEmpty, schedule.Name)
	}
	if schedule.EventType == "" {
		return fmt.Errorf("%w: %s", ErrEventTypeEmpty, schedule.Name)
	}

	entryID, err := m.cron.AddFunc(schedule.Spec, func() {
		m.fire(schedule)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", schedule.Name, err)
	}
	m.entries[schedule.Name] = entryID
	return nil
}

// fire runs on a cron goroutine; PushEvent is the thread-safe enqueue shim.
func (m *Module) fire(schedule Schedule) {
	var bag *conductor.Properties
	if schedule.Properties != nil {
		bag = conductor.NewPropertiesFromMap(schedule.Properties)
	}
	e, err := conductor.NewEvent(schedule.EventType, schedule.Priority, bag, nil, nil)
	if err != nil {
		m.core.Logger().Error("Scheduler produced invalid event", "schedule", schedule.Name, "error", err)
		return
	}
	if err := m.dispatcher.PushEvent(e); err != nil {
		m.core.Logger().Error("Scheduler failed to push event", "schedule", schedule.Name, "error", err)
		return
	}
	m.core.Logger().Debug("Scheduled event pushed", "schedule", schedule.Name, "eventType", schedule.EventType)
}

// Start implements conductor.Startable.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}
	m.started = true
	m.cron.Start()
	return nil
}

// Stop implements conductor.Stoppable. It waits for any in-flight cron
// callback to return.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
