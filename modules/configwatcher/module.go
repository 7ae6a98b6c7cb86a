// Package configwatcher watches configuration directories and turns file
// changes into dispatcher events, so the daemon can react to edited rule
// files without restarting. Reload policy itself lives in hooks registered
// by whoever cares; this module only produces the events.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/soundgraph/conductor"
)

// ModuleName is the unique identifier for the configwatcher module.
const ModuleName = "configwatcher"

// EventTypeConfigChanged is the type tag of events pushed when a watched
// configuration file changes.
const EventTypeConfigChanged = "config-changed"

// configChangedPriority outranks ordinary graph events so reloads are
// observed promptly.
const configChangedPriority = 500

// Static errors for the configwatcher package
var (
	ErrNoPathsConfigured = errors.New("no paths configured to watch")
	ErrAlreadyStarted    = errors.New("config watcher already started")
)

// Module watches directories for configuration file changes.
type Module struct {
	mu         sync.Mutex
	paths      []string
	extensions map[string]bool
	watcher    *fsnotify.Watcher
	core       *conductor.Core
	dispatcher *conductor.EventDispatcher
	done       chan struct{}
	started    bool
}

// NewModule creates a watcher for the given directories. Only files with
// the extensions .yaml, .yml and .toml produce events.
func NewModule(paths ...string) *Module {
	return &Module{
		paths: paths,
		extensions: map[string]bool{
			".yaml": true,
			".yml":  true,
			".toml": true,
		},
	}
}

// Name implements conductor.Module.
func (m *Module) Name() string { return ModuleName }

// Init implements conductor.Module.
func (m *Module) Init(core *conductor.Core) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.paths) == 0 {
		return ErrNoPathsConfigured
	}
	m.core = core
	m.dispatcher = conductor.EventDispatcherGetInstance(core)
	return nil
}

// Start implements conductor.Startable: it begins watching the configured
// directories on a background goroutine.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, path := range m.paths {
		if err := watcher.Add(path); err != nil {
			_ = watcher.Close()
			return err
		}
	}

	m.watcher = watcher
	m.done = make(chan struct{})
	m.started = true
	go m.watch(watcher, m.done)
	return nil
}

func (m *Module) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !m.extensions[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			m.pushChange(event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.core.Logger().Error("Config watcher error", "error", err)
		}
	}
}

func (m *Module) pushChange(event fsnotify.Event) {
	props := conductor.NewProperties()
	props.Set("config.path", event.Name)
	props.Set("config.op", event.Op.String())

	e, err := conductor.NewEvent(EventTypeConfigChanged, configChangedPriority, props, nil, nil)
	if err != nil {
		m.core.Logger().Error("Config watcher produced invalid event", "error", err)
		return
	}
	if err := m.dispatcher.PushEvent(e); err != nil {
		m.core.Logger().Error("Config watcher failed to push event", "path", event.Name, "error", err)
		return
	}
	m.core.Logger().Debug("Config change pushed", "path", event.Name, "op", event.Op.String())
}

// Stop implements conductor.Stoppable.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	if err := m.watcher.Close(); err != nil {
		return err
	}
	select {
	case <-m.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}
