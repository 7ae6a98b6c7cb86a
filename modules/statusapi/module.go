// Package statusapi exposes a small HTTP introspection surface for the
// conductor daemon: registered hooks, dispatcher state and observer
// registrations. It is read-only and intended for local debugging, the way
// a session manager exposes its graph state to inspection tools.
package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/soundgraph/conductor"
)

// ModuleName is the unique identifier for the statusapi module.
const ModuleName = "statusapi"

// Static errors for the statusapi package
var (
	ErrAddrEmpty      = errors.New("status api listen address must not be empty")
	ErrAlreadyStarted = errors.New("status api already started")
)

// HookInfo is the JSON projection of a registered hook.
type HookInfo struct {
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	ExecType  string `json:"execType"`
	Interests int    `json:"interests"`
}

// StatusInfo is the JSON projection of the dispatcher state.
type StatusInfo struct {
	State         string `json:"state"`
	PendingEvents int    `json:"pendingEvents"`
	Batches       uint64 `json:"batches"`
	Hooks         int    `json:"hooks"`
}

// Module serves the introspection API.
type Module struct {
	mu         sync.Mutex
	addr       string
	core       *conductor.Core
	dispatcher *conductor.EventDispatcher
	server     *http.Server
	listener   net.Listener
	started    bool
}

// NewModule creates a status API module listening on addr,
// e.g. "127.0.0.1:9763".
func NewModule(addr string) *Module {
	return &Module{addr: addr}
}

// Name implements conductor.Module.
func (m *Module) Name() string { return ModuleName }

// Init implements conductor.Module.
func (m *Module) Init(core *conductor.Core) error {
	if m.addr == "" {
		return ErrAddrEmpty
	}
	m.core = core
	m.dispatcher = conductor.EventDispatcherGetInstance(core)
	return nil
}

// Router builds the chi router serving the API. Exposed for tests and for
// embedding under a larger mux.
func (m *Module) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/status", m.handleStatus)
	r.Get("/hooks", m.handleHooks)
	r.Get("/observers", m.handleObservers)
	return r
}

func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, StatusInfo{
		State:         m.dispatcher.State().String(),
		PendingEvents: m.dispatcher.PendingEvents(),
		Batches:       m.dispatcher.Batches(),
		Hooks:         len(m.dispatcher.Hooks()),
	})
}

func (m *Module) handleHooks(w http.ResponseWriter, r *http.Request) {
	hooks := m.dispatcher.Hooks()
	infos := make([]HookInfo, 0, len(hooks))
	for _, hook := range hooks {
		infos = append(infos, HookInfo{
			Name:      hook.Name(),
			Priority:  hook.Priority(),
			ExecType:  hook.ExecType().String(),
			Interests: len(hook.Interests()),
		})
	}
	writeJSON(w, infos)
}

func (m *Module) handleObservers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, m.core.GetObservers())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Start implements conductor.Startable: it binds the listen address and
// serves the API on a background goroutine.
func (m *Module) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return ErrAlreadyStarted
	}

	listener, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.started = true

	go func() {
		if err := m.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.core.Logger().Error("Status API server failed", "error", err)
		}
	}()
	m.core.Logger().Info("Status API listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound listen address, useful when the configured port
// was 0.
func (m *Module) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Stop implements conductor.Stoppable.
func (m *Module) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.server.Shutdown(ctx)
}
