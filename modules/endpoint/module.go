package endpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundgraph/conductor"
)

// ModuleName is the unique identifier for the endpoint module.
const ModuleName = "endpoint"

// Event type tags produced and consumed by this module.
const (
	// EventTypeNodeAdded announces a new device node in the graph; pushed
	// by the object-manager adapter.
	EventTypeNodeAdded = "node-added"
	// EventTypeNodeRemoved announces a device node leaving the graph.
	EventTypeNodeRemoved = "node-removed"
	// EventTypeEndpointAdded announces a fully constructed endpoint; the
	// endpoint rides along as the event subject.
	EventTypeEndpointAdded = "endpoint-added"
	// EventTypeEndpointRemoved announces a torn down endpoint.
	EventTypeEndpointRemoved = "endpoint-removed"
)

// Endpoint construction steps.
const (
	stepCreateDSP = conductor.StepCustomStart + iota
	stepLinkStreams
)

// defaultStreams are the entry points every soft-DSP endpoint exposes.
var defaultStreams = []string{"multimedia", "communication", "notification"}

// Module reacts to node lifecycle events by building and tearing down
// endpoints. Construction runs as an asynchronous hook: the DSP node is
// created in one step and its streams are linked in the next, with the
// dispatcher suspended (not blocked) in between.
type Module struct {
	mu        sync.Mutex
	endpoints map[int64]*Endpoint
	nextDSPID int64

	core       *conductor.Core
	dispatcher *conductor.EventDispatcher
}

// NewModule creates the endpoint module.
func NewModule() *Module {
	return &Module{
		endpoints: make(map[int64]*Endpoint),
		nextDSPID: 0x1000,
	}
}

// Name implements conductor.Module.
func (m *Module) Name() string { return ModuleName }

// Init implements conductor.Module: it registers the subject accessor and
// the node lifecycle hooks.
func (m *Module) Init(core *conductor.Core) error {
	m.core = core
	m.dispatcher = conductor.EventDispatcherGetInstance(core)

	if err := core.SubjectAccessors().Register(SubjectKind, accessor{}); err != nil {
		return err
	}

	create := conductor.NewAsyncEventHook("endpoint-create", 100, conductor.ExecOnEvent,
		m.createNextStep, m.createExecStep)
	create.AddInterest(
		conductor.NewConstraint(conductor.ConstraintEventProperty, conductor.EventTypeKey,
			conductor.OpEquals, conductor.StringOperand(EventTypeNodeAdded)),
		conductor.NewConstraint(conductor.ConstraintEventProperty, "media.class",
			conductor.OpInList, conductor.ListOperand("Audio/Sink", "Audio/Source")),
	)
	if err := m.dispatcher.RegisterHook(create); err != nil {
		return err
	}

	remove := conductor.NewSimpleEventHook("endpoint-remove", 100, conductor.ExecOnEvent, m.onNodeRemoved)
	remove.AddInterest(
		conductor.NewConstraint(conductor.ConstraintEventProperty, conductor.EventTypeKey,
			conductor.OpEquals, conductor.StringOperand(EventTypeNodeRemoved)),
	)
	return m.dispatcher.RegisterHook(remove)
}

func (m *Module) createNextStep(t *conductor.Transition, step int) int {
	switch step {
	case conductor.StepNone:
		return stepCreateDSP
	case stepCreateDSP:
		return stepLinkStreams
	case stepLinkStreams:
		return conductor.StepNone
	default:
		return conductor.StepError
	}
}

func (m *Module) createExecStep(t *conductor.Transition, step int) {
	switch step {
	case stepCreateDSP:
		ep, err := m.buildEndpoint(t.Event())
		if err != nil {
			t.Fail(err)
			return
		}
		m.mu.Lock()
		m.nextDSPID++
		dspID := m.nextDSPID
		m.endpoints[ep.NodeID()] = ep
		m.mu.Unlock()
		ep.bind(dspID)
		m.core.Logger().Debug("DSP node created",
			"endpoint", ep.Name(), "node", ep.NodeID(), "dsp", dspID)
		t.Advance()

	case stepLinkStreams:
		nodeID, _ := t.Event().Properties().GetInt64("node.id")
		ep, ok := m.Lookup(nodeID)
		if !ok {
			t.Fail(fmt.Errorf("%w: %d", ErrUnknownEndpoint, nodeID))
			return
		}
		ep.linkStreams(defaultStreams)
		m.announce(ep)
		t.Advance()
	}
}

func (m *Module) buildEndpoint(e *conductor.Event) (*Endpoint, error) {
	props := e.Properties()
	nodeID, ok := props.GetInt64("node.id")
	if !ok {
		return nil, ErrNodeIDMissing
	}
	name, _ := props.Get("node.name")
	if name == "" {
		name = fmt.Sprintf("node-%d", nodeID)
	}
	mediaClass, _ := props.Get("media.class")
	direction, err := directionForMediaClass(mediaClass)
	if err != nil {
		return nil, err
	}
	return newEndpoint(nodeID, name, mediaClass, direction, nil), nil
}

// announce pushes an endpoint-added event with the endpoint as subject, so
// downstream hooks (routing policy, default device selection) can constrain
// on its properties.
func (m *Module) announce(ep *Endpoint) {
	props := conductor.NewProperties()
	props.Set("node.id", fmt.Sprintf("%d", ep.NodeID()))
	e, err := conductor.NewEvent(EventTypeEndpointAdded, 50, props, ep, m)
	if err != nil {
		m.core.Logger().Error("Failed to build endpoint-added event", "error", err)
		return
	}
	if err := m.dispatcher.PushEvent(e); err != nil {
		m.core.Logger().Error("Failed to announce endpoint", "endpoint", ep.Name(), "error", err)
	}
}

func (m *Module) onNodeRemoved(_ context.Context, e *conductor.Event) error {
	nodeID, ok := e.Properties().GetInt64("node.id")
	if !ok {
		return ErrNodeIDMissing
	}
	m.mu.Lock()
	ep, exists := m.endpoints[nodeID]
	delete(m.endpoints, nodeID)
	m.mu.Unlock()
	if !exists {
		// Nodes without an Audio/* media class never grew an endpoint.
		return nil
	}

	props := conductor.NewProperties()
	props.Set("node.id", fmt.Sprintf("%d", nodeID))
	removed, err := conductor.NewEvent(EventTypeEndpointRemoved, 50, props, ep, m)
	if err != nil {
		return err
	}
	m.core.Logger().Debug("Endpoint removed", "endpoint", ep.Name(), "node", nodeID)
	return m.dispatcher.PushEvent(removed)
}

// Lookup returns the endpoint wrapping the given node id, if any.
func (m *Module) Lookup(nodeID int64) (*Endpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[nodeID]
	return ep, ok
}

// Endpoints returns every live endpoint.
func (m *Module) Endpoints() []*Endpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	endpoints := make([]*Endpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		endpoints = append(endpoints, ep)
	}
	return endpoints
}
