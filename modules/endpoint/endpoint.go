// Package endpoint builds audio endpoints around device nodes that appear
// in the media graph. An endpoint wraps a device node, plugs a DSP node in
// front of it and exposes per-stream entry points; construction is
// multi-step and runs as an asynchronous hook so the dispatcher stays
// responsive while nodes are negotiated.
package endpoint

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/soundgraph/conductor"
)

// SubjectKind is the subject kind endpoints expose to interest predicates.
const SubjectKind = "endpoint"

// Direction is the media flow direction of an endpoint.
type Direction int

const (
	// DirectionOutput is a playback endpoint (sink).
	DirectionOutput Direction = iota
	// DirectionInput is a capture endpoint (source).
	DirectionInput
)

// String returns the direction's property spelling.
func (d Direction) String() string {
	if d == DirectionInput {
		return "input"
	}
	return "output"
}

// Static errors for the endpoint package
var (
	ErrUnknownEndpoint = errors.New("no endpoint for this node id")
	ErrNodeIDMissing   = errors.New("event carries no usable node id")
)

// Endpoint is a DSP-fronted wrapper around a device node. It implements
// conductor.SubjectKinder so dispatcher interests can constrain on its
// properties and attributes.
type Endpoint struct {
	mu sync.Mutex

	nodeID     int64
	name       string
	mediaClass string
	direction  Direction
	props      *conductor.Properties

	// boundID is the id of the DSP node plugged in front of the device
	// node, assigned when the DSP node is created.
	boundID int64

	// stream entry points, e.g. "multimedia", "communication"
	streams []string

	volume float64
	muted  bool
}

func newEndpoint(nodeID int64, name, mediaClass string, direction Direction, props *conductor.Properties) *Endpoint {
	if props == nil {
		props = conductor.NewProperties()
	}
	props.Set("endpoint.name", name)
	props.Set("media.class", mediaClass)
	props.Set("endpoint.direction", direction.String())
	return &Endpoint{
		nodeID:     nodeID,
		name:       name,
		mediaClass: mediaClass,
		direction:  direction,
		props:      props,
		volume:     1.0,
	}
}

// SubjectKind implements conductor.SubjectKinder.
func (e *Endpoint) SubjectKind() string { return SubjectKind }

// NodeID returns the id of the wrapped device node.
func (e *Endpoint) NodeID() int64 { return e.nodeID }

// Name returns the endpoint name.
func (e *Endpoint) Name() string { return e.name }

// MediaClass returns the media class, e.g. "Audio/Sink".
func (e *Endpoint) MediaClass() string { return e.mediaClass }

// Direction returns the media flow direction.
func (e *Endpoint) Direction() Direction { return e.direction }

// Properties returns the endpoint's property bag.
func (e *Endpoint) Properties() *conductor.Properties { return e.props }

// BoundID returns the id of the plugged DSP node, 0 before the DSP node
// is created.
func (e *Endpoint) BoundID() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.boundID
}

// Streams returns the endpoint's stream entry points.
func (e *Endpoint) Streams() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	streams := make([]string, len(e.streams))
	copy(streams, e.streams)
	return streams
}

// Volume returns the master volume and mute state.
func (e *Endpoint) Volume() (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume, e.muted
}

// SetVolume updates the master volume.
func (e *Endpoint) SetVolume(volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = volume
}

// SetMuted updates the mute state.
func (e *Endpoint) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
}

func (e *Endpoint) bind(dspID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.boundID = dspID
}

func (e *Endpoint) linkStreams(streams []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.streams = append([]string(nil), streams...)
}

// accessor answers interest predicate lookups for endpoints.
type accessor struct{}

// SubjectProperties implements conductor.SubjectAccessor.
func (accessor) SubjectProperties(subject any) *conductor.Properties {
	ep, ok := subject.(*Endpoint)
	if !ok {
		return nil
	}
	return ep.Properties()
}

// SubjectAttribute implements conductor.SubjectAccessor.
func (accessor) SubjectAttribute(subject any, name string) (string, bool) {
	ep, ok := subject.(*Endpoint)
	if !ok {
		return "", false
	}
	switch name {
	case "bound-id":
		return strconv.FormatInt(ep.BoundID(), 10), true
	case "node-id":
		return strconv.FormatInt(ep.NodeID(), 10), true
	case "direction":
		return ep.Direction().String(), true
	default:
		return "", false
	}
}

func directionForMediaClass(mediaClass string) (Direction, error) {
	switch mediaClass {
	case "Audio/Sink":
		return DirectionOutput, nil
	case "Audio/Source":
		return DirectionInput, nil
	default:
		return 0, fmt.Errorf("unsupported media class %q", mediaClass)
	}
}
