package conductor

import (
	"sort"

	"github.com/golobby/cast"
)

// Properties is an ordered set of string key/value pairs used as the payload
// carrier for events and as the property surface of subjects. Values are
// stored untyped; typed accessors coerce on demand.
//
// A Properties value is not safe for concurrent mutation. Once the owning
// event has been pushed to a dispatcher the bag must be treated as read-only;
// the dispatcher and every hook only read from it.
type Properties struct {
	keys   []string
	values map[string]string
}

// NewProperties creates an empty property bag.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]string)}
}

// NewPropertiesFromMap creates a property bag populated from m.
// Iteration order is fixed at construction time by sorting the keys,
// so two bags built from the same map iterate identically.
func NewPropertiesFromMap(m map[string]string) *Properties {
	p := NewProperties()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, m[k])
	}
	return p
}

// Set stores value under key, overwriting any previous value.
func (p *Properties) Set(key, value string) {
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value stored under key and whether it is present.
func (p *Properties) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Contains reports whether key is present in the bag.
func (p *Properties) Contains(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// Len returns the number of entries in the bag.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys returns the keys in the bag's iteration order. The returned slice
// is a copy and may be modified by the caller.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// ForEach calls fn for every entry in iteration order. Iteration stops
// early if fn returns false.
func (p *Properties) ForEach(fn func(key, value string) bool) {
	if p == nil {
		return
	}
	for _, k := range p.keys {
		if !fn(k, p.values[k]) {
			return
		}
	}
}

// GetInt64 returns the value under key coerced to int64.
// The second return value is false if the key is absent or the value
// cannot be represented as an integer.
func (p *Properties) GetInt64(key string) (int64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	converted, err := cast.FromString(v, "int64")
	if err != nil {
		return 0, false
	}
	n, ok := converted.(int64)
	return n, ok
}

// GetBool returns the value under key coerced to bool.
func (p *Properties) GetBool(key string) (bool, bool) {
	v, ok := p.Get(key)
	if !ok {
		return false, false
	}
	converted, err := cast.FromString(v, "bool")
	if err != nil {
		return false, false
	}
	b, ok := converted.(bool)
	return b, ok
}

// GetFloat64 returns the value under key coerced to float64.
func (p *Properties) GetFloat64(key string) (float64, bool) {
	v, ok := p.Get(key)
	if !ok {
		return 0, false
	}
	converted, err := cast.FromString(v, "float64")
	if err != nil {
		return 0, false
	}
	f, ok := converted.(float64)
	return f, ok
}

// Copy returns an independent copy of the bag preserving iteration order.
func (p *Properties) Copy() *Properties {
	cp := NewProperties()
	if p == nil {
		return cp
	}
	for _, k := range p.keys {
		cp.Set(k, p.values[k])
	}
	return cp
}
