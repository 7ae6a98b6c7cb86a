package conductor

import (
	"sort"
	"sync"
)

// HookRegistry holds the hooks known to a dispatcher, keyed by name.
// Registration and removal are safe from any goroutine; they take effect at
// the next event boundary, never in the middle of an event's hook list.
type HookRegistry struct {
	mu    sync.RWMutex
	hooks map[string]EventHook
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{hooks: make(map[string]EventHook)}
}

// Register adds a hook. It fails with ErrDuplicateHook when a hook with the
// same name is already registered; the existing hook stays active.
func (r *HookRegistry) Register(hook EventHook) error {
	if hook == nil {
		return ErrHookNil
	}
	if hook.Name() == "" {
		return ErrHookNameEmpty
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[hook.Name()]; exists {
		return ErrDuplicateHook
	}
	r.hooks[hook.Name()] = hook
	return nil
}

// Remove deletes the hook registered under name. It fails with
// ErrUnknownHook when no such hook exists. A removed hook receives no
// further events.
func (r *HookRegistry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[name]; !exists {
		return ErrUnknownHook
	}
	delete(r.hooks, name)
	return nil
}

// Lookup returns the hook registered under name, if any.
func (r *HookRegistry) Lookup(name string) (EventHook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[name]
	return hook, ok
}

// Len returns the number of registered hooks.
func (r *HookRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hooks)
}

// All returns every registered hook ordered by priority descending, name
// ascending. Used by introspection surfaces.
func (r *HookRegistry) All() []EventHook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hooks := make([]EventHook, 0, len(r.hooks))
	for _, hook := range r.hooks {
		hooks = append(hooks, hook)
	}
	sortHooks(hooks)
	return hooks
}

// matchReporter receives interest evaluation failures during selection.
type matchReporter func(hook EventHook, err error)

// selectHooks returns every hook of the given exec type whose interests
// match the event, ordered by priority descending with ties broken by
// ascending name. A hook with no interests matches every event. A hook
// whose interest evaluation fails is excluded and reported; it behaves as
// if it had not matched.
func (r *HookRegistry) selectHooks(event *Event, execType HookExecType, accessors *SubjectAccessors, report matchReporter) []EventHook {
	r.mu.RLock()
	candidates := make([]EventHook, 0, len(r.hooks))
	for _, hook := range r.hooks {
		if hook.ExecType() == execType {
			candidates = append(candidates, hook)
		}
	}
	r.mu.RUnlock()

	matched := candidates[:0]
	for _, hook := range candidates {
		ok, err := hookMatches(hook, event, accessors)
		if err != nil {
			if report != nil {
				report(hook, err)
			}
			continue
		}
		if ok {
			matched = append(matched, hook)
		}
	}
	sortHooks(matched)
	return matched
}

// hookMatches evaluates a hook's interest list disjunctively. The first
// malformed interest poisons the whole hook for this event.
func hookMatches(hook EventHook, event *Event, accessors *SubjectAccessors) (bool, error) {
	interests := hook.Interests()
	if len(interests) == 0 {
		return true, nil
	}
	for _, interest := range interests {
		ok, err := interest.Matches(event, accessors)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func sortHooks(hooks []EventHook) {
	sort.SliceStable(hooks, func(i, j int) bool {
		if hooks[i].Priority() != hooks[j].Priority() {
			return hooks[i].Priority() > hooks[j].Priority()
		}
		return hooks[i].Name() < hooks[j].Name()
	})
}
