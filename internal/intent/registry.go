package intent

import (
	"sort"

	apperrors "pantry-assistant/internal/common/errors"
)

// Registry is an immutable name to action map.
type Registry struct {
	actions map[string]Action
	names   []string
}

// NewRegistry fails with a DUPLICATE_ACTION error when two actions share a
// name.
func NewRegistry(actions ...Action) (*Registry, error) {
	r := &Registry{actions: make(map[string]Action, len(actions))}
	for _, a := range actions {
		name := a.Name()
		if _, exists := r.actions[name]; exists {
			return nil, apperrors.NewDuplicateActionError(name)
		}
		r.actions[name] = a
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

func (r *Registry) Has(name string) bool {
	_, ok := r.actions[name]
	return ok
}

// Get returns an UNKNOWN_ACTION error for unregistered names.
func (r *Registry) Get(name string) (Action, error) {
	a, ok := r.actions[name]
	if !ok {
		return nil, apperrors.NewUnknownActionError(name)
	}
	return a, nil
}

// Names lists registered action names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns the registered actions sorted by name.
func (r *Registry) All() []Action {
	out := make([]Action, len(r.names))
	for i, n := range r.names {
		out[i] = r.actions[n]
	}
	return out
}
