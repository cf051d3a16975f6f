package cube

import (
	"sort"

	"cube-demo/internal/domain"
)

// Filter state names with reserved semantics.
const (
	// StateCurrent is the mutable state queries execute against.
	StateCurrent = "current"
	// StateUnfiltered is the immutable always-empty baseline. Callers use it
	// to enumerate dimension values unaffected by the current selection.
	StateUnfiltered = "Unfiltered"
	// StateAll addresses every state at once in ResetFilters.
	StateAll = "all"
)

// Criteria maps a dimension name to its allowed values (display form, see
// domain.FormatValue). Dimensions combine by AND, values within a dimension
// by OR. A dimension absent from the map is unrestricted.
type Criteria map[string][]string

// filterRegistry holds the named filter states. States are created empty on
// first reference and live until explicitly reset; Unfiltered can never be
// mutated.
type filterRegistry struct {
	states map[string]Criteria
}

func newFilterRegistry() *filterRegistry {
	return &filterRegistry{states: map[string]Criteria{
		StateCurrent:    {},
		StateUnfiltered: {},
	}}
}

// state returns the named state for mutation, creating it when absent.
// Callers must hold the cube's write lock.
func (r *filterRegistry) state(name string) Criteria {
	if name == "" {
		name = StateCurrent
	}
	st, ok := r.states[name]
	if !ok {
		st = Criteria{}
		r.states[name] = st
	}
	return st
}

// peek returns the named state without creating it; an absent state reads as
// a nil (empty) Criteria. Read paths use this so they stay safe under the
// cube's read lock.
func (r *filterRegistry) peek(name string) Criteria {
	if name == "" {
		name = StateCurrent
	}
	return r.states[name]
}

// apply merges criteria into the named state. Each key present replaces that
// dimension's allowed set; keys absent keep their previous restriction. A key
// mapped to an empty list removes the restriction. An EMPTY criteria map is a
// full reset of the state, not a no-op — this matches the dashboard contract
// ("if empty, fully reset filters") and is covered by tests.
func (r *filterRegistry) apply(name string, criteria Criteria) error {
	if name == "" {
		name = StateCurrent
	}
	if name == StateUnfiltered {
		return domain.ErrSchema("filter state %q is immutable", StateUnfiltered)
	}
	if name == StateAll {
		return domain.ErrSchema("filter state name %q is reserved", StateAll)
	}

	if len(criteria) == 0 {
		r.states[name] = Criteria{}
		return nil
	}

	st := r.state(name)
	for dim, values := range criteria {
		if len(values) == 0 {
			delete(st, dim)
			continue
		}
		st[dim] = append([]string(nil), values...)
	}
	return nil
}

// reset clears one named state, or every state when name is StateAll.
func (r *filterRegistry) reset(name string) error {
	if name == "" {
		name = StateCurrent
	}
	if name == StateAll {
		for n := range r.states {
			r.states[n] = Criteria{}
		}
		return nil
	}
	if name == StateUnfiltered {
		return nil // already and always empty
	}
	r.states[name] = Criteria{}
	return nil
}

// snapshot returns a deep copy of the named state. An absent state snapshots
// as empty without being created.
func (r *filterRegistry) snapshot(name string) Criteria {
	st := r.peek(name)
	out := make(Criteria, len(st))
	for dim, values := range st {
		out[dim] = append([]string(nil), values...)
	}
	return out
}

// stateNames lists the known states in sorted order.
func (r *filterRegistry) stateNames() []string {
	names := make([]string, 0, len(r.states))
	for n := range r.states {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// activeDimensions lists the dimensions carrying a non-empty restriction in
// the named state, sorted for deterministic execution.
func (r *filterRegistry) activeDimensions(name string) []string {
	st := r.peek(name)
	dims := make([]string, 0, len(st))
	for dim, values := range st {
		if len(values) > 0 {
			dims = append(dims, dim)
		}
	}
	sort.Strings(dims)
	return dims
}
