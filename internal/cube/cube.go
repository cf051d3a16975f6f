package cube

import (
	"sync"

	"cube-demo/internal/domain"
	"cube-demo/internal/expr"
)

const defaultMaxJoinRows = 10_000_000

// Hypercube joins a set of related tables into one logical schema and
// answers named grouped-aggregation queries against a mutable filter state.
// All definition calls are atomic: on error the registries are unchanged.
//
// A single mutex guards the registries and filter states, so Query observes
// a consistent snapshot even when definitions and filters change from other
// goroutines.
type Hypercube struct {
	mu    sync.RWMutex
	store *tableStore
	graph *schemaGraph

	metrics     map[string]*metric
	metricOrder []string

	computed      map[string]*computedMetric
	computedOrder []string

	queries    map[string]*storedQuery
	queryOrder []string

	filters     *filterRegistry
	maxJoinRows int
}

// Option configures a Hypercube at build time.
type Option func(*Hypercube)

// WithMaxJoinRows bounds join fan-out: a query whose intermediate joined row
// set would exceed n rows fails with JoinResolutionError instead of hanging
// on a pathological many-to-many join.
func WithMaxJoinRows(n int) Option {
	return func(h *Hypercube) { h.maxJoinRows = n }
}

// Build constructs an engine over the given tables and declared join
// relationships. It fails with SchemaError on invalid tables or ambiguous
// shared columns, and with AmbiguousJoinError when the relationship graph
// would admit more than one join path between two tables.
func Build(tables map[string]*domain.Table, relationships []domain.Relationship, opts ...Option) (*Hypercube, error) {
	store, err := newTableStore(tables)
	if err != nil {
		return nil, err
	}
	graph, err := newSchemaGraph(store, relationships)
	if err != nil {
		return nil, err
	}
	if err := store.validateSharedColumns(graph); err != nil {
		return nil, err
	}

	h := &Hypercube{
		store:       store,
		graph:       graph,
		metrics:     map[string]*metric{},
		computed:    map[string]*computedMetric{},
		queries:     map[string]*storedQuery{},
		filters:     newFilterRegistry(),
		maxJoinRows: defaultMaxJoinRows,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// DefineMetric registers a named (expression, aggregation) pair. The
// expression is parsed once here; it may reference any resolvable column.
func (h *Hypercube) DefineMetric(def MetricDef) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if def.Name == "" {
		return domain.ErrSchema("metric name is required")
	}
	if _, exists := h.metrics[def.Name]; exists {
		return domain.ErrDuplicateName("metric %q is already defined", def.Name)
	}
	if !def.Aggregation.valid() {
		return domain.ErrSchema("metric %q: aggregation is required", def.Name)
	}

	parsed, err := expr.Parse(def.Expression)
	if err != nil {
		return err
	}
	columns := expr.Refs(parsed)
	for _, col := range columns {
		if _, err := h.store.ownerOf(col); err != nil {
			return domain.ErrExpression("metric %q references unknown column %q", def.Name, col)
		}
	}

	h.metrics[def.Name] = &metric{def: def, expr: parsed, columns: columns}
	h.metricOrder = append(h.metricOrder, def.Name)
	return nil
}

// DefineComputedMetric registers a post-aggregation expression. Every
// referenced name must already be a metric or computed metric — forward
// references are rejected, and a reference chain that reaches the name being
// defined fails with CyclicDependencyError.
func (h *Hypercube) DefineComputedMetric(def ComputedMetricDef) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if def.Name == "" {
		return domain.ErrSchema("computed metric name is required")
	}
	if _, exists := h.metrics[def.Name]; exists {
		return domain.ErrDuplicateName("computed metric %q collides with metric %q", def.Name, def.Name)
	}
	if _, exists := h.computed[def.Name]; exists {
		return domain.ErrDuplicateName("computed metric %q is already defined", def.Name)
	}

	parsed, err := expr.Parse(def.Expression)
	if err != nil {
		return err
	}
	deps := expr.Refs(parsed)
	for _, dep := range deps {
		if err := h.checkComputedDep(def.Name, dep, map[string]bool{}); err != nil {
			return err
		}
	}

	h.computed[def.Name] = &computedMetric{def: def, expr: parsed, deps: deps}
	h.computedOrder = append(h.computedOrder, def.Name)
	return nil
}

// checkComputedDep validates one dependency of the computed metric being
// defined, walking transitively through computed metrics to detect cycles.
func (h *Hypercube) checkComputedDep(defining, dep string, onPath map[string]bool) error {
	if dep == defining || onPath[dep] {
		return domain.ErrCyclicDependency("computed metric %q would depend on itself via %q", defining, dep)
	}
	if _, ok := h.metrics[dep]; ok {
		return nil
	}
	cm, ok := h.computed[dep]
	if !ok {
		return domain.ErrUnknownReference("computed metric %q references undefined metric %q", defining, dep)
	}
	onPath[dep] = true
	for _, next := range cm.deps {
		if err := h.checkComputedDep(defining, next, onPath); err != nil {
			return err
		}
	}
	delete(onPath, dep)
	return nil
}

// DefineQuery stores a query definition after validating every referenced
// metric, computed metric, dimension, and sort column.
func (h *Hypercube) DefineQuery(def QueryDef) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if def.Name == "" {
		return domain.ErrSchema("query name is required")
	}
	if _, exists := h.queries[def.Name]; exists {
		return domain.ErrDuplicateName("query %q is already defined", def.Name)
	}
	if len(def.Dimensions)+len(def.Metrics)+len(def.ComputedMetrics) == 0 {
		return domain.ErrSchema("query %q selects nothing", def.Name)
	}

	for _, m := range def.Metrics {
		if _, ok := h.metrics[m]; !ok {
			return domain.ErrUnknownReference("query %q references undefined metric %q", def.Name, m)
		}
	}
	for _, cm := range def.ComputedMetrics {
		if _, ok := h.computed[cm]; !ok {
			return domain.ErrUnknownReference("query %q references undefined computed metric %q", def.Name, cm)
		}
	}
	for _, dim := range def.Dimensions {
		if _, err := h.store.ownerOf(dim); err != nil {
			return domain.ErrUnknownReference("query %q references unknown dimension %q", def.Name, dim)
		}
	}

	outputs := map[string]bool{}
	for _, dim := range def.Dimensions {
		outputs[dim] = true
	}
	for _, m := range def.Metrics {
		outputs[m] = true
	}
	for _, cm := range def.ComputedMetrics {
		outputs[cm] = true
	}
	for _, key := range def.Sort {
		if !outputs[key.Column] {
			return domain.ErrUnknownReference("query %q sorts by %q, which is not in its output", def.Name, key.Column)
		}
	}

	var having expr.Expr
	if def.Having != "" {
		parsed, err := expr.Parse(def.Having)
		if err != nil {
			return err
		}
		// Having may reach beyond the selected output: any defined metric or
		// computed metric is fair game, so a query can filter on a ratio it
		// does not display.
		for _, ref := range expr.Refs(parsed) {
			if outputs[ref] {
				continue
			}
			if _, ok := h.metrics[ref]; ok {
				continue
			}
			if _, ok := h.computed[ref]; ok {
				continue
			}
			return domain.ErrUnknownReference("query %q having predicate references %q, which is neither selected nor a defined metric", def.Name, ref)
		}
		having = parsed
	}

	h.queries[def.Name] = &storedQuery{def: cloneQueryDef(def), having: having}
	h.queryOrder = append(h.queryOrder, def.Name)
	return nil
}

// Filter merges criteria into the current filter state. An empty criteria
// map fully resets the state (see filterRegistry.apply).
func (h *Hypercube) Filter(criteria Criteria) error {
	return h.FilterState(StateCurrent, criteria)
}

// FilterState merges criteria into the named filter state, creating it on
// first reference.
func (h *Hypercube) FilterState(state string, criteria Criteria) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for dim := range criteria {
		if _, err := h.store.ownerOf(dim); err != nil {
			return err
		}
	}
	return h.filters.apply(state, criteria)
}

// ResetFilters clears the named state back to unrestricted, or every state
// when called with StateAll.
func (h *Hypercube) ResetFilters(state string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.filters.reset(state)
}

// Filters returns a read-only snapshot of the named state (default: current).
func (h *Hypercube) Filters(state string) Criteria {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.filters.snapshot(state)
}

// FilterStateNames lists the known filter states.
func (h *Hypercube) FilterStateNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.filters.stateNames()
}

// Dimensions lists every addressable column.
func (h *Hypercube) Dimensions() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store.dimensions()
}

// Metrics returns the metric definitions in registration order.
func (h *Hypercube) Metrics() []MetricDef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]MetricDef, 0, len(h.metricOrder))
	for _, name := range h.metricOrder {
		out = append(out, h.metrics[name].def)
	}
	return out
}

// ComputedMetrics returns the computed metric definitions in registration order.
func (h *Hypercube) ComputedMetrics() []ComputedMetricDef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]ComputedMetricDef, 0, len(h.computedOrder))
	for _, name := range h.computedOrder {
		out = append(out, h.computed[name].def)
	}
	return out
}

// Queries returns the stored query definitions in registration order.
func (h *Hypercube) Queries() []QueryDef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]QueryDef, 0, len(h.queryOrder))
	for _, name := range h.queryOrder {
		out = append(out, cloneQueryDef(h.queries[name].def))
	}
	return out
}

// GetQuery returns the stored definition of one query.
func (h *Hypercube) GetQuery(name string) (QueryDef, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	q, ok := h.queries[name]
	if !ok {
		return QueryDef{}, domain.ErrUnknownReference("unknown query %q", name)
	}
	return cloneQueryDef(q.def), nil
}

// Query executes the named query against the current filter state and
// returns a fresh result. Errors abort the query; no partial rows are
// returned.
func (h *Hypercube) Query(name string) (*Result, error) {
	return h.QueryState(name, StateCurrent)
}

// QueryState executes the named query against an arbitrary named filter
// state without touching the current one.
func (h *Hypercube) QueryState(name, state string) (*Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	q, ok := h.queries[name]
	if !ok {
		return nil, domain.ErrUnknownReference("unknown query %q", name)
	}
	return h.execute(q, state)
}

// DimensionValues returns the distinct non-null values of each named
// dimension under the given filter state (default: current), sorted for
// stable display. Callers use this with StateUnfiltered to populate
// selectable option lists without mutating the active filter.
func (h *Hypercube) DimensionValues(names []string, state string) (map[string][]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string][]string, len(names))
	for _, dim := range names {
		values, err := h.distinctValues(dim, state)
		if err != nil {
			return nil, err
		}
		out[dim] = values
	}
	return out, nil
}
