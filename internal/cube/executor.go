package cube

import (
	"sort"
	"strconv"

	"cube-demo/internal/domain"
	"cube-demo/internal/expr"
)

// Result is an ordered query result: dimension values followed by metric and
// computed-metric values, one row per surviving group. Results are built
// fresh on every call and never cached, so they always reflect the filter
// state at execution time.
type Result struct {
	Columns []string
	Rows    [][]domain.Value
}

// rowset is an intermediate joined row collection with named columns.
type rowset struct {
	cols  []string
	index map[string]int
	rows  [][]domain.Value
}

func newRowset(cols []string) *rowset {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	return &rowset{cols: cols, index: index}
}

func (rs *rowset) cell(row []domain.Value, col string) domain.Value {
	return row[rs.index[col]]
}

// rowEnv exposes one joined row to the expression evaluator.
type rowEnv struct {
	rs  *rowset
	row []domain.Value
}

func (e rowEnv) Lookup(name string) (domain.Value, bool) {
	idx, ok := e.rs.index[name]
	if !ok {
		return nil, false
	}
	return e.row[idx], true
}

// valueKey builds a grouping / distinctness key. The type tag keeps the
// number 42 and the string "42" in separate groups.
func valueKey(v domain.Value) string {
	switch x := v.(type) {
	case nil:
		return "_"
	case float64:
		return "n:" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		if x {
			return "b:1"
		}
		return "b:0"
	case string:
		return "s:" + x
	default:
		return "?"
	}
}

// execute runs the full pipeline for one stored query against one filter
// state: join, filter, group, aggregate, computed metrics, having,
// null-drop, sort.
func (h *Hypercube) execute(q *storedQuery, state string) (*Result, error) {
	// Having may reference metrics the query does not select; fold its refs
	// into the required sets so those values exist per group. Refs that are
	// not metric names (dimensions, say) fall out of the expansion.
	selectedMetrics := q.def.Metrics
	selectedComputed := q.def.ComputedMetrics
	if q.having != nil {
		refs := expr.Refs(q.having)
		selectedMetrics = append(append([]string(nil), selectedMetrics...), refs...)
		selectedComputed = append(append([]string(nil), selectedComputed...), refs...)
	}
	requiredComputed := h.requiredComputed(selectedComputed)
	requiredMetrics := h.requiredMetrics(selectedMetrics, requiredComputed)

	// 1-2. Resolve and join every table the query and the active filters touch.
	needed := append([]string(nil), q.def.Dimensions...)
	for _, name := range requiredMetrics {
		needed = append(needed, h.metrics[name].columns...)
	}
	activeFilterDims := h.filters.activeDimensions(state)
	needed = append(needed, activeFilterDims...)

	rs, err := h.joinFor(needed)
	if err != nil {
		return nil, err
	}

	// 3. Apply the filter state: AND across dimensions, OR within values.
	rs, err = h.applyFilters(rs, state, activeFilterDims)
	if err != nil {
		return nil, err
	}

	// 4. Group by the dimension tuple and aggregate each metric. Groups with
	// zero surviving rows simply never form — no zero-filled output.
	type group struct {
		dims   []domain.Value
		values map[string]domain.Value
		rows   []int
	}
	var groups []*group
	byKey := map[string]*group{}
	for i, row := range rs.rows {
		key := ""
		dims := make([]domain.Value, len(q.def.Dimensions))
		for d, dim := range q.def.Dimensions {
			dims[d] = rs.cell(row, dim)
			// Length-prefix each component so values containing the
			// separator cannot merge two distinct tuples into one key.
			k := valueKey(dims[d])
			key += strconv.Itoa(len(k)) + "|" + k
		}
		g, ok := byKey[key]
		if !ok {
			g = &group{dims: dims, values: map[string]domain.Value{}}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, i)
	}

	for _, name := range requiredMetrics {
		m := h.metrics[name]
		for _, g := range groups {
			values := make([]domain.Value, len(g.rows))
			for i, rowIdx := range g.rows {
				v, err := expr.Eval(m.expr, rowEnv{rs: rs, row: rs.rows[rowIdx]})
				if err != nil {
					return nil, err
				}
				values[i] = v
			}
			reduced, err := m.def.Aggregation.fn(values)
			if err != nil {
				return nil, err
			}
			g.values[name] = reduced
		}
	}

	// 5. Computed metrics, in dependency (registration) order.
	for _, name := range requiredComputed {
		cm := h.computed[name]
		for _, g := range groups {
			v, err := expr.Eval(cm.expr, expr.MapEnv(g.values))
			if err != nil {
				return nil, err
			}
			if v == nil && cm.def.HasFill {
				v = cm.def.FillValue
			}
			g.values[name] = v
		}
	}

	// 6. Having runs against the group's full value map plus its dimensions,
	// so it can see metrics the query does not select. A group survives only
	// on a definite true: null, non-boolean, and evaluation errors all
	// exclude it.
	if q.having != nil {
		kept := groups[:0]
		for _, g := range groups {
			env := make(expr.MapEnv, len(q.def.Dimensions)+len(g.values))
			for d, dim := range q.def.Dimensions {
				env[dim] = g.dims[d]
			}
			for name, v := range g.values {
				env[name] = v
			}
			v, err := expr.Eval(q.having, env)
			if err == nil {
				if b, ok := v.(bool); ok && b {
					kept = append(kept, g)
				}
			}
		}
		groups = kept
	}

	// Assemble output rows: dimensions, then metrics, then computed metrics.
	columns := append([]string(nil), q.def.Dimensions...)
	columns = append(columns, q.def.Metrics...)
	columns = append(columns, q.def.ComputedMetrics...)

	out := newRowset(columns)
	for _, g := range groups {
		row := make([]domain.Value, 0, len(columns))
		row = append(row, g.dims...)
		for _, name := range q.def.Metrics {
			row = append(row, g.values[name])
		}
		for _, name := range q.def.ComputedMetrics {
			row = append(row, g.values[name])
		}
		out.rows = append(out.rows, row)
	}

	// 7. Drop rows with null dimensions when requested.
	if q.def.DropNullDimensions {
		kept := out.rows[:0]
		for _, row := range out.rows {
			null := false
			for d := range q.def.Dimensions {
				if row[d] == nil {
					null = true
					break
				}
			}
			if !null {
				kept = append(kept, row)
			}
		}
		out.rows = kept
	}

	// 8. Stable sort; ties keep group formation order.
	if len(q.def.Sort) > 0 {
		sort.SliceStable(out.rows, func(i, j int) bool {
			for _, key := range q.def.Sort {
				a := out.cell(out.rows[i], key.Column)
				b := out.cell(out.rows[j], key.Column)
				if a == nil || b == nil {
					if a == nil && b == nil {
						continue
					}
					// nulls sort last regardless of direction
					return b == nil
				}
				cmp := compareValues(a, b)
				if cmp == 0 {
					continue
				}
				if key.Descending {
					return cmp > 0
				}
				return cmp < 0
			}
			return false
		})
	}

	return &Result{Columns: columns, Rows: out.rows}, nil
}

// compareValues orders two cells for sorting. Nulls sort after every
// non-null value regardless of direction.
func compareValues(a, b domain.Value) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1
	}
	if b == nil {
		return -1
	}
	if af, ok := a.(float64); ok {
		if bf, ok := b.(float64); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := domain.FormatValue(a), domain.FormatValue(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// requiredComputed expands the requested computed metrics with their
// transitive computed dependencies, ordered by registration order (which is
// a valid dependency order, since forward references are rejected).
func (h *Hypercube) requiredComputed(requested []string) []string {
	want := map[string]bool{}
	var mark func(name string)
	mark = func(name string) {
		cm, ok := h.computed[name]
		if !ok || want[name] {
			return
		}
		want[name] = true
		for _, dep := range cm.deps {
			mark(dep)
		}
	}
	for _, name := range requested {
		mark(name)
	}

	out := make([]string, 0, len(want))
	for _, name := range h.computedOrder {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}

// requiredMetrics expands the requested metrics with every base metric the
// required computed metrics depend on, ordered by registration order.
func (h *Hypercube) requiredMetrics(requested []string, requiredComputed []string) []string {
	want := map[string]bool{}
	for _, name := range requested {
		want[name] = true
	}
	for _, name := range requiredComputed {
		for _, dep := range h.computed[name].deps {
			if _, ok := h.metrics[dep]; ok {
				want[dep] = true
			}
		}
	}

	out := make([]string, 0, len(want))
	for _, name := range h.metricOrder {
		if want[name] {
			out = append(out, name)
		}
	}
	return out
}

// applyFilters keeps only rows matching every active dimension restriction
// of the named state.
func (h *Hypercube) applyFilters(rs *rowset, state string, activeDims []string) (*rowset, error) {
	if len(activeDims) == 0 {
		return rs, nil
	}

	criteria := h.filters.peek(state)
	allowed := make([]map[string]bool, len(activeDims))
	for i, dim := range activeDims {
		set := make(map[string]bool, len(criteria[dim]))
		for _, v := range criteria[dim] {
			set[v] = true
		}
		allowed[i] = set
	}

	kept := make([][]domain.Value, 0, len(rs.rows))
	for _, row := range rs.rows {
		pass := true
		for i, dim := range activeDims {
			if !allowed[i][domain.FormatValue(rs.cell(row, dim))] {
				pass = false
				break
			}
		}
		if pass {
			kept = append(kept, row)
		}
	}

	filtered := newRowset(rs.cols)
	filtered.rows = kept
	return filtered, nil
}

// joinFor materializes a row set spanning the owners of every needed
// column, left-joining tables along the resolved paths so unmatched rows
// carry nulls rather than disappearing.
func (h *Hypercube) joinFor(needed []string) (*rowset, error) {
	neededByTable := map[string]map[string]bool{}
	addColumn := func(table, col string) {
		if neededByTable[table] == nil {
			neededByTable[table] = map[string]bool{}
		}
		neededByTable[table][col] = true
	}
	for _, col := range needed {
		owner, err := h.store.ownerOf(col)
		if err != nil {
			return nil, err
		}
		addColumn(owner, col)
	}
	if len(neededByTable) == 0 {
		return nil, domain.ErrSchema("query touches no columns")
	}

	var tables []string
	for _, name := range h.store.order {
		if neededByTable[name] != nil {
			tables = append(tables, name)
		}
	}
	base, err := h.joinBase(tables)
	if err != nil {
		return nil, err
	}

	// Resolve paths up front so join key columns are materialized too.
	var steps []joinStep
	joined := map[string]bool{base: true}
	for _, target := range tables {
		if target == base {
			continue
		}
		path, err := h.graph.path(base, target)
		if err != nil {
			return nil, err
		}
		for _, step := range path {
			if joined[step.To] {
				continue
			}
			joined[step.To] = true
			steps = append(steps, step)
			addColumn(step.From, step.FromColumn)
			addColumn(step.To, step.ToColumn)
		}
	}

	rs := h.materialize(base, neededByTable[base], nil)
	for _, step := range steps {
		next, err := h.joinStep(rs, step, neededByTable[step.To])
		if err != nil {
			return nil, err
		}
		rs = next
	}
	return rs, nil
}

// joinBase picks the table the join spine starts from. Relationships read as
// "left references right", so a table that only ever appears on the left of
// the traversed steps is the referencing (fact) side. Starting there keeps
// its unmatched rows — they surface as null dimension values — while rows of
// referenced tables with no matching facts stay out of the result.
func (h *Hypercube) joinBase(needed []string) (string, error) {
	involved := map[string]bool{needed[0]: true}
	referencing := map[string]bool{}
	referenced := map[string]bool{}
	for _, target := range needed[1:] {
		path, err := h.graph.path(needed[0], target)
		if err != nil {
			return "", err
		}
		for _, step := range path {
			involved[step.From] = true
			involved[step.To] = true
			referencing[step.Rel.LeftTable] = true
			referenced[step.Rel.RightTable] = true
		}
	}
	for _, name := range h.store.order {
		if involved[name] && referencing[name] && !referenced[name] {
			return name, nil
		}
	}
	return needed[0], nil
}

// materialize builds a rowset from one table, restricted to the wanted
// columns (in table declaration order), excluding any already present.
func (h *Hypercube) materialize(table string, wanted map[string]bool, exclude map[string]int) *rowset {
	t := h.store.table(table)
	var cols []string
	for _, name := range t.ColumnNames() {
		if !wanted[name] {
			continue
		}
		if _, dup := exclude[name]; dup {
			continue
		}
		cols = append(cols, name)
	}

	rs := newRowset(cols)
	rows := t.NumRows()
	rs.rows = make([][]domain.Value, rows)
	for i := 0; i < rows; i++ {
		row := make([]domain.Value, len(cols))
		for c, name := range cols {
			row[c] = t.Column(name).Values[i]
		}
		rs.rows[i] = row
	}
	return rs
}

// joinStep left-joins the step's target table onto the current rowset by
// relationship key equality, bounding fan-out at maxJoinRows.
func (h *Hypercube) joinStep(rs *rowset, step joinStep, wanted map[string]bool) (*rowset, error) {
	right := h.materialize(step.To, wanted, rs.index)
	rightKey := h.store.table(step.To).Column(step.ToColumn)

	// Shared join-key columns resolve to the already-joined side, so the
	// right key may not be materialized; read it from the table directly.
	matches := map[string][]int{}
	for i := 0; i < len(rightKey.Values); i++ {
		v := rightKey.Values[i]
		if v == nil {
			continue // null keys never match
		}
		k := valueKey(v)
		matches[k] = append(matches[k], i)
	}

	cols := append(append([]string(nil), rs.cols...), right.cols...)
	out := newRowset(cols)
	nulls := make([]domain.Value, len(right.cols))

	for _, row := range rs.rows {
		leftVal := rs.cell(row, step.FromColumn)
		var hits []int
		if leftVal != nil {
			hits = matches[valueKey(leftVal)]
		}
		if len(hits) == 0 {
			out.rows = append(out.rows, append(append([]domain.Value(nil), row...), nulls...))
		} else {
			for _, i := range hits {
				out.rows = append(out.rows, append(append([]domain.Value(nil), row...), right.rows[i]...))
			}
		}
		if len(out.rows) > h.maxJoinRows {
			return nil, domain.ErrJoinResolution(
				"join %s fans out beyond %d rows; declare a more selective relationship or raise the bound",
				step.Rel, h.maxJoinRows)
		}
	}
	return out, nil
}

// distinctValues returns the sorted distinct non-null values of one
// dimension under a named filter state.
func (h *Hypercube) distinctValues(dim, state string) ([]string, error) {
	owner, err := h.store.ownerOf(dim)
	if err != nil {
		return nil, err
	}

	activeFilterDims := h.filters.activeDimensions(state)
	needed := append([]string{dim}, activeFilterDims...)
	rs, err := h.joinFor(needed)
	if err != nil {
		return nil, err
	}
	rs, err = h.applyFilters(rs, state, activeFilterDims)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var values []string
	for _, row := range rs.rows {
		v := rs.cell(row, dim)
		if v == nil {
			continue
		}
		display := domain.FormatValue(v)
		if !seen[display] {
			seen[display] = true
			values = append(values, display)
		}
	}

	numeric := h.store.table(owner).Column(dim).Type == domain.ColumnTypeNumber
	sort.Slice(values, func(i, j int) bool {
		if numeric {
			a, errA := strconv.ParseFloat(values[i], 64)
			b, errB := strconv.ParseFloat(values[j], 64)
			if errA == nil && errB == nil {
				return a < b
			}
		}
		return values[i] < values[j]
	})
	return values, nil
}
