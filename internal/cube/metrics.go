package cube

import (
	"cube-demo/internal/domain"
	"cube-demo/internal/expr"
)

// ReduceFunc collapses the ordered per-group values of a metric expression
// into a single value. Nil cells are included; reductions decide how to
// treat them.
type ReduceFunc func(values []domain.Value) (domain.Value, error)

// Aggregation is a named reduction. The built-in set is closed (sum, mean,
// min, max, count, count-distinct); Custom is the extensibility point for
// caller-supplied reductions, and StarlarkReduction builds one from a script.
type Aggregation struct {
	name string
	fn   ReduceFunc
}

// Name returns the aggregation's display name.
func (a Aggregation) Name() string { return a.name }

func (a Aggregation) valid() bool { return a.fn != nil }

// Custom wraps a caller-supplied reduction.
func Custom(name string, fn ReduceFunc) Aggregation {
	return Aggregation{name: name, fn: fn}
}

// Sum adds the non-null values; a group with only nulls sums to 0.
func Sum() Aggregation {
	return Aggregation{name: "sum", fn: func(values []domain.Value) (domain.Value, error) {
		total := 0.0
		for _, v := range values {
			f, err := numericOrNull("sum", v)
			if err != nil {
				return nil, err
			}
			if f != nil {
				total += *f
			}
		}
		return total, nil
	}}
}

// Mean averages the non-null values; a group with only nulls is null.
func Mean() Aggregation {
	return Aggregation{name: "mean", fn: func(values []domain.Value) (domain.Value, error) {
		total, n := 0.0, 0
		for _, v := range values {
			f, err := numericOrNull("mean", v)
			if err != nil {
				return nil, err
			}
			if f != nil {
				total += *f
				n++
			}
		}
		if n == 0 {
			return nil, nil
		}
		return total / float64(n), nil
	}}
}

// Min returns the smallest non-null value, or null when there is none.
func Min() Aggregation {
	return Aggregation{name: "min", fn: extremum("min", func(a, b float64) bool { return b < a })}
}

// Max returns the largest non-null value, or null when there is none.
func Max() Aggregation {
	return Aggregation{name: "max", fn: extremum("max", func(a, b float64) bool { return b > a })}
}

func extremum(name string, better func(current, candidate float64) bool) ReduceFunc {
	return func(values []domain.Value) (domain.Value, error) {
		var best *float64
		for _, v := range values {
			f, err := numericOrNull(name, v)
			if err != nil {
				return nil, err
			}
			if f == nil {
				continue
			}
			if best == nil || better(*best, *f) {
				val := *f
				best = &val
			}
		}
		if best == nil {
			return nil, nil
		}
		return *best, nil
	}
}

// Count counts the non-null values.
func Count() Aggregation {
	return Aggregation{name: "count", fn: func(values []domain.Value) (domain.Value, error) {
		n := 0
		for _, v := range values {
			if v != nil {
				n++
			}
		}
		return float64(n), nil
	}}
}

// CountDistinct counts the distinct non-null values.
func CountDistinct() Aggregation {
	return Aggregation{name: "count-distinct", fn: func(values []domain.Value) (domain.Value, error) {
		seen := map[string]bool{}
		for _, v := range values {
			if v != nil {
				seen[valueKey(v)] = true
			}
		}
		return float64(len(seen)), nil
	}}
}

func numericOrNull(agg string, v domain.Value) (*float64, error) {
	if v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, domain.ErrExpression("%s requires numeric values, got %T", agg, v)
	}
	return &f, nil
}

// MetricDef names a row-level expression and the aggregation that reduces it
// per group.
type MetricDef struct {
	Name        string
	Expression  string
	Aggregation Aggregation
}

type metric struct {
	def     MetricDef
	expr    expr.Expr
	columns []string // columns the expression references
}

// ComputedMetricDef names a post-aggregation expression over other metric
// names, evaluated once per output row. When HasFill is set, FillValue
// replaces undefined results (0/0, null operands); otherwise they stay null.
type ComputedMetricDef struct {
	Name       string
	Expression string
	FillValue  domain.Value
	HasFill    bool
}

type computedMetric struct {
	def  ComputedMetricDef
	expr expr.Expr
	deps []string // metric / computed-metric names referenced
}

// SortKey orders query output by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// QueryDef is a stored query definition.
type QueryDef struct {
	Name               string
	Metrics            []string
	ComputedMetrics    []string
	Dimensions         []string
	Having             string
	DropNullDimensions bool
	Sort               []SortKey
}

type storedQuery struct {
	def    QueryDef
	having expr.Expr // nil when no having predicate
}

func cloneQueryDef(def QueryDef) QueryDef {
	out := def
	out.Metrics = append([]string(nil), def.Metrics...)
	out.ComputedMetrics = append([]string(nil), def.ComputedMetrics...)
	out.Dimensions = append([]string(nil), def.Dimensions...)
	out.Sort = append([]SortKey(nil), def.Sort...)
	return out
}
