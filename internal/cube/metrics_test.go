package cube

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-demo/internal/domain"
)

func reduce(t *testing.T, a Aggregation, values ...domain.Value) domain.Value {
	t.Helper()
	v, err := a.fn(values)
	require.NoError(t, err)
	return v
}

func TestAggregations_SkipNulls(t *testing.T) {
	assert.Equal(t, 6.0, reduce(t, Sum(), 1.0, nil, 2.0, 3.0))
	assert.Equal(t, 2.0, reduce(t, Mean(), 1.0, nil, 3.0))
	assert.Equal(t, 1.0, reduce(t, Min(), 3.0, nil, 1.0))
	assert.Equal(t, 3.0, reduce(t, Max(), 3.0, nil, 1.0))
	assert.Equal(t, 2.0, reduce(t, Count(), "a", nil, "b"))
	assert.Equal(t, 2.0, reduce(t, CountDistinct(), "a", "b", nil, "a"))
}

func TestAggregations_AllNullGroups(t *testing.T) {
	assert.Equal(t, 0.0, reduce(t, Sum(), nil, nil))
	assert.Nil(t, reduce(t, Mean(), nil, nil))
	assert.Nil(t, reduce(t, Min(), nil))
	assert.Nil(t, reduce(t, Max(), nil))
	assert.Equal(t, 0.0, reduce(t, Count(), nil, nil))
	assert.Equal(t, 0.0, reduce(t, CountDistinct(), nil))
}

func TestAggregations_TypeErrors(t *testing.T) {
	var exprErr *domain.ExpressionError
	for _, a := range []Aggregation{Sum(), Mean(), Min(), Max()} {
		_, err := a.fn([]domain.Value{1.0, "oops"})
		require.ErrorAs(t, err, &exprErr, "aggregation %s", a.Name())
	}
}

func TestCountDistinct_TypeTaggedKeys(t *testing.T) {
	// the number 42 and the string "42" are distinct values
	assert.Equal(t, 2.0, reduce(t, CountDistinct(), 42.0, "42"))
}

func TestCustomAggregation(t *testing.T) {
	last := Custom("last", func(values []domain.Value) (domain.Value, error) {
		for i := len(values) - 1; i >= 0; i-- {
			if values[i] != nil {
				return values[i], nil
			}
		}
		return nil, nil
	})
	assert.Equal(t, "last", last.Name())
	assert.Equal(t, 3.0, reduce(t, last, 1.0, 3.0, nil))

	h := buildFixture(t)
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Last Price", Expression: "[Unit Price]", Aggregation: last}))
	require.NoError(t, h.DefineQuery(QueryDef{Name: "last price", Metrics: []string{"Last Price"}}))

	res, err := h.Query("last price")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 100.0, res.Rows[0][0])
}

func TestDefineMetric_MissingAggregationRejected(t *testing.T) {
	h := buildFixture(t)
	err := h.DefineMetric(MetricDef{Name: "Broken", Expression: "[Quantity]"})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}
