// Package testutil provides shared fixtures for tests across the module.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
)

// NewRetailCube builds a small fully-defined cube: Sales joined to Product,
// with Revenue/Cost metrics, Margin computed metrics, and one stored query.
func NewRetailCube(t *testing.T) *cube.Hypercube {
	t.Helper()

	product, err := domain.NewTable("Product",
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 3.0}},
		domain.Column{Name: "Category", Type: domain.ColumnTypeString, Values: []domain.Value{"Bikes", "Clothing", "Accessories"}},
		domain.Column{Name: "Standard Cost", Type: domain.ColumnTypeNumber, Values: []domain.Value{300.0, 20.0, 5.0}},
	)
	require.NoError(t, err)

	sales, err := domain.NewTable("Sales",
		domain.Column{Name: "OrderID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 3.0, 4.0}},
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 1.0, 2.0, 3.0}},
		domain.Column{Name: "Quantity", Type: domain.ColumnTypeNumber, Values: []domain.Value{2.0, 1.0, 4.0, 10.0}},
		domain.Column{Name: "Unit Price", Type: domain.ColumnTypeNumber, Values: []domain.Value{500.0, 450.0, 30.0, 8.0}},
	)
	require.NoError(t, err)

	h, err := cube.Build(
		map[string]*domain.Table{"Product": product, "Sales": sales},
		[]domain.Relationship{{
			LeftTable: "Sales", LeftColumn: "ProductID",
			RightTable: "Product", RightColumn: "ProductID",
		}},
	)
	require.NoError(t, err)

	require.NoError(t, h.DefineMetric(cube.MetricDef{
		Name: "Revenue", Expression: "[Unit Price] * [Quantity]", Aggregation: cube.Sum(),
	}))
	require.NoError(t, h.DefineMetric(cube.MetricDef{
		Name: "Cost", Expression: "[Standard Cost] * [Quantity]", Aggregation: cube.Sum(),
	}))
	require.NoError(t, h.DefineComputedMetric(cube.ComputedMetricDef{
		Name: "Margin", Expression: "[Revenue] - [Cost]",
	}))
	require.NoError(t, h.DefineComputedMetric(cube.ComputedMetricDef{
		Name: "Margin %", Expression: "[Margin] / [Revenue] * 100", FillValue: 0.0, HasFill: true,
	}))
	require.NoError(t, h.DefineQuery(cube.QueryDef{
		Name:            "revenue by category",
		Dimensions:      []string{"Category"},
		Metrics:         []string{"Revenue", "Cost"},
		ComputedMetrics: []string{"Margin", "Margin %"},
		Sort:            []cube.SortKey{{Column: "Revenue", Descending: true}},
	}))
	return h
}
