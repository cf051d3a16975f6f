package cube

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-demo/internal/domain"
)

// fixtureTables builds a small retail schema: Sales joins Product on
// ProductID and Customer on CustomerID. One sales row references a product
// that does not exist, so joined product columns are null for it.
func fixtureTables(t *testing.T) (map[string]*domain.Table, []domain.Relationship) {
	t.Helper()

	product, err := domain.NewTable("Product",
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 3.0, 4.0}},
		domain.Column{Name: "Product Name", Type: domain.ColumnTypeString, Values: []domain.Value{"Road Bike", "Mountain Bike", "Jersey", "Bottle"}},
		domain.Column{Name: "Category", Type: domain.ColumnTypeString, Values: []domain.Value{"Bikes", "Bikes", "Clothing", "Accessories"}},
		domain.Column{Name: "Standard Cost", Type: domain.ColumnTypeNumber, Values: []domain.Value{300.0, 450.0, 20.0, 5.0}},
	)
	require.NoError(t, err)

	customer, err := domain.NewTable("Customer",
		domain.Column{Name: "CustomerID", Type: domain.ColumnTypeNumber, Values: []domain.Value{10.0, 20.0}},
		domain.Column{Name: "Region", Type: domain.ColumnTypeString, Values: []domain.Value{"North", "South"}},
	)
	require.NoError(t, err)

	sales, err := domain.NewTable("Sales",
		domain.Column{Name: "OrderID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1001.0, 1001.0, 1002.0, 1003.0, 1004.0, 1005.0}},
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 1.0, 3.0, 4.0, 9.0}},
		domain.Column{Name: "CustomerID", Type: domain.ColumnTypeNumber, Values: []domain.Value{10.0, 10.0, 20.0, 20.0, 10.0, 20.0}},
		domain.Column{Name: "Quantity", Type: domain.ColumnTypeNumber, Values: []domain.Value{2.0, 1.0, 1.0, 4.0, 10.0, 1.0}},
		domain.Column{Name: "Unit Price", Type: domain.ColumnTypeNumber, Values: []domain.Value{500.0, 700.0, 500.0, 30.0, 8.0, 100.0}},
	)
	require.NoError(t, err)

	tables := map[string]*domain.Table{
		"Product":  product,
		"Customer": customer,
		"Sales":    sales,
	}
	rels := []domain.Relationship{
		{LeftTable: "Sales", LeftColumn: "ProductID", RightTable: "Product", RightColumn: "ProductID"},
		{LeftTable: "Sales", LeftColumn: "CustomerID", RightTable: "Customer", RightColumn: "CustomerID"},
	}
	return tables, rels
}

func buildFixture(t *testing.T, opts ...Option) *Hypercube {
	t.Helper()
	tables, rels := fixtureTables(t)
	h, err := Build(tables, rels, opts...)
	require.NoError(t, err)
	return h
}

// defineStandardModel registers the metrics, computed metrics, and the main
// query the tests share.
func defineStandardModel(t *testing.T, h *Hypercube) {
	t.Helper()

	require.NoError(t, h.DefineMetric(MetricDef{Name: "Revenue", Expression: "[Unit Price] * [Quantity]", Aggregation: Sum()}))
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Cost", Expression: "[Standard Cost] * [Quantity]", Aggregation: Sum()}))
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Orders", Expression: "[OrderID]", Aggregation: CountDistinct()}))
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Avg Price", Expression: "[Unit Price]", Aggregation: Mean()}))

	require.NoError(t, h.DefineComputedMetric(ComputedMetricDef{Name: "Margin", Expression: "[Revenue] - [Cost]", FillValue: 0.0, HasFill: true}))
	require.NoError(t, h.DefineComputedMetric(ComputedMetricDef{Name: "Margin %", Expression: "[Margin] / [Revenue] * 100", FillValue: 0.0, HasFill: true}))

	require.NoError(t, h.DefineQuery(QueryDef{
		Name:            "revenue by category",
		Dimensions:      []string{"Category"},
		Metrics:         []string{"Revenue", "Cost"},
		ComputedMetrics: []string{"Margin", "Margin %"},
	}))
}

func rowsByFirstColumn(res *Result) map[string][]domain.Value {
	out := map[string][]domain.Value{}
	for _, row := range res.Rows {
		out[domain.FormatValue(row[0])] = row
	}
	return out
}

func TestQuery_GroupedRevenue(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	res, err := h.Query("revenue by category")
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Revenue", "Cost", "Margin", "Margin %"}, res.Columns)
	require.Len(t, res.Rows, 4)

	// groups appear in first-seen row order
	assert.Equal(t, "Bikes", res.Rows[0][0])
	assert.Equal(t, "Clothing", res.Rows[1][0])
	assert.Equal(t, "Accessories", res.Rows[2][0])
	assert.Nil(t, res.Rows[3][0])

	byCat := rowsByFirstColumn(res)
	assert.Equal(t, 2200.0, byCat["Bikes"][1])
	assert.Equal(t, 1350.0, byCat["Bikes"][2])
	assert.Equal(t, 850.0, byCat["Bikes"][3])
	assert.InDelta(t, 38.636, byCat["Bikes"][4].(float64), 0.001)

	assert.Equal(t, 120.0, byCat["Clothing"][1])
	assert.Equal(t, 80.0, byCat["Accessories"][1])
	assert.Equal(t, 50.0, byCat["Accessories"][2])

	// unmatched product row: Standard Cost is null, sum skips it
	assert.Equal(t, 100.0, byCat[""][1])
	assert.Equal(t, 0.0, byCat[""][2])
}

func TestQuery_GrandTotalWithoutDimensions(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{Name: "total", Metrics: []string{"Revenue", "Orders"}}))

	res, err := h.Query("total")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 2500.0, res.Rows[0][0])
	assert.Equal(t, 5.0, res.Rows[0][1])
}

func TestQuery_JoinedDimensionAcrossTables(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "orders by region",
		Dimensions: []string{"Region"},
		Metrics:    []string{"Orders"},
	}))

	res, err := h.Query("orders by region")
	require.NoError(t, err)
	byRegion := rowsByFirstColumn(res)
	assert.Equal(t, 2.0, byRegion["North"][1])
	assert.Equal(t, 3.0, byRegion["South"][1])
}

func TestQuery_FilterNarrowsResults(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	require.NoError(t, h.Filter(Criteria{"Category": {"Bikes", "Clothing"}}))
	res, err := h.Query("revenue by category")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byCat := rowsByFirstColumn(res)
	assert.Equal(t, 2200.0, byCat["Bikes"][1])
	assert.Equal(t, 120.0, byCat["Clothing"][1])

	// AND across dimensions: restrict region too
	require.NoError(t, h.Filter(Criteria{"Region": {"North"}}))
	res, err = h.Query("revenue by category")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, 1700.0, res.Rows[0][1])
}

func TestQuery_FilteredResultIsSubsetOfUnfiltered(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	full, err := h.QueryState("revenue by category", StateUnfiltered)
	require.NoError(t, err)

	require.NoError(t, h.Filter(Criteria{"Region": {"South"}}))
	filtered, err := h.Query("revenue by category")
	require.NoError(t, err)

	fullCats := rowsByFirstColumn(full)
	for _, row := range filtered.Rows {
		_, ok := fullCats[domain.FormatValue(row[0])]
		assert.True(t, ok, "filtered group %v missing from unfiltered result", row[0])
	}
	assert.LessOrEqual(t, len(filtered.Rows), len(full.Rows))
}

func TestFilter_EmptyCriteriaResets(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	require.NoError(t, h.Filter(Criteria{"Category": {"Bikes"}}))
	require.NoError(t, h.Filter(Criteria{}))

	assert.Empty(t, h.Filters(StateCurrent))
	res, err := h.Query("revenue by category")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 4)
}

func TestFilter_ResetAllMatchesUnfiltered(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	require.NoError(t, h.Filter(Criteria{"Category": {"Bikes"}}))
	require.NoError(t, h.FilterState("scenario", Criteria{"Region": {"North"}}))
	require.NoError(t, h.ResetFilters(StateAll))

	baseline, err := h.QueryState("revenue by category", StateUnfiltered)
	require.NoError(t, err)
	current, err := h.Query("revenue by category")
	require.NoError(t, err)
	scenario, err := h.QueryState("revenue by category", "scenario")
	require.NoError(t, err)

	assert.Equal(t, baseline.Rows, current.Rows)
	assert.Equal(t, baseline.Rows, scenario.Rows)
}

func TestFilter_UnfilteredStateIsImmutable(t *testing.T) {
	h := buildFixture(t)

	err := h.FilterState(StateUnfiltered, Criteria{"Category": {"Bikes"}})
	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
}

func TestFilter_UnknownDimensionRejected(t *testing.T) {
	h := buildFixture(t)

	err := h.Filter(Criteria{"No Such Column": {"x"}})
	var unknownErr *domain.UnknownReferenceError
	require.ErrorAs(t, err, &unknownErr)
	assert.Empty(t, h.Filters(StateCurrent))
}

func TestFilter_NamedStatesAreIndependent(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	require.NoError(t, h.Filter(Criteria{"Category": {"Bikes"}}))
	require.NoError(t, h.FilterState("scenario", Criteria{"Category": {"Clothing"}}))

	current, err := h.Query("revenue by category")
	require.NoError(t, err)
	scenario, err := h.QueryState("revenue by category", "scenario")
	require.NoError(t, err)

	require.Len(t, current.Rows, 1)
	require.Len(t, scenario.Rows, 1)
	assert.Equal(t, "Bikes", current.Rows[0][0])
	assert.Equal(t, "Clothing", scenario.Rows[0][0])

	names := h.FilterStateNames()
	assert.Contains(t, names, StateCurrent)
	assert.Contains(t, names, StateUnfiltered)
	assert.Contains(t, names, "scenario")
}

func TestQuery_HavingFiltersRows(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:               "profitable categories",
		Dimensions:         []string{"Category"},
		Metrics:            []string{"Revenue"},
		ComputedMetrics:    []string{"Margin %"},
		Having:             "[Margin %] >= 35",
		DropNullDimensions: true,
		Sort:               []SortKey{{Column: "Revenue", Descending: true}},
	}))

	res, err := h.Query("profitable categories")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Bikes", res.Rows[0][0])
	assert.Equal(t, "Accessories", res.Rows[1][0])
}

func TestQuery_HavingSeesUnselectedMetrics(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:               "profitable order counts",
		Dimensions:         []string{"Category"},
		Metrics:            []string{"Orders"},
		ComputedMetrics:    []string{"Margin"},
		Having:             "[Margin %] >= 35",
		DropNullDimensions: true,
	}))

	res, err := h.Query("profitable order counts")
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Orders", "Margin"}, res.Columns)
	require.Len(t, res.Rows, 2)

	byCat := rowsByFirstColumn(res)
	assert.Equal(t, 2.0, byCat["Bikes"][1])
	assert.Equal(t, 850.0, byCat["Bikes"][2])
	assert.Equal(t, 1.0, byCat["Accessories"][1])
	_, hasClothing := byCat["Clothing"]
	assert.False(t, hasClothing, "group below the margin cut must be dropped")
}

func TestQuery_DropNullDimensions(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:               "clean categories",
		Dimensions:         []string{"Category"},
		Metrics:            []string{"Revenue"},
		DropNullDimensions: true,
	}))

	res, err := h.Query("clean categories")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)
	for _, row := range res.Rows {
		assert.NotNil(t, row[0])
	}
}

func TestQuery_SortNullsLast(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "categories sorted",
		Dimensions: []string{"Category"},
		Metrics:    []string{"Revenue"},
		Sort:       []SortKey{{Column: "Category"}},
	}))

	res, err := h.Query("categories sorted")
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	assert.Equal(t, "Accessories", res.Rows[0][0])
	assert.Equal(t, "Bikes", res.Rows[1][0])
	assert.Equal(t, "Clothing", res.Rows[2][0])
	assert.Nil(t, res.Rows[3][0])
}

func TestQuery_SortTiesKeepGroupOrder(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "categories by orders",
		Dimensions: []string{"Category"},
		Metrics:    []string{"Orders"},
		Sort:       []SortKey{{Column: "Orders"}},
	}))

	res, err := h.Query("categories by orders")
	require.NoError(t, err)
	require.Len(t, res.Rows, 4)
	// Clothing, Accessories and the null group all have one order; ties keep
	// first-seen order, Bikes (two orders) comes last.
	assert.Equal(t, "Clothing", res.Rows[0][0])
	assert.Equal(t, "Accessories", res.Rows[1][0])
	assert.Nil(t, res.Rows[2][0])
	assert.Equal(t, "Bikes", res.Rows[3][0])
}

func TestComputedMetric_FillReplacesUndefined(t *testing.T) {
	h := buildFixture(t)
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Revenue", Expression: "[Unit Price] * [Quantity]", Aggregation: Sum()}))
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Zero", Expression: "[Quantity] * 0", Aggregation: Sum()}))
	require.NoError(t, h.DefineComputedMetric(ComputedMetricDef{Name: "Ratio", Expression: "[Revenue] / [Zero]", FillValue: 0.0, HasFill: true}))
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:            "ratios",
		Dimensions:      []string{"Category"},
		ComputedMetrics: []string{"Ratio"},
	}))

	res, err := h.Query("ratios")
	require.NoError(t, err)
	require.NotEmpty(t, res.Rows)
	for _, row := range res.Rows {
		require.NotNil(t, row[1], "fill value must replace undefined division")
		assert.Equal(t, 0.0, row[1])
	}
}

func TestComputedMetric_NoFillStaysNull(t *testing.T) {
	h := buildFixture(t)
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Revenue", Expression: "[Unit Price] * [Quantity]", Aggregation: Sum()}))
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Zero", Expression: "[Quantity] * 0", Aggregation: Sum()}))
	require.NoError(t, h.DefineComputedMetric(ComputedMetricDef{Name: "Ratio", Expression: "[Revenue] / [Zero]"}))
	require.NoError(t, h.DefineQuery(QueryDef{Name: "ratios", ComputedMetrics: []string{"Ratio"}}))

	res, err := h.Query("ratios")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Nil(t, res.Rows[0][0])
}

func TestDefineComputedMetric_SelfReferenceFails(t *testing.T) {
	h := buildFixture(t)

	err := h.DefineComputedMetric(ComputedMetricDef{Name: "Loop", Expression: "[Loop] + 1"})
	var cycleErr *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Empty(t, h.ComputedMetrics())
}

func TestDefineComputedMetric_ForwardReferenceFails(t *testing.T) {
	h := buildFixture(t)

	err := h.DefineComputedMetric(ComputedMetricDef{Name: "A", Expression: "[B] * 2"})
	var unknownErr *domain.UnknownReferenceError
	require.ErrorAs(t, err, &unknownErr)
}

func TestDefine_DuplicateNamesRejected(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	var dupErr *domain.DuplicateNameError
	err := h.DefineMetric(MetricDef{Name: "Revenue", Expression: "[Quantity]", Aggregation: Sum()})
	require.ErrorAs(t, err, &dupErr)

	err = h.DefineComputedMetric(ComputedMetricDef{Name: "Revenue", Expression: "[Cost]"})
	require.ErrorAs(t, err, &dupErr)

	err = h.DefineQuery(QueryDef{Name: "revenue by category", Metrics: []string{"Revenue"}})
	require.ErrorAs(t, err, &dupErr)
}

func TestDefineMetric_UnknownColumnRejected(t *testing.T) {
	h := buildFixture(t)

	err := h.DefineMetric(MetricDef{Name: "Broken", Expression: "[Nope] * 2", Aggregation: Sum()})
	var exprErr *domain.ExpressionError
	require.ErrorAs(t, err, &exprErr)
	assert.Empty(t, h.Metrics())
}

func TestDefineQuery_ValidatesReferences(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	var unknownErr *domain.UnknownReferenceError

	err := h.DefineQuery(QueryDef{Name: "q1", Metrics: []string{"Nope"}})
	require.ErrorAs(t, err, &unknownErr)

	err = h.DefineQuery(QueryDef{Name: "q2", Dimensions: []string{"Nope"}, Metrics: []string{"Revenue"}})
	require.ErrorAs(t, err, &unknownErr)

	err = h.DefineQuery(QueryDef{Name: "q3", Metrics: []string{"Revenue"}, Sort: []SortKey{{Column: "Cost"}}})
	require.ErrorAs(t, err, &unknownErr)

	err = h.DefineQuery(QueryDef{Name: "q4", Metrics: []string{"Revenue"}, Having: "[Nope] > 0"})
	require.ErrorAs(t, err, &unknownErr)

	// having may reach defined metrics outside the query's output
	require.NoError(t, h.DefineQuery(QueryDef{Name: "q4b", Metrics: []string{"Revenue"}, Having: "[Cost] > 0"}))

	var schemaErr *domain.SchemaError
	err = h.DefineQuery(QueryDef{Name: "q5"})
	require.ErrorAs(t, err, &schemaErr)
}

func TestQuery_UnknownQueryName(t *testing.T) {
	h := buildFixture(t)

	_, err := h.Query("missing")
	var unknownErr *domain.UnknownReferenceError
	require.ErrorAs(t, err, &unknownErr)
}

func TestDimensionValues_SortedAndFiltered(t *testing.T) {
	h := buildFixture(t)

	values, err := h.DimensionValues([]string{"Category", "ProductID"}, StateUnfiltered)
	require.NoError(t, err)
	assert.Equal(t, []string{"Accessories", "Bikes", "Clothing"}, values["Category"])
	assert.Equal(t, []string{"1", "2", "3", "4"}, values["ProductID"])

	require.NoError(t, h.Filter(Criteria{"Region": {"North"}}))
	narrowed, err := h.DimensionValues([]string{"Category"}, StateCurrent)
	require.NoError(t, err)
	assert.Equal(t, []string{"Accessories", "Bikes"}, narrowed["Category"])

	// the unfiltered baseline is unaffected by the current selection
	baseline, err := h.DimensionValues([]string{"Category"}, StateUnfiltered)
	require.NoError(t, err)
	assert.Equal(t, []string{"Accessories", "Bikes", "Clothing"}, baseline["Category"])
}

func TestQuery_FilterMatchingNothingYieldsNoRows(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	require.NoError(t, h.Filter(Criteria{"Category": {"Furniture"}}))
	res, err := h.Query("revenue by category")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
}

func TestQuery_MeanAggregation(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "avg price by category",
		Dimensions: []string{"Category"},
		Metrics:    []string{"Avg Price"},
	}))

	res, err := h.Query("avg price by category")
	require.NoError(t, err)
	byCat := rowsByFirstColumn(res)
	assert.InDelta(t, 566.667, byCat["Bikes"][1].(float64), 0.001)
}

func TestQueries_ListedInRegistrationOrder(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)
	require.NoError(t, h.DefineQuery(QueryDef{Name: "another", Metrics: []string{"Revenue"}}))

	defs := h.Queries()
	require.Len(t, defs, 2)
	assert.Equal(t, "revenue by category", defs[0].Name)
	assert.Equal(t, "another", defs[1].Name)

	got, err := h.GetQuery("another")
	require.NoError(t, err)
	assert.Equal(t, []string{"Revenue"}, got.Metrics)
}

func TestQuery_JoinKeepsFactRowsNotDimensionRows(t *testing.T) {
	// Department sorts before Ticket, so table order must not decide the join
	// base: tickets without a department still count, departments without
	// tickets do not.
	department, err := domain.NewTable("Department",
		domain.Column{Name: "DeptID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0}},
		domain.Column{Name: "Dept Name", Type: domain.ColumnTypeString, Values: []domain.Value{"Ops", "Idle"}},
	)
	require.NoError(t, err)
	ticket, err := domain.NewTable("Ticket",
		domain.Column{Name: "TicketDept", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 1.0, 9.0}},
		domain.Column{Name: "Hours", Type: domain.ColumnTypeNumber, Values: []domain.Value{2.0, 3.0, 5.0}},
	)
	require.NoError(t, err)

	h, err := Build(
		map[string]*domain.Table{"Department": department, "Ticket": ticket},
		[]domain.Relationship{{LeftTable: "Ticket", LeftColumn: "TicketDept", RightTable: "Department", RightColumn: "DeptID"}},
	)
	require.NoError(t, err)
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Total Hours", Expression: "[Hours]", Aggregation: Sum()}))
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "hours by department",
		Dimensions: []string{"Dept Name"},
		Metrics:    []string{"Total Hours"},
	}))

	res, err := h.Query("hours by department")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)

	byDept := rowsByFirstColumn(res)
	assert.Equal(t, 5.0, byDept["Ops"][1])
	assert.Equal(t, 5.0, byDept[""][1], "ticket with unknown department keeps its hours")
	_, hasIdle := byDept["Idle"]
	assert.False(t, hasIdle, "department with no tickets forms no group")
}

func TestQuery_SeparatorLikeDimensionValuesStayDistinct(t *testing.T) {
	// The two rows agree byte-for-byte once their dimension values are naively
	// concatenated; they must still land in separate groups.
	log, err := domain.NewTable("Log",
		domain.Column{Name: "Source", Type: domain.ColumnTypeString, Values: []domain.Value{"a\x1fs:b", "a"}},
		domain.Column{Name: "Target", Type: domain.ColumnTypeString, Values: []domain.Value{"c", "b\x1fs:c"}},
		domain.Column{Name: "Hits", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 1.0}},
	)
	require.NoError(t, err)
	h, err := Build(map[string]*domain.Table{"Log": log}, nil)
	require.NoError(t, err)
	require.NoError(t, h.DefineMetric(MetricDef{Name: "Total Hits", Expression: "[Hits]", Aggregation: Sum()}))
	require.NoError(t, h.DefineQuery(QueryDef{
		Name:       "hits by pair",
		Dimensions: []string{"Source", "Target"},
		Metrics:    []string{"Total Hits"},
	}))

	res, err := h.Query("hits by pair")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		assert.Equal(t, 1.0, row[2])
	}
}

func TestQueryState_ReadsDoNotCreateStates(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	assert.Empty(t, h.Filters("ghost"))
	_, err := h.QueryState("revenue by category", "ghost")
	require.NoError(t, err)
	_, err = h.DimensionValues([]string{"Category"}, "ghost")
	require.NoError(t, err)

	assert.Equal(t, []string{StateUnfiltered, StateCurrent}, h.FilterStateNames())
}

func TestQueryState_ConcurrentReadsOnFreshStates(t *testing.T) {
	h := buildFixture(t)
	defineStandardModel(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		state := fmt.Sprintf("reader-%d", i%3)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := h.QueryState("revenue by category", state)
				assert.NoError(t, err)
				_, err = h.DimensionValues([]string{"Category"}, state)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
