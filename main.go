// Demo program: builds a small retail cube in code, defines metrics and
// filter states, and prints a few query results. Run the HTTP server from
// cmd/server and the CLI from cmd/cli.
package main

import (
	"fmt"
	"log"
	"strings"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
)

func printResult(title string, res *cube.Result) {
	fmt.Println()
	fmt.Println("===", title, "===")
	fmt.Println(strings.Join(res.Columns, "\t"))
	fmt.Println(strings.Repeat("-", 72))
	for _, row := range res.Rows {
		parts := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				parts[i] = "-"
			} else {
				parts[i] = domain.FormatValue(v)
			}
		}
		fmt.Println(strings.Join(parts, "\t"))
	}
}

func buildDemoCube() (*cube.Hypercube, error) {
	product, err := domain.NewTable("Product",
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 3.0, 4.0}},
		domain.Column{Name: "Product Name", Type: domain.ColumnTypeString, Values: []domain.Value{"Road Bike", "Mountain Bike", "Jersey", "Water Bottle"}},
		domain.Column{Name: "Category", Type: domain.ColumnTypeString, Values: []domain.Value{"Bikes", "Bikes", "Clothing", "Accessories"}},
		domain.Column{Name: "Standard Cost", Type: domain.ColumnTypeNumber, Values: []domain.Value{300.0, 450.0, 20.0, 5.0}},
	)
	if err != nil {
		return nil, err
	}

	customer, err := domain.NewTable("Customer",
		domain.Column{Name: "CustomerID", Type: domain.ColumnTypeNumber, Values: []domain.Value{10.0, 20.0, 30.0}},
		domain.Column{Name: "Region", Type: domain.ColumnTypeString, Values: []domain.Value{"North", "South", "North"}},
	)
	if err != nil {
		return nil, err
	}

	sales, err := domain.NewTable("Sales",
		domain.Column{Name: "OrderID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1001.0, 1001.0, 1002.0, 1003.0, 1004.0, 1005.0}},
		domain.Column{Name: "ProductID", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 3.0, 2.0, 1.0, 4.0, 3.0}},
		domain.Column{Name: "CustomerID", Type: domain.ColumnTypeNumber, Values: []domain.Value{10.0, 10.0, 20.0, 30.0, 20.0, 30.0}},
		domain.Column{Name: "Quantity", Type: domain.ColumnTypeNumber, Values: []domain.Value{1.0, 2.0, 1.0, 1.0, 4.0, 3.0}},
		domain.Column{Name: "Unit Price", Type: domain.ColumnTypeNumber, Values: []domain.Value{550.0, 35.0, 800.0, 550.0, 9.0, 35.0}},
	)
	if err != nil {
		return nil, err
	}

	h, err := cube.Build(
		map[string]*domain.Table{"Product": product, "Customer": customer, "Sales": sales},
		[]domain.Relationship{
			{LeftTable: "Sales", LeftColumn: "ProductID", RightTable: "Product", RightColumn: "ProductID"},
			{LeftTable: "Sales", LeftColumn: "CustomerID", RightTable: "Customer", RightColumn: "CustomerID"},
		},
	)
	if err != nil {
		return nil, err
	}

	metrics := []cube.MetricDef{
		{Name: "Revenue", Expression: "[Unit Price] * [Quantity]", Aggregation: cube.Sum()},
		{Name: "Cost", Expression: "[Standard Cost] * [Quantity]", Aggregation: cube.Sum()},
		{Name: "Orders", Expression: "[OrderID]", Aggregation: cube.CountDistinct()},
		{Name: "Avg Price", Expression: "[Unit Price]", Aggregation: cube.Mean()},
	}
	for _, m := range metrics {
		if err := h.DefineMetric(m); err != nil {
			return nil, err
		}
	}

	computed := []cube.ComputedMetricDef{
		{Name: "Margin", Expression: "[Revenue] - [Cost]", FillValue: 0.0, HasFill: true},
		{Name: "Margin %", Expression: "[Margin] / [Revenue] * 100", FillValue: 0.0, HasFill: true},
	}
	for _, cm := range computed {
		if err := h.DefineComputedMetric(cm); err != nil {
			return nil, err
		}
	}

	queries := []cube.QueryDef{
		{
			Name:            "revenue by category",
			Dimensions:      []string{"Category"},
			Metrics:         []string{"Revenue", "Cost", "Orders"},
			ComputedMetrics: []string{"Margin", "Margin %"},
			Sort:            []cube.SortKey{{Column: "Revenue", Descending: true}},
		},
		{
			Name:       "orders by region",
			Dimensions: []string{"Region"},
			Metrics:    []string{"Orders", "Revenue", "Avg Price"},
			Sort:       []cube.SortKey{{Column: "Region"}},
		},
		{
			Name:            "profitable categories",
			Dimensions:      []string{"Category"},
			Metrics:         []string{"Revenue"},
			ComputedMetrics: []string{"Margin %"},
			Having:          "[Margin %] > 30",
			Sort:            []cube.SortKey{{Column: "Margin %", Descending: true}},
		},
		{
			Name:    "grand totals",
			Metrics: []string{"Revenue", "Cost", "Orders"},
		},
	}
	for _, q := range queries {
		if err := h.DefineQuery(q); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func main() {
	h, err := buildDemoCube()
	if err != nil {
		log.Fatalf("build cube: %v", err)
	}

	fmt.Println("Dimensions:", strings.Join(h.Dimensions(), ", "))

	for _, name := range []string{"revenue by category", "orders by region", "profitable categories", "grand totals"} {
		res, err := h.Query(name)
		if err != nil {
			log.Fatalf("query %q: %v", name, err)
		}
		printResult(name, res)
	}

	// Narrow the current state and watch the same query shrink.
	if err := h.FilterState(cube.StateCurrent, cube.Criteria{"Region": {"North"}}); err != nil {
		log.Fatalf("filter: %v", err)
	}
	res, err := h.Query("revenue by category")
	if err != nil {
		log.Fatalf("query filtered: %v", err)
	}
	printResult("revenue by category (Region = North)", res)

	// Named states query independently of the current one.
	if err := h.FilterState("bikes only", cube.Criteria{"Category": {"Bikes"}}); err != nil {
		log.Fatalf("filter state: %v", err)
	}
	res, err = h.QueryState("orders by region", "bikes only")
	if err != nil {
		log.Fatalf("query state: %v", err)
	}
	printResult("orders by region (state: bikes only)", res)
}
