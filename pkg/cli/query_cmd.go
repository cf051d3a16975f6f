package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
)

func newQueryCmd(datasetDir *string) *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "query <name>",
		Short: "Run a stored query",
		Long: `Run a stored query against the dataset. Filters narrow the result:

  cube query "revenue by category" --filter "Region=North,South" --filter "Category=Bikes"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadCube(*datasetDir)
			if err != nil {
				return err
			}

			criteria, err := parseFilters(filters)
			if err != nil {
				return err
			}
			if len(criteria) > 0 {
				if err := h.FilterState(cube.StateCurrent, criteria); err != nil {
					return err
				}
			}

			res, err := h.Query(args[0])
			if err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"columns": res.Columns,
					"rows":    res.Rows,
				})
			}
			return printTable(cmd.OutOrStdout(), res.Columns, res.Rows)
		},
	}

	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, `dimension filter as "Dimension=Value1,Value2" (repeatable)`)
	return cmd
}

// parseFilters turns repeated --filter flags into criteria. Values are
// comma-separated and combine as alternatives within one dimension.
func parseFilters(filters []string) (cube.Criteria, error) {
	criteria := cube.Criteria{}
	for _, f := range filters {
		dim, rest, ok := strings.Cut(f, "=")
		if !ok || dim == "" {
			return nil, fmt.Errorf("invalid filter %q: expected Dimension=Value1,Value2", f)
		}
		var values []string
		for _, v := range strings.Split(rest, ",") {
			if v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("invalid filter %q: no values", f)
		}
		criteria[dim] = append(criteria[dim], values...)
	}
	return criteria, nil
}

func newDimensionsCmd(datasetDir *string) *cobra.Command {
	var withValues bool

	cmd := &cobra.Command{
		Use:   "dimensions",
		Short: "List dimensions, optionally with their distinct values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadCube(*datasetDir)
			if err != nil {
				return err
			}

			dims := h.Dimensions()
			if !withValues {
				if getOutputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), map[string][]string{"dimensions": dims})
				}
				rows := make([][]string, len(dims))
				for i, d := range dims {
					rows[i] = []string{d}
				}
				return printStringTable(cmd.OutOrStdout(), []string{"DIMENSION"}, rows)
			}

			values, err := h.DimensionValues(dims, cube.StateUnfiltered)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), values)
			}
			rows := make([][]string, len(dims))
			for i, d := range dims {
				rows[i] = []string{d, strings.Join(values[d], ", ")}
			}
			return printStringTable(cmd.OutOrStdout(), []string{"DIMENSION", "VALUES"}, rows)
		},
	}

	cmd.Flags().BoolVar(&withValues, "values", false, "include distinct values per dimension")
	return cmd
}

func newMetricsCmd(datasetDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "List metric and computed metric definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadCube(*datasetDir)
			if err != nil {
				return err
			}

			metrics := h.Metrics()
			computed := h.ComputedMetrics()

			if getOutputFormat(cmd) == "json" {
				type metricOut struct {
					Name        string       `json:"name"`
					Expression  string       `json:"expression"`
					Aggregation string       `json:"aggregation,omitempty"`
					Fillna      domain.Value `json:"fillna,omitempty"`
				}
				out := make([]metricOut, 0, len(metrics)+len(computed))
				for _, m := range metrics {
					out = append(out, metricOut{Name: m.Name, Expression: m.Expression, Aggregation: m.Aggregation.Name()})
				}
				for _, cm := range computed {
					o := metricOut{Name: cm.Name, Expression: cm.Expression, Aggregation: "computed"}
					if cm.HasFill {
						o.Fillna = cm.FillValue
					}
					out = append(out, o)
				}
				return printJSON(cmd.OutOrStdout(), out)
			}

			rows := make([][]string, 0, len(metrics)+len(computed))
			for _, m := range metrics {
				rows = append(rows, []string{m.Name, m.Aggregation.Name(), m.Expression})
			}
			for _, cm := range computed {
				rows = append(rows, []string{cm.Name, "computed", cm.Expression})
			}
			return printStringTable(cmd.OutOrStdout(), []string{"NAME", "AGGREGATION", "EXPRESSION"}, rows)
		},
	}
}

func newQueriesCmd(datasetDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "queries",
		Short: "List stored queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := loadCube(*datasetDir)
			if err != nil {
				return err
			}

			defs := h.Queries()
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), defs)
			}
			rows := make([][]string, len(defs))
			for i, def := range defs {
				selected := append(append([]string{}, def.Metrics...), def.ComputedMetrics...)
				rows[i] = []string{def.Name, strings.Join(def.Dimensions, ", "), strings.Join(selected, ", ")}
			}
			return printStringTable(cmd.OutOrStdout(), []string{"NAME", "DIMENSIONS", "METRICS"}, rows)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": version, "commit": commit})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cube version %s (commit: %s)\n", version, commit)
			return nil
		},
	}
}
