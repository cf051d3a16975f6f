package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cube-demo/internal/domain"
)

// getOutputFormat returns the effective output format from the root command's
// persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes a tab-aligned table. Nil cells render as "-".
func printTable(w io.Writer, columns []string, rows [][]domain.Value) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			if cell == nil {
				fmt.Fprint(tw, "-")
			} else {
				fmt.Fprint(tw, domain.FormatValue(cell))
			}
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func printStringTable(w io.Writer, columns []string, rows [][]string) error {
	values := make([][]domain.Value, len(rows))
	for i, row := range rows {
		values[i] = make([]domain.Value, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return printTable(w, columns, values)
}
