package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCubeYAML = `apiVersion: cube/v1
kind: Cube
metadata:
  name: retail-demo
spec:
  tables:
    - name: Sales
      file: sales.csv
    - name: Product
      file: product.csv
  relationships:
    - from: Sales.ProductID
      to: Product.ProductID
  metrics:
    - name: Revenue
      expression: "[Unit Price] * [Quantity]"
      aggregation: sum
  computed_metrics:
    - name: Double Revenue
      expression: "[Revenue] * 2"
  queries:
    - name: revenue by category
      dimensions: [Category]
      metrics: [Revenue]
      sort:
        - column: Revenue
          desc: true
`

const testSalesCSV = `OrderID,ProductID,Quantity,Unit Price
1001,1,2,500
1002,2,1,700
1003,1,3,100
`

const testProductCSV = `ProductID,Category
1,Bikes
2,Clothing
`

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.yaml"), []byte(testCubeYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(testSalesCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product.csv"), []byte(testProductCSV), 0o600))
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestQueryCmd_Table(t *testing.T) {
	dir := writeDataset(t)
	out, err := runCLI(t, "query", "revenue by category", "-d", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "Category")
	assert.Contains(t, out, "Bikes")
	assert.Contains(t, out, "1300") // 2*500 + 3*100
	assert.Contains(t, out, "700")
}

func TestQueryCmd_JSONWithFilter(t *testing.T) {
	dir := writeDataset(t)
	out, err := runCLI(t, "query", "revenue by category", "-d", dir, "-o", "json", "-f", "Category=Clothing")
	require.NoError(t, err)

	var body struct {
		Columns []string        `json:"columns"`
		Rows    [][]interface{} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, []string{"Category", "Revenue"}, body.Columns)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "Clothing", body.Rows[0][0])
	assert.Equal(t, 700.0, body.Rows[0][1])
}

func TestQueryCmd_UnknownQuery(t *testing.T) {
	dir := writeDataset(t)
	_, err := runCLI(t, "query", "missing", "-d", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestQueryCmd_BadFilter(t *testing.T) {
	dir := writeDataset(t)
	_, err := runCLI(t, "query", "revenue by category", "-d", dir, "-f", "no-equals-sign")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Dimension=Value1,Value2")
}

func TestDimensionsCmd(t *testing.T) {
	dir := writeDataset(t)
	out, err := runCLI(t, "dimensions", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Category")
	assert.Contains(t, out, "Unit Price")

	out, err = runCLI(t, "dimensions", "--values", "-d", dir, "-o", "json")
	require.NoError(t, err)
	var values map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &values))
	assert.Equal(t, []string{"Bikes", "Clothing"}, values["Category"])
}

func TestMetricsCmd(t *testing.T) {
	dir := writeDataset(t)
	out, err := runCLI(t, "metrics", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Revenue")
	assert.Contains(t, out, "sum")
	assert.Contains(t, out, "Double Revenue")
	assert.Contains(t, out, "computed")
}

func TestQueriesCmd(t *testing.T) {
	dir := writeDataset(t)
	out, err := runCLI(t, "queries", "-d", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "revenue by category")
	assert.Contains(t, out, "Category")
}

func TestRootCmd_RejectsBadOutputFormat(t *testing.T) {
	_, err := runCLI(t, "version", "-o", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestCommandsCmd(t *testing.T) {
	out, err := runCLI(t, "commands", "-o", "json")
	require.NoError(t, err)

	var entries []commandEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))

	paths := make(map[string]commandEntry, len(entries))
	for _, e := range entries {
		paths[e.Path] = e
	}
	require.Contains(t, paths, "query")
	assert.Contains(t, paths, "dimensions")
	assert.NotContains(t, paths, "help")

	var filterFlag *flagEntry
	for i, f := range paths["query"].Flags {
		if f.Name == "filter" {
			filterFlag = &paths["query"].Flags[i]
		}
	}
	require.NotNil(t, filterFlag)
	assert.Equal(t, "f", filterFlag.Short)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "cube version dev")
}
