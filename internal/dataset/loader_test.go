package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cube-demo/internal/cube"
)

const fixtureYAML = `apiVersion: cube/v1
kind: Cube
metadata:
  name: retail-demo
spec:
  tables:
    - name: Sales
      file: sales.csv
      columns:
        - name: Unit Price
          currency: true
    - name: Product
      file: product.csv
  relationships:
    - from: Sales.ProductID
      to: Product.ProductID
  metrics:
    - name: Revenue
      expression: "[Unit Price] * [Quantity]"
      aggregation: sum
    - name: Orders
      expression: "[OrderID]"
      aggregation: nunique
    - name: Spread
      expression: "[Unit Price]"
      aggregation: starlark
      script: |
        nums = [v for v in values if v != None]
        if not nums:
            return None
        return max(nums) - min(nums)
  computed_metrics:
    - name: Double Revenue
      expression: "[Revenue] * 2"
      fillna: 0
  queries:
    - name: revenue by category
      dimensions: [Category]
      metrics: [Revenue, Orders]
      computed_metrics: [Double Revenue]
      drop_null_dimensions: true
      sort:
        - column: Revenue
          desc: true
`

const salesCSV = `OrderID,ProductID,Quantity,Unit Price
1001,1,2,"$1,000.50"
1002,2,1,$700.00
1003,1,3,$999.50
`

const productCSV = `ProductID,Category
1,Bikes
2,Clothing
`

func writeFixture(t *testing.T, cubeYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.yaml"), []byte(cubeYAML), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sales.csv"), []byte(salesCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product.csv"), []byte(productCSV), 0o600))
	return dir
}

func TestLoad_BuildsWorkingCube(t *testing.T) {
	h, err := Load(writeFixture(t, fixtureYAML))
	require.NoError(t, err)

	res, err := h.Query("revenue by category")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []string{"Category", "Revenue", "Orders", "Double Revenue"}, res.Columns)

	// Bikes: 2*1000.50 + 3*999.50 = 4999.50, sorted before Clothing (700)
	assert.Equal(t, "Bikes", res.Rows[0][0])
	assert.Equal(t, 4999.5, res.Rows[0][1])
	assert.Equal(t, 2.0, res.Rows[0][2])
	assert.Equal(t, 9999.0, res.Rows[0][3])
	assert.Equal(t, "Clothing", res.Rows[1][0])

	// starlark aggregation is usable after load
	require.NoError(t, h.DefineQuery(cube.QueryDef{Name: "spread", Metrics: []string{"Spread"}}))
	spread, err := h.Query("spread")
	require.NoError(t, err)
	assert.Equal(t, 300.5, spread.Rows[0][0])
}

func TestLoad_RejectsBadEnvelope(t *testing.T) {
	cases := map[string]string{
		"wrong apiVersion": "apiVersion: cube/v2\nkind: Cube\nspec:\n  tables:\n    - name: T\n      file: sales.csv\n",
		"wrong kind":       "apiVersion: cube/v1\nkind: Dataset\nspec:\n  tables:\n    - name: T\n      file: sales.csv\n",
		"no tables":        "apiVersion: cube/v1\nkind: Cube\nspec: {}\n",
		"unknown field":    "apiVersion: cube/v1\nkind: Cube\nbogus: true\nspec:\n  tables:\n    - name: T\n      file: sales.csv\n",
	}
	for name, yml := range cases {
		_, err := Load(writeFixture(t, yml))
		assert.Error(t, err, name)
	}
}

func TestLoad_RejectsUnknownAggregation(t *testing.T) {
	yml := `apiVersion: cube/v1
kind: Cube
spec:
  tables:
    - name: Sales
      file: sales.csv
  metrics:
    - name: Revenue
      expression: "[Quantity]"
      aggregation: median
`
	_, err := Load(writeFixture(t, yml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown aggregation")
}

func TestLoad_RejectsMalformedRelationship(t *testing.T) {
	yml := `apiVersion: cube/v1
kind: Cube
spec:
  tables:
    - name: Sales
      file: sales.csv
    - name: Product
      file: product.csv
  relationships:
    - from: Sales
      to: Product.ProductID
`
	_, err := Load(writeFixture(t, yml))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected Table.Column")
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoad_MissingCSVFile(t *testing.T) {
	dir := t.TempDir()
	yml := `apiVersion: cube/v1
kind: Cube
spec:
  tables:
    - name: Sales
      file: missing.csv
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cube.yaml"), []byte(yml), 0o600))
	_, err := Load(dir)
	require.Error(t, err)
}
