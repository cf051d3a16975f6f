package dataset

// SupportedAPIVersion is the only accepted apiVersion in cube.yaml.
const SupportedAPIVersion = "cube/v1"

// KindCube is the only accepted kind in cube.yaml.
const KindCube = "Cube"

// CubeDoc is the root document of a dataset directory's cube.yaml.
type CubeDoc struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
	Spec       CubeSpec   `yaml:"spec"`
}

// ObjectMeta holds common metadata for the cube resource.
type ObjectMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// CubeSpec declares the tables, relationships, metrics, and queries of one
// dataset.
type CubeSpec struct {
	Tables          []TableSpec          `yaml:"tables"`
	Relationships   []RelationshipSpec   `yaml:"relationships,omitempty"`
	Metrics         []MetricSpec         `yaml:"metrics,omitempty"`
	ComputedMetrics []ComputedMetricSpec `yaml:"computed_metrics,omitempty"`
	Queries         []QuerySpec          `yaml:"queries,omitempty"`
	MaxJoinRows     int                  `yaml:"max_join_rows,omitempty"`
}

// TableSpec binds a table name to a CSV file, with optional per-column
// overrides.
type TableSpec struct {
	Name      string       `yaml:"name"`
	File      string       `yaml:"file"`
	Separator string       `yaml:"separator,omitempty"`
	Columns   []ColumnSpec `yaml:"columns,omitempty"`
}

// ColumnSpec overrides inference for one CSV column. Type is "number" or
// "string"; currency marks a numeric column whose cells carry currency
// formatting ("$1,234.56").
type ColumnSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type,omitempty"`
	Currency bool   `yaml:"currency,omitempty"`
}

// RelationshipSpec declares a join key as "Table.Column" endpoints.
type RelationshipSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// MetricSpec declares a metric. Aggregation is one of sum, mean, min, max,
// count, count-distinct, or starlark; a starlark aggregation carries its
// script in Script.
type MetricSpec struct {
	Name        string `yaml:"name"`
	Expression  string `yaml:"expression"`
	Aggregation string `yaml:"aggregation"`
	Script      string `yaml:"script,omitempty"`
}

// ComputedMetricSpec declares a post-aggregation metric. Fillna, when
// present, replaces undefined results.
type ComputedMetricSpec struct {
	Name       string   `yaml:"name"`
	Expression string   `yaml:"expression"`
	Fillna     *float64 `yaml:"fillna,omitempty"`
}

// QuerySpec declares a stored query.
type QuerySpec struct {
	Name               string        `yaml:"name"`
	Dimensions         []string      `yaml:"dimensions,omitempty"`
	Metrics            []string      `yaml:"metrics,omitempty"`
	ComputedMetrics    []string      `yaml:"computed_metrics,omitempty"`
	Having             string        `yaml:"having,omitempty"`
	DropNullDimensions bool          `yaml:"drop_null_dimensions,omitempty"`
	Sort               []SortKeySpec `yaml:"sort,omitempty"`
}

// SortKeySpec orders query output by one column.
type SortKeySpec struct {
	Column string `yaml:"column"`
	Desc   bool   `yaml:"desc,omitempty"`
}
