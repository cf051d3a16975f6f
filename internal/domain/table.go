package domain

import (
	"strconv"
	"strings"
)

// ColumnType classifies the values a column may hold.
type ColumnType string

const (
	ColumnTypeNumber ColumnType = "NUMBER"
	ColumnTypeString ColumnType = "STRING"
)

// Value is a single cell. Valid dynamic types are float64, string, bool,
// and nil (null). Tables restrict cells to float64/string/nil; bool appears
// only as an expression result.
type Value = interface{}

// Column is a named, typed sequence of cells.
type Column struct {
	Name   string
	Type   ColumnType
	Values []Value
}

// Table is a named, ordered sequence of columns with positionally aligned rows.
type Table struct {
	Name    string
	Columns []Column

	byName map[string]int
}

// NewTable builds a table, validating that the column set is rectangular
// and free of internal name collisions.
func NewTable(name string, columns ...Column) (*Table, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrSchema("table name is required")
	}
	if len(columns) == 0 {
		return nil, ErrSchema("table %q has no columns", name)
	}

	byName := make(map[string]int, len(columns))
	rows := len(columns[0].Values)
	for i, col := range columns {
		if strings.TrimSpace(col.Name) == "" {
			return nil, ErrSchema("table %q: column %d has no name", name, i)
		}
		if _, exists := byName[col.Name]; exists {
			return nil, ErrSchema("table %q: duplicate column %q", name, col.Name)
		}
		if len(col.Values) != rows {
			return nil, ErrSchema("table %q: column %q has %d rows, expected %d", name, col.Name, len(col.Values), rows)
		}
		if col.Type != ColumnTypeNumber && col.Type != ColumnTypeString {
			return nil, ErrSchema("table %q: column %q has invalid type %q", name, col.Name, col.Type)
		}
		byName[col.Name] = i
	}

	return &Table{Name: name, Columns: columns, byName: byName}, nil
}

// NumRows returns the row count of the table.
func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// Column returns the named column, or nil when absent.
func (t *Table) Column(name string) *Column {
	idx, ok := t.byName[name]
	if !ok {
		return nil
	}
	return &t.Columns[idx]
}

// HasColumn reports whether the table owns the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Relationship declares a join key between two tables. The graph formed by
// all relationships is undirected.
type Relationship struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// Validate checks that the relationship is well-formed.
func (r Relationship) Validate() error {
	if r.LeftTable == "" || r.LeftColumn == "" {
		return ErrSchema("relationship: left side is incomplete")
	}
	if r.RightTable == "" || r.RightColumn == "" {
		return ErrSchema("relationship: right side is incomplete")
	}
	if r.LeftTable == r.RightTable {
		return ErrSchema("relationship: self-join on table %q is not supported", r.LeftTable)
	}
	return nil
}

// String renders the relationship as "Left.Col = Right.Col".
func (r Relationship) String() string {
	return r.LeftTable + "." + r.LeftColumn + " = " + r.RightTable + "." + r.RightColumn
}

// FormatValue renders a cell for display and for filter matching keys.
// Numbers drop a trailing ".0" so 42.0 and "42" compare equal.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return x
	default:
		return ""
	}
}
