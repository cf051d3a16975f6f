package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"cube-demo/internal/domain"
)

// readTable parses one CSV file into a domain table. The first record is the
// header. Untyped columns are inferred: a column whose non-empty cells all
// parse as (possibly currency-formatted) numbers is numeric, otherwise it is
// a string column. Empty cells become null either way.
func readTable(path string, spec TableSpec) (*domain.Table, error) {
	f, err := os.Open(path) //nolint:gosec // intentional: reading user-specified dataset files
	if err != nil {
		return nil, fmt.Errorf("open table %q: %w", spec.Name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if spec.Separator != "" {
		sep := []rune(spec.Separator)
		if len(sep) != 1 {
			return nil, fmt.Errorf("table %q: separator must be a single character, got %q", spec.Name, spec.Separator)
		}
		r.Comma = sep[0]
	}

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("table %q: %s has no header row", spec.Name, path)
	}

	header := records[0]
	rows := records[1:]

	overrides := map[string]ColumnSpec{}
	for _, c := range spec.Columns {
		overrides[c.Name] = c
	}

	columns := make([]domain.Column, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		raw := make([]string, len(rows))
		for j, rec := range rows {
			if i < len(rec) {
				raw[j] = strings.TrimSpace(rec[i])
			}
		}

		col, err := buildColumn(name, raw, overrides[name])
		if err != nil {
			return nil, fmt.Errorf("table %q: %w", spec.Name, err)
		}
		columns[i] = col
	}

	t, err := domain.NewTable(spec.Name, columns...)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func buildColumn(name string, raw []string, override ColumnSpec) (domain.Column, error) {
	numeric := override.Currency || override.Type == "number"
	switch override.Type {
	case "", "number", "string":
	default:
		return domain.Column{}, fmt.Errorf("column %q: unknown type %q", name, override.Type)
	}
	if override.Type == "" && !override.Currency {
		numeric = inferNumeric(raw)
	}

	if !numeric {
		values := make([]domain.Value, len(raw))
		for i, cell := range raw {
			if cell == "" {
				continue
			}
			values[i] = cell
		}
		return domain.Column{Name: name, Type: domain.ColumnTypeString, Values: values}, nil
	}

	values := make([]domain.Value, len(raw))
	for i, cell := range raw {
		if cell == "" {
			continue
		}
		f, err := parseNumber(cell)
		if err != nil {
			return domain.Column{}, fmt.Errorf("column %q row %d: %w", name, i+1, err)
		}
		values[i] = f
	}
	return domain.Column{Name: name, Type: domain.ColumnTypeNumber, Values: values}, nil
}

func inferNumeric(raw []string) bool {
	sawValue := false
	for _, cell := range raw {
		if cell == "" {
			continue
		}
		sawValue = true
		if _, err := parseNumber(cell); err != nil {
			return false
		}
	}
	return sawValue
}

// parseNumber parses a numeric cell, accepting currency formatting:
// "$1,234.56" and "(12.30)" (accounting negative) both parse.
func parseNumber(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", cell)
	}
	if negative {
		f = -f
	}
	return f, nil
}
