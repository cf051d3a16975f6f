// Package dataset loads declarative cube definitions: a cube.yaml describing
// tables, relationships, metrics, and queries, plus the CSV files it
// references.
package dataset

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"cube-demo/internal/cube"
	"cube-demo/internal/domain"
)

// Load reads cube.yaml from the dataset directory, ingests the referenced
// CSV files, and returns a fully defined engine.
func Load(dir string) (*cube.Hypercube, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset directory: %s is not a directory", dir)
	}

	doc, err := loadCubeDoc(filepath.Join(dir, "cube.yaml"))
	if err != nil {
		return nil, err
	}
	return buildFromSpec(dir, doc.Spec)
}

func loadCubeDoc(path string) (*CubeDoc, error) {
	data, err := os.ReadFile(path) //nolint:gosec // intentional: reading user-specified dataset files
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc CubeDoc
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if doc.APIVersion != SupportedAPIVersion {
		return nil, fmt.Errorf("%s: unsupported apiVersion %q (expected %q)", path, doc.APIVersion, SupportedAPIVersion)
	}
	if doc.Kind != KindCube {
		return nil, fmt.Errorf("%s: unexpected kind %q (expected %q)", path, doc.Kind, KindCube)
	}
	if len(doc.Spec.Tables) == 0 {
		return nil, fmt.Errorf("%s: spec.tables is empty", path)
	}
	return &doc, nil
}

func buildFromSpec(dir string, spec CubeSpec) (*cube.Hypercube, error) {
	tables := make(map[string]*domain.Table, len(spec.Tables))
	for _, ts := range spec.Tables {
		if ts.Name == "" || ts.File == "" {
			return nil, fmt.Errorf("table declaration needs both name and file, got name=%q file=%q", ts.Name, ts.File)
		}
		if _, exists := tables[ts.Name]; exists {
			return nil, fmt.Errorf("table %q is declared twice", ts.Name)
		}
		t, err := readTable(filepath.Join(dir, ts.File), ts)
		if err != nil {
			return nil, err
		}
		tables[ts.Name] = t
	}

	rels := make([]domain.Relationship, 0, len(spec.Relationships))
	for _, rs := range spec.Relationships {
		rel, err := parseRelationship(rs)
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}

	var opts []cube.Option
	if spec.MaxJoinRows > 0 {
		opts = append(opts, cube.WithMaxJoinRows(spec.MaxJoinRows))
	}

	h, err := cube.Build(tables, rels, opts...)
	if err != nil {
		return nil, err
	}

	for _, ms := range spec.Metrics {
		agg, err := resolveAggregation(ms)
		if err != nil {
			return nil, err
		}
		if err := h.DefineMetric(cube.MetricDef{Name: ms.Name, Expression: ms.Expression, Aggregation: agg}); err != nil {
			return nil, fmt.Errorf("metric %q: %w", ms.Name, err)
		}
	}

	for _, cs := range spec.ComputedMetrics {
		def := cube.ComputedMetricDef{Name: cs.Name, Expression: cs.Expression}
		if cs.Fillna != nil {
			def.FillValue = *cs.Fillna
			def.HasFill = true
		}
		if err := h.DefineComputedMetric(def); err != nil {
			return nil, fmt.Errorf("computed metric %q: %w", cs.Name, err)
		}
	}

	for _, qs := range spec.Queries {
		sortKeys := make([]cube.SortKey, len(qs.Sort))
		for i, sk := range qs.Sort {
			sortKeys[i] = cube.SortKey{Column: sk.Column, Descending: sk.Desc}
		}
		def := cube.QueryDef{
			Name:               qs.Name,
			Dimensions:         qs.Dimensions,
			Metrics:            qs.Metrics,
			ComputedMetrics:    qs.ComputedMetrics,
			Having:             qs.Having,
			DropNullDimensions: qs.DropNullDimensions,
			Sort:               sortKeys,
		}
		if err := h.DefineQuery(def); err != nil {
			return nil, fmt.Errorf("query %q: %w", qs.Name, err)
		}
	}

	return h, nil
}

// parseRelationship splits "Table.Column" endpoints. The table name is
// everything before the first dot, so column names may contain dots.
func parseRelationship(rs RelationshipSpec) (domain.Relationship, error) {
	fromTable, fromCol, ok := strings.Cut(rs.From, ".")
	if !ok || fromTable == "" || fromCol == "" {
		return domain.Relationship{}, fmt.Errorf("relationship from %q: expected Table.Column", rs.From)
	}
	toTable, toCol, ok := strings.Cut(rs.To, ".")
	if !ok || toTable == "" || toCol == "" {
		return domain.Relationship{}, fmt.Errorf("relationship to %q: expected Table.Column", rs.To)
	}
	return domain.Relationship{
		LeftTable: fromTable, LeftColumn: fromCol,
		RightTable: toTable, RightColumn: toCol,
	}, nil
}

func resolveAggregation(ms MetricSpec) (cube.Aggregation, error) {
	switch ms.Aggregation {
	case "sum":
		return cube.Sum(), nil
	case "mean", "avg":
		return cube.Mean(), nil
	case "min":
		return cube.Min(), nil
	case "max":
		return cube.Max(), nil
	case "count":
		return cube.Count(), nil
	case "count-distinct", "nunique":
		return cube.CountDistinct(), nil
	case "starlark":
		if ms.Script == "" {
			return cube.Aggregation{}, fmt.Errorf("metric %q: starlark aggregation needs a script", ms.Name)
		}
		agg, err := cube.StarlarkReduction(ms.Name, ms.Script)
		if err != nil {
			return cube.Aggregation{}, fmt.Errorf("metric %q: %w", ms.Name, err)
		}
		return agg, nil
	default:
		return cube.Aggregation{}, fmt.Errorf("metric %q: unknown aggregation %q", ms.Name, ms.Aggregation)
	}
}
