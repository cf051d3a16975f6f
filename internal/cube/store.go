// Package cube implements the in-memory multidimensional query engine: a
// table store with a relationship graph, named filter states, metric and
// computed-metric registries, and a grouped-aggregation query executor.
package cube

import (
	"sort"

	"cube-demo/internal/domain"
)

// tableStore owns the input tables and resolves column references to their
// owning tables. Registration order is the sorted table name order, so
// resolution is reproducible regardless of map iteration.
type tableStore struct {
	tables map[string]*domain.Table
	order  []string
	owners map[string][]string // column name -> owning tables, registration order
}

func newTableStore(tables map[string]*domain.Table) (*tableStore, error) {
	if len(tables) == 0 {
		return nil, domain.ErrSchema("at least one table is required")
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	s := &tableStore{
		tables: make(map[string]*domain.Table, len(tables)),
		owners: map[string][]string{},
	}
	for _, name := range names {
		t := tables[name]
		if t == nil {
			return nil, domain.ErrSchema("table %q is nil", name)
		}
		if t.Name != name {
			return nil, domain.ErrSchema("table registered as %q is named %q", name, t.Name)
		}
		s.tables[name] = t
		s.order = append(s.order, name)
		for _, col := range t.ColumnNames() {
			s.owners[col] = append(s.owners[col], name)
		}
	}
	return s, nil
}

func (s *tableStore) table(name string) *domain.Table {
	return s.tables[name]
}

// ownerOf resolves a column reference to its owning table. Columns shared by
// several tables resolve to the first owner in registration order; Build has
// already verified such sharing is backed by a relationship on that column.
func (s *tableStore) ownerOf(column string) (string, error) {
	owners := s.owners[column]
	if len(owners) == 0 {
		return "", domain.ErrUnknownReference("unknown column %q", column)
	}
	return owners[0], nil
}

// dimensions lists every addressable column once, in table then column
// declaration order.
func (s *tableStore) dimensions() []string {
	var dims []string
	seen := map[string]bool{}
	for _, name := range s.order {
		for _, col := range s.tables[name].ColumnNames() {
			if !seen[col] {
				seen[col] = true
				dims = append(dims, col)
			}
		}
	}
	return dims
}

// validateSharedColumns rejects column name collisions that would make a
// dimension ambiguous: a column may appear in several tables only when every
// pair of owners is connected by a declared relationship on that column
// (i.e. it is a join key, so the values are aligned by construction).
func (s *tableStore) validateSharedColumns(g *schemaGraph) error {
	for column, owners := range s.owners {
		if len(owners) < 2 {
			continue
		}
		for i := 0; i < len(owners); i++ {
			for j := i + 1; j < len(owners); j++ {
				if !g.relatedOn(owners[i], owners[j], column) {
					return domain.ErrSchema(
						"column %q is ambiguous: owned by tables %q and %q without a relationship on it",
						column, owners[i], owners[j])
				}
			}
		}
	}
	return nil
}

// joinStep is one directed hop along a resolved join path.
type joinStep struct {
	Rel        domain.Relationship
	From       string
	To         string
	FromColumn string
	ToColumn   string
}

type graphEdge struct {
	rel   domain.Relationship
	index int // declaration order, used as the deterministic tie-break
}

// schemaGraph derives table reachability from declared relationships. The
// graph is validated to be a forest at construction: a relationship that
// connects two already-connected tables would create a second join path, so
// it is rejected up front with AmbiguousJoinError. Path resolution is then
// unique; BFS with declaration-ordered adjacency keeps traversal
// deterministic as well.
type schemaGraph struct {
	adj  map[string][]graphEdge
	rels []domain.Relationship
}

func newSchemaGraph(store *tableStore, rels []domain.Relationship) (*schemaGraph, error) {
	g := &schemaGraph{adj: map[string][]graphEdge{}}

	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] == x {
			return x
		}
		parent[x] = find(parent[x])
		return parent[x]
	}
	for _, name := range store.order {
		parent[name] = name
	}

	for i, rel := range rels {
		if err := rel.Validate(); err != nil {
			return nil, err
		}
		left := store.table(rel.LeftTable)
		if left == nil {
			return nil, domain.ErrSchema("relationship %s: unknown table %q", rel, rel.LeftTable)
		}
		right := store.table(rel.RightTable)
		if right == nil {
			return nil, domain.ErrSchema("relationship %s: unknown table %q", rel, rel.RightTable)
		}
		if !left.HasColumn(rel.LeftColumn) {
			return nil, domain.ErrSchema("relationship %s: table %q has no column %q", rel, rel.LeftTable, rel.LeftColumn)
		}
		if !right.HasColumn(rel.RightColumn) {
			return nil, domain.ErrSchema("relationship %s: table %q has no column %q", rel, rel.RightTable, rel.RightColumn)
		}

		la, ra := find(rel.LeftTable), find(rel.RightTable)
		if la == ra {
			return nil, domain.ErrAmbiguousJoin(
				"relationship %s creates a second join path between %q and %q",
				rel, rel.LeftTable, rel.RightTable)
		}
		parent[la] = ra

		g.rels = append(g.rels, rel)
		g.adj[rel.LeftTable] = append(g.adj[rel.LeftTable], graphEdge{rel: rel, index: i})
		g.adj[rel.RightTable] = append(g.adj[rel.RightTable], graphEdge{rel: rel, index: i})
	}

	return g, nil
}

// relatedOn reports whether tables a and b are directly related by a
// relationship whose key on both sides is the given column.
func (g *schemaGraph) relatedOn(a, b, column string) bool {
	for _, e := range g.adj[a] {
		r := e.rel
		if r.LeftTable == a && r.RightTable == b && r.LeftColumn == column && r.RightColumn == column {
			return true
		}
		if r.RightTable == a && r.LeftTable == b && r.RightColumn == column && r.LeftColumn == column {
			return true
		}
	}
	return false
}

// path returns the ordered join steps connecting from to to. The graph is a
// forest, so the path is unique when it exists.
func (g *schemaGraph) path(from, to string) ([]joinStep, error) {
	if from == to {
		return nil, nil
	}

	type cameFrom struct {
		prev string
		edge graphEdge
	}
	visited := map[string]cameFrom{from: {}}
	queue := []string{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.adj[cur] {
			next := e.rel.RightTable
			if next == cur {
				next = e.rel.LeftTable
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = cameFrom{prev: cur, edge: e}
			if next == to {
				queue = nil
				break
			}
			queue = append(queue, next)
		}
	}

	if _, ok := visited[to]; !ok {
		return nil, domain.ErrJoinResolution("no join path from %q to %q", from, to)
	}

	var steps []joinStep
	for cur := to; cur != from; {
		cf := visited[cur]
		step := joinStep{Rel: cf.edge.rel, From: cf.prev, To: cur}
		if cf.edge.rel.LeftTable == cf.prev {
			step.FromColumn = cf.edge.rel.LeftColumn
			step.ToColumn = cf.edge.rel.RightColumn
		} else {
			step.FromColumn = cf.edge.rel.RightColumn
			step.ToColumn = cf.edge.rel.LeftColumn
		}
		steps = append(steps, step)
		cur = cf.prev
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return steps, nil
}
