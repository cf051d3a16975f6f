// Package expr implements the small expression language used for row-level
// metric expressions, computed metrics, and having predicates. Expressions
// are parsed once at definition time into an AST and evaluated against a
// name-lookup environment, never re-parsed per row.
//
// Grammar sketch:
//
//	expr    = or
//	or      = and { "or" and }
//	and     = cmp { "and" cmp }
//	cmp     = sum [ ("==" | "=" | "!=" | "<" | "<=" | ">" | ">=") sum ]
//	sum     = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = [ "-" | "not" ] primary
//	primary = number | 'string' | [Bracketed Ref] | ident "(" args ")" | "(" expr ")"
package expr

// Expr is a parsed expression node.
type Expr interface {
	exprNode()
}

// Literal is a constant: float64, string, or bool.
type Literal struct {
	Value interface{}
}

func (*Literal) exprNode() {}

// Ref references a column or metric by name, written as [Name].
type Ref struct {
	Name string
}

func (*Ref) exprNode() {}

// Unary is a prefix operation: "-" or "not".
type Unary struct {
	Op string
	X  Expr
}

func (*Unary) exprNode() {}

// Binary is an infix operation.
type Binary struct {
	Op    string // + - * / == != < <= > >= and or
	Left  Expr
	Right Expr
}

func (*Binary) exprNode() {}

// Call is a function call: abs, round, coalesce, if.
type Call struct {
	Name string
	Args []Expr
}

func (*Call) exprNode() {}

// Refs returns the names referenced by the expression, in first-appearance
// order without duplicates.
func Refs(e Expr) []string {
	var names []string
	seen := map[string]bool{}
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case *Ref:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case *Unary:
			walk(n.X)
		case *Binary:
			walk(n.Left)
			walk(n.Right)
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(e)
	return names
}
