package expr

import (
	"math"

	"cube-demo/internal/domain"
)

// Env resolves a referenced name to a value. The second result is false when
// the name is not defined in this environment.
type Env interface {
	Lookup(name string) (domain.Value, bool)
}

// MapEnv is an Env backed by a plain map.
type MapEnv map[string]domain.Value

// Lookup implements Env.
func (m MapEnv) Lookup(name string) (domain.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// Eval evaluates the expression against env. Null operands propagate as nil,
// and undefined arithmetic (division by zero) yields nil rather than an
// error, so fill policies can own that outcome. Type mismatches and unknown
// references return an *domain.ExpressionError.
func Eval(e Expr, env Env) (domain.Value, error) {
	switch n := e.(type) {
	case *Literal:
		return n.Value, nil

	case *Ref:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return nil, domain.ErrExpression("unknown reference [%s]", n.Name)
		}
		return v, nil

	case *Unary:
		x, err := Eval(n.X, env)
		if err != nil {
			return nil, err
		}
		return evalUnary(n.Op, x)

	case *Binary:
		left, err := Eval(n.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := Eval(n.Right, env)
		if err != nil {
			return nil, err
		}
		return evalBinary(n.Op, left, right)

	case *Call:
		args := make([]domain.Value, len(n.Args))
		for i, a := range n.Args {
			v, err := Eval(a, env)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return evalCall(n.Name, args)

	default:
		return nil, domain.ErrExpression("unsupported expression node %T", e)
	}
}

func evalUnary(op string, x domain.Value) (domain.Value, error) {
	if x == nil {
		return nil, nil
	}
	switch op {
	case "-":
		f, ok := x.(float64)
		if !ok {
			return nil, domain.ErrExpression("unary - requires a number, got %T", x)
		}
		return -f, nil
	case "not":
		b, ok := x.(bool)
		if !ok {
			return nil, domain.ErrExpression("not requires a boolean, got %T", x)
		}
		return !b, nil
	}
	return nil, domain.ErrExpression("unknown unary operator %q", op)
}

func evalBinary(op string, left, right domain.Value) (domain.Value, error) {
	switch op {
	case "+", "-", "*", "/":
		return evalArithmetic(op, left, right)
	case "==", "!=", "<", "<=", ">", ">=":
		return evalComparison(op, left, right)
	case "and", "or":
		return evalLogical(op, left, right)
	}
	return nil, domain.ErrExpression("unknown operator %q", op)
}

func evalArithmetic(op string, left, right domain.Value) (domain.Value, error) {
	if left == nil || right == nil {
		return nil, nil
	}
	lf, lok := left.(float64)
	rf, rok := right.(float64)
	if !lok || !rok {
		return nil, domain.ErrExpression("operator %q requires numbers, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, nil // undefined, owned by the fill policy
		}
		return lf / rf, nil
	}
	return nil, domain.ErrExpression("unknown arithmetic operator %q", op)
}

func evalComparison(op string, left, right domain.Value) (domain.Value, error) {
	if left == nil || right == nil {
		return nil, nil
	}

	if lf, lok := left.(float64); lok {
		rf, rok := right.(float64)
		if !rok {
			return compareMismatch(op)
		}
		return applyOrdering(op, compareFloats(lf, rf)), nil
	}
	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return compareMismatch(op)
		}
		switch {
		case ls < rs:
			return applyOrdering(op, -1), nil
		case ls > rs:
			return applyOrdering(op, 1), nil
		default:
			return applyOrdering(op, 0), nil
		}
	}
	if lb, lok := left.(bool); lok {
		rb, rok := right.(bool)
		if !rok {
			return compareMismatch(op)
		}
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
		return nil, domain.ErrExpression("operator %q is not defined for booleans", op)
	}
	return nil, domain.ErrExpression("operator %q is not defined for %T", op, left)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareMismatch handles comparisons across value types: equality is
// decidable (always unequal), ordering is not.
func compareMismatch(op string) (domain.Value, error) {
	switch op {
	case "==":
		return false, nil
	case "!=":
		return true, nil
	}
	return nil, domain.ErrExpression("operator %q requires operands of the same type", op)
}

func applyOrdering(op string, cmp int) bool {
	switch op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

// evalLogical implements Kleene-style and/or: a definite false (for and) or
// true (for or) wins over a null operand; otherwise null propagates.
func evalLogical(op string, left, right domain.Value) (domain.Value, error) {
	lb, lok := toBool(left)
	rb, rok := toBool(right)
	if left != nil && !lok {
		return nil, domain.ErrExpression("%q requires boolean operands, got %T", op, left)
	}
	if right != nil && !rok {
		return nil, domain.ErrExpression("%q requires boolean operands, got %T", op, right)
	}

	switch op {
	case "and":
		if lok && !lb || rok && !rb {
			return false, nil
		}
		if !lok || !rok {
			return nil, nil
		}
		return true, nil
	default: // or
		if lok && lb || rok && rb {
			return true, nil
		}
		if !lok || !rok {
			return nil, nil
		}
		return false, nil
	}
}

func toBool(v domain.Value) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func evalCall(name string, args []domain.Value) (domain.Value, error) {
	switch name {
	case "abs":
		if len(args) != 1 {
			return nil, domain.ErrExpression("abs takes exactly one argument")
		}
		if args[0] == nil {
			return nil, nil
		}
		f, ok := args[0].(float64)
		if !ok {
			return nil, domain.ErrExpression("abs requires a number, got %T", args[0])
		}
		return math.Abs(f), nil

	case "round":
		if len(args) < 1 || len(args) > 2 {
			return nil, domain.ErrExpression("round takes one or two arguments")
		}
		if args[0] == nil {
			return nil, nil
		}
		f, ok := args[0].(float64)
		if !ok {
			return nil, domain.ErrExpression("round requires a number, got %T", args[0])
		}
		digits := 0.0
		if len(args) == 2 {
			d, ok := args[1].(float64)
			if !ok {
				return nil, domain.ErrExpression("round digits must be a number, got %T", args[1])
			}
			digits = d
		}
		scale := math.Pow(10, digits)
		return math.Round(f*scale) / scale, nil

	case "coalesce":
		if len(args) == 0 {
			return nil, domain.ErrExpression("coalesce takes at least one argument")
		}
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil

	case "if":
		if len(args) != 3 {
			return nil, domain.ErrExpression("if takes exactly three arguments")
		}
		cond, ok := toBool(args[0])
		if args[0] != nil && !ok {
			return nil, domain.ErrExpression("if condition must be boolean, got %T", args[0])
		}
		if ok && cond {
			return args[1], nil
		}
		return args[2], nil
	}
	return nil, domain.ErrExpression("unknown function %q", name)
}
