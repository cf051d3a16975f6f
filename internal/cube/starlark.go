package cube

import (
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"cube-demo/internal/domain"
)

const (
	starlarkMaxSteps   = uint64(500_000)
	starlarkTimeout    = 2 * time.Second
	starlarkScriptByte = 64 * 1024
)

// StarlarkReduction builds an aggregation from a Starlark script. The script
// body becomes the body of a function receiving the group's values as a list
// (numbers, strings, bools, None); a single-expression body is returned
// implicitly. The returned value becomes the metric value; None stays null.
//
// Scripts run sandboxed with a step limit and a wall-clock timeout, so a
// runaway reduction fails the query instead of wedging it.
func StarlarkReduction(name, body string) (Aggregation, error) {
	src, err := renderReductionSource(name, body)
	if err != nil {
		return Aggregation{}, err
	}
	if len(src) > starlarkScriptByte {
		return Aggregation{}, domain.ErrSchema("reduction %q script exceeds %d bytes", name, starlarkScriptByte)
	}

	thread := &starlark.Thread{Name: "reduction-load"}
	thread.SetMaxExecutionSteps(starlarkMaxSteps)
	var globals starlark.StringDict
	if err := runStarlarkWithTimeout(thread, starlarkTimeout, func() error {
		loaded, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, name+".star", src, nil)
		if err != nil {
			return err
		}
		globals = loaded
		return nil
	}); err != nil {
		return Aggregation{}, domain.ErrSchema("load reduction %q: %v", name, err)
	}

	callable, ok := globals["reduce"].(starlark.Callable)
	if !ok {
		return Aggregation{}, domain.ErrSchema("reduction %q does not define a reduce function", name)
	}

	fn := func(values []domain.Value) (domain.Value, error) {
		elems := make([]starlark.Value, len(values))
		for i, v := range values {
			sv, err := toStarlark(v)
			if err != nil {
				return nil, domain.ErrExpression("reduction %q: %v", name, err)
			}
			elems[i] = sv
		}

		callThread := &starlark.Thread{Name: "reduction-eval"}
		callThread.SetMaxExecutionSteps(starlarkMaxSteps)

		var result starlark.Value
		if err := runStarlarkWithTimeout(callThread, starlarkTimeout, func() error {
			out, err := starlark.Call(callThread, callable, starlark.Tuple{starlark.NewList(elems)}, nil)
			if err != nil {
				return err
			}
			result = out
			return nil
		}); err != nil {
			return nil, domain.ErrExpression("reduction %q: %v", name, err)
		}
		return fromStarlark(name, result)
	}

	return Aggregation{name: name, fn: fn}, nil
}

// renderReductionSource wraps the body in `def reduce(values):`, indenting
// multi-line bodies and return-wrapping single expressions.
func renderReductionSource(name, body string) (string, error) {
	body = strings.TrimSpace(strings.ReplaceAll(body, "\r\n", "\n"))
	if body == "" {
		return "", domain.ErrSchema("reduction %q body cannot be empty", name)
	}

	var b strings.Builder
	b.WriteString("def reduce(values):\n")

	lines := strings.Split(body, "\n")
	if len(lines) == 1 && !looksLikeStatement(lines[0]) {
		b.WriteString("    return ")
		b.WriteString(strings.TrimSpace(lines[0]))
		b.WriteByte('\n')
		return b.String(), nil
	}

	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if strings.TrimSpace(trimmed) == "" {
			b.WriteString("    \n")
			continue
		}
		b.WriteString("    ")
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func toStarlark(v domain.Value) (starlark.Value, error) {
	switch x := v.(type) {
	case nil:
		return starlark.None, nil
	case float64:
		return starlark.Float(x), nil
	case string:
		return starlark.String(x), nil
	case bool:
		return starlark.Bool(x), nil
	default:
		return nil, domain.ErrExpression("unsupported cell type %T", v)
	}
}

func fromStarlark(name string, v starlark.Value) (domain.Value, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Float:
		return float64(x), nil
	case starlark.Int:
		f, _ := starlark.AsFloat(x)
		return f, nil
	case starlark.String:
		return string(x), nil
	case starlark.Bool:
		return bool(x), nil
	default:
		return nil, domain.ErrExpression("reduction %q returned unsupported type %s", name, v.Type())
	}
}

func runStarlarkWithTimeout(thread *starlark.Thread, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		return fn()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		thread.Cancel("reduction timed out")
		<-done
		return domain.ErrExpression("starlark reduction timed out after %s", timeout)
	}
}

func looksLikeStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, prefix := range []string{"return ", "if ", "for ", "while ", "def ", "pass", "break", "continue", "load("} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}
