package csml

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator computes the value of a placeholder or statement expression. A
// returned Deferred is awaited when the document is finalized.
type Evaluator interface {
	Eval(ctx context.Context, code string, vars map[string]any) (any, error)
}

// ExprEvaluator evaluates expressions with github.com/expr-lang/expr.
// Compiled programs are cached by their source text. Undefined variables
// evaluate to nil.
type ExprEvaluator struct {
	programs sync.Map // string -> *vm.Program
}

func exprOptions() []expr.Option {
	return []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("formatDuration", formatDurationFunc),
		expr.Function("parseDuration", parseDurationFunc),
	}
}

func (e *ExprEvaluator) compile(code string) (*vm.Program, error) {
	if p, ok := e.programs.Load(code); ok {
		return p.(*vm.Program), nil
	}
	prog, err := expr.Compile(code, exprOptions()...)
	if err != nil {
		return nil, err
	}
	e.programs.Store(code, prog)
	return prog, nil
}

func (e *ExprEvaluator) Eval(_ context.Context, code string, vars map[string]any) (any, error) {
	prog, err := e.compile(code)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", code, err)
	}
	v, err := expr.Run(prog, vars)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", code, err)
	}
	return v, nil
}

// parseDurationFunc implements parseDuration("1h30m"), returning a
// time.Duration.
func parseDurationFunc(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("parseDuration expects 1 arg")
	}
	switch v := args[0].(type) {
	case string:
		return time.ParseDuration(v)
	case time.Duration:
		return v, nil
	}
	return nil, fmt.Errorf("parseDuration expects a string, got %T", args[0])
}

// formatDurationFunc implements formatDuration(d) for a time.Duration or a
// number of nanoseconds: "7h 15m 34s".
func formatDurationFunc(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("formatDuration expects 1 arg")
	}
	var d time.Duration
	switch v := args[0].(type) {
	case time.Duration:
		d = v
	case int:
		d = time.Duration(v)
	case int64:
		d = time.Duration(v)
	case float64:
		d = time.Duration(int64(v))
	default:
		return nil, fmt.Errorf("formatDuration expects a duration, got %T", v)
	}
	if d == 0 {
		return "0s", nil
	}
	var parts []string
	if h := d / time.Hour; h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
		d -= m * time.Minute
	}
	if s := d / time.Second; s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " "), nil
}
