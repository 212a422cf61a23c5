package toolregistry

import (
	"context"
	"fmt"

	"github.com/planexec/planexec/workflowerrors"
)

// RegisterBuiltins seeds r with a small set of deterministic tools used by
// the example scenarios in spec §8 and by the package's own tests. Callers
// wiring a production registry are expected to register their own tools
// instead; RegisterBuiltins exists for demos and tests, mirroring the
// teacher's habit of shipping a couple of reference tool implementations
// alongside the registry itself.
func RegisterBuiltins(r *Registry) error {
	if err := r.Register(calculatorSchema, calculatorInvoker); err != nil {
		return err
	}
	if err := r.Register(webSearchSchema, webSearchInvoker); err != nil {
		return err
	}
	return nil
}

var calculatorSchema = Schema{
	Name:        "calculator",
	Description: "Evaluates a simple arithmetic expression of the form '<number> <op> <number>'.",
	Parameters: map[string]any{
		"type":     "object",
		"required": []any{"expression"},
		"properties": map[string]any{
			"expression": map[string]any{"type": "string"},
		},
	},
	Returns: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"result":     map[string]any{"type": "number"},
			"expression": map[string]any{"type": "string"},
		},
	},
	TimeoutSeconds: 5,
	Tags:           []string{"math", "builtin"},
}

func calculatorInvoker(_ context.Context, args map[string]any) (any, error) {
	expr, _ := args["expression"].(string)
	var a, b float64
	var op string
	if _, err := fmt.Sscanf(expr, "%f %s %f", &a, &op, &b); err != nil {
		return nil, workflowerrors.Wrap(workflowerrors.KindToolFailed, "could not parse expression "+expr, err)
	}
	var result float64
	switch op {
	case "+":
		result = a + b
	case "-":
		result = a - b
	case "*":
		result = a * b
	case "/":
		if b == 0 {
			return nil, workflowerrors.New(workflowerrors.KindToolFailed, "division by zero")
		}
		result = a / b
	default:
		return nil, workflowerrors.Newf(workflowerrors.KindToolFailed, "unsupported operator %q", op)
	}
	return map[string]any{"result": result, "expression": expr}, nil
}

var webSearchSchema = Schema{
	Name:        "web_search",
	Description: "Searches the web for a query and returns a short list of result snippets.",
	Parameters: map[string]any{
		"type":     "object",
		"required": []any{"query"},
		"properties": map[string]any{
			"query":       map[string]any{"type": "string"},
			"max_results": map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
		},
	},
	TimeoutSeconds: 30,
	Tags:           []string{"search", "builtin"},
}

func webSearchInvoker(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, workflowerrors.New(workflowerrors.KindParamSynthesisFailure, "query is required")
	}
	select {
	case <-ctx.Done():
		return nil, workflowerrors.Wrap(workflowerrors.KindToolTimeout, "web_search timed out", ctx.Err())
	default:
	}
	return map[string]any{
		"query":   query,
		"results": []string{fmt.Sprintf("stub result for %q", query)},
	}, nil
}
