package expr

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"google.golang.org/protobuf/types/known/structpb"
)

// Evaluator evaluates custom transform expressions using CEL (Common
// Expression Language). CEL is side-effect free and cannot reach outside
// the declared variables, which makes it the sandbox the custom transform
// type requires.
type Evaluator struct {
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// NewEvaluator creates a new expression evaluator with caching
func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]cel.Program),
	}
}

// Compile checks an expression without evaluating it. Used at node
// validation time so malformed expressions fail before execution starts.
func (e *Evaluator) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

// Evaluate runs an expression against the given input value
func (e *Evaluator) Evaluate(expression string, input interface{}) (interface{}, error) {
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"input": input,
	})
	if err != nil {
		return nil, fmt.Errorf("expression evaluation error: %w", err)
	}

	return nativeValue(out), nil
}

// nativeValue converts a CEL result into JSON-shaped Go values so map and
// list results compose with the rest of the context
func nativeValue(out ref.Val) interface{} {
	converted, err := out.ConvertToNative(reflect.TypeOf((*structpb.Value)(nil)))
	if err != nil {
		return out.Value()
	}
	return converted.(*structpb.Value).AsInterface()
}

// program returns a compiled program, compiling and caching on first use
func (e *Evaluator) program(expression string) (cel.Program, error) {
	e.mu.RLock()
	prg, exists := e.cache[expression]
	e.mu.RUnlock()

	if exists {
		return prg, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("input", cel.DynType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression env: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("expression compilation error: %w", issues.Err())
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create expression program: %w", err)
	}

	e.mu.Lock()
	e.cache[expression] = prg
	e.mu.Unlock()

	return prg, nil
}

// CacheSize returns the number of cached expressions
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
