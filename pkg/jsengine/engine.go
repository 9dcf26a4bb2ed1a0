// Package jsengine evaluates the JavaScript expressions scenarios embed in
// ${...} placeholders and the standalone scripts run by the runScript step.
package jsengine

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/testlab-dev/appharness/pkg/core"
	"github.com/testlab-dev/appharness/pkg/logger"
)

// Engine wraps a goja runtime. One engine lives for the duration of a
// session; scripts share globals across steps.
type Engine struct {
	runtime  *goja.Runtime
	vars     map[string]interface{}
	output   map[string]interface{}
	platform core.Platform
	mu       sync.Mutex
}

// New creates an engine for the given platform with the builtins installed.
func New(platform core.Platform) *Engine {
	e := &Engine{
		runtime:  goja.New(),
		vars:     make(map[string]interface{}),
		output:   make(map[string]interface{}),
		platform: platform,
	}
	e.setupBuiltins()
	return e
}

func (e *Engine) setupBuiltins() {
	e.setupConsole()
	e.runtime.Set("json", e.jsonFunc())
	e.runtime.Set("output", e.output)

	harness := e.runtime.NewObject()
	harness.DefineAccessorProperty("platform", e.runtime.ToValue(func() string {
		return string(e.platform)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	e.runtime.Set("harness", harness)
}

// setupConsole routes console.log/warn/error into the harness log file.
func (e *Engine) setupConsole() {
	makeFunc := func(emit func(format string, args ...interface{})) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = fmt.Sprintf("%v", arg.Export())
			}
			emit("script: %s", strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	console := e.runtime.NewObject()
	console.Set("log", makeFunc(logger.Info))
	console.Set("warn", makeFunc(logger.Warn))
	console.Set("error", makeFunc(logger.Error))
	e.runtime.Set("console", console)
}

// jsonFunc is the json(str) helper: parse a JSON string into a JS value.
func (e *Engine) jsonFunc() func(call goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(e.runtime.NewTypeError("json requires 1 argument"))
		}
		str := call.Arguments[0].String()
		result, err := e.runtime.RunString(fmt.Sprintf("JSON.parse(%q)", str))
		if err != nil {
			panic(e.runtime.NewTypeError(fmt.Sprintf("invalid JSON: %v", err)))
		}
		return result
	}
}

// SetVariable defines a global visible to scripts.
func (e *Engine) SetVariable(name string, value interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vars[name] = value
	e.runtime.Set(name, value)
}

// SetVariables defines several globals at once, typically the env block of
// the session config.
func (e *Engine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		e.SetVariable(k, v)
	}
}

// Output returns a copy of the output object scripts write results into.
func (e *Engine) Output() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]interface{}, len(e.output))
	if v := e.runtime.Get("output"); v != nil && !goja.IsUndefined(v) {
		if m, ok := v.Export().(map[string]interface{}); ok {
			for k, val := range m {
				out[k] = val
			}
			return out
		}
	}
	for k, val := range e.output {
		out[k] = val
	}
	return out
}

// Eval evaluates an expression and returns its exported value.
func (e *Engine) Eval(script string) (interface{}, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.runtime.RunString(script)
	if err != nil {
		return nil, core.ErrInvalidOption.WithMessage("script evaluation failed").WithCause(err)
	}
	return result.Export(), nil
}

// EvalString evaluates an expression and stringifies the result.
func (e *Engine) EvalString(script string) (string, error) {
	result, err := e.Eval(script)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprintf("%v", result), nil
}

// Run executes a script for its side effects.
func (e *Engine) Run(script string) error {
	_, err := e.Eval(script)
	return err
}

// Expand replaces every ${expr} in text with the evaluated expression.
// Nested braces inside the expression are honored; an expression that fails
// to evaluate is left in place.
func (e *Engine) Expand(text string) string {
	result := text
	start := 0

	for {
		idx := strings.Index(result[start:], "${")
		if idx == -1 {
			break
		}
		idx += start

		depth := 1
		end := idx + 2
		for end < len(result) && depth > 0 {
			switch result[end] {
			case '{':
				depth++
			case '}':
				depth--
			}
			end++
		}
		if depth != 0 {
			start = idx + 2
			continue
		}

		expr := result[idx+2 : end-1]
		value, err := e.EvalString(expr)
		if err != nil {
			logger.Warn("expansion of %q failed: %v", expr, err)
			start = end
			continue
		}
		result = result[:idx] + value + result[end:]
		start = idx + len(value)
	}
	return result
}
