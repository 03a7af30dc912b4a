package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/mo"

	"github.com/lewisedginton/chat_console/internal/capture"
	"github.com/lewisedginton/chat_console/internal/engine"
)

// Env is the set of names bound into a snippet's globals before it runs.
type Env map[string]any

// Result is the outcome of one execution request: a value and captured
// stdout on success, or captured stdout and an error on failure.
type Result struct {
	Value  mo.Option[engine.Value]
	Stdout string
	// Err is an *engine.SyntaxError or *engine.RuntimeError on failure.
	Err error
}

// Succeeded reports whether the execution completed without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Output renders the result as stdout followed by the value or the error trace.
func (r Result) Output() string {
	if r.Err != nil {
		return r.Stdout + failureText(r.Err)
	}
	if v, ok := r.Value.Get(); ok {
		return r.Stdout + v.Text
	}
	return r.Stdout
}

// Empty reports whether there is nothing worth showing.
func (r Result) Empty() bool {
	return r.Err == nil && r.Value.IsAbsent() && r.Stdout == ""
}

func failureText(err error) string {
	var syntaxErr *engine.SyntaxError
	if errors.As(err, &syntaxErr) {
		return syntaxErr.Render()
	}
	var runtimeErr *engine.RuntimeError
	if errors.As(err, &runtimeErr) && runtimeErr.Trace != "" {
		return runtimeErr.Trace
	}
	return err.Error()
}

// variant is the part of a one-shot evaluation that differs between commands:
// what is added to the environment and how the final value is produced.
type variant struct {
	name    string
	prepare func(scope engine.Scope) error
	rewrite func(scope engine.Scope, source string) string
}

var (
	evalVariant = variant{name: "eval"}
	calcVariant = variant{
		name:    "calc",
		prepare: engine.Scope.OpenMath,
		rewrite: returnLastLine,
	}
)

// returnLastLine turns the final non-blank line into an explicit return.
func returnLastLine(scope engine.Scope, source string) string {
	lines := strings.Split(source, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "return ") && line != "return" {
			lines[i] = scope.ReturnStatement(lines[i])
		}
		break
	}
	return strings.Join(lines, "\n")
}

// Pipeline compiles and runs snippets on one engine.
type Pipeline struct {
	engine engine.Engine
}

// NewPipeline creates a pipeline over eng.
func NewPipeline(eng engine.Engine) *Pipeline {
	return &Pipeline{engine: eng}
}

// Language is the engine's tag, used to label code blocks and paste files.
func (p *Pipeline) Language() string {
	return p.engine.Name()
}

// RunEval runs source as the body of an implicit callable. A trailing
// return produces the value.
func (p *Pipeline) RunEval(ctx context.Context, source string, env Env) Result {
	return p.runOnce(ctx, source, env, evalVariant)
}

// RunCalc runs source like RunEval with the math namespace opened and the
// last line rewritten to return its own value.
func (p *Pipeline) RunCalc(ctx context.Context, source string, env Env) Result {
	return p.runOnce(ctx, source, env, calcVariant)
}

func (p *Pipeline) runOnce(ctx context.Context, source string, env Env, v variant) Result {
	interp, err := p.NewInterpreter(env)
	if err != nil {
		return Result{Err: err}
	}
	defer interp.Close()

	if v.prepare != nil {
		if err := v.prepare(interp.scope); err != nil {
			return Result{Err: fmt.Errorf("failed to prepare %s environment: %w", v.name, err)}
		}
	}
	if v.rewrite != nil {
		source = v.rewrite(interp.scope, source)
	}

	prog, err := interp.scope.Compile(source, engine.ModeBody)
	if err != nil {
		return Result{Err: err}
	}
	return interp.run(ctx, prog)
}

// RunREPLLine runs one line of an interactive session. A single line is
// compiled as an expression first and falls back to a statement block.
// Nothing is returned when the line produced neither a value nor output.
func (p *Pipeline) RunREPLLine(ctx context.Context, source string, interp *Interpreter) mo.Option[Result] {
	prog, err := compileREPL(interp.scope, source)
	if err != nil {
		return mo.Some(Result{Err: err})
	}
	res := interp.run(ctx, prog)
	if res.Empty() {
		return mo.None[Result]()
	}
	return mo.Some(res)
}

func compileREPL(scope engine.Scope, source string) (engine.Program, error) {
	if !strings.Contains(source, "\n") {
		if prog, err := scope.Compile(source, engine.ModeExpression); err == nil {
			return prog, nil
		}
	}
	return scope.Compile(source, engine.ModeStatements)
}

// Interpreter is a scope whose output is captured per run. Sessions keep one
// alive across lines; one-shot evaluations use a fresh one each time.
type Interpreter struct {
	scope engine.Scope
	sink  *capture.Sink
}

// NewInterpreter creates a scope with env bound into its globals.
func (p *Pipeline) NewInterpreter(env Env) (*Interpreter, error) {
	sink := capture.NewSink()
	scope, err := p.engine.NewScope(sink)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s scope: %w", p.engine.Name(), err)
	}
	interp := &Interpreter{scope: scope, sink: sink}
	if err := interp.Bind(env); err != nil {
		scope.Close()
		return nil, err
	}
	return interp, nil
}

// Bind sets every name in env.
func (i *Interpreter) Bind(env Env) error {
	for name, value := range env {
		if err := i.scope.Set(name, value); err != nil {
			return fmt.Errorf("failed to bind %s: %w", name, err)
		}
	}
	return nil
}

// Close releases the scope.
func (i *Interpreter) Close() {
	i.scope.Close()
}

func (i *Interpreter) run(ctx context.Context, prog engine.Program) Result {
	value, stdout, err := capture.Run(i.sink, func() (mo.Option[engine.Value], error) {
		return i.scope.Run(ctx, prog)
	})
	if err != nil {
		return Result{Stdout: stdout, Err: err}
	}
	return Result{Value: value, Stdout: stdout}
}
